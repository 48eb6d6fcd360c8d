package llm

import (
	"testing"
)

func TestWordWrap(t *testing.T) {
	tests := []struct {
		name  string
		input string
		width int
		want  string
	}{
		{
			name:  "No wrap needed",
			input: "Hello World",
			width: 20,
			want:  "Hello World",
		},
		{
			name:  "Simple wrap",
			input: "Hello World",
			width: 5,
			want:  "Hello\nWorld",
		},
		{
			name:  "Long word preserved",
			input: "Hello Superextralongword World",
			width: 10,
			want:  "Hello\nSuperextralongword\nWorld",
		},
		{
			name:  "Paragraphs kept",
			input: "one two\n\nthree",
			width: 80,
			want:  "one two\n\nthree",
		},
		{
			name:  "Runes not bytes",
			input: "café crème brûlée",
			width: 10,
			want:  "café crème\nbrûlée",
		},
		{
			name:  "Zero width",
			input: "a b c",
			width: 0,
			want:  "a b c",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WordWrap(tt.input, tt.width); got != tt.want {
				t.Errorf("WordWrap() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "Plain",
			input: "  The walk began at dawn.  ",
			want:  "The walk began at dawn.",
		},
		{
			name:  "Think block",
			input: "<think>\nplan the story\n</think>\nThe walk began at dawn.",
			want:  "The walk began at dawn.",
		},
		{
			name:  "Markdown fence",
			input: "```markdown\nThe walk began at dawn.\n```",
			want:  "The walk began at dawn.",
		},
		{
			name:  "Empty",
			input: "<think></think>",
			want:  "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanText(tt.input); got != tt.want {
				t.Errorf("CleanText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("héllo world", 5); got != "héllo..." {
		t.Errorf("Truncate() = %q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate() = %q", got)
	}
}
