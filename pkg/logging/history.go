package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	llmHistoryMu   sync.Mutex
	llmHistoryPath string
)

// LLMExchange is one prompt/response pair sent to a language model.
type LLMExchange struct {
	Provider string
	Model    string
	Profile  string
	System   string
	User     string
	Response string
	Err      error
	Duration time.Duration
}

// SetLLMHistoryPath sets the file LLM exchanges are appended to. Empty disables the history.
func SetLLMHistoryPath(path string) {
	llmHistoryMu.Lock()
	defer llmHistoryMu.Unlock()
	llmHistoryPath = path
}

// LogLLMExchange appends an exchange to the LLM history file.
func LogLLMExchange(ex *LLMExchange) {
	llmHistoryMu.Lock()
	defer llmHistoryMu.Unlock()

	if llmHistoryPath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(llmHistoryPath), 0o755); err != nil {
		slog.Error("failed to create llm history directory", "error", err)
		return
	}
	f, err := os.OpenFile(llmHistoryPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Error("failed to open llm history", "error", err)
		return
	}
	defer f.Close()

	if _, err := f.WriteString(formatExchange(ex, time.Now())); err != nil {
		slog.Error("failed to write llm history", "error", err)
	}
}

func formatExchange(ex *LLMExchange, ts time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== [%s] %s/%s profile=%s took=%s ===\n",
		ts.Format("2006-01-02 15:04:05"), ex.Provider, ex.Model, ex.Profile, ex.Duration.Round(time.Millisecond))
	if ex.System != "" {
		b.WriteString("--- SYSTEM ---\n")
		b.WriteString(ex.System)
		b.WriteString("\n")
	}
	b.WriteString("--- USER ---\n")
	b.WriteString(ex.User)
	b.WriteString("\n")
	if ex.Err != nil {
		b.WriteString("--- ERROR ---\n")
		b.WriteString(ex.Err.Error())
	} else {
		b.WriteString("--- RESPONSE ---\n")
		b.WriteString(ex.Response)
	}
	b.WriteString("\n\n")
	return b.String()
}
