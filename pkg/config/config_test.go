package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "travelogue.yaml")

	tests := []struct {
		name          string
		setup         func()
		validate      func(*testing.T, *Config)
		checkFile     func(*testing.T)
		expectedError bool
	}{
		{
			name:  "NewFile_Defaults",
			setup: func() {},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Similarity.Threshold != 0.85 {
					t.Errorf("expected default similarity threshold 0.85, got %v", cfg.Similarity.Threshold)
				}
				if cfg.Context.Retry.Attempts != 3 {
					t.Errorf("expected 3 retry attempts, got %d", cfg.Context.Retry.Attempts)
				}
				if cfg.Context.Retry.BaseDelay.Std() != time.Second {
					t.Errorf("expected 1s base delay, got %v", cfg.Context.Retry.BaseDelay.Std())
				}
				if cfg.LLM.Temperature != 0.7 {
					t.Errorf("expected temperature 0.7, got %v", cfg.LLM.Temperature)
				}
			},
			checkFile: func(t *testing.T) {
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if !strings.Contains(string(content), "threshold: 0.85") {
					t.Error("config file missing default threshold")
				}
				if !strings.Contains(string(content), "# Options: token, chunk") {
					t.Error("config file missing segment options comment")
				}
			},
		},
		{
			name: "ExistingFile_Override",
			setup: func() {
				err := os.WriteFile(configPath, []byte("context:\n  radius: 1.2km\n  concurrency: 8\nverdict:\n  alpha: 0.01\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Context.Radius.Meters() != 1200 {
					t.Errorf("expected radius 1200m, got %v", cfg.Context.Radius)
				}
				if cfg.Context.Concurrency != 8 {
					t.Errorf("expected concurrency 8, got %d", cfg.Context.Concurrency)
				}
				if cfg.Verdict.Alpha != 0.01 {
					t.Errorf("expected alpha 0.01, got %v", cfg.Verdict.Alpha)
				}
				// untouched sections keep defaults
				if cfg.Similarity.Segment != "token" {
					t.Errorf("expected default segment 'token', got %q", cfg.Similarity.Segment)
				}
			},
		},
		{
			name: "LLM_Env_Override",
			setup: func() {
				t.Setenv("GEMINI_API_KEY", "env_secret_key")
				err := os.WriteFile(configPath, []byte("llm:\n  providers:\n    - type: gemini\n      model: gemini-2.0-flash\n      key: \"\"\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			validate: func(t *testing.T, cfg *Config) {
				if len(cfg.LLM.Providers) != 1 {
					t.Fatalf("expected 1 provider, got %d", len(cfg.LLM.Providers))
				}
				if cfg.LLM.Providers[0].Key != "env_secret_key" {
					t.Errorf("expected Key 'env_secret_key', got '%s'", cfg.LLM.Providers[0].Key)
				}
			},
			checkFile: func(t *testing.T) {
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if strings.Contains(string(content), "env_secret_key") {
					t.Error("environment secret should NOT be persisted to config file")
				}
			},
		},
		{
			name: "Path_Env_Expansion",
			setup: func() {
				t.Setenv("TRAVELOGUE_HOME", "/home/walker")
				t.Setenv("APP_DATA", "/app/data")
				err := os.WriteFile(configPath, []byte("db:\n  path: \"$TRAVELOGUE_HOME/db.sqlite\"\nlog:\n  server:\n    path: \"%APP_DATA%/server.log\"\n"), 0o644)
				if err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.DB.Path != "/home/walker/db.sqlite" {
					t.Errorf("unexpected DB path %q", cfg.DB.Path)
				}
				if cfg.Log.Server.Path != "/app/data/server.log" {
					t.Errorf("unexpected log path %q", cfg.Log.Server.Path)
				}
			},
			checkFile: func(t *testing.T) {
				content, err := os.ReadFile(configPath)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if !strings.Contains(string(content), "$TRAVELOGUE_HOME") {
					t.Error("config file should persist raw $VAR path")
				}
			},
		},
		{
			name: "Invalid_YAML",
			setup: func() {
				if err := os.WriteFile(configPath, []byte("context: [not a map]"), 0o644); err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			expectedError: true,
		},
		{
			name: "Invalid_Threshold",
			setup: func() {
				if err := os.WriteFile(configPath, []byte("similarity:\n  threshold: 1.5\n"), 0o644); err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			expectedError: true,
		},
		{
			name: "Invalid_Segment",
			setup: func() {
				if err := os.WriteFile(configPath, []byte("similarity:\n  segment: sentence\n"), 0o644); err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			expectedError: true,
		},
		{
			name: "Unknown_Provider",
			setup: func() {
				if err := os.WriteFile(configPath, []byte("llm:\n  providers:\n    - type: claude\n"), 0o644); err != nil {
					t.Fatalf("failed to setup test file: %v", err)
				}
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_ = os.Remove(configPath)
			tt.setup()

			cfg, err := Load(configPath)
			if tt.expectedError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
			if tt.checkFile != nil {
				tt.checkFile(t)
			}
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "travelogue.yaml")

	if err := os.WriteFile(filepath.Join(tempDir, ".env"), []byte("OPENAI_API_KEY=from_dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(configPath, []byte("llm:\n  providers:\n    - type: openai\n      model: gpt-4o-mini\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OPENAI_API_KEY", "")
	_ = os.Unsetenv("OPENAI_API_KEY")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Providers[0].Key != "from_dotenv" {
		t.Errorf("expected key from .env, got %q", cfg.LLM.Providers[0].Key)
	}
}

func TestGenerateDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "travelogue.yaml")
	if err := GenerateDefault(path); err != nil {
		t.Fatalf("GenerateDefault failed: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read generated file: %v", err)
	}
	if !strings.HasPrefix(string(content), "# Travelogue Configuration") {
		t.Error("generated file missing header")
	}
	if !strings.Contains(string(content), "# Options: ollama, openai, gemini") {
		t.Error("generated file missing provider options comment")
	}

	// round trip through Load
	if _, err := Load(path); err != nil {
		t.Errorf("generated default config does not load: %v", err)
	}
}
