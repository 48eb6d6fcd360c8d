package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Request    RequestConfig    `yaml:"request"`
	Log        LogConfig        `yaml:"log"`
	DB         DBConfig         `yaml:"db"`
	Server     ServerConfig     `yaml:"server"`
	Overpass   OverpassConfig   `yaml:"overpass"`
	Context    ContextConfig    `yaml:"context"`
	LLM        LLMConfig        `yaml:"llm"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Similarity SimilarityConfig `yaml:"similarity"`
	Verdict    VerdictConfig    `yaml:"verdict"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Retries   int           `yaml:"retries"`
	Timeout   Duration      `yaml:"timeout"`
	Backoff   BackoffConfig `yaml:"backoff"`
	RateLimit float64       `yaml:"rate_limit"` // requests per second, per provider
	Burst     int           `yaml:"burst"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
	LLM      LogSettings `yaml:"llm"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path     string   `yaml:"path"`
	CacheTTL Duration `yaml:"cache_ttl"` // cached POI lookups and embeddings older than this are pruned at start-up
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address      string   `yaml:"address"`
	CORSOrigins  []string `yaml:"cors_origins"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
}

// OverpassConfig holds settings for the OpenStreetMap Overpass API.
type OverpassConfig struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
}

// ContextConfig holds settings for narrative context assembly.
type ContextConfig struct {
	Radius        Distance    `yaml:"radius"`
	MaxPOIs       int         `yaml:"max_pois"`
	Concurrency   int         `yaml:"concurrency"`
	LookupTimeout Duration    `yaml:"lookup_timeout"`
	Retry         RetryConfig `yaml:"retry"`
}

// RetryConfig holds the per-waypoint POI lookup retry policy.
// The delay before attempt n+1 is BaseDelay * 2^n.
type RetryConfig struct {
	Attempts  int      `yaml:"attempts"`
	BaseDelay Duration `yaml:"base_delay"`
}

// LLMConfig holds settings for the language model chain.
type LLMConfig struct {
	Providers   []ProviderConfig `yaml:"providers"` // tried in order
	Temperature float32          `yaml:"temperature"`
	Timeout     Duration         `yaml:"timeout"`
	PromptsDir  string           `yaml:"prompts_dir"` // empty uses the built-in templates
}

// ProviderConfig holds settings for a single LLM provider.
type ProviderConfig struct {
	Type    string `yaml:"type"` // "ollama", "gemini", "openai" or an OpenAI-compatible host (groq, deepseek, nvidia, perplexity)
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Key     string `yaml:"key"`
}

// EmbeddingConfig holds settings for the embedding service used by similarity scoring.
type EmbeddingConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	Cache     bool   `yaml:"cache"`
	BatchSize int    `yaml:"batch_size"`
}

// SimilarityConfig holds BERTScore-style similarity settings.
type SimilarityConfig struct {
	Threshold    float64 `yaml:"threshold"`
	Language     string  `yaml:"language"`
	Segment      string  `yaml:"segment"` // "token" or "chunk"
	Window       int     `yaml:"window"`  // context tokens on each side in token mode
	ChunkSize    int     `yaml:"chunk_size"`
	ChunkOverlap int     `yaml:"chunk_overlap"`
}

// VerdictConfig holds population verdict settings.
type VerdictConfig struct {
	Threshold float64 `yaml:"threshold"`
	Alpha     float64 `yaml:"alpha"`
}

// EvaluationConfig holds evaluation pipeline settings.
type EvaluationConfig struct {
	ReuseTravelogue bool `yaml:"reuse_travelogue"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Request: RequestConfig{
			Retries: 3,
			Timeout: Duration(120 * time.Second),
			Backoff: BackoffConfig{
				BaseDelay: Duration(500 * time.Millisecond),
				MaxDelay:  Duration(30 * time.Second),
			},
			RateLimit: 2,
			Burst:     1,
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
			LLM: LogSettings{
				Path:  "./logs/llm.log",
				Level: "INFO",
			},
		},
		DB: DBConfig{
			Path:     "./data/travelogue.db",
			CacheTTL: Duration(30 * Day),
		},
		Server: ServerConfig{
			Address:      "localhost:8000",
			CORSOrigins:  []string{"http://localhost:5173", "http://localhost:8000"},
			ReadTimeout:  Duration(15 * time.Second),
			WriteTimeout: Duration(5 * time.Minute),
		},
		Overpass: OverpassConfig{
			URL:     "https://overpass-api.de/api/interpreter",
			Timeout: Duration(10 * time.Second),
		},
		Context: ContextConfig{
			Radius:        Distance(500),
			MaxPOIs:       5,
			Concurrency:   4,
			LookupTimeout: Duration(15 * time.Second),
			Retry: RetryConfig{
				Attempts:  3,
				BaseDelay: Duration(1 * time.Second),
			},
		},
		LLM: LLMConfig{
			Providers: []ProviderConfig{
				{
					Type:    "ollama",
					BaseURL: "http://localhost:11434",
					Model:   "llama3.1:8b",
				},
			},
			Temperature: 0.7,
			Timeout:     Duration(5 * time.Minute),
		},
		Embedding: EmbeddingConfig{
			BaseURL:   "http://localhost:11434",
			Model:     "nomic-embed-text",
			Cache:     true,
			BatchSize: 64,
		},
		Similarity: SimilarityConfig{
			Threshold:    0.85,
			Language:     "en",
			Segment:      "token",
			Window:       4,
			ChunkSize:    200,
			ChunkOverlap: 40,
		},
		Verdict: VerdictConfig{
			Threshold: 0.85,
			Alpha:     0.05,
		},
		Evaluation: EvaluationConfig{
			ReuseTravelogue: true,
		},
	}
}

// Load loads the configuration from the given path.
// A .env file next to the config (or in the working directory) is loaded
// first so that secrets can stay out of the YAML file.
// If the config file does not exist, it is created with default values.
func Load(path string) (*Config, error) {
	loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env")

	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		// Existing environment variables win over .env values.
		_ = godotenv.Load(p)
	}
}

// providerKeyEnv maps provider types to the variable holding their API key.
var providerKeyEnv = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"gemini":     "GEMINI_API_KEY",
	"groq":       "GROQ_API_KEY",
	"deepseek":   "DEEPSEEK_API_KEY",
	"nvidia":     "NVIDIA_API_KEY",
	"perplexity": "PERPLEXITY_API_KEY",
}

// applyEnv fills secrets and endpoints from the environment when the file leaves them empty.
// Env values are never written back to disk.
func applyEnv(cfg *Config) {
	for i := range cfg.LLM.Providers {
		p := &cfg.LLM.Providers[i]
		switch p.Type {
		case "ollama":
			if host := os.Getenv("OLLAMA_HOST"); host != "" && p.BaseURL == "" {
				p.BaseURL = host
			}
		default:
			if env, ok := providerKeyEnv[p.Type]; ok && p.Key == "" {
				p.Key = os.Getenv(env)
			}
		}
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = os.Getenv("OLLAMA_HOST")
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.Log.Server.Level = lvl
	}
	if p := os.Getenv("TRAVELOGUE_DB_PATH"); p != "" {
		cfg.DB.Path = p
	}

	cfg.DB.Path = expandPath(cfg.DB.Path)
	cfg.Log.Server.Path = expandPath(cfg.Log.Server.Path)
	cfg.Log.Requests.Path = expandPath(cfg.Log.Requests.Path)
	cfg.Log.LLM.Path = expandPath(cfg.Log.LLM.Path)
}

var windowsVar = regexp.MustCompile(`%([A-Za-z_][A-Za-z0-9_]*)%`)

// expandPath resolves $VAR, ${VAR} and %VAR% references.
func expandPath(p string) string {
	p = windowsVar.ReplaceAllStringFunc(p, func(m string) string {
		return os.Getenv(strings.Trim(m, "%"))
	})
	return os.ExpandEnv(p)
}

// Validate checks value ranges that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	var errs []error
	if c.Similarity.Threshold <= 0 || c.Similarity.Threshold > 1 {
		errs = append(errs, fmt.Errorf("similarity.threshold must be in (0, 1], got %v", c.Similarity.Threshold))
	}
	if c.Verdict.Alpha <= 0 || c.Verdict.Alpha >= 1 {
		errs = append(errs, fmt.Errorf("verdict.alpha must be in (0, 1), got %v", c.Verdict.Alpha))
	}
	if c.Context.Retry.Attempts < 1 {
		errs = append(errs, fmt.Errorf("context.retry.attempts must be at least 1, got %d", c.Context.Retry.Attempts))
	}
	if c.Context.MaxPOIs < 0 {
		errs = append(errs, fmt.Errorf("context.max_pois must not be negative"))
	}
	switch c.Similarity.Segment {
	case "token", "chunk":
	default:
		errs = append(errs, fmt.Errorf("similarity.segment must be 'token' or 'chunk', got %q", c.Similarity.Segment))
	}
	if !isValidLanguage(c.Similarity.Language) {
		errs = append(errs, fmt.Errorf("invalid similarity.language '%s': must be a two-letter code", c.Similarity.Language))
	}
	if len(c.LLM.Providers) == 0 {
		errs = append(errs, errors.New("llm.providers must list at least one provider"))
	}
	for i, p := range c.LLM.Providers {
		if _, ok := providerKeyEnv[p.Type]; !ok && p.Type != "ollama" {
			errs = append(errs, fmt.Errorf("llm.providers[%d]: unknown type %q", i, p.Type))
		}
	}
	return errors.Join(errs...)
}

func isValidLanguage(s string) bool {
	matched, _ := regexp.MatchString(`^[a-z]{2}$`, s)
	return matched
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Travelogue Configuration
# ------------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
#   Distance: m (meters), km (kilometers)
# Secrets (API keys) can be supplied through the environment or a .env file:
#   OPENAI_API_KEY, GEMINI_API_KEY, GROQ_API_KEY, DEEPSEEK_API_KEY,
#   NVIDIA_API_KEY, PERPLEXITY_API_KEY, OLLAMA_HOST

`)
	data = append(header, data...)

	reType := regexp.MustCompile(`(?m)^(\s+- )type:`)
	data = reType.ReplaceAll(data, []byte("${1}# Options: ollama, openai, gemini, groq, deepseek, nvidia, perplexity\n${1}type:"))
	data = []byte(strings.ReplaceAll(string(data), "- # Options", "# Options"))

	reSegment := regexp.MustCompile(`(?m)^(\s+)segment:`)
	data = reSegment.ReplaceAll(data, []byte("${1}# Options: token, chunk\n${1}segment:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault writes a fresh default configuration file to path.
func GenerateDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return Save(path, DefaultConfig())
}
