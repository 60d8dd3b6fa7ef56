package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPromptPrefix is the instruction placed in front of the user's bio text.
const DefaultPromptPrefix = "Generate 1 Professional twitter biographies with no hashtags and clearly Make sure generated biography is less than 160 characters, has short sentences that are found in Twitter bios, and base them on this context: "

// Config aggregates runtime configuration used across the server and the CLI.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Generate GenerateConfig `yaml:"generate"`
	LLM      LLMConfig      `yaml:"llm"`
	Cache    CacheConfig    `yaml:"cache"`
	History  HistoryConfig  `yaml:"history"`
	Client   ClientConfig   `yaml:"client"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address        string        `yaml:"address"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	AllowedOrigins []string      `yaml:"allowedOrigins"`
}

// GenerateConfig drives the generation endpoint.
type GenerateConfig struct {
	SystemPrompt    string `yaml:"systemPrompt"`
	MaxPromptTokens int    `yaml:"maxPromptTokens"`
}

// LLMConfig contains ChatGPT/OpenAI settings.
type LLMConfig struct {
	APIKey      string  `yaml:"apiKey"`
	BaseURL     string  `yaml:"baseUrl"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
}

// CacheConfig controls the completed-result cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
	Valkey  ValkeyConfig  `yaml:"valkey"`
}

// ValkeyConfig contains connection information for the shared cache.
type ValkeyConfig struct {
	Addr   string `yaml:"addr"`
	Prefix string `yaml:"prefix"`
}

// HistoryConfig controls where finished generations are recorded.
type HistoryConfig struct {
	Postgres PostgresConfig `yaml:"postgres"`
	Limit    int            `yaml:"limit"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// ClientConfig is read by the bio CLI and TUI.
type ClientConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	PromptPrefix   string        `yaml:"promptPrefix"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("GENERATE_SYSTEM_PROMPT"); v != "" {
		cfg.Generate.SystemPrompt = v
	}
	if v := os.Getenv("GENERATE_MAX_PROMPT_TOKENS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Generate.MaxPromptTokens = parsed
		}
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LLM.Temperature = float32(parsed)
		}
	}
	if v := os.Getenv("CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = parseBool(v)
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = parsed
		}
	}
	if v := os.Getenv("CACHE_VALKEY_ADDR"); v != "" {
		cfg.Cache.Valkey.Addr = v
	}
	if v := os.Getenv("HISTORY_POSTGRES_DSN"); v != "" {
		cfg.History.Postgres.DSN = v
	}
	if v := os.Getenv("HISTORY_POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.History.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("HISTORY_POSTGRES_MIN_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.History.Postgres.MinConns = int32(parsed)
		}
	}
	if v := os.Getenv("BIO_ENDPOINT"); v != "" {
		cfg.Client.Endpoint = v
	}
	if v := os.Getenv("BIO_PROMPT_PREFIX"); v != "" {
		cfg.Client.PromptPrefix = v
	}
	if v := os.Getenv("BIO_REQUEST_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Client.RequestTimeout = parsed
		}
	}
}

func parseBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Default returns the built-in configuration before file and env overrides.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:     ":8080",
			ReadTimeout: 5 * time.Second,
			// Streaming responses outlive any fixed write deadline.
			WriteTimeout: 0,
		},
		Generate: GenerateConfig{
			SystemPrompt:    "You write short, professional social media biographies. Reply with the biography text only.",
			MaxPromptTokens: 1024,
		},
		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
		},
		Cache: CacheConfig{
			Enabled: false,
			TTL:     time.Hour,
			Valkey: ValkeyConfig{
				Prefix: "bio",
			},
		},
		History: HistoryConfig{
			Limit: 20,
			Postgres: PostgresConfig{
				MaxConns: 4,
			},
		},
		Client: ClientConfig{
			Endpoint:       "http://localhost:8080/api/generate",
			PromptPrefix:   DefaultPromptPrefix,
			RequestTimeout: 2 * time.Minute,
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.WriteTimeout < 0 || c.HTTP.ReadTimeout < 0 {
		return errors.New("http timeouts cannot be negative")
	}
	for _, origin := range c.HTTP.AllowedOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("http.allowedOrigins: %q must start with http:// or https://", origin)
		}
	}
	if strings.TrimSpace(c.Generate.SystemPrompt) == "" {
		return errors.New("generate.systemPrompt cannot be empty")
	}
	if c.Generate.MaxPromptTokens < 0 {
		return errors.New("generate.maxPromptTokens cannot be negative")
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("llm.model cannot be empty")
	}
	if c.Cache.TTL < 0 {
		return errors.New("cache.ttl cannot be negative")
	}
	if c.History.Limit <= 0 {
		return errors.New("history.limit must be positive")
	}
	if strings.TrimSpace(c.Client.Endpoint) == "" {
		return errors.New("client.endpoint cannot be empty")
	}
	if c.Client.RequestTimeout < 0 {
		return errors.New("client.requestTimeout cannot be negative")
	}
	return nil
}
