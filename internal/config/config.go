// Package config loads service configuration from a yaml file and the
// environment (prefix DOCLENS_).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	LLM        LLMConfig        `mapstructure:"llm"`
	Vector     VectorConfig     `mapstructure:"vector"`
	Chunker    ChunkerConfig    `mapstructure:"chunker"`
	Summarizer SummarizerConfig `mapstructure:"summarizer"`
	Server     ServerConfig     `mapstructure:"server"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Log        LogConfig        `mapstructure:"log"`
}

type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	Model       string        `mapstructure:"model"`
	EmbedModel  string        `mapstructure:"embed_model"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type VectorConfig struct {
	// Backend selects the vector store: "memory" or "qdrant".
	Backend    string `mapstructure:"backend"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
}

type ChunkerConfig struct {
	Size    int `mapstructure:"size"`
	Overlap int `mapstructure:"overlap"`
}

type SummarizerConfig struct {
	ChunkCap int `mapstructure:"chunk_cap"`
}

type ServerConfig struct {
	ListenAddr    string        `mapstructure:"listen_addr"`
	HealthAddr    string        `mapstructure:"health_addr"`
	ScrapeTimeout time.Duration `mapstructure:"scrape_timeout"`
}

type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// AuditPath enables JSONL audit logging when set. Accepts a file
	// path or "stdout"/"stderr".
	AuditPath string `mapstructure:"audit_path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "groq",
			Model:       "llama3-8b-8192",
			BaseURL:     "https://api.groq.com/openai/v1",
			Temperature: 0.7,
			MaxTokens:   512,
			MaxAttempts: 5,
			Timeout:     45 * time.Second,
		},
		Vector: VectorConfig{
			Backend:    "memory",
			Host:       "localhost",
			Port:       6334,
			Collection: "doclens",
		},
		Chunker:    ChunkerConfig{Size: 1000, Overlap: 200},
		Summarizer: SummarizerConfig{ChunkCap: 12},
		Server: ServerConfig{
			ListenAddr:    ":8080",
			HealthAddr:    ":8081",
			ScrapeTimeout: 30 * time.Second,
		},
		Tracing: TracingConfig{Endpoint: "localhost:4317"},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.LLM.Provider != "" && c.LLM.APIKey == "" {
		warnings = append(warnings, fmt.Sprintf("LLM provider '%s' is configured but api_key is empty", c.LLM.Provider))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2.0 {
		warnings = append(warnings, fmt.Sprintf("LLM temperature %.2f is outside recommended range [0.0, 2.0]", c.LLM.Temperature))
	}
	if c.LLM.MaxTokens < 0 {
		warnings = append(warnings, fmt.Sprintf("LLM max_tokens %d is negative", c.LLM.MaxTokens))
	}
	if b := c.Vector.Backend; b != "" && b != "memory" && b != "qdrant" {
		warnings = append(warnings, fmt.Sprintf("unknown vector backend '%s', expected memory or qdrant", b))
	}
	if c.Chunker.Size > 0 && c.Chunker.Overlap >= c.Chunker.Size {
		warnings = append(warnings, fmt.Sprintf("chunk overlap %d >= chunk size %d", c.Chunker.Overlap, c.Chunker.Size))
	}

	return warnings
}

// Load reads configuration from an optional file and the environment.
// An empty path uses defaults plus environment overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DOCLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := Default()
	v.SetDefault("llm.provider", defaults.LLM.Provider)
	v.SetDefault("llm.model", defaults.LLM.Model)
	v.SetDefault("llm.base_url", defaults.LLM.BaseURL)
	v.SetDefault("llm.temperature", defaults.LLM.Temperature)
	v.SetDefault("llm.max_tokens", defaults.LLM.MaxTokens)
	v.SetDefault("llm.max_attempts", defaults.LLM.MaxAttempts)
	v.SetDefault("llm.timeout", defaults.LLM.Timeout)
	v.SetDefault("vector.backend", defaults.Vector.Backend)
	v.SetDefault("vector.host", defaults.Vector.Host)
	v.SetDefault("vector.port", defaults.Vector.Port)
	v.SetDefault("vector.collection", defaults.Vector.Collection)
	v.SetDefault("chunker.size", defaults.Chunker.Size)
	v.SetDefault("chunker.overlap", defaults.Chunker.Overlap)
	v.SetDefault("summarizer.chunk_cap", defaults.Summarizer.ChunkCap)
	v.SetDefault("server.listen_addr", defaults.Server.ListenAddr)
	v.SetDefault("server.health_addr", defaults.Server.HealthAddr)
	v.SetDefault("server.scrape_timeout", defaults.Server.ScrapeTimeout)
	v.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	v.SetDefault("tracing.endpoint", defaults.Tracing.Endpoint)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
	v.SetDefault("log.audit_path", defaults.Log.AuditPath)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}
