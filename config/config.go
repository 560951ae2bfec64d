// Package config loads module configuration with multi-source priority.
//
// Sources, highest to lowest: environment variables, config file
// (ragchat.yaml in the working directory or ~/.ragchat/), defaults.
// Validation is fail-fast: Load returns an error instead of a half-usable
// configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Sentinel errors returned by Validate, checked with errors.Is().
var (
	ErrInvalidDimension = errors.New("invalid embedding dimension")
	ErrInvalidRetrieval = errors.New("invalid retrieval settings")
	ErrInvalidMemory    = errors.New("invalid memory bound")
	ErrInvalidThrottle  = errors.New("invalid throttle interval")
	ErrInvalidChunking  = errors.New("invalid chunking settings")
)

// Config holds the module's tunable settings.
type Config struct {
	// DatabaseURL is the postgres:// connection string for the persistent
	// index. Empty selects the in-memory index.
	DatabaseURL string `mapstructure:"database_url"`

	// EmbedderModel names the embedding model the hosting application wires
	// up, e.g. "gemini-embedding-001".
	EmbedderModel string `mapstructure:"embedder_model"`

	// EmbeddingDimension is the fixed vector size of the index. Must match
	// the embedding backend's output and, for the pgvector index, the vector
	// column created by db/migrations (768 unless a later migration alters
	// it).
	EmbeddingDimension int `mapstructure:"embedding_dimension"`

	// Retrieval settings.
	MaxResults int     `mapstructure:"max_results"`
	MinScore   float64 `mapstructure:"min_score"`

	// Chunking settings, in characters.
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`

	// MemoryTokens bounds per-session history.
	MemoryTokens int `mapstructure:"memory_tokens"`

	// ThrottleMillis is the minimum interval between streamed partial
	// updates. Zero surfaces every token.
	ThrottleMillis int `mapstructure:"throttle_millis"`

	// LogJSON switches logging from text to JSON output.
	LogJSON bool `mapstructure:"log_json"`
}

// Throttle returns the throttle interval as a duration.
func (c *Config) Throttle() time.Duration {
	return time.Duration(c.ThrottleMillis) * time.Millisecond
}

// Load reads configuration from defaults, an optional ragchat.yaml, and
// RAGCHAT_* environment variables, then validates it.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("ragchat")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".ragchat"))
	}

	setDefaults(v)
	v.SetEnvPrefix("RAGCHAT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; defaults and environment apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("embedder_model", "gemini-embedding-001")
	v.SetDefault("embedding_dimension", 768)
	v.SetDefault("max_results", 10)
	v.SetDefault("min_score", 0.5)
	v.SetDefault("chunk_size", 1024)
	v.SetDefault("chunk_overlap", 64)
	v.SetDefault("memory_tokens", 4000)
	v.SetDefault("throttle_millis", 200)
	v.SetDefault("log_json", false)
}

// Validate checks ranges and cross-field constraints.
func (c *Config) Validate() error {
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDimension, c.EmbeddingDimension)
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("%w: max_results %d", ErrInvalidRetrieval, c.MaxResults)
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		return fmt.Errorf("%w: min_score %g not in [0,1]", ErrInvalidRetrieval, c.MinScore)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d not in [0, chunk_size)", ErrInvalidChunking, c.ChunkOverlap)
	}
	if c.MemoryTokens <= 0 {
		return fmt.Errorf("%w: memory_tokens %d", ErrInvalidMemory, c.MemoryTokens)
	}
	if c.ThrottleMillis < 0 {
		return fmt.Errorf("%w: throttle_millis %d", ErrInvalidThrottle, c.ThrottleMillis)
	}
	return nil
}
