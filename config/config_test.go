package config

import (
	"errors"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		EmbeddingDimension: 768,
		MaxResults:         10,
		MinScore:           0.5,
		ChunkSize:          1024,
		ChunkOverlap:       64,
		MemoryTokens:       4000,
		ThrottleMillis:     200,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "zero dimension", mutate: func(c *Config) { c.EmbeddingDimension = 0 }, wantErr: ErrInvalidDimension},
		{name: "zero max results", mutate: func(c *Config) { c.MaxResults = 0 }, wantErr: ErrInvalidRetrieval},
		{name: "min score above one", mutate: func(c *Config) { c.MinScore = 1.5 }, wantErr: ErrInvalidRetrieval},
		{name: "negative min score", mutate: func(c *Config) { c.MinScore = -0.1 }, wantErr: ErrInvalidRetrieval},
		{name: "zero chunk size", mutate: func(c *Config) { c.ChunkSize = 0 }, wantErr: ErrInvalidChunking},
		{name: "overlap equals chunk size", mutate: func(c *Config) { c.ChunkOverlap = c.ChunkSize }, wantErr: ErrInvalidChunking},
		{name: "zero memory bound", mutate: func(c *Config) { c.MemoryTokens = 0 }, wantErr: ErrInvalidMemory},
		{name: "negative throttle", mutate: func(c *Config) { c.ThrottleMillis = -1 }, wantErr: ErrInvalidThrottle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestThrottleConversion(t *testing.T) {
	cfg := validConfig()
	if got := cfg.Throttle(); got != 200*time.Millisecond {
		t.Errorf("Throttle() = %v, want 200ms", got)
	}
	cfg.ThrottleMillis = 0
	if got := cfg.Throttle(); got != 0 {
		t.Errorf("Throttle() = %v, want 0", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EmbeddingDimension != 768 {
		t.Errorf("default dimension = %d, want 768", cfg.EmbeddingDimension)
	}
	if cfg.MaxResults != 10 || cfg.MinScore != 0.5 {
		t.Errorf("default retrieval = %d/%g, want 10/0.5", cfg.MaxResults, cfg.MinScore)
	}
	if cfg.ChunkSize != 1024 || cfg.ChunkOverlap != 64 {
		t.Errorf("default chunking = %d/%d, want 1024/64", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.MemoryTokens != 4000 {
		t.Errorf("default memory bound = %d, want 4000", cfg.MemoryTokens)
	}
	if cfg.Throttle() != 200*time.Millisecond {
		t.Errorf("default throttle = %v, want 200ms", cfg.Throttle())
	}
}
