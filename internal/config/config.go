// Package config provides configuration loading and structs for the scenedex
// server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Annotate  AnnotateConfig  `yaml:"annotate"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Curation  CurationConfig  `yaml:"curation"`
	Stats     StatsConfig     `yaml:"stats"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database, the vector index, and the frame
// image tree.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	VectorIndexPath string `yaml:"vector_index_path"`
	FramesDir       string `yaml:"frames_dir"`
	ThumbsDir       string `yaml:"thumbs_dir"`
	QueryLogPath    string `yaml:"query_log_path"`
}

// EmbeddingConfig holds CLIP ONNX embedder settings.
type EmbeddingConfig struct {
	TextModelPath  string `yaml:"text_model_path"`
	ImageModelPath string `yaml:"image_model_path"`
	Dimensions     int    `yaml:"dimensions"`
	CacheSize      int    `yaml:"cache_size"`
	// Mock swaps in the deterministic embedder; for development without the
	// ONNX runtime.
	Mock bool `yaml:"mock"`
}

// AnnotateConfig holds the caption/character sidecar settings. An empty URL
// disables annotation.
type AnnotateConfig struct {
	SidecarURL     string `yaml:"sidecar_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// IngestConfig holds frame discovery settings.
type IngestConfig struct {
	// FrameIntervalSeconds is the extractor's sampling interval; frame number
	// times interval gives the timestamp.
	FrameIntervalSeconds float64 `yaml:"frame_interval_seconds"`
	BoundaryCachePath    string  `yaml:"boundary_cache_path"`
}

// CurationConfig holds dedup thresholds.
type CurationConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MaxGapSeconds       float64 `yaml:"max_gap_seconds"`
}

// StatsConfig holds the stats cache TTL.
type StatsConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

// RateLimitConfig holds per-client per-minute request budgets.
type RateLimitConfig struct {
	SearchPerMinute  int `yaml:"search_per_minute"`
	DefaultPerMinute int `yaml:"default_per_minute"`
}

// WatchConfig holds frames-directory watch settings.
type WatchConfig struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMS int  `yaml:"debounce_ms"`
}

// Load reads and parses the config file at path, expands paths, and applies
// defaults. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	cfg.Storage.FramesDir = expandPath(cfg.Storage.FramesDir, configDir)
	cfg.Storage.ThumbsDir = expandPath(cfg.Storage.ThumbsDir, configDir)
	cfg.Storage.QueryLogPath = expandPath(cfg.Storage.QueryLogPath, configDir)
	cfg.Ingest.BoundaryCachePath = expandPath(cfg.Ingest.BoundaryCachePath, configDir)
	if cfg.Embedding.TextModelPath != "" {
		cfg.Embedding.TextModelPath = expandPath(cfg.Embedding.TextModelPath, configDir)
	}
	if cfg.Embedding.ImageModelPath != "" {
		cfg.Embedding.ImageModelPath = expandPath(cfg.Embedding.ImageModelPath, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are
// relative to configDir; other relative paths are relative to the home
// directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
