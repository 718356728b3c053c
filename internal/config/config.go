// Package config loads service settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// FileEnv names the environment variable that points at a YAML config file.
const FileEnv = "DOCCHUNK_CONFIG"

type Config struct {
	Port string `yaml:"port"`

	// Auth
	APIKey string `yaml:"api_key"`

	// Pathstore connection; an empty URL disables the remote sink.
	PathstoreURL    string `yaml:"pathstore_url"`
	PathstoreAPIKey string `yaml:"pathstore_api_key"`

	// Worker pool
	WorkerCount        int `yaml:"worker_count"`
	MaxQueueSize       int `yaml:"max_queue_size"`
	MaxConcurrentStore int `yaml:"max_concurrent_store"`

	// Upload limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// Engine defaults
	ChunkSize          int  `yaml:"chunk_size"`
	HeadingSplitDepth  int  `yaml:"heading_split_depth"`
	ExtractAssets      bool `yaml:"extract_assets"`
	SequentialFallback bool `yaml:"sequential_fallback"`

	// Storage
	VectorDimension int    `yaml:"vector_dimension"`
	DBPath          string `yaml:"db_path"`
	AssetDir        string `yaml:"asset_dir"`

	// Job state
	JobTTL time.Duration `yaml:"job_ttl"`

	// PDF
	PDFFallbackPdftotext bool `yaml:"pdf_fallback_pdftotext"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:                 "8090",
		WorkerCount:          4,
		MaxQueueSize:         100,
		MaxConcurrentStore:   10,
		MaxUploadBytes:       52428800, // 50MB
		ChunkSize:            1000,
		HeadingSplitDepth:    2,
		ExtractAssets:        true,
		SequentialFallback:   true,
		VectorDimension:      1024,
		DBPath:               "data/docchunk.db",
		AssetDir:             "data/assets",
		JobTTL:               1 * time.Hour,
		PDFFallbackPdftotext: true,
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// DOCCHUNK_CONFIG if set, then environment variables.
func Load() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.APIKey = envOr("DOCCHUNK_API_KEY", cfg.APIKey)
	cfg.PathstoreURL = envOr("PATHSTORE_URL", cfg.PathstoreURL)
	cfg.PathstoreAPIKey = envOr("PATHSTORE_API_KEY", cfg.PathstoreAPIKey)

	cfg.WorkerCount = envInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.MaxQueueSize = envInt("MAX_QUEUE_SIZE", cfg.MaxQueueSize)
	cfg.MaxConcurrentStore = envInt("MAX_CONCURRENT_STORE", cfg.MaxConcurrentStore)
	cfg.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)

	cfg.ChunkSize = envInt("CHUNK_SIZE", cfg.ChunkSize)
	cfg.HeadingSplitDepth = envInt("HEADING_SPLIT_DEPTH", cfg.HeadingSplitDepth)
	cfg.ExtractAssets = envBool("EXTRACT_ASSETS", cfg.ExtractAssets)
	cfg.SequentialFallback = envBool("SEQUENTIAL_FALLBACK", cfg.SequentialFallback)

	cfg.VectorDimension = envInt("VECTOR_DIMENSION", cfg.VectorDimension)
	cfg.DBPath = envOr("DB_PATH", cfg.DBPath)
	cfg.AssetDir = envOr("ASSET_DIR", cfg.AssetDir)

	cfg.JobTTL = envDuration("JOB_TTL", cfg.JobTTL)
	cfg.PDFFallbackPdftotext = envBool("PDF_FALLBACK_PDFTOTEXT", cfg.PDFFallbackPdftotext)

	cfg.clamp()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) clamp() {
	def := Defaults()
	if c.WorkerCount <= 0 {
		c.WorkerCount = def.WorkerCount
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = def.MaxQueueSize
	}
	if c.MaxConcurrentStore <= 0 {
		c.MaxConcurrentStore = def.MaxConcurrentStore
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = def.MaxUploadBytes
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = def.ChunkSize
	}
	if c.HeadingSplitDepth < 0 {
		c.HeadingSplitDepth = 0
	}
	if c.VectorDimension <= 0 {
		c.VectorDimension = def.VectorDimension
	}
	if c.JobTTL <= 0 {
		c.JobTTL = def.JobTTL
	}
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("DOCCHUNK_API_KEY is required")
	}
	if c.PathstoreURL != "" && c.PathstoreAPIKey == "" {
		return fmt.Errorf("PATHSTORE_API_KEY is required when PATHSTORE_URL is set")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
