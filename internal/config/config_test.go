package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envKeys = []string{
	FileEnv, "PORT", "DOCCHUNK_API_KEY", "PATHSTORE_URL", "PATHSTORE_API_KEY",
	"WORKER_COUNT", "MAX_QUEUE_SIZE", "MAX_CONCURRENT_STORE", "MAX_UPLOAD_BYTES",
	"CHUNK_SIZE", "HEADING_SPLIT_DEPTH", "EXTRACT_ASSETS", "SEQUENTIAL_FALLBACK",
	"VECTOR_DIMENSION", "DB_PATH", "ASSET_DIR", "JOB_TTL", "PDF_FALLBACK_PDFTOTEXT",
}

// clearEnv blanks every key Load reads; blank values count as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8090" || cfg.ChunkSize != 1000 || cfg.HeadingSplitDepth != 2 {
		t.Errorf("cfg = %+v", cfg)
	}
	if !cfg.ExtractAssets || !cfg.SequentialFallback {
		t.Error("expected asset extraction and fallback on by default")
	}
	if cfg.VectorDimension != 1024 {
		t.Errorf("vector dimension = %d", cfg.VectorDimension)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("EXTRACT_ASSETS", "false")
	t.Setenv("JOB_TTL", "5m")
	t.Setenv("WORKER_COUNT", "-3")
	t.Setenv("HEADING_SPLIT_DEPTH", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChunkSize != 500 {
		t.Errorf("chunk size = %d", cfg.ChunkSize)
	}
	if cfg.ExtractAssets {
		t.Error("expected asset extraction disabled")
	}
	if cfg.JobTTL != 5*time.Minute {
		t.Errorf("job ttl = %v", cfg.JobTTL)
	}
	if cfg.WorkerCount != 4 {
		t.Errorf("worker count = %d, want clamped default", cfg.WorkerCount)
	}
	if cfg.HeadingSplitDepth != 2 {
		t.Errorf("heading depth = %d", cfg.HeadingSplitDepth)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docchunk.yaml")
	yaml := "port: \"9000\"\nchunk_size: 750\nheading_split_depth: 1\njob_ttl: 30m\nasset_dir: /srv/assets\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	clearEnv(t)
	t.Setenv(FileEnv, path)
	t.Setenv("CHUNK_SIZE", "600")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9000" || cfg.HeadingSplitDepth != 1 || cfg.AssetDir != "/srv/assets" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.JobTTL != 30*time.Minute {
		t.Errorf("job ttl = %v", cfg.JobTTL)
	}
	if cfg.ChunkSize != 600 {
		t.Errorf("env should override file: chunk size = %d", cfg.ChunkSize)
	}
	if cfg.MaxQueueSize != 100 {
		t.Errorf("unset file keys keep defaults: queue = %d", cfg.MaxQueueSize)
	}
}

func TestLoad_BadFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(FileEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err == nil {
		t.Error("expected missing api key error")
	}
	cfg.APIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
	cfg.PathstoreURL = "http://localhost:8080"
	if err := cfg.Validate(); err == nil {
		t.Error("expected missing pathstore key error")
	}
}
