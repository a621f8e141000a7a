package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/vecsync/internal/models"
	"github.com/hyperjump/vecsync/internal/vectorstore"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  backend: sqlite
  path: "./data/vectors.db"
  collection: docs
training:
  strategy: incremental_update
  concurrency: 4
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	wantDB := filepath.Join(filepath.Dir(path), "data", "vectors.db")
	if cfg.Storage.Path != wantDB {
		t.Errorf("storage.path = %s, want %s", cfg.Storage.Path, wantDB)
	}
	if cfg.Storage.Collection != "docs" {
		t.Errorf("collection = %s", cfg.Storage.Collection)
	}
	if cfg.Training.Concurrency != 4 {
		t.Errorf("concurrency = %d", cfg.Training.Concurrency)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
watch:
  directories: ["./dev/sample"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Watch.Directories) != 1 {
		t.Fatalf("watch directories: got %d", len(cfg.Watch.Directories))
	}
	wantWatch := filepath.Join(filepath.Dir(path), "dev", "sample")
	if cfg.Watch.Directories[0] != wantWatch {
		t.Errorf("watch directory = %s, want %s", cfg.Watch.Directories[0], wantWatch)
	}
	if cfg.Watch.Recursive == nil || !*cfg.Watch.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestLoad_missingAndInvalid(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeConfig(t, "server: [")); err == nil {
		t.Error("expected parse error")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8080 {
		t.Errorf("default server: %+v", cfg.Server)
	}
	if cfg.Storage.Backend != "memory" || cfg.Storage.Collection != "default" || cfg.Storage.Path == "" {
		t.Errorf("default storage: %+v", cfg.Storage)
	}
	if cfg.Embedding.Provider != "hash" || cfg.Embedding.Dimensions != 384 || cfg.Embedding.CacheSize != 10000 {
		t.Errorf("default embedding: %+v", cfg.Embedding)
	}
	if cfg.Identity.Scheme != "content" || cfg.Identity.Hash != "sha256" {
		t.Errorf("default identity: %+v", cfg.Identity)
	}
	if cfg.Training.Strategy != "incremental_add" {
		t.Errorf("default strategy: %s", cfg.Training.Strategy)
	}
	if cfg.Records.TextField != "text" {
		t.Errorf("default record text field: %q", cfg.Records.TextField)
	}
	if len(cfg.Watch.Extensions) == 0 || cfg.Watch.Extensions[0] != ".txt" {
		t.Errorf("watch extensions: got %v", cfg.Watch.Extensions)
	}
	if cfg.Watch.Recursive != nil {
		t.Error("recursive should stay unset without directories")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestApplyDefaults_openAI(t *testing.T) {
	cfg := &Config{Embedding: EmbeddingConfig{Provider: "openai"}}
	ApplyDefaults(cfg)
	if cfg.Embedding.Model == "" || cfg.Embedding.APIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("openai defaults: %+v", cfg.Embedding)
	}
}

func TestWatchConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		w := &WatchConfig{}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		w := &WatchConfig{Recursive: &f}
		if got := w.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestValidate(t *testing.T) {
	intp := func(v int) *int { return &v }
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad backend", func(c *Config) { c.Storage.Backend = "redis" }, "storage.backend"},
		{"pgvector without dsn", func(c *Config) { c.Storage.Backend = "pgvector" }, "storage.dsn"},
		{"bad provider", func(c *Config) { c.Embedding.Provider = "onnx" }, "embedding.provider"},
		{"bad dimensions", func(c *Config) { c.Embedding.Dimensions = -1 }, "embedding.dimensions"},
		{"bad scheme", func(c *Config) { c.Identity.Scheme = "random" }, "identity.scheme"},
		{"bad hash", func(c *Config) { c.Identity.Hash = "md5" }, "identity.hash"},
		{"bad strategy", func(c *Config) { c.Training.Strategy = "sometimes" }, "training.strategy"},
		{"bad concurrency", func(c *Config) { c.Training.Concurrency = -2 }, "training.concurrency"},
		{"overlap too big", func(c *Config) { c.Chunking.Overlap = intp(600) }, "chunking.overlap"},
		{"bad extension entry", func(c *Config) {
			c.Extensions = map[string]ChunkingConfig{".pdf": {MaxSize: intp(0)}}
		}, "extensions..pdf.max_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			ApplyDefaults(cfg)
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, models.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
			var ce *models.ConfigurationError
			if !errors.As(err, &ce) || ce.Field != tt.field {
				t.Errorf("field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}

func TestResolveOptions(t *testing.T) {
	intp := func(v int) *int { return &v }
	boolp := func(v bool) *bool { return &v }

	cfg := &Config{
		Chunking: ChunkingConfig{Overlap: intp(10)},
		Extensions: map[string]ChunkingConfig{
			"*":    {MaxSize: intp(200), UseMetadata: boolp(false)},
			".pdf": {MaxSize: intp(1000), MinSize: intp(20), Metadata: models.Metadata{"kind": "pdf"}},
		},
	}

	pdf := cfg.ResolveOptions("PDF")
	if pdf.MaxSize != 1000 || pdf.MinSize != 20 || pdf.Overlap != 10 || pdf.UseMetadata {
		t.Errorf("pdf options: %+v", pdf)
	}
	if pdf.Metadata["kind"] != "pdf" {
		t.Errorf("pdf metadata: %v", pdf.Metadata)
	}

	txt := cfg.ResolveOptions(".txt")
	if txt.MaxSize != 200 || txt.MinSize != 0 || txt.Overlap != 10 || txt.UseMetadata {
		t.Errorf("wildcard options: %+v", txt)
	}
	if txt.Metadata != nil {
		t.Errorf("wildcard metadata should be empty: %v", txt.Metadata)
	}

	bare := (&Config{}).ResolveOptions(".md")
	if bare.MaxSize != 512 || bare.Overlap != 50 || !bare.UseMetadata {
		t.Errorf("hard defaults: %+v", bare)
	}
}

func TestNormalizeExtension(t *testing.T) {
	for in, want := range map[string]string{"PDF": ".pdf", ".Txt": ".txt", "*": "*", "": "", " csv ": ".csv"} {
		if got := NormalizeExtension(in); got != want {
			t.Errorf("NormalizeExtension(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSaveAndStoreConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{Backend: "bolt", Path: "/tmp/v.bolt", Collection: "kb"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	sc := loaded.StoreConfig(nil)
	if sc.Backend != vectorstore.BackendBolt || sc.Path != "/tmp/v.bolt" || sc.Collection != "kb" || sc.Dimensions != 384 {
		t.Errorf("store config: %+v", sc)
	}
	es := loaded.EmbeddingSettings()
	if es.Provider != "hash" || es.Dimensions != 384 {
		t.Errorf("embedding settings: %+v", es)
	}
}
