// Package config provides configuration loading and structs for vecsync.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/vecsync/internal/embedding"
	"github.com/hyperjump/vecsync/internal/identity"
	"github.com/hyperjump/vecsync/internal/models"
	"github.com/hyperjump/vecsync/internal/trainer"
	"github.com/hyperjump/vecsync/internal/vectorstore"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool                      `yaml:"debug"`
	Server     ServerConfig              `yaml:"server"`
	Storage    StorageConfig             `yaml:"storage"`
	Embedding  EmbeddingConfig           `yaml:"embedding"`
	Chunking   ChunkingConfig            `yaml:"chunking"`
	Extensions map[string]ChunkingConfig `yaml:"extensions,omitempty"`
	Identity   IdentityConfig            `yaml:"identity"`
	Records    RecordsConfig             `yaml:"records"`
	Training   TrainingConfig            `yaml:"training"`
	Watch      WatchConfig               `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig selects the vector store backend and where it keeps its data.
type StorageConfig struct {
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	DSN        string `yaml:"dsn,omitempty"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Dimensions int    `yaml:"dimensions"`
	CacheSize  int    `yaml:"cache_size"`
	BaseURL    string `yaml:"base_url,omitempty"`
	Model      string `yaml:"model,omitempty"`
	APIKeyEnv  string `yaml:"api_key_env,omitempty"`
}

// ChunkingConfig is a partial set of chunking options. Unset fields fall through to the next tier.
type ChunkingConfig struct {
	MinSize             *int            `yaml:"min_size,omitempty"`
	MaxSize             *int            `yaml:"max_size,omitempty"`
	Overlap             *int            `yaml:"overlap,omitempty"`
	UseMetadata         *bool           `yaml:"use_metadata,omitempty"`
	NormalizeWhitespace *bool           `yaml:"normalize_whitespace,omitempty"`
	Metadata            models.Metadata `yaml:"metadata,omitempty"`
}

// IdentityConfig selects how item ids are derived.
type IdentityConfig struct {
	Scheme string `yaml:"scheme"`
	Hash   string `yaml:"hash"`
}

// RecordsConfig configures structured record sources (.jsonl, .ndjson, .csv, .xlsx).
type RecordsConfig struct {
	// TextField names the field embedded as item text; other fields become metadata.
	TextField string `yaml:"text_field"`
}

// TrainingConfig holds synchronization defaults.
type TrainingConfig struct {
	Strategy        string `yaml:"strategy"`
	Concurrency     int    `yaml:"concurrency"`
	ContinueOnError bool   `yaml:"continue_on_error"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
	DebounceMS  int      `yaml:"debounce_ms"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, applies defaults, and expands paths.
// Returns an error if the file cannot be read or parsed. Call Validate before use.
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
	cfg.Storage.Path = expandPath(cfg.Storage.Path, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}
	cfg.Extensions = normalizeExtensionKeys(cfg.Extensions)

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks every section and returns the first *models.ConfigurationError found.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return models.NewConfigurationError("server.port", "out of range: %d", c.Server.Port)
	}
	if !validBackend(c.Storage.Backend) {
		return models.NewConfigurationError("storage.backend", "unknown backend %q", c.Storage.Backend)
	}
	if vectorstore.Backend(c.Storage.Backend) == vectorstore.BackendPgVector && c.Storage.DSN == "" {
		return models.NewConfigurationError("storage.dsn", "required for pgvector backend")
	}
	switch c.Embedding.Provider {
	case embedding.ProviderHash, embedding.ProviderOpenAI:
	default:
		return models.NewConfigurationError("embedding.provider", "unknown provider %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions <= 0 {
		return models.NewConfigurationError("embedding.dimensions", "must be > 0, got %d", c.Embedding.Dimensions)
	}
	if _, err := identity.NewAssigner(identity.Scheme(c.Identity.Scheme), identity.Hash(c.Identity.Hash)); err != nil {
		return err
	}
	if _, err := trainer.ParseStrategy(c.Training.Strategy); err != nil {
		return err
	}
	if c.Training.Concurrency < 0 {
		return models.NewConfigurationError("training.concurrency", "must be >= 0, got %d", c.Training.Concurrency)
	}
	if err := c.ResolveOptions("*").Validate(); err != nil {
		return prefixField("chunking", err)
	}
	for ext := range c.Extensions {
		if err := c.ResolveOptions(ext).Validate(); err != nil {
			return prefixField("extensions."+ext, err)
		}
	}
	return nil
}

func validBackend(name string) bool {
	for _, b := range vectorstore.Backends {
		if string(b) == name {
			return true
		}
	}
	return false
}

func prefixField(prefix string, err error) error {
	if ce, ok := err.(*models.ConfigurationError); ok {
		return &models.ConfigurationError{Field: prefix + "." + ce.Field, Reason: ce.Reason}
	}
	return err
}

// StoreConfig returns the vector store settings for vectorstore.Open.
func (c *Config) StoreConfig(logger *zap.Logger) vectorstore.Config {
	return vectorstore.Config{
		Backend:    vectorstore.Backend(c.Storage.Backend),
		Path:       c.Storage.Path,
		Collection: c.Storage.Collection,
		DSN:        c.Storage.DSN,
		Dimensions: c.Embedding.Dimensions,
		Logger:     logger,
	}
}

// EmbeddingSettings returns the provider settings for embedding.New.
func (c *Config) EmbeddingSettings() embedding.Settings {
	return embedding.Settings{
		Provider:   c.Embedding.Provider,
		Dimensions: c.Embedding.Dimensions,
		CacheSize:  c.Embedding.CacheSize,
		BaseURL:    c.Embedding.BaseURL,
		Model:      c.Embedding.Model,
		APIKeyEnv:  c.Embedding.APIKeyEnv,
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// "~/" and other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	path = strings.TrimPrefix(path, "~/")
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
