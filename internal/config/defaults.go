package config

import (
	"github.com/hyperjump/vecsync/internal/embedding"
	"github.com/hyperjump/vecsync/internal/identity"
	"github.com/hyperjump/vecsync/internal/trainer"
	"github.com/hyperjump/vecsync/internal/vectorstore"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = string(vectorstore.BackendMemory)
	}
	if cfg.Storage.Collection == "" {
		cfg.Storage.Collection = "default"
	}
	if cfg.Storage.Path == "" && cfg.Storage.Backend != string(vectorstore.BackendPgVector) {
		cfg.Storage.Path = defaultStoragePath(cfg.Storage.Backend)
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = embedding.ProviderHash
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.Provider == embedding.ProviderOpenAI {
		if cfg.Embedding.Model == "" {
			cfg.Embedding.Model = "text-embedding-3-small"
		}
		if cfg.Embedding.APIKeyEnv == "" {
			cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
		}
	}
	if cfg.Identity.Scheme == "" {
		cfg.Identity.Scheme = string(identity.SchemeContent)
	}
	if cfg.Identity.Hash == "" {
		cfg.Identity.Hash = string(identity.HashSHA256)
	}
	if cfg.Records.TextField == "" {
		cfg.Records.TextField = "text"
	}
	if cfg.Training.Strategy == "" {
		cfg.Training.Strategy = string(trainer.IncrementalAdd)
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".odt", ".rtf", ".jsonl", ".ndjson", ".csv", ".xlsx"}
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 500
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}

func defaultStoragePath(backend string) string {
	const base = "/usr/local/var/vecsync/data/"
	switch vectorstore.Backend(backend) {
	case vectorstore.BackendSQLite:
		return base + "vectors.db"
	case vectorstore.BackendBolt:
		return base + "vectors.bolt"
	case vectorstore.BackendBadger:
		return base + "badger"
	default:
		return base + "collections"
	}
}
