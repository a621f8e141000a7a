package embedding

import (
	"fmt"
	"os"
)

// Provider names accepted by New.
const (
	ProviderHash   = "hash"
	ProviderOpenAI = "openai"
)

// Settings selects and configures an embedding provider.
type Settings struct {
	Provider   string
	Dimensions int
	CacheSize  int
	BaseURL    string
	Model      string
	APIKeyEnv  string
}

// New creates the configured embedder, wrapped in a CachedEmbedder when CacheSize > 0.
func New(s Settings) (Embedder, error) {
	var (
		e   Embedder
		err error
	)
	switch s.Provider {
	case "", ProviderHash:
		e = NewHashEmbedder(s.Dimensions)
	case ProviderOpenAI:
		key := ""
		if s.APIKeyEnv != "" {
			key = os.Getenv(s.APIKeyEnv)
			if key == "" {
				return nil, fmt.Errorf("environment variable %s is not set", s.APIKeyEnv)
			}
		}
		e, err = NewOpenAIEmbedder(OpenAIConfig{
			BaseURL:    s.BaseURL,
			Model:      s.Model,
			APIKey:     key,
			Dimensions: s.Dimensions,
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", s.Provider)
	}
	if s.CacheSize > 0 {
		e = NewCachedEmbedder(e, s.CacheSize)
	}
	return e, nil
}
