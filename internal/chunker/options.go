package chunker

import (
	"unicode/utf8"

	"github.com/hyperjump/vecsync/internal/models"
)

// Options controls chunking for one group of sources.
type Options struct {
	MinSize             int             `yaml:"min_size" json:"min_size"`
	MaxSize             int             `yaml:"max_size" json:"max_size"`
	Overlap             int             `yaml:"overlap" json:"overlap"`
	UseMetadata         bool            `yaml:"use_metadata" json:"use_metadata"`
	NormalizeWhitespace bool            `yaml:"normalize_whitespace" json:"normalize_whitespace"`
	Metadata            models.Metadata `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// Hard defaults used when neither an extension entry nor the "*" wildcard sets a value.
const (
	DefaultMaxSize = 512
	DefaultOverlap = 50
)

// DefaultOptions returns the hard-coded fallback options.
func DefaultOptions() Options {
	return Options{
		MaxSize:     DefaultMaxSize,
		Overlap:     DefaultOverlap,
		UseMetadata: true,
	}
}

// Validate checks the chunk bounds. It returns a *models.ConfigurationError so callers fail
// before any source is touched.
func (o Options) Validate() error {
	switch {
	case o.MaxSize <= 0:
		return models.NewConfigurationError("max_size", "must be > 0, got %d", o.MaxSize)
	case o.Overlap < 0:
		return models.NewConfigurationError("overlap", "must be >= 0, got %d", o.Overlap)
	case o.Overlap >= o.MaxSize:
		return models.NewConfigurationError("overlap", "must be < max_size (%d), got %d", o.MaxSize, o.Overlap)
	case o.MinSize < 0:
		return models.NewConfigurationError("min_size", "must be >= 0, got %d", o.MinSize)
	}
	return nil
}

// Split prepares text per the options and chunks it. Chunks shorter than MinSize are dropped unless
// the text produced a single chunk.
func (o Options) Split(text string) []Span {
	if o.NormalizeWhitespace {
		text = Normalize(text)
	}
	spans := Spans(text, o.MaxSize, o.Overlap)
	if o.MinSize <= 0 || len(spans) <= 1 {
		return spans
	}
	kept := spans[:0]
	for _, s := range spans {
		if utf8.RuneCountInString(s.Text) >= o.MinSize {
			kept = append(kept, s)
		}
	}
	return kept
}
