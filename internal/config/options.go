package config

import (
	"strings"

	"github.com/hyperjump/vecsync/internal/chunker"
	"github.com/hyperjump/vecsync/internal/models"
)

// Wildcard is the extensions key whose options apply to every extension without its own entry.
const Wildcard = "*"

// ResolveOptions returns the chunking options for ext. Each field comes from the first tier that sets it:
// the exact extension entry, then the "*" entry, then the chunking section, then the hard defaults.
func (c *Config) ResolveOptions(ext string) chunker.Options {
	opts := chunker.DefaultOptions()
	c.Chunking.applyTo(&opts)
	if wild, ok := c.Extensions[Wildcard]; ok {
		wild.applyTo(&opts)
	}
	if ext = NormalizeExtension(ext); ext != Wildcard {
		if exact, ok := c.Extensions[ext]; ok {
			exact.applyTo(&opts)
		}
	}
	return opts
}

func (cc ChunkingConfig) applyTo(o *chunker.Options) {
	if cc.MinSize != nil {
		o.MinSize = *cc.MinSize
	}
	if cc.MaxSize != nil {
		o.MaxSize = *cc.MaxSize
	}
	if cc.Overlap != nil {
		o.Overlap = *cc.Overlap
	}
	if cc.UseMetadata != nil {
		o.UseMetadata = *cc.UseMetadata
	}
	if cc.NormalizeWhitespace != nil {
		o.NormalizeWhitespace = *cc.NormalizeWhitespace
	}
	if len(cc.Metadata) > 0 {
		if o.Metadata == nil {
			o.Metadata = models.Metadata{}
		}
		o.Metadata.Merge(cc.Metadata)
	}
}

// NormalizeExtension lower-cases ext and adds the leading dot. "*" is returned unchanged.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == Wildcard || ext == "" {
		return ext
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func normalizeExtensionKeys(m map[string]ChunkingConfig) map[string]ChunkingConfig {
	if len(m) == 0 {
		return m
	}
	out := make(map[string]ChunkingConfig, len(m))
	for k, v := range m {
		out[NormalizeExtension(k)] = v
	}
	return out
}
