// Package identity derives stable item identifiers from chunk content or position.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/hyperjump/vecsync/internal/models"
)

// Scheme selects how item ids are derived.
type Scheme string

const (
	// SchemeContent hashes the chunk text; identical text anywhere gets the same id.
	SchemeContent Scheme = "content"
	// SchemeContentSalted hashes source and chunk text; identical boilerplate in different sources stays distinct.
	SchemeContentSalted Scheme = "content_salted"
	// SchemePositional is "<source>_chunk_<index>"; only stable while chunk boundaries are unchanged.
	SchemePositional Scheme = "positional"
)

// Hash names a 256-bit content hash.
type Hash string

const (
	HashSHA256  Hash = "sha256"
	HashBLAKE2b Hash = "blake2b"
)

// Assigner computes item ids. The zero value uses content ids with SHA-256.
type Assigner struct {
	scheme Scheme
	hash   Hash
}

// NewAssigner validates scheme and hash. Empty values select the defaults.
func NewAssigner(scheme Scheme, hash Hash) (*Assigner, error) {
	if scheme == "" {
		scheme = SchemeContent
	}
	if hash == "" {
		hash = HashSHA256
	}
	switch scheme {
	case SchemeContent, SchemeContentSalted, SchemePositional:
	default:
		return nil, models.NewConfigurationError("identity.scheme", "unknown scheme %q (supported: content, content_salted, positional)", scheme)
	}
	switch hash {
	case HashSHA256, HashBLAKE2b:
	default:
		return nil, models.NewConfigurationError("identity.hash", "unknown hash %q (supported: sha256, blake2b)", hash)
	}
	return &Assigner{scheme: scheme, hash: hash}, nil
}

// Scheme returns the configured scheme.
func (a *Assigner) Scheme() Scheme {
	if a == nil || a.scheme == "" {
		return SchemeContent
	}
	return a.scheme
}

// Assign returns the id for the chunk at index of source.
func (a *Assigner) Assign(source string, index int, text string) string {
	hash := HashSHA256
	if a != nil && a.hash != "" {
		hash = a.hash
	}
	switch a.Scheme() {
	case SchemePositional:
		return PositionalID(source, index)
	case SchemeContentSalted:
		return contentID(hash, source+"\x00"+text)
	default:
		return contentID(hash, text)
	}
}

// PositionalID returns sourceID + "_chunk_" + index.
func PositionalID(sourceID string, index int) string {
	return sourceID + "_chunk_" + strconv.Itoa(index)
}

func contentID(h Hash, text string) string {
	switch h {
	case HashBLAKE2b:
		sum := blake2b.Sum256([]byte(text))
		return hex.EncodeToString(sum[:])
	default:
		sum := sha256.Sum256([]byte(text))
		return hex.EncodeToString(sum[:])
	}
}

// SourceID returns the canonical identifier of a source path: absolute and cleaned.
func SourceID(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	return filepath.Clean(abs), nil
}

// Extension returns the lower-case extension of path including the dot ("" when there is none).
func Extension(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
