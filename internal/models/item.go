// Package models defines the core data structures shared by the ingestion and synchronization pipeline.
package models

import "unicode/utf8"

// Reserved metadata keys. Every stored item carries them; merged metadata never overwrites them.
const (
	MetaText   = "text"
	MetaLength = "length"
	MetaSource = "source"
)

// Metadata is the loosely-typed per-item metadata. Values are string, numeric, bool, time.Time, or []string.
type Metadata map[string]interface{}

// Item is one chunk of a source, the unit that is embedded and upserted into the vector store.
type Item struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Source     string    `json:"source"`
	Extension  string    `json:"extension"`
	ChunkIndex int       `json:"chunk_index"`
	Metadata   Metadata  `json:"metadata"`
	Vector     []float32 `json:"-"`
}

// NewItem builds an item with the reserved metadata keys set. extra is merged in when non-nil.
func NewItem(id, text, source, ext string, chunkIndex int, extra Metadata) *Item {
	md := Metadata{
		MetaText:   text,
		MetaLength: utf8.RuneCountInString(text),
		MetaSource: source,
	}
	md.Merge(extra)
	return &Item{
		ID:         id,
		Text:       text,
		Source:     source,
		Extension:  ext,
		ChunkIndex: chunkIndex,
		Metadata:   md,
	}
}

// Merge copies keys from other into m, skipping reserved keys.
func (m Metadata) Merge(other Metadata) {
	for k, v := range other {
		if IsReservedKey(k) {
			continue
		}
		m[k] = v
	}
}

// Clone returns a shallow copy of m.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// IsReservedKey reports whether key is one of the keys owned by the pipeline.
func IsReservedKey(key string) bool {
	switch key {
	case MetaText, MetaLength, MetaSource:
		return true
	}
	return false
}
