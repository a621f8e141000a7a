package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewItem_reservedKeys(t *testing.T) {
	it := NewItem("id1", "héllo", "/a.txt", ".txt", 0, Metadata{
		MetaText:   "overwritten?",
		MetaSource: "nope",
		"author":   "ann",
	})
	if it.Metadata[MetaText] != "héllo" {
		t.Errorf("text = %v", it.Metadata[MetaText])
	}
	if it.Metadata[MetaSource] != "/a.txt" {
		t.Errorf("source = %v", it.Metadata[MetaSource])
	}
	if it.Metadata[MetaLength] != 5 {
		t.Errorf("length = %v, want 5 runes", it.Metadata[MetaLength])
	}
	if it.Metadata["author"] != "ann" {
		t.Errorf("author = %v", it.Metadata["author"])
	}
	if it.Vector != nil {
		t.Error("vector should be nil before embedding")
	}
}

func TestMetadata_Clone(t *testing.T) {
	m := Metadata{"a": 1}
	c := m.Clone()
	c["a"] = 2
	if m["a"] != 1 {
		t.Error("clone should not alias the original")
	}
	var nilMeta Metadata
	if nilMeta.Clone() != nil {
		t.Error("clone of nil should be nil")
	}
}

func TestErrorClasses(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"configuration", NewConfigurationError("chunking.max_size", "must be > 0"), ErrConfiguration},
		{"source", &SourceReadError{Source: "a.pdf", Err: cause}, ErrSourceRead},
		{"embedding", &EmbeddingError{ItemID: "x", Err: cause}, ErrEmbedding},
		{"store", &StoreError{Op: "drop", Uncertain: true, Err: cause}, ErrStore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !errors.Is(wrapped, tt.target) {
				t.Errorf("errors.Is(%v, %v) = false", wrapped, tt.target)
			}
		})
	}
	if !errors.Is(&StoreError{Op: "upsert", Err: cause}, cause) {
		t.Error("StoreError should unwrap to its cause")
	}
}
