package models

import (
	"fmt"
	"strings"
)

// SearchQuery is a similarity search request: the text is embedded and matched against stored vectors.
type SearchQuery struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// Validate rejects an empty query and clamps Limit to [1, 100] (default 10).
func (q *SearchQuery) Validate() error {
	if strings.TrimSpace(q.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return nil
}

// TrainRequest asks for the given sources to be ingested and synchronized.
// Strategy falls back to the configured default when empty. Items are omitted from the
// response unless IncludeItems is set.
type TrainRequest struct {
	Sources      []string `json:"sources"`
	Strategy     string   `json:"strategy,omitempty"`
	IncludeItems bool     `json:"include_items,omitempty"`
}

// Validate requires at least one non-empty source.
func (r *TrainRequest) Validate() error {
	n := 0
	for _, s := range r.Sources {
		if strings.TrimSpace(s) != "" {
			n++
		}
	}
	if n == 0 {
		return fmt.Errorf("at least one source is required")
	}
	return nil
}
