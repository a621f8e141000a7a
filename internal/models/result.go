package models

import "time"

// SearchResult is a single similarity hit.
type SearchResult struct {
	ID       string   `json:"id"`
	Score    float64  `json:"score"`
	Text     string   `json:"text,omitempty"`
	Source   string   `json:"source,omitempty"`
	Metadata Metadata `json:"metadata,omitempty"`
	Rank     int      `json:"rank"`
}

// SearchResponse is the response for a similarity search.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
	Query     string          `json:"query"`
}

// Counts is the outcome accounting of one synchronization run.
// Processed counts items newly written, Updated counts re-written items that already existed,
// Skipped counts existing items left untouched, Failed counts items whose embed or upsert failed.
type Counts struct {
	Processed int64 `json:"processed"`
	Skipped   int64 `json:"skipped"`
	Updated   int64 `json:"updated"`
	Failed    int64 `json:"failed"`
}

// SourceFailure records a source that could not be read. The rest of the batch is unaffected.
type SourceFailure struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// ItemFailure records an item whose synchronization failed when the run continues on error.
type ItemFailure struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Error  string `json:"error"`
}

// TrainResult is returned by a training run.
type TrainResult struct {
	RunID          string          `json:"run_id"`
	Strategy       string          `json:"strategy"`
	Items          []*Item         `json:"items,omitempty"`
	Counts         Counts          `json:"counts"`
	SourceFailures []SourceFailure `json:"source_failures,omitempty"`
	ItemFailures   []ItemFailure   `json:"item_failures,omitempty"`
	Duration       time.Duration   `json:"duration_ns"`
}

// Status describes a collection and where it lives.
type Status struct {
	Items          int64  `json:"items"`
	Collection     string `json:"collection"`
	Backend        string `json:"backend"`
	Strategy       string `json:"strategy"`
	Provider       string `json:"embedding_provider"`
	Dimensions     int    `json:"embedding_dimensions"`
	StoragePath    string `json:"storage_path,omitempty"`
	DiskUsageBytes *int64 `json:"disk_usage_bytes,omitempty"`
}
