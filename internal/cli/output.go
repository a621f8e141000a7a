// Package cli renders command results for the vecsync command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/vecsync/internal/models"
	"github.com/hyperjump/vecsync/internal/vectorstore"
	"github.com/hyperjump/vecsync/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one line per result.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is indented JSON for other programs.
	OutputJSON OutputFormat = "json"
)

// ParseFormat validates a --output value. Empty selects text.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return OutputText, nil
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", models.NewConfigurationError("output", "unknown format %q; use text, compact, or json", s)
	}
}

const snippetLen = 160

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes a similarity search response.
func WriteSearchResults(w io.Writer, resp *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, resp)
	case OutputCompact:
		for _, r := range resp.Results {
			fmt.Fprintf(w, "%d\t%.4f\t%s\t%s\n", r.Rank, r.Score, r.ID, oneLine(r.Text, snippetLen))
		}
		return nil
	}
	fmt.Fprintf(w, "\nFound %d results in %dms for %q\n\n", resp.Total, resp.QueryTime, resp.Query)
	for _, r := range resp.Results {
		fmt.Fprintln(w, strings.Repeat("─", 57))
		fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", r.Rank, r.Score)
		fmt.Fprintf(w, "ID: %s\n", r.ID)
		if r.Source != "" {
			fmt.Fprintf(w, "Source: %s\n", r.Source)
		}
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(r.Text, 200))
	}
	return nil
}

// WriteTrainResult writes the accounting of a training run.
func WriteTrainResult(w io.Writer, res *models.TrainResult, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, res)
	case OutputCompact:
		c := res.Counts
		fmt.Fprintf(w, "%s\tprocessed=%d\tupdated=%d\tskipped=%d\tfailed=%d\tsource_failures=%d\n",
			res.Strategy, c.Processed, c.Updated, c.Skipped, c.Failed, len(res.SourceFailures))
		return nil
	}
	fmt.Fprintf(w, "run:        %s\n", res.RunID)
	fmt.Fprintf(w, "strategy:   %s\n", res.Strategy)
	fmt.Fprintf(w, "items:      %d\n", len(res.Items))
	fmt.Fprintf(w, "processed:  %d\n", res.Counts.Processed)
	fmt.Fprintf(w, "updated:    %d\n", res.Counts.Updated)
	fmt.Fprintf(w, "skipped:    %d\n", res.Counts.Skipped)
	fmt.Fprintf(w, "failed:     %d\n", res.Counts.Failed)
	fmt.Fprintf(w, "duration:   %s\n", res.Duration)
	for _, f := range res.SourceFailures {
		fmt.Fprintf(w, "source failed: %s: %s\n", f.Source, f.Error)
	}
	for _, f := range res.ItemFailures {
		fmt.Fprintf(w, "item failed:   %s (%s): %s\n", f.ID, f.Source, f.Error)
	}
	return nil
}

// WriteItems writes items from a process-only run, one chunk each.
func WriteItems(w io.Writer, items []*models.Item, format OutputFormat) error {
	if format == OutputJSON {
		if items == nil {
			items = []*models.Item{}
		}
		return writeJSON(w, items)
	}
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", it.ID, it.Source, it.ChunkIndex, oneLine(it.Text, snippetLen))
	}
	return nil
}

// WriteRecords writes stored records with their metadata.
func WriteRecords(w io.Writer, recs []vectorstore.Record, format OutputFormat) error {
	switch format {
	case OutputJSON:
		if recs == nil {
			recs = []vectorstore.Record{}
		}
		return writeJSON(w, recs)
	case OutputCompact:
		for _, r := range recs {
			text, _ := r.Metadata[models.MetaText].(string)
			fmt.Fprintf(w, "%s\t%s\n", r.ID, oneLine(text, snippetLen))
		}
		return nil
	}
	fmt.Fprintf(w, "%d item(s)\n", len(recs))
	for _, r := range recs {
		fmt.Fprintln(w, strings.Repeat("─", 57))
		fmt.Fprintf(w, "ID: %s\n", r.ID)
		keys := make([]string, 0, len(r.Metadata))
		for k := range r.Metadata {
			if k != models.MetaText {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s: %v\n", k, r.Metadata[k])
		}
		if text, ok := r.Metadata[models.MetaText].(string); ok {
			fmt.Fprintf(w, "\n%s\n", utils.Truncate(text, 200))
		}
	}
	return nil
}

// WriteStatus writes collection status.
func WriteStatus(w io.Writer, st *models.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "items:              %d   # records in the collection\n", st.Items)
	fmt.Fprintf(w, "collection:         %s\n", st.Collection)
	fmt.Fprintf(w, "backend:            %s\n", st.Backend)
	if st.StoragePath != "" {
		fmt.Fprintf(w, "storage_path:       %s\n", st.StoragePath)
	}
	if st.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d\n", *st.DiskUsageBytes)
	}
	fmt.Fprintf(w, "strategy:           %s\n", st.Strategy)
	fmt.Fprintf(w, "embedding_provider: %s\n", st.Provider)
	fmt.Fprintf(w, "embedding_dims:     %d\n", st.Dimensions)
	return nil
}

// oneLine collapses whitespace and truncates for single-line output.
func oneLine(s string, maxLen int) string {
	return utils.Truncate(strings.Join(strings.Fields(s), " "), maxLen)
}
