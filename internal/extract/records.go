package extract

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DefaultTextField is the record field holding the text when none is configured.
const DefaultTextField = "text"

const maxRecordLine = 16 << 20

// Record is one text record of a streamed source.
type Record struct {
	Index  int
	Text   string
	Fields map[string]interface{}
}

// RecordReader streams records from JSON Lines, CSV, and XLSX sources.
type RecordReader struct {
	textField string
}

// NewRecordReader returns a reader taking record text from textField ("" selects DefaultTextField).
// Records without that field use all of their string values joined by spaces.
func NewRecordReader(textField string) *RecordReader {
	if textField == "" {
		textField = DefaultTextField
	}
	return &RecordReader{textField: textField}
}

// RecordExtensions lists the record-oriented formats Stream reads.
var RecordExtensions = []string{".jsonl", ".ndjson", ".csv", ".xlsx"}

// Stream calls fn for each record of path in order. It stops at the first error from fn or
// when ctx is done. Blank lines in JSON Lines input are skipped.
func (r *RecordReader) Stream(ctx context.Context, path string, fn func(Record) error) error {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".jsonl", ".ndjson":
		return r.streamJSONL(ctx, path, fn)
	case ".csv":
		return r.streamCSV(ctx, path, fn)
	case ".xlsx":
		return r.streamXLSX(ctx, path, fn)
	default:
		return fmt.Errorf("unsupported record format %q", ext)
	}
}

func (r *RecordReader) streamJSONL(ctx context.Context, path string, fn func(Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open records: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxRecordLine)
	idx := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var fields map[string]interface{}
		if err := json.Unmarshal([]byte(line), &fields); err != nil {
			return fmt.Errorf("parse record %d: %w", idx, err)
		}
		rec := Record{Index: idx, Text: r.recordText(fields), Fields: fields}
		idx++
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scan records: %w", err)
	}
	return nil
}

func (r *RecordReader) streamCSV(ctx context.Context, path string, fn func(Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open records: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read CSV header: %w", err)
	}
	for idx := 0; ; idx++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read CSV row %d: %w", idx, err)
		}
		fields := rowFields(header, row)
		if err := fn(Record{Index: idx, Text: r.recordText(fields), Fields: fields}); err != nil {
			return err
		}
	}
}

func (r *RecordReader) streamXLSX(ctx context.Context, path string, fn func(Record) error) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	rows, err := excelRows(content)
	if err != nil {
		return err
	}
	headers := make(map[string][]string)
	idx := 0
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		header, ok := headers[row.sheet]
		if !ok {
			headers[row.sheet] = row.cells
			continue
		}
		fields := rowFields(header, row.cells)
		text := r.recordText(fields)
		fields["sheet"] = row.sheet
		if err := fn(Record{Index: idx, Text: text, Fields: fields}); err != nil {
			return err
		}
		idx++
	}
	return nil
}

func rowFields(header, row []string) map[string]interface{} {
	fields := make(map[string]interface{}, len(row))
	for i, v := range row {
		key := "col" + strconv.Itoa(i)
		if i < len(header) && strings.TrimSpace(header[i]) != "" {
			key = strings.TrimSpace(header[i])
		}
		fields[key] = v
	}
	return fields
}

func (r *RecordReader) recordText(fields map[string]interface{}) string {
	if v, ok := fields[r.textField].(string); ok {
		return v
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if s, ok := fields[k].(string); ok && strings.TrimSpace(s) != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
