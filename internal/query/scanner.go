// Package query answers metadata questions about a collection by scanning every record.
package query

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/vecsync/internal/models"
	"github.com/hyperjump/vecsync/internal/vectorstore"
)

// Scanner evaluates filters in memory over GetAllMetadata. Every call is O(collection size).
type Scanner struct {
	store vectorstore.Store
}

// NewScanner returns a scanner over store.
func NewScanner(store vectorstore.Store) *Scanner {
	return &Scanner{store: store}
}

// ScanAll returns every record ordered by id.
func (s *Scanner) ScanAll(ctx context.Context) ([]vectorstore.Record, error) {
	recs, err := s.store.GetAllMetadata(ctx)
	if err != nil {
		return nil, &models.StoreError{Op: "scan", Err: err}
	}
	return recs, nil
}

// ScanByFilter returns records whose key equals value. Numbers compare by value, strings exactly,
// and a string list matches when any element equals value. Stored strings holding a number, bool,
// or RFC3339 time match a value of that type; JSON-backed stores and CSV records keep them as text.
func (s *Scanner) ScanByFilter(ctx context.Context, key string, value interface{}) ([]vectorstore.Record, error) {
	return s.scan(ctx, func(md models.Metadata) bool {
		v, ok := md[key]
		return ok && equal(v, value)
	})
}

// ScanByRange returns records whose key lies within [min, max]. A nil bound is open.
// Bounds may be numbers, strings (compared case-insensitively), or time.Time; stored RFC3339
// strings are parsed when the bounds are times, and stored numeric strings when they are numbers.
// Values of another kind never match.
func (s *Scanner) ScanByRange(ctx context.Context, key string, min, max interface{}) ([]vectorstore.Record, error) {
	if min == nil && max == nil {
		return s.scan(ctx, func(md models.Metadata) bool {
			_, ok := md[key]
			return ok
		})
	}
	kind, err := boundKind(min, max)
	if err != nil {
		return nil, err
	}
	return s.scan(ctx, func(md models.Metadata) bool {
		v, ok := md[key]
		return ok && inRange(kind, v, min, max)
	})
}

// ScanIDs returns the ids of records whose key equals value.
func (s *Scanner) ScanIDs(ctx context.Context, key string, value interface{}) ([]string, error) {
	recs, err := s.ScanByFilter(ctx, key, value)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids, nil
}

// GetOne returns the record for id or models.ErrNotFound.
func (s *Scanner) GetOne(ctx context.Context, id string) (*vectorstore.Record, error) {
	md, ok, err := s.store.GetMetadata(ctx, id)
	if err != nil {
		return nil, &models.StoreError{Op: "get", ItemID: id, Err: err}
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, id)
	}
	return &vectorstore.Record{ID: id, Metadata: md}, nil
}

func (s *Scanner) scan(ctx context.Context, match func(models.Metadata) bool) ([]vectorstore.Record, error) {
	recs, err := s.ScanAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []vectorstore.Record
	for _, r := range recs {
		if match(r.Metadata) {
			out = append(out, r)
		}
	}
	return out, nil
}

type valueKind int

const (
	kindNumber valueKind = iota + 1
	kindString
	kindTime
)

func boundKind(min, max interface{}) (valueKind, error) {
	var kind valueKind
	for _, b := range []interface{}{min, max} {
		if b == nil {
			continue
		}
		k := kindOf(b)
		if k == 0 {
			return 0, models.NewConfigurationError("range", "unsupported bound type %T", b)
		}
		if kind != 0 && k != kind {
			return 0, models.NewConfigurationError("range", "bounds have different types: %T and %T", min, max)
		}
		kind = k
	}
	return kind, nil
}

func kindOf(v interface{}) valueKind {
	if _, ok := toFloat(v); ok {
		return kindNumber
	}
	switch v.(type) {
	case string:
		return kindString
	case time.Time:
		return kindTime
	}
	return 0
}

func inRange(kind valueKind, v, min, max interface{}) bool {
	switch kind {
	case kindNumber:
		f, ok := toNumber(v)
		if !ok {
			return false
		}
		if lo, ok := toFloat(min); ok && f < lo {
			return false
		}
		if hi, ok := toFloat(max); ok && f > hi {
			return false
		}
		return true
	case kindString:
		str, ok := v.(string)
		if !ok {
			return false
		}
		str = strings.ToLower(str)
		if lo, ok := min.(string); ok && str < strings.ToLower(lo) {
			return false
		}
		if hi, ok := max.(string); ok && str > strings.ToLower(hi) {
			return false
		}
		return true
	case kindTime:
		t, ok := toTime(v)
		if !ok {
			return false
		}
		if lo, ok := min.(time.Time); ok && t.Before(lo) {
			return false
		}
		if hi, ok := max.(time.Time); ok && t.After(hi) {
			return false
		}
		return true
	}
	return false
}

func equal(v, want interface{}) bool {
	if a, ok := toFloat(v); ok {
		b, ok := toFloat(want)
		return ok && a == b
	}
	switch val := v.(type) {
	case string:
		switch w := want.(type) {
		case string:
			return val == w
		case bool:
			return strings.EqualFold(strings.TrimSpace(val), strconv.FormatBool(w))
		case time.Time:
			t, ok := toTime(val)
			return ok && t.Equal(w)
		}
		a, ok := toNumber(val)
		if !ok {
			return false
		}
		b, ok := toFloat(want)
		return ok && a == b
	case bool:
		w, ok := want.(bool)
		return ok && val == w
	case time.Time:
		w, ok := toTime(want)
		return ok && val.Equal(w)
	case []string:
		w, ok := want.(string)
		if !ok {
			return false
		}
		for _, s := range val {
			if s == w {
				return true
			}
		}
	case []interface{}:
		for _, e := range val {
			if equal(e, want) {
				return true
			}
		}
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// toNumber is toFloat that also accepts a string holding a decimal number.
func toNumber(v interface{}) (float64, bool) {
	if f, ok := toFloat(v); ok {
		return f, true
	}
	str, ok := v.(string)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	return time.Time{}, false
}
