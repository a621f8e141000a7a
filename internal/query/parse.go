package query

import (
	"strconv"
	"strings"
	"time"
)

// ParseValue interprets a textual filter value: integers and floats become numbers, RFC3339
// timestamps become time.Time, "true"/"false" become bools, anything else stays a string.
// An empty string returns nil, which ScanByRange treats as an open bound.
func ParseValue(s string) interface{} {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if b, err := strconv.ParseBool(s); err == nil && (s == "true" || s == "false") {
		return b
	}
	return s
}
