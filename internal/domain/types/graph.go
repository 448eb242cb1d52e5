package types

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Value is anything the graph store can hold at a path: nil, string,
// float64, bool, or a Record.
type Value = any

// Record is a graph node: a flat set of fields merged field by field on put.
type Record map[string]any

// AsRecord returns v as a Record when it is one.
func AsRecord(v Value) (Record, bool) {
	switch r := v.(type) {
	case Record:
		return r, true
	case map[string]any:
		return Record(r), true
	}
	return nil, false
}

// AsString returns v as a trimmed string, or "" for anything non-textual.
func AsString(v Value) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	}
	return ""
}

// AsInt64 coerces v into an integer. Numeric strings are accepted because
// some writers store timestamps as text.
func AsInt64(v Value) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case float32:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return int64(f), true
		}
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f), true
		}
	}
	return 0, false
}

// String returns field key as a string.
func (r Record) String(key string) string { return AsString(r[key]) }

// Int64 returns field key as an integer.
func (r Record) Int64(key string) (int64, bool) { return AsInt64(r[key]) }

// Bool returns field key as a bool; anything else is false.
func (r Record) Bool(key string) bool {
	b, _ := r[key].(bool)
	return b
}

// Clone returns a shallow copy; fields are scalars so this is a full copy.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
