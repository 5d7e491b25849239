package integration

import (
	"sort"
	"strings"
)

// TextKey holds the text of a scalar array element, e.g. <item>42</item>.
const TextKey = "#text"

// RawRecord is semi-structured data decoded from a remote response.
// Any field may be missing; a missing field means "unknown", never zero.
type RawRecord struct {
	Fields map[string]string
	Lists  map[string][]RawRecord
}

// NewRawRecord creates an empty RawRecord
func NewRawRecord() RawRecord {
	return RawRecord{
		Fields: make(map[string]string),
		Lists:  make(map[string][]RawRecord),
	}
}

// RawRecordOf builds a RawRecord from key/value pairs
func RawRecordOf(fields map[string]string) RawRecord {
	r := NewRawRecord()
	for k, v := range fields {
		r.Fields[k] = v
	}
	return r
}

// Get returns the trimmed value of key. Present-but-blank values report false.
func (r RawRecord) Get(key string) (string, bool) {
	v, ok := r.Fields[key]
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	return v, true
}

// Has reports whether key carries a non-blank value
func (r RawRecord) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// List returns the nested records stored under key
func (r RawRecord) List(key string) []RawRecord {
	return r.Lists[key]
}

// Set stores a scalar field
func (r *RawRecord) Set(key, value string) {
	if r.Fields == nil {
		r.Fields = make(map[string]string)
	}
	r.Fields[key] = value
}

// Append adds a nested record under key
func (r *RawRecord) Append(key string, child RawRecord) {
	if r.Lists == nil {
		r.Lists = make(map[string][]RawRecord)
	}
	r.Lists[key] = append(r.Lists[key], child)
}

// Overlay copies every non-blank field of other into r.
func (r *RawRecord) Overlay(other RawRecord) {
	for k := range other.Fields {
		if v, ok := other.Get(k); ok {
			r.Set(k, v)
		}
	}
}

// IsEmpty reports whether the record carries no data at all
func (r RawRecord) IsEmpty() bool {
	return len(r.Fields) == 0 && len(r.Lists) == 0
}

// Keys returns the sorted field names, mainly for diagnostics
func (r RawRecord) Keys() []string {
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
