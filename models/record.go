package models

import (
	"bytes"
	"encoding/json"
)

// Record is an ordered mapping from normalized field key to value, produced
// fresh for every fetched page. Keys are unique; setting an existing key
// replaces its value in place without changing its position.
type Record struct {
	keys   []string
	values map[string]string
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{values: make(map[string]string)}
}

// Set stores value under key. Empty keys are ignored and reported as false.
func (r *Record) Set(key, value string) bool {
	if key == "" {
		return false
	}
	if r.values == nil {
		r.values = make(map[string]string)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
	return true
}

// Get returns the value stored under key.
func (r *Record) Get(key string) (string, bool) {
	if r == nil {
		return "", false
	}
	v, ok := r.values[key]
	return v, ok
}

// Has reports whether key is present.
func (r *Record) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Len returns the number of fields.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Keys returns the field keys in insertion order.
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Each calls fn for every field in insertion order.
func (r *Record) Each(fn func(key, value string)) {
	if r == nil {
		return
	}
	for _, k := range r.keys {
		fn(k, r.values[k])
	}
}

// Map returns the fields as a plain map.
func (r *Record) Map() map[string]string {
	out := make(map[string]string, r.Len())
	r.Each(func(k, v string) { out[k] = v })
	return out
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	c := NewRecord()
	r.Each(func(k, v string) { c.Set(k, v) })
	return c
}

// MarshalJSON encodes the record as a JSON object preserving key order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
