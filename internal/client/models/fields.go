package models

import (
	"encoding/json"
	"fmt"
)

// Fields holds the decoded domain fields of a record. Values are plain Go
// types as produced by encoding/json: string, float64, bool, []any,
// map[string]any and nil.
//
// Fields is the typed serialization boundary of the local store: the whole
// map is JSON-encoded into a single TEXT column on write and decoded again on
// read, so array- and object-valued fields round-trip losslessly and callers
// never see serialized text.
type Fields map[string]any

// Encode serializes f for storage or transport.
func (f Fields) Encode() (string, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("failed to encode fields: %w", err)
	}
	return string(b), nil
}

// DecodeFields is the inverse of Encode.
func DecodeFields(s string) (Fields, error) {
	if s == "" {
		return Fields{}, nil
	}
	var f Fields
	if err := json.Unmarshal([]byte(s), &f); err != nil {
		return nil, fmt.Errorf("failed to decode fields: %w", err)
	}
	return f, nil
}

// StringValue returns the string stored under key, if any.
func (f Fields) StringValue(key string) (string, bool) {
	v, ok := f[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Clone returns a deep copy of f, decoupled from the original through the
// same JSON boundary used for storage.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	enc, err := f.Encode()
	if err != nil {
		return Fields{}
	}
	c, err := DecodeFields(enc)
	if err != nil {
		return Fields{}
	}
	return c
}
