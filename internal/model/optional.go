package model

import (
	"bytes"
	"encoding/json"
)

// Optional is a tri-state request field. A field absent from the request is
// the zero Optional; a JSON null sets Set and Null; any other value sets Set
// and Value.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns an Optional carrying v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Clear returns an Optional that asks for the field to be cleared.
func Clear[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

// IsZero reports whether the field was absent. It drives `omitzero`.
func (o Optional[T]) IsZero() bool {
	return !o.Set
}

// Get returns the value and whether one was provided (set and not null).
func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Set && !o.Null
}

// UnmarshalJSON records presence; encoding/json only calls it for keys that
// appear in the document.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

// MarshalJSON writes null for a cleared field and the value otherwise. Use
// `omitzero` on the field so absent values are left out.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Null {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}
