// Package patch implements JSON merge-patch fields that tell apart a key that
// was omitted, a key that was sent as null, and a key that carries a value.
package patch

import (
	"encoding/json"
	"strings"
)

// Field is one member of a merge-patch document.
//
//	omitted      -> Set == false
//	"k": null    -> Set == true, Null == true
//	"k": <value> -> Set == true, Null == false, Value holds the decoded value
type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Of returns a field carrying v.
func Of[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

// Null returns a field that clears the target.
func Null[T any]() Field[T] {
	return Field[T]{Set: true, Null: true}
}

func (f *Field[T]) UnmarshalJSON(b []byte) error {
	f.Set = true
	if string(b) == "null" {
		var zero T
		f.Null = true
		f.Value = zero
		return nil
	}
	f.Null = false
	return json.Unmarshal(b, &f.Value)
}

// Present reports whether the field carries a value (set and not null).
func (f Field[T]) Present() bool {
	return f.Set && !f.Null
}

// Apply merges the field into a nullable destination. Omitted leaves dst
// untouched, null clears it, a value replaces it.
func (f Field[T]) Apply(dst **T) {
	if !f.Set {
		return
	}
	if f.Null {
		*dst = nil
		return
	}
	v := f.Value
	*dst = &v
}

// ApplyValue merges the field into a non-nullable destination. It reports
// false when the patch tries to null a value that cannot be cleared.
func (f Field[T]) ApplyValue(dst *T) bool {
	if !f.Set {
		return true
	}
	if f.Null {
		return false
	}
	*dst = f.Value
	return true
}

// Text normalises a free-text field: surrounding whitespace is trimmed and a
// blank string is treated as an explicit clear.
func Text(f Field[string]) Field[string] {
	if !f.Present() {
		return f
	}
	v := strings.TrimSpace(f.Value)
	if v == "" {
		return Null[string]()
	}
	return Of(v)
}

// TextPtr applies the same normalisation to a create-time optional string.
func TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
