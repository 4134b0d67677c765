// Package codec normalizes graph-store fields that arrive either as
// native JSON arrays or as JSON-encoded text. The store's schema keeps
// some list-valued fields as strings, so every read has to tolerate
// both shapes and every write serializes back to a canonical array.
package codec

import (
	"bytes"
	"encoding/json"
)

// List is a slice that unmarshals from either a JSON array or a JSON
// string containing an encoded array. Unparseable input decodes to an
// empty list rather than failing; marshaling always emits a native
// array.
type List[T any] []T

// UnmarshalJSON implements json.Unmarshaler.
func (l *List[T]) UnmarshalJSON(data []byte) error {
	*l = nil

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	// Double-encoded: a JSON string whose contents are the real array.
	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil
		}
		data = bytes.TrimSpace([]byte(inner))
		if len(data) == 0 || bytes.Equal(data, []byte("null")) {
			return nil
		}
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		// Malformed field: recover with an empty collection. The
		// caller logs; the operation proceeds.
		return nil
	}
	*l = items
	return nil
}

// MarshalJSON implements json.Marshaler. A nil list serializes as [].
func (l List[T]) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]T(l))
}

// Normalize parses raw field data into a typed list, reporting whether
// the input was malformed (and therefore replaced with an empty list).
func Normalize[T any](raw json.RawMessage) (List[T], bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var l List[T]
	if err := l.UnmarshalJSON(raw); err != nil {
		return nil, true
	}
	if l == nil && !isEmptyish(raw) {
		return nil, true
	}
	return l, false
}

// isEmptyish reports whether raw is one of the shapes that legitimately
// decode to an empty list: null, [], "", "null", "[]".
func isEmptyish(raw json.RawMessage) bool {
	data := bytes.TrimSpace(raw)
	switch string(data) {
	case "null", "[]", `""`, `"null"`, `"[]"`:
		return true
	}
	return false
}
