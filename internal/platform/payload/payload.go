// Package payload normalizes the loosely shaped JSON that legacy clients and catalog exports
// send into canonical records. It is the only place id aliases and envelope variants are
// resolved.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrUnsupportedShape is returned when the body is neither an array nor a known envelope.
var ErrUnsupportedShape = errors.New("payload: unsupported shape")

var envelopeKeys = []string{"data", "items", "products", "lines"}

var idAliases = []string{"_id", "id", "productId", "product_id"}

// Record is one decoded JSON object.
type Record map[string]any

// Items decodes raw as a bare array or as an object carrying the list under one of the
// envelope keys. The first non-empty envelope wins. A single object without an envelope is
// treated as a one-element list.
func Items(raw []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrUnsupportedShape)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedShape, err)
	}

	switch v := value.(type) {
	case []any:
		return toRecords(v), nil
	case map[string]any:
		for _, key := range envelopeKeys {
			inner, ok := v[key]
			if !ok {
				continue
			}
			switch list := inner.(type) {
			case []any:
				if len(list) == 0 {
					continue
				}
				return toRecords(list), nil
			case map[string]any:
				// {"data": {"items": [...]}}
				if nested, err := Items(mustMarshal(list)); err == nil && len(nested) > 0 {
					return nested, nil
				}
			}
		}
		if hasAnyKey(v, envelopeKeys) {
			return []Record{}, nil
		}
		return []Record{Record(v)}, nil
	default:
		return nil, ErrUnsupportedShape
	}
}

func toRecords(values []any) []Record {
	out := make([]Record, 0, len(values))
	for _, item := range values {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Record(m))
		}
	}
	return out
}

func hasAnyKey(m map[string]any, keys []string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

func mustMarshal(v any) []byte {
	data, _ := json.Marshal(v)
	return data
}

// ID resolves the record identifier from the supported aliases, in order.
func (r Record) ID() string {
	for _, key := range idAliases {
		if id := normalizeID(r[key]); id != "" {
			return id
		}
	}
	return ""
}

// ProductRef resolves the product a line refers to. Lines may embed the product object
// (`{"product": {"_id": …}}`) or carry only the id.
func (r Record) ProductRef() string {
	if nested, ok := r["product"].(map[string]any); ok {
		if id := Record(nested).ID(); id != "" {
			return id
		}
	}
	for _, key := range []string{"productId", "product_id", "product"} {
		if id := normalizeID(r[key]); id != "" {
			return id
		}
	}
	return r.ID()
}

// String returns the first non-empty string value under keys.
func (r Record) String(keys ...string) string {
	for _, key := range keys {
		switch v := r[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

// Value returns the first present value under keys.
func (r Record) Value(keys ...string) any {
	for _, key := range keys {
		if v, ok := r[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

// Strings returns a string list under key, accepting a single string too.
func (r Record) Strings(key string) []string {
	switch v := r[key].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	return nil
}

// Records returns the nested object list under key.
func (r Record) Records(key string) []Record {
	list, ok := r[key].([]any)
	if !ok {
		return nil
	}
	return toRecords(list)
}

// normalizeID accepts plain strings, numbers, and Mongo extended JSON ({"$oid": "…"}).
// Valid ObjectID hex strings are lower-cased so the same document always maps to one key.
func normalizeID(value any) string {
	switch v := value.(type) {
	case string:
		id := strings.TrimSpace(v)
		if primitive.IsValidObjectID(id) {
			oid, err := primitive.ObjectIDFromHex(strings.ToLower(id))
			if err == nil {
				return oid.Hex()
			}
		}
		return id
	case json.Number:
		return v.String()
	case map[string]any:
		if oid, ok := v["$oid"].(string); ok {
			return normalizeID(oid)
		}
	}
	return ""
}

// IsObjectID reports whether id is a 24-character hex ObjectID.
func IsObjectID(id string) bool {
	return primitive.IsValidObjectID(strings.TrimSpace(id))
}
