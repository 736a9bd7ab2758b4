// ABOUTME: Nested-structure kinds and how each locates its blob inside a row.
// ABOUTME: Field kinds read a named field; remainder kinds collect leftover fields.

package rows

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/2389/rowview/internal/keyset"
)

// SourceType says where a kind's blob lives.
type SourceType int

const (
	// FieldSource blobs are stored in a single named field, as a JSON string or a map.
	FieldSource SourceType = iota
	// RemainderSource blobs are every field not claimed by a core or special key.
	RemainderSource
)

// ShadowSuffix is appended to a kind name to form its serialized shadow column.
const ShadowSuffix = "String"

// Kind names a class of nested, dynamically keyed blob attached to rows.
type Kind struct {
	Name   string
	Source SourceType
	Field  string
}

// FieldKind returns a kind whose blob is stored in field.
func FieldKind(name, field string) Kind {
	return Kind{Name: name, Source: FieldSource, Field: field}
}

// RemainderKind returns a kind whose blob is the row minus core and special keys.
func RemainderKind(name string) Kind {
	return Kind{Name: name, Source: RemainderSource}
}

// ParseKind parses "name", "name:field" or "name:*" (remainder).
func ParseKind(s string) (Kind, error) {
	s = strings.TrimSpace(s)
	name, field, hasField := strings.Cut(s, ":")
	name = strings.TrimSpace(name)
	field = strings.TrimSpace(field)
	if name == "" {
		return Kind{}, fmt.Errorf("kind %q: empty name", s)
	}
	switch {
	case !hasField:
		return FieldKind(name, name), nil
	case field == "*":
		return RemainderKind(name), nil
	case field == "":
		return Kind{}, fmt.Errorf("kind %q: empty field", s)
	default:
		return FieldKind(name, field), nil
	}
}

// ShadowKey is the column holding the blob's serialized form.
func (k Kind) ShadowKey() string {
	return k.Name + ShadowSuffix
}

// Blob returns the decoded blob for row. exclude lists the keys a remainder
// kind must leave out; field kinds ignore it.
func (k Kind) Blob(r Row, exclude keyset.KeySet) keyset.Record {
	if k.Source == RemainderSource {
		return keyset.ProjectOut(r.Record(), exclude)
	}
	v, ok := r.Field(k.Field)
	if !ok {
		return keyset.Record{}
	}
	rec, ok := DecodeBlob(v)
	if !ok {
		return keyset.Record{}
	}
	return rec
}

// Keys discovers the blob's keys for row, in document order where one exists.
func (k Kind) Keys(r Row, exclude keyset.KeySet) []string {
	if k.Source == RemainderSource {
		rec := keyset.ProjectOut(r.Record(), exclude)
		keys := make([]string, 0, len(rec))
		for key := range rec {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		return keys
	}
	v, ok := r.Field(k.Field)
	if !ok {
		return nil
	}
	return DiscoverKeys(v)
}

// Raw returns the blob's serialized shadow form.
func (k Kind) Raw(r Row, exclude keyset.KeySet) string {
	if k.Source == FieldSource {
		v, ok := r.Field(k.Field)
		if !ok {
			return ""
		}
		if s, ok := v.(string); ok {
			return s
		}
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
	b, err := json.Marshal(k.Blob(r, exclude))
	if err != nil {
		return ""
	}
	return string(b)
}
