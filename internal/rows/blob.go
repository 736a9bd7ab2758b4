// ABOUTME: Nested blob decoding and key discovery.
// ABOUTME: Malformed or non-object blobs degrade to "no keys" instead of failing.

package rows

import (
	"sort"

	"github.com/2389/rowview/internal/keyset"
	"github.com/tidwall/gjson"
)

// DecodeBlob decodes a blob given as a JSON object string or an already-decoded map.
// The second result is false when v is not an object.
func DecodeBlob(v any) (keyset.Record, bool) {
	switch b := v.(type) {
	case map[string]any:
		return copyRecord(b), true
	case keyset.Record:
		return copyRecord(b), true
	case string:
		return decodeJSONObject(b)
	case []byte:
		return decodeJSONObject(string(b))
	default:
		return nil, false
	}
}

// DiscoverKeys returns the blob's own field names. JSON strings keep document
// order; maps are sorted. Anything that is not an object yields no keys.
func DiscoverKeys(v any) []string {
	switch b := v.(type) {
	case string:
		return objectKeys(b)
	case []byte:
		return objectKeys(string(b))
	case map[string]any:
		return sortedKeys(b)
	case keyset.Record:
		return sortedKeys(b)
	default:
		return nil
	}
}

func decodeJSONObject(s string) (keyset.Record, bool) {
	if !gjson.Valid(s) {
		return nil, false
	}
	res := gjson.Parse(s)
	if !res.IsObject() {
		return nil, false
	}
	rec := keyset.Record{}
	res.ForEach(func(key, value gjson.Result) bool {
		rec[key.String()] = value.Value()
		return true
	})
	return rec, true
}

func objectKeys(s string) []string {
	if !gjson.Valid(s) {
		return nil
	}
	res := gjson.Parse(s)
	if !res.IsObject() {
		return nil
	}
	var keys []string
	res.ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	// duplicate keys in the document collapse to one
	return keyset.FromSlice(keys).Keys()
}

func sortedKeys[M ~map[string]any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyRecord[M ~map[string]any](m M) keyset.Record {
	rec := make(keyset.Record, len(m))
	for k, v := range m {
		rec[k] = v
	}
	return rec
}
