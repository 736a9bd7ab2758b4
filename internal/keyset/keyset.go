// ABOUTME: Ordered key sets and field-level record projections.
// ABOUTME: ProjectIn keeps the fields named by a key set, ProjectOut drops them.

package keyset

import "sort"

// Record is a flat, string-keyed view of a row or of a decoded nested blob.
type Record map[string]any

// KeySet is an immutable ordered set of keys. The zero value is empty and usable.
type KeySet struct {
	keys  []string
	index map[string]struct{}
}

// Of builds a KeySet from the given keys, keeping the first occurrence of duplicates.
func Of(keys ...string) KeySet {
	return FromSlice(keys)
}

// FromSlice builds a KeySet from a slice, de-duplicating it.
func FromSlice(keys []string) KeySet {
	ks := KeySet{
		keys:  make([]string, 0, len(keys)),
		index: make(map[string]struct{}, len(keys)),
	}
	for _, k := range keys {
		if _, seen := ks.index[k]; seen {
			continue
		}
		ks.index[k] = struct{}{}
		ks.keys = append(ks.keys, k)
	}
	return ks
}

// FromSet builds a KeySet from a set. Go sets carry no order, so keys are sorted.
func FromSet(set map[string]struct{}) KeySet {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return FromSlice(keys)
}

// FromRecord uses a record's own field names as the key set, sorted.
func FromRecord(rec Record) KeySet {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return FromSlice(keys)
}

// Has reports whether key is a member.
func (ks KeySet) Has(key string) bool {
	_, ok := ks.index[key]
	return ok
}

// Len returns the number of keys.
func (ks KeySet) Len() int {
	return len(ks.keys)
}

// Keys returns a copy of the keys in set order.
func (ks KeySet) Keys() []string {
	out := make([]string, len(ks.keys))
	copy(out, ks.keys)
	return out
}

// Union returns the keys of ks followed by the keys of other not already present.
func (ks KeySet) Union(other KeySet) KeySet {
	keys := make([]string, 0, len(ks.keys)+len(other.keys))
	keys = append(keys, ks.keys...)
	keys = append(keys, other.keys...)
	return FromSlice(keys)
}

// Minus returns the keys of ks that are not in other, in ks order.
func (ks KeySet) Minus(other KeySet) KeySet {
	keys := make([]string, 0, len(ks.keys))
	for _, k := range ks.keys {
		if !other.Has(k) {
			keys = append(keys, k)
		}
	}
	return FromSlice(keys)
}

// ProjectIn returns a new record holding only the fields of rec whose key is in ks.
func ProjectIn(rec Record, ks KeySet) Record {
	out := make(Record, ks.Len())
	for k, v := range rec {
		if ks.Has(k) {
			out[k] = v
		}
	}
	return out
}

// ProjectOut returns a new record holding every field of rec whose key is not in ks.
func ProjectOut(rec Record, ks KeySet) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		if !ks.Has(k) {
			out[k] = v
		}
	}
	return out
}
