// ABOUTME: Per-kind expansion state for rows and their discovered blob keys.
// ABOUTME: Absence from a set means collapsed; toggles are explicit add/remove.

package expansion

import (
	"sort"
	"sync"
)

type keyID struct {
	rowID string
	key   string
}

type kindState struct {
	rows map[string]struct{}
	keys map[keyID]struct{}
}

func newKindState() *kindState {
	return &kindState{
		rows: make(map[string]struct{}),
		keys: make(map[keyID]struct{}),
	}
}

// Tracker records which rows have a nested structure expanded and which
// discovered keys are shown as their own pseudo-columns. Kinds are created on
// first use, so any number of them can be tracked. Safe for concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	kinds   map[string]*kindState
	cascade bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithCascade makes Contract also drop the row's expanded keys for that kind.
func WithCascade() Option {
	return func(t *Tracker) {
		t.cascade = true
	}
}

// NewTracker returns an empty tracker. Without WithCascade, row-level and
// key-level state are independent.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{kinds: make(map[string]*kindState)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Cascades reports whether Contract clears child keys.
func (t *Tracker) Cascades() bool {
	return t.cascade
}

// state must be called with t.mu held for writing.
func (t *Tracker) state(kind string) *kindState {
	s, ok := t.kinds[kind]
	if !ok {
		s = newKindState()
		t.kinds[kind] = s
	}
	return s
}

// Expand marks the row's blob of the given kind as shown. Returns false if it already was.
func (t *Tracker) Expand(kind, rowID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.state(kind)
	if _, ok := s.rows[rowID]; ok {
		return false
	}
	s.rows[rowID] = struct{}{}
	return true
}

// Contract hides the row's blob. Returns false if nothing changed.
func (t *Tracker) Contract(kind, rowID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.kinds[kind]
	if !ok {
		return false
	}
	_, expanded := s.rows[rowID]
	delete(s.rows, rowID)

	changed := expanded
	if t.cascade {
		for id := range s.keys {
			if id.rowID == rowID {
				delete(s.keys, id)
				changed = true
			}
		}
	}
	return changed
}

// ExpandKey shows one discovered key of the row's blob as its own column.
func (t *Tracker) ExpandKey(kind, rowID, key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.state(kind)
	id := keyID{rowID: rowID, key: key}
	if _, ok := s.keys[id]; ok {
		return false
	}
	s.keys[id] = struct{}{}
	return true
}

// ContractKey hides one discovered key again.
func (t *Tracker) ContractKey(kind, rowID, key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.kinds[kind]
	if !ok {
		return false
	}
	id := keyID{rowID: rowID, key: key}
	if _, ok := s.keys[id]; !ok {
		return false
	}
	delete(s.keys, id)
	return true
}

// IsRowExpanded reports whether the row's blob of this kind is shown.
func (t *Tracker) IsRowExpanded(kind, rowID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.kinds[kind]
	if !ok {
		return false
	}
	_, expanded := s.rows[rowID]
	return expanded
}

// IsKeyExpanded reports whether key is shown as a pseudo-column for the row.
func (t *Tracker) IsKeyExpanded(kind, rowID, key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.kinds[kind]
	if !ok {
		return false
	}
	_, expanded := s.keys[keyID{rowID: rowID, key: key}]
	return expanded
}

// ExpandedKeys returns the row's expanded keys for a kind, sorted.
func (t *Tracker) ExpandedKeys(kind, rowID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.kinds[kind]
	if !ok {
		return nil
	}
	var keys []string
	for id := range s.keys {
		if id.rowID == rowID {
			keys = append(keys, id.key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Kinds lists every kind that has been touched, sorted.
func (t *Tracker) Kinds() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	kinds := make([]string, 0, len(t.kinds))
	for k := range t.kinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Clear drops all expansion state.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.kinds = make(map[string]*kindState)
}
