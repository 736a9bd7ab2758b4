// ABOUTME: Column key sets for the grid: core columns, special blob columns, enabled columns.
// ABOUTME: Derives each row's visible columns from core keys plus expanded blob keys.

package columns

import (
	"errors"
	"fmt"
	"sync"

	"github.com/2389/rowview/internal/keyset"
	"github.com/2389/rowview/internal/rows"
	"github.com/dgraph-io/ristretto"
)

var (
	ErrNoCoreColumns   = errors.New("at least one core column is required")
	ErrDuplicateColumn = errors.New("duplicate column key")
	ErrKindCollision   = errors.New("kind name collides with another column")
	ErrUnknownColumn   = errors.New("unknown column")
	ErrUnknownKind     = errors.New("unknown kind")
)

// discoveryCacheSize bounds the number of (row, kind) key lists kept.
const discoveryCacheSize = 100_000

// ColumnSpec is a column key plus whether it is currently shown.
type ColumnSpec struct {
	Key     string `json:"key"`
	Enabled bool   `json:"isEnabled"`
}

// ExpansionView is the read side of the expansion tracker.
type ExpansionView interface {
	IsRowExpanded(kind, rowID string) bool
	IsKeyExpanded(kind, rowID, key string) bool
}

// Manager owns the core column set, the special column identifiers reserved
// for nested blobs, and the enabled state of each available column.
type Manager struct {
	mu        sync.RWMutex
	core      keyset.KeySet
	special   keyset.KeySet
	kinds     []rows.Kind
	available []ColumnSpec

	discovered *ristretto.Cache
}

// NewManager validates the configuration and enables every core column.
func NewManager(core []string, kinds []rows.Kind) (*Manager, error) {
	if len(core) == 0 {
		return nil, ErrNoCoreColumns
	}
	coreSet := keyset.FromSlice(core)
	if coreSet.Len() != len(core) {
		return nil, fmt.Errorf("%w in core columns %v", ErrDuplicateColumn, core)
	}

	var special []string
	seenKinds := make(map[string]struct{}, len(kinds))
	for _, k := range kinds {
		if _, dup := seenKinds[k.Name]; dup {
			return nil, fmt.Errorf("%w: kind %q", ErrDuplicateColumn, k.Name)
		}
		seenKinds[k.Name] = struct{}{}

		reserved := []string{k.Name, k.ShadowKey()}
		if k.Source == rows.FieldSource {
			reserved = append(reserved, k.Field)
		}
		for _, key := range reserved {
			if coreSet.Has(key) {
				return nil, fmt.Errorf("%w: kind %q reserves core column %q", ErrKindCollision, k.Name, key)
			}
		}
		special = append(special, reserved...)
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10 * discoveryCacheSize,
		MaxCost:     discoveryCacheSize,
		BufferItems: 64,

		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery cache: %w", err)
	}

	available := make([]ColumnSpec, 0, coreSet.Len())
	for _, key := range coreSet.Keys() {
		available = append(available, ColumnSpec{Key: key, Enabled: true})
	}

	return &Manager{
		core:       coreSet,
		special:    keyset.FromSlice(special),
		kinds:      append([]rows.Kind(nil), kinds...),
		available:  available,
		discovered: cache,
	}, nil
}

// Close releases the discovery cache.
func (m *Manager) Close() {
	m.discovered.Close()
}

func (m *Manager) Core() keyset.KeySet    { return m.core }
func (m *Manager) Special() keyset.KeySet { return m.special }

// Kinds returns the configured nested-structure kinds in order.
func (m *Manager) Kinds() []rows.Kind {
	return append([]rows.Kind(nil), m.kinds...)
}

// Kind looks up a configured kind by name.
func (m *Manager) Kind(name string) (rows.Kind, bool) {
	for _, k := range m.kinds {
		if k.Name == name {
			return k, true
		}
	}
	return rows.Kind{}, false
}

// Available returns a copy of the column specs in display order.
func (m *Manager) Available() []ColumnSpec {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ColumnSpec(nil), m.available...)
}

// SetEnabled shows or hides an available column. Returns whether anything changed.
func (m *Manager) SetEnabled(key string, enabled bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.available {
		if m.available[i].Key != key {
			continue
		}
		changed := m.available[i].Enabled != enabled
		m.available[i].Enabled = enabled
		return changed, nil
	}
	return false, fmt.Errorf("%w: %q", ErrUnknownColumn, key)
}

// Enabled returns the enabled column keys in display order.
func (m *Manager) Enabled() keyset.KeySet {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.available))
	for _, c := range m.available {
		if c.Enabled {
			keys = append(keys, c.Key)
		}
	}
	return keyset.FromSlice(keys)
}

// ProjectIn keeps only the row fields named in ks.
func (m *Manager) ProjectIn(r rows.Row, ks keyset.KeySet) keyset.Record {
	return keyset.ProjectIn(r.Record(), ks)
}

// ProjectOut drops the row fields named in ks.
func (m *Manager) ProjectOut(r rows.Row, ks keyset.KeySet) keyset.Record {
	return keyset.ProjectOut(r.Record(), ks)
}

// CoreView is the row restricted to its enabled core columns.
func (m *Manager) CoreView(r rows.Row) keyset.Record {
	return m.ProjectIn(r, m.Enabled())
}

// remainderExclusion is what a remainder kind leaves out of its blob.
func (m *Manager) remainderExclusion() keyset.KeySet {
	return m.core.Union(m.special)
}

// Blob returns the decoded blob of kind for the row.
func (m *Manager) Blob(r rows.Row, kind rows.Kind) keyset.Record {
	return kind.Blob(r, m.remainderExclusion())
}

// Raw returns the serialized shadow form of the row's blob.
func (m *Manager) Raw(r rows.Row, kind rows.Kind) string {
	return kind.Raw(r, m.remainderExclusion())
}

// Discover returns the keys of the row's blob, minus any that would shadow a
// core column. Results are cached per row and kind since fetched rows never change.
func (m *Manager) Discover(r rows.Row, kind rows.Kind) []string {
	cacheKey := r.ID + "\x00" + kind.Name
	if v, ok := m.discovered.Get(cacheKey); ok {
		return append([]string(nil), v.([]string)...)
	}

	raw := kind.Keys(r, m.remainderExclusion())
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		if !m.core.Has(k) {
			keys = append(keys, k)
		}
	}
	m.discovered.Set(cacheKey, keys, 1)
	return append([]string(nil), keys...)
}

// PseudoColumn names the column a single expanded blob key is shown in.
func PseudoColumn(kind, key string) string {
	return kind + "." + key
}
