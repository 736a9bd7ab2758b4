// ABOUTME: Per-row visible column derivation and cell rendering.
// ABOUTME: Core cells come first, then each kind's summary, raw and pseudo-columns.

package columns

import "github.com/2389/rowview/internal/rows"

// Cell is one rendered value.
type Cell struct {
	Column string `json:"column"`
	Kind   string `json:"kind,omitempty"`
	Key    string `json:"key,omitempty"`
	Value  any    `json:"value"`
}

// KeyState is a discovered blob key and whether it has its own column.
type KeyState struct {
	Key      string `json:"key"`
	Expanded bool   `json:"expanded"`
}

// KindState summarizes one nested structure of a rendered row.
type KindState struct {
	Kind     string     `json:"kind"`
	Expanded bool       `json:"expanded"`
	Keys     []KeyState `json:"keys"`
}

// RenderedRow is a row projected onto its currently visible columns.
type RenderedRow struct {
	ID    string      `json:"id"`
	Cells []Cell      `json:"cells"`
	Kinds []KindState `json:"kinds"`
}

// Columns returns the cell column names in order.
func (rr RenderedRow) Columns() []string {
	cols := make([]string, len(rr.Cells))
	for i, c := range rr.Cells {
		cols[i] = c.Column
	}
	return cols
}

// VisibleColumns lists the columns shown for a row: enabled core columns, then
// for every kind its summary column, its raw column when the row is expanded,
// and one pseudo-column per individually expanded key.
func (m *Manager) VisibleColumns(r rows.Row, state ExpansionView) []string {
	return m.Render(r, state).Columns()
}

// Render projects the row onto its visible columns.
func (m *Manager) Render(r rows.Row, state ExpansionView) RenderedRow {
	out := RenderedRow{ID: r.ID}

	enabled := m.Enabled()
	core := m.CoreView(r)
	for _, key := range enabled.Keys() {
		out.Cells = append(out.Cells, Cell{Column: key, Value: core[key]})
	}

	for _, kind := range m.kinds {
		keys := m.Discover(r, kind)
		expanded := state.IsRowExpanded(kind.Name, r.ID)

		ks := KindState{Kind: kind.Name, Expanded: expanded, Keys: make([]KeyState, 0, len(keys))}
		out.Cells = append(out.Cells, Cell{Column: kind.Name, Kind: kind.Name, Value: len(keys)})
		if expanded {
			out.Cells = append(out.Cells, Cell{Column: kind.ShadowKey(), Kind: kind.Name, Value: m.Raw(r, kind)})
		}

		var blob map[string]any
		for _, key := range keys {
			keyExpanded := state.IsKeyExpanded(kind.Name, r.ID, key)
			ks.Keys = append(ks.Keys, KeyState{Key: key, Expanded: keyExpanded})
			if !keyExpanded {
				continue
			}
			if blob == nil {
				blob = m.Blob(r, kind)
			}
			out.Cells = append(out.Cells, Cell{
				Column: PseudoColumn(kind.Name, key),
				Kind:   kind.Name,
				Key:    key,
				Value:  blob[key],
			})
		}
		out.Kinds = append(out.Kinds, ks)
	}

	return out
}
