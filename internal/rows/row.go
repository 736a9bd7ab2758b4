// ABOUTME: Row model for the viewer: fixed core fields plus free-form fields.
// ABOUTME: Free-form fields hold nested blobs and ad hoc top-level values.

package rows

import "github.com/2389/rowview/internal/keyset"

// Core field keys present on every row.
const (
	KeyID        = "id"
	KeyCountry   = "country"
	KeyCreatedAt = "createdAt"
)

// CoreKeys returns the core field keys in display order.
func CoreKeys() []string {
	return []string{KeyID, KeyCountry, KeyCreatedAt}
}

// Row is a fetched record. Rows are treated as immutable once fetched.
type Row struct {
	ID        string         `json:"id"`
	Country   string         `json:"country"`
	CreatedAt string         `json:"createdAt"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Record flattens the row into a single record. Core fields win over
// free-form fields with the same name.
func (r Row) Record() keyset.Record {
	rec := make(keyset.Record, len(r.Fields)+3)
	for k, v := range r.Fields {
		rec[k] = v
	}
	rec[KeyID] = r.ID
	rec[KeyCountry] = r.Country
	rec[KeyCreatedAt] = r.CreatedAt
	return rec
}

// Field returns a free-form field by name.
func (r Row) Field(name string) (any, bool) {
	v, ok := r.Fields[name]
	return v, ok
}
