// ABOUTME: Row storage operations for the paged collection.
// ABOUTME: Rows are addressed by absolute position in insertion order.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/2389/rowview/internal/rows"
)

// ErrRowNotFound is returned when no row has the requested id.
var ErrRowNotFound = errors.New("row not found")

// InsertRows appends rows in order inside a single transaction.
func (s *Store) InsertRows(ctx context.Context, batch []rows.Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rows (id, country, created_at, fields)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range batch {
		fields, err := encodeFields(r.Fields)
		if err != nil {
			return fmt.Errorf("row %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.Country, r.CreatedAt, fields); err != nil {
			return fmt.Errorf("row %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// CountRows returns the number of stored rows.
func (s *Store) CountRows(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rows").Scan(&count)
	return count, err
}

// CountRowsByCountry returns row counts grouped by country.
func (s *Store) CountRowsByCountry(ctx context.Context) (map[string]int, error) {
	q, err := s.db.QueryContext(ctx, "SELECT country, COUNT(*) FROM rows GROUP BY country")
	if err != nil {
		return nil, err
	}
	defer q.Close()

	stats := make(map[string]int)
	for q.Next() {
		var country string
		var count int
		if err := q.Scan(&country, &count); err != nil {
			return nil, err
		}
		stats[country] = count
	}
	return stats, q.Err()
}

// Payload is the raw payload blob of one stored row.
type Payload struct {
	RowID string
	Raw   string
}

// ListPayloads returns payload blobs in collection order. An empty country
// matches every row; limit <= 0 means no limit.
func (s *Store) ListPayloads(ctx context.Context, country string, limit int) ([]Payload, error) {
	if limit <= 0 {
		limit = -1
	}
	q, err := s.db.QueryContext(ctx, `
		SELECT id, fields FROM rows
		WHERE ? = '' OR country = ?
		ORDER BY seq
		LIMIT ?
	`, country, country, limit)
	if err != nil {
		return nil, err
	}
	defer q.Close()

	var out []Payload
	for q.Next() {
		var id, fields string
		if err := q.Scan(&id, &fields); err != nil {
			return nil, err
		}
		p := gjson.Get(fields, "payload")
		if !p.Exists() {
			continue
		}
		raw := p.Raw
		if p.Type == gjson.String {
			raw = p.String()
		}
		out = append(out, Payload{RowID: id, Raw: raw})
	}
	return out, q.Err()
}

// GetRowRange returns up to limit rows starting at absolute position offset.
func (s *Store) GetRowRange(ctx context.Context, offset, limit int) ([]rows.Row, error) {
	q, err := s.db.QueryContext(ctx, `
		SELECT id, country, created_at, fields
		FROM rows
		ORDER BY seq
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer q.Close()

	var out []rows.Row
	for q.Next() {
		r, err := scanRow(q)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, q.Err()
}

// GetRow returns a single row by id.
func (s *Store) GetRow(ctx context.Context, id string) (rows.Row, error) {
	r, err := scanRow(s.db.QueryRowContext(ctx, `
		SELECT id, country, created_at, fields FROM rows WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return rows.Row{}, fmt.Errorf("%w: %s", ErrRowNotFound, id)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(sc scanner) (rows.Row, error) {
	var r rows.Row
	var fields string
	if err := sc.Scan(&r.ID, &r.Country, &r.CreatedAt, &fields); err != nil {
		return rows.Row{}, err
	}
	if err := json.Unmarshal([]byte(fields), &r.Fields); err != nil {
		return rows.Row{}, fmt.Errorf("row %s: decode fields: %w", r.ID, err)
	}
	return r, nil
}

func encodeFields(fields map[string]any) (string, error) {
	if len(fields) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
