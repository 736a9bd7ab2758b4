// ABOUTME: Paged data source contract and its SQLite-backed implementation.
// ABOUTME: Rows are materialized lazily: a fetch past the persisted tail generates and stores them.

package datasource

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/2389/rowview/internal/rows"
	"github.com/2389/rowview/internal/seed"
	"github.com/2389/rowview/internal/store"
)

var (
	ErrInvalidRange = errors.New("invalid range")
	ErrNegativeRows = errors.New("total rows must not be negative")
)

// Source supplies rows by absolute position.
type Source interface {
	// FetchRange returns rows [start, end), clamped to the total row count.
	FetchRange(ctx context.Context, start, end int) ([]rows.Row, error)
	TotalRows(ctx context.Context) (int, error)
}

// SQLSource serves rows from the store, generating missing ones on demand.
type SQLSource struct {
	store   *store.Store
	gen     *seed.Generator
	latency time.Duration

	mu    sync.Mutex
	total int
}

// SQLOption configures an SQLSource.
type SQLOption func(*SQLSource)

// WithLatency delays every fetch, simulating a remote backend.
func WithLatency(d time.Duration) SQLOption {
	return func(s *SQLSource) { s.latency = d }
}

// NewSQLSource creates a source advertising total rows.
func NewSQLSource(st *store.Store, gen *seed.Generator, total int, opts ...SQLOption) (*SQLSource, error) {
	if total < 0 {
		return nil, ErrNegativeRows
	}
	s := &SQLSource{store: st, gen: gen, total: total}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SetTotalRows changes the advertised row count. Persisted rows are kept.
func (s *SQLSource) SetTotalRows(n int) error {
	if n < 0 {
		return ErrNegativeRows
	}
	s.mu.Lock()
	s.total = n
	s.mu.Unlock()
	return nil
}

// TotalRows returns the advertised row count.
func (s *SQLSource) TotalRows(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total, nil
}

// FetchRange returns rows [start, end) after the simulated latency.
func (s *SQLSource) FetchRange(ctx context.Context, start, end int) ([]rows.Row, error) {
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: [%d, %d)", ErrInvalidRange, start, end)
	}

	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	// the lock spans materialization so concurrent fetches never generate the same slots twice
	s.mu.Lock()
	defer s.mu.Unlock()

	if end > s.total {
		end = s.total
	}
	if start >= end {
		return []rows.Row{}, nil
	}

	if err := s.materialize(ctx, end); err != nil {
		return nil, err
	}

	out, err := s.store.GetRowRange(ctx, start, end-start)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows [%d, %d): %w", start, end, err)
	}
	return out, nil
}

// materialize persists generated rows until at least n exist.
func (s *SQLSource) materialize(ctx context.Context, n int) error {
	have, err := s.store.CountRows(ctx)
	if err != nil {
		return fmt.Errorf("failed to count rows: %w", err)
	}
	if have >= n {
		return nil
	}

	missing := n - have
	if err := s.store.InsertRows(ctx, s.gen.Generate(missing)); err != nil {
		return fmt.Errorf("failed to materialize %d rows: %w", missing, err)
	}
	log.Printf("Materialized %d rows (now %d)", missing, n)
	return nil
}
