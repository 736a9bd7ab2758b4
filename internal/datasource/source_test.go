// ABOUTME: Tests for the SQLite-backed paged data source.
// ABOUTME: Covers range validation, clamping, lazy materialization and latency cancellation.

package datasource

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/2389/rowview/internal/seed"
	"github.com/2389/rowview/internal/store"
)

func setupSource(t *testing.T, total int, opts ...SQLOption) (*SQLSource, *store.Store) {
	t.Helper()
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	src, err := NewSQLSource(st, seed.NewGenerator(seed.WithoutAI(), seed.WithRand(1)), total, opts...)
	if err != nil {
		t.Fatalf("NewSQLSource() error = %v", err)
	}
	return src, st
}

func TestFetchRangeValidation(t *testing.T) {
	src, _ := setupSource(t, 25)
	ctx := context.Background()

	tests := []struct {
		name       string
		start, end int
	}{
		{"negative start", -1, 5},
		{"empty range", 3, 3},
		{"inverted range", 5, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := src.FetchRange(ctx, tt.start, tt.end)
			if !errors.Is(err, ErrInvalidRange) {
				t.Errorf("FetchRange(%d, %d) error = %v, want ErrInvalidRange", tt.start, tt.end, err)
			}
		})
	}
}

func TestFetchRangeMaterializesLazily(t *testing.T) {
	src, st := setupSource(t, 25)
	ctx := context.Background()

	page, err := src.FetchRange(ctx, 0, 10)
	if err != nil {
		t.Fatalf("FetchRange(0, 10) error = %v", err)
	}
	if len(page) != 10 {
		t.Fatalf("got %d rows, want 10", len(page))
	}
	if n, _ := st.CountRows(ctx); n != 10 {
		t.Errorf("persisted %d rows after first page, want 10", n)
	}

	again, err := src.FetchRange(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	for i := range page {
		if page[i].ID != again[i].ID {
			t.Fatalf("row %d changed between fetches: %s vs %s", i, page[i].ID, again[i].ID)
		}
	}

	tail, err := src.FetchRange(ctx, 20, 30)
	if err != nil {
		t.Fatalf("FetchRange(20, 30) error = %v", err)
	}
	if len(tail) != 5 {
		t.Errorf("tail page has %d rows, want 5 (clamped to total)", len(tail))
	}
	if n, _ := st.CountRows(ctx); n != 25 {
		t.Errorf("persisted %d rows, want 25", n)
	}
}

func TestFetchRangeBeyondTotal(t *testing.T) {
	src, _ := setupSource(t, 5)

	got, err := src.FetchRange(context.Background(), 10, 20)
	if err != nil {
		t.Fatalf("FetchRange past total error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d rows past total, want 0", len(got))
	}
}

func TestSetTotalRows(t *testing.T) {
	src, _ := setupSource(t, 5)
	ctx := context.Background()

	if err := src.SetTotalRows(-1); !errors.Is(err, ErrNegativeRows) {
		t.Errorf("SetTotalRows(-1) error = %v", err)
	}
	if err := src.SetTotalRows(12); err != nil {
		t.Fatal(err)
	}
	if n, _ := src.TotalRows(ctx); n != 12 {
		t.Errorf("TotalRows() = %d, want 12", n)
	}
	got, err := src.FetchRange(ctx, 0, 20)
	if err != nil || len(got) != 12 {
		t.Errorf("FetchRange after growth = %d rows, %v; want 12", len(got), err)
	}

	// shrinking keeps persisted rows but hides them
	src.SetTotalRows(3)
	got, _ = src.FetchRange(ctx, 0, 20)
	if len(got) != 3 {
		t.Errorf("FetchRange after shrink = %d rows, want 3", len(got))
	}
}

func TestFetchRangeLatencyHonorsContext(t *testing.T) {
	src, _ := setupSource(t, 10, WithLatency(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := src.FetchRange(ctx, 0, 5)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("FetchRange error = %v, want deadline exceeded", err)
	}
}

func TestNewSQLSourceRejectsNegativeTotal(t *testing.T) {
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	if _, err := NewSQLSource(st, seed.NewGenerator(seed.WithoutAI()), -1); !errors.Is(err, ErrNegativeRows) {
		t.Errorf("NewSQLSource(-1) error = %v", err)
	}
}
