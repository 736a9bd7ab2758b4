// ABOUTME: Grid session tying the window, column manager, expansion tracker and data source together.
// ABOUTME: Fetched rows are merged by absolute index; rendered rows are cached until their state changes.

package grid

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/sync/singleflight"

	"github.com/2389/rowview/internal/columns"
	"github.com/2389/rowview/internal/datasource"
	"github.com/2389/rowview/internal/events"
	"github.com/2389/rowview/internal/expansion"
	"github.com/2389/rowview/internal/rows"
	"github.com/2389/rowview/internal/window"
)

var ErrUnknownRow = errors.New("row not loaded")

const renderCacheSize = 10_000

// sharedFetchTimeout bounds a serialized fetch once it no longer follows its first caller.
const sharedFetchTimeout = 30 * time.Second

// Notifier receives grid state changes.
type Notifier interface {
	Publish(ev events.Event)
}

// Options configures a grid.
type Options struct {
	Name        string
	PageSize    int
	CoreColumns []string
	Kinds       []rows.Kind
	// Cascade makes contracting a row also contract its expanded keys.
	Cascade bool
	// SerializeFetches collapses concurrent fetches of the same range into one.
	SerializeFetches bool
	Notifier         Notifier
}

// PageView is the current window with its rendered rows.
type PageView struct {
	Grid        string                `json:"grid"`
	Page        int                   `json:"page"`
	PageSize    int                   `json:"page_size"`
	TotalItems  int                   `json:"total_items"`
	TotalPages  int                   `json:"total_pages"`
	StartIndex  int                   `json:"start_index"`
	EndIndex    int                   `json:"end_index"`
	HasNext     bool                  `json:"has_next"`
	HasPrevious bool                  `json:"has_previous"`
	Pending     int                   `json:"pending"`
	Columns     []columns.ColumnSpec  `json:"columns"`
	Rows        []columns.RenderedRow `json:"rows"`
}

type cachedRender struct {
	rowGen uint64
	colGen uint64
	row    columns.RenderedRow
}

// Grid is one independent view over a data source.
type Grid struct {
	name      string
	src       datasource.Source
	columns   *columns.Manager
	tracker   *expansion.Tracker
	notifier  Notifier
	serialize bool
	flight    singleflight.Group

	mu         sync.RWMutex
	win        *window.Service
	collection map[int]rows.Row
	byID       map[string]int
	rowGen     map[string]uint64
	colGen     uint64
	synced     bool
	rendered   *ristretto.Cache
}

// New creates a grid on page 1 with nothing loaded.
func New(opts Options, src datasource.Source) (*Grid, error) {
	win, err := window.New(opts.PageSize)
	if err != nil {
		return nil, err
	}
	mgr, err := columns.NewManager(opts.CoreColumns, opts.Kinds)
	if err != nil {
		return nil, err
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10 * renderCacheSize,
		MaxCost:     renderCacheSize,
		BufferItems: 64,

		IgnoreInternalCost: true,
	})
	if err != nil {
		mgr.Close()
		return nil, fmt.Errorf("failed to create render cache: %w", err)
	}

	var trackerOpts []expansion.Option
	if opts.Cascade {
		trackerOpts = append(trackerOpts, expansion.WithCascade())
	}

	return &Grid{
		name:       opts.Name,
		src:        src,
		columns:    mgr,
		tracker:    expansion.NewTracker(trackerOpts...),
		notifier:   opts.Notifier,
		serialize:  opts.SerializeFetches,
		win:        win,
		collection: make(map[int]rows.Row),
		byID:       make(map[string]int),
		rowGen:     make(map[string]uint64),
		rendered:   cache,
	}, nil
}

// Close releases the grid's caches.
func (g *Grid) Close() {
	g.rendered.Close()
	g.columns.Close()
}

func (g *Grid) Name() string { return g.name }

// Columns exposes the column manager.
func (g *Grid) Columns() *columns.Manager { return g.columns }

// Loaded returns how many rows have been merged into the collection.
func (g *Grid) Loaded() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.collection)
}

// Load refreshes the total and fetches the current page.
func (g *Grid) Load(ctx context.Context) (PageView, error) {
	return g.navigate(ctx, func(*window.Service) error { return nil })
}

// Current returns the current page, loading it first when it has never been
// loaded or still has unfetched positions.
func (g *Grid) Current(ctx context.Context) (PageView, error) {
	g.mu.RLock()
	synced := g.synced
	g.mu.RUnlock()
	if synced {
		if pv := g.Page(); pv.Pending == 0 {
			return pv, nil
		}
	}
	return g.Load(ctx)
}

// Next advances one page when more rows exist, then fetches it.
func (g *Grid) Next(ctx context.Context) (PageView, error) {
	return g.navigate(ctx, func(w *window.Service) error {
		w.NextPage()
		return nil
	})
}

// Previous goes back one page when not on the first, then fetches it.
func (g *Grid) Previous(ctx context.Context) (PageView, error) {
	return g.navigate(ctx, func(w *window.Service) error {
		w.PreviousPage()
		return nil
	})
}

// GoTo jumps to page, then fetches it.
func (g *Grid) GoTo(ctx context.Context, page int) (PageView, error) {
	return g.navigate(ctx, func(w *window.Service) error {
		return w.GoTo(page)
	})
}

// navigate moves the window and fetches its range. The lock is released across
// the fetch, so a response for a page that is no longer current still merges.
func (g *Grid) navigate(ctx context.Context, move func(*window.Service) error) (PageView, error) {
	total, err := g.src.TotalRows(ctx)
	if err != nil {
		return PageView{}, fmt.Errorf("failed to read total rows: %w", err)
	}

	g.mu.Lock()
	if err := g.win.SetTotalItems(total); err != nil {
		g.mu.Unlock()
		return PageView{}, err
	}
	g.synced = true
	before := g.win.CurrentPage()
	if err := move(g.win); err != nil {
		g.mu.Unlock()
		return PageView{}, err
	}
	page := g.win.CurrentPage()
	r := g.win.Range()
	g.mu.Unlock()

	if page != before {
		g.notify(events.Event{Type: events.TypePage, Page: page})
	}

	if !r.Empty() {
		fetched, err := g.fetch(ctx, r)
		if err != nil {
			return PageView{}, fmt.Errorf("failed to fetch rows [%d, %d): %w", r.Start, r.End, err)
		}
		g.merge(r.Start, fetched)
	}

	return g.Page(), nil
}

func (g *Grid) fetch(ctx context.Context, r window.Range) ([]rows.Row, error) {
	if !g.serialize {
		return g.src.FetchRange(ctx, r.Start, r.End)
	}
	key := strconv.Itoa(r.Start) + ":" + strconv.Itoa(r.End)
	// The shared fetch outlives any single caller; each caller still gives up on its own ctx.
	ch := g.flight.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		return g.src.FetchRange(fctx, r.Start, r.End)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]rows.Row), nil
	}
}

// merge adds rows at their absolute positions. Occupied positions are kept.
func (g *Grid) merge(start int, fetched []rows.Row) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, r := range fetched {
		idx := start + i
		if _, ok := g.collection[idx]; ok {
			continue
		}
		g.collection[idx] = r
		g.byID[r.ID] = idx
	}
}

// Page renders the current window from the collection. Positions not yet
// fetched are counted as pending.
func (g *Grid) Page() PageView {
	g.mu.RLock()
	defer g.mu.RUnlock()

	pv := PageView{
		Grid:        g.name,
		Page:        g.win.CurrentPage(),
		PageSize:    g.win.PageSize(),
		TotalItems:  g.win.TotalItems(),
		TotalPages:  g.win.TotalPages(),
		StartIndex:  g.win.StartIndex(),
		EndIndex:    g.win.EndIndex(),
		HasNext:     g.win.EndIndex() < g.win.TotalItems(),
		HasPrevious: g.win.CurrentPage() > 1,
		Columns:     g.columns.Available(),
		Rows:        []columns.RenderedRow{},
	}
	for idx := pv.StartIndex; idx < pv.EndIndex; idx++ {
		r, ok := g.collection[idx]
		if !ok {
			pv.Pending++
			continue
		}
		pv.Rows = append(pv.Rows, g.render(r))
	}
	return pv
}

// render must be called with g.mu held.
func (g *Grid) render(r rows.Row) columns.RenderedRow {
	rowGen := g.rowGen[r.ID]
	if v, ok := g.rendered.Get(r.ID); ok {
		if c := v.(cachedRender); c.rowGen == rowGen && c.colGen == g.colGen {
			return c.row
		}
	}
	rr := g.columns.Render(r, g.tracker)
	g.rendered.Set(r.ID, cachedRender{rowGen: rowGen, colGen: g.colGen, row: rr}, 1)
	return rr
}

// Row returns a loaded row by id.
func (g *Grid) Row(id string) (rows.Row, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idx, ok := g.byID[id]
	if !ok {
		return rows.Row{}, false
	}
	return g.collection[idx], true
}

// RenderRow renders a single loaded row with the current state.
func (g *Grid) RenderRow(id string) (columns.RenderedRow, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idx, ok := g.byID[id]
	if !ok {
		return columns.RenderedRow{}, fmt.Errorf("%w: %s", ErrUnknownRow, id)
	}
	return g.render(g.collection[idx]), nil
}

// DiscoveredKeys lists the blob keys of one kind for a loaded row.
func (g *Grid) DiscoveredKeys(rowID, kind string) ([]string, error) {
	k, ok := g.columns.Kind(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", columns.ErrUnknownKind, kind)
	}
	r, ok := g.Row(rowID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRow, rowID)
	}
	return g.columns.Discover(r, k), nil
}

// Expand shows the raw column of kind for the row.
func (g *Grid) Expand(kind, rowID string) (bool, error) {
	return g.toggle(events.Event{Type: events.TypeExpand, Kind: kind, RowID: rowID}, func() bool {
		return g.tracker.Expand(kind, rowID)
	})
}

// Contract hides the raw column of kind for the row.
func (g *Grid) Contract(kind, rowID string) (bool, error) {
	return g.toggle(events.Event{Type: events.TypeContract, Kind: kind, RowID: rowID}, func() bool {
		return g.tracker.Contract(kind, rowID)
	})
}

// ExpandKey gives one blob key of the row its own column.
func (g *Grid) ExpandKey(kind, rowID, key string) (bool, error) {
	return g.toggle(events.Event{Type: events.TypeExpandKey, Kind: kind, RowID: rowID, Key: key}, func() bool {
		return g.tracker.ExpandKey(kind, rowID, key)
	})
}

// ContractKey removes the column of one blob key of the row.
func (g *Grid) ContractKey(kind, rowID, key string) (bool, error) {
	return g.toggle(events.Event{Type: events.TypeContractKey, Kind: kind, RowID: rowID, Key: key}, func() bool {
		return g.tracker.ContractKey(kind, rowID, key)
	})
}

// IsRowExpanded reports the tracker state. Unknown kinds and rows are not expanded.
func (g *Grid) IsRowExpanded(kind, rowID string) bool {
	return g.tracker.IsRowExpanded(kind, rowID)
}

// IsKeyExpanded reports the tracker state for a single key.
func (g *Grid) IsKeyExpanded(kind, rowID, key string) bool {
	return g.tracker.IsKeyExpanded(kind, rowID, key)
}

// toggle applies a tracker change and invalidates only the affected row.
func (g *Grid) toggle(ev events.Event, apply func() bool) (bool, error) {
	if _, ok := g.columns.Kind(ev.Kind); !ok {
		return false, fmt.Errorf("%w: %s", columns.ErrUnknownKind, ev.Kind)
	}

	g.mu.Lock()
	changed := apply()
	if changed {
		g.rowGen[ev.RowID]++
		g.rendered.Del(ev.RowID)
	}
	g.mu.Unlock()

	if changed {
		g.notify(ev)
	}
	return changed, nil
}

// SetColumnEnabled shows or hides a core column for every row.
func (g *Grid) SetColumnEnabled(key string, enabled bool) (bool, error) {
	g.mu.Lock()
	changed, err := g.columns.SetEnabled(key, enabled)
	if changed {
		g.colGen++
		g.rendered.Clear()
	}
	g.mu.Unlock()
	if err != nil {
		return false, err
	}

	if changed {
		g.notify(events.Event{Type: events.TypeColumn, Column: key, Enabled: &enabled})
	}
	return changed, nil
}

func (g *Grid) notify(ev events.Event) {
	if g.notifier == nil {
		return
	}
	ev.Grid = g.name
	g.notifier.Publish(ev)
}
