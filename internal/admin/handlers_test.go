// ABOUTME: Tests for the admin viewer HTTP handlers.
// ABOUTME: Exercises page rendering and form-post toggles through a chi router.

package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/2389/rowview/internal/grid"
	"github.com/2389/rowview/internal/rows"
	"github.com/2389/rowview/internal/store"
)

type fakeSource struct {
	mu   sync.Mutex
	rows []rows.Row
	err  error
}

func (s *fakeSource) TotalRows(ctx context.Context) (int, error) {
	return len(s.rows), nil
}

func (s *fakeSource) FetchRange(ctx context.Context, start, end int) ([]rows.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.rows[start:min(end, len(s.rows))], nil
}

func setupAdmin(t *testing.T) (http.Handler, *grid.Registry, *fakeSource) {
	t.Helper()
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	src := &fakeSource{}
	for i := 0; i < 7; i++ {
		src.rows = append(src.rows, rows.Row{
			ID:      fmt.Sprintf("r%d", i),
			Country: "Nepal",
			Fields:  map[string]any{"payload": `{"e-0":"x","e-3":"y"}`},
		})
	}

	reg := grid.NewRegistry(func(name string) (*grid.Grid, error) {
		return grid.New(grid.Options{
			Name:        name,
			PageSize:    5,
			CoreColumns: rows.CoreKeys(),
			Kinds:       []rows.Kind{rows.FieldKind("payload", "payload")},
		}, src)
	})
	t.Cleanup(reg.Close)

	r := chi.NewRouter()
	NewHandlers(reg, st, "main").RegisterRoutes(r)
	return r, reg, src
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	return w
}

func post(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("POST", path, nil))
	return w
}

func TestDashboardListsDefaultGrid(t *testing.T) {
	h, _, _ := setupAdmin(t)
	w := get(h, "/admin/")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `href="/admin/grids/main"`) {
		t.Error("dashboard should link the default grid")
	}
}

func TestGridPage(t *testing.T) {
	h, _, _ := setupAdmin(t)

	w := get(h, "/admin/grids/main")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, `id="row-r4"`) || strings.Contains(body, `id="row-r5"`) {
		t.Error("first page should show r0..r4 only")
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %s", ct)
	}

	body = get(h, "/admin/grids/main?page=2").Body.String()
	if !strings.Contains(body, `id="row-r6"`) || !strings.Contains(body, "Page 2 of 2") {
		t.Error("page 2 should show the remaining rows")
	}

	if w := get(h, "/admin/grids/main?page=0"); w.Code != http.StatusBadRequest {
		t.Errorf("page=0 status = %d, want 400", w.Code)
	}
	if w := get(h, "/admin/grids/main?page=x"); w.Code != http.StatusBadRequest {
		t.Errorf("page=x status = %d, want 400", w.Code)
	}
	if w := get(h, "/admin/grids/no.such"); w.Code != http.StatusNotFound {
		t.Errorf("invalid grid status = %d, want 404", w.Code)
	}
}

func TestGridPageFetchFailure(t *testing.T) {
	h, _, src := setupAdmin(t)
	src.err = errors.New("backend down")

	w := get(h, "/admin/grids/main")
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
	if !strings.Contains(w.Body.String(), "backend down") {
		t.Error("failure should be shown on the page")
	}
}

func TestTogglesRedirectAndApply(t *testing.T) {
	h, reg, _ := setupAdmin(t)
	get(h, "/admin/grids/main")
	g, _ := reg.Get("main")

	w := post(h, "/admin/grids/main/rows/r1/payload/toggle")
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/admin/grids/main" {
		t.Fatalf("toggle = %d to %q", w.Code, w.Header().Get("Location"))
	}
	if !g.IsRowExpanded("payload", "r1") {
		t.Error("row toggle should expand")
	}
	post(h, "/admin/grids/main/rows/r1/payload/toggle")
	if g.IsRowExpanded("payload", "r1") {
		t.Error("second row toggle should contract")
	}

	post(h, "/admin/grids/main/rows/r1/payload/keys/e-3/toggle")
	if !g.IsKeyExpanded("payload", "r1", "e-3") {
		t.Error("key toggle should expand")
	}
	if body := get(h, "/admin/grids/main").Body.String(); !strings.Contains(body, "payload.e-3") {
		t.Error("expanded key column not rendered")
	}

	post(h, "/admin/grids/main/columns/country/toggle")
	for _, c := range g.Columns().Available() {
		if c.Key == "country" && c.Enabled {
			t.Error("column toggle should disable country")
		}
	}

	if w := post(h, "/admin/grids/main/columns/nope/toggle"); w.Code != http.StatusNotFound {
		t.Errorf("unknown column status = %d, want 404", w.Code)
	}
	if w := post(h, "/admin/grids/main/rows/r1/bogus/toggle"); w.Code != http.StatusNotFound {
		t.Errorf("unknown kind status = %d, want 404", w.Code)
	}
}

func TestLogsPage(t *testing.T) {
	h, _, _ := setupAdmin(t)
	if w := get(h, "/admin/logs"); w.Code != http.StatusOK {
		t.Errorf("logs status = %d", w.Code)
	}
}
