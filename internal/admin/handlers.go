// ABOUTME: HTTP handlers for the admin HTML viewer.
// ABOUTME: Pages through grids and applies column and expansion toggles via plain form posts.

package admin

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/2389/rowview/internal/columns"
	"github.com/2389/rowview/internal/grid"
	"github.com/2389/rowview/internal/store"
	"github.com/2389/rowview/internal/window"
)

// LogReader serves the request log.
type LogReader interface {
	GetRequestLogs(q *store.RequestLogQuery) ([]*store.RequestLog, error)
	GetRequestLogStats() (*store.RequestLogStats, error)
}

type Handlers struct {
	grids       *grid.Registry
	logs        LogReader
	defaultGrid string
}

func NewHandlers(grids *grid.Registry, logs LogReader, defaultGrid string) *Handlers {
	return &Handlers{grids: grids, logs: logs, defaultGrid: defaultGrid}
}

func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Get("/", h.dashboard)
		r.Get("/logs", h.logsList)
		r.Route("/grids/{grid}", func(r chi.Router) {
			r.Get("/", h.gridPage)
			r.Post("/columns/{key}/toggle", h.toggleColumn)
			r.Post("/rows/{rowID}/{kind}/toggle", h.toggleRow)
			r.Post("/rows/{rowID}/{kind}/keys/{key}/toggle", h.toggleKey)
		})
	})
}

func (h *Handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	var sb strings.Builder

	names := h.grids.Names()
	if !slices.Contains(names, h.defaultGrid) {
		names = append([]string{h.defaultGrid}, names...)
	}
	sb.WriteString(`<ul class="bg-white rounded-lg shadow divide-y divide-gray-200 mb-6">`)
	for _, name := range names {
		sb.WriteString(fmt.Sprintf(`<li class="px-4 py-3"><a href="%s" class="text-blue-600 hover:text-blue-900">%s</a></li>`,
			gridPath(name), escape(name)))
	}
	sb.WriteString(`</ul>`)

	if stats, err := h.logs.GetRequestLogStats(); err == nil {
		sb.WriteString(fmt.Sprintf(`<p class="text-sm text-gray-600">%d API requests, %d errors, %d ms average over %d endpoints</p>`,
			stats.TotalRequests, stats.ErrorRequests, stats.AvgDurationMs, stats.UniqueEndpoints))
	} else {
		log.Printf("Failed to read request log stats: %v", err)
	}

	writeHTML(w, http.StatusOK, RenderLayout("Grids", sb.String()))
}

func (h *Handlers) logsList(w http.ResponseWriter, r *http.Request) {
	logs, err := h.logs.GetRequestLogs(&store.RequestLogQuery{
		Limit:    100,
		GridName: r.URL.Query().Get("grid"),
	})
	if err != nil {
		http.Error(w, "Failed to read request logs", http.StatusInternalServerError)
		return
	}
	writeHTML(w, http.StatusOK, RenderLayout("Request log", RenderLogTable(logs)))
}

func (h *Handlers) gridFor(w http.ResponseWriter, r *http.Request) (*grid.Grid, bool) {
	g, err := h.grids.Get(chi.URLParam(r, "grid"))
	if err != nil {
		switch {
		case errors.Is(err, grid.ErrInvalidName):
			http.Error(w, "Grid not found", http.StatusNotFound)
			return nil, false
		case errors.Is(err, grid.ErrTooManyGrids):
			http.Error(w, "Grid limit reached", http.StatusTooManyRequests)
			return nil, false
		}
		http.Error(w, "Failed to open grid", http.StatusInternalServerError)
		return nil, false
	}
	return g, true
}

func (h *Handlers) gridPage(w http.ResponseWriter, r *http.Request) {
	g, ok := h.gridFor(w, r)
	if !ok {
		return
	}

	var (
		pv  grid.PageView
		err error
	)
	if p := r.URL.Query().Get("page"); p != "" {
		n, convErr := strconv.Atoi(p)
		if convErr != nil {
			http.Error(w, "page must be a number", http.StatusBadRequest)
			return
		}
		pv, err = g.GoTo(r.Context(), n)
	} else {
		pv, err = g.Current(r.Context())
	}

	status := http.StatusOK
	var notice string
	if err != nil {
		if errors.Is(err, window.ErrInvalidPage) {
			http.Error(w, "page must be 1 or greater", http.StatusBadRequest)
			return
		}
		// Render what is loaded so far with the failure shown above it
		status = http.StatusBadGateway
		notice = fmt.Sprintf(`<div class="rounded bg-red-100 text-red-800 px-4 py-2 mb-2 text-sm">Failed to fetch rows: %s</div>`, escape(err.Error()))
		pv = g.Page()
	}

	body := notice + RenderColumnSwitches(pv) + RenderPager(pv) +
		`<div class="bg-white rounded-lg shadow overflow-x-auto">` + RenderGridTable(pv) + `</div>`
	writeHTML(w, status, RenderLayout("Grid "+g.Name(), body))
}

func (h *Handlers) toggleColumn(w http.ResponseWriter, r *http.Request) {
	g, ok := h.gridFor(w, r)
	if !ok {
		return
	}
	key := unescape(chi.URLParam(r, "key"))

	enabled := false
	for _, c := range g.Columns().Available() {
		if c.Key == key {
			enabled = c.Enabled
		}
	}
	if _, err := g.SetColumnEnabled(key, !enabled); err != nil {
		if errors.Is(err, columns.ErrUnknownColumn) {
			http.Error(w, "Column not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.redirectToGrid(w, r, g)
}

func (h *Handlers) toggleRow(w http.ResponseWriter, r *http.Request) {
	g, ok := h.gridFor(w, r)
	if !ok {
		return
	}
	rowID, kind := unescape(chi.URLParam(r, "rowID")), unescape(chi.URLParam(r, "kind"))

	var err error
	if g.IsRowExpanded(kind, rowID) {
		_, err = g.Contract(kind, rowID)
	} else {
		_, err = g.Expand(kind, rowID)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	h.redirectToGrid(w, r, g)
}

func (h *Handlers) toggleKey(w http.ResponseWriter, r *http.Request) {
	g, ok := h.gridFor(w, r)
	if !ok {
		return
	}
	rowID, kind := unescape(chi.URLParam(r, "rowID")), unescape(chi.URLParam(r, "kind"))
	key := unescape(chi.URLParam(r, "key"))

	var err error
	if g.IsKeyExpanded(kind, rowID, key) {
		_, err = g.ContractKey(kind, rowID, key)
	} else {
		_, err = g.ExpandKey(kind, rowID, key)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	h.redirectToGrid(w, r, g)
}

func (h *Handlers) redirectToGrid(w http.ResponseWriter, r *http.Request, g *grid.Grid) {
	http.Redirect(w, r, gridPath(g.Name()), http.StatusSeeOther)
}

func writeHTML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func unescape(s string) string {
	if v, err := url.PathUnescape(s); err == nil {
		return v
	}
	return s
}
