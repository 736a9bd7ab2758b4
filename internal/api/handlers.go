// ABOUTME: JSON HTTP API over named grid sessions.
// ABOUTME: Exposes paging, column toggles, row/key expansion, discovered keys and the event feed.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/2389/rowview/internal/columns"
	apierrors "github.com/2389/rowview/internal/errors"
	"github.com/2389/rowview/internal/events"
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
	grids *grid.Registry
	hub   *events.Hub
	logs  LogReader
}

func NewHandlers(grids *grid.Registry, hub *events.Hub, logs LogReader) *Handlers {
	return &Handlers{grids: grids, hub: hub, logs: logs}
}

func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrNotFound, "No such endpoint")
		})
		r.Get("/grids", h.listGrids)
		r.Route("/grids/{grid}", func(r chi.Router) {
			r.Get("/", h.page)
			r.Post("/load", h.load)
			r.Post("/next", h.next)
			r.Post("/prev", h.prev)
			r.Post("/page/{n}", h.goTo)

			r.Get("/columns", h.listColumns)
			r.Patch("/columns/{key}", h.setColumn)

			r.Get("/rows/{rowID}", h.row)
			r.Get("/rows/{rowID}/{kind}/keys", h.keys)
			r.Post("/rows/{rowID}/{kind}/expand", h.expand)
			r.Post("/rows/{rowID}/{kind}/contract", h.contract)
			r.Post("/rows/{rowID}/{kind}/keys/{key}/expand", h.expandKey)
			r.Post("/rows/{rowID}/{kind}/keys/{key}/contract", h.contractKey)

			r.Get("/ws", h.ws)
		})
		r.Get("/logs", h.listLogs)
		r.Get("/logs/stats", h.logStats)
	})
}

// ToggleResponse reports the state after an expand or contract call.
type ToggleResponse struct {
	Changed bool                `json:"changed"`
	Row     columns.RenderedRow `json:"row"`
}

// ColumnRequest is the body of PATCH /columns/{key}.
type ColumnRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h *Handlers) gridFor(w http.ResponseWriter, r *http.Request) (*grid.Grid, bool) {
	name := param(r, "grid")
	g, err := h.grids.Get(name)
	if err != nil {
		switch {
		case errors.Is(err, grid.ErrInvalidName):
			apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrUnknownGrid, "Grid not found")
			return nil, false
		case errors.Is(err, grid.ErrTooManyGrids):
			apierrors.WriteError(w, http.StatusTooManyRequests, apierrors.ErrTooManyGrids, "Grid limit reached")
			return nil, false
		}
		apierrors.WriteErrorWithDetails(w, http.StatusInternalServerError, apierrors.ErrInternal, "Failed to open grid", err.Error())
		return nil, false
	}
	return g, true
}

func (h *Handlers) listGrids(w http.ResponseWriter, r *http.Request) {
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{"grids": h.grids.Names()})
}

func (h *Handlers) page(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, (*grid.Grid).Current)
}

func (h *Handlers) load(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, (*grid.Grid).Load)
}

func (h *Handlers) next(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, (*grid.Grid).Next)
}

func (h *Handlers) prev(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, (*grid.Grid).Previous)
}

func (h *Handlers) goTo(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		apierrors.WriteErrorWithField(w, http.StatusBadRequest, apierrors.ErrInvalidPage, "Page must be a number", "n")
		return
	}
	h.navigate(w, r, func(g *grid.Grid, ctx context.Context) (grid.PageView, error) {
		return g.GoTo(ctx, n)
	})
}

func (h *Handlers) navigate(w http.ResponseWriter, r *http.Request, move func(*grid.Grid, context.Context) (grid.PageView, error)) {
	g, ok := h.gridFor(w, r)
	if !ok {
		return
	}
	pv, err := move(g, r.Context())
	if err != nil {
		writeGridError(w, err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, pv)
}

func (h *Handlers) listColumns(w http.ResponseWriter, r *http.Request) {
	g, ok := h.gridFor(w, r)
	if !ok {
		return
	}
	mgr := g.Columns()
	kinds := make([]string, 0, len(mgr.Kinds()))
	for _, k := range mgr.Kinds() {
		kinds = append(kinds, k.Name)
	}
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{
		"columns": mgr.Available(),
		"kinds":   kinds,
	})
}

func (h *Handlers) setColumn(w http.ResponseWriter, r *http.Request) {
	g, ok := h.gridFor(w, r)
	if !ok {
		return
	}

	var req ColumnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.WriteError(w, http.StatusBadRequest, apierrors.ErrInvalidBody, "Request body must be JSON")
		return
	}
	if req.Enabled == nil {
		apierrors.WriteErrorWithField(w, http.StatusBadRequest, apierrors.ErrMissingField, "enabled is required", "enabled")
		return
	}

	changed, err := g.SetColumnEnabled(param(r, "key"), *req.Enabled)
	if err != nil {
		writeGridError(w, err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{
		"changed": changed,
		"columns": g.Columns().Available(),
	})
}

func (h *Handlers) row(w http.ResponseWriter, r *http.Request) {
	g, ok := h.gridFor(w, r)
	if !ok {
		return
	}
	rr, err := g.RenderRow(param(r, "rowID"))
	if err != nil {
		writeGridError(w, err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, rr)
}

func (h *Handlers) keys(w http.ResponseWriter, r *http.Request) {
	g, ok := h.gridFor(w, r)
	if !ok {
		return
	}
	rowID, kind := param(r, "rowID"), param(r, "kind")
	keys, err := g.DiscoveredKeys(rowID, kind)
	if err != nil {
		writeGridError(w, err)
		return
	}

	states := make([]columns.KeyState, len(keys))
	for i, k := range keys {
		states[i] = columns.KeyState{Key: k, Expanded: g.IsKeyExpanded(kind, rowID, k)}
	}
	apierrors.WriteJSON(w, http.StatusOK, columns.KindState{
		Kind:     kind,
		Expanded: g.IsRowExpanded(kind, rowID),
		Keys:     states,
	})
}

func (h *Handlers) expand(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, func(g *grid.Grid, kind, rowID string) (bool, error) {
		return g.Expand(kind, rowID)
	})
}

func (h *Handlers) contract(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, func(g *grid.Grid, kind, rowID string) (bool, error) {
		return g.Contract(kind, rowID)
	})
}

func (h *Handlers) expandKey(w http.ResponseWriter, r *http.Request) {
	key := param(r, "key")
	h.toggle(w, r, func(g *grid.Grid, kind, rowID string) (bool, error) {
		return g.ExpandKey(kind, rowID, key)
	})
}

func (h *Handlers) contractKey(w http.ResponseWriter, r *http.Request) {
	key := param(r, "key")
	h.toggle(w, r, func(g *grid.Grid, kind, rowID string) (bool, error) {
		return g.ContractKey(kind, rowID, key)
	})
}

// toggle only accepts rows that are loaded so the response can carry the re-rendered row.
func (h *Handlers) toggle(w http.ResponseWriter, r *http.Request, apply func(g *grid.Grid, kind, rowID string) (bool, error)) {
	g, ok := h.gridFor(w, r)
	if !ok {
		return
	}
	rowID, kind := param(r, "rowID"), param(r, "kind")
	if _, ok := g.Row(rowID); !ok {
		writeGridError(w, fmt.Errorf("%w: %s", grid.ErrUnknownRow, rowID))
		return
	}

	changed, err := apply(g, kind, rowID)
	if err != nil {
		writeGridError(w, err)
		return
	}
	rr, err := g.RenderRow(rowID)
	if err != nil {
		writeGridError(w, err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, ToggleResponse{Changed: changed, Row: rr})
}

func (h *Handlers) ws(w http.ResponseWriter, r *http.Request) {
	g, ok := h.gridFor(w, r)
	if !ok {
		return
	}
	h.hub.Serve(w, r, g.Name())
}

func (h *Handlers) listLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := &store.RequestLogQuery{
		GridName:   q.Get("grid"),
		Method:     q.Get("method"),
		PathPrefix: q.Get("path_prefix"),
	}
	var err error
	if query.Limit, err = intQuery(q, "limit"); err != nil {
		apierrors.WriteErrorWithField(w, http.StatusBadRequest, apierrors.ErrInvalidRequest, "limit must be a number", "limit")
		return
	}
	if query.Offset, err = intQuery(q, "offset"); err != nil {
		apierrors.WriteErrorWithField(w, http.StatusBadRequest, apierrors.ErrInvalidRequest, "offset must be a number", "offset")
		return
	}
	if query.StatusCode, err = intQuery(q, "status"); err != nil {
		apierrors.WriteErrorWithField(w, http.StatusBadRequest, apierrors.ErrInvalidRequest, "status must be a number", "status")
		return
	}

	logs, err := h.logs.GetRequestLogs(query)
	if err != nil {
		apierrors.WriteErrorWithDetails(w, http.StatusInternalServerError, apierrors.ErrDatabaseError, "Failed to read request logs", err.Error())
		return
	}
	if logs == nil {
		logs = []*store.RequestLog{}
	}
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (h *Handlers) logStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.logs.GetRequestLogStats()
	if err != nil {
		apierrors.WriteErrorWithDetails(w, http.StatusInternalServerError, apierrors.ErrDatabaseError, "Failed to read request log stats", err.Error())
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, stats)
}

// writeGridError maps grid failures to the error envelope. Anything unrecognized is a fetch failure.
func writeGridError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, window.ErrInvalidPage):
		apierrors.WriteErrorWithField(w, http.StatusBadRequest, apierrors.ErrInvalidPage, "Page must be 1 or greater", "n")
	case errors.Is(err, columns.ErrUnknownColumn):
		apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrUnknownColumn, err.Error())
	case errors.Is(err, columns.ErrUnknownKind):
		apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrUnknownKind, err.Error())
	case errors.Is(err, grid.ErrUnknownRow):
		apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrUnknownRow, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		apierrors.WriteErrorWithDetails(w, http.StatusGatewayTimeout, apierrors.ErrFetchFailed, "Fetch did not complete", err.Error())
	default:
		apierrors.WriteErrorWithDetails(w, http.StatusBadGateway, apierrors.ErrFetchFailed, "Failed to fetch rows", err.Error())
	}
}

// param returns a path parameter with percent-escapes decoded.
func param(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func intQuery(q url.Values, name string) (int, error) {
	v := q.Get(name)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
