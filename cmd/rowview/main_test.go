// ABOUTME: Tests for CLI commands and server wiring.
// ABOUTME: Verifies health check, grid routes over a real store, seeding, and path validation.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/2389/rowview/internal/config"
	"github.com/2389/rowview/internal/grid"
	"github.com/2389/rowview/internal/rows"
	"github.com/2389/rowview/internal/seed"
	"github.com/2389/rowview/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.Port = "0"
	cfg.Database.Path = filepath.Join(t.TempDir(), "test_main.db")
	cfg.Grid.Default = "main"
	cfg.Grid.PageSize = 5
	cfg.Grid.TotalRows = 12
	cfg.Grid.MaxGrids = 2
	cfg.Grid.CoreColumns = rows.CoreKeys()
	cfg.Grid.Kinds = []string{"payload", "extraData:*", "collapsibleData"}
	cfg.Seed.UseAI = false
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	return cfg
}

func TestServer_Healthz(t *testing.T) {
	srv, err := newServer(testConfig(t))
	if err != nil {
		t.Fatalf("newServer() error = %v", err)
	}

	req := httptest.NewRequest("GET", "/healthz", nil)
	rr := httptest.NewRecorder()

	srv.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, response body: %s", err, rr.Body.String())
	}
	if resp["ok"] != true {
		t.Errorf("ok = %v, want true", resp["ok"])
	}
}

func TestServer_GridPaging(t *testing.T) {
	srv, err := newServer(testConfig(t))
	if err != nil {
		t.Fatalf("newServer() error = %v", err)
	}

	do := func(method, path string) grid.PageView {
		t.Helper()
		rr := httptest.NewRecorder()
		srv.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s %s status = %d, body: %s", method, path, rr.Code, rr.Body.String())
		}
		var pv grid.PageView
		if err := json.Unmarshal(rr.Body.Bytes(), &pv); err != nil {
			t.Fatalf("json.Unmarshal() error = %v", err)
		}
		return pv
	}

	pv := do("POST", "/api/grids/main/load")
	if pv.TotalItems != 12 || pv.TotalPages != 3 || len(pv.Rows) != 5 {
		t.Errorf("load: total %d pages %d rows %d", pv.TotalItems, pv.TotalPages, len(pv.Rows))
	}

	do("POST", "/api/grids/main/next")
	pv = do("POST", "/api/grids/main/next")
	if pv.Page != 3 || len(pv.Rows) != 2 || pv.HasNext {
		t.Errorf("last page: page %d rows %d has next %v", pv.Page, len(pv.Rows), pv.HasNext)
	}

	// other grids are independent
	pv = do("GET", "/api/grids/other")
	if pv.Page != 1 {
		t.Errorf("other grid page = %d, want 1", pv.Page)
	}
}

func TestServer_GridLimit(t *testing.T) {
	srv, err := newServer(testConfig(t))
	if err != nil {
		t.Fatalf("newServer() error = %v", err)
	}

	codes := []int{}
	for _, name := range []string{"main", "other", "third"} {
		rr := httptest.NewRecorder()
		srv.ServeHTTP(rr, httptest.NewRequest("GET", "/api/grids/"+name+"/columns", nil))
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("status codes = %v, want [200 200 429]", codes)
	}
}

func TestServer_AdminDashboard(t *testing.T) {
	srv, err := newServer(testConfig(t))
	if err != nil {
		t.Fatalf("newServer() error = %v", err)
	}

	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest("GET", "/admin/", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestSeedRows(t *testing.T) {
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	gen := seed.NewGenerator(seed.WithoutAI(), seed.WithRand(1))
	ctx := context.Background()
	if err := seedRows(ctx, s, gen, 3); err != nil {
		t.Fatalf("seedRows() error = %v", err)
	}
	if err := seedRows(ctx, s, gen, 4); err != nil {
		t.Fatalf("seedRows() error = %v", err)
	}

	n, err := s.CountRows(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 7 {
		t.Errorf("CountRows() = %d, want 7", n)
	}
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	writeSummary(&buf, 5, map[string]int{"Peru": 2, "Iceland": 3})

	want := "Total rows: 5\nIceland: 3\nPeru: 2\n"
	if buf.String() != want {
		t.Errorf("writeSummary() = %q, want %q", buf.String(), want)
	}
}

func TestWritePayloads(t *testing.T) {
	var buf bytes.Buffer
	writePayloads(&buf, []store.Payload{
		{RowID: "a", Raw: `{"e-1":"v"}`},
		{RowID: "b", Raw: `not json`},
	})

	want := "[a] {\n  \"e-1\": \"v\"\n}\n[b] not json\n"
	if buf.String() != want {
		t.Errorf("writePayloads() = %q, want %q", buf.String(), want)
	}
}

func TestSummaryOverSeededStore(t *testing.T) {
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	gen := seed.NewGenerator(seed.WithoutAI(), seed.WithRand(1))
	if err := seedRows(ctx, s, gen, 6); err != nil {
		t.Fatalf("seedRows() error = %v", err)
	}

	stats, err := s.CountRowsByCountry(ctx)
	if err != nil {
		t.Fatalf("CountRowsByCountry() error = %v", err)
	}
	sum := 0
	for _, n := range stats {
		sum += n
	}
	if sum != 6 {
		t.Errorf("grouped counts sum to %d, want 6", sum)
	}

	payloads, err := s.ListPayloads(ctx, "", 2)
	if err != nil {
		t.Fatalf("ListPayloads() error = %v", err)
	}
	if len(payloads) != 2 {
		t.Fatalf("ListPayloads() returned %d, want 2", len(payloads))
	}
	for _, p := range payloads {
		if !json.Valid([]byte(p.Raw)) || !strings.HasPrefix(p.Raw, "{") {
			t.Errorf("payload of %s = %q, want a JSON object", p.RowID, p.Raw)
		}
	}
}

func TestSeedCount(t *testing.T) {
	tests := []struct {
		args    []string
		want    int
		wantErr bool
	}{
		{nil, defaultSeedCount, false},
		{[]string{"250"}, 250, false},
		{[]string{"0"}, 0, true},
		{[]string{"-3"}, 0, true},
		{[]string{"many"}, 0, true},
	}

	for _, tt := range tests {
		got, err := seedCount(tt.args)
		if (err != nil) != tt.wantErr {
			t.Errorf("seedCount(%v) error = %v, wantErr %v", tt.args, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("seedCount(%v) = %d, want %d", tt.args, got, tt.want)
		}
	}
}

func TestValidateAndCleanDBPath_Valid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"simple relative path", "rowview.db"},
		{"path with directory", "./data/rowview.db"},
		{"path with multiple directories", "./path/to/data/rowview.db"},
		{"absolute path on Unix", "/tmp/rowview.db"},
		{"path with whitespace trimmed", "  rowview.db  "},
		{"in-memory database", ":memory:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := validateAndCleanDBPath(tt.input)
			if err != nil {
				t.Errorf("validateAndCleanDBPath(%q) error = %v, want nil", tt.input, err)
			}
			if result == "" {
				t.Errorf("validateAndCleanDBPath(%q) returned empty string", tt.input)
			}
		})
	}
}

func TestValidateAndCleanDBPath_Invalid(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		shouldContain string
	}{
		{"empty string", "", "cannot be empty"},
		{"current directory dot", ".", "cannot be empty, '.', or '/'"},
		{"root directory", "/", "cannot be empty, '.', or '/'"},
		{"path traversal with dotdot", "../../etc/passwd", "cannot contain '..'"},
		{"dotdot in middle", "./data/../../../etc/passwd", "cannot contain '..'"},
		{"git directory blocked", ".git/rowview.db", ".git"},
		{"svn directory blocked", ".svn/rowview.db", ".svn"},
		{"node_modules directory blocked", "node_modules/rowview.db", "node_modules"},
		{"credentials in path blocked", "credentials/rowview.db", "credentials"},
		{"secret in path blocked", "secret/rowview.db", "secret"},
		{".env in path blocked", ".env/rowview.db", ".env"},
		{"case insensitive bad pattern", "CREDENTIALS/rowview.db", "credentials"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validateAndCleanDBPath(tt.input)
			if err == nil {
				t.Fatalf("validateAndCleanDBPath(%q) error = nil, want error", tt.input)
			}
			if !strings.Contains(err.Error(), tt.shouldContain) {
				t.Errorf("validateAndCleanDBPath(%q) error = %v, should contain %q", tt.input, err, tt.shouldContain)
			}
		})
	}
}

func TestValidateAndCleanDBPath_Windows(t *testing.T) {
	if runtime.GOOS != "windows" {
		t.Skip("Windows-specific test")
	}

	for _, input := range []string{"C:", "D:"} {
		if _, err := validateAndCleanDBPath(input); err == nil {
			t.Errorf("validateAndCleanDBPath(%q) error = nil, want error", input)
		}
	}
	if _, err := validateAndCleanDBPath("C:\\data\\rowview.db"); err != nil {
		t.Errorf("absolute Windows path rejected: %v", err)
	}
}
