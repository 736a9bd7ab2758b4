// ABOUTME: Tests for layered configuration loading.
// ABOUTME: Covers defaults, YAML files, environment overrides, flags and validation.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func loadIn(t *testing.T, opts Options) *Config {
	t.Helper()
	if opts.SearchPaths == nil {
		opts.SearchPaths = []string{t.TempDir()}
	}
	if opts.DefaultDBPath == "" {
		opts.DefaultDBPath = filepath.Join(t.TempDir(), "rowview.db")
	}
	cfg, err := Load(opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg := loadIn(t, Options{})

	if cfg.Server.Port != "9000" {
		t.Errorf("Server.Port = %q, want 9000", cfg.Server.Port)
	}
	if cfg.Grid.PageSize != 10 || cfg.Grid.TotalRows != 1000 || cfg.Grid.Default != "main" {
		t.Errorf("grid defaults = %+v", cfg.Grid)
	}
	if strings.Join(cfg.Grid.CoreColumns, ",") != "id,country,createdAt" {
		t.Errorf("CoreColumns = %v", cfg.Grid.CoreColumns)
	}
	if cfg.Grid.CascadeCollapse {
		t.Error("collapse should not cascade by default")
	}
	if cfg.Grid.MaxGrids != 16 || len(cfg.Grid.Names) != 0 {
		t.Errorf("grid bounds = %d / %v, want 16 / any name", cfg.Grid.MaxGrids, cfg.Grid.Names)
	}
	if cfg.File != "" {
		t.Errorf("File = %q, want none", cfg.File)
	}

	kinds, err := cfg.GridKinds()
	if err != nil {
		t.Fatal(err)
	}
	if len(kinds) != 3 || kinds[0].Name != "payload" || kinds[1].Name != "extraData" {
		t.Errorf("GridKinds() = %+v", kinds)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rowview.yaml")
	yaml := `server:
  port: "8123"
grid:
  page_size: 25
  max_grids: 4
  names:
    - main
    - audit
  latency_ms: 150
  kinds:
    - payload
    - meta:attributes
`
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}

	// found via search path
	cfg := loadIn(t, Options{SearchPaths: []string{dir}})
	if cfg.Server.Port != "8123" || cfg.Grid.PageSize != 25 {
		t.Errorf("file values not applied: port %q page size %d", cfg.Server.Port, cfg.Grid.PageSize)
	}
	if cfg.Grid.MaxGrids != 4 || strings.Join(cfg.Grid.Names, ",") != "main,audit" {
		t.Errorf("grid bounds = %d / %v", cfg.Grid.MaxGrids, cfg.Grid.Names)
	}
	if cfg.Latency() != 150*time.Millisecond {
		t.Errorf("Latency() = %v", cfg.Latency())
	}
	if cfg.File != path {
		t.Errorf("File = %q, want %q", cfg.File, path)
	}
	kinds, _ := cfg.GridKinds()
	if len(kinds) != 2 || kinds[1].Field != "attributes" {
		t.Errorf("kinds = %+v", kinds)
	}

	// and explicitly
	cfg = loadIn(t, Options{File: path})
	if cfg.Grid.PageSize != 25 {
		t.Errorf("explicit file not applied")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(Options{File: filepath.Join(t.TempDir(), "absent.yaml"), DefaultDBPath: "x.db"})
	if err == nil {
		t.Error("Load() with a missing explicit file should fail")
	}
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("ROWVIEW_GRID_PAGE_SIZE", "7")
	t.Setenv("ROWVIEW_GRID_CASCADE_COLLAPSE", "true")
	t.Setenv("ROWVIEW_SERVER_PORT", "7000")

	cfg := loadIn(t, Options{})
	if cfg.Grid.PageSize != 7 || !cfg.Grid.CascadeCollapse || cfg.Server.Port != "7000" {
		t.Errorf("env not applied: %+v %+v", cfg.Grid, cfg.Server)
	}
}

func TestLoadFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("ROWVIEW_SERVER_PORT", "7000")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("port", "9000", "")
	flags.Int("page-size", 10, "")
	if err := flags.Parse([]string{"--port", "6001"}); err != nil {
		t.Fatal(err)
	}

	cfg := loadIn(t, Options{Flags: flags})
	if cfg.Server.Port != "6001" {
		t.Errorf("Server.Port = %q, want flag value 6001", cfg.Server.Port)
	}
	// unset flags do not mask lower layers
	if cfg.Grid.PageSize != 10 {
		t.Errorf("PageSize = %d, want default 10", cfg.Grid.PageSize)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero page size", func(c *Config) { c.Grid.PageSize = 0 }},
		{"negative total", func(c *Config) { c.Grid.TotalRows = -1 }},
		{"no core columns", func(c *Config) { c.Grid.CoreColumns = nil }},
		{"negative latency", func(c *Config) { c.Grid.LatencyMs = -5 }},
		{"bad kind", func(c *Config) { c.Grid.Kinds = []string{":field"} }},
		{"no port", func(c *Config) { c.Server.Port = "" }},
		{"no default grid", func(c *Config) { c.Grid.Default = "" }},
		{"negative max grids", func(c *Config) { c.Grid.MaxGrids = -1 }},
		{"default outside names", func(c *Config) { c.Grid.Names = []string{"audit"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadIn(t, Options{})
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
}

func TestLoadRejectsInvalidEnvironment(t *testing.T) {
	t.Setenv("ROWVIEW_GRID_PAGE_SIZE", "0")
	_, err := Load(Options{SearchPaths: []string{t.TempDir()}, DefaultDBPath: "x.db"})
	if err == nil {
		t.Error("Load() should reject page_size 0")
	}
}
