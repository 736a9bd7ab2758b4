// ABOUTME: Entry point for the rowview server.
// ABOUTME: Wires config, store, row source, grids and HTTP handlers behind cobra commands.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"maps"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/2389/rowview/internal/admin"
	"github.com/2389/rowview/internal/api"
	"github.com/2389/rowview/internal/config"
	"github.com/2389/rowview/internal/datasource"
	"github.com/2389/rowview/internal/events"
	"github.com/2389/rowview/internal/grid"
	"github.com/2389/rowview/internal/logging"
	"github.com/2389/rowview/internal/seed"
	"github.com/2389/rowview/internal/store"
)

const defaultSeedCount = 100

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "rowview",
		Short: "rowview - paged grid viewer over a simulated row backend",
		Long: `rowview serves paged, column-configurable views over a large generated dataset.

Each row carries nested blobs (payload, extra fields, collapsible data) whose
keys can be expanded into their own columns per row or per key.

Quick Start:
  rowview seed          # Materialize rows up front
  rowview serve         # Start server on port 9000
  rowview reset         # Wipe and reseed database
  rowview summary       # Row counts by country`,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default ./rowview.yaml)")

	// Calculate default database path once (not per-command)
	defaultDBPath := getDefaultDBPath()

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the rowview HTTP server.

The server provides:
  • Grid API at http://localhost:PORT/api/grids/{grid}
  • Live grid events at ws://localhost:PORT/api/grids/{grid}/ws
  • Admin UI at http://localhost:PORT/admin
  • Health check at http://localhost:PORT/healthz

Environment Variables:
  ROWVIEW_SERVER_PORT       Server port (default: 9000)
  ROWVIEW_GRID_PAGE_SIZE    Rows per page (default: 10)
  ROWVIEW_GRID_TOTAL_ROWS   Advertised row count (default: 1000)
  ROWVIEW_GRID_LATENCY_MS   Simulated fetch delay
  OPENAI_API_KEY            Enable AI-generated vocabulary`,
		RunE: runServe,
	}
	serveFlags := serveCmd.Flags()
	serveFlags.StringP("port", "p", "9000", "Port to listen on")
	serveFlags.StringP("db", "d", defaultDBPath, "Database path")
	serveFlags.Int("page-size", 10, "Rows per page")
	serveFlags.Int("total-rows", 1000, "Advertised row count")
	serveFlags.Int("latency", 0, "Simulated fetch delay in milliseconds")
	serveFlags.Bool("serialize", false, "Collapse concurrent fetches of the same range")
	serveFlags.Bool("cascade", false, "Contracting a row also contracts its expanded keys")

	seedCmd := &cobra.Command{
		Use:   "seed [count]",
		Short: "Seed the database with generated rows",
		Long: `Generate rows and persist them so the first pages load without materializing.

AI-Powered Generation:
  Set OPENAI_API_KEY to generate the word and country vocabulary with AI.
  Falls back to a static vocabulary if no API key is provided.

Usage:
  rowview seed          # Seed 100 rows
  rowview seed 5000     # Seed 5000 rows

Note: Seed appends. Use 'rowview reset' to clear data before reseeding.`,
		RunE: runSeed,
		Args: cobra.MaximumNArgs(1),
	}
	seedCmd.Flags().StringP("db", "d", defaultDBPath, "Database path")

	resetCmd := &cobra.Command{
		Use:   "reset [count]",
		Short: "Reset the database (wipe and reseed)",
		Long: `Delete the database file and create a fresh one with new rows.

Warning: This permanently deletes all rows and request logs!`,
		RunE: runReset,
		Args: cobra.MaximumNArgs(1),
	}
	resetCmd.Flags().StringP("db", "d", defaultDBPath, "Database path")

	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Print row counts grouped by country",
		RunE:  runSummary,
		Args:  cobra.NoArgs,
	}
	summaryCmd.Flags().StringP("db", "d", defaultDBPath, "Database path")

	listPayloadsCmd := &cobra.Command{
		Use:   "list-payloads",
		Short: "Print stored payload blobs as indented JSON",
		Long: `Print the payload blob of each stored row in collection order.

Usage:
  rowview list-payloads                     # Every row
  rowview list-payloads --country Peru -n 5 # First 5 rows from Peru`,
		RunE: runListPayloads,
		Args: cobra.NoArgs,
	}
	listPayloadsFlags := listPayloadsCmd.Flags()
	listPayloadsFlags.StringP("db", "d", defaultDBPath, "Database path")
	listPayloadsFlags.String("country", "", "Only rows from this country")
	listPayloadsFlags.IntP("limit", "n", 0, "Maximum rows to print (0 for all)")

	rootCmd.AddCommand(serveCmd, seedCmd, resetCmd, summaryCmd, listPayloadsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(config.Options{
		File:          configFile,
		Flags:         flags,
		DefaultDBPath: getDefaultDBPath(),
	})
	if err != nil {
		return nil, err
	}
	cfg.Database.Path, err = validateAndCleanDBPath(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if cfg.File != "" {
		log.Printf("Config: %s", cfg.File)
	}
	return cfg, nil
}

// validateAndCleanDBPath validates and cleans a database path.
// Handles Unix/Linux, macOS, and Windows paths (including UNC and drive letters).
func validateAndCleanDBPath(path string) (string, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == ":memory:" {
		return cleanPath, nil
	}
	cleanPath = filepath.Clean(cleanPath)

	// Reject empty and root-like paths
	if cleanPath == "" || cleanPath == "." || cleanPath == "/" {
		return "", fmt.Errorf("database path cannot be empty, '.', or '/'")
	}

	// Windows: reject bare drive letters (e.g., "C:", "D:")
	if runtime.GOOS == "windows" && len(cleanPath) == 2 && cleanPath[1] == ':' {
		return "", fmt.Errorf("database path cannot be a bare drive letter")
	}

	if strings.Contains(cleanPath, "..") {
		return "", fmt.Errorf("database path cannot contain '..'")
	}

	badPatterns := []string{
		".git",
		".svn",
		"node_modules",
		".env",
		"credentials",
		"secret",
	}
	lowerPath := strings.ToLower(cleanPath)
	for _, pattern := range badPatterns {
		if strings.Contains(lowerPath, pattern) {
			return "", fmt.Errorf("database path cannot contain '%s' directory", pattern)
		}
	}

	return cleanPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	srv, err := newServer(cfg)
	if err != nil {
		return err
	}

	addr := ":" + cfg.Server.Port
	log.Printf("rowview server listening on %s", addr)
	log.Printf("Database: %s", cfg.Database.Path)
	log.Printf("Grids: page size %d, %d rows, latency %s", cfg.Grid.PageSize, cfg.Grid.TotalRows, cfg.Latency())
	return http.ListenAndServe(addr, srv)
}

func newGenerator(cfg *config.Config) *seed.Generator {
	opts := []seed.Option{}
	if !cfg.Seed.UseAI {
		opts = append(opts, seed.WithoutAI())
	}
	if cfg.Seed.Model != "" {
		opts = append(opts, seed.WithModel(cfg.Seed.Model))
	}
	gen := seed.NewGenerator(opts...)
	if gen.UsesAI() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		// failures keep the static vocabulary
		_ = gen.PrepareVocabulary(ctx)
	}
	return gen
}

func newServer(cfg *config.Config) (http.Handler, error) {
	s, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	kinds, err := cfg.GridKinds()
	if err != nil {
		return nil, err
	}

	src, err := datasource.NewSQLSource(s, newGenerator(cfg), cfg.Grid.TotalRows, datasource.WithLatency(cfg.Latency()))
	if err != nil {
		return nil, err
	}

	hub := events.NewHub()
	grids := grid.NewRegistry(func(name string) (*grid.Grid, error) {
		return grid.New(grid.Options{
			Name:             name,
			PageSize:         cfg.Grid.PageSize,
			CoreColumns:      cfg.Grid.CoreColumns,
			Kinds:            kinds,
			Cascade:          cfg.Grid.CascadeCollapse,
			SerializeFetches: cfg.Grid.SerializeFetches,
			Notifier:         hub,
		}, src)
	}, grid.WithAllowedNames(cfg.Grid.Names...), grid.WithMaxGrids(cfg.Grid.MaxGrids))

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(logging.Middleware(s))

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	})

	// Favicon
	r.Get("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	api.NewHandlers(grids, hub, s).RegisterRoutes(r)
	admin.NewHandlers(grids, s, cfg.Grid.Default).RegisterRoutes(r)

	return r, nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	count, err := seedCount(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	s, err := store.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer s.Close()

	return seedRows(cmd.Context(), s, newGenerator(cfg), count)
}

func runReset(cmd *cobra.Command, args []string) error {
	count, err := seedCount(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	// Remove existing database - ignore if file doesn't exist
	for _, p := range []string{cfg.Database.Path, cfg.Database.Path + "-wal", cfg.Database.Path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove existing database: %w", err)
		}
	}

	s, err := store.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer s.Close()

	return seedRows(cmd.Context(), s, newGenerator(cfg), count)
}

func runSummary(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	s, err := store.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	total, err := s.CountRows(ctx)
	if err != nil {
		return err
	}
	stats, err := s.CountRowsByCountry(ctx)
	if err != nil {
		return err
	}
	writeSummary(cmd.OutOrStdout(), total, stats)
	return nil
}

func runListPayloads(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	country, _ := cmd.Flags().GetString("country")
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := store.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	payloads, err := s.ListPayloads(ctx, country, limit)
	if err != nil {
		return err
	}
	writePayloads(cmd.OutOrStdout(), payloads)
	return nil
}

// writeSummary prints the total followed by per-country counts in name order.
func writeSummary(w io.Writer, total int, stats map[string]int) {
	fmt.Fprintf(w, "Total rows: %d\n", total)
	for _, country := range slices.Sorted(maps.Keys(stats)) {
		fmt.Fprintf(w, "%s: %d\n", country, stats[country])
	}
}

// writePayloads prints each payload indented; blobs that are not JSON print as stored.
func writePayloads(w io.Writer, payloads []store.Payload) {
	for _, p := range payloads {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, []byte(p.Raw), "", "  "); err != nil {
			fmt.Fprintf(w, "[%s] %s\n", p.RowID, p.Raw)
			continue
		}
		fmt.Fprintf(w, "[%s] %s\n", p.RowID, pretty.String())
	}
}

func seedCount(args []string) (int, error) {
	if len(args) == 0 {
		return defaultSeedCount, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("count must be a positive integer, got %q", args[0])
	}
	return n, nil
}

func seedRows(ctx context.Context, s *store.Store, gen *seed.Generator, count int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log.Printf("Seeding database with %d rows...", count)

	if err := s.InsertRows(ctx, gen.Generate(count)); err != nil {
		return fmt.Errorf("failed to seed rows: %w", err)
	}
	total, err := s.CountRows(ctx)
	if err != nil {
		return err
	}

	log.Printf("\nSeeding complete! Created %d rows (%d total)", count, total)
	return nil
}

// getDefaultDBPath returns the default database path following XDG Base Directory spec
// Priority: ROWVIEW_DB_PATH env var > ./rowview.db > XDG_DATA_HOME/rowview/rowview.db
func getDefaultDBPath() string {
	if envPath := os.Getenv("ROWVIEW_DB_PATH"); envPath != "" {
		envPath = filepath.Clean(strings.TrimSpace(envPath))
		if envPath == "" || envPath == "." {
			log.Printf("Warning: ROWVIEW_DB_PATH is invalid (empty or '.'), using default path")
		} else {
			return envPath
		}
	}

	cwdPath := "./rowview.db"
	if _, err := os.Stat(cwdPath); err == nil {
		return cwdPath
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil || homeDir == "" || homeDir == "/" {
			log.Printf("Warning: Could not determine valid home directory (%q): %v, using ./rowview.db", homeDir, err)
			return cwdPath
		}

		// Windows: %LOCALAPPDATA% or ~/AppData/Local
		// Unix/Linux/macOS: ~/.local/share (XDG spec)
		if runtime.GOOS == "windows" {
			dataHome = os.Getenv("LOCALAPPDATA")
			if dataHome == "" {
				dataHome = filepath.Join(homeDir, "AppData", "Local")
			}
		} else {
			dataHome = filepath.Join(homeDir, ".local", "share")
		}
	}

	dataDir := filepath.Join(dataHome, "rowview")
	xdgDBPath := filepath.Join(dataDir, "rowview.db")

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Printf("Warning: Could not create data directory %s: %v, using ./rowview.db", dataDir, err)
		return cwdPath
	}

	testFile := filepath.Join(dataDir, ".write-test")
	f, err := os.Create(testFile)
	if err != nil {
		log.Printf("Warning: Cannot write to data directory %s: %v, using ./rowview.db", dataDir, err)
		return cwdPath
	}
	if err := f.Close(); err != nil {
		log.Printf("Warning: Error closing test file: %v", err)
	}
	if err := os.Remove(testFile); err != nil {
		log.Printf("Warning: Could not remove test file %s: %v", testFile, err)
	}

	// Only log in debug mode to avoid polluting --help output
	if os.Getenv("ROWVIEW_DEBUG") != "" {
		log.Printf("Using database location: %s", xdgDBPath)
	}

	return xdgDBPath
}
