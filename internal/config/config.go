// ABOUTME: Layered configuration: defaults, optional YAML file, ROWVIEW_* environment, then CLI flags.
// ABOUTME: Produces the validated settings for the server, the store, grids and row generation.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/2389/rowview/internal/rows"
)

const envPrefix = "ROWVIEW"

type Config struct {
	Server struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`
	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	Grid struct {
		Default          string   `mapstructure:"default"`
		Names            []string `mapstructure:"names"`
		MaxGrids         int      `mapstructure:"max_grids"`
		PageSize         int      `mapstructure:"page_size"`
		TotalRows        int      `mapstructure:"total_rows"`
		CoreColumns      []string `mapstructure:"core_columns"`
		Kinds            []string `mapstructure:"kinds"`
		LatencyMs        int      `mapstructure:"latency_ms"`
		SerializeFetches bool     `mapstructure:"serialize_fetches"`
		CascadeCollapse  bool     `mapstructure:"cascade_collapse"`
	} `mapstructure:"grid"`
	Seed struct {
		UseAI bool   `mapstructure:"use_ai"`
		Model string `mapstructure:"model"`
	} `mapstructure:"seed"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// Options controls where Load looks for settings.
type Options struct {
	// File is an explicit config file; it must exist when set.
	File string
	// SearchPaths are tried for rowview.yaml when File is empty.
	SearchPaths []string
	// Flags overrides keys whose flag was set. Flag names map to keys via FlagKeys.
	Flags *pflag.FlagSet
	// DefaultDBPath is used when no layer sets database.path.
	DefaultDBPath string
}

// FlagKeys maps CLI flag names to config keys.
var FlagKeys = map[string]string{
	"port":       "server.port",
	"db":         "database.path",
	"page-size":  "grid.page_size",
	"total-rows": "grid.total_rows",
	"latency":    "grid.latency_ms",
	"serialize":  "grid.serialize_fetches",
	"cascade":    "grid.cascade_collapse",
}

func setDefaults(v *viper.Viper, dbPath string) {
	v.SetDefault("server.port", "9000")
	v.SetDefault("database.path", dbPath)
	v.SetDefault("grid.default", "main")
	v.SetDefault("grid.names", []string{})
	v.SetDefault("grid.max_grids", 16)
	v.SetDefault("grid.page_size", 10)
	v.SetDefault("grid.total_rows", 1000)
	v.SetDefault("grid.core_columns", rows.CoreKeys())
	v.SetDefault("grid.kinds", []string{"payload", "extraData:*", "collapsibleData"})
	v.SetDefault("grid.latency_ms", 0)
	v.SetDefault("grid.serialize_fetches", false)
	v.SetDefault("grid.cascade_collapse", false)
	v.SetDefault("seed.use_ai", true)
	v.SetDefault("seed.model", "gpt-5-mini")
}

// Load resolves the configuration and validates it.
func Load(opts Options) (*Config, error) {
	// .env may carry ROWVIEW_* and OPENAI_* variables
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, opts.DefaultDBPath)

	if opts.File != "" {
		path, err := expandTilde(opts.File)
		if err != nil {
			return nil, err
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("rowview")
		paths := opts.SearchPaths
		if len(paths) == 0 {
			paths = []string{"."}
		}
		for _, p := range paths {
			v.AddConfigPath(p)
		}
	}
	v.SetConfigType("yaml")

	v.AutomaticEnv()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if opts.Flags != nil {
		for name, key := range FlagKeys {
			f := opts.Flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if cfg.Database.Path, _ = expandTilde(cfg.Database.Path); cfg.Database.Path == "" {
		return nil, fmt.Errorf("database.path is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values no layer may leave invalid.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port == "":
		return fmt.Errorf("server.port is required")
	case c.Grid.Default == "":
		return fmt.Errorf("grid.default is required")
	case c.Grid.PageSize <= 0:
		return fmt.Errorf("grid.page_size must be greater than 0, got %d", c.Grid.PageSize)
	case c.Grid.TotalRows < 0:
		return fmt.Errorf("grid.total_rows must not be negative, got %d", c.Grid.TotalRows)
	case len(c.Grid.CoreColumns) == 0:
		return fmt.Errorf("grid.core_columns must not be empty")
	case c.Grid.MaxGrids < 0:
		return fmt.Errorf("grid.max_grids must not be negative, got %d", c.Grid.MaxGrids)
	case len(c.Grid.Names) > 0 && !slices.Contains(c.Grid.Names, c.Grid.Default):
		return fmt.Errorf("grid.default %q is not in grid.names", c.Grid.Default)
	case c.Grid.LatencyMs < 0:
		return fmt.Errorf("grid.latency_ms must not be negative, got %d", c.Grid.LatencyMs)
	}
	if _, err := c.GridKinds(); err != nil {
		return err
	}
	return nil
}

// GridKinds parses grid.kinds.
func (c *Config) GridKinds() ([]rows.Kind, error) {
	kinds := make([]rows.Kind, 0, len(c.Grid.Kinds))
	for _, s := range c.Grid.Kinds {
		k, err := rows.ParseKind(s)
		if err != nil {
			return nil, fmt.Errorf("grid.kinds: %w", err)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// Latency is the simulated fetch delay.
func (c *Config) Latency() time.Duration {
	return time.Duration(c.Grid.LatencyMs) * time.Millisecond
}

func expandTilde(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}
