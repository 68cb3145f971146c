package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"
)

// Config holds all application configuration
type Config struct {
	Version   int             `toml:"version"`
	Warehouse WarehouseConfig `toml:"warehouse"`
	Snapshot  SnapshotConfig  `toml:"snapshot"`
	API       APIConfig       `toml:"api"`
	Schedule  ScheduleConfig  `toml:"schedule"`
	Signal    SignalConfig    `toml:"signal"`
	Dashboard DashboardConfig `toml:"dashboard"`
	Log       LogConfig       `toml:"log"`
}

type WarehouseConfig struct {
	Path string `toml:"path"`
}

type SnapshotConfig struct {
	Path  string `toml:"path"`
	Table string `toml:"table"`
}

type APIConfig struct {
	BaseURL        string   `toml:"base_url"`
	TopStories     int      `toml:"top_stories"`
	ProgressEvery  int      `toml:"progress_every"`
	RequestTimeout Duration `toml:"request_timeout"`
}

type ScheduleConfig struct {
	Enabled      bool     `toml:"enabled"`
	Timezone     string   `toml:"timezone"`
	APICron      string   `toml:"api_cron"`
	SnapshotCron string   `toml:"snapshot_cron"`
	JobTimeout   Duration `toml:"job_timeout"`
}

type SignalConfig struct {
	Provider string `toml:"provider"`
	Path     string `toml:"path"`
}

type DashboardConfig struct {
	Enabled      bool     `toml:"enabled"`
	Addr         string   `toml:"addr"`
	PollInterval Duration `toml:"poll_interval"`
}

type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// Duration wraps time.Duration so it can be written as "30s" in TOML
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Warehouse: WarehouseConfig{
			Path: "data/hnpipe.db",
		},
		Snapshot: SnapshotConfig{
			Path:  "data/hackernews.sqlite",
			Table: "api_ingest",
		},
		API: APIConfig{
			BaseURL:        "https://hacker-news.firebaseio.com",
			TopStories:     100,
			ProgressEvery:  20,
			RequestTimeout: Duration{30 * time.Second},
		},
		Schedule: ScheduleConfig{
			Enabled:      true,
			Timezone:     "Local",
			APICron:      "0 * * * *",
			SnapshotCron: "*/15 * * * *",
			JobTimeout:   Duration{30 * time.Minute},
		},
		Signal: SignalConfig{
			Provider: "file",
			Path:     "frontend/reload_signal.txt",
		},
		Dashboard: DashboardConfig{
			Enabled:      true,
			Addr:         "127.0.0.1:8502",
			PollInterval: Duration{time.Second},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks the fields the pipeline cannot run without
func (c *Config) Validate() error {
	var errs []error

	if c.Warehouse.Path == "" {
		errs = append(errs, errors.New("warehouse.path is required"))
	}
	if c.Snapshot.Table == "" {
		errs = append(errs, errors.New("snapshot.table is required"))
	}
	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	}
	if c.API.TopStories <= 0 {
		errs = append(errs, fmt.Errorf("api.top_stories must be positive, got %d", c.API.TopStories))
	}
	if c.Signal.Path == "" {
		errs = append(errs, errors.New("signal.path is required"))
	}
	if c.Dashboard.PollInterval.Duration <= 0 {
		errs = append(errs, errors.New("dashboard.poll_interval must be positive"))
	}
	if c.Schedule.Enabled {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		for name, expr := range map[string]string{
			"schedule.api_cron":      c.Schedule.APICron,
			"schedule.snapshot_cron": c.Schedule.SnapshotCron,
		} {
			if _, err := parser.Parse(expr); err != nil {
				errs = append(errs, fmt.Errorf("%s %q: %w", name, expr, err))
			}
		}
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("schedule.timezone %q: %w", c.Schedule.Timezone, err))
		}
	}

	return errors.Join(errs...)
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "hnpipe"), nil
}

// ConfigPath returns the full path to the default config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads config from path. An empty path means ConfigPath().
// Keys missing from the file keep their default values.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrCreate loads the config at path, writing the defaults there on first run.
func LoadOrCreate(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, err
	}

	cfg = Default()
	if err := cfg.Save(path); err != nil {
		return cfg, false, err
	}
	return cfg, true, nil
}

// Save writes config to path. An empty path means ConfigPath().
func (c *Config) Save(path string) error {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
