package config

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and full load/save
// behavior, including first-run config creation and 0600 permissions.
// Files ending in .toml are read and written as TOML, everything else as YAML.

const (
	DefaultListen             = "127.0.0.1:8080"
	DefaultBasePath           = "/coupe-de-france/"
	DefaultProductID          = "-//Coupe de France//Planning benevoles//FR"
	DefaultFallbackDate       = "2026-04-02"
	DefaultMultiEventFilename = "planning.ics"
	DefaultStoreDriver        = "memory"
	DefaultPrintTimeoutSec    = 30
	DefaultReadySelector      = "body"
)

// StoreConfig selects the selection store backend.
type StoreConfig struct {
	// Driver is one of "memory", "bolt", "sqlite", "postgres".
	Driver string `yaml:"driver" toml:"driver" json:"driver"`
	// DSN is the file path (bolt, sqlite) or connection string (postgres).
	DSN string `yaml:"dsn" toml:"dsn" json:"dsn"`
}

// CalendarConfig controls ICS export.
type CalendarConfig struct {
	// ProductID is emitted as PRODID.
	ProductID string `yaml:"product_id" toml:"product_id" json:"product_id"`
	// FallbackDate (YYYY-MM-DD) anchors events that carry no day.
	FallbackDate string `yaml:"fallback_date" toml:"fallback_date" json:"fallback_date"`
	// MultiEventFilename is used whenever more than one event is exported.
	MultiEventFilename string `yaml:"multi_event_filename" toml:"multi_event_filename" json:"multi_event_filename"`
}

// PrintConfig controls the headless Chromium print channel.
type PrintConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled" json:"enabled"`
	// URL of the page to print. If empty, derived from Listen and BasePath.
	URL string `yaml:"url" toml:"url" json:"url"`
	// ReadySelector is waited for before printing.
	ReadySelector  string `yaml:"ready_selector" toml:"ready_selector" json:"ready_selector"`
	TimeoutSeconds int    `yaml:"timeout_seconds" toml:"timeout_seconds" json:"timeout_seconds"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the App and API.
type BasicAuthConfig struct {
	Username string `yaml:"username" toml:"username" json:"username"`
	Password string `yaml:"password" toml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" toml:"listen" json:"listen"`

	// BasePath is the URL prefix the App bundle is served under.
	BasePath string `yaml:"base_path" toml:"base_path" json:"base_path"`

	// PlanningFile and BenevolesFile are the static datasets handed to the
	// App as flags. Their content is opaque JSON.
	PlanningFile  string `yaml:"planning_file" toml:"planning_file" json:"planning_file"`
	BenevolesFile string `yaml:"benevoles_file" toml:"benevoles_file" json:"benevoles_file"`

	// ReloadCron is a cron-style schedule (e.g. "*/5 * * * *") used to
	// re-read the datasets. Empty disables reloading.
	ReloadCron string `yaml:"reload" toml:"reload" json:"reload"`

	Store    StoreConfig    `yaml:"store" toml:"store" json:"store"`
	Calendar CalendarConfig `yaml:"calendar" toml:"calendar" json:"calendar"`
	Print    PrintConfig    `yaml:"print" toml:"print" json:"print"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" toml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   DefaultListen,
		BasePath: DefaultBasePath,
		Store: StoreConfig{
			Driver: DefaultStoreDriver,
		},
		Calendar: CalendarConfig{
			ProductID:          DefaultProductID,
			FallbackDate:       DefaultFallbackDate,
			MultiEventFilename: DefaultMultiEventFilename,
		},
		Print: PrintConfig{
			ReadySelector:  DefaultReadySelector,
			TimeoutSeconds: DefaultPrintTimeoutSec,
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.BasePath == "" {
		c.BasePath = DefaultBasePath
	}
	if !strings.HasPrefix(c.BasePath, "/") {
		c.BasePath = "/" + c.BasePath
	}
	if !strings.HasSuffix(c.BasePath, "/") {
		c.BasePath += "/"
	}

	if c.Store.Driver == "" {
		c.Store.Driver = DefaultStoreDriver
	}
	c.Store.Driver = strings.ToLower(c.Store.Driver)

	if c.Calendar.ProductID == "" {
		c.Calendar.ProductID = DefaultProductID
	}
	// Unparsable fallback dates fall back to the default to keep exports working.
	if _, err := time.Parse(time.DateOnly, c.Calendar.FallbackDate); err != nil {
		c.Calendar.FallbackDate = DefaultFallbackDate
	}
	if c.Calendar.MultiEventFilename == "" {
		c.Calendar.MultiEventFilename = DefaultMultiEventFilename
	}

	if c.Print.ReadySelector == "" {
		c.Print.ReadySelector = DefaultReadySelector
	}
	if c.Print.TimeoutSeconds <= 0 {
		c.Print.TimeoutSeconds = DefaultPrintTimeoutSec
	}
}

// FallbackDay returns Calendar.FallbackDate as a date.
func (c *Config) FallbackDay() time.Time {
	t, err := time.Parse(time.DateOnly, c.Calendar.FallbackDate)
	if err != nil {
		t, _ = time.Parse(time.DateOnly, DefaultFallbackDate)
	}
	return t
}

// PrintURL returns the page the print channel renders.
func (c *Config) PrintURL() string {
	if c.Print.URL != "" {
		return c.Print.URL
	}
	return "http://" + c.Listen + c.BasePath
}

// PrintTimeout returns Print.TimeoutSeconds as a duration.
// BasicAuthEnabled reports whether HTTP Basic Auth is configured. Blank
// credentials count as disabled.
func (c *Config) BasicAuthEnabled() bool {
	if c == nil || c.BasicAuth == nil {
		return false
	}
	return c.BasicAuth.Username != "" && c.BasicAuth.Password != ""
}

func (c *Config) PrintTimeout() time.Duration {
	return time.Duration(c.Print.TimeoutSeconds) * time.Second
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Load loads configuration from the given path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML (or TOML) and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if isTOML(path) {
		err = toml.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

func marshal(path string, cfg *Config) ([]byte, error) {
	if !isTOML(path) {
		return yaml.Marshal(cfg)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML or TOML depending on the extension.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := marshal(path, cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".cdfplan-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
