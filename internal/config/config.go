package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// NOTE: This file provides the configuration model and YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions. The API token is never part of the YAML file; it comes from
// the environment or from the token file written by `sportkeeper login`.

const (
	defaultAPIURL       = "http://localhost:8080"
	defaultListen       = "127.0.0.1:8090"
	defaultTimezone     = "Europe/Madrid"
	defaultRefresh      = "*/5 * * * *"
	defaultCacheDir     = "./var/slot-cache"
	defaultHorizonDays  = 60
	defaultSlotCapacity = 30
)

// Environment variables that override file values.
const (
	EnvAPIURL   = "SPORTKEEPER_API_URL"
	EnvToken    = "SPORTKEEPER_TOKEN"
	EnvListen   = "SPORTKEEPER_LISTEN"
	EnvLogLevel = "SPORTKEEPER_LOG_LEVEL"
)

// BasicAuthConfig protects the local web console. PasswordHash is a bcrypt hash.
type BasicAuthConfig struct {
	Username     string `yaml:"username" json:"username"`
	PasswordHash string `yaml:"password_hash" json:"-"`
}

// RecurrenceConfig holds defaults for recurring slot creation.
type RecurrenceConfig struct {
	// HorizonDays is how far a recurrence runs when no end date is given.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`
	// DefaultWeekdays preselects weekdays for weekly rules (1=Monday .. 7=Sunday).
	DefaultWeekdays []int `yaml:"default_weekdays" json:"default_weekdays"`
}

// SlotDefaults are prefilled into new slot forms.
type SlotDefaults struct {
	Capacity int `yaml:"capacity" json:"capacity"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	// APIURL is the base URL of the remote SportKeeper API.
	APIURL string `yaml:"api_url" json:"api_url"`

	// Listen is the HTTP listen address of the local web console.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used to interpret local wall-clock slot times.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is informational for the UI; the month grid is Monday-first.
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron schedules background refreshes of the slot listing.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CacheDir holds the on-disk copy of the last slot listing.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	Recurrence   RecurrenceConfig `yaml:"recurrence" json:"recurrence"`
	SlotDefaults SlotDefaults     `yaml:"slot_defaults" json:"slot_defaults"`
	Log          LogConfig        `yaml:"log" json:"log"`

	// CORSOrigins lists browser origins allowed to call the console API.
	CORSOrigins []string `yaml:"cors_origins,omitempty" json:"cors_origins,omitempty"`

	// BasicAuth, if set, enables HTTP Basic Authentication on all console
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	// Token is the bearer credential for the remote API. Never persisted here.
	Token string `yaml:"-" json:"-"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		APIURL:      defaultAPIURL,
		Listen:      defaultListen,
		Timezone:    defaultTimezone,
		WeekStart:   "monday",
		RefreshCron: defaultRefresh,
		CacheDir:    defaultCacheDir,
		Recurrence: RecurrenceConfig{
			HorizonDays:     defaultHorizonDays,
			DefaultWeekdays: []int{1, 2, 3, 4, 5},
		},
		SlotDefaults: SlotDefaults{Capacity: defaultSlotCapacity},
		Log:          LogConfig{Level: "info", Format: "console"},
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.APIURL == "" {
		c.APIURL = defaultAPIURL
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	// Only a Monday-first grid is rendered; other values are coerced.
	c.WeekStart = "monday"
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.Recurrence.HorizonDays <= 0 {
		c.Recurrence.HorizonDays = defaultHorizonDays
	}
	days := c.Recurrence.DefaultWeekdays[:0:0]
	for _, d := range c.Recurrence.DefaultWeekdays {
		if d >= 1 && d <= 7 {
			days = append(days, d)
		}
	}
	if len(days) == 0 {
		days = []int{1, 2, 3, 4, 5}
	}
	c.Recurrence.DefaultWeekdays = days
	if c.SlotDefaults.Capacity <= 0 {
		c.SlotDefaults.Capacity = defaultSlotCapacity
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.PasswordHash == "") {
		c.BasicAuth = nil
	}
}

// ApplyEnv loads an optional .env file and applies SPORTKEEPER_* overrides.
// A missing .env file is not an error.
func (c *Config) ApplyEnv(envFiles ...string) error {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		c.APIURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(os.Getenv(EnvListen)); v != "" {
		c.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvToken)); v != "" {
		c.Token = v
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
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
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file + rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data)
}

// Save delegates to the package-level Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// WriteFileAtomic writes data to path via a temp file in the same directory,
// creating the directory (0700) if needed. The final file is 0600.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".sportkeeper-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
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
