// Package config loads the immutable coachsync configuration.
//
// Configuration is read with viper from coachsync.toml (or .yaml) in the
// working directory or ~/.config/coachsync, with COACHSYNC_* environment
// overrides for scalar keys. A missing file means built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lhn-coaching/coachsync/internal/retry"
	"github.com/lhn-coaching/coachsync/internal/sheets"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full coachsync configuration. It is treated as immutable
// once loaded; components receive it at construction.
type Config struct {
	// Workbook is the path of the workbook holding the queue and rosters.
	Workbook string `mapstructure:"workbook" toml:"workbook" yaml:"workbook"`

	// Ledger is the path of the SQLite run ledger. "off" disables it.
	Ledger string `mapstructure:"ledger" toml:"ledger" yaml:"ledger"`

	// DefaultPay is used for coaches missing from the pay table and for
	// pay values that cannot be read as an amount.
	DefaultPay string `mapstructure:"default_pay" toml:"default_pay" yaml:"default_pay"`

	// CoachTagPrefix is the prefix every queue tag must carry ("Coach: ").
	CoachTagPrefix string `mapstructure:"coach_tag_prefix" toml:"coach_tag_prefix" yaml:"coach_tag_prefix"`

	// Coaches lists the coach sheets in scan order together with their pay.
	Coaches []Coach `mapstructure:"coaches" toml:"coaches" yaml:"coaches"`

	Queue  QueueConfig  `mapstructure:"queue" toml:"queue" yaml:"queue"`
	Roster RosterConfig `mapstructure:"roster" toml:"roster" yaml:"roster"`
	Retry  RetryConfig  `mapstructure:"retry" toml:"retry" yaml:"retry"`
	Log    LogConfig    `mapstructure:"log" toml:"log" yaml:"log"`
	Watch  WatchConfig  `mapstructure:"watch" toml:"watch" yaml:"watch"`
}

// Coach is one coach sheet and the pay rate written for new clients.
type Coach struct {
	Sheet string `mapstructure:"sheet" toml:"sheet" yaml:"sheet"`
	Pay   string `mapstructure:"pay" toml:"pay" yaml:"pay"`
}

// QueueConfig names the sync queue sheet and its columns.
type QueueConfig struct {
	Sheet           string `mapstructure:"sheet" toml:"sheet" yaml:"sheet"`
	NameColumn      string `mapstructure:"name_column" toml:"name_column" yaml:"name_column"`
	TagColumn       string `mapstructure:"tag_column" toml:"tag_column" yaml:"tag_column"`
	TimestampColumn string `mapstructure:"timestamp_column" toml:"timestamp_column" yaml:"timestamp_column"`
	SyncedColumn    string `mapstructure:"synced_column" toml:"synced_column" yaml:"synced_column"`
	SyncedMarker    string `mapstructure:"synced_marker" toml:"synced_marker" yaml:"synced_marker"`
}

// RosterConfig names the columns of every coach sheet.
type RosterConfig struct {
	CoachColumn  string `mapstructure:"coach_column" toml:"coach_column" yaml:"coach_column"`
	ClientColumn string `mapstructure:"client_column" toml:"client_column" yaml:"client_column"`
	PayColumn    string `mapstructure:"pay_column" toml:"pay_column" yaml:"pay_column"`
}

// RetryConfig configures the store retry policy.
type RetryConfig struct {
	MaxAttempts      int     `mapstructure:"max_attempts" toml:"max_attempts" yaml:"max_attempts"`
	InitialBackoffMS int     `mapstructure:"initial_backoff_ms" toml:"initial_backoff_ms" yaml:"initial_backoff_ms"`
	MaxBackoffMS     int     `mapstructure:"max_backoff_ms" toml:"max_backoff_ms" yaml:"max_backoff_ms"`
	Multiplier       float64 `mapstructure:"multiplier" toml:"multiplier" yaml:"multiplier"`
	Jitter           float64 `mapstructure:"jitter" toml:"jitter" yaml:"jitter"`
}

// LogConfig configures the rotating log file. An empty File logs to stderr only.
type LogConfig struct {
	File       string `mapstructure:"file" toml:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" toml:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" toml:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" toml:"compress" yaml:"compress"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	DebounceMS int `mapstructure:"debounce_ms" toml:"debounce_ms" yaml:"debounce_ms"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Workbook:       "LHN Client + Coach Weekly.xlsx",
		Ledger:         filepath.Join(".coachsync", "ledger.db"),
		DefaultPay:     "$100.00",
		CoachTagPrefix: "Coach: ",
		Coaches: []Coach{
			{Sheet: "Coach: Olivia Hill", Pay: "$250.00"},
			{Sheet: "Coach: Meghan Lindsay", Pay: "$125.00"},
			{Sheet: "Coach: Beth Winiger", Pay: "$125.00"},
			{Sheet: "Coach: Brittany Burris", Pay: "$125.00"},
			{Sheet: "Coach: Megan Argueta", Pay: "$125.00"},
			{Sheet: "Coach: Leah Davis", Pay: "$125.00"},
		},
		Queue: QueueConfig{
			Sheet:           "Sync Queue",
			NameColumn:      "Full Name",
			TagColumn:       "New Tag",
			TimestampColumn: "Timestamp",
			SyncedColumn:    "Synced",
			SyncedMarker:    "✅",
		},
		Roster: RosterConfig{
			CoachColumn:  "Assigned Coach",
			ClientColumn: "Client Name",
			PayColumn:    "Coach's Pay Rate",
		},
		Retry: RetryConfig{
			MaxAttempts:      5,
			InitialBackoffMS: 500,
			MaxBackoffMS:     8000,
			Multiplier:       2,
			Jitter:           0.2,
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Watch: WatchConfig{
			DebounceMS: 1500,
		},
	}
}

// envKeys are the keys that may be set through COACHSYNC_* variables.
var envKeys = []string{"workbook", "ledger", "default_pay", "log.file"}

// Load reads the configuration. An explicit path must exist; without one,
// coachsync.{toml,yaml} is searched in the working directory and then in
// ~/.config/coachsync, and defaults are used when nothing is found.
//
// The returned configuration has been validated.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("COACHSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("coachsync")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "coachsync"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: failed to read config: %v", ErrInvalidConfig, err)
		}
	}

	// Decode into a zero value so that list entries from the file never
	// inherit fields from the default coach list.
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to decode config: %v", ErrInvalidConfig, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills every unset field from Default.
func (c *Config) applyDefaults() {
	d := Default()

	setString := func(dst *string, def string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = def
		}
	}
	setInt := func(dst *int, def int) {
		if *dst == 0 {
			*dst = def
		}
	}

	setString(&c.Workbook, d.Workbook)
	setString(&c.Ledger, d.Ledger)
	setString(&c.DefaultPay, d.DefaultPay)
	if c.CoachTagPrefix == "" {
		c.CoachTagPrefix = d.CoachTagPrefix
	}
	if len(c.Coaches) == 0 {
		c.Coaches = d.Coaches
	}

	setString(&c.Queue.Sheet, d.Queue.Sheet)
	setString(&c.Queue.NameColumn, d.Queue.NameColumn)
	setString(&c.Queue.TagColumn, d.Queue.TagColumn)
	setString(&c.Queue.TimestampColumn, d.Queue.TimestampColumn)
	setString(&c.Queue.SyncedColumn, d.Queue.SyncedColumn)
	setString(&c.Queue.SyncedMarker, d.Queue.SyncedMarker)

	setString(&c.Roster.CoachColumn, d.Roster.CoachColumn)
	setString(&c.Roster.ClientColumn, d.Roster.ClientColumn)
	setString(&c.Roster.PayColumn, d.Roster.PayColumn)

	setInt(&c.Retry.MaxAttempts, d.Retry.MaxAttempts)
	setInt(&c.Retry.InitialBackoffMS, d.Retry.InitialBackoffMS)
	setInt(&c.Retry.MaxBackoffMS, d.Retry.MaxBackoffMS)
	if c.Retry.Multiplier == 0 {
		c.Retry.Multiplier = d.Retry.Multiplier
	}

	setInt(&c.Log.MaxSizeMB, d.Log.MaxSizeMB)
	setInt(&c.Log.MaxBackups, d.Log.MaxBackups)
	setInt(&c.Log.MaxAgeDays, d.Log.MaxAgeDays)

	setInt(&c.Watch.DebounceMS, d.Watch.DebounceMS)
}

// Validate checks the configuration for values no run can work with.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.Workbook) == "" {
		return invalid("workbook is required")
	}
	if strings.TrimSpace(c.DefaultPay) == "" {
		return invalid("default_pay is required")
	}
	if strings.TrimSpace(c.CoachTagPrefix) == "" {
		return invalid("coach_tag_prefix is required")
	}
	if len(c.Coaches) == 0 {
		return invalid("at least one coach sheet is required")
	}

	seen := make(map[string]bool, len(c.Coaches))
	for i, coach := range c.Coaches {
		key := coachKey(coach.Sheet)
		if key == "" {
			return invalid("coaches[%d]: sheet is required", i)
		}
		if seen[key] {
			return invalid("coaches[%d]: duplicate coach sheet %q", i, coach.Sheet)
		}
		if key == coachKey(c.Queue.Sheet) {
			return invalid("coaches[%d]: %q is also the queue sheet", i, coach.Sheet)
		}
		seen[key] = true
	}

	// Tab names drop characters Excel forbids and are cut to 31 runes, so
	// distinct names can still share a tab.
	if err := sheets.CheckTabNames(append([]string{c.Queue.Sheet}, c.CoachSheets()...)...); err != nil {
		return invalid("%v", err)
	}

	required := map[string]string{
		"queue.sheet":          c.Queue.Sheet,
		"queue.name_column":    c.Queue.NameColumn,
		"queue.tag_column":     c.Queue.TagColumn,
		"queue.synced_column":  c.Queue.SyncedColumn,
		"queue.synced_marker":  c.Queue.SyncedMarker,
		"roster.coach_column":  c.Roster.CoachColumn,
		"roster.client_column": c.Roster.ClientColumn,
		"roster.pay_column":    c.Roster.PayColumn,
	}
	for key, value := range required {
		if strings.TrimSpace(value) == "" {
			return invalid("%s is required", key)
		}
	}

	if err := c.RetryPolicy().Validate(); err != nil {
		return invalid("retry: %v", err)
	}
	if c.Watch.DebounceMS < 0 {
		return invalid("watch.debounce_ms must not be negative")
	}
	return nil
}

// RetryPolicy converts the retry settings into a retry.Policy.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:     c.Retry.MaxAttempts,
		InitialInterval: time.Duration(c.Retry.InitialBackoffMS) * time.Millisecond,
		MaxInterval:     time.Duration(c.Retry.MaxBackoffMS) * time.Millisecond,
		Multiplier:      c.Retry.Multiplier,
		Jitter:          c.Retry.Jitter,
	}
}

// LedgerPath returns the ledger database path, or "" when the ledger is
// disabled.
func (c *Config) LedgerPath() string {
	switch strings.ToLower(strings.TrimSpace(c.Ledger)) {
	case "", "off", "none", "disabled":
		return ""
	}
	return c.Ledger
}

// DebounceInterval returns the watch-mode debounce as a duration.
func (c *Config) DebounceInterval() time.Duration {
	return time.Duration(c.Watch.DebounceMS) * time.Millisecond
}
