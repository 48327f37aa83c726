// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/jeranaias/keycabinet/internal/session"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete kiosk configuration.
type Config struct {
	Kiosk      KioskConfig      `toml:"kiosk"`
	Security   SecurityConfig   `toml:"security"`
	Session    SessionConfig    `toml:"session"`
	Timing     TimingConfig     `toml:"timing"`
	Input      InputConfig      `toml:"input"`
	Navigation NavigationConfig `toml:"navigation"`
	Simulation SimulationConfig `toml:"simulation"`
	Cabinet    CabinetConfig    `toml:"cabinet"`
	Logging    LoggingConfig    `toml:"logging"`
	Journal    JournalConfig    `toml:"journal"`
	UI         UIConfig         `toml:"ui"`
}

// KioskConfig names the installation.
type KioskConfig struct {
	SiteName string `toml:"site_name" env:"KEYCABINET_SITE_NAME"`
	AppName  string `toml:"app_name" env:"KEYCABINET_APP_NAME"`
	Version  string `toml:"version"`
}

// SecurityConfig holds credentials and attempt limits.
type SecurityConfig struct {
	// PINLength is the exact number of digits in every PIN.
	PINLength int `toml:"pin_length" env:"KEYCABINET_PIN_LENGTH"`
	// MaxPINAttempts is the consecutive failure limit for user and emergency PINs.
	MaxPINAttempts int `toml:"max_pin_attempts" env:"KEYCABINET_MAX_PIN_ATTEMPTS"`

	DefaultPIN   string `toml:"default_pin" env:"KEYCABINET_DEFAULT_PIN"`
	AdminPIN     string `toml:"admin_pin" env:"KEYCABINET_ADMIN_PIN"`
	EmergencyPIN string `toml:"emergency_pin" env:"KEYCABINET_EMERGENCY_PIN"`

	// AdminTOTPSecret enables a one-time code for configuration access.
	AdminTOTPSecret string `toml:"admin_totp_secret" env:"KEYCABINET_ADMIN_TOTP_SECRET"`

	EmergencyLockoutMinutes int `toml:"emergency_lockout_minutes" env:"KEYCABINET_EMERGENCY_LOCKOUT_MINUTES"`

	AttemptRatePerSec float64 `toml:"attempt_rate_per_sec" env:"KEYCABINET_ATTEMPT_RATE"`
	AttemptBurst      int     `toml:"attempt_burst" env:"KEYCABINET_ATTEMPT_BURST"`

	Users []UserConfig `toml:"users"`
}

// UserConfig is a named user with an explicit role and own PIN.
type UserConfig struct {
	Name string `toml:"name"`
	Role string `toml:"role"`
	PIN  string `toml:"pin"`
}

// SessionConfig bounds session lifetime.
type SessionConfig struct {
	TimeoutMinutes           int `toml:"timeout_minutes" env:"KEYCABINET_SESSION_TIMEOUT_MINUTES"`
	InactivityWarningMinutes int `toml:"inactivity_warning_minutes" env:"KEYCABINET_SESSION_WARNING_MINUTES"`
}

// TimingConfig holds the simulated delays, in seconds unless noted.
type TimingConfig struct {
	ScanSeconds                 float64 `toml:"scan_seconds" env:"KEYCABINET_SCAN_SECONDS"`
	BiometricExtraSeconds       float64 `toml:"biometric_extra_seconds"`
	ScanSettleSeconds           float64 `toml:"scan_settle_seconds"`
	AutoDismissSeconds          float64 `toml:"auto_dismiss_seconds"`
	EmergencyGrantReturnSeconds float64 `toml:"emergency_grant_return_seconds"`
	LockoutReturnSeconds        float64 `toml:"lockout_return_seconds"`
	CancelReturnSeconds         float64 `toml:"cancel_return_seconds"`
	TickIntervalMS              int     `toml:"tick_interval_ms" env:"KEYCABINET_TICK_INTERVAL_MS"`
}

// InputConfig bounds keypad entries.
type InputConfig struct {
	ActivityCodeMin int `toml:"activity_code_min"`
	ActivityCodeMax int `toml:"activity_code_max"`
}

// NavigationConfig tunes the navigation manager.
type NavigationConfig struct {
	HistoryLimit   int    `toml:"history_limit"`
	UnlistedPolicy string `toml:"unlisted_policy" env:"KEYCABINET_UNLISTED_POLICY"`
}

// SimulationConfig names the users the simulated readers report.
type SimulationConfig struct {
	CardUser      string `toml:"card_user" env:"KEYCABINET_CARD_USER"`
	BiometricUser string `toml:"biometric_user" env:"KEYCABINET_BIOMETRIC_USER"`
}

// CabinetConfig describes the physical slots.
type CabinetConfig struct {
	Keys          []CabinetKeyConfig `toml:"keys"`
	StandardSlots []int              `toml:"standard_slots"`
}

// CabinetKeyConfig is one slot.
type CabinetKeyConfig struct {
	Name string `toml:"name"`
	Slot int    `toml:"slot"`
}

// LoggingConfig selects log level and output format.
type LoggingConfig struct {
	Level  string `toml:"level" env:"KEYCABINET_LOG_LEVEL"`
	Format string `toml:"format" env:"KEYCABINET_LOG_FORMAT"`
}

// JournalConfig bounds the in-memory audit journal.
type JournalConfig struct {
	MaxEntries int `toml:"max_entries" env:"KEYCABINET_JOURNAL_MAX_ENTRIES"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	// Theme is "dark", "light" or "auto".
	Theme string `toml:"theme" env:"KEYCABINET_THEME"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the factory configuration.
func Default() *Config {
	keys := session.DefaultCabinetKeys()
	cabinetKeys := make([]CabinetKeyConfig, 0, len(keys))
	for _, k := range keys {
		cabinetKeys = append(cabinetKeys, CabinetKeyConfig{Name: k.Name, Slot: k.Slot})
	}

	return &Config{
		Kiosk: KioskConfig{
			SiteName: "Main Facility",
			AppName:  "Key Cabinet",
			Version:  "2.1.0",
		},
		Security: SecurityConfig{
			PINLength:               5,
			MaxPINAttempts:          3,
			DefaultPIN:              "12345",
			AdminPIN:                "00000",
			EmergencyPIN:            "99999",
			EmergencyLockoutMinutes: 15,
			AttemptRatePerSec:       2,
			AttemptBurst:            5,
		},
		Session: SessionConfig{
			TimeoutMinutes:           30,
			InactivityWarningMinutes: 25,
		},
		Timing: TimingConfig{
			ScanSeconds:                 3,
			BiometricExtraSeconds:       1,
			ScanSettleSeconds:           1.5,
			AutoDismissSeconds:          5,
			EmergencyGrantReturnSeconds: 6.5,
			LockoutReturnSeconds:        5.5,
			CancelReturnSeconds:         2.5,
			TickIntervalMS:              1000,
		},
		Input: InputConfig{
			ActivityCodeMin: session.DefaultActivityCodeMin,
			ActivityCodeMax: session.DefaultActivityCodeMax,
		},
		Navigation: NavigationConfig{
			HistoryLimit:   50,
			UnlistedPolicy: "open",
		},
		Simulation: SimulationConfig{
			CardUser:      "Card User",
			BiometricUser: "Biometric User",
		},
		Cabinet: CabinetConfig{
			Keys:          cabinetKeys,
			StandardSlots: session.DefaultStandardSlots(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Journal: JournalConfig{
			MaxEntries: 1000,
		},
		UI: UIConfig{
			Theme: "auto",
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns ~/.keycabinet.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".keycabinet"), nil
}

// ConfigPath returns $KEYCABINET_CONFIG or ~/.keycabinet/config.toml.
func ConfigPath() (string, error) {
	if p := os.Getenv("KEYCABINET_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the configuration from ConfigPath.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath reads path over the defaults, applies environment overrides
// and validates. A missing file yields the defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := LoadTOML(cfg, path); err != nil {
				return nil, err
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config: %w", err)
		}
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes path into cfg. Keys present in the file replace the
// corresponding values; list sections replace the default lists.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// ApplyEnvOverrides applies KEYCABINET_* environment variables.
func (c *Config) ApplyEnvOverrides() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// SetDefaults fills zero values that would otherwise disable a feature.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Kiosk.AppName == "" {
		c.Kiosk.AppName = d.Kiosk.AppName
	}
	if c.Kiosk.Version == "" {
		c.Kiosk.Version = d.Kiosk.Version
	}
	if c.Security.PINLength == 0 {
		c.Security.PINLength = d.Security.PINLength
	}
	if c.Security.MaxPINAttempts == 0 {
		c.Security.MaxPINAttempts = d.Security.MaxPINAttempts
	}
	if c.Security.AttemptRatePerSec == 0 {
		c.Security.AttemptRatePerSec = d.Security.AttemptRatePerSec
	}
	if c.Security.AttemptBurst == 0 {
		c.Security.AttemptBurst = d.Security.AttemptBurst
	}
	if c.Session.TimeoutMinutes == 0 {
		c.Session.TimeoutMinutes = d.Session.TimeoutMinutes
	}
	if c.Timing.TickIntervalMS == 0 {
		c.Timing.TickIntervalMS = d.Timing.TickIntervalMS
	}
	if c.Navigation.HistoryLimit == 0 {
		c.Navigation.HistoryLimit = d.Navigation.HistoryLimit
	}
	if c.Navigation.UnlistedPolicy == "" {
		c.Navigation.UnlistedPolicy = d.Navigation.UnlistedPolicy
	}
	if c.Simulation.CardUser == "" {
		c.Simulation.CardUser = d.Simulation.CardUser
	}
	if c.Simulation.BiometricUser == "" {
		c.Simulation.BiometricUser = d.Simulation.BiometricUser
	}
	if len(c.Cabinet.Keys) == 0 {
		c.Cabinet.Keys = d.Cabinet.Keys
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
	if c.Journal.MaxEntries == 0 {
		c.Journal.MaxEntries = d.Journal.MaxEntries
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to ConfigPath.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg to path with owner-only permissions, since the file
// holds PINs.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# Key cabinet kiosk configuration")
	fmt.Fprintln(file, "# Environment variables (KEYCABINET_*) override these values.")
	fmt.Fprintln(file, "")

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// Seconds converts a fractional second count to a duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// SessionTimeout returns the session lifetime.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.Session.TimeoutMinutes) * time.Minute
}

// SessionWarning returns when the expiry warning fires.
func (c *Config) SessionWarning() time.Duration {
	return time.Duration(c.Session.InactivityWarningMinutes) * time.Minute
}

// TickInterval returns the supervision poll interval.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Timing.TickIntervalMS) * time.Millisecond
}

// EmergencyLockout returns the emergency lockout duration.
func (c *Config) EmergencyLockout() time.Duration {
	return time.Duration(c.Security.EmergencyLockoutMinutes) * time.Minute
}

// BuildCabinet turns the cabinet section into a session.Cabinet.
func (c *Config) BuildCabinet() (*session.Cabinet, error) {
	keys := make([]session.CabinetKey, 0, len(c.Cabinet.Keys))
	for _, k := range c.Cabinet.Keys {
		keys = append(keys, session.CabinetKey{Name: k.Name, Slot: k.Slot})
	}
	return session.NewCabinet(keys, c.Cabinet.StandardSlots)
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.Security.Users = append([]UserConfig(nil), c.Security.Users...)
	out.Cabinet.Keys = append([]CabinetKeyConfig(nil), c.Cabinet.Keys...)
	out.Cabinet.StandardSlots = append([]int(nil), c.Cabinet.StandardSlots...)
	return &out
}

// String renders c as TOML with secrets masked.
func (c *Config) String() string {
	masked := c.Clone()
	masked.Security.DefaultPIN = maskSecret(masked.Security.DefaultPIN)
	masked.Security.AdminPIN = maskSecret(masked.Security.AdminPIN)
	masked.Security.EmergencyPIN = maskSecret(masked.Security.EmergencyPIN)
	masked.Security.AdminTOTPSecret = maskSecret(masked.Security.AdminTOTPSecret)
	for i := range masked.Security.Users {
		masked.Security.Users[i].PIN = maskSecret(masked.Security.Users[i].PIN)
	}

	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(masked); err != nil {
		return fmt.Sprintf("config encode error: %v", err)
	}
	return b.String()
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}
