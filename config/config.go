// Package config loads process configuration for the overwork engine.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap/zapcore"

	"github.com/warp/overwork-engine/factory"
	"github.com/warp/overwork-engine/worktime"
)

const (
	// EnvPrefix is stripped from environment variables before mapping.
	EnvPrefix = "OVERWORK_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// Config is the full process configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Audit    AuditConfig    `koanf:"audit"`
	Timezone string         `koanf:"timezone"`
	Defaults DefaultsConfig `koanf:"defaults"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// AuditConfig drives the periodic bank auditor.
type AuditConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Schedule string `koanf:"schedule"` // 5-field cron expression
}

// DefaultsConfig holds the settings given to users who never stored any.
type DefaultsConfig struct {
	LunchDuration           float64 `koanf:"lunch_duration"`
	WeekendDaysOff          float64 `koanf:"weekend_days_off"`
	WeekendBonus            float64 `koanf:"weekend_bonus"`
	BankHolidayApplyDaysOff bool    `koanf:"bank_holiday_apply_days_off"`
	BankHolidayApplyBonus   bool    `koanf:"bank_holiday_apply_bonus"`
	AnnualIsencaoLimit      float64 `koanf:"annual_isencao_limit"`
}

// defaults are loaded before the file and the environment.
var defaults = map[string]any{
	"server.port":                          8080,
	"server.read_timeout":                  "15s",
	"server.write_timeout":                 "15s",
	"server.shutdown_timeout":              "10s",
	"database.path":                        "./data/overwork.db",
	"log.level":                            "info",
	"log.format":                           "json",
	"audit.enabled":                        true,
	"audit.schedule":                       "0 * * * *",
	"timezone":                             "UTC",
	"defaults.lunch_duration":              1.0,
	"defaults.weekend_days_off":            1.0,
	"defaults.weekend_bonus":               0.0,
	"defaults.bank_holiday_apply_days_off": false,
	"defaults.bank_holiday_apply_bonus":    false,
	"defaults.annual_isencao_limit":        float64(worktime.DefaultAnnualIsencaoLimit),
}

// Load builds the configuration.
//
// Precedence (highest to lowest):
//  1. Environment variables (OVERWORK_SERVER__PORT, OVERWORK_LOG__LEVEL, ...)
//  2. YAML file at path, when path is not empty
//  3. Hardcoded defaults
//
// Environment variables drop the prefix, lowercase, and use a double
// underscore between levels so single underscores stay inside key names:
//
//	OVERWORK_SERVER__READ_TIMEOUT          -> server.read_timeout
//	OVERWORK_DEFAULTS__WEEKEND_DAYS_OFF    -> defaults.weekend_days_off
//	OVERWORK_TIMEZONE                      -> timezone
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("failed to set default %s: %w", key, err)
		}
	}

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

func readConfigFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level: %w", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("invalid log.format %q: must be json or console", c.Log.Format)
	}
	if c.Audit.Enabled {
		if _, err := cron.ParseStandard(c.Audit.Schedule); err != nil {
			return fmt.Errorf("invalid audit.schedule %q: %w", c.Audit.Schedule, err)
		}
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Defaults.Settings(); err != nil {
		return fmt.Errorf("invalid defaults: %w", err)
	}
	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Settings converts the defaults into engine settings.
func (d DefaultsConfig) Settings() (worktime.Settings, error) {
	return factory.NewSettingsFactory(worktime.DefaultSettings()).FromJSON(worktime.Settings{}, factory.SettingsJSON{
		LunchDuration:           &d.LunchDuration,
		WeekendDaysOff:          &d.WeekendDaysOff,
		WeekendBonus:            &d.WeekendBonus,
		BankHolidayApplyDaysOff: &d.BankHolidayApplyDaysOff,
		BankHolidayApplyBonus:   &d.BankHolidayApplyBonus,
		AnnualIsencaoLimit:      &d.AnnualIsencaoLimit,
	})
}
