// Package config содержит логику чтения конфигурации сервиса расчётов студии.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/mmeshcher/studiopay/internal/period"
)

const (
	defaultRunAddress   = "localhost:8080"
	defaultTimezone     = "UTC"
	defaultWeekStart    = "monday"
	defaultSyncInterval = 10 * time.Second
)

// Config содержит параметры конфигурации сервиса.
type Config struct {
	RunAddress            string        `env:"RUN_ADDRESS"`
	DatabaseURI           string        `env:"DATABASE_URI"`
	ScheduleSystemAddress string        `env:"SCHEDULE_SYSTEM_ADDRESS"`
	StudioTimezone        string        `env:"STUDIO_TIMEZONE"`
	WeekStart             string        `env:"WEEK_START"`
	SettlementAnchor      string        `env:"SETTLEMENT_ANCHOR"`
	SyncInterval          time.Duration `env:"SYNC_INTERVAL"`
}

// Parse считывает конфигурацию из файла .env, флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fromEnv := *cfg

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.ScheduleSystemAddress, "s", "", "schedule system address")
	flag.StringVar(&cfg.StudioTimezone, "tz", defaultTimezone, "studio time zone (IANA name)")
	flag.StringVar(&cfg.WeekStart, "w", defaultWeekStart, "first day of the settlement week")
	flag.StringVar(&cfg.SettlementAnchor, "anchor", "", "earliest date (YYYY-MM-DD) searched for unpaid weeks")
	flag.DurationVar(&cfg.SyncInterval, "i", defaultSyncInterval, "schedule sync interval")

	flag.Parse()

	if fromEnv.RunAddress != "" {
		cfg.RunAddress = fromEnv.RunAddress
	}
	if fromEnv.DatabaseURI != "" {
		cfg.DatabaseURI = fromEnv.DatabaseURI
	}
	if fromEnv.ScheduleSystemAddress != "" {
		cfg.ScheduleSystemAddress = fromEnv.ScheduleSystemAddress
	}
	if fromEnv.StudioTimezone != "" {
		cfg.StudioTimezone = fromEnv.StudioTimezone
	}
	if fromEnv.WeekStart != "" {
		cfg.WeekStart = fromEnv.WeekStart
	}
	if fromEnv.SettlementAnchor != "" {
		cfg.SettlementAnchor = fromEnv.SettlementAnchor
	}
	if fromEnv.SyncInterval != 0 {
		cfg.SyncInterval = fromEnv.SyncInterval
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = defaultSyncInterval
	}

	if _, err := cfg.Calendar(); err != nil {
		return nil, err
	}
	if _, err := cfg.Anchor(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Location возвращает часовой пояс студии.
func (c *Config) Location() (*time.Location, error) {
	name := c.StudioTimezone
	if name == "" {
		name = defaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("studio timezone: %w", err)
	}
	return loc, nil
}

// Calendar возвращает календарь расчётных недель студии.
func (c *Config) Calendar() (period.Calendar, error) {
	loc, err := c.Location()
	if err != nil {
		return period.Calendar{}, err
	}

	day := c.WeekStart
	if day == "" {
		day = defaultWeekStart
	}
	weekStart, err := period.ParseWeekday(day)
	if err != nil {
		return period.Calendar{}, fmt.Errorf("week start: %w", err)
	}

	return period.NewCalendar(loc, weekStart), nil
}

// Anchor возвращает дату, с которой ищутся неоплаченные недели.
// Нулевое значение означает, что якорь не задан.
func (c *Config) Anchor() (time.Time, error) {
	if c.SettlementAnchor == "" {
		return time.Time{}, nil
	}
	loc, err := c.Location()
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation("2006-01-02", c.SettlementAnchor, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("settlement anchor: %w", err)
	}
	return t, nil
}
