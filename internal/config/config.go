// Package config loads the stockcast service configuration from yaml with environment overrides
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	forecaster "github.com/aouyang1/go-stockforecaster"
	"github.com/aouyang1/go-stockforecaster/marketdata/cache"
	"github.com/aouyang1/go-stockforecaster/marketdata/yahoo"
	"github.com/aouyang1/go-stockforecaster/models"
)

const (
	DefaultAddr        = ":8080"
	DefaultDays        = 5
	DefaultMaxDays     = 60
	DefaultLookback    = 60
	DefaultWarmupCron  = "0 30 16 * * 1-5"
	DefaultLogLevel    = "info"
	defaultReadTimeout = 15 * time.Second
)

var ErrInvalidConfig = errors.New("invalid config")

// cronParser matches the seconds field parser of the warmup scheduler
var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Config holds all service configuration
type Config struct {
	LogLevel string         `yaml:"log_level"`
	Server   ServerConfig   `yaml:"server"`
	Yahoo    yahoo.Config   `yaml:"yahoo"`
	Redis    RedisConfig    `yaml:"redis"`
	Forecast ForecastConfig `yaml:"forecast"`
	Warmup   WarmupConfig   `yaml:"warmup"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RedisConfig enables the market data cache when Addr is set
type RedisConfig struct {
	Addr          string        `yaml:"addr"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	TTL           time.Duration `yaml:"ttl"`
	HistoricalTTL time.Duration `yaml:"historical_ttl"`
	Namespace     string        `yaml:"namespace"`
}

// Enabled reports whether a Redis address is configured
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// ForecastConfig sets the model and the request limits of the forecast endpoints
type ForecastConfig struct {
	Model string `yaml:"model"`

	// DefaultDays is the horizon used when a request does not name one. MaxDays caps it.
	DefaultDays int `yaml:"default_days"`
	MaxDays     int `yaml:"max_days"`

	// Lookback trains on only the most recent bars. 0 trains on the whole fetched window.
	Lookback int `yaml:"lookback"`

	SVR *models.SVRAutoOptions `yaml:"svr"`
}

// Options returns the forecaster options for the configured model
func (f ForecastConfig) Options() *forecaster.Options {
	opt := forecaster.NewDefaultOptions()
	opt.Model = f.Model
	if f.SVR != nil {
		svr := *f.SVR
		opt.SVROptions = &svr
	}
	return opt
}

// WarmupConfig prefetches the watchlist on a cron schedule. Warmup only runs with a Redis cache.
type WarmupConfig struct {
	Schedule  string   `yaml:"schedule"`
	Watchlist []string `yaml:"watchlist"`
}

// NewDefault returns the configuration used when no file is provided
func NewDefault() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Server: ServerConfig{
			Addr:         DefaultAddr,
			ReadTimeout:  defaultReadTimeout,
			WriteTimeout: 2 * defaultReadTimeout,
		},
		Yahoo: yahoo.NewDefaultConfig(),
		Redis: RedisConfig{
			TTL:           cache.DefaultTTL,
			HistoricalTTL: cache.DefaultHistoricalTTL,
			Namespace:     cache.DefaultNamespace,
		},
		Forecast: ForecastConfig{
			Model:       forecaster.ModelSVR,
			DefaultDays: DefaultDays,
			MaxDays:     DefaultMaxDays,
			Lookback:    DefaultLookback,
		},
		Warmup: WarmupConfig{
			Schedule: DefaultWarmupCron,
		},
	}
}

// Load reads config from a yaml file on top of the defaults, then applies environment variable
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := NewDefault()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config, %w", err)
		}
		if os.IsNotExist(err) {
			slog.Warn("config file not found, using defaults", "path", path)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config, %w", err)
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("STOCKCAST_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("STOCKCAST_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("STOCKCAST_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("STOCKCAST_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("STOCKCAST_YAHOO_BASE_URL"); v != "" {
		c.Yahoo.BaseURL = v
	}
	if v := os.Getenv("STOCKCAST_MODEL"); v != "" {
		c.Forecast.Model = v
	}
	if v := os.Getenv("STOCKCAST_WATCHLIST"); v != "" {
		c.Warmup.Watchlist = splitList(v)
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Yahoo.ProxyURL = v
	}
}

func splitList(v string) []string {
	var res []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			res = append(res, s)
		}
	}
	return res
}

// Level returns the slog level named by LogLevel
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return lvl, fmt.Errorf("log_level %q, %w", c.LogLevel, ErrInvalidConfig)
	}
	return lvl, nil
}

// Validate checks that all required fields are set and consistent
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required, %w", ErrInvalidConfig)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Yahoo.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.Yahoo.BaseURL); err != nil {
			return fmt.Errorf("yahoo.base_url %q, %w, %w", c.Yahoo.BaseURL, ErrInvalidConfig, err)
		}
	}
	if c.Redis.TTL < 0 || c.Redis.HistoricalTTL < 0 {
		return fmt.Errorf("redis ttl must not be negative, %w", ErrInvalidConfig)
	}
	if c.Forecast.DefaultDays <= 0 {
		return fmt.Errorf("forecast.default_days must be positive, %w", ErrInvalidConfig)
	}
	if c.Forecast.MaxDays < c.Forecast.DefaultDays {
		return fmt.Errorf("forecast.max_days must be at least default_days, %w", ErrInvalidConfig)
	}
	if c.Forecast.Lookback < 0 {
		return fmt.Errorf("forecast.lookback must not be negative, %w", ErrInvalidConfig)
	}
	if _, err := c.Forecast.Options().Validate(); err != nil {
		return fmt.Errorf("forecast, %w, %w", ErrInvalidConfig, err)
	}
	if len(c.Warmup.Watchlist) > 0 {
		if _, err := cronParser.Parse(c.Warmup.Schedule); err != nil {
			return fmt.Errorf("warmup.schedule %q, %w, %w", c.Warmup.Schedule, ErrInvalidConfig, err)
		}
	}
	return nil
}
