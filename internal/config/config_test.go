package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aouyang1/go-stockforecaster/models"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stockcast.yaml")
	require.Nil(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HTTPS_PROXY", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Nil(t, err)
	assert.Equal(t, NewDefault(), cfg)
	assert.Nil(t, cfg.Validate())
	assert.False(t, cfg.Redis.Enabled())

	cfg, err = Load("")
	require.Nil(t, err)
	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
server:
  addr: ":9090"
  read_timeout: 5s
yahoo:
  base_url: http://localhost:8181
  default_range: 5y
  symbol_map:
    NDX: ^NDX
redis:
  addr: localhost:6379
  ttl: 1m
forecast:
  model: linear
  default_days: 10
  max_days: 30
  lookback: 0
  svr:
    kernel: linear
    cs: [1, 10]
    epsilons: [0.1]
    parallelization: 2
warmup:
  schedule: "0 0 17 * * 1-5"
  watchlist: [SPY, QQQ]
`)
	cfg, err := Load(path)
	require.Nil(t, err)
	require.Nil(t, cfg.Validate())

	lvl, err := cfg.Level()
	require.Nil(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 2*defaultReadTimeout, cfg.Server.WriteTimeout)
	assert.Equal(t, "http://localhost:8181", cfg.Yahoo.BaseURL)
	assert.Equal(t, "5y", cfg.Yahoo.DefaultRange)
	assert.Equal(t, "^NDX", cfg.Yahoo.SymbolMap["NDX"])
	assert.Equal(t, "^GSPC", cfg.Yahoo.SymbolMap["SPX"])
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, time.Minute, cfg.Redis.TTL)
	assert.Equal(t, 24*time.Hour, cfg.Redis.HistoricalTTL)
	assert.Equal(t, "linear", cfg.Forecast.Model)
	assert.Equal(t, 10, cfg.Forecast.DefaultDays)
	assert.Equal(t, 0, cfg.Forecast.Lookback)
	assert.Equal(t, []string{"SPY", "QQQ"}, cfg.Warmup.Watchlist)

	opt := cfg.Forecast.Options()
	assert.Equal(t, "linear", opt.Model)
	assert.Equal(t, models.KernelLinear, opt.SVROptions.Kernel)
	assert.Equal(t, []float64{1, 10}, opt.SVROptions.Cs)
	assert.Equal(t, 2, opt.SVROptions.Parallelization)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":9090\"\n")
	t.Setenv("STOCKCAST_ADDR", ":7070")
	t.Setenv("STOCKCAST_LOG_LEVEL", "warn")
	t.Setenv("STOCKCAST_REDIS_ADDR", "redis:6379")
	t.Setenv("STOCKCAST_REDIS_PASSWORD", "secret")
	t.Setenv("STOCKCAST_YAHOO_BASE_URL", "http://yahoo.test")
	t.Setenv("STOCKCAST_MODEL", "linear")
	t.Setenv("STOCKCAST_WATCHLIST", " SPY, ,AAPL ")
	t.Setenv("HTTPS_PROXY", "http://proxy:3128")

	cfg, err := Load(path)
	require.Nil(t, err)
	require.Nil(t, cfg.Validate())

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "secret", cfg.Redis.Password)
	assert.Equal(t, "http://yahoo.test", cfg.Yahoo.BaseURL)
	assert.Equal(t, "linear", cfg.Forecast.Model)
	assert.Equal(t, []string{"SPY", "AAPL"}, cfg.Warmup.Watchlist)
	assert.Equal(t, "http://proxy:3128", cfg.Yahoo.ProxyURL)
}

func TestLoadErrors(t *testing.T) {
	testData := map[string]struct {
		path string
	}{
		"malformed yaml": {writeConfig(t, "server: [")},
		"wrong type":     {writeConfig(t, "forecast:\n  default_days: many\n")},
		"directory":      {t.TempDir()},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(td.path)
			assert.NotNil(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestValidate(t *testing.T) {
	testData := map[string]struct {
		update func(c *Config)
		err    error
	}{
		"defaults":          {func(c *Config) {}, nil},
		"empty addr":        {func(c *Config) { c.Server.Addr = "" }, ErrInvalidConfig},
		"bad log level":     {func(c *Config) { c.LogLevel = "verbose" }, ErrInvalidConfig},
		"bad base url":      {func(c *Config) { c.Yahoo.BaseURL = "not a url" }, ErrInvalidConfig},
		"negative ttl":      {func(c *Config) { c.Redis.TTL = -time.Second }, ErrInvalidConfig},
		"zero days":         {func(c *Config) { c.Forecast.DefaultDays = 0 }, ErrInvalidConfig},
		"max below":         {func(c *Config) { c.Forecast.MaxDays = 1 }, ErrInvalidConfig},
		"negative lookback": {func(c *Config) { c.Forecast.Lookback = -1 }, ErrInvalidConfig},
		"unknown model":     {func(c *Config) { c.Forecast.Model = "arima" }, ErrInvalidConfig},
		"bad svr grid": {
			func(c *Config) { c.Forecast.SVR = &models.SVRAutoOptions{Cs: []float64{0}, Epsilons: []float64{0.1}, Gammas: []float64{1}} },
			models.ErrNonPositiveC,
		},
		"bad schedule": {
			func(c *Config) {
				c.Warmup.Watchlist = []string{"SPY"}
				c.Warmup.Schedule = "30 16 * * 1-5"
			},
			ErrInvalidConfig,
		},
		"schedule ignored without watchlist": {func(c *Config) { c.Warmup.Schedule = "never" }, nil},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			cfg := NewDefault()
			td.update(cfg)
			err := cfg.Validate()
			if td.err == nil {
				assert.Nil(t, err)
				return
			}
			assert.ErrorIs(t, err, td.err)
		})
	}
}
