// Package server exposes price history, indicators and forecasts over HTTP
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	forecaster "github.com/aouyang1/go-stockforecaster"
	"github.com/aouyang1/go-stockforecaster/internal/metrics"
	"github.com/aouyang1/go-stockforecaster/marketdata"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"

	DefaultDays    = 5
	DefaultMaxDays = 60
	shutdownWait   = 10 * time.Second
)

var ErrInvalidOptions = errors.New("invalid server options")

// Options sets the request limits of the forecast endpoints
type Options struct {
	DefaultDays int
	MaxDays     int

	// Lookback trains each forecast on only the most recent bars when positive
	Lookback int
}

// NewDefaultOptions returns the limits used when none are configured
func NewDefaultOptions() *Options {
	return &Options{
		DefaultDays: DefaultDays,
		MaxDays:     DefaultMaxDays,
	}
}

// Validate fills in defaults and checks the limits
func (o *Options) Validate() (*Options, error) {
	if o == nil {
		o = NewDefaultOptions()
	}
	if o.DefaultDays <= 0 || o.MaxDays < o.DefaultDays || o.Lookback < 0 {
		return nil, ErrInvalidOptions
	}
	return o, nil
}

// Server routes requests to the market data source and the forecaster
type Server struct {
	src        marketdata.Source
	forecaster *forecaster.Forecaster
	metrics    *metrics.Metrics
	opt        *Options
	engine     *gin.Engine
}

// New builds the router. Metrics may be nil, in which case /metrics is not served.
func New(src marketdata.Source, f *forecaster.Forecaster, m *metrics.Metrics, opt *Options) (*Server, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}

	s := &Server{
		src:        src,
		forecaster: f,
		metrics:    m,
		opt:        opt,
	}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), logRequests())

	r.GET("/healthz", health)
	r.HEAD("/healthz", health)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := r.Group("/api/v1/tickers/:ticker")
	{
		api.GET("/profile", s.profile)
		api.GET("/prices", s.prices)
		api.GET("/prices/chart", s.pricesChart)
		api.GET("/indicators", s.indicators)
		api.GET("/indicators/chart", s.indicatorsChart)
		api.GET("/forecast", s.forecast)
		api.GET("/forecast/chart", s.forecastChart)
	}
	return r
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()
	slog.Info("shutting down", "addr", addr)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requestID propagates the caller's request id or assigns a new one
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		lvl := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			lvl = slog.LevelError
		}
		slog.Log(c.Request.Context(), lvl, "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			requestIDKey, c.GetString(requestIDKey),
		)
	}
}

func health(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	if c.Request.Method == http.MethodHead {
		c.Status(http.StatusOK)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
