// stockcast serves stock price forecasts over HTTP or runs a single forecast from the command line.
//
// Usage:
//
//	stockcast serve -config stockcast.yaml
//	stockcast forecast -ticker SPY -days 5 [-start 2024-01-02] [-end 2024-06-28] [-out chart.html] [-json]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/profile"
	"github.com/redis/go-redis/v9"

	forecaster "github.com/aouyang1/go-stockforecaster"
	"github.com/aouyang1/go-stockforecaster/internal/config"
	"github.com/aouyang1/go-stockforecaster/internal/metrics"
	"github.com/aouyang1/go-stockforecaster/internal/server"
	"github.com/aouyang1/go-stockforecaster/internal/warmup"
	"github.com/aouyang1/go-stockforecaster/marketdata"
	"github.com/aouyang1/go-stockforecaster/marketdata/cache"
	"github.com/aouyang1/go-stockforecaster/marketdata/yahoo"
)

var ErrUsage = errors.New("usage: stockcast serve|forecast [flags]")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return ErrUsage
	}
	switch args[0] {
	case "serve":
		return serve(ctx, args[1:], stderr)
	case "forecast":
		return forecast(ctx, args[1:], stdout, stderr)
	default:
		return fmt.Errorf("unknown command %q, %w", args[0], ErrUsage)
	}
}

func serve(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "stockcast.yaml", "path to the yaml config")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	lvl, err := cfg.Level()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: lvl})))

	m := metrics.New()
	var src marketdata.Source = m.Source(yahoo.NewClient(cfg.Yahoo, nil))

	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unreachable, cache misses will fall through", "addr", cfg.Redis.Addr, "error", err)
		}

		cached := cache.NewSource(rdb, src, cfg.Redis.TTL, cfg.Redis.HistoricalTTL, cfg.Redis.Namespace)
		src = cached

		if len(cfg.Warmup.Watchlist) > 0 {
			w := warmup.New(cached, cfg.Warmup.Watchlist, m)
			if err := w.Start(ctx, cfg.Warmup.Schedule); err != nil {
				return err
			}
			defer w.Stop()
		}
	} else if len(cfg.Warmup.Watchlist) > 0 {
		slog.Warn("warmup disabled without redis", "watchlist", cfg.Warmup.Watchlist)
	}

	opt, err := cfg.Forecast.Options().Validate()
	if err != nil {
		return err
	}
	opt.Regressor = m.Regressor(opt.Model, opt.Regressor)
	f, err := forecaster.New(opt)
	if err != nil {
		return err
	}

	srv, err := server.New(src, f, m, &server.Options{
		DefaultDays: cfg.Forecast.DefaultDays,
		MaxDays:     cfg.Forecast.MaxDays,
		Lookback:    cfg.Forecast.Lookback,
	})
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
}

type forecastFlags struct {
	cfgPath  string
	ticker   string
	days     int
	start    string
	end      string
	lookback int
	model    string
	out      string
	asJSON   bool
	profile  string
	verbose  bool
}

func parseForecastFlags(args []string, stderr io.Writer) (*forecastFlags, error) {
	ff := &forecastFlags{}
	fs := flag.NewFlagSet("forecast", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&ff.cfgPath, "config", "", "optional yaml config for the data source")
	fs.StringVar(&ff.ticker, "ticker", "", "ticker to forecast, e.g. SPY")
	fs.IntVar(&ff.days, "days", config.DefaultDays, "number of trading days to predict")
	fs.StringVar(&ff.start, "start", "", "first date of the history, YYYY-MM-DD")
	fs.StringVar(&ff.end, "end", "", "last date of the history, YYYY-MM-DD")
	fs.IntVar(&ff.lookback, "lookback", config.DefaultLookback, "train on only the most recent bars, 0 for all")
	fs.StringVar(&ff.model, "model", forecaster.ModelSVR, "svr or linear")
	fs.StringVar(&ff.out, "out", "", "write the forecast chart to this html file")
	fs.BoolVar(&ff.asJSON, "json", false, "print the results as json")
	fs.StringVar(&ff.profile, "profile", "", "cpu or mem profile written to the working directory")
	fs.BoolVar(&ff.verbose, "v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	switch ff.profile {
	case "", "cpu", "mem":
	default:
		return nil, fmt.Errorf("unknown profile %q, expected cpu or mem", ff.profile)
	}
	return ff, nil
}

func parseDate(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return t, fmt.Errorf("-%s %q is not a YYYY-MM-DD date, %w", name, v, err)
	}
	return t, nil
}

func forecast(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	ff, err := parseForecastFlags(args, stderr)
	if err != nil {
		return err
	}

	lvl := slog.LevelInfo
	if ff.verbose {
		lvl = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: lvl})))

	switch ff.profile {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	}

	cfg, err := config.Load(ff.cfgPath)
	if err != nil {
		return err
	}
	start, err := parseDate("start", ff.start)
	if err != nil {
		return err
	}
	end, err := parseDate("end", ff.end)
	if err != nil {
		return err
	}

	opt := cfg.Forecast.Options()
	opt.Model = ff.model
	f, err := forecaster.New(opt)
	if err != nil {
		return err
	}

	res, err := f.Run(ctx, yahoo.NewClient(cfg.Yahoo, nil), forecaster.Request{
		Ticker:   ff.ticker,
		Horizon:  ff.days,
		Start:    start,
		End:      end,
		Lookback: ff.lookback,
	})
	if err != nil {
		return err
	}

	if ff.out != "" {
		if err := forecaster.PlotForecast(ff.out, res); err != nil {
			return fmt.Errorf("unable to write chart, %w", err)
		}
		slog.Info("wrote chart", "path", ff.out)
	}

	if ff.asJSON {
		b, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, string(b))
		return err
	}
	return printResults(stdout, res)
}

func printResults(w io.Writer, res *forecaster.Results) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "index\tdate\tpredicted close")
	for _, p := range res.Predicted {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\n", p.Index, p.Date.Format(time.DateOnly), p.Value)
	}
	if res.Scores != nil {
		fmt.Fprintf(tw, "\nin-sample mse %.4f, r2 %.4f\n", res.Scores.MSE, res.Scores.R2)
	}
	return tw.Flush()
}
