// Package cache provides a Redis read-through cache in front of a market data source
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/aouyang1/go-stockforecaster/marketdata"
	"github.com/aouyang1/go-stockforecaster/timedataset"
)

const (
	DefaultTTL           = 5 * time.Minute
	DefaultHistoricalTTL = 24 * time.Hour
	DefaultNamespace     = "stockcast:bars"
)

// Source decorates a marketdata.Source with Redis caching. Entries are keyed by ticker and the
// requested window. Windows that end before the current day cannot change and are kept for the
// historical TTL. A nil Redis client bypasses the cache.
type Source struct {
	inner         marketdata.Source
	rdb           *redis.Client
	ttl           time.Duration
	historicalTTL time.Duration
	namespace     string
	nowFunc       func() time.Time
}

var (
	_ marketdata.Source        = (*Source)(nil)
	_ marketdata.ProfileSource = (*Source)(nil)
)

// NewSource decorates inner with Redis caching. Non-positive TTLs and an empty namespace fall back
// to their defaults.
func NewSource(rdb *redis.Client, inner marketdata.Source, ttl, historicalTTL time.Duration, namespace string) *Source {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if historicalTTL <= 0 {
		historicalTTL = DefaultHistoricalTTL
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Source{
		inner:         inner,
		rdb:           rdb,
		ttl:           ttl,
		historicalTTL: historicalTTL,
		namespace:     namespace,
		nowFunc:       time.Now,
	}
}

// Fetch returns the cached series if present, otherwise fetches from the inner source and caches
// the result. Cache failures are logged and never fail the fetch.
func (s *Source) Fetch(ctx context.Context, ticker string, start, end time.Time) (*timedataset.TimeDataset, error) {
	if s.rdb == nil {
		return s.inner.Fetch(ctx, ticker, start, end)
	}

	key := s.cacheKey(ticker, start, end)

	if b, err := s.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var td timedataset.TimeDataset
		if err := json.Unmarshal(b, &td); err == nil {
			if cached, err := timedataset.NewHistoricalSeries(td.Ticker, td.Bars); err == nil {
				return cached, nil
			}
		}
		slog.Warn("deleting corrupted cache entry", "key", key)
		_ = s.rdb.Del(ctx, key).Err()
	} else if err != nil && err != redis.Nil {
		slog.Warn("cache lookup failed", "key", key, "error", err)
	}

	td, err := s.inner.Fetch(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(td); err == nil {
		if err := s.rdb.Set(ctx, key, b, s.expiration(end)).Err(); err != nil {
			slog.Warn("cache store failed", "key", key, "error", err)
		}
	}
	return td, nil
}

// Profile returns the cached company profile if present, otherwise looks it up through the inner
// source. Profiles rarely change and are kept for the historical TTL.
func (s *Source) Profile(ctx context.Context, ticker string) (*marketdata.Profile, error) {
	if s.rdb == nil {
		return marketdata.LookupProfile(ctx, s.inner, ticker)
	}

	key := s.profileKey(ticker)
	if b, err := s.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var p marketdata.Profile
		if err := json.Unmarshal(b, &p); err == nil && p.Ticker != "" {
			return &p, nil
		}
		slog.Warn("deleting corrupted cache entry", "key", key)
		_ = s.rdb.Del(ctx, key).Err()
	} else if err != nil && err != redis.Nil {
		slog.Warn("cache lookup failed", "key", key, "error", err)
	}

	p, err := marketdata.LookupProfile(ctx, s.inner, ticker)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(p); err == nil {
		if err := s.rdb.Set(ctx, key, b, s.historicalTTL).Err(); err != nil {
			slog.Warn("cache store failed", "key", key, "error", err)
		}
	}
	return p, nil
}

// Invalidate removes every cached window and the profile of the ticker
func (s *Source) Invalidate(ctx context.Context, ticker string) error {
	if s.rdb == nil {
		return nil
	}
	return s.deleteByPattern(ctx, s.cacheKeyPrefix(ticker)+"*")
}

func (s *Source) expiration(end time.Time) time.Duration {
	if end.IsZero() {
		return s.ttl
	}
	now := s.nowFunc().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if end.Before(today) {
		return s.historicalTTL
	}
	return s.ttl
}

func (s *Source) cacheKey(ticker string, start, end time.Time) string {
	return fmt.Sprintf("%s%s:%s", s.cacheKeyPrefix(ticker), day(start), day(end))
}

func (s *Source) profileKey(ticker string) string {
	return s.cacheKeyPrefix(ticker) + "profile"
}

func (s *Source) cacheKeyPrefix(ticker string) string {
	return fmt.Sprintf("%s:%s:", s.namespace, safe(ticker))
}

// deleteByPattern deletes all cache keys matching a given pattern using SCAN
func (s *Source) deleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, cur, err := s.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = cur
		if cursor == 0 {
			break
		}
	}
	return nil
}

func day(t time.Time) string {
	if t.IsZero() {
		return "default"
	}
	return t.UTC().Format(time.DateOnly)
}

// safe percent-encodes a ticker so it holds neither the key separator nor any SCAN glob
// metacharacter. Distinct tickers keep distinct keys.
func safe(s string) string {
	return url.QueryEscape(s)
}
