// Package marketdata defines where historical price series come from
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aouyang1/go-stockforecaster/timedataset"
)

var (
	ErrDataUnavailable = errors.New("market data unavailable")
	ErrNoProfile       = errors.New("profile lookup not supported")
)

// Source fetches the daily history of a ticker between start and end. A zero start or end uses the
// default window of the provider. Every failure wraps ErrDataUnavailable.
type Source interface {
	Fetch(ctx context.Context, ticker string, start, end time.Time) (*timedataset.TimeDataset, error)
}

// SourceFunc adapts a function to a Source
type SourceFunc func(ctx context.Context, ticker string, start, end time.Time) (*timedataset.TimeDataset, error)

// Fetch calls f
func (f SourceFunc) Fetch(ctx context.Context, ticker string, start, end time.Time) (*timedataset.TimeDataset, error) {
	return f(ctx, ticker, start, end)
}

// Profile describes the company behind a ticker
type Profile struct {
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	LongName string `json:"long_name,omitempty"`
	Summary  string `json:"summary,omitempty"`
	Website  string `json:"website,omitempty"`
	Sector   string `json:"sector,omitempty"`
	Industry string `json:"industry,omitempty"`
	Exchange string `json:"exchange,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// ProfileSource looks up the company profile of a ticker. Every failure wraps ErrDataUnavailable.
type ProfileSource interface {
	Profile(ctx context.Context, ticker string) (*Profile, error)
}

// LookupProfile calls the profile lookup of src when it has one
func LookupProfile(ctx context.Context, src Source, ticker string) (*Profile, error) {
	ps, ok := src.(ProfileSource)
	if !ok {
		return nil, Unavailable(ticker, ErrNoProfile)
	}
	return ps.Profile(ctx, ticker)
}

// Unavailable wraps err with ErrDataUnavailable unless it already is one
func Unavailable(ticker string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrDataUnavailable) {
		return err
	}
	return fmt.Errorf("ticker %s, %w, %w", ticker, ErrDataUnavailable, err)
}
