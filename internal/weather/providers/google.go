package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/forecast-bot/internal/common"
	"github.com/i474232898/forecast-bot/internal/weather"
)

// GoogleGeocoder resolves locations through the Google Geocoding API. The
// underlying client keeps its API key in package state, so only one key per
// process is supported.
type GoogleGeocoder struct {
	country string
	timeout time.Duration
	lookup  func(geocoder.Address) (geocoder.Location, error)
}

const defaultGoogleTimeout = 15 * time.Second

// NewGoogleGeocoder bounds every lookup by timeout. The library's own HTTP
// client has none.
func NewGoogleGeocoder(apiKey, country string, timeout time.Duration) *GoogleGeocoder {
	geocoder.ApiKey = apiKey
	if timeout <= 0 {
		timeout = defaultGoogleTimeout
	}
	return &GoogleGeocoder{
		country: country,
		timeout: timeout,
		lookup:  geocoder.Geocoding,
	}
}

func (g *GoogleGeocoder) Resolve(ctx context.Context, query string) (weather.Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return weather.Place{}, weather.ErrLocationNotFound
	}

	timeout := g.timeout
	if timeout <= 0 {
		timeout = defaultGoogleTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		loc geocoder.Location
		err error
	}
	done := make(chan result, 1)
	go func() {
		loc, err := g.lookup(geocoder.Address{City: query, Country: g.country})
		done <- result{loc: loc, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return weather.Place{}, fmt.Errorf("%w: google geocoding: %w", common.ErrUpstreamCall, ctx.Err())
	case res = <-done:
	}

	if res.err != nil {
		if common.HasAny(strings.ToUpper(res.err.Error()), "ZERO_RESULTS", "NOT FOUND", "NO RESULTS") {
			return weather.Place{}, weather.ErrLocationNotFound
		}
		return weather.Place{}, fmt.Errorf("%w: google geocoding: %v", common.ErrUpstreamCall, res.err)
	}
	if res.loc.Latitude == 0 && res.loc.Longitude == 0 {
		return weather.Place{}, weather.ErrLocationNotFound
	}

	return weather.Place{
		Name:      query,
		Latitude:  res.loc.Latitude,
		Longitude: res.loc.Longitude,
	}, nil
}

var _ weather.Geocoder = (*GoogleGeocoder)(nil)
