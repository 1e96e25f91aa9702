package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/forecast-bot/internal/common"
	"github.com/i474232898/forecast-bot/internal/weather"
)

const (
	defaultForecastURL = "https://api.open-meteo.com/v1/forecast"
	defaultGeocodeURL  = "https://geocoding-api.open-meteo.com/v1/search"

	hourlyFields = "weather_code,cloud_cover,apparent_temperature,precipitation_probability,uv_index"
	dailyFields  = "weather_code,cloud_cover_mean,apparent_temperature_max,apparent_temperature_min"
)

// OpenMeteoOptions configures the Open-Meteo provider. Empty URLs select the public API.
type OpenMeteoOptions struct {
	ForecastURL string
	GeocodeURL  string
	Language    string
	CountryCode string
	MaxRetries  int
}

// OpenMeteoProvider implements weather.Geocoder and weather.ForecastFetcher for Open-Meteo.
type OpenMeteoProvider struct {
	name        string
	forecastURL string
	geocodeURL  string
	language    string
	countryCode string
	httpCfg     common.HTTPClientConfig
	circuit     *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client, opts OpenMeteoOptions) *OpenMeteoProvider {
	forecastURL := opts.ForecastURL
	if forecastURL == "" {
		forecastURL = defaultForecastURL
	}
	geocodeURL := opts.GeocodeURL
	if geocodeURL == "" {
		geocodeURL = defaultGeocodeURL
	}

	return &OpenMeteoProvider{
		name:        "openmeteo",
		forecastURL: forecastURL,
		geocodeURL:  geocodeURL,
		language:    opts.Language,
		countryCode: opts.CountryCode,
		httpCfg: common.HTTPClientConfig{
			Client: client,
			Backoff: common.BackoffConfig{
				MaxRetries:      opts.MaxRetries,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: common.NewCircuitBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

// Resolve looks the query up in the Open-Meteo geocoding API and returns the first match.
func (p *OpenMeteoProvider) Resolve(ctx context.Context, query string) (weather.Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return weather.Place{}, weather.ErrLocationNotFound
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("name", query)
		values.Set("count", "2")
		if p.language != "" {
			values.Set("language", p.language)
		}
		if p.countryCode != "" {
			values.Set("countryCode", p.countryCode)
		}
		return http.NewRequest(http.MethodGet, fmt.Sprintf("%s?%s", p.geocodeURL, values.Encode()), nil)
	}

	resp, err := common.DoWithResilience(ctx, p.name+"-geocoding", p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Place{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Results []struct {
			Name      string  `json:"name"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Place{}, fmt.Errorf("%w: geocoding: %v", weather.ErrMalformedResponse, err)
	}
	if len(payload.Results) == 0 {
		return weather.Place{}, weather.ErrLocationNotFound
	}

	first := payload.Results[0]
	return weather.Place{
		Name:      first.Name,
		Latitude:  first.Latitude,
		Longitude: first.Longitude,
	}, nil
}

// FetchForecast requests one day and the next 12 hours with epoch-second timestamps
// relative to the location's own timezone.
func (p *OpenMeteoProvider) FetchForecast(ctx context.Context, lat, lon float64) (weather.RawForecastResponse, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
		values.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
		values.Set("forecast_days", "1")
		values.Set("forecast_hours", "12")
		values.Set("hourly", hourlyFields)
		values.Set("daily", dailyFields)
		values.Set("timezone", "auto")
		values.Set("timeformat", "unixtime")
		return http.NewRequest(http.MethodGet, fmt.Sprintf("%s?%s", p.forecastURL, values.Encode()), nil)
	}

	resp, err := common.DoWithResilience(ctx, p.name, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.RawForecastResponse{}, err
	}
	defer resp.Body.Close()

	var payload weather.RawForecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.RawForecastResponse{}, fmt.Errorf("%w: %v", weather.ErrMalformedResponse, err)
	}
	return payload, nil
}

var (
	_ weather.Geocoder        = (*OpenMeteoProvider)(nil)
	_ weather.ForecastFetcher = (*OpenMeteoProvider)(nil)
)
