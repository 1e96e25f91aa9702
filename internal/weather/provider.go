package weather

import (
	"context"
	"time"
)

// Geocoder resolves free-text location queries (e.g. Open-Meteo, Google).
type Geocoder interface {
	Resolve(ctx context.Context, query string) (Place, error)
}

// ForecastFetcher retrieves the raw hourly/daily forecast for a coordinate.
type ForecastFetcher interface {
	FetchForecast(ctx context.Context, lat, lon float64) (RawForecastResponse, error)
}

// Messenger is the outbound messaging channel.
type Messenger interface {
	SendImage(ctx context.Context, to, caption, imagePath string) error
	SendText(ctx context.Context, to, body string) error
}

// CaptionFunc renders the text caption of a forecast.
type CaptionFunc func(f NormalizedForecast, location string, now time.Time) (string, error)

// ChartRenderer renders the forecast chart and returns the image path.
type ChartRenderer interface {
	Render(f NormalizedForecast, location string, now time.Time) (string, error)
}

// Recorder persists an analytics entry for each forecast request.
type Recorder interface {
	Record(ctx context.Context, entry RequestEntry) error
}

// RequestEntry is one analytics row.
type RequestEntry struct {
	At        time.Time
	Recipient string
	Location  string
	Auto      bool
}
