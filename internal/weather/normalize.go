package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedResponse is returned when a provider payload is missing its expected shape.
	ErrMalformedResponse = errors.New("malformed forecast response")

	// ErrLocationNotFound is returned by geocoders when a query has no match.
	ErrLocationNotFound = errors.New("location not found")
)

// Normalize reshapes a raw provider response into a NormalizedForecast.
// Index 0 of the hourly block is the current hour and is always dropped.
// Values pass through unchanged; the provider already reports °C and percentages.
func Normalize(raw RawForecastResponse) (NormalizedForecast, error) {
	if raw.Hourly == nil {
		return NormalizedForecast{}, fmt.Errorf("%w: hourly block missing", ErrMalformedResponse)
	}
	if raw.Daily == nil {
		return NormalizedForecast{}, fmt.Errorf("%w: daily block missing", ErrMalformedResponse)
	}

	daily, err := normalizeDaily(raw.Daily)
	if err != nil {
		return NormalizedForecast{}, err
	}

	h := raw.Hourly
	n := len(h.Time)
	if n == 0 {
		return NormalizedForecast{}, fmt.Errorf("%w: hourly block is empty", ErrMalformedResponse)
	}
	lengths := []struct {
		field string
		n     int
	}{
		{"weather_code", len(h.WeatherCode)},
		{"cloud_cover", len(h.CloudCover)},
		{"apparent_temperature", len(h.ApparentTemperature)},
		{"precipitation_probability", len(h.PrecipitationProbability)},
		{"uv_index", len(h.UVIndex)},
	}
	for _, l := range lengths {
		if l.n != n {
			return NormalizedForecast{}, fmt.Errorf("%w: hourly %s has %d entries, time has %d", ErrMalformedResponse, l.field, l.n, n)
		}
	}

	hours := make([]HourRecord, 0, n-1)
	for i := 1; i < n; i++ {
		hours = append(hours, HourRecord{
			TimestampUnix: h.Time[i],
			WeatherCode:   h.WeatherCode[i],
			CloudCoverPct: h.CloudCover[i],
			FeelsLikeC:    h.ApparentTemperature[i],
			PrecipProbPct: h.PrecipitationProbability[i],
			UVIndex:       h.UVIndex[i],
		})
	}

	return NormalizedForecast{
		UTCOffsetSeconds: raw.UTCOffsetSeconds,
		Daily:            daily,
		Hours:            hours,
	}, nil
}

func normalizeDaily(d *RawDaily) (DailySummary, error) {
	if len(d.WeatherCode) == 0 || len(d.CloudCoverMean) == 0 ||
		len(d.ApparentTemperatureMax) == 0 || len(d.ApparentTemperatureMin) == 0 {
		return DailySummary{}, fmt.Errorf("%w: daily block has empty fields", ErrMalformedResponse)
	}
	return DailySummary{
		WeatherCode:   d.WeatherCode[0],
		CloudCoverPct: d.CloudCoverMean[0],
		FeelsLikeMaxC: d.ApparentTemperatureMax[0],
		FeelsLikeMinC: d.ApparentTemperatureMin[0],
	}, nil
}
