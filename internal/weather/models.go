package weather

// RawForecastResponse is the Open-Meteo forecast payload as decoded from the wire.
// Hourly fields are parallel arrays sharing index-to-timestamp correspondence.
type RawForecastResponse struct {
	UTCOffsetSeconds int        `json:"utc_offset_seconds"`
	Timezone         string     `json:"timezone,omitempty"`
	Hourly           *RawHourly `json:"hourly"`
	Daily            *RawDaily  `json:"daily"`
}

// RawHourly holds the hourly parallel arrays.
type RawHourly struct {
	Time                     []int64   `json:"time"`
	WeatherCode              []int     `json:"weather_code"`
	CloudCover               []float64 `json:"cloud_cover"`
	ApparentTemperature      []float64 `json:"apparent_temperature"`
	PrecipitationProbability []float64 `json:"precipitation_probability"`
	UVIndex                  []float64 `json:"uv_index"`
}

// RawDaily holds the daily aggregates; only index 0 is used.
type RawDaily struct {
	WeatherCode            []int     `json:"weather_code"`
	CloudCoverMean         []float64 `json:"cloud_cover_mean"`
	ApparentTemperatureMax []float64 `json:"apparent_temperature_max"`
	ApparentTemperatureMin []float64 `json:"apparent_temperature_min"`
}

// DailySummary is the single-day aggregate of a normalized forecast.
type DailySummary struct {
	WeatherCode   int     `json:"weatherCode"`
	CloudCoverPct float64 `json:"cloudCoverPct"`
	FeelsLikeMaxC float64 `json:"feelsLikeMaxC"`
	FeelsLikeMinC float64 `json:"feelsLikeMinC"`
}

// HourRecord is one forecast hour.
type HourRecord struct {
	TimestampUnix int64   `json:"timestampUnix"`
	WeatherCode   int     `json:"weatherCode"`
	CloudCoverPct float64 `json:"cloudCoverPct"`
	FeelsLikeC    float64 `json:"feelsLikeC"`
	PrecipProbPct float64 `json:"precipProbPct"`
	UVIndex       float64 `json:"uvIndex"`
}

// NormalizedForecast is the provider-independent shape consumed by the renderers.
// Hours are ordered ascending by timestamp and never include the current hour.
type NormalizedForecast struct {
	UTCOffsetSeconds int          `json:"utcOffsetSeconds"`
	Daily            DailySummary `json:"daily"`
	Hours            []HourRecord `json:"hours"`
}

// Place is a resolved location.
type Place struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
