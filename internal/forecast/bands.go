package forecast

import (
	"fmt"
	"math"
	"sort"
)

// DomainError reports a value outside the input domain of a classification table.
type DomainError struct {
	Quantity string
	Value    float64
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: value %v is outside the classifier domain", e.Quantity, e.Value)
}

type band struct {
	low   float64
	token string
}

// Table maps a real value onto ordered half-open bands [low_i, low_{i+1}).
// Values must be finite and lie within [min, max]; max itself belongs to the
// last band.
type Table struct {
	quantity string
	min, max float64
	bands    []band
}

// Classify returns the token of the band containing v.
func (t Table) Classify(v float64) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < t.min || v > t.max {
		return "", &DomainError{Quantity: t.quantity, Value: v}
	}
	i := sort.Search(len(t.bands), func(i int) bool { return t.bands[i].low > v }) - 1
	if i < 0 {
		return "", &DomainError{Quantity: t.quantity, Value: v}
	}
	return t.bands[i].token, nil
}

var (
	CloudCoverBands = Table{
		quantity: "cloud_cover",
		min:      0,
		max:      100,
		bands: []band{
			{0, "☀️"},
			{11, "🌤️"},
			{36, "⛅"},
			{61, "🌥️"},
			{86, "☁️"},
		},
	}

	FeelsLikeBands = Table{
		quantity: "feels_like",
		min:      math.Inf(-1),
		max:      math.Inf(1),
		bands: []band{
			{math.Inf(-1), "🥶"},
			{0, "❄️"},
			{11, "🙂"},
			{21, "🥵"},
			{31, "🔥"},
		},
	}

	PrecipitationBands = Table{
		quantity: "precipitation_probability",
		min:      0,
		max:      100,
		bands: []band{
			{0, "☂️"},
			{60, "☔"},
		},
	}

	UVIndexBands = Table{
		quantity: "uv_index",
		min:      0,
		max:      math.Inf(1),
		bands: []band{
			{0, "🟢"},
			{3, "🟡"},
			{6, "🟠"},
			{8, "🔴"},
			{11, "🟣"},
		},
	}
)

const (
	iconRain         = "🌧️"
	iconDrizzle      = "🌦️"
	iconThunderstorm = "⛈️"
)

// WMO codes with a dedicated icon. Clear and cloudy codes fall back to cloud cover.
var weatherCodeIcons = map[int]string{
	61: iconRain, 63: iconRain, 65: iconRain,
	51: iconDrizzle, 53: iconDrizzle, 55: iconDrizzle,
	80: iconDrizzle, 81: iconDrizzle, 82: iconDrizzle,
	95: iconThunderstorm,
}

var clockIcons = [12]string{"🕐", "🕑", "🕒", "🕓", "🕔", "🕕", "🕖", "🕗", "🕘", "🕙", "🕚", "🕛"}

// WeatherCodeIcon returns the icon for a WMO code, or false when the code has none.
func WeatherCodeIcon(code int) (string, bool) {
	icon, ok := weatherCodeIcons[code]
	return icon, ok
}

func CloudCoverIcon(pct float64) (string, error)    { return CloudCoverBands.Classify(pct) }
func FeelsLikeIcon(celsius float64) (string, error) { return FeelsLikeBands.Classify(celsius) }
func PrecipitationIcon(pct float64) (string, error) { return PrecipitationBands.Classify(pct) }
func UVIndexIcon(uv float64) (string, error)        { return UVIndexBands.Classify(uv) }

// ClockIcon returns the clock-face glyph for a 12-hour clock hour (1..12).
func ClockIcon(hour int) (string, error) {
	if hour < 1 || hour > 12 {
		return "", &DomainError{Quantity: "clock_hour", Value: float64(hour)}
	}
	return clockIcons[hour-1], nil
}

// ConditionIcon picks the weather-code icon and falls back to cloud cover.
func ConditionIcon(code int, cloudCoverPct float64) (string, error) {
	if icon, ok := WeatherCodeIcon(code); ok {
		return icon, nil
	}
	return CloudCoverIcon(cloudCoverPct)
}
