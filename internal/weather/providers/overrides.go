package providers

import (
	"context"
	"strings"

	"github.com/i474232898/forecast-bot/internal/weather"
)

// islandOverrides are resolved locally; the geocoding API does not return them for
// the configured country.
var islandOverrides = map[string]weather.Place{
	"islas malvinas":         {Name: "Islas Malvinas", Latitude: -51.7963, Longitude: -59.5236},
	"islas georgias del sur": {Name: "Islas Georgias del Sur", Latitude: -54.4296, Longitude: -36.5879},
	"islas sandwich del sur": {Name: "Islas Sandwich del Sur", Latitude: -57.7500, Longitude: -26.4500},
}

// OverrideGeocoder answers hardcoded locations before delegating to next.
type OverrideGeocoder struct {
	next weather.Geocoder
}

func NewOverrideGeocoder(next weather.Geocoder) *OverrideGeocoder {
	return &OverrideGeocoder{next: next}
}

func (g *OverrideGeocoder) Resolve(ctx context.Context, query string) (weather.Place, error) {
	key := strings.ToLower(strings.Join(strings.Fields(query), " "))
	if place, ok := islandOverrides[key]; ok {
		return place, nil
	}
	return g.next.Resolve(ctx, query)
}

var _ weather.Geocoder = (*OverrideGeocoder)(nil)
