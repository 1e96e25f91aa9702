package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/i474232898/forecast-bot/internal/weather"
)

type countingGeocoder struct {
	calls int
}

func (g *countingGeocoder) Resolve(_ context.Context, query string) (weather.Place, error) {
	g.calls++
	return weather.Place{Name: query, Latitude: 1, Longitude: 2}, nil
}

func TestOverrideGeocoderBypassesNetwork(t *testing.T) {
	next := &countingGeocoder{}
	g := NewOverrideGeocoder(next)

	for _, q := range []string{"Islas Malvinas", "islas  MALVINAS ", "islas georgias del sur", "Islas Sandwich del Sur"} {
		place, err := g.Resolve(context.Background(), q)
		require.NoError(t, err)
		require.NotZero(t, place.Latitude, q)
	}
	require.Zero(t, next.calls)

	place, err := g.Resolve(context.Background(), "Islas Malvinas")
	require.NoError(t, err)
	require.Equal(t, weather.Place{Name: "Islas Malvinas", Latitude: -51.7963, Longitude: -59.5236}, place)
}

func TestOverrideGeocoderDelegates(t *testing.T) {
	next := &countingGeocoder{}
	g := NewOverrideGeocoder(next)

	place, err := g.Resolve(context.Background(), "Ushuaia")
	require.NoError(t, err)
	require.Equal(t, "Ushuaia", place.Name)
	require.Equal(t, 1, next.calls)
}
