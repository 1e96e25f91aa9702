package forecast

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/i474232898/forecast-bot/internal/weather"
)

// 2023-11-14 22:00:00 UTC, 19:00 at UTC-3.
const baseTS int64 = 1699999200

var renderNow = time.Date(2023, time.November, 14, 19, 30, 0, 0, time.FixedZone("ART", -3*3600))

func sampleForecast() weather.NormalizedForecast {
	return weather.NormalizedForecast{
		UTCOffsetSeconds: -3 * 3600,
		Daily: weather.DailySummary{
			WeatherCode:   3,
			CloudCoverPct: 40,
			FeelsLikeMaxC: 24,
			FeelsLikeMinC: 14,
		},
		Hours: []weather.HourRecord{
			{TimestampUnix: baseTS, WeatherCode: 61, CloudCoverPct: 90, FeelsLikeC: 20.5, PrecipProbPct: 60, UVIndex: 2.5},
			{TimestampUnix: baseTS + 3600, WeatherCode: 0, CloudCoverPct: 5, FeelsLikeC: 21.5, PrecipProbPct: 10, UVIndex: 3},
		},
	}
}

func TestRenderCaptionGolden(t *testing.T) {
	got, err := RenderCaption(sampleForecast(), "buenos aires", renderNow)
	require.NoError(t, err)

	want := strings.Join([]string{
		"⛅ *Weather Forecast for Buenos Aires*",
		"```14/Nov/2023```",
		"~------------------------------~",
		"Next 2-hour forecast:",
		"*🕖 19:00* 🌧️",
		"- 🙂 | 20 °C",
		"- ☔ | 60 %",
		"- 🟢 | 2 UV",
		"",
		"*🕗 20:00* ☀️",
		"- 🥵 | 22 °C",
		"- ☂️ | 10 %",
		"- 🟡 | 3 UV",
		"",
		"> Forecast provided by _Open-Meteo_",
		"~------------------------------~",
		"_Due to WhatsApp limitations, remember to send here any message before 24 hours passes from *your* previous message._",
		"_If not done, you *will not* receive the next forecast updates before you send a message._",
	}, "\n")
	require.Equal(t, want, got)
}

func TestRenderCaptionDeterministic(t *testing.T) {
	f := sampleForecast()
	first, err := RenderCaption(f, "Córdoba", renderNow)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := RenderCaption(f, "Córdoba", renderNow)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestRenderCaptionCapsHourBlocks(t *testing.T) {
	f := sampleForecast()
	f.Hours = nil
	for i := 0; i < 11; i++ {
		f.Hours = append(f.Hours, weather.HourRecord{
			TimestampUnix: baseTS + int64(i)*3600,
			CloudCoverPct: 50,
			FeelsLikeC:    15,
			PrecipProbPct: 20,
			UVIndex:       1,
		})
	}

	got, err := RenderCaption(f, "Rosario", renderNow)
	require.NoError(t, err)
	require.Equal(t, MaxCaptionHours, strings.Count(got, " UV\n"))
	require.Contains(t, got, "Next 8-hour forecast:")
	require.Contains(t, got, "*🕑 02:00*")
	require.NotContains(t, got, "03:00")
}

func TestRenderCaptionHeadlinePrefersWeatherCode(t *testing.T) {
	f := sampleForecast()
	f.Daily.WeatherCode = 61
	f.Daily.CloudCoverPct = 0

	got, err := RenderCaption(f, "Mendoza", renderNow)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(got, "🌧️ *Weather Forecast for Mendoza*"), got)
}

func TestRenderCaptionHeadlineFallsBackToCloudCover(t *testing.T) {
	f := sampleForecast()
	f.Daily.WeatherCode = 0
	f.Daily.CloudCoverPct = 5

	got, err := RenderCaption(f, "salta", renderNow)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(got, "☀️ *Weather Forecast for Salta*"), got)
}

func TestRenderCaptionRejectsOutOfDomainValues(t *testing.T) {
	f := sampleForecast()
	f.Hours[1].PrecipProbPct = 140

	_, err := RenderCaption(f, "Salta", renderNow)
	var de *DomainError
	require.ErrorAs(t, err, &de)
	require.Equal(t, "precipitation_probability", de.Quantity)
}

func TestRenderCaptionWithoutHours(t *testing.T) {
	f := sampleForecast()
	f.Hours = nil

	got, err := RenderCaption(f, "Ushuaia", renderNow)
	require.NoError(t, err)
	require.Contains(t, got, "Next 0-hour forecast:\n> Forecast provided by _Open-Meteo_")
}
