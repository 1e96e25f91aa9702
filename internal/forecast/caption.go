package forecast

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/i474232898/forecast-bot/internal/common"
	"github.com/i474232898/forecast-bot/internal/weather"
)

// MaxCaptionHours caps the hourly blocks in a caption; the chart shows every hour.
const MaxCaptionHours = 8

const (
	captionDivider = "~------------------------------~"
	captionFooter  = "> Forecast provided by _Open-Meteo_"
	captionNotice  = "_Due to WhatsApp limitations, remember to send here any message before 24 hours passes from *your* previous message._\n" +
		"_If not done, you *will not* receive the next forecast updates before you send a message._"
)

// RenderCaption builds the chat message for a forecast. The date line comes from now,
// which the caller has already moved into the rendering timezone. Output depends only
// on the arguments.
func RenderCaption(f weather.NormalizedForecast, location string, now time.Time) (string, error) {
	headline, err := ConditionIcon(f.Daily.WeatherCode, f.Daily.CloudCoverPct)
	if err != nil {
		return "", fmt.Errorf("daily headline: %w", err)
	}

	hours := f.Hours
	if len(hours) > MaxCaptionHours {
		hours = hours[:MaxCaptionHours]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *Weather Forecast for %s*\n", headline, common.TitleCase(location))
	fmt.Fprintf(&b, "```%s```\n", now.Format("02/Jan/2006"))
	b.WriteString(captionDivider + "\n")
	fmt.Fprintf(&b, "Next %d-hour forecast:\n", len(hours))

	for i, h := range hours {
		if err := writeHour(&b, h, f.UTCOffsetSeconds); err != nil {
			return "", fmt.Errorf("hour %d: %w", i, err)
		}
	}

	b.WriteString(captionFooter + "\n")
	b.WriteString(captionDivider + "\n")
	b.WriteString(captionNotice)

	return strings.TrimSpace(b.String()), nil
}

func writeHour(b *strings.Builder, h weather.HourRecord, offset int) error {
	icon, err := ConditionIcon(h.WeatherCode, h.CloudCoverPct)
	if err != nil {
		return err
	}
	clock, err := ClockIcon(ClockHour(h.TimestampUnix, offset))
	if err != nil {
		return err
	}
	feels, err := FeelsLikeIcon(h.FeelsLikeC)
	if err != nil {
		return err
	}
	precip, err := PrecipitationIcon(h.PrecipProbPct)
	if err != nil {
		return err
	}
	uv, err := UVIndexIcon(h.UVIndex)
	if err != nil {
		return err
	}

	fmt.Fprintf(b, "*%s %s* %s\n", clock, LocalClock(h.TimestampUnix, offset), icon)
	fmt.Fprintf(b, "- %s | %d °C\n", feels, roundInt(h.FeelsLikeC))
	fmt.Fprintf(b, "- %s | %d %%\n", precip, roundInt(h.PrecipProbPct))
	fmt.Fprintf(b, "- %s | %d UV\n\n", uv, roundInt(h.UVIndex))
	return nil
}

// roundInt rounds half to even.
func roundInt(v float64) int {
	return int(math.RoundToEven(v))
}
