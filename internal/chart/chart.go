package chart

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/i474232898/forecast-bot/internal/common"
	"github.com/i474232898/forecast-bot/internal/forecast"
	"github.com/i474232898/forecast-bot/internal/weather"
)

// ErrEmptySeries is returned when a forecast has no hourly records to plot.
var ErrEmptySeries = errors.New("forecast has no hourly data to chart")

const attribution = "Open-Meteo"

var (
	colorFeelsLike = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
	colorCloud     = color.RGBA{R: 0x17, G: 0xbe, B: 0xcf, A: 0xff}
	colorPrecip    = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	colorUV        = color.RGBA{R: 0x94, G: 0x67, B: 0xbd, A: 0xff}
	colorFootnote  = color.Gray{Y: 0x80}
)

// Renderer draws the four-panel forecast chart as a PNG file under Dir.
type Renderer struct {
	Dir    string
	Width  vg.Length
	Height vg.Length
	DPI    int
}

func NewRenderer(dir string) *Renderer {
	return &Renderer{
		Dir:    dir,
		Width:  10 * vg.Inch,
		Height: 6 * vg.Inch,
		DPI:    150,
	}
}

// Render writes the chart and returns its absolute path. The file name and
// footnote carry the date of now, which is expected in the rendering timezone.
func (r *Renderer) Render(f weather.NormalizedForecast, location string, now time.Time) (string, error) {
	if len(f.Hours) == 0 {
		return "", ErrEmptySeries
	}

	labels := make([]string, len(f.Hours))
	feels := make(plotter.XYs, len(f.Hours))
	cloud := make(plotter.XYs, len(f.Hours))
	precip := make(plotter.XYs, len(f.Hours))
	uv := make(plotter.XYs, len(f.Hours))
	for i, h := range f.Hours {
		x := float64(i)
		labels[i] = forecast.LocalClock(h.TimestampUnix, f.UTCOffsetSeconds)
		feels[i] = plotter.XY{X: x, Y: h.FeelsLikeC}
		cloud[i] = plotter.XY{X: x, Y: h.CloudCoverPct}
		precip[i] = plotter.XY{X: x, Y: h.PrecipProbPct}
		uv[i] = plotter.XY{X: x, Y: h.UVIndex}
	}

	tempMin, tempMax := TemperatureRange(f.Daily, feels)
	panels := []struct {
		title string
		unit  string
		data  plotter.XYs
		color color.Color
		yMin  float64
		yMax  float64
	}{
		{"Feels Like Temperature (°C)", "°C", feels, colorFeelsLike, tempMin, tempMax},
		{"Cloud Cover (%)", "%", cloud, colorCloud, 0, 100},
		{"Precipitation Probability (%)", "%", precip, colorPrecip, 0, 100},
		{"UV Index", "UV", uv, colorUV, 0, UVCeiling(uv)},
	}

	plots := make([][]*plot.Plot, 2)
	for i, panel := range panels {
		p, err := newPanel(panel.title, panel.unit, labels, panel.data, panel.color)
		if err != nil {
			return "", fmt.Errorf("panel %q: %w", panel.title, err)
		}
		p.Y.Min, p.Y.Max = panel.yMin, panel.yMax
		plots[i/2] = append(plots[i/2], p)
	}

	img := vgimg.NewWith(vgimg.UseWH(r.Width, r.Height), vgimg.UseDPI(r.DPI))
	dc := draw.New(img)
	dc.SetColor(color.White)
	dc.Fill(dc.Rectangle.Path())

	titleH := vg.Points(28)
	footerH := vg.Points(18)
	centerX := (dc.Min.X + dc.Max.X) / 2

	dc.FillText(textStyle(color.Black, 16, text.YTop), vg.Point{X: centerX, Y: dc.Max.Y - vg.Points(4)},
		"Weather Forecast for "+location)
	dc.FillText(textStyle(colorFootnote, 10, text.YBottom), vg.Point{X: centerX, Y: dc.Min.Y + vg.Points(4)},
		fmt.Sprintf("%s | %s", now.Format("02/Jan/2006"), attribution))

	tiles := draw.Tiles{
		Rows:      2,
		Cols:      2,
		PadX:      vg.Millimeter * 4,
		PadY:      vg.Millimeter * 4,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
		PadTop:    vg.Millimeter,
		PadBottom: vg.Millimeter,
	}
	body := draw.Crop(dc, 0, 0, footerH, -titleH)
	canvases := plot.Align(plots, tiles, body)
	for row := range plots {
		for col := range plots[row] {
			plots[row][col].Draw(canvases[row][col])
		}
	}

	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create chart dir: %w", err)
	}
	path, err := filepath.Abs(filepath.Join(r.Dir, FileName(location, now)))
	if err != nil {
		return "", fmt.Errorf("resolve chart path: %w", err)
	}

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create chart file: %w", err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(out); err != nil {
		out.Close()
		return "", fmt.Errorf("encode chart: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close chart file: %w", err)
	}
	return path, nil
}

// FileName encodes the render date and a slug of the location.
func FileName(location string, now time.Time) string {
	return fmt.Sprintf("%s_%s_forecast.png", now.Format("2006-01-02"), common.Slug(location))
}

// TemperatureRange widens the daily feels-like bounds so the plotted series is never clipped.
func TemperatureRange(daily weather.DailySummary, series plotter.XYs) (float64, float64) {
	lo, hi := daily.FeelsLikeMinC, daily.FeelsLikeMaxC
	for _, pt := range series {
		lo = math.Min(lo, pt.Y)
		hi = math.Max(hi, pt.Y)
	}
	lo, hi = math.Floor(lo), math.Ceil(hi)
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi
}

// UVCeiling is the rounded-up series maximum, at least 1 so a zero-UV night still has an axis.
func UVCeiling(series plotter.XYs) float64 {
	hi := 0.0
	for _, pt := range series {
		hi = math.Max(hi, pt.Y)
	}
	return math.Max(1, math.Ceil(hi))
}

func newPanel(title, unit string, labels []string, data plotter.XYs, c color.Color) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time"
	p.Y.Label.Text = unit

	line, points, err := plotter.NewLinePoints(data)
	if err != nil {
		return nil, err
	}
	line.Color = c
	line.Width = vg.Points(1.5)
	points.Color = c
	points.Shape = draw.CircleGlyph{}
	points.Radius = vg.Points(2.5)

	p.Add(plotter.NewGrid(), line, points)
	p.NominalX(labels...)
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = text.XRight
	p.X.Tick.Label.YAlign = text.YCenter
	return p, nil
}

func textStyle(c color.Color, size float64, valign text.YAlignment) text.Style {
	return text.Style{
		Color:   c,
		Font:    font.From(plot.DefaultFont, vg.Points(size)),
		XAlign:  text.XCenter,
		YAlign:  valign,
		Handler: plot.DefaultTextHandler,
	}
}
