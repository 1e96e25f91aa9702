package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/forecast-bot/internal/common"
	"github.com/i474232898/forecast-bot/internal/metrics"
)

// Request asks the pipeline to deliver one forecast.
type Request struct {
	To       string
	Location string
	Auto     bool
}

// Options wires the collaborators of a Service.
type Options struct {
	Geocoder   Geocoder
	Fetcher    ForecastFetcher
	Caption    CaptionFunc
	Charts     ChartRenderer
	Messenger  Messenger
	Recorder   Recorder
	Zone       *time.Location
	KeepCharts bool
	Logger     *slog.Logger
}

// Service orchestrates geocode -> fetch -> normalize -> render -> deliver.
type Service struct {
	geocoder   Geocoder
	fetcher    ForecastFetcher
	caption    CaptionFunc
	charts     ChartRenderer
	messenger  Messenger
	recorder   Recorder
	zone       *time.Location
	keepCharts bool
	now        func() time.Time
	logger     *slog.Logger
}

// NewService creates a new Service.
func NewService(opts Options) *Service {
	zone := opts.Zone
	if zone == nil {
		zone = time.UTC
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		geocoder:   opts.Geocoder,
		fetcher:    opts.Fetcher,
		caption:    opts.Caption,
		charts:     opts.Charts,
		messenger:  opts.Messenger,
		recorder:   opts.Recorder,
		zone:       zone,
		keepCharts: opts.KeepCharts,
		now:        time.Now,
		logger:     logger.With("component", "pipeline"),
	}
}

// NotFoundText is the reply sent when a location cannot be resolved.
func NotFoundText(location string) string {
	return fmt.Sprintf("The '%s' location was not found. Please try again with a different location.", location)
}

// SendForecast runs the full pipeline for one recipient. A geocode miss is answered
// with a text reply and reported as ErrLocationNotFound.
func (s *Service) SendForecast(ctx context.Context, req Request) (err error) {
	start := time.Now()
	trigger := "on_demand"
	if req.Auto {
		trigger = "scheduled"
	}
	logger := s.logger.With("run_id", uuid.NewString(), "trigger", trigger, "location", req.Location)
	defer func() {
		outcome := "sent"
		switch {
		case errors.Is(err, ErrLocationNotFound):
			outcome = "location_not_found"
		case err != nil:
			outcome = "failed"
		}
		metrics.PipelineRuns.WithLabelValues(trigger, outcome).Inc()
		metrics.PipelineDuration.WithLabelValues(trigger).Observe(time.Since(start).Seconds())
	}()

	logger.Info("resolving location")
	place, err := s.geocoder.Resolve(ctx, req.Location)
	if err != nil {
		if errors.Is(err, ErrLocationNotFound) {
			logger.Info("location not found")
			if sendErr := s.messenger.SendText(ctx, req.To, NotFoundText(req.Location)); sendErr != nil {
				return errors.Join(err, fmt.Errorf("send not-found reply: %w", sendErr))
			}
			return err
		}
		return fmt.Errorf("resolve location: %w", err)
	}

	now := s.now().In(s.zone)
	name := place.Name
	if name == "" {
		name = req.Location
	}
	name = common.TitleCase(name)
	s.record(ctx, logger, RequestEntry{At: now, Recipient: req.To, Location: name, Auto: req.Auto})

	logger.Info("fetching forecast", "lat", place.Latitude, "lon", place.Longitude)
	raw, err := s.fetcher.FetchForecast(ctx, place.Latitude, place.Longitude)
	if err != nil {
		return fmt.Errorf("fetch forecast: %w", err)
	}

	forecast, err := Normalize(raw)
	if err != nil {
		return err
	}

	caption, err := s.caption(forecast, name, now)
	if err != nil {
		return fmt.Errorf("render caption: %w", err)
	}

	chartPath, err := s.charts.Render(forecast, name, now)
	if err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	if !s.keepCharts {
		defer func() {
			if rmErr := os.Remove(chartPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				logger.Warn("remove chart", "path", chartPath, "error", rmErr)
			}
		}()
	}

	logger.Info("sending forecast", "hours", len(forecast.Hours))
	if err := s.messenger.SendImage(ctx, req.To, caption, chartPath); err != nil {
		return fmt.Errorf("send forecast: %w", err)
	}
	return nil
}

func (s *Service) record(ctx context.Context, logger *slog.Logger, entry RequestEntry) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, entry); err != nil {
		logger.Warn("analytics record failed", "error", err)
	}
}
