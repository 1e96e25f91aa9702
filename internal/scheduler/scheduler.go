package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/forecast-bot/internal/config"
	"github.com/i474232898/forecast-bot/internal/weather"
	"github.com/i474232898/forecast-bot/internal/whatsapp"
)

// DefaultJobTimeout bounds one scheduled pipeline run.
const DefaultJobTimeout = 60 * time.Second

// Dispatcher runs the forecast pipeline.
type Dispatcher interface {
	SendForecast(ctx context.Context, req weather.Request) error
}

// Scheduler delivers forecasts on the configured cron expressions and intervals.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	dispatcher Dispatcher
	jobs       []config.ScheduleJob
	timeout    time.Duration
	logger     *slog.Logger
}

// New creates a new Scheduler evaluating cron expressions in loc.
func New(jobs []config.ScheduleJob, loc *time.Location, dispatcher Dispatcher, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := gocron.NewScheduler(loc)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler:  s,
		dispatcher: dispatcher,
		jobs:       jobs,
		timeout:    DefaultJobTimeout,
		logger:     logger.With("component", "scheduler"),
	}
}

// Start registers every job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.jobs) == 0 {
		s.logger.Info("no scheduled forecasts configured")
		return nil
	}

	for i, job := range s.jobs {
		var err error
		switch {
		case job.Cron != "":
			_, err = s.scheduler.Cron(job.Cron).Do(s.run, job)
		case job.Every > 0:
			_, err = s.scheduler.Every(job.Every).Do(s.run, job)
		default:
			err = errors.New("job needs cron or every")
		}
		if err != nil {
			s.scheduler.Clear()
			return fmt.Errorf("schedule job %d (%s): %w", i, job.Location, err)
		}
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) run(job config.ScheduleJob) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	logger := s.logger.With("location", job.Location)
	logger.Info("running scheduled forecast")
	err := s.dispatcher.SendForecast(ctx, weather.Request{
		To:       whatsapp.NormalizeNumber(job.To),
		Location: job.Location,
		Auto:     true,
	})
	if err != nil {
		logger.Error("scheduled forecast failed", "error", err)
	}
}
