package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/valkey-io/valkey-go"

	httpapi "github.com/i474232898/forecast-bot/internal/api/http"
	"github.com/i474232898/forecast-bot/internal/chart"
	"github.com/i474232898/forecast-bot/internal/config"
	"github.com/i474232898/forecast-bot/internal/forecast"
	"github.com/i474232898/forecast-bot/internal/logger"
	"github.com/i474232898/forecast-bot/internal/scheduler"
	"github.com/i474232898/forecast-bot/internal/store"
	"github.com/i474232898/forecast-bot/internal/weather"
	"github.com/i474232898/forecast-bot/internal/weather/providers"
	"github.com/i474232898/forecast-bot/internal/webhook"
	"github.com/i474232898/forecast-bot/internal/whatsapp"
)

type application struct {
	cfg       *config.AppConfig
	logger    *slog.Logger
	messenger *whatsapp.Client
	service   *weather.Service
	closers   []func()
}

func bootstrap() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New()
	slog.SetDefault(log)

	a := &application{cfg: cfg, logger: log}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	openMeteo := providers.NewOpenMeteoProvider(httpClient, providers.OpenMeteoOptions{
		Language:    cfg.GeocoderLanguage,
		CountryCode: cfg.GeocoderCountry,
		MaxRetries:  cfg.OutboundMaxRetries,
	})
	log.Info("forecast provider ready", "provider", openMeteo.Name())
	var geocoder weather.Geocoder = openMeteo
	if cfg.GoogleGeocoderAPIKey != "" {
		geocoder = providers.NewGoogleGeocoder(cfg.GoogleGeocoderAPIKey, cfg.GeocoderCountry, cfg.HTTPTimeout)
		log.Info("using google geocoder")
	}

	a.messenger = whatsapp.NewClient(httpClient, whatsapp.Options{
		BaseURL:       cfg.WhatsAppAPIBase,
		PhoneNumberID: cfg.WhatsAppPhoneNumberID,
		AccessToken:   cfg.WhatsAppAccessToken,
		MaxRetries:    cfg.OutboundMaxRetries,
	})

	var recorder weather.Recorder
	if cfg.AnalyticsDB != "" {
		analytics, err := a.openAnalytics()
		if err != nil {
			return nil, err
		}
		recorder = analytics
	}

	a.service = weather.NewService(weather.Options{
		Geocoder:   providers.NewOverrideGeocoder(geocoder),
		Fetcher:    openMeteo,
		Caption:    forecast.RenderCaption,
		Charts:     chart.NewRenderer(cfg.ChartDir),
		Messenger:  a.messenger,
		Recorder:   recorder,
		Zone:       cfg.RenderLocation,
		KeepCharts: cfg.KeepCharts,
		Logger:     log,
	})
	return a, nil
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *application) openAnalytics() (*store.Analytics, error) {
	db, err := store.OpenSQLite(a.cfg.AnalyticsDB, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { db.Close() })

	analytics := store.NewAnalytics(db, a.cfg.RenderLocation)
	if err := analytics.Migrate(); err != nil {
		return nil, err
	}
	return analytics, nil
}

// dedupWindow prefers a shared Valkey window and falls back to process memory.
func (a *application) dedupWindow() webhook.DedupWindow {
	memory := func() webhook.DedupWindow {
		return store.NewMemoryWindow(a.cfg.DedupMaxEntries, a.cfg.DedupMaxAge)
	}
	if a.cfg.ValkeyAddr == "" {
		return memory()
	}

	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(a.cfg.ValkeyAddr, "://") {
		opt, err = valkey.ParseURL(a.cfg.ValkeyAddr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{a.cfg.ValkeyAddr}}
	}
	if err != nil {
		a.logger.Error("invalid valkey address, using in-memory dedup window", "error", err)
		return memory()
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		a.logger.Error("failed to create valkey client, using in-memory dedup window", "error", err)
		return memory()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		a.logger.Error("valkey ping failed, using in-memory dedup window", "error", err)
		return memory()
	}
	a.closers = append(a.closers, client.Close)
	a.logger.Info("valkey dedup window enabled", "addr", a.cfg.ValkeyAddr)
	return store.NewValkeyWindow(client, "", a.cfg.DedupMaxAge)
}

func (a *application) serve() error {
	if err := a.cfg.ValidateServer(); err != nil {
		return err
	}

	gate := webhook.NewGate(webhook.Options{
		Secret:     a.cfg.Server.MetaAppSecret,
		Window:     a.dedupWindow(),
		Reader:     a.messenger,
		Dispatcher: a.service,
		Freshness:  a.cfg.FreshnessWindow,
		Logger:     a.logger,
	})

	sched := scheduler.New(a.cfg.Schedule, a.cfg.RenderLocation, a.service, a.logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "forecast-bot",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          httpapi.DefaultPipelineTimeout + 10*time.Second,
		ErrorHandler:          httpapi.ErrorHandler(a.logger),
	})

	// Global middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	httpapi.RegisterRoutes(app, httpapi.Options{
		Gate:             gate,
		Sender:           a.service,
		VerifyToken:      a.cfg.Server.WebhookVerifyToken,
		AuthorizationKey: a.cfg.Server.APIAuthorizationKey,
		Logger:           a.logger,
	})

	listenErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "port", a.cfg.Server.Port)
		listenErr <- app.Listen(":" + a.cfg.Server.Port)
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-listenErr:
		return fmt.Errorf("fiber server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	a.logger.Info("server stopped")
	return nil
}
