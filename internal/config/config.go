package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// ServerConfig holds the secrets only the HTTP surface needs.
type ServerConfig struct {
	Port                string `validate:"required,numeric"`
	MetaAppSecret       string `validate:"required"`
	WebhookVerifyToken  string `validate:"required"`
	APIAuthorizationKey string `validate:"required"`
}

type AppConfig struct {
	Server ServerConfig

	WhatsAppAccessToken   string `validate:"required"`
	WhatsAppPhoneNumberID string `validate:"required"`
	WhatsAppAPIBase       string `validate:"required,url"`

	// Outbound calls.
	HTTPTimeout        time.Duration `validate:"gt=0"`
	OutboundMaxRetries int           `validate:"gte=0,lte=10"`

	// Webhook gate.
	FreshnessWindow time.Duration `validate:"gt=0"`
	DedupMaxEntries int           `validate:"gt=0"`
	DedupMaxAge     time.Duration `validate:"gt=0"`
	ValkeyAddr      string

	ChartDir       string `validate:"required"`
	KeepCharts     bool
	RenderTimezone string         `validate:"required"`
	RenderLocation *time.Location `validate:"-"`

	GeocoderLanguage     string
	GeocoderCountry      string `validate:"omitempty,len=2"`
	GoogleGeocoderAPIKey string

	AnalyticsDB  string
	ScheduleFile string
	Schedule     []ScheduleJob `validate:"dive"`

	LogLevel string
}

// ScheduleJob delivers a forecast to one recipient on a cron expression or a fixed interval.
type ScheduleJob struct {
	To       string        `yaml:"to" validate:"required,numeric"`
	Location string        `yaml:"location" validate:"required"`
	Cron     string        `yaml:"cron" validate:"required_without=Every,excluded_with=Every"`
	Every    time.Duration `yaml:"every" validate:"required_without=Cron"`
}

type scheduleFile struct {
	Jobs []ScheduleJob `yaml:"jobs"`
}

// Load reads configuration from .env, the environment and the optional schedule file.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	cfg := &AppConfig{
		Server: ServerConfig{
			Port:                getenvDefault("PORT", "8080"),
			MetaAppSecret:       os.Getenv("META_APP_SECRET"),
			WebhookVerifyToken:  os.Getenv("WHATSAPP_WEBHOOK_TOKEN"),
			APIAuthorizationKey: os.Getenv("API_AUTHORIZATION_KEY"),
		},
		WhatsAppAccessToken:   os.Getenv("WHATSAPP_ACCESS_TOKEN"),
		WhatsAppPhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
		WhatsAppAPIBase:       getenvDefault("WHATSAPP_API_BASE", "https://graph.facebook.com/v22.0"),
		OutboundMaxRetries:    getenvInt("OUTBOUND_MAX_RETRIES", 0),
		DedupMaxEntries:       getenvInt("DEDUP_MAX_ENTRIES", 10000),
		ValkeyAddr:            os.Getenv("VALKEY_ADDR"),
		ChartDir:              getenvDefault("CHART_DIR", "charts"),
		RenderTimezone:        getenvDefault("RENDER_TIMEZONE", "America/Argentina/Buenos_Aires"),
		GeocoderLanguage:      getenvDefault("GEOCODER_LANGUAGE", "es"),
		GeocoderCountry:       getenvDefault("GEOCODER_COUNTRY", "AR"),
		GoogleGeocoderAPIKey:  os.Getenv("GOOGLE_GEOCODER_API_KEY"),
		AnalyticsDB:           getenvDefault("ANALYTICS_DB", "data/analytics.db"),
		ScheduleFile:          os.Getenv("SCHEDULE_FILE"),
		LogLevel:              getenvDefault("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.FreshnessWindow, err = getenvDuration("FRESHNESS_WINDOW", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.DedupMaxAge, err = getenvDuration("DEDUP_MAX_AGE", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.KeepCharts, err = getenvBool("KEEP_CHARTS", false); err != nil {
		return nil, err
	}

	cfg.RenderLocation, err = time.LoadLocation(cfg.RenderTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid RENDER_TIMEZONE: %w", err)
	}

	if cfg.ScheduleFile != "" {
		jobs, err := LoadSchedule(cfg.ScheduleFile)
		if err != nil {
			return nil, err
		}
		cfg.Schedule = jobs
	}

	if err := validate.StructExcept(cfg, "Server"); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ValidateServer checks the settings required to run the HTTP surface.
func (c *AppConfig) ValidateServer() error {
	if err := validate.Struct(c.Server); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}
	return nil
}

// LoadSchedule parses a YAML file with a top-level "jobs" list.
func LoadSchedule(path string) ([]ScheduleJob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule file: %w", err)
	}
	var f scheduleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse schedule file: %w", err)
	}
	for i, job := range f.Jobs {
		if err := validate.Struct(job); err != nil {
			return nil, fmt.Errorf("schedule job %d: %w", i, err)
		}
		if job.Every < 0 {
			return nil, fmt.Errorf("schedule job %d: %w", i, errNegativeInterval)
		}
	}
	return f.Jobs, nil
}

var errNegativeInterval = errors.New("every must be positive")

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
