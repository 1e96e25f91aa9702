package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/i474232898/forecast-bot/internal/weather"
)

// Analytics appends one row per resolved forecast request. Recipients are stored
// as SHA-256 hex digests only.
type Analytics struct {
	db  *sql.DB
	loc *time.Location
}

func NewAnalytics(db *sql.DB, loc *time.Location) *Analytics {
	if loc == nil {
		loc = time.UTC
	}
	return &Analytics{db: db, loc: loc}
}

func (a *Analytics) Migrate() error {
	_, err := a.db.Exec(`
		CREATE TABLE IF NOT EXISTS forecast_requests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL,
			time TEXT NOT NULL,
			phone_hash TEXT NOT NULL,
			location TEXT NOT NULL,
			auto BOOLEAN NOT NULL DEFAULT FALSE,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_forecast_requests_date ON forecast_requests(date);
	`)
	if err != nil {
		return fmt.Errorf("migrate analytics: %w", err)
	}
	return nil
}

func (a *Analytics) Record(ctx context.Context, e weather.RequestEntry) error {
	at := e.At.In(a.loc)
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO forecast_requests (date, time, phone_hash, location, auto, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, at.Format("2006-01-02"), at.Format("15:04"), HashRecipient(e.Recipient), e.Location, e.Auto, at.Unix())
	if err != nil {
		return fmt.Errorf("record analytics: %w", err)
	}
	return nil
}

// HashRecipient returns the hex SHA-256 of a phone number.
func HashRecipient(phone string) string {
	sum := sha256.Sum256([]byte(phone))
	return hex.EncodeToString(sum[:])
}

var _ weather.Recorder = (*Analytics)(nil)
