package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/forecast-bot/internal/common"
	"github.com/i474232898/forecast-bot/internal/metrics"
	"github.com/i474232898/forecast-bot/internal/weather"
	"github.com/i474232898/forecast-bot/internal/whatsapp"
)

// SignatureHeader carries "sha256=<hex hmac of the raw body>".
const (
	SignatureHeader = "X-Hub-Signature-256"
	signaturePrefix = "sha256="

	DefaultFreshness = 60 * time.Second
)

var (
	ErrSignatureMismatch = errors.New("signature mismatch")
	ErrNoMessage         = errors.New("no messages to process")
	ErrDuplicateMessage  = errors.New("message already processed")
	ErrStaleMessage      = errors.New("message too old to process")
	ErrInvalidPayload    = errors.New("invalid webhook payload")
)

// DedupWindow atomically records a message id, reporting false when it was already present.
type DedupWindow interface {
	Add(ctx context.Context, id string) (bool, error)
}

// ReadMarker acknowledges inbound messages upstream.
type ReadMarker interface {
	MarkRead(ctx context.Context, messageID string) error
	SetTypingAndRead(ctx context.Context, messageID string) error
}

// Dispatcher runs the forecast pipeline.
type Dispatcher interface {
	SendForecast(ctx context.Context, req weather.Request) error
}

type Options struct {
	Secret     string
	Window     DedupWindow
	Reader     ReadMarker
	Dispatcher Dispatcher
	Freshness  time.Duration
	Logger     *slog.Logger
}

// Gate validates, deduplicates and freshness-checks inbound webhook events
// before handing them to the pipeline.
type Gate struct {
	secret     []byte
	window     DedupWindow
	reader     ReadMarker
	dispatcher Dispatcher
	freshness  time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

func NewGate(opts Options) *Gate {
	freshness := opts.Freshness
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		secret:     []byte(opts.Secret),
		window:     opts.Window,
		reader:     opts.Reader,
		dispatcher: opts.Dispatcher,
		freshness:  freshness,
		now:        time.Now,
		logger:     logger.With("component", "webhook"),
	}
}

// Message is the inbound event that passed parsing.
type Message struct {
	ID        string
	From      string
	Timestamp int64
	Text      string
}

type notification struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []inboundMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
}

// Handle runs one webhook delivery through the gate. It returns the accepted
// message together with any pipeline error, or a gate rejection.
func (g *Gate) Handle(ctx context.Context, body []byte, signature string) (msg Message, err error) {
	defer func() { metrics.WebhookEvents.WithLabelValues(outcome(err)).Inc() }()

	if !g.Verify(body, signature) {
		g.logger.Warn("webhook signature mismatch")
		return Message{}, ErrSignatureMismatch
	}

	msg, err = parse(body)
	if err != nil {
		return Message{}, err
	}
	logger := g.logger.With("message_id", msg.ID)

	added, err := g.window.Add(ctx, msg.ID)
	if err != nil {
		return msg, fmt.Errorf("dedup window: %w", err)
	}
	if !added {
		logger.Info("duplicate message ignored")
		return msg, ErrDuplicateMessage
	}

	if age := g.now().Sub(time.Unix(msg.Timestamp, 0)); age > g.freshness {
		logger.Info("stale message", "age", age.String())
		if err := g.reader.MarkRead(ctx, msg.ID); err != nil {
			logger.Warn("mark stale message read", "error", err)
		}
		return msg, ErrStaleMessage
	}

	if strings.TrimSpace(msg.Text) == "" {
		logger.Info("message without text body ignored")
		return msg, ErrNoMessage
	}

	msg.From = whatsapp.NormalizeNumber(msg.From)
	if err := g.reader.SetTypingAndRead(ctx, msg.ID); err != nil {
		logger.Warn("set typing indicator", "error", err)
	}

	logger.Info("dispatching forecast")
	err = g.dispatcher.SendForecast(ctx, weather.Request{
		To:       msg.From,
		Location: common.TitleCase(msg.Text),
	})
	return msg, err
}

// Verify checks the signature header against an HMAC-SHA256 of the raw body.
func (g *Gate) Verify(body []byte, signature string) bool {
	got, ok := strings.CutPrefix(signature, signaturePrefix)
	if !ok || got == "" {
		return false
	}
	mac := hmac.New(sha256.New, g.secret)
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(strings.ToLower(got)))
}

// Sign returns the header value a correctly signed delivery carries.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

func parse(body []byte) (Message, error) {
	var n notification
	if err := json.Unmarshal(body, &n); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(n.Entry) == 0 || len(n.Entry[0].Changes) == 0 {
		return Message{}, fmt.Errorf("%w: missing entry or change", ErrInvalidPayload)
	}
	messages := n.Entry[0].Changes[0].Value.Messages
	if len(messages) == 0 {
		return Message{}, ErrNoMessage
	}

	in := messages[0]
	if in.ID == "" {
		return Message{}, fmt.Errorf("%w: message without id", ErrInvalidPayload)
	}
	ts, err := strconv.ParseInt(in.Timestamp, 10, 64)
	if err != nil {
		return Message{}, fmt.Errorf("%w: timestamp %q", ErrInvalidPayload, in.Timestamp)
	}

	msg := Message{ID: in.ID, From: in.From, Timestamp: ts}
	if in.Text != nil {
		msg.Text = in.Text.Body
	}
	return msg, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "dispatched"
	case errors.Is(err, ErrSignatureMismatch):
		return "signature_mismatch"
	case errors.Is(err, ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, ErrNoMessage):
		return "no_message"
	case errors.Is(err, ErrDuplicateMessage):
		return "duplicate"
	case errors.Is(err, ErrStaleMessage):
		return "stale"
	case errors.Is(err, weather.ErrLocationNotFound):
		return "location_not_found"
	default:
		return "failed"
	}
}
