package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/i474232898/forecast-bot/internal/metrics"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
}

// ErrUpstreamCall marks any failed call to an external collaborator.
var ErrUpstreamCall = errors.New("upstream call failed")

var (
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// UpstreamError describes a non-2xx answer from an external collaborator.
type UpstreamError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Service, e.StatusCode, e.Body)
}

func (e *UpstreamError) Unwrap() error {
	return ErrUpstreamCall
}

// NewCircuitBreaker returns the breaker shared by every call to one collaborator.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// DoWithResilience executes the HTTP request behind a circuit breaker, retrying
// with exponential backoff up to cfg.Backoff.MaxRetries times. buildRequest is
// called once per attempt so request bodies can be replayed. Client errors other
// than 429 are not retried.
func DoWithResilience(
	ctx context.Context,
	service string,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.Backoff.InitialInterval
	if cfg.Backoff.MaxInterval > 0 {
		bo.MaxInterval = cfg.Backoff.MaxInterval
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(cfg.Backoff.MaxRetries)), ctx)

	operation := func() (*http.Response, error) {
		req, err := buildRequest()
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
				resp.Body.Close()
				return nil, &UpstreamError{Service: service, StatusCode: resp.StatusCode, Body: string(body)}
			}
			return resp, nil
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return nil, backoff.Permanent(fmt.Errorf("%w: %s circuit open: %v", ErrUpstreamCall, service, err))
			}
			var upstream *UpstreamError
			if errors.As(err, &upstream) && upstream.StatusCode < 500 && upstream.StatusCode != http.StatusTooManyRequests {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}

		resp, ok := result.(*http.Response)
		if !ok {
			return nil, backoff.Permanent(fmt.Errorf("unexpected result type from circuit breaker"))
		}
		return resp, nil
	}

	resp, err := backoff.RetryWithData(operation, policy)
	if err != nil {
		metrics.UpstreamCalls.WithLabelValues(service, "error").Inc()
		if errors.Is(err, ErrUpstreamCall) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrUpstreamCall, service, err)
	}
	metrics.UpstreamCalls.WithLabelValues(service, "ok").Inc()
	return resp, nil
}
