package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/forecast-bot/internal/common"
	"github.com/i474232898/forecast-bot/internal/store"
	"github.com/i474232898/forecast-bot/internal/weather"
	"github.com/i474232898/forecast-bot/internal/webhook"
)

const (
	testSecret  = "app-secret"
	testVerify  = "verify-me"
	testAuthKey = "letmein"
)

type fakeSender struct {
	mu       sync.Mutex
	requests []weather.Request
	err      error
}

func (s *fakeSender) SendForecast(_ context.Context, req weather.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return s.err
}

type nopReader struct{}

func (nopReader) MarkRead(context.Context, string) error         { return nil }
func (nopReader) SetTypingAndRead(context.Context, string) error { return nil }

func newTestApp(sender *fakeSender) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(nil)})
	gate := webhook.NewGate(webhook.Options{
		Secret:     testSecret,
		Window:     store.NewMemoryWindow(100, time.Minute),
		Reader:     nopReader{},
		Dispatcher: sender,
	})
	RegisterRoutes(app, Options{
		Gate:             gate,
		Sender:           sender,
		VerifyToken:      testVerify,
		AuthorizationKey: testAuthKey,
	})
	return app
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func webhookBody(id string, ts int64, text string) string {
	return fmt.Sprintf(`{"entry":[{"changes":[{"value":{"messages":[{"id":%q,"from":"5491112345678","timestamp":"%d","type":"text","text":{"body":%q}}]}}]}]}`, id, ts, text)
}

func postWebhook(t *testing.T, app *fiber.App, body, sig string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/whatsapp/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sig != "" {
		req.Header.Set(webhook.SignatureHeader, sig)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestPing(t *testing.T) {
	app := newTestApp(&fakeSender{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, "pong", string(body))

	resp, err = app.Test(httptest.NewRequest(http.MethodHead, "/ping", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(&fakeSender{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	require.Equal(t, "ok", decode(t, resp)["status"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	require.Contains(t, string(body), "go_goroutines")
}

func TestWebhookHandshake(t *testing.T) {
	app := newTestApp(&fakeSender{})

	req := httptest.NewRequest(http.MethodGet, "/whatsapp/webhook?hub.mode=subscribe&hub.verify_token="+testVerify+"&hub.challenge=1158201444", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, "1158201444", string(body))

	req = httptest.NewRequest(http.MethodGet, "/whatsapp/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=1", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebhookDispatch(t *testing.T) {
	sender := &fakeSender{}
	app := newTestApp(sender)

	body := webhookBody("wamid.1", time.Now().Unix(), "la plata")
	resp := postWebhook(t, app, body, webhook.Sign(testSecret, []byte(body)))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Message processed", decode(t, resp)["detail"])
	require.Equal(t, []weather.Request{{To: "541112345678", Location: "La Plata"}}, sender.requests)

	// Same message again is rejected as a duplicate.
	resp = postWebhook(t, app, body, webhook.Sign(testSecret, []byte(body)))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "duplicate_message", decode(t, resp)["code"])
	require.Len(t, sender.requests, 1)
}

func TestWebhookRejections(t *testing.T) {
	now := time.Now().Unix()
	statusOnly := `{"entry":[{"changes":[{"value":{"statuses":[{"id":"x"}]}}]}]}`
	cases := []struct {
		name   string
		body   string
		sig    func(string) string
		status int
		code   string
	}{
		{"bad signature", webhookBody("a", now, "x"), func(string) string { return "sha256=00" }, http.StatusForbidden, "signature_mismatch"},
		{"missing signature", webhookBody("b", now, "x"), func(string) string { return "" }, http.StatusForbidden, "signature_mismatch"},
		{"no message", statusOnly, nil, http.StatusBadRequest, "no_message"},
		{"stale", webhookBody("c", now-3600, "x"), nil, http.StatusBadRequest, "stale_message"},
		{"invalid", `{"entry":[`, nil, http.StatusBadRequest, "invalid_payload"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sender := &fakeSender{}
			app := newTestApp(sender)
			sig := webhook.Sign(testSecret, []byte(tc.body))
			if tc.sig != nil {
				sig = tc.sig(tc.body)
			}
			resp := postWebhook(t, app, tc.body, sig)
			require.Equal(t, tc.status, resp.StatusCode)
			require.Equal(t, tc.code, decode(t, resp)["code"])
			require.Empty(t, sender.requests)
		})
	}
}

func TestWebhookLocationNotFound(t *testing.T) {
	sender := &fakeSender{err: weather.ErrLocationNotFound}
	app := newTestApp(sender)

	body := webhookBody("wamid.nf", time.Now().Unix(), "atlantis")
	resp := postWebhook(t, app, body, webhook.Sign(testSecret, []byte(body)))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Location not found", decode(t, resp)["detail"])
}

func TestSendEndpoint(t *testing.T) {
	sender := &fakeSender{}
	app := newTestApp(sender)

	req := httptest.NewRequest(http.MethodPost, "/whatsapp/send", strings.NewReader(`{"to":"5491112345678","location":"Mendoza","auto":true}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", testAuthKey)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Message sent", decode(t, resp)["detail"])

	req = httptest.NewRequest(http.MethodPost, "/whatsapp/send?to=541100000000&location=Salta", nil)
	req.Header.Set("Authorization", testAuthKey)
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Equal(t, []weather.Request{
		{To: "541112345678", Location: "Mendoza", Auto: true},
		{To: "541100000000", Location: "Salta"},
	}, sender.requests)
}

func TestSendEndpointErrors(t *testing.T) {
	cases := []struct {
		name   string
		auth   string
		body   string
		err    error
		status int
		code   string
	}{
		{"no auth", "", `{"to":"1","location":"Salta"}`, nil, http.StatusForbidden, "unauthorized"},
		{"wrong auth", "Bearer " + testAuthKey, `{"to":"1","location":"Salta"}`, nil, http.StatusForbidden, "unauthorized"},
		{"missing location", testAuthKey, `{"to":"1"}`, nil, http.StatusBadRequest, "invalid_request"},
		{"not found", testAuthKey, `{"to":"1","location":"Atlantis"}`, weather.ErrLocationNotFound, http.StatusNotFound, "location_not_found"},
		{"upstream", testAuthKey, `{"to":"1","location":"Salta"}`, &common.UpstreamError{Service: "openmeteo", StatusCode: 503}, http.StatusBadGateway, "upstream_failure"},
		{"internal", testAuthKey, `{"to":"1","location":"Salta"}`, fmt.Errorf("render chart: boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(&fakeSender{err: tc.err})
			req := httptest.NewRequest(http.MethodPost, "/whatsapp/send", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
			require.Equal(t, tc.code, decode(t, resp)["code"])
		})
	}
}
