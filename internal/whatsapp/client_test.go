package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/i474232898/forecast-bot/internal/common"
)

type recorded struct {
	path   string
	auth   string
	body   map[string]any
	fields map[string]string
	file   []byte
	mime   string
}

type fakeGraph struct {
	mu       sync.Mutex
	requests []recorded
	status   int
}

func (g *fakeGraph) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{path: r.URL.Path, auth: r.Header.Get("Authorization")}
		if filepath.Base(r.URL.Path) == "media" {
			require.NoError(t, r.ParseMultipartForm(1<<20))
			rec.fields = map[string]string{
				"messaging_product": r.FormValue("messaging_product"),
				"type":              r.FormValue("type"),
			}
			f, hdr, err := r.FormFile("file")
			require.NoError(t, err)
			rec.mime = hdr.Header.Get("Content-Type")
			rec.file, _ = io.ReadAll(f)
			f.Close()
		} else {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&rec.body))
		}

		g.mu.Lock()
		g.requests = append(g.requests, rec)
		status := g.status
		g.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"bad request"}}`))
			return
		}
		if filepath.Base(r.URL.Path) == "media" {
			_, _ = w.Write([]byte(`{"id":"media-42"}`))
			return
		}
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.out"}]}`))
	}
}

func newTestClient(t *testing.T, g *fakeGraph) *Client {
	t.Helper()
	srv := httptest.NewServer(g.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(srv.Client(), Options{
		BaseURL:       srv.URL + "/v22.0",
		PhoneNumberID: "12345",
		AccessToken:   "token-abc",
	})
}

func TestNormalizeNumber(t *testing.T) {
	cases := map[string]string{
		"5491112345678": "541112345678",
		"541112345678":  "541112345678",
		"5493511234567": "5493511234567",
		"14155550100":   "14155550100",
		"":              "",
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizeNumber(in), in)
		require.Equal(t, want, NormalizeNumber(NormalizeNumber(in)), in)
	}
}

func TestMarkReadAndTyping(t *testing.T) {
	g := &fakeGraph{}
	c := newTestClient(t, g)

	require.NoError(t, c.MarkRead(context.Background(), "wamid.1"))
	require.NoError(t, c.SetTypingAndRead(context.Background(), "wamid.2"))

	require.Len(t, g.requests, 2)
	read := g.requests[0]
	require.Equal(t, "/v22.0/12345/messages", read.path)
	require.Equal(t, "Bearer token-abc", read.auth)
	require.Equal(t, map[string]any{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        "wamid.1",
	}, read.body)

	typing := g.requests[1]
	require.Equal(t, "wamid.2", typing.body["message_id"])
	require.Equal(t, map[string]any{"type": "text"}, typing.body["typing_indicator"])
}

func TestSendText(t *testing.T) {
	g := &fakeGraph{}
	c := newTestClient(t, g)

	require.NoError(t, c.SendText(context.Background(), "541112345678", "hola"))
	require.Len(t, g.requests, 1)
	require.Equal(t, map[string]any{
		"messaging_product": "whatsapp",
		"to":                "541112345678",
		"type":              "text",
		"text":              map[string]any{"body": "hola"},
	}, g.requests[0].body)
}

func TestSendImageUploadsThenSends(t *testing.T) {
	g := &fakeGraph{}
	c := newTestClient(t, g)

	path := filepath.Join(t.TempDir(), "2024-03-05_Tandil_forecast.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNGfake"), 0o644))

	require.NoError(t, c.SendImage(context.Background(), "541112345678", "caption text", path))
	require.Len(t, g.requests, 2)

	upload := g.requests[0]
	require.Equal(t, "/v22.0/12345/media", upload.path)
	require.Equal(t, "Bearer token-abc", upload.auth)
	require.Equal(t, "whatsapp", upload.fields["messaging_product"])
	require.Equal(t, "image/png", upload.fields["type"])
	require.Equal(t, "image/png", upload.mime)
	require.Equal(t, []byte("\x89PNGfake"), upload.file)

	send := g.requests[1]
	require.Equal(t, "/v22.0/12345/messages", send.path)
	require.Equal(t, "image", send.body["type"])
	require.Equal(t, map[string]any{"id": "media-42", "caption": "caption text"}, send.body["image"])
}

func TestUpstreamFailure(t *testing.T) {
	g := &fakeGraph{status: http.StatusBadRequest}
	c := newTestClient(t, g)

	err := c.SendText(context.Background(), "1", "x")
	require.Error(t, err)
	require.True(t, errors.Is(err, common.ErrUpstreamCall))

	var upstream *common.UpstreamError
	require.ErrorAs(t, err, &upstream)
	require.Equal(t, http.StatusBadRequest, upstream.StatusCode)
	require.Len(t, g.requests, 1)
}

func TestSendImageMissingFile(t *testing.T) {
	g := &fakeGraph{}
	c := newTestClient(t, g)

	err := c.SendImage(context.Background(), "1", "x", filepath.Join(t.TempDir(), "missing.png"))
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Empty(t, g.requests)
}
