package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/forecast-bot/internal/common"
	"github.com/i474232898/forecast-bot/internal/weather"
)

const (
	DefaultBaseURL   = "https://graph.facebook.com/v22.0"
	messagingProduct = "whatsapp"
	imageMIME        = "image/png"
)

// NormalizeNumber collapses the Argentine mobile prefix 54911 into 5411, the form
// the Cloud API accepts for outbound delivery. Other numbers pass through unchanged.
func NormalizeNumber(sender string) string {
	if rest, ok := strings.CutPrefix(sender, "54911"); ok {
		return "5411" + rest
	}
	return sender
}

// Options configures a Client. An empty BaseURL selects the public Graph API.
type Options struct {
	BaseURL       string
	PhoneNumberID string
	AccessToken   string
	MaxRetries    int
}

// Client talks to the WhatsApp Cloud API for a single business phone number.
type Client struct {
	baseURL       string
	phoneNumberID string
	accessToken   string
	httpCfg       common.HTTPClientConfig
	circuit       *gobreaker.CircuitBreaker
}

func NewClient(client *http.Client, opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:       baseURL,
		phoneNumberID: opts.PhoneNumberID,
		accessToken:   opts.AccessToken,
		httpCfg: common.HTTPClientConfig{
			Client: client,
			Backoff: common.BackoffConfig{
				MaxRetries:      opts.MaxRetries,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: common.NewCircuitBreaker("whatsapp"),
	}
}

type statusPayload struct {
	MessagingProduct string           `json:"messaging_product"`
	Status           string           `json:"status"`
	MessageID        string           `json:"message_id"`
	TypingIndicator  *typingIndicator `json:"typing_indicator,omitempty"`
}

type typingIndicator struct {
	Type string `json:"type"`
}

type messagePayload struct {
	MessagingProduct string        `json:"messaging_product"`
	To               string        `json:"to"`
	Type             string        `json:"type"`
	Image            *imageContent `json:"image,omitempty"`
	Text             *textContent  `json:"text,omitempty"`
}

type imageContent struct {
	ID      string `json:"id"`
	Caption string `json:"caption,omitempty"`
}

type textContent struct {
	Body string `json:"body"`
}

// MarkRead flags an inbound message as read.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	return c.postJSON(ctx, "whatsapp-read", c.endpoint("messages"), statusPayload{
		MessagingProduct: messagingProduct,
		Status:           "read",
		MessageID:        messageID,
	})
}

// SetTypingAndRead marks the message read and shows a typing indicator to its sender.
func (c *Client) SetTypingAndRead(ctx context.Context, messageID string) error {
	return c.postJSON(ctx, "whatsapp-typing", c.endpoint("messages"), statusPayload{
		MessagingProduct: messagingProduct,
		Status:           "read",
		MessageID:        messageID,
		TypingIndicator:  &typingIndicator{Type: "text"},
	})
}

// SendText delivers a plain text message.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	return c.postJSON(ctx, "whatsapp-send", c.endpoint("messages"), messagePayload{
		MessagingProduct: messagingProduct,
		To:               to,
		Type:             "text",
		Text:             &textContent{Body: body},
	})
}

// SendImage uploads the PNG at imagePath and sends it with the caption attached.
func (c *Client) SendImage(ctx context.Context, to, caption, imagePath string) error {
	mediaID, err := c.UploadImage(ctx, imagePath)
	if err != nil {
		return err
	}
	return c.postJSON(ctx, "whatsapp-send", c.endpoint("messages"), messagePayload{
		MessagingProduct: messagingProduct,
		To:               to,
		Type:             "image",
		Image:            &imageContent{ID: mediaID, Caption: caption},
	})
}

// UploadImage stores a PNG on the WhatsApp media servers and returns its media id.
func (c *Client) UploadImage(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("messaging_product", messagingProduct); err != nil {
		return "", err
	}
	if err := mw.WriteField("type", imageMIME); err != nil {
		return "", err
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(imagePath)))
	header.Set("Content-Type", imageMIME)
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}
	payload := body.Bytes()
	contentType := mw.FormDataContentType()

	resp, err := common.DoWithResilience(ctx, "whatsapp-media", c.httpCfg, c.circuit, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.endpoint("media"), bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		c.authorize(req)
		return req, nil
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var media struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&media); err != nil {
		return "", fmt.Errorf("%w: whatsapp-media: decode response: %v", common.ErrUpstreamCall, err)
	}
	if media.ID == "" {
		return "", fmt.Errorf("%w: whatsapp-media: response carried no media id", common.ErrUpstreamCall)
	}
	return media.ID, nil
}

func (c *Client) postJSON(ctx context.Context, service, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", service, err)
	}

	resp, err := common.DoWithResilience(ctx, service, c.httpCfg, c.circuit, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		c.authorize(req)
		return req, nil
	})
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func (c *Client) endpoint(resource string) string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, c.phoneNumberID, resource)
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
}

var _ weather.Messenger = (*Client)(nil)
