package evolution

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// SendTimeout bounds every outbound gateway call.
const SendTimeout = 15 * time.Second

// Client is the HTTP client for the Evolution gateway API.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a gateway client with the bounded send timeout.
func NewClient(log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: SendTimeout},
		logger:     log.With(slog.String("client", "evolution")),
	}
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type sendTextResponse struct {
	MessageID string `json:"messageId"`
	ID        string `json:"id"`
}

// SendText pushes a text message through the gateway instance and returns
// the gateway delivery id.
func (c *Client) SendText(ctx context.Context, baseURL, instance, phone, text, apiKey string) (string, error) {
	url := fmt.Sprintf("%s/message/sendText/%s", strings.TrimRight(baseURL, "/"), instance)

	body, err := json.Marshal(sendTextRequest{Number: phone, Text: text})
	if err != nil {
		return "", fmt.Errorf("marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway send: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("gateway send: unexpected status %d", resp.StatusCode)
	}

	var parsed sendTextResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.logger.Warn("gateway response decode failed", slog.Any("error", err))
		return "", nil
	}
	if parsed.MessageID != "" {
		return parsed.MessageID, nil
	}
	return parsed.ID, nil
}

// VerifySignature checks a webhook HMAC-SHA256 hex signature against the
// tenant token.
func VerifySignature(signature, payload, token string) bool {
	mac := hmac.New(sha256.New, []byte(token))
	mac.Write([]byte(payload))
	digest := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(digest), []byte(signature))
}
