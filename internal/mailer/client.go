// Package mailer is the thin HTTP client for the external mail-sending
// endpoint. Delivery is best-effort; the engine records outcomes and
// never relies on the transport's own state.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

type SendRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type SendResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Send dispatches one rendered email. A non-2xx status or ok=false is
// returned as an error carrying the transport's message.
func (c *Client) Send(ctx context.Context, to, subject, body string) error {
	payload, err := json.Marshal(SendRequest{To: to, Subject: subject, Body: body})
	if err != nil {
		return err
	}

	endpoint := strings.TrimRight(c.BaseURL, "/") + "/send"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)

	var out SendResponse
	_ = json.Unmarshal(b, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !out.OK {
		if out.Error != "" {
			return errors.New(out.Error)
		}
		return errors.New("mail send failed")
	}
	return nil
}
