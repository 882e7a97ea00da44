// Package messaging talks to the messaging platform behind the
// conversational channel: outbound replies and media lookups.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrNotConfigured = errors.New("messaging client is not configured")

type Messenger interface {
	SendText(ctx context.Context, to string, body string) error
}

type MediaResolver interface {
	// MediaURL resolves an uploaded media id to a fetchable URL.
	MediaURL(ctx context.Context, mediaID string) (string, error)
}

type Config struct {
	APIBase       string
	PhoneNumberID string
	AccessToken   string
	Timeout       time.Duration
}

// CloudAPIClient implements Messenger and MediaResolver against a
// Graph-style messaging API.
type CloudAPIClient struct {
	cfg  Config
	http *http.Client
}

func NewCloudAPIClient(cfg Config) *CloudAPIClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	return &CloudAPIClient{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

func (c *CloudAPIClient) configured() bool {
	return c.cfg.APIBase != "" && c.cfg.AccessToken != ""
}

type textMessage struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

func (c *CloudAPIClient) SendText(ctx context.Context, to string, body string) error {
	if !c.configured() || c.cfg.PhoneNumberID == "" {
		return ErrNotConfigured
	}

	msg := textMessage{MessagingProduct: "whatsapp", To: to, Type: "text"}
	msg.Text.Body = body

	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/%s/messages", c.cfg.APIBase, c.cfg.PhoneNumberID)
	_, err = c.do(ctx, http.MethodPost, url, b)
	return err
}

func (c *CloudAPIClient) MediaURL(ctx context.Context, mediaID string) (string, error) {
	if !c.configured() {
		return "", ErrNotConfigured
	}
	if strings.TrimSpace(mediaID) == "" {
		return "", errors.New("media id is empty")
	}

	raw, err := c.do(ctx, http.MethodGet, c.cfg.APIBase+"/"+mediaID, nil)
	if err != nil {
		return "", err
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode media response: %w", err)
	}
	if out.URL == "" {
		return "", errors.New("media response has no url")
	}
	return out.URL, nil
}

func (c *CloudAPIClient) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s: status %d", method, url, resp.StatusCode)
	}
	return raw, nil
}
