package extract

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

const systemPrompt = `You extract marketplace product listings from messages sent by vendors.
Return only the fields in the schema. title is required and should be short.
Never invent a price: if the message does not state one, price must be null.
status must be one of active, draft, inactive, archived, pending_review, or null.
Use null for anything the message does not state.`

type OpenAIConfig struct {
	Endpoint string // base URL, e.g. https://api.openai.com/v1
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// OpenAIClient calls an OpenAI-compatible chat completions endpoint with a
// strict JSON schema response format.
type OpenAIClient struct {
	cfg  OpenAIConfig
	http *http.Client
}

func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &OpenAIClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat responseFormat `json:"response_format"`
	Temperature    float64        `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type       string     `json:"type"`
	JSONSchema jsonSchema `json:"json_schema"`
}

type jsonSchema struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *OpenAIClient) Extract(ctx context.Context, in Input) (Fields, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return Fields{}, ErrDisabled
	}

	body, err := json.Marshal(c.buildRequest(in))
	if err != nil {
		return Fields{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.Endpoint, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Fields{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return Fields{}, fmt.Errorf("extraction request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Fields{}, fmt.Errorf("read extraction response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Fields{}, fmt.Errorf("extraction returned status %d", resp.StatusCode)
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return Fields{}, fmt.Errorf("decode extraction response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return Fields{}, errors.New("extraction returned no choices")
	}
	msg := cr.Choices[0].Message
	if msg.Refusal != "" {
		return Fields{}, fmt.Errorf("extraction refused: %s", msg.Refusal)
	}

	var f Fields
	if err := json.Unmarshal([]byte(msg.Content), &f); err != nil {
		return Fields{}, fmt.Errorf("decode extracted fields: %w", err)
	}
	return f, nil
}

func (c *OpenAIClient) buildRequest(in Input) chatRequest {
	text := strings.TrimSpace(in.Text)
	if in.HasMedia {
		text += "\n\n[The vendor attached a photo of the product.]"
	}

	parts := []contentPart{{Type: "text", Text: text}}
	if in.ImageURL != "" {
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: in.ImageURL}})
	}

	return chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: parts},
		},
		ResponseFormat: responseFormat{
			Type: "json_schema",
			JSONSchema: jsonSchema{
				Name:   "product_listing",
				Strict: true,
				Schema: listingSchema(),
			},
		},
	}
}

func listingSchema() map[string]any {
	nullableString := map[string]any{"type": []string{"string", "null"}}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"title", "description", "price", "currency", "category", "status", "tags", "location"},
		"properties": map[string]any{
			"title":       map[string]any{"type": "string"},
			"description": nullableString,
			"price":       map[string]any{"type": []string{"number", "null"}},
			"currency":    nullableString,
			"category":    nullableString,
			"status":      nullableString,
			"tags":        map[string]any{"type": []string{"array", "null"}, "items": map[string]any{"type": "string"}},
			"location":    nullableString,
		},
	}
}
