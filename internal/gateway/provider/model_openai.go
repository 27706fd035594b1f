package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"augur/internal/logger"
	"augur/internal/pkg/jsonutil"
)

const (
	defaultBaseURL    = "https://api.openai.com/v1"
	defaultTimeout    = 60 * time.Second
	defaultRetryBase  = 800 * time.Millisecond
	maxRetryWait      = 8 * time.Second
	completionsSuffix = "/chat/completions"
)

// OpenAIChatClient talks to any OpenAI-compatible /chat/completions endpoint.
type OpenAIChatClient struct {
	BaseURL      string
	APIKey       string
	Model        string
	Temperature  float64
	Timeout      time.Duration
	MaxRetries   int
	RetryBase    time.Duration
	ExtraHeaders map[string]string
	HTTPClient   *http.Client
}

func (c *OpenAIChatClient) endpoint() string {
	url := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if url == "" {
		url = defaultBaseURL
	}
	return strings.TrimSuffix(url, completionsSuffix) + completionsSuffix
}

func (c *OpenAIChatClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c.HTTPClient = &http.Client{Timeout: timeout}
	return c.HTTPClient
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

func (c *OpenAIChatClient) buildRequest(payload ChatPayload) chatRequest {
	var messages []chatMessage
	if strings.TrimSpace(payload.System) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: payload.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: payload.User})
	req := chatRequest{
		Model:       c.Model,
		Messages:    messages,
		Temperature: c.Temperature,
		MaxTokens:   payload.MaxTokens,
	}
	if len(payload.Schema) > 0 {
		name := strings.TrimSpace(payload.SchemaName)
		if name == "" {
			name = "response"
		}
		req.ResponseFormat = &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchema{
				Name:   name,
				Strict: true,
				Schema: envelopeSchema(payload.Schema, payload.EnvelopeKey),
			},
		}
	}
	return req
}

// envelopeSchema wraps an array-rooted schema in a single-property object.
func envelopeSchema(schema json.RawMessage, key string) json.RawMessage {
	if key == "" || gjson.GetBytes(schema, "type").String() != "array" {
		return schema
	}
	wrapped := map[string]any{
		"type":                 "object",
		"properties":           map[string]json.RawMessage{key: schema},
		"required":             []string{key},
		"additionalProperties": false,
	}
	buf, err := json.Marshal(wrapped)
	if err != nil {
		return schema
	}
	return buf
}

// Call sends one chat completion and returns the first choice's content.
// 429 and 5xx responses are retried with Retry-After or exponential backoff.
func (c *OpenAIChatClient) Call(ctx context.Context, payload ChatPayload) (string, error) {
	body, err := json.Marshal(c.buildRequest(payload))
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}
	url := c.endpoint()
	maxRetries := c.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	logger.Debugf("[provider] POST %s model=%s headers=%v", url, c.Model, c.maskedHeaders())

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		content, status, retryAfter, err := c.do(ctx, url, body)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if !retryable(status) || attempt == maxRetries {
			break
		}
		wait := retryAfter
		if wait <= 0 {
			wait = c.backoff(attempt)
		}
		logger.Warnf("[provider] %s status=%d, retrying in %s (%d/%d)", c.Model, status, wait, attempt+1, maxRetries)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
	return "", lastErr
}

func (c *OpenAIChatClient) do(ctx context.Context, url string, body []byte) (string, int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	for k, v := range c.ExtraHeaders {
		req.Header.Set(k, v)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", 0, 0, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, 0, err
	}
	if resp.StatusCode/100 != 2 {
		msg := strings.TrimSpace(gjson.GetBytes(raw, "error.message").String())
		if msg == "" {
			msg = resp.Status
		}
		return "", resp.StatusCode, parseRetryAfter(resp.Header.Get("Retry-After")), fmt.Errorf("status=%d: %s", resp.StatusCode, msg)
	}
	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return "", resp.StatusCode, 0, fmt.Errorf("decode chat response: %w", err)
	}
	if len(r.Choices) == 0 {
		return "", resp.StatusCode, 0, fmt.Errorf("empty choices")
	}
	return r.Choices[0].Message.Content, resp.StatusCode, 0, nil
}

func (c *OpenAIChatClient) backoff(attempt int) time.Duration {
	base := c.RetryBase
	if base <= 0 {
		base = defaultRetryBase
	}
	wait := base << attempt
	if wait > maxRetryWait {
		wait = maxRetryWait
	}
	return wait
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func (c *OpenAIChatClient) maskedHeaders() map[string]string {
	out := map[string]string{}
	if c.APIKey != "" {
		out["Authorization"] = "Bearer " + mask(c.APIKey)
	}
	for k, v := range c.ExtraHeaders {
		lk := strings.ToLower(k)
		if strings.Contains(lk, "key") || strings.Contains(lk, "token") || strings.Contains(lk, "auth") {
			v = mask(v)
		}
		out[k] = v
	}
	return out
}

func mask(v string) string {
	if len(v) <= 4 {
		return "****"
	}
	return "****" + v[len(v)-4:]
}

// OpenAIModelProvider adapts a chat client to ModelProvider and writes the LLM transcript.
type OpenAIModelProvider struct {
	id     string
	client chatCaller
}

type chatCaller interface {
	Call(ctx context.Context, payload ChatPayload) (string, error)
}

func NewOpenAIModelProvider(id string, client chatCaller) *OpenAIModelProvider {
	return &OpenAIModelProvider{id: id, client: client}
}

func (p *OpenAIModelProvider) ID() string { return p.id }

func (p *OpenAIModelProvider) Call(ctx context.Context, payload ChatPayload) (string, error) {
	var dump string
	if c, ok := p.client.(*OpenAIChatClient); ok {
		dump = jsonutil.Compact(c.buildRequest(payload))
	}
	logger.LogLLMRequest(p.id, payload.TraceID, payload.System, payload.User, dump)
	out, err := p.client.Call(ctx, payload)
	if err != nil {
		logger.LogLLMResponse(p.id, payload.TraceID, "ERROR: "+err.Error())
		return "", err
	}
	logger.LogLLMResponse(p.id, payload.TraceID, jsonutil.Pretty(out))
	return out, nil
}
