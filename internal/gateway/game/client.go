package game

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"augur/internal/config"
)

// Client wraps the game platform REST endpoints the agent needs.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client
}

func NewClient(cfg config.GameConfig) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("parse game.base_url: %w", err)
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    parsed,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// ListAssets returns the offered coins in platform order. The response may be
// a bare array or wrapped under "coins" or "data".
func (c *Client) ListAssets(ctx context.Context) ([]Asset, error) {
	var raw json.RawMessage
	if err := c.doRequest(ctx, http.MethodGet, "/api/coins", nil, &raw); err != nil {
		return nil, err
	}
	list := gjson.ParseBytes(raw)
	if !list.IsArray() {
		list = gjson.GetBytes(raw, "coins")
		if !list.Exists() {
			list = gjson.GetBytes(raw, "data")
		}
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("decode assets: expected an array")
	}
	var assets []Asset
	if err := json.Unmarshal([]byte(list.Raw), &assets); err != nil {
		return nil, fmt.Errorf("decode assets: %w", err)
	}
	for i := range assets {
		if err := assets[i].normalize(); err != nil {
			return nil, fmt.Errorf("decode assets[%d]: %w", i, err)
		}
	}
	return assets, nil
}

// Join enters gameID with the given selections and stake. The confirmation
// body is returned verbatim.
func (c *Client) Join(ctx context.Context, gameID string, req JoinRequest) (json.RawMessage, error) {
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return nil, fmt.Errorf("join: empty game id")
	}
	var out json.RawMessage
	path := "/api/games/" + url.PathEscape(gameID) + "/join"
	if err := c.doRequest(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, payload any, out any) error {
	if c == nil || c.baseURL == nil {
		return fmt.Errorf("game client not initialised")
	}
	endpoint := c.baseURL.JoinPath(path)

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
