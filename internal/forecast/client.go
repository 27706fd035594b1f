package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"augur/internal/config"
)

// Client fetches forecasts from the external signal service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(cfg config.ForecastConfig) *Client {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
	}
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

type wireForecast struct {
	Direction      string          `json:"direction"`
	Confidence     *float64        `json:"confidence"`
	CurrentPrice   float64         `json:"current_price"`
	PredictedPrice float64         `json:"predicted_price"`
	Timestamp      json.RawMessage `json:"timestamp"`
	DataPoints     int             `json:"data_points"`
	PriceChangePct float64         `json:"price_change_pct"`
}

// Forecast calls GET {base}/forecast/{symbol}. Every failure wraps ErrForecast.
func (c *Client) Forecast(ctx context.Context, symbol string) (Forecast, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Forecast{}, fmt.Errorf("%w: empty symbol", ErrForecast)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return Forecast{}, fmt.Errorf("%w: %s: rate limiter: %v", ErrForecast, symbol, err)
	}
	endpoint := c.baseURL + "/forecast/" + url.PathEscape(symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Forecast{}, fmt.Errorf("%w: %s: %v", ErrForecast, symbol, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Forecast{}, fmt.Errorf("%w: %s: %v", ErrForecast, symbol, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Forecast{}, fmt.Errorf("%w: %s: status=%d %s", ErrForecast, symbol, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	var w wireForecast
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		return Forecast{}, fmt.Errorf("%w: %s: decode: %v", ErrForecast, symbol, err)
	}
	return w.toForecast(symbol)
}

func (w wireForecast) toForecast(symbol string) (Forecast, error) {
	dir, err := ParseDirection(w.Direction)
	if err != nil {
		return Forecast{}, fmt.Errorf("%w: %s: %v", ErrForecast, symbol, err)
	}
	if w.Confidence == nil {
		return Forecast{}, fmt.Errorf("%w: %s: missing confidence", ErrForecast, symbol)
	}
	if *w.Confidence < 0 || *w.Confidence > 1 {
		return Forecast{}, fmt.Errorf("%w: %s: confidence %v outside [0,1]", ErrForecast, symbol, *w.Confidence)
	}
	return Forecast{
		Symbol:            symbol,
		Direction:         dir,
		Confidence:        *w.Confidence,
		CurrentPrice:      w.CurrentPrice,
		PredictedPrice:    w.PredictedPrice,
		SampleCount:       w.DataPoints,
		ObservedPctChange: w.PriceChangePct,
		Timestamp:         parseTimestamp(w.Timestamp),
	}, nil
}

// parseTimestamp accepts RFC3339 strings or unix seconds; anything else is zero.
func parseTimestamp(raw json.RawMessage) time.Time {
	text := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if text == "" || text == "null" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, text); err == nil {
		return ts.UTC()
	}
	if secs, err := strconv.ParseFloat(text, 64); err == nil {
		return time.UnixMilli(int64(secs * 1000)).UTC()
	}
	return time.Time{}
}
