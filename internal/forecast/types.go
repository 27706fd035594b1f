package forecast

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrForecast marks a per-asset forecast failure. It never fails a batch.
var ErrForecast = errors.New("forecast failed")

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Sign maps up to +1 and down to -1.
func (d Direction) Sign() int {
	if d == Up {
		return 1
	}
	return -1
}

func ParseDirection(raw string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(raw))) {
	case Up:
		return Up, nil
	case Down:
		return Down, nil
	}
	return "", fmt.Errorf("direction %q is neither up nor down", raw)
}

// Forecast is one directional signal for one asset, valid for one cycle.
type Forecast struct {
	Symbol            string    `json:"symbol"`
	Direction         Direction `json:"direction"`
	Confidence        float64   `json:"confidence"`
	CurrentPrice      float64   `json:"current_price"`
	PredictedPrice    float64   `json:"predicted_price"`
	SampleCount       int       `json:"data_points"`
	ObservedPctChange float64   `json:"price_change_pct"`
	Timestamp         time.Time `json:"timestamp"`
}

// Failure records why one asset produced no forecast.
type Failure struct {
	Symbol string
	Err    error
}

// Result partitions a batch into successes (confidence-descending) and failures.
type Result struct {
	Forecasts []Forecast
	Failures  []Failure
}
