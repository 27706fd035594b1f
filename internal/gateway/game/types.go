package game

import (
	"fmt"
	"strings"
)

// Asset is one tradeable coin offered by the platform. Symbol is the
// identity and is normalised to upper case.
type Asset struct {
	Symbol      string `json:"symbol"`
	DisplayName string `json:"name"`
	Description string `json:"description"`
	IconRef     string `json:"icon"`
}

func (a *Asset) normalize() error {
	a.Symbol = strings.ToUpper(strings.TrimSpace(a.Symbol))
	if a.Symbol == "" {
		return fmt.Errorf("asset without symbol (name=%q)", a.DisplayName)
	}
	return nil
}

// JoinRequest is the wire body of the join endpoint: coins maps symbol to
// +1/-1 and tokens is the stake.
type JoinRequest struct {
	Coins  map[string]int `json:"coins"`
	Tokens float64        `json:"tokens"`
}

// StatusError is returned for non-2xx platform responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("game platform status=%d", e.Code)
	}
	return fmt.Sprintf("game platform status=%d: %s", e.Code, e.Body)
}
