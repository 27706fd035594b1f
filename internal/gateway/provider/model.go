package provider

import (
	"context"
	"encoding/json"
)

// ChatPayload is one reasoning request. When Schema is set the provider asks
// the service for structured output conforming to it.
type ChatPayload struct {
	System     string
	User       string
	Schema     json.RawMessage
	SchemaName string
	// EnvelopeKey wraps an array-rooted Schema as {EnvelopeKey: [...]} for
	// services that only accept object roots.
	EnvelopeKey string
	MaxTokens   int
	TraceID     string
}

type ModelProvider interface {
	ID() string
	Call(ctx context.Context, payload ChatPayload) (string, error)
}
