package notifier

import "context"

// TextNotifier is the only notification surface the agent depends on.
type TextNotifier interface {
	SendText(ctx context.Context, text string) error
}

// Noop discards every message; used when no channel is configured.
type Noop struct{}

func (Noop) SendText(context.Context, string) error { return nil }
