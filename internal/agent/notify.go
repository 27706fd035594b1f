package agent

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"augur/internal/decision"
	"augur/internal/gateway/notifier"
	"augur/internal/logger"
	"augur/internal/pkg/text"
	"augur/internal/scoring"
)

func (h *Handler) notifyJoined(ctx context.Context, gameID string, res decision.Result) {
	lines := make([]string, 0, len(res.Decision))
	for _, sym := range res.Decision.Symbols() {
		dir := "down"
		if res.Decision[sym] > 0 {
			dir = "up"
		}
		lines = append(lines, fmt.Sprintf("%s %s", sym, dir))
	}
	footer := "provider " + res.ProviderID
	if res.Degenerate {
		footer += ", fewer selections than expected"
	}
	h.send(ctx, notifier.StructuredMessage{
		Icon:      "🎯",
		Title:     "Joined game " + gameID,
		Sections:  []notifier.MessageSection{{Title: "Predictions", Lines: lines}},
		Footer:    footer,
		Timestamp: h.now(),
	})
}

func (h *Handler) notifyScored(ctx context.Context, rep scoring.Report) {
	lines := make([]string, 0, len(rep.Outcomes)+len(rep.Skipped))
	for _, o := range rep.Outcomes {
		mark := "miss"
		if o.Success {
			mark = "hit"
		}
		lines = append(lines, fmt.Sprintf("%s predicted %+d actual %+d %s", o.Symbol, o.Predicted, o.Actual, mark))
	}
	for _, sym := range rep.Skipped {
		lines = append(lines, sym+" no price data")
	}
	h.send(ctx, notifier.StructuredMessage{
		Icon:  "🏁",
		Title: "Game " + rep.GameID + " ended",
		Sections: []notifier.MessageSection{
			{Title: "Result", Lines: []string{
				fmt.Sprintf("rank %d", rep.Rank),
				"points " + decimal.NewFromFloat(rep.Points).String(),
				fmt.Sprintf("hits %d/%d", rep.Hits(), len(rep.Outcomes)),
			}},
			{Title: "Symbols", Lines: lines},
		},
		Timestamp: h.now(),
	})
}

func (h *Handler) notifyFailure(ctx context.Context, gameID string, err error) {
	h.send(ctx, notifier.StructuredMessage{
		Icon:      "⚠️",
		Title:     "Skipped game " + gameID,
		Sections:  []notifier.MessageSection{{Lines: []string{text.Truncate(err.Error(), 500)}}},
		Timestamp: h.now(),
	})
}

func (h *Handler) send(ctx context.Context, msg notifier.StructuredMessage) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := h.deps.Notifier.SendText(ctx, msg.RenderMarkdown()); err != nil {
		logger.Warnf("[agent] notification failed: %v", err)
	}
}
