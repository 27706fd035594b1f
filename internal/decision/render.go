package decision

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"augur/internal/forecast"
	"augur/internal/history"
	"augur/internal/prompt"
)

// RenderBrief builds the user prompt: one line per forecast in the given
// order, then the recent-results block when history is non-empty.
func RenderBrief(tpl prompt.Templates, forecasts []forecast.Forecast, recent []history.Entry) string {
	var b strings.Builder
	if h := strings.TrimSpace(tpl.BriefHeader); h != "" {
		b.WriteString(h + "\n")
	}
	for _, f := range forecasts {
		fmt.Fprintf(&b, "%s prediction=%s confidence=%s\n",
			f.Symbol, signed(f.Direction.Sign()), decimal.NewFromFloat(f.Confidence).StringFixed(2))
	}
	if len(recent) == 0 {
		return strings.TrimRight(b.String(), "\n")
	}
	b.WriteString("\n")
	if h := strings.TrimSpace(tpl.HistoryHeader); h != "" {
		b.WriteString(h + "\n")
	}
	fmt.Fprintf(&b, "most recent rank: %d\n", recent[len(recent)-1].Rank)
	for _, e := range recent {
		fmt.Fprintf(&b, "%s prediction=%s success=%t points=%s\n",
			e.Symbol, signed(e.Prediction), e.Success, decimal.NewFromFloat(e.Points).String())
	}
	return strings.TrimRight(b.String(), "\n")
}
