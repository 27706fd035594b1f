package decision

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"augur/internal/forecast"
	"augur/internal/history"
	"augur/internal/prompt"
)

func TestRenderBrief_ForecastsOnly(t *testing.T) {
	brief := RenderBrief(prompt.Defaults(), []forecast.Forecast{
		{Symbol: "A", Direction: forecast.Up, Confidence: 0.9},
		{Symbol: "B", Direction: forecast.Down, Confidence: 0.6},
		{Symbol: "C", Direction: forecast.Up, Confidence: 0.3},
	}, nil)

	lines := strings.Split(brief, "\n")
	assert.Equal(t, []string{
		prompt.Defaults().BriefHeader,
		"A prediction=+1 confidence=0.90",
		"B prediction=-1 confidence=0.60",
		"C prediction=+1 confidence=0.30",
	}, lines)
	assert.NotContains(t, brief, "most recent rank")
}

func TestRenderBrief_WithHistory(t *testing.T) {
	tpl := prompt.Templates{HistoryHeader: "Recent:"}
	brief := RenderBrief(tpl, []forecast.Forecast{
		{Symbol: "A", Direction: forecast.Up, Confidence: 0.5},
	}, []history.Entry{
		{Symbol: "X", Prediction: 1, Success: true, Points: 50, Rank: 4},
		{Symbol: "Y", Prediction: -1, Success: false, Points: 12.5, Rank: 2},
	})

	assert.Equal(t, strings.Join([]string{
		"A prediction=+1 confidence=0.50",
		"",
		"Recent:",
		"most recent rank: 2",
		"X prediction=+1 success=true points=50",
		"Y prediction=-1 success=false points=12.5",
	}, "\n"), brief)
}
