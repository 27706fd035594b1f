package decision

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

// ErrDecision marks a failed decision. No wager may be built from it.
var ErrDecision = errors.New("decision failed")

// Decision maps an asset symbol to the chosen direction, +1 or -1.
type Decision map[string]int

// Symbols returns the selected symbols in sorted order.
func (d Decision) Symbols() []string {
	out := make([]string, 0, len(d))
	for sym := range d {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// String renders "A:+1 B:-1" in symbol order.
func (d Decision) String() string {
	parts := make([]string, 0, len(d))
	for _, sym := range d.Symbols() {
		parts = append(parts, sym+":"+signed(d[sym]))
	}
	return strings.Join(parts, " ")
}

// Selection is one element of the reasoning service's output array.
type Selection struct {
	Token      string `json:"token"`
	Prediction int    `json:"prediction"`
}

// Result is a successful decision plus the material that produced it.
type Result struct {
	TraceID    string
	ProviderID string
	Decision   Decision
	System     string
	User       string
	RawOutput  string
	RawJSON    string
	// Degenerate is set when fewer than the expected number of assets were chosen.
	Degenerate bool
}

func signed(v int) string {
	if v > 0 {
		return "+" + strconv.Itoa(v)
	}
	return strconv.Itoa(v)
}
