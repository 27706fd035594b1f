package decision

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"augur/internal/logger"
	"augur/internal/pkg/jsonutil"
)

// Parser turns raw reasoning output into a validated Decision.
type Parser struct {
	ExpectedSelections int
	MaxSelections      int
}

func NewParser(expected, max int) *Parser {
	if expected <= 0 {
		expected = 3
	}
	if max < expected {
		max = expected
	}
	return &Parser{ExpectedSelections: expected, MaxSelections: max}
}

// Parsed is the outcome of one parse, successful or not.
type Parsed struct {
	RawJSON    string
	Decision   Decision
	Degenerate bool
}

// Parse extracts, validates and reduces the output. offered holds the
// symbols that were in the brief; anything else is rejected. Every error
// wraps ErrDecision.
func (p *Parser) Parse(raw string, offered map[string]bool) (Parsed, error) {
	var out Parsed
	block, ok := jsonutil.ExtractJSON(raw)
	if !ok {
		return out, fmt.Errorf("%w: no JSON found in output", ErrDecision)
	}
	arr, err := unwrapSelections(block)
	if err != nil {
		out.RawJSON = strings.TrimSpace(block)
		return out, fmt.Errorf("%w: %v", ErrDecision, err)
	}
	out.RawJSON = arr
	if err := validateSchema(arr); err != nil {
		return out, fmt.Errorf("%w: schema: %v", ErrDecision, err)
	}
	var sels []Selection
	dec := json.NewDecoder(strings.NewReader(arr))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sels); err != nil {
		return out, fmt.Errorf("%w: decode: %v", ErrDecision, err)
	}
	d, err := reduce(sels, offered)
	if err != nil {
		return out, err
	}
	switch {
	case len(d) == 0:
		return out, fmt.Errorf("%w: empty selection", ErrDecision)
	case len(d) > p.MaxSelections:
		return out, fmt.Errorf("%w: %d selections exceed the limit of %d", ErrDecision, len(d), p.MaxSelections)
	case len(d) < p.ExpectedSelections:
		out.Degenerate = true
		logger.Warnf("[decision] only %d of %d expected selections: %s", len(d), p.ExpectedSelections, d)
	}
	out.Decision = d
	return out, nil
}

// unwrapSelections accepts a bare array or an object carrying it under EnvelopeKey.
func unwrapSelections(block string) (string, error) {
	block = strings.TrimSpace(block)
	if !gjson.Valid(block) {
		return "", fmt.Errorf("invalid JSON")
	}
	parsed := gjson.Parse(block)
	if parsed.IsArray() {
		return block, nil
	}
	if !parsed.IsObject() {
		return "", fmt.Errorf("root must be an array or an object")
	}
	inner := parsed.Get(EnvelopeKey)
	if !inner.IsArray() {
		return "", fmt.Errorf("object root without a %q array", EnvelopeKey)
	}
	if n := len(parsed.Map()); n != 1 {
		return "", fmt.Errorf("envelope has %d fields, want only %q", n, EnvelopeKey)
	}
	return strings.TrimSpace(inner.Raw), nil
}

func reduce(sels []Selection, offered map[string]bool) (Decision, error) {
	d := make(Decision, len(sels))
	for i, s := range sels {
		sym := strings.ToUpper(strings.TrimSpace(s.Token))
		if sym == "" {
			return nil, fmt.Errorf("%w: selection #%d has an empty token", ErrDecision, i+1)
		}
		if s.Prediction != 1 && s.Prediction != -1 {
			return nil, fmt.Errorf("%w: selection #%d (%s) has prediction %d", ErrDecision, i+1, sym, s.Prediction)
		}
		if offered != nil && !offered[sym] {
			return nil, fmt.Errorf("%w: %s was not among the offered forecasts", ErrDecision, sym)
		}
		if prev, dup := d[sym]; dup {
			logger.Warnf("[decision] duplicate selection %s (%s -> %s), keeping the last", sym, signed(prev), signed(s.Prediction))
		}
		d[sym] = s.Prediction
	}
	return d, nil
}
