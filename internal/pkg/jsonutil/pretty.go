package jsonutil

import (
	"encoding/json"
	"strings"
)

// Pretty indents raw JSON for log output; invalid input is returned unchanged.
func Pretty(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !json.Valid([]byte(raw)) {
		return raw
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return raw
	}
	return string(buf)
}

// Compact renders v on a single line, falling back to "{}" when it cannot be encoded.
func Compact(v any) string {
	buf, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(buf)
}
