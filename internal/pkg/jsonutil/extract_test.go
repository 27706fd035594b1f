package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"bare array", `[{"token":"BTC","prediction":1}]`, `[{"token":"BTC","prediction":1}]`, true},
		{"fenced with tag", "Here you go:\n```json\n[{\"token\":\"ETH\",\"prediction\":-1}]\n```\nthanks", `[{"token":"ETH","prediction":-1}]`, true},
		{"object envelope", `sure {"predictions":[{"token":"SOL","prediction":1}]} done`, `{"predictions":[{"token":"SOL","prediction":1}]}`, true},
		{"brackets inside strings", `[{"token":"a]b","prediction":1}]`, `[{"token":"a]b","prediction":1}]`, true},
		{"unterminated", `[{"token":"BTC"`, "", false},
		{"no json", "I cannot decide", "", false},
		{"empty", "   ", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractJSON(tc.raw)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExtractJSONWithOffset(t *testing.T) {
	_, offset, ok := ExtractJSONWithOffset(`abc [1]`)
	assert.True(t, ok)
	assert.Equal(t, 4, offset)
}

func TestPretty(t *testing.T) {
	assert.Equal(t, "{\n  \"a\": 1\n}", Pretty(`{"a":1}`))
	assert.Equal(t, "not json", Pretty("not json"))
	assert.Equal(t, `{"a":1}`, Compact(map[string]int{"a": 1}))
}
