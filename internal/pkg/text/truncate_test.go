package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "unlimited", Truncate("unlimited", 0))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	// "é" is two bytes; never cut inside it
	assert.Equal(t, "a...", Truncate("aé", 2))
}
