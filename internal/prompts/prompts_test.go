package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForMode_Default(t *testing.T) {
	p, err := ForMode("")
	require.NoError(t, err)

	assert.Contains(t, p, "Mr Trove Advisor")
	assert.Contains(t, p, "Phase 4: Build")
	assert.Contains(t, p, "20% discount")
}

func TestForMode_CaseInsensitive(t *testing.T) {
	p, err := ForMode(" Brief ")
	require.NoError(t, err)
	assert.Contains(t, p, "concise")
}

func TestForMode_Unknown(t *testing.T) {
	_, err := ForMode("pirate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "casual")
}

func TestModes(t *testing.T) {
	assert.Equal(t, []string{"brief", "casual", "default", "technical"}, Modes())
}
