package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLimiter_Invalid(t *testing.T) {
	_, err := NewLimiter(0, 1)
	assert.Error(t, err)
	_, err = NewLimiter(1, 0)
	assert.Error(t, err)
}

func TestLimiter_BurstThenReject(t *testing.T) {
	l, err := NewLimiter(1, 2)
	require.NoError(t, err)

	assert.True(t, l.Allow("k"))
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"), "burst exhausted")
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l, err := NewLimiter(1, 1)
	require.NoError(t, err)

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
}

func TestNewToolLimiters_Overrides(t *testing.T) {
	limiters, err := NewToolLimiters(map[string]Limit{"evolab_simulate": {PerMinute: 1, Burst: 1}})
	require.NoError(t, err)

	for tool := range DefaultLimits() {
		assert.Contains(t, limiters, tool)
	}
	assert.Equal(t, "1/min burst 1", limiters["evolab_simulate"].String())

	_, err = NewToolLimiters(map[string]Limit{"x": {}})
	assert.Error(t, err)
}

func TestCheckLimit(t *testing.T) {
	limiters, err := NewToolLimiters(map[string]Limit{"evolab_simulate": {PerMinute: 1, Burst: 1}})
	require.NoError(t, err)

	assert.NoError(t, CheckLimit(limiters, "evolab_simulate"))
	err = CheckLimit(limiters, "evolab_simulate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit exceeded for evolab_simulate")

	assert.NoError(t, CheckLimit(limiters, "unlimited_tool"))
}
