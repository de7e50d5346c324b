package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesSentinel(t *testing.T) {
	wrapped := Wrap(ErrNoVotes, "analyze 2023-2024")

	assert.Contains(t, wrapped.Error(), "analyze 2023-2024")
	assert.Contains(t, wrapped.Error(), "no votes with ballots")
	assert.True(t, Is(wrapped, ErrNoVotes))
	assert.False(t, Is(wrapped, ErrSessionNotFound))
}

func TestIsMissingInput(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"no votes", ErrNoVotes, true},
		{"session not found", NewSessionNotFound("2019-2020"), true},
		{"wrapped twice", Wrap(Wrap(ErrNoVotes, "inner"), "outer"), true},
		{"upstream", ErrUpstreamUnavailable, false},
		{"plain", fmt.Errorf("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsMissingInput(tt.err))
		})
	}
}

func TestNewSessionNotFound(t *testing.T) {
	err := NewSessionNotFound("2011-2012")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2011-2012")
	assert.NotNil(t, GetStack(err))
}

func TestIsUpstreamUnavailable(t *testing.T) {
	err := Wrapf(ErrUpstreamUnavailable, "GET %s", "saker")
	assert.True(t, IsUpstreamUnavailable(err))
	assert.False(t, IsUpstreamUnavailable(nil))
	assert.False(t, IsUpstreamUnavailable(ErrNoVotes))
}

func TestWithHint(t *testing.T) {
	err := WithHint(ErrInvalidConfig, "valid formats: json, yaml")
	assert.True(t, Is(err, ErrInvalidConfig))
	assert.Equal(t, []string{"valid formats: json, yaml"}, GetAllHints(err))
}
