package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		settings      Settings
		outcomes      []bool // true = success, false = failure
		expectedState State
	}{
		{
			name:          "stays closed on successes",
			settings:      Settings{FailureThreshold: 3, Cooldown: time.Minute},
			outcomes:      []bool{true, true, true},
			expectedState: StateClosed,
		},
		{
			name:          "opens after consecutive failures",
			settings:      Settings{FailureThreshold: 3, Cooldown: time.Minute},
			outcomes:      []bool{false, false, false},
			expectedState: StateOpen,
		},
		{
			name:          "success resets the failure count",
			settings:      Settings{FailureThreshold: 3, Cooldown: time.Minute},
			outcomes:      []bool{false, false, true, false, false},
			expectedState: StateClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("test", tt.settings)
			for _, success := range tt.outcomes {
				_ = b.Do(func() error {
					if success {
						return nil
					}
					return errors.New("failed")
				})
			}
			assert.Equal(t, tt.expectedState, b.State())
		})
	}
}

func TestBreakerRejectsWhileOpen(t *testing.T) {
	b := New("test", Settings{FailureThreshold: 1, Cooldown: time.Minute})

	require.Error(t, b.Do(func() error { return errors.New("failed") }))
	require.Equal(t, StateOpen, b.State())

	called := false
	err := b.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreakerProbesAfterCooldown(t *testing.T) {
	b := New("test", Settings{FailureThreshold: 1, Cooldown: 10 * time.Millisecond})

	require.Error(t, b.Do(func() error { return errors.New("failed") }))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Do(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerReopensOnFailedProbe(t *testing.T) {
	b := New("test", Settings{FailureThreshold: 1, Cooldown: 10 * time.Millisecond})

	require.Error(t, b.Do(func() error { return errors.New("failed") }))
	time.Sleep(20 * time.Millisecond)

	require.Error(t, b.Do(func() error { return errors.New("still failing") }))
	assert.Equal(t, StateOpen, b.State())
}
