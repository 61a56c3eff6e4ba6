package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testConfig() Config {
	return Config{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Cooldown:         20 * time.Millisecond,
	}
}

func TestClosedPassesThrough(t *testing.T) {
	b := New(testConfig())

	assert.NoError(t, b.Do(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
}

func TestOpensAfterThreshold(t *testing.T) {
	b := New(testConfig())
	boom := errors.New("boom")

	assert.ErrorIs(t, b.Do(func() error { return boom }), boom)
	assert.ErrorIs(t, b.Do(func() error { return boom }), boom)
	assert.Equal(t, StateOpen, b.State())

	// Open circuit rejects without invoking the function.
	called := false
	err := b.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestHalfOpenProbeClosesOnSuccess(t *testing.T) {
	b := New(testConfig())
	boom := errors.New("boom")
	b.Do(func() error { return boom })
	b.Do(func() error { return boom })

	time.Sleep(25 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, b.State())

	assert.NoError(t, b.Do(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
}

func TestHalfOpenProbeReopensOnFailure(t *testing.T) {
	b := New(testConfig())
	boom := errors.New("boom")
	b.Do(func() error { return boom })
	b.Do(func() error { return boom })

	time.Sleep(25 * time.Millisecond)
	assert.ErrorIs(t, b.Do(func() error { return boom }), boom)
	assert.Equal(t, StateOpen, b.State())
}

func TestSuccessResetsFailureStreak(t *testing.T) {
	b := New(testConfig())
	boom := errors.New("boom")

	b.Do(func() error { return boom })
	b.Do(func() error { return nil })
	b.Do(func() error { return boom })
	assert.Equal(t, StateClosed, b.State())
}

func TestTransitionHook(t *testing.T) {
	b := New(testConfig())
	var transitions []State
	b.OnTransition(func(from, to State) { transitions = append(transitions, to) })

	boom := errors.New("boom")
	b.Do(func() error { return boom })
	b.Do(func() error { return boom })

	assert.Equal(t, []State{StateOpen}, transitions)
}
