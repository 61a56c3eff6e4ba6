package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	callerr "stagecall/pkg/errors"

	"github.com/stretchr/testify/assert"
)

func quickConfig() Config {
	return Config{
		Enabled:      true,
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), quickConfig(), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	cause := errors.New("timeout")
	err := Do(context.Background(), quickConfig(), func() error {
		calls++
		return cause
	})

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, calls)
}

func TestDo_ClassifiedErrorsNotRetried(t *testing.T) {
	calls := 0
	fatal := callerr.Fatal(callerr.CodeAuth, "expired token", nil)
	err := Do(context.Background(), quickConfig(), func() error {
		calls++
		return fatal
	})

	assert.Equal(t, fatal, err)
	assert.Equal(t, 1, calls)
}

func TestDo_Disabled(t *testing.T) {
	calls := 0
	cfg := quickConfig()
	cfg.Enabled = false

	err := Do(context.Background(), cfg, func() error {
		calls++
		return errors.New("boom")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, quickConfig(), func() error {
		return errors.New("never reached after cancel")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoWithResult_ReturnsValue(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), quickConfig(), func() (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("flaky")
		}
		return 42, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestDelayFor_CappedAtMax(t *testing.T) {
	cfg := quickConfig()
	assert.LessOrEqual(t, delayFor(cfg, 10), cfg.MaxDelay)
}
