package media

import (
	"context"

	"stagecall/internal/core/domain"
	"stagecall/internal/core/ports"
	callerr "stagecall/pkg/errors"
	"stagecall/pkg/tracing"

	"go.uber.org/zap"
)

// TeardownHooks are the session-level steps interleaved with device
// cleanup. Either may be nil.
type TeardownHooks struct {
	// NotifyLeave tells the backend we are departing. Best-effort:
	// its failure must not block any later step.
	NotifyLeave func(ctx context.Context) error
	// ClearTargets drops every registered render target.
	ClearTargets func()
}

// Teardown runs the full leave-call cleanup as an ordered list of
// independently guarded steps. One failing step never aborts the rest;
// failures are collected into a single transient error.
func (c *Controller) Teardown(ctx context.Context, hooks TeardownHooks) error {
	ctx, span := tracing.StartSpan(ctx, "media.teardown")
	defer span.End()

	type step struct {
		name string
		run  func() error
	}

	steps := []step{
		{"notify backend", func() error {
			if hooks.NotifyLeave == nil {
				return nil
			}
			return hooks.NotifyLeave(ctx)
		}},
		{"disable microphone", func() error {
			if t := c.takeMic(); t != nil {
				if err := t.SetEnabled(false); err != nil {
					return err
				}
				return t.Stop()
			}
			return nil
		}},
		{"disable camera", func() error {
			if t := c.takeCamera(); t != nil {
				if err := t.SetEnabled(false); err != nil {
					return err
				}
				return t.Stop()
			}
			return nil
		}},
		{"stop screen share", func() error {
			return c.StopScreenShare(ctx)
		}},
		{"leave primary client", func() error {
			return c.channel.LeavePrimary(ctx)
		}},
		{"leave screen client", func() error {
			return c.channel.LeaveScreenShare(ctx)
		}},
		{"clear render targets", func() error {
			if hooks.ClearTargets != nil {
				hooks.ClearTargets()
			}
			return nil
		}},
	}

	var failed []string
	for _, s := range steps {
		if err := s.run(); err != nil {
			c.log.Warn("teardown step failed", zap.String("step", s.name), zap.Error(err))
			failed = append(failed, s.name)
		}
	}

	c.mu.Lock()
	c.micTrack = nil
	c.cameraTrack = nil
	c.screenTrack = nil
	c.captureState = domain.CaptureReleased
	c.screenState = domain.ScreenIdle
	c.mu.Unlock()

	if len(failed) > 0 {
		err := callerr.Transient(callerr.CodeTeardown, "some teardown steps failed", nil)
		tracing.RecordError(ctx, err)
		c.log.Info("teardown finished with partial failures", zap.Strings("failed_steps", failed))
		return err
	}
	c.log.Info("teardown finished")
	return nil
}

func (c *Controller) takeMic() ports.LocalTrack {
	c.mu.Lock()
	defer c.mu.Unlock()
	track := c.micTrack
	c.micTrack = nil
	return track
}

func (c *Controller) takeCamera() ports.LocalTrack {
	c.mu.Lock()
	defer c.mu.Unlock()
	track := c.cameraTrack
	c.cameraTrack = nil
	return track
}
