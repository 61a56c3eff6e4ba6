package media

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"stagecall/internal/core/domain"
	"stagecall/internal/core/ports"
	callerr "stagecall/pkg/errors"
	"stagecall/pkg/tracing"

	"go.uber.org/zap"
)

// ScreenCredentialFunc fetches the separate credential bound to the
// derived screen identity.
type ScreenCredentialFunc func(ctx context.Context, screenIdentity domain.Identity) (ports.JoinCredentials, error)

// ChannelHandle is the slice of the channel manager the controller
// drives. It never touches the two client handles directly.
type ChannelHandle interface {
	MainIdentity() domain.Identity
	PublishPrimary(ctx context.Context, tracks ...ports.LocalTrack) error
	JoinScreenShare(ctx context.Context, creds ports.JoinCredentials) error
	PublishScreen(ctx context.Context, tracks ...ports.LocalTrack) error
	UnpublishScreen(ctx context.Context, tracks ...ports.LocalTrack) error
	LeaveScreenShare(ctx context.Context) error
	LeavePrimary(ctx context.Context) error
}

// Controller owns every device handle in the session: camera,
// microphone and display capture. All operations are idempotent and
// all exit paths (explicit stop, OS stop-sharing, teardown) converge on
// the same cleanup.
type Controller struct {
	devices     ports.DeviceSource
	channel     ChannelHandle
	screenCreds ScreenCredentialFunc
	log         *zap.Logger

	mu           sync.Mutex
	captureState domain.CaptureState
	screenState  domain.ScreenState

	micTrack    ports.LocalTrack
	cameraTrack ports.LocalTrack
	screenTrack ports.LocalTrack

	isMuted    bool
	isCameraOn bool
}

// NewController wires the controller to its collaborators.
func NewController(devices ports.DeviceSource, ch ChannelHandle, screenCreds ScreenCredentialFunc, log *zap.Logger) *Controller {
	return &Controller{
		devices:      devices,
		channel:      ch,
		screenCreds:  screenCreds,
		log:          log,
		captureState: domain.CaptureUnacquired,
		screenState:  domain.ScreenIdle,
	}
}

// State returns a snapshot of the local session's media flags.
func (c *Controller) State() domain.LocalSessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.LocalSessionState{
		MainIdentity:    c.channel.MainIdentity(),
		IsJoined:        c.captureState == domain.CapturePublished || c.captureState == domain.CaptureSuspended,
		IsMuted:         c.isMuted,
		IsCameraOn:      c.isCameraOn,
		IsScreenSharing: c.screenState == domain.ScreenSharing,
		CameraTrack:     c.cameraTrack,
		MicTrack:        c.micTrack,
		ScreenTrack:     c.screenTrack,
	}
}

// ProbePermissions forces the camera/mic permission prompt with a
// throwaway acquire before anything persistent is held. Denial is
// fatal: the caller must not proceed to join.
func (c *Controller) ProbePermissions(ctx context.Context) error {
	if err := c.devices.ProbePermissions(ctx); err != nil {
		if errors.Is(err, domain.ErrPermissionDenied) {
			return callerr.Fatal(callerr.CodePermission, "camera or microphone access was denied", err)
		}
		return callerr.Fatal(callerr.CodePermission, "device permission probe failed", err)
	}
	return nil
}

// AcquireAndPublish acquires persistent mic and camera tracks and
// publishes them on the primary client.
func (c *Controller) AcquireAndPublish(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.captureState != domain.CaptureUnacquired {
		return nil
	}
	c.captureState = domain.CaptureAcquiring

	mic, camera, err := c.devices.AcquireMicrophoneAndCamera(ctx, c.channel.MainIdentity())
	if err != nil {
		c.captureState = domain.CaptureUnacquired
		if errors.Is(err, domain.ErrPermissionDenied) {
			return callerr.Fatal(callerr.CodePermission, "camera or microphone access was denied", err)
		}
		return callerr.Fatal(callerr.CodeJoinFailed, "device acquisition failed", err)
	}

	if err := c.channel.PublishPrimary(ctx, mic, camera); err != nil {
		mic.Stop()
		camera.Stop()
		c.captureState = domain.CaptureUnacquired
		return callerr.Fatal(callerr.CodeJoinFailed, "publishing local tracks failed", err)
	}

	c.micTrack = mic
	c.cameraTrack = camera
	c.captureState = domain.CapturePublished
	c.isMuted = false
	c.isCameraOn = true
	return nil
}

// ToggleMute flips the microphone via SetEnabled on the existing
// track: no re-acquire, no re-publish, no renegotiation. Exactly one
// SetEnabled call per toggle.
func (c *Controller) ToggleMute() (muted bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.micTrack == nil {
		return c.isMuted, domain.ErrNotJoined
	}

	next := !c.isMuted
	if err := c.micTrack.SetEnabled(!next); err != nil {
		return c.isMuted, fmt.Errorf("toggle mute: %w", err)
	}
	c.isMuted = next
	c.updateSuspended()
	return c.isMuted, nil
}

// ToggleCamera flips the camera the same way.
func (c *Controller) ToggleCamera() (on bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cameraTrack == nil {
		return c.isCameraOn, domain.ErrNotJoined
	}

	next := !c.isCameraOn
	if err := c.cameraTrack.SetEnabled(next); err != nil {
		return c.isCameraOn, fmt.Errorf("toggle camera: %w", err)
	}
	c.isCameraOn = next
	c.updateSuspended()
	return c.isCameraOn, nil
}

func (c *Controller) updateSuspended() {
	if c.captureState != domain.CapturePublished && c.captureState != domain.CaptureSuspended {
		return
	}
	if c.isMuted || !c.isCameraOn {
		c.captureState = domain.CaptureSuspended
	} else {
		c.captureState = domain.CapturePublished
	}
}

// StartScreenShare runs the full share flow: display capture, screen
// credential, second client join, publish. The primary client's
// camera/mic publication is untouched throughout. User cancellation of
// the picker resolves to a clean Idle, not an error.
func (c *Controller) StartScreenShare(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "media.start_screen_share")
	defer span.End()

	c.mu.Lock()
	if c.screenState != domain.ScreenIdle {
		c.mu.Unlock()
		return nil
	}
	c.screenState = domain.ScreenRequesting
	c.mu.Unlock()

	derived, err := domain.DeriveScreenIdentity(c.channel.MainIdentity())
	if err != nil {
		c.setScreenIdle()
		return callerr.Degraded(callerr.CodeScreenShare, "screen identity derivation failed", err)
	}

	track, err := c.devices.AcquireDisplay(ctx, derived)
	if err != nil {
		c.setScreenIdle()
		if errors.Is(err, domain.ErrCaptureCancelled) {
			c.log.Debug("display picker dismissed by user")
			return nil
		}
		return callerr.Degraded(callerr.CodeScreenShare, "display capture failed", err)
	}

	creds, err := c.screenCreds(ctx, derived)
	if err != nil {
		track.Stop()
		c.setScreenIdle()
		return callerr.Degraded(callerr.CodeScreenShare, "screen share token unavailable", err)
	}
	creds.Identity = derived

	if err := c.channel.JoinScreenShare(ctx, creds); err != nil {
		track.Stop()
		c.setScreenIdle()
		return callerr.Degraded(callerr.CodeScreenShare, "screen share join failed", err)
	}

	if err := c.channel.PublishScreen(ctx, track); err != nil {
		c.channel.LeaveScreenShare(ctx)
		track.Stop()
		c.setScreenIdle()
		return callerr.Degraded(callerr.CodeScreenShare, "screen share publish failed", err)
	}

	c.mu.Lock()
	c.screenTrack = track
	c.screenState = domain.ScreenSharing
	c.mu.Unlock()

	// The OS-level "Stop sharing" control ends the capture track
	// outside our control; route it through the same cleanup as an
	// explicit stop. Registered after the state commit: a capture that
	// already ended fires the hook immediately, and the cleanup must
	// see the Sharing state to run.
	track.OnEnded(func() {
		if err := c.StopScreenShare(context.Background()); err != nil {
			c.log.Warn("cleanup after OS stop-sharing failed", zap.Error(err))
		}
	})

	c.log.Info("screen share started", zap.String("identity", derived.String()))
	return nil
}

func (c *Controller) setScreenIdle() {
	c.mu.Lock()
	c.screenState = domain.ScreenIdle
	c.mu.Unlock()
}

// StopScreenShare unpublishes, leaves the screen client and releases
// the capture track. Idempotent: a no-op when already Idle.
func (c *Controller) StopScreenShare(ctx context.Context) error {
	c.mu.Lock()
	if c.screenState != domain.ScreenSharing {
		c.mu.Unlock()
		return nil
	}
	track := c.screenTrack
	c.screenTrack = nil
	c.screenState = domain.ScreenIdle
	c.mu.Unlock()

	if track != nil {
		if err := c.channel.UnpublishScreen(ctx, track); err != nil {
			c.log.Warn("screen unpublish failed", zap.Error(err))
		}
	}
	if err := c.channel.LeaveScreenShare(ctx); err != nil {
		c.log.Warn("screen client leave failed", zap.Error(err))
	}
	if track != nil {
		if err := track.Stop(); err != nil {
			c.log.Warn("screen track stop failed", zap.Error(err))
		}
	}

	c.log.Info("screen share stopped")
	return nil
}
