package ports

import (
	"context"

	"stagecall/internal/core/domain"
)

// LocalTrack is a device-backed track owned by this client. Enabling
// and disabling gates the media without releasing the device, which is
// what mute/camera-off map to.
type LocalTrack interface {
	domain.TrackHandle
	SetEnabled(enabled bool) error
	Enabled() bool
	// Stop releases the underlying device or capture.
	Stop() error
	// OnEnded registers a hook fired when the track ends outside our
	// control, e.g. the OS-level "Stop sharing" button.
	OnEnded(fn func())
}

// DeviceSource acquires capture hardware. Exclusively owned by the
// local media lifecycle controller; no other component touches device
// tracks directly.
type DeviceSource interface {
	// ProbePermissions acquires and immediately releases throwaway
	// tracks to force the permission prompt before the real acquire.
	// Returns domain.ErrPermissionDenied when the user refuses.
	ProbePermissions(ctx context.Context) error

	// AcquireMicrophoneAndCamera returns persistent mic and camera
	// tracks, in that order. owner is the identity the tracks will be
	// published under; subscribers attribute media by it.
	AcquireMicrophoneAndCamera(ctx context.Context, owner domain.Identity) (mic LocalTrack, camera LocalTrack, err error)

	// AcquireDisplay opens the display picker and returns the capture
	// track, published under the derived screen identity. Returns
	// domain.ErrCaptureCancelled when the user dismisses the picker;
	// that is expected behavior, not a failure.
	AcquireDisplay(ctx context.Context, owner domain.Identity) (LocalTrack, error)
}

// RenderTarget is a mount point supplied by the presentation layer.
// Tracks are attached only once both the track and the target exist.
type RenderTarget interface {
	ID() string
	Render(track domain.TrackHandle) error
	Clear()
}

// RemoteTrack is a subscribed remote publisher's track.
type RemoteTrack interface {
	domain.TrackHandle
	Attach(target RenderTarget) error
	Detach()
}
