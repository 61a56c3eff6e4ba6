package rtc

import (
	"context"
	"fmt"

	"stagecall/internal/core/domain"
	"stagecall/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// CaptureOpener starts feeding a device's encoded samples into the
// track and returns a stop function releasing the device. When the
// source ends on its own (OS stop-sharing, device unplugged) the
// opener must call track.endedBySource via the provided end callback.
type CaptureOpener func(ctx context.Context, track *LocalTrack, end func()) (stop func(), err error)

// DeviceSource acquires capture devices and wraps them as local
// tracks. The concrete capture pipelines (camera, microphone, display)
// are injected; the host environment decides how media is produced.
type DeviceSource struct {
	mic     CaptureOpener
	camera  CaptureOpener
	display CaptureOpener
	log     *zap.Logger
}

// NewDeviceSource builds a source from the three capture openers.
func NewDeviceSource(mic, camera, display CaptureOpener, log *zap.Logger) *DeviceSource {
	return &DeviceSource{mic: mic, camera: camera, display: display, log: log}
}

// ProbePermissions performs a throwaway acquire of mic and camera and
// releases both immediately, forcing the permission prompt before any
// persistent track is held. Probe tracks are never published, so they
// carry a placeholder owner.
func (d *DeviceSource) ProbePermissions(ctx context.Context) error {
	mic, camera, err := d.AcquireMicrophoneAndCamera(ctx, "probe")
	if err != nil {
		return err
	}
	mic.Stop()
	camera.Stop()
	return nil
}

// AcquireMicrophoneAndCamera opens persistent mic and camera tracks
// publishing under owner.
func (d *DeviceSource) AcquireMicrophoneAndCamera(ctx context.Context, owner domain.Identity) (ports.LocalTrack, ports.LocalTrack, error) {
	mic, err := d.open(ctx, d.mic, domain.MediaAudio, webrtc.MimeTypeOpus, "mic", owner)
	if err != nil {
		return nil, nil, err
	}
	camera, err := d.open(ctx, d.camera, domain.MediaVideo, webrtc.MimeTypeVP8, "camera", owner)
	if err != nil {
		mic.Stop()
		return nil, nil, err
	}
	return mic, camera, nil
}

// AcquireDisplay opens the display capture publishing under owner (the
// derived screen identity). Returns domain.ErrCaptureCancelled when
// the user dismisses the picker.
func (d *DeviceSource) AcquireDisplay(ctx context.Context, owner domain.Identity) (ports.LocalTrack, error) {
	return d.open(ctx, d.display, domain.MediaVideo, webrtc.MimeTypeVP8, "screen", owner)
}

// open builds a sample track whose stream ID is the publishing
// identity: subscribers on the far side attribute media by stream ID,
// so anything else collides across publishers.
func (d *DeviceSource) open(ctx context.Context, opener CaptureOpener, kind domain.MediaKind, mimeType, label string, owner domain.Identity) (*LocalTrack, error) {
	sample, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: mimeType},
		fmt.Sprintf("%s-%s", label, uuid.NewString()[:8]),
		owner.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s track: %w", label, err)
	}

	track := newLocalTrack(sample, kind)
	stop, err := opener(ctx, track, track.endedBySource)
	if err != nil {
		return nil, err
	}
	track.stop = stop

	d.log.Debug("capture opened", zap.String("label", label), zap.String("track", track.ID()))
	return track, nil
}
