package rtc

import (
	"io"
	"sync"

	"stagecall/internal/core/domain"
	"stagecall/internal/core/ports"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"go.uber.org/zap"
)

// LocalTrack is a device-backed sample track. Disabling it gates
// sample writes without touching the peer connection, so mute and
// camera-off never renegotiate.
type LocalTrack struct {
	sample *webrtc.TrackLocalStaticSample
	kind   domain.MediaKind

	mu      sync.Mutex
	enabled bool
	stopped bool
	ended   bool // the source ended on its own, not via Stop
	stop    func()
	onEnded []func()
}

func newLocalTrack(sample *webrtc.TrackLocalStaticSample, kind domain.MediaKind) *LocalTrack {
	return &LocalTrack{sample: sample, kind: kind, enabled: true}
}

func (t *LocalTrack) ID() string             { return t.sample.ID() }
func (t *LocalTrack) Kind() domain.MediaKind { return t.kind }

func (t *LocalTrack) SetEnabled(enabled bool) error {
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
	return nil
}

func (t *LocalTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// WriteSample feeds captured media into the track. Samples are dropped
// while the track is disabled.
func (t *LocalTrack) WriteSample(s media.Sample) error {
	t.mu.Lock()
	if !t.enabled || t.stopped {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()
	return t.sample.WriteSample(s)
}

// Stop releases the capture. It does not fire OnEnded hooks; those are
// reserved for the capture ending outside our control.
func (t *LocalTrack) Stop() error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil
	}
	t.stopped = true
	stop := t.stop
	t.mu.Unlock()

	if stop != nil {
		stop()
	}
	return nil
}

// OnEnded registers a hook for the capture ending outside our control.
// If the source already ended, fn runs immediately: the caller must
// not miss an end that raced the registration.
func (t *LocalTrack) OnEnded(fn func()) {
	t.mu.Lock()
	if t.ended {
		t.mu.Unlock()
		fn()
		return
	}
	t.onEnded = append(t.onEnded, fn)
	t.mu.Unlock()
}

// endedBySource is invoked by the capture opener when the source ends
// on its own, e.g. the OS "Stop sharing" control.
func (t *LocalTrack) endedBySource() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.ended = true
	hooks := append([]func(){}, t.onEnded...)
	t.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// RemoteTrack wraps a subscribed remote publisher's track. The read
// loop runs only while attached to a render target; a PLI is sent on
// attach so the publisher emits a keyframe for the fresh viewer.
type RemoteTrack struct {
	track    *webrtc.TrackRemote
	receiver *webrtc.RTPReceiver
	pc       *webrtc.PeerConnection
	identity domain.Identity
	kind     domain.MediaKind
	log      *zap.Logger

	mu     sync.Mutex
	target ports.RenderTarget
	cancel chan struct{}
}

func (t *RemoteTrack) ID() string             { return t.track.ID() }
func (t *RemoteTrack) Kind() domain.MediaKind { return t.kind }

// Attach binds the track to a render target and starts draining media.
func (t *RemoteTrack) Attach(target ports.RenderTarget) error {
	t.mu.Lock()
	if t.cancel != nil {
		close(t.cancel)
	}
	t.target = target
	t.cancel = make(chan struct{})
	cancel := t.cancel
	t.mu.Unlock()

	if err := target.Render(t); err != nil {
		return err
	}

	if t.kind == domain.MediaVideo {
		t.requestKeyframe()
	}
	go t.readLoop(cancel)
	return nil
}

// Detach stops the read loop and clears the target.
func (t *RemoteTrack) Detach() {
	t.mu.Lock()
	if t.cancel != nil {
		close(t.cancel)
		t.cancel = nil
	}
	target := t.target
	t.target = nil
	t.mu.Unlock()

	if target != nil {
		target.Clear()
	}
}

func (t *RemoteTrack) requestKeyframe() {
	err := t.pc.WriteRTCP([]rtcp.Packet{
		&rtcp.PictureLossIndication{MediaSSRC: uint32(t.track.SSRC())},
	})
	if err != nil {
		t.log.Debug("keyframe request failed", zap.Error(err))
	}
}

func (t *RemoteTrack) readLoop(cancel <-chan struct{}) {
	buf := make([]byte, 1500)
	pkt := &rtp.Packet{}
	for {
		select {
		case <-cancel:
			return
		default:
		}

		n, _, err := t.track.Read(buf)
		if err != nil {
			if err != io.EOF {
				t.log.Debug("remote track read ended", zap.Error(err))
			}
			return
		}
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			t.log.Debug("dropping malformed RTP packet", zap.Error(err))
		}
	}
}
