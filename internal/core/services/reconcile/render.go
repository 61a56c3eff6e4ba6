package reconcile

import (
	"stagecall/internal/core/domain"
	"stagecall/internal/core/ports"

	"go.uber.org/zap"
)

// TargetKind selects which of a participant's tracks a render target
// mounts.
type TargetKind string

const (
	TargetCamera TargetKind = "camera"
	TargetAudio  TargetKind = "audio"
	TargetScreen TargetKind = "screen"
)

func (k TargetKind) slot() trackSlot {
	switch k {
	case TargetAudio:
		return slotAudio
	case TargetScreen:
		return slotScreen
	default:
		return slotCamera
	}
}

// AttachTarget registers a render target for a participant's track.
// Order-independent: if the track is already here it attaches now,
// otherwise the target is buffered until the track arrives.
func (r *Reconciler) AttachTarget(id domain.Identity, kind TargetKind, target ports.RenderTarget) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.targets[targetKey{identity: id, kind: kind.slot()}] = target

	p, ok := r.participants[id]
	if !ok {
		return
	}
	var track domain.TrackHandle
	switch kind {
	case TargetCamera:
		track = p.CameraTrack
	case TargetAudio:
		track = p.AudioTrack
	case TargetScreen:
		track = p.ScreenTrack
	}
	r.attachNow(target, track)
}

// DetachTarget unregisters a target, e.g. when a tile unmounts.
func (r *Reconciler) DetachTarget(id domain.Identity, kind TargetKind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := targetKey{identity: id, kind: kind.slot()}
	if target, ok := r.targets[key]; ok {
		target.Clear()
		delete(r.targets, key)
	}
}

// ClearTargets drops every registered target. Part of call teardown.
func (r *Reconciler) ClearTargets() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, target := range r.targets {
		target.Clear()
		delete(r.targets, key)
	}
}

// attachIfReady connects a freshly published track to its buffered
// target, if one registered before the track arrived. Audio needs no
// target: it auto-plays on subscribe, handled by the transport layer.
func (r *Reconciler) attachIfReady(id domain.Identity, slot trackSlot, track domain.TrackHandle) {
	target, ok := r.targets[targetKey{identity: id, kind: slot}]
	if !ok {
		return
	}
	r.attachNow(target, track)
}

func (r *Reconciler) attachNow(target ports.RenderTarget, track domain.TrackHandle) {
	if target == nil || track == nil {
		return
	}
	if err := target.Render(track); err != nil {
		r.log.Warn("render target attach failed",
			zap.String("target", target.ID()),
			zap.String("track", track.ID()),
			zap.Error(err))
	}
}

func (r *Reconciler) detach(id domain.Identity, slot trackSlot, track domain.TrackHandle) {
	if target, ok := r.targets[targetKey{identity: id, kind: slot}]; ok {
		target.Clear()
	}
	if rt, ok := track.(ports.RemoteTrack); ok && rt != nil {
		rt.Detach()
	}
}
