package reconcile

import (
	"sync"

	"stagecall/internal/core/domain"
	"stagecall/internal/core/ports"

	"go.uber.org/zap"
)

// Reconciler folds raw publish/unpublish/left events from both channel
// clients into per-participant view models. It never returns errors
// from a fold: an event that cannot be attributed cleanly degrades to
// the standalone-tile fallback instead.
//
// One instance per session. Safe for concurrent use; transport
// callbacks and UI reads arrive on different goroutines.
type Reconciler struct {
	mu sync.RWMutex

	localIdentity domain.Identity

	participants map[domain.Identity]*domain.Participant
	order        []domain.Identity

	// standalone holds screen publishers whose owner could not be
	// derived. Rendered as their own tiles as a last resort.
	standalone map[domain.Identity]bool

	// targets buffers render targets keyed by identity+kind until the
	// matching track arrives, and vice versa.
	targets map[targetKey]ports.RenderTarget

	onChange func()
	log      *zap.Logger
}

type targetKey struct {
	identity domain.Identity
	kind     trackSlot
}

type trackSlot string

const (
	slotCamera trackSlot = "camera"
	slotAudio  trackSlot = "audio"
	slotScreen trackSlot = "screen"
)

// New builds an empty reconciler.
func New(log *zap.Logger) *Reconciler {
	return &Reconciler{
		participants: make(map[domain.Identity]*domain.Participant),
		standalone:   make(map[domain.Identity]bool),
		targets:      make(map[targetKey]ports.RenderTarget),
		log:          log,
	}
}

// SetLocalIdentity records the session's own main identity. Events for
// it, or for its derived screen identity, never create tiles.
func (r *Reconciler) SetLocalIdentity(id domain.Identity) {
	r.mu.Lock()
	r.localIdentity = id
	r.mu.Unlock()
}

// OnChange registers a hook invoked after every fold that mutated
// state. Used by the session to push view-model updates to the UI.
func (r *Reconciler) OnChange(fn func()) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Apply folds one tagged transport event into the participant state.
func (r *Reconciler) Apply(ev ports.TaggedEvent) {
	r.mu.Lock()
	changed := r.apply(ev)
	fn := r.onChange
	r.mu.Unlock()

	if changed && fn != nil {
		fn()
	}
}

func (r *Reconciler) apply(ev ports.TaggedEvent) bool {
	if r.isLocal(ev.Identity) {
		return false
	}

	switch ev.Type {
	case ports.EventPublished:
		return r.applyPublished(ev)
	case ports.EventUnpublished:
		return r.applyUnpublished(ev)
	case ports.EventLeft:
		return r.applyLeft(ev)
	default:
		r.log.Debug("ignoring unknown event type", zap.String("type", string(ev.Type)))
		return false
	}
}

// isLocal covers the session's own identity and its derived screen
// identity; neither may surface as a remote tile.
func (r *Reconciler) isLocal(id domain.Identity) bool {
	if r.localIdentity == "" {
		return false
	}
	if id == r.localIdentity {
		return true
	}
	if owner, ok := domain.OwnerOfScreenIdentity(id); ok && owner == r.localIdentity {
		return true
	}
	return false
}

// isScreenEvent trusts the originating-client tag first and falls back
// to the identity-pattern heuristic only for primary-client events,
// where a remote user's screen publisher still arrives untagged.
func isScreenEvent(ev ports.TaggedEvent) bool {
	if ev.Origin == ports.OriginScreen {
		return true
	}
	return ev.Identity.IsScreen()
}

func (r *Reconciler) applyPublished(ev ports.TaggedEvent) bool {
	// Audio is always attributed to the camera identity; screen
	// identities never carry audio.
	if ev.Kind == domain.MediaAudio {
		p := r.upsert(ev.Identity)
		p.HasMic = true
		p.AudioTrack = ev.Track
		r.attachIfReady(ev.Identity, slotAudio, ev.Track)
		return true
	}

	if isScreenEvent(ev) {
		owner, ok := domain.OwnerOfScreenIdentity(ev.Identity)
		if !ok {
			// Tagged as screen but underivable. Surface it rather than
			// dropping the media.
			r.log.Warn("screen publisher with no derivable owner, rendering standalone",
				zap.String("identity", ev.Identity.String()))
			r.standalone[ev.Identity] = true
			p := r.upsert(ev.Identity)
			p.HasScreenShare = true
			p.ScreenTrack = ev.Track
			r.attachIfReady(ev.Identity, slotScreen, ev.Track)
			return true
		}
		p := r.upsert(owner)
		p.HasScreenShare = true
		p.ScreenTrack = ev.Track
		r.attachIfReady(owner, slotScreen, ev.Track)
		return true
	}

	p := r.upsert(ev.Identity)
	p.HasCamera = true
	p.CameraTrack = ev.Track
	r.attachIfReady(ev.Identity, slotCamera, ev.Track)
	return true
}

func (r *Reconciler) applyUnpublished(ev ports.TaggedEvent) bool {
	if ev.Kind == domain.MediaAudio {
		if p, ok := r.participants[ev.Identity]; ok {
			p.HasMic = false
			p.AudioTrack = nil
			return true
		}
		return false
	}

	if isScreenEvent(ev) {
		key := ev.Identity
		if owner, ok := domain.OwnerOfScreenIdentity(ev.Identity); ok {
			key = owner
		}
		if p, ok := r.participants[key]; ok {
			p.HasScreenShare = false
			r.detach(key, slotScreen, p.ScreenTrack)
			p.ScreenTrack = nil
			return true
		}
		return false
	}

	if p, ok := r.participants[ev.Identity]; ok {
		p.HasCamera = false
		r.detach(ev.Identity, slotCamera, p.CameraTrack)
		p.CameraTrack = nil
		return true
	}
	return false
}

func (r *Reconciler) applyLeft(ev ports.TaggedEvent) bool {
	if isScreenEvent(ev) {
		// A departing screen identity only clears its owner's share;
		// the owner's tile stays.
		key := ev.Identity
		if owner, ok := domain.OwnerOfScreenIdentity(ev.Identity); ok {
			key = owner
		} else if r.standalone[ev.Identity] {
			return r.remove(ev.Identity)
		}
		if p, ok := r.participants[key]; ok {
			p.HasScreenShare = false
			r.detach(key, slotScreen, p.ScreenTrack)
			p.ScreenTrack = nil
			return true
		}
		return false
	}

	return r.remove(ev.Identity)
}

func (r *Reconciler) upsert(id domain.Identity) *domain.Participant {
	if p, ok := r.participants[id]; ok {
		return p
	}
	p := &domain.Participant{Identity: id}
	r.participants[id] = p
	r.order = append(r.order, id)
	return p
}

func (r *Reconciler) remove(id domain.Identity) bool {
	p, ok := r.participants[id]
	if !ok {
		return false
	}
	r.detach(id, slotCamera, p.CameraTrack)
	r.detach(id, slotScreen, p.ScreenTrack)
	delete(r.participants, id)
	delete(r.standalone, id)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// ApplyRoster patches display names in place. A tile rendered with a
// placeholder updates without re-creation; no other state is touched.
func (r *Reconciler) ApplyRoster(entries []ports.RosterEntry) {
	r.mu.Lock()
	changed := false
	for _, p := range r.participants {
		for _, e := range entries {
			if e.Name == "" {
				continue
			}
			if matchesRoster(p.Identity, e) && p.DisplayName != e.Name {
				p.DisplayName = e.Name
				changed = true
				break
			}
		}
	}
	fn := r.onChange
	r.mu.Unlock()

	if changed && fn != nil {
		fn()
	}
}

// matchesRoster tries identity, then account, then email, matching the
// resolution table's key set.
func matchesRoster(id domain.Identity, e ports.RosterEntry) bool {
	if e.Identity != "" && e.Identity == id {
		return true
	}
	if e.Account != "" && domain.Identity(e.Account) == id {
		return true
	}
	if e.Email != "" && domain.Identity(e.Email) == id {
		return true
	}
	return false
}

// ParticipantCount is the number of remote tiles: screen identities and
// the local identity are never counted.
func (r *Reconciler) ParticipantCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}

// Participants returns a stable-ordered snapshot of the view models.
func (r *Reconciler) Participants() []domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Participant, 0, len(r.order))
	for _, id := range r.order {
		if p, ok := r.participants[id]; ok {
			out = append(out, *p)
		}
	}
	return out
}

// Participant returns a copy of one participant's view model.
func (r *Reconciler) Participant(id domain.Identity) (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[id]
	if !ok {
		return domain.Participant{}, false
	}
	return *p, true
}

// AnyScreenShare reports whether any remote participant is sharing.
func (r *Reconciler) AnyScreenShare() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.participants {
		if p.HasScreenShare {
			return true
		}
	}
	return false
}
