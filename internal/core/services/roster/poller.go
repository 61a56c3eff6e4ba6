package roster

import (
	"context"
	"errors"

	"stagecall/internal/core/ports"
	"stagecall/pkg/circuitbreaker"
	callerr "stagecall/pkg/errors"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Applier receives resolved roster entries. In the session this is the
// reconciler's in-place name patching.
type Applier interface {
	ApplyRoster(entries []ports.RosterEntry)
}

// Poller refreshes the display-name resolution table. Called after
// join and after every new publisher; the limiter keeps a publish
// storm from hammering the backend, and the breaker stops polling
// entirely while the backend is down.
type Poller struct {
	backend ports.BackendAPI
	applier Applier
	limiter *rate.Limiter
	breaker *circuitbreaker.Breaker
	log     *zap.Logger
}

// NewPoller builds a poller allowing pollsPerMinute sustained refreshes
// with the given burst.
func NewPoller(backend ports.BackendAPI, applier Applier, pollsPerMinute float64, burst int, log *zap.Logger) *Poller {
	p := &Poller{
		backend: backend,
		applier: applier,
		limiter: rate.NewLimiter(rate.Limit(pollsPerMinute/60.0), burst),
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig()),
		log:     log,
	}
	p.breaker.OnTransition(func(from, to circuitbreaker.State) {
		p.log.Info("roster poll circuit state changed",
			zap.Stringer("from", from), zap.Stringer("to", to))
	})
	return p
}

// Refresh fetches the roster and applies it. Best-effort by contract:
// failures are surfaced as degraded, names simply stay placeholders.
// Throttled and circuit-rejected refreshes are dropped silently; a
// later publisher event will retry.
func (p *Poller) Refresh(ctx context.Context, meetingID string) error {
	if !p.limiter.Allow() {
		p.log.Debug("roster refresh throttled", zap.String("meeting_id", meetingID))
		return nil
	}

	err := p.breaker.Do(func() error {
		entries, err := p.backend.ListParticipants(ctx, meetingID)
		if err != nil {
			return err
		}
		p.applier.ApplyRoster(entries)
		return nil
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		p.log.Debug("roster refresh skipped, circuit open", zap.String("meeting_id", meetingID))
		return nil
	}
	if err != nil {
		p.log.Warn("roster fetch failed, keeping placeholder names", zap.Error(err))
		return callerr.Degraded(callerr.CodeRoster, "participant roster unavailable", err)
	}
	return nil
}
