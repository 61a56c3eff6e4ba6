package roster

import (
	"context"
	"errors"
	"testing"

	"stagecall/internal/core/domain"
	"stagecall/internal/core/ports"
	callerr "stagecall/pkg/errors"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

type fakeBackend struct {
	ports.BackendAPI
	entries []ports.RosterEntry
	err     error
	calls   int
}

func (f *fakeBackend) ListParticipants(ctx context.Context, meetingID string) ([]ports.RosterEntry, error) {
	f.calls++
	return f.entries, f.err
}

type fakeApplier struct {
	applied [][]ports.RosterEntry
}

func (f *fakeApplier) ApplyRoster(entries []ports.RosterEntry) {
	f.applied = append(f.applied, entries)
}

func TestRefresh_AppliesRoster(t *testing.T) {
	backend := &fakeBackend{entries: []ports.RosterEntry{{Identity: domain.Identity("7"), Name: "Grace"}}}
	applier := &fakeApplier{}
	p := NewPoller(backend, applier, 60, 2, zaptest.NewLogger(t))

	assert.NoError(t, p.Refresh(context.Background(), "meeting-1"))
	assert.Len(t, applier.applied, 1)
	assert.Equal(t, "Grace", applier.applied[0][0].Name)
}

func TestRefresh_FailureIsDegraded(t *testing.T) {
	backend := &fakeBackend{err: errors.New("503")}
	applier := &fakeApplier{}
	p := NewPoller(backend, applier, 60, 2, zaptest.NewLogger(t))

	err := p.Refresh(context.Background(), "meeting-1")
	assert.Equal(t, callerr.SeverityDegraded, callerr.SeverityOf(err))
	assert.Empty(t, applier.applied)
}

func TestRefresh_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	backend := &fakeBackend{err: errors.New("503")}
	applier := &fakeApplier{}
	p := NewPoller(backend, applier, 6000, 100, zaptest.NewLogger(t))

	// Three consecutive failures trip the breaker.
	for i := 0; i < 3; i++ {
		err := p.Refresh(context.Background(), "meeting-1")
		assert.Equal(t, callerr.SeverityDegraded, callerr.SeverityOf(err))
	}
	assert.Equal(t, 3, backend.calls)

	// Open circuit: refreshes are dropped without touching the backend.
	assert.NoError(t, p.Refresh(context.Background(), "meeting-1"))
	assert.NoError(t, p.Refresh(context.Background(), "meeting-1"))
	assert.Equal(t, 3, backend.calls)
}

func TestRefresh_Throttled(t *testing.T) {
	backend := &fakeBackend{}
	p := NewPoller(backend, &fakeApplier{}, 1, 2, zaptest.NewLogger(t))

	// Burst of 2 allowed, then the limiter drops refreshes silently.
	assert.NoError(t, p.Refresh(context.Background(), "meeting-1"))
	assert.NoError(t, p.Refresh(context.Background(), "meeting-1"))
	assert.NoError(t, p.Refresh(context.Background(), "meeting-1"))
	assert.Equal(t, 2, backend.calls)
}
