package channel

import (
	"context"
	"errors"
	"testing"
	"time"

	"stagecall/internal/core/domain"
	"stagecall/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

type fakeClient struct {
	joined      bool
	left        bool
	closed      bool
	joinErr     error
	published   []ports.LocalTrack
	unpublished []ports.LocalTrack
	events      chan ports.Event
}

func newFakeClient() *fakeClient {
	return &fakeClient{events: make(chan ports.Event, 8)}
}

func (c *fakeClient) Join(ctx context.Context, creds ports.JoinCredentials) error {
	if c.joinErr != nil {
		return c.joinErr
	}
	c.joined = true
	return nil
}

func (c *fakeClient) Publish(ctx context.Context, tracks ...ports.LocalTrack) error {
	c.published = append(c.published, tracks...)
	return nil
}

func (c *fakeClient) Unpublish(ctx context.Context, tracks ...ports.LocalTrack) error {
	c.unpublished = append(c.unpublished, tracks...)
	return nil
}

func (c *fakeClient) Subscribe(ctx context.Context, id domain.Identity, kind domain.MediaKind) error {
	return nil
}

func (c *fakeClient) Leave(ctx context.Context) error {
	c.left = true
	return nil
}

func (c *fakeClient) Events() <-chan ports.Event { return c.events }

func (c *fakeClient) Close() error {
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	return nil
}

type fakeTransport struct {
	clients []*fakeClient
	next    int
	err     error
}

func (t *fakeTransport) NewClient(ctx context.Context) (ports.TransportClient, error) {
	if t.err != nil {
		return nil, t.err
	}
	c := t.clients[t.next]
	t.next++
	return c, nil
}

func creds(id domain.Identity) ports.JoinCredentials {
	return ports.JoinCredentials{Identity: id, ChannelName: "meeting-1", Token: "tok"}
}

func TestJoinPrimary_RecordsMainIdentity(t *testing.T) {
	primary := newFakeClient()
	m := NewManager(&fakeTransport{clients: []*fakeClient{primary}}, zaptest.NewLogger(t))

	assert.NoError(t, m.JoinPrimary(context.Background(), creds("42")))
	assert.Equal(t, domain.Identity("42"), m.MainIdentity())
	assert.True(t, primary.joined)

	assert.ErrorIs(t, m.JoinPrimary(context.Background(), creds("43")), domain.ErrAlreadyJoined)
}

func TestJoinScreenShare_RequiresPrimary(t *testing.T) {
	m := NewManager(&fakeTransport{clients: []*fakeClient{newFakeClient()}}, zaptest.NewLogger(t))
	err := m.JoinScreenShare(context.Background(), creds("1000042"))
	assert.ErrorIs(t, err, domain.ErrNotJoined)
}

func TestEvents_TaggedWithOrigin(t *testing.T) {
	primary, screen := newFakeClient(), newFakeClient()
	m := NewManager(&fakeTransport{clients: []*fakeClient{primary, screen}}, zaptest.NewLogger(t))

	assert.NoError(t, m.JoinPrimary(context.Background(), creds("42")))
	assert.NoError(t, m.JoinScreenShare(context.Background(), creds("1000042")))

	primary.events <- ports.Event{Type: ports.EventPublished, Identity: "7", Kind: domain.MediaVideo}
	screen.events <- ports.Event{Type: ports.EventLeft, Identity: "1000007"}

	got := map[ports.Origin]ports.TaggedEvent{}
	for i := 0; i < 2; i++ {
		select {
		case ev := <-m.Events():
			got[ev.Origin] = ev
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for tagged events")
		}
	}

	assert.Equal(t, domain.Identity("7"), got[ports.OriginPrimary].Identity)
	assert.Equal(t, domain.Identity("1000007"), got[ports.OriginScreen].Identity)
}

func TestLeaveScreenShare_DoesNotTouchPrimary(t *testing.T) {
	primary, screen := newFakeClient(), newFakeClient()
	m := NewManager(&fakeTransport{clients: []*fakeClient{primary, screen}}, zaptest.NewLogger(t))

	assert.NoError(t, m.JoinPrimary(context.Background(), creds("42")))
	assert.NoError(t, m.PublishPrimary(context.Background(), nil))
	assert.NoError(t, m.JoinScreenShare(context.Background(), creds("1000042")))

	assert.NoError(t, m.LeaveScreenShare(context.Background()))

	assert.True(t, screen.left)
	assert.True(t, screen.closed)
	assert.False(t, primary.left, "leaving the screen client must never leave the primary client")
	assert.Len(t, primary.unpublished, 0, "primary publications must be untouched")

	// Idempotent once the screen client is gone.
	assert.NoError(t, m.LeaveScreenShare(context.Background()))
}

func TestJoinScreenShare_FailureLeavesPrimaryIntact(t *testing.T) {
	primary := newFakeClient()
	screen := newFakeClient()
	screen.joinErr = errors.New("token rejected")
	m := NewManager(&fakeTransport{clients: []*fakeClient{primary, screen}}, zaptest.NewLogger(t))

	assert.NoError(t, m.JoinPrimary(context.Background(), creds("42")))
	assert.Error(t, m.JoinScreenShare(context.Background(), creds("1000042")))

	assert.False(t, primary.left)
	assert.Equal(t, domain.Identity("42"), m.MainIdentity())

	// A later attempt may succeed; the failed one must not leave a
	// stale screen handle behind.
	assert.ErrorIs(t, m.PublishScreen(context.Background(), nil), domain.ErrNotJoined)
}

func TestClose_EndsEventStream(t *testing.T) {
	primary := newFakeClient()
	m := NewManager(&fakeTransport{clients: []*fakeClient{primary}}, zaptest.NewLogger(t))
	assert.NoError(t, m.JoinPrimary(context.Background(), creds("42")))

	m.Close(context.Background())

	_, open := <-m.Events()
	assert.False(t, open)
	assert.True(t, primary.left)
}
