package channel

import (
	"context"
	"fmt"
	"sync"

	"stagecall/internal/core/domain"
	"stagecall/internal/core/ports"
	"stagecall/pkg/tracing"

	"go.uber.org/zap"
)

// Manager owns the session's two transport client handles: the primary
// camera/mic identity and, while sharing, the derived screen identity.
// Both join the same logical channel; each has an independent event
// stream. The manager tags every event with its originating client
// before forwarding, so downstream folding never has to guess.
type Manager struct {
	transport ports.Transport
	log       *zap.Logger

	mu           sync.Mutex
	primary      ports.TransportClient
	screen       ports.TransportClient
	mainIdentity domain.Identity
	channelName  string

	events chan ports.TaggedEvent
	wg     sync.WaitGroup
}

// NewManager builds a manager over the given transport.
func NewManager(transport ports.Transport, log *zap.Logger) *Manager {
	return &Manager{
		transport: transport,
		log:       log,
		events:    make(chan ports.TaggedEvent, 64),
	}
}

// Events is the merged, origin-tagged event stream from both clients.
func (m *Manager) Events() <-chan ports.TaggedEvent { return m.events }

// MainIdentity returns the identity assigned at primary join, empty
// before joining. Immutable for the session once set.
func (m *Manager) MainIdentity() domain.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mainIdentity
}

// JoinPrimary creates the camera/mic client and joins the channel.
// Failure here is fatal to the session.
func (m *Manager) JoinPrimary(ctx context.Context, creds ports.JoinCredentials) error {
	ctx, span := tracing.StartSpan(ctx, "channel.join_primary")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.primary != nil {
		return domain.ErrAlreadyJoined
	}

	client, err := m.transport.NewClient(ctx)
	if err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("create primary client: %w", err)
	}
	if err := client.Join(ctx, creds); err != nil {
		tracing.RecordError(ctx, err)
		client.Close()
		return fmt.Errorf("join primary: %w", err)
	}

	m.primary = client
	m.mainIdentity = creds.Identity
	m.channelName = creds.ChannelName
	m.pump(client, ports.OriginPrimary)

	m.log.Info("primary client joined",
		zap.String("identity", creds.Identity.String()),
		zap.String("channel", creds.ChannelName))
	return nil
}

// JoinScreenShare creates the second client under the derived identity.
// Only invoked when the user starts sharing. Failure degrades the
// session; it never disturbs the primary client.
func (m *Manager) JoinScreenShare(ctx context.Context, creds ports.JoinCredentials) error {
	ctx, span := tracing.StartSpan(ctx, "channel.join_screen")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.primary == nil {
		return domain.ErrNotJoined
	}
	if m.screen != nil {
		return domain.ErrAlreadyJoined
	}

	client, err := m.transport.NewClient(ctx)
	if err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("create screen client: %w", err)
	}
	if err := client.Join(ctx, creds); err != nil {
		tracing.RecordError(ctx, err)
		client.Close()
		return fmt.Errorf("join screen: %w", err)
	}

	m.screen = client
	m.pump(client, ports.OriginScreen)

	m.log.Info("screen client joined", zap.String("identity", creds.Identity.String()))
	return nil
}

// PublishPrimary publishes tracks on the camera/mic client.
func (m *Manager) PublishPrimary(ctx context.Context, tracks ...ports.LocalTrack) error {
	m.mu.Lock()
	client := m.primary
	m.mu.Unlock()
	if client == nil {
		return domain.ErrNotJoined
	}
	return client.Publish(ctx, tracks...)
}

// PublishScreen publishes the capture track on the screen client.
func (m *Manager) PublishScreen(ctx context.Context, tracks ...ports.LocalTrack) error {
	m.mu.Lock()
	client := m.screen
	m.mu.Unlock()
	if client == nil {
		return domain.ErrNotJoined
	}
	return client.Publish(ctx, tracks...)
}

// UnpublishScreen withdraws the capture track from the screen client.
func (m *Manager) UnpublishScreen(ctx context.Context, tracks ...ports.LocalTrack) error {
	m.mu.Lock()
	client := m.screen
	m.mu.Unlock()
	if client == nil {
		return nil
	}
	return client.Unpublish(ctx, tracks...)
}

// Subscribe asks the primary client for a remote publisher's media.
func (m *Manager) Subscribe(ctx context.Context, id domain.Identity, kind domain.MediaKind) error {
	m.mu.Lock()
	client := m.primary
	m.mu.Unlock()
	if client == nil {
		return domain.ErrNotJoined
	}
	return client.Subscribe(ctx, id, kind)
}

// LeaveScreenShare leaves and closes the screen client only. The
// primary client's publish state is untouched: the camera track stays
// published throughout.
func (m *Manager) LeaveScreenShare(ctx context.Context) error {
	m.mu.Lock()
	client := m.screen
	m.screen = nil
	m.mu.Unlock()

	if client == nil {
		return nil
	}
	if err := client.Leave(ctx); err != nil {
		m.log.Warn("screen client leave failed", zap.Error(err))
	}
	return client.Close()
}

// LeavePrimary leaves and closes the camera/mic client.
func (m *Manager) LeavePrimary(ctx context.Context) error {
	m.mu.Lock()
	client := m.primary
	m.primary = nil
	m.mu.Unlock()

	if client == nil {
		return nil
	}
	if err := client.Leave(ctx); err != nil {
		m.log.Warn("primary client leave failed", zap.Error(err))
	}
	return client.Close()
}

// Close tears down whatever is still joined and ends the event stream.
func (m *Manager) Close(ctx context.Context) {
	m.LeaveScreenShare(ctx)
	m.LeavePrimary(ctx)
	m.wg.Wait()
	close(m.events)
}

// pump forwards one client's events, tagged with its origin, until the
// client's stream closes.
func (m *Manager) pump(client ports.TransportClient, origin ports.Origin) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for ev := range client.Events() {
			m.events <- ports.TaggedEvent{Origin: origin, Event: ev}
		}
	}()
}
