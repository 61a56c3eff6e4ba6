package ports

import (
	"context"
	"time"

	"stagecall/internal/core/domain"
)

// EventType enumerates the raw notifications a transport client emits
// about remote publishers in its channel.
type EventType string

const (
	EventPublished   EventType = "published"
	EventUnpublished EventType = "unpublished"
	EventLeft        EventType = "left"
)

// Origin names which of the session's two clients produced an event.
type Origin string

const (
	OriginPrimary Origin = "primary"
	OriginScreen  Origin = "screen"
)

// Event is a raw transport notification about a remote publisher.
type Event struct {
	Type     EventType
	Identity domain.Identity
	Kind     domain.MediaKind // meaningful for published/unpublished
	Track    RemoteTrack      // set on published events
}

// TaggedEvent is an Event annotated with the client that produced it,
// so consumers never have to fall back to identity-pattern sniffing
// when the origin is known.
type TaggedEvent struct {
	Origin Origin
	Event
}

// JoinCredentials carries everything a transport client needs to join
// a channel under one identity.
type JoinCredentials struct {
	AppCredential string
	ChannelName   string
	Token         string
	Identity      domain.Identity
	ExpiresAt     time.Time // zero when the token carries no expiry
}

// Transport creates channel clients. It is the external RTC primitive;
// this module never implements media transport itself.
type Transport interface {
	NewClient(ctx context.Context) (TransportClient, error)
}

// TransportClient is one joined identity's handle on the channel.
// Events delivery stops when the client leaves or is closed.
type TransportClient interface {
	Join(ctx context.Context, creds JoinCredentials) error
	Publish(ctx context.Context, tracks ...LocalTrack) error
	Unpublish(ctx context.Context, tracks ...LocalTrack) error
	Subscribe(ctx context.Context, identity domain.Identity, kind domain.MediaKind) error
	Leave(ctx context.Context) error
	Events() <-chan Event
	// Close removes all listeners and releases the client. Safe after
	// Leave and safe to call twice.
	Close() error
}
