package rtc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"stagecall/internal/core/domain"
	"stagecall/internal/core/ports"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// Transport creates websocket+WebRTC channel clients. It is this
// module's binding to the external RTC primitive; session logic never
// sees anything below the ports interfaces.
type Transport struct {
	signalURL  string
	iceServers []webrtc.ICEServer
	log        *zap.Logger
}

// NewTransport builds a transport factory.
func NewTransport(signalURL string, iceServers []webrtc.ICEServer, log *zap.Logger) *Transport {
	return &Transport{signalURL: signalURL, iceServers: iceServers, log: log}
}

// NewClient returns an unjoined channel client.
func (t *Transport) NewClient(ctx context.Context) (ports.TransportClient, error) {
	return &Client{
		signalURL:  t.signalURL,
		iceServers: t.iceServers,
		log:        t.log,
		events:     make(chan ports.Event, 32),
		senders:    make(map[string]*webrtc.RTPSender),
	}, nil
}

// Client is one joined identity's handle on the channel: a signaling
// websocket plus a peer connection. Publish state is fully independent
// between clients; the screen client leaving never disturbs the
// primary client's tracks.
type Client struct {
	signalURL  string
	iceServers []webrtc.ICEServer
	log        *zap.Logger

	mu       sync.Mutex
	sig      *signaler
	pc       *webrtc.PeerConnection
	identity domain.Identity
	senders  map[string]*webrtc.RTPSender
	closed   bool

	events chan ports.Event
}

func (c *Client) Events() <-chan ports.Event { return c.events }

// Join dials signaling, brings up the peer connection and announces
// the identity to the channel.
func (c *Client) Join(ctx context.Context, creds ports.JoinCredentials) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sig != nil {
		return domain.ErrAlreadyJoined
	}

	pc, err := c.createPeerConnection()
	if err != nil {
		return fmt.Errorf("create peer connection: %w", err)
	}

	sig, err := dialSignaler(ctx, c.signalURL, creds.Identity, creds.ChannelName, creds.Token, c.handleSignal, c.log)
	if err != nil {
		pc.Close()
		return err
	}

	pc.OnTrack(c.handleRemoteTrack)
	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		if err := sig.sendWithPayload(msgCandidate, creds.Identity, candidatePayload{Candidate: candidate.ToJSON().Candidate}); err != nil {
			c.log.Warn("sending ICE candidate failed", zap.Error(err))
		}
	})
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		c.log.Debug("ICE connection state changed",
			zap.String("identity", creds.Identity.String()),
			zap.String("state", state.String()))
	})

	if err := sig.send(signalMessage{Type: msgJoin, Identity: creds.Identity, Channel: creds.ChannelName}); err != nil {
		sig.close()
		pc.Close()
		return fmt.Errorf("announce join: %w", err)
	}

	c.sig = sig
	c.pc = pc
	c.identity = creds.Identity
	return nil
}

func (c *Client) createPeerConnection() (*webrtc.PeerConnection, error) {
	config := webrtc.Configuration{
		ICEServers:   c.iceServers,
		SDPSemantics: webrtc.SDPSemanticsUnifiedPlanWithFallback,
	}
	api := webrtc.NewAPI(webrtc.WithSettingEngine(webrtc.SettingEngine{}))
	return api.NewPeerConnection(config)
}

// Publish adds local tracks to the peer connection and renegotiates.
func (c *Client) Publish(ctx context.Context, tracks ...ports.LocalTrack) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pc == nil {
		return domain.ErrNotJoined
	}

	for _, track := range tracks {
		local, ok := track.(*LocalTrack)
		if !ok {
			return fmt.Errorf("publish: unsupported track type %T", track)
		}
		sender, err := c.pc.AddTrack(local.sample)
		if err != nil {
			return fmt.Errorf("add track %s: %w", track.ID(), err)
		}
		c.senders[track.ID()] = sender

		if err := c.sig.send(signalMessage{Type: msgPublish, Identity: c.identity, Kind: string(track.Kind())}); err != nil {
			return fmt.Errorf("announce publish: %w", err)
		}
	}

	return c.renegotiate()
}

// Unpublish withdraws local tracks.
func (c *Client) Unpublish(ctx context.Context, tracks ...ports.LocalTrack) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pc == nil {
		return domain.ErrNotJoined
	}

	for _, track := range tracks {
		sender, ok := c.senders[track.ID()]
		if !ok {
			continue
		}
		if err := c.pc.RemoveTrack(sender); err != nil {
			c.log.Warn("removing track failed", zap.String("track", track.ID()), zap.Error(err))
		}
		delete(c.senders, track.ID())

		if err := c.sig.send(signalMessage{Type: msgUnpublish, Identity: c.identity, Kind: string(track.Kind())}); err != nil {
			c.log.Warn("announcing unpublish failed", zap.Error(err))
		}
	}

	return c.renegotiate()
}

// Subscribe requests a remote publisher's media.
func (c *Client) Subscribe(ctx context.Context, identity domain.Identity, kind domain.MediaKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sig == nil {
		return domain.ErrNotJoined
	}
	return c.sig.send(signalMessage{Type: msgSubscribe, Identity: identity, Kind: string(kind)})
}

// Leave announces departure and tears the peer connection down.
func (c *Client) Leave(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sig == nil {
		return nil
	}
	if err := c.sig.send(signalMessage{Type: msgLeave, Identity: c.identity}); err != nil {
		c.log.Warn("announcing leave failed", zap.Error(err))
	}
	return nil
}

// Close releases the signaler and peer connection and ends the event
// stream. Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.sig != nil {
		c.sig.close()
		c.sig = nil
	}
	var err error
	if c.pc != nil {
		err = c.pc.Close()
		c.pc = nil
	}
	close(c.events)
	return err
}

// renegotiate sends a fresh offer after publish state changed. The
// answer arrives asynchronously via handleSignal.
func (c *Client) renegotiate() error {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	return c.sig.sendWithPayload(msgOffer, c.identity, sdpPayload{SDP: offer.SDP})
}

// handleSignal dispatches server messages. Published events are not
// emitted here: they fire from OnTrack once the media actually
// arrives, so every published event carries its track.
func (c *Client) handleSignal(msg signalMessage) {
	switch msg.Type {
	case msgAnswer:
		var payload sdpPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.log.Warn("malformed answer payload", zap.Error(err))
			return
		}
		c.mu.Lock()
		pc := c.pc
		c.mu.Unlock()
		if pc == nil {
			return
		}
		desc := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: payload.SDP}
		if err := pc.SetRemoteDescription(desc); err != nil {
			c.log.Warn("applying answer failed", zap.Error(err))
		}

	case msgCandidate:
		var payload candidatePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.log.Warn("malformed candidate payload", zap.Error(err))
			return
		}
		c.mu.Lock()
		pc := c.pc
		c.mu.Unlock()
		if pc == nil {
			return
		}
		if err := pc.AddICECandidate(webrtc.ICECandidateInit{Candidate: payload.Candidate}); err != nil {
			c.log.Warn("adding ICE candidate failed", zap.Error(err))
		}

	case msgPublished:
		// Auto-subscribe; the published event fires from OnTrack with
		// the media attached.
		if err := c.Subscribe(context.Background(), msg.Identity, domain.MediaKind(msg.Kind)); err != nil {
			c.log.Warn("auto-subscribe failed",
				zap.String("identity", msg.Identity.String()), zap.Error(err))
		}

	case msgUnpublished:
		c.emit(ports.Event{Type: ports.EventUnpublished, Identity: msg.Identity, Kind: domain.MediaKind(msg.Kind)})

	case msgUserLeft:
		c.emit(ports.Event{Type: ports.EventLeft, Identity: msg.Identity})

	case msgJoined:
		c.log.Debug("channel join acknowledged", zap.String("identity", msg.Identity.String()))
	}
}

// handleRemoteTrack maps incoming media onto a published event. The
// publisher's identity travels as the track's stream ID.
func (c *Client) handleRemoteTrack(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
	kind := domain.MediaVideo
	if track.Kind() == webrtc.RTPCodecTypeAudio {
		kind = domain.MediaAudio
	}
	identity := domain.Identity(track.StreamID())

	c.mu.Lock()
	pc := c.pc
	c.mu.Unlock()

	remote := &RemoteTrack{
		track:    track,
		receiver: receiver,
		pc:       pc,
		identity: identity,
		kind:     kind,
		log:      c.log,
	}

	c.log.Info("remote track arrived",
		zap.String("identity", identity.String()),
		zap.String("kind", string(kind)),
		zap.String("codec", track.Codec().MimeType))

	c.emit(ports.Event{Type: ports.EventPublished, Identity: identity, Kind: kind, Track: remote})
}

func (c *Client) emit(ev ports.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.events <- ev:
	default:
		c.log.Warn("event buffer full, dropping event",
			zap.String("type", string(ev.Type)),
			zap.String("identity", ev.Identity.String()))
	}
}
