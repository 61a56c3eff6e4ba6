package rtc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"stagecall/internal/core/domain"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	msgJoin        = "join"
	msgLeave       = "leave"
	msgPublish     = "publish"
	msgUnpublish   = "unpublish"
	msgSubscribe   = "subscribe"
	msgOffer       = "offer"
	msgAnswer      = "answer"
	msgCandidate   = "candidate"
	msgJoined      = "joined"
	msgPublished   = "user-published"
	msgUnpublished = "user-unpublished"
	msgUserLeft    = "user-left"
)

type signalMessage struct {
	Type     string          `json:"type"`
	Identity domain.Identity `json:"identity,omitempty"`
	Channel  string          `json:"channel,omitempty"`
	Kind     string          `json:"kind,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

type sdpPayload struct {
	SDP string `json:"sdp"`
}

type candidatePayload struct {
	Candidate string `json:"candidate"`
}

// signaler is the websocket leg of one transport client. One signaler
// per joined identity; the screen client gets its own.
type signaler struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	handler func(signalMessage)
	log     *zap.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func dialSignaler(ctx context.Context, url string, identity domain.Identity, channel, token string, handler func(signalMessage), log *zap.Logger) (*signaler, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, fmt.Sprintf("%s?identity=%s&channel=%s", url, identity, channel), header)
	if err != nil {
		return nil, fmt.Errorf("dial signaling: %w", err)
	}

	s := &signaler{
		conn:    conn,
		handler: handler,
		log:     log,
		done:    make(chan struct{}),
	}
	go s.readPump()
	return s, nil
}

func (s *signaler) readPump() {
	defer s.close()
	for {
		var msg signalMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("signaling read failed", zap.Error(err))
			}
			return
		}
		s.handler(msg)
	}
}

func (s *signaler) send(msg signalMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteJSON(msg)
}

func (s *signaler) sendWithPayload(msgType string, identity domain.Identity, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return s.send(signalMessage{Type: msgType, Identity: identity, Payload: raw})
}

func (s *signaler) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}
