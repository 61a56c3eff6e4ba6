package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"stagecall/internal/core/domain"
	"stagecall/internal/core/ports"
	"stagecall/pkg/cache"
	callerr "stagecall/pkg/errors"
	"stagecall/pkg/retry"
	"stagecall/pkg/timeutil"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Client talks to the meeting-info/token-issuing backend. It is the
// only HTTP surface of the module; every response is classified into
// the fatal/degraded/transient taxonomy at this boundary.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryCfg    retry.Config
	meetingInfo *cache.TTL[*domain.Meeting]
	log         *zap.Logger
}

// NewClient builds a backend client with the given request timeout.
// Idempotent reads are retried on transport failures and meeting info
// is cached briefly so the pre-start wait screen can poll every tick.
func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retryCfg:    retry.DefaultConfig(),
		meetingInfo: cache.New[*domain.Meeting](5 * time.Second),
		log:         log,
	}
}

type meetingPayload struct {
	ID                  string `json:"id"`
	Title               string `json:"title"`
	Status              string `json:"status"`
	ScheduledAt         string `json:"scheduled_at,omitempty"`
	CurrentParticipants int    `json:"current_participants"`
	MaxParticipants     int    `json:"max_participants,omitempty"`
}

type credentialsPayload struct {
	Identity      string `json:"identity"`
	ChannelName   string `json:"channel_name"`
	Token         string `json:"token"`
	AppCredential string `json:"app_credential"`
}

type joinResponsePayload struct {
	Meeting     meetingPayload `json:"meeting"`
	Participant struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"participant"`
	TransportCredentials credentialsPayload `json:"transport_credentials"`
	MeetingURL           string             `json:"meeting_url"`
}

type errorPayload struct {
	Error       string `json:"error"`
	ScheduledAt string `json:"scheduled_at,omitempty"`
}

// GetMeetingInfo fetches the meeting description. Fresh responses are
// cached for a few seconds; a stale status costs at most one wait-screen
// tick.
func (c *Client) GetMeetingInfo(ctx context.Context, meetingID, token string) (*domain.Meeting, error) {
	if meeting, ok := c.meetingInfo.Get(meetingID); ok {
		return meeting, nil
	}

	meeting, err := retry.DoWithResult(ctx, c.retryCfg, func() (*domain.Meeting, error) {
		var payload meetingPayload
		if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/meetings/%s", meetingID), token, nil, &payload); err != nil {
			return nil, err
		}
		meeting, err := payload.toDomain(meetingID)
		if err != nil {
			return nil, callerr.Fatal(callerr.CodeInternal, "malformed meeting info", err)
		}
		return meeting, nil
	})
	if err != nil {
		return nil, err
	}

	c.meetingInfo.Set(meetingID, meeting)
	return meeting, nil
}

// JoinMeeting requests membership and the primary transport credential.
// A meeting whose scheduled start is still in the future is rejected
// with a NotStartedError carrying the UTC instant for the countdown.
func (c *Client) JoinMeeting(ctx context.Context, meetingID string, req ports.JoinRequest) (*ports.JoinResponse, error) {
	body := map[string]string{
		"join_token": req.JoinToken,
		"name":       req.Name,
		"email":      req.Email,
	}

	var payload joinResponsePayload
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/meetings/%s/join", meetingID), req.JoinToken, body, &payload); err != nil {
		return nil, err
	}

	meeting, err := payload.Meeting.toDomain(meetingID)
	if err != nil {
		return nil, callerr.Fatal(callerr.CodeInternal, "malformed join response", err)
	}

	out := &ports.JoinResponse{
		Meeting: *meeting,
		Participant: domain.ParticipantInfo{
			Name:  payload.Participant.Name,
			Email: payload.Participant.Email,
			Role:  payload.Participant.Role,
		},
		Credentials: ports.JoinCredentials{
			AppCredential: payload.TransportCredentials.AppCredential,
			ChannelName:   payload.TransportCredentials.ChannelName,
			Token:         payload.TransportCredentials.Token,
			Identity:      domain.Identity(payload.TransportCredentials.Identity),
			ExpiresAt:     tokenExpiry(payload.TransportCredentials.Token),
		},
		MeetingURL: payload.MeetingURL,
	}
	return out, nil
}

// GetScreenShareToken requests the separate credential bound to the
// derived screen identity. Failures here degrade: the caller aborts
// the share and keeps the camera session intact.
func (c *Client) GetScreenShareToken(ctx context.Context, meetingID string, req ports.ScreenTokenRequest) (ports.JoinCredentials, error) {
	body := map[string]string{
		"join_token":            req.JoinToken,
		"screen_share_identity": req.ScreenIdentity.String(),
		"email":                 req.Email,
	}

	var payload struct {
		TransportCredentials credentialsPayload `json:"transport_credentials"`
	}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/meetings/%s/screen-share-token", meetingID), req.JoinToken, body, &payload); err != nil {
		return ports.JoinCredentials{}, callerr.Degraded(callerr.CodeScreenShare, "screen share token request failed", err)
	}

	return ports.JoinCredentials{
		Token:     payload.TransportCredentials.Token,
		Identity:  req.ScreenIdentity,
		ExpiresAt: tokenExpiry(payload.TransportCredentials.Token),
	}, nil
}

// LeaveMeeting notifies the backend of departure. Fire-and-forget by
// contract: the caller logs a failure and moves on.
func (c *Client) LeaveMeeting(ctx context.Context, meetingID, email string) error {
	body := map[string]string{"email": email}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/meetings/%s/leave", meetingID), "", body, nil); err != nil {
		return callerr.Transient(callerr.CodeTeardown, "leave notification failed", err)
	}
	return nil
}

// ListParticipants fetches the roster for display-name resolution.
func (c *Client) ListParticipants(ctx context.Context, meetingID string) ([]ports.RosterEntry, error) {
	var payload []struct {
		Identity string `json:"identity,omitempty"`
		Account  string `json:"account,omitempty"`
		Email    string `json:"email,omitempty"`
		Name     string `json:"name"`
	}
	err := retry.Do(ctx, c.retryCfg, func() error {
		return c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/meetings/%s/participants", meetingID), "", nil, &payload)
	})
	if err != nil {
		return nil, err
	}

	entries := make([]ports.RosterEntry, 0, len(payload))
	for _, p := range payload {
		entries = append(entries, ports.RosterEntry{
			Identity: domain.Identity(p.Identity),
			Account:  p.Account,
			Email:    p.Email,
			Name:     p.Name,
		})
	}
	return entries, nil
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	// Transport-level failures carry no backend verdict; transient so
	// the retry wrapping on idempotent reads can repeat them.
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return callerr.Transient(callerr.CodeTransport, "backend unreachable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return callerr.Transient(callerr.CodeTransport, "reading backend response", err)
	}

	if resp.StatusCode >= 400 {
		return c.classify(resp.StatusCode, data)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode backend response: %w", err)
		}
	}
	return nil
}

// classify maps backend failures onto the error taxonomy.
func (c *Client) classify(status int, body []byte) error {
	var payload errorPayload
	_ = json.Unmarshal(body, &payload)

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return callerr.Fatal(callerr.CodeAuth, "join token rejected", domain.ErrAuth)
	case http.StatusConflict, http.StatusTooManyRequests:
		return callerr.Fatal(callerr.CodeCapacity, "meeting is full", domain.ErrMeetingFull)
	case http.StatusGone:
		return callerr.Fatal(callerr.CodeJoinFailed, "meeting already ended", domain.ErrMeetingEnded)
	case http.StatusTooEarly, http.StatusPreconditionFailed:
		scheduled, err := timeutil.ParseWire(payload.ScheduledAt)
		if err != nil {
			c.log.Warn("not-started response without parseable scheduled_at", zap.String("raw", payload.ScheduledAt))
			scheduled = timeutil.Now()
		}
		return callerr.Fatal(callerr.CodeNotStarted, "meeting has not started", &domain.NotStartedError{ScheduledAt: scheduled})
	default:
		if status >= http.StatusInternalServerError {
			return callerr.Transient(callerr.CodeInternal,
				fmt.Sprintf("backend returned HTTP %d: %s", status, payload.Error), nil)
		}
		return callerr.Fatal(callerr.CodeJoinFailed,
			fmt.Sprintf("backend returned HTTP %d: %s", status, payload.Error), nil)
	}
}

func (p meetingPayload) toDomain(fallbackID string) (*domain.Meeting, error) {
	m := &domain.Meeting{
		ID:                  p.ID,
		Title:               p.Title,
		Status:              domain.MeetingStatus(p.Status),
		CurrentParticipants: p.CurrentParticipants,
		MaxParticipants:     p.MaxParticipants,
	}
	if m.ID == "" {
		m.ID = fallbackID
	}
	if p.ScheduledAt != "" {
		t, err := timeutil.ParseWire(p.ScheduledAt)
		if err != nil {
			return nil, err
		}
		m.ScheduledAt = &t
	}
	return m, nil
}

// tokenExpiry reads the exp claim from a transport token without
// verifying it; verification belongs to the transport service. Returns
// zero when the token is opaque or carries no expiry.
func tokenExpiry(token string) time.Time {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
