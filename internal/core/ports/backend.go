package ports

import (
	"context"

	"stagecall/internal/core/domain"
)

// JoinRequest identifies the joining user to the backend.
type JoinRequest struct {
	JoinToken string
	Name      string
	Email     string
}

// JoinResponse is the backend's answer to a join: the meeting, the
// caller's roster entry, and the transport credentials for the primary
// (camera/mic) identity.
type JoinResponse struct {
	Meeting     domain.Meeting
	Participant domain.ParticipantInfo
	Credentials JoinCredentials
	MeetingURL  string
}

// ScreenTokenRequest asks for the separate credential bound to the
// derived screen identity. The main join token is not valid for
// publishing under that identity.
type ScreenTokenRequest struct {
	JoinToken      string
	ScreenIdentity domain.Identity
	Email          string
}

// RosterEntry is one row of the display-name resolution table. Any of
// the three keys may be absent depending on backend version.
type RosterEntry struct {
	Identity domain.Identity
	Account  string
	Email    string
	Name     string
}

// BackendAPI is the meeting-info/token-issuing collaborator.
type BackendAPI interface {
	GetMeetingInfo(ctx context.Context, meetingID, token string) (*domain.Meeting, error)
	JoinMeeting(ctx context.Context, meetingID string, req JoinRequest) (*JoinResponse, error)
	GetScreenShareToken(ctx context.Context, meetingID string, req ScreenTokenRequest) (JoinCredentials, error)
	// LeaveMeeting is best-effort; callers must not block teardown on
	// its failure.
	LeaveMeeting(ctx context.Context, meetingID, email string) error
	ListParticipants(ctx context.Context, meetingID string) ([]RosterEntry, error)
}
