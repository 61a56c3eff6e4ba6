package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrAuth             = errors.New("join token invalid or expired")
	ErrMeetingFull      = errors.New("meeting at capacity")
	ErrMeetingEnded     = errors.New("meeting already ended")
	ErrPermissionDenied = errors.New("camera or microphone permission denied")
	ErrCaptureCancelled = errors.New("display capture cancelled by user")
	ErrIdentityRange    = errors.New("camera identity collides with screen identity range")
	ErrNotJoined        = errors.New("not joined to a channel")
	ErrAlreadyJoined    = errors.New("already joined")
)

// NotStartedError blocks a join attempt on a meeting whose scheduled
// start lies in the future. It carries the UTC instant so callers can
// drive a live countdown.
type NotStartedError struct {
	ScheduledAt time.Time
}

func (e *NotStartedError) Error() string {
	return fmt.Sprintf("meeting has not started yet (scheduled for %s)", e.ScheduledAt.UTC().Format(time.RFC3339))
}
