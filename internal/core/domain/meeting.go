package domain

import "time"

// MeetingStatus is the backend-reported lifecycle state of a meeting.
type MeetingStatus string

const (
	MeetingScheduled MeetingStatus = "scheduled"
	MeetingActive    MeetingStatus = "active"
	MeetingEnded     MeetingStatus = "ended"
)

// Meeting is the backend's description of a meeting room.
type Meeting struct {
	ID                  string
	Title               string
	Status              MeetingStatus
	ScheduledAt         *time.Time // UTC; nil for instant meetings
	CurrentParticipants int
	MaxParticipants     int // 0 means unlimited
}

// ParticipantInfo describes the joining user as the backend sees them.
type ParticipantInfo struct {
	Name  string
	Email string
	Role  string
}
