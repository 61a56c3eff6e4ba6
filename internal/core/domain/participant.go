package domain

import "fmt"

// MediaKind distinguishes the media carried by a published track.
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// TrackHandle is an opaque reference to a transport media track.
type TrackHandle interface {
	ID() string
	Kind() MediaKind
}

// Participant is the per-remote-user view model the stage renders.
// One participant may hold two transport identities; the screen one is
// folded onto this struct and never surfaces as its own tile.
type Participant struct {
	Identity       Identity
	DisplayName    string
	HasCamera      bool
	HasMic         bool
	HasScreenShare bool

	CameraTrack TrackHandle
	AudioTrack  TrackHandle
	ScreenTrack TrackHandle
}

// Name returns the resolved display name or the placeholder when the
// roster has not (yet) produced one.
func (p *Participant) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return fmt.Sprintf("Participant %s", p.Identity)
}
