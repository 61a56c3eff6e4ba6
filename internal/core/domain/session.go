package domain

// LocalSessionState mirrors the local user's side of the call. The main
// identity is assigned once at join time and never changes for the
// lifetime of the session; it seeds the derived screen identity when
// the user starts sharing.
type LocalSessionState struct {
	MainIdentity    Identity
	IsJoined        bool
	IsMuted         bool
	IsCameraOn      bool
	IsScreenSharing bool

	CameraTrack TrackHandle
	MicTrack    TrackHandle
	ScreenTrack TrackHandle
}

// CaptureState tracks the camera/microphone capability lifecycle.
type CaptureState string

const (
	CaptureUnacquired CaptureState = "unacquired"
	CaptureAcquiring  CaptureState = "acquiring"
	CapturePublished  CaptureState = "published"
	CaptureSuspended  CaptureState = "suspended"
	CaptureReleased   CaptureState = "released"
)

// ScreenState tracks the display-capture capability lifecycle.
type ScreenState string

const (
	ScreenIdle       ScreenState = "idle"
	ScreenRequesting ScreenState = "requesting"
	ScreenSharing    ScreenState = "sharing"
)
