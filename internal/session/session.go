package session

import (
	"context"
	"errors"

	"stagecall/internal/core/domain"
	"stagecall/internal/core/ports"
	"stagecall/internal/core/services/channel"
	"stagecall/internal/core/services/layout"
	"stagecall/internal/core/services/media"
	"stagecall/internal/core/services/reconcile"
	"stagecall/internal/core/services/roster"
	callerr "stagecall/pkg/errors"
	"stagecall/pkg/timeutil"
	"stagecall/pkg/tracing"
	"stagecall/pkg/validation"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options identify the joining user and meeting.
type Options struct {
	MeetingID string
	JoinToken string
	Name      string
	Email     string
}

// Metrics is the slice of the monitoring collector the session drives.
// Nil-safe: a nil Metrics disables recording.
type Metrics interface {
	RecordJoin()
	SetParticipantCount(n int)
	SetScreenSharesActive(n int)
	RecordEvent(origin, eventType string)
	RecordRosterRefresh()
	RecordTeardownStepFailure()
}

// Deps are the session's collaborators.
type Deps struct {
	Backend              ports.BackendAPI
	Transport            ports.Transport
	Devices              ports.DeviceSource
	Metrics              Metrics
	Layout               layout.Config
	RosterPollsPerMinute float64
	RosterBurst          int
	Log                  *zap.Logger
}

// Session is the explicitly owned context of one call: created at
// join, destroyed at leave. All mutable call state (client handles,
// device handles, participant view models) hangs off it; nothing is
// ambient.
type Session struct {
	id   string
	opts Options
	log  *zap.Logger

	backend    ports.BackendAPI
	channel    *channel.Manager
	reconciler *reconcile.Reconciler
	media      *media.Controller
	layout     *layout.Engine
	roster     *roster.Poller
	metrics    Metrics

	meeting     domain.Meeting
	participant domain.ParticipantInfo

	updates chan struct{}
	done    chan struct{}
}

// Dial runs the full join flow: meeting gate, permission probe,
// primary channel join, capture and publish, initial roster fetch.
// A scheduled meeting still in the future fails with a fatal error
// wrapping domain.NotStartedError; use Countdown to drive the wait UI.
func Dial(ctx context.Context, opts Options, deps Deps) (*Session, error) {
	if err := validateOptions(opts); err != nil {
		return nil, callerr.Fatal(callerr.CodeJoinFailed, "invalid join options", err)
	}

	ctx, span := tracing.TraceSessionOperation(ctx, "dial", opts.MeetingID)
	defer span.End()

	metrics := deps.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}

	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	if deps.Layout == (layout.Config{}) {
		deps.Layout = layout.DefaultConfig()
	}

	s := &Session{
		id:      uuid.NewString(),
		opts:    opts,
		backend: deps.Backend,
		metrics: metrics,
		layout:  layout.NewEngine(deps.Layout),
		updates: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	s.log = log.With(zap.String("session_id", s.id), zap.String("meeting_id", opts.MeetingID))

	s.channel = channel.NewManager(deps.Transport, s.log)
	s.reconciler = reconcile.New(s.log)
	s.reconciler.OnChange(s.notify)
	s.media = media.NewController(deps.Devices, s.channel, s.screenCredentials, s.log)

	pollsPerMinute := deps.RosterPollsPerMinute
	if pollsPerMinute <= 0 {
		pollsPerMinute = 12
	}
	burst := deps.RosterBurst
	if burst <= 0 {
		burst = 3
	}
	s.roster = roster.NewPoller(deps.Backend, s.reconciler, pollsPerMinute, burst, s.log)

	if err := s.join(ctx); err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	go s.eventLoop()
	return s, nil
}

func (s *Session) join(ctx context.Context) error {
	info, err := s.backend.GetMeetingInfo(ctx, s.opts.MeetingID, s.opts.JoinToken)
	if err != nil {
		return err
	}
	if info.Status == domain.MeetingEnded {
		return callerr.Fatal(callerr.CodeJoinFailed, "meeting already ended", domain.ErrMeetingEnded)
	}
	if info.ScheduledAt != nil && info.ScheduledAt.After(timeutil.Now()) {
		return callerr.Fatal(callerr.CodeNotStarted, "meeting has not started",
			&domain.NotStartedError{ScheduledAt: *info.ScheduledAt})
	}

	// Permission probe before anything persistent: a denial must block
	// the join entirely.
	if err := s.media.ProbePermissions(ctx); err != nil {
		return err
	}

	join, err := s.backend.JoinMeeting(ctx, s.opts.MeetingID, ports.JoinRequest{
		JoinToken: s.opts.JoinToken,
		Name:      s.opts.Name,
		Email:     s.opts.Email,
	})
	if err != nil {
		return err
	}
	s.meeting = join.Meeting
	s.participant = join.Participant

	if err := s.channel.JoinPrimary(ctx, join.Credentials); err != nil {
		return callerr.Fatal(callerr.CodeJoinFailed, "joining the meeting channel failed", err)
	}
	s.reconciler.SetLocalIdentity(join.Credentials.Identity)
	s.metrics.RecordJoin()

	if err := s.media.AcquireAndPublish(ctx); err != nil {
		s.channel.LeavePrimary(ctx)
		return err
	}

	s.refreshRoster(ctx)

	s.log.Info("session joined",
		zap.String("identity", string(join.Credentials.Identity)),
		zap.String("channel", join.Credentials.ChannelName))
	return nil
}

// eventLoop folds transport events until the channel manager closes.
func (s *Session) eventLoop() {
	defer close(s.done)
	for ev := range s.channel.Events() {
		s.metrics.RecordEvent(string(ev.Origin), string(ev.Type))
		s.reconciler.Apply(ev)

		// A fresh publisher may be missing from the name table; the
		// poller's limiter absorbs publish storms.
		if ev.Type == ports.EventPublished {
			s.refreshRoster(context.Background())
		}

		s.metrics.SetParticipantCount(s.reconciler.ParticipantCount())
		s.metrics.SetScreenSharesActive(s.screenShareCount())
	}
}

func (s *Session) refreshRoster(ctx context.Context) {
	s.metrics.RecordRosterRefresh()
	if err := s.roster.Refresh(ctx, s.opts.MeetingID); err != nil {
		// Degraded by design: names stay placeholders.
		s.log.Debug("roster refresh failed", zap.Error(err))
	}
}

func (s *Session) screenShareCount() int {
	n := 0
	if s.media.State().IsScreenSharing {
		n++
	}
	for _, p := range s.reconciler.Participants() {
		if p.HasScreenShare {
			n++
		}
	}
	return n
}

// screenCredentials fetches the derived identity's credential for the
// media controller.
func (s *Session) screenCredentials(ctx context.Context, screenIdentity domain.Identity) (ports.JoinCredentials, error) {
	creds, err := s.backend.GetScreenShareToken(ctx, s.opts.MeetingID, ports.ScreenTokenRequest{
		JoinToken:      s.opts.JoinToken,
		ScreenIdentity: screenIdentity,
		Email:          s.opts.Email,
	})
	if err != nil {
		return ports.JoinCredentials{}, err
	}
	if creds.ChannelName == "" {
		creds.ChannelName = s.meeting.ID
	}
	return creds, nil
}

// notify coalesces state-change signals for the UI.
func (s *Session) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// Updates signals that the participant view models changed. Coalesced;
// consumers re-read Participants/State on every tick.
func (s *Session) Updates() <-chan struct{} { return s.updates }

// ID is the session's unique identifier, for logs and traces.
func (s *Session) ID() string { return s.id }

// Meeting returns the joined meeting's description.
func (s *Session) Meeting() domain.Meeting { return s.meeting }

// State returns the local media state snapshot.
func (s *Session) State() domain.LocalSessionState { return s.media.State() }

// Participants returns the remote participant view models.
func (s *Session) Participants() []domain.Participant { return s.reconciler.Participants() }

// ParticipantCount excludes screen identities and the local user.
func (s *Session) ParticipantCount() int { return s.reconciler.ParticipantCount() }

// ToggleMute flips the microphone.
func (s *Session) ToggleMute() (bool, error) {
	muted, err := s.media.ToggleMute()
	if err == nil {
		s.notify()
	}
	return muted, err
}

// ToggleCamera flips the camera.
func (s *Session) ToggleCamera() (bool, error) {
	on, err := s.media.ToggleCamera()
	if err == nil {
		s.notify()
	}
	return on, err
}

// StartScreenShare runs the dual-identity share flow. Degraded errors
// leave the camera session intact; picker cancellation returns nil.
func (s *Session) StartScreenShare(ctx context.Context) error {
	err := s.media.StartScreenShare(ctx)
	if err == nil {
		s.notify()
	}
	return err
}

// StopScreenShare is idempotent.
func (s *Session) StopScreenShare(ctx context.Context) error {
	err := s.media.StopScreenShare(ctx)
	if err == nil {
		s.notify()
	}
	return err
}

// AttachTarget registers a render target for a remote participant's
// track; order-independent with respect to track arrival.
func (s *Session) AttachTarget(id domain.Identity, kind reconcile.TargetKind, target ports.RenderTarget) {
	s.reconciler.AttachTarget(id, kind, target)
}

// DetachTarget unregisters a target when its tile unmounts.
func (s *Session) DetachTarget(id domain.Identity, kind reconcile.TargetKind) {
	s.reconciler.DetachTarget(id, kind)
}

// Layout computes the stage geometry for the current participant set.
// The local tile is always part of the grid.
func (s *Session) Layout(vp layout.Viewport) layout.Layout {
	totalTiles := s.reconciler.ParticipantCount() + 1
	shareActive := s.media.State().IsScreenSharing || s.reconciler.AnyScreenShare()
	return s.layout.Compute(vp, totalTiles, shareActive)
}

// Leave destroys the session: ordered best-effort teardown, then the
// channel manager close ends the event loop. Safe to call once the
// session was successfully dialed.
func (s *Session) Leave(ctx context.Context) error {
	ctx, span := tracing.TraceSessionOperation(ctx, "leave", s.opts.MeetingID)
	defer span.End()

	err := s.media.Teardown(ctx, media.TeardownHooks{
		NotifyLeave: func(ctx context.Context) error {
			return s.backend.LeaveMeeting(ctx, s.opts.MeetingID, s.opts.Email)
		},
		ClearTargets: s.reconciler.ClearTargets,
	})
	if err != nil {
		s.metrics.RecordTeardownStepFailure()
	}

	s.channel.Close(ctx)
	<-s.done

	s.metrics.SetParticipantCount(0)
	s.metrics.SetScreenSharesActive(0)
	s.log.Info("session left")
	return err
}

// Countdown extracts the wait-screen countdown from a failed Dial.
// Returns false when the error is not a not-yet-started rejection.
func Countdown(err error) (*timeutil.Countdown, bool) {
	var notStarted *domain.NotStartedError
	if !errors.As(err, &notStarted) {
		return nil, false
	}
	return timeutil.NewCountdown(notStarted.ScheduledAt), true
}

func validateOptions(opts Options) error {
	if err := validation.ValidateMeetingID(opts.MeetingID); err != nil {
		return err
	}
	if err := validation.ValidateJoinToken(opts.JoinToken); err != nil {
		return err
	}
	if err := validation.ValidateDisplayName(opts.Name); err != nil {
		return err
	}
	return validation.ValidateEmail(opts.Email)
}

type nopMetrics struct{}

func (nopMetrics) RecordJoin()                {}
func (nopMetrics) SetParticipantCount(int)    {}
func (nopMetrics) SetScreenSharesActive(int)  {}
func (nopMetrics) RecordEvent(string, string) {}
func (nopMetrics) RecordRosterRefresh()       {}
func (nopMetrics) RecordTeardownStepFailure() {}
