package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/skillstream/learn-engine/internal/models"
	"go.uber.org/zap"
)

const (
	// nearCompleteThreshold is the watched fraction at which a video counts
	// as done, before it technically ends.
	nearCompleteThreshold = 0.9

	seekStepSeconds = 10.0
	volumeStep      = 10
	defaultVolume   = 100
	defaultRate     = 1.0

	noticeCourseCompleted = "course-completed"
)

// ErrSessionNotFound is returned for unknown or closed sessions
var ErrSessionNotFound = errors.New("playback session not found")

// ErrVideoNotFound is returned when a selected video is not in the course
var ErrVideoNotFound = errors.New("video not found in course")

// Transport command actions accepted by a playback session
const (
	ActionPlay             = "play"
	ActionPause            = "pause"
	ActionToggle           = "toggle"
	ActionSeek             = "seek"
	ActionSeekBy           = "seekBy"
	ActionSetVolume        = "setVolume"
	ActionVolumeBy         = "volumeBy"
	ActionToggleMute       = "toggleMute"
	ActionSetRate          = "setRate"
	ActionToggleFullscreen = "toggleFullscreen"
	ActionTogglePiP        = "togglePip"
)

// TransportCommand is a player control request from the surface.
// Value semantics depend on the action: seek takes a 0-100 slider value,
// seekBy a signed second offset, setVolume a 0-100 level, setRate a factor.
type TransportCommand struct {
	Action string  `json:"action"`
	Value  float64 `json:"value,omitempty"`
}

// Media event types forwarded by the player surface
const (
	EventLoadedMetadata = "loadedmetadata"
	EventTimeUpdate     = "timeupdate"
	EventProgress       = "progress"
	EventEnded          = "ended"
)

// MediaEvent is a native media element event translated into the domain
type MediaEvent struct {
	Type            string  `json:"type"`
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
	CurrentTime     float64 `json:"currentTime,omitempty"`
	BufferedSeconds float64 `json:"bufferedSeconds,omitempty"`
}

// ProgressTracker is the synchronizer interface used by playback sessions
type ProgressTracker interface {
	// ResolveResume determines where the learner continues a course
	ResolveResume(ctx context.Context, courseID string) (*ResumePoint, error)
	// MarkComplete idempotently marks a video completed; the flag is true
	// exactly once per course, on the completion transition
	MarkComplete(ctx context.Context, course *models.Course, videoID string) (bool, error)
	// Heartbeat reports the playback position, fire-and-forget
	Heartbeat(ctx context.Context, courseID, videoID string, positionSeconds float64)
	// Percentage returns the course progress from the local completed-set
	Percentage(course *models.Course) int
}

// SourceResolver turns video source references into playable URLs
type SourceResolver interface {
	ResolveSource(ctx context.Context, ref string) (string, error)
}

// PlaybackService owns playback sessions: one per learner tab and course,
// each wrapping a single media element on the surface. The surface posts
// transport commands and native media events; the session keeps the
// transport state machine, fires completion at the 90% mark or on a natural
// end, reports heartbeats while playing, and auto-advances after an end.
type PlaybackService struct {
	tracker    ProgressTracker
	resolver   SourceResolver
	curriculum *CurriculumService
	logger     *zap.Logger

	heartbeatInterval time.Duration
	autoAdvanceDelay  time.Duration

	mu       sync.Mutex
	sessions map[string]*playbackSession
}

// NewPlaybackService creates a new playback service
func NewPlaybackService(
	tracker ProgressTracker,
	resolver SourceResolver,
	curriculum *CurriculumService,
	logger *zap.Logger,
	heartbeatInterval time.Duration,
	autoAdvanceDelay time.Duration,
) *PlaybackService {
	return &PlaybackService{
		tracker:           tracker,
		resolver:          resolver,
		curriculum:        curriculum,
		logger:            logger,
		heartbeatInterval: heartbeatInterval,
		autoAdvanceDelay:  autoAdvanceDelay,
		sessions:          make(map[string]*playbackSession),
	}
}

// playbackSession is the transport state machine for one media element
type playbackSession struct {
	id     string
	course *models.Course

	mu        sync.Mutex
	moduleID  string
	video     *models.Video
	sourceURL string
	resumeAt  float64

	ready       bool
	playing     bool
	duration    float64
	currentTime float64
	buffered    float64

	volume int
	muted  bool
	rate   float64

	fullscreen bool
	pip        bool

	nearCompleteFired  bool
	initialSeekApplied bool

	courseCompleted bool
	notices         []string

	autoAdvance   *time.Timer
	heartbeatStop chan struct{}
	closed        bool
}

// Open starts a playback session for a course at its resume point
func (p *PlaybackService) Open(ctx context.Context, courseID string) (models.PlayerState, error) {
	resume, err := p.tracker.ResolveResume(ctx, courseID)
	if err != nil {
		return models.PlayerState{}, err
	}

	session := &playbackSession{
		id:     uuid.New().String(),
		course: resume.Course,
		volume: defaultVolume,
		rate:   defaultRate,
	}

	if err := p.load(ctx, session, resume.ModuleID, resume.Video, resume.Position); err != nil {
		return models.PlayerState{}, err
	}

	p.mu.Lock()
	p.sessions[session.id] = session
	p.mu.Unlock()

	p.logger.Info("playback session opened",
		zap.String("session_id", session.id),
		zap.String("course_id", resume.Course.ID),
		zap.String("video_id", resume.Video.ID),
		zap.Float64("resume_at", resume.Position),
	)

	session.mu.Lock()
	defer session.mu.Unlock()
	return p.snapshotLocked(session), nil
}

// get returns a live session by ID
func (p *PlaybackService) get(sessionID string) (*playbackSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	session, ok := p.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// State returns a snapshot of the session, draining pending notices
func (p *PlaybackService) State(sessionID string) (models.PlayerState, error) {
	session, err := p.get(sessionID)
	if err != nil {
		return models.PlayerState{}, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	return p.snapshotLocked(session), nil
}

// Close tears down a session, stopping its heartbeat loop and any pending
// auto-advance. In-flight remote calls are left to settle on their own.
func (p *PlaybackService) Close(sessionID string) error {
	p.mu.Lock()
	session, ok := p.sessions[sessionID]
	delete(p.sessions, sessionID)
	p.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	session.mu.Lock()
	session.closed = true
	session.cancelAutoAdvanceLocked()
	session.stopHeartbeatLocked()
	session.mu.Unlock()

	p.logger.Info("playback session closed", zap.String("session_id", sessionID))
	return nil
}

// Shutdown closes all sessions
func (p *PlaybackService) Shutdown() {
	p.mu.Lock()
	ids := make([]string, 0, len(p.sessions))
	for id := range p.sessions {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		_ = p.Close(id)
	}
}

// Transport applies a transport command to the session
func (p *PlaybackService) Transport(sessionID string, cmd TransportCommand) (models.PlayerState, error) {
	session, err := p.get(sessionID)
	if err != nil {
		return models.PlayerState{}, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	switch cmd.Action {
	case ActionPlay:
		p.playLocked(session)
	case ActionPause:
		p.pauseLocked(session)
	case ActionToggle:
		if session.playing {
			p.pauseLocked(session)
		} else {
			p.playLocked(session)
		}
	case ActionSeek:
		// Scrub bar: slider 0-100 maps onto the video duration
		slider := clamp(cmd.Value, 0, 100)
		if session.duration > 0 {
			session.currentTime = slider / 100 * session.duration
		}
	case ActionSeekBy:
		session.seekByLocked(cmd.Value)
	case ActionSetVolume:
		session.volume = int(clamp(cmd.Value, 0, 100))
	case ActionVolumeBy:
		session.volume = int(clamp(float64(session.volume)+cmd.Value, 0, 100))
	case ActionToggleMute:
		session.muted = !session.muted
	case ActionSetRate:
		if cmd.Value > 0 {
			session.rate = cmd.Value
		}
	case ActionToggleFullscreen:
		// The surface owns the native fullscreen call; an unsupported
		// platform simply never reflects the flag, which is fine.
		session.fullscreen = !session.fullscreen
	case ActionTogglePiP:
		session.pip = !session.pip
	default:
		return models.PlayerState{}, fmt.Errorf("unknown transport action %q", cmd.Action)
	}

	return p.snapshotLocked(session), nil
}

// HandleKey applies a keyboard shortcut. Unknown keys are ignored.
func (p *PlaybackService) HandleKey(sessionID, key string) (models.PlayerState, error) {
	session, err := p.get(sessionID)
	if err != nil {
		return models.PlayerState{}, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	switch key {
	case " ", "Space":
		if session.playing {
			p.pauseLocked(session)
		} else {
			p.playLocked(session)
		}
	case "ArrowLeft":
		session.seekByLocked(-seekStepSeconds)
	case "ArrowRight":
		session.seekByLocked(seekStepSeconds)
	case "ArrowUp":
		session.volume = int(clamp(float64(session.volume+volumeStep), 0, 100))
	case "ArrowDown":
		session.volume = int(clamp(float64(session.volume-volumeStep), 0, 100))
	case "m", "M":
		session.muted = !session.muted
	case "f", "F":
		session.fullscreen = !session.fullscreen
	}

	return p.snapshotLocked(session), nil
}

// HandleEvent ingests a native media event from the surface
func (p *PlaybackService) HandleEvent(ctx context.Context, sessionID string, event MediaEvent) (models.PlayerState, error) {
	session, err := p.get(sessionID)
	if err != nil {
		return models.PlayerState{}, err
	}

	session.mu.Lock()
	markComplete := false
	var endedVideoID string

	switch event.Type {
	case EventLoadedMetadata:
		session.ready = true
		session.duration = event.DurationSeconds
		// Apply the resume seek exactly once per video load, guarded so
		// re-renders of the surface cannot seek again.
		if !session.initialSeekApplied {
			if session.resumeAt > 0 && session.resumeAt < session.duration {
				session.currentTime = session.resumeAt
			}
			session.initialSeekApplied = true
		}
	case EventTimeUpdate:
		session.currentTime = event.CurrentTime
		if session.duration > 0 && !session.nearCompleteFired {
			if session.currentTime/session.duration >= nearCompleteThreshold {
				session.nearCompleteFired = true
				markComplete = true
			}
		}
	case EventProgress:
		session.buffered = event.BufferedSeconds
	case EventEnded:
		// Completion on a natural end fires regardless of the 90% latch;
		// the synchronizer suppresses the duplicate.
		markComplete = true
		endedVideoID = session.video.ID
		if session.duration > 0 {
			session.currentTime = session.duration
		}
		session.playing = false
		session.stopHeartbeatLocked()
	default:
		session.mu.Unlock()
		return models.PlayerState{}, fmt.Errorf("unknown media event %q", event.Type)
	}

	course := session.course
	videoID := session.video.ID
	session.mu.Unlock()

	if markComplete {
		p.completeVideo(ctx, session, course, videoID)
	}

	if endedVideoID != "" {
		p.scheduleAutoAdvance(session, endedVideoID)
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	return p.snapshotLocked(session), nil
}

// SelectVideo switches the session to another video of the course
func (p *PlaybackService) SelectVideo(ctx context.Context, sessionID, videoID string) (models.PlayerState, error) {
	session, err := p.get(sessionID)
	if err != nil {
		return models.PlayerState{}, err
	}

	moduleID, video, ok := session.course.FindVideo(videoID)
	if !ok {
		return models.PlayerState{}, ErrVideoNotFound
	}

	if err := p.load(ctx, session, moduleID, video, 0); err != nil {
		return models.PlayerState{}, err
	}

	// Switching videos overwrites the last-watched pointer immediately.
	p.tracker.Heartbeat(ctx, session.course.ID, video.ID, 0)

	session.mu.Lock()
	defer session.mu.Unlock()
	return p.snapshotLocked(session), nil
}

// load points the session at a video, resolving its source and resetting
// all per-load playback state
func (p *PlaybackService) load(ctx context.Context, session *playbackSession, moduleID string, video *models.Video, resumeAt float64) error {
	url, err := p.resolver.ResolveSource(ctx, video.Source)
	if err != nil {
		return fmt.Errorf("failed to resolve source for video %s: %w", video.ID, err)
	}

	session.mu.Lock()
	session.cancelAutoAdvanceLocked()
	session.stopHeartbeatLocked()
	session.moduleID = moduleID
	session.video = video
	session.sourceURL = url
	session.resumeAt = resumeAt
	session.ready = false
	session.playing = false
	session.duration = 0
	session.currentTime = 0
	session.buffered = 0
	session.nearCompleteFired = false
	session.initialSeekApplied = false
	session.mu.Unlock()

	return nil
}

// completeVideo submits a completion through the synchronizer and surfaces
// the course-completed celebration on the transition. The submission is
// keyed by video id, so it applies even if the session has moved on.
func (p *PlaybackService) completeVideo(ctx context.Context, session *playbackSession, course *models.Course, videoID string) {
	completedNow, err := p.tracker.MarkComplete(ctx, course, videoID)
	if err != nil {
		p.logger.Warn("completion submission failed",
			zap.String("course_id", course.ID),
			zap.String("video_id", videoID),
			zap.Error(err),
		)
	}

	if completedNow {
		session.mu.Lock()
		session.courseCompleted = true
		session.notices = append(session.notices, noticeCourseCompleted)
		session.mu.Unlock()
	}
}

// scheduleAutoAdvance arms the advance timer after a natural end when the
// course has a next video
func (p *PlaybackService) scheduleAutoAdvance(session *playbackSession, endedVideoID string) {
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.closed || session.video.ID != endedVideoID {
		return
	}

	nextModuleID, nextVideo, ok := p.curriculum.Next(session.course, session.moduleID, endedVideoID)
	if !ok {
		return
	}

	session.cancelAutoAdvanceLocked()
	session.autoAdvance = time.AfterFunc(p.autoAdvanceDelay, func() {
		p.advance(session, endedVideoID, nextModuleID, nextVideo)
	})
}

// advance is the auto-advance timer callback
func (p *PlaybackService) advance(session *playbackSession, fromVideoID, nextModuleID string, nextVideo *models.Video) {
	session.mu.Lock()
	stale := session.closed || session.video.ID != fromVideoID
	session.mu.Unlock()
	if stale {
		// The learner switched videos (or left) during the delay.
		return
	}

	ctx := context.Background()
	if err := p.load(ctx, session, nextModuleID, nextVideo, 0); err != nil {
		p.logger.Error("auto-advance failed",
			zap.String("session_id", session.id),
			zap.String("video_id", nextVideo.ID),
			zap.Error(err),
		)
		return
	}

	p.tracker.Heartbeat(ctx, session.course.ID, nextVideo.ID, 0)

	p.logger.Info("auto-advanced to next video",
		zap.String("session_id", session.id),
		zap.String("video_id", nextVideo.ID),
	)
}

// playLocked starts playback and the heartbeat loop
func (p *PlaybackService) playLocked(session *playbackSession) {
	if session.playing {
		return
	}
	session.playing = true
	p.startHeartbeatLocked(session)
}

// pauseLocked halts playback and stops the heartbeat loop immediately
func (p *PlaybackService) pauseLocked(session *playbackSession) {
	if !session.playing {
		return
	}
	session.playing = false
	session.stopHeartbeatLocked()
}

// startHeartbeatLocked spawns the position-reporting loop for the session.
// The loop runs until paused, switched, or closed.
func (p *PlaybackService) startHeartbeatLocked(session *playbackSession) {
	if session.heartbeatStop != nil {
		return
	}
	stop := make(chan struct{})
	session.heartbeatStop = stop

	ticker := time.NewTicker(p.heartbeatInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				session.mu.Lock()
				courseID := session.course.ID
				videoID := session.video.ID
				position := session.currentTime
				playing := session.playing
				session.mu.Unlock()
				if !playing {
					return
				}
				p.tracker.Heartbeat(context.Background(), courseID, videoID, position)
			case <-stop:
				return
			}
		}
	}()
}

func (s *playbackSession) stopHeartbeatLocked() {
	if s.heartbeatStop != nil {
		close(s.heartbeatStop)
		s.heartbeatStop = nil
	}
}

func (s *playbackSession) cancelAutoAdvanceLocked() {
	if s.autoAdvance != nil {
		s.autoAdvance.Stop()
		s.autoAdvance = nil
	}
}

// seekByLocked moves the position by a signed offset, clamped to the video
func (s *playbackSession) seekByLocked(offset float64) {
	if s.duration <= 0 {
		return
	}
	s.currentTime = clamp(s.currentTime+offset, 0, s.duration)
}

// snapshotLocked builds the player state for the surface. Pending notices
// are drained: each notice is delivered exactly once.
func (p *PlaybackService) snapshotLocked(s *playbackSession) models.PlayerState {
	effectiveVolume := s.volume
	if s.muted {
		effectiveVolume = 0
	}

	_, _, hasNext := p.curriculum.Next(s.course, s.moduleID, s.video.ID)
	_, _, hasPrevious := p.curriculum.Previous(s.course, s.moduleID, s.video.ID)

	notices := s.notices
	s.notices = nil

	return models.PlayerState{
		SessionID:          s.id,
		CourseID:           s.course.ID,
		ModuleID:           s.moduleID,
		VideoID:            s.video.ID,
		VideoTitle:         s.video.Title,
		SourceURL:          s.sourceURL,
		ResumeAt:           s.resumeAt,
		Ready:              s.ready,
		Playing:            s.playing,
		DurationSeconds:    s.duration,
		CurrentTime:        s.currentTime,
		BufferedSeconds:    s.buffered,
		Volume:             s.volume,
		Muted:              s.muted,
		EffectiveVolume:    effectiveVolume,
		PlaybackRate:       s.rate,
		Fullscreen:         s.fullscreen,
		PictureInPicture:   s.pip,
		HasNext:            hasNext,
		HasPrevious:        hasPrevious,
		ProgressPercentage: p.tracker.Percentage(s.course),
		CourseCompleted:    s.courseCompleted,
		Notices:            notices,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
