package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/skillstream/learn-engine/internal/models"
	"go.uber.org/zap"
)

// ErrNoVideos is returned when a course has no videos in any module. The
// learn page must not render a player for such a course; callers redirect
// with an informational notice instead.
var ErrNoVideos = errors.New("course has no videos yet")

// CourseAPI defines the course read operations used by the synchronizer
type CourseAPI interface {
	// GetByID retrieves the full module/video tree of a course
	GetByID(ctx context.Context, courseID string) (*models.Course, error)
}

// ProgressAPI defines the remote progress store operations
type ProgressAPI interface {
	// GetContinueLearning retrieves the learner's progress records
	GetContinueLearning(ctx context.Context) ([]models.ContinueLearningItem, error)
	// MarkProgress marks a video completed; the response may signal course
	// completion via a progress percentage or an issued certificate
	MarkProgress(ctx context.Context, courseID, videoID string) (*models.MarkProgressResult, error)
	// Heartbeat reports the current playback position
	Heartbeat(ctx context.Context, courseID, videoID string, positionSeconds float64) error
}

// ResumePoint is where a learner should continue a course
type ResumePoint struct {
	Course   *models.Course
	ModuleID string
	Video    *models.Video
	// Position is the number of seconds into the video; non-zero only when
	// resuming the last-watched video.
	Position float64
}

// watchPointer is the locally tracked last-watched position of a course
type watchPointer struct {
	videoID  string
	position float64
}

// ProgressService synchronizes watch progress with the remote progress
// store and keeps a local optimistic copy of each course's completed-set.
// The remote store is authoritative; the local copy exists for optimistic
// UI and is replaced from the remote record on every course reload.
type ProgressService struct {
	courses    CourseAPI
	progress   ProgressAPI
	curriculum *CurriculumService
	logger     *zap.Logger

	mu          sync.Mutex
	trees       map[string]*models.Course
	completed   map[string]map[string]struct{}
	lastWatched map[string]watchPointer
	inFlight    map[string]bool
	celebrated  map[string]bool
}

// NewProgressService creates a new progress service
func NewProgressService(courses CourseAPI, progress ProgressAPI, curriculum *CurriculumService, logger *zap.Logger) *ProgressService {
	return &ProgressService{
		courses:     courses,
		progress:    progress,
		curriculum:  curriculum,
		logger:      logger,
		trees:       make(map[string]*models.Course),
		completed:   make(map[string]map[string]struct{}),
		lastWatched: make(map[string]watchPointer),
		inFlight:    make(map[string]bool),
		celebrated:  make(map[string]bool),
	}
}

// refresh loads the course tree and re-seeds the local progress copy from
// the remote record. A failed progress fetch is not fatal: the learner
// starts from a safe 0% default and the next reload re-syncs.
func (s *ProgressService) refresh(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load course: %w", err)
	}

	items, err := s.progress.GetContinueLearning(ctx)
	if err != nil {
		s.logger.Warn("continue-learning record unavailable, starting at 0%",
			zap.String("course_id", course.ID),
			zap.Error(err),
		)
		items = nil
	}

	var record *models.ContinueLearningItem
	for i := range items {
		if items[i].Course.ID == course.ID {
			record = &items[i]
			break
		}
	}

	set := make(map[string]struct{})
	if record != nil {
		for _, id := range record.CompletedVideos {
			set[id] = struct{}{}
		}
	}

	s.mu.Lock()
	s.trees[course.ID] = course
	s.completed[course.ID] = set
	if record != nil && record.LastWatchedVideo != "" {
		s.lastWatched[course.ID] = watchPointer{
			videoID:  record.LastWatchedVideo,
			position: record.LastVideoTimestamp,
		}
	} else {
		delete(s.lastWatched, course.ID)
	}
	s.mu.Unlock()

	return course, nil
}

// ResolveResume determines where the learner should continue a course.
// Resolution order: the last-watched video if it still exists in the tree,
// else the first incomplete video, else the very first video. Courses with
// no videos at all return ErrNoVideos.
func (s *ProgressService) ResolveResume(ctx context.Context, courseID string) (*ResumePoint, error) {
	course, err := s.refresh(ctx, courseID)
	if err != nil {
		return nil, err
	}

	if !course.HasVideos() {
		return nil, ErrNoVideos
	}

	s.mu.Lock()
	pointer, hasPointer := s.lastWatched[course.ID]
	set := s.completed[course.ID]
	s.mu.Unlock()

	if hasPointer {
		if moduleID, video, ok := course.FindVideo(pointer.videoID); ok {
			return &ResumePoint{Course: course, ModuleID: moduleID, Video: video, Position: pointer.position}, nil
		}
		// The last-watched video was removed from the course; fall through.
	}

	if moduleID, video, ok := s.curriculum.FirstIncomplete(course, set); ok {
		return &ResumePoint{Course: course, ModuleID: moduleID, Video: video}, nil
	}

	moduleID, video, _ := s.curriculum.FirstVideo(course)
	return &ResumePoint{Course: course, ModuleID: moduleID, Video: video}, nil
}

// MarkComplete marks a video as completed. The call is idempotent: videos
// already in the completed-set are a no-op, and a per-video in-flight latch
// suppresses overlapping submissions for the same completion event. The
// local set is updated optimistically before the remote call and is not
// rolled back on failure; the remote record wins on the next reload.
//
// The returned flag is true exactly once per course, when course completion
// is first detected — either locally (all videos completed) or through a
// completion hint in the remote response.
func (s *ProgressService) MarkComplete(ctx context.Context, course *models.Course, videoID string) (bool, error) {
	key := course.ID + "/" + videoID

	s.mu.Lock()
	set, ok := s.completed[course.ID]
	if !ok {
		set = make(map[string]struct{})
		s.completed[course.ID] = set
	}
	if _, done := set[videoID]; done {
		s.mu.Unlock()
		return false, nil
	}
	if s.inFlight[key] {
		s.mu.Unlock()
		return false, nil
	}
	s.inFlight[key] = true
	set[videoID] = struct{}{} // optimistic update
	localComplete := s.curriculum.ProgressPercentage(course, set) == 100
	s.mu.Unlock()

	result, err := s.progress.MarkProgress(ctx, course.ID, videoID)

	s.mu.Lock()
	delete(s.inFlight, key)
	s.mu.Unlock()

	if err != nil {
		// Keep the optimistic entry: the server is re-synced on reload and
		// forward UI progress beats strict consistency here.
		s.logger.Error("failed to mark video complete",
			zap.String("course_id", course.ID),
			zap.String("video_id", videoID),
			zap.Error(err),
		)
		if localComplete && s.markCelebrated(course.ID) {
			return true, err
		}
		return false, err
	}

	if localComplete || result.CompletionIndicated() {
		if s.markCelebrated(course.ID) {
			s.logger.Info("course completed",
				zap.String("course_id", course.ID),
				zap.Bool("certificate_issued", result.Certificate != nil),
			)
			return true, nil
		}
	}

	return false, nil
}

// markCelebrated flips the course's celebration latch, reporting whether
// this call was the transition
func (s *ProgressService) markCelebrated(courseID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.celebrated[courseID] {
		return false
	}
	s.celebrated[courseID] = true
	return true
}

// Heartbeat reports the current playback position to the remote store and
// overwrites the local last-watched pointer. Failures are swallowed: the
// next heartbeat follows in one interval if playback continues.
func (s *ProgressService) Heartbeat(ctx context.Context, courseID, videoID string, positionSeconds float64) {
	s.mu.Lock()
	s.lastWatched[courseID] = watchPointer{videoID: videoID, position: positionSeconds}
	s.mu.Unlock()

	if err := s.progress.Heartbeat(ctx, courseID, videoID, positionSeconds); err != nil {
		s.logger.Debug("heartbeat skipped",
			zap.String("course_id", courseID),
			zap.String("video_id", videoID),
			zap.Error(err),
		)
	}
}

// Percentage returns the course's progress percentage from the local
// completed-set
func (s *ProgressService) Percentage(course *models.Course) int {
	s.mu.Lock()
	set := s.completed[course.ID]
	s.mu.Unlock()
	return s.curriculum.ProgressPercentage(course, set)
}

// CompletedVideos returns the sorted local completed-set of a course
func (s *ProgressService) CompletedVideos(courseID string) []string {
	s.mu.Lock()
	set := s.completed[courseID]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	sort.Strings(ids)
	return ids
}

// CourseProgress returns the local progress view of a course for display
// components, loading the course on first access
func (s *ProgressService) CourseProgress(ctx context.Context, courseID string) (*models.CourseProgress, error) {
	s.mu.Lock()
	course, cached := s.trees[courseID]
	s.mu.Unlock()

	if !cached {
		var err error
		course, err = s.refresh(ctx, courseID)
		if err != nil {
			return nil, err
		}
	}

	return &models.CourseProgress{
		CourseID:           course.ID,
		CompletedVideos:    s.CompletedVideos(course.ID),
		ProgressPercentage: s.Percentage(course),
	}, nil
}

// ContinueLearning returns the learner's continue-learning records with the
// local optimistic completed-sets merged in
func (s *ProgressService) ContinueLearning(ctx context.Context) ([]models.ContinueLearningItem, error) {
	items, err := s.progress.GetContinueLearning(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get continue learning records: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range items {
		local, ok := s.completed[items[i].Course.ID]
		if !ok {
			continue
		}
		merged := make(map[string]struct{}, len(local))
		for id := range local {
			merged[id] = struct{}{}
		}
		for _, id := range items[i].CompletedVideos {
			merged[id] = struct{}{}
		}
		ids := make([]string, 0, len(merged))
		for id := range merged {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		items[i].CompletedVideos = ids
		items[i].ProgressPercentage = s.curriculum.ProgressPercentage(&items[i].Course, merged)
	}

	return items, nil
}
