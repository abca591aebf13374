package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/skillstream/learn-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockCourseAPI is a mock implementation of CourseAPI
type mockCourseAPI struct {
	course *models.Course
	err    error
}

func (m *mockCourseAPI) GetByID(ctx context.Context, courseID string) (*models.Course, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.course, nil
}

type heartbeatCall struct {
	courseID string
	videoID  string
	position float64
}

// mockProgressAPI is a mock implementation of ProgressAPI
type mockProgressAPI struct {
	mu sync.Mutex

	items    []models.ContinueLearningItem
	itemsErr error

	markResult *models.MarkProgressResult
	markErr    error
	markCalls  []string
	// markStarted/markRelease make MarkProgress block, to exercise the
	// in-flight guard with an actual concurrent submission
	markStarted chan struct{}
	markRelease chan struct{}

	heartbeats   []heartbeatCall
	heartbeatErr error
}

func (m *mockProgressAPI) GetContinueLearning(ctx context.Context) ([]models.ContinueLearningItem, error) {
	if m.itemsErr != nil {
		return nil, m.itemsErr
	}
	return m.items, nil
}

func (m *mockProgressAPI) MarkProgress(ctx context.Context, courseID, videoID string) (*models.MarkProgressResult, error) {
	m.mu.Lock()
	m.markCalls = append(m.markCalls, courseID+"/"+videoID)
	m.mu.Unlock()

	if m.markStarted != nil {
		m.markStarted <- struct{}{}
		<-m.markRelease
	}

	if m.markErr != nil {
		return nil, m.markErr
	}
	if m.markResult != nil {
		return m.markResult, nil
	}
	return &models.MarkProgressResult{}, nil
}

func (m *mockProgressAPI) Heartbeat(ctx context.Context, courseID, videoID string, positionSeconds float64) error {
	m.mu.Lock()
	m.heartbeats = append(m.heartbeats, heartbeatCall{courseID: courseID, videoID: videoID, position: positionSeconds})
	m.mu.Unlock()
	return m.heartbeatErr
}

func (m *mockProgressAPI) markCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.markCalls)
}

func newProgressService(courses *mockCourseAPI, progress *mockProgressAPI) *ProgressService {
	return NewProgressService(courses, progress, NewCurriculumService(), zap.NewNop())
}

func TestProgressService_MarkComplete_Idempotent(t *testing.T) {
	progress := &mockProgressAPI{}
	svc := newProgressService(&mockCourseAPI{}, progress)
	course := twoModuleCourse()

	_, err := svc.MarkComplete(context.Background(), course, "v1")
	require.NoError(t, err)

	// Duplicate event delivery: the player fires both the 90% signal and
	// the ended signal for the same playback.
	_, err = svc.MarkComplete(context.Background(), course, "v1")
	require.NoError(t, err)

	assert.Equal(t, 1, progress.markCallCount())
	assert.Equal(t, []string{"v1"}, svc.CompletedVideos("c1"))
}

func TestProgressService_MarkComplete_InFlightGuard(t *testing.T) {
	progress := &mockProgressAPI{
		markStarted: make(chan struct{}, 2),
		markRelease: make(chan struct{}),
	}
	svc := newProgressService(&mockCourseAPI{}, progress)
	course := twoModuleCourse()

	done := make(chan struct{})
	go func() {
		_, _ = svc.MarkComplete(context.Background(), course, "v1")
		close(done)
	}()

	// Wait until the first submission is inside the remote call
	<-progress.markStarted

	// A second submission for the same completion event must not go out
	completedNow, err := svc.MarkComplete(context.Background(), course, "v1")
	require.NoError(t, err)
	assert.False(t, completedNow)
	assert.Equal(t, 1, progress.markCallCount())

	close(progress.markRelease)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("first submission did not settle")
	}
}

func TestProgressService_MarkComplete_FailureKeepsOptimisticEntry(t *testing.T) {
	progress := &mockProgressAPI{markErr: errors.New("network down")}
	svc := newProgressService(&mockCourseAPI{}, progress)
	course := twoModuleCourse()

	_, err := svc.MarkComplete(context.Background(), course, "v1")
	require.Error(t, err)

	// The optimistic addition survives; the remote record wins on reload.
	assert.Equal(t, []string{"v1"}, svc.CompletedVideos("c1"))

	// The guard was released, so the next completion event submits again
	progress.markErr = nil
	_, err = svc.MarkComplete(context.Background(), course, "v2")
	require.NoError(t, err)
	assert.Equal(t, 2, progress.markCallCount())
}

func TestProgressService_MarkComplete_LocalCompletionDetection(t *testing.T) {
	progress := &mockProgressAPI{}
	svc := newProgressService(&mockCourseAPI{}, progress)
	course := twoModuleCourse() // v1, v2, v3

	completedNow, err := svc.MarkComplete(context.Background(), course, "v1")
	require.NoError(t, err)
	assert.False(t, completedNow)

	completedNow, err = svc.MarkComplete(context.Background(), course, "v2")
	require.NoError(t, err)
	assert.False(t, completedNow)

	// Completing the last video flips the course exactly once
	completedNow, err = svc.MarkComplete(context.Background(), course, "v3")
	require.NoError(t, err)
	assert.True(t, completedNow)

	assert.Equal(t, 100, svc.Percentage(course))
}

func TestProgressService_MarkComplete_RemoteCompletionHint(t *testing.T) {
	tests := []struct {
		name   string
		result *models.MarkProgressResult
		want   bool
	}{
		{
			name:   "certificate issued",
			result: &models.MarkProgressResult{Certificate: &models.Certificate{ID: "cert-1"}},
			want:   true,
		},
		{
			name:   "progress at 100",
			result: &models.MarkProgressResult{Progress: &models.ProgressSnapshot{Percentage: 100}},
			want:   true,
		},
		{
			name:   "progress below 100",
			result: &models.MarkProgressResult{Progress: &models.ProgressSnapshot{Percentage: 40}},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			progress := &mockProgressAPI{markResult: tt.result}
			svc := newProgressService(&mockCourseAPI{}, progress)

			// Only one of three videos completed locally: any completion
			// signal must come from the remote response.
			completedNow, err := svc.MarkComplete(context.Background(), twoModuleCourse(), "v1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, completedNow)
		})
	}
}

func TestProgressService_ResolveResume_Precedence(t *testing.T) {
	course := twoModuleCourse()

	tests := []struct {
		name        string
		record      *models.ContinueLearningItem
		wantVideoID string
		wantPos     float64
	}{
		{
			name: "last watched wins regardless of completed-set",
			record: &models.ContinueLearningItem{
				Course:             *course,
				CompletedVideos:    []string{"v1", "v2", "v3"},
				LastWatchedVideo:   "v2",
				LastVideoTimestamp: 37,
			},
			wantVideoID: "v2",
			wantPos:     37,
		},
		{
			name: "first incomplete without last watched",
			record: &models.ContinueLearningItem{
				Course:          *course,
				CompletedVideos: []string{"v1"},
			},
			wantVideoID: "v2",
		},
		{
			name: "fully completed course falls back to the first video",
			record: &models.ContinueLearningItem{
				Course:          *course,
				CompletedVideos: []string{"v1", "v2", "v3"},
			},
			wantVideoID: "v1",
		},
		{
			name: "removed last-watched video falls through",
			record: &models.ContinueLearningItem{
				Course:           *course,
				CompletedVideos:  []string{"v1"},
				LastWatchedVideo: "deleted-video",
			},
			wantVideoID: "v2",
		},
		{
			name:        "no record at all",
			record:      nil,
			wantVideoID: "v1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			progress := &mockProgressAPI{}
			if tt.record != nil {
				progress.items = []models.ContinueLearningItem{*tt.record}
			}
			svc := newProgressService(&mockCourseAPI{course: course}, progress)

			resume, err := svc.ResolveResume(context.Background(), "c1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantVideoID, resume.Video.ID)
			assert.Equal(t, tt.wantPos, resume.Position)
		})
	}
}

func TestProgressService_ResolveResume_ScenarioTwoModules(t *testing.T) {
	// Course with 2 modules of 2 videos each; learner completed v1 and v3.
	course := &models.Course{
		ID: "c1",
		Modules: []models.Module{
			{ID: "m1", Videos: []models.Video{{ID: "v1"}, {ID: "v2"}}},
			{ID: "m2", Videos: []models.Video{{ID: "v3"}, {ID: "v4"}}},
		},
	}
	progress := &mockProgressAPI{
		items: []models.ContinueLearningItem{{
			Course:          *course,
			CompletedVideos: []string{"v1", "v3"},
		}},
	}
	svc := newProgressService(&mockCourseAPI{course: course}, progress)

	resume, err := svc.ResolveResume(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "v2", resume.Video.ID)
	assert.Equal(t, "m1", resume.ModuleID)

	assert.Equal(t, 50, svc.Percentage(course))
}

func TestProgressService_ResolveResume_NoVideos(t *testing.T) {
	course := &models.Course{ID: "c1", Modules: []models.Module{{ID: "m1"}}}
	svc := newProgressService(&mockCourseAPI{course: course}, &mockProgressAPI{})

	_, err := svc.ResolveResume(context.Background(), "c1")
	assert.ErrorIs(t, err, ErrNoVideos)
}

func TestProgressService_ResolveResume_CourseFetchFailure(t *testing.T) {
	svc := newProgressService(&mockCourseAPI{err: errors.New("boom")}, &mockProgressAPI{})

	_, err := svc.ResolveResume(context.Background(), "c1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoVideos)
}

func TestProgressService_ResolveResume_ProgressFetchFailureFallsBack(t *testing.T) {
	course := twoModuleCourse()
	svc := newProgressService(
		&mockCourseAPI{course: course},
		&mockProgressAPI{itemsErr: errors.New("progress store down")},
	)

	// A missing progress record is a safe 0% default, not an error
	resume, err := svc.ResolveResume(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "v1", resume.Video.ID)
	assert.Equal(t, 0, svc.Percentage(course))
}

func TestProgressService_ResolveResume_RemoteAuthoritativeOnReload(t *testing.T) {
	course := twoModuleCourse()
	progress := &mockProgressAPI{}
	svc := newProgressService(&mockCourseAPI{course: course}, progress)

	_, err := svc.MarkComplete(context.Background(), course, "v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, svc.CompletedVideos("c1"))

	// Reload: the remote record (empty) replaces the optimistic copy
	_, err = svc.ResolveResume(context.Background(), "c1")
	require.NoError(t, err)
	assert.Empty(t, svc.CompletedVideos("c1"))
}

func TestProgressService_Heartbeat(t *testing.T) {
	progress := &mockProgressAPI{}
	svc := newProgressService(&mockCourseAPI{}, progress)

	svc.Heartbeat(context.Background(), "c1", "v1", 42.5)

	require.Len(t, progress.heartbeats, 1)
	assert.Equal(t, heartbeatCall{courseID: "c1", videoID: "v1", position: 42.5}, progress.heartbeats[0])
}

func TestProgressService_Heartbeat_FailureSwallowed(t *testing.T) {
	progress := &mockProgressAPI{heartbeatErr: errors.New("network down")}
	svc := newProgressService(&mockCourseAPI{}, progress)

	// Must not panic or surface the error; the next beat follows anyway
	svc.Heartbeat(context.Background(), "c1", "v1", 10)
	svc.Heartbeat(context.Background(), "c1", "v1", 40)

	assert.Len(t, progress.heartbeats, 2)
}

func TestProgressService_ContinueLearning_MergesLocalSet(t *testing.T) {
	course := twoModuleCourse()
	progress := &mockProgressAPI{
		items: []models.ContinueLearningItem{{
			Course:             *course,
			CompletedVideos:    []string{"v1"},
			ProgressPercentage: 33,
		}},
	}
	svc := newProgressService(&mockCourseAPI{course: course}, progress)

	// Seed the local set, then complete one more video optimistically
	_, err := svc.ResolveResume(context.Background(), "c1")
	require.NoError(t, err)
	_, err = svc.MarkComplete(context.Background(), course, "v2")
	require.NoError(t, err)

	items, err := svc.ContinueLearning(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []string{"v1", "v2"}, items[0].CompletedVideos)
	assert.Equal(t, 67, items[0].ProgressPercentage)
}

func TestProgressService_CourseProgress(t *testing.T) {
	course := twoModuleCourse()
	progress := &mockProgressAPI{
		items: []models.ContinueLearningItem{{
			Course:          *course,
			CompletedVideos: []string{"v1", "v2"},
		}},
	}
	svc := newProgressService(&mockCourseAPI{course: course}, progress)

	view, err := svc.CourseProgress(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", view.CourseID)
	assert.Equal(t, []string{"v1", "v2"}, view.CompletedVideos)
	assert.Equal(t, 67, view.ProgressPercentage)
}
