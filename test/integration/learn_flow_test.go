package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/skillstream/learn-engine/internal/handlers"
	"github.com/skillstream/learn-engine/internal/models"
	"github.com/skillstream/learn-engine/internal/repositories"
	"github.com/skillstream/learn-engine/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// upstreamAPI fakes the course platform API behind the engine
type upstreamAPI struct {
	mu        sync.Mutex
	responses map[string]string
	calls     map[string]int
}

func newUpstreamAPI() *upstreamAPI {
	return &upstreamAPI{
		responses: map[string]string{},
		calls:     map[string]int{},
	}
}

func (u *upstreamAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	u.calls[r.URL.Path]++
	data, ok := u.responses[r.URL.Path]
	u.mu.Unlock()

	if !ok {
		data = "null"
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"code":0,"msg":"","data":` + data + `}`))
}

func (u *upstreamAPI) callCount(path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls[path]
}

// setupTestRouter wires the full engine against the fake upstream
func setupTestRouter(t *testing.T, upstream *upstreamAPI) chi.Router {
	t.Helper()

	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	logger := zap.NewNop()
	client := repositories.NewClient(srv.URL, "test-token")
	courseRepo := repositories.NewCourseRepository(client)
	progressRepo := repositories.NewProgressRepository(client)
	mediaRepo := repositories.NewMediaRepository(client)

	curriculumService := services.NewCurriculumService()
	progressService := services.NewProgressService(courseRepo, progressRepo, curriculumService, logger)
	playbackService := services.NewPlaybackService(
		progressService, mediaRepo, curriculumService, logger,
		50*time.Millisecond, 20*time.Millisecond,
	)
	t.Cleanup(playbackService.Shutdown)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		handlers.NewPlayerHandler(playbackService, logger).RegisterRoutes(r)
		handlers.NewProgressHandler(progressService, logger).RegisterRoutes(r)
	})

	return r
}

// doJSON performs a request against the engine router and decodes the body
func doJSON(t *testing.T, router chi.Router, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if out != nil && rec.Code < 300 && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

const courseTree = `{
	"course": {
		"_id": "c1",
		"title": "Go from scratch",
		"modules": [
			{"_id": "m1", "title": "Basics", "videos": [
				{"_id": "v1", "title": "Intro", "durationSeconds": 120, "source": "https://cdn.example.com/v1.mp4"},
				{"_id": "v2", "title": "Types", "durationSeconds": 180, "source": "https://cdn.example.com/v2.mp4"}
			]}
		]
	}
}`

func TestLearnFlow_CompletionSubmittedOnce(t *testing.T) {
	upstream := newUpstreamAPI()
	upstream.responses["/courses/get"] = courseTree
	upstream.responses["/progress/continue-learning"] = `{"items": []}`
	upstream.responses["/progress/mark"] = `{}`
	router := setupTestRouter(t, upstream)

	var state models.PlayerState
	rec := doJSON(t, router, http.MethodPost, "/api/v1/sessions", map[string]string{"courseId": "c1"}, &state)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotEmpty(t, state.SessionID)
	assert.Equal(t, "v1", state.VideoID)
	assert.Equal(t, "https://cdn.example.com/v1.mp4", state.SourceURL)

	base := "/api/v1/sessions/" + state.SessionID

	rec = doJSON(t, router, http.MethodPost, base+"/events", map[string]any{
		"type": "loadedmetadata", "durationSeconds": 120,
	}, &state)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, state.Ready)

	// Crossing the near-complete mark submits the completion
	rec = doJSON(t, router, http.MethodPost, base+"/events", map[string]any{
		"type": "timeupdate", "currentTime": 110,
	}, &state)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, state.ProgressPercentage)

	// The natural end fires the completion path again, but the duplicate
	// never reaches the upstream.
	rec = doJSON(t, router, http.MethodPost, base+"/events", map[string]any{
		"type": "ended",
	}, &state)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, state.Playing)

	assert.Equal(t, 1, upstream.callCount("/progress/mark"))

	// The ended video auto-advances to the next one after the delay
	require.Eventually(t, func() bool {
		var s models.PlayerState
		r := doJSON(t, router, http.MethodGet, base, nil, &s)
		return r.Code == http.StatusOK && s.VideoID == "v2"
	}, time.Second, 10*time.Millisecond)

	rec = doJSON(t, router, http.MethodDelete, base, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLearnFlow_ResumeFromLastWatched(t *testing.T) {
	upstream := newUpstreamAPI()
	upstream.responses["/courses/get"] = courseTree
	upstream.responses["/progress/continue-learning"] = `{
		"items": [
			{
				"course": {"_id": "c1", "modules": []},
				"completedVideos": ["v1"],
				"lastWatchedVideo": "v2",
				"lastVideoTimestamp": 42,
				"progressPercentage": 50
			}
		]
	}`
	router := setupTestRouter(t, upstream)

	var state models.PlayerState
	rec := doJSON(t, router, http.MethodPost, "/api/v1/sessions", map[string]string{"courseId": "c1"}, &state)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "v2", state.VideoID)
	assert.Equal(t, 42.0, state.ResumeAt)

	// The initial seek lands once metadata arrives
	rec = doJSON(t, router, http.MethodPost, "/api/v1/sessions/"+state.SessionID+"/events", map[string]any{
		"type": "loadedmetadata", "durationSeconds": 180,
	}, &state)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 42.0, state.CurrentTime)
}

func TestLearnFlow_CourseWithoutVideos(t *testing.T) {
	upstream := newUpstreamAPI()
	upstream.responses["/courses/get"] = `{"course": {"_id": "c9", "title": "Draft", "modules": []}}`
	upstream.responses["/progress/continue-learning"] = `{"items": []}`
	router := setupTestRouter(t, upstream)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/sessions", map[string]string{"courseId": "c9"}, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "course-has-no-videos", body["notice"])
}

func TestLearnFlow_CourseProgressEndpoint(t *testing.T) {
	upstream := newUpstreamAPI()
	upstream.responses["/courses/get"] = courseTree
	upstream.responses["/progress/continue-learning"] = `{
		"items": [
			{
				"course": {"_id": "c1", "modules": []},
				"completedVideos": ["v1"],
				"progressPercentage": 50
			}
		]
	}`
	router := setupTestRouter(t, upstream)

	var progress models.CourseProgress
	rec := doJSON(t, router, http.MethodGet, "/api/v1/courses/c1/progress", nil, &progress)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "c1", progress.CourseID)
	assert.Equal(t, []string{"v1"}, progress.CompletedVideos)
	assert.Equal(t, 50, progress.ProgressPercentage)
}
