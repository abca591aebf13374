package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/skillstream/learn-engine/internal/models"
	"github.com/skillstream/learn-engine/internal/services"
	"go.uber.org/zap"
)

// PlayerService is the interface that wraps the playback session operations.
type PlayerService interface {
	// Open starts a playback session for a course at its resume point.
	// Courses without any videos return services.ErrNoVideos.
	Open(ctx context.Context, courseID string) (models.PlayerState, error)
	// State returns a snapshot of the session, draining pending notices
	State(sessionID string) (models.PlayerState, error)
	// Close tears down the session
	Close(sessionID string) error
	// Transport applies a player control command
	Transport(sessionID string, cmd services.TransportCommand) (models.PlayerState, error)
	// HandleKey applies a keyboard shortcut; unknown keys are ignored
	HandleKey(sessionID, key string) (models.PlayerState, error)
	// HandleEvent ingests a native media event from the player surface
	HandleEvent(ctx context.Context, sessionID string, event services.MediaEvent) (models.PlayerState, error)
	// SelectVideo switches the session to another video of the course
	SelectVideo(ctx context.Context, sessionID, videoID string) (models.PlayerState, error)
}

// PlayerHandler handles HTTP requests for playback sessions
type PlayerHandler struct {
	BaseHandler
	service PlayerService
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(svc PlayerService, logger *zap.Logger) *PlayerHandler {
	return &PlayerHandler{
		service:     svc,
		BaseHandler: BaseHandler{logger: logger},
	}
}

// RegisterRoutes registers all player handler routes
func (h *PlayerHandler) RegisterRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.Open)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.State)
			r.Delete("/", h.Close)
			r.Post("/transport", h.Transport)
			r.Post("/keys", h.Key)
			// The surface throttles timeupdate, but a broken client could
			// still flood the event ingress.
			r.With(httprate.LimitByIP(1200, time.Minute)).Post("/events", h.Event)
			r.Post("/video", h.SelectVideo)
		})
	})
}

type openSessionRequest struct {
	CourseID string `json:"courseId"`
}

type keyRequest struct {
	Key string `json:"key"`
}

type selectVideoRequest struct {
	VideoID string `json:"videoId"`
}

// Open handles POST /api/v1/sessions
// @Summary Open a playback session
// @Description Open a playback session for a course at its resume point
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body openSessionRequest true "Course to play"
// @Success 201 {object} models.PlayerState
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /api/v1/sessions [post]
func (h *PlayerHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CourseID == "" {
		h.respondError(w, http.StatusBadRequest, "courseId is required")
		return
	}

	state, err := h.service.Open(r.Context(), req.CourseID)
	if err != nil {
		// A course without videos is not a failure: the client redirects
		// back to the course page with an informational notice.
		if errors.Is(err, services.ErrNoVideos) {
			h.respondJSON(w, http.StatusConflict, map[string]string{
				"notice": "course-has-no-videos",
			})
			return
		}
		h.logger.Error("failed to open playback session",
			zap.String("course_id", req.CourseID),
			zap.Error(err),
		)
		h.respondError(w, http.StatusBadGateway, "failed to load course")
		return
	}

	h.respondJSON(w, http.StatusCreated, state)
}

// State handles GET /api/v1/sessions/{id}
// @Summary Get session state
// @Description Get the current player state of a session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.PlayerState
// @Failure 404 {object} map[string]string
// @Router /api/v1/sessions/{id} [get]
func (h *PlayerHandler) State(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.State(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	h.respondJSON(w, http.StatusOK, state)
}

// Close handles DELETE /api/v1/sessions/{id}
// @Summary Close a session
// @Description Close a playback session, stopping heartbeats and auto-advance
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 204 "closed"
// @Failure 404 {object} map[string]string
// @Router /api/v1/sessions/{id} [delete]
func (h *PlayerHandler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Close(chi.URLParam(r, "id")); err != nil {
		h.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Transport handles POST /api/v1/sessions/{id}/transport
// @Summary Apply a transport command
// @Description Apply a player control command (play, pause, seek, volume, ...)
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body services.TransportCommand true "Transport command"
// @Success 200 {object} models.PlayerState
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/sessions/{id}/transport [post]
func (h *PlayerHandler) Transport(w http.ResponseWriter, r *http.Request) {
	var cmd services.TransportCommand
	if err := h.decodeJSON(r, &cmd); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state, err := h.service.Transport(chi.URLParam(r, "id"), cmd)
	if err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			h.respondError(w, http.StatusNotFound, "session not found")
			return
		}
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, state)
}

// Key handles POST /api/v1/sessions/{id}/keys
// @Summary Apply a keyboard shortcut
// @Description Apply a player keyboard shortcut; unknown keys are ignored
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body keyRequest true "Pressed key"
// @Success 200 {object} models.PlayerState
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/sessions/{id}/keys [post]
func (h *PlayerHandler) Key(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state, err := h.service.HandleKey(chi.URLParam(r, "id"), req.Key)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "session not found")
		return
	}

	h.respondJSON(w, http.StatusOK, state)
}

// Event handles POST /api/v1/sessions/{id}/events
// @Summary Ingest a media event
// @Description Ingest a native media element event (loadedmetadata, timeupdate, progress, ended)
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body services.MediaEvent true "Media event"
// @Success 200 {object} models.PlayerState
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/sessions/{id}/events [post]
func (h *PlayerHandler) Event(w http.ResponseWriter, r *http.Request) {
	var event services.MediaEvent
	if err := h.decodeJSON(r, &event); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state, err := h.service.HandleEvent(r.Context(), chi.URLParam(r, "id"), event)
	if err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			h.respondError(w, http.StatusNotFound, "session not found")
			return
		}
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.respondJSON(w, http.StatusOK, state)
}

// SelectVideo handles POST /api/v1/sessions/{id}/video
// @Summary Switch the session to another video
// @Description Switch the playback session to another video of the same course
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body selectVideoRequest true "Video to play"
// @Success 200 {object} models.PlayerState
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/sessions/{id}/video [post]
func (h *PlayerHandler) SelectVideo(w http.ResponseWriter, r *http.Request) {
	var req selectVideoRequest
	if err := h.decodeJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.VideoID == "" {
		h.respondError(w, http.StatusBadRequest, "videoId is required")
		return
	}

	state, err := h.service.SelectVideo(r.Context(), chi.URLParam(r, "id"), req.VideoID)
	if err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			h.respondError(w, http.StatusNotFound, "session not found")
			return
		}
		if errors.Is(err, services.ErrVideoNotFound) {
			h.respondError(w, http.StatusNotFound, "video not found in course")
			return
		}
		h.logger.Error("failed to switch video",
			zap.String("video_id", req.VideoID),
			zap.Error(err),
		)
		h.respondError(w, http.StatusBadGateway, "failed to load video")
		return
	}

	h.respondJSON(w, http.StatusOK, state)
}
