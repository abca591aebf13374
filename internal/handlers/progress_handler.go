package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/skillstream/learn-engine/internal/models"
	"go.uber.org/zap"
)

// ProgressReader is the interface that wraps the progress display reads.
type ProgressReader interface {
	// CourseProgress returns the completed-set and percentage of a course
	CourseProgress(ctx context.Context, courseID string) (*models.CourseProgress, error)
	// ContinueLearning returns the learner's progress records with local
	// optimistic completions merged in
	ContinueLearning(ctx context.Context) ([]models.ContinueLearningItem, error)
}

// ProgressHandler handles HTTP requests for progress views
type ProgressHandler struct {
	BaseHandler
	service ProgressReader
}

// NewProgressHandler creates a new progress handler
func NewProgressHandler(svc ProgressReader, logger *zap.Logger) *ProgressHandler {
	return &ProgressHandler{
		service:     svc,
		BaseHandler: BaseHandler{logger: logger},
	}
}

// RegisterRoutes registers all progress handler routes
func (h *ProgressHandler) RegisterRoutes(r chi.Router) {
	r.Get("/courses/{id}/progress", h.CourseProgress)
	r.Get("/continue-learning", h.ContinueLearning)
}

// CourseProgress handles GET /api/v1/courses/{id}/progress
// @Summary Get course progress
// @Description Get the completed videos and progress percentage of a course
// @Tags progress
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} models.CourseProgress
// @Failure 502 {object} map[string]string
// @Router /api/v1/courses/{id}/progress [get]
func (h *ProgressHandler) CourseProgress(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "id")

	progress, err := h.service.CourseProgress(r.Context(), courseID)
	if err != nil {
		h.logger.Error("failed to get course progress",
			zap.String("course_id", courseID),
			zap.Error(err),
		)
		h.respondError(w, http.StatusBadGateway, "failed to get course progress")
		return
	}

	h.respondJSON(w, http.StatusOK, progress)
}

// ContinueLearning handles GET /api/v1/continue-learning
// @Summary Get continue-learning records
// @Description Get the learner's in-progress courses with completion data
// @Tags progress
// @Produce json
// @Success 200 {array} models.ContinueLearningItem
// @Failure 502 {object} map[string]string
// @Router /api/v1/continue-learning [get]
func (h *ProgressHandler) ContinueLearning(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ContinueLearning(r.Context())
	if err != nil {
		h.logger.Error("failed to get continue-learning records", zap.Error(err))
		h.respondError(w, http.StatusBadGateway, "failed to get continue-learning records")
		return
	}

	if items == nil {
		items = []models.ContinueLearningItem{}
	}
	h.respondJSON(w, http.StatusOK, items)
}
