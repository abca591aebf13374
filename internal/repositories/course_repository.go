package repositories

import (
	"context"
	"fmt"

	"github.com/skillstream/learn-engine/internal/models"
)

// CourseRepository retrieves course trees from the course API
type CourseRepository struct {
	client *Client
}

// NewCourseRepository creates a new course repository
func NewCourseRepository(client *Client) *CourseRepository {
	return &CourseRepository{client: client}
}

// GetByID retrieves the full module/video tree of a course
func (r *CourseRepository) GetByID(ctx context.Context, courseID string) (*models.Course, error) {
	params := struct {
		ID string `json:"id"`
	}{ID: courseID}

	var resp struct {
		Course models.Course `json:"course"`
	}

	if err := r.client.post(ctx, "/courses/get", params, &resp); err != nil {
		return nil, fmt.Errorf("failed to get course %s: %w", courseID, err)
	}

	return &resp.Course, nil
}
