package repositories

import (
	"context"
	"fmt"

	"github.com/skillstream/learn-engine/internal/models"
)

// ProgressRepository reads and writes watch progress on the course API
type ProgressRepository struct {
	client *Client
}

// NewProgressRepository creates a new progress repository
func NewProgressRepository(client *Client) *ProgressRepository {
	return &ProgressRepository{client: client}
}

// GetContinueLearning retrieves the learner's continue-learning records
// for all courses they have started
func (r *ProgressRepository) GetContinueLearning(ctx context.Context) ([]models.ContinueLearningItem, error) {
	var resp struct {
		Items []models.ContinueLearningItem `json:"items"`
	}

	if err := r.client.post(ctx, "/progress/continue-learning", struct{}{}, &resp); err != nil {
		return nil, fmt.Errorf("failed to get continue learning records: %w", err)
	}

	return resp.Items, nil
}

// MarkProgress marks a video as completed. The response may carry an
// overall progress figure or an issued certificate when the course is done.
func (r *ProgressRepository) MarkProgress(ctx context.Context, courseID, videoID string) (*models.MarkProgressResult, error) {
	params := struct {
		CourseID string `json:"courseId"`
		VideoID  string `json:"videoId"`
	}{CourseID: courseID, VideoID: videoID}

	var result models.MarkProgressResult
	if err := r.client.post(ctx, "/progress/mark", params, &result); err != nil {
		return nil, fmt.Errorf("failed to mark progress for video %s: %w", videoID, err)
	}

	return &result, nil
}

// Heartbeat reports the current playback position. No response body is
// expected; the record just overwrites last-watched state server side.
func (r *ProgressRepository) Heartbeat(ctx context.Context, courseID, videoID string, positionSeconds float64) error {
	params := struct {
		CourseID  string  `json:"courseId"`
		VideoID   string  `json:"videoId"`
		Timestamp float64 `json:"timestamp"`
	}{CourseID: courseID, VideoID: videoID, Timestamp: positionSeconds}

	if err := r.client.post(ctx, "/progress/heartbeat", params, nil); err != nil {
		return fmt.Errorf("failed to send heartbeat for video %s: %w", videoID, err)
	}

	return nil
}
