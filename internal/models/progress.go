package models

import "time"

// ContinueLearningItem is one entry of the learner's continue-learning
// record as returned by the course API
type ContinueLearningItem struct {
	Course             Course   `json:"course"`
	CompletedVideos    []string `json:"completedVideos"`
	LastWatchedVideo   string   `json:"lastWatchedVideo,omitempty"`
	LastVideoTimestamp float64  `json:"lastVideoTimestamp,omitempty"`
	ProgressPercentage int      `json:"progressPercentage"`
}

// ProgressSnapshot is the overall progress figure the course API may return
// alongside a mark-progress acknowledgement
type ProgressSnapshot struct {
	Percentage float64 `json:"percentage"`
}

// Certificate is issued by the course API when a course is completed
type Certificate struct {
	ID       string    `json:"id"`
	CourseID string    `json:"courseId"`
	IssuedAt time.Time `json:"issuedAt"`
}

// MarkProgressResult is the course API response to a mark-progress call.
// Completion may be signalled through either field, so callers must check
// both shapes.
type MarkProgressResult struct {
	Progress    *ProgressSnapshot `json:"progress,omitempty"`
	Certificate *Certificate      `json:"certificate,omitempty"`
}

// CompletionIndicated reports whether the response carries an explicit
// course-completion signal
func (r *MarkProgressResult) CompletionIndicated() bool {
	if r == nil {
		return false
	}
	if r.Certificate != nil {
		return true
	}
	return r.Progress != nil && r.Progress.Percentage >= 100
}

// CourseProgress is the local progress view served to display components
// (sidebar list, progress bar, dashboard cards)
type CourseProgress struct {
	CourseID           string   `json:"courseId"`
	CompletedVideos    []string `json:"completedVideos"`
	ProgressPercentage int      `json:"progressPercentage"`
}
