package models

// PlayerState is a snapshot of a playback session, rendered by the player
// surface after every command or event
type PlayerState struct {
	SessionID  string `json:"sessionId"`
	CourseID   string `json:"courseId"`
	ModuleID   string `json:"moduleId"`
	VideoID    string `json:"videoId"`
	VideoTitle string `json:"videoTitle"`

	SourceURL string `json:"sourceUrl"`
	// ResumeAt is the position the surface should seek to once metadata is
	// loaded; zero means start from the beginning.
	ResumeAt float64 `json:"resumeAt"`

	Ready           bool    `json:"ready"`
	Playing         bool    `json:"playing"`
	DurationSeconds float64 `json:"durationSeconds"`
	CurrentTime     float64 `json:"currentTime"`
	BufferedSeconds float64 `json:"bufferedSeconds"`

	Volume          int     `json:"volume"`
	Muted           bool    `json:"muted"`
	EffectiveVolume int     `json:"effectiveVolume"`
	PlaybackRate    float64 `json:"playbackRate"`

	Fullscreen       bool `json:"fullscreen"`
	PictureInPicture bool `json:"pictureInPicture"`

	HasNext     bool `json:"hasNext"`
	HasPrevious bool `json:"hasPrevious"`

	ProgressPercentage int  `json:"progressPercentage"`
	CourseCompleted    bool `json:"courseCompleted"`

	// Notices are one-shot, non-error messages for the surface to display
	// (course-completed celebration). Drained on every snapshot.
	Notices []string `json:"notices,omitempty"`
}
