package services

import (
	"math"

	"github.com/skillstream/learn-engine/internal/models"
)

// CurriculumService provides pure, stateless traversal over a course's
// module/video tree plus progress aggregation. Module and video order in
// the tree defines the next/previous sequence; empty modules are skipped.
type CurriculumService struct{}

// NewCurriculumService creates a new curriculum service
func NewCurriculumService() *CurriculumService {
	return &CurriculumService{}
}

// locate returns the module and video indexes of the given position
func (s *CurriculumService) locate(course *models.Course, moduleID, videoID string) (int, int, bool) {
	for mi := range course.Modules {
		if course.Modules[mi].ID != moduleID {
			continue
		}
		for vi := range course.Modules[mi].Videos {
			if course.Modules[mi].Videos[vi].ID == videoID {
				return mi, vi, true
			}
		}
	}
	return 0, 0, false
}

// Next returns the video after the given position: the next video in the
// current module, else the first video of the next non-empty module.
// ok is false at the end of the course or when the position is unknown.
func (s *CurriculumService) Next(course *models.Course, moduleID, videoID string) (string, *models.Video, bool) {
	mi, vi, found := s.locate(course, moduleID, videoID)
	if !found {
		return "", nil, false
	}

	if vi+1 < len(course.Modules[mi].Videos) {
		return course.Modules[mi].ID, &course.Modules[mi].Videos[vi+1], true
	}

	for m := mi + 1; m < len(course.Modules); m++ {
		if len(course.Modules[m].Videos) > 0 {
			return course.Modules[m].ID, &course.Modules[m].Videos[0], true
		}
	}

	return "", nil, false
}

// Previous returns the video before the given position: the prior video in
// the current module, else the last video of the previous non-empty module
func (s *CurriculumService) Previous(course *models.Course, moduleID, videoID string) (string, *models.Video, bool) {
	mi, vi, found := s.locate(course, moduleID, videoID)
	if !found {
		return "", nil, false
	}

	if vi > 0 {
		return course.Modules[mi].ID, &course.Modules[mi].Videos[vi-1], true
	}

	for m := mi - 1; m >= 0; m-- {
		if n := len(course.Modules[m].Videos); n > 0 {
			return course.Modules[m].ID, &course.Modules[m].Videos[n-1], true
		}
	}

	return "", nil, false
}

// FirstVideo returns the very first video of the first non-empty module
func (s *CurriculumService) FirstVideo(course *models.Course) (string, *models.Video, bool) {
	for mi := range course.Modules {
		if len(course.Modules[mi].Videos) > 0 {
			return course.Modules[mi].ID, &course.Modules[mi].Videos[0], true
		}
	}
	return "", nil, false
}

// FirstIncomplete returns the first video, in module-then-video order, that
// is not in the completed set
func (s *CurriculumService) FirstIncomplete(course *models.Course, completed map[string]struct{}) (string, *models.Video, bool) {
	for mi := range course.Modules {
		for vi := range course.Modules[mi].Videos {
			if _, done := completed[course.Modules[mi].Videos[vi].ID]; !done {
				return course.Modules[mi].ID, &course.Modules[mi].Videos[vi], true
			}
		}
	}
	return "", nil, false
}

// ProgressPercentage returns the rounded share of the course's videos that
// appear in the completed set. Completed ids that are no longer part of the
// course do not count. A course without videos is 0% by definition.
func (s *CurriculumService) ProgressPercentage(course *models.Course, completed map[string]struct{}) int {
	total := course.TotalVideos()
	if total == 0 {
		return 0
	}

	done := 0
	for _, m := range course.Modules {
		for _, v := range m.Videos {
			if _, ok := completed[v.ID]; ok {
				done++
			}
		}
	}

	return int(math.Round(float64(done) / float64(total) * 100))
}
