package models

import "encoding/json"

// Video represents a single lesson video inside a module
type Video struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Description     string  `json:"description,omitempty"`
	DurationSeconds float64 `json:"durationSeconds"`
	// Source is either a playable URL or an opaque upload key that the
	// media resolver turns into a URL.
	Source      string `json:"source"`
	FreePreview bool   `json:"freePreview,omitempty"`
}

// Module represents an ordered group of videos in a course
type Module struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Videos []Video `json:"videos"`
}

// Course represents a course tree: ordered modules with ordered videos.
// Module and video order is meaningful and drives next/previous navigation.
type Course struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Modules []Module `json:"modules"`
}

// Some course API responses identify entities with "_id" instead of "id".
// Each entity is normalized to a single canonical ID at decode time so the
// rest of the engine never has to look at both fields.

func pickID(id, altID string) string {
	if id != "" {
		return id
	}
	return altID
}

// UnmarshalJSON accepts either "id" or "_id" as the video identifier
func (v *Video) UnmarshalJSON(data []byte) error {
	type alias Video
	aux := struct {
		*alias
		AltID string `json:"_id"`
	}{alias: (*alias)(v)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	v.ID = pickID(v.ID, aux.AltID)
	return nil
}

// UnmarshalJSON accepts either "id" or "_id" as the module identifier
func (m *Module) UnmarshalJSON(data []byte) error {
	type alias Module
	aux := struct {
		*alias
		AltID string `json:"_id"`
	}{alias: (*alias)(m)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.ID = pickID(m.ID, aux.AltID)
	return nil
}

// UnmarshalJSON accepts either "id" or "_id" as the course identifier
func (c *Course) UnmarshalJSON(data []byte) error {
	type alias Course
	aux := struct {
		*alias
		AltID string `json:"_id"`
	}{alias: (*alias)(c)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.ID = pickID(c.ID, aux.AltID)
	return nil
}

// TotalVideos returns the number of videos across all modules
func (c *Course) TotalVideos() int {
	total := 0
	for _, m := range c.Modules {
		total += len(m.Videos)
	}
	return total
}

// HasVideos reports whether the course has at least one playable video
func (c *Course) HasVideos() bool {
	return c.TotalVideos() > 0
}

// FindVideo locates a video by ID and returns its module ID
func (c *Course) FindVideo(videoID string) (string, *Video, bool) {
	for mi := range c.Modules {
		for vi := range c.Modules[mi].Videos {
			if c.Modules[mi].Videos[vi].ID == videoID {
				return c.Modules[mi].ID, &c.Modules[mi].Videos[vi], true
			}
		}
	}
	return "", nil, false
}
