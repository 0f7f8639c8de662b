package annotations

import (
	"fmt"
	"time"
)

// Set groups every annotation a user attached to one document. The gateway
// passes sets through to the configured annotation-store plugin unchanged;
// geometry interpretation is a viewer concern.
type Set struct {
	Notes      []Note      `json:"notes" bson:"notes"`
	Highlights []Highlight `json:"highlights" bson:"highlights"`
}

// Note is a positional sticky note on a single page.
type Note struct {
	ID        string    `json:"id" bson:"id"`
	Page      int       `json:"page" bson:"page"`
	X         float64   `json:"x" bson:"x"`
	Y         float64   `json:"y" bson:"y"`
	Width     float64   `json:"width" bson:"width"`
	Height    float64   `json:"height" bson:"height"`
	Content   string    `json:"content" bson:"content"`
	Color     string    `json:"color" bson:"color"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Highlight marks one or more rectangles on a page.
type Highlight struct {
	ID        string    `json:"id" bson:"id"`
	Page      int       `json:"page" bson:"page"`
	Rects     []Rect    `json:"rects" bson:"rects"`
	Color     string    `json:"color" bson:"color"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

type Rect struct {
	X      float64 `json:"x" bson:"x"`
	Y      float64 `json:"y" bson:"y"`
	Width  float64 `json:"width" bson:"width"`
	Height float64 `json:"height" bson:"height"`
}

// NewSet returns an empty set with non-nil slices so it serializes as
// empty arrays rather than nulls.
func NewSet() *Set {
	return &Set{Notes: []Note{}, Highlights: []Highlight{}}
}

// Validate rejects structurally broken sets before they reach a store.
// A highlight without rectangles has no geometry and cannot be rendered.
func (s *Set) Validate() error {
	for i, h := range s.Highlights {
		if len(h.Rects) == 0 {
			return fmt.Errorf("highlight %d (%q): rects must be non-empty", i, h.ID)
		}
	}
	return nil
}

// Empty reports whether the set carries no annotations at all.
func (s *Set) Empty() bool {
	return len(s.Notes) == 0 && len(s.Highlights) == 0
}
