// Package photo provides the photo record model and the in-memory booth
// store that owns the staged slot and the placed collection.
package photo

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// DisplayDateLayout is the layout used for the human-readable capture date
// shown on the card.
const DisplayDateLayout = "Jan 2, 2006"

// Photo is a single captured photo and its booth state. Data holds the
// encoded image and is treated as immutable after creation.
type Photo struct {
	ID          string    `json:"id"`
	Data        []byte    `json:"imageData"`
	MIME        string    `json:"mime"`
	Caption     string    `json:"caption"`
	CapturedAt  time.Time `json:"capturedAt"`
	DisplayDate string    `json:"displayDate"`
	Developing  bool      `json:"developing"`
	Staged      bool      `json:"staged"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	Rotation    float64   `json:"rotation"`
}

// New creates a staged photo from encoded image data. The photo starts
// developing with an empty caption and a small random rotation.
func New(data []byte, mime string, capturedAt time.Time) *Photo {
	return &Photo{
		ID:          uuid.New().String(),
		Data:        data,
		MIME:        mime,
		CapturedAt:  capturedAt,
		DisplayDate: capturedAt.Format(DisplayDateLayout),
		Developing:  true,
		Staged:      true,
		Rotation:    RandomRotation(),
	}
}

// RandomRotation returns a small random tilt in degrees (±4°), applied once
// at creation for staged photos and again at placement.
func RandomRotation() float64 {
	return rand.Float64()*8 - 4
}

// Patch is a partial update applied by id to whichever collection currently
// holds the photo. Nil fields are left untouched.
type Patch struct {
	Caption    *string
	X          *float64
	Y          *float64
	Rotation   *float64
	Developing *bool
}

// apply copies the non-nil patch fields onto the photo.
func (p Patch) apply(ph *Photo) {
	if p.Caption != nil {
		ph.Caption = *p.Caption
	}
	if p.X != nil {
		ph.X = *p.X
	}
	if p.Y != nil {
		ph.Y = *p.Y
	}
	if p.Rotation != nil {
		ph.Rotation = *p.Rotation
	}
	if p.Developing != nil {
		ph.Developing = *p.Developing
	}
}
