// Package export renders a placed photo as a downloadable polaroid-framed
// image file.
package export

import (
	"fmt"
	"time"

	"github.com/h2non/bimg"

	"github.com/onnwee/polabooth/internal/photo"
)

// Config holds the rendering parameters for exported cards.
type Config struct {
	// BorderRatio is the white frame width as a fraction of the photo
	// width (e.g. 0.08 for an 8% border).
	BorderRatio float64
	// Quality for JPEG encoding (1-100).
	Quality int
}

// DefaultConfig returns the standard export framing.
func DefaultConfig() Config {
	return Config{
		BorderRatio: 0.08,
		Quality:     90,
	}
}

// Renderer frames photos for download.
type Renderer struct {
	config Config
}

// NewRenderer creates a renderer with the given config.
func NewRenderer(config Config) *Renderer {
	return &Renderer{config: config}
}

// Render embeds the photo on a white frame and encodes it as JPEG.
func (r *Renderer) Render(p photo.Photo) ([]byte, error) {
	img := bimg.NewImage(p.Data)

	metadata, err := img.Metadata()
	if err != nil {
		return nil, fmt.Errorf("failed to read photo metadata: %w", err)
	}

	border := int(float64(metadata.Size.Width) * r.config.BorderRatio)
	if border < 1 {
		border = 1
	}

	options := bimg.Options{
		Width:   metadata.Size.Width + 2*border,
		Height:  metadata.Size.Height + 2*border,
		Embed:   true,
		Extend:  bimg.ExtendWhite,
		Quality: r.config.Quality,
		Type:    bimg.JPEG,
	}

	framed, err := img.Process(options)
	if err != nil {
		return nil, fmt.Errorf("failed to frame photo: %w", err)
	}

	return framed, nil
}

// Filename returns the download filename for a photo.
func Filename(p photo.Photo) string {
	return fmt.Sprintf("polaroid-%s-%s.jpg", p.CapturedAt.Format(time.DateOnly), shortID(p.ID))
}

// shortID truncates an id for use in filenames.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
