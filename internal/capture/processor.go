// Package capture turns raw camera frames into booth-ready photos: center
// crop to the card aspect ratio, mirror for the front-camera convention,
// and re-encode at the card resolution.
package capture

import (
	"fmt"

	"github.com/h2non/bimg"
)

// Config holds the output parameters for the capture pipeline.
type Config struct {
	// Width and Height of the encoded photo in pixels.
	Width  int
	Height int
	// Quality for JPEG encoding (1-100).
	Quality int
	// Mirror flips the frame horizontally before encoding.
	Mirror bool
}

// DefaultConfig returns the standard polaroid card output: 600×800 JPEG,
// mirrored.
func DefaultConfig() Config {
	return Config{
		Width:   600,
		Height:  800,
		Quality: 85,
		Mirror:  true,
	}
}

// Region is a crop rectangle within a source frame.
type Region struct {
	X, Y          int
	Width, Height int
}

// CropRegion computes the centered crop of a srcW×srcH frame matching the
// ratioW:ratioH target aspect. A frame wider than the target keeps its full
// height with the width centered; a taller frame keeps its full width with
// the height centered.
func CropRegion(srcW, srcH, ratioW, ratioH int) Region {
	if srcW <= 0 || srcH <= 0 {
		return Region{}
	}

	// Compare srcW/srcH against ratioW/ratioH without going through floats.
	if srcW*ratioH > srcH*ratioW {
		// Wider than target: height-bound crop.
		w := srcH * ratioW / ratioH
		return Region{
			X:      (srcW - w) / 2,
			Y:      0,
			Width:  w,
			Height: srcH,
		}
	}

	// Taller than (or exactly at) target: width-bound crop.
	h := srcW * ratioH / ratioW
	return Region{
		X:      0,
		Y:      (srcH - h) / 2,
		Width:  srcW,
		Height: h,
	}
}

// Processor converts raw frames into encoded booth photos.
type Processor struct {
	config Config
}

// NewProcessor creates a processor with the given output config.
func NewProcessor(config Config) *Processor {
	return &Processor{config: config}
}

// Process crops the frame to the output aspect ratio, mirrors it, resizes
// to the configured dimensions, strips metadata, and encodes as JPEG.
func (p *Processor) Process(frame []byte) ([]byte, error) {
	img := bimg.NewImage(frame)

	metadata, err := img.Metadata()
	if err != nil {
		return nil, fmt.Errorf("failed to read frame metadata: %w", err)
	}

	region := CropRegion(metadata.Size.Width, metadata.Size.Height, p.config.Width, p.config.Height)
	if region.Width == 0 || region.Height == 0 {
		return nil, fmt.Errorf("frame has no usable area (%dx%d)", metadata.Size.Width, metadata.Size.Height)
	}

	cropped, err := img.Extract(region.Y, region.X, region.Width, region.Height)
	if err != nil {
		return nil, fmt.Errorf("failed to crop frame: %w", err)
	}

	options := bimg.Options{
		Width:         p.config.Width,
		Height:        p.config.Height,
		Force:         true,
		Flop:          p.config.Mirror,
		Quality:       p.config.Quality,
		Type:          bimg.JPEG,
		StripMetadata: true,
	}

	out, err := bimg.NewImage(cropped).Process(options)
	if err != nil {
		return nil, fmt.Errorf("failed to encode photo: %w", err)
	}

	return out, nil
}
