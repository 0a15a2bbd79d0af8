package capture

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

// makeJPEG encodes a solid-color JPEG of the given dimensions for use as a
// synthetic camera frame.
func makeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fill := color.RGBA{R: 200, G: 120, B: 80, A: 255}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fill)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("Failed to encode test frame: %v", err)
	}
	return buf.Bytes()
}

func TestCropRegion(t *testing.T) {
	tests := []struct {
		name       string
		srcW, srcH int
		want       Region
	}{
		{
			// Landscape webcam frame: full height, width centered
			name: "wider_than_target",
			srcW: 1280, srcH: 720,
			want: Region{X: 370, Y: 0, Width: 540, Height: 720},
		},
		{
			// Tall frame: full width, height centered
			name: "taller_than_target",
			srcW: 600, srcH: 1200,
			want: Region{X: 0, Y: 200, Width: 600, Height: 800},
		},
		{
			name: "exact_aspect",
			srcW: 600, srcH: 800,
			want: Region{X: 0, Y: 0, Width: 600, Height: 800},
		},
		{
			name: "square_frame",
			srcW: 1000, srcH: 1000,
			want: Region{X: 125, Y: 0, Width: 750, Height: 1000},
		},
		{
			name: "tiny_frame",
			srcW: 3, srcH: 4,
			want: Region{X: 0, Y: 0, Width: 3, Height: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CropRegion(tt.srcW, tt.srcH, 3, 4)
			if got != tt.want {
				t.Errorf("CropRegion(%d, %d) = %+v, want %+v", tt.srcW, tt.srcH, got, tt.want)
			}
		})
	}
}

func TestCropRegion_ZeroInput(t *testing.T) {
	if got := CropRegion(0, 720, 3, 4); got != (Region{}) {
		t.Errorf("Expected empty region for zero width, got %+v", got)
	}
	if got := CropRegion(1280, 0, 3, 4); got != (Region{}) {
		t.Errorf("Expected empty region for zero height, got %+v", got)
	}
}

func TestCropRegion_Centered(t *testing.T) {
	// Crop margins must be symmetric (within integer rounding)
	region := CropRegion(1920, 1080, 3, 4)
	left := region.X
	right := 1920 - region.X - region.Width
	if diff := left - right; diff < -1 || diff > 1 {
		t.Errorf("Crop not centered: left margin %d, right margin %d", left, right)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Width != 600 || config.Height != 800 {
		t.Errorf("Expected 600x800 output, got %dx%d", config.Width, config.Height)
	}
	if config.Quality != 85 {
		t.Errorf("Expected default quality 85, got %d", config.Quality)
	}
	if !config.Mirror {
		t.Error("Expected mirroring on by default")
	}
}

func TestProcessor_Process(t *testing.T) {
	tests := []struct {
		name       string
		srcW, srcH int
	}{
		{"landscape_frame", 1280, 720},
		{"portrait_frame", 480, 800},
		{"exact_aspect_frame", 600, 800},
	}

	processor := NewProcessor(DefaultConfig())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := makeJPEG(t, tt.srcW, tt.srcH)

			out, err := processor.Process(frame)
			if err != nil {
				t.Fatalf("Process failed: %v", err)
			}
			if len(out) == 0 {
				t.Fatal("Processed photo is empty")
			}

			// Output must always be a JPEG at the configured card size
			cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
			if err != nil {
				t.Fatalf("Output is not a decodable JPEG: %v", err)
			}
			if cfg.Width != 600 || cfg.Height != 800 {
				t.Errorf("Expected 600x800 output, got %dx%d", cfg.Width, cfg.Height)
			}
		})
	}
}

func TestProcessor_Process_InvalidFrame(t *testing.T) {
	processor := NewProcessor(DefaultConfig())

	if _, err := processor.Process([]byte("not an image")); err == nil {
		t.Error("Expected error for invalid frame data, got nil")
	}
}
