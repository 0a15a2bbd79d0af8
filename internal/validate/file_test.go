package validate

import (
	"errors"
	"testing"
)

func TestMIMEType(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"jpeg", "image/jpeg", "image/jpeg", nil},
		{"png", "image/png", "image/png", nil},
		{"webp", "image/webp", "image/webp", nil},
		{"uppercase normalized", "IMAGE/JPEG", "image/jpeg", nil},
		{"whitespace trimmed", "  image/png  ", "image/png", nil},
		{"gif rejected", "image/gif", "", ErrInvalidMIMEType},
		{"video rejected", "video/mp4", "", ErrInvalidMIMEType},
		{"empty", "", "", ErrEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MIMEType(tt.input, AllowedFrameTypes)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFileSize(t *testing.T) {
	constraints := FileConstraints{MaxSizeBytes: 1000, MinSizeBytes: 10}

	if err := FileSize(500, constraints); err != nil {
		t.Errorf("Expected 500 bytes to be valid, got %v", err)
	}
	if err := FileSize(1001, constraints); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("Expected ErrFileTooLarge, got %v", err)
	}
	if err := FileSize(5, constraints); !errors.Is(err, ErrFileTooSmall) {
		t.Errorf("Expected ErrFileTooSmall, got %v", err)
	}
	if err := FileSize(0, constraints); err == nil {
		t.Error("Expected error for zero size")
	}
}

func TestFrameUpload(t *testing.T) {
	maxSize := int64(15 * 1024 * 1024)

	t.Run("valid frame", func(t *testing.T) {
		got, err := FrameUpload("image/jpeg", 250_000, maxSize)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if got != "image/jpeg" {
			t.Errorf("Expected image/jpeg, got %q", got)
		}
	})

	t.Run("oversize frame", func(t *testing.T) {
		_, err := FrameUpload("image/jpeg", maxSize+1, maxSize)
		if !errors.Is(err, ErrFileTooLarge) {
			t.Errorf("Expected ErrFileTooLarge, got %v", err)
		}
	})

	t.Run("disallowed type", func(t *testing.T) {
		_, err := FrameUpload("application/pdf", 1000, maxSize)
		if !errors.Is(err, ErrInvalidMIMEType) {
			t.Errorf("Expected ErrInvalidMIMEType, got %v", err)
		}
	})
}
