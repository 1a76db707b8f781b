// Package service contains the business logic layer.
//
// This file implements media preparation for diagnostic submissions:
// photos are downscaled and re-encoded before being sent to the AI
// provider, which cuts upload size and token cost without losing the
// detail needed for fault identification.
package service

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

const (
	// PhotoMaxDimension bounds the longest edge of a prepared photo.
	// Appliance detail (labels, error codes, wear) survives at this size.
	PhotoMaxDimension = 1568

	// PhotoJPEGQuality is the re-encode quality for prepared photos.
	PhotoJPEGQuality = 85
)

// =============================================================================
// Interface Definition
// =============================================================================

// MediaPreparer normalizes submitted media before analysis.
type MediaPreparer interface {
	// PreparePhoto decodes an image, downscales it to fit within
	// PhotoMaxDimension on its longest edge, and re-encodes it as JPEG.
	// Returns the prepared bytes and the MIME type of the output.
	PreparePhoto(data io.Reader) ([]byte, string, error)
}

// =============================================================================
// Implementation
// =============================================================================

// imagingPreparer implements MediaPreparer using the imaging library.
type imagingPreparer struct{}

// NewImagingPreparer creates a MediaPreparer backed by the imaging library.
func NewImagingPreparer() MediaPreparer {
	return &imagingPreparer{}
}

func (p *imagingPreparer) PreparePhoto(data io.Reader) ([]byte, string, error) {
	img, _, err := image.Decode(data)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	// Fit preserves aspect ratio and never upscales smaller images.
	prepared := imaging.Fit(img, PhotoMaxDimension, PhotoMaxDimension, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, prepared, imaging.JPEG, imaging.JPEGQuality(PhotoJPEGQuality)); err != nil {
		return nil, "", fmt.Errorf("failed to encode image: %w", err)
	}

	return buf.Bytes(), "image/jpeg", nil
}
