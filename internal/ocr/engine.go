package ocr

import (
	"context"

	"go-ocr-extractor/internal/normalizer"
	"go-ocr-extractor/pkg/models"
)

// Engine is the capability interface around a recognition backend.
// Implementations return spans sorted in reading order with confidence
// in [0,1]; low-confidence spans are never dropped here.
type Engine interface {
	// Recognize runs recognition over the image, optionally restricted
	// to a region of interest given in image pixel coordinates.
	Recognize(ctx context.Context, img *normalizer.NormalizedImage, roi *models.BoundingBox) ([]models.RecognizedSpan, error)

	// Close releases engine resources.
	Close() error
}
