package ocr

import (
	"bytes"
	"context"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"

	apperrors "go-ocr-extractor/internal/errors"
	"go-ocr-extractor/internal/normalizer"
	"go-ocr-extractor/pkg/models"
)

// tesseractEngine recognizes text through the native Tesseract library.
// A fresh gosseract client is created per call: clients are not
// goroutine-safe and engine state must stay per-call.
type tesseractEngine struct {
	language string
}

// NewTesseractEngine creates a Tesseract-backed Engine for the given
// language pack (e.g. "eng").
func NewTesseractEngine(language string) Engine {
	if language == "" {
		language = "eng"
	}
	return &tesseractEngine{language: language}
}

func (t *tesseractEngine) Recognize(ctx context.Context, img *normalizer.NormalizedImage, roi *models.BoundingBox) ([]models.RecognizedSpan, error) {
	if img == nil || img.Raster == nil {
		return nil, apperrors.NewEngineError("nil image passed to recognition engine", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewEngineTimeoutError("recognition not started before deadline", err)
	}

	raster := img.Raster
	offsetX, offsetY := 0, 0
	if roi != nil {
		crop, err := cropROI(raster, *roi, img.Width, img.Height)
		if err != nil {
			return nil, err
		}
		raster = crop
		offsetX, offsetY = roi.X, roi.Y
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, raster); err != nil {
		return nil, apperrors.NewEngineError("failed to encode raster for engine", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.language); err != nil {
		return nil, apperrors.NewEngineError("failed to set engine language", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, apperrors.NewEngineError("failed to load image into engine", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, apperrors.NewEngineError("recognition failed", err)
	}

	spans := make([]models.RecognizedSpan, 0, len(boxes))
	for _, b := range boxes {
		if b.Word == "" {
			continue
		}
		spans = append(spans, models.RecognizedSpan{
			Text:       b.Word,
			BBox:       clampBox(b.Box, offsetX, offsetY, img.Width, img.Height),
			Confidence: clampConfidence(b.Confidence / 100),
		})
	}
	return sortReadingOrder(spans), nil
}

func (t *tesseractEngine) Close() error {
	return nil
}

// cropROI extracts the region of interest, validating it against image
// bounds.
func cropROI(raster *image.Gray, roi models.BoundingBox, width, height int) (*image.Gray, error) {
	if roi.W <= 0 || roi.H <= 0 || !roi.Within(width, height) {
		return nil, apperrors.NewValidationError("region of interest outside image bounds", nil)
	}
	sub := raster.SubImage(image.Rect(roi.X, roi.Y, roi.X+roi.W, roi.Y+roi.H)).(*image.Gray)

	// Re-anchor at the origin so the engine sees a standalone image.
	dst := image.NewGray(image.Rect(0, 0, roi.W, roi.H))
	for y := 0; y < roi.H; y++ {
		srcRow := sub.Pix[(y+roi.Y-sub.Rect.Min.Y)*sub.Stride+(roi.X-sub.Rect.Min.X):]
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+roi.W], srcRow[:roi.W])
	}
	return dst, nil
}

// clampBox converts an engine rectangle (relative to the possibly
// cropped input) back to full-image coordinates and clamps it inside
// the image.
func clampBox(r image.Rectangle, offsetX, offsetY, width, height int) models.BoundingBox {
	x := r.Min.X + offsetX
	y := r.Min.Y + offsetY
	w := r.Dx()
	h := r.Dy()
	if x < 0 {
		w += x
		x = 0
	}
	if y < 0 {
		h += y
		y = 0
	}
	if x+w > width {
		w = width - x
	}
	if y+h > height {
		h = height - y
	}
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return models.BoundingBox{X: x, Y: y, W: w, H: h}
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
