package models

import "time"

// Status describes the terminal outcome of one extraction request.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusPartialFailure Status = "partial_failure"
	StatusFailure        Status = "failure"
)

// UploadedDocument is the raw payload received from a client. It is
// immutable for the lifetime of one request and discarded afterwards.
type UploadedDocument struct {
	Data        []byte
	ContentType string
	Size        int64
}

// BoundingBox locates a recognized span in normalized-image pixel
// coordinates. Origin is the top-left corner of the image.
type BoundingBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Within reports whether the box is non-negative and fully contained
// in a width x height image.
func (b BoundingBox) Within(width, height int) bool {
	return b.X >= 0 && b.Y >= 0 && b.W >= 0 && b.H >= 0 &&
		b.X+b.W <= width && b.Y+b.H <= height
}

// RecognizedSpan is a single unit of recognized text with its position,
// confidence in [0,1] and zero-based reading-order index.
type RecognizedSpan struct {
	Text       string      `json:"text"`
	BBox       BoundingBox `json:"bbox"`
	Confidence float64     `json:"confidence"`
	Order      int         `json:"order"`
}

// AccuracyReport compares extracted text against caller-supplied
// expected text.
type AccuracyReport struct {
	WER        float64 `json:"wer"`
	CER        float64 `json:"cer"`
	MatchScore float64 `json:"match_score"`
}

// ExtractionResult is the assembled outcome of one pipeline run. Spans
// are ordered by reading order. A Failure result carries no spans.
type ExtractionResult struct {
	Status         Status
	Spans          []RecognizedSpan
	MeanConfidence float64
	Duration       time.Duration
	Retried        bool
	Message        string
	Accuracy       *AccuracyReport
}

// MeanConfidenceOf computes the arithmetic mean confidence over spans,
// or 0 when there are none.
func MeanConfidenceOf(spans []RecognizedSpan) float64 {
	if len(spans) == 0 {
		return 0
	}
	var total float64
	for _, s := range spans {
		total += s.Confidence
	}
	return total / float64(len(spans))
}
