package models

// ExtractionResponse is the wire shape returned by the extraction
// endpoints.
type ExtractionResponse struct {
	Status         Status           `json:"status"`
	MeanConfidence float64          `json:"mean_confidence"`
	DurationMS     int64            `json:"duration_ms"`
	Spans          []RecognizedSpan `json:"spans"`
	Retried        bool             `json:"retried"`
	Message        string           `json:"message,omitempty"`
	Accuracy       *AccuracyReport  `json:"accuracy,omitempty"`
}

// URLExtractionRequest is the body of POST /extract-url.
type URLExtractionRequest struct {
	URL          string       `json:"url" binding:"required,url"`
	ExpectedText string       `json:"expected_text,omitempty"`
	ROI          *BoundingBox `json:"roi,omitempty"`
}

// NewExtractionResponse converts an ExtractionResult to its wire shape.
func NewExtractionResponse(result *ExtractionResult) *ExtractionResponse {
	spans := result.Spans
	if spans == nil {
		spans = []RecognizedSpan{}
	}
	return &ExtractionResponse{
		Status:         result.Status,
		MeanConfidence: result.MeanConfidence,
		DurationMS:     result.Duration.Milliseconds(),
		Spans:          spans,
		Retried:        result.Retried,
		Message:        result.Message,
		Accuracy:       result.Accuracy,
	}
}
