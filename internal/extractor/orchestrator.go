package extractor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"go-ocr-extractor/internal/accuracy"
	"go-ocr-extractor/internal/config"
	apperrors "go-ocr-extractor/internal/errors"
	"go-ocr-extractor/internal/logger"
	"go-ocr-extractor/internal/normalizer"
	"go-ocr-extractor/internal/ocr"
	"go-ocr-extractor/internal/pdftext"
	"go-ocr-extractor/pkg/models"
)

// retryScale is the resolution reduction applied to the single retry
// after an engine timeout.
const retryScale = 0.5

// Options carries per-request extraction parameters.
type Options struct {
	// ROI restricts recognition to a region in normalized-image pixel
	// coordinates.
	ROI *models.BoundingBox

	// ExpectedText enables accuracy scoring of the extracted text.
	ExpectedText string
}

// Service runs the extraction pipeline for one uploaded document.
// Every error it returns is an *errors.AppError from the taxonomy; the
// returned result is always non-nil so failures still serialize.
type Service interface {
	Extract(ctx context.Context, doc models.UploadedDocument, opts Options) (*models.ExtractionResult, error)
}

// pipeline states, logged per transition.
type state string

const (
	stateReceived    state = "received"
	stateNormalizing state = "normalizing"
	stateRecognizing state = "recognizing"
	stateAssembled   state = "assembled"
	stateFailed      state = "failed"
)

type orchestrator struct {
	cfg        *config.Config
	normalizer normalizer.Normalizer
	engine     ocr.Engine
	pool       *ocr.Pool
	pdf        pdftext.Extractor
}

// New wires the pipeline components into a Service.
func New(cfg *config.Config, n normalizer.Normalizer, engine ocr.Engine, pool *ocr.Pool, pdf pdftext.Extractor) Service {
	return &orchestrator{
		cfg:        cfg,
		normalizer: n,
		engine:     engine,
		pool:       pool,
		pdf:        pdf,
	}
}

func (o *orchestrator) Extract(ctx context.Context, doc models.UploadedDocument, opts Options) (*models.ExtractionResult, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
	defer cancel()

	log := logger.WithFields(logrus.Fields{
		"content_type": doc.ContentType,
		"size_bytes":   doc.Size,
	})
	o.transition(log, stateReceived)

	if isPDF(doc) {
		return o.extractPDF(log, doc, opts, start)
	}

	o.transition(log, stateNormalizing)
	img, err := o.normalizer.Normalize(doc.Data, doc.ContentType)
	if err != nil {
		return o.fail(log, start, err)
	}

	o.transition(log, stateRecognizing)
	spans, err := o.recognize(ctx, img, opts.ROI)

	retried := false
	if err != nil && apperrors.IsType(err, apperrors.ErrorTypeEngineTimeout) {
		// One retry at reduced resolution, then give up.
		retried = true
		log.WithField("scale", retryScale).Warn("Engine timeout, retrying at reduced resolution")

		reduced := img.Downscale(retryScale)
		spans, err = o.recognize(ctx, reduced, scaleROI(opts.ROI, retryScale))
		if err == nil {
			spans = rescaleSpans(spans, 1/retryScale, img.Width, img.Height)
		} else if apperrors.IsType(err, apperrors.ErrorTypeEngineTimeout) {
			o.transition(log, stateFailed)
			return &models.ExtractionResult{
				Status:   models.StatusPartialFailure,
				Spans:    []models.RecognizedSpan{},
				Duration: time.Since(start),
				Retried:  true,
				Message:  "recognition timed out after reduced-resolution retry",
			}, nil
		}
	}
	if err != nil {
		return o.fail(log, start, err)
	}

	result := o.assemble(spans, opts.ExpectedText, start)
	result.Retried = retried
	o.transition(log, stateAssembled)
	return result, nil
}

// extractPDF handles documents with a native text layer; no OCR engine
// invocation takes place.
func (o *orchestrator) extractPDF(log *logrus.Entry, doc models.UploadedDocument, opts Options, start time.Time) (*models.ExtractionResult, error) {
	o.transition(log, stateNormalizing)
	spans, err := o.pdf.Extract(doc.Data)
	if err != nil {
		return o.fail(log, start, err)
	}
	if len(spans) == 0 {
		return o.fail(log, start, apperrors.NewDecodeError(
			"PDF has no extractable text layer; upload a rasterized page image instead", nil))
	}
	result := o.assemble(spans, opts.ExpectedText, start)
	o.transition(log, stateAssembled)
	return result, nil
}

// recognize runs one engine call through the bounded pool with the
// engine-level timeout. On deadline the in-flight native call is
// abandoned: it runs to completion on its worker and the result is
// discarded.
func (o *orchestrator) recognize(ctx context.Context, img *normalizer.NormalizedImage, roi *models.BoundingBox) ([]models.RecognizedSpan, error) {
	engCtx, cancel := context.WithTimeout(ctx, o.cfg.EngineTimeout)
	defer cancel()

	type outcome struct {
		spans []models.RecognizedSpan
		err   error
	}
	done := make(chan outcome, 1)

	if err := o.pool.TrySubmit(func() {
		spans, err := o.engine.Recognize(engCtx, img, roi)
		done <- outcome{spans: spans, err: err}
	}); err != nil {
		return nil, apperrors.NewSaturatedError("recognition pool at capacity", err)
	}

	select {
	case out := <-done:
		if out.err != nil {
			return nil, toAppError(out.err)
		}
		return out.spans, nil
	case <-engCtx.Done():
		return nil, apperrors.NewEngineTimeoutError("recognition exceeded engine timeout", engCtx.Err())
	}
}

// assemble filters by the configured confidence threshold, reindexes
// reading order and computes aggregates.
func (o *orchestrator) assemble(spans []models.RecognizedSpan, expectedText string, start time.Time) *models.ExtractionResult {
	kept := spans[:0:0]
	for _, s := range spans {
		if s.Confidence >= o.cfg.ConfidenceThreshold {
			kept = append(kept, s)
		}
	}
	for i := range kept {
		kept[i].Order = i
	}
	if kept == nil {
		kept = []models.RecognizedSpan{}
	}

	result := &models.ExtractionResult{
		Status:         models.StatusSuccess,
		Spans:          kept,
		MeanConfidence: models.MeanConfidenceOf(kept),
		Duration:       time.Since(start),
	}
	if expectedText != "" {
		result.Accuracy = accuracy.Score(expectedText, joinSpanText(kept))
	}
	return result
}

func (o *orchestrator) fail(log *logrus.Entry, start time.Time, err error) (*models.ExtractionResult, error) {
	appErr := toAppError(err)
	o.transition(log.WithError(appErr), stateFailed)
	return &models.ExtractionResult{
		Status:   models.StatusFailure,
		Spans:    []models.RecognizedSpan{},
		Duration: time.Since(start),
		Message:  appErr.Message,
	}, appErr
}

func (o *orchestrator) transition(log *logrus.Entry, s state) {
	log.WithField("state", string(s)).Debug("Pipeline state transition")
}

// toAppError maps any error to exactly one taxonomy member; nothing
// else crosses the orchestrator boundary.
func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewEngineTimeoutError("recognition exceeded deadline", err)
	}
	return apperrors.NewInternalError("unexpected pipeline failure", err)
}

func isPDF(doc models.UploadedDocument) bool {
	ct := strings.ToLower(strings.TrimSpace(doc.ContentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "application/pdf" {
		return true
	}
	return (ct == "" || ct == "application/octet-stream") && bytes.HasPrefix(doc.Data, []byte("%PDF-"))
}

// scaleROI maps a region of interest into the reduced-resolution
// coordinate space.
func scaleROI(roi *models.BoundingBox, factor float64) *models.BoundingBox {
	if roi == nil {
		return nil
	}
	scaled := models.BoundingBox{
		X: int(float64(roi.X) * factor),
		Y: int(float64(roi.Y) * factor),
		W: int(float64(roi.W) * factor),
		H: int(float64(roi.H) * factor),
	}
	if scaled.W < 1 {
		scaled.W = 1
	}
	if scaled.H < 1 {
		scaled.H = 1
	}
	return &scaled
}

// rescaleSpans maps retry spans back to full-resolution coordinates so
// the response is consistent regardless of the retry.
func rescaleSpans(spans []models.RecognizedSpan, factor float64, width, height int) []models.RecognizedSpan {
	out := make([]models.RecognizedSpan, len(spans))
	for i, s := range spans {
		b := models.BoundingBox{
			X: int(float64(s.BBox.X) * factor),
			Y: int(float64(s.BBox.Y) * factor),
			W: int(float64(s.BBox.W) * factor),
			H: int(float64(s.BBox.H) * factor),
		}
		if b.X+b.W > width {
			b.W = width - b.X
		}
		if b.Y+b.H > height {
			b.H = height - b.Y
		}
		s.BBox = b
		out[i] = s
	}
	return out
}

func joinSpanText(spans []models.RecognizedSpan) string {
	parts := make([]string, len(spans))
	for i, s := range spans {
		parts[i] = s.Text
	}
	return strings.Join(parts, " ")
}
