package transport

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	apperrors "go-ocr-extractor/internal/errors"
	"go-ocr-extractor/internal/extractor"
	"go-ocr-extractor/internal/logger"
	"go-ocr-extractor/internal/storage"
	"go-ocr-extractor/pkg/models"
)

// Config is the subset of service configuration the transport needs.
type Config struct {
	MaxUploadBytes int64
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// NewHandler builds the HTTP routing layer. blobFetcher may be nil
// when Azure credentials are not configured.
func NewHandler(svc extractor.Service, fetcher storage.DocumentFetcher, blobFetcher storage.DocumentFetcher, cfg Config) http.Handler {
	r := gin.Default()

	r.Use(requestSizeLimiter(cfg.MaxUploadBytes))

	r.GET("/health", healthCheck)
	r.POST("/extract", extractUpload(svc, cfg))
	r.POST("/extract-url", extractFromURL(svc, fetcher, blobFetcher))

	return r
}

// extractUpload accepts a multipart upload (field "file") or a raw
// binary body and runs it through the extraction pipeline.
func extractUpload(svc extractor.Service, cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"ip":     c.ClientIP(),
		}).Info("Processing extraction request")

		// Oversized payloads are rejected before any pipeline work.
		if c.Request.ContentLength > cfg.MaxUploadBytes {
			respondError(c, apperrors.NewPayloadTooLargeError(
				fmt.Sprintf("payload exceeds %d byte limit", cfg.MaxUploadBytes), nil))
			return
		}

		doc, opts, err := readUpload(c, cfg.MaxUploadBytes)
		if err != nil {
			respondError(c, err)
			return
		}

		result, err := svc.Extract(c.Request.Context(), doc, opts)
		if err != nil {
			respondFailure(c, result, err)
			return
		}
		logCompletion(c, result)
		c.JSON(http.StatusOK, models.NewExtractionResponse(result))
	}
}

// extractFromURL fetches a remote document, choosing the blob fetcher
// for Azure blob endpoints, then runs the pipeline.
func extractFromURL(svc extractor.Service, fetcher storage.DocumentFetcher, blobFetcher storage.DocumentFetcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.URLExtractionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, apperrors.NewValidationError("invalid request body", err))
			return
		}

		logger.WithFields(logrus.Fields{
			"url": req.URL,
			"ip":  c.ClientIP(),
		}).Info("Processing URL extraction request")

		f := fetcher
		if blobFetcher != nil && storage.IsBlobURL(req.URL) {
			f = blobFetcher
		}

		data, contentType, err := f.FetchDocument(c.Request.Context(), req.URL)
		if err != nil {
			respondError(c, apperrors.NewNetworkError("failed to fetch document", err))
			return
		}

		doc := models.UploadedDocument{
			Data:        data,
			ContentType: contentType,
			Size:        int64(len(data)),
		}
		opts := extractor.Options{ExpectedText: req.ExpectedText, ROI: req.ROI}

		result, err := svc.Extract(c.Request.Context(), doc, opts)
		if err != nil {
			respondFailure(c, result, err)
			return
		}
		logCompletion(c, result)
		c.JSON(http.StatusOK, models.NewExtractionResponse(result))
	}
}

// readUpload extracts the document bytes and per-request options from
// either a multipart form or a raw binary body.
func readUpload(c *gin.Context, maxBytes int64) (models.UploadedDocument, extractor.Options, error) {
	var doc models.UploadedDocument
	var opts extractor.Options

	contentType := c.ContentType()
	if strings.HasPrefix(contentType, "multipart/form-data") {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return doc, opts, wrapBodyError(err, "multipart upload requires a \"file\" field")
		}
		if fileHeader.Size > maxBytes {
			return doc, opts, apperrors.NewPayloadTooLargeError(
				fmt.Sprintf("file exceeds %d byte limit", maxBytes), nil)
		}
		file, err := fileHeader.Open()
		if err != nil {
			return doc, opts, apperrors.NewValidationError("cannot open uploaded file", err)
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return doc, opts, wrapBodyError(err, "failed to read uploaded file")
		}
		doc = models.UploadedDocument{
			Data:        data,
			ContentType: fileHeader.Header.Get("Content-Type"),
			Size:        int64(len(data)),
		}
		opts.ExpectedText = c.PostForm("expected_text")
		roi, err := parseROI(c.PostForm("roi"))
		if err != nil {
			return doc, opts, err
		}
		opts.ROI = roi
		return doc, opts, nil
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return doc, opts, wrapBodyError(err, "failed to read request body")
	}
	doc = models.UploadedDocument{
		Data:        data,
		ContentType: contentType,
		Size:        int64(len(data)),
	}
	opts.ExpectedText = c.Query("expected_text")
	roi, err := parseROI(c.Query("roi"))
	if err != nil {
		return doc, opts, err
	}
	opts.ROI = roi
	return doc, opts, nil
}

// parseROI parses "x,y,w,h".
func parseROI(value string) (*models.BoundingBox, error) {
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	if len(parts) != 4 {
		return nil, apperrors.NewValidationError("roi must be \"x,y,w,h\"", nil)
	}
	nums := make([]int, 4)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, apperrors.NewValidationError("roi must contain integers", err)
		}
		nums[i] = n
	}
	return &models.BoundingBox{X: nums[0], Y: nums[1], W: nums[2], H: nums[3]}, nil
}

// wrapBodyError maps MaxBytesReader truncation to the payload limit
// error; everything else is a validation fault.
func wrapBodyError(err error, message string) *apperrors.AppError {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return apperrors.NewPayloadTooLargeError(
			fmt.Sprintf("payload exceeds %d byte limit", maxBytesErr.Limit), err)
	}
	return apperrors.NewValidationError(message, err)
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func logCompletion(c *gin.Context, result *models.ExtractionResult) {
	logger.WithFields(logrus.Fields{
		"path":            c.Request.URL.Path,
		"status":          string(result.Status),
		"span_count":      len(result.Spans),
		"mean_confidence": result.MeanConfidence,
		"duration_ms":     result.Duration.Milliseconds(),
		"retried":         result.Retried,
	}).Info("Extraction completed")
}

// respondFailure serializes a pipeline failure: the structured result
// payload plus the taxonomy-derived HTTP status.
func respondFailure(c *gin.Context, result *models.ExtractionResult, err error) {
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": apperrors.GetStatusCode(err),
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Extraction failed")

	if result == nil {
		respondError(c, err)
		return
	}
	c.AbortWithStatusJSON(apperrors.GetStatusCode(err), models.NewExtractionResponse(result))
}

func respondError(c *gin.Context, err error) {
	code := apperrors.GetStatusCode(err)
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	message := err.Error()
	if appErr, ok := err.(*apperrors.AppError); ok {
		message = appErr.Message
	}
	c.AbortWithStatusJSON(code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
	})
}
