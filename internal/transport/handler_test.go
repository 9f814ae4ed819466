package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "go-ocr-extractor/internal/errors"
	"go-ocr-extractor/internal/extractor"
	"go-ocr-extractor/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeService struct {
	result   *models.ExtractionResult
	err      error
	calls    int
	lastDoc  models.UploadedDocument
	lastOpts extractor.Options
}

func (f *fakeService) Extract(ctx context.Context, doc models.UploadedDocument, opts extractor.Options) (*models.ExtractionResult, error) {
	f.calls++
	f.lastDoc = doc
	f.lastOpts = opts
	return f.result, f.err
}

type fakeFetcher struct {
	data        []byte
	contentType string
	err         error
	lastURL     string
}

func (f *fakeFetcher) FetchDocument(ctx context.Context, documentURL string) ([]byte, string, error) {
	f.lastURL = documentURL
	return f.data, f.contentType, f.err
}

func successResult() *models.ExtractionResult {
	return &models.ExtractionResult{
		Status: models.StatusSuccess,
		Spans: []models.RecognizedSpan{
			{Text: "hello", BBox: models.BoundingBox{X: 1, Y: 2, W: 3, H: 4}, Confidence: 0.9, Order: 0},
		},
		MeanConfidence: 0.9,
		Duration:       120 * time.Millisecond,
	}
}

func newTestHandler(svc extractor.Service, maxBytes int64) http.Handler {
	return NewHandler(svc, &fakeFetcher{}, nil, Config{MaxUploadBytes: maxBytes})
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) models.ExtractionResponse {
	t.Helper()
	var resp models.ExtractionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthCheck(t *testing.T) {
	handler := newTestHandler(&fakeService{result: successResult()}, 1024)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "available")
}

func TestExtract_RawUpload(t *testing.T) {
	svc := &fakeService{result: successResult()}
	handler := newTestHandler(svc, 1024*1024)

	req := httptest.NewRequest(http.MethodPost, "/extract", bytes.NewReader([]byte("fake png bytes")))
	req.Header.Set("Content-Type", "image/png")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, models.StatusSuccess, resp.Status)
	assert.Equal(t, int64(120), resp.DurationMS)
	require.Len(t, resp.Spans, 1)
	assert.Equal(t, "hello", resp.Spans[0].Text)

	assert.Equal(t, 1, svc.calls)
	assert.Equal(t, "image/png", svc.lastDoc.ContentType)
	assert.Equal(t, int64(14), svc.lastDoc.Size)
}

func TestExtract_OversizedPayloadRejectedBeforePipeline(t *testing.T) {
	svc := &fakeService{result: successResult()}
	handler := newTestHandler(svc, 10)

	body := bytes.Repeat([]byte("x"), 100)
	req := httptest.NewRequest(http.MethodPost, "/extract", bytes.NewReader(body))
	req.Header.Set("Content-Type", "image/png")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, 0, svc.calls, "pipeline must not run for oversized uploads")
}

func TestExtract_MultipartUpload(t *testing.T) {
	svc := &fakeService{result: successResult()}
	handler := newTestHandler(svc, 1024*1024)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "scan.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("fake image bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("expected_text", "hello world"))
	require.NoError(t, writer.WriteField("roi", "1,2,30,40"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/extract", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.calls)
	assert.Equal(t, "hello world", svc.lastOpts.ExpectedText)
	require.NotNil(t, svc.lastOpts.ROI)
	assert.Equal(t, models.BoundingBox{X: 1, Y: 2, W: 30, H: 40}, *svc.lastOpts.ROI)
	assert.Equal(t, int64(16), svc.lastDoc.Size)
}

func TestExtract_MultipartMissingFile(t *testing.T) {
	svc := &fakeService{result: successResult()}
	handler := newTestHandler(svc, 1024)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("expected_text", "x"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/extract", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, svc.calls)
}

func TestExtract_MalformedROI(t *testing.T) {
	svc := &fakeService{result: successResult()}
	handler := newTestHandler(svc, 1024)

	req := httptest.NewRequest(http.MethodPost, "/extract?roi=1,2,three,4", strings.NewReader("data"))
	req.Header.Set("Content-Type", "image/png")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, svc.calls)
}

func TestExtract_PipelineFailureMapsStatusCode(t *testing.T) {
	svc := &fakeService{
		result: &models.ExtractionResult{
			Status:  models.StatusFailure,
			Spans:   []models.RecognizedSpan{},
			Message: "unsupported content type: text/plain",
		},
		err: apperrors.NewUnsupportedFormatError("unsupported content type: text/plain", nil),
	}
	handler := newTestHandler(svc, 1024)

	req := httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader("some text"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, models.StatusFailure, resp.Status)
	assert.Empty(t, resp.Spans)
	assert.NotEmpty(t, resp.Message)
}

func TestExtract_PartialFailureReturnsOK(t *testing.T) {
	svc := &fakeService{
		result: &models.ExtractionResult{
			Status:  models.StatusPartialFailure,
			Spans:   []models.RecognizedSpan{},
			Retried: true,
			Message: "recognition timed out after reduced-resolution retry",
		},
	}
	handler := newTestHandler(svc, 1024)

	req := httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader("img"))
	req.Header.Set("Content-Type", "image/png")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, models.StatusPartialFailure, resp.Status)
	assert.True(t, resp.Retried)
}

func TestExtractURL_Success(t *testing.T) {
	svc := &fakeService{result: successResult()}
	fetcher := &fakeFetcher{data: []byte("remote bytes"), contentType: "image/jpeg"}
	handler := NewHandler(svc, fetcher, nil, Config{MaxUploadBytes: 1024})

	body := `{"url":"http://example.com/scan.jpg","expected_text":"hi"}`
	req := httptest.NewRequest(http.MethodPost, "/extract-url", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://example.com/scan.jpg", fetcher.lastURL)
	assert.Equal(t, "image/jpeg", svc.lastDoc.ContentType)
	assert.Equal(t, "hi", svc.lastOpts.ExpectedText)
}

func TestExtractURL_InvalidBody(t *testing.T) {
	svc := &fakeService{result: successResult()}
	handler := newTestHandler(svc, 1024)

	req := httptest.NewRequest(http.MethodPost, "/extract-url", strings.NewReader(`{"url":"not a url"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, svc.calls)
}

func TestExtractURL_FetchFailure(t *testing.T) {
	svc := &fakeService{result: successResult()}
	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	handler := NewHandler(svc, fetcher, nil, Config{MaxUploadBytes: 1024})

	body := `{"url":"http://example.com/scan.jpg"}`
	req := httptest.NewRequest(http.MethodPost, "/extract-url", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, 0, svc.calls)
}

func TestParseROI(t *testing.T) {
	roi, err := parseROI("10, 20, 30, 40")
	require.NoError(t, err)
	assert.Equal(t, &models.BoundingBox{X: 10, Y: 20, W: 30, H: 40}, roi)

	roi, err = parseROI("")
	require.NoError(t, err)
	assert.Nil(t, roi)

	_, err = parseROI("1,2,3")
	assert.Error(t, err)
}
