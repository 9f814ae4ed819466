package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DocumentFetcher retrieves a document's raw bytes and content type
// from a remote location.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, documentURL string) ([]byte, string, error)
}

const fetchAttempts = 3

// HTTPDocumentFetcher fetches documents over HTTP with bounded retry
// on transient failures.
type HTTPDocumentFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPDocumentFetcher creates an HTTP fetcher. maxBytes bounds the
// downloaded payload the same way uploads are bounded.
func NewHTTPDocumentFetcher(timeout time.Duration, maxBytes int64) *HTTPDocumentFetcher {
	transport := &http.Transport{
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &HTTPDocumentFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
		maxBytes: maxBytes,
	}
}

// FetchDocument downloads the document. 4xx responses are not retried;
// 5xx responses and transport errors are retried up to three attempts.
func (h *HTTPDocumentFetcher) FetchDocument(ctx context.Context, documentURL string) ([]byte, string, error) {
	var lastErr error

	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, "", ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, documentURL, nil)
		if err != nil {
			return nil, "", fmt.Errorf("invalid URL: %w", err)
		}
		req.Header.Set("Accept", "image/*, application/pdf, */*")
		req.Header.Set("User-Agent", "Go-OCR-Extractor/1.0")

		resp, err := h.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		data, contentType, err := readResponse(resp, h.maxBytes)
		if err == nil {
			return data, contentType, nil
		}
		lastErr = err

		// 4xx client errors are non-retryable.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			break
		}
	}
	return nil, "", fmt.Errorf("failed to fetch document after %d attempts: %w", fetchAttempts, lastErr)
}

func readResponse(resp *http.Response, maxBytes int64) ([]byte, string, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, "", fmt.Errorf("client error: status code %d", resp.StatusCode)
		}
		return nil, "", fmt.Errorf("server error: status code %d", resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, maxBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read document body: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, "", fmt.Errorf("document exceeds %d byte limit", maxBytes)
	}
	return data, resp.Header.Get("Content-Type"), nil
}
