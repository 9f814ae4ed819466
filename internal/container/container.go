package container

import (
	"fmt"
	"net/http"

	"github.com/rs/cors"

	"go-ocr-extractor/internal/config"
	"go-ocr-extractor/internal/extractor"
	"go-ocr-extractor/internal/normalizer"
	"go-ocr-extractor/internal/ocr"
	"go-ocr-extractor/internal/pdftext"
	"go-ocr-extractor/internal/storage"
	"go-ocr-extractor/internal/transport"
)

// Container holds all application dependencies
type Container struct {
	config  *config.Config
	pool    *ocr.Pool
	engine  ocr.Engine
	service extractor.Service
	handler http.Handler
}

// NewContainer wires the dependency graph: pool → engine → pipeline →
// transport. The pool is started here and torn down in Close.
func NewContainer(cfg *config.Config) (*Container, error) {
	pool := ocr.NewPool(cfg.OCRWorkers, cfg.OCRQueueSize)
	pool.Start()

	engine := ocr.NewTesseractEngine(cfg.OCRLanguage)
	svc := extractor.New(cfg, normalizer.New(), engine, pool, pdftext.New())

	httpFetcher := storage.NewHTTPDocumentFetcher(cfg.DocumentFetchTimeout, cfg.MaxUploadBytes)

	var blobFetcher storage.DocumentFetcher
	if cfg.AzureStorageAccount != "" && cfg.AzureStorageKey != "" {
		azure, err := storage.NewAzureDocumentFetcher(cfg.AzureStorageAccount, cfg.AzureStorageKey, cfg.MaxUploadBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize blob storage: %w", err)
		}
		blobFetcher = azure
	}

	handler := transport.NewHandler(svc, httpFetcher, blobFetcher, transport.Config{
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	return &Container{
		config:  cfg,
		pool:    pool,
		engine:  engine,
		service: svc,
		handler: cors.Default().Handler(handler),
	}, nil
}

// Handler returns the fully wired HTTP handler.
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Service returns the extraction service.
func (c *Container) Service() extractor.Service {
	return c.service
}

// Close releases process-wide resources.
func (c *Container) Close() error {
	c.pool.Close()
	return c.engine.Close()
}
