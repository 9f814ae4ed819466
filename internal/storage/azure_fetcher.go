package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// AzureDocumentFetcher retrieves documents from Azure Blob Storage.
// URLs take the form https://<account>.blob.core.windows.net/<container>/<blob>.
type AzureDocumentFetcher struct {
	client   *azblob.Client
	maxBytes int64
}

// NewAzureDocumentFetcher creates a blob fetcher with shared-key
// credentials.
func NewAzureDocumentFetcher(accountName, accountKey string, maxBytes int64) (*AzureDocumentFetcher, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, err
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, err
	}

	return &AzureDocumentFetcher{client: client, maxBytes: maxBytes}, nil
}

// IsBlobURL reports whether the URL points at an Azure blob endpoint.
func IsBlobURL(documentURL string) bool {
	parsed, err := url.Parse(documentURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(parsed.Host, ".blob.core.windows.net")
}

func (a *AzureDocumentFetcher) FetchDocument(ctx context.Context, documentURL string) ([]byte, string, error) {
	parsed, err := url.Parse(documentURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid blob URL: %w", err)
	}

	containerName, blobName, ok := strings.Cut(strings.TrimPrefix(parsed.Path, "/"), "/")
	if !ok || containerName == "" || blobName == "" {
		return nil, "", fmt.Errorf("blob URL must be /<container>/<blob>: %s", parsed.Path)
	}

	response, err := a.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		return nil, "", fmt.Errorf("blob download failed: %w", err)
	}
	body := response.Body
	defer body.Close()

	limited := io.LimitReader(body, a.maxBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read blob body: %w", err)
	}
	if int64(len(data)) > a.maxBytes {
		return nil, "", fmt.Errorf("blob exceeds %d byte limit", a.maxBytes)
	}

	contentType := ""
	if response.ContentType != nil {
		contentType = *response.ContentType
	}
	return data, contentType, nil
}
