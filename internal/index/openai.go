package index

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIIndex implements Service on top of OpenAI vector stores. The index
// name is a vector store id; the external file id is the uploaded file id,
// which doubles as the vector-store file id.
type OpenAIIndex struct {
	client *openai.Client
}

func NewOpenAIIndex(apiKey string, timeout time.Duration) *OpenAIIndex {
	cfg := openai.DefaultConfig(apiKey)
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &OpenAIIndex{client: openai.NewClientWithConfig(cfg)}
}

// NewOpenAIIndexWithClient wraps an existing client, mainly for tests.
func NewOpenAIIndexWithClient(client *openai.Client) *OpenAIIndex {
	return &OpenAIIndex{client: client}
}

func (o *OpenAIIndex) Submit(ctx context.Context, indexName, path, filename string) (string, error) {
	file, err := o.client.CreateFile(ctx, openai.FileRequest{
		FileName: filename,
		FilePath: path,
		Purpose:  string(openai.PurposeAssistants),
	})
	if err != nil {
		return "", fmt.Errorf("upload file to index: %w", err)
	}

	_, err = o.client.CreateVectorStoreFile(ctx, indexName, openai.VectorStoreFileRequest{
		FileID: file.ID,
	})
	if err != nil {
		return "", fmt.Errorf("attach file %s to vector store %s: %w", file.ID, indexName, err)
	}

	return file.ID, nil
}

func (o *OpenAIIndex) Status(ctx context.Context, indexName, externalID string) (*FileStatus, error) {
	vsFile, err := o.client.RetrieveVectorStoreFile(ctx, indexName, externalID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("retrieve vector store file %s: %w", externalID, err)
	}

	status := &FileStatus{State: IndexingState(vsFile.Status)}
	if status.State == StateCancelled || status.State == StateFailed {
		status.Error = fmt.Sprintf("index reported status %s for %s", vsFile.Status, externalID)
	}
	return status, nil
}

func (o *OpenAIIndex) Delete(ctx context.Context, indexName, externalID string) error {
	if err := o.client.DeleteVectorStoreFile(ctx, indexName, externalID); err != nil && !isNotFound(err) {
		return fmt.Errorf("detach vector store file %s: %w", externalID, err)
	}
	if err := o.client.DeleteFile(ctx, externalID); err != nil && !isNotFound(err) {
		return fmt.Errorf("delete index file %s: %w", externalID, err)
	}
	return nil
}

func (o *OpenAIIndex) List(ctx context.Context, indexName string) ([]string, error) {
	resp, err := o.client.ListVectorStoreFiles(ctx, indexName, openai.Pagination{})
	if err != nil {
		return nil, fmt.Errorf("list vector store files %s: %w", indexName, err)
	}

	ids := make([]string, 0, len(resp.VectorStoreFiles))
	for _, f := range resp.VectorStoreFiles {
		ids = append(ids, f.ID)
	}
	return ids, nil
}

func isNotFound(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusNotFound
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusNotFound
	}
	return false
}

// IsRateLimited reports whether the remote rejected the call with a rate
// limit or transient server error; callers leave those for the next pass.
func IsRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	return false
}
