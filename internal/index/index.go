package index

import (
	"context"
	"errors"
)

// IndexingState is the remote lifecycle of a submitted file.
type IndexingState string

const (
	StateInProgress IndexingState = "in_progress"
	StateCompleted  IndexingState = "completed"
	StateCancelled  IndexingState = "cancelled"
	StateFailed     IndexingState = "failed"
)

// FileStatus is the result of polling the index for one file.
type FileStatus struct {
	State IndexingState
	// Error carries the remote failure text for cancelled/failed states.
	Error string
}

// ErrNotFound is returned when the index has no record of the file. During
// status polling this is terminal; during deletion it means already done.
var ErrNotFound = errors.New("file not found in index")

// Service is the contract against the external content index.
type Service interface {
	// Submit uploads the artifact at path under filename into the named
	// index and returns the index's opaque file id.
	Submit(ctx context.Context, indexName, path, filename string) (string, error)
	Status(ctx context.Context, indexName, externalID string) (*FileStatus, error)
	// Delete detaches and removes the file; a missing file is not an error.
	Delete(ctx context.Context, indexName, externalID string) error
	List(ctx context.Context, indexName string) ([]string, error)
}
