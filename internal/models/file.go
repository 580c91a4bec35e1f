package models

import (
	"time"

	"github.com/google/uuid"
)

// FileStatus is the lifecycle state of a file in the storage/indexing pipeline.
//
// Normal flow: PENDING -> UPLOADING -> STORED -> INDEXING -> INDEXED.
// DELETING is reachable from any non-terminal state. The single backward edge
// is DELETING -> STORED, taken when a create event arrives for a record that
// was queued for deletion (the object demonstrably still exists).
type FileStatus string

const (
	StatusPending      FileStatus = "pending"
	StatusUploading    FileStatus = "uploading"
	StatusStored       FileStatus = "stored"
	StatusIndexing     FileStatus = "indexing"
	StatusIndexed      FileStatus = "indexed"
	StatusDeleting     FileStatus = "deleting"
	StatusUploadFailed FileStatus = "upload_failed"
	StatusDeleteFailed FileStatus = "delete_failed"
)

var fileTransitions = map[FileStatus][]FileStatus{
	StatusPending:      {StatusUploading, StatusStored, StatusUploadFailed, StatusDeleting},
	StatusUploading:    {StatusStored, StatusUploadFailed, StatusDeleting},
	StatusStored:       {StatusIndexing, StatusUploadFailed, StatusDeleting},
	StatusIndexing:     {StatusIndexed, StatusUploadFailed, StatusDeleting},
	StatusIndexed:      {StatusDeleting},
	StatusDeleting:     {StatusStored, StatusDeleteFailed},
	StatusUploadFailed: {StatusDeleting},
	StatusDeleteFailed: {StatusDeleting},
}

// CanTransition reports whether the state machine allows moving from -> to.
func CanTransition(from, to FileStatus) bool {
	for _, next := range fileTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// FileOrigin records where a file came from.
type FileOrigin string

const (
	OriginUploaded  FileOrigin = "uploaded"   // direct API upload
	OriginImported  FileOrigin = "imported"   // discovered via bucket event or sweep
	OriginIndexOnly FileOrigin = "index_only" // legacy: exists only in the index service
)

// DeletePhase tracks progress of the multi-phase delete.
type DeletePhase string

const (
	DeletePending    DeletePhase = "pending"
	DeleteInProgress DeletePhase = "in_progress"
	DeleteFailed     DeletePhase = "failed"
	DeleteDone       DeletePhase = "done"
)

// FileRecord is the catalog row for one logical document. It is the single
// durable source of truth tying together the object store coordinates and the
// index service linkage.
type FileRecord struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Size        int64      `json:"size" db:"size"`
	ContentType string     `json:"content_type" db:"content_type"`
	Origin      FileOrigin `json:"origin" db:"origin"`
	Status      FileStatus `json:"status" db:"status"`

	ObjectBucket  string `json:"object_bucket,omitempty" db:"object_bucket"`
	ObjectKey     string `json:"object_key,omitempty" db:"object_key"`
	ObjectVersion string `json:"object_version,omitempty" db:"object_version"`
	ETag          string `json:"etag,omitempty" db:"etag"`
	ContentHash   string `json:"content_hash,omitempty" db:"content_hash"`

	IndexName   string `json:"index_name" db:"index_name"`
	IndexFileID string `json:"index_file_id,omitempty" db:"index_file_id"`

	DeletePhase   DeletePhase `json:"delete_phase" db:"delete_phase"`
	IndexDeleted  bool        `json:"index_deleted" db:"index_deleted"`
	ObjectDeleted bool        `json:"object_deleted" db:"object_deleted"`

	LastError       string `json:"last_error,omitempty" db:"last_error"`
	LastDeleteError string `json:"last_delete_error,omitempty" db:"last_delete_error"`

	IsDeleted bool       `json:"is_deleted" db:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// FilePatch is a typed partial update for a FileRecord. Only lifecycle and
// external-linkage fields are mutable; identity and creation audit fields have
// no patch representation on purpose.
type FilePatch struct {
	Status        *FileStatus
	ObjectKey     *string
	ObjectVersion *string
	ETag          *string
	IndexFileID   *string
	LastError     *string
	Origin        *FileOrigin
}

// DeletePatch mutates only the delete-phase bookkeeping of a record.
type DeletePatch struct {
	Phase           *DeletePhase
	IndexDeleted    *bool
	ObjectDeleted   *bool
	LastDeleteError *string
}

// IndexRoute maps a storage bucket (or a bot identity) to the index that
// should receive its documents. At most one route may be the default.
type IndexRoute struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	IndexName string    `json:"index_name" db:"index_name"`
	BotID     string    `json:"bot_id,omitempty" db:"bot_id"`
	Bucket    string    `json:"bucket,omitempty" db:"bucket"`
	IsDefault bool      `json:"is_default" db:"is_default"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
