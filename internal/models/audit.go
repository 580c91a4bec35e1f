package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Audit actions recorded by the file service.
const (
	AuditFileCreated      = "file.created"
	AuditFileImported     = "file.imported"
	AuditFileResurrected  = "file.resurrected"
	AuditFileDeleted      = "file.deleted"
	AuditFileDeleteFailed = "file.delete_failed"
)

type AuditLog struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	Action    string          `json:"action" db:"action"`
	FileID    *uuid.UUID      `json:"file_id,omitempty" db:"file_id"`
	Details   json.RawMessage `json:"details" db:"details"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
