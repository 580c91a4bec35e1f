package queue

// Task types for the reconciliation workers. All of them are scheduled
// periodically; payloads stay empty so a task is fully described by its type
// and dedupes under asynq's uniqueness option.
const (
	TypeUploadSync   = "file:upload_sync"
	TypeIndexingPoll = "file:indexing_poll"
	TypeDeleteSweep  = "file:delete_sweep"
	TypeStorageSweep = "file:storage_sweep"
)
