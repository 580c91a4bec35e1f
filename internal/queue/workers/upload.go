package workers

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/akarpov/docsync/internal/file"
)

// UploadWorker pushes bucket-discovered records into the content index. The
// event processor leaves imported objects in STORED; this worker picks them
// up in small batches and submits each one independently.
type UploadWorker struct {
	repo      file.Repository
	svc       *file.Service
	batchSize int
}

func NewUploadWorker(repo file.Repository, svc *file.Service, batchSize int) *UploadWorker {
	return &UploadWorker{repo: repo, svc: svc, batchSize: batchSize}
}

func (w *UploadWorker) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	recs, err := w.repo.ListAwaitingIndexUpload(ctx, w.batchSize)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}

	var failed int
	for i := range recs {
		rec := &recs[i]
		if err := w.svc.SyncImported(ctx, rec); err != nil {
			// The record carries the error; keep going with the rest
			// of the batch.
			slog.Error("index submission failed", "id", rec.ID, "name", rec.Name, "error", err)
			failed++
			continue
		}
		slog.Info("imported file submitted to index", "id", rec.ID, "name", rec.Name, "index", rec.IndexName)
	}

	slog.Info("upload sync pass complete", "picked", len(recs), "failed", failed)
	return nil
}
