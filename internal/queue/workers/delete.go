package workers

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/akarpov/docsync/internal/file"
	"github.com/akarpov/docsync/internal/models"
)

// DeleteWorker resumes records stuck in DELETING and retries DELETE_FAILED
// ones. The per-phase flags on the record mean a resumed delete skips
// whatever already succeeded.
type DeleteWorker struct {
	repo      file.Repository
	svc       *file.Service
	batchSize int
}

func NewDeleteWorker(repo file.Repository, svc *file.Service, batchSize int) *DeleteWorker {
	return &DeleteWorker{repo: repo, svc: svc, batchSize: batchSize}
}

func (w *DeleteWorker) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	recs, err := w.repo.ListByStatus(ctx, models.StatusDeleting, w.batchSize)
	if err != nil {
		return err
	}
	retries, err := w.repo.ListByStatus(ctx, models.StatusDeleteFailed, w.batchSize)
	if err != nil {
		return err
	}
	if len(recs)+len(retries) == 0 {
		return nil
	}

	var failed int
	for i := range recs {
		if !w.runOne(ctx, &recs[i]) {
			failed++
		}
	}
	for i := range retries {
		rec := &retries[i]
		deleting := models.StatusDeleting
		if err := file.Transition(ctx, w.repo, rec, "requeue delete", models.FilePatch{Status: &deleting}); err != nil {
			slog.Error("failed to requeue delete", "id", rec.ID, "error", err)
			failed++
			continue
		}
		if !w.runOne(ctx, rec) {
			failed++
		}
	}

	slog.Info("delete sweep pass complete", "picked", len(recs)+len(retries), "failed", failed)
	return nil
}

func (w *DeleteWorker) runOne(ctx context.Context, rec *models.FileRecord) bool {
	if err := w.svc.RunDeletePhases(ctx, rec); err != nil {
		slog.Error("delete resume failed", "id", rec.ID, "name", rec.Name, "error", err)
		return false
	}
	return true
}
