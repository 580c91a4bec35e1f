package workers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/akarpov/docsync/internal/file"
	"github.com/akarpov/docsync/internal/index"
	"github.com/akarpov/docsync/internal/models"
)

// IndexingWorker polls the content index for records stuck in INDEXING and
// settles them into a terminal state.
type IndexingWorker struct {
	repo      file.Repository
	index     index.Service
	batchSize int
}

func NewIndexingWorker(repo file.Repository, idx index.Service, batchSize int) *IndexingWorker {
	return &IndexingWorker{repo: repo, index: idx, batchSize: batchSize}
}

func (w *IndexingWorker) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	recs, err := w.repo.ListByStatus(ctx, models.StatusIndexing, w.batchSize)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}

	var settled int
	for i := range recs {
		rec := &recs[i]
		if w.pollOne(ctx, rec) {
			settled++
		}
	}

	slog.Info("indexing poll pass complete", "picked", len(recs), "settled", settled)
	return nil
}

func (w *IndexingWorker) pollOne(ctx context.Context, rec *models.FileRecord) bool {
	st, err := w.index.Status(ctx, rec.IndexName, rec.IndexFileID)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			// The index lost the file; waiting will never resolve it.
			w.fail(ctx, rec, "index: file no longer present in index")
			return true
		}
		slog.Warn("index status poll failed", "id", rec.ID, "error", err)
		return false
	}

	switch st.State {
	case index.StateCompleted:
		indexed := models.StatusIndexed
		empty := ""
		if err := file.Transition(ctx, w.repo, rec, "mark indexed", models.FilePatch{Status: &indexed, LastError: &empty}); err != nil {
			slog.Error("failed to mark record indexed", "id", rec.ID, "error", err)
			return false
		}
		slog.Info("file indexed", "id", rec.ID, "name", rec.Name)
		return true
	case index.StateFailed:
		w.fail(ctx, rec, "index: processing failed: "+st.Error)
		return true
	case index.StateCancelled:
		w.fail(ctx, rec, "index: processing cancelled")
		return true
	default:
		// Still in progress; the next pass will look again.
		return false
	}
}

func (w *IndexingWorker) fail(ctx context.Context, rec *models.FileRecord, msg string) {
	failed := models.StatusUploadFailed
	if err := file.Transition(ctx, w.repo, rec, "mark upload_failed", models.FilePatch{Status: &failed, LastError: &msg}); err != nil {
		slog.Error("failed to mark record upload_failed", "id", rec.ID, "error", err)
	}
}
