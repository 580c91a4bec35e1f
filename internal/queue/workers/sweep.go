package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/time/rate"

	"github.com/akarpov/docsync/internal/file"
	"github.com/akarpov/docsync/internal/route"
	"github.com/akarpov/docsync/internal/storage"
)

// SweepWorker is the anti-entropy pass: it walks every routed bucket and
// replays what it finds as synthetic bucket events, catching notifications
// that were lost. On versioned buckets delete markers are replayed too; on
// unversioned buckets only live objects are visible, so missed deletions
// stay until the bucket gains versioning.
type SweepWorker struct {
	routes    route.Repository
	storage   storage.ObjectStorage
	processor *file.EventProcessor

	lookback  time.Duration
	batchSize int
	limiter   *rate.Limiter
}

func NewSweepWorker(
	routes route.Repository,
	store storage.ObjectStorage,
	processor *file.EventProcessor,
	lookback time.Duration,
	batchSize int,
	ratePerSec float64,
) *SweepWorker {
	return &SweepWorker{
		routes:    routes,
		storage:   store,
		processor: processor,
		lookback:  lookback,
		batchSize: batchSize,
		limiter:   rate.NewLimiter(rate.Limit(ratePerSec), 1),
	}
}

func (w *SweepWorker) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	routes, err := w.routes.List(ctx)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-w.lookback)
	seen := map[string]struct{}{}
	for _, rt := range routes {
		if rt.Bucket == "" {
			continue
		}
		if _, dup := seen[rt.Bucket]; dup {
			continue
		}
		seen[rt.Bucket] = struct{}{}

		if err := w.sweepBucket(ctx, rt.Bucket, cutoff); err != nil {
			slog.Error("bucket sweep failed", "bucket", rt.Bucket, "error", err)
		}
	}
	return nil
}

func (w *SweepWorker) sweepBucket(ctx context.Context, bucket string, cutoff time.Time) error {
	events, err := w.collectEvents(ctx, bucket, cutoff)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		slog.Info("sweep found nothing new", "bucket", bucket)
		return nil
	}

	// Batches are throttled so a large backlog does not hammer the catalog
	// and the index service all at once.
	var total file.EventResult
	for start := 0; start < len(events); start += w.batchSize {
		if err := w.limiter.Wait(ctx); err != nil {
			return err
		}
		end := start + w.batchSize
		if end > len(events) {
			end = len(events)
		}
		res, err := w.processor.ProcessBatch(ctx, events[start:end])
		if err != nil {
			return err
		}
		total.Created += res.Created
		total.Resurrected += res.Resurrected
		total.Deleted += res.Deleted
		total.Skipped += res.Skipped
	}

	slog.Info("bucket sweep complete",
		"bucket", bucket,
		"events", len(events),
		"created", total.Created,
		"resurrected", total.Resurrected,
		"deleted", total.Deleted,
		"skipped", total.Skipped,
	)
	return nil
}

func (w *SweepWorker) collectEvents(ctx context.Context, bucket string, cutoff time.Time) ([]file.BucketEvent, error) {
	versioned, err := w.storage.VersioningEnabled(ctx, bucket)
	if err != nil {
		return nil, err
	}

	var events []file.BucketEvent
	if versioned {
		versions, err := w.storage.ListVersions(ctx, bucket, "")
		if err != nil {
			return nil, err
		}
		for _, v := range versions {
			if !v.IsLatest || v.LastModified.Before(cutoff) {
				continue
			}
			et := file.EventObjectCreate
			if v.DeleteMarker {
				et = file.EventObjectDelete
			}
			events = append(events, file.BucketEvent{EventType: et, Bucket: bucket, Key: v.Key})
		}
		return events, nil
	}

	objects, err := w.storage.List(ctx, bucket, "")
	if err != nil {
		return nil, err
	}
	for _, obj := range objects {
		if obj.LastModified.Before(cutoff) {
			continue
		}
		events = append(events, file.BucketEvent{EventType: file.EventObjectCreate, Bucket: bucket, Key: obj.Key})
	}
	return events, nil
}
