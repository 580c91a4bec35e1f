package file

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/akarpov/docsync/internal/apperrors"
	"github.com/akarpov/docsync/internal/models"
	"github.com/akarpov/docsync/internal/route"
	"github.com/akarpov/docsync/internal/storage"
)

// Bucket notification event kinds. Providers qualify these with a vendor
// prefix, so matching is by substring.
const (
	EventObjectCreate = "ObjectCreate"
	EventObjectDelete = "ObjectDelete"
)

// indexableExtensions is the allow-list of document types the index service
// can ingest. Everything else in the bucket is skipped.
var indexableExtensions = map[string]struct{}{
	".pdf":  {},
	".doc":  {},
	".docx": {},
	".pptx": {},
	".xls":  {},
	".xlsx": {},
	".txt":  {},
	".md":   {},
	".html": {},
	".json": {},
}

// BucketEvent is one object-level notification from the storage system.
type BucketEvent struct {
	EventType string
	Bucket    string
	Key       string
}

// EventResult summarizes what a batch of events did.
type EventResult struct {
	Created     int
	Resurrected int
	Deleted     int
	Skipped     int
}

// EventProcessor converts bucket notifications into catalog records. Events
// are idempotent: replaying a batch after a partial failure converges on the
// same catalog state.
type EventProcessor struct {
	repo     Repository
	storage  storage.ObjectStorage
	resolver *route.Resolver
	audit    AuditRecorder
}

func NewEventProcessor(repo Repository, store storage.ObjectStorage, resolver *route.Resolver, audit AuditRecorder) *EventProcessor {
	return &EventProcessor{repo: repo, storage: store, resolver: resolver, audit: audit}
}

func (p *EventProcessor) recordAudit(ctx context.Context, action string, id uuid.UUID, details map[string]interface{}) {
	if p.audit == nil {
		return
	}
	if err := p.audit.Record(ctx, action, &id, details); err != nil {
		slog.Warn("audit record failed", "action", action, "id", id, "error", err)
	}
}

// ProcessBatch handles a webhook delivery. Route lookups are memoized per
// batch (hits and misses both), since deliveries typically cover one bucket.
// A failing event aborts the batch so the sender retries the whole delivery.
func (p *EventProcessor) ProcessBatch(ctx context.Context, events []BucketEvent) (EventResult, error) {
	var res EventResult
	routes := map[string]*models.IndexRoute{}

	for _, ev := range events {
		rt, seen := routes[ev.Bucket]
		if !seen {
			var err error
			rt, err = p.resolver.ResolveBucket(ctx, ev.Bucket)
			if err != nil {
				return res, err
			}
			routes[ev.Bucket] = rt
		}
		if rt == nil {
			slog.Warn("skipping event for unmapped bucket", "bucket", ev.Bucket, "key", ev.Key)
			res.Skipped++
			continue
		}

		switch {
		case strings.Contains(ev.EventType, EventObjectCreate):
			outcome, err := p.objectCreated(ctx, rt, ev)
			if err != nil {
				return res, err
			}
			switch outcome {
			case outcomeCreated:
				res.Created++
			case outcomeResurrected:
				res.Resurrected++
			default:
				res.Skipped++
			}
		case strings.Contains(ev.EventType, EventObjectDelete):
			marked, err := p.objectDeleted(ctx, ev)
			if err != nil {
				return res, err
			}
			if marked {
				res.Deleted++
			} else {
				res.Skipped++
			}
		default:
			slog.Debug("ignoring unrecognized event type", "event_type", ev.EventType, "key", ev.Key)
			res.Skipped++
		}
	}

	return res, nil
}

type createOutcome int

const (
	outcomeSkipped createOutcome = iota
	outcomeCreated
	outcomeResurrected
)

func (p *EventProcessor) objectCreated(ctx context.Context, rt *models.IndexRoute, ev BucketEvent) (createOutcome, error) {
	if !IndexableName(ev.Key) {
		slog.Debug("skipping object with non-indexable extension", "key", ev.Key)
		return outcomeSkipped, nil
	}

	existing, err := p.repo.GetByObjectCoords(ctx, ev.Bucket, ev.Key)
	if err != nil {
		return outcomeSkipped, apperrors.Database("lookup by object coordinates", err)
	}
	if existing != nil {
		// A create event for an object mid-delete means the object was
		// re-uploaded: the live object wins and the delete is abandoned.
		// DELETING is the only state with this backward edge; a record in
		// DELETE_FAILED keeps its pending delete and the event is a no-op.
		if existing.Status == models.StatusDeleting {
			if err := p.resurrect(ctx, existing); err != nil {
				return outcomeSkipped, err
			}
			return outcomeResurrected, nil
		}
		return outcomeSkipped, nil
	}

	meta, err := p.storage.Head(ctx, ev.Bucket, ev.Key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			// Object vanished between the event and now; nothing to track.
			slog.Debug("object gone before processing create event", "bucket", ev.Bucket, "key", ev.Key)
			return outcomeSkipped, nil
		}
		return outcomeSkipped, apperrors.ExternalService("head object for create event", err, true)
	}

	rec := &models.FileRecord{
		ID:           uuid.New(),
		Name:         DisplayName(ev.Key),
		Size:         meta.Size,
		ContentType:  meta.ContentType,
		Origin:       models.OriginImported,
		Status:       models.StatusStored,
		ObjectBucket: ev.Bucket,
		ObjectKey:    ev.Key,
		ETag:         meta.ETag,
		IndexName:    rt.IndexName,
	}
	if err := p.repo.Create(ctx, rec); err != nil {
		// A concurrent delivery for the same object already inserted the
		// record; the first writer's row stands.
		if errors.Is(err, ErrDuplicate) {
			return outcomeSkipped, nil
		}
		return outcomeSkipped, apperrors.Database("create imported record", err)
	}
	slog.Info("object imported from bucket event", "id", rec.ID, "bucket", ev.Bucket, "key", ev.Key, "index", rt.IndexName)
	p.recordAudit(ctx, models.AuditFileImported, rec.ID, map[string]interface{}{
		"bucket": ev.Bucket, "key": ev.Key, "index": rt.IndexName,
	})
	return outcomeCreated, nil
}

func (p *EventProcessor) objectDeleted(ctx context.Context, ev BucketEvent) (bool, error) {
	existing, err := p.repo.GetByObjectCoords(ctx, ev.Bucket, ev.Key)
	if err != nil {
		return false, apperrors.Database("lookup by object coordinates", err)
	}
	if existing == nil || existing.Status == models.StatusDeleting {
		return false, nil
	}

	deleting := models.StatusDeleting
	objectGone := true
	if err := Transition(ctx, p.repo, existing, "mark record deleting", models.FilePatch{Status: &deleting}); err != nil {
		return false, err
	}
	if err := p.repo.PatchDelete(ctx, existing.ID, models.DeletePatch{ObjectDeleted: &objectGone}); err != nil {
		return false, apperrors.Database("record object already gone", err)
	}
	slog.Info("object delete event queued record for removal", "id", existing.ID, "bucket", ev.Bucket, "key", ev.Key)
	return true, nil
}

// resurrect rewinds a record caught mid-delete back to STORED and clears the
// delete bookkeeping so a later delete starts from scratch.
func (p *EventProcessor) resurrect(ctx context.Context, rec *models.FileRecord) error {
	stored := models.StatusStored
	if err := Transition(ctx, p.repo, rec, "resurrect record", models.FilePatch{Status: &stored}); err != nil {
		return err
	}
	pending := models.DeletePending
	no := false
	empty := ""
	patch := models.DeletePatch{Phase: &pending, IndexDeleted: &no, ObjectDeleted: &no, LastDeleteError: &empty}
	if err := p.repo.PatchDelete(ctx, rec.ID, patch); err != nil {
		return apperrors.Database("reset delete bookkeeping", err)
	}
	slog.Info("record resurrected by create event", "id", rec.ID, "key", rec.ObjectKey)
	p.recordAudit(ctx, models.AuditFileResurrected, rec.ID, map[string]interface{}{
		"bucket": rec.ObjectBucket, "key": rec.ObjectKey,
	})
	return nil
}

// IndexableName reports whether the object name carries an extension the
// index service accepts.
func IndexableName(key string) bool {
	_, ok := indexableExtensions[strings.ToLower(filepath.Ext(key))]
	return ok
}

// DisplayName strips the uuid prefix that direct uploads put in front of the
// object name, leaving bucket-native names untouched.
func DisplayName(key string) string {
	base := filepath.Base(key)
	if i := strings.IndexByte(base, ':'); i == 36 {
		return base[i+1:]
	}
	return base
}
