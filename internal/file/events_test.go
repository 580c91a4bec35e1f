package file

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/akarpov/docsync/internal/models"
	"github.com/akarpov/docsync/internal/route"
)

func newTestProcessor(routes *fakeRouteRepo, repo *fakeRepo, store *fakeStorage) *EventProcessor {
	return NewEventProcessor(repo, store, route.NewResolver(routes), nil)
}

func mappedRoutes(bucket string) *fakeRouteRepo {
	return &fakeRouteRepo{
		byBucket: map[string]*models.IndexRoute{
			bucket: {ID: uuid.New(), IndexName: "vs-" + bucket, Bucket: bucket},
		},
	}
}

func TestCreateEventImportsObject(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStorage()
	store.seed("docs", "guide.pdf", "application/pdf", []byte("pdf"))
	p := newTestProcessor(mappedRoutes("docs"), repo, store)

	res, err := p.ProcessBatch(context.Background(), []BucketEvent{
		{EventType: "yandex.cloud.events.storage.ObjectCreate", Bucket: "docs", Key: "guide.pdf"},
	})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if res.Created != 1 {
		t.Fatalf("created = %d, want 1", res.Created)
	}

	rec, _ := repo.GetByObjectCoords(context.Background(), "docs", "guide.pdf")
	if rec == nil {
		t.Fatal("expected an imported record")
	}
	if rec.Status != models.StatusStored {
		t.Errorf("status = %s, want %s", rec.Status, models.StatusStored)
	}
	if rec.Origin != models.OriginImported {
		t.Errorf("origin = %s, want %s", rec.Origin, models.OriginImported)
	}
	if rec.IndexName != "vs-docs" {
		t.Errorf("index = %s, want vs-docs", rec.IndexName)
	}
	if rec.Size != 3 {
		t.Errorf("size = %d, want 3", rec.Size)
	}
}

func TestCreateEventIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStorage()
	store.seed("docs", "guide.pdf", "application/pdf", []byte("pdf"))
	p := newTestProcessor(mappedRoutes("docs"), repo, store)

	ev := BucketEvent{EventType: "ObjectCreate", Bucket: "docs", Key: "guide.pdf"}
	for i := 0; i < 2; i++ {
		if _, err := p.ProcessBatch(context.Background(), []BucketEvent{ev}); err != nil {
			t.Fatalf("ProcessBatch #%d: %v", i+1, err)
		}
	}

	recs, _ := repo.List(context.Background(), 100, 0)
	if len(recs) != 1 {
		t.Fatalf("records = %d, want exactly 1", len(recs))
	}
}

func TestBatchMemoizesRouteLookups(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStorage()
	routes := mappedRoutes("docs")
	for _, key := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		store.seed("docs", key, "application/pdf", []byte("x"))
	}
	p := newTestProcessor(routes, repo, store)

	events := []BucketEvent{
		{EventType: "ObjectCreate", Bucket: "docs", Key: "a.pdf"},
		{EventType: "ObjectCreate", Bucket: "docs", Key: "b.pdf"},
		{EventType: "ObjectCreate", Bucket: "unmapped", Key: "c.pdf"},
		{EventType: "ObjectCreate", Bucket: "unmapped", Key: "d.pdf"},
		{EventType: "ObjectCreate", Bucket: "docs", Key: "c.pdf"},
	}
	if _, err := p.ProcessBatch(context.Background(), events); err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}

	// Two distinct buckets, two lookups. Misses are cached too.
	if routes.calls != 2 {
		t.Errorf("route lookups = %d, want 2", routes.calls)
	}
}

func TestCreateEventSkipsNonIndexableExtension(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStorage()
	store.seed("docs", "backup.tar.gz", "application/gzip", []byte("x"))
	p := newTestProcessor(mappedRoutes("docs"), repo, store)

	res, err := p.ProcessBatch(context.Background(), []BucketEvent{
		{EventType: "ObjectCreate", Bucket: "docs", Key: "backup.tar.gz"},
	})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if res.Skipped != 1 || res.Created != 0 {
		t.Errorf("result = %+v, want one skip", res)
	}
	if store.headCalls != 0 {
		t.Error("skipped objects should not be headed")
	}
}

func TestCreateEventResurrectsDeletingRecord(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStorage()
	store.seed("docs", "guide.pdf", "application/pdf", []byte("pdf"))
	p := newTestProcessor(mappedRoutes("docs"), repo, store)

	rec := &models.FileRecord{
		ID:           uuid.New(),
		Name:         "guide.pdf",
		Status:       models.StatusDeleting,
		Origin:       models.OriginImported,
		ObjectBucket: "docs",
		ObjectKey:    "guide.pdf",
		IndexName:    "vs-docs",
		IndexDeleted: true,
	}
	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	res, err := p.ProcessBatch(context.Background(), []BucketEvent{
		{EventType: "ObjectCreate", Bucket: "docs", Key: "guide.pdf"},
	})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if res.Resurrected != 1 {
		t.Fatalf("resurrected = %d, want 1", res.Resurrected)
	}

	got := repo.raw(rec.ID)
	if got.Status != models.StatusStored {
		t.Errorf("status = %s, want %s", got.Status, models.StatusStored)
	}
	if got.IndexDeleted || got.ObjectDeleted {
		t.Error("delete flags should be cleared on resurrection")
	}
	if got.DeletePhase != models.DeletePending {
		t.Errorf("delete phase = %s, want %s", got.DeletePhase, models.DeletePending)
	}
}

func TestCreateEventLeavesDeleteFailedRecordAlone(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStorage()
	store.seed("docs", "guide.pdf", "application/pdf", []byte("pdf"))
	p := newTestProcessor(mappedRoutes("docs"), repo, store)

	rec := &models.FileRecord{
		ID:              uuid.New(),
		Name:            "guide.pdf",
		Status:          models.StatusDeleteFailed,
		Origin:          models.OriginImported,
		ObjectBucket:    "docs",
		ObjectKey:       "guide.pdf",
		IndexName:       "vs-docs",
		DeletePhase:     models.DeleteFailed,
		IndexDeleted:    true,
		LastDeleteError: "object: connection reset",
	}
	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	res, err := p.ProcessBatch(context.Background(), []BucketEvent{
		{EventType: "ObjectCreate", Bucket: "docs", Key: "guide.pdf"},
	})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if res.Resurrected != 0 || res.Skipped != 1 {
		t.Fatalf("result = %+v, want one skip and no resurrection", res)
	}

	// Resurrection applies to DELETING only; a failed delete keeps its
	// pending removal.
	got := repo.raw(rec.ID)
	if got.Status != models.StatusDeleteFailed {
		t.Errorf("status = %s, want %s", got.Status, models.StatusDeleteFailed)
	}
	if !got.IndexDeleted || got.DeletePhase != models.DeleteFailed {
		t.Error("delete bookkeeping must not be reset")
	}
}

func TestCreateEventInsertRaceIsSkipped(t *testing.T) {
	repo := newFakeRepo()
	repo.createErr = ErrDuplicate
	store := newFakeStorage()
	store.seed("docs", "guide.pdf", "application/pdf", []byte("pdf"))
	p := newTestProcessor(mappedRoutes("docs"), repo, store)

	res, err := p.ProcessBatch(context.Background(), []BucketEvent{
		{EventType: "ObjectCreate", Bucket: "docs", Key: "guide.pdf"},
	})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if res.Skipped != 1 || res.Created != 0 {
		t.Errorf("result = %+v, want one skip", res)
	}
}

func TestUnmappedBucketSkipIsWarned(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	repo := newFakeRepo()
	p := newTestProcessor(mappedRoutes("docs"), repo, newFakeStorage())

	res, err := p.ProcessBatch(context.Background(), []BucketEvent{
		{EventType: "ObjectCreate", Bucket: "strays", Key: "a.pdf"},
	})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if res.Skipped != 1 {
		t.Fatalf("result = %+v, want one skip", res)
	}
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "unmapped bucket") {
		t.Errorf("log output %q should warn about the unmapped bucket", out)
	}
}

func TestDeleteEventMarksRecordDeleting(t *testing.T) {
	repo := newFakeRepo()
	store := newFakeStorage()
	p := newTestProcessor(mappedRoutes("docs"), repo, store)

	rec := &models.FileRecord{
		ID:           uuid.New(),
		Name:         "guide.pdf",
		Status:       models.StatusIndexed,
		ObjectBucket: "docs",
		ObjectKey:    "guide.pdf",
	}
	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	res, err := p.ProcessBatch(context.Background(), []BucketEvent{
		{EventType: "yandex.cloud.events.storage.ObjectDelete", Bucket: "docs", Key: "guide.pdf"},
	})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if res.Deleted != 1 {
		t.Fatalf("deleted = %d, want 1", res.Deleted)
	}

	got := repo.raw(rec.ID)
	if got.Status != models.StatusDeleting {
		t.Errorf("status = %s, want %s", got.Status, models.StatusDeleting)
	}
	if !got.ObjectDeleted {
		t.Error("object deletion should be recorded, the object is already gone")
	}
}

func TestDeleteEventWithoutRecordIsNoop(t *testing.T) {
	repo := newFakeRepo()
	p := newTestProcessor(mappedRoutes("docs"), repo, newFakeStorage())

	res, err := p.ProcessBatch(context.Background(), []BucketEvent{
		{EventType: "ObjectDelete", Bucket: "docs", Key: "never-seen.pdf"},
	})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if res.Skipped != 1 {
		t.Errorf("result = %+v, want one skip", res)
	}
}

func TestCreateEventObjectAlreadyGone(t *testing.T) {
	repo := newFakeRepo()
	p := newTestProcessor(mappedRoutes("docs"), repo, newFakeStorage())

	res, err := p.ProcessBatch(context.Background(), []BucketEvent{
		{EventType: "ObjectCreate", Bucket: "docs", Key: "vanished.pdf"},
	})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if res.Skipped != 1 || res.Created != 0 {
		t.Errorf("result = %+v, want one skip", res)
	}
}

func TestDisplayName(t *testing.T) {
	id := uuid.New()
	cases := map[string]string{
		id.String() + ":report.pdf": "report.pdf",
		"plain-object.pdf":          "plain-object.pdf",
		"nested/dir/file.txt":       "file.txt",
	}
	for in, want := range cases {
		if got := DisplayName(in); got != want {
			t.Errorf("DisplayName(%q) = %q, want %q", in, got, want)
		}
	}
}
