package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/akarpov/docsync/internal/file"
	"github.com/akarpov/docsync/internal/models"
	"github.com/akarpov/docsync/internal/route"
	"github.com/akarpov/docsync/internal/storage"
)

type nopRepo struct{}

func (nopRepo) Create(context.Context, *models.FileRecord) error { return nil }
func (nopRepo) GetByID(context.Context, uuid.UUID) (*models.FileRecord, error) {
	return nil, nil
}
func (nopRepo) GetByContentHash(context.Context, string) (*models.FileRecord, error) {
	return nil, nil
}
func (nopRepo) GetByObjectCoords(context.Context, string, string) (*models.FileRecord, error) {
	return nil, nil
}
func (nopRepo) List(context.Context, int, int) ([]models.FileRecord, error) { return nil, nil }
func (nopRepo) ListByIndex(context.Context, string) ([]models.FileRecord, error) {
	return nil, nil
}
func (nopRepo) ListByStatus(context.Context, models.FileStatus, int) ([]models.FileRecord, error) {
	return nil, nil
}
func (nopRepo) ListAwaitingIndexUpload(context.Context, int) ([]models.FileRecord, error) {
	return nil, nil
}
func (nopRepo) Patch(context.Context, uuid.UUID, models.FilePatch) error { return nil }
func (nopRepo) PatchDelete(context.Context, uuid.UUID, models.DeletePatch) error { return nil }
func (nopRepo) Remove(context.Context, uuid.UUID) error { return nil }
func (nopRepo) StatsByIndex(context.Context, string) (map[string]int, error) { return nil, nil }

type nopStorage struct{}

func (nopStorage) Put(context.Context, string, string, io.Reader, string) (*storage.ObjectMeta, error) {
	return &storage.ObjectMeta{}, nil
}
func (nopStorage) Get(context.Context, string, string) (io.ReadCloser, error) {
	return nil, storage.ErrObjectNotFound
}
func (nopStorage) Delete(context.Context, string, string) error { return nil }
func (nopStorage) Head(context.Context, string, string) (*storage.ObjectMeta, error) {
	return nil, storage.ErrObjectNotFound
}
func (nopStorage) List(context.Context, string, string) ([]storage.ObjectInfo, error) {
	return nil, nil
}
func (nopStorage) ListVersions(context.Context, string, string) ([]storage.ObjectVersion, error) {
	return nil, nil
}
func (nopStorage) VersioningEnabled(context.Context, string) (bool, error) { return false, nil }

type nopRouteRepo struct{}

func (nopRouteRepo) GetByBucket(context.Context, string) (*models.IndexRoute, error) {
	return nil, nil
}
func (nopRouteRepo) GetByBot(context.Context, string) (*models.IndexRoute, error) { return nil, nil }
func (nopRouteRepo) GetDefault(context.Context) (*models.IndexRoute, error) { return nil, nil }
func (nopRouteRepo) List(context.Context) ([]models.IndexRoute, error) { return nil, nil }
func (nopRouteRepo) Create(context.Context, *models.IndexRoute) error { return nil }
func (nopRouteRepo) Update(context.Context, *models.IndexRoute) error { return nil }
func (nopRouteRepo) Delete(context.Context, uuid.UUID) error { return nil }
func (nopRouteRepo) SetDefault(context.Context, uuid.UUID) error { return nil }

func newEventHandler() *EventHandler {
	processor := file.NewEventProcessor(nopRepo{}, nopStorage{}, route.NewResolver(nopRouteRepo{}), nil)
	return NewEventHandler(processor)
}

func TestReceiveAcknowledgesDelivery(t *testing.T) {
	h := newEventHandler()
	body := `{"messages":[{"event_metadata":{"event_type":"yandex.cloud.events.storage.ObjectCreate"},"details":{"bucket_id":"docs","object_id":"a.pdf"}}]}`

	req := httptest.NewRequest(http.MethodPost, "/events/bucket", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.Receive(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status field = %q, want ok", resp["status"])
	}
}

func TestReceiveRejectsMalformedBody(t *testing.T) {
	h := newEventHandler()
	req := httptest.NewRequest(http.MethodPost, "/events/bucket", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	h.Receive(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "error" {
		t.Errorf("status field = %q, want error", resp["status"])
	}
}

func TestReceiveEmptyBatch(t *testing.T) {
	h := newEventHandler()
	req := httptest.NewRequest(http.MethodPost, "/events/bucket", strings.NewReader(`{"messages":[]}`))
	rr := httptest.NewRecorder()
	h.Receive(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}
