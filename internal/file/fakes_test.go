package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/akarpov/docsync/internal/index"
	"github.com/akarpov/docsync/internal/models"
	"github.com/akarpov/docsync/internal/storage"
)

type fakeRepo struct {
	mu        sync.Mutex
	records   map[uuid.UUID]*models.FileRecord
	createErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: map[uuid.UUID]*models.FileRecord{}}
}

func (r *fakeRepo) Create(_ context.Context, rec *models.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	cp := *rec
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	if cp.DeletePhase == "" {
		cp.DeletePhase = models.DeletePending
	}
	r.records[rec.ID] = &cp
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*models.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.IsDeleted {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeRepo) GetByContentHash(_ context.Context, hash string) (*models.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if !rec.IsDeleted && rec.ContentHash == hash {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) GetByObjectCoords(_ context.Context, bucket, key string) (*models.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if !rec.IsDeleted && rec.ObjectBucket == bucket && rec.ObjectKey == key {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) List(_ context.Context, limit, offset int) ([]models.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.FileRecord
	for _, rec := range r.records {
		if !rec.IsDeleted {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListByIndex(_ context.Context, indexName string) ([]models.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.FileRecord
	for _, rec := range r.records {
		if !rec.IsDeleted && rec.IndexName == indexName {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListByStatus(_ context.Context, status models.FileStatus, limit int) ([]models.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.FileRecord
	for _, rec := range r.records {
		if !rec.IsDeleted && rec.Status == status && len(out) < limit {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListAwaitingIndexUpload(_ context.Context, limit int) ([]models.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.FileRecord
	for _, rec := range r.records {
		if !rec.IsDeleted && rec.Status == models.StatusStored &&
			rec.Origin == models.OriginImported && rec.IndexFileID == "" && len(out) < limit {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *fakeRepo) Patch(_ context.Context, id uuid.UUID, p models.FilePatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return fmt.Errorf("no record %s", id)
	}
	if p.Status != nil {
		rec.Status = *p.Status
	}
	if p.ObjectKey != nil {
		rec.ObjectKey = *p.ObjectKey
	}
	if p.ObjectVersion != nil {
		rec.ObjectVersion = *p.ObjectVersion
	}
	if p.ETag != nil {
		rec.ETag = *p.ETag
	}
	if p.IndexFileID != nil {
		rec.IndexFileID = *p.IndexFileID
	}
	if p.LastError != nil {
		rec.LastError = *p.LastError
	}
	if p.Origin != nil {
		rec.Origin = *p.Origin
	}
	rec.UpdatedAt = time.Now()
	return nil
}

func (r *fakeRepo) PatchDelete(_ context.Context, id uuid.UUID, p models.DeletePatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return fmt.Errorf("no record %s", id)
	}
	if p.Phase != nil {
		rec.DeletePhase = *p.Phase
	}
	if p.IndexDeleted != nil {
		rec.IndexDeleted = *p.IndexDeleted
	}
	if p.ObjectDeleted != nil {
		rec.ObjectDeleted = *p.ObjectDeleted
	}
	if p.LastDeleteError != nil {
		rec.LastDeleteError = *p.LastDeleteError
	}
	rec.UpdatedAt = time.Now()
	return nil
}

func (r *fakeRepo) Remove(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return fmt.Errorf("no record %s", id)
	}
	now := time.Now()
	rec.IsDeleted = true
	rec.DeletedAt = &now
	rec.DeletePhase = models.DeleteDone
	return nil
}

func (r *fakeRepo) StatsByIndex(_ context.Context, indexName string) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := map[string]int{}
	for _, rec := range r.records {
		if !rec.IsDeleted && rec.IndexName == indexName {
			stats[string(rec.Status)]++
		}
	}
	return stats, nil
}

// raw returns the stored record including soft-deleted ones.
func (r *fakeRepo) raw(id uuid.UUID) *models.FileRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil
	}
	cp := *rec
	return &cp
}

type fakeStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	meta      map[string]storage.ObjectMeta
	putErr    error
	deleteErr error
	headErr   error
	headCalls int
	versioned bool
	versions  []storage.ObjectVersion
	listing   []storage.ObjectInfo
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		objects: map[string][]byte{},
		meta:    map[string]storage.ObjectMeta{},
	}
}

func objKey(bucket, key string) string { return bucket + "/" + key }

func (s *fakeStorage) Put(_ context.Context, bucket, key string, body io.Reader, contentType string) (*storage.ObjectMeta, error) {
	if s.putErr != nil {
		return nil, s.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objKey(bucket, key)] = data
	meta := storage.ObjectMeta{Size: int64(len(data)), ContentType: contentType, ETag: "etag-" + key, VersionID: "v1"}
	s.meta[objKey(bucket, key)] = meta
	return &meta, nil
}

func (s *fakeStorage) Get(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[objKey(bucket, key)]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeStorage) Delete(_ context.Context, bucket, key string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objKey(bucket, key))
	delete(s.meta, objKey(bucket, key))
	return nil
}

func (s *fakeStorage) Head(_ context.Context, bucket, key string) (*storage.ObjectMeta, error) {
	s.mu.Lock()
	s.headCalls++
	s.mu.Unlock()
	if s.headErr != nil {
		return nil, s.headErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, ok := s.meta[objKey(bucket, key)]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return &meta, nil
}

func (s *fakeStorage) List(_ context.Context, bucket, prefix string) ([]storage.ObjectInfo, error) {
	return s.listing, nil
}

func (s *fakeStorage) ListVersions(_ context.Context, bucket, prefix string) ([]storage.ObjectVersion, error) {
	return s.versions, nil
}

func (s *fakeStorage) VersioningEnabled(_ context.Context, bucket string) (bool, error) {
	return s.versioned, nil
}

func (s *fakeStorage) seed(bucket, key, contentType string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objKey(bucket, key)] = data
	s.meta[objKey(bucket, key)] = storage.ObjectMeta{
		Size: int64(len(data)), ContentType: contentType, ETag: "etag-" + key,
	}
}

type fakeIndex struct {
	mu         sync.Mutex
	submitErr  error
	deleteErr  error
	statusErr  error
	submitted  []string
	deleted    []string
	statuses   map[string]index.FileStatus
	nextFileID int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{statuses: map[string]index.FileStatus{}}
}

func (f *fakeIndex) Submit(_ context.Context, indexName, path, filename string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.nextFileID++
	id := fmt.Sprintf("extfile-%d", f.nextFileID)
	f.submitted = append(f.submitted, filename)
	f.statuses[id] = index.FileStatus{State: index.StateInProgress}
	return id, nil
}

func (f *fakeIndex) Status(_ context.Context, indexName, externalID string) (*index.FileStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	st, ok := f.statuses[externalID]
	if !ok {
		return nil, index.ErrNotFound
	}
	cp := st
	return &cp, nil
}

func (f *fakeIndex) Delete(_ context.Context, indexName, externalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, externalID)
	delete(f.statuses, externalID)
	return nil
}

func (f *fakeIndex) List(_ context.Context, indexName string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id := range f.statuses {
		ids = append(ids, id)
	}
	return ids, nil
}

// passConverter returns the input untouched.
type passConverter struct {
	err error
}

func (c passConverter) Convert(_ context.Context, path, filename string) (string, string, error) {
	if c.err != nil {
		return "", "", c.err
	}
	return path, filename, nil
}

type fakeRouteRepo struct {
	byBucket map[string]*models.IndexRoute
	byBot    map[string]*models.IndexRoute
	def      *models.IndexRoute
	calls    int
}

func (r *fakeRouteRepo) GetByBucket(_ context.Context, bucket string) (*models.IndexRoute, error) {
	r.calls++
	return r.byBucket[bucket], nil
}

func (r *fakeRouteRepo) GetByBot(_ context.Context, botID string) (*models.IndexRoute, error) {
	r.calls++
	return r.byBot[botID], nil
}

func (r *fakeRouteRepo) GetDefault(_ context.Context) (*models.IndexRoute, error) {
	r.calls++
	return r.def, nil
}

func (r *fakeRouteRepo) List(_ context.Context) ([]models.IndexRoute, error) {
	var out []models.IndexRoute
	seen := map[uuid.UUID]bool{}
	add := func(rt *models.IndexRoute) {
		if rt != nil && !seen[rt.ID] {
			seen[rt.ID] = true
			out = append(out, *rt)
		}
	}
	for _, rt := range r.byBucket {
		add(rt)
	}
	for _, rt := range r.byBot {
		add(rt)
	}
	add(r.def)
	return out, nil
}

func (r *fakeRouteRepo) Create(_ context.Context, rt *models.IndexRoute) error {
	return errors.New("not implemented")
}

func (r *fakeRouteRepo) Update(_ context.Context, rt *models.IndexRoute) error {
	return errors.New("not implemented")
}

func (r *fakeRouteRepo) Delete(_ context.Context, id uuid.UUID) error {
	return errors.New("not implemented")
}

func (r *fakeRouteRepo) SetDefault(_ context.Context, id uuid.UUID) error {
	return errors.New("not implemented")
}
