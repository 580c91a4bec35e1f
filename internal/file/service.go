package file

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/akarpov/docsync/internal/apperrors"
	"github.com/akarpov/docsync/internal/convert"
	"github.com/akarpov/docsync/internal/index"
	"github.com/akarpov/docsync/internal/models"
	"github.com/akarpov/docsync/internal/route"
	"github.com/akarpov/docsync/internal/storage"
)

// AuditRecorder appends one action to the audit trail.
type AuditRecorder interface {
	Record(ctx context.Context, action string, fileID *uuid.UUID, details map[string]interface{}) error
}

// Service drives the direct-upload pipeline and the resumable delete. Every
// external call's outcome is persisted before the next step runs, so a crash
// leaves a record the reconciliation workers can finish from.
type Service struct {
	repo      Repository
	storage   storage.ObjectStorage
	index     index.Service
	converter convert.Converter
	resolver  *route.Resolver
	audit     AuditRecorder

	bucket      string
	maxFileSize int64
	scratchDir  string
}

func NewService(
	repo Repository,
	store storage.ObjectStorage,
	idx index.Service,
	conv convert.Converter,
	resolver *route.Resolver,
	audit AuditRecorder,
	bucket string,
	maxFileSize int64,
	scratchDir string,
) *Service {
	return &Service{
		repo:        repo,
		storage:     store,
		index:       idx,
		converter:   conv,
		resolver:    resolver,
		audit:       audit,
		bucket:      bucket,
		maxFileSize: maxFileSize,
		scratchDir:  scratchDir,
	}
}

// UploadRequest describes one direct upload.
type UploadRequest struct {
	Name        string
	ContentType string
	Data        io.Reader
	BotID       string
}

// Create runs the full ingestion pipeline: spool+hash, dedup, route, catalog
// row, object upload, convert, index submission. The record advances
// PENDING -> UPLOADING -> STORED -> INDEXING; any failure after row creation
// marks it UPLOAD_FAILED with a step-qualified error and returns the error.
func (s *Service) Create(ctx context.Context, req UploadRequest) (rec *models.FileRecord, err error) {
	name := req.Name
	if name == "" {
		name = "file.unknown"
	}

	scratch, size, hash, err := s.spoolToScratch(req.Data)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rmErr := os.Remove(scratch); rmErr != nil && !os.IsNotExist(rmErr) {
			slog.Warn("failed to remove scratch file", "path", scratch, "error", rmErr)
		}
	}()

	existing, err := s.repo.GetByContentHash(ctx, hash)
	if err != nil {
		return nil, apperrors.Database("dedup lookup failed", err)
	}
	if existing != nil {
		slog.Info("upload rejected, identical content already ingested", "name", name, "hash", hash, "existing_id", existing.ID)
		return nil, apperrors.DuplicateContent("file with the same content already exists")
	}

	rt, err := s.resolver.ResolveUpload(ctx, req.BotID)
	if err != nil {
		return nil, err
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	rec = &models.FileRecord{
		ID:           uuid.New(),
		Name:         name,
		Size:         size,
		ContentType:  contentType,
		Origin:       models.OriginUploaded,
		Status:       models.StatusPending,
		ObjectBucket: s.bucket,
		ContentHash:  hash,
		IndexName:    rt.IndexName,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		// Two in-flight uploads with the same bytes can both pass the dedup
		// lookup; the partial unique index breaks the tie.
		if errors.Is(err, ErrDuplicate) {
			return nil, apperrors.DuplicateContent("file with the same content already exists")
		}
		return nil, apperrors.Database("create file record", err)
	}

	// rec is the named return; the failure branches below return nil, which
	// would zero it before the defer runs, so capture the created record.
	created := rec
	defer func() {
		if err != nil {
			s.markUploadFailed(ctx, created, err)
		}
	}()

	if err = s.uploadObject(ctx, rec, scratch, name, contentType); err != nil {
		return nil, err
	}
	if err = s.submitToIndex(ctx, rec, scratch, name); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, models.AuditFileCreated, rec.ID, map[string]interface{}{
		"name": name, "size": size, "hash": hash, "index": rt.IndexName,
	})
	return s.refresh(ctx, rec)
}

func (s *Service) uploadObject(ctx context.Context, rec *models.FileRecord, scratch, name, contentType string) error {
	key := ObjectKey(rec.ID, name)

	uploading := models.StatusUploading
	if err := Transition(ctx, s.repo, rec, "advance to uploading", models.FilePatch{Status: &uploading, ObjectKey: &key}); err != nil {
		return err
	}

	src, err := os.Open(scratch)
	if err != nil {
		return fmt.Errorf("store: reopen scratch: %w", err)
	}
	defer src.Close()

	meta, err := s.storage.Put(ctx, s.bucket, key, src, contentType)
	if err != nil {
		return apperrors.ExternalService("store: upload to object storage", err, true)
	}

	stored := models.StatusStored
	patch := models.FilePatch{Status: &stored, ETag: &meta.ETag, ObjectVersion: &meta.VersionID}
	if err := Transition(ctx, s.repo, rec, "advance to stored", patch); err != nil {
		return err
	}
	rec.ObjectKey = key
	return nil
}

func (s *Service) submitToIndex(ctx context.Context, rec *models.FileRecord, scratch, name string) error {
	artifactPath, artifactName, err := s.converter.Convert(ctx, scratch, name)
	if err != nil {
		return apperrors.ExternalService("convert: normalize document", err, false)
	}
	if artifactPath != scratch {
		defer os.Remove(artifactPath)
	}

	externalID, err := s.index.Submit(ctx, rec.IndexName, artifactPath, artifactName)
	if err != nil {
		return apperrors.ExternalService("index: submit document", err, index.IsRateLimited(err))
	}

	indexing := models.StatusIndexing
	if err := Transition(ctx, s.repo, rec, "advance to indexing", models.FilePatch{Status: &indexing, IndexFileID: &externalID}); err != nil {
		return err
	}
	return nil
}

// SyncImported pushes a bucket-discovered record into the index: the object
// is pulled down to scratch, normalized, and submitted. Used by the upload
// worker for records the event processor created in STORED.
func (s *Service) SyncImported(ctx context.Context, rec *models.FileRecord) (err error) {
	defer func() {
		if err != nil {
			s.markUploadFailed(ctx, rec, err)
		}
	}()

	body, err := s.storage.Get(ctx, rec.ObjectBucket, rec.ObjectKey)
	if err != nil {
		return apperrors.ExternalService("sync: download object", err, true)
	}
	defer body.Close()

	tmp, err := os.CreateTemp(s.scratchDir, "sync-*")
	if err != nil {
		return fmt.Errorf("sync: create scratch file: %w", err)
	}
	scratch := tmp.Name()
	defer os.Remove(scratch)

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("sync: spool object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("sync: close scratch file: %w", err)
	}

	return s.submitToIndex(ctx, rec, scratch, rec.Name)
}

// Delete runs the three-phase delete inline. Each phase persists its outcome
// independently, so re-invoking after a failure resumes from the first
// incomplete phase and never repeats completed work.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return apperrors.Database("load file record", err)
	}
	if rec == nil {
		return apperrors.NotFound(fmt.Sprintf("file not found: %s", id))
	}

	if rec.Status != models.StatusDeleting {
		deleting := models.StatusDeleting
		if err := Transition(ctx, s.repo, rec, "mark deleting", models.FilePatch{Status: &deleting}); err != nil {
			return err
		}
	}
	inProgress := models.DeleteInProgress
	if err := s.repo.PatchDelete(ctx, id, models.DeletePatch{Phase: &inProgress}); err != nil {
		return apperrors.Database("mark delete in progress", err)
	}

	return s.RunDeletePhases(ctx, rec)
}

// RunDeletePhases executes the index / object / catalog phases against an
// already-DELETING record. Shared with the delete worker.
func (s *Service) RunDeletePhases(ctx context.Context, rec *models.FileRecord) error {
	if !rec.IndexDeleted && rec.IndexFileID != "" {
		if err := s.index.Delete(ctx, rec.IndexName, rec.IndexFileID); err != nil {
			s.markDeleteFailed(ctx, rec, "index", err)
			return apperrors.ExternalService("delete: index detach", err, true)
		}
		done := true
		if err := s.repo.PatchDelete(ctx, rec.ID, models.DeletePatch{IndexDeleted: &done}); err != nil {
			return apperrors.Database("persist index deletion", err)
		}
	}

	if !rec.ObjectDeleted && rec.ObjectBucket != "" && rec.ObjectKey != "" {
		if err := s.storage.Delete(ctx, rec.ObjectBucket, rec.ObjectKey); err != nil {
			s.markDeleteFailed(ctx, rec, "object", err)
			return apperrors.ExternalService("delete: object removal", err, true)
		}
		done := true
		if err := s.repo.PatchDelete(ctx, rec.ID, models.DeletePatch{ObjectDeleted: &done}); err != nil {
			return apperrors.Database("persist object deletion", err)
		}
	}

	if err := s.repo.Remove(ctx, rec.ID); err != nil {
		s.markDeleteFailed(ctx, rec, "catalog", err)
		return apperrors.Database("remove file record", err)
	}

	slog.Info("file deleted", "id", rec.ID, "name", rec.Name, "object_key", rec.ObjectKey)
	s.recordAudit(ctx, models.AuditFileDeleted, rec.ID, map[string]interface{}{
		"name": rec.Name, "object_key": rec.ObjectKey,
	})
	return nil
}

// recordAudit never fails the surrounding operation; a lost audit entry is
// logged and tolerated.
func (s *Service) recordAudit(ctx context.Context, action string, id uuid.UUID, details map[string]interface{}) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, action, &id, details); err != nil {
		slog.Warn("audit record failed", "action", action, "id", id, "error", err)
	}
}

// Download streams the object's bytes along with the catalog record.
func (s *Service) Download(ctx context.Context, id uuid.UUID) (io.ReadCloser, *models.FileRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, apperrors.Database("load file record", err)
	}
	if rec == nil {
		return nil, nil, apperrors.NotFound(fmt.Sprintf("file not found: %s", id))
	}
	if rec.ObjectBucket == "" || rec.ObjectKey == "" {
		return nil, nil, apperrors.NotFound("file not available for download")
	}

	body, err := s.storage.Get(ctx, rec.ObjectBucket, rec.ObjectKey)
	if err != nil {
		return nil, nil, apperrors.ExternalService("download from object storage", err, true)
	}
	return body, rec, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.FileRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database("load file record", err)
	}
	if rec == nil {
		return nil, apperrors.NotFound(fmt.Sprintf("file not found: %s", id))
	}
	return rec, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]models.FileRecord, error) {
	recs, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.Database("list file records", err)
	}
	return recs, nil
}

func (s *Service) ListByIndex(ctx context.Context, indexName string) ([]models.FileRecord, error) {
	recs, err := s.repo.ListByIndex(ctx, indexName)
	if err != nil {
		return nil, apperrors.Database("list file records", err)
	}
	return recs, nil
}

func (s *Service) StatsByIndex(ctx context.Context, indexName string) (map[string]int, error) {
	stats, err := s.repo.StatsByIndex(ctx, indexName)
	if err != nil {
		return nil, apperrors.Database("file stats", err)
	}
	return stats, nil
}

// spoolToScratch streams the upload to a scratch file while hashing, keeping
// memory use independent of file size. Exceeding the limit aborts the copy.
func (s *Service) spoolToScratch(data io.Reader) (path string, size int64, hash string, err error) {
	tmp, err := os.CreateTemp(s.scratchDir, "upload-*")
	if err != nil {
		return "", 0, "", fmt.Errorf("create scratch file: %w", err)
	}
	defer func() {
		tmp.Close()
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	hasher := sha256.New()
	size, err = io.Copy(io.MultiWriter(tmp, hasher), io.LimitReader(data, s.maxFileSize+1))
	if err != nil {
		return "", 0, "", fmt.Errorf("spool upload: %w", err)
	}
	if size > s.maxFileSize {
		return "", 0, "", apperrors.PayloadTooLarge(fmt.Sprintf("file exceeds the %d byte limit", s.maxFileSize))
	}
	if err = tmp.Sync(); err != nil {
		return "", 0, "", fmt.Errorf("sync scratch file: %w", err)
	}

	return tmp.Name(), size, hex.EncodeToString(hasher.Sum(nil)), nil
}

func (s *Service) markUploadFailed(ctx context.Context, rec *models.FileRecord, cause error) {
	failed := models.StatusUploadFailed
	msg := cause.Error()
	if err := Transition(ctx, s.repo, rec, "mark upload_failed", models.FilePatch{Status: &failed, LastError: &msg}); err != nil {
		slog.Error("failed to mark record upload_failed", "id", rec.ID, "error", err)
	}
}

func (s *Service) markDeleteFailed(ctx context.Context, rec *models.FileRecord, phase string, cause error) {
	failed := models.DeleteFailed
	status := models.StatusDeleteFailed
	msg := fmt.Sprintf("%s: %v", phase, cause)
	if err := s.repo.PatchDelete(ctx, rec.ID, models.DeletePatch{Phase: &failed, LastDeleteError: &msg}); err != nil {
		slog.Error("failed to mark delete phase failed", "id", rec.ID, "error", err)
		return
	}
	if err := Transition(ctx, s.repo, rec, "mark delete_failed", models.FilePatch{Status: &status}); err != nil {
		slog.Error("failed to mark record delete_failed", "id", rec.ID, "error", err)
	}
	s.recordAudit(ctx, models.AuditFileDeleteFailed, rec.ID, map[string]interface{}{"phase": phase, "error": cause.Error()})
}

func (s *Service) refresh(ctx context.Context, rec *models.FileRecord) (*models.FileRecord, error) {
	fresh, err := s.repo.GetByID(ctx, rec.ID)
	if err != nil {
		return nil, apperrors.Database("reload file record", err)
	}
	if fresh == nil {
		return rec, nil
	}
	return fresh, nil
}

// ObjectKey builds the collision-free object key for a record: the uuid
// namespaces the sanitized display name.
func ObjectKey(id uuid.UUID, name string) string {
	safe := path.Base(filepath.ToSlash(name))
	safe = strings.ReplaceAll(safe, "\\", "_")
	if safe == "." || safe == "/" || safe == "" {
		safe = "file"
	}
	return fmt.Sprintf("%s:%s", id, safe)
}
