package file

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akarpov/docsync/internal/models"
)

// ErrDuplicate is returned by Create when a live record already holds the
// same content hash or object coordinates. The partial unique indexes raise
// it for races the read-then-insert path cannot see.
var ErrDuplicate = errors.New("duplicate file record")

// Repository is the catalog access layer for file records. Lookups return
// (nil, nil) when no live record matches. Mutations go through the typed
// patch structs; there is no free-form update.
type Repository interface {
	Create(ctx context.Context, rec *models.FileRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.FileRecord, error)
	GetByContentHash(ctx context.Context, hash string) (*models.FileRecord, error)
	GetByObjectCoords(ctx context.Context, bucket, key string) (*models.FileRecord, error)
	List(ctx context.Context, limit, offset int) ([]models.FileRecord, error)
	ListByIndex(ctx context.Context, indexName string) ([]models.FileRecord, error)
	ListByStatus(ctx context.Context, status models.FileStatus, limit int) ([]models.FileRecord, error)
	ListAwaitingIndexUpload(ctx context.Context, limit int) ([]models.FileRecord, error)
	Patch(ctx context.Context, id uuid.UUID, p models.FilePatch) error
	PatchDelete(ctx context.Context, id uuid.UUID, p models.DeletePatch) error
	Remove(ctx context.Context, id uuid.UUID) error
	StatsByIndex(ctx context.Context, indexName string) (map[string]int, error)
}

const fileColumns = `id, name, size, content_type, origin, status,
	object_bucket, object_key, object_version, etag, content_hash,
	index_name, index_file_id,
	delete_phase, index_deleted, object_deleted,
	last_error, last_delete_error,
	is_deleted, deleted_at, created_at, updated_at`

type PgRepository struct {
	db *pgxpool.Pool
}

func NewPgRepository(db *pgxpool.Pool) *PgRepository {
	return &PgRepository{db: db}
}

func (r *PgRepository) Create(ctx context.Context, rec *models.FileRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Status == "" {
		rec.Status = models.StatusPending
	}
	if rec.Origin == "" {
		rec.Origin = models.OriginUploaded
	}
	if rec.DeletePhase == "" {
		rec.DeletePhase = models.DeletePending
	}

	err := r.db.QueryRow(ctx,
		`INSERT INTO files (id, name, size, content_type, origin, status,
		    object_bucket, object_key, object_version, etag, content_hash,
		    index_name, index_file_id, delete_phase)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING created_at, updated_at`,
		rec.ID, rec.Name, rec.Size, rec.ContentType, rec.Origin, rec.Status,
		rec.ObjectBucket, rec.ObjectKey, rec.ObjectVersion, rec.ETag, rec.ContentHash,
		rec.IndexName, rec.IndexFileID, rec.DeletePhase,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("insert file record: %w", err)
	}
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.FileRecord, error) {
	return r.getOne(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1 AND NOT is_deleted`, id)
}

func (r *PgRepository) GetByContentHash(ctx context.Context, hash string) (*models.FileRecord, error) {
	return r.getOne(ctx, `SELECT `+fileColumns+` FROM files WHERE content_hash = $1 AND NOT is_deleted`, hash)
}

func (r *PgRepository) GetByObjectCoords(ctx context.Context, bucket, key string) (*models.FileRecord, error) {
	return r.getOne(ctx,
		`SELECT `+fileColumns+` FROM files WHERE object_bucket = $1 AND object_key = $2 AND NOT is_deleted`,
		bucket, key)
}

func (r *PgRepository) getOne(ctx context.Context, query string, args ...any) (*models.FileRecord, error) {
	rec, err := scanFile(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get file record: %w", err)
	}
	return rec, nil
}

func (r *PgRepository) List(ctx context.Context, limit, offset int) ([]models.FileRecord, error) {
	return r.listQuery(ctx,
		`SELECT `+fileColumns+` FROM files WHERE NOT is_deleted ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
}

func (r *PgRepository) ListByIndex(ctx context.Context, indexName string) ([]models.FileRecord, error) {
	return r.listQuery(ctx,
		`SELECT `+fileColumns+` FROM files WHERE index_name = $1 AND NOT is_deleted ORDER BY created_at DESC`,
		indexName)
}

func (r *PgRepository) ListByStatus(ctx context.Context, status models.FileStatus, limit int) ([]models.FileRecord, error) {
	return r.listQuery(ctx,
		`SELECT `+fileColumns+` FROM files WHERE status = $1 AND NOT is_deleted ORDER BY updated_at LIMIT $2`,
		status, limit)
}

// ListAwaitingIndexUpload selects imported records whose bytes are stored but
// which were never handed to the index service.
func (r *PgRepository) ListAwaitingIndexUpload(ctx context.Context, limit int) ([]models.FileRecord, error) {
	return r.listQuery(ctx,
		`SELECT `+fileColumns+` FROM files
		 WHERE status = $1 AND origin = $2 AND index_file_id = '' AND NOT is_deleted
		 ORDER BY updated_at LIMIT $3`,
		models.StatusStored, models.OriginImported, limit)
}

func (r *PgRepository) listQuery(ctx context.Context, query string, args ...any) ([]models.FileRecord, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list file records: %w", err)
	}
	defer rows.Close()

	var recs []models.FileRecord
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file record: %w", err)
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

func (r *PgRepository) Patch(ctx context.Context, id uuid.UUID, p models.FilePatch) error {
	sets := []string{"updated_at = now()"}
	args := []any{id}

	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if p.Status != nil {
		add("status", *p.Status)
	}
	if p.ObjectKey != nil {
		add("object_key", *p.ObjectKey)
	}
	if p.ObjectVersion != nil {
		add("object_version", *p.ObjectVersion)
	}
	if p.ETag != nil {
		add("etag", *p.ETag)
	}
	if p.IndexFileID != nil {
		add("index_file_id", *p.IndexFileID)
	}
	if p.LastError != nil {
		add("last_error", *p.LastError)
	}
	if p.Origin != nil {
		add("origin", *p.Origin)
	}

	return r.exec(ctx, sets, args)
}

func (r *PgRepository) PatchDelete(ctx context.Context, id uuid.UUID, p models.DeletePatch) error {
	sets := []string{"updated_at = now()"}
	args := []any{id}

	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if p.Phase != nil {
		add("delete_phase", *p.Phase)
	}
	if p.IndexDeleted != nil {
		add("index_deleted", *p.IndexDeleted)
	}
	if p.ObjectDeleted != nil {
		add("object_deleted", *p.ObjectDeleted)
	}
	if p.LastDeleteError != nil {
		add("last_delete_error", *p.LastDeleteError)
	}

	return r.exec(ctx, sets, args)
}

func (r *PgRepository) exec(ctx context.Context, sets []string, args []any) error {
	query := fmt.Sprintf("UPDATE files SET %s WHERE id = $1 AND NOT is_deleted", strings.Join(sets, ", "))
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("patch file record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Remove tombstones the record. The uniqueness indexes are partial over live
// rows, so the hash and object coordinates become reusable immediately.
func (r *PgRepository) Remove(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE files SET is_deleted = true, deleted_at = now(), delete_phase = $2, updated_at = now()
		 WHERE id = $1 AND NOT is_deleted`,
		id, models.DeleteDone)
	if err != nil {
		return fmt.Errorf("remove file record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgRepository) StatsByIndex(ctx context.Context, indexName string) (map[string]int, error) {
	rows, err := r.db.Query(ctx,
		`SELECT status, count(*) FROM files WHERE index_name = $1 AND NOT is_deleted GROUP BY status`,
		indexName)
	if err != nil {
		return nil, fmt.Errorf("file stats: %w", err)
	}
	defer rows.Close()

	stats := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan file stats: %w", err)
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*models.FileRecord, error) {
	var rec models.FileRecord
	err := row.Scan(
		&rec.ID, &rec.Name, &rec.Size, &rec.ContentType, &rec.Origin, &rec.Status,
		&rec.ObjectBucket, &rec.ObjectKey, &rec.ObjectVersion, &rec.ETag, &rec.ContentHash,
		&rec.IndexName, &rec.IndexFileID,
		&rec.DeletePhase, &rec.IndexDeleted, &rec.ObjectDeleted,
		&rec.LastError, &rec.LastDeleteError,
		&rec.IsDeleted, &rec.DeletedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
