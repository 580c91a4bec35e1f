package route

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akarpov/docsync/internal/models"
)

// Repository is the storage routing table. Lookups return (nil, nil) when no
// route matches so callers can distinguish "unmapped" from a failure.
type Repository interface {
	GetByBucket(ctx context.Context, bucket string) (*models.IndexRoute, error)
	GetByBot(ctx context.Context, botID string) (*models.IndexRoute, error)
	GetDefault(ctx context.Context) (*models.IndexRoute, error)
	List(ctx context.Context) ([]models.IndexRoute, error)
	Create(ctx context.Context, r *models.IndexRoute) error
	Update(ctx context.Context, r *models.IndexRoute) error
	Delete(ctx context.Context, id uuid.UUID) error
	SetDefault(ctx context.Context, id uuid.UUID) error
}

const routeColumns = `id, name, index_name, bot_id, bucket, is_default, created_at, updated_at`

type PgRepository struct {
	db *pgxpool.Pool
}

func NewPgRepository(db *pgxpool.Pool) *PgRepository {
	return &PgRepository{db: db}
}

func (r *PgRepository) GetByBucket(ctx context.Context, bucket string) (*models.IndexRoute, error) {
	return r.getOne(ctx, `SELECT `+routeColumns+` FROM index_routes WHERE bucket = $1`, bucket)
}

func (r *PgRepository) GetByBot(ctx context.Context, botID string) (*models.IndexRoute, error) {
	return r.getOne(ctx, `SELECT `+routeColumns+` FROM index_routes WHERE bot_id = $1`, botID)
}

func (r *PgRepository) GetDefault(ctx context.Context) (*models.IndexRoute, error) {
	return r.getOne(ctx, `SELECT `+routeColumns+` FROM index_routes WHERE is_default`)
}

func (r *PgRepository) getOne(ctx context.Context, query string, args ...any) (*models.IndexRoute, error) {
	var rt models.IndexRoute
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&rt.ID, &rt.Name, &rt.IndexName, &rt.BotID, &rt.Bucket, &rt.IsDefault, &rt.CreatedAt, &rt.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get route: %w", err)
	}
	return &rt, nil
}

func (r *PgRepository) List(ctx context.Context) ([]models.IndexRoute, error) {
	rows, err := r.db.Query(ctx, `SELECT `+routeColumns+` FROM index_routes ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	defer rows.Close()

	var routes []models.IndexRoute
	for rows.Next() {
		var rt models.IndexRoute
		if err := rows.Scan(&rt.ID, &rt.Name, &rt.IndexName, &rt.BotID, &rt.Bucket, &rt.IsDefault, &rt.CreatedAt, &rt.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan route: %w", err)
		}
		routes = append(routes, rt)
	}
	return routes, rows.Err()
}

func (r *PgRepository) Create(ctx context.Context, rt *models.IndexRoute) error {
	if rt.ID == uuid.Nil {
		rt.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO index_routes (id, name, index_name, bot_id, bucket, is_default)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		rt.ID, rt.Name, rt.IndexName, rt.BotID, rt.Bucket, rt.IsDefault,
	).Scan(&rt.CreatedAt, &rt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert route: %w", err)
	}
	return nil
}

// Update rewrites a route's mapping fields. The default flag is owned by
// SetDefault and cannot change here.
func (r *PgRepository) Update(ctx context.Context, rt *models.IndexRoute) error {
	err := r.db.QueryRow(ctx,
		`UPDATE index_routes SET name = $2, index_name = $3, bot_id = $4, bucket = $5, updated_at = now()
		 WHERE id = $1
		 RETURNING is_default, created_at, updated_at`,
		rt.ID, rt.Name, rt.IndexName, rt.BotID, rt.Bucket,
	).Scan(&rt.IsDefault, &rt.CreatedAt, &rt.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return pgx.ErrNoRows
	}
	if err != nil {
		return fmt.Errorf("update route: %w", err)
	}
	return nil
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM index_routes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete route: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetDefault promotes one route to default, demoting the previous holder in
// the same transaction so the at-most-one invariant cannot be observed broken.
func (r *PgRepository) SetDefault(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin set default: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE index_routes SET is_default = false, updated_at = now() WHERE is_default`); err != nil {
		return fmt.Errorf("clear default route: %w", err)
	}
	tag, err := tx.Exec(ctx, `UPDATE index_routes SET is_default = true, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("set default route: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return tx.Commit(ctx)
}
