package route

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/akarpov/docsync/internal/cache"
	"github.com/akarpov/docsync/internal/models"
)

// cachedEntry distinguishes a cached "no route" from a miss.
type cachedEntry struct {
	Route *models.IndexRoute `json:"route"`
}

// CachedRepository layers a short-TTL cache over route lookups. Routes change
// rarely and every webhook batch and upload resolves one, so even a small TTL
// absorbs most of the traffic. Mutations flush the whole namespace key by key.
type CachedRepository struct {
	inner Repository
	cache *cache.Cache
	ttl   time.Duration
}

func NewCachedRepository(inner Repository, c *cache.Cache, ttl time.Duration) *CachedRepository {
	return &CachedRepository{inner: inner, cache: c, ttl: ttl}
}

func (r *CachedRepository) GetByBucket(ctx context.Context, bucket string) (*models.IndexRoute, error) {
	return r.lookup(ctx, "route:bucket:"+bucket, func() (*models.IndexRoute, error) {
		return r.inner.GetByBucket(ctx, bucket)
	})
}

func (r *CachedRepository) GetByBot(ctx context.Context, botID string) (*models.IndexRoute, error) {
	return r.lookup(ctx, "route:bot:"+botID, func() (*models.IndexRoute, error) {
		return r.inner.GetByBot(ctx, botID)
	})
}

func (r *CachedRepository) GetDefault(ctx context.Context) (*models.IndexRoute, error) {
	return r.lookup(ctx, "route:default", func() (*models.IndexRoute, error) {
		return r.inner.GetDefault(ctx)
	})
}

func (r *CachedRepository) List(ctx context.Context) ([]models.IndexRoute, error) {
	return r.inner.List(ctx)
}

func (r *CachedRepository) Create(ctx context.Context, rt *models.IndexRoute) error {
	if err := r.inner.Create(ctx, rt); err != nil {
		return err
	}
	r.invalidate(ctx, rt)
	return nil
}

func (r *CachedRepository) Update(ctx context.Context, rt *models.IndexRoute) error {
	old := r.findByID(ctx, rt.ID)
	if err := r.inner.Update(ctx, rt); err != nil {
		return err
	}
	r.invalidate(ctx, old)
	r.invalidate(ctx, rt)
	return nil
}

func (r *CachedRepository) Delete(ctx context.Context, id uuid.UUID) error {
	rt := r.findByID(ctx, id)
	if err := r.inner.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, rt)
	return nil
}

func (r *CachedRepository) SetDefault(ctx context.Context, id uuid.UUID) error {
	rt := r.findByID(ctx, id)
	if err := r.inner.SetDefault(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, rt)
	return nil
}

func (r *CachedRepository) lookup(ctx context.Context, key string, load func() (*models.IndexRoute, error)) (*models.IndexRoute, error) {
	var entry cachedEntry
	err := r.cache.Get(ctx, key, &entry)
	if err == nil {
		return entry.Route, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		slog.Debug("route cache unavailable", "key", key, "error", err)
	}

	rt, err := load()
	if err != nil {
		return nil, err
	}
	if setErr := r.cache.Set(ctx, key, cachedEntry{Route: rt}, r.ttl); setErr != nil {
		slog.Debug("route cache set failed", "key", key, "error", setErr)
	}
	return rt, nil
}

func (r *CachedRepository) invalidate(ctx context.Context, rt *models.IndexRoute) {
	keys := []string{"route:default"}
	if rt != nil {
		if rt.Bucket != "" {
			keys = append(keys, "route:bucket:"+rt.Bucket)
		}
		if rt.BotID != "" {
			keys = append(keys, "route:bot:"+rt.BotID)
		}
	}
	if err := r.cache.Delete(ctx, keys...); err != nil {
		slog.Warn("route cache invalidation failed", "error", err)
	}
}

func (r *CachedRepository) findByID(ctx context.Context, id uuid.UUID) *models.IndexRoute {
	routes, err := r.inner.List(ctx)
	if err != nil {
		return nil
	}
	for i := range routes {
		if routes[i].ID == id {
			return &routes[i]
		}
	}
	return nil
}
