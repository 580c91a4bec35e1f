package route

import (
	"context"
	"fmt"

	"github.com/akarpov/docsync/internal/apperrors"
	"github.com/akarpov/docsync/internal/models"
)

// Resolver answers "which index should receive this document" for the two
// lookup shapes the system needs: by bucket (webhook path) and by bot
// identity with default fallback (direct upload path).
type Resolver struct {
	repo Repository
}

func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// ResolveBucket returns the route for a bucket, or (nil, nil) when the bucket
// is unmapped. The webhook path skips unmapped buckets rather than failing.
func (r *Resolver) ResolveBucket(ctx context.Context, bucket string) (*models.IndexRoute, error) {
	rt, err := r.repo.GetByBucket(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("resolve bucket %s: %w", bucket, err)
	}
	return rt, nil
}

// ResolveUpload picks the target index for a direct upload: the bot-specific
// route when botID is mapped, otherwise the default route.
func (r *Resolver) ResolveUpload(ctx context.Context, botID string) (*models.IndexRoute, error) {
	if botID != "" {
		rt, err := r.repo.GetByBot(ctx, botID)
		if err != nil {
			return nil, fmt.Errorf("resolve bot %s: %w", botID, err)
		}
		if rt != nil {
			return rt, nil
		}
	}

	rt, err := r.repo.GetDefault(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve default route: %w", err)
	}
	if rt == nil {
		return nil, apperrors.Configuration("no index route configured for this upload and no default route set")
	}
	return rt, nil
}
