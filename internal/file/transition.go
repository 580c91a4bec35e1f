package file

import (
	"context"
	"fmt"

	"github.com/akarpov/docsync/internal/apperrors"
	"github.com/akarpov/docsync/internal/models"
)

// Transition applies a status-bearing patch after checking the move against
// the lifecycle table. Every status write in the service, the event processor
// and the workers goes through here, so an edge the table does not declare
// can never reach the catalog. rec.Status is updated in place on success,
// keeping chained transitions on the same record consistent.
func Transition(ctx context.Context, repo Repository, rec *models.FileRecord, op string, patch models.FilePatch) error {
	to := *patch.Status
	if !models.CanTransition(rec.Status, to) {
		return fmt.Errorf("%s: status %s cannot move to %s", op, rec.Status, to)
	}
	if err := repo.Patch(ctx, rec.ID, patch); err != nil {
		return apperrors.Database(op, err)
	}
	rec.Status = to
	return nil
}
