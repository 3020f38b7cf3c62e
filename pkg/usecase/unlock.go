package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/xiashuijun/elasticvc/pkg/domain/types"
)

// Unlock force-clears the locked flag on path's current timespan. It is
// intended for operator recovery when a commit was opened but neither
// completed nor rolled back (spec.md §5), not for routine use: it also
// discards any pendingCommit entry for path, so a caller still holding the
// original *model.Commit value will get types.ErrInvariantViolation if it
// later calls Complete/Rollback against it.
func (u *UseCase) Unlock(ctx context.Context, path types.BranchPath) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	branch, err := u.findCurrent(ctx, path)
	if err != nil {
		return err
	}
	if branch == nil {
		return goerr.Wrap(types.ErrNotFound, "branch not found", goerr.V("path", path))
	}

	if !branch.Locked {
		return nil
	}

	branch.Locked = false
	if err := u.store.Save(ctx, branch); err != nil {
		return goerr.Wrap(err, "failed to persist unlock", goerr.V("path", path))
	}

	delete(u.pending, path)

	return nil
}

// DeleteAll removes every branch timespan and discards any pending
// commits. Destructive; admin/test use only (spec.md §6).
func (u *UseCase) DeleteAll(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := u.store.DeleteAll(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete all branches")
	}

	u.pending = make(map[types.BranchPath]*pendingCommit)
	return nil
}
