package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/xiashuijun/elasticvc/pkg/domain/types"
)

func TestUnlockClearsStuckLock(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase(time.Now())

	_, err := uc.Create(ctx, types.RootPath)
	gt.NoError(t, err)

	_, err = uc.OpenCommit(ctx, types.RootPath)
	gt.NoError(t, err)

	gt.NoError(t, uc.Unlock(ctx, types.RootPath))

	branch, err := uc.FindLatest(ctx, types.RootPath)
	gt.NoError(t, err)
	gt.False(t, branch.Locked)
}

func TestUnlockNotFound(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase(time.Now())

	err := uc.Unlock(ctx, types.RootPath)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrNotFound))
}

func TestDeleteAllClearsBranchesAndPending(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase(time.Now())

	_, err := uc.Create(ctx, types.RootPath)
	gt.NoError(t, err)
	commit, err := uc.OpenCommit(ctx, types.RootPath)
	gt.NoError(t, err)

	gt.NoError(t, uc.DeleteAll(ctx))

	exists, err := uc.Exists(ctx, types.RootPath)
	gt.NoError(t, err)
	gt.False(t, exists)

	// The pending commit was discarded too, so it can no longer complete.
	err = uc.Complete(ctx, commit)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrInvariantViolation))
}
