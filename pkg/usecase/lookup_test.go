package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/xiashuijun/elasticvc/pkg/domain/types"
)

func TestFindBranchOrThrowNotFound(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase(time.Now())

	_, err := uc.FindBranchOrThrow(ctx, types.RootPath)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrNotFound))
}

func TestFindAtTimepointOrThrow(t *testing.T) {
	ctx := context.Background()
	uc, clock := newTestUseCase(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	_, err := uc.Create(ctx, types.RootPath)
	gt.NoError(t, err)
	createdAt := clock.Now()

	clock.Advance(time.Minute)
	commit, err := uc.OpenCommit(ctx, types.RootPath)
	gt.NoError(t, err)
	gt.NoError(t, uc.Complete(ctx, commit))

	before, err := uc.FindAtTimepointOrThrow(ctx, types.RootPath, createdAt)
	gt.NoError(t, err)
	gt.True(t, before.Head.Equal(createdAt))

	after, err := uc.FindAtTimepointOrThrow(ctx, types.RootPath, clock.Now())
	gt.NoError(t, err)
	gt.True(t, after.Head.Equal(commit.Timepoint))

	_, err = uc.FindAtTimepointOrThrow(ctx, types.RootPath, createdAt.Add(-time.Hour))
	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrNotFound))
}

func TestFindAllAndFindChildren(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase(time.Now())

	_, err := uc.Create(ctx, types.RootPath)
	gt.NoError(t, err)
	_, err = uc.RecursiveCreate(ctx, types.BranchPath("MAIN/a/b"))
	gt.NoError(t, err)
	_, err = uc.RecursiveCreate(ctx, types.BranchPath("MAIN/a/c"))
	gt.NoError(t, err)

	all, err := uc.FindAll(ctx)
	gt.NoError(t, err)
	gt.V(t, len(all)).Equal(4) // MAIN, MAIN/a, MAIN/a/b, MAIN/a/c

	children, err := uc.FindChildren(ctx, types.BranchPath("MAIN/a"))
	gt.NoError(t, err)
	gt.V(t, len(children)).Equal(2)

	direct, err := uc.FindDirectChildren(ctx, types.RootPath)
	gt.NoError(t, err)
	gt.V(t, len(direct)).Equal(1)
	gt.V(t, direct[0].Path).Equal(types.BranchPath("MAIN/a"))
}

func TestExistsFalseForUncreatedPath(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase(time.Now())

	exists, err := uc.Exists(ctx, types.RootPath)
	gt.NoError(t, err)
	gt.False(t, exists)
}
