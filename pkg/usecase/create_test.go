package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/xiashuijun/elasticvc/pkg/domain/model"
	"github.com/xiashuijun/elasticvc/pkg/domain/types"
	"github.com/xiashuijun/elasticvc/pkg/repository/memory"
	"github.com/xiashuijun/elasticvc/pkg/usecase"
)

func newTestUseCase(t0 time.Time) (*usecase.UseCase, *model.FixedClock) {
	clock := model.NewFixedClock(t0)
	uc := usecase.New(memory.New(), usecase.WithClock(clock))
	return uc, clock
}

func TestCreateRoot(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	uc, _ := newTestUseCase(t0)

	branch, err := uc.Create(ctx, types.RootPath)
	gt.NoError(t, err)
	gt.V(t, branch.Path).Equal(types.RootPath)
	gt.V(t, branch.State).Equal(model.StateUpToDate)
	gt.True(t, branch.Base.Equal(t0))
}

func TestCreateAlreadyExists(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase(time.Now())

	_, err := uc.Create(ctx, types.RootPath)
	gt.NoError(t, err)

	_, err = uc.Create(ctx, types.RootPath)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrAlreadyExists))
}

func TestCreateNonRootWithoutParent(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase(time.Now())

	_, err := uc.Create(ctx, types.BranchPath("MAIN/feature"))
	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrInvariantViolation))
}

func TestCreateInvalidPath(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase(time.Now())

	_, err := uc.Create(ctx, types.BranchPath(""))
	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrInvalidArgument))

	_, err = uc.Create(ctx, types.BranchPath("MAIN/has_underscore"))
	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrInvalidArgument))
}

func TestRecursiveCreateMaterializesAncestors(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase(time.Now())

	branch, err := uc.RecursiveCreate(ctx, types.BranchPath("MAIN/a/b/c"))
	gt.NoError(t, err)
	gt.V(t, branch.Path).Equal(types.BranchPath("MAIN/a/b/c"))

	for _, p := range []types.BranchPath{"MAIN", "MAIN/a", "MAIN/a/b", "MAIN/a/b/c"} {
		exists, err := uc.Exists(ctx, p)
		gt.NoError(t, err)
		gt.True(t, exists)
	}
}
