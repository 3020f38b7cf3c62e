package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/xiashuijun/elasticvc/pkg/domain/model"
	"github.com/xiashuijun/elasticvc/pkg/domain/types"
)

func TestOpenAndCompleteContentCommit(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	uc, _ := newTestUseCase(t0)

	_, err := uc.Create(ctx, types.RootPath)
	gt.NoError(t, err)

	commit, err := uc.OpenCommit(ctx, types.RootPath)
	gt.NoError(t, err)
	gt.V(t, commit.Type).Equal(model.CommitContent)
	gt.True(t, commit.Timepoint.After(commit.Branch.Head))

	locked, err := uc.FindLatest(ctx, types.RootPath)
	gt.NoError(t, err)
	gt.True(t, locked.Locked)

	gt.NoError(t, uc.Complete(ctx, commit))

	after, err := uc.FindLatest(ctx, types.RootPath)
	gt.NoError(t, err)
	gt.False(t, after.Locked)
	gt.True(t, after.Head.Equal(commit.Timepoint))
	gt.True(t, after.ContainsContent)
}

func TestOpenCommitOnLockedBranchConflicts(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase(time.Now())

	_, err := uc.Create(ctx, types.RootPath)
	gt.NoError(t, err)

	_, err = uc.OpenCommit(ctx, types.RootPath)
	gt.NoError(t, err)

	_, err = uc.OpenCommit(ctx, types.RootPath)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrConflictLocked))
}

func TestCompleteTwiceFails(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase(time.Now())

	_, err := uc.Create(ctx, types.RootPath)
	gt.NoError(t, err)

	commit, err := uc.OpenCommit(ctx, types.RootPath)
	gt.NoError(t, err)
	gt.NoError(t, uc.Complete(ctx, commit))

	err = uc.Complete(ctx, commit)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrInvariantViolation))
}

func TestRollbackClearsLockWithoutAdvancingHead(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase(time.Now())

	_, err := uc.Create(ctx, types.RootPath)
	gt.NoError(t, err)

	before, err := uc.FindLatest(ctx, types.RootPath)
	gt.NoError(t, err)

	commit, err := uc.OpenCommit(ctx, types.RootPath)
	gt.NoError(t, err)

	gt.NoError(t, uc.Rollback(ctx, commit))

	after, err := uc.FindLatest(ctx, types.RootPath)
	gt.NoError(t, err)
	gt.False(t, after.Locked)
	gt.True(t, after.Head.Equal(before.Head))
}

func TestRebaseUpdatesBaseAndState(t *testing.T) {
	ctx := context.Background()
	uc, clock := newTestUseCase(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	_, err := uc.Create(ctx, types.RootPath)
	gt.NoError(t, err)

	clock.Advance(time.Minute)
	child, err := uc.Create(ctx, types.BranchPath("MAIN/feature"))
	gt.NoError(t, err)
	gt.V(t, child.State).Equal(model.StateUpToDate)

	clock.Advance(time.Minute)
	mainCommit, err := uc.OpenCommit(ctx, types.RootPath)
	gt.NoError(t, err)
	gt.NoError(t, uc.Complete(ctx, mainCommit))

	behind, err := uc.FindLatest(ctx, types.BranchPath("MAIN/feature"))
	gt.NoError(t, err)
	gt.V(t, behind.State).Equal(model.StateBehind)

	clock.Advance(time.Minute)
	rebase, err := uc.OpenRebaseCommit(ctx, types.BranchPath("MAIN/feature"))
	gt.NoError(t, err)
	gt.True(t, rebase.RebasePreviousBase != nil)
	gt.NoError(t, uc.Complete(ctx, rebase))

	// Rebasing advances Base to the parent's current head, but the rebase
	// itself is a commit that also advances Head past that new Base, so
	// the branch reads as FORWARD rather than UP_TO_DATE immediately after.
	rebased, err := uc.FindLatest(ctx, types.BranchPath("MAIN/feature"))
	gt.NoError(t, err)
	gt.V(t, rebased.State).Equal(model.StateForward)

	root, err := uc.FindLatest(ctx, types.RootPath)
	gt.NoError(t, err)
	gt.True(t, rebased.Base.Equal(root.Head))
}

func TestPromotionResetsSourceAndMergesVersions(t *testing.T) {
	ctx := context.Background()
	uc, clock := newTestUseCase(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	_, err := uc.Create(ctx, types.RootPath)
	gt.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = uc.Create(ctx, types.BranchPath("MAIN/feature"))
	gt.NoError(t, err)

	clock.Advance(time.Minute)
	featureCommit, err := uc.OpenCommit(ctx, types.BranchPath("MAIN/feature"))
	gt.NoError(t, err)
	featureCommit.EntityVersionsReplaced = []types.VersionID{"v1"}
	gt.NoError(t, uc.Complete(ctx, featureCommit))

	clock.Advance(time.Minute)
	promotion, err := uc.OpenPromotionCommit(ctx, types.RootPath, types.BranchPath("MAIN/feature"))
	gt.NoError(t, err)
	gt.V(t, promotion.Type).Equal(model.CommitPromotion)
	gt.NoError(t, uc.Complete(ctx, promotion))

	main, err := uc.FindLatest(ctx, types.RootPath)
	gt.NoError(t, err)
	gt.True(t, main.HasVersion(types.VersionID("v1")))

	source, err := uc.FindLatest(ctx, types.BranchPath("MAIN/feature"))
	gt.NoError(t, err)
	gt.V(t, source.State).Equal(model.StateUpToDate)
	gt.False(t, source.ContainsContent)
	gt.True(t, source.LastPromotion != nil)
}

func TestPromotionRejectsNonDescendantSource(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase(time.Now())

	_, err := uc.Create(ctx, types.RootPath)
	gt.NoError(t, err)
	_, err = uc.RecursiveCreate(ctx, types.BranchPath("MAIN/a"))
	gt.NoError(t, err)
	_, err = uc.RecursiveCreate(ctx, types.BranchPath("MAIN/b"))
	gt.NoError(t, err)

	_, err = uc.OpenPromotionCommit(ctx, types.BranchPath("MAIN/a"), types.BranchPath("MAIN/b"))
	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrInvalidArgument))
}

type abortingListener struct{}

func (abortingListener) PreCommitCompletion(ctx context.Context, commit *model.Commit) error {
	return errors.New("simulated listener failure")
}

func TestListenerAbortLeavesCommitOpenForRollback(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestUseCase(time.Now())
	uc.AddCommitListener(abortingListener{})

	_, err := uc.Create(ctx, types.RootPath)
	gt.NoError(t, err)

	commit, err := uc.OpenCommit(ctx, types.RootPath)
	gt.NoError(t, err)

	err = uc.Complete(ctx, commit)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrListenerAborted))

	stillLocked, err := uc.FindLatest(ctx, types.RootPath)
	gt.NoError(t, err)
	gt.True(t, stillLocked.Locked)

	gt.NoError(t, uc.Rollback(ctx, commit))
	unlocked, err := uc.FindLatest(ctx, types.RootPath)
	gt.NoError(t, err)
	gt.False(t, unlocked.Locked)
}
