package interfaces

//go:generate moq -out ../mock/usecase_mock.go -pkg mock . UseCase CommitListener

import (
	"context"
	"time"

	"github.com/xiashuijun/elasticvc/pkg/domain/model"
	"github.com/xiashuijun/elasticvc/pkg/domain/types"
)

// UseCase is the branch lifecycle API spec.md §6 exposes as
// transport-agnostic operations: creation, lookup, and the commit
// coordinator's open/unlock/listener surface. pkg/controller/server and
// pkg/infra/backup depend only on this interface; pkg/cli constructs the
// concrete pkg/usecase implementation.
type UseCase interface {
	Create(ctx context.Context, path types.BranchPath) (*model.Branch, error)
	RecursiveCreate(ctx context.Context, path types.BranchPath) (*model.Branch, error)
	Exists(ctx context.Context, path types.BranchPath) (bool, error)

	FindLatest(ctx context.Context, path types.BranchPath) (*model.Branch, error)
	FindBranchOrThrow(ctx context.Context, path types.BranchPath) (*model.Branch, error)
	FindAtTimepointOrThrow(ctx context.Context, path types.BranchPath, at time.Time) (*model.Branch, error)
	FindAll(ctx context.Context) ([]*model.Branch, error)
	FindChildren(ctx context.Context, path types.BranchPath) ([]*model.Branch, error)
	FindDirectChildren(ctx context.Context, path types.BranchPath) ([]*model.Branch, error)

	OpenCommit(ctx context.Context, path types.BranchPath) (*model.Commit, error)
	OpenRebaseCommit(ctx context.Context, path types.BranchPath) (*model.Commit, error)
	OpenPromotionCommit(ctx context.Context, path, sourcePath types.BranchPath) (*model.Commit, error)
	Complete(ctx context.Context, commit *model.Commit) error
	Rollback(ctx context.Context, commit *model.Commit) error

	Unlock(ctx context.Context, path types.BranchPath) error
	DeleteAll(ctx context.Context) error

	AddCommitListener(listener CommitListener)
}

// CommitListener is notified synchronously, in registration order, before
// any branch record is written for a completing commit (spec.md §4.6). A
// listener that returns an error aborts completion; the coordinator leaves
// the commit open and locked (types.ErrListenerAborted).
type CommitListener interface {
	PreCommitCompletion(ctx context.Context, commit *model.Commit) error
}
