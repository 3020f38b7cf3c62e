package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/xiashuijun/elasticvc/pkg/domain/model"
	"github.com/xiashuijun/elasticvc/pkg/domain/types"
)

// Create implements spec.md §4.2's create: path must be non-empty, free of
// "_", and have no current timespan. For a non-root path the parent must
// already exist; if it does not, Create fails (use RecursiveCreate to
// materialize ancestors).
func (u *UseCase) Create(ctx context.Context, path types.BranchPath) (*model.Branch, error) {
	if err := types.ValidatePath(path); err != nil {
		return nil, err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	return u.createLocked(ctx, path, false, u.clock.Now())
}

// RecursiveCreate is Create, but materializes any missing ancestors first,
// using the same commit timepoint (the wall-clock moment of this call) for
// every branch it creates so the whole ancestry shares a coherent
// base/start/head (spec.md §4.2).
func (u *UseCase) RecursiveCreate(ctx context.Context, path types.BranchPath) (*model.Branch, error) {
	if err := types.ValidatePath(path); err != nil {
		return nil, err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	return u.createLocked(ctx, path, true, u.clock.Now())
}

// createLocked must be called with u.mu held. It recurses to materialize
// ancestors when recursive is true, reusing commitTime for every branch it
// creates in this call.
func (u *UseCase) createLocked(ctx context.Context, path types.BranchPath, recursive bool, commitTime time.Time) (*model.Branch, error) {
	existing, err := u.findCurrent(ctx, path)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, goerr.Wrap(types.ErrAlreadyExists, "branch already exists", goerr.V("path", path))
	}

	var base time.Time
	if types.IsRoot(path) {
		base = commitTime
	} else {
		parentPath, _ := types.Parent(path)
		parent, err := u.findCurrent(ctx, parentPath)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			if !recursive {
				return nil, goerr.Wrap(types.ErrInvariantViolation, "parent branch does not exist", goerr.V("path", path), goerr.V("parent", parentPath))
			}
			parent, err = u.createLocked(ctx, parentPath, true, commitTime)
			if err != nil {
				return nil, err
			}
		}
		base = parent.Head
	}

	branch := &model.Branch{
		Path:            path,
		Base:            base,
		Head:            base,
		Start:           base,
		End:             nil,
		Locked:          false,
		ContainsContent: false,
		State:           model.StateUpToDate,
	}

	if err := u.store.Save(ctx, branch); err != nil {
		return nil, goerr.Wrap(err, "failed to save new branch", goerr.V("path", path))
	}

	return branch.Clone(), nil
}
