package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/xiashuijun/elasticvc/pkg/domain/model"
	"github.com/xiashuijun/elasticvc/pkg/domain/types"
	"github.com/xiashuijun/elasticvc/pkg/repository/branchquery"
)

// findCurrent is branchquery.Current scoped to this UseCase's store.
func (u *UseCase) findCurrent(ctx context.Context, path types.BranchPath) (*model.Branch, error) {
	return branchquery.Current(ctx, u.store, path)
}

// resolveState computes branch.State in place given the current branch and
// its parent's head, per spec.md §4.4. For the root path, state is always
// UP_TO_DATE. For a non-root path whose parent has no current timespan,
// that is itself an invariant violation (spec.md §4.3).
func (u *UseCase) resolveState(ctx context.Context, branch *model.Branch) error {
	if types.IsRoot(branch.Path) {
		branch.State = model.StateUpToDate
		return nil
	}

	parentPath, ok := types.Parent(branch.Path)
	if !ok {
		branch.State = model.StateUpToDate
		return nil
	}

	parent, err := u.findCurrent(ctx, parentPath)
	if err != nil {
		return err
	}
	if parent == nil {
		return goerr.Wrap(types.ErrInvariantViolation, "parent has no current timespan", goerr.V("path", branch.Path), goerr.V("parent", parentPath))
	}

	branch.State = model.DeriveState(branch.Base, branch.Head, parent.Head)
	return nil
}

// Exists reports whether path currently has a current timespan.
func (u *UseCase) Exists(ctx context.Context, path types.BranchPath) (bool, error) {
	branch, err := u.findCurrent(ctx, path)
	if err != nil {
		return false, err
	}
	return branch != nil, nil
}

// FindLatest implements spec.md §4.3's findLatest. It issues two store
// queries, not one: first for path's current timespan, then (in
// resolveState) for its parent's current timespan, used to compute path's
// state.
func (u *UseCase) FindLatest(ctx context.Context, path types.BranchPath) (*model.Branch, error) {
	if err := types.ValidatePath(path); err != nil {
		return nil, err
	}

	branch, err := u.findCurrent(ctx, path)
	if err != nil {
		return nil, err
	}
	if branch == nil {
		return nil, nil
	}

	if err := u.resolveState(ctx, branch); err != nil {
		return nil, err
	}
	return branch, nil
}

// FindBranchOrThrow is FindLatest but fails with types.ErrNotFound instead
// of returning nil.
func (u *UseCase) FindBranchOrThrow(ctx context.Context, path types.BranchPath) (*model.Branch, error) {
	branch, err := u.FindLatest(ctx, path)
	if err != nil {
		return nil, err
	}
	if branch == nil {
		return nil, goerr.Wrap(types.ErrNotFound, "branch not found", goerr.V("path", path))
	}
	return branch, nil
}

// FindAtTimepointOrThrow returns the unique timespan covering `at` on path.
// Zero matches resolves to types.ErrNotFound, consistent with this
// function's *OrThrow naming and the error-kind table in spec.md §7; more
// than one match is types.ErrInvariantViolation, a genuinely broken
// invariant rather than an absence (decision recorded in DESIGN.md,
// resolving the ambiguity between spec.md §4.3's prose and its §7 table).
func (u *UseCase) FindAtTimepointOrThrow(ctx context.Context, path types.BranchPath, at time.Time) (*model.Branch, error) {
	if err := types.ValidatePath(path); err != nil {
		return nil, err
	}

	branch, err := branchquery.AtTimepoint(ctx, u.store, path, at)
	if err != nil {
		return nil, err
	}
	if branch == nil {
		return nil, goerr.Wrap(types.ErrNotFound, "no timespan covers timepoint", goerr.V("path", path), goerr.V("at", at))
	}
	return branch, nil
}

// FindAll returns all current timespans, ordered by path, capped at
// model.DefaultPageSize (spec.md §4.3).
func (u *UseCase) FindAll(ctx context.Context) ([]*model.Branch, error) {
	results, err := branchquery.AllCurrent(ctx, u.store)
	if err != nil {
		return nil, err
	}

	for _, b := range results {
		if err := u.resolveState(ctx, b); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// FindChildren returns every current timespan whose path is a transitive
// descendant of path (literal prefix match on path+"/"), ordered by path.
// This intentionally includes grandchildren and deeper, per the Open
// Question recorded in spec.md §9; FindDirectChildren filters to depth+1.
func (u *UseCase) FindChildren(ctx context.Context, path types.BranchPath) ([]*model.Branch, error) {
	if err := types.ValidatePath(path); err != nil {
		return nil, err
	}

	results, err := branchquery.Children(ctx, u.store, path)
	if err != nil {
		return nil, err
	}

	for _, b := range results {
		if err := u.resolveState(ctx, b); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// FindDirectChildren filters FindChildren's result to paths exactly one
// segment below path (spec.md §9 additive operation).
func (u *UseCase) FindDirectChildren(ctx context.Context, path types.BranchPath) ([]*model.Branch, error) {
	children, err := u.FindChildren(ctx, path)
	if err != nil {
		return nil, err
	}

	wantDepth := types.Depth(path) + 1
	direct := make([]*model.Branch, 0, len(children))
	for _, c := range children {
		if types.Depth(c.Path) == wantDepth {
			direct = append(direct, c)
		}
	}
	return direct, nil
}
