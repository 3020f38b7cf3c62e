package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/xiashuijun/elasticvc/pkg/domain/model"
	"github.com/xiashuijun/elasticvc/pkg/domain/types"
)

// nextTimepoint returns a timepoint strictly after every value in afters,
// starting from the clock's current reading. Used to assign a commit's
// timepoint (spec.md §4.5: "strictly greater than the branch's head").
func (u *UseCase) nextTimepoint(afters ...time.Time) time.Time {
	t := u.clock.Now()
	for _, after := range afters {
		if !t.After(after) {
			t = after.Add(time.Nanosecond)
		}
	}
	return t
}

// OpenCommit implements spec.md §4.5's open for a CONTENT commit.
func (u *UseCase) OpenCommit(ctx context.Context, path types.BranchPath) (*model.Commit, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	return u.openLocked(ctx, path, model.CommitContent)
}

// openLocked must be called with u.mu held.
func (u *UseCase) openLocked(ctx context.Context, path types.BranchPath, typ model.CommitType) (*model.Commit, error) {
	if err := types.ValidatePath(path); err != nil {
		return nil, err
	}

	branch, err := u.findCurrent(ctx, path)
	if err != nil {
		return nil, err
	}
	if branch == nil {
		return nil, goerr.Wrap(types.ErrNotFound, "branch not found", goerr.V("path", path))
	}
	if branch.Locked {
		return nil, goerr.Wrap(types.ErrConflictLocked, "branch is locked", goerr.V("path", path))
	}

	timepoint := u.nextTimepoint(branch.Head)

	branch.Locked = true
	if err := u.store.Save(ctx, branch); err != nil {
		return nil, goerr.Wrap(err, "failed to persist branch lock", goerr.V("path", path))
	}

	commit := &model.Commit{
		Branch:    *branch.Clone(),
		Type:      typ,
		Timepoint: timepoint,
	}
	u.pending[path] = &pendingCommit{commit: *commit}

	return commit, nil
}

// OpenRebaseCommit implements spec.md §4.5's openRebaseCommit: for a
// non-root branch it looks up the parent's timespan at the commit's
// timepoint, records the previous base for audit, and rebases the
// in-memory snapshot onto the parent's current head. The branch becomes
// persistent only when the caller calls Complete.
func (u *UseCase) OpenRebaseCommit(ctx context.Context, path types.BranchPath) (*model.Commit, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	commit, err := u.openLocked(ctx, path, model.CommitRebase)
	if err != nil {
		return nil, err
	}

	if types.IsRoot(path) {
		return commit, nil
	}

	parentPath, _ := types.Parent(path)
	parent, err := u.FindAtTimepointOrThrow(ctx, parentPath, commit.Timepoint)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve parent timespan for rebase", goerr.V("path", path), goerr.V("parent", parentPath))
	}

	prevBase := commit.Branch.Base
	commit.RebasePreviousBase = &prevBase
	commit.Branch.Base = parent.Head

	u.pending[path].commit = *commit

	return commit, nil
}

// OpenPromotionCommit implements spec.md §4.5's openPromotionCommit.
// sourcePath must be a descendant of path. Per the Open Question resolved
// in SPEC_FULL.md §9, both path's and sourcePath's locks are acquired so no
// concurrent commit can land on the source while the promotion is open.
func (u *UseCase) OpenPromotionCommit(ctx context.Context, path, sourcePath types.BranchPath) (*model.Commit, error) {
	if err := types.ValidatePath(path); err != nil {
		return nil, err
	}
	if sourcePath == "" {
		return nil, goerr.Wrap(types.ErrInvalidArgument, "sourcePath is required for a promotion commit")
	}
	if !types.IsAncestor(path, sourcePath) {
		return nil, goerr.Wrap(types.ErrInvalidArgument, "sourcePath must be a descendant of path", goerr.V("path", path), goerr.V("sourcePath", sourcePath))
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	// Acquire in path-lexical order, not destination-then-source, so two
	// promotions whose destination/source pair cross each other always
	// contend for the same branch first (SPEC_FULL.md §9).
	firstPath, secondPath := path, sourcePath
	if secondPath < firstPath {
		firstPath, secondPath = secondPath, firstPath
	}

	first, err := u.findCurrent(ctx, firstPath)
	if err != nil {
		return nil, err
	}
	if first == nil {
		return nil, goerr.Wrap(types.ErrNotFound, "branch not found", goerr.V("path", firstPath))
	}
	if first.Locked {
		return nil, goerr.Wrap(types.ErrConflictLocked, "branch is locked", goerr.V("path", firstPath))
	}

	second, err := u.findCurrent(ctx, secondPath)
	if err != nil {
		return nil, err
	}
	if second == nil {
		return nil, goerr.Wrap(types.ErrNotFound, "branch not found", goerr.V("path", secondPath))
	}
	if second.Locked {
		return nil, goerr.Wrap(types.ErrConflictLocked, "branch is locked", goerr.V("path", secondPath))
	}

	var dest, source *model.Branch
	if firstPath == path {
		dest, source = first, second
	} else {
		dest, source = second, first
	}

	timepoint := u.nextTimepoint(dest.Head, source.Head)

	dest.Locked = true
	source.Locked = true
	if err := u.store.Save(ctx, dest, source); err != nil {
		return nil, goerr.Wrap(err, "failed to persist branch locks for promotion", goerr.V("path", path), goerr.V("sourcePath", sourcePath))
	}

	commit := &model.Commit{
		Branch:     *dest.Clone(),
		Type:       model.CommitPromotion,
		Timepoint:  timepoint,
		SourcePath: sourcePath,
	}
	u.pending[path] = &pendingCommit{commit: *commit, sourceLock: sourcePath}

	return commit, nil
}

// Complete implements spec.md §4.5's complete: listeners run first (a
// failure aborts completion and leaves the commit open for Rollback), then
// the old timespan is closed, the new timespan is built, promotion's
// source-side reset is applied, and the whole save set is persisted in one
// store call.
func (u *UseCase) Complete(ctx context.Context, commit *model.Commit) error {
	if commit == nil {
		return goerr.Wrap(types.ErrInvalidArgument, "commit is nil")
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	entry, ok := u.pending[commit.Branch.Path]
	if !ok || !entry.commit.Timepoint.Equal(commit.Timepoint) {
		return goerr.Wrap(types.ErrInvariantViolation, "commit already completed or rolled back", goerr.V("path", commit.Branch.Path))
	}

	for _, listener := range u.listeners {
		if err := listener.PreCommitCompletion(ctx, commit); err != nil {
			return goerr.Wrap(types.ErrListenerAborted, "pre-completion listener aborted commit", goerr.V("path", commit.Branch.Path), goerr.V("cause", err.Error()))
		}
	}

	delete(u.pending, commit.Branch.Path)

	old := commit.Branch.Clone()
	closedAt := commit.Timepoint
	old.End = &closedAt
	old.Locked = false

	newSpan := &model.Branch{
		Path:             old.Path,
		Base:             old.Base,
		Head:             commit.Timepoint,
		Start:            commit.Timepoint,
		Locked:           false,
		ContainsContent:  commit.Type != model.CommitRebase || old.ContainsContent,
		VersionsReplaced: model.MergeVersions(old.VersionsReplaced, commit.EntityVersionsReplaced...),
		State:            model.StateUpToDate,
	}

	saveSet := []*model.Branch{old, newSpan}

	if commit.IsPromotion() {
		if commit.SourcePath == "" {
			return goerr.Wrap(types.ErrInvalidArgument, "promotion commit has no source path", goerr.V("path", commit.Branch.Path))
		}

		source, err := u.FindAtTimepointOrThrow(ctx, commit.SourcePath, commit.Timepoint)
		if err != nil {
			return goerr.Wrap(err, "failed to load source timespan for promotion", goerr.V("sourcePath", commit.SourcePath))
		}

		sourceOld := source.Clone()
		sourceClosedAt := commit.Timepoint
		sourceOld.End = &sourceClosedAt
		sourceOld.Locked = false

		newSpan.VersionsReplaced = model.MergeVersions(newSpan.VersionsReplaced, sourceOld.VersionsReplaced...)

		resetAt := commit.Timepoint
		sourceNew := &model.Branch{
			Path:            commit.SourcePath,
			Base:            resetAt,
			Head:            resetAt,
			Start:           resetAt,
			Locked:          false,
			ContainsContent: false,
			LastPromotion:   &resetAt,
			State:           model.StateUpToDate,
		}

		saveSet = append(saveSet, sourceOld, sourceNew)
	}

	if err := u.store.Save(ctx, saveSet...); err != nil {
		return goerr.Wrap(err, "failed to persist commit completion", goerr.V("path", commit.Branch.Path))
	}

	return nil
}

// Rollback implements spec.md §4.5's rollback: deletes any entity documents
// the commit wrote speculatively at (path, commit.timepoint) for every
// domain entity class it touched, then clears the lock(s) it was holding.
func (u *UseCase) Rollback(ctx context.Context, commit *model.Commit) error {
	if commit == nil {
		return goerr.Wrap(types.ErrInvalidArgument, "commit is nil")
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	entry, ok := u.pending[commit.Branch.Path]
	if !ok || !entry.commit.Timepoint.Equal(commit.Timepoint) {
		return goerr.Wrap(types.ErrInvariantViolation, "commit already completed or rolled back", goerr.V("path", commit.Branch.Path))
	}
	delete(u.pending, commit.Branch.Path)

	for _, class := range commit.EntityClasses {
		q := model.Query{Must: []model.Condition{
			model.Eq(model.FieldPath, commit.Branch.Path),
			model.Eq(model.FieldStart, commit.Timepoint),
		}}
		if err := u.store.Delete(ctx, class, q); err != nil {
			return goerr.Wrap(err, "failed to delete speculative entity documents", goerr.V("path", commit.Branch.Path), goerr.V("class", class))
		}
	}

	saveSet := make([]*model.Branch, 0, 2)

	current, err := u.findCurrent(ctx, commit.Branch.Path)
	if err != nil {
		return err
	}
	if current == nil {
		return goerr.Wrap(types.ErrInvariantViolation, "no current timespan to unlock", goerr.V("path", commit.Branch.Path))
	}
	current.Locked = false
	saveSet = append(saveSet, current)

	if entry.sourceLock != "" {
		source, err := u.findCurrent(ctx, entry.sourceLock)
		if err != nil {
			return err
		}
		if source != nil {
			source.Locked = false
			saveSet = append(saveSet, source)
		}
	}

	if err := u.store.Save(ctx, saveSet...); err != nil {
		return goerr.Wrap(err, "failed to persist rollback", goerr.V("path", commit.Branch.Path))
	}

	return nil
}
