package types

import "github.com/m-mizutani/goerr/v2"

// ErrInvalidOption is returned by configuration helpers (logging, CLI flags) when a supplied
// option value is not one of the accepted enumerations.
var ErrInvalidOption = goerr.New("invalid option")

// Domain error kinds. These are the sentinel values every layer (store
// adapters, branch queries, the commit coordinator, the HTTP controller)
// wraps with goerr.V context and propagates as-is; see spec.md §7.
var (
	// ErrNotFound is returned when a branch or timespan is absent where the
	// caller required it to exist (findBranchOrThrow, findAtTimepointOrThrow,
	// unlock).
	ErrNotFound = goerr.New("not found")

	// ErrAlreadyExists is returned by create when path already has a current
	// timespan.
	ErrAlreadyExists = goerr.New("already exists")

	// ErrInvalidArgument covers an empty or malformed path, a missing
	// sourcePath on a promotion commit, or a sourcePath that is not a
	// descendant of the destination path.
	ErrInvalidArgument = goerr.New("invalid argument")

	// ErrConflictLocked is returned by openCommit/openRebaseCommit/
	// openPromotionCommit when the branch's current timespan is already
	// locked by another open commit.
	ErrConflictLocked = goerr.New("branch is locked")

	// ErrInvariantViolation marks a broken data-model invariant: more than
	// one current timespan for a path, more than one timespan matching a
	// timepoint, or a missing parent timespan on a non-root lookup.
	ErrInvariantViolation = goerr.New("invariant violation")

	// ErrListenerAborted is returned when a pre-completion commit listener
	// fails; the commit is left open and locked for the caller to roll back.
	ErrListenerAborted = goerr.New("commit listener aborted completion")
)
