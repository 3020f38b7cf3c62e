// Package usecase implements the branch-versioning core: the commit
// coordinator (open/complete/rollback) and the branch lifecycle API
// (create, lookup, unlock) described by spec.md §4.
package usecase

import (
	"sync"

	"github.com/xiashuijun/elasticvc/pkg/domain/interfaces"
	"github.com/xiashuijun/elasticvc/pkg/domain/model"
	"github.com/xiashuijun/elasticvc/pkg/domain/types"
)

// UseCase coordinates reads and writes against a BranchStore. Exactly one
// UseCase should own a given store: the lock-sensitive operations
// (the Open*Commit methods, Complete, Rollback) are serialized by mu, a
// single process-wide mutex, per spec.md §5. Read-only queries are not
// serialized and rely on the store's own consistency.
type UseCase struct {
	store interfaces.BranchStore
	clock model.Clock

	mu        sync.Mutex
	listeners []interfaces.CommitListener
	pending   map[types.BranchPath]*pendingCommit
}

// pendingCommit tracks an open, not-yet-consumed commit so Complete/
// Rollback can be matched to the Open that produced them and can never run
// twice (spec.md §4.5 "exactly-once", §9 "one-shot commit completion").
type pendingCommit struct {
	commit     model.Commit
	sourceLock types.BranchPath // non-empty for PROMOTION: the source path whose lock this entry also holds
}

// Option configures a UseCase at construction time.
type Option func(*UseCase)

// WithClock overrides the default wall-clock time source. Tests use this to
// get deterministic, strictly-increasing commit timepoints.
func WithClock(clock model.Clock) Option {
	return func(u *UseCase) { u.clock = clock }
}

// New constructs a UseCase backed by store.
func New(store interfaces.BranchStore, opts ...Option) *UseCase {
	u := &UseCase{
		store:   store,
		clock:   model.SystemClock,
		pending: make(map[types.BranchPath]*pendingCommit),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

var _ interfaces.UseCase = (*UseCase)(nil)
