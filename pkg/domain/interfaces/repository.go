package interfaces

import (
	"context"

	"github.com/xiashuijun/elasticvc/pkg/domain/model"
	"github.com/xiashuijun/elasticvc/pkg/domain/types"
)

//go:generate moq -out ../mock/branch_store_mock.go -pkg mock . BranchStore

// BranchStore is the thin boundary over the backing document store that
// spec.md §2 item 2 and §6 describe: count/query by (path, time) predicates,
// batch save, and delete-by-query scoped to one domain entity class at a
// time. Every higher-level operation (branch repository queries, the commit
// coordinator, the lifecycle API) is built only on this interface, so a
// Firestore-backed, SQL-backed, or in-memory implementation is
// interchangeable.
type BranchStore interface {
	// Count returns the number of Branch timespans matching q.
	Count(ctx context.Context, q model.Query) (int, error)

	// QueryForList returns Branch timespans matching q, honoring q's sort
	// and paging directives.
	QueryForList(ctx context.Context, q model.Query) ([]*model.Branch, error)

	// Save persists one or more timespans. Backends should apply the whole
	// batch with best-effort atomicity (spec.md §6).
	Save(ctx context.Context, branches ...*model.Branch) error

	// Delete removes documents of the given domain entity class matching q.
	// Used by rollback to remove entity documents written speculatively by
	// a client under a commit's (path, start) coordinates (spec.md §4.5).
	Delete(ctx context.Context, class types.DomainEntityClass, q model.Query) error

	// DeleteAll removes every Branch timespan. Destructive; admin/test use
	// only (spec.md §6 deleteAll).
	DeleteAll(ctx context.Context) error
}
