// Package branchquery holds the higher-level predicates spec.md §2 item 3
// describes ("current version of path P", "version of P at timepoint T",
// "all current branches", "children of P"), built only on
// interfaces.BranchStore. pkg/usecase composes these with state resolution
// and error-kind semantics; this package knows nothing about commits,
// locks, or spec.md §7's error vocabulary beyond ErrInvariantViolation,
// which is a property of the store result shape itself.
package branchquery

import (
	"context"
	"sort"

	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/xiashuijun/elasticvc/pkg/domain/interfaces"
	"github.com/xiashuijun/elasticvc/pkg/domain/model"
	"github.com/xiashuijun/elasticvc/pkg/domain/types"
)

// Current returns the current (End == nil) timespan for path, or nil if
// none exists. More than one current timespan for a single path is an
// invariant violation (spec.md §3).
func Current(ctx context.Context, store interfaces.BranchStore, path types.BranchPath) (*model.Branch, error) {
	results, err := store.QueryForList(ctx, model.Query{
		Must: []model.Condition{
			model.Eq(model.FieldPath, path),
			model.Absent(model.FieldEnd),
		},
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query current timespan", goerr.V("path", path))
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return nil, goerr.Wrap(types.ErrInvariantViolation, "more than one current timespan for path", goerr.V("path", path))
	}
}

// AtTimepoint returns the timespan covering at on path: start <= at and
// (end absent or end > at). Zero matches is reported as (nil, nil); more
// than one match is an invariant violation.
func AtTimepoint(ctx context.Context, store interfaces.BranchStore, path types.BranchPath, at time.Time) (*model.Branch, error) {
	results, err := store.QueryForList(ctx, model.Query{
		Must: []model.Condition{
			model.Eq(model.FieldPath, path),
			model.Lte(model.FieldStart, at),
		},
		Should: []model.Condition{
			model.Absent(model.FieldEnd),
			model.Gt(model.FieldEnd, at),
		},
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query timepoint", goerr.V("path", path), goerr.V("at", at))
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return nil, goerr.Wrap(types.ErrInvariantViolation, "more than one timespan covers timepoint", goerr.V("path", path), goerr.V("at", at))
	}
}

// AllCurrent returns every current timespan, ordered by path, capped at
// model.DefaultPageSize.
func AllCurrent(ctx context.Context, store interfaces.BranchStore) ([]*model.Branch, error) {
	results, err := store.QueryForList(ctx, model.Query{
		Must: []model.Condition{model.Absent(model.FieldEnd)},
		Sort: []model.SortField{{Field: model.FieldPath}},
	}.WithPaging(0, model.DefaultPageSize))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query all current branches")
	}
	return results, nil
}

// Children returns every current timespan whose path is a transitive
// descendant of path (prefix match on path+"/"), ordered by path.
func Children(ctx context.Context, store interfaces.BranchStore, path types.BranchPath) ([]*model.Branch, error) {
	results, err := store.QueryForList(ctx, model.Query{
		Must: []model.Condition{
			model.Prefix(model.FieldPath, string(path)+"/"),
			model.Absent(model.FieldEnd),
		},
		Sort: []model.SortField{{Field: model.FieldPath}},
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query children", goerr.V("path", path))
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	return results, nil
}
