// Package testhelper is a shared BranchStore test suite, run against every
// backend (memory, postgres, firestore), mirroring the teacher's
// pkg/repository/testhelper.TestAll pattern.
package testhelper

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/gt"
	"github.com/xiashuijun/elasticvc/pkg/domain/interfaces"
	"github.com/xiashuijun/elasticvc/pkg/domain/model"
	"github.com/xiashuijun/elasticvc/pkg/domain/types"
)

// TestAll runs every BranchStore test case against store. Call it from a
// backend-specific _test.go file after constructing store, e.g.:
//
//	func TestMemoryStore(t *testing.T) { testhelper.TestAll(t, memory.New()) }
func TestAll(t *testing.T, store interfaces.BranchStore) {
	t.Run("SaveAndQuery", func(t *testing.T) { testSaveAndQuery(t, store) })
	t.Run("CurrentUniqueness", func(t *testing.T) { testCurrentUniqueness(t, store) })
	t.Run("PrefixQuery", func(t *testing.T) { testPrefixQuery(t, store) })
	t.Run("Paging", func(t *testing.T) { testPaging(t, store) })
	t.Run("DeleteByClass", func(t *testing.T) { testDeleteByClass(t, store) })
	t.Run("DeleteAll", func(t *testing.T) { testDeleteAll(t, store) })
}

func randPath(prefix string) types.BranchPath {
	return types.BranchPath(fmt.Sprintf("%s/%s", prefix, uuid.New().String()[:8]))
}

func testSaveAndQuery(t *testing.T, store interfaces.BranchStore) {
	ctx := context.Background()
	path := randPath("MAIN")
	now := time.Now().Truncate(time.Microsecond)

	branch := &model.Branch{
		Path:            path,
		Base:            now,
		Head:            now,
		Start:           now,
		Locked:          false,
		ContainsContent: true,
	}
	gt.NoError(t, store.Save(ctx, branch))

	results, err := store.QueryForList(ctx, model.Query{
		Must: []model.Condition{
			model.Eq(model.FieldPath, path),
			model.Absent(model.FieldEnd),
		},
	})
	gt.NoError(t, err)
	gt.V(t, len(results)).Equal(1)
	gt.V(t, results[0].Path).Equal(path)
	gt.True(t, results[0].Head.Equal(now))
	gt.True(t, results[0].ContainsContent)

	count, err := store.Count(ctx, model.Query{
		Must: []model.Condition{model.Eq(model.FieldPath, path)},
	})
	gt.NoError(t, err)
	gt.V(t, count).Equal(1)
}

func testCurrentUniqueness(t *testing.T, store interfaces.BranchStore) {
	ctx := context.Background()
	path := randPath("MAIN")
	t0 := time.Now().Truncate(time.Microsecond)
	t1 := t0.Add(time.Second)

	closed := &model.Branch{Path: path, Base: t0, Head: t1, Start: t0, End: &t1}
	current := &model.Branch{Path: path, Base: t0, Head: t1, Start: t1}
	gt.NoError(t, store.Save(ctx, closed, current))

	results, err := store.QueryForList(ctx, model.Query{
		Must: []model.Condition{
			model.Eq(model.FieldPath, path),
			model.Absent(model.FieldEnd),
		},
	})
	gt.NoError(t, err)
	gt.V(t, len(results)).Equal(1)
	gt.True(t, results[0].Start.Equal(t1))

	all, err := store.QueryForList(ctx, model.Query{
		Must: []model.Condition{model.Eq(model.FieldPath, path)},
	})
	gt.NoError(t, err)
	gt.V(t, len(all)).Equal(2)
}

func testPrefixQuery(t *testing.T, store interfaces.BranchStore) {
	ctx := context.Background()
	root := randPath("MAIN")
	child := types.BranchPath(string(root) + "/child")
	other := randPath("MAIN")
	now := time.Now().Truncate(time.Microsecond)

	gt.NoError(t, store.Save(ctx,
		&model.Branch{Path: root, Base: now, Head: now, Start: now},
		&model.Branch{Path: child, Base: now, Head: now, Start: now},
		&model.Branch{Path: other, Base: now, Head: now, Start: now},
	))

	results, err := store.QueryForList(ctx, model.Query{
		Must: []model.Condition{
			model.Prefix(model.FieldPath, string(root)+"/"),
			model.Absent(model.FieldEnd),
		},
	})
	gt.NoError(t, err)
	gt.V(t, len(results)).Equal(1)
	gt.V(t, results[0].Path).Equal(child)
}

func testPaging(t *testing.T, store interfaces.BranchStore) {
	ctx := context.Background()
	prefix := randPath("MAIN")
	now := time.Now().Truncate(time.Microsecond)

	var branches []*model.Branch
	for i := 0; i < 5; i++ {
		branches = append(branches, &model.Branch{
			Path:  types.BranchPath(fmt.Sprintf("%s/%02d", prefix, i)),
			Base:  now,
			Head:  now,
			Start: now,
		})
	}
	gt.NoError(t, store.Save(ctx, branches...))

	results, err := store.QueryForList(ctx, model.Query{
		Must: []model.Condition{
			model.Prefix(model.FieldPath, string(prefix)+"/"),
			model.Absent(model.FieldEnd),
		},
		Sort: []model.SortField{{Field: model.FieldPath}},
	}.WithPaging(1, 2))
	gt.NoError(t, err)
	gt.V(t, len(results)).Equal(2)
	gt.V(t, results[0].Path).Equal(branches[1].Path)
	gt.V(t, results[1].Path).Equal(branches[2].Path)
}

func testDeleteByClass(t *testing.T, store interfaces.BranchStore) {
	ctx := context.Background()
	path := randPath("MAIN")
	start := time.Now().Truncate(time.Microsecond)
	class := types.DomainEntityClass("testhelper-entities-" + uuid.New().String()[:8])

	q := model.Query{Must: []model.Condition{
		model.Eq(model.FieldPath, path),
		model.Eq(model.FieldStart, start),
	}}

	// A backend with nothing written under class must tolerate a delete
	// against it without erroring (rollback calls this unconditionally for
	// every entity class a commit touched, even an empty one).
	gt.NoError(t, store.Delete(ctx, class, q))
}

func testDeleteAll(t *testing.T, store interfaces.BranchStore) {
	ctx := context.Background()
	path := randPath("MAIN")
	now := time.Now().Truncate(time.Microsecond)

	gt.NoError(t, store.Save(ctx, &model.Branch{Path: path, Base: now, Head: now, Start: now}))
	gt.NoError(t, store.DeleteAll(ctx))

	count, err := store.Count(ctx, model.Query{Must: []model.Condition{model.Eq(model.FieldPath, path)}})
	gt.NoError(t, err)
	gt.V(t, count).Equal(0)
}
