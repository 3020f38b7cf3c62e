// Package memory is an in-process BranchStore used by tests and by the
// serve command when no cloud backend is configured, mirroring the
// teacher's pkg/repository/memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xiashuijun/elasticvc/pkg/domain/interfaces"
	"github.com/xiashuijun/elasticvc/pkg/domain/model"
	"github.com/xiashuijun/elasticvc/pkg/domain/types"
)

// Store is an in-memory, mutex-guarded implementation of
// interfaces.BranchStore. It additionally tracks speculative entity
// documents so tests can exercise Rollback end to end; production entity
// storage belongs to the document store this package stands in for
// (spec.md §1).
type Store struct {
	mu       sync.RWMutex
	branches []*model.Branch
	entities map[types.DomainEntityClass][]entityDoc
}

type entityDoc struct {
	path  types.BranchPath
	start time.Time
}

// New creates a new in-memory BranchStore.
func New() *Store {
	return &Store{
		entities: make(map[types.DomainEntityClass][]entityDoc),
	}
}

var _ interfaces.BranchStore = (*Store)(nil)

func (s *Store) Count(ctx context.Context, q model.Query) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, b := range s.branches {
		if q.Matches(b) {
			count++
		}
	}
	return count, nil
}

func (s *Store) QueryForList(ctx context.Context, q model.Query) ([]*model.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*model.Branch
	for _, b := range s.branches {
		if q.Matches(b) {
			matched = append(matched, b.Clone())
		}
	}

	sortBranches(matched, q.Sort)

	if q.Size > 0 {
		end := q.Offset + q.Size
		if q.Offset >= len(matched) {
			return nil, nil
		}
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[q.Offset:end]
	} else if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[q.Offset:]
	}

	return matched, nil
}

func (s *Store) Save(ctx context.Context, branches ...*model.Branch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range branches {
		if b == nil {
			continue
		}
		idx := s.indexOf(b.Path, b.Start)
		clone := b.Clone()
		if idx >= 0 {
			s.branches[idx] = clone
		} else {
			s.branches = append(s.branches, clone)
		}
	}
	return nil
}

func (s *Store) indexOf(path types.BranchPath, start time.Time) int {
	for i, b := range s.branches {
		if b.Path == path && b.Start.Equal(start) {
			return i
		}
	}
	return -1
}

func (s *Store) Delete(ctx context.Context, class types.DomainEntityClass, q model.Query) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.entities[class]
	kept := make([]entityDoc, 0, len(docs))
	for _, d := range docs {
		if pathStartMatches(q, d.path, d.start) {
			continue
		}
		kept = append(kept, d)
	}
	s.entities[class] = kept
	return nil
}

func (s *Store) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.branches = nil
	s.entities = make(map[types.DomainEntityClass][]entityDoc)
	return nil
}

// PutEntity records a speculative document at (path, start) under class,
// for tests that exercise Rollback end to end.
func (s *Store) PutEntity(class types.DomainEntityClass, path types.BranchPath, start time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[class] = append(s.entities[class], entityDoc{path: path, start: start})
}

// CountEntities returns how many speculative documents remain under class.
func (s *Store) CountEntities(class types.DomainEntityClass) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities[class])
}

func pathStartMatches(q model.Query, path types.BranchPath, start time.Time) bool {
	for _, c := range q.Must {
		switch c.Field {
		case model.FieldPath:
			if path != c.Value {
				return false
			}
		case model.FieldStart:
			t, ok := c.Value.(time.Time)
			if !ok || !start.Equal(t) {
				return false
			}
		}
	}
	return true
}

func sortBranches(branches []*model.Branch, fields []model.SortField) {
	if len(fields) == 0 {
		return
	}
	sort.SliceStable(branches, func(i, j int) bool {
		for _, f := range fields {
			less, equal := compareField(branches[i], branches[j], f)
			if !equal {
				if f.Desc {
					return !less
				}
				return less
			}
		}
		return false
	})
}

func compareField(a, b *model.Branch, f model.SortField) (less, equal bool) {
	switch f.Field {
	case model.FieldPath:
		return a.Path < b.Path, a.Path == b.Path
	case model.FieldStart:
		return a.Start.Before(b.Start), a.Start.Equal(b.Start)
	case model.FieldHead:
		return a.Head.Before(b.Head), a.Head.Equal(b.Head)
	case model.FieldBase:
		return a.Base.Before(b.Base), a.Base.Equal(b.Base)
	default:
		return false, true
	}
}
