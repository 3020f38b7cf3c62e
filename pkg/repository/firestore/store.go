// Package firestore is a Firestore-backed BranchStore, mirroring the
// teacher's pkg/repository/firestore client-construction pattern.
package firestore

import (
	"context"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/xiashuijun/elasticvc/pkg/domain/interfaces"
	"github.com/xiashuijun/elasticvc/pkg/domain/model"
	"github.com/xiashuijun/elasticvc/pkg/domain/types"
	"google.golang.org/api/iterator"
)

// firestorePrefixCeiling is appended to a string prefix to bound a range
// query to "every string starting with prefix" — the standard Firestore
// prefix-scan trick, since Firestore has no native LIKE.
const firestorePrefixCeiling = ""

const collectionBranches = "branches"

type store struct {
	client *firestore.Client
}

var _ interfaces.BranchStore = (*store)(nil)

// New creates a new Firestore-backed BranchStore.
func New(ctx context.Context, projectID, databaseID string) (interfaces.BranchStore, error) {
	var client *firestore.Client
	var err error

	if databaseID != "" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID),
		)
	}

	return &store{client: client}, nil
}

// branchDoc is the Firestore wire representation of a model.Branch. Nil
// pointers are stored as Firestore nulls, which the "absent"/"exists"
// query primitives filter on. time.Time fields round-trip through
// Firestore's native timestamp type without conversion.
type branchDoc struct {
	Path             string
	Base             time.Time
	Head             time.Time
	Start            time.Time
	End              *time.Time
	Locked           bool
	ContainsContent  bool
	LastPromotion    *time.Time
	VersionsReplaced []string
}

func toDoc(b *model.Branch) *branchDoc {
	versions := make([]string, len(b.VersionsReplaced))
	for i, v := range b.VersionsReplaced {
		versions[i] = string(v)
	}
	return &branchDoc{
		Path:             string(b.Path),
		Base:             b.Base,
		Head:             b.Head,
		Start:            b.Start,
		End:              b.End,
		Locked:           b.Locked,
		ContainsContent:  b.ContainsContent,
		LastPromotion:    b.LastPromotion,
		VersionsReplaced: versions,
	}
}

func fromDoc(doc *branchDoc) *model.Branch {
	versions := make([]types.VersionID, len(doc.VersionsReplaced))
	for i, v := range doc.VersionsReplaced {
		versions[i] = types.VersionID(v)
	}
	// State is left zero-valued: it is transient, never persisted (spec.md
	// §3), and correctly derived only against a parent's head, which
	// pkg/usecase/lookup.go's resolveState does for the branches FindLatest,
	// FindAll and FindChildren return; FindAtTimepointOrThrow leaves it unset.
	return &model.Branch{
		Path:             types.BranchPath(doc.Path),
		Base:             doc.Base,
		Head:             doc.Head,
		Start:            doc.Start,
		End:              doc.End,
		Locked:           doc.Locked,
		ContainsContent:  doc.ContainsContent,
		LastPromotion:    doc.LastPromotion,
		VersionsReplaced: versions,
	}
}

func toDocID(path types.BranchPath, start time.Time) string {
	return strings.ReplaceAll(string(path), "/", ":") + "@" + strconv.FormatInt(start.UnixNano(), 10)
}

func (s *store) docRef(b *model.Branch) *firestore.DocumentRef {
	return s.client.Collection(collectionBranches).Doc(toDocID(b.Path, b.Start))
}

func (s *store) Save(ctx context.Context, branches ...*model.Branch) error {
	if len(branches) == 0 {
		return nil
	}

	batch := s.client.Batch()
	for _, b := range branches {
		batch.Set(s.docRef(b), toDoc(b))
	}

	if _, err := batch.Commit(ctx); err != nil {
		return goerr.Wrap(err, "failed to save branch timespans", goerr.V("count", len(branches)))
	}
	return nil
}

func (s *store) Count(ctx context.Context, q model.Query) (int, error) {
	results, err := s.QueryForList(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(results), nil
}

func (s *store) QueryForList(ctx context.Context, q model.Query) ([]*model.Branch, error) {
	fq := s.translate(q)

	iter := fq.Documents(ctx)
	defer iter.Stop()

	var out []*model.Branch
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate branches")
		}

		var doc branchDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode branch document", goerr.V("docID", snap.Ref.ID))
		}
		out = append(out, fromDoc(&doc))
	}

	// Firestore cannot express the "end absent OR end > T" Should clause
	// used by findAtTimepoint in one index-backed query alongside the other
	// Must filters in all SDK versions; apply it in-process as a final
	// filter so the translation stays correct even on installations without
	// the composite index.
	if len(q.Should) > 0 {
		filtered := out[:0]
		for _, b := range out {
			if q.Matches(b) {
				filtered = append(filtered, b)
			}
		}
		out = filtered
	}

	return out, nil
}

func (s *store) translate(q model.Query) firestore.Query {
	fq := s.client.Collection(collectionBranches).Query

	for _, c := range q.Must {
		fq = applyCondition(fq, c)
	}

	for _, f := range q.Sort {
		dir := firestore.Asc
		if f.Desc {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(fieldName(f.Field), dir)
	}

	if q.Offset > 0 {
		fq = fq.Offset(q.Offset)
	}
	if q.Size > 0 {
		fq = fq.Limit(q.Size)
	}

	return fq
}

func applyCondition(fq firestore.Query, c model.Condition) firestore.Query {
	name := fieldName(c.Field)

	switch c.Op {
	case model.OpEq:
		return fq.Where(name, "==", c.Value)
	case model.OpLt:
		return fq.Where(name, "<", c.Value)
	case model.OpLte:
		return fq.Where(name, "<=", c.Value)
	case model.OpGt:
		return fq.Where(name, ">", c.Value)
	case model.OpGte:
		return fq.Where(name, ">=", c.Value)
	case model.OpExists:
		return fq.Where(name, "!=", nil)
	case model.OpAbsent:
		return fq.Where(name, "==", nil)
	case model.OpPrefix:
		prefix, _ := c.Value.(string)
		// The standard Firestore "prefix scan" trick: End is the smallest
		// string that is not also prefixed by prefix.
		return fq.Where(name, ">=", prefix).Where(name, "<", prefix+firestorePrefixCeiling)
	}
	return fq
}

func fieldName(f model.Field) string {
	switch f {
	case model.FieldPath:
		return "Path"
	case model.FieldBase:
		return "Base"
	case model.FieldHead:
		return "Head"
	case model.FieldStart:
		return "Start"
	case model.FieldEnd:
		return "End"
	case model.FieldLocked:
		return "Locked"
	}
	return string(f)
}

func (s *store) Delete(ctx context.Context, class types.DomainEntityClass, q model.Query) error {
	// Domain entity documents are owned by the store this package stands in
	// for (spec.md §1); this adapter only forwards the delete-by-query to
	// the collection the entity layer uses, named after its class.
	collection := s.client.Collection(string(class))

	fq := collection.Query
	for _, c := range q.Must {
		fq = applyCondition(fq, c)
	}

	iter := fq.Documents(ctx)
	defer iter.Stop()

	batch := s.client.Batch()
	pending := 0
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to iterate entities for delete", goerr.V("class", class))
		}
		batch.Delete(snap.Ref)
		pending++
	}

	if pending == 0 {
		return nil
	}
	if _, err := batch.Commit(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete entity documents", goerr.V("class", class))
	}
	return nil
}

func (s *store) DeleteAll(ctx context.Context) error {
	iter := s.client.Collection(collectionBranches).Documents(ctx)
	defer iter.Stop()

	batch := s.client.Batch()
	pending := 0
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return goerr.Wrap(err, "failed to iterate branches for delete")
		}
		batch.Delete(snap.Ref)
		pending++
		if pending >= 500 {
			if _, err := batch.Commit(ctx); err != nil {
				return goerr.Wrap(err, "failed to delete branches")
			}
			batch = s.client.Batch()
			pending = 0
		}
	}
	if pending > 0 {
		if _, err := batch.Commit(ctx); err != nil {
			return goerr.Wrap(err, "failed to delete branches")
		}
	}
	return nil
}
