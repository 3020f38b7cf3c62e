// Package postgres is a lib/pq-backed BranchStore over a "branches" table
// with a JSONB versions_replaced column, demonstrating that the
// BranchStore contract is backend-agnostic (SPEC_FULL.md domain stack).
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/m-mizutani/goerr/v2"
	"github.com/xiashuijun/elasticvc/pkg/domain/interfaces"
	"github.com/xiashuijun/elasticvc/pkg/domain/model"
	"github.com/xiashuijun/elasticvc/pkg/domain/types"
	"github.com/xiashuijun/elasticvc/pkg/utils/safe"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS branches (
	path TEXT NOT NULL,
	base TIMESTAMPTZ NOT NULL,
	head TIMESTAMPTZ NOT NULL,
	start TIMESTAMPTZ NOT NULL,
	"end" TIMESTAMPTZ,
	locked BOOLEAN NOT NULL DEFAULT FALSE,
	contains_content BOOLEAN NOT NULL DEFAULT FALSE,
	last_promotion TIMESTAMPTZ,
	versions_replaced JSONB NOT NULL DEFAULT '[]',
	PRIMARY KEY (path, start)
);
`

type store struct {
	db *sql.DB
}

var _ interfaces.BranchStore = (*store)(nil)

// New opens a BranchStore over db, creating the branches table if absent.
func New(db *sql.DB) (interfaces.BranchStore, error) {
	if _, err := db.Exec(schemaDDL); err != nil {
		return nil, goerr.Wrap(err, "failed to create branches table")
	}
	return &store{db: db}, nil
}

func (s *store) Save(ctx context.Context, branches ...*model.Branch) error {
	if len(branches) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin transaction")
	}
	defer safe.Rollback(tx)

	const upsert = `
INSERT INTO branches (path, base, head, start, "end", locked, contains_content, last_promotion, versions_replaced)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (path, start) DO UPDATE SET
	base = EXCLUDED.base,
	head = EXCLUDED.head,
	"end" = EXCLUDED."end",
	locked = EXCLUDED.locked,
	contains_content = EXCLUDED.contains_content,
	last_promotion = EXCLUDED.last_promotion,
	versions_replaced = EXCLUDED.versions_replaced
`

	for _, b := range branches {
		if b == nil {
			continue
		}
		versions, err := json.Marshal(toVersionStrings(b.VersionsReplaced))
		if err != nil {
			return goerr.Wrap(err, "failed to marshal versionsReplaced", goerr.V("path", b.Path))
		}
		if _, err := tx.ExecContext(ctx, upsert,
			string(b.Path), b.Base, b.Head, b.Start, b.End, b.Locked, b.ContainsContent, b.LastPromotion, versions,
		); err != nil {
			return goerr.Wrap(err, "failed to upsert branch", goerr.V("path", b.Path))
		}
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit branch save")
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
	where, args := translate(q.Must, q.MustNot)

	query := `SELECT path, base, head, start, "end", locked, contains_content, last_promotion, versions_replaced FROM branches`
	if where != "" {
		query += " WHERE " + where
	}
	if orderBy := orderByClause(q.Sort); orderBy != "" {
		query += " " + orderBy
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query branches", goerr.V("query", query))
	}
	defer rows.Close()

	var out []*model.Branch
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate branches")
	}

	// Should (OR) composition has no single WHERE fragment that stays
	// correct alongside arbitrary Must/MustNot fragments without a second
	// query plan per case, so it is applied in-process, as the Firestore
	// backend also does for the same clause.
	if len(q.Should) > 0 {
		filtered := out[:0]
		for _, b := range out {
			if q.Matches(b) {
				filtered = append(filtered, b)
			}
		}
		out = filtered
	}

	if q.Size > 0 {
		end := q.Offset + q.Size
		if q.Offset >= len(out) {
			return nil, nil
		}
		if end > len(out) {
			end = len(out)
		}
		out = out[q.Offset:end]
	} else if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil, nil
		}
		out = out[q.Offset:]
	}

	return out, nil
}

func scanBranch(rows *sql.Rows) (*model.Branch, error) {
	var (
		path            string
		base, head, st  time.Time
		end             sql.NullTime
		locked          bool
		containsContent bool
		lastPromotion   sql.NullTime
		versionsRaw     []byte
	)
	if err := rows.Scan(&path, &base, &head, &st, &end, &locked, &containsContent, &lastPromotion, &versionsRaw); err != nil {
		return nil, goerr.Wrap(err, "failed to scan branch row")
	}

	var versionStrings []string
	if len(versionsRaw) > 0 {
		if err := json.Unmarshal(versionsRaw, &versionStrings); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal versionsReplaced")
		}
	}

	b := &model.Branch{
		Path:             types.BranchPath(path),
		Base:             base,
		Head:             head,
		Start:            st,
		Locked:           locked,
		ContainsContent:  containsContent,
		VersionsReplaced: fromVersionStrings(versionStrings),
	}
	if end.Valid {
		b.End = &end.Time
	}
	if lastPromotion.Valid {
		b.LastPromotion = &lastPromotion.Time
	}
	// State is left zero-valued: it is transient, never persisted (spec.md
	// §3), and correctly derived only against a parent's head, which
	// pkg/usecase/lookup.go's resolveState does for the branches FindLatest,
	// FindAll and FindChildren return; FindAtTimepointOrThrow leaves it unset.
	return b, nil
}

func translate(must, mustNot []model.Condition) (string, []any) {
	var clauses []string
	var args []any

	for _, c := range must {
		clause, vals := conditionSQL(c, len(args)+1)
		clauses = append(clauses, clause)
		args = append(args, vals...)
	}
	for _, c := range mustNot {
		clause, vals := conditionSQL(c, len(args)+1)
		clauses = append(clauses, "NOT ("+clause+")")
		args = append(args, vals...)
	}

	return strings.Join(clauses, " AND "), args
}

func conditionSQL(c model.Condition, argStart int) (string, []any) {
	col := columnName(c.Field)

	switch c.Op {
	case model.OpEq:
		return fmt.Sprintf("%s = $%d", col, argStart), []any{c.Value}
	case model.OpLt:
		return fmt.Sprintf("%s < $%d", col, argStart), []any{c.Value}
	case model.OpLte:
		return fmt.Sprintf("%s <= $%d", col, argStart), []any{c.Value}
	case model.OpGt:
		return fmt.Sprintf("%s > $%d", col, argStart), []any{c.Value}
	case model.OpGte:
		return fmt.Sprintf("%s >= $%d", col, argStart), []any{c.Value}
	case model.OpExists:
		return fmt.Sprintf("%s IS NOT NULL", col), nil
	case model.OpAbsent:
		return fmt.Sprintf("%s IS NULL", col), nil
	case model.OpPrefix:
		prefix, _ := c.Value.(string)
		return fmt.Sprintf("%s LIKE $%d", col, argStart), []any{prefix + "%"}
	}
	return "TRUE", nil
}

func columnName(f model.Field) string {
	switch f {
	case model.FieldPath:
		return "path"
	case model.FieldBase:
		return "base"
	case model.FieldHead:
		return "head"
	case model.FieldStart:
		return "start"
	case model.FieldEnd:
		return `"end"`
	case model.FieldLocked:
		return "locked"
	}
	return string(f)
}

func orderByClause(fields []model.SortField) string {
	if len(fields) == 0 {
		return ""
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		dir := "ASC"
		if f.Desc {
			dir = "DESC"
		}
		parts[i] = fmt.Sprintf("%s %s", columnName(f.Field), dir)
	}
	return "ORDER BY " + strings.Join(parts, ", ")
}

func (s *store) Delete(ctx context.Context, class types.DomainEntityClass, q model.Query) error {
	// Domain entity documents belong to the document store this package
	// stands in for (spec.md §1); here they are modeled as rows in a table
	// named after the entity class, keyed by (path, start), matching the
	// coordinates rollback deletes by.
	table := pq.QuoteIdentifier(string(class))

	where, args := translate(q.Must, nil)
	query := fmt.Sprintf("DELETE FROM %s", table)
	if where != "" {
		query += " WHERE " + where
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return goerr.Wrap(err, "failed to delete entity rows", goerr.V("class", class))
	}
	return nil
}

func (s *store) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM branches"); err != nil {
		return goerr.Wrap(err, "failed to delete all branches")
	}
	return nil
}

func toVersionStrings(versions []types.VersionID) []string {
	out := make([]string, len(versions))
	for i, v := range versions {
		out[i] = string(v)
	}
	return out
}

func fromVersionStrings(versions []string) []types.VersionID {
	out := make([]types.VersionID, len(versions))
	for i, v := range versions {
		out[i] = types.VersionID(v)
	}
	return out
}
