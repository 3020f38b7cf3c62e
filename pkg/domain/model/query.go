package model

import "time"

// Op names a comparison a Condition applies to a single field.
type Op string

const (
	OpEq       Op = "eq"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpExists   Op = "exists"
	OpAbsent   Op = "absent"
	OpPrefix   Op = "prefix"
)

// Field names the Branch fields a Condition can address. Kept as a closed
// set (rather than raw strings) so every BranchStore backend translates the
// same small vocabulary.
type Field string

const (
	FieldPath   Field = "path"
	FieldBase   Field = "base"
	FieldHead   Field = "head"
	FieldStart  Field = "start"
	FieldEnd    Field = "end"
	FieldLocked Field = "locked"
)

// Condition is one equality, range, existence, or prefix test on a Field,
// per the query primitives required by spec.md §6.
type Condition struct {
	Field Field
	Op    Op
	Value any
}

func Eq(f Field, v any) Condition     { return Condition{Field: f, Op: OpEq, Value: v} }
func Lt(f Field, v any) Condition     { return Condition{Field: f, Op: OpLt, Value: v} }
func Lte(f Field, v any) Condition    { return Condition{Field: f, Op: OpLte, Value: v} }
func Gt(f Field, v any) Condition     { return Condition{Field: f, Op: OpGt, Value: v} }
func Gte(f Field, v any) Condition    { return Condition{Field: f, Op: OpGte, Value: v} }
func Exists(f Field) Condition        { return Condition{Field: f, Op: OpExists} }
func Absent(f Field) Condition        { return Condition{Field: f, Op: OpAbsent} }
func Prefix(f Field, v string) Condition { return Condition{Field: f, Op: OpPrefix, Value: v} }

// SortField orders query results by a Field, ascending unless Desc is set.
type SortField struct {
	Field Field
	Desc  bool
}

// Query composes boolean conditions, sort and paging directives over the
// BranchStore, the same shape as the elasticsearch-style "must/should/
// must_not" composition spec.md §6 asks for. Must conditions are AND'd,
// MustNot conditions are negated and AND'd, Should conditions are OR'd
// together (a Should group matches if at least one of its conditions
// matches, or if Should is empty).
type Query struct {
	Must    []Condition
	MustNot []Condition
	Should  []Condition

	Sort []SortField

	Offset int
	Size   int
}

// WithMust returns a copy of q with additional Must conditions appended.
func (q Query) WithMust(conds ...Condition) Query {
	q.Must = append(append([]Condition(nil), q.Must...), conds...)
	return q
}

// WithSort returns a copy of q with additional sort fields appended.
func (q Query) WithSort(fields ...SortField) Query {
	q.Sort = append(append([]SortField(nil), q.Sort...), fields...)
	return q
}

// WithPaging returns a copy of q with Offset/Size set.
func (q Query) WithPaging(offset, size int) Query {
	q.Offset = offset
	q.Size = size
	return q
}

// DefaultPageSize is the reference paging bound spec.md §4.3 asks findAll
// to respect.
const DefaultPageSize = 10000

// Matches evaluates q against a single Branch. The memory backend, which
// has no query language, filters with it directly; the Firestore and SQL
// backends push Must/MustNot down to their native query and use Matches
// in-process only to apply the Should clause.
func (q Query) Matches(b *Branch) bool {
	for _, c := range q.Must {
		if !conditionMatches(c, b) {
			return false
		}
	}
	for _, c := range q.MustNot {
		if conditionMatches(c, b) {
			return false
		}
	}
	if len(q.Should) > 0 {
		any := false
		for _, c := range q.Should {
			if conditionMatches(c, b) {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}
	return true
}

func conditionMatches(c Condition, b *Branch) bool {
	switch c.Field {
	case FieldPath:
		switch c.Op {
		case OpEq:
			return b.Path == c.Value
		case OpPrefix:
			prefix, _ := c.Value.(string)
			return len(string(b.Path)) > len(prefix) && string(b.Path)[:len(prefix)] == prefix
		}
	case FieldLocked:
		if c.Op == OpEq {
			return b.Locked == c.Value
		}
	case FieldEnd:
		switch c.Op {
		case OpExists:
			return b.End != nil
		case OpAbsent:
			return b.End == nil
		case OpGt:
			t, _ := c.Value.(time.Time)
			return b.End != nil && b.End.After(t)
		case OpGte:
			t, _ := c.Value.(time.Time)
			return b.End != nil && !b.End.Before(t)
		}
	case FieldStart:
		return timeConditionMatches(c, b.Start)
	case FieldHead:
		return timeConditionMatches(c, b.Head)
	case FieldBase:
		return timeConditionMatches(c, b.Base)
	}
	return false
}

func timeConditionMatches(c Condition, field time.Time) bool {
	t, ok := c.Value.(time.Time)
	if !ok {
		return false
	}
	switch c.Op {
	case OpEq:
		return field.Equal(t)
	case OpLt:
		return field.Before(t)
	case OpLte:
		return field.Before(t) || field.Equal(t)
	case OpGt:
		return field.After(t)
	case OpGte:
		return field.After(t) || field.Equal(t)
	}
	return false
}
