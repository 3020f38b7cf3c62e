package model

import (
	"time"

	"github.com/xiashuijun/elasticvc/pkg/domain/types"
)

// CommitType classifies what kind of change a commit represents.
type CommitType string

const (
	CommitContent   CommitType = "CONTENT"
	CommitRebase    CommitType = "REBASE"
	CommitPromotion CommitType = "PROMOTION"
)

// Commit is a transient, in-memory unit of work opened against a branch's
// current timespan. It is consumed exactly once, by either Complete or
// Rollback on the coordinator that opened it (spec.md §3, §4.5).
type Commit struct {
	// Branch is a snapshot of the timespan the commit was opened against.
	// Mutations (e.g. a rebase's Base update) are made on this copy and only
	// become persistent at completion.
	Branch Branch

	Type CommitType

	// Timepoint is strictly greater than Branch.Head, assigned at open.
	Timepoint time.Time

	// SourcePath is set for PROMOTION commits: the descendant path whose
	// VersionsReplaced are merged into Branch's new timespan.
	SourcePath types.BranchPath

	// RebasePreviousBase is set for REBASE commits: the Base value the
	// branch held before this rebase, kept for audit/listener inspection.
	RebasePreviousBase *time.Time

	// EntityVersionsReplaced accumulates the externally-stored entity
	// versions this commit has replaced, merged into the new timespan's
	// VersionsReplaced at completion.
	EntityVersionsReplaced []types.VersionID

	// EntityClasses records which domain entity classes the commit has
	// written to, so Rollback knows what to delete.
	EntityClasses []types.DomainEntityClass
}

// IsPromotion reports whether the commit is a PROMOTION commit.
func (c *Commit) IsPromotion() bool {
	return c.Type == CommitPromotion
}
