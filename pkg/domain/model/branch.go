package model

import (
	"time"

	"github.com/xiashuijun/elasticvc/pkg/domain/types"
)

// Branch is one immutable timespan record in a branch's history. A branch
// as a whole is the sequence of Branch records sharing the same Path; the
// one with a nil End is the current version (spec.md §3).
type Branch struct {
	Path types.BranchPath

	// Base is the timepoint on the parent at which this timespan was last
	// rebased. For MAIN it equals the branch's creation time.
	Base time.Time

	// Head is the timepoint of the latest commit on this timespan.
	Head time.Time

	// Start is the timepoint at which this timespan began.
	Start time.Time

	// End is the timepoint at which this timespan was superseded. Nil means
	// this is the current timespan for Path.
	End *time.Time

	Locked bool

	// ContainsContent is true once any CONTENT or PROMOTION commit has
	// landed on this path since it was created.
	ContainsContent bool

	// LastPromotion is the timepoint of the most recent promotion out of
	// this branch (source side only). Nil if the branch has never been a
	// promotion source.
	LastPromotion *time.Time

	// VersionsReplaced is the set of externally-stored entity-version
	// identifiers this branch supersedes relative to its parent.
	VersionsReplaced []types.VersionID

	// State is computed by the lookup layer, never persisted. See
	// DeriveState.
	State BranchState
}

// IsCurrent reports whether b is the current (no End) timespan for its path.
func (b *Branch) IsCurrent() bool {
	return b.End == nil
}

// Clone returns a deep-enough copy of b so that store backends can hand out
// Branch values without letting callers mutate shared state (mirrors the
// teacher's copyBranch helper in pkg/repository/memory).
func (b *Branch) Clone() *Branch {
	if b == nil {
		return nil
	}
	clone := *b
	if b.End != nil {
		end := *b.End
		clone.End = &end
	}
	if b.LastPromotion != nil {
		lp := *b.LastPromotion
		clone.LastPromotion = &lp
	}
	if b.VersionsReplaced != nil {
		clone.VersionsReplaced = append([]types.VersionID(nil), b.VersionsReplaced...)
	}
	return &clone
}

// HasVersion reports whether id is already present in VersionsReplaced.
func (b *Branch) HasVersion(id types.VersionID) bool {
	for _, v := range b.VersionsReplaced {
		if v == id {
			return true
		}
	}
	return false
}

// MergeVersions returns the union of base and extra, with
// duplicates removed and order preserved from the first occurrence.
func MergeVersions(base []types.VersionID, extra ...types.VersionID) []types.VersionID {
	seen := make(map[types.VersionID]struct{}, len(base)+len(extra))
	out := make([]types.VersionID, 0, len(base)+len(extra))
	for _, v := range base {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	for _, v := range extra {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
