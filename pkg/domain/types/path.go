package types

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// RootPath is the literal path of the root branch. Every other path is a
// descendant of it.
const RootPath BranchPath = "MAIN"

// IsRoot reports whether path is the root branch.
func IsRoot(path BranchPath) bool {
	return path == RootPath
}

// Parent returns the path minus its last slash-delimited segment, and true.
// It returns ("", false) for the root path, which has no parent.
func Parent(path BranchPath) (BranchPath, bool) {
	if IsRoot(path) {
		return "", false
	}

	idx := strings.LastIndex(string(path), "/")
	if idx < 0 {
		// A non-root path with no "/" has MAIN as its implicit parent.
		return RootPath, true
	}

	return path[:idx], true
}

// IsAncestor reports whether ancestor is a strict ancestor of path, i.e.
// path is nested one or more segments below it. A path is not its own
// ancestor.
func IsAncestor(ancestor, path BranchPath) bool {
	if ancestor == path {
		return false
	}
	return strings.HasPrefix(string(path), string(ancestor)+"/")
}

// Depth returns the number of slash-delimited segments in path. MAIN has
// depth 1.
func Depth(path BranchPath) int {
	return strings.Count(string(path), "/") + 1
}

// ValidatePath checks the structural preconditions every branch path must
// satisfy: non-empty and free of the "_" character, which is reserved by
// the store adapter for internal document-ID escaping.
func ValidatePath(path BranchPath) error {
	if path == "" {
		return goerr.Wrap(ErrInvalidArgument, "path is empty")
	}
	if strings.Contains(string(path), "_") {
		return goerr.Wrap(ErrInvalidArgument, "path contains reserved character '_'", goerr.V("path", path))
	}
	return nil
}
