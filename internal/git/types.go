// Package git provides the repository-access layer used to inspect a working
// copy. It defines the Repository capability contract, the value types that
// cross it, and a go-git backed implementation.
package git

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// NoCommit is the revision reported for a repository without commits.
const NoCommit = "0000000000000000000000000000000000000000"

// RootTag is the describe tag used when no eligible ancestor tag exists.
const RootTag = "root"

const tagRefPrefix = "refs/tags/"

var (
	// ErrNoWorkTree is returned when a repository handle has no conventional
	// work tree, e.g. a bare repository or a linked worktree's metadata
	// directory opened directly.
	ErrNoWorkTree = errors.New("repository has no work tree")

	// ErrNoMatchingTagShallow is returned by Describe when the full history of
	// a shallow repository was walked without finding an eligible tag.
	ErrNoMatchingTagShallow = errors.New("no matching tag found in shallow repository")
)

// ObjectID represents a git object identifier.
type ObjectID struct {
	Sha string
}

// NewObjectID returns an ObjectID for the given hex SHA.
func NewObjectID(sha string) ObjectID {
	return ObjectID{Sha: sha}
}

// ShortSha returns the first n characters of the SHA.
func (id ObjectID) ShortSha(n int) string {
	if n >= len(id.Sha) {
		return id.Sha
	}
	return id.Sha[:n]
}

// String returns the full SHA.
func (id ObjectID) String() string {
	return id.Sha
}

// Status summarizes working tree changes relative to HEAD. Paths in each
// list are sorted.
type Status struct {
	Added     []string
	Modified  []string
	Removed   []string
	Untracked []string
}

// IsClean returns true when there are no pending changes of any kind.
func (s Status) IsClean() bool {
	return len(s.Added) == 0 && len(s.Modified) == 0 &&
		len(s.Removed) == 0 && len(s.Untracked) == 0
}

// Description locates a commit relative to its nearest eligible ancestor tag.
type Description struct {
	Commit   string
	Tag      string
	Distance int
	Dirty    bool
}

// String renders the description the way git describe --long does,
// e.g. "v1.2.0-3-g1a2b3c4-dirty".
func (d Description) String() string {
	s := fmt.Sprintf("%s-%d-g%s", d.Tag, d.Distance, NewObjectID(d.Commit).ShortSha(7))
	if d.Dirty {
		s += "-dirty"
	}
	return s
}

// IsRoot reports whether no eligible tag was found.
func (d Description) IsRoot() bool {
	return d.Tag == RootTag
}

// tagShortName strips the refs/tags/ prefix from a canonical ref name.
func tagShortName(canonical string) string {
	return strings.TrimPrefix(canonical, tagRefPrefix)
}

// sortedCopy returns a sorted copy of paths.
func sortedCopy(paths []string) []string {
	out := append([]string(nil), paths...)
	sort.Strings(out)
	return out
}
