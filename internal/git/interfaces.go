package git

import (
	"regexp"
	"time"
)

// Repository is the capability contract the situation layer needs from a
// repository engine. It is the key abstraction point for testing and backend
// swapping; implementations must tolerate a repository without commits.
type Repository interface {
	// WorkTree returns the working tree root. It returns ErrNoWorkTree when
	// the handle has no conventional work tree.
	WorkTree() (string, error)

	// GitDir returns the repository metadata directory.
	GitDir() string

	// ResolveHead resolves HEAD to a commit. It returns nil and no error when
	// HEAD is unborn.
	ResolveHead() (*ObjectID, error)

	// CommitTime returns the committer timestamp of the commit, in the
	// commit's own time zone.
	CommitTime(id ObjectID) (time.Time, error)

	// CurrentBranch returns the short name of the checked out branch, or an
	// empty string when HEAD is detached.
	CurrentBranch() (string, error)

	// TagsPointAt returns the names of all tags whose peeled target is the
	// given commit, highest semantic version first.
	TagsPointAt(id ObjectID) ([]string, error)

	// Status computes the working tree status.
	Status() (Status, error)

	// Describe finds the nearest ancestor of head carrying a tag whose whole
	// name matches pattern. A nil head yields a NoCommit description and a
	// nil pattern matches every tag.
	Describe(head *ObjectID, pattern *regexp.Regexp) (Description, error)

	// IsShallow reports whether the repository history is truncated.
	IsShallow() (bool, error)
}
