// Package situation provides GitSituation, a consistent snapshot of a working
// copy's version-control state for build versioning.
//
// Identity (root directory and revision) is resolved once at construction.
// Every other fact is computed on first access through the repository engine
// and cached for the lifetime of the snapshot. Branch and tags can be
// overridden, and changing the describe tag pattern discards a previously
// computed description.
package situation

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MyCarrier-DevOps/go-gitsituation/internal/git"
	"github.com/MyCarrier-DevOps/go-gitsituation/internal/lazy"
	"github.com/MyCarrier-DevOps/go-gitsituation/internal/logger"
)

// gitDirLinkFile is the file inside a linked worktree's metadata directory
// that points back at the worktree's .git entry.
const gitDirLinkFile = "gitdir"

// Epoch is the timestamp reported for a repository without commits.
var Epoch = time.Unix(0, 0).UTC()

// GitSituation is the snapshot of a repository. Create it with New.
type GitSituation struct {
	repo          git.Repository
	rootDirectory string
	head          *git.ObjectID
	rev           string

	timestamp *lazy.Value[time.Time]
	branch    *lazy.Value[string]
	tags      *lazy.Value[[]string]
	clean     *lazy.Value[bool]

	mu                 sync.Mutex
	describeTagPattern *regexp.Regexp
	description        *lazy.Value[git.Description]
}

// New resolves the working tree root and HEAD of repo and returns a snapshot
// whose remaining facts are computed on demand. A repository without commits
// is not an error.
func New(repo git.Repository, opts ...Option) (*GitSituation, error) {
	root, err := resolveRootDirectory(repo)
	if err != nil {
		return nil, err
	}

	head, err := repo.ResolveHead()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}

	s := &GitSituation{
		repo:               repo,
		rootDirectory:      root,
		head:               head,
		rev:                git.NoCommit,
		describeTagPattern: regexp.MustCompile(git.MatchAllPattern),
	}
	if head != nil {
		s.rev = head.Sha
	}

	s.timestamp = lazy.By(s.computeTimestamp)
	s.branch = lazy.By(s.computeBranch)
	s.tags = lazy.By(s.computeTags)
	s.clean = lazy.By(s.computeClean)
	s.description = lazy.By(s.computeDescription)

	if err := s.Apply(opts...); err != nil {
		return nil, err
	}

	logger.Debug().
		Str("root", s.rootDirectory).
		Str("rev", s.rev).
		Msg("resolved git situation")

	return s, nil
}

// resolveRootDirectory returns the working tree root. When the engine has no
// conventional work tree, the gitdir link file of the metadata directory is
// consulted; its first line names the worktree's .git entry.
func resolveRootDirectory(repo git.Repository) (string, error) {
	root, err := repo.WorkTree()
	if err == nil {
		return root, nil
	}
	if !errors.Is(err, git.ErrNoWorkTree) {
		return "", fmt.Errorf("resolving work tree: %w", err)
	}

	linkPath := filepath.Join(repo.GitDir(), gitDirLinkFile)
	target, readErr := readFirstLine(linkPath)
	if readErr != nil {
		if errors.Is(readErr, os.ErrNotExist) {
			return "", fmt.Errorf("resolving work tree of %s: %w", repo.GitDir(), err)
		}
		return "", fmt.Errorf("reading %s: %w", linkPath, readErr)
	}
	if target == "" {
		return "", fmt.Errorf("resolving work tree: %s is empty: %w", linkPath, err)
	}

	return filepath.Dir(target), nil
}

func readFirstLine(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if sc.Scan() {
		return strings.TrimSpace(sc.Text()), nil
	}
	return "", sc.Err()
}

// RootDirectory returns the absolute path of the working tree root.
func (s *GitSituation) RootDirectory() string {
	return s.rootDirectory
}

// Rev returns the full SHA of HEAD, or git.NoCommit for an empty repository.
func (s *GitSituation) Rev() string {
	return s.rev
}

// Head returns the resolved HEAD commit, or nil for an empty repository.
func (s *GitSituation) Head() *git.ObjectID {
	if s.head == nil {
		return nil
	}
	id := *s.head
	return &id
}

// Timestamp returns the commit time of HEAD, or Epoch for an empty repository.
func (s *GitSituation) Timestamp() (time.Time, error) {
	return s.timestamp.Get()
}

// Branch returns the current branch name. An empty name means HEAD is
// detached.
func (s *GitSituation) Branch() (string, error) {
	return s.branch.Get()
}

// SetBranch fixes the branch name, replacing the engine's answer. An empty
// name marks the situation as detached.
func (s *GitSituation) SetBranch(branch string) {
	s.branch.Set(branch)
}

// IsDetached reports whether there is no current branch.
func (s *GitSituation) IsDetached() (bool, error) {
	branch, err := s.Branch()
	if err != nil {
		return false, err
	}
	return branch == "", nil
}

// Tags returns the tags pointing at HEAD, highest version first. The result
// is never nil and is the caller's to modify.
func (s *GitSituation) Tags() ([]string, error) {
	tags, err := s.tags.Get()
	if err != nil {
		return nil, err
	}
	return slices.Clone(tags), nil
}

// SetTags fixes the tag list, replacing the engine's answer. It panics if tags
// is nil; pass an empty slice to clear the tags.
func (s *GitSituation) SetTags(tags []string) {
	if tags == nil {
		panic("situation: SetTags called with nil tags")
	}
	s.tags.Set(slices.Clone(tags))
}

// IsClean reports whether the working tree has no pending changes.
func (s *GitSituation) IsClean() (bool, error) {
	return s.clean.Get()
}

// DescribeTagPattern returns the pattern restricting describe tags.
func (s *GitSituation) DescribeTagPattern() *regexp.Regexp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.describeTagPattern
}

// SetDescribeTagPattern replaces the describe tag pattern and discards any
// computed description. It panics if pattern is nil.
func (s *GitSituation) SetDescribeTagPattern(pattern *regexp.Regexp) {
	if pattern == nil {
		panic("situation: SetDescribeTagPattern called with nil pattern")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.describeTagPattern = pattern
	s.description.Reset()
}

// Description returns the describe result for HEAD under the current pattern.
func (s *GitSituation) Description() (git.Description, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.description.Get()
}

func (s *GitSituation) computeTimestamp() (time.Time, error) {
	if s.head == nil {
		return Epoch, nil
	}
	logger.Debug().Str("rev", s.rev).Msg("computing commit timestamp")
	when, err := s.repo.CommitTime(*s.head)
	if err != nil {
		return time.Time{}, fmt.Errorf("computing timestamp: %w", err)
	}
	return when, nil
}

func (s *GitSituation) computeBranch() (string, error) {
	logger.Debug().Msg("computing current branch")
	branch, err := s.repo.CurrentBranch()
	if err != nil {
		return "", fmt.Errorf("computing branch: %w", err)
	}
	return branch, nil
}

func (s *GitSituation) computeTags() ([]string, error) {
	if s.head == nil {
		return []string{}, nil
	}
	logger.Debug().Str("rev", s.rev).Msg("computing tags")
	tags, err := s.repo.TagsPointAt(*s.head)
	if err != nil {
		return nil, fmt.Errorf("computing tags: %w", err)
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

func (s *GitSituation) computeClean() (bool, error) {
	logger.Debug().Msg("computing working tree status")
	st, err := s.repo.Status()
	if errors.Is(err, git.ErrNoWorkTree) {
		// A metadata directory opened on its own has no files to change.
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("computing status: %w", err)
	}
	return st.IsClean(), nil
}

// computeDescription is only called from Description, with s.mu held.
func (s *GitSituation) computeDescription() (git.Description, error) {
	pattern := s.describeTagPattern
	logger.Debug().Str("rev", s.rev).Str("pattern", pattern.String()).Msg("computing description")
	desc, err := s.repo.Describe(s.head, pattern)
	if err != nil {
		return git.Description{}, fmt.Errorf("computing description: %w", err)
	}
	return desc, nil
}
