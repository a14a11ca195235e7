package git

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// Compile-time check that GoGitRepository implements Repository.
var _ Repository = (*GoGitRepository)(nil)

// GoGitRepository implements Repository using go-git.
type GoGitRepository struct {
	repo    *gogit.Repository
	gitDir  string
	workDir string // empty when the handle has no work tree
}

// Open opens the git repository containing path. Linked worktrees (a .git
// file pointing at a metadata directory) are supported.
func Open(path string) (*GoGitRepository, error) {
	r, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening git repository at %s: %w", path, err)
	}
	return newGoGitRepository(r)
}

// OpenGitDir opens a repository metadata directory directly, without looking
// for a .git entry. The resulting handle has no work tree.
func OpenGitDir(gitDir string) (*GoGitRepository, error) {
	r, err := gogit.PlainOpenWithOptions(gitDir, &gogit.PlainOpenOptions{
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening git directory %s: %w", gitDir, err)
	}
	return newGoGitRepository(r)
}

func newGoGitRepository(r *gogit.Repository) (*GoGitRepository, error) {
	g := &GoGitRepository{repo: r}

	if s, ok := r.Storer.(*filesystem.Storage); ok {
		g.gitDir = s.Filesystem().Root()
	}

	wt, err := r.Worktree()
	switch {
	case err == nil:
		g.workDir = wt.Filesystem.Root()
	case errors.Is(err, gogit.ErrIsBareRepository):
		// no work tree
	default:
		return nil, fmt.Errorf("getting worktree: %w", err)
	}

	return g, nil
}

func (r *GoGitRepository) WorkTree() (string, error) {
	if r.workDir == "" {
		return "", ErrNoWorkTree
	}
	return r.workDir, nil
}

func (r *GoGitRepository) GitDir() string {
	return r.gitDir
}

func (r *GoGitRepository) ResolveHead() (*ObjectID, error) {
	ref, err := r.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}
	id := NewObjectID(ref.Hash().String())
	return &id, nil
}

func (r *GoGitRepository) CommitTime(id ObjectID) (time.Time, error) {
	c, err := r.repo.CommitObject(plumbing.NewHash(id.Sha))
	if err != nil {
		return time.Time{}, fmt.Errorf("loading commit %s: %w", id.Sha, err)
	}
	return c.Committer.When, nil
}

func (r *GoGitRepository) CurrentBranch() (string, error) {
	ref, err := r.repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", fmt.Errorf("reading HEAD: %w", err)
	}
	if ref.Type() == plumbing.SymbolicReference && ref.Target().IsBranch() {
		return ref.Target().Short(), nil
	}
	return "", nil
}

func (r *GoGitRepository) TagsPointAt(id ObjectID) ([]string, error) {
	target := plumbing.NewHash(id.Sha)

	byCommit, err := r.tagsByCommit(nil)
	if err != nil {
		return nil, err
	}

	names := byCommit[target]
	if len(names) == 0 {
		return []string{}, nil
	}
	return SortTags(names), nil
}

func (r *GoGitRepository) Status() (Status, error) {
	wt, err := r.repo.Worktree()
	if errors.Is(err, gogit.ErrIsBareRepository) {
		return Status{}, ErrNoWorkTree
	}
	if err != nil {
		return Status{}, fmt.Errorf("getting worktree: %w", err)
	}

	st, err := wt.Status()
	if err != nil {
		return Status{}, fmt.Errorf("getting worktree status: %w", err)
	}

	return convertStatus(st), nil
}

func (r *GoGitRepository) Describe(head *ObjectID, pattern *regexp.Regexp) (Description, error) {
	dirty, err := r.isDirty()
	if err != nil {
		return Description{}, err
	}

	if head == nil {
		return Description{Commit: NoCommit, Tag: RootTag, Dirty: dirty}, nil
	}

	tagged, err := r.tagsByCommit(AnchorPattern(pattern))
	if err != nil {
		return Description{}, err
	}

	iter, err := r.repo.Log(&gogit.LogOptions{
		From:  plumbing.NewHash(head.Sha),
		Order: gogit.LogOrderCommitterTime,
	})
	if err != nil {
		return Description{}, fmt.Errorf("getting commit log: %w", err)
	}

	depth := -1
	var found []string
	err = iter.ForEach(func(c *object.Commit) error {
		depth++
		if names, ok := tagged[c.Hash]; ok {
			found = names
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return Description{}, fmt.Errorf("iterating commits: %w", err)
	}

	if found != nil {
		return Description{Commit: head.Sha, Tag: BestTag(found), Distance: depth, Dirty: dirty}, nil
	}

	shallow, err := r.IsShallow()
	if err != nil {
		return Description{}, err
	}
	if shallow {
		return Description{}, ErrNoMatchingTagShallow
	}

	return Description{Commit: head.Sha, Tag: RootTag, Distance: depth, Dirty: dirty}, nil
}

func (r *GoGitRepository) IsShallow() (bool, error) {
	hashes, err := r.repo.Storer.Shallow()
	if err != nil {
		return false, fmt.Errorf("reading shallow commits: %w", err)
	}
	return len(hashes) > 0, nil
}

// isDirty reports pending changes. A handle without a work tree has nothing
// to be dirty about.
func (r *GoGitRepository) isDirty() (bool, error) {
	st, err := r.Status()
	if errors.Is(err, ErrNoWorkTree) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !st.IsClean(), nil
}

// tagsByCommit maps peeled commit hashes to the names of the tags pointing at
// them. Only tags accepted by the anchored matcher are included.
func (r *GoGitRepository) tagsByCommit(matcher *regexp.Regexp) (map[plumbing.Hash][]string, error) {
	iter, err := r.repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}

	result := make(map[plumbing.Hash][]string)
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := tagShortName(string(ref.Name()))
		if !MatchesTag(matcher, name) {
			return nil
		}
		commit, ok, err := r.peel(ref.Hash())
		if err != nil {
			return err
		}
		if ok {
			result[commit] = append(result[commit], name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterating tags: %w", err)
	}

	return result, nil
}

// peel resolves a tag target to a commit hash. Lightweight tags point at the
// commit directly; annotated tags are peeled one level. Tags of non-commit
// objects report ok=false.
func (r *GoGitRepository) peel(hash plumbing.Hash) (plumbing.Hash, bool, error) {
	tagObj, err := r.repo.TagObject(hash)
	switch {
	case err == nil:
		commit, err := tagObj.Commit()
		if errors.Is(err, object.ErrUnsupportedObject) {
			return plumbing.ZeroHash, false, nil
		}
		if err != nil {
			return plumbing.ZeroHash, false, fmt.Errorf("peeling tag %s: %w", tagObj.Name, err)
		}
		return commit.Hash, true, nil
	case errors.Is(err, plumbing.ErrObjectNotFound):
		return hash, true, nil
	default:
		return plumbing.ZeroHash, false, fmt.Errorf("loading tag object %s: %w", hash, err)
	}
}

// convertStatus reduces a go-git status to the Status buckets.
func convertStatus(st gogit.Status) Status {
	var out Status
	for path, fs := range st {
		switch {
		case fs.Staging == gogit.Untracked && fs.Worktree == gogit.Untracked:
			out.Untracked = append(out.Untracked, path)
		case fs.Staging == gogit.Added || fs.Worktree == gogit.Added:
			out.Added = append(out.Added, path)
		case fs.Staging == gogit.Deleted || fs.Worktree == gogit.Deleted:
			out.Removed = append(out.Removed, path)
		case fs.Staging != gogit.Unmodified || fs.Worktree != gogit.Unmodified:
			out.Modified = append(out.Modified, path)
		}
	}
	out.Added = sortedCopy(out.Added)
	out.Modified = sortedCopy(out.Modified)
	out.Removed = sortedCopy(out.Removed)
	out.Untracked = sortedCopy(out.Untracked)
	return out
}
