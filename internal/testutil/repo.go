// Package testutil builds throwaway git repositories for tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	gogitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// TestRepo is a repository in a temporary directory with a scripted
// history. Every helper fails the test on error.
type TestRepo struct {
	t    testing.TB
	path string
	repo *gogit.Repository
	time time.Time
	n    int
}

// NewTestRepo initializes an empty repository whose HEAD is the unborn
// branch "main".
func NewTestRepo(t testing.TB) *TestRepo {
	t.Helper()
	dir := t.TempDir()

	repo, err := gogit.PlainInitWithOptions(dir, &gogit.PlainInitOptions{
		InitOptions: gogit.InitOptions{DefaultBranch: plumbing.Main},
	})
	if err != nil {
		t.Fatalf("init %s: %v", dir, err)
	}
	return &TestRepo{
		t:    t,
		path: dir,
		repo: repo,
		time: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (r *TestRepo) Path() string   { return r.path }
func (r *TestRepo) GitDir() string { return filepath.Join(r.path, ".git") }

// Now is the commit time of the latest commit.
func (r *TestRepo) Now() time.Time { return r.time }

func (r *TestRepo) must(err error, format string, args ...any) {
	r.t.Helper()
	if err != nil {
		r.t.Fatalf("%s: %v", fmt.Sprintf(format, args...), err)
	}
}

func (r *TestRepo) worktree() *gogit.Worktree {
	r.t.Helper()
	wt, err := r.repo.Worktree()
	r.must(err, "opening worktree")
	return wt
}

func (r *TestRepo) signature(when time.Time) *object.Signature {
	return &object.Signature{Name: "Test", Email: "test@example.com", When: when}
}

func (r *TestRepo) setRef(name, sha string) {
	r.t.Helper()
	ref := plumbing.NewReferenceFromStrings(name, sha)
	r.must(r.repo.Storer.SetReference(ref), "setting %s", name)
}

// AddCommit commits one new file one minute after the previous commit and
// returns the commit SHA.
func (r *TestRepo) AddCommit(message string) string {
	r.t.Helper()
	return r.AddCommitAt(message, r.time.Add(time.Minute))
}

// AddCommitAt is AddCommit with an explicit author and committer time. The
// time zone of when is preserved in the commit.
func (r *TestRepo) AddCommitAt(message string, when time.Time) string {
	r.t.Helper()
	r.time = when
	r.n++

	name := fmt.Sprintf("file-%d.txt", r.n)
	r.WriteFile(name, message)

	wt := r.worktree()
	_, err := wt.Add(name)
	r.must(err, "staging %s", name)

	hash, err := wt.Commit(message, &gogit.CommitOptions{Author: r.signature(when)})
	r.must(err, "committing %q", message)
	return hash.String()
}

// CreateTag points a lightweight tag at sha.
func (r *TestRepo) CreateTag(name, sha string) {
	r.t.Helper()
	r.setRef("refs/tags/"+name, sha)
}

// CreateAnnotatedTag writes a tag object for sha and points refs/tags/name
// at it.
func (r *TestRepo) CreateAnnotatedTag(name, sha, message string) {
	r.t.Helper()
	_, err := r.repo.CreateTag(name, plumbing.NewHash(sha), &gogit.CreateTagOptions{
		Tagger:  r.signature(r.time.Add(time.Second)),
		Message: message,
	})
	r.must(err, "creating annotated tag %s", name)
}

// CreateBranch points refs/heads/name at sha and records the branch in the
// repository config.
func (r *TestRepo) CreateBranch(name, sha string) {
	r.t.Helper()
	refName := plumbing.NewBranchReferenceName(name)
	r.setRef(refName.String(), sha)

	cfg, err := r.repo.Config()
	r.must(err, "reading config")
	cfg.Branches[name] = &gogitconfig.Branch{Name: name, Merge: refName}
	r.must(r.repo.SetConfig(cfg), "saving config")
}

// Checkout switches HEAD to an existing branch.
func (r *TestRepo) Checkout(branch string) {
	r.t.Helper()
	err := r.worktree().Checkout(&gogit.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(branch)})
	r.must(err, "checking out %s", branch)
}

// CheckoutDetached points HEAD directly at sha.
func (r *TestRepo) CheckoutDetached(sha string) {
	r.t.Helper()
	err := r.worktree().Checkout(&gogit.CheckoutOptions{Hash: plumbing.NewHash(sha)})
	r.must(err, "checking out %s", sha)
}

// WriteFile writes content under the repository root without staging it.
func (r *TestRepo) WriteFile(name, content string) {
	r.t.Helper()
	path := filepath.Join(r.path, name)
	r.must(os.MkdirAll(filepath.Dir(path), 0o755), "creating directory for %s", name)
	r.must(os.WriteFile(path, []byte(content), 0o644), "writing %s", name)
}

// WriteConfig writes gitsituation.yml in the repository root.
func (r *TestRepo) WriteConfig(content string) {
	r.t.Helper()
	r.WriteFile("gitsituation.yml", content)
}

// AddLinkedWorktree lays out a linked worktree named name, detached at sha,
// the way git worktree add does. It returns the worktree's metadata
// directory under .git/worktrees and the worktree root.
func (r *TestRepo) AddLinkedWorktree(name, sha string) (gitDir, workTree string) {
	r.t.Helper()
	workTree = filepath.Join(r.t.TempDir(), name)
	gitDir = filepath.Join(r.GitDir(), "worktrees", name)

	for _, dir := range []string{workTree, gitDir} {
		r.must(os.MkdirAll(dir, 0o755), "creating %s", dir)
	}
	files := map[string]string{
		filepath.Join(gitDir, "HEAD"):      sha + "\n",
		filepath.Join(gitDir, "commondir"): "../..\n",
		filepath.Join(gitDir, "gitdir"):    filepath.Join(workTree, ".git") + "\n",
		filepath.Join(workTree, ".git"):    "gitdir: " + gitDir + "\n",
	}
	for path, content := range files {
		r.must(os.WriteFile(path, []byte(content), 0o644), "writing %s", path)
	}
	return gitDir, workTree
}

// HeadSha returns the commit HEAD resolves to.
func (r *TestRepo) HeadSha() string {
	r.t.Helper()
	head, err := r.repo.Head()
	r.must(err, "resolving HEAD")
	return head.Hash().String()
}
