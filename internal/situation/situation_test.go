package situation

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/MyCarrier-DevOps/go-gitsituation/internal/git"

	"github.com/stretchr/testify/require"
)

const headSha = "1a2b3c4d5e6f7a8b9c0d1a2b3c4d5e6f7a8b9c0d"

// countingRepo wraps a MockRepository and counts engine queries.
type countingRepo struct {
	git.MockRepository
	calls map[string]int
}

func newCountingRepo() *countingRepo {
	r := &countingRepo{calls: make(map[string]int)}
	head := git.NewObjectID(headSha)
	r.WorkTreeFunc = func() (string, error) { return "/work/repo", nil }
	r.ResolveHeadFunc = func() (*git.ObjectID, error) { return &head, nil }
	r.CommitTimeFunc = func(git.ObjectID) (time.Time, error) {
		r.calls["timestamp"]++
		return time.Date(2025, 3, 4, 5, 6, 7, 0, time.FixedZone("CET", 3600)), nil
	}
	r.CurrentBranchFunc = func() (string, error) {
		r.calls["branch"]++
		return "main", nil
	}
	r.TagsPointAtFunc = func(git.ObjectID) ([]string, error) {
		r.calls["tags"]++
		return []string{"v1.0.0"}, nil
	}
	r.StatusFunc = func() (git.Status, error) {
		r.calls["status"]++
		return git.Status{}, nil
	}
	r.DescribeFunc = func(h *git.ObjectID, p *regexp.Regexp) (git.Description, error) {
		r.calls["describe"]++
		tag := "v1.0.0"
		if p.String() != git.MatchAllPattern {
			tag = git.RootTag
		}
		return git.Description{Commit: h.Sha, Tag: tag, Distance: r.calls["describe"]}, nil
	}
	return r
}

func TestNew_ResolvesIdentity(t *testing.T) {
	repo := newCountingRepo()

	s, err := New(repo)
	require.NoError(t, err)
	require.Equal(t, "/work/repo", s.RootDirectory())
	require.Equal(t, headSha, s.Rev())
	require.Equal(t, headSha, s.Head().Sha)
	require.Equal(t, git.MatchAllPattern, s.DescribeTagPattern().String())

	// Nothing lazy runs at construction.
	require.Empty(t, repo.calls)
}

func TestNew_HeadError(t *testing.T) {
	repo := &git.MockRepository{
		WorkTreeFunc:    func() (string, error) { return "/work/repo", nil },
		ResolveHeadFunc: func() (*git.ObjectID, error) { return nil, errors.New("corrupt HEAD") },
	}

	_, err := New(repo)
	require.Error(t, err)
	require.Contains(t, err.Error(), "corrupt HEAD")
}

func TestEmptyRepository(t *testing.T) {
	var describedHead *git.ObjectID
	described := false
	repo := &git.MockRepository{
		WorkTreeFunc:      func() (string, error) { return "/work/empty", nil },
		CurrentBranchFunc: func() (string, error) { return "main", nil },
		TagsPointAtFunc: func(git.ObjectID) ([]string, error) {
			t.Fatal("tags must not be queried without HEAD")
			return nil, nil
		},
		CommitTimeFunc: func(git.ObjectID) (time.Time, error) {
			t.Fatal("commit time must not be queried without HEAD")
			return time.Time{}, nil
		},
		DescribeFunc: func(h *git.ObjectID, _ *regexp.Regexp) (git.Description, error) {
			described = true
			describedHead = h
			return git.Description{Commit: git.NoCommit, Tag: git.RootTag}, nil
		},
	}

	s, err := New(repo)
	require.NoError(t, err)
	require.Equal(t, git.NoCommit, s.Rev())
	require.Nil(t, s.Head())

	tags, err := s.Tags()
	require.NoError(t, err)
	require.NotNil(t, tags)
	require.Empty(t, tags)

	ts, err := s.Timestamp()
	require.NoError(t, err)
	require.True(t, ts.Equal(time.Unix(0, 0)))
	require.Equal(t, time.UTC, ts.Location())

	branch, err := s.Branch()
	require.NoError(t, err)
	require.Equal(t, "main", branch)

	clean, err := s.IsClean()
	require.NoError(t, err)
	require.True(t, clean)

	desc, err := s.Description()
	require.NoError(t, err)
	require.Equal(t, git.NoCommit, desc.Commit)
	require.True(t, described)
	require.Nil(t, describedHead)
}

func TestAccessors_Memoized(t *testing.T) {
	repo := newCountingRepo()
	s, err := New(repo)
	require.NoError(t, err)

	for range 3 {
		ts, err := s.Timestamp()
		require.NoError(t, err)
		require.Equal(t, 2025, ts.Year())
		_, offset := ts.Zone()
		require.Equal(t, 3600, offset)

		branch, err := s.Branch()
		require.NoError(t, err)
		require.Equal(t, "main", branch)

		detached, err := s.IsDetached()
		require.NoError(t, err)
		require.False(t, detached)

		tags, err := s.Tags()
		require.NoError(t, err)
		require.Equal(t, []string{"v1.0.0"}, tags)

		clean, err := s.IsClean()
		require.NoError(t, err)
		require.True(t, clean)

		desc, err := s.Description()
		require.NoError(t, err)
		require.Equal(t, "v1.0.0", desc.Tag)
		require.Equal(t, 1, desc.Distance)
	}

	require.Equal(t, map[string]int{
		"timestamp": 1,
		"branch":    1,
		"tags":      1,
		"status":    1,
		"describe":  1,
	}, repo.calls)
}

func TestSetBranch(t *testing.T) {
	repo := newCountingRepo()
	s, err := New(repo)
	require.NoError(t, err)

	s.SetBranch("release")

	branch, err := s.Branch()
	require.NoError(t, err)
	require.Equal(t, "release", branch)

	detached, err := s.IsDetached()
	require.NoError(t, err)
	require.False(t, detached)
	require.Zero(t, repo.calls["branch"])
}

func TestSetBranch_AfterComputeAndToDetached(t *testing.T) {
	repo := newCountingRepo()
	s, err := New(repo)
	require.NoError(t, err)

	branch, err := s.Branch()
	require.NoError(t, err)
	require.Equal(t, "main", branch)

	s.SetBranch("")

	detached, err := s.IsDetached()
	require.NoError(t, err)
	require.True(t, detached)
	require.Equal(t, 1, repo.calls["branch"])
}

func TestDetached_FromEngine(t *testing.T) {
	repo := newCountingRepo()
	repo.CurrentBranchFunc = func() (string, error) { return "", nil }
	s, err := New(repo)
	require.NoError(t, err)

	detached, err := s.IsDetached()
	require.NoError(t, err)
	require.True(t, detached)

	s.SetBranch("hotfix")
	detached, err = s.IsDetached()
	require.NoError(t, err)
	require.False(t, detached)
}

func TestSetTags(t *testing.T) {
	repo := newCountingRepo()
	s, err := New(repo)
	require.NoError(t, err)

	s.SetTags([]string{})

	tags, err := s.Tags()
	require.NoError(t, err)
	require.NotNil(t, tags)
	require.Empty(t, tags)
	require.Zero(t, repo.calls["tags"])

	s.SetTags([]string{"v9.9.9"})
	tags, err = s.Tags()
	require.NoError(t, err)
	require.Equal(t, []string{"v9.9.9"}, tags)
}

func TestTags_CallerCopiesDoNotLeak(t *testing.T) {
	repo := newCountingRepo()
	s, err := New(repo)
	require.NoError(t, err)

	tags, err := s.Tags()
	require.NoError(t, err)
	tags[0] = "changed"
	_ = append(tags[:0], "appended")

	again, err := s.Tags()
	require.NoError(t, err)
	require.Equal(t, []string{"v1.0.0"}, again)
	require.Equal(t, 1, repo.calls["tags"])

	override := []string{"v2.0.0", "stable"}
	s.SetTags(override)
	override[0] = "changed"

	got, err := s.Tags()
	require.NoError(t, err)
	require.Equal(t, []string{"v2.0.0", "stable"}, got)
}

func TestSetTags_NilPanics(t *testing.T) {
	s, err := New(newCountingRepo())
	require.NoError(t, err)

	require.Panics(t, func() { s.SetTags(nil) })

	tags, err := s.Tags()
	require.NoError(t, err)
	require.Equal(t, []string{"v1.0.0"}, tags)
}

func TestSetDescribeTagPattern_RecomputesDescription(t *testing.T) {
	repo := newCountingRepo()
	s, err := New(repo)
	require.NoError(t, err)

	first, err := s.Description()
	require.NoError(t, err)
	require.Equal(t, "v1.0.0", first.Tag)

	s.SetDescribeTagPattern(regexp.MustCompile(`release-.*`))
	require.Equal(t, `release-.*`, s.DescribeTagPattern().String())

	second, err := s.Description()
	require.NoError(t, err)
	require.Equal(t, git.RootTag, second.Tag)
	require.Equal(t, 2, repo.calls["describe"])

	// Cached again until the next pattern change.
	_, err = s.Description()
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls["describe"])
}

func TestSetDescribeTagPattern_BeforeFirstRead(t *testing.T) {
	repo := newCountingRepo()
	var seen string
	repo.DescribeFunc = func(h *git.ObjectID, p *regexp.Regexp) (git.Description, error) {
		seen = p.String()
		return git.Description{Commit: h.Sha, Tag: git.RootTag}, nil
	}
	s, err := New(repo)
	require.NoError(t, err)

	s.SetDescribeTagPattern(regexp.MustCompile(`v\d+.*`))
	_, err = s.Description()
	require.NoError(t, err)
	require.Equal(t, `v\d+.*`, seen)
}

func TestSetDescribeTagPattern_NilPanics(t *testing.T) {
	s, err := New(newCountingRepo())
	require.NoError(t, err)

	require.Panics(t, func() { s.SetDescribeTagPattern(nil) })
	require.Equal(t, git.MatchAllPattern, s.DescribeTagPattern().String())
}

func TestQueryErrors_PropagateAndRetry(t *testing.T) {
	errEngine := errors.New("engine failure")
	fail := true

	repo := newCountingRepo()
	repo.CommitTimeFunc = func(git.ObjectID) (time.Time, error) {
		if fail {
			return time.Time{}, errEngine
		}
		return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), nil
	}
	repo.CurrentBranchFunc = func() (string, error) {
		if fail {
			return "", errEngine
		}
		return "main", nil
	}
	repo.TagsPointAtFunc = func(git.ObjectID) ([]string, error) {
		if fail {
			return nil, errEngine
		}
		return []string{"v1.0.0"}, nil
	}
	repo.StatusFunc = func() (git.Status, error) {
		if fail {
			return git.Status{}, errEngine
		}
		return git.Status{Modified: []string{"a.txt"}}, nil
	}
	repo.DescribeFunc = func(h *git.ObjectID, _ *regexp.Regexp) (git.Description, error) {
		if fail {
			return git.Description{}, errEngine
		}
		return git.Description{Commit: h.Sha, Tag: "v1.0.0"}, nil
	}

	s, err := New(repo)
	require.NoError(t, err)

	_, err = s.Timestamp()
	require.ErrorIs(t, err, errEngine)
	_, err = s.Branch()
	require.ErrorIs(t, err, errEngine)
	_, err = s.IsDetached()
	require.ErrorIs(t, err, errEngine)
	_, err = s.Tags()
	require.ErrorIs(t, err, errEngine)
	_, err = s.IsClean()
	require.ErrorIs(t, err, errEngine)
	_, err = s.Description()
	require.ErrorIs(t, err, errEngine)

	fail = false

	ts, err := s.Timestamp()
	require.NoError(t, err)
	require.Equal(t, 2025, ts.Year())
	branch, err := s.Branch()
	require.NoError(t, err)
	require.Equal(t, "main", branch)
	tags, err := s.Tags()
	require.NoError(t, err)
	require.Equal(t, []string{"v1.0.0"}, tags)
	clean, err := s.IsClean()
	require.NoError(t, err)
	require.False(t, clean)
	desc, err := s.Description()
	require.NoError(t, err)
	require.Equal(t, "v1.0.0", desc.Tag)
}

func TestNilTagsFromEngineBecomeEmpty(t *testing.T) {
	repo := newCountingRepo()
	repo.TagsPointAtFunc = func(git.ObjectID) ([]string, error) { return nil, nil }
	s, err := New(repo)
	require.NoError(t, err)

	tags, err := s.Tags()
	require.NoError(t, err)
	require.NotNil(t, tags)
	require.Empty(t, tags)
}

func TestRootDirectory_LinkedWorktreeFallback(t *testing.T) {
	gitDir := t.TempDir()
	workTree := filepath.Join(t.TempDir(), "feature-wt")
	require.NoError(t, os.WriteFile(
		filepath.Join(gitDir, "gitdir"),
		[]byte(filepath.Join(workTree, ".git")+"\nignored second line\n"),
		0o644,
	))

	repo := &git.MockRepository{
		GitDirFunc: func() string { return gitDir },
	}

	s, err := New(repo)
	require.NoError(t, err)
	require.Equal(t, workTree, s.RootDirectory())
	require.NotEqual(t, gitDir, s.RootDirectory())
}

func TestIsClean_NoWorkTreeIsClean(t *testing.T) {
	repo := &git.MockRepository{
		WorkTreeFunc: func() (string, error) { return "/repo", nil },
		StatusFunc:   func() (git.Status, error) { return git.Status{}, git.ErrNoWorkTree },
	}
	s, err := New(repo)
	require.NoError(t, err)

	clean, err := s.IsClean()
	require.NoError(t, err)
	require.True(t, clean)
}

func TestRootDirectory_NoWorkTreeNoLinkFile(t *testing.T) {
	repo := &git.MockRepository{
		GitDirFunc: func() string { return t.TempDir() },
	}

	_, err := New(repo)
	require.Error(t, err)
	require.ErrorIs(t, err, git.ErrNoWorkTree)
}

func TestRootDirectory_EmptyLinkFile(t *testing.T) {
	gitDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(gitDir, "gitdir"), []byte(""), 0o644))

	repo := &git.MockRepository{
		GitDirFunc: func() string { return gitDir },
	}

	_, err := New(repo)
	require.ErrorIs(t, err, git.ErrNoWorkTree)
}

func TestRootDirectory_OtherErrorsDoNotFallBack(t *testing.T) {
	gitDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(gitDir, "gitdir"), []byte("/somewhere/.git\n"), 0o644))

	errPerm := errors.New("permission denied")
	repo := &git.MockRepository{
		WorkTreeFunc: func() (string, error) { return "", errPerm },
		GitDirFunc:   func() string { return gitDir },
	}

	_, err := New(repo)
	require.ErrorIs(t, err, errPerm)
}
