package github

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MyCarrier-DevOps/go-gitsituation/internal/git"

	gh "github.com/google/go-github/v68/github"
	"github.com/stretchr/testify/require"
)

const (
	shaA = "aaaa111111111111111111111111111111111111"
	shaB = "bbbb222222222222222222222222222222222222"
	shaC = "cccc333333333333333333333333333333333333"
	shaD = "dddd444444444444444444444444444444444444"
)

// writeJSON encodes v as JSON to the response writer. Panics on error (test only).
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(err)
	}
}

// newTestRepo creates a GitHubRepository backed by a test server. GraphQL
// requests are routed to the same server.
func newTestRepo(t *testing.T, mux *http.ServeMux, opts ...Option) *GitHubRepository {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	client, err := gh.NewClient(nil).WithEnterpriseURLs(server.URL+"/", server.URL+"/")
	require.NoError(t, err)
	opts = append([]Option{WithBaseURL(server.URL)}, opts...)
	return NewGitHubRepository(client, "testowner", "testrepo", opts...)
}

func ghCommit(sha, date string) map[string]interface{} {
	return map[string]interface{}{
		"sha": sha,
		"commit": map[string]interface{}{
			"committer": map[string]interface{}{"date": date},
		},
		"parents": []map[string]interface{}{},
	}
}

func handleBranch(mux *http.ServeMux, name, sha string, calls *int32) {
	mux.HandleFunc("/api/v3/repos/testowner/testrepo/branches/"+name, func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		writeJSON(w, map[string]interface{}{
			"name":   name,
			"commit": ghCommit(sha, "2025-01-15T00:00:00Z"),
		})
	})
}

func handleNotFound(mux *http.ServeMux, pattern string) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Not Found"}`, http.StatusNotFound)
	})
}

// graphQLTagsResponse returns a JSON GraphQL response containing tags.
func graphQLTagsResponse(tags []map[string]interface{}, hasNextPage bool, endCursor string) map[string]interface{} {
	return map[string]interface{}{
		"data": map[string]interface{}{
			"repository": map[string]interface{}{
				"refs": map[string]interface{}{
					"nodes": tags,
					"pageInfo": map[string]interface{}{
						"hasNextPage": hasNextPage,
						"endCursor":   endCursor,
					},
				},
			},
		},
	}
}

func lightweightTag(name, sha string) map[string]interface{} {
	return map[string]interface{}{
		"name": name,
		"target": map[string]interface{}{
			"__typename":    "Commit",
			"oid":           sha,
			"committedDate": "2025-01-01T00:00:00Z",
			"parents":       map[string]interface{}{"nodes": []interface{}{}},
		},
	}
}

func annotatedTag(name, tagSha, commitSha string) map[string]interface{} {
	return map[string]interface{}{
		"name": name,
		"target": map[string]interface{}{
			"__typename": "Tag",
			"oid":        tagSha,
			"target": map[string]interface{}{
				"__typename":    "Commit",
				"oid":           commitSha,
				"committedDate": "2025-06-01T00:00:00Z",
				"parents":       map[string]interface{}{"nodes": []interface{}{}},
			},
		},
	}
}

func handleTags(mux *http.ServeMux, calls *int32, tags ...map[string]interface{}) {
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		writeJSON(w, graphQLTagsResponse(tags, false, ""))
	})
}

func TestGitDir(t *testing.T) {
	repo := NewGitHubRepository(nil, "myorg", "myrepo")
	require.Equal(t, "github.com/myorg/myrepo", repo.GitDir())
}

func TestWorkTree(t *testing.T) {
	repo := NewGitHubRepository(nil, "myorg", "myrepo", WithWorkTree("/builds/myrepo"))
	dir, err := repo.WorkTree()
	require.NoError(t, err)
	require.Equal(t, "/builds/myrepo", dir)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	dir, err = NewGitHubRepository(nil, "myorg", "myrepo").WorkTree()
	require.NoError(t, err)
	require.Equal(t, cwd, dir)
}

func TestStatusAndShallow(t *testing.T) {
	repo := NewGitHubRepository(nil, "myorg", "myrepo")

	st, err := repo.Status()
	require.NoError(t, err)
	require.True(t, st.IsClean())

	shallow, err := repo.IsShallow()
	require.NoError(t, err)
	require.False(t, shallow)
}

func TestResolveHead_DefaultBranch(t *testing.T) {
	mux := http.NewServeMux()
	var repoCalls, branchCalls int32

	mux.HandleFunc("/api/v3/repos/testowner/testrepo", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&repoCalls, 1)
		writeJSON(w, map[string]interface{}{"default_branch": "main"})
	})
	handleBranch(mux, "main", shaA, &branchCalls)

	repo := newTestRepo(t, mux)

	head, err := repo.ResolveHead()
	require.NoError(t, err)
	require.Equal(t, shaA, head.Sha)

	branch, err := repo.CurrentBranch()
	require.NoError(t, err)
	require.Equal(t, "main", branch)

	// Resolution is cached.
	_, err = repo.ResolveHead()
	require.NoError(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&repoCalls))
	require.Equal(t, int32(1), atomic.LoadInt32(&branchCalls))
}

func TestResolveHead_ExplicitBranch(t *testing.T) {
	mux := http.NewServeMux()
	handleBranch(mux, "develop", shaB, nil)

	for _, ref := range []string{"develop", "refs/heads/develop"} {
		t.Run(ref, func(t *testing.T) {
			repo := newTestRepo(t, mux, WithRef(ref))
			head, err := repo.ResolveHead()
			require.NoError(t, err)
			require.Equal(t, shaB, head.Sha)

			branch, err := repo.CurrentBranch()
			require.NoError(t, err)
			require.Equal(t, "develop", branch)
		})
	}
}

func TestResolveHead_SHAIsDetached(t *testing.T) {
	mux := http.NewServeMux()
	var commitCalls int32
	mux.HandleFunc("/api/v3/repos/testowner/testrepo/commits/"+shaC, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&commitCalls, 1)
		writeJSON(w, ghCommit(shaC, "2025-03-01T10:00:00Z"))
	})

	repo := newTestRepo(t, mux, WithRef(shaC))

	head, err := repo.ResolveHead()
	require.NoError(t, err)
	require.Equal(t, shaC, head.Sha)

	branch, err := repo.CurrentBranch()
	require.NoError(t, err)
	require.Empty(t, branch)

	// The commit fetched during resolution serves CommitTime.
	when, err := repo.CommitTime(*head)
	require.NoError(t, err)
	require.True(t, when.Equal(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)))
	require.Equal(t, int32(1), atomic.LoadInt32(&commitCalls))
}

func TestResolveHead_TagIsDetached(t *testing.T) {
	mux := http.NewServeMux()
	handleNotFound(mux, "/api/v3/repos/testowner/testrepo/branches/")
	handleTags(mux, nil, annotatedTag("v1.0.0", shaD, shaA))

	for _, ref := range []string{"v1.0.0", "refs/tags/v1.0.0"} {
		t.Run(ref, func(t *testing.T) {
			repo := newTestRepo(t, mux, WithRef(ref))
			head, err := repo.ResolveHead()
			require.NoError(t, err)
			require.Equal(t, shaA, head.Sha)

			branch, err := repo.CurrentBranch()
			require.NoError(t, err)
			require.Empty(t, branch)
		})
	}
}

func TestResolveHead_EmptyRepository(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/repos/testowner/testrepo", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"default_branch": "main"})
	})
	handleNotFound(mux, "/api/v3/repos/testowner/testrepo/branches/")

	repo := newTestRepo(t, mux)

	head, err := repo.ResolveHead()
	require.NoError(t, err)
	require.Nil(t, head)

	branch, err := repo.CurrentBranch()
	require.NoError(t, err)
	require.Equal(t, "main", branch)
}

func TestResolveHead_UnknownRef(t *testing.T) {
	mux := http.NewServeMux()
	handleNotFound(mux, "/api/v3/repos/testowner/testrepo/branches/")
	handleTags(mux, nil, lightweightTag("v1.0.0", shaA))

	repo := newTestRepo(t, mux, WithRef("nope"))
	_, err := repo.ResolveHead()
	require.Error(t, err)
	require.Contains(t, err.Error(), `ref "nope" not found`)
}

func TestResolveHead_APIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/repos/testowner/testrepo", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Bad credentials"}`, http.StatusUnauthorized)
	})

	repo := newTestRepo(t, mux)
	_, err := repo.ResolveHead()
	require.Error(t, err)
	require.Contains(t, err.Error(), "getting repository info")

	// Errors are not cached.
	_, err = repo.CurrentBranch()
	require.Error(t, err)
}

func TestResolveHead_BranchAPIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/repos/testowner/testrepo/branches/main", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "rate limited"}`, http.StatusForbidden)
	})

	repo := newTestRepo(t, mux, WithRef("main"))
	_, err := repo.ResolveHead()
	require.Error(t, err)
	require.Contains(t, err.Error(), "getting branch main")
}

func TestCommitTime_APIError(t *testing.T) {
	mux := http.NewServeMux()
	handleNotFound(mux, "/api/v3/repos/testowner/testrepo/commits/")

	repo := newTestRepo(t, mux)
	_, err := repo.CommitTime(git.NewObjectID(shaA))
	require.Error(t, err)
	require.Contains(t, err.Error(), "getting commit "+shaA)
}

func TestTagsPointAt(t *testing.T) {
	mux := http.NewServeMux()
	var calls int32
	handleTags(mux, &calls,
		lightweightTag("nightly", shaA),
		annotatedTag("v1.1.0", shaD, shaA),
		lightweightTag("v1.2.0", shaA),
		lightweightTag("v0.9.0", shaB),
		map[string]interface{}{
			"name": "tree-tag",
			"target": map[string]interface{}{
				"__typename": "Tag",
				"oid":        shaC,
				"target":     map[string]interface{}{"__typename": "Tree", "oid": shaA},
			},
		},
	)

	repo := newTestRepo(t, mux)

	names, err := repo.TagsPointAt(git.NewObjectID(shaA))
	require.NoError(t, err)
	require.Equal(t, []string{"v1.2.0", "v1.1.0", "nightly"}, names)

	names, err = repo.TagsPointAt(git.NewObjectID(shaC))
	require.NoError(t, err)
	require.NotNil(t, names)
	require.Empty(t, names)

	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTags_GraphQLError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"errors": []map[string]interface{}{{"message": "Something went wrong"}},
		})
	})

	repo := newTestRepo(t, mux)
	_, err := repo.TagsPointAt(git.NewObjectID(shaA))
	require.Error(t, err)
	require.Contains(t, err.Error(), "Something went wrong")
}

func TestTags_GraphQLPagination(t *testing.T) {
	mux := http.NewServeMux()
	page := 0
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		page++
		if page == 1 {
			writeJSON(w, graphQLTagsResponse([]map[string]interface{}{lightweightTag("v1.0.0", shaA)}, true, "cursor1"))
			return
		}
		writeJSON(w, graphQLTagsResponse([]map[string]interface{}{lightweightTag("v2.0.0", shaA)}, false, ""))
	})

	repo := newTestRepo(t, mux)
	names, err := repo.TagsPointAt(git.NewObjectID(shaA))
	require.NoError(t, err)
	require.Equal(t, []string{"v2.0.0", "v1.0.0"}, names)
	require.Equal(t, 2, page)
}

// handleHistory serves a linear history newest first, perPage commits at a time.
func handleHistory(mux *http.ServeMux, perPage int, shas ...string) *int32 {
	var calls int32
	mux.HandleFunc("/api/v3/repos/testowner/testrepo/commits", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		page := 1
		if p := r.URL.Query().Get("page"); p != "" {
			_, _ = fmt.Sscanf(p, "%d", &page)
		}
		start := (page - 1) * perPage
		end := start + perPage
		if end > len(shas) {
			end = len(shas)
		}
		var commits []map[string]interface{}
		for _, sha := range shas[start:end] {
			commits = append(commits, ghCommit(sha, "2025-01-01T00:00:00Z"))
		}
		if end < len(shas) {
			w.Header().Set("Link", fmt.Sprintf(`<http://%s%s?page=%d>; rel="next"`, r.Host, r.URL.Path, page+1))
		}
		writeJSON(w, commits)
	})
	return &calls
}

func TestDescribe_NilHead(t *testing.T) {
	repo := NewGitHubRepository(nil, "testowner", "testrepo")
	d, err := repo.Describe(nil, nil)
	require.NoError(t, err)
	require.Equal(t, git.Description{Commit: git.NoCommit, Tag: git.RootTag}, d)
}

func TestDescribe_NearestTagAcrossPages(t *testing.T) {
	mux := http.NewServeMux()
	calls := handleHistory(mux, 2, shaD, shaC, shaB, shaA)
	handleTags(mux, nil, lightweightTag("v1.0.0", shaA), lightweightTag("nightly", shaB))

	repo := newTestRepo(t, mux)
	head := git.NewObjectID(shaD)

	d, err := repo.Describe(&head, nil)
	require.NoError(t, err)
	require.Equal(t, git.Description{Commit: shaD, Tag: "nightly", Distance: 2}, d)
	require.Equal(t, int32(2), atomic.LoadInt32(calls))

	d, err = repo.Describe(&head, regexp.MustCompile(`v[0-9].*`))
	require.NoError(t, err)
	require.Equal(t, "v1.0.0", d.Tag)
	require.Equal(t, 3, d.Distance)

	// A pattern must match the whole name.
	d, err = repo.Describe(&head, regexp.MustCompile(`night`))
	require.NoError(t, err)
	require.Equal(t, git.RootTag, d.Tag)
	require.Equal(t, 3, d.Distance)

	// Repeated queries are served from the cache.
	before := atomic.LoadInt32(calls)
	_, err = repo.Describe(&head, nil)
	require.NoError(t, err)
	require.Equal(t, before, atomic.LoadInt32(calls))
}

func TestDescribe_TagOnHead(t *testing.T) {
	mux := http.NewServeMux()
	handleHistory(mux, 100, shaB, shaA)
	handleTags(mux, nil, lightweightTag("v1.0.0", shaB), lightweightTag("v1.1.0", shaB))

	repo := newTestRepo(t, mux)
	head := git.NewObjectID(shaB)

	d, err := repo.Describe(&head, nil)
	require.NoError(t, err)
	require.Equal(t, git.Description{Commit: shaB, Tag: "v1.1.0", Distance: 0}, d)
	require.Equal(t, "v1.1.0-0-gbbbb222", d.String())
}

func TestDescribe_MaxCommitsCap(t *testing.T) {
	mux := http.NewServeMux()
	handleHistory(mux, 2, shaD, shaC, shaB, shaA)
	handleTags(mux, nil, lightweightTag("v1.0.0", shaA))

	repo := newTestRepo(t, mux, WithMaxCommits(2))
	head := git.NewObjectID(shaD)

	_, err := repo.Describe(&head, nil)
	require.ErrorIs(t, err, git.ErrNoMatchingTagShallow)
}

func TestDescribe_ListError(t *testing.T) {
	mux := http.NewServeMux()
	handleTags(mux, nil)
	mux.HandleFunc("/api/v3/repos/testowner/testrepo/commits", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "boom"}`, http.StatusInternalServerError)
	})

	repo := newTestRepo(t, mux)
	head := git.NewObjectID(shaA)
	_, err := repo.Describe(&head, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "listing commits")
}

func TestFetchFileContent(t *testing.T) {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v3/repos/testowner/testrepo/contents/gitsituation.yml", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "release", r.URL.Query().Get("ref"))
		// GitHub Contents API returns base64-encoded content.
		writeJSON(w, map[string]interface{}{
			"type":     "file",
			"encoding": "base64",
			"content":  "YnJhbmNoOiBtYWluCg==", // base64 of "branch: main\n"
		})
	})

	repo := newTestRepo(t, mux, WithRef("release"))

	content, err := repo.FetchFileContent("gitsituation.yml")
	require.NoError(t, err)
	require.Equal(t, "branch: main\n", content)
}

func TestFetchFileContent_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	handleNotFound(mux, "/api/v3/repos/testowner/testrepo/contents/")

	repo := newTestRepo(t, mux)

	_, err := repo.FetchFileContent("nonexistent.yml")
	require.Error(t, err)
	require.True(t, IsNotFoundError(err))
}

func TestConvertGitHubRepoCommit_Nil(t *testing.T) {
	require.Equal(t, commit{}, convertGitHubRepoCommit(nil))
}

func TestDeriveGraphQLURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://ghe.example.com/api/v3", "https://ghe.example.com/api/graphql"},
		{"https://ghe.example.com/api/v3/", "https://ghe.example.com/api/graphql"},
		{"http://127.0.0.1:8080", "http://127.0.0.1:8080/graphql"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, deriveGraphQLURL(tt.in))
	}
}

func TestRefTargetPeel(t *testing.T) {
	commitTarget := refTarget{TypeName: "Commit", OID: shaA}
	tests := []struct {
		name   string
		target refTarget
		wantOK bool
	}{
		{"lightweight", commitTarget, true},
		{"annotated", refTarget{TypeName: "Tag", OID: "tagobj", Target: &commitTarget}, true},
		{"annotated tree", refTarget{TypeName: "Tag", OID: "tagobj", Target: &refTarget{TypeName: "Tree", OID: "tree"}}, false},
		{"blob", refTarget{TypeName: "Blob", OID: "blob"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.target.peel()
			require.Equal(t, tt.wantOK, ok)
			if ok {
				require.Equal(t, shaA, got.OID)
			}
		})
	}
}

func TestCommitFromRefTarget(t *testing.T) {
	c := commitFromRefTarget(refTarget{OID: shaA, CommittedDate: "2025-03-04T05:06:07Z"})
	require.Equal(t, shaA, c.Sha)
	require.True(t, c.When.Equal(time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)))

	require.True(t, commitFromRefTarget(refTarget{OID: shaA}).When.IsZero())
}

func TestCommitTime_IndependentOfTagFetch(t *testing.T) {
	mux := http.NewServeMux()
	handleBranch(mux, "main", shaA, nil)
	// The tag target reports a different date than the branch tip.
	handleTags(mux, nil, lightweightTag("v1.0.0", shaA))
	want := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	for _, tagsFirst := range []bool{true, false} {
		t.Run(fmt.Sprintf("tagsFirst=%v", tagsFirst), func(t *testing.T) {
			repo := newTestRepo(t, mux, WithRef("main"))
			head, err := repo.ResolveHead()
			require.NoError(t, err)

			if tagsFirst {
				_, err = repo.TagsPointAt(*head)
				require.NoError(t, err)
			}
			when, err := repo.CommitTime(*head)
			require.NoError(t, err)
			if !tagsFirst {
				_, err = repo.TagsPointAt(*head)
				require.NoError(t, err)
			}

			require.True(t, want.Equal(when), "got %s", when)
		})
	}
}

func TestResolveHead_BranchNotFoundFallsBackToTag(t *testing.T) {
	mux := http.NewServeMux()
	// GetBranch reports a 404 as a plain error with the status on the response.
	handleNotFound(mux, "/api/v3/repos/testowner/testrepo/branches/")
	handleTags(mux, nil, lightweightTag("release-7", shaB))

	repo := newTestRepo(t, mux, WithRef("release-7"))
	head, err := repo.ResolveHead()
	require.NoError(t, err)
	require.Equal(t, shaB, head.Sha)

	branch, err := repo.CurrentBranch()
	require.NoError(t, err)
	require.Empty(t, branch)
}
