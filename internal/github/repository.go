package github

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/MyCarrier-DevOps/go-gitsituation/internal/git"
	"github.com/MyCarrier-DevOps/go-gitsituation/internal/logger"

	gh "github.com/google/go-github/v68/github"
)

// Compile-time check that GitHubRepository implements git.Repository.
var _ git.Repository = (*GitHubRepository)(nil)

const (
	defaultMaxCommits = 1000
	refHeadsPrefix    = "refs/heads/"
	refTagsPrefix     = "refs/tags/"
)

// GitHubRepository implements git.Repository using the GitHub API. It has
// no local checkout: the status is always clean and the work tree is a
// local directory chosen by the caller.
type GitHubRepository struct {
	client     *gh.Client
	owner      string
	repo       string
	ref        string // target ref (branch name, tag, or SHA)
	baseURL    string // custom API base URL for GHE
	workTree   string // local directory reported as the work tree
	maxCommits int    // hard cap on commit walk depth
	cache      *apiCache
	ctx        context.Context // request context
}

// Option configures a GitHubRepository.
type Option func(*GitHubRepository)

// WithRef sets the target ref for HEAD resolution.
func WithRef(ref string) Option {
	return func(r *GitHubRepository) { r.ref = ref }
}

// WithMaxCommits sets the hard cap on commit walk depth.
func WithMaxCommits(n int) Option {
	return func(r *GitHubRepository) { r.maxCommits = n }
}

// WithBaseURL sets the GitHub API base URL for GitHub Enterprise.
func WithBaseURL(url string) Option {
	return func(r *GitHubRepository) { r.baseURL = url }
}

// WithWorkTree sets the local directory reported as the work tree. It
// defaults to the process working directory.
func WithWorkTree(dir string) Option {
	return func(r *GitHubRepository) { r.workTree = dir }
}

// WithContext sets the context used for API requests.
func WithContext(ctx context.Context) Option {
	return func(r *GitHubRepository) { r.ctx = ctx }
}

// NewGitHubRepository creates a new GitHubRepository.
func NewGitHubRepository(client *gh.Client, owner, repo string, opts ...Option) *GitHubRepository {
	r := &GitHubRepository{
		client:     client,
		owner:      owner,
		repo:       repo,
		maxCommits: defaultMaxCommits,
		cache:      newCache(),
		ctx:        context.Background(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *GitHubRepository) WorkTree() (string, error) {
	if r.workTree != "" {
		return r.workTree, nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	return dir, nil
}

func (r *GitHubRepository) GitDir() string {
	return fmt.Sprintf("github.com/%s/%s", r.owner, r.repo)
}

var hexPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

func (r *GitHubRepository) ResolveHead() (*git.ObjectID, error) {
	h, err := r.resolve()
	if err != nil {
		return nil, err
	}
	return h.Head, nil
}

func (r *GitHubRepository) CurrentBranch() (string, error) {
	h, err := r.resolve()
	if err != nil {
		return "", err
	}
	return h.Branch, nil
}

// resolve turns the configured ref into a head commit and, when the ref
// names a branch, the branch name. Tags and SHAs resolve detached.
func (r *GitHubRepository) resolve() (resolvedHead, error) {
	if h, ok := r.cache.getHead(); ok {
		return h, nil
	}

	ref := r.ref
	defaultBranch := ref == ""
	if defaultBranch {
		repoInfo, _, err := r.client.Repositories.Get(r.ctx, r.owner, r.repo)
		if err != nil {
			return resolvedHead{}, fmt.Errorf("getting repository info: %w", err)
		}
		ref = repoInfo.GetDefaultBranch()
	}

	h, err := r.resolveRef(ref, defaultBranch)
	if err != nil {
		return resolvedHead{}, err
	}

	logger.Debug().
		Str("repository", r.GitDir()).
		Str("ref", ref).
		Str("branch", h.Branch).
		Msg("resolved remote HEAD")

	r.cache.putHead(h)
	return h, nil
}

func (r *GitHubRepository) resolveRef(ref string, defaultBranch bool) (resolvedHead, error) {
	if hexPattern.MatchString(ref) {
		c, err := r.commitFromSha(ref)
		if err != nil {
			return resolvedHead{}, fmt.Errorf("getting HEAD commit: %w", err)
		}
		id := git.NewObjectID(c.Sha)
		return resolvedHead{Head: &id}, nil
	}

	if tag, ok := strings.CutPrefix(ref, refTagsPrefix); ok {
		return r.resolveTag(tag)
	}
	name := strings.TrimPrefix(ref, refHeadsPrefix)

	ghBranch, resp, err := r.client.Repositories.GetBranch(r.ctx, r.owner, r.repo, name, 0)
	notFound := isNotFoundResponse(resp, err)
	switch {
	case err == nil:
		tip := convertGitHubRepoCommit(ghBranch.GetCommit())
		r.cache.putCommit(tip)
		id := git.NewObjectID(tip.Sha)
		return resolvedHead{Head: &id, Branch: name}, nil

	case notFound && defaultBranch:
		// A repository without commits has a default branch name but no
		// branch behind it.
		return resolvedHead{Branch: name}, nil

	case notFound:
		return r.resolveTag(name)

	default:
		return resolvedHead{}, fmt.Errorf("getting branch %s: %w", name, err)
	}
}

func (r *GitHubRepository) resolveTag(name string) (resolvedHead, error) {
	tags, err := r.tags()
	if err != nil {
		return resolvedHead{}, err
	}
	for _, t := range tags {
		if t.Name == name && t.CommitSha != "" {
			id := git.NewObjectID(t.CommitSha)
			return resolvedHead{Head: &id}, nil
		}
	}
	return resolvedHead{}, fmt.Errorf("ref %q not found in %s", name, r.GitDir())
}

func (r *GitHubRepository) CommitTime(id git.ObjectID) (time.Time, error) {
	c, err := r.commitFromSha(id.Sha)
	if err != nil {
		return time.Time{}, err
	}
	return c.When, nil
}

func (r *GitHubRepository) TagsPointAt(id git.ObjectID) ([]string, error) {
	tags, err := r.tags()
	if err != nil {
		return nil, err
	}

	names := []string{}
	for _, t := range tags {
		if t.CommitSha == id.Sha {
			names = append(names, t.Name)
		}
	}
	return git.SortTags(names), nil
}

// Status always reports a clean tree: there is no checkout to modify.
func (r *GitHubRepository) Status() (git.Status, error) {
	return git.Status{}, nil
}

// IsShallow is always false: the API serves the full history.
func (r *GitHubRepository) IsShallow() (bool, error) {
	return false, nil
}

// Describe walks the history of head page by page until a commit carrying a
// matching tag is found. When the walk stops at the commit cap without a
// match the history is treated as truncated.
func (r *GitHubRepository) Describe(head *git.ObjectID, pattern *regexp.Regexp) (git.Description, error) {
	if head == nil {
		return git.Description{Commit: git.NoCommit, Tag: git.RootTag}, nil
	}

	patternKey := ""
	if pattern != nil {
		patternKey = pattern.String()
	}
	key := descriptionKey(head.Sha, patternKey)
	if d, ok := r.cache.getDescription(key); ok {
		return d, nil
	}

	tagged, err := r.tagsByCommit(git.AnchorPattern(pattern))
	if err != nil {
		return git.Description{}, err
	}

	d, err := r.walkToTag(head.Sha, tagged)
	if err != nil {
		return git.Description{}, err
	}

	r.cache.putDescription(key, d)
	return d, nil
}

func (r *GitHubRepository) walkToTag(headSha string, tagged map[string][]string) (git.Description, error) {
	opts := &gh.CommitsListOptions{
		SHA: headSha,
		ListOptions: gh.ListOptions{
			PerPage: 100,
		},
	}

	depth := 0
	for {
		ghCommits, resp, err := r.client.Repositories.ListCommits(r.ctx, r.owner, r.repo, opts)
		if err != nil {
			return git.Description{}, fmt.Errorf("listing commits: %w", err)
		}

		for _, ghCommit := range ghCommits {
			if depth >= r.maxCommits {
				return git.Description{}, fmt.Errorf("%w: stopped after %d commits", git.ErrNoMatchingTagShallow, depth)
			}

			c := convertGitHubRepoCommit(ghCommit)
			r.cache.putCommit(c)

			if names, ok := tagged[c.Sha]; ok {
				return git.Description{Commit: headSha, Tag: git.BestTag(names), Distance: depth}, nil
			}
			depth++
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	// The root commit itself sits at the last distance walked.
	return git.Description{Commit: headSha, Tag: git.RootTag, Distance: depth - 1}, nil
}

// tagsByCommit maps commit SHAs to the names of the tags pointing at them.
// Only tags accepted by the anchored matcher are included.
func (r *GitHubRepository) tagsByCommit(matcher *regexp.Regexp) (map[string][]string, error) {
	tags, err := r.tags()
	if err != nil {
		return nil, err
	}

	result := make(map[string][]string)
	for _, t := range tags {
		if t.CommitSha == "" || !git.MatchesTag(matcher, t.Name) {
			continue
		}
		result[t.CommitSha] = append(result[t.CommitSha], t.Name)
	}
	return result, nil
}

func (r *GitHubRepository) tags() ([]remoteTag, error) {
	if tags, ok := r.cache.getTags(); ok {
		return tags, nil
	}

	tags, err := r.fetchAllTagsGraphQL()
	if err != nil {
		return nil, err
	}

	r.cache.putTags(tags)
	return tags, nil
}

func (r *GitHubRepository) commitFromSha(sha string) (commit, error) {
	if c, ok := r.cache.getCommit(sha); ok {
		return c, nil
	}

	ghCommit, _, err := r.client.Repositories.GetCommit(r.ctx, r.owner, r.repo, sha, nil)
	if err != nil {
		return commit{}, fmt.Errorf("getting commit %s: %w", sha, err)
	}

	c := convertGitHubRepoCommit(ghCommit)
	r.cache.putCommit(c)
	return c, nil
}

// FetchFileContent fetches a file's content from the repository.
// Used to load configuration files from the remote repository.
func (r *GitHubRepository) FetchFileContent(path string) (string, error) {
	opts := &gh.RepositoryContentGetOptions{}
	if r.ref != "" {
		opts.Ref = r.ref
	}

	content, _, _, err := r.client.Repositories.GetContents(r.ctx, r.owner, r.repo, path, opts)
	if err != nil {
		return "", fmt.Errorf("fetching file %s: %w", path, err)
	}
	if content == nil {
		return "", fmt.Errorf("file %s not found", path)
	}

	decoded, err := content.GetContent()
	if err != nil {
		return "", fmt.Errorf("decoding file content: %w", err)
	}
	return decoded, nil
}

// convertGitHubRepoCommit converts a GitHub API RepositoryCommit to a commit.
func convertGitHubRepoCommit(ghCommit *gh.RepositoryCommit) commit {
	if ghCommit == nil {
		return commit{}
	}

	var when time.Time
	if ghCommit.Commit != nil && ghCommit.Commit.Committer != nil && ghCommit.Commit.Committer.Date != nil {
		when = ghCommit.Commit.Committer.Date.Time
	}

	return commit{Sha: ghCommit.GetSHA(), When: when}
}
