package github

import (
	"sync"
	"time"

	"github.com/MyCarrier-DevOps/go-gitsituation/internal/git"
)

// commit is the subset of a GitHub commit the remote engine needs.
type commit struct {
	Sha  string
	When time.Time
}

// remoteTag is a tag name with its target peeled to a commit SHA. CommitSha
// is empty when the tag does not point at a commit.
type remoteTag struct {
	Name      string
	CommitSha string
}

// resolvedHead is the outcome of resolving the configured ref. A nil Head
// means the repository has no commits.
type resolvedHead struct {
	Head   *git.ObjectID
	Branch string
}

// apiCache provides in-memory caching for GitHub API responses.
// All fields are protected by a read-write mutex for concurrent safety.
// Caches have a single-run lifetime (not persisted).
type apiCache struct {
	mu sync.RWMutex

	tags        []remoteTag
	tagsFetched bool

	// SHA-keyed caches.
	commits      map[string]commit          // sha → commit
	descriptions map[string]git.Description // "head:pattern" → description

	head *resolvedHead
}

func newCache() *apiCache {
	return &apiCache{
		commits:      make(map[string]commit),
		descriptions: make(map[string]git.Description),
	}
}

// Tags cache.

func (c *apiCache) getTags() ([]remoteTag, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tags, c.tagsFetched
}

func (c *apiCache) putTags(tags []remoteTag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags = tags
	c.tagsFetched = true
}

// Commit cache.

func (c *apiCache) getCommit(sha string) (commit, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cm, ok := c.commits[sha]
	return cm, ok
}

func (c *apiCache) putCommit(cm commit) {
	if cm.Sha == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commits[cm.Sha] = cm
}

// addCommit records cm unless the commit is already known. Commits seen
// through the REST API take precedence over ones peeled from tags.
func (c *apiCache) addCommit(cm commit) {
	if cm.Sha == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.commits[cm.Sha]; !ok {
		c.commits[cm.Sha] = cm
	}
}

// Description cache.

func (c *apiCache) getDescription(key string) (git.Description, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.descriptions[key]
	return d, ok
}

func (c *apiCache) putDescription(key string, d git.Description) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.descriptions[key] = d
}

// Head cache.

func (c *apiCache) getHead() (resolvedHead, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.head == nil {
		return resolvedHead{}, false
	}
	return *c.head, true
}

func (c *apiCache) putHead(h resolvedHead) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.head = &h
}

// descriptionKey returns a cache key for a describe query.
func descriptionKey(headSha, pattern string) string {
	return headSha + ":" + pattern
}
