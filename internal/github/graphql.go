package github

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MyCarrier-DevOps/go-gitsituation/internal/logger"
)

const (
	defaultGraphQLURL = "https://api.github.com/graphql"
	tagsPageSize      = 100
)

// tagsQuery lists tag refs with their targets. Annotated tags are peeled one
// level to the object they point at.
const tagsQuery = `
query($owner: String!, $name: String!, $first: Int!, $cursor: String) {
  repository(owner: $owner, name: $name) {
    refs(refPrefix: "refs/tags/", first: $first, after: $cursor) {
      nodes {
        name
        target {
          __typename
          oid
          ... on Commit { committedDate }
          ... on Tag {
            target {
              __typename
              oid
              ... on Commit { committedDate }
            }
          }
        }
      }
      pageInfo {
        hasNextPage
        endCursor
      }
    }
  }
}
`

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type tagRefsData struct {
	Repository struct {
		Refs struct {
			Nodes    []tagRefNode `json:"nodes"`
			PageInfo struct {
				HasNextPage bool   `json:"hasNextPage"`
				EndCursor   string `json:"endCursor"`
			} `json:"pageInfo"`
		} `json:"refs"`
	} `json:"repository"`
}

type tagRefNode struct {
	Name   string    `json:"name"`
	Target refTarget `json:"target"`
}

// refTarget is the object a ref points at. Target is only set for annotated
// tags.
type refTarget struct {
	TypeName      string     `json:"__typename"`
	OID           string     `json:"oid"`
	CommittedDate string     `json:"committedDate"`
	Target        *refTarget `json:"target"`
}

// peel returns the commit a tag ref resolves to, if any.
func (t refTarget) peel() (refTarget, bool) {
	switch {
	case t.TypeName == "Commit":
		return t, true
	case t.TypeName == "Tag" && t.Target != nil && t.Target.TypeName == "Commit":
		return *t.Target, true
	default:
		// Tags of trees or blobs never describe a commit.
		return refTarget{}, false
	}
}

// graphQL posts a query through the client's authenticated transport and
// decodes the data member into out.
func (r *GitHubRepository) graphQL(query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshaling GraphQL request: %w", err)
	}

	endpoint := defaultGraphQLURL
	if r.baseURL != "" {
		endpoint = deriveGraphQLURL(r.baseURL)
	}

	req, err := http.NewRequestWithContext(r.ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating GraphQL request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Client().Do(req)
	if err != nil {
		return fmt.Errorf("executing GraphQL request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading GraphQL response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GraphQL request failed with status %d: %s", resp.StatusCode, string(raw))
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("parsing GraphQL response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("GraphQL error: %s", envelope.Errors[0].Message)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decoding GraphQL data: %w", err)
	}
	return nil
}

// fetchAllTagsGraphQL lists every tag peeled to its commit. One GraphQL page
// replaces a REST tag listing plus one request per annotated tag. Tags that
// do not resolve to a commit are returned with an empty CommitSha.
func (r *GitHubRepository) fetchAllTagsGraphQL() ([]remoteTag, error) {
	var tags []remoteTag
	vars := map[string]any{
		"owner": r.owner,
		"name":  r.repo,
		"first": tagsPageSize,
	}

	for page := 1; ; page++ {
		var data tagRefsData
		if err := r.graphQL(tagsQuery, vars, &data); err != nil {
			return nil, fmt.Errorf("fetching tags via GraphQL: %w", err)
		}

		refs := data.Repository.Refs
		for _, node := range refs.Nodes {
			tag := remoteTag{Name: node.Name}
			if c, ok := node.Target.peel(); ok {
				tag.CommitSha = c.OID
				r.cache.addCommit(commitFromRefTarget(c))
			}
			tags = append(tags, tag)
		}

		logger.Debug().
			Str("repository", r.GitDir()).
			Int("page", page).
			Int("tags", len(refs.Nodes)).
			Msg("fetched remote tags")

		if !refs.PageInfo.HasNextPage {
			return tags, nil
		}
		vars["cursor"] = refs.PageInfo.EndCursor
	}
}

// deriveGraphQLURL maps a REST API base URL to its GraphQL endpoint. GitHub
// Enterprise serves REST under /api/v3 and GraphQL under /api/graphql.
func deriveGraphQLURL(baseURL string) string {
	trimmed := strings.TrimRight(baseURL, "/")
	if root, ok := strings.CutSuffix(trimmed, "/api/v3"); ok {
		return root + "/api/graphql"
	}
	return trimmed + "/graphql"
}

// commitFromRefTarget converts a peeled GraphQL target to a commit. An
// unparseable date leaves When zero.
func commitFromRefTarget(target refTarget) commit {
	when, _ := time.Parse(time.RFC3339, target.CommittedDate)
	return commit{Sha: target.OID, When: when}
}
