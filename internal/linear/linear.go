// Package linear implements the issue source against the Linear GraphQL
// API, including cursor pagination and team/project directory lookups.
package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/releasedraft/releasedraft/internal/aggregate"
)

const defaultBaseURL = "https://api.linear.app/graphql"

const defaultPageSize = 50

const issuesQuery = `query($filter: IssueFilter, $after: String, $first: Int) {
  issues(filter: $filter, after: $after, first: $first) {
    nodes {
      id
      identifier
      title
      priority
      completedAt
      labels { nodes { name } }
      team { id name }
      project { id name }
      state { name type }
    }
    pageInfo {
      hasNextPage
      endCursor
    }
  }
}`

// Client talks to the Linear GraphQL endpoint. It implements
// aggregate.Source.
type Client struct {
	apiKey   string
	baseURL  string
	pageSize int
	client   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the GraphQL endpoint, used by tests to point at a
// httptest server.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithPageSize overrides the page size requested per fetch.
func WithPageSize(n int) Option {
	return func(c *Client) { c.pageSize = n }
}

// NewClient creates a Linear client authenticating with the given API key.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:   apiKey,
		baseURL:  defaultBaseURL,
		pageSize: defaultPageSize,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsConfigured returns whether an API key is available.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type issuesResponse struct {
	Data *struct {
		Issues struct {
			Nodes    []rawIssue `json:"nodes"`
			PageInfo pageInfo   `json:"pageInfo"`
		} `json:"issues"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

type rawIssue struct {
	ID          string `json:"id"`
	Identifier  string `json:"identifier"`
	Title       string `json:"title"`
	Priority    *int   `json:"priority"`
	CompletedAt string `json:"completedAt"`
	Labels      struct {
		Nodes []struct {
			Name string `json:"name"`
		} `json:"nodes"`
	} `json:"labels"`
	Team    *rawRef `json:"team"`
	Project *rawRef `json:"project"`
	State   *struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"state"`
}

type rawRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FetchPage fetches one page of issues for the given teams. Team filtering
// is pushed into the GraphQL filter; the aggregator re-checks it anyway.
func (c *Client) FetchPage(ctx context.Context, teams []string, cursor string) (*aggregate.Page, error) {
	variables := map[string]any{"first": c.pageSize}
	if filter := buildIssueFilter(teams); filter != nil {
		variables["filter"] = filter
	}
	if cursor != "" {
		variables["after"] = cursor
	}

	var resp issuesResponse
	if err := c.query(ctx, issuesQuery, variables, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("linear API returned errors: %s", joinErrors(resp.Errors))
	}
	if resp.Data == nil {
		return &aggregate.Page{}, nil
	}

	page := &aggregate.Page{
		HasNextPage: resp.Data.Issues.PageInfo.HasNextPage,
		EndCursor:   resp.Data.Issues.PageInfo.EndCursor,
	}
	for _, raw := range resp.Data.Issues.Nodes {
		page.Issues = append(page.Issues, normalize(raw))
	}
	return page, nil
}

// query posts a GraphQL request and decodes the response into out. A 429
// becomes an *aggregate.RateLimitError carrying the Retry-After hint.
func (c *Client) query(ctx context.Context, query string, variables map[string]any, out any) error {
	if c.apiKey == "" {
		return fmt.Errorf("linear API key not configured")
	}

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshaling linear request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating linear request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("linear API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &aggregate.RateLimitError{RetryAfter: retryAfter(resp)}
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("linear API returned %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding linear response: %w", err)
	}
	return nil
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

func buildIssueFilter(teams []string) map[string]any {
	if len(teams) == 0 {
		return nil
	}
	return map[string]any{
		"team": map[string]any{
			"id": map[string]any{"in": teams},
		},
	}
}

func normalize(raw rawIssue) aggregate.Issue {
	issue := aggregate.Issue{
		ID:         raw.ID,
		Identifier: raw.Identifier,
		Title:      raw.Title,
		Priority:   raw.Priority,
	}
	for _, l := range raw.Labels.Nodes {
		issue.Labels = append(issue.Labels, l.Name)
	}
	if raw.Team != nil {
		issue.Team = &aggregate.Ref{ID: raw.Team.ID, Name: raw.Team.Name}
	}
	if raw.Project != nil {
		issue.Project = &aggregate.Ref{ID: raw.Project.ID, Name: raw.Project.Name}
	}
	if raw.State != nil {
		issue.StateName = raw.State.Name
		issue.StateType = raw.State.Type
	}
	if raw.CompletedAt != "" {
		if t, err := time.Parse(time.RFC3339, raw.CompletedAt); err == nil {
			issue.CompletedAt = &t
		}
	}
	return issue
}

func joinErrors(errs []graphQLError) string {
	msg := ""
	for i, e := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += e.Message
	}
	return msg
}
