// Package aggregate drives cursor-based pagination against an issue source
// and applies the request's post-fetch filters.
package aggregate

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/releasedraft/releasedraft/internal/request"
)

// Ref is a lightweight reference to a team or project.
type Ref struct {
	ID   string
	Name string
}

// Issue is a normalized, source-agnostic unit of tracked work.
// Never mutated after creation.
type Issue struct {
	ID          string
	Identifier  string // human-readable key, e.g. "ENG-1"
	Title       string
	Labels      []string
	Team        *Ref
	Project     *Ref
	Priority    *int // Linear scale, 0-5
	CompletedAt *time.Time
	StateName   string
	StateType   string
}

// Page is one page of normalized issues from a source.
type Page struct {
	Issues      []Issue
	HasNextPage bool
	EndCursor   string
}

// Source is the pagination primitive the aggregator consumes. A source may
// push team filtering into its own query; the aggregator re-checks it either
// way so the contract holds for any implementation.
type Source interface {
	FetchPage(ctx context.Context, teams []string, cursor string) (*Page, error)
}

// Result is the flat, deduplicated outcome of an aggregation run.
// TotalIssues counts issues surviving all filters, not the raw source total.
type Result struct {
	Issues      []Issue
	TotalIssues int
}

// Aggregator fetches and filters issues for a generation request.
type Aggregator struct {
	source Source
}

// New creates an aggregator over the given source.
func New(source Source) *Aggregator {
	return &Aggregator{source: source}
}

// Aggregate pages through the source until it reports no further page,
// filtering and deduplicating as it goes. Pagination is sequential because
// each page depends on the previous page's cursor. A page-fetch failure
// aborts the run and surfaces the underlying error; rate limits are
// propagated as *RateLimitError for the caller to back off on.
func (a *Aggregator) Aggregate(ctx context.Context, req request.GenerationRequest) (*Result, error) {
	seen := make(map[string]struct{})
	var issues []Issue
	var cursor string

	for {
		page, err := a.source.FetchPage(ctx, req.Teams, cursor)
		if err != nil {
			return nil, fmt.Errorf("fetching issue page: %w", err)
		}

		for _, issue := range page.Issues {
			if _, dup := seen[issue.ID]; dup {
				continue
			}
			seen[issue.ID] = struct{}{}
			if matchesFilters(issue, req) {
				issues = append(issues, issue)
			}
		}

		if !page.HasNextPage {
			break
		}
		cursor = page.EndCursor
	}

	if len(req.SelectedIssueIDs) > 0 {
		issues = narrowToSelection(issues, req.SelectedIssueIDs)
	}

	log.Printf("Aggregated %d issues for %d team(s)", len(issues), len(req.Teams))
	return &Result{Issues: issues, TotalIssues: len(issues)}, nil
}

// matchesFilters applies team, project, label, state-type, priority and
// date-range filters. Open issues (no completion timestamp) are not excluded by the
// date range alone.
func matchesFilters(issue Issue, req request.GenerationRequest) bool {
	if issue.Team == nil || !contains(req.Teams, issue.Team.ID) {
		return false
	}

	if len(req.Projects) > 0 {
		if issue.Project == nil || !contains(req.Projects, issue.Project.ID) {
			return false
		}
	}

	if len(req.Filters.Labels) > 0 && !hasAnyLabel(issue.Labels, req.Filters.Labels) {
		return false
	}

	if len(req.Filters.StateTypes) > 0 && !contains(req.Filters.StateTypes, issue.StateType) {
		return false
	}

	if req.Filters.MinPriority != nil {
		priority := 0
		if issue.Priority != nil {
			priority = *issue.Priority
		}
		if priority < *req.Filters.MinPriority {
			return false
		}
	}

	if issue.CompletedAt != nil {
		if req.DateRange.From != nil && issue.CompletedAt.Before(*req.DateRange.From) {
			return false
		}
		if req.DateRange.To != nil && issue.CompletedAt.After(*req.DateRange.To) {
			return false
		}
	}

	return true
}

// narrowToSelection restricts issues to those whose identifier or id is in
// the selected set.
func narrowToSelection(issues []Issue, selected []string) []Issue {
	want := make(map[string]struct{}, len(selected))
	for _, s := range selected {
		want[s] = struct{}{}
	}

	var narrowed []Issue
	for _, issue := range issues {
		if _, ok := want[issue.Identifier]; ok {
			narrowed = append(narrowed, issue)
			continue
		}
		if _, ok := want[issue.ID]; ok {
			narrowed = append(narrowed, issue)
		}
	}
	return narrowed
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func hasAnyLabel(labels, wanted []string) bool {
	for _, l := range labels {
		if contains(wanted, l) {
			return true
		}
	}
	return false
}
