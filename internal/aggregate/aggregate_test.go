package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/releasedraft/releasedraft/internal/request"
)

// mockSource serves a fixed sequence of pages.
type mockSource struct {
	pages []Page
	calls int
}

func (m *mockSource) FetchPage(_ context.Context, _ []string, cursor string) (*Page, error) {
	if m.calls >= len(m.pages) {
		return &Page{}, nil
	}
	page := m.pages[m.calls]
	m.calls++
	return &page, nil
}

type failingSource struct {
	err error
}

func (f *failingSource) FetchPage(_ context.Context, _ []string, _ string) (*Page, error) {
	return nil, f.err
}

func intPtr(i int) *int { return &i }

func timePtr(t time.Time) *time.Time { return &t }

func issue(id, identifier, teamID, projectID string, labels ...string) Issue {
	iss := Issue{
		ID:         id,
		Identifier: identifier,
		Title:      "Issue " + identifier,
		Labels:     labels,
		Team:       &Ref{ID: teamID, Name: "Team " + teamID},
	}
	if projectID != "" {
		iss.Project = &Ref{ID: projectID, Name: "Project " + projectID}
	}
	return iss
}

func TestAggregateTwoPagesWithProjectFilter(t *testing.T) {
	source := &mockSource{pages: []Page{
		{
			Issues: []Issue{
				issue("i1", "ENG-1", "team-1", "p1"),
				issue("i2", "ENG-2", "team-1", "p1"),
			},
			HasNextPage: true,
			EndCursor:   "cursor-1",
		},
		{
			Issues: []Issue{issue("i3", "ENG-3", "team-1", "p2")},
		},
	}}

	result, err := New(source).Aggregate(context.Background(), request.GenerationRequest{
		Teams:    []string{"team-1"},
		Projects: []string{"p1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalIssues != 2 {
		t.Errorf("expected 2 issues, got %d", result.TotalIssues)
	}
	if len(result.Issues) != 2 || result.Issues[0].Identifier != "ENG-1" || result.Issues[1].Identifier != "ENG-2" {
		t.Errorf("unexpected issues: %+v", result.Issues)
	}
	if source.calls != 2 {
		t.Errorf("expected 2 page fetches, got %d", source.calls)
	}
}

func TestAggregateExcludesOtherTeams(t *testing.T) {
	source := &mockSource{pages: []Page{{
		Issues: []Issue{
			issue("i1", "ENG-1", "team-1", ""),
			issue("i2", "OPS-1", "team-2", ""),
		},
	}}}

	result, err := New(source).Aggregate(context.Background(), request.GenerationRequest{
		Teams: []string{"team-1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalIssues != 1 || result.Issues[0].Identifier != "ENG-1" {
		t.Errorf("expected only ENG-1, got %+v", result.Issues)
	}
}

func TestAggregateProjectFilterExcludesProjectless(t *testing.T) {
	source := &mockSource{pages: []Page{{
		Issues: []Issue{
			issue("i1", "ENG-1", "team-1", ""),
			issue("i2", "ENG-2", "team-1", "p1"),
		},
	}}}

	result, err := New(source).Aggregate(context.Background(), request.GenerationRequest{
		Teams:    []string{"team-1"},
		Projects: []string{"p1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalIssues != 1 || result.Issues[0].Identifier != "ENG-2" {
		t.Errorf("expected only ENG-2, got %+v", result.Issues)
	}
}

func TestAggregateLabelFilter(t *testing.T) {
	source := &mockSource{pages: []Page{{
		Issues: []Issue{
			issue("i1", "ENG-1", "team-1", "", "bug"),
			issue("i2", "ENG-2", "team-1", "", "feature"),
			issue("i3", "ENG-3", "team-1", ""),
		},
	}}}

	result, err := New(source).Aggregate(context.Background(), request.GenerationRequest{
		Teams:   []string{"team-1"},
		Filters: request.IssueFilters{Labels: []string{"bug"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalIssues != 1 || result.Issues[0].Identifier != "ENG-1" {
		t.Errorf("expected only ENG-1, got %+v", result.Issues)
	}
}

func TestAggregateMinPriority(t *testing.T) {
	low := issue("i1", "ENG-1", "team-1", "")
	low.Priority = intPtr(1)
	high := issue("i2", "ENG-2", "team-1", "")
	high.Priority = intPtr(4)
	unset := issue("i3", "ENG-3", "team-1", "")

	source := &mockSource{pages: []Page{{Issues: []Issue{low, high, unset}}}}

	result, err := New(source).Aggregate(context.Background(), request.GenerationRequest{
		Teams:   []string{"team-1"},
		Filters: request.IssueFilters{MinPriority: intPtr(3)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalIssues != 1 || result.Issues[0].Identifier != "ENG-2" {
		t.Errorf("expected only ENG-2, got %+v", result.Issues)
	}
}

func TestAggregateDateRangeKeepsOpenIssues(t *testing.T) {
	inRange := issue("i1", "ENG-1", "team-1", "")
	inRange.CompletedAt = timePtr(time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
	outOfRange := issue("i2", "ENG-2", "team-1", "")
	outOfRange.CompletedAt = timePtr(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	open := issue("i3", "ENG-3", "team-1", "")

	source := &mockSource{pages: []Page{{Issues: []Issue{inRange, outOfRange, open}}}}

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	result, err := New(source).Aggregate(context.Background(), request.GenerationRequest{
		Teams:     []string{"team-1"},
		DateRange: request.DateRange{From: &from, To: &to},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalIssues != 2 {
		t.Errorf("expected ENG-1 and open ENG-3, got %+v", result.Issues)
	}
}

func TestAggregateSelectionNarrowing(t *testing.T) {
	source := &mockSource{pages: []Page{{
		Issues: []Issue{
			issue("uuid-1", "ENG-1", "team-1", ""),
			issue("uuid-2", "ENG-2", "team-1", ""),
			issue("uuid-3", "ENG-3", "team-1", ""),
		},
	}}}

	result, err := New(source).Aggregate(context.Background(), request.GenerationRequest{
		Teams:            []string{"team-1"},
		SelectedIssueIDs: []string{"ENG-1", "uuid-3"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalIssues != 2 {
		t.Errorf("expected 2 narrowed issues, got %d", result.TotalIssues)
	}
	if result.TotalIssues != len(result.Issues) {
		t.Errorf("TotalIssues %d != len(Issues) %d", result.TotalIssues, len(result.Issues))
	}
}

func TestAggregateDeduplicatesAcrossPages(t *testing.T) {
	source := &mockSource{pages: []Page{
		{Issues: []Issue{issue("i1", "ENG-1", "team-1", "")}, HasNextPage: true, EndCursor: "c1"},
		{Issues: []Issue{issue("i1", "ENG-1", "team-1", ""), issue("i2", "ENG-2", "team-1", "")}},
	}}

	result, err := New(source).Aggregate(context.Background(), request.GenerationRequest{
		Teams: []string{"team-1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalIssues != 2 {
		t.Errorf("expected 2 deduplicated issues, got %d", result.TotalIssues)
	}
}

func TestAggregatePropagatesFetchError(t *testing.T) {
	rateErr := &RateLimitError{RetryAfter: 30 * time.Second}
	_, err := New(&failingSource{err: rateErr}).Aggregate(context.Background(), request.GenerationRequest{
		Teams: []string{"team-1"},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Errorf("expected RateLimitError, got %v", err)
	}
	if rle.RetryAfter != 30*time.Second {
		t.Errorf("retry-after hint lost: %v", rle.RetryAfter)
	}
}

func TestAggregateIdempotent(t *testing.T) {
	req := request.GenerationRequest{Teams: []string{"team-1"}}
	pages := []Page{{Issues: []Issue{
		issue("i1", "ENG-1", "team-1", ""),
		issue("i2", "ENG-2", "team-1", ""),
	}}}

	first, err := New(&mockSource{pages: pages}).Aggregate(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := New(&mockSource{pages: pages}).Aggregate(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.TotalIssues != second.TotalIssues || len(first.Issues) != len(second.Issues) {
		t.Errorf("re-run differs: %d vs %d", first.TotalIssues, second.TotalIssues)
	}
	for i := range first.Issues {
		if first.Issues[i].ID != second.Issues[i].ID {
			t.Errorf("issue order differs at %d", i)
		}
	}
}

func TestAggregateStateTypeFilter(t *testing.T) {
	started := issue("i1", "ENG-1", "team-1", "")
	started.StateType = "started"
	completed := issue("i2", "ENG-2", "team-1", "")
	completed.StateType = "completed"

	source := &mockSource{pages: []Page{{Issues: []Issue{started, completed}}}}

	req := request.GenerationRequest{Teams: []string{"team-1"}}
	req.Filters.StateTypes = []string{"completed"}

	result, err := New(source).Aggregate(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Issues) != 1 || result.Issues[0].ID != "i2" {
		t.Fatalf("expected only the completed issue, got %+v", result.Issues)
	}
}
