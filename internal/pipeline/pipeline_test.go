package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/releasedraft/releasedraft/internal/aggregate"
	"github.com/releasedraft/releasedraft/internal/cache"
	"github.com/releasedraft/releasedraft/internal/config"
	"github.com/releasedraft/releasedraft/internal/database"
	"github.com/releasedraft/releasedraft/internal/request"
)

type staticSource struct {
	issues []aggregate.Issue
}

func (s *staticSource) FetchPage(_ context.Context, _ []string, _ string) (*aggregate.Page, error) {
	return &aggregate.Page{Issues: s.issues}, nil
}

type staticProvider struct {
	text string
	err  error
}

func (s *staticProvider) Generate(_ context.Context, _, _ string, _ int) (string, error) {
	return s.text, s.err
}

func (s *staticProvider) IsConfigured() bool { return true }

func testPipeline(t *testing.T, source aggregate.Source, provider *staticProvider) *Pipeline {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Generation: config.Generation{MaxTokens: 512, IncludeIdentifiers: true},
	}
	return &Pipeline{
		cfg:       cfg,
		db:        db,
		source:    source,
		provider:  provider,
		directory: cache.New(time.Minute),
	}
}

func teamIssue(id, identifier string, labels ...string) aggregate.Issue {
	return aggregate.Issue{
		ID:         id,
		Identifier: identifier,
		Title:      "Issue " + identifier,
		Labels:     labels,
		Team:       &aggregate.Ref{ID: "team-1", Name: "Engineering"},
	}
}

func lastStep(r *Result) StepResult {
	return r.Steps[len(r.Steps)-1]
}

func TestRunPersistsDraft(t *testing.T) {
	source := &staticSource{issues: []aggregate.Issue{
		teamIssue("i1", "ENG-1", "feature"),
		teamIssue("i2", "ENG-2", "bug"),
	}}
	p := testPipeline(t, source, &staticProvider{text: "```markdown\n## Notes\n```"})

	result := p.Run(context.Background(), request.GenerationRequest{
		Teams:   []string{"team-1"},
		Version: "2.1.0",
	})
	if step := lastStep(result); step.Err != nil {
		t.Fatalf("pipeline failed at %s: %v", step.Name, step.Err)
	}
	if result.Draft == nil {
		t.Fatal("expected a saved draft")
	}
	if result.Draft.ContentMarkdown != "## Notes" {
		t.Errorf("fences not stripped: %q", result.Draft.ContentMarkdown)
	}
	if result.Draft.TotalIssues != 2 {
		t.Errorf("unexpected issue count: %d", result.Draft.TotalIssues)
	}

	stored, err := p.db.GetDraft(result.Draft.ID)
	if err != nil || stored == nil {
		t.Fatalf("draft not persisted: %v", err)
	}
	if stored.Version == nil || *stored.Version != "2.1.0" {
		t.Errorf("version not stored: %v", stored.Version)
	}
}

func TestRunStopsOnInvalidRequest(t *testing.T) {
	p := testPipeline(t, &staticSource{}, &staticProvider{text: "x"})

	result := p.Run(context.Background(), request.GenerationRequest{})
	if len(result.Steps) != 1 || result.Steps[0].Err == nil {
		t.Fatalf("expected single failed validate step, got %+v", result.Steps)
	}
	if result.Draft != nil {
		t.Error("no draft should be saved for an invalid request")
	}
}

func TestRunEmptyResult(t *testing.T) {
	p := testPipeline(t, &staticSource{}, &staticProvider{text: "x"})

	result := p.Run(context.Background(), request.GenerationRequest{
		Teams:    []string{"team-1"},
		Projects: []string{"p1"},
	})
	step := lastStep(result)
	if step.Err == nil {
		t.Fatal("expected empty-result error")
	}
	var empty *aggregate.EmptyResultError
	if !errors.As(step.Err, &empty) {
		t.Fatalf("expected EmptyResultError, got %v", step.Err)
	}
	if len(empty.Suggestions) == 0 {
		t.Error("expected filter relaxation suggestions")
	}
}

func TestDryRunBuildsPromptsOnly(t *testing.T) {
	source := &staticSource{issues: []aggregate.Issue{teamIssue("i1", "ENG-1", "feature")}}
	provider := &staticProvider{err: errors.New("provider must not be called")}
	p := testPipeline(t, source, provider)

	result := p.DryRun(context.Background(), request.GenerationRequest{Teams: []string{"team-1"}})
	if step := lastStep(result); step.Err != nil {
		t.Fatalf("dry run failed at %s: %v", step.Name, step.Err)
	}
	if result.Prompts.SystemPrompt == "" || result.Prompts.UserPrompt == "" {
		t.Error("expected built prompt pair")
	}
	if result.Draft != nil {
		t.Error("dry run must not persist a draft")
	}

	drafts, _ := p.db.GetAllDrafts()
	if len(drafts) != 0 {
		t.Errorf("dry run wrote %d drafts", len(drafts))
	}
}

func TestRunProviderFailure(t *testing.T) {
	source := &staticSource{issues: []aggregate.Issue{teamIssue("i1", "ENG-1", "feature")}}
	p := testPipeline(t, source, &staticProvider{err: errors.New("model offline")})

	result := p.Run(context.Background(), request.GenerationRequest{Teams: []string{"team-1"}})
	step := lastStep(result)
	if step.Name != "Generate" || step.Err == nil {
		t.Fatalf("expected Generate failure, got %+v", step)
	}

	drafts, _ := p.db.GetAllDrafts()
	if len(drafts) != 0 {
		t.Error("failed generation must not persist a draft")
	}
}

func TestRunRecordsUnclassifiedCount(t *testing.T) {
	source := &staticSource{issues: []aggregate.Issue{
		teamIssue("i1", "ENG-1", "feature"),
		{ID: "i2", Identifier: "ENG-2", Title: "Quarterly planning notes",
			Team: &aggregate.Ref{ID: "team-1", Name: "Engineering"}},
	}}
	p := testPipeline(t, source, &staticProvider{text: "## Notes"})

	result := p.Run(context.Background(), request.GenerationRequest{Teams: []string{"team-1"}})
	if result.Draft == nil {
		t.Fatal("expected draft")
	}
	if result.Draft.UnclassifiedIssues != 1 {
		t.Errorf("unclassified count not surfaced: %d", result.Draft.UnclassifiedIssues)
	}
}

const changelogXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Docs Changelog</title>
  <item>
    <title>Search got faster</title>
    <guid>https://example.com/changelog/1</guid>
    <category>improvement</category>
    <pubDate>Thu, 05 Mar 2026 12:00:00 GMT</pubDate>
  </item>
</channel>
</rss>`

func TestNewFeedOnlyPipeline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(changelogXML))
	}))
	t.Cleanup(server.Close)

	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// No Linear API key in the environment: the feed is the only source.
	cfg := &config.Config{
		Linear:     config.Linear{APIKeyEnv: "RELEASEDRAFT_TEST_ABSENT_KEY"},
		Generation: config.Generation{MaxTokens: 512},
		Changelogs: []config.ChangelogFeed{{URL: server.URL, TeamID: "docs", TeamName: "Docs"}},
	}

	p := New(cfg, db)
	result := p.DryRun(context.Background(), request.GenerationRequest{Teams: []string{"docs"}})
	if step := lastStep(result); step.Err != nil {
		t.Fatalf("feed-only pipeline failed at %s: %v", step.Name, step.Err)
	}
	if !strings.Contains(result.Prompts.UserPrompt, "Search got faster") {
		t.Error("expected the feed entry in the built prompt")
	}
}

func TestNewWithoutAnySource(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Linear:     config.Linear{APIKeyEnv: "RELEASEDRAFT_TEST_ABSENT_KEY"},
		Generation: config.Generation{MaxTokens: 512},
	}

	p := New(cfg, db)
	result := p.Run(context.Background(), request.GenerationRequest{Teams: []string{"docs"}})
	step := lastStep(result)
	if step.Name != "Aggregate" || step.Err == nil {
		t.Fatalf("expected Aggregate failure, got %+v", step)
	}
	if !strings.Contains(step.Err.Error(), "no issue sources configured") {
		t.Errorf("unexpected error: %v", step.Err)
	}
}
