package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Product Changelog</title>
  <item>
    <title>New export pipeline</title>
    <guid>https://example.com/changelog/42</guid>
    <category>feature</category>
    <pubDate>Thu, 05 Mar 2026 12:00:00 GMT</pubDate>
  </item>
  <item>
    <guid>https://example.com/changelog/43</guid>
    <description><![CDATA[<article><p>Fixed a crash in the importer when files exceed 2GB.</p></article>]]></description>
  </item>
  <item>
    <title></title>
  </item>
</channel>
</rss>`

func serveFeed(t *testing.T) *Source {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(testFeed))
	}))
	t.Cleanup(server.Close)
	return New(Config{URL: server.URL, TeamID: "platform", TeamName: "Platform"})
}

func TestFetchPageNormalizesEntries(t *testing.T) {
	source := serveFeed(t)

	page, err := source.FetchPage(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.HasNextPage {
		t.Error("feed source must report a single page")
	}
	if len(page.Issues) != 2 {
		t.Fatalf("expected 2 issues (entry with no id/title dropped), got %d", len(page.Issues))
	}

	first := page.Issues[0]
	if first.Title != "New export pipeline" {
		t.Errorf("unexpected title: %q", first.Title)
	}
	if len(first.Labels) != 1 || first.Labels[0] != "feature" {
		t.Errorf("categories should become labels: %v", first.Labels)
	}
	if first.Team == nil || first.Team.ID != "platform" {
		t.Errorf("entries must carry the configured team: %+v", first.Team)
	}
	if first.CompletedAt == nil {
		t.Error("pubDate should become the completion timestamp")
	}
	if first.StateType != "completed" {
		t.Errorf("unexpected state type: %q", first.StateType)
	}
}

func TestFetchPageTitleFromHTMLBody(t *testing.T) {
	source := serveFeed(t)

	page, err := source.FetchPage(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second := page.Issues[1]
	if second.Title == "" {
		t.Fatal("expected title extracted from HTML body")
	}
	if want := "Fixed a crash in the importer"; len(second.Title) < len(want) {
		t.Errorf("extracted title too short: %q", second.Title)
	}
}

func TestFetchPageCursorMeansDone(t *testing.T) {
	source := serveFeed(t)

	page, err := source.FetchPage(context.Background(), nil, "already-served")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Issues) != 0 || page.HasNextPage {
		t.Errorf("expected empty terminal page, got %+v", page)
	}
}

func TestFetchPageUnreachableFeed(t *testing.T) {
	source := New(Config{URL: "http://127.0.0.1:1/feed.xml", TeamID: "t", TeamName: "T"})
	if _, err := source.FetchPage(context.Background(), nil, ""); err == nil {
		t.Fatal("expected error for unreachable feed")
	}
}

func TestFetchPageTitleTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("ü", 200)
	body := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Product Changelog</title>
  <item>
    <guid>https://example.com/changelog/50</guid>
    <description><![CDATA[<article><p>` + long + `</p></article>]]></description>
  </item>
</channel>
</rss>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	source := New(Config{URL: server.URL, TeamID: "platform", TeamName: "Platform"})

	page, err := source.FetchPage(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Issues) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(page.Issues))
	}

	title := page.Issues[0].Title
	if !utf8.ValidString(title) {
		t.Errorf("truncated title is not valid UTF-8: %q", title)
	}
	if !strings.HasSuffix(title, "...") {
		t.Errorf("long title should be truncated with an ellipsis: %q", title)
	}
	if got := utf8.RuneCountInString(strings.TrimSuffix(title, "...")); got != 120 {
		t.Errorf("expected 120 runes before the ellipsis, got %d", got)
	}
}
