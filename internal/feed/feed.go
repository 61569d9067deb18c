// Package feed implements an issue source backed by a changelog RSS/Atom
// feed, for teams that track shipped work outside Linear. Feed categories
// become issue labels so categorization works unchanged.
package feed

import (
	"context"
	"fmt"
	"log"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"

	"github.com/releasedraft/releasedraft/internal/aggregate"
)

const maxEntries = 100

// Config describes one changelog feed and the team its entries belong to.
type Config struct {
	URL      string
	TeamID   string
	TeamName string
}

// Source reads a changelog feed and exposes it as a single-page issue
// source. Feeds have no cursor protocol, so every fetch returns one page
// with HasNextPage false.
type Source struct {
	cfg    Config
	parser *gofeed.Parser
}

// New creates a feed source for the given config.
func New(cfg Config) *Source {
	return &Source{cfg: cfg, parser: gofeed.NewParser()}
}

// FetchPage parses the feed and normalizes its entries into issues.
func (s *Source) FetchPage(ctx context.Context, _ []string, cursor string) (*aggregate.Page, error) {
	if cursor != "" {
		// No cursor protocol: a non-empty cursor means the single page
		// was already served.
		return &aggregate.Page{}, nil
	}

	parsed, err := s.parser.ParseURLWithContext(s.cfg.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing changelog feed %s: %w", s.cfg.URL, err)
	}

	page := &aggregate.Page{}
	for i, item := range parsed.Items {
		if len(page.Issues) >= maxEntries {
			break
		}
		issue := s.normalizeItem(item, i)
		if issue == nil {
			continue
		}
		page.Issues = append(page.Issues, *issue)
	}

	log.Printf("Parsed %d changelog entries from %s", len(page.Issues), s.cfg.URL)
	return page, nil
}

func (s *Source) normalizeItem(item *gofeed.Item, index int) *aggregate.Issue {
	id := item.GUID
	if id == "" {
		id = item.Link
	}
	if id == "" {
		return nil
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = titleFromContent(item)
	}
	if title == "" {
		return nil
	}

	issue := &aggregate.Issue{
		ID:         id,
		Identifier: fmt.Sprintf("%s-%d", strings.ToUpper(nonEmpty(s.cfg.TeamID, "FEED")), index+1),
		Title:      title,
		Labels:     item.Categories,
		Team:       &aggregate.Ref{ID: s.cfg.TeamID, Name: s.cfg.TeamName},
		StateName:  "Shipped",
		StateType:  "completed",
	}

	if item.PublishedParsed != nil {
		t := item.PublishedParsed.UTC()
		issue.CompletedAt = &t
	} else if item.UpdatedParsed != nil {
		t := item.UpdatedParsed.UTC()
		issue.CompletedAt = &t
	}

	return issue
}

// titleFromContent extracts a readable title from an entry that carries
// only an HTML body. Readability strips markup and boilerplate; the first
// line of the remaining text becomes the title.
func titleFromContent(item *gofeed.Item) string {
	html := item.Content
	if html == "" {
		html = item.Description
	}
	if html == "" {
		return ""
	}

	article, err := readability.FromReader(strings.NewReader(html), nil)
	if err != nil {
		return ""
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return ""
	}
	if line, _, found := strings.Cut(text, "\n"); found {
		text = strings.TrimSpace(line)
	}
	// Truncate on rune boundaries; changelog bodies are not always ASCII.
	if runes := []rune(text); len(runes) > 120 {
		text = string(runes[:120]) + "..."
	}
	return text
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

var _ aggregate.Source = (*Source)(nil)
