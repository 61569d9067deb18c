package aggregate

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// multiSource chains several sources into one pagination stream. The
// combined cursor is "index:cursor" so the position within the chain
// survives across FetchPage calls.
type multiSource struct {
	sources []Source
}

// Multi combines sources into a single Source that pages through each in
// order. With one source it is returned unchanged.
func Multi(sources ...Source) Source {
	if len(sources) == 1 {
		return sources[0]
	}
	return &multiSource{sources: sources}
}

func (m *multiSource) FetchPage(ctx context.Context, teams []string, cursor string) (*Page, error) {
	index, inner, err := splitCursor(cursor)
	if err != nil {
		return nil, err
	}
	if index >= len(m.sources) {
		return &Page{}, nil
	}

	page, err := m.sources[index].FetchPage(ctx, teams, inner)
	if err != nil {
		return nil, err
	}

	if page.HasNextPage {
		page.EndCursor = joinCursor(index, page.EndCursor)
		return page, nil
	}

	// Current source exhausted; hand the stream to the next one.
	if index+1 < len(m.sources) {
		page.HasNextPage = true
		page.EndCursor = joinCursor(index+1, "")
	} else {
		page.EndCursor = ""
	}
	return page, nil
}

func splitCursor(cursor string) (int, string, error) {
	if cursor == "" {
		return 0, "", nil
	}
	idx, inner, found := strings.Cut(cursor, ":")
	if !found {
		return 0, "", fmt.Errorf("malformed multi-source cursor %q", cursor)
	}
	i, err := strconv.Atoi(idx)
	if err != nil {
		return 0, "", fmt.Errorf("malformed multi-source cursor %q", cursor)
	}
	return i, inner, nil
}

func joinCursor(index int, inner string) string {
	return strconv.Itoa(index) + ":" + inner
}
