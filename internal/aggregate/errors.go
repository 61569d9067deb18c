package aggregate

import (
	"fmt"
	"strings"
	"time"
)

// RateLimitError reports a 429 from the issue source. The aggregator does
// not retry; callers decide whether to back off using RetryAfter.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("issue source rate limited, retry after %s", e.RetryAfter)
	}
	return "issue source rate limited"
}

// EmptyResultError reports that zero issues survived filtering. This is a
// user-actionable condition, not a system fault: Suggestions lists filter
// relaxations the user can try.
type EmptyResultError struct {
	Suggestions []string
}

func (e *EmptyResultError) Error() string {
	msg := "no issues matched the requested filters"
	if len(e.Suggestions) > 0 {
		msg += "; try: " + strings.Join(e.Suggestions, ", ")
	}
	return msg
}

// NewEmptyResultError builds an EmptyResultError with relaxation hints
// derived from which filters were active on the request.
func NewEmptyResultError(hadProjects, hadLabels, hadDateRange, hadPriority bool) *EmptyResultError {
	var suggestions []string
	if hadDateRange {
		suggestions = append(suggestions, "widening the date range")
	}
	if hadProjects {
		suggestions = append(suggestions, "removing the project filter")
	}
	if hadLabels {
		suggestions = append(suggestions, "removing the label filter")
	}
	if hadPriority {
		suggestions = append(suggestions, "lowering the minimum priority")
	}
	if len(suggestions) == 0 {
		suggestions = append(suggestions, "selecting more teams")
	}
	return &EmptyResultError{Suggestions: suggestions}
}
