// Package categorize classifies issues into release-note sections using
// label and title heuristics with a fixed precedence.
package categorize

import (
	"regexp"
	"strings"

	"github.com/releasedraft/releasedraft/internal/aggregate"
)

// Section tags, in precedence order.
const (
	SectionBreaking     = "breaking"
	SectionBugfixes     = "bugfixes"
	SectionFeatures     = "features"
	SectionImprovements = "improvements"
)

// Sections holds the classified issues. Every input issue lands in at most
// one section; issues matching no rule are excluded but counted in
// Unclassified so they are never lost silently.
type Sections struct {
	Features     []aggregate.Issue
	Improvements []aggregate.Issue
	Bugfixes     []aggregate.Issue
	Breaking     []aggregate.Issue
	Unclassified int
}

// rule pairs a pattern with the section it assigns. Rules are evaluated in
// order and the first match wins, which enforces the precedence
// breaking > bugfixes > features > improvements structurally.
type rule struct {
	pattern *regexp.Regexp
	section string
}

var rules = []rule{
	{regexp.MustCompile(`(?i)breaking[\s_-]?change|breaking`), SectionBreaking},
	{regexp.MustCompile(`(?i)\bbugs?\b|bugfix|hotfix|\bfix(es|ed)?\b`), SectionBugfixes},
	// "enhancement" is deliberately a feature signal, not an improvement one.
	{regexp.MustCompile(`(?i)features?|enhancements?|\bfeat\b`), SectionFeatures},
	{regexp.MustCompile(`(?i)improve(ment)?s?|refactor|chore|performance|\bperf\b|cleanup|optimi[sz]`), SectionImprovements},
}

// Categorize partitions issues into the four release-note sections.
// Deterministic and pure; section order is the insertion order of the
// input sequence.
func Categorize(issues []aggregate.Issue) Sections {
	var sections Sections
	for _, issue := range issues {
		switch classify(issue) {
		case SectionBreaking:
			sections.Breaking = append(sections.Breaking, issue)
		case SectionBugfixes:
			sections.Bugfixes = append(sections.Bugfixes, issue)
		case SectionFeatures:
			sections.Features = append(sections.Features, issue)
		case SectionImprovements:
			sections.Improvements = append(sections.Improvements, issue)
		default:
			sections.Unclassified++
		}
	}
	return sections
}

// classify returns the section tag for an issue, or "" when no rule
// matches its labels or title.
func classify(issue aggregate.Issue) string {
	haystack := strings.Join(issue.Labels, " ") + " " + issue.Title
	for _, r := range rules {
		if r.pattern.MatchString(haystack) {
			return r.section
		}
	}
	return ""
}

// Total returns the number of issues placed in any section.
func (s Sections) Total() int {
	return len(s.Features) + len(s.Improvements) + len(s.Bugfixes) + len(s.Breaking)
}

// Empty reports whether no section received any issue.
func (s Sections) Empty() bool {
	return s.Total() == 0
}
