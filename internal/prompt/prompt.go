// Package prompt assembles the system/user prompt pair handed to the
// generative provider. All context the provider needs must be embedded in
// the two strings it produces.
package prompt

import (
	"fmt"
	"strings"

	"github.com/releasedraft/releasedraft/internal/aggregate"
	"github.com/releasedraft/releasedraft/internal/categorize"
	"github.com/releasedraft/releasedraft/internal/request"
)

const roleHeader = "Role: You are an experienced product technical writer who turns issue-tracker records into clear, customer-facing release notes."

// Default AI behavior directives applied when no context is stored.
const (
	DefaultTone         = "professional"
	DefaultAudience     = "mixed"
	DefaultOutputFormat = "markdown"
)

// OrganizationProfile carries the organization context embedded in the
// system prompt.
type OrganizationProfile struct {
	Name            string
	MetaDescription string
	Industry        string
}

// AIBehaviorContext carries per-organization generation preferences.
type AIBehaviorContext struct {
	Tone           string
	Audience       string
	OutputFormat   string
	IncludeEmojis  bool
	IncludeMetrics bool
	BrevityLevel   string
	Language       string
	ExampleOutput  string
	SystemPrompt   string
}

// Args bundles everything the builder needs for one generation.
type Args struct {
	Sections           categorize.Sections
	Organization       *OrganizationProfile
	AIContext          *AIBehaviorContext
	Version            string
	ReleaseDate        string
	Instructions       string
	Template           request.Template
	DateRange          request.DateRange
	Teams              []string
	Projects           []string
	IncludeIdentifiers bool
}

// Result is the prompt pair produced for the generative provider.
type Result struct {
	SystemPrompt string
	UserPrompt   string
}

// Build assembles the prompt pair. It never fails: missing optional fields
// are skipped and a malformed template degrades gracefully, so the result
// is always a complete, well-formed pair.
func Build(args Args) Result {
	return Result{
		SystemPrompt: buildSystemPrompt(args),
		UserPrompt:   buildUserPrompt(args),
	}
}

func buildSystemPrompt(args Args) string {
	var b strings.Builder
	b.WriteString(roleHeader)
	b.WriteString("\n")

	if args.Organization != nil {
		writeOrganization(&b, args.Organization)
	}

	tone, audience, format := resolveDirectives(args)
	writeDirectives(&b, args.AIContext, tone, audience, format)
	writeReleaseMetadata(&b, args)

	if args.Template != nil {
		writeTemplate(&b, args.Template)
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeOrganization(b *strings.Builder, org *OrganizationProfile) {
	b.WriteString("\nOrganization context:\n")
	if org.Name != "" {
		fmt.Fprintf(b, "Name: %s\n", org.Name)
	}
	if org.MetaDescription != "" {
		fmt.Fprintf(b, "About: %s\n", org.MetaDescription)
	}
	if org.Industry != "" {
		fmt.Fprintf(b, "Industry: %s\n", org.Industry)
	}
}

// resolveDirectives applies the default > AI-context > template-override
// precedence for tone, audience and output format.
func resolveDirectives(args Args) (tone, audience, format string) {
	tone, audience, format = DefaultTone, DefaultAudience, DefaultOutputFormat

	if ctx := args.AIContext; ctx != nil {
		if ctx.Tone != "" {
			tone = ctx.Tone
		}
		if ctx.Audience != "" {
			audience = ctx.Audience
		}
		if ctx.OutputFormat != "" {
			format = ctx.OutputFormat
		}
	}

	// A structured template overrides defaults for this generation only.
	if spec, ok := args.Template.(request.TemplateSpec); ok {
		if spec.Tone != "" {
			tone = spec.Tone
		}
		if spec.TargetAudience != "" {
			audience = spec.TargetAudience
		}
		if spec.OutputFormat != "" {
			format = spec.OutputFormat
		}
	}
	return tone, audience, format
}

func writeDirectives(b *strings.Builder, ctx *AIBehaviorContext, tone, audience, format string) {
	b.WriteString("\nWriting directives:\n")
	fmt.Fprintf(b, "Tone: %s\n", tone)
	fmt.Fprintf(b, "Audience: %s\n", audience)
	fmt.Fprintf(b, "Output format: %s\n", format)

	if ctx == nil {
		return
	}
	if ctx.IncludeEmojis {
		b.WriteString("Use emojis where they aid scanning.\n")
	} else {
		b.WriteString("Do not use emojis.\n")
	}
	if ctx.IncludeMetrics {
		b.WriteString("Include concrete metrics and numbers where available.\n")
	}
	if ctx.BrevityLevel != "" {
		fmt.Fprintf(b, "Brevity: %s\n", ctx.BrevityLevel)
	}
	if ctx.Language != "" {
		fmt.Fprintf(b, "Write in %s.\n", ctx.Language)
	}
	if ctx.ExampleOutput != "" {
		fmt.Fprintf(b, "\nExample of the expected output style:\n%s\n", ctx.ExampleOutput)
	}
	if ctx.SystemPrompt != "" {
		fmt.Fprintf(b, "\n%s\n", ctx.SystemPrompt)
	}
}

func writeReleaseMetadata(b *strings.Builder, args Args) {
	var lines []string
	if args.Version != "" {
		lines = append(lines, fmt.Sprintf("Release version: %s", args.Version))
	}
	if args.ReleaseDate != "" {
		lines = append(lines, fmt.Sprintf("Release date: %s", args.ReleaseDate))
	}
	if len(args.Teams) > 0 {
		lines = append(lines, fmt.Sprintf("Teams in scope: %s", strings.Join(args.Teams, ", ")))
	}
	if len(args.Projects) > 0 {
		lines = append(lines, fmt.Sprintf("Projects in scope: %s", strings.Join(args.Projects, ", ")))
	}
	if args.DateRange.From != nil && args.DateRange.To != nil {
		lines = append(lines, fmt.Sprintf("Covering work completed between %s and %s.",
			args.DateRange.From.Format("2006-01-02"), args.DateRange.To.Format("2006-01-02")))
	}
	if len(lines) == 0 {
		return
	}

	b.WriteString("\n")
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
}

func buildUserPrompt(args Args) string {
	var b strings.Builder
	b.WriteString("TASK: Generate the release notes for this release from the categorized issues below.\n")
	b.WriteString("Start with an executive summary, then a \"Notable Changes\" section, then an \"Upgrade Notes\" section.\n")

	// Fixed section order: features, improvements, bugfixes, breaking.
	writeSection(&b, "Features", args.Sections.Features, args.IncludeIdentifiers)
	writeSection(&b, "Improvements", args.Sections.Improvements, args.IncludeIdentifiers)
	writeSection(&b, "Bug Fixes", args.Sections.Bugfixes, args.IncludeIdentifiers)
	writeSection(&b, "Breaking Changes", args.Sections.Breaking, args.IncludeIdentifiers)

	if args.Sections.Empty() {
		b.WriteString("\nNo categorized issues were supplied; state that this release contains no user-visible changes.\n")
	}

	if args.Instructions != "" {
		fmt.Fprintf(&b, "\n%s\n", args.Instructions)
	}

	return b.String()
}

// writeSection renders one non-empty category. Identifier and team name are
// a redaction switch: when includeIdentifiers is false neither may appear.
func writeSection(b *strings.Builder, name string, issues []aggregate.Issue, includeIdentifiers bool) {
	if len(issues) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", name)
	for _, issue := range issues {
		b.WriteString("- ")
		b.WriteString(issue.Title)
		if includeIdentifiers {
			var tags []string
			if issue.Identifier != "" {
				tags = append(tags, issue.Identifier)
			}
			if issue.Team != nil && issue.Team.Name != "" {
				tags = append(tags, issue.Team.Name)
			}
			if len(tags) > 0 {
				fmt.Fprintf(b, " (%s)", strings.Join(tags, ", "))
			}
		}
		b.WriteString("\n")
	}
}
