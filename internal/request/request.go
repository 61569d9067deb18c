// Package request defines the generation request consumed by the pipeline
// and its validation rules.
package request

import "time"

// DateRange bounds the completion timestamps of issues in scope.
// Either side may be nil, meaning unbounded.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// IssueFilters narrows the aggregated issue set beyond team membership.
type IssueFilters struct {
	Labels      []string
	MinPriority *int // Linear priority scale, 0-5
	StateTypes  []string
}

// Template is the optional structural guidance for the generated notes.
// TemplateHint is soft free-text guidance; TemplateSpec is a strict,
// named set of required sections.
type Template interface {
	isTemplate()
}

// TemplateHint is free-text guidance that influences but does not mandate
// the structure of the generated notes.
type TemplateHint string

func (TemplateHint) isTemplate() {}

// TemplateSpec is a structured template whose sections the generator must
// follow exactly. Tone, audience and output format, when set, override the
// organization and AI-context defaults for this generation only.
type TemplateSpec struct {
	Name           string `json:"name"`
	Content        string `json:"content"` // JSON section definitions, parsed by the prompt builder
	SystemPrompt   string `json:"system_prompt"`
	Tone           string `json:"tone"`
	TargetAudience string `json:"target_audience"`
	OutputFormat   string `json:"output_format"`
	ExampleOutput  string `json:"example_output"`
}

func (TemplateSpec) isTemplate() {}

// GenerationRequest describes one release-note generation attempt.
// It is immutable once constructed and consumed exactly once.
type GenerationRequest struct {
	Teams            []string
	Projects         []string
	DateRange        DateRange
	Filters          IssueFilters
	SelectedIssueIDs []string
	Template         Template
	Instructions     string
	Version          string
	ReleaseDate      string // YYYY-MM-DD
}

// ValidationResult collects every rule violation found in a request.
type ValidationResult struct {
	IsValid bool
	Errors  []string
}

// Validate checks the shape and semantics of a request before any network
// I/O happens. All rules are evaluated; the result carries every violation
// so callers can surface them at once.
func Validate(req GenerationRequest) ValidationResult {
	var errs []string

	if len(req.Teams) == 0 {
		errs = append(errs, "At least one team must be selected")
	}

	if req.DateRange.From != nil && req.DateRange.To != nil &&
		req.DateRange.From.After(*req.DateRange.To) {
		errs = append(errs, "Start date must be before end date")
	}

	if req.Filters.MinPriority != nil {
		if *req.Filters.MinPriority < 0 {
			errs = append(errs, "Minimum priority must be non-negative")
		}
		if *req.Filters.MinPriority > 5 {
			errs = append(errs, "Minimum priority must be 5 or less (Linear uses 0-5 scale)")
		}
	}

	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}
