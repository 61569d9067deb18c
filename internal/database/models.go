package database

// Draft is a persisted release-note draft, the only artifact the pipeline
// stores. The prompt pair is kept alongside the generated text for audit.
type Draft struct {
	ID                 string
	Version            *string
	ReleaseDate        *string
	Teams              []string
	Projects           []string
	ContentMarkdown    string
	SystemPrompt       string
	UserPrompt         string
	TotalIssues        int
	UnclassifiedIssues int
	CreatedAt          *string
}

// Organization is the single stored organization profile.
type Organization struct {
	Name            string
	MetaDescription string
	Industry        string
	UpdatedAt       *string
}

// AIContext is the single stored set of generation preferences.
type AIContext struct {
	Tone           string
	Audience       string
	OutputFormat   string
	IncludeEmojis  bool
	IncludeMetrics bool
	BrevityLevel   string
	Language       string
	ExampleOutput  string
	SystemPrompt   string
	UpdatedAt      *string
}
