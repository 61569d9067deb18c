// Package pipeline orchestrates one release-note generation:
// validate -> aggregate -> categorize -> build prompt -> generate -> save.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/releasedraft/releasedraft/internal/aggregate"
	"github.com/releasedraft/releasedraft/internal/cache"
	"github.com/releasedraft/releasedraft/internal/categorize"
	"github.com/releasedraft/releasedraft/internal/config"
	"github.com/releasedraft/releasedraft/internal/database"
	"github.com/releasedraft/releasedraft/internal/feed"
	"github.com/releasedraft/releasedraft/internal/linear"
	"github.com/releasedraft/releasedraft/internal/llm"
	"github.com/releasedraft/releasedraft/internal/prompt"
	"github.com/releasedraft/releasedraft/internal/request"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full generation run.
type Result struct {
	Steps   []StepResult
	Prompts prompt.Result
	Draft   *database.Draft
}

// Pipeline wires the four core components to the configured issue sources,
// the generative provider and the draft store.
type Pipeline struct {
	cfg       *config.Config
	db        *database.DB
	source    aggregate.Source
	provider  llm.Provider
	linear    *linear.Client
	directory *cache.TTL
}

// New creates a pipeline from configuration.
func New(cfg *config.Config, db *database.DB) *Pipeline {
	gen := cfg.Generation
	provider := llm.CreateProvider(
		gen.Provider,
		gen.Model,
		gen.OllamaURL,
		gen.OpenAIModel,
		gen.APIKeyEnv,
	)

	linearClient := linear.NewClient(
		os.Getenv(cfg.Linear.APIKeyEnv),
		linear.WithPageSize(cfg.Linear.PageSize),
	)

	// An unconfigured Linear client would fail every fetch, so it joins
	// the chain only when an API key is present. Feeds alone are a valid
	// setup.
	var sources []aggregate.Source
	if linearClient.IsConfigured() {
		sources = append(sources, linearClient)
	}
	for _, fc := range cfg.Changelogs {
		sources = append(sources, feed.New(feed.Config{
			URL:      fc.URL,
			TeamID:   fc.TeamID,
			TeamName: fc.TeamName,
		}))
	}

	ttl := time.Duration(cfg.Cache.DirectoryTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	var source aggregate.Source
	if len(sources) > 0 {
		source = aggregate.Multi(sources...)
	}

	return &Pipeline{
		cfg:       cfg,
		db:        db,
		source:    source,
		provider:  provider,
		linear:    linearClient,
		directory: cache.New(ttl),
	}
}

// Run executes the full generation for a request. The prompt pair is built
// by the core; the pipeline then calls the provider with it and persists
// the returned draft, the only artifact that is stored.
func (p *Pipeline) Run(ctx context.Context, req request.GenerationRequest) *Result {
	return p.run(ctx, req, false)
}

// DryRun stops after building the prompt pair: no provider call, nothing
// persisted.
func (p *Pipeline) DryRun(ctx context.Context, req request.GenerationRequest) *Result {
	return p.run(ctx, req, true)
}

func (p *Pipeline) run(ctx context.Context, req request.GenerationRequest, dry bool) *Result {
	r := &Result{}

	validation := request.Validate(req)
	if !validation.IsValid {
		r.Steps = append(r.Steps, StepResult{
			Name: "Validate",
			Err:  fmt.Errorf("invalid request: %s", strings.Join(validation.Errors, "; ")),
		})
		return r
	}
	r.Steps = append(r.Steps, StepResult{Name: "Validate", Summary: "Request is valid"})

	if p.source == nil {
		r.Steps = append(r.Steps, StepResult{
			Name: "Aggregate",
			Err:  fmt.Errorf("no issue sources configured: set the Linear API key or add changelog feeds"),
		})
		return r
	}

	agg, err := aggregate.New(p.source).Aggregate(ctx, req)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Aggregate", Err: err})
		return r
	}
	if agg.TotalIssues == 0 {
		r.Steps = append(r.Steps, StepResult{
			Name: "Aggregate",
			Err: aggregate.NewEmptyResultError(
				len(req.Projects) > 0,
				len(req.Filters.Labels) > 0,
				req.DateRange.From != nil || req.DateRange.To != nil,
				req.Filters.MinPriority != nil && *req.Filters.MinPriority > 0,
			),
		})
		return r
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Aggregate",
		Summary: fmt.Sprintf("Collected %d issues", agg.TotalIssues),
	})

	sections := categorize.Categorize(agg.Issues)
	if sections.Unclassified > 0 {
		log.Printf("%d issue(s) matched no category and were left out of the draft", sections.Unclassified)
	}
	r.Steps = append(r.Steps, StepResult{
		Name: "Categorize",
		Summary: fmt.Sprintf("%d features, %d improvements, %d bugfixes, %d breaking, %d unclassified",
			len(sections.Features), len(sections.Improvements), len(sections.Bugfixes),
			len(sections.Breaking), sections.Unclassified),
	})

	org, aiCtx, err := p.db.GetCompleteContext()
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Build prompt", Err: err})
		return r
	}

	r.Prompts = prompt.Build(prompt.Args{
		Sections:           sections,
		Organization:       orgProfile(org),
		AIContext:          behaviorContext(aiCtx),
		Version:            req.Version,
		ReleaseDate:        req.ReleaseDate,
		Instructions:       req.Instructions,
		Template:           req.Template,
		DateRange:          req.DateRange,
		Teams:              req.Teams,
		Projects:           req.Projects,
		IncludeIdentifiers: p.cfg.Generation.IncludeIdentifiers,
	})
	r.Steps = append(r.Steps, StepResult{Name: "Build prompt", Summary: "Prompt pair ready"})

	if dry {
		r.Steps = append(r.Steps, StepResult{
			Name:    "Generate",
			Summary: "[dry-run] Skipping provider call and draft save",
		})
		return r
	}

	if p.provider == nil {
		r.Steps = append(r.Steps, StepResult{Name: "Generate", Err: fmt.Errorf("no LLM provider available")})
		return r
	}

	text, err := p.provider.Generate(ctx, r.Prompts.SystemPrompt, r.Prompts.UserPrompt, p.cfg.Generation.MaxTokens)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Generate", Err: err})
		return r
	}
	r.Steps = append(r.Steps, StepResult{Name: "Generate", Summary: "Draft text generated"})

	draft := database.Draft{
		ID:                 uuid.NewString(),
		Teams:              req.Teams,
		Projects:           req.Projects,
		ContentMarkdown:    llm.StripFences(text),
		SystemPrompt:       r.Prompts.SystemPrompt,
		UserPrompt:         r.Prompts.UserPrompt,
		TotalIssues:        agg.TotalIssues,
		UnclassifiedIssues: sections.Unclassified,
	}
	if req.Version != "" {
		draft.Version = &req.Version
	}
	if req.ReleaseDate != "" {
		draft.ReleaseDate = &req.ReleaseDate
	}

	if err := p.db.InsertDraft(draft); err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Save draft", Err: err})
		return r
	}
	r.Draft = &draft
	r.Steps = append(r.Steps, StepResult{
		Name:    "Save draft",
		Summary: fmt.Sprintf("Draft %s saved", draft.ID),
	})

	log.Printf("Generation complete: draft %s from %d issues", draft.ID, agg.TotalIssues)
	return r
}

func orgProfile(org *database.Organization) *prompt.OrganizationProfile {
	if org == nil {
		return nil
	}
	return &prompt.OrganizationProfile{
		Name:            org.Name,
		MetaDescription: org.MetaDescription,
		Industry:        org.Industry,
	}
}

func behaviorContext(ctx *database.AIContext) *prompt.AIBehaviorContext {
	if ctx == nil {
		return nil
	}
	return &prompt.AIBehaviorContext{
		Tone:           ctx.Tone,
		Audience:       ctx.Audience,
		OutputFormat:   ctx.OutputFormat,
		IncludeEmojis:  ctx.IncludeEmojis,
		IncludeMetrics: ctx.IncludeMetrics,
		BrevityLevel:   ctx.BrevityLevel,
		Language:       ctx.Language,
		ExampleOutput:  ctx.ExampleOutput,
		SystemPrompt:   ctx.SystemPrompt,
	}
}

// Teams returns the Linear team directory, cached for the configured TTL.
func (p *Pipeline) Teams(ctx context.Context) ([]linear.Team, error) {
	v, err := p.directory.GetOrFill(cache.Key("linear-teams"), func() (any, error) {
		return p.linear.Teams(ctx)
	})
	if err != nil {
		return nil, err
	}
	teams, _ := v.([]linear.Team)
	return teams, nil
}

// Projects returns the Linear project directory, cached for the configured
// TTL.
func (p *Pipeline) Projects(ctx context.Context) ([]linear.Project, error) {
	v, err := p.directory.GetOrFill(cache.Key("linear-projects"), func() (any, error) {
		return p.linear.Projects(ctx)
	})
	if err != nil {
		return nil, err
	}
	projects, _ := v.([]linear.Project)
	return projects, nil
}
