package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/releasedraft/releasedraft/internal/config"
	"github.com/releasedraft/releasedraft/internal/database"
	"github.com/releasedraft/releasedraft/internal/pipeline"
	"github.com/releasedraft/releasedraft/internal/request"
	"github.com/releasedraft/releasedraft/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "releasedraft",
	Short:   "Release-note drafts from your issue tracker",
	Long:    "ReleaseDraft aggregates completed issues, categorizes them, and drafts customer-facing release notes with an LLM.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(teamsCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(contextCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("releasedraft", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/releasedraft/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to set the Linear API key env var and LLM provider.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		drafts, err := db.GetAllDrafts()
		if err != nil {
			return fmt.Errorf("listing drafts: %w", err)
		}
		org, aiCtx, err := db.GetCompleteContext()
		if err != nil {
			return fmt.Errorf("reading context: %w", err)
		}

		fmt.Printf("Drafts: %d\n", len(drafts))
		if len(drafts) > 0 {
			latest := drafts[0]
			label := "untitled"
			if latest.Version != nil {
				label = *latest.Version
			}
			fmt.Printf("  Latest: %s (%d issues)\n", label, latest.TotalIssues)
		}

		fmt.Println("\nContext:")
		if org != nil {
			fmt.Printf("  Organization: %s\n", org.Name)
		} else {
			fmt.Println("  Organization: not configured")
		}
		if aiCtx != nil {
			fmt.Printf("  AI behavior: tone=%s audience=%s\n", aiCtx.Tone, aiCtx.Audience)
		} else {
			fmt.Println("  AI behavior: not configured")
		}

		fmt.Println("\nLinear:")
		if os.Getenv(cfg.Linear.APIKeyEnv) != "" {
			fmt.Printf("  API key: set (%s)\n", cfg.Linear.APIKeyEnv)
		} else {
			fmt.Printf("  API key: missing (%s)\n", cfg.Linear.APIKeyEnv)
		}
		fmt.Printf("  Changelog feeds: %d\n", len(cfg.Changelogs))
		return nil
	},
}

// --- generate command ---

var (
	genTeams        []string
	genProjects     []string
	genLabels       []string
	genMinPriority  int
	genFrom         string
	genTo           string
	genIssues       []string
	genVersion      string
	genReleaseDate  string
	genInstructions string
	genTemplate     string
	genTemplateFile string
	genDryRun       bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a release-note draft from completed issues",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		req, err := buildRequest()
		if err != nil {
			return err
		}

		pipe := pipeline.New(cfg, db)
		ctx := context.Background()

		var result *pipeline.Result
		if genDryRun {
			result = pipe.DryRun(ctx, req)
		} else {
			result = pipe.Run(ctx, req)
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d: %s\n", i+1, step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		if last := result.Steps[len(result.Steps)-1]; last.Err != nil {
			return fmt.Errorf("generation failed at %s", last.Name)
		}

		if genDryRun {
			fmt.Println("\n--- System prompt ---")
			fmt.Println(result.Prompts.SystemPrompt)
			fmt.Println("\n--- User prompt ---")
			fmt.Println(result.Prompts.UserPrompt)
			return nil
		}

		if result.Draft != nil {
			fmt.Printf("\nDraft %s saved. Run 'releasedraft serve' to review it.\n", result.Draft.ID)
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().StringSliceVar(&genTeams, "teams", nil, "Team IDs to include (required)")
	generateCmd.Flags().StringSliceVar(&genProjects, "projects", nil, "Project IDs to include")
	generateCmd.Flags().StringSliceVar(&genLabels, "labels", nil, "Only issues carrying one of these labels")
	generateCmd.Flags().IntVar(&genMinPriority, "min-priority", -1, "Minimum Linear priority (0-5)")
	generateCmd.Flags().StringVar(&genFrom, "from", "", "Start of completion window (YYYY-MM-DD)")
	generateCmd.Flags().StringVar(&genTo, "to", "", "End of completion window (YYYY-MM-DD)")
	generateCmd.Flags().StringSliceVar(&genIssues, "issues", nil, "Restrict to these issue identifiers or IDs")
	generateCmd.Flags().StringVar(&genVersion, "release-version", "", "Release version for the notes")
	generateCmd.Flags().StringVar(&genReleaseDate, "release-date", "", "Release date for the notes")
	generateCmd.Flags().StringVar(&genInstructions, "instructions", "", "Extra instructions for the writer")
	generateCmd.Flags().StringVar(&genTemplate, "template", "", "Free-text template hint")
	generateCmd.Flags().StringVar(&genTemplateFile, "template-file", "", "Path to a structured template JSON file")
	generateCmd.Flags().BoolVar(&genDryRun, "dry-run", false, "Build the prompts but skip the LLM call and draft save")
}

func buildRequest() (request.GenerationRequest, error) {
	req := request.GenerationRequest{
		Teams:            genTeams,
		Projects:         genProjects,
		SelectedIssueIDs: genIssues,
		Version:          genVersion,
		ReleaseDate:      genReleaseDate,
		Instructions:     genInstructions,
	}
	req.Filters.Labels = genLabels

	if genMinPriority >= 0 {
		p := genMinPriority
		req.Filters.MinPriority = &p
	}

	var err error
	if req.DateRange.From, err = parseDate(genFrom); err != nil {
		return req, fmt.Errorf("invalid --from date: %w", err)
	}
	if req.DateRange.To, err = parseDate(genTo); err != nil {
		return req, fmt.Errorf("invalid --to date: %w", err)
	}

	if genTemplateFile != "" {
		spec, err := loadTemplateSpec(genTemplateFile)
		if err != nil {
			return req, err
		}
		req.Template = spec
	} else if genTemplate != "" {
		req.Template = request.TemplateHint(genTemplate)
	}

	return req, nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func loadTemplateSpec(path string) (request.TemplateSpec, error) {
	var spec request.TemplateSpec
	data, err := os.ReadFile(path)
	if err != nil {
		return spec, fmt.Errorf("reading template file: %w", err)
	}
	if err := json.Unmarshal(data, &spec); err != nil {
		return spec, fmt.Errorf("parsing template file %s: %w", path, err)
	}
	return spec, nil
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (defaults to config)")
}

// --- directory commands ---

var teamsCmd = &cobra.Command{
	Use:   "teams",
	Short: "List Linear teams",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe := pipeline.New(cfg, db)
		teams, err := pipe.Teams(context.Background())
		if err != nil {
			return fmt.Errorf("listing teams: %w", err)
		}

		for _, t := range teams {
			fmt.Printf("  %s  %s (%s)\n", t.ID, t.Name, t.Key)
		}
		return nil
	},
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List Linear projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe := pipeline.New(cfg, db)
		projects, err := pipe.Projects(context.Background())
		if err != nil {
			return fmt.Errorf("listing projects: %w", err)
		}

		for _, p := range projects {
			fmt.Printf("  %s  %s\n", p.ID, p.Name)
		}
		return nil
	},
}

// --- context command ---

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Manage the organization profile and AI behavior context",
}

var contextShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored generation context",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		org, aiCtx, err := db.GetCompleteContext()
		if err != nil {
			return err
		}

		if org == nil {
			fmt.Println("Organization: not configured")
		} else {
			fmt.Println("Organization:")
			fmt.Printf("  Name: %s\n", org.Name)
			if org.MetaDescription != "" {
				fmt.Printf("  Description: %s\n", org.MetaDescription)
			}
			if org.Industry != "" {
				fmt.Printf("  Industry: %s\n", org.Industry)
			}
		}

		fmt.Println()
		if aiCtx == nil {
			fmt.Println("AI behavior: not configured")
			return nil
		}
		fmt.Println("AI behavior:")
		if aiCtx.Tone != "" {
			fmt.Printf("  Tone: %s\n", aiCtx.Tone)
		}
		if aiCtx.Audience != "" {
			fmt.Printf("  Audience: %s\n", aiCtx.Audience)
		}
		if aiCtx.OutputFormat != "" {
			fmt.Printf("  Output format: %s\n", aiCtx.OutputFormat)
		}
		if aiCtx.BrevityLevel != "" {
			fmt.Printf("  Brevity: %s\n", aiCtx.BrevityLevel)
		}
		if aiCtx.Language != "" {
			fmt.Printf("  Language: %s\n", aiCtx.Language)
		}
		fmt.Printf("  Emojis: %v, Metrics: %v\n", aiCtx.IncludeEmojis, aiCtx.IncludeMetrics)
		if aiCtx.SystemPrompt != "" {
			fmt.Println("  Custom system prompt: set")
		}
		return nil
	},
}

var (
	orgName        string
	orgDescription string
	orgIndustry    string
)

var contextSetOrgCmd = &cobra.Command{
	Use:   "set-org",
	Short: "Set the organization profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(orgName) == "" {
			return fmt.Errorf("--name is required")
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		org := database.Organization{
			Name:            strings.TrimSpace(orgName),
			MetaDescription: strings.TrimSpace(orgDescription),
			Industry:        strings.TrimSpace(orgIndustry),
		}
		if err := db.SetOrganization(org); err != nil {
			return err
		}
		fmt.Printf("Organization set: %s\n", org.Name)
		return nil
	},
}

var (
	aiTone         string
	aiAudience     string
	aiOutputFormat string
	aiBrevity      string
	aiLanguage     string
	aiEmojis       bool
	aiMetrics      bool
	aiExampleFile  string
	aiSystemPrompt string
)

var contextSetAICmd = &cobra.Command{
	Use:   "set-ai",
	Short: "Set the AI behavior context",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		aiCtx := database.AIContext{
			Tone:           strings.TrimSpace(aiTone),
			Audience:       strings.TrimSpace(aiAudience),
			OutputFormat:   strings.TrimSpace(aiOutputFormat),
			BrevityLevel:   strings.TrimSpace(aiBrevity),
			Language:       strings.TrimSpace(aiLanguage),
			IncludeEmojis:  aiEmojis,
			IncludeMetrics: aiMetrics,
			SystemPrompt:   strings.TrimSpace(aiSystemPrompt),
		}

		if aiExampleFile != "" {
			data, err := os.ReadFile(aiExampleFile)
			if err != nil {
				return fmt.Errorf("reading example output: %w", err)
			}
			aiCtx.ExampleOutput = string(data)
		}

		if err := db.SetAIContext(aiCtx); err != nil {
			return err
		}
		fmt.Println("AI behavior context set.")
		return nil
	},
}

func init() {
	contextSetOrgCmd.Flags().StringVar(&orgName, "name", "", "Organization name")
	contextSetOrgCmd.Flags().StringVar(&orgDescription, "description", "", "What the organization does")
	contextSetOrgCmd.Flags().StringVar(&orgIndustry, "industry", "", "Industry")

	contextSetAICmd.Flags().StringVar(&aiTone, "tone", "", "Writing tone (e.g. professional, casual)")
	contextSetAICmd.Flags().StringVar(&aiAudience, "audience", "", "Target audience (e.g. developers, mixed)")
	contextSetAICmd.Flags().StringVar(&aiOutputFormat, "output-format", "", "Output format (e.g. markdown)")
	contextSetAICmd.Flags().StringVar(&aiBrevity, "brevity", "", "Brevity level")
	contextSetAICmd.Flags().StringVar(&aiLanguage, "language", "", "Output language")
	contextSetAICmd.Flags().BoolVar(&aiEmojis, "emojis", false, "Include emojis")
	contextSetAICmd.Flags().BoolVar(&aiMetrics, "metrics", false, "Highlight metrics")
	contextSetAICmd.Flags().StringVar(&aiExampleFile, "example-file", "", "File with example release notes to imitate")
	contextSetAICmd.Flags().StringVar(&aiSystemPrompt, "system-prompt", "", "Custom system prompt override")

	contextCmd.AddCommand(contextShowCmd)
	contextCmd.AddCommand(contextSetOrgCmd)
	contextCmd.AddCommand(contextSetAICmd)
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "releasedraft.db")
	return database.Open(dbPath)
}
