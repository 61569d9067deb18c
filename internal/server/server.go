package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yuin/goldmark"

	"github.com/releasedraft/releasedraft/internal/database"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// Server is the HTTP server for browsing drafts and editing the
// generation context.
type Server struct {
	db     *database.DB
	pages  map[string]*template.Template
	router chi.Router
}

// New creates a new Server.
func New(db *database.DB) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"join":     func(parts []string) string { return strings.Join(parts, ", ") },
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into the clone.
	// This gives each page its own {{define "content"}} and {{define "title"}}.
	pageNames := []string{"index.html", "draft.html", "context.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, pages: pages}
	s.router = s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)

	staticSub, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	r.Get("/", s.handleIndex)
	r.Get("/draft/{id}", s.handleDraft)
	r.Post("/draft/{id}/delete", s.handleDeleteDraft)
	r.Get("/context", s.handleContext)
	r.Post("/context/organization", s.handleSaveOrganization)
	r.Post("/context/ai", s.handleSaveAIContext)

	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	drafts, err := s.db.GetAllDrafts()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "index.html", map[string]any{
		"Drafts": drafts,
	})
}

func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	draft, err := s.db.GetDraft(id)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if draft == nil {
		http.NotFound(w, r)
		return
	}

	s.render(w, "draft.html", map[string]any{
		"Draft": draft,
	})
}

func (s *Server) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.db.DeleteDraft(id); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	org, aiCtx, err := s.db.GetCompleteContext()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "context.html", map[string]any{
		"Organization": org,
		"AIContext":    aiCtx,
	})
}

func (s *Server) handleSaveOrganization(w http.ResponseWriter, r *http.Request) {
	org := database.Organization{
		Name:            strings.TrimSpace(r.FormValue("name")),
		MetaDescription: strings.TrimSpace(r.FormValue("meta_description")),
		Industry:        strings.TrimSpace(r.FormValue("industry")),
	}

	if org.Name != "" {
		if err := s.db.SetOrganization(org); err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	}

	http.Redirect(w, r, "/context", http.StatusFound)
}

func (s *Server) handleSaveAIContext(w http.ResponseWriter, r *http.Request) {
	aiCtx := database.AIContext{
		Tone:           strings.TrimSpace(r.FormValue("tone")),
		Audience:       strings.TrimSpace(r.FormValue("audience")),
		OutputFormat:   strings.TrimSpace(r.FormValue("output_format")),
		IncludeEmojis:  r.FormValue("include_emojis") != "",
		IncludeMetrics: r.FormValue("include_metrics") != "",
		BrevityLevel:   strings.TrimSpace(r.FormValue("brevity_level")),
		Language:       strings.TrimSpace(r.FormValue("language")),
		ExampleOutput:  strings.TrimSpace(r.FormValue("example_output")),
		SystemPrompt:   strings.TrimSpace(r.FormValue("system_prompt")),
	}

	if err := s.db.SetAIContext(aiCtx); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/context", http.StatusFound)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, port int) error {
	srv, err := New(db)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
