// Package web provides the HTML UI for browsing cached templates and their
// token streams.
package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"

	"github.com/lemonberrylabs/kolon/pkg/kolon"
	"github.com/lemonberrylabs/kolon/pkg/loader"
	"github.com/lemonberrylabs/kolon/pkg/source"
	"github.com/lemonberrylabs/kolon/pkg/store"
	"github.com/lemonberrylabs/kolon/pkg/token"
	"github.com/lemonberrylabs/kolon/pkg/types"
)

//go:embed templates/*.html
var templateFS embed.FS

// Handler serves the web UI pages.
type Handler struct {
	store   *store.Store
	loader  *loader.Loader
	syntax  *kolon.Kolon
	funcMap template.FuncMap
}

// pageData wraps all page-specific data with common fields.
type pageData struct {
	NavActive    string
	IncludePaths []string
	Syntax       kolon.Config
	Data         interface{}
}

// New creates a new web UI handler.
func New(s *store.Store, l *loader.Loader, syn *kolon.Kolon) *Handler {
	return &Handler{
		store:  s,
		loader: l,
		syntax: syn,
		funcMap: template.FuncMap{
			"timeAgo":    timeAgo,
			"formatTime": formatTime,
			"truncate":   truncate,
			"countLines": countLines,
			"tokenClass": tokenClass,
			"shortName":  filepath.Base,
		},
	}
}

func (h *Handler) render(c *fiber.Ctx, page string, navActive string, data interface{}) error {
	// Each page is parsed with its own copy of the layout so define blocks
	// do not collide across pages.
	tmpl := template.Must(
		template.New("").Funcs(h.funcMap).ParseFS(templateFS, "templates/layout.html", "templates/"+page),
	)

	pd := pageData{
		NavActive:    navActive,
		IncludePaths: h.loader.IncludePaths(),
		Syntax:       h.syntax.Config(),
		Data:         data,
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, page, pd); err != nil {
		return c.Status(500).SendString(fmt.Sprintf("template error: %v", err))
	}

	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.Send(buf.Bytes())
}

// Register adds web UI routes to the Fiber app.
func (h *Handler) Register(app *fiber.App) {
	app.Get("/ui", h.dashboard)
	app.Get("/ui/tokenize", h.tokenize)
	app.Post("/ui/tokenize", h.tokenize)
	app.Get("/ui/templates/*", h.templateDetail)

	// Redirect root to UI
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/ui")
	})
}

// --- Page Data Types ---

type dashboardContent struct {
	Templates   []store.Entry
	TokenCount  int
	TotalHits   int64
	LastCompile time.Time
}

type templateDetailContent struct {
	Name   string
	Entry  store.Entry
	Tokens []token.Token
	Error  *errorView
}

type tokenizeContent struct {
	Source string
	Tokens []token.Token
	Error  *errorView
}

type errorView struct {
	Kind    string
	Message string
	Context string
}

// --- Page Handlers ---

func (h *Handler) dashboard(c *fiber.Ctx) error {
	entries := h.store.List()

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CompileTime.After(entries[j].CompileTime)
	})

	content := dashboardContent{Templates: entries}
	for _, e := range entries {
		if e.Opcodes != nil {
			content.TokenCount += e.Opcodes.Len()
		}
		content.TotalHits += e.Hits
		if e.CompileTime.After(content.LastCompile) {
			content.LastCompile = e.CompileTime
		}
	}

	return h.render(c, "dashboard.html", "dashboard", content)
}

func (h *Handler) templateDetail(c *fiber.Ctx) error {
	name := c.Params("*")
	content := templateDetailContent{Name: name}

	e, err := h.loader.CompileEntry(filepath.FromSlash(name))
	if err != nil {
		content.Error = toErrorView(err)
		if types.KindOf(err) == types.KindTemplateNotFound {
			c.Status(404)
		}
		return h.render(c, "template.html", "dashboard", content)
	}

	content.Entry = e
	if e.Opcodes != nil {
		content.Tokens = e.Opcodes.Tokens
	}
	return h.render(c, "template.html", "dashboard", content)
}

func (h *Handler) tokenize(c *fiber.Ctx) error {
	content := tokenizeContent{Source: c.FormValue("source")}
	if content.Source != "" {
		tokens, err := h.syntax.Tokenize(source.FromString(content.Source), content.Source)
		if err != nil {
			content.Error = toErrorView(err)
		} else {
			content.Tokens = tokens
		}
	}
	return h.render(c, "tokenize.html", "tokenize", content)
}

func toErrorView(err error) *errorView {
	var te *types.TemplateError
	if errors.As(err, &te) {
		return &errorView{Kind: string(te.Kind), Message: te.Error(), Context: te.Context}
	}
	return &errorView{Message: err.Error()}
}

// --- Template Helpers ---

func timeAgo(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		m := int(d.Minutes())
		if m == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", m)
	case d < 24*time.Hour:
		h := int(d.Hours())
		if h == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", h)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

// tokenClass returns the CSS class used to color a token type.
func tokenClass(t token.Type) string {
	switch {
	case t == token.RAW:
		return "tok-raw"
	case t == token.OPEN || t == token.CLOSE:
		return "tok-tag"
	case t.IsKeyword():
		return "tok-keyword"
	case t == token.STRING:
		return "tok-string"
	case t == token.IDENT:
		return "tok-ident"
	case t.HasText():
		return "tok-number"
	default:
		return "tok-op"
	}
}

// truncate shortens s to at most maxLen runes.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	n := 0
	for i := range s {
		if n == maxLen {
			return s[:i] + "..."
		}
		n++
	}
	return s
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}
