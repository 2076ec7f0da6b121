// Package api implements the HTTP API for tokenizing inline template source
// and compiling templates found on the include paths.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/lemonberrylabs/kolon/pkg/kolon"
	"github.com/lemonberrylabs/kolon/pkg/loader"
	"github.com/lemonberrylabs/kolon/pkg/source"
	"github.com/lemonberrylabs/kolon/pkg/store"
	"github.com/lemonberrylabs/kolon/pkg/token"
	"github.com/lemonberrylabs/kolon/pkg/types"
)

// Server is the HTTP API server.
type Server struct {
	app    *fiber.App
	loader *loader.Loader
	store  *store.Store
	syntax *kolon.Kolon
}

// New creates a new API server. requestLog enables per-request access logs.
func New(l *loader.Loader, s *store.Store, syn *kolon.Kolon, requestLog bool) *Server {
	srv := &Server{
		loader: l,
		store:  s,
		syntax: syn,
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})
	app.Use(recover.New())
	if requestLog {
		app.Use(logger.New())
	}

	app.Get("/healthz", srv.health)
	app.Post("/v1/tokenize", srv.tokenize)
	app.Get("/v1/templates", srv.listTemplates)
	app.Delete("/v1/templates", srv.purgeTemplates)
	app.Get("/v1/templates/*", srv.getTemplate)
	app.Delete("/v1/templates/*", srv.deleteTemplate)

	srv.app = app
	return srv
}

// Listen starts the HTTP server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "SERVING"})
}

// --- Tokenize ---

type tokenizeRequest struct {
	Source string       `json:"source"`
	Syntax kolon.Config `json:"syntax"`
}

func (s *Server) tokenize(c *fiber.Ctx) error {
	var req tokenizeRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}

	cfg := mergeSyntax(req.Syntax, s.syntax.Config())
	if err := cfg.Validate(); err != nil {
		return errorResponse(c, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
	}

	tokens, err := kolon.Tokenize(source.FromString(req.Source), req.Source, cfg)
	if err != nil {
		return templateErrorResponse(c, err)
	}
	return c.JSON(fiber.Map{"tokens": nonNil(tokens)})
}

// mergeSyntax fills the delimiters missing from req with the server's.
func mergeSyntax(req, base kolon.Config) kolon.Config {
	if req.OpenTag == "" {
		req.OpenTag = base.OpenTag
	}
	if req.CloseTag == "" {
		req.CloseTag = base.CloseTag
	}
	if req.CodeLineDelimiter == "" {
		req.CodeLineDelimiter = base.CodeLineDelimiter
	}
	return req
}

// --- Templates ---

func (s *Server) listTemplates(c *fiber.Ctx) error {
	entries := s.store.List()
	result := make([]fiber.Map, 0, len(entries))
	for _, e := range entries {
		result = append(result, entryToJSON(e, false))
	}
	return c.JSON(fiber.Map{"templates": result})
}

func (s *Server) getTemplate(c *fiber.Ctx) error {
	name := c.Params("*")
	if name == "" {
		return errorResponse(c, http.StatusBadRequest, "INVALID_ARGUMENT", "template name is required")
	}

	e, err := s.loader.CompileEntry(filepath.FromSlash(name))
	if err != nil {
		return templateErrorResponse(c, err)
	}
	return c.JSON(entryToJSON(e, c.QueryBool("tokens", true)))
}

func (s *Server) deleteTemplate(c *fiber.Ctx) error {
	name := c.Params("*")
	path, err := s.loader.Resolve(filepath.FromSlash(name))
	if err != nil {
		return templateErrorResponse(c, err)
	}
	if err := s.store.Delete(path); err != nil {
		return errorResponse(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	}
	return c.JSON(fiber.Map{})
}

func (s *Server) purgeTemplates(c *fiber.Ctx) error {
	n := s.store.Purge()
	return c.JSON(fiber.Map{"purged": n})
}

// --- Helpers ---

func entryToJSON(e store.Entry, withTokens bool) fiber.Map {
	result := fiber.Map{
		"id":          e.ID,
		"name":        e.Name,
		"path":        e.Path,
		"compileTime": e.CompileTime.Format(time.RFC3339),
		"hits":        e.Hits,
	}
	if e.Opcodes != nil {
		result["tokenCount"] = e.Opcodes.Len()
		if withTokens {
			result["tokens"] = nonNil(e.Opcodes.Tokens)
		}
	}
	return result
}

func nonNil(tokens []token.Token) []token.Token {
	if tokens == nil {
		return []token.Token{}
	}
	return tokens
}

func errorResponse(c *fiber.Ctx, code int, status, message string) error {
	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": message,
			"status":  status,
		},
	})
}

// templateErrorResponse maps a TemplateError to a status code and includes
// its position metadata in the body.
func templateErrorResponse(c *fiber.Ctx, err error) error {
	var te *types.TemplateError
	if !errors.As(err, &te) {
		return errorResponse(c, http.StatusInternalServerError, "INTERNAL", err.Error())
	}

	code, status := http.StatusBadRequest, "INVALID_ARGUMENT"
	switch {
	case te.HasKind(types.KindTemplateNotFound):
		code, status = http.StatusNotFound, "NOT_FOUND"
	case te.HasKind(types.KindIoError):
		code, status = http.StatusInternalServerError, "INTERNAL"
	}

	body := fiber.Map{
		"code":    code,
		"message": te.Error(),
		"status":  status,
		"kind":    te.Kind,
	}
	if te.Line > 0 {
		body["line"] = te.Line
	}
	if te.File != "" {
		body["file"] = te.File
	}
	if te.Context != "" {
		body["context"] = te.Context
	}
	return c.Status(code).JSON(fiber.Map{"error": body})
}
