// Package types holds the error taxonomy shared by the source, lexer and
// loader packages.
package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind tags a TemplateError with the failure that produced it.
type ErrorKind string

// Error kinds raised while loading and tokenizing templates.
const (
	KindUnterminatedTag     ErrorKind = "UnterminatedTag"
	KindUnterminatedComment ErrorKind = "UnterminatedComment"
	KindUnterminatedString  ErrorKind = "UnterminatedString"
	KindDanglingEscape      ErrorKind = "DanglingEscape"
	KindInvalidOperator     ErrorKind = "InvalidOperator"
	KindUnrecognizedNumber  ErrorKind = "UnrecognizedNumber"
	KindUnrecognizedToken   ErrorKind = "UnrecognizedToken"
	KindTemplateNotFound    ErrorKind = "TemplateNotFound"
	KindIoError             ErrorKind = "IoError"
)

// lexKinds are the kinds a tokenize call can fail with.
var lexKinds = map[ErrorKind]bool{
	KindUnterminatedTag:     true,
	KindUnterminatedComment: true,
	KindUnterminatedString:  true,
	KindDanglingEscape:      true,
	KindInvalidOperator:     true,
	KindUnrecognizedNumber:  true,
	KindUnrecognizedToken:   true,
}

// TemplateError is a failure tied to a position in a template source.
// Line is 1-based; zero means the failure has no position (e.g. a missing
// template). File is empty for inline sources.
type TemplateError struct {
	Kind    ErrorKind
	Message string
	Line    int
	File    string
	Context string // snippet around Line, see source.ContextWindow
	Err     error  // underlying cause, if any
}

// Error implements the error interface.
func (e *TemplateError) Error() string {
	var sb strings.Builder
	switch {
	case e.File != "" && e.Line > 0:
		fmt.Fprintf(&sb, "%s:%d: ", e.File, e.Line)
	case e.File != "":
		fmt.Fprintf(&sb, "%s: ", e.File)
	case e.Line > 0:
		fmt.Fprintf(&sb, "line %d: ", e.Line)
	}
	sb.WriteString(e.Message)
	fmt.Fprintf(&sb, " (%s)", e.Kind)
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *TemplateError) Unwrap() error {
	return e.Err
}

// HasKind returns true if the error is of the given kind.
func (e *TemplateError) HasKind(kind ErrorKind) bool {
	return e.Kind == kind
}

// IsLexError reports whether the error was raised by the lexer.
func (e *TemplateError) IsLexError() bool {
	return lexKinds[e.Kind]
}

// Diagnostic renders the error followed by its context window, if any.
func (e *TemplateError) Diagnostic() string {
	if e.Context == "" {
		return e.Error()
	}
	return e.Error() + "\n" + e.Context
}

// KindOf returns the kind of the first TemplateError in err's chain, or the
// empty kind if there is none.
func KindOf(err error) ErrorKind {
	var te *TemplateError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

// Common error constructors.

// NewLexError creates a lexer failure. The lexer fills in the position.
func NewLexError(kind ErrorKind, msg string) *TemplateError {
	return &TemplateError{Kind: kind, Message: msg}
}

// NewTemplateNotFound creates a TemplateNotFound error for a name that no
// include path resolves.
func NewTemplateNotFound(name string, includePaths []string) *TemplateError {
	return &TemplateError{
		Kind:    KindTemplateNotFound,
		Message: fmt.Sprintf("template %q not found in include paths [%s]", name, strings.Join(includePaths, ", ")),
	}
}

// NewIoError creates an IoError for a file that could not be read.
func NewIoError(path string, err error) *TemplateError {
	return &TemplateError{
		Kind:    KindIoError,
		Message: "cannot load template",
		File:    path,
		Err:     err,
	}
}
