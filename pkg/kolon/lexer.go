// Package kolon implements the Kolon template syntax: a mode-switching lexer
// that splits template text into raw spans and code tokens, and the Syntax
// pipeline that feeds those tokens to the parser and compiler stages.
package kolon

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lemonberrylabs/kolon/pkg/source"
	"github.com/lemonberrylabs/kolon/pkg/token"
	"github.com/lemonberrylabs/kolon/pkg/types"
)

// Default delimiters.
const (
	DefaultOpenTag           = "<:"
	DefaultCloseTag          = ":>"
	DefaultCodeLineDelimiter = ":"
)

// Config holds the delimiters used by a tokenize call.
type Config struct {
	OpenTag           string `yaml:"open_tag" json:"openTag,omitempty"`
	CloseTag          string `yaml:"close_tag" json:"closeTag,omitempty"`
	CodeLineDelimiter string `yaml:"code_line_delimiter" json:"codeLineDelimiter,omitempty"`
}

// DefaultConfig returns the standard Kolon delimiters.
func DefaultConfig() Config {
	return Config{
		OpenTag:           DefaultOpenTag,
		CloseTag:          DefaultCloseTag,
		CodeLineDelimiter: DefaultCodeLineDelimiter,
	}
}

// WithDefaults fills empty delimiters with the defaults.
func (c Config) WithDefaults() Config {
	if c.OpenTag == "" {
		c.OpenTag = DefaultOpenTag
	}
	if c.CloseTag == "" {
		c.CloseTag = DefaultCloseTag
	}
	if c.CodeLineDelimiter == "" {
		c.CodeLineDelimiter = DefaultCodeLineDelimiter
	}
	return c
}

// Validate checks that the tags are distinct.
func (c Config) Validate() error {
	c = c.WithDefaults()
	if c.OpenTag == c.CloseTag {
		return fmt.Errorf("open tag and close tag must differ, both are %q", c.OpenTag)
	}
	return nil
}

type mode int

const (
	modeRaw mode = iota
	modeTag
	modeCodeLine
)

// lexer holds the cursor state of one Tokenize call. The current mode is not
// stored here: each scanning function receives it and returns the next one.
type lexer struct {
	src    *source.Source
	file   string
	text   string
	cfg    Config
	pos    int
	line   int
	tokens []token.Token
}

// Tokenize splits text into tokens. src provides the file name attached to
// each token and the context window attached to errors; a nil src is treated
// as an inline source for text.
func Tokenize(src *source.Source, text string, cfg Config) ([]token.Token, error) {
	if src == nil {
		src = source.FromString(text)
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := &lexer{
		src:  src,
		file: src.Name(),
		text: text,
		cfg:  cfg,
		line: 1,
	}

	m := modeRaw
	tagLine := 0
	for l.pos < len(l.text) {
		var err error
		switch m {
		case modeRaw:
			m, err = l.lexRaw()
			if m == modeTag {
				tagLine = l.line
			}
		case modeTag, modeCodeLine:
			m, err = l.lexCode(m)
		}
		if err != nil {
			return nil, err
		}
	}

	if m == modeTag {
		return nil, l.failAt(tagLine, types.NewLexError(types.KindUnterminatedTag,
			fmt.Sprintf("tag opened with %q is never closed with %q", cfg.OpenTag, cfg.CloseTag)))
	}
	return l.tokens, nil
}

// lexRaw accumulates literal text until an open tag or a code line starts.
func (l *lexer) lexRaw() (mode, error) {
	start, startLine := l.pos, l.line

	if l.atLineStart() {
		if n := l.codeLinePrefix(); n > 0 {
			l.pos += n
			return modeCodeLine, nil
		}
	}

	for l.pos < len(l.text) {
		if strings.HasPrefix(l.text[l.pos:], l.cfg.OpenTag) {
			l.emitRaw(start, startLine)
			l.pos += len(l.cfg.OpenTag)
			if l.pos < len(l.text) && l.text[l.pos] == '#' {
				return l.skipComment()
			}
			l.emit(token.OPEN, "")
			return modeTag, nil
		}

		ch := l.text[l.pos]
		l.pos++
		if ch == '\n' {
			l.line++
			if n := l.codeLinePrefix(); n > 0 {
				l.emitRaw(start, startLine)
				l.pos += n
				return modeCodeLine, nil
			}
		}
	}

	l.emitRaw(start, startLine)
	return modeRaw, nil
}

// skipComment consumes a tag comment through its close tag. Comments produce
// no tokens, but the raw text before a comment has already been flushed, so
// the raw text on either side arrives as two adjacent RAW tokens.
func (l *lexer) skipComment() (mode, error) {
	idx := strings.Index(l.text[l.pos:], l.cfg.CloseTag)
	if idx < 0 {
		return modeRaw, l.fail(types.NewLexError(types.KindUnterminatedComment,
			fmt.Sprintf("comment is never closed with %q", l.cfg.CloseTag)))
	}
	end := l.pos + idx + len(l.cfg.CloseTag)
	l.line += strings.Count(l.text[l.pos:end], "\n")
	l.pos = end
	return modeRaw, nil
}

// lexCode scans code tokens inside a tag or a code line. A tag ends at the
// close tag, a code line at the end of its line.
func (l *lexer) lexCode(m mode) (mode, error) {
	for l.pos < len(l.text) {
		rest := l.text[l.pos:]
		if m == modeTag && strings.HasPrefix(rest, l.cfg.CloseTag) {
			l.pos += len(l.cfg.CloseTag)
			l.emit(token.CLOSE, "")
			return modeRaw, nil
		}

		ch := rest[0]
		switch {
		case ch == '\n':
			l.line++
			l.pos++
			if m == modeCodeLine {
				return modeRaw, nil
			}
		case ch == ' ' || ch == '\t' || ch == '\r':
			l.pos++
		case isDigit(ch):
			typ, lit, err := scanNumber(rest)
			if err != nil {
				return m, l.fail(err)
			}
			l.emit(typ, lit)
			l.pos += len(lit)
		case ch == '"':
			s, n, err := scanString(rest)
			if err != nil {
				return m, l.fail(err)
			}
			l.emit(token.STRING, s)
			l.line += strings.Count(rest[:n], "\n")
			l.pos += n
		default:
			typ, n, ok, err := scanOperator(rest)
			if err != nil {
				return m, l.fail(err)
			}
			if ok {
				l.emit(typ, "")
				l.pos += n
				continue
			}
			typ, word, err := scanWord(rest)
			if err != nil {
				return m, l.fail(err)
			}
			l.emit(typ, word)
			l.pos += len(word)
		}
	}
	return m, nil
}

// atLineStart reports whether the cursor is at the start of a line.
func (l *lexer) atLineStart() bool {
	return l.pos == 0 || l.text[l.pos-1] == '\n'
}

// codeLinePrefix returns the length of leading spaces and tabs plus the code
// line delimiter at the cursor, or 0 if the line is not a code line.
func (l *lexer) codeLinePrefix() int {
	rest := l.text[l.pos:]
	trimmed := strings.TrimLeft(rest, " \t")
	if !strings.HasPrefix(trimmed, l.cfg.CodeLineDelimiter) {
		return 0
	}
	return len(rest) - len(trimmed) + len(l.cfg.CodeLineDelimiter)
}

func (l *lexer) emitRaw(start, line int) {
	if l.pos > start {
		l.tokens = append(l.tokens, token.Token{
			Type: token.RAW,
			Text: l.text[start:l.pos],
			Line: line,
			File: l.file,
		})
	}
}

func (l *lexer) emit(typ token.Type, text string) {
	if !typ.HasText() {
		text = ""
	}
	l.tokens = append(l.tokens, token.Token{Type: typ, Text: text, Line: l.line, File: l.file})
}

func (l *lexer) fail(err error) error {
	return l.failAt(l.line, err)
}

// failAt attaches position metadata to a lexer error.
func (l *lexer) failAt(line int, err error) error {
	var te *types.TemplateError
	if !errors.As(err, &te) {
		return err
	}
	te.Line = line
	te.File = l.file
	if ctx, cerr := l.src.ContextWindow(line); cerr == nil {
		te.Context = ctx
	}
	return te
}
