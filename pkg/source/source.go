// Package source wraps the origin of a template, either an inline string or a
// file on disk, and renders line context for diagnostics.
package source

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/lemonberrylabs/kolon/pkg/types"
)

type origin int

const (
	fromString origin = iota
	fromFile
)

// Source is an immutable template origin. Lines are recomputed on every call.
type Source struct {
	origin origin
	value  string // inline text or file path
}

// FromString creates a Source for inline template text.
func FromString(text string) *Source {
	return &Source{origin: fromString, value: text}
}

// FromFile creates a Source for the template at path. The file is not read
// until Text or Lines is called.
func FromFile(path string) *Source {
	return &Source{origin: fromFile, value: path}
}

// Name returns the file path for file sources and "" for inline ones.
func (s *Source) Name() string {
	if s.origin == fromFile {
		return s.value
	}
	return ""
}

// IsFile reports whether the source was created with FromFile.
func (s *Source) IsFile() bool {
	return s.origin == fromFile
}

// Text returns the full template text. File sources are read and checked to
// be valid UTF-8.
func (s *Source) Text() (string, error) {
	if s.origin == fromString {
		return s.value, nil
	}
	b, err := os.ReadFile(s.value)
	if err != nil {
		return "", types.NewIoError(s.value, err)
	}
	if !utf8.Valid(b) {
		return "", types.NewIoError(s.value, fmt.Errorf("not valid UTF-8 text"))
	}
	return string(b), nil
}

// Lines returns the template split on "\n", with a trailing "\r" stripped
// from each line. A final newline does not produce an empty last line.
func (s *Source) Lines() ([]string, error) {
	text, err := s.Text()
	if err != nil {
		return nil, err
	}
	return splitLines(text), nil
}

// ContextWindow renders lines [line-2, line+2], clamped to the source, one per
// row. The target line is marked with "* ", the others are indented by two
// spaces.
func (s *Source) ContextWindow(line int) (string, error) {
	lines, err := s.Lines()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := max(1, line-2); i <= min(len(lines), line+2); i++ {
		if i == line {
			sb.WriteString("* ")
		} else {
			sb.WriteString("  ")
		}
		fmt.Fprintf(&sb, "%d: %s\n", i, lines[i-1])
	}
	return sb.String(), nil
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
