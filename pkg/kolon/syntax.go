package kolon

import (
	"github.com/lemonberrylabs/kolon/pkg/ast"
	"github.com/lemonberrylabs/kolon/pkg/source"
	"github.com/lemonberrylabs/kolon/pkg/token"
)

// Syntax is a template pipeline: tokenize, then parse, then compile.
type Syntax interface {
	Tokenize(src *source.Source, text string) ([]token.Token, error)
	Parse(src *source.Source, tokens []token.Token) (*ast.Node, error)
	Compile(src *source.Source, node *ast.Node) (*ast.OpcodeSequence, error)
}

var _ Syntax = (*Kolon)(nil)

// Kolon is the Syntax for Kolon templates.
type Kolon struct {
	cfg Config
}

// New creates a Kolon syntax with the given delimiters. Empty delimiters
// fall back to the defaults.
func New(cfg Config) *Kolon {
	return &Kolon{cfg: cfg.WithDefaults()}
}

// Config returns the delimiters in use.
func (k *Kolon) Config() Config {
	return k.cfg
}

// Tokenize implements Syntax.
func (k *Kolon) Tokenize(src *source.Source, text string) ([]token.Token, error) {
	return Tokenize(src, text, k.cfg)
}

// Parse implements Syntax. It returns a template root holding the tokens.
func (k *Kolon) Parse(src *source.Source, tokens []token.Token) (*ast.Node, error) {
	return &ast.Node{Type: ast.NodeTemplate, Source: src.Name(), Tokens: tokens}, nil
}

// Compile implements Syntax. It carries the token stream into the sequence.
func (k *Kolon) Compile(src *source.Source, node *ast.Node) (*ast.OpcodeSequence, error) {
	return &ast.OpcodeSequence{Source: src.Name(), Tokens: node.Tokens}, nil
}

// Run executes the whole pipeline for src.
func Run(s Syntax, src *source.Source) (*ast.OpcodeSequence, error) {
	text, err := src.Text()
	if err != nil {
		return nil, err
	}
	tokens, err := s.Tokenize(src, text)
	if err != nil {
		return nil, err
	}
	node, err := s.Parse(src, tokens)
	if err != nil {
		return nil, err
	}
	return s.Compile(src, node)
}
