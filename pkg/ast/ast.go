// Package ast defines the values handed between the tokenize, parse and
// compile stages of a template pipeline.
//
// The parser and compiler stages are placeholders: a Node is the template root
// holding the token stream unchanged, and an OpcodeSequence carries that
// stream forward so position metadata survives to whatever consumes it.
package ast

import "github.com/lemonberrylabs/kolon/pkg/token"

// NodeType identifies the kind of a syntax tree node.
type NodeType int

const (
	// NodeTemplate is the root of a parsed template.
	NodeTemplate NodeType = iota
)

// Node is a syntax tree node.
type Node struct {
	Type NodeType

	// Source is the template file name, empty for inline sources.
	Source string

	// Tokens is the token stream the node was built from.
	Tokens []token.Token

	Children []*Node
}

// OpcodeSequence is a compiled template.
type OpcodeSequence struct {
	// Source is the template file name, empty for inline sources.
	Source string

	// Tokens is the token stream the sequence was compiled from, kept for
	// diagnostics against template source positions.
	Tokens []token.Token
}

// Len returns the number of tokens the sequence was compiled from.
func (s *OpcodeSequence) Len() int {
	return len(s.Tokens)
}
