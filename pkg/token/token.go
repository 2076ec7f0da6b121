// Package token defines the lexical tokens produced by the Kolon lexer.
package token

import (
	"encoding/json"
	"fmt"
)

// Type represents the type of a lexical token.
type Type int

const (
	ILLEGAL Type = iota

	// Template structure
	RAW   // literal template text
	OPEN  // open tag
	CLOSE // close tag

	// Literals
	INTEGER // 123
	DOUBLE  // 1.5
	HEX     // 0x1A
	OCTAL   // 017
	BINARY  // 0b101
	STRING  // "abc"
	IDENT   // name

	// Keywords
	NIL
	TRUE
	FALSE
	FOR
	WHILE
	MIN
	MAX
	IF
	ELSE
	SWITCH
	CASE
	INCLUDE
	BLOCK
	CASCADE
	AROUND
	BEFORE
	AFTER
	SUPER

	// Position pseudo-variables
	POS_FILE // __FILE__
	POS_LINE // __LINE__
	POS_ROOT // __ROOT__

	// Comparison
	LT         // <
	LE         // <=
	GT         // >
	GE         // >=
	NOT        // !
	NE         // !=
	EQUAL      // =
	EQUALEQUAL // ==

	// Arithmetic and bitwise
	PLUS    // +
	BIT_AND // +&
	BIT_OR  // +|
	BIT_XOR // +^
	MINUS   // -
	ARROW   // ->
	DIVIDE  // /
	NULL_OR // //
	MODULO  // %
	MUL     // *
	CONCAT  // ~

	// Logical
	ANDAND // &&
	OROR   // ||
	PIPE   // |

	// Punctuation
	CONDITIONAL          // ?
	CONDITIONAL_SELECTOR // :
	LBRACKET             // [
	RBRACKET             // ]
	LBRACE               // {
	RBRACE               // }
	LPAREN               // (
	RPAREN               // )
	COMMA                // ,
)

var names = [...]string{
	ILLEGAL: "ILLEGAL",

	RAW:   "RAW",
	OPEN:  "OPEN",
	CLOSE: "CLOSE",

	INTEGER: "INTEGER",
	DOUBLE:  "DOUBLE",
	HEX:     "HEX",
	OCTAL:   "OCTAL",
	BINARY:  "BINARY",
	STRING:  "STRING",
	IDENT:   "IDENT",

	NIL:     "NIL",
	TRUE:    "TRUE",
	FALSE:   "FALSE",
	FOR:     "FOR",
	WHILE:   "WHILE",
	MIN:     "MIN",
	MAX:     "MAX",
	IF:      "IF",
	ELSE:    "ELSE",
	SWITCH:  "SWITCH",
	CASE:    "CASE",
	INCLUDE: "INCLUDE",
	BLOCK:   "BLOCK",
	CASCADE: "CASCADE",
	AROUND:  "AROUND",
	BEFORE:  "BEFORE",
	AFTER:   "AFTER",
	SUPER:   "SUPER",

	POS_FILE: "POS_FILE",
	POS_LINE: "POS_LINE",
	POS_ROOT: "POS_ROOT",

	LT:         "LT",
	LE:         "LE",
	GT:         "GT",
	GE:         "GE",
	NOT:        "NOT",
	NE:         "NE",
	EQUAL:      "EQUAL",
	EQUALEQUAL: "EQUALEQUAL",

	PLUS:    "PLUS",
	BIT_AND: "BIT_AND",
	BIT_OR:  "BIT_OR",
	BIT_XOR: "BIT_XOR",
	MINUS:   "MINUS",
	ARROW:   "ARROW",
	DIVIDE:  "DIVIDE",
	NULL_OR: "NULL_OR",
	MODULO:  "MODULO",
	MUL:     "MUL",
	CONCAT:  "CONCAT",

	ANDAND: "ANDAND",
	OROR:   "OROR",
	PIPE:   "PIPE",

	CONDITIONAL:          "CONDITIONAL",
	CONDITIONAL_SELECTOR: "CONDITIONAL_SELECTOR",
	LBRACKET:             "LBRACKET",
	RBRACKET:             "RBRACKET",
	LBRACE:               "LBRACE",
	RBRACE:               "RBRACE",
	LPAREN:               "LPAREN",
	RPAREN:               "RPAREN",
	COMMA:                "COMMA",
}

// String returns the upper-case name of the token type.
func (t Type) String() string {
	if t >= 0 && int(t) < len(names) && names[t] != "" {
		return names[t]
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// MarshalText encodes the type by name.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// HasText reports whether tokens of this type carry a literal payload.
func (t Type) HasText() bool {
	return t == RAW || (t >= INTEGER && t <= IDENT)
}

// IsKeyword reports whether t is a reserved word.
func (t Type) IsKeyword() bool {
	return t >= NIL && t <= SUPER
}

// Keywords maps reserved words to their token types. It is never modified.
var Keywords = map[string]Type{
	"nil":     NIL,
	"true":    TRUE,
	"false":   FALSE,
	"for":     FOR,
	"while":   WHILE,
	"min":     MIN,
	"max":     MAX,
	"if":      IF,
	"else":    ELSE,
	"switch":  SWITCH,
	"case":    CASE,
	"include": INCLUDE,
	"block":   BLOCK,
	"cascade": CASCADE,
	"around":  AROUND,
	"before":  BEFORE,
	"after":   AFTER,
	"super":   SUPER,
}

// Lookup returns the keyword type for word, or IDENT.
func Lookup(word string) Type {
	if t, ok := Keywords[word]; ok {
		return t
	}
	return IDENT
}

// Token is a single lexical token. Line is the 1-based line on which the
// token starts; File is the template path, empty for inline sources.
type Token struct {
	Type Type
	Text string // raw text, identifier, number as written, or decoded string
	Line int
	File string
}

// String returns a debug-friendly representation of the token.
func (t Token) String() string {
	if t.Type.HasText() {
		return fmt.Sprintf("%s(%q)@%d", t.Type, t.Text, t.Line)
	}
	return fmt.Sprintf("%s@%d", t.Type, t.Line)
}

type tokenJSON struct {
	Type Type    `json:"type"`
	Text *string `json:"text,omitempty"`
	Line int     `json:"line"`
	File string  `json:"file,omitempty"`
}

// MarshalJSON encodes the token. "text" is present exactly for types that
// carry a payload, even when the payload is empty.
func (t Token) MarshalJSON() ([]byte, error) {
	out := tokenJSON{Type: t.Type, Line: t.Line, File: t.File}
	if t.Type.HasText() {
		text := t.Text
		out.Text = &text
	}
	return json.Marshal(out)
}
