package kolon

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/lemonberrylabs/kolon/pkg/token"
	"github.com/lemonberrylabs/kolon/pkg/types"
)

// numberFormats are tried in order; the first one whose match ends on a
// literal boundary wins.
var numberFormats = []struct {
	typ token.Type
	re  *regexp.Regexp
}{
	{token.INTEGER, regexp.MustCompile(`^(?:[1-9][0-9]*|0)`)},
	{token.DOUBLE, regexp.MustCompile(`^(?:[1-9][0-9]*|0)\.[0-9]+`)},
	{token.HEX, regexp.MustCompile(`^0[xX][0-9a-fA-F]+`)},
	{token.OCTAL, regexp.MustCompile(`^0[0-7]+`)},
	{token.BINARY, regexp.MustCompile(`^0[bB][01]+`)},
}

var (
	identRE    = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*`)
	positionRE = regexp.MustCompile(`^__(FILE|LINE|ROOT)__`)
)

var positionTypes = map[string]token.Type{
	"FILE": token.POS_FILE,
	"LINE": token.POS_LINE,
	"ROOT": token.POS_ROOT,
}

// scanNumber scans the numeric literal at the start of text. The whole
// contiguous numeral is considered, so "0x1A" is HEX rather than INTEGER "0"
// followed by garbage.
func scanNumber(text string) (token.Type, string, error) {
	for _, f := range numberFormats {
		lit := f.re.FindString(text)
		if lit != "" && numberEnds(text, len(lit)) {
			return f.typ, lit, nil
		}
	}
	return token.ILLEGAL, "", types.NewLexError(types.KindUnrecognizedNumber,
		fmt.Sprintf("unrecognized number %q", numeral(text)))
}

// numberEnds reports whether a literal of length n at the start of text is
// not continued by more numeral characters.
func numberEnds(text string, n int) bool {
	if n >= len(text) {
		return true
	}
	ch := text[n]
	if ch == '.' {
		return n+1 >= len(text) || !isDigit(text[n+1])
	}
	return !isIdentPart(ch)
}

// numeral returns the candidate numeral at the start of text, for messages.
func numeral(text string) string {
	n := 0
	for n < len(text) && (isIdentPart(text[n]) || text[n] == '.') {
		n++
	}
	return text[:n]
}

// scanString decodes the string literal at the start of text, which must
// begin with '"'. It returns the decoded content and the number of bytes
// consumed including both quotes.
func scanString(text string) (string, int, error) {
	var sb strings.Builder
	pos := 1 // skip opening quote
	for pos < len(text) {
		switch ch := text[pos]; ch {
		case '"':
			return sb.String(), pos + 1, nil
		case '\\':
			if pos+1 >= len(text) {
				return "", 0, types.NewLexError(types.KindDanglingEscape, "string ends after '\\'")
			}
			switch text[pos+1] {
			case 't':
				sb.WriteByte('\t')
				pos += 2
			case 'n':
				sb.WriteByte('\n')
				pos += 2
			default:
				_, size := utf8.DecodeRuneInString(text[pos+1:])
				sb.WriteString(text[pos+1 : pos+1+size])
				pos += 1 + size
			}
		default:
			sb.WriteByte(ch)
			pos++
		}
	}
	return "", 0, types.NewLexError(types.KindUnterminatedString, "unterminated string literal")
}

// scanOperator scans a punctuation or operator token at the start of text,
// longest match first. ok is false if text does not start with one.
func scanOperator(text string) (typ token.Type, n int, ok bool, err error) {
	var next byte
	if len(text) > 1 {
		next = text[1]
	}

	switch text[0] {
	case '?':
		return token.CONDITIONAL, 1, true, nil
	case ':':
		return token.CONDITIONAL_SELECTOR, 1, true, nil
	case '[':
		return token.LBRACKET, 1, true, nil
	case ']':
		return token.RBRACKET, 1, true, nil
	case '{':
		return token.LBRACE, 1, true, nil
	case '}':
		return token.RBRACE, 1, true, nil
	case '(':
		return token.LPAREN, 1, true, nil
	case ')':
		return token.RPAREN, 1, true, nil
	case ',':
		return token.COMMA, 1, true, nil
	case '%':
		return token.MODULO, 1, true, nil
	case '*':
		return token.MUL, 1, true, nil
	case '~':
		return token.CONCAT, 1, true, nil
	case '<':
		if next == '=' {
			return token.LE, 2, true, nil
		}
		return token.LT, 1, true, nil
	case '>':
		if next == '=' {
			return token.GE, 2, true, nil
		}
		return token.GT, 1, true, nil
	case '!':
		if next == '=' {
			return token.NE, 2, true, nil
		}
		return token.NOT, 1, true, nil
	case '=':
		if next == '=' {
			return token.EQUALEQUAL, 2, true, nil
		}
		return token.EQUAL, 1, true, nil
	case '+':
		switch next {
		case '&':
			return token.BIT_AND, 2, true, nil
		case '|':
			return token.BIT_OR, 2, true, nil
		case '^':
			return token.BIT_XOR, 2, true, nil
		}
		return token.PLUS, 1, true, nil
	case '-':
		if next == '>' {
			return token.ARROW, 2, true, nil
		}
		return token.MINUS, 1, true, nil
	case '/':
		if next == '/' {
			return token.NULL_OR, 2, true, nil
		}
		return token.DIVIDE, 1, true, nil
	case '&':
		if next == '&' {
			return token.ANDAND, 2, true, nil
		}
		return token.ILLEGAL, 0, false, types.NewLexError(types.KindInvalidOperator, "invalid operator '&'")
	case '|':
		if next == '|' {
			return token.OROR, 2, true, nil
		}
		return token.PIPE, 1, true, nil
	}
	return token.ILLEGAL, 0, false, nil
}

// scanWord scans a keyword, position variable or identifier at the start of
// text. The longest identifier is taken before the keyword lookup, so
// "format" is an IDENT and not FOR followed by "mat".
func scanWord(text string) (token.Type, string, error) {
	if m := positionRE.FindStringSubmatch(text); m != nil && wordEnds(text, len(m[0])) {
		return positionTypes[m[1]], m[0], nil
	}
	if word := identRE.FindString(text); word != "" {
		return token.Lookup(word), word, nil
	}
	r, _ := utf8.DecodeRuneInString(text)
	return token.ILLEGAL, "", types.NewLexError(types.KindUnrecognizedToken,
		fmt.Sprintf("unrecognized token starting with %q", r))
}

func wordEnds(text string, n int) bool {
	return n >= len(text) || !isIdentPart(text[n])
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentPart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_' || isDigit(ch)
}
