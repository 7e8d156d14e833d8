// Package lexer heuristically tokenizes Java source. It is not a complete
// Java lexer; it recognizes just enough to find entity classes and their
// relationship annotations.
package lexer

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// TokenType identifies the kind of a token
type TokenType int

// Token types in matching priority order. The zero value is left unused so a
// zero TokenType can mean "any type" to callers.
const (
	Whitespace TokenType = iota + 1
	Comment
	Keyword
	Operator
	Brace
	String
	Number
	Boolean
	Separator
	Terminator
	Dot
	Annotation
	Identifier
)

var typeNames = map[TokenType]string{
	Whitespace: "whitespace",
	Comment:    "comment",
	Keyword:    "keyword",
	Operator:   "operator",
	Brace:      "brace",
	String:     "string",
	Number:     "number",
	Boolean:    "boolean",
	Separator:  "separator",
	Terminator: "terminator",
	Dot:        "dot",
	Annotation: "annotation",
	Identifier: "identifier",
}

func (t TokenType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Token is one lexical unit. Source is trimmed and, for strings, unquoted.
type Token struct {
	Type   TokenType
	Source string
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%s)", t.Type, t.Source)
}

// Marker is the substring a file must contain to be worth lexing at all
const Marker = "@JoinColumn"

// DefaultFilter lists the token types dropped from the returned stream
var DefaultFilter = []TokenType{Whitespace, Comment, Number, Boolean}

type rule struct {
	kind    TokenType
	pattern *regexp.Regexp
}

const keywords = `abstract|assert|boolean|break|byte|case|catch|char|class|const|continue|` +
	`default|do|double|else|enum|extends|final|finally|float|for|goto|if|implements|` +
	`import|int|interface|long|native|new|package|private|protected|public|` +
	`return|short|static|strictfp|super|switch|synchronized|this|throw|throws|` +
	`transient|try|void|volatile|while`

// Operators are listed longest first so the longest applicable one matches.
const operators = `>>>=|<<=|>>=|>>>|\+\+|--|<<|>>|<=|>=|==|!=|&&|\|\||\+=|-=|\*=|/=|%=|&=|\^=|\|=|` +
	`instanceof\b|\+|-|~|!|\*|/|%|<|>|&|\^|\||\?|:|=`

// rules are tried in order at every offset; the first match wins.
var rules = []rule{
	{Whitespace, regexp.MustCompile(`^\s+`)},
	{Comment, regexp.MustCompile(`^(?://[^\n]*|/\*[\s\S]*?\*/)`)},
	{Keyword, regexp.MustCompile(`^(?:` + keywords + `)\b`)},
	{Operator, regexp.MustCompile(`^(?:` + operators + `)`)},
	{Brace, regexp.MustCompile(`^[()\[\]{}]`)},
	{String, regexp.MustCompile(`^(?:"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*')`)},
	{Number, regexp.MustCompile(`^(?:0[xX][0-9a-fA-F_]+|0[bB][01_]+|\d*\.\d+|\d+)[lLfFdD]?`)},
	{Boolean, regexp.MustCompile(`^(?:true|false)\b`)},
	{Separator, regexp.MustCompile(`^,`)},
	{Terminator, regexp.MustCompile(`^;`)},
	{Dot, regexp.MustCompile(`^\.`)},
	{Annotation, regexp.MustCompile(`^@[\p{L}$_][\p{L}\p{N}$_]*`)},
	{Identifier, regexp.MustCompile(`^[\p{L}$_][\p{L}\p{N}$_]*`)},
}

// LexError reports a character sequence no rule could match
type LexError struct {
	Snippet string
	Line    int
	Column  int
}

func (e *LexError) Error() string {
	return fmt.Sprintf("unknown character sequence %q at %d:%d", e.Snippet, e.Line, e.Column)
}

// Lex tokenizes source and drops the DefaultFilter token types
func Lex(source string) ([]Token, error) {
	return LexFiltered(source, DefaultFilter...)
}

// LexFiltered tokenizes source and drops the given token types. Sources
// without the Marker yield an empty stream without being scanned.
func LexFiltered(source string, drop ...TokenType) ([]Token, error) {
	if !strings.Contains(source, Marker) {
		return nil, nil
	}
	source = strings.TrimPrefix(source, "\ufeff")

	var tokens []Token
	pos := 0
	for pos < len(source) {
		rest := source[pos:]
		matched := false
		for _, r := range rules {
			loc := r.pattern.FindStringIndex(rest)
			if loc == nil || loc[1] == 0 {
				continue
			}
			text := rest[:loc[1]]
			pos += loc[1]
			matched = true
			if !slices.Contains(drop, r.kind) {
				tokens = append(tokens, newToken(r.kind, text))
			}
			break
		}
		if !matched {
			return nil, newLexError(source, pos)
		}
	}
	return tokens, nil
}

func newToken(kind TokenType, text string) Token {
	text = strings.TrimSpace(text)
	if kind == String && len(text) >= 2 {
		text = text[1 : len(text)-1]
	}
	return Token{Type: kind, Source: text}
}

func newLexError(source string, pos int) *LexError {
	consumed := source[:pos]
	line := strings.Count(consumed, "\n") + 1
	column := pos - strings.LastIndex(consumed, "\n")

	snippet := source[pos:]
	if len(snippet) > 64 {
		snippet = snippet[:61] + "..."
	}
	return &LexError{Snippet: snippet, Line: line, Column: column}
}
