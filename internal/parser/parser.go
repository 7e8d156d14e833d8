// Package parser provides a small backtracking parser over lexer token
// streams.
//
// A Stream is an immutable view of a token slice. Every primitive returns a
// new view instead of modifying the one it was given, so a production that
// fails leaves its caller's stream exactly as it was and alternatives can be
// tried one after another without an undo log.
package parser

import (
	"github.com/vitebski/schema-explorer/internal/lexer"
)

// Stream is an ordered sequence of tokens. Streams are never written
// through; narrowing one always produces a new slice header.
type Stream []lexer.Token

// Pattern matches a token. A zero Type matches any type and an empty Source
// matches any source text.
type Pattern struct {
	Type   lexer.TokenType
	Source string
}

// Is returns a pattern matching any token of the given type
func Is(t lexer.TokenType) Pattern {
	return Pattern{Type: t}
}

// Tok returns a pattern matching a token by type and exact source
func Tok(t lexer.TokenType, source string) Pattern {
	return Pattern{Type: t, Source: source}
}

// Any matches every token
var Any = Pattern{}

// Match reports whether tok satisfies the pattern
func (p Pattern) Match(tok lexer.Token) bool {
	if p.Type != 0 && tok.Type != p.Type {
		return false
	}
	if p.Source != "" && tok.Source != p.Source {
		return false
	}
	return true
}

// Result is the outcome of a production: either a success carrying the
// remaining stream and a node, or a failure carrying the stream the
// production was given.
type Result[N any] struct {
	Rest Stream
	Node N
	ok   bool
}

// OK reports whether the production matched
func (r Result[N]) OK() bool {
	return r.ok
}

// Success builds a matched result
func Success[N any](rest Stream, node N) Result[N] {
	return Result[N]{Rest: rest, Node: node, ok: true}
}

// Failure builds a failed result that hands back the untouched stream
func Failure[N any](s Stream) Result[N] {
	return Result[N]{Rest: s}
}

// Production recognizes one grammar construct at the head of a stream
type Production[N any] func(Stream) Result[N]

// Parse repeatedly applies the productions, in order, at the head of the
// stream. The first success contributes its node and advances the stream;
// when every production fails one token is skipped. Parse always consumes
// the whole stream and returns it empty along with the collected nodes.
//
// A success that does not shrink the stream counts as a failure, which keeps
// Parse terminating for any production.
func Parse[N any](s Stream, productions ...Production[N]) (Stream, []N) {
	nodes := []N{}

parsing:
	for len(s) > 0 {
		for _, production := range productions {
			r := production(s)
			if r.ok && len(r.Rest) < len(s) {
				nodes = append(nodes, r.Node)
				s = r.Rest
				continue parsing
			}
		}
		s = s[1:]
	}
	return s, nodes
}

// ParseFirst tries the productions once at the head of the stream and
// returns the first success, or a failure holding the original stream.
func ParseFirst[N any](s Stream, productions ...Production[N]) Result[N] {
	for _, production := range productions {
		if r := production(s); r.ok {
			return r
		}
	}
	return Failure[N](s)
}

// Next reports whether the head token matches p without consuming it
func (s Stream) Next(p Pattern) bool {
	return s.NextAt(p, 0)
}

// NextAt reports whether the token step positions ahead matches p
func (s Stream) NextAt(p Pattern, step int) bool {
	if step < 0 || step >= len(s) {
		return false
	}
	return p.Match(s[step])
}

// Peek returns the head token
func (s Stream) Peek() (lexer.Token, bool) {
	if len(s) == 0 {
		return lexer.Token{}, false
	}
	return s[0], true
}

// Chomp consumes the head token if it matches p. On a mismatch the original
// stream is returned and ok is false.
func (s Stream) Chomp(p Pattern) (tok lexer.Token, rest Stream, ok bool) {
	if !s.Next(p) {
		return lexer.Token{}, s, false
	}
	return s[0], s[1:], true
}

// Until skips tokens until the head matches target. Each skipped token must
// match one of allowed; an empty allow list permits anything. It fails,
// returning the original stream, on a disallowed token or when the stream
// runs out before the target.
func (s Stream) Until(target Pattern, allowed ...Pattern) (Stream, bool) {
	for step := 0; step < len(s); step++ {
		if target.Match(s[step]) {
			return s[step:], true
		}
		if !permitted(s[step], allowed) {
			return s, false
		}
	}
	return s, false
}

func permitted(tok lexer.Token, allowed []Pattern) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, p := range allowed {
		if p.Match(tok) {
			return true
		}
	}
	return false
}

// ChompUntil is Until followed by consuming the target token
func (s Stream) ChompUntil(target Pattern, allowed ...Pattern) (lexer.Token, Stream, bool) {
	rest, ok := s.Until(target, allowed...)
	if !ok {
		return lexer.Token{}, s, false
	}
	return rest[0], rest[1:], true
}

// ChompBraces locates the opening brace with Until and consumes tokens up to
// its balancing closing brace. It returns the tokens between the pair, with
// the pair itself dropped, and the stream after the closing brace.
func (s Stream) ChompBraces(openBrace, closeBrace string, allowed ...Pattern) (inner Stream, rest Stream, ok bool) {
	opener := Tok(lexer.Brace, openBrace)
	closer := Tok(lexer.Brace, closeBrace)

	_, body, ok := s.ChompUntil(opener, allowed...)
	if !ok {
		return nil, s, false
	}

	depth := 1
	for i, tok := range body {
		switch {
		case opener.Match(tok):
			depth++
		case closer.Match(tok):
			depth--
		}
		if depth == 0 {
			return body[:i:i], body[i+1:], true
		}
	}
	return nil, s, false
}
