package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitebski/schema-explorer/internal/lexer"
)

func ident(s string) lexer.Token { return lexer.Token{Type: lexer.Identifier, Source: s} }
func brace(s string) lexer.Token { return lexer.Token{Type: lexer.Brace, Source: s} }
func term() lexer.Token          { return lexer.Token{Type: lexer.Terminator, Source: ";"} }

func clone(s Stream) Stream {
	return append(Stream(nil), s...)
}

// word matches a single identifier with the given source
func word(source string) Production[string] {
	return func(s Stream) Result[string] {
		tok, rest, ok := s.Chomp(Tok(lexer.Identifier, source))
		if !ok {
			return Failure[string](s)
		}
		return Success(rest, tok.Source)
	}
}

// pair matches two identifiers in a row
func pair(a, b string) Production[string] {
	return func(s Stream) Result[string] {
		first := word(a)(s)
		if !first.OK() {
			return Failure[string](s)
		}
		second := word(b)(first.Rest)
		if !second.OK() {
			return Failure[string](s)
		}
		return Success(second.Rest, a+b)
	}
}

func TestParseCollectsNodesAndSkips(t *testing.T) {
	s := Stream{ident("x"), ident("a"), ident("b"), term(), ident("a"), ident("c")}

	rest, nodes := Parse(s, pair("a", "b"), word("a"))
	assert.Empty(t, rest)
	assert.Equal(t, []string{"ab", "a"}, nodes)
}

func TestParseEmptyStream(t *testing.T) {
	rest, nodes := Parse[string](nil, word("a"))
	assert.Empty(t, rest)
	assert.NotNil(t, nodes)
	assert.Empty(t, nodes)
}

func TestParseTerminatesOnNonConsumingSuccess(t *testing.T) {
	greedy := func(s Stream) Result[string] { return Success(s, "nothing") }

	rest, nodes := Parse[string](Stream{ident("a"), ident("b")}, greedy)
	assert.Empty(t, rest)
	assert.Empty(t, nodes)
}

func TestParseDoesNotMutateInput(t *testing.T) {
	s := Stream{ident("a"), ident("b"), ident("a"), term()}
	before := clone(s)

	Parse(s, pair("a", "b"), word("a"))
	assert.Equal(t, before, s)
}

func TestFailedProductionLeavesStream(t *testing.T) {
	s := Stream{ident("a"), ident("x")}
	before := clone(s)

	r := pair("a", "b")(s)
	require.False(t, r.OK())
	assert.Equal(t, before, r.Rest)
	assert.Equal(t, before, s)
}

func TestParseFirstOrderedAlternation(t *testing.T) {
	s := Stream{ident("a"), ident("b"), ident("c")}

	r := ParseFirst(s, pair("a", "b"), word("a"))
	require.True(t, r.OK())
	assert.Equal(t, "ab", r.Node)
	assert.Equal(t, Stream{ident("c")}, r.Rest)

	r = ParseFirst(s, pair("a", "x"), word("a"))
	require.True(t, r.OK())
	assert.Equal(t, "a", r.Node)

	r = ParseFirst(s, word("b"), word("c"))
	assert.False(t, r.OK())
	assert.Equal(t, s, r.Rest)
}

func TestNextAndPeek(t *testing.T) {
	s := Stream{ident("a"), term()}

	assert.True(t, s.Next(Is(lexer.Identifier)))
	assert.True(t, s.Next(Tok(lexer.Identifier, "a")))
	assert.False(t, s.Next(Tok(lexer.Identifier, "b")))
	assert.True(t, s.NextAt(Is(lexer.Terminator), 1))
	assert.False(t, s.NextAt(Any, 2))
	assert.True(t, s.Next(Any))

	tok, ok := s.Peek()
	require.True(t, ok)
	assert.Equal(t, ident("a"), tok)

	_, ok = Stream{}.Peek()
	assert.False(t, ok)
}

func TestChomp(t *testing.T) {
	s := Stream{ident("a"), term()}

	tok, rest, ok := s.Chomp(Is(lexer.Identifier))
	require.True(t, ok)
	assert.Equal(t, ident("a"), tok)
	assert.Equal(t, Stream{term()}, rest)

	_, rest, ok = s.Chomp(Is(lexer.Terminator))
	assert.False(t, ok)
	assert.Equal(t, s, rest)
}

func TestUntil(t *testing.T) {
	s := Stream{ident("a"), ident("b"), term(), brace("{")}

	rest, ok := s.Until(Is(lexer.Terminator), Is(lexer.Identifier))
	require.True(t, ok)
	assert.Equal(t, Stream{term(), brace("{")}, rest)

	rest, ok = s.Until(Tok(lexer.Brace, "{"), Is(lexer.Identifier))
	assert.False(t, ok, "terminator is not allowed")
	assert.Equal(t, s, rest)

	rest, ok = s.Until(Tok(lexer.Brace, "{"))
	require.True(t, ok, "empty allow list permits everything")
	assert.Equal(t, Stream{brace("{")}, rest)

	rest, ok = s.Until(Tok(lexer.Brace, "}"))
	assert.False(t, ok, "target never found")
	assert.Equal(t, s, rest)

	rest, ok = s.Until(Is(lexer.Identifier))
	require.True(t, ok, "target at the head")
	assert.Equal(t, s, rest)
}

func TestChompUntil(t *testing.T) {
	s := Stream{ident("a"), term(), ident("b")}

	tok, rest, ok := s.ChompUntil(Is(lexer.Terminator))
	require.True(t, ok)
	assert.Equal(t, term(), tok)
	assert.Equal(t, Stream{ident("b")}, rest)

	_, rest, ok = s.ChompUntil(Is(lexer.Brace))
	assert.False(t, ok)
	assert.Equal(t, s, rest)
}

func TestChompBracesNested(t *testing.T) {
	s := Stream{brace("{"), ident("a"), brace("{"), ident("b"), brace("}"), ident("c"), brace("}")}

	inner, rest, ok := s.ChompBraces("{", "}")
	require.True(t, ok)
	assert.Equal(t, Stream{ident("a"), brace("{"), ident("b"), brace("}"), ident("c")}, inner)
	assert.Empty(t, rest)
}

func TestChompBracesSkipsToOpener(t *testing.T) {
	s := Stream{ident("Foo"), brace("{"), ident("x"), brace("}"), term()}

	inner, rest, ok := s.ChompBraces("{", "}", Is(lexer.Identifier))
	require.True(t, ok)
	assert.Equal(t, Stream{ident("x")}, inner)
	assert.Equal(t, Stream{term()}, rest)

	_, rest, ok = s.ChompBraces("{", "}", Is(lexer.Terminator))
	assert.False(t, ok)
	assert.Equal(t, s, rest)
}

func TestChompBracesUnbalanced(t *testing.T) {
	s := Stream{brace("{"), ident("a"), brace("{"), ident("b"), brace("}")}
	before := clone(s)

	_, rest, ok := s.ChompBraces("{", "}")
	assert.False(t, ok)
	assert.Equal(t, before, rest)
	assert.Equal(t, before, s)
}

func TestChompBracesEmptyBody(t *testing.T) {
	inner, rest, ok := Stream{brace("("), brace(")"), term()}.ChompBraces("(", ")")
	require.True(t, ok)
	assert.Empty(t, inner)
	assert.Equal(t, Stream{term()}, rest)
}
