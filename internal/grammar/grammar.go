// Package grammar recognizes JPA-style entity classes and their relationship
// annotations in a lexed Java token stream.
//
// The grammar is deliberately narrow. It knows three productions: an
// annotation with optional string-valued fields, a relation (a cardinality
// annotation plus @JoinColumn on a field or getter) and a class whose body
// may hold relations and nested classes.
package grammar

import (
	"slices"
	"strings"

	"github.com/vitebski/schema-explorer/internal/lexer"
	"github.com/vitebski/schema-explorer/internal/parser"
)

// Annotation vocabulary
const (
	TableAnnotation      = "@Table"
	JoinColumnAnnotation = "@JoinColumn"
	ManyToOne            = "@ManyToOne"
	OneToMany            = "@OneToMany"
	OneToOne             = "@OneToOne"
	ManyToMany           = "@ManyToMany"
)

// Node is an element of a class body: a *Class or a *Relation
type Node interface {
	node()
}

// Class is an entity class. Table is the @Table name when present, otherwise
// the declared class name.
type Class struct {
	Table    string
	Children []Node
}

// Relation is an annotated association field
type Relation struct {
	Cardinality string
	// Column is the JoinColumn name, the owning side's column
	Column string
	// ReferencedColumn is empty when the annotation omits referencedColumnName
	ReferencedColumn string
	// Type is the declared type of the field, the referenced entity
	Type string
}

func (*Class) node()    {}
func (*Relation) node() {}

// AnnotationNode holds the requested fields of a parsed annotation
type AnnotationNode struct {
	Name   string
	Fields map[string]string
}

// annotationArgs may appear inside an annotation's parentheses
var annotationArgs = []parser.Pattern{
	parser.Is(lexer.Number),
	parser.Is(lexer.String),
	parser.Is(lexer.Boolean),
	parser.Is(lexer.Identifier),
	parser.Is(lexer.Dot),
	parser.Is(lexer.Annotation),
	parser.Is(lexer.Operator),
	parser.Is(lexer.Separator),
}

// classPrefix may appear between a class's annotations and its class keyword
var classPrefix = []parser.Pattern{
	parser.Is(lexer.Keyword),
	parser.Is(lexer.Annotation),
	parser.Is(lexer.Identifier),
	parser.Tok(lexer.Operator, "="),
	parser.Is(lexer.String),
	parser.Is(lexer.Separator),
	parser.Tok(lexer.Brace, "("),
	parser.Tok(lexer.Brace, ")"),
}

var (
	openParen  = parser.Tok(lexer.Brace, "(")
	closeParen = parser.Tok(lexer.Brace, ")")
	assign     = parser.Tok(lexer.Operator, "=")
)

// ParseSource lexes and parses one Java source file and returns its top-level
// classes. A lexer error is returned as is so the caller can report it.
func ParseSource(source string) ([]*Class, error) {
	tokens, err := lexer.Lex(source)
	if err != nil {
		return nil, err
	}

	_, nodes := parser.Parse[Node](parser.Stream(tokens), EntityTableClass)
	classes := make([]*Class, 0, len(nodes))
	for _, n := range nodes {
		if c, ok := n.(*Class); ok {
			classes = append(classes, c)
		}
	}
	return classes, nil
}

// Annotation consumes "@name". When fields are requested it also requires a
// parenthesized argument list holding `field = "string"` for every one of
// them, in any order. With no fields, any argument list is skipped.
func Annotation(s parser.Stream, name string, fields ...string) parser.Result[*AnnotationNode] {
	fail := parser.Failure[*AnnotationNode](s)

	if !strings.HasPrefix(name, "@") {
		name = "@" + name
	}
	_, rest, ok := s.Chomp(parser.Tok(lexer.Annotation, name))
	if !ok {
		return fail
	}

	node := &AnnotationNode{Name: name, Fields: map[string]string{}}

	if !rest.Next(openParen) {
		if len(fields) > 0 {
			return fail
		}
		return parser.Success(rest, node)
	}
	rest = rest[1:]

	remaining := slices.Clone(fields)
	tok, after, found := rest.Chomp(parser.Is(lexer.Identifier))
	if found {
		rest = after
	}
	for len(remaining) > 0 {
		if found && slices.Contains(remaining, tok.Source) {
			if _, rest, ok = rest.Chomp(assign); !ok {
				return fail
			}
			var value lexer.Token
			if value, rest, ok = rest.Chomp(parser.Is(lexer.String)); !ok {
				return fail
			}
			node.Fields[tok.Source] = value.Source
			field := tok.Source
			remaining = slices.DeleteFunc(remaining, func(f string) bool { return f == field })
		}
		if len(remaining) > 0 {
			if tok, rest, ok = rest.ChompUntil(parser.Is(lexer.Identifier), annotationArgs...); !ok {
				return fail
			}
			found = true
		}
	}

	if _, rest, ok = rest.ChompUntil(closeParen, annotationArgs...); !ok {
		return fail
	}
	return parser.Success(rest, node)
}

func joinColumnWithReference(s parser.Stream) parser.Result[*AnnotationNode] {
	return Annotation(s, JoinColumnAnnotation, "name", "referencedColumnName")
}

func joinColumnName(s parser.Stream) parser.Result[*AnnotationNode] {
	return Annotation(s, JoinColumnAnnotation, "name")
}

// AssociationMember matches the annotations of an association member followed by its
// declaration. Exactly one of @ManyToOne, @OneToMany or @OneToOne and a
// @JoinColumn are required; @ManyToMany rejects the member.
func AssociationMember(s parser.Stream) parser.Result[Node] {
	fail := parser.Failure[Node](s)
	rel := &Relation{}
	cardinalities := 0
	joined := false

	rest := s
	for rest.Next(parser.Is(lexer.Annotation)) {
		tok := rest[0]
		switch tok.Source {
		case ManyToOne, OneToMany, OneToOne:
			cardinalities++
			rel.Cardinality = strings.TrimPrefix(tok.Source, "@")
		case ManyToMany:
			return fail
		case JoinColumnAnnotation:
			r := parser.ParseFirst[*AnnotationNode](rest, joinColumnWithReference, joinColumnName)
			if !r.OK() {
				return fail
			}
			rel.Column = r.Node.Fields["name"]
			rel.ReferencedColumn = r.Node.Fields["referencedColumnName"]
			joined = true
			rest = r.Rest
			continue
		}
		r := Annotation(rest, tok.Source)
		if !r.OK() {
			return fail
		}
		rest = r.Rest
	}
	if cardinalities != 1 || !joined {
		return fail
	}

	typeName, rest, ok := declaredType(rest)
	if !ok {
		return fail
	}
	rel.Type = typeName
	return parser.Success[Node](rest, rel)
}

// declaredType scans a member declaration up to its end, keeping the last
// two identifiers. The first of them is the declared type: "Bar bar;",
// "List<Bar> bars;" and "Bar getBar() {" all yield Bar.
func declaredType(s parser.Stream) (string, parser.Stream, bool) {
	var previous, last string
	for i, tok := range s {
		switch {
		case tok.Type == lexer.Identifier:
			previous, last = last, tok.Source
			continue
		case tok.Type == lexer.Terminator,
			assign.Match(tok),
			openParen.Match(tok),
			parser.Tok(lexer.Brace, "{").Match(tok):
		default:
			continue
		}
		if previous == "" {
			return "", s, false
		}
		return previous, s[i+1:], true
	}
	return "", s, false
}

// EntityTableClass matches a class declaration with its leading annotations
// and body. The body is parsed for relations and nested classes.
func EntityTableClass(s parser.Stream) parser.Result[Node] {
	fail := parser.Failure[Node](s)
	class := &Class{}

	rest := s
	for rest.Next(parser.Is(lexer.Annotation)) {
		tok := rest[0]
		if tok.Source == TableAnnotation {
			r := Annotation(rest, TableAnnotation, "name")
			if !r.OK() {
				return fail
			}
			class.Table = r.Node.Fields["name"]
			rest = r.Rest
			continue
		}
		r := Annotation(rest, tok.Source)
		if !r.OK() {
			return fail
		}
		rest = r.Rest
	}

	_, rest, ok := rest.ChompUntil(parser.Tok(lexer.Keyword, "class"), classPrefix...)
	if !ok {
		return fail
	}
	if class.Table == "" {
		var name lexer.Token
		if name, rest, ok = rest.Chomp(parser.Is(lexer.Identifier)); !ok {
			return fail
		}
		class.Table = name.Source
	}

	body, rest, ok := rest.ChompBraces("{", "}")
	if !ok {
		return fail
	}
	_, class.Children = parser.Parse[Node](body, EntityTableClass, AssociationMember)
	return parser.Success[Node](rest, class)
}
