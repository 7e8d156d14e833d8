package models

import "strings"

// Relation categories
const (
	// CategoryFK marks a foreign key declared in the database
	CategoryFK = "FK"
	// CategoryFKC marks a foreign key mined from application source
	CategoryFKC = "FKC"
)

// Abstract table categories
const (
	CategoryEntity   = "entity"
	CategoryRelation = "relation"
)

// Column represents a database column with its key flags
type Column struct {
	Key      string  `json:"key" yaml:"key"`
	Type     string  `json:"type" yaml:"type"`
	Default  *string `json:"default" yaml:"default"`
	PK       bool    `json:"PK" yaml:"PK"`
	FK       bool    `json:"FK" yaml:"FK"`
	FKC      bool    `json:"FKC" yaml:"FKC"`
	Nullable bool    `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Extra    string  `json:"extra,omitempty" yaml:"extra,omitempty"`
	Comment  string  `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// Table represents a database table and its columns
type Table struct {
	Key   string   `json:"key" yaml:"key"`
	Items []Column `json:"items" yaml:"items"`
}

// Relation represents a foreign key edge between two table columns
type Relation struct {
	From     string `json:"from" yaml:"from"`
	FromC    string `json:"fromc" yaml:"fromc"`
	To       string `json:"to" yaml:"to"`
	ToC      string `json:"toc" yaml:"toc"`
	Category string `json:"category" yaml:"category"`
}

// Schema is the relational schema handed to the miner and the clusterer
type Schema struct {
	Tables    []Table    `json:"tables" yaml:"tables"`
	Relations []Relation `json:"relations" yaml:"relations"`
}

// TableCategory represents the category of a table in the concrete view
type TableCategory int

const (
	Standalone TableCategory = iota
	Dependent
	ManyToMany
	Circular
)

// String returns the display name of the category
func (c TableCategory) String() string {
	switch c {
	case Dependent:
		return "Dependent"
	case ManyToMany:
		return "Many-to-Many"
	case Circular:
		return "Circular"
	default:
		return "Standalone"
	}
}

// FindTable returns the table whose key matches name case-insensitively
func (s *Schema) FindTable(name string) *Table {
	for i := range s.Tables {
		if strings.EqualFold(s.Tables[i].Key, name) {
			return &s.Tables[i]
		}
	}
	return nil
}

// HasRelation reports whether an edge with the same endpoints already exists,
// regardless of its category
func (s *Schema) HasRelation(rel Relation) bool {
	for _, r := range s.Relations {
		if r.From == rel.From && r.FromC == rel.FromC && r.To == rel.To && r.ToC == rel.ToC {
			return true
		}
	}
	return false
}

// PrimaryKeys returns the names of the table's primary key columns in column order
func (t *Table) PrimaryKeys() []string {
	var keys []string
	for _, col := range t.Items {
		if col.PK {
			keys = append(keys, col.Key)
		}
	}
	return keys
}

// FindColumn returns the column whose key matches name case-insensitively
func (t *Table) FindColumn(name string) *Column {
	for i := range t.Items {
		if strings.EqualFold(t.Items[i].Key, name) {
			return &t.Items[i]
		}
	}
	return nil
}

// ItemRef references a member table of an abstract node
type ItemRef struct {
	Key string `json:"key" yaml:"key"`
}

// AbstractTable is a node of the abstract diagram, either an abstract entity
// or an abstract relation
type AbstractTable struct {
	Key      string    `json:"key" yaml:"key"`
	ID       string    `json:"id" yaml:"id"`
	Category string    `json:"category" yaml:"category"`
	Items    []ItemRef `json:"items" yaml:"items"`
}

// AbstractEdge links an abstract relation to one of the entities it joins
type AbstractEdge struct {
	To   string `json:"to" yaml:"to"`
	From string `json:"from" yaml:"from"`
}

// AbstractSchema is the clustered view of a Schema
type AbstractSchema struct {
	Tables    []AbstractTable `json:"tables" yaml:"tables"`
	Relations []AbstractEdge  `json:"relations" yaml:"relations"`
}

// FindTable returns the abstract node with the given key
func (a *AbstractSchema) FindTable(key string) *AbstractTable {
	for i := range a.Tables {
		if a.Tables[i].Key == key {
			return &a.Tables[i]
		}
	}
	return nil
}
