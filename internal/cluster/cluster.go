// Package cluster groups the tables of a schema into abstract entities and
// abstract relations, following phase 1 of "Clustering relations into
// abstract ER schemas for database reverse engineering".
//
// Every table is reduced to its sorted primary key columns. Tables whose keys
// are equal, or disjoint from everything grouped so far, seed the abstract
// entities (AE). Remaining tables join the single entity their key overlaps
// until nothing moves, and whatever is left becomes an abstract relation (AR)
// between the entities it overlaps.
package cluster

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/vitebski/schema-explorer/pkg/models"
)

// BaseRelation is a table reduced to its primary key signature
type BaseRelation struct {
	Key   string
	Items []string
}

// AbstractEntity clusters base relations that share a primary key signature
type AbstractEntity struct {
	Key   string
	Keys  []string
	Items []BaseRelation
}

// AbstractRelation clusters leftover relations joining the same entities
type AbstractRelation struct {
	Key   string
	Joins []string
	Items []BaseRelation
}

// Clustering is the unflattened result of Analyze
type Clustering struct {
	Entities  []*AbstractEntity
	Relations []*AbstractRelation
}

// Cluster returns the abstract schema of schema. It never fails and does not
// modify schema. AE and AR numbers start at 1 on every call.
func Cluster(schema *models.Schema) *models.AbstractSchema {
	return Analyze(schema).Flatten()
}

// Analyze runs the clustering phases and returns entities and relations
func Analyze(schema *models.Schema) *Clustering {
	group, rest := disjointOrEqual(BaseRelations(schema))
	entities := buildAbstractEntities(group)
	rest = assignToEntities(entities, rest)
	return &Clustering{
		Entities:  entities,
		Relations: relateAbstractEntities(entities, rest),
	}
}

// BaseRelations reduces every table to its sorted primary key columns and
// orders the result by key count, then column names, so equal and nested
// signatures end up next to each other.
func BaseRelations(schema *models.Schema) []BaseRelation {
	if schema == nil {
		return nil
	}
	relations := make([]BaseRelation, 0, len(schema.Tables))
	for i := range schema.Tables {
		items := schema.Tables[i].PrimaryKeys()
		slices.Sort(items)
		relations = append(relations, BaseRelation{Key: schema.Tables[i].Key, Items: items})
	}
	slices.SortStableFunc(relations, compareBase)
	return relations
}

func compareBase(a, b BaseRelation) int {
	if c := cmp.Compare(len(a.Items), len(b.Items)); c != 0 {
		return c
	}
	return slices.Compare(a.Items, b.Items)
}

// disjointOrEqual splits sorted base relations into the group that seeds the
// abstract entities and the rest. A relation is grouped when it equals its
// successor, equals the last grouped relation, or shares no column with any
// grouped relation. The first relation is always grouped.
func disjointOrEqual(relations []BaseRelation) (group, rest []BaseRelation) {
	for i, r := range relations {
		switch {
		case i+1 < len(relations) && slices.Equal(r.Items, relations[i+1].Items):
			group = append(group, r)
		case len(group) > 0 && slices.Equal(r.Items, group[len(group)-1].Items):
			group = append(group, r)
		case !slices.ContainsFunc(group, func(g BaseRelation) bool { return intersects(r.Items, g.Items) }):
			group = append(group, r)
		default:
			rest = append(rest, r)
		}
	}
	return group, rest
}

// buildAbstractEntities starts a new entity whenever the signature changes
func buildAbstractEntities(group []BaseRelation) []*AbstractEntity {
	var entities []*AbstractEntity
	var last *AbstractEntity
	for _, base := range group {
		if last != nil && slices.Equal(base.Items, last.Keys) {
			last.Items = append(last.Items, base)
			continue
		}
		last = &AbstractEntity{
			Key:   fmt.Sprintf("AE%d", len(entities)+1),
			Keys:  slices.Clone(base.Items),
			Items: []BaseRelation{base},
		}
		entities = append(entities, last)
	}
	return entities
}

// assignToEntities moves every relation that overlaps exactly one entity into
// it, growing the entity's keys, and repeats until a pass moves nothing. The
// relations that are still ambiguous or unmatched are returned.
func assignToEntities(entities []*AbstractEntity, relations []BaseRelation) []BaseRelation {
	for moved := true; moved; {
		moved = false
		var deferred []BaseRelation
		for _, candidate := range relations {
			matches := overlapping(entities, candidate.Items)
			if len(matches) != 1 {
				deferred = append(deferred, candidate)
				continue
			}
			ae := matches[0]
			ae.Items = append(ae.Items, candidate)
			ae.Keys = union(ae.Keys, candidate.Items)
			moved = true
		}
		relations = deferred
	}
	return relations
}

// relateAbstractEntities files each leftover relation under the abstract
// relation with the same joins, creating one when none exists
func relateAbstractEntities(entities []*AbstractEntity, relations []BaseRelation) []*AbstractRelation {
	var abstract []*AbstractRelation
	for _, rel := range relations {
		var joins []string
		for _, ae := range overlapping(entities, rel.Items) {
			joins = append(joins, ae.Key)
		}

		idx := slices.IndexFunc(abstract, func(ar *AbstractRelation) bool {
			return slices.Equal(ar.Joins, joins)
		})
		if idx >= 0 {
			abstract[idx].Items = append(abstract[idx].Items, rel)
			continue
		}
		abstract = append(abstract, &AbstractRelation{
			Key:   fmt.Sprintf("AR%d", len(abstract)+1),
			Joins: joins,
			Items: []BaseRelation{rel},
		})
	}
	return abstract
}

// Flatten renders the clustering as diagram nodes and edges. Entities come
// first, then relations, and every join becomes an edge from the entity to
// the relation.
func (c *Clustering) Flatten() *models.AbstractSchema {
	out := &models.AbstractSchema{
		Tables:    make([]models.AbstractTable, 0, len(c.Entities)+len(c.Relations)),
		Relations: []models.AbstractEdge{},
	}
	for _, ae := range c.Entities {
		out.Tables = append(out.Tables, abstractTable(ae.Key, models.CategoryEntity, ae.Items))
	}
	for _, ar := range c.Relations {
		out.Tables = append(out.Tables, abstractTable(ar.Key, models.CategoryRelation, ar.Items))
		for _, join := range ar.Joins {
			out.Relations = append(out.Relations, models.AbstractEdge{To: ar.Key, From: join})
		}
	}
	return out
}

func abstractTable(key, category string, members []BaseRelation) models.AbstractTable {
	items := make([]models.ItemRef, len(members))
	for i, m := range members {
		items[i] = models.ItemRef{Key: m.Key}
	}
	return models.AbstractTable{Key: key, ID: key, Category: category, Items: items}
}

// DrillDown returns the part of schema clustered under the abstract node key
// (an AE or AR): its member tables and the relations between them. The
// result shares no slices with schema. It reports false for an unknown key.
func DrillDown(schema *models.Schema, key string) (*models.Schema, bool) {
	node := Cluster(schema).FindTable(key)
	if node == nil {
		return nil, false
	}

	members := make(map[string]bool, len(node.Items))
	for _, item := range node.Items {
		members[item.Key] = true
	}

	out := &models.Schema{Tables: []models.Table{}, Relations: []models.Relation{}}
	for _, table := range schema.Tables {
		if members[table.Key] {
			table.Items = slices.Clone(table.Items)
			out.Tables = append(out.Tables, table)
		}
	}
	for _, rel := range schema.Relations {
		if members[rel.From] && members[rel.To] {
			out.Relations = append(out.Relations, rel)
		}
	}
	return out, true
}

func overlapping(entities []*AbstractEntity, items []string) []*AbstractEntity {
	var matches []*AbstractEntity
	for _, ae := range entities {
		if intersects(items, ae.Keys) {
			matches = append(matches, ae)
		}
	}
	return matches
}

func intersects(a, b []string) bool {
	for _, x := range a {
		if slices.Contains(b, x) {
			return true
		}
	}
	return false
}

// union merges two column sets into a sorted set without duplicates
func union(a, b []string) []string {
	out := append(append([]string(nil), a...), b...)
	slices.Sort(out)
	return slices.Compact(out)
}
