package analyzer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vitebski/schema-explorer/internal/connector"
	"github.com/vitebski/schema-explorer/pkg/models"
	"github.com/yourbasic/graph"
	"gopkg.in/yaml.v3"
)

// SchemaAnalyzer loads a schema and analyzes the graph formed by its relations
type SchemaAnalyzer struct {
	DB                 *connector.DatabaseConnector
	Schema             *models.Schema
	Tables             []string
	Views              []string
	ManyToManyTables   map[string]bool
	DependencyGraph    *graph.Mutable
	UndirectedGraph    *graph.Mutable
	TableIndexMap      map[string]int
	IndexTableMap      map[int]string
	DirectCircularDeps [][]string
	Logger             *logrus.Logger
}

// NewSchemaAnalyzer creates a new schema analyzer. db may be nil when the
// schema comes from a file.
func NewSchemaAnalyzer(db *connector.DatabaseConnector, logger *logrus.Logger) *SchemaAnalyzer {
	return &SchemaAnalyzer{
		DB:               db,
		ManyToManyTables: make(map[string]bool),
		TableIndexMap:    make(map[string]int),
		IndexTableMap:    make(map[int]string),
		Logger:           logger,
	}
}

// LoadSchema reflects the connected database into a Schema
func (sa *SchemaAnalyzer) LoadSchema() (*models.Schema, error) {
	if sa.DB == nil {
		return nil, fmt.Errorf("no database connection configured")
	}

	tablesQuery := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ?
		AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`
	tablesResult, err := sa.DB.ExecuteQuery(tablesQuery, sa.DB.Database)
	if err != nil {
		sa.Logger.Errorf("Error getting tables: %v", err)
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	viewsQuery := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ?
		AND table_type = 'VIEW'
		ORDER BY table_name
	`
	viewsResult, err := sa.DB.ExecuteQuery(viewsQuery, sa.DB.Database)
	if err != nil {
		sa.Logger.Warningf("Error getting views: %v", err)
	}
	var views []string
	for _, row := range viewsResult {
		views = append(views, str(row, "table_name"))
	}

	schema := &models.Schema{Tables: []models.Table{}, Relations: []models.Relation{}}
	for _, row := range tablesResult {
		name := str(row, "table_name")

		columnsQuery := `
			SELECT
				column_name,
				column_type,
				column_default,
				is_nullable,
				column_key,
				extra,
				column_comment
			FROM information_schema.columns
			WHERE table_schema = ?
			AND table_name = ?
			ORDER BY ordinal_position
		`
		columnsResult, err := sa.DB.ExecuteQuery(columnsQuery, sa.DB.Database, name)
		if err != nil {
			sa.Logger.Warningf("Failed to retrieve columns for table %s: %v", name, err)
			continue
		}

		table := models.Table{Key: name, Items: make([]models.Column, 0, len(columnsResult))}
		for _, col := range columnsResult {
			column := models.Column{
				Key:      str(col, "column_name"),
				Type:     str(col, "column_type"),
				PK:       str(col, "column_key") == "PRI",
				Nullable: str(col, "is_nullable") == "YES",
				Extra:    str(col, "extra"),
				Comment:  str(col, "column_comment"),
			}
			if col["column_default"] != nil {
				def := str(col, "column_default")
				column.Default = &def
			}
			table.Items = append(table.Items, column)
		}
		schema.Tables = append(schema.Tables, table)
	}

	fkQuery := `
		SELECT
			table_name,
			column_name,
			referenced_table_name,
			referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ?
		AND referenced_table_name IS NOT NULL
		ORDER BY table_name, column_name
	`
	fkResult, err := sa.DB.ExecuteQuery(fkQuery, sa.DB.Database)
	if err != nil {
		sa.Logger.Errorf("Error getting foreign keys: %v", err)
		return nil, fmt.Errorf("failed to list foreign keys: %w", err)
	}

	for _, row := range fkResult {
		rel := models.Relation{
			From:     str(row, "table_name"),
			FromC:    str(row, "column_name"),
			To:       str(row, "referenced_table_name"),
			ToC:      str(row, "referenced_column_name"),
			Category: models.CategoryFK,
		}
		if table := schema.FindTable(rel.From); table != nil {
			if column := table.FindColumn(rel.FromC); column != nil {
				column.FK = true
			}
		}
		schema.Relations = append(schema.Relations, rel)
	}

	sa.Logger.Infof("Loaded %d tables, %d views and %d foreign keys from %s",
		len(schema.Tables), len(views), len(schema.Relations), sa.DB.Database)
	sa.Use(schema)
	sa.Views = views
	return schema, nil
}

// LoadSchemaFile reads a Schema saved as JSON, or as YAML when the file
// extension says so
func (sa *SchemaAnalyzer) LoadSchemaFile(path string) (*models.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}

	schema := &models.Schema{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, schema)
	default:
		err = json.Unmarshal(data, schema)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema file %s: %w", path, err)
	}
	if schema.Relations == nil {
		schema.Relations = []models.Relation{}
	}

	sa.Logger.Infof("Loaded %d tables and %d relations from %s", len(schema.Tables), len(schema.Relations), path)
	sa.Use(schema)
	return schema, nil
}

// Use makes schema the analyzed schema and rebuilds every derived structure.
// Views are cleared since they belong to the database, not to schema. Call
// it again after the schema's relations change.
func (sa *SchemaAnalyzer) Use(schema *models.Schema) {
	sa.Schema = schema
	sa.Views = nil
	sa.Tables = sa.Tables[:0]
	for _, table := range schema.Tables {
		sa.Tables = append(sa.Tables, table.Key)
	}
	sa.BuildDependencyGraph()
	sa.DetectManyToManyTables()
}

// BuildDependencyGraph builds a directed graph with an edge from every
// referencing table to the table it references, declared and mined alike.
// Mandatory references cost 1 and nullable ones 2.
func (sa *SchemaAnalyzer) BuildDependencyGraph() {
	sa.TableIndexMap = make(map[string]int, len(sa.Tables))
	sa.IndexTableMap = make(map[int]string, len(sa.Tables))
	for i, table := range sa.Tables {
		sa.TableIndexMap[table] = i
		sa.IndexTableMap[i] = table
	}

	sa.DependencyGraph = graph.New(len(sa.Tables))
	sa.UndirectedGraph = graph.New(len(sa.Tables))
	if sa.Schema == nil {
		return
	}

	for _, rel := range sa.Schema.Relations {
		srcIdx, ok := sa.TableIndexMap[rel.From]
		if !ok {
			sa.Logger.Debugf("Relation from unknown table %s", rel.From)
			continue
		}
		destIdx, ok := sa.TableIndexMap[rel.To]
		if !ok {
			sa.Logger.Debugf("Relation to unknown table %s", rel.To)
			continue
		}

		weight := int64(1)
		if column := sa.Schema.Tables[srcIdx].FindColumn(rel.FromC); column != nil && column.Nullable {
			weight = 2
		}
		sa.DependencyGraph.AddCost(srcIdx, destIdx, weight)
		sa.UndirectedGraph.AddBoth(srcIdx, destIdx)
	}
}

// DetectManyToManyTables flags join tables: at least two references to two
// different tables, references making up half the columns or more, and a
// primary key covering all but at most one of them
func (sa *SchemaAnalyzer) DetectManyToManyTables() {
	sa.ManyToManyTables = make(map[string]bool)
	if sa.Schema == nil {
		return
	}

	for _, table := range sa.Schema.Tables {
		if len(table.Items) == 0 {
			continue
		}

		fks := 0
		referencedTables := make(map[string]bool)
		for _, rel := range sa.Schema.Relations {
			if rel.From == table.Key {
				fks++
				referencedTables[rel.To] = true
			}
		}
		pkColumns := len(table.PrimaryKeys())

		if fks >= 2 && float64(fks)/float64(len(table.Items)) >= 0.5 && pkColumns >= fks-1 && len(referencedTables) >= 2 {
			sa.ManyToManyTables[table.Key] = true
		}
	}
}

// GetCircularTables returns tables involved in circular dependencies: those
// in a strongly connected component with other tables and those that
// reference themselves. DirectCircularDeps is reset to the table pairs that
// reference each other directly.
func (sa *SchemaAnalyzer) GetCircularTables() map[string]bool {
	circularTables := make(map[string]bool)
	sa.DirectCircularDeps = [][]string{}
	if sa.DependencyGraph == nil {
		return circularTables
	}

	for _, component := range graph.StrongComponents(sa.DependencyGraph) {
		if len(component) < 2 {
			continue
		}
		for _, v := range component {
			circularTables[sa.IndexTableMap[v]] = true
		}
	}

	for i := range sa.Tables {
		if sa.DependencyGraph.Edge(i, i) {
			circularTables[sa.IndexTableMap[i]] = true
		}
		for j := i + 1; j < len(sa.Tables); j++ {
			if sa.DependencyGraph.Edge(i, j) && sa.DependencyGraph.Edge(j, i) {
				sa.DirectCircularDeps = append(sa.DirectCircularDeps, []string{sa.IndexTableMap[i], sa.IndexTableMap[j]})
			}
		}
	}
	return circularTables
}

// GetTableOrder lists tables so that referenced tables come before the
// tables referencing them. It reports false, and returns nil, when the
// dependency graph has a cycle.
func (sa *SchemaAnalyzer) GetTableOrder() ([]string, bool) {
	if sa.DependencyGraph == nil {
		return nil, false
	}

	// Self references do not affect the order.
	acyclic := graph.New(len(sa.Tables))
	for v := 0; v < len(sa.Tables); v++ {
		sa.DependencyGraph.Visit(v, func(w int, c int64) bool {
			if v != w {
				acyclic.AddCost(v, w, c)
			}
			return false
		})
	}

	order, ok := graph.TopSort(acyclic)
	if !ok {
		return nil, false
	}
	tables := make([]string, len(order))
	for i, v := range order {
		tables[len(order)-1-i] = sa.IndexTableMap[v]
	}
	return tables, true
}

// GetTableCategory classifies a table for reporting
func (sa *SchemaAnalyzer) GetTableCategory(table string, circularTables map[string]bool) models.TableCategory {
	switch {
	case circularTables[table]:
		return models.Circular
	case sa.ManyToManyTables[table]:
		return models.ManyToMany
	}
	if idx, ok := sa.TableIndexMap[table]; ok && sa.DependencyGraph != nil && sa.DependencyGraph.Degree(idx) > 0 {
		return models.Dependent
	}
	return models.Standalone
}

// Components partitions the tables into groups connected by relations in
// either direction, largest group first
func (sa *SchemaAnalyzer) Components() [][]string {
	if sa.UndirectedGraph == nil {
		return nil
	}

	var components [][]string
	for _, component := range graph.Components(sa.UndirectedGraph) {
		slices.Sort(component)
		tables := make([]string, len(component))
		for i, v := range component {
			tables[i] = sa.IndexTableMap[v]
		}
		components = append(components, tables)
	}
	slices.SortStableFunc(components, func(a, b []string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a[0], b[0])
	})
	return components
}

// Focus returns the sub-schema around one table: the table, every table it
// shares a relation with and the relations touching it. The name is matched
// ignoring case; false means no such table.
func (sa *SchemaAnalyzer) Focus(name string) (*models.Schema, bool) {
	if sa.Schema == nil {
		return nil, false
	}
	center := sa.Schema.FindTable(name)
	if center == nil {
		return nil, false
	}

	members := map[string]bool{center.Key: true}
	if idx, ok := sa.TableIndexMap[center.Key]; ok && sa.UndirectedGraph != nil {
		sa.UndirectedGraph.Visit(idx, func(w int, _ int64) bool {
			members[sa.IndexTableMap[w]] = true
			return false
		})
	}

	out := &models.Schema{Tables: []models.Table{}, Relations: []models.Relation{}}
	for _, table := range sa.Schema.Tables {
		if members[table.Key] {
			table.Items = slices.Clone(table.Items)
			out.Tables = append(out.Tables, table)
		}
	}
	for _, rel := range sa.Schema.Relations {
		if rel.From == center.Key || rel.To == center.Key {
			out.Relations = append(out.Relations, rel)
		}
	}
	return out, true
}

// str reads a column of a query row as text
func str(row map[string]interface{}, key string) string {
	switch v := row[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
