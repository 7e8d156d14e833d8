package integrator

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-openapi/inflect"
	"github.com/sirupsen/logrus"
	"github.com/vitebski/schema-explorer/internal/grammar"
	"github.com/vitebski/schema-explorer/pkg/models"
)

// DefaultExtension is the extension of the source files that are mined
const DefaultExtension = ".java"

// Integrator enriches a schema with relations mined from annotated source
type Integrator struct {
	Logger    *logrus.Logger
	Extension string
	// Inflect retries unmatched class names as underscored plurals
	Inflect bool
}

// Stats counts what one Integrate pass did
type Stats struct {
	Files     int
	Skipped   int
	Classes   int
	Relations int
}

// NewIntegrator creates a new integrator for Java sources
func NewIntegrator(logger *logrus.Logger) *Integrator {
	return &Integrator{
		Logger:    logger,
		Extension: DefaultExtension,
	}
}

// Integrate walks root and appends an FKC relation to schema for every
// join column it can resolve on both ends. The schema is modified in place
// and returned. Enrichment is best effort: an unreadable or unlexable file is
// logged and skipped, a traversal error ends the pass early, and in neither
// case is an error returned.
func (in *Integrator) Integrate(schema *models.Schema, root string) *models.Schema {
	in.Run(schema, root)
	return schema
}

// Run is Integrate that also reports what was done
func (in *Integrator) Run(schema *models.Schema, root string) Stats {
	var stats Stats
	if schema == nil || root == "" {
		return stats
	}

	info, err := os.Stat(root)
	if err != nil {
		in.Logger.Warnf("Source directory %s is not accessible: %v", root, err)
		return stats
	}
	if !info.IsDir() {
		in.Logger.Warnf("Source path %s is not a directory", root)
		return stats
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != in.Extension {
			return nil
		}

		stats.Files++
		in.Logger.Debugf("Processing: %s", path)

		source, err := os.ReadFile(path)
		if err != nil {
			in.Logger.Warnf("Error reading %s: %v", path, err)
			stats.Skipped++
			return nil
		}

		classes, err := grammar.ParseSource(string(source))
		if err != nil {
			in.Logger.Warnf("Skipping %s: %v", path, err)
			stats.Skipped++
			return nil
		}

		for _, class := range classes {
			in.handleClass(schema, class, &stats)
		}
		return nil
	})
	if err != nil {
		in.Logger.Warnf("Source integration stopped: %v", err)
	}

	in.Logger.Infof("Mined %d relations from %d classes in %d files (%d skipped)",
		stats.Relations, stats.Classes, stats.Files, stats.Skipped)
	return stats
}

func (in *Integrator) handleClass(schema *models.Schema, class *grammar.Class, stats *Stats) {
	stats.Classes++
	src := in.resolveTable(schema, class.Table)
	if src == nil {
		in.Logger.Debugf("No table for class %s", class.Table)
	}

	for _, child := range class.Children {
		switch node := child.(type) {
		case *grammar.Class:
			in.handleClass(schema, node, stats)
		case *grammar.Relation:
			if src != nil {
				in.handleRelation(schema, src, node, stats)
			}
		}
	}
}

func (in *Integrator) handleRelation(schema *models.Schema, src *models.Table, rel *grammar.Relation, stats *Stats) {
	fromc := rel.Column
	if column := src.FindColumn(rel.Column); column != nil {
		column.FKC = true
		fromc = column.Key
	}

	dst := in.resolveTable(schema, rel.Type)
	if dst == nil {
		in.Logger.Debugf("No table for %s.%s type %s", src.Key, fromc, rel.Type)
		return
	}

	toc := rel.ReferencedColumn
	if toc == "" {
		toc = fromc
	}
	if column := dst.FindColumn(toc); column != nil {
		toc = column.Key
	}

	mined := models.Relation{
		From:     src.Key,
		FromC:    fromc,
		To:       dst.Key,
		ToC:      toc,
		Category: models.CategoryFKC,
	}
	if schema.HasRelation(mined) {
		return
	}
	schema.Relations = append(schema.Relations, mined)
	stats.Relations++
	in.Logger.Debugf("Found %s relation %s.%s -> %s.%s", rel.Cardinality, mined.From, mined.FromC, mined.To, mined.ToC)
}

// resolveTable matches a class or type name to a table ignoring case. With
// Inflect set, OrderItem also matches order_item and order_items.
func (in *Integrator) resolveTable(schema *models.Schema, name string) *models.Table {
	if table := schema.FindTable(name); table != nil {
		return table
	}
	if !in.Inflect {
		return nil
	}

	underscored := inflect.Underscore(name)
	if table := schema.FindTable(underscored); table != nil {
		return table
	}
	plural := inflect.Pluralize(underscored)
	if strings.EqualFold(plural, underscored) {
		return nil
	}
	return schema.FindTable(plural)
}
