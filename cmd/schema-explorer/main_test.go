package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/vitebski/schema-explorer/internal/utils"
)

const fooBarJSON = `{
  "tables": [
    {"key": "bar", "items": [{"key": "id", "type": "int", "default": null, "PK": true, "FK": false, "FKC": false}]},
    {"key": "foo", "items": [
      {"key": "id", "type": "int", "default": null, "PK": true, "FK": false, "FKC": false},
      {"key": "bar_id", "type": "int", "default": null, "PK": false, "FK": false, "FKC": false}
    ]}
  ],
  "relations": []
}`

const fooEntity = `@Entity
@Table(name = "foo")
public class Foo {
    @ManyToOne
    @JoinColumn(name = "bar_id", referencedColumnName = "id")
    private Bar bar;
}
`

func createTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func testOptions(t *testing.T) *options {
	t.Helper()
	t.Setenv("SCHEMA_SOURCE_DIR", "")

	dir := t.TempDir()
	schemaFile := filepath.Join(dir, "schema.json")
	if err := os.WriteFile(schemaFile, []byte(fooBarJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	return &options{
		envFile:    filepath.Join(dir, ".env"),
		schemaFile: schemaFile,
		view:       viewConcrete,
		format:     utils.FormatJSON,
	}
}

func TestRunRejectsUnknownFlags(t *testing.T) {
	opts := testOptions(t)
	opts.view = "graph"
	if err := run(opts, createTestLogger(), &bytes.Buffer{}); err == nil {
		t.Error("Expected an error for an unknown view")
	}

	opts = testOptions(t)
	opts.format = "xml"
	if err := run(opts, createTestLogger(), &bytes.Buffer{}); err == nil {
		t.Error("Expected an error for an unknown format")
	}
}

func TestRunRequiresDatabaseWithoutSchemaFile(t *testing.T) {
	opts := testOptions(t)
	opts.schemaFile = ""
	t.Setenv("MYSQL_DATABASE", "")

	if err := run(opts, createTestLogger(), &bytes.Buffer{}); err == nil {
		t.Error("Expected an error without a database name")
	}
}

func TestRunMinesSource(t *testing.T) {
	opts := testOptions(t)
	opts.source = t.TempDir()
	if err := os.WriteFile(filepath.Join(opts.source, "Foo.java"), []byte(fooEntity), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := run(opts, createTestLogger(), &out); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), `"category": "FKC"`) {
		t.Errorf("Expected a mined relation in the output, got:\n%s", out.String())
	}
}

func TestRunFocus(t *testing.T) {
	opts := testOptions(t)
	opts.focus = "BAR"

	var out bytes.Buffer
	if err := run(opts, createTestLogger(), &out); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), `"key": "bar"`) || strings.Contains(out.String(), `"key": "foo"`) {
		t.Errorf("Expected only bar in the focused schema, got:\n%s", out.String())
	}

	opts = testOptions(t)
	opts.focus = "missing"
	if err := run(opts, createTestLogger(), &bytes.Buffer{}); err == nil {
		t.Error("Expected an error for an unknown focus table")
	}
}

func TestRunAbstractView(t *testing.T) {
	opts := testOptions(t)
	opts.view = viewAbstract
	opts.format = utils.FormatReport

	var out bytes.Buffer
	if err := run(opts, createTestLogger(), &out); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "AE1   bar, foo") {
		t.Errorf("Expected bar and foo to share an entity, got:\n%s", out.String())
	}
}

func TestRunDrillDown(t *testing.T) {
	opts := testOptions(t)
	opts.view = viewAbstract
	opts.drill = "AE1"
	opts.format = utils.FormatYAML

	var out bytes.Buffer
	if err := run(opts, createTestLogger(), &out); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "key: bar_id") {
		t.Errorf("Expected the member tables in the output, got:\n%s", out.String())
	}

	opts = testOptions(t)
	opts.view = viewAbstract
	opts.drill = "AE9"
	if err := run(opts, createTestLogger(), &bytes.Buffer{}); err == nil {
		t.Error("Expected an error for an unknown abstract node")
	}
}
