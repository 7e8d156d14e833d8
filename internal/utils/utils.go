package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/vitebski/schema-explorer/internal/analyzer"
	"github.com/vitebski/schema-explorer/pkg/models"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by WriteOutput
const (
	FormatReport = "report"
	FormatJSON   = "json"
	FormatYAML   = "yaml"
)

// SetupLogging configures the logging system. Logs go to stderr so that
// stdout only carries the requested output.
func SetupLogging(logLevel string) *logrus.Logger {
	logger := logrus.New()

	// Get log level from environment variable or parameter
	levelStr := logLevel
	if levelStr == "" {
		levelStr = GetEnv("SCHEMA_LOG_LEVEL", "info")
	}

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}

	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetOutput(os.Stderr)

	logger.Debugf("Logging configured with level: %s", level)
	return logger
}

// LoadEnvironmentVariables loads environment variables from an .env file and
// reports whether every variable in required is set afterwards
func LoadEnvironmentVariables(envFile string, logger *logrus.Logger, required ...string) bool {
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			logger.Warningf("Error loading %s file: %v", envFile, err)
		} else {
			logger.Infof("Loaded environment variables from %s", envFile)
		}
	} else {
		sampleEnvFile := envFile + ".sample"
		if _, err := os.Stat(sampleEnvFile); err == nil {
			logger.Infof("No %s file found, but %s exists. Consider copying %s to %s and updating it.",
				envFile, sampleEnvFile, sampleEnvFile, envFile)
		} else {
			logger.Debugf("No %s file found, using existing environment variables", envFile)
		}
	}

	var missingVars []string
	for _, v := range required {
		if os.Getenv(v) == "" {
			missingVars = append(missingVars, v)
		}
	}
	if len(missingVars) > 0 {
		logger.Warningf("Missing environment variables: %s", strings.Join(missingVars, ", "))
		logger.Info("These can be provided via command line arguments, environment variables, or a .env file")
		return false
	}

	if logger.IsLevelEnabled(logrus.DebugLevel) {
		for _, env := range os.Environ() {
			if !strings.HasPrefix(env, "MYSQL_") && !strings.HasPrefix(env, "SCHEMA_") {
				continue
			}
			parts := strings.SplitN(env, "=", 2)
			if parts[0] == "MYSQL_PASSWORD" {
				logger.Debugf("%s=********", parts[0])
			} else {
				logger.Debug(env)
			}
		}
	}
	return true
}

// GetEnv gets an environment variable or returns a default value
func GetEnv(varName, defaultValue string) string {
	if value := os.Getenv(varName); value != "" {
		return value
	}
	return defaultValue
}

// ValidateConnectionParams validates database connection parameters
func ValidateConnectionParams(host, user, password, database, port string, logger *logrus.Logger) bool {
	if host == "" {
		logger.Error("Database host is required")
		return false
	}

	if user == "" {
		logger.Error("Database user is required")
		return false
	}

	if password == "" { // Empty password is allowed
		logger.Warning("Database password is empty")
	}

	if database == "" {
		logger.Error("Database name is required")
		return false
	}

	if _, err := strconv.Atoi(port); err != nil {
		logger.Errorf("Invalid port number: %s", port)
		return false
	}

	return true
}

// WriteOutput encodes v as JSON or YAML
func WriteOutput(w io.Writer, format string, v interface{}) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

func banner(w io.Writer, title string) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 80))
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("=", 80))
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key, ok := range set {
		if ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// PrintSchemaAnalysis prints the concrete view of the analyzed schema
func PrintSchemaAnalysis(w io.Writer, schemaAnalyzer *analyzer.SchemaAnalyzer) {
	schema := schemaAnalyzer.Schema
	if schema == nil {
		schema = &models.Schema{}
	}
	circularTables := schemaAnalyzer.GetCircularTables()
	manyToManyTables := schemaAnalyzer.ManyToManyTables

	declared, mined, flagged := 0, 0, 0
	for _, rel := range schema.Relations {
		if rel.Category == models.CategoryFKC {
			mined++
		} else {
			declared++
		}
	}
	for _, table := range schema.Tables {
		for _, column := range table.Items {
			if column.FKC {
				flagged++
			}
		}
	}

	banner(w, "DATABASE SCHEMA ANALYSIS REPORT")

	fmt.Fprintln(w, "\n1. BASIC STATISTICS")
	fmt.Fprintf(w, "   Total tables: %d\n", len(schema.Tables))
	fmt.Fprintf(w, "   Total views: %d\n", len(schemaAnalyzer.Views))
	fmt.Fprintf(w, "   Declared relations (FK): %d\n", declared)
	fmt.Fprintf(w, "   Mined relations (FKC): %d\n", mined)
	fmt.Fprintf(w, "   Columns flagged by source annotations: %d\n", flagged)

	categories := map[models.TableCategory][]string{}
	for _, table := range schemaAnalyzer.Tables {
		category := schemaAnalyzer.GetTableCategory(table, circularTables)
		categories[category] = append(categories[category], table)
	}

	fmt.Fprintln(w, "\n2. TABLE CATEGORIES")
	for _, category := range []models.TableCategory{models.Standalone, models.Dependent, models.ManyToMany, models.Circular} {
		fmt.Fprintf(w, "   %s tables: %d\n", category, len(categories[category]))
	}

	if len(circularTables) > 0 {
		fmt.Fprintln(w, "\n3. CIRCULAR DEPENDENCIES")
		fmt.Fprintf(w, "   Tables involved: %s\n", strings.Join(sortedKeys(circularTables), ", "))
		if len(schemaAnalyzer.DirectCircularDeps) > 0 {
			fmt.Fprintln(w, "\n   Direct circular dependencies:")
			for _, dep := range schemaAnalyzer.DirectCircularDeps {
				fmt.Fprintf(w, "     %s <-> %s\n", dep[0], dep[1])
			}
		}
	}

	if len(manyToManyTables) > 0 {
		fmt.Fprintln(w, "\n4. MANY-TO-MANY RELATIONSHIP TABLES")
		fmt.Fprintf(w, "   Tables: %s\n", strings.Join(sortedKeys(manyToManyTables), ", "))
	}

	components := schemaAnalyzer.Components()
	fmt.Fprintln(w, "\n5. CONNECTED COMPONENTS")
	for i, component := range components {
		fmt.Fprintf(w, "   %3d. %s\n", i+1, strings.Join(component, ", "))
	}

	if len(schema.Relations) > 0 {
		fmt.Fprintln(w, "\n6. RELATIONS")
		for _, rel := range schema.Relations {
			fmt.Fprintf(w, "   %-3s %s.%s -> %s.%s\n", rel.Category, rel.From, rel.FromC, rel.To, rel.ToC)
		}
	}

	if order, ok := schemaAnalyzer.GetTableOrder(); ok && len(order) > 0 {
		fmt.Fprintln(w, "\n7. DEPENDENCY ORDER")
		for i, table := range order {
			fmt.Fprintf(w, "   %3d. %s (%s)\n", i+1, table, schemaAnalyzer.GetTableCategory(table, circularTables))
		}
	}

	fmt.Fprintln(w, "\n"+strings.Repeat("=", 80))
}

// PrintAbstractSchema prints the abstract entities and relations of a
// clustered schema
func PrintAbstractSchema(w io.Writer, abstract *models.AbstractSchema) {
	joins := map[string][]string{}
	for _, edge := range abstract.Relations {
		joins[edge.To] = append(joins[edge.To], edge.From)
	}

	var entities, relations []models.AbstractTable
	for _, node := range abstract.Tables {
		if node.Category == models.CategoryEntity {
			entities = append(entities, node)
		} else {
			relations = append(relations, node)
		}
	}

	banner(w, "ABSTRACT SCHEMA REPORT")

	fmt.Fprintln(w, "\n1. ABSTRACT ENTITIES")
	fmt.Fprintf(w, "   Total: %d\n", len(entities))
	for _, node := range entities {
		fmt.Fprintf(w, "   %-5s %s\n", node.Key, strings.Join(itemKeys(node.Items), ", "))
	}

	fmt.Fprintln(w, "\n2. ABSTRACT RELATIONS")
	fmt.Fprintf(w, "   Total: %d\n", len(relations))
	for _, node := range relations {
		fmt.Fprintf(w, "   %-5s %s\n", node.Key, strings.Join(itemKeys(node.Items), ", "))
		fmt.Fprintf(w, "         joins %s\n", strings.Join(joins[node.Key], ", "))
	}

	fmt.Fprintln(w, "\n"+strings.Repeat("=", 80))
}

func itemKeys(items []models.ItemRef) []string {
	keys := make([]string, len(items))
	for i, item := range items {
		keys[i] = item.Key
	}
	return keys
}
