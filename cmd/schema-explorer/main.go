package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vitebski/schema-explorer/internal/analyzer"
	"github.com/vitebski/schema-explorer/internal/cluster"
	"github.com/vitebski/schema-explorer/internal/connector"
	"github.com/vitebski/schema-explorer/internal/integrator"
	"github.com/vitebski/schema-explorer/internal/utils"
	"github.com/vitebski/schema-explorer/pkg/models"
)

const (
	viewConcrete = "concrete"
	viewAbstract = "abstract"
)

type options struct {
	host       string
	user       string
	password   string
	database   string
	port       string
	envFile    string
	schemaFile string
	source     string
	view       string
	focus      string
	drill      string
	format     string
	inflect    bool
	logLevel   string
}

func main() {
	var opts options

	rootCmd := &cobra.Command{
		Use:   "schema-explorer",
		Short: "Explore a database schema as concrete or abstract diagrams",
		Long: `Schema Explorer

Reflects a MySQL schema (or reads a saved one), mines extra foreign keys
from JPA-annotated Java sources and clusters the tables into abstract
entities and relations.`,
		Run: func(cmd *cobra.Command, args []string) {
			// Setup logging
			logger := utils.SetupLogging(opts.logLevel)

			if err := run(&opts, logger, os.Stdout); err != nil {
				logger.Errorf("%v", err)
				os.Exit(1)
			}
		},
	}

	// Define flags
	rootCmd.Flags().StringVarP(&opts.host, "host", "H", "", "MySQL host (default: localhost)")
	rootCmd.Flags().StringVarP(&opts.user, "user", "u", "", "MySQL user (default: root)")
	rootCmd.Flags().StringVarP(&opts.password, "password", "p", "", "MySQL password")
	rootCmd.Flags().StringVarP(&opts.database, "database", "d", "", "MySQL database name")
	rootCmd.Flags().StringVarP(&opts.port, "port", "P", "", "MySQL port (default: 3306)")
	rootCmd.Flags().StringVarP(&opts.envFile, "env-file", "e", ".env", "Path to .env file")
	rootCmd.Flags().StringVarP(&opts.schemaFile, "schema-file", "f", "", "Read the schema from a JSON or YAML file instead of MySQL")
	rootCmd.Flags().StringVarP(&opts.source, "source", "s", "", "Java source directory to mine relations from (default: $SCHEMA_SOURCE_DIR)")
	rootCmd.Flags().StringVarP(&opts.view, "view", "V", viewConcrete, "View to produce (concrete, abstract)")
	rootCmd.Flags().StringVar(&opts.focus, "focus", "", "Concrete view: only show this table and its neighbours")
	rootCmd.Flags().StringVar(&opts.drill, "drill", "", "Abstract view: show the tables clustered under this AE or AR")
	rootCmd.Flags().StringVarP(&opts.format, "format", "o", utils.FormatReport, "Output format (report, json, yaml)")
	rootCmd.Flags().BoolVar(&opts.inflect, "inflect", false, "Also match class names to underscored and pluralized table names")
	rootCmd.Flags().StringVarP(&opts.logLevel, "log-level", "l", "", "Log level (debug, info, warn, error)")

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// run loads the schema, mines the source tree and writes the requested view
// to out. The database connection, if any, is closed before it returns.
func run(opts *options, logger *logrus.Logger, out io.Writer) error {
	if opts.view != viewConcrete && opts.view != viewAbstract {
		return fmt.Errorf("unknown view %q (expected %s or %s)", opts.view, viewConcrete, viewAbstract)
	}
	if opts.format != utils.FormatReport && opts.format != utils.FormatJSON && opts.format != utils.FormatYAML {
		return fmt.Errorf("unknown format %q (expected report, json or yaml)", opts.format)
	}

	// Load environment variables
	utils.LoadEnvironmentVariables(opts.envFile, logger)

	var (
		schemaAnalyzer *analyzer.SchemaAnalyzer
		schema         *models.Schema
		err            error
	)
	if opts.schemaFile != "" {
		schemaAnalyzer = analyzer.NewSchemaAnalyzer(nil, logger)
		if schema, err = schemaAnalyzer.LoadSchemaFile(opts.schemaFile); err != nil {
			return fmt.Errorf("failed to load schema file: %w", err)
		}
	} else {
		// Get connection parameters from environment if not provided
		host := opts.host
		if host == "" {
			host = utils.GetEnv("MYSQL_HOST", "localhost")
		}
		user := opts.user
		if user == "" {
			user = utils.GetEnv("MYSQL_USER", "root")
		}
		password := opts.password
		if password == "" {
			password = os.Getenv("MYSQL_PASSWORD")
		}
		database := opts.database
		if database == "" {
			database = os.Getenv("MYSQL_DATABASE")
		}
		port := opts.port
		if port == "" {
			port = utils.GetEnv("MYSQL_PORT", "3306")
		}

		// Validate connection parameters
		if !utils.ValidateConnectionParams(host, user, password, database, port, logger) {
			return fmt.Errorf("invalid connection parameters")
		}

		db := connector.NewDatabaseConnector(host, user, password, database, port, logger)
		if err := db.Connect(); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Disconnect()

		schemaAnalyzer = analyzer.NewSchemaAnalyzer(db, logger)
		if schema, err = schemaAnalyzer.LoadSchema(); err != nil {
			return fmt.Errorf("failed to load schema: %w", err)
		}
	}

	// Mine relations from application source
	source := opts.source
	if source == "" {
		source = os.Getenv("SCHEMA_SOURCE_DIR")
	}
	if source != "" {
		in := integrator.NewIntegrator(logger)
		in.Inflect = opts.inflect
		in.Integrate(schema, source)
		schemaAnalyzer.Use(schema)
	}

	return render(out, schemaAnalyzer, schema, opts)
}

// render writes the requested view of schema to out
func render(out io.Writer, schemaAnalyzer *analyzer.SchemaAnalyzer, schema *models.Schema, opts *options) error {
	if opts.view == viewAbstract && opts.drill == "" {
		abstract := cluster.Cluster(schema)
		if opts.format == utils.FormatReport {
			utils.PrintAbstractSchema(out, abstract)
			return nil
		}
		return utils.WriteOutput(out, opts.format, abstract)
	}

	switch {
	case opts.view == viewAbstract:
		sub, ok := cluster.DrillDown(schema, opts.drill)
		if !ok {
			return fmt.Errorf("no abstract entity or relation named %s", opts.drill)
		}
		schemaAnalyzer.Use(sub)
	case opts.focus != "":
		sub, ok := schemaAnalyzer.Focus(opts.focus)
		if !ok {
			return fmt.Errorf("no table named %s", opts.focus)
		}
		schemaAnalyzer.Use(sub)
	}

	if opts.format == utils.FormatReport {
		utils.PrintSchemaAnalysis(out, schemaAnalyzer)
		return nil
	}
	return utils.WriteOutput(out, opts.format, schemaAnalyzer.Schema)
}
