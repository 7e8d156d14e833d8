package connector

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
)

func createTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func TestNewDatabaseConnector(t *testing.T) {
	t.Setenv("MYSQL_HOST", "test-host")
	t.Setenv("MYSQL_USER", "test-user")
	t.Setenv("MYSQL_PASSWORD", "test-password")
	t.Setenv("MYSQL_DATABASE", "test-database")
	t.Setenv("MYSQL_PORT", "3307")

	logger := createTestLogger()

	// Environment fallbacks
	db := NewDatabaseConnector("", "", "", "", "", logger)
	if db.Host != "test-host" {
		t.Errorf("Expected host to be 'test-host', got '%s'", db.Host)
	}
	if db.User != "test-user" {
		t.Errorf("Expected user to be 'test-user', got '%s'", db.User)
	}
	if db.Password != "test-password" {
		t.Errorf("Expected password to be 'test-password', got '%s'", db.Password)
	}
	if db.Database != "test-database" {
		t.Errorf("Expected database to be 'test-database', got '%s'", db.Database)
	}
	if db.Port != "3307" {
		t.Errorf("Expected port to be '3307', got '%s'", db.Port)
	}

	// Explicit parameters win
	db = NewDatabaseConnector("explicit-host", "explicit-user", "explicit-password", "explicit-database", "3308", logger)
	if db.Host != "explicit-host" {
		t.Errorf("Expected host to be 'explicit-host', got '%s'", db.Host)
	}
	if db.Database != "explicit-database" {
		t.Errorf("Expected database to be 'explicit-database', got '%s'", db.Database)
	}
	if db.Port != "3308" {
		t.Errorf("Expected port to be '3308', got '%s'", db.Port)
	}
}

func TestDSN(t *testing.T) {
	dc := NewDatabaseConnector("db.local", "reader", "p@ss:word/", "inventory", "3307", createTestLogger())

	cfg, err := mysql.ParseDSN(dc.DSN())
	if err != nil {
		t.Fatalf("DSN does not parse: %v", err)
	}
	if cfg.Addr != "db.local:3307" {
		t.Errorf("Expected addr 'db.local:3307', got '%s'", cfg.Addr)
	}
	if cfg.Passwd != "p@ss:word/" {
		t.Errorf("Expected password to survive formatting, got '%s'", cfg.Passwd)
	}
	if cfg.DBName != "inventory" {
		t.Errorf("Expected database 'inventory', got '%s'", cfg.DBName)
	}
	if !cfg.ParseTime {
		t.Error("Expected parseTime to be enabled")
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("Expected 10s timeout, got %v", cfg.Timeout)
	}
}

func TestConnectRequiresDatabase(t *testing.T) {
	t.Setenv("MYSQL_DATABASE", "")
	dc := NewDatabaseConnector("localhost", "root", "", "", "3306", createTestLogger())

	if err := dc.Connect(); err == nil {
		t.Error("Expected an error without a database name")
	}
}

func TestExecuteQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Error creating mock: %v", err)
	}
	dc := NewDatabaseConnectorWithDB(db, "shop", createTestLogger())

	mock.ExpectQuery("SELECT table_name, table_comment FROM information_schema.tables").
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "table_comment"}).
			AddRow([]byte("orders"), nil).
			AddRow("customers", []byte("people")))

	rows, err := dc.ExecuteQuery("SELECT table_name, table_comment FROM information_schema.tables WHERE table_schema = ?", "shop")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0]["table_name"] != "orders" {
		t.Errorf("Expected []byte to be converted to string, got %#v", rows[0]["table_name"])
	}
	if rows[0]["table_comment"] != nil {
		t.Errorf("Expected NULL to be nil, got %#v", rows[0]["table_comment"])
	}
	if rows[1]["table_comment"] != "people" {
		t.Errorf("Expected 'people', got %#v", rows[1]["table_comment"])
	}

	mock.ExpectClose()
	dc.Disconnect()
	if dc.DB != nil {
		t.Error("Expected handle to be released")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestExecuteQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Error creating mock: %v", err)
	}
	defer db.Close()
	dc := NewDatabaseConnectorWithDB(db, "shop", createTestLogger())

	boom := errors.New("boom")
	mock.ExpectQuery("SELECT 1").WillReturnError(boom)

	if _, err := dc.ExecuteQuery("SELECT 1"); !errors.Is(err, boom) {
		t.Errorf("Expected query error, got %v", err)
	}
}
