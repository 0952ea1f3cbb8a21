package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	puresqlite "github.com/glebarez/sqlite"
	"github.com/smallbiznis/repairdesk/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	DialectSQLite     = "sqlite"
	DialectSQLitePure = "sqlite-pure"
	DialectPostgres   = "postgres"
	DialectMySQL      = "mysql"
)

// Dialect builds the GORM dialector for cfg.DBType.
func Dialect(cfg config.Config) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.DBType)) {
	case DialectMySQL:
		return mysql.Open(fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC&multiStatements=true",
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBName,
		)), nil
	case DialectPostgres:
		return postgres.Open(fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.DBHost,
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBName,
			cfg.DBPort,
			cfg.DBSSLMode,
		)), nil
	case DialectSQLite, "sqlite3", "":
		if err := ensureDir(cfg.DBPath); err != nil {
			return nil, err
		}
		return sqlite.Open(fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", cfg.DBPath)), nil
	case DialectSQLitePure:
		if err := ensureDir(cfg.DBPath); err != nil {
			return nil, err
		}
		return puresqlite.Open(fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.DBPath)), nil
	default:
		return nil, fmt.Errorf("unsupported %s type", cfg.DBType)
	}
}

// MigrationDialect names the schema directory and migrate driver for cfg.DBType.
func MigrationDialect(dbType string) string {
	switch strings.ToLower(strings.TrimSpace(dbType)) {
	case DialectPostgres:
		return "postgres"
	case DialectMySQL:
		return "mysql"
	default:
		return "sqlite3"
	}
}

func ensureDir(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("DATABASE_PATH is required for sqlite")
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	return nil
}
