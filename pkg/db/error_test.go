package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/smallbiznis/repairdesk/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"gorm duplicate", gorm.ErrDuplicatedKey, ErrKindUniqueViolation},
		{"deadline", fmt.Errorf("insert: %w", context.DeadlineExceeded), ErrKindTimeout},
		{"postgres unique", &pgconn.PgError{Code: "23505"}, ErrKindUniqueViolation},
		{"postgres connection", &pgconn.PgError{Code: "08006"}, ErrKindConnection},
		{"mysql unique", &mysql.MySQLError{Number: 1062}, ErrKindUniqueViolation},
		{"mysql lock wait", &mysql.MySQLError{Number: 1205}, ErrKindTimeout},
		{"sqlite unique", errors.New("UNIQUE constraint failed: requests.id"), ErrKindUniqueViolation},
		{"sqlite busy", errors.New("database is locked"), ErrKindTimeout},
		{"other", errors.New("boom"), ErrKindUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.True(t, IsDuplicateKeyErr(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsDuplicateKeyErr(errors.New("boom")))
}

func TestDialectRejectsUnknownType(t *testing.T) {
	_, err := Dialect(config.Config{DBType: "oracle"})
	require.Error(t, err)
}

func TestDialectSQLiteCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dialector, err := Dialect(config.Config{DBType: DialectSQLite, DBPath: dir + "/instance/requests.db"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", dialector.Name())
	assert.DirExists(t, dir+"/instance")
}

func TestMigrationDialect(t *testing.T) {
	assert.Equal(t, "sqlite3", MigrationDialect("sqlite"))
	assert.Equal(t, "sqlite3", MigrationDialect("sqlite-pure"))
	assert.Equal(t, "postgres", MigrationDialect("postgres"))
	assert.Equal(t, "mysql", MigrationDialect("MySQL"))
}
