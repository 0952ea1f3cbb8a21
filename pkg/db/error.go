package db

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	ErrKindUniqueViolation = "unique_violation"
	ErrKindConnection      = "connection"
	ErrKindTimeout         = "timeout"
	ErrKindUnknown         = "unknown"
)

func IsDuplicateKeyErr(err error) bool {
	return Classify(err) == ErrKindUniqueViolation
}

// Classify buckets a store error into a small label set safe for logs and metrics.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrKindUniqueViolation
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrKindTimeout
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return ErrKindUniqueViolation
		case pgErr.Code == "57014":
			return ErrKindTimeout
		case strings.HasPrefix(pgErr.Code, "08"):
			return ErrKindConnection
		}
		return ErrKindUnknown
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062:
			return ErrKindUniqueViolation
		case 1205, 3024:
			return ErrKindTimeout
		case 1040, 1045, 2002, 2003, 2006, 2013:
			return ErrKindConnection
		}
		return ErrKindUnknown
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrKindTimeout
		}
		return ErrKindConnection
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return ErrKindUniqueViolation
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "SQLITE_BUSY"):
		return ErrKindTimeout
	case strings.Contains(msg, "sql: database is closed"), strings.Contains(msg, "unable to open database file"):
		return ErrKindConnection
	}
	return ErrKindUnknown
}
