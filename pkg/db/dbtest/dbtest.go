// Package dbtest opens throwaway databases for package tests.
package dbtest

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// New opens an isolated in-memory SQLite database named after name.
func New(name string) (*gorm.DB, error) {
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", name)), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return conn, nil
}
