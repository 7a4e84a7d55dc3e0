// Package dbtest opens throwaway databases for package tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/db"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewSQLite returns a migrated in-memory database private to the test and installs it as the shared handle.
func NewSQLite(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=off", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), db.GormConfig())
	if err != nil {
		t.Fatalf("could not open sqlite database: %s", err.Error())
	}
	if err := gdb.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("error migration: %s", err.Error())
	}
	sqlDB, _ := gdb.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlDB.Close()
	})
	db.NewDB(gdb)
	return gdb
}

// NewMock returns a postgres-dialect handle backed by sqlmock, for failure paths sqlite cannot produce.
func NewMock(t testing.TB) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), db.GormConfig())
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening gorm database", err)
	}
	t.Cleanup(func() {
		sqlDB.Close()
	})
	return gdb, mock
}
