/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqliteBusyTimeoutMS = 5000

// buildSQLiteDSN appends the pragmas every connection needs to dbPath,
// preserving any query parameters already present.
func buildSQLiteDSN(dbPath string) string {
	base, rawQuery, _ := strings.Cut(dbPath, "?")

	query, _ := url.ParseQuery(rawQuery)

	query.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", sqliteBusyTimeoutMS))
	if !isMemoryDSN(base) {
		query.Add("_pragma", "journal_mode(WAL)")
	}
	query.Add("_pragma", "synchronous(NORMAL)")

	return base + "?" + query.Encode()
}

func isMemoryDSN(base string) bool {
	return base == ":memory:" || strings.Contains(base, "mode=memory")
}

// openDatabase opens the sqlite database at path. Tables are created lazily
// by the store, not here.
func openDatabase(cfg *Config, path string) (*gorm.DB, error) {
	logLevel := logger.Silent
	if cfg.verbose {
		logLevel = logger.Warn
	}

	db, err := gorm.Open(sqlite.Open(buildSQLiteDSN(path)), &gorm.Config{
		Logger: logger.New(
			log.New(log.Writer(), "", 0),
			logger.Config{
				LogLevel:                  logLevel,
				IgnoreRecordNotFoundError: true,
			},
		),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// sqlite serialises writers anyway; one connection avoids SQLITE_BUSY churn.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	logf(cfg, "WORDS: Opened database %s", path)

	return db, nil
}

func closeDatabase(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
