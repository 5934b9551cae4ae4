// Package migrations embeds the ClickHouse schema applied by cmd/migrate
package migrations

import (
	"database/sql"
	"embed"

	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var FS embed.FS

// Up applies every pending migration from the embedded files
func Up(db *sql.DB) error {
	if err := Setup(); err != nil {
		return err
	}
	return goose.Up(db, ".")
}

// Setup points goose at the embedded files with the ClickHouse dialect
func Setup() error {
	goose.SetBaseFS(FS)
	return goose.SetDialect("clickhouse")
}
