package data

import (
	"errors"
	"fmt"

	"kbmigrate/internal/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// ErrMultipleRecords is returned when a lookup expecting exactly one
// primary record finds more.
var ErrMultipleRecords = errors.New("more than one record found")

// NewDB opens the EasyRedmine database.
func NewDB(cfg config.SourceConfig) (*sqlx.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("source dsn is not configured")
	}
	// sqlx.Connect opens a connection and pings it to verify it's alive.
	db, err := sqlx.Connect(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// inQuery expands a query with an IN (?) clause and rebinds it for db.
func inQuery(db *sqlx.DB, query string, args ...interface{}) (string, []interface{}, error) {
	q, expanded, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, fmt.Errorf("failed to expand IN query: %w", err)
	}
	return db.Rebind(q), expanded, nil
}
