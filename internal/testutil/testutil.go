// Package testutil provides an in-memory EasyRedmine schema for tests.
package testutil

import (
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// SourceSchema mirrors the subset of the EasyRedmine schema the migration reads.
const SourceSchema = `
CREATE TABLE users (
	id INTEGER PRIMARY KEY,
	login TEXT,
	firstname TEXT,
	lastname TEXT
);
CREATE TABLE easy_knowledge_categories (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	parent_id INTEGER,
	description TEXT,
	author_id INTEGER,
	updated_on TEXT
);
CREATE TABLE easy_knowledge_stories (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	author_id INTEGER,
	version INTEGER NOT NULL DEFAULT 1,
	created_on TEXT,
	updated_on TEXT,
	storyviews INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE easy_knowledge_story_versions (
	id INTEGER PRIMARY KEY,
	story_id INTEGER NOT NULL,
	author_id INTEGER,
	description TEXT,
	updated_on TEXT,
	version INTEGER NOT NULL
);
CREATE TABLE easy_knowledge_story_categories (
	story_id INTEGER NOT NULL,
	category_id INTEGER NOT NULL
);
CREATE TABLE attachments (
	id INTEGER PRIMARY KEY,
	container_id INTEGER,
	container_type TEXT,
	filename TEXT NOT NULL
);
CREATE TABLE attachment_versions (
	id INTEGER PRIMARY KEY,
	attachment_id INTEGER NOT NULL,
	version INTEGER NOT NULL,
	filename TEXT NOT NULL,
	disk_directory TEXT,
	disk_filename TEXT NOT NULL,
	content_type TEXT,
	filesize INTEGER NOT NULL DEFAULT 0,
	digest TEXT,
	author_id INTEGER,
	created_on TEXT,
	updated_at TEXT,
	description TEXT
);
CREATE TABLE diagrams (
	id INTEGER PRIMARY KEY,
	title TEXT NOT NULL,
	position INTEGER,
	project_id INTEGER,
	author_id INTEGER,
	updated_at TEXT,
	html TEXT,
	png TEXT
);`

// NewSourceDB creates a non-shared in-memory SQLite database carrying the
// source schema. It is closed when the test ends.
func NewSourceDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Connect("sqlite3", "file::memory:")
	if err != nil {
		t.Fatalf("Failed to connect to sqlite test database: %v", err)
	}
	// Every connection to :memory: is a fresh database.
	db.SetMaxOpenConns(1)
	db.MustExec(SourceSchema)

	t.Cleanup(func() {
		db.Close()
	})
	return db
}

// Seed executes the given statements, failing the test on the first error.
func Seed(t *testing.T, db *sqlx.DB, statements ...string) {
	t.Helper()
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed %q: %v", stmt, err)
		}
	}
}
