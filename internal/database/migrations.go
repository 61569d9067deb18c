package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS drafts (
    id TEXT PRIMARY KEY,
    version TEXT,
    release_date TEXT,
    teams TEXT,
    projects TEXT,
    content_markdown TEXT NOT NULL,
    system_prompt TEXT NOT NULL,
    user_prompt TEXT NOT NULL,
    total_issues INTEGER DEFAULT 0,
    unclassified_issues INTEGER DEFAULT 0,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS organization (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    name TEXT NOT NULL DEFAULT '',
    meta_description TEXT NOT NULL DEFAULT '',
    industry TEXT NOT NULL DEFAULT '',
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS ai_context (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    tone TEXT NOT NULL DEFAULT '',
    audience TEXT NOT NULL DEFAULT '',
    output_format TEXT NOT NULL DEFAULT '',
    include_emojis INTEGER DEFAULT 0,
    include_metrics INTEGER DEFAULT 0,
    brevity_level TEXT NOT NULL DEFAULT '',
    language TEXT NOT NULL DEFAULT '',
    example_output TEXT NOT NULL DEFAULT '',
    system_prompt TEXT NOT NULL DEFAULT '',
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_drafts_created ON drafts(created_at);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
