package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// Every table carries an autoincrement seq column so that "newest first"
// queries do not depend on timestamp resolution.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS brands (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		id         TEXT NOT NULL UNIQUE,
		name       TEXT NOT NULL,
		tagline    TEXT NOT NULL DEFAULT '',
		mission    TEXT NOT NULL DEFAULT '',
		vision     TEXT NOT NULL DEFAULT '',
		industry   TEXT NOT NULL DEFAULT '',
		audience   TEXT NOT NULL DEFAULT '',
		tone       TEXT NOT NULL DEFAULT '',
		colors     TEXT NOT NULL DEFAULT '[]',
		fonts      TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS projects (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		id         TEXT NOT NULL UNIQUE,
		brand_id   TEXT NOT NULL,
		name       TEXT NOT NULL,
		status     TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_projects_brand ON projects(brand_id, seq)`,

	`CREATE TABLE IF NOT EXISTS tasks (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		id         TEXT NOT NULL UNIQUE,
		project_id TEXT NOT NULL,
		title      TEXT NOT NULL,
		status     TEXT NOT NULL DEFAULT '',
		priority   TEXT NOT NULL DEFAULT '',
		assignee   TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id, seq)`,

	`CREATE TABLE IF NOT EXISTS members (
		seq      INTEGER PRIMARY KEY AUTOINCREMENT,
		id       TEXT NOT NULL UNIQUE,
		brand_id TEXT NOT NULL,
		name     TEXT NOT NULL,
		role     TEXT NOT NULL DEFAULT '',
		email    TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS campaigns (
		seq      INTEGER PRIMARY KEY AUTOINCREMENT,
		id       TEXT NOT NULL UNIQUE,
		brand_id TEXT NOT NULL,
		name     TEXT NOT NULL,
		status   TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS activities (
		seq         INTEGER PRIMARY KEY AUTOINCREMENT,
		id          TEXT NOT NULL UNIQUE,
		brand_id    TEXT NOT NULL,
		type        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at  TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_activities_brand ON activities(brand_id, seq)`,

	`CREATE TABLE IF NOT EXISTS conversations (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		id         TEXT NOT NULL UNIQUE,
		brand_id   TEXT NOT NULL,
		title      TEXT NOT NULL DEFAULT '',
		type       TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS messages (
		seq             INTEGER PRIMARY KEY AUTOINCREMENT,
		id              TEXT NOT NULL UNIQUE,
		conversation_id TEXT NOT NULL,
		role            TEXT NOT NULL,
		content         TEXT NOT NULL DEFAULT '',
		created_at      TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq)`,

	`CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

// migrate creates or updates the database schema to the latest version.
// All DDL uses IF NOT EXISTS, making migration idempotent.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}

	return nil
}
