// Package catalog stores the result of a plugin-directory scan so the
// preset applier can fall back to a name or file-path match when a saved
// descriptor's identity no longer resolves directly.
//
// Migration design: SQL statements are kept in the [migrations] slice as
// ordered strings. Each is applied exactly once; the applied version is
// tracked in the schema_migrations table. To add a migration, append a
// new string, never edit or reorder existing entries.
package catalog

import (
	"database/sql"
	"fmt"
	"log"

	_ "modernc.org/sqlite"

	"github.com/directpipe/host/internal/plugin"
)

var migrations = []string{
	// v1 — scanned plugin entries
	`CREATE TABLE IF NOT EXISTS plugins (
		id                  INTEGER PRIMARY KEY AUTOINCREMENT,
		unique_id           TEXT NOT NULL,
		file_or_identifier  TEXT NOT NULL,
		name                TEXT NOT NULL,
		manufacturer        TEXT NOT NULL DEFAULT '',
		format_name         TEXT NOT NULL DEFAULT '',
		scanned_at          INTEGER NOT NULL DEFAULT (unixepoch()),
		UNIQUE(unique_id, file_or_identifier)
	)`,
	// v2 — lookup by name
	`CREATE INDEX IF NOT EXISTS idx_plugins_name ON plugins(name)`,
	// v3 — lookup by file path
	`CREATE INDEX IF NOT EXISTS idx_plugins_file ON plugins(file_or_identifier)`,
	// v4 — enable WAL mode
	`PRAGMA journal_mode=WAL`,
}

// Catalog wraps a SQLite database of scanned plugin descriptors.
type Catalog struct {
	db *sql.DB
}

// Open opens (or creates) the catalog database at path and applies any
// pending migrations. Use ":memory:" for ephemeral in-process storage.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		log.Printf("[catalog] busy_timeout: %v (non-fatal)", err)
	}

	c := &Catalog{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: migrate: %w", err)
	}
	return c, nil
}

// Close releases the database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

func (c *Catalog) migrate() error {
	_, err := c.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := c.db.QueryRow(
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`,
	).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i, stmt := range migrations {
		v := i + 1
		if v <= current {
			continue
		}
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", v, err)
		}
		if _, err := c.db.Exec(
			`INSERT INTO schema_migrations(version) VALUES(?)`, v,
		); err != nil {
			return fmt.Errorf("record migration %d: %w", v, err)
		}
		log.Printf("[catalog] applied migration v%d", v)
	}
	return nil
}

// Record upserts a scanned descriptor into the catalog.
func (c *Catalog) Record(d plugin.Descriptor) error {
	_, err := c.db.Exec(
		`INSERT INTO plugins(unique_id, file_or_identifier, name, manufacturer, format_name)
		 VALUES(?, ?, ?, ?, ?)
		 ON CONFLICT(unique_id, file_or_identifier) DO UPDATE SET
		   name=excluded.name, manufacturer=excluded.manufacturer, format_name=excluded.format_name`,
		d.UniqueID, d.FileOrIdentifier, d.Name, d.Manufacturer, d.FormatName,
	)
	if err != nil {
		return fmt.Errorf("catalog: record %s: %w", d.Name, err)
	}
	return nil
}

// FindByIdentity looks up an exact unique_id + file_or_identifier match.
func (c *Catalog) FindByIdentity(uniqueID, fileOrIdentifier string) (plugin.Descriptor, bool, error) {
	return c.queryOne(
		`SELECT unique_id, file_or_identifier, name, manufacturer, format_name
		 FROM plugins WHERE unique_id = ? AND file_or_identifier = ? LIMIT 1`,
		uniqueID, fileOrIdentifier,
	)
}

// FindByFileAndName implements the catalog fallback step: a matching
// file_or_identifier plus name.
func (c *Catalog) FindByFileAndName(fileOrIdentifier, name string) (plugin.Descriptor, bool, error) {
	return c.queryOne(
		`SELECT unique_id, file_or_identifier, name, manufacturer, format_name
		 FROM plugins WHERE file_or_identifier = ? AND name = ? LIMIT 1`,
		fileOrIdentifier, name,
	)
}

// FindByName implements the final fallback step: any descriptor with a
// matching display name.
func (c *Catalog) FindByName(name string) (plugin.Descriptor, bool, error) {
	return c.queryOne(
		`SELECT unique_id, file_or_identifier, name, manufacturer, format_name
		 FROM plugins WHERE name = ? ORDER BY scanned_at DESC LIMIT 1`,
		name,
	)
}

func (c *Catalog) queryOne(query string, args ...any) (plugin.Descriptor, bool, error) {
	var d plugin.Descriptor
	err := c.db.QueryRow(query, args...).Scan(
		&d.UniqueID, &d.FileOrIdentifier, &d.Name, &d.Manufacturer, &d.FormatName,
	)
	if err == sql.ErrNoRows {
		return plugin.Descriptor{}, false, nil
	}
	if err != nil {
		return plugin.Descriptor{}, false, err
	}
	return d, true, nil
}

// Resolve implements the full matching fallback from the preset applier's
// perspective: try identity, then file+name, then name alone, else report
// failure so the caller can load by raw file path instead.
func (c *Catalog) Resolve(want plugin.Descriptor) (plugin.Descriptor, bool, error) {
	if d, ok, err := c.FindByIdentity(want.UniqueID, want.FileOrIdentifier); err != nil {
		return plugin.Descriptor{}, false, err
	} else if ok {
		return d, true, nil
	}
	if d, ok, err := c.FindByFileAndName(want.FileOrIdentifier, want.Name); err != nil {
		return plugin.Descriptor{}, false, err
	} else if ok {
		return d, true, nil
	}
	if d, ok, err := c.FindByName(want.Name); err != nil {
		return plugin.Descriptor{}, false, err
	} else if ok {
		return d, true, nil
	}
	return plugin.Descriptor{}, false, nil
}
