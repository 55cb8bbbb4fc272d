package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/marcboeker/go-duckdb"
)

type DB struct {
	conn *sql.DB
}

func New(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	conn, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	queries := []string{
		`CREATE SEQUENCE IF NOT EXISTS seq_source_id START 1;`,
		`CREATE SEQUENCE IF NOT EXISTS seq_source_file_id START 1;`,

		`CREATE TABLE IF NOT EXISTS sources (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			origin TEXT NOT NULL,
			base_url TEXT NOT NULL DEFAULT '',
			entries INTEGER NOT NULL DEFAULT 0,
			imported_at TIMESTAMP,
			last_used_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS source_files (
			id INTEGER PRIMARY KEY,
			source_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			file_name TEXT NOT NULL,
			content_hash TEXT NOT NULL CHECK (length(content_hash) = 64)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_source_files_source ON source_files (source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_source_files_hash ON source_files (content_hash)`,
	}

	for _, q := range queries {
		if _, err := db.conn.Exec(q); err != nil {
			return fmt.Errorf("executing %q: %w", q, err)
		}
	}
	return nil
}

// --- Source operations ---

// Source is an imported Doxygen search index. Origin is where it was read
// from (a directory, script path or URL).
type Source struct {
	ID         int
	Name       string
	Origin     string
	BaseURL    string
	Entries    int
	ImportedAt *time.Time
	LastUsedAt time.Time
}

const sourceColumns = `id, name, origin, base_url, entries, imported_at, last_used_at`

func scanSource(row interface{ Scan(...any) error }) (*Source, error) {
	var s Source
	if err := row.Scan(&s.ID, &s.Name, &s.Origin, &s.BaseURL, &s.Entries, &s.ImportedAt, &s.LastUsedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// Import is one completed read of a source: where it came from and the
// scripts it was built from, in order.
type Import struct {
	Name    string
	Origin  string
	BaseURL string
	Entries int
	Files   []SourceFile
}

// RecordImport creates or replaces the source named imp.Name together with
// its file list and marks it imported, all in one transaction. On error the
// previous record is left untouched.
func (db *DB) RecordImport(imp Import) (*Source, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var id int
	err = tx.QueryRow(`SELECT id FROM sources WHERE name = ?`, imp.Name).Scan(&id)
	switch {
	case err == sql.ErrNoRows:
		err = tx.QueryRow(
			`INSERT INTO sources (id, name, origin, base_url, entries, imported_at)
			 VALUES (nextval('seq_source_id'), ?, ?, ?, ?, CURRENT_TIMESTAMP) RETURNING id`,
			imp.Name, imp.Origin, imp.BaseURL, imp.Entries,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("inserting source: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("checking source: %w", err)
	default:
		_, err = tx.Exec(
			`UPDATE sources SET origin = ?, base_url = ?, entries = ?, imported_at = CURRENT_TIMESTAMP WHERE id = ?`,
			imp.Origin, imp.BaseURL, imp.Entries, id,
		)
		if err != nil {
			return nil, fmt.Errorf("updating source: %w", err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM source_files WHERE source_id = ?`, id); err != nil {
		return nil, fmt.Errorf("deleting source files: %w", err)
	}
	for i, f := range imp.Files {
		_, err := tx.Exec(
			`INSERT INTO source_files (id, source_id, position, file_name, content_hash)
			 VALUES (nextval('seq_source_file_id'), ?, ?, ?, ?)`,
			id, i, f.FileName, f.ContentHash,
		)
		if err != nil {
			return nil, fmt.Errorf("inserting source file %s: %w", f.FileName, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing: %w", err)
	}

	return db.GetSource(imp.Name)
}

// TouchSource records that a lookup returned results from name. Unknown
// names are ignored.
func (db *DB) TouchSource(name string) error {
	_, err := db.conn.Exec(`UPDATE sources SET last_used_at = CURRENT_TIMESTAMP WHERE name = ?`, name)
	return err
}

func (db *DB) GetSource(name string) (*Source, error) {
	s, err := scanSource(db.conn.QueryRow(
		`SELECT `+sourceColumns+` FROM sources WHERE name = ?`, name,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListSources returns every source ordered by name.
func (db *DB) ListSources() ([]Source, error) {
	rows, err := db.conn.Query(`SELECT ` + sourceColumns + ` FROM sources ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *s)
	}
	return sources, rows.Err()
}

// DeleteSource removes a source and its file list. It reports whether the
// source existed.
func (db *DB) DeleteSource(name string) (bool, error) {
	src, err := db.GetSource(name)
	if err != nil || src == nil {
		return false, err
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM source_files WHERE source_id = ?`, src.ID); err != nil {
		return false, fmt.Errorf("deleting source files: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM sources WHERE id = ?`, src.ID); err != nil {
		return false, fmt.Errorf("deleting source: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing: %w", err)
	}
	return true, nil
}

// --- Source file operations ---

// SourceFile is one search-data script of a source, stored in the CAS.
type SourceFile struct {
	Position    int
	FileName    string
	ContentHash string
}

// ListSourceFiles returns a source's files in import order.
func (db *DB) ListSourceFiles(sourceID int) ([]SourceFile, error) {
	rows, err := db.conn.Query(
		`SELECT position, file_name, content_hash FROM source_files WHERE source_id = ? ORDER BY position`,
		sourceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []SourceFile
	for rows.Next() {
		var f SourceFile
		if err := rows.Scan(&f.Position, &f.FileName, &f.ContentHash); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// CountEntries sums the entry counts of every imported source.
func (db *DB) CountEntries() (int, error) {
	var count int
	err := db.conn.QueryRow(`SELECT CAST(COALESCE(SUM(entries), 0) AS BIGINT) FROM sources WHERE imported_at IS NOT NULL`).Scan(&count)
	return count, err
}
