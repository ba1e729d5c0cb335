// Package patchdb provides a sqlite catalogue of per-title configuration
// files, so that many titles' patches can be shipped and queried as one
// database instead of a directory of ini files.
package patchdb

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sarchlab/patchsim/engine"
	"github.com/sarchlab/patchsim/ini"
	"github.com/sarchlab/patchsim/patch"
)

const schema = `
CREATE TABLE IF NOT EXISTS lines (
	title   TEXT    NOT NULL,
	origin  TEXT    NOT NULL,
	seq     INTEGER NOT NULL,
	section TEXT    NOT NULL,
	line    TEXT    NOT NULL,
	PRIMARY KEY (title, origin, seq)
)`

// DB is an open patch database.
type DB struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open patch database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create patch database schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Import replaces the stored file of a title and origin with f.
func (d *DB) Import(title string, origin patch.Origin, f *ini.File) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM lines WHERE title = ? AND origin = ?`,
		title, origin.String()); err != nil {
		return fmt.Errorf("failed to clear %s/%s: %w", title, origin, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO lines (title, origin, seq, section, line) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare import: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	seq := 0
	for _, section := range f.Sections() {
		for _, line := range f.GetLines(section) {
			if _, err := stmt.Exec(title, origin.String(), seq, section, line); err != nil {
				return fmt.Errorf("failed to import %s/%s: %w", title, origin, err)
			}
			seq++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}

	return nil
}

// File returns the stored file of a title and origin. Titles that were
// never imported yield an empty File.
func (d *DB) File(title string, origin patch.Origin) (*ini.File, error) {
	rows, err := d.db.Query(
		`SELECT section, line FROM lines WHERE title = ? AND origin = ? ORDER BY seq`,
		title, origin.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query %s/%s: %w", title, origin, err)
	}
	defer func() { _ = rows.Close() }()

	var (
		order []string
		lines = make(map[string][]string)
	)

	for rows.Next() {
		var section, line string
		if err := rows.Scan(&section, &line); err != nil {
			return nil, fmt.Errorf("failed to read %s/%s: %w", title, origin, err)
		}

		if _, ok := lines[section]; !ok {
			order = append(order, section)
		}
		lines[section] = append(lines[section], line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", title, origin, err)
	}

	f := ini.New()
	for _, section := range order {
		f.SetLines(section, lines[section])
	}

	return f, nil
}

// Titles returns every title with stored configuration.
func (d *DB) Titles() ([]string, error) {
	rows, err := d.db.Query(`SELECT DISTINCT title FROM lines ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("failed to list titles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("failed to list titles: %w", err)
		}
		titles = append(titles, title)
	}

	return titles, rows.Err()
}

// Provider serves one title's configuration from a DB.
type Provider struct {
	DB        *DB
	Title     string
	SyncCodes bool
}

// LoadGameConfig implements engine.ConfigProvider.
func (p *Provider) LoadGameConfig() (engine.GameConfig, error) {
	global, err := p.DB.File(p.Title, patch.OriginGlobal)
	if err != nil {
		return engine.GameConfig{}, err
	}

	local, err := p.DB.File(p.Title, patch.OriginLocal)
	if err != nil {
		return engine.GameConfig{}, err
	}

	merged := global.Clone()
	merged.Merge(local)

	return engine.GameConfig{
		Merged: merged,
		Global: global,
		Local:  local,
	}, nil
}

// CodeSyncOverride implements engine.ConfigProvider.
func (p *Provider) CodeSyncOverride() bool {
	return p.SyncCodes
}

// SaveLocal stores the user's file of the title.
func (p *Provider) SaveLocal(f *ini.File) error {
	return p.DB.Import(p.Title, patch.OriginLocal, f)
}
