package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/justyntemme/razornav/internal/debug"
)

// SQLiteBackend stores slots as rows of a single SQLite table.
// Each write is one INSERT OR REPLACE, so readers see either the old or
// the new record.
type SQLiteBackend struct {
	conn *sql.DB
}

// OpenSQLite initializes the database connection and schema
func OpenSQLite(dbPath string) (*SQLiteBackend, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// WAL mode allows simultaneous readers and writers
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, err
	}
	// Synchronous NORMAL is safe against app crashes, faster than FULL
	if _, err := db.Exec("PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, err
	}

	query := `
	CREATE TABLE IF NOT EXISTS slots (
		name TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, err
	}

	debug.Log(debug.STORE, "Opened sqlite state at %s", dbPath)
	return &SQLiteBackend{conn: db}, nil
}

func (b *SQLiteBackend) Read(slot string) ([]byte, error) {
	var data []byte
	err := b.conn.QueryRow("SELECT data FROM slots WHERE name = ?", slot).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSlotNotFound, slot)
	}
	return data, err
}

func (b *SQLiteBackend) Write(slot string, data []byte) error {
	_, err := b.conn.Exec(
		"INSERT OR REPLACE INTO slots (name, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)",
		slot, data)
	if err != nil {
		return fmt.Errorf("write slot %s: %w", slot, err)
	}
	debug.Log(debug.STORE, "Wrote slot %s (%d bytes)", slot, len(data))
	return nil
}

func (b *SQLiteBackend) Remove(slot string) error {
	_, err := b.conn.Exec("DELETE FROM slots WHERE name = ?", slot)
	return err
}

func (b *SQLiteBackend) Close() error {
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
