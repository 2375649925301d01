// To handle all database interactions. This is our
// data access layer, keeping persistence separate from business logic.
//
// State is kept as versioned key-value documents: each logical store owns one
// row in the documents table and writes its full snapshot on every mutation.
// The schema version integer travels with the document so a future release can
// migrate old snapshots on load.

package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Document keys for the three durable stores.
const (
	KeyPackages    = "packages"
	KeyCustomRepos = "custom_repos"
	KeyHiddenRepos = "hidden_repos"
)

// SchemaVersion is stamped on every document this release writes.
const SchemaVersion = 1

// Store provides all functions to interact with the database.
type Store struct {
	db *sql.DB
}

// New creates a new Store instance.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// LoadDocument reads the document stored under key and unmarshals its data
// into v. If no document exists yet, v is left untouched and version 0 is
// returned so the caller starts from an empty state.
func (s *Store) LoadDocument(key string, v interface{}) (int, error) {
	var version int
	var data string
	err := s.db.QueryRow("SELECT version, data FROM documents WHERE key = ?", key).Scan(&version, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load document %q: %w", key, err)
	}

	if err := json.Unmarshal([]byte(data), v); err != nil {
		return 0, fmt.Errorf("failed to decode document %q: %w", key, err)
	}
	return version, nil
}

// SaveDocument serializes v and upserts it as the full snapshot for key.
// The write happens in a single statement so readers never observe a
// half-written document.
func (s *Store) SaveDocument(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode document %q: %w", key, err)
	}

	query := `
		INSERT INTO documents (key, version, data, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			version = excluded.version,
			data = excluded.data,
			updated_at = CURRENT_TIMESTAMP;
	`
	if _, err := s.db.Exec(query, key, SchemaVersion, string(data)); err != nil {
		return fmt.Errorf("failed to save document %q: %w", key, err)
	}
	return nil
}

// DeleteDocument removes a document entirely. Used by tests and by future
// schema migrations; normal operation only ever rewrites snapshots.
func (s *Store) DeleteDocument(key string) error {
	_, err := s.db.Exec("DELETE FROM documents WHERE key = ?", key)
	return err
}
