// Package store persists enrolled fingerprint templates in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kweli-data/minutiae.registry/internal/timeutil"
)

// ErrNotFound reports a lookup that matched no stored template.
var ErrNotFound = errors.New("template not found")

// Record is one enrolled template row.
type Record struct {
	TemplateID   string          `json:"template_id"`
	NationalID   string          `json:"national_id"`
	ISOTemplate  []byte          `json:"-"`
	XYTData      string          `json:"-"`
	TemplateHash string          `json:"template_hash"`
	MetadataJSON json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    int64           `json:"created_at"`
}

// Store wraps the template database.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string) (*Store, error) {
	return OpenWithClock(path, timeutil.RealClock{})
}

// OpenWithClock opens the database with an injected clock, so tests can
// control record timestamps and retry backoff.
func OpenWithClock(path string, clock timeutil.Clock) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open template db: %w", err)
	}
	// Single writer with busy retries on top; WAL keeps readers out of
	// the writer's way.
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	return &Store{db: db, clock: clock}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for migrations.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Insert persists a new template record. A missing TemplateID gets a
// generated UUID; a missing CreatedAt gets the current time.
func (s *Store) Insert(rec *Record) error {
	if rec.TemplateID == "" {
		rec.TemplateID = uuid.New().String()
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = s.clock.Now().UnixNano()
	}

	var meta interface{}
	if len(rec.MetadataJSON) > 0 {
		meta = string(rec.MetadataJSON)
	}

	return s.retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO fingerprint_templates (
				template_id, national_id, iso_template, xyt_data,
				template_hash, metadata_json, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.TemplateID, rec.NationalID, rec.ISOTemplate, rec.XYTData,
			rec.TemplateHash, meta, rec.CreatedAt,
		)
		return err
	})
}

// GetByNationalID returns the most recent template enrolled for a
// national id, or ErrNotFound.
func (s *Store) GetByNationalID(nationalID string) (*Record, error) {
	row := s.db.QueryRow(`
		SELECT template_id, national_id, iso_template, xyt_data,
		       template_hash, metadata_json, created_at
		FROM fingerprint_templates
		WHERE national_id = ?
		ORDER BY created_at DESC
		LIMIT 1`, nationalID)
	return scanRecord(row)
}

// GetByID returns the template with the given id, or ErrNotFound.
func (s *Store) GetByID(templateID string) (*Record, error) {
	row := s.db.QueryRow(`
		SELECT template_id, national_id, iso_template, xyt_data,
		       template_hash, metadata_json, created_at
		FROM fingerprint_templates
		WHERE template_id = ?`, templateID)
	return scanRecord(row)
}

// List returns all stored templates, newest first.
func (s *Store) List() ([]*Record, error) {
	rows, err := s.db.Query(`
		SELECT template_id, national_id, iso_template, xyt_data,
		       template_hash, metadata_json, created_at
		FROM fingerprint_templates
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query templates: %w", err)
	}
	defer rows.Close()

	var recs []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// DeleteByID removes a template. Deleting a missing id is ErrNotFound.
func (s *Store) DeleteByID(templateID string) error {
	return s.retryOnBusy(func() error {
		res, err := s.db.Exec(`DELETE FROM fingerprint_templates WHERE template_id = ?`, templateID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var meta sql.NullString
	err := row.Scan(
		&rec.TemplateID, &rec.NationalID, &rec.ISOTemplate, &rec.XYTData,
		&rec.TemplateHash, &meta, &rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan template: %w", err)
	}
	if meta.Valid {
		rec.MetadataJSON = json.RawMessage(meta.String)
	}
	return &rec, nil
}

// retryOnBusy retries a write a few times when SQLite reports the
// database as busy or locked.
func (s *Store) retryOnBusy(fn func() error) error {
	const maxAttempts = 5
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err = fn(); err == nil || !isSQLiteBusy(err) {
			return err
		}
		s.clock.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
	}
	return err
}

// isSQLiteBusy reports whether err looks like a SQLITE_BUSY condition.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
