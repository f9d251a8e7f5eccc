// Package history keeps the installation history ledger: one record per
// installed toolchain with the absolute path it was installed to.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Gcluowenqiang/DevEnv-OneClick-Installer/internal/storage"
)

// Record is one installed toolchain.
type Record struct {
	ID          string    `json:"id"`
	Env         string    `json:"env"`
	Version     string    `json:"version"`
	Path        string    `json:"path"`
	InstalledAt time.Time `json:"installed_at"`
}

// Store is a sqlite-backed history ledger. The database is opened per call
// so no handle is held open between operations; the file lives under the
// managed root and has to be movable.
type Store struct {
	path string
	now  func() time.Time
}

func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

func (s *Store) open(ctx context.Context) (*sql.DB, error) {
	db, err := storage.OpenSQLite(ctx, s.path)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", s.path, err)
	}
	return db, nil
}

// LoadAll returns every record ordered by install time.
func (s *Store) LoadAll(ctx context.Context) ([]Record, error) {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	db, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `SELECT id, env, version, path, installed_at FROM install_history ORDER BY installed_at, id;`)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var installedAt string
		if err := rows.Scan(&rec.ID, &rec.Env, &rec.Version, &rec.Path, &installedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		rec.InstalledAt, err = time.Parse(time.RFC3339Nano, installedAt)
		if err != nil {
			return nil, fmt.Errorf("parse installed_at for %s: %w", rec.Path, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

// SaveAll replaces the full record set in one transaction. Either every
// record is written or the previous set stays in place.
func (s *Store) SaveAll(ctx context.Context, records []Record) error {
	db, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM install_history;`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	for _, rec := range records {
		if err := insert(ctx, tx, s.normalize(rec)); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history: %w", err)
	}
	return nil
}

// Add records an installation. An existing record with the same path is
// replaced.
func (s *Store) Add(ctx context.Context, env, version, path string) (Record, error) {
	if strings.TrimSpace(env) == "" || strings.TrimSpace(path) == "" {
		return Record{}, fmt.Errorf("history record needs env and path")
	}
	rec := s.normalize(Record{Env: env, Version: version, Path: path})

	db, err := s.open(ctx)
	if err != nil {
		return Record{}, err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM install_history WHERE path = ?;`, rec.Path); err != nil {
		return Record{}, fmt.Errorf("replace history record: %w", err)
	}
	if err := insert(ctx, tx, rec); err != nil {
		return Record{}, err
	}
	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("commit history: %w", err)
	}
	return rec, nil
}

// Remove deletes the record for path and reports whether one existed.
func (s *Store) Remove(ctx context.Context, path string) (bool, error) {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	db, err := s.open(ctx)
	if err != nil {
		return false, err
	}
	defer db.Close()

	res, err := db.ExecContext(ctx, `DELETE FROM install_history WHERE path = ?;`, filepath.Clean(path))
	if err != nil {
		return false, fmt.Errorf("remove history record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove history record: %w", err)
	}
	return n > 0, nil
}

type legacyFile struct {
	Installed []struct {
		Env         string `json:"env"`
		Version     string `json:"version"`
		Path        string `json:"path"`
		InstallTime string `json:"install_time"`
	} `json:"installed"`
}

// ImportLegacy merges records from an installed.json file written by older
// releases into the store and returns how many were imported. A missing
// file imports nothing.
func (s *Store) ImportLegacy(ctx context.Context, jsonPath string) (int, error) {
	data, err := os.ReadFile(jsonPath)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", jsonPath, err)
	}
	var legacy legacyFile
	if err := json.Unmarshal(data, &legacy); err != nil {
		return 0, fmt.Errorf("parse %s: %w", jsonPath, err)
	}

	existing, err := s.LoadAll(ctx)
	if err != nil {
		return 0, err
	}
	byPath := make(map[string]Record, len(existing))
	for _, rec := range existing {
		byPath[rec.Path] = rec
	}
	imported := 0
	for _, item := range legacy.Installed {
		if item.Env == "" || item.Path == "" {
			continue
		}
		rec := Record{Env: item.Env, Version: item.Version, Path: item.Path}
		if t, err := time.ParseInLocation("2006-01-02 15:04:05", item.InstallTime, time.Local); err == nil {
			rec.InstalledAt = t
		}
		rec = s.normalize(rec)
		if _, ok := byPath[rec.Path]; ok {
			continue
		}
		byPath[rec.Path] = rec
		imported++
	}
	if imported == 0 {
		return 0, nil
	}

	merged := make([]Record, 0, len(byPath))
	for _, rec := range byPath {
		merged = append(merged, rec)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].InstalledAt.Before(merged[j].InstalledAt) })
	if err := s.SaveAll(ctx, merged); err != nil {
		return 0, err
	}
	return imported, nil
}

func (s *Store) normalize(rec Record) Record {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.InstalledAt.IsZero() {
		rec.InstalledAt = s.now()
	}
	rec.InstalledAt = rec.InstalledAt.UTC()
	rec.Path = filepath.Clean(rec.Path)
	return rec
}

func insert(ctx context.Context, tx *sql.Tx, rec Record) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO install_history(id, env, version, path, installed_at)
VALUES(?, ?, ?, ?, ?);
`, rec.ID, rec.Env, rec.Version, rec.Path, rec.InstalledAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert history record %s: %w", rec.Path, err)
	}
	return nil
}
