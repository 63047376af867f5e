// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/verte-zerg/donordash/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrDatasetNotFound is returned when a named dataset is not in the cache.
var ErrDatasetNotFound = errors.New("dataset not found")

// Store wraps SQLite access for imported datasets.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS datasets (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			source TEXT NOT NULL,
			imported_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS projects (
			dataset_id INTEGER NOT NULL,
			row INTEGER NOT NULL,
			date_posted INTEGER NOT NULL,
			resource_type TEXT NOT NULL,
			poverty_level TEXT NOT NULL,
			school_state TEXT NOT NULL,
			total_donations REAL NOT NULL,
			grade_level TEXT NOT NULL,
			PRIMARY KEY (dataset_id, row)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// ImportDataset stores projects under name, replacing any dataset with the
// same name.
func (s *Store) ImportDataset(ctx context.Context, name, source string, projects []model.Project) (id int64, err error) {
	if name == "" {
		return 0, fmt.Errorf("dataset name is empty")
	}
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM projects WHERE dataset_id IN (SELECT id FROM datasets WHERE name = ?)`, name); err != nil {
		return 0, err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM datasets WHERE name = ?`, name); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO datasets (name, source, imported_at) VALUES (?, ?, ?)`,
		name, source, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if len(projects) > 0 {
		stmt, perr := tx.PrepareContext(ctx,
			`INSERT INTO projects (dataset_id, row, date_posted, resource_type, poverty_level, school_state, total_donations, grade_level)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if perr != nil {
			err = perr
			return 0, err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for i, p := range projects {
			if _, err = stmt.ExecContext(ctx, id, i, int(p.DatePosted), p.ResourceType, string(p.PovertyLevel), p.SchoolState, p.TotalDonations, p.GradeLevel); err != nil {
				return 0, err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	slog.Debug("dataset imported", "name", name, "id", id, "rows", len(projects), "elapsed", time.Since(start))
	return id, nil
}

// ListDatasets returns every stored dataset ordered by name.
func (s *Store) ListDatasets(ctx context.Context) ([]model.DatasetInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT d.id, d.name, d.source, d.imported_at, COUNT(p.row)
		FROM datasets d
		LEFT JOIN projects p ON p.dataset_id = d.id
		GROUP BY d.id
		ORDER BY d.name ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.DatasetInfo
	for rows.Next() {
		var info model.DatasetInfo
		var importedAt string
		if err := rows.Scan(&info.ID, &info.Name, &info.Source, &importedAt, &info.Rows); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, importedAt)
		if err != nil {
			return nil, err
		}
		info.ImportedAt = parsed
		result = append(result, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// LoadProjects returns the projects of a named dataset in import order.
func (s *Store) LoadProjects(ctx context.Context, name string) ([]model.Project, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM datasets WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrDatasetNotFound, name)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT date_posted, resource_type, poverty_level, school_state, total_donations, grade_level
		FROM projects
		WHERE dataset_id = ?
		ORDER BY row ASC`, id)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	projects := []model.Project{}
	for rows.Next() {
		var p model.Project
		var month int
		var poverty string
		if err := rows.Scan(&month, &p.ResourceType, &poverty, &p.SchoolState, &p.TotalDonations, &p.GradeLevel); err != nil {
			return nil, err
		}
		p.DatePosted = model.Month(month)
		p.PovertyLevel = model.PovertyLevel(poverty)
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slog.Debug("dataset loaded from store", "name", name, "rows", len(projects))
	return projects, nil
}

// DeleteDataset removes a named dataset and its projects.
func (s *Store) DeleteDataset(ctx context.Context, name string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM projects WHERE dataset_id IN (SELECT id FROM datasets WHERE name = ?)`, name); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM datasets WHERE name = ?`, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		err = fmt.Errorf("%w: %q", ErrDatasetNotFound, name)
		return err
	}
	return tx.Commit()
}
