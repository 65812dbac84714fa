// Package store keeps a queryable SQLite snapshot of finished runs.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/use-agent/dirscrape/pipeline"
)

//go:embed schema.sql
var Schema string

// Store wraps the snapshot database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Snapshot records the run, every row outcome and every non-empty cell of
// the final table in one transaction.
func (s *Store) Snapshot(ctx context.Context, rep *pipeline.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	p := rep.Progress
	if _, err := tx.ExecContext(ctx,
		`insert into runs (id, status, input, output, started_at, finished_at, total, merged, no_data, unmodified, skipped)
		 values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.ID, string(rep.Status), rep.Input, rep.Output,
		rep.StartedAt.Unix(), rep.FinishedAt.Unix(),
		p.Total, p.Merged, p.NoData, p.Unmodified, p.Skipped,
	); err != nil {
		return fmt.Errorf("store: insert run: %w", err)
	}

	rowStmt, err := tx.PrepareContext(ctx,
		`insert into row_results (run_id, row_index, url, state, code, fields) values (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare rows: %w", err)
	}
	defer rowStmt.Close()
	for _, r := range rep.Rows {
		if _, err := rowStmt.ExecContext(ctx, rep.ID, r.Index, r.URL, r.State.String(), r.Code, r.Fields); err != nil {
			return fmt.Errorf("store: insert row %d: %w", r.Index, err)
		}
	}

	if ds := rep.Dataset; ds != nil {
		cellStmt, err := tx.PrepareContext(ctx,
			`insert into cells (run_id, row_index, url, column_name, value) values (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("store: prepare cells: %w", err)
		}
		defer cellStmt.Close()
		urlCol := rep.URLColumn
		for i, row := range ds.Rows {
			for col, v := range row {
				if v == "" {
					continue
				}
				if _, err := cellStmt.ExecContext(ctx, rep.ID, i, row[urlCol], col, v); err != nil {
					return fmt.Errorf("store: insert cell %d/%s: %w", i, col, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Value returns the latest recorded value of column for url across all runs.
func (s *Store) Value(ctx context.Context, url, column string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx,
		`select c.value from cells c join runs r on r.id = c.run_id
		 where c.url = ? and c.column_name = ?
		 order by r.finished_at desc, r.rowid desc limit 1`,
		url, column,
	).Scan(&v)
	switch {
	case err == sql.ErrNoRows:
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("store: query value: %w", err)
	}
	return v, true, nil
}

// RunStatus returns the stored status of run id.
func (s *Store) RunStatus(ctx context.Context, id string) (string, error) {
	var status string
	if err := s.db.QueryRowContext(ctx, `select status from runs where id = ?`, id).Scan(&status); err != nil {
		return "", fmt.Errorf("store: run %s: %w", id, err)
	}
	return status, nil
}
