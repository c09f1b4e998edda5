// Package store persists sync reports to PostgreSQL so the history of
// SyncAll runs survives restarts.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/loader"
	"github.com/Adithya-Monish-Kumar-K/search-playground/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS sync_runs (
    id          UUID PRIMARY KEY,
    started_at  TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL,
    status      TEXT NOT NULL,
    aborted     BOOLEAN NOT NULL DEFAULT FALSE,
    report      JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS sync_runs_started_at_idx ON sync_runs (started_at DESC);`

// Store implements loader.HistoryStore.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "sync-history"),
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating sync_runs table: %w", err)
	}
	return nil
}

// SaveReport upserts the report keyed by its run id.
func (s *Store) SaveReport(ctx context.Context, report *loader.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO sync_runs (id, started_at, finished_at, status, aborted, report)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO UPDATE SET
			     finished_at = EXCLUDED.finished_at,
			     status = EXCLUDED.status,
			     aborted = EXCLUDED.aborted,
			     report = EXCLUDED.report`,
			report.ID, report.StartedAt, report.FinishedAt, report.Status(), report.Aborted, data,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("saving sync report %s: %w", report.ID, err)
	}
	s.logger.Debug("sync report saved", "run_id", report.ID, "status", report.Status())
	return nil
}

// ListReports returns up to limit reports, newest first.
func (s *Store) ListReports(ctx context.Context, limit int) ([]*loader.Report, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT report FROM sync_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sync reports: %w", err)
	}
	defer rows.Close()

	reports := make([]*loader.Report, 0, limit)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning sync report: %w", err)
		}
		var r loader.Report
		if err := json.Unmarshal(data, &r); err != nil {
			s.logger.Warn("skipping corrupt sync report", "error", err)
			continue
		}
		reports = append(reports, &r)
	}
	return reports, rows.Err()
}

// GetReport loads one report by run id. It returns (nil, nil) when the id
// is unknown.
func (s *Store) GetReport(ctx context.Context, id string) (*loader.Report, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx, `SELECT report FROM sync_runs WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading sync report %s: %w", id, err)
	}
	var r loader.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding sync report %s: %w", id, err)
	}
	return &r, nil
}
