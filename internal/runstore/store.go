package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"catalog-feed-miner/db"
	"catalog-feed-miner/internal/pipeline"
)

var ErrNotFound = errors.New("run not found")

type RunStore struct {
	conn      db.Conn
	logger    *zap.SugaredLogger
	validator *validator.Validate
}

type NewRunStoreParams struct {
	fx.In

	Postgres *sqlx.DB `optional:"true"`
	Conn     db.Conn  `name:"sqlite"`
	Logger   *zap.SugaredLogger
}

// NewRunStore uses postgres when it is configured, else the sqlite ledger.
func NewRunStore(p NewRunStoreParams) *RunStore {
	var conn db.Conn = p.Conn
	if p.Postgres != nil {
		conn = p.Postgres
	}
	return New(conn, p.Logger)
}

func New(conn db.Conn, logger *zap.SugaredLogger) *RunStore {
	if conn == nil {
		conn = db.Disabled()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &RunStore{
		conn:      conn,
		logger:    logger,
		validator: validator.New(),
	}
}

type runRow struct {
	ID           string         `json:"id" validate:"required"`
	Status       string         `json:"status" validate:"required"`
	Source       string         `json:"source"`
	StartedAtMs  int64          `json:"started_at_ms"`
	FinishedAtMs int64          `json:"finished_at_ms"`
	URLCount     int            `json:"url_count"`
	RecordCount  int            `json:"record_count"`
	FailureCount int            `json:"failure_count"`
	Error        sql.NullString `json:"error"`
}

// booleans are INTEGER columns so the same schema serves sqlite and postgres
type itemRow struct {
	RunID         string         `json:"run_id"`
	Position      int            `json:"position"`
	URL           string         `json:"url" validate:"required"`
	Fetched       int            `json:"fetched"`
	Extracted     int            `json:"extracted"`
	Title         string         `json:"title"`
	PriceFallback int            `json:"price_fallback"`
	ImageStatus   string         `json:"image_status"`
	Error         sql.NullString `json:"error"`
}

// Run is a persisted run as served by the API.
type Run struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	Source       string          `json:"source"`
	StartedAtMs  int64           `json:"started_at_ms"`
	FinishedAtMs int64           `json:"finished_at_ms"`
	URLCount     int             `json:"url_count"`
	RecordCount  int             `json:"record_count"`
	FailureCount int             `json:"failure_count"`
	Error        *string         `json:"error"`
	Items        []pipeline.Item `json:"items"`
}

func (s *RunStore) SaveRun(ctx context.Context, rep *pipeline.Report) error {
	if rep == nil {
		return errors.New("save run: nil report")
	}

	run := runRow{
		ID:           rep.RunID,
		Status:       string(rep.Status),
		Source:       string(rep.Source),
		StartedAtMs:  rep.StartedAt.UnixMilli(),
		FinishedAtMs: rep.FinishedAt.UnixMilli(),
		URLCount:     len(rep.URLs),
		RecordCount:  rep.Records,
		FailureCount: rep.Failures(),
		Error:        nullString(rep.Err),
	}
	if err := s.validator.Struct(run); err != nil {
		return fmt.Errorf("validate run: %w", err)
	}

	items := make([]itemRow, 0, len(rep.Items))
	for i, it := range rep.Items {
		items = append(items, itemRow{
			RunID:         rep.RunID,
			Position:      i,
			URL:           it.URL,
			Fetched:       boolInt(it.Fetched),
			Extracted:     boolInt(it.Extracted),
			Title:         it.Title,
			PriceFallback: boolInt(it.PriceFallback),
			ImageStatus:   it.ImageStatus,
			Error:         nullString(it.Err),
		})
	}

	_, err := db.Tx(ctx, s.conn, func(tx *sqlx.Tx) (struct{}, error) {
		q := tx.Rebind(`
INSERT INTO feed_runs (
  id,
  status,
  source,
  started_at_ms,
  finished_at_ms,
  url_count,
  record_count,
  failure_count,
  error
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  status = excluded.status,
  source = excluded.source,
  started_at_ms = excluded.started_at_ms,
  finished_at_ms = excluded.finished_at_ms,
  url_count = excluded.url_count,
  record_count = excluded.record_count,
  failure_count = excluded.failure_count,
  error = excluded.error
`)
		if _, err := tx.ExecContext(ctx, q,
			run.ID, run.Status, run.Source, run.StartedAtMs, run.FinishedAtMs,
			run.URLCount, run.RecordCount, run.FailureCount, run.Error,
		); err != nil {
			return struct{}{}, fmt.Errorf("upsert feed_runs: %w", err)
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM feed_run_items WHERE run_id = ?`), run.ID); err != nil {
			return struct{}{}, fmt.Errorf("clear feed_run_items: %w", err)
		}

		insert := tx.Rebind(`
INSERT INTO feed_run_items (
  run_id, position, url, fetched, extracted, title, price_fallback, image_status, error
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
		for _, it := range items {
			if _, err := tx.ExecContext(ctx, insert,
				it.RunID, it.Position, it.URL, it.Fetched, it.Extracted,
				it.Title, it.PriceFallback, it.ImageStatus, it.Error,
			); err != nil {
				return struct{}{}, fmt.Errorf("insert feed_run_items: %w", err)
			}
		}
		return struct{}{}, nil
	})
	if err != nil {
		return err
	}

	s.logger.Infow("feed_run_saved",
		"id", run.ID,
		"status", run.Status,
		"items", len(items),
	)
	return nil
}

func (s *RunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	var row runRow
	err := s.conn.GetContext(ctx, &row, s.conn.Rebind(`
SELECT id, status, source, started_at_ms, finished_at_ms, url_count, record_count, failure_count, error
FROM feed_runs
WHERE id = ?
`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get feed_runs: %w", err)
	}

	var rows []itemRow
	if err := s.conn.SelectContext(ctx, &rows, s.conn.Rebind(`
SELECT run_id, position, url, fetched, extracted, title, price_fallback, image_status, error
FROM feed_run_items
WHERE run_id = ?
ORDER BY position
`), id); err != nil {
		return nil, fmt.Errorf("select feed_run_items: %w", err)
	}

	run := &Run{
		ID:           row.ID,
		Status:       row.Status,
		Source:       row.Source,
		StartedAtMs:  row.StartedAtMs,
		FinishedAtMs: row.FinishedAtMs,
		URLCount:     row.URLCount,
		RecordCount:  row.RecordCount,
		FailureCount: row.FailureCount,
		Error:        stringPtr(row.Error),
		Items:        make([]pipeline.Item, 0, len(rows)),
	}
	for _, r := range rows {
		it := pipeline.Item{
			URL:           r.URL,
			Fetched:       r.Fetched != 0,
			Extracted:     r.Extracted != 0,
			Title:         r.Title,
			PriceFallback: r.PriceFallback != 0,
			ImageStatus:   r.ImageStatus,
		}
		if r.Error.Valid {
			it.Err = r.Error.String
		}
		run.Items = append(run.Items, it)
	}
	return run, nil
}

var _ pipeline.RunStore = (*RunStore)(nil)

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	s := ns.String
	return &s
}
