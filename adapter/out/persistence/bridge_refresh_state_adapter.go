package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"exchange_bridge/core/port/out"
)

// =============================================================================
// RefreshStateAdapter - poll-run history
// =============================================================================

// RefreshStateAdapter persists one row per poll-loop run so operators can
// inspect refresh history across restarts.
type RefreshStateAdapter struct {
	db *sqlx.DB
}

var _ out.RefreshStateRepository = (*RefreshStateAdapter)(nil)

const refreshRunsSchema = `
CREATE TABLE IF NOT EXISTS refresh_runs (
	id          BIGSERIAL PRIMARY KEY,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	success     BOOLEAN NOT NULL,
	event_count INTEGER NOT NULL DEFAULT 0,
	error_kind  TEXT,
	error_msg   TEXT
)`

func NewRefreshStateAdapter(db *sqlx.DB) (*RefreshStateAdapter, error) {
	if _, err := db.Exec(refreshRunsSchema); err != nil {
		return nil, fmt.Errorf("failed to ensure refresh_runs table: %w", err)
	}
	return &RefreshStateAdapter{db: db}, nil
}

// =============================================================================
// Entity
// =============================================================================

type refreshRunEntity struct {
	ID         int64          `db:"id"`
	StartedAt  time.Time      `db:"started_at"`
	FinishedAt time.Time      `db:"finished_at"`
	Success    bool           `db:"success"`
	EventCount int            `db:"event_count"`
	ErrorKind  sql.NullString `db:"error_kind"`
	ErrorMsg   sql.NullString `db:"error_msg"`
}

func (e *refreshRunEntity) toDomain() *out.RefreshRecord {
	rec := &out.RefreshRecord{
		ID:         e.ID,
		StartedAt:  e.StartedAt,
		FinishedAt: e.FinishedAt,
		Success:    e.Success,
		EventCount: e.EventCount,
	}
	if e.ErrorKind.Valid {
		rec.ErrorKind = e.ErrorKind.String
	}
	if e.ErrorMsg.Valid {
		rec.ErrorMsg = e.ErrorMsg.String
	}
	return rec
}

// =============================================================================
// Repository implementation
// =============================================================================

// Record inserts one poll-run row and backfills the generated ID.
func (a *RefreshStateAdapter) Record(ctx context.Context, rec *out.RefreshRecord) error {
	query := `
		INSERT INTO refresh_runs (started_at, finished_at, success, event_count, error_kind, error_msg)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))
		RETURNING id`

	err := a.db.QueryRowContext(ctx, query,
		rec.StartedAt, rec.FinishedAt, rec.Success, rec.EventCount, rec.ErrorKind, rec.ErrorMsg,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to record refresh run: %w", err)
	}
	return nil
}

// Latest returns the most recent run, or nil when no run was recorded yet.
func (a *RefreshStateAdapter) Latest(ctx context.Context) (*out.RefreshRecord, error) {
	var entity refreshRunEntity
	query := `
		SELECT id, started_at, finished_at, success, event_count, error_kind, error_msg
		FROM refresh_runs
		ORDER BY id DESC
		LIMIT 1`

	if err := a.db.GetContext(ctx, &entity, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load latest refresh run: %w", err)
	}
	return entity.toDomain(), nil
}

// Prune deletes all but the newest keep rows.
func (a *RefreshStateAdapter) Prune(ctx context.Context, keep int) error {
	query := `
		DELETE FROM refresh_runs
		WHERE id NOT IN (
			SELECT id FROM refresh_runs ORDER BY id DESC LIMIT $1
		)`

	if _, err := a.db.ExecContext(ctx, query, keep); err != nil {
		return fmt.Errorf("failed to prune refresh runs: %w", err)
	}
	return nil
}
