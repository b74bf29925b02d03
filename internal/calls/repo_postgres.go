package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"voice-nerve/pkg/utils"
)

// PostgresRepo persists call records in the voice_calls table.
//
// Assumed schema:
//
//	CREATE TABLE voice_calls (
//	  call_id           UUID PRIMARY KEY,
//	  provider_call_sid TEXT NOT NULL UNIQUE,
//	  kind              TEXT NOT NULL,
//	  order_id          BIGINT NOT NULL,
//	  to_number         TEXT NOT NULL,
//	  status            TEXT NOT NULL,
//	  outcome           TEXT NOT NULL DEFAULT '',
//	  prep_time_minutes INT NOT NULL DEFAULT 0,
//	  duration          INT NOT NULL DEFAULT 0,
//	  recording_url     TEXT NOT NULL DEFAULT '',
//	  created_at        TIMESTAMPTZ NOT NULL,
//	  updated_at        TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX voice_calls_order_idx ON voice_calls (kind, order_id);

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Create(ctx context.Context, c Call) error {
	const q = `
INSERT INTO voice_calls (
  call_id, provider_call_sid, kind, order_id, to_number, status,
  outcome, prep_time_minutes, duration, recording_url, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)
`
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	_, err := r.db.ExecContext(ctx, q,
		c.CallID,
		c.CallSid,
		c.Kind,
		c.OrderID,
		c.To,
		c.Status,
		c.Outcome,
		c.PrepTimeMinutes,
		c.DurationSeconds,
		c.RecordingURL,
		c.CreatedAt,
		now,
	)
	return err
}

func scanCall(row interface{ Scan(...any) error }) (Call, error) {
	var c Call
	err := row.Scan(
		&c.CallID,
		&c.CallSid,
		&c.Kind,
		&c.OrderID,
		&c.To,
		&c.Status,
		&c.Outcome,
		&c.PrepTimeMinutes,
		&c.DurationSeconds,
		&c.RecordingURL,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

const callColumns = `
call_id, provider_call_sid, kind, order_id, to_number, status,
outcome, prep_time_minutes, duration, recording_url, created_at, updated_at
`

func (r *PostgresRepo) GetBySid(ctx context.Context, callSid string) (Call, error) {
	q := `SELECT ` + callColumns + ` FROM voice_calls WHERE provider_call_sid = $1`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, callSid))
	if errors.Is(err, sql.ErrNoRows) {
		return Call{}, ErrNotFound
	}
	return c, err
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, callSid string, status CallStatus, durationSeconds int, recordingURL string) error {
	const q = `
UPDATE voice_calls
SET status = $2,
    duration = GREATEST(duration, $3),
    recording_url = CASE WHEN $4 <> '' THEN $4 ELSE recording_url END,
    updated_at = $5
WHERE provider_call_sid = $1
`
	res, err := r.db.ExecContext(ctx, q, callSid, status, durationSeconds, recordingURL, time.Now().UTC())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close records the dialog outcome inside a transaction. The first recorded
// outcome wins; a duplicate terminal callback must not overwrite it.
func (r *PostgresRepo) Close(ctx context.Context, callSid string, outcome Call) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		var existing string
		err := tx.QueryRowContext(ctx,
			`SELECT outcome FROM voice_calls WHERE provider_call_sid = $1 FOR UPDATE`,
			callSid,
		).Scan(&existing)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if existing != "" {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
UPDATE voice_calls
SET outcome = $2, prep_time_minutes = $3, updated_at = $4
WHERE provider_call_sid = $1
`, callSid, outcome.Outcome, outcome.PrepTimeMinutes, time.Now().UTC())
		return err
	})
}

func (r *PostgresRepo) ListActive(ctx context.Context) ([]Call, error) {
	q := `SELECT ` + callColumns + ` FROM voice_calls WHERE status IN ('queued','in_progress') ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) FindLatestByOrder(ctx context.Context, kind string, orderID int64) (Call, bool, error) {
	q := `SELECT ` + callColumns + ` FROM voice_calls
WHERE kind = $1 AND order_id = $2
ORDER BY created_at DESC
LIMIT 1`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, kind, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return Call{}, false, nil
	}
	if err != nil {
		return Call{}, false, err
	}
	return c, true, nil
}
