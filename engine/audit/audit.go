// Package audit implements an optional write-only execution audit sink,
// recording each top-level process() call to Postgres via pgx. Disabled by
// default; wiring one in trades a write per process() call for a durable
// record of what ran.
package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lyzr/rulechain/common/logger"
)

// Sink writes one row per top-level process() call. It never blocks or
// fails the caller's request: write errors are logged and swallowed.
type Sink struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// New wraps an existing connection pool as an audit sink.
func New(pool *pgxpool.Pool, log *logger.Logger) *Sink {
	return &Sink{pool: pool, log: log}
}

// EnsureSchema creates the audit table if it does not already exist. Callers
// invoke this once at startup when audit is enabled.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS rulechain_audit (
			id          BIGSERIAL PRIMARY KEY,
			chain_id    TEXT NOT NULL,
			message_id  TEXT NOT NULL,
			started_at  TIMESTAMPTZ NOT NULL,
			duration_ms BIGINT NOT NULL,
			ok          BOOLEAN NOT NULL,
			error       TEXT
		)
	`)
	return err
}

// Record writes one audit row for a completed process() call. Best-effort:
// a failed write is logged, never returned to the caller whose request this
// would otherwise fail.
func (s *Sink) Record(ctx context.Context, chainID, messageID string, startedAt time.Time, duration time.Duration, procErr error) {
	writeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = ctx // request context is not propagated so the audit write outlives request cancellation

	var errText *string
	if procErr != nil {
		msg := procErr.Error()
		errText = &msg
	}

	_, err := s.pool.Exec(writeCtx, `
		INSERT INTO rulechain_audit (chain_id, message_id, started_at, duration_ms, ok, error)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, chainID, messageID, startedAt, duration.Milliseconds(), procErr == nil, errText)
	if err != nil {
		s.log.Error("failed to write audit record", "chain_id", chainID, "message_id", messageID, "error", err)
	}
}

// Close releases the underlying connection pool.
func (s *Sink) Close() {
	s.pool.Close()
}
