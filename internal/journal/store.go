// Package journal persists an append-only audit trail of checkout
// outcomes. The cart itself is ephemeral; the journal is the only
// durable record this service owns, and it is optional — a nil pool
// turns every call into a no-op.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const schema = `
CREATE TABLE IF NOT EXISTS pos_checkout_journal (
	id          BIGSERIAL PRIMARY KEY,
	session_id  TEXT        NOT NULL,
	sale_id     TEXT        NOT NULL DEFAULT '',
	sale_number TEXT        NOT NULL DEFAULT '',
	total       NUMERIC(14,2) NOT NULL,
	amount_paid NUMERIC(14,2) NOT NULL,
	outcome     TEXT        NOT NULL,
	detail      TEXT        NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Outcome labels for journal entries.
const (
	OutcomeSettled        = "settled"
	OutcomeCreateFailed   = "create_failed"
	OutcomeProcessFailed  = "process_failed"
	OutcomeValidateFailed = "validate_failed"
)

// Entry is one audited checkout attempt.
type Entry struct {
	SessionID  string
	SaleID     string
	SaleNumber string
	Total      decimal.Decimal
	AmountPaid decimal.Decimal
	Outcome    string
	Detail     string
}

// Store writes journal entries through a pgx pool.
type Store struct {
	Pool *pgxpool.Pool
}

// NewStore wraps a pool; pass nil to disable journaling.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

// EnsureSchema bootstraps the journal table.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil || s.Pool == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := s.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure journal schema: %w", err)
	}
	return nil
}

// Record appends one entry. Errors are returned for the caller to log;
// journaling never blocks a checkout.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if s == nil || s.Pool == nil {
		return nil
	}
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO pos_checkout_journal (session_id, sale_id, sale_number, total, amount_paid, outcome, detail)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.SessionID, e.SaleID, e.SaleNumber, e.Total, e.AmountPaid, e.Outcome, e.Detail,
	)
	if err != nil {
		return fmt.Errorf("record journal entry: %w", err)
	}
	return nil
}
