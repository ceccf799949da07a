// Package service orchestrates money movements: precondition checks, the
// atomic debit/credit scope, journaling, and conflict handling.
package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ksenkov/walletcore/internal/domain"
)

// maxAttempts bounds the retry loop on serialization aborts before the
// conflict is surfaced to the caller.
const maxAttempts = 3

var operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "wallet_ledger_operations_total",
	Help: "Transfer and withdraw outcomes",
}, []string{"operation", "outcome"})

// AccountGate confirms account ownership. It returns domain.ErrAccountNotFound
// for unknown accounts; the coordinators never inspect credentials themselves.
type AccountGate interface {
	OwnerOf(ctx context.Context, accountID int64) (int64, error)
}

// Coordinator runs transfers and withdrawals against the datastore. The pool
// is injected at construction and carries no business state.
type Coordinator struct {
	db   *pgxpool.Pool
	gate AccountGate
	log  *zap.Logger
}

func NewCoordinator(db *pgxpool.Pool, gate AccountGate, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{db: db, gate: gate, log: log}
}

// authorizeSource checks existence of the source account and compares its
// owner against the caller. Existence is checked first so a not-found failure
// is never masked as an authorization failure.
func (c *Coordinator) authorizeSource(ctx context.Context, callerID, accountID int64) error {
	owner, err := c.gate.OwnerOf(ctx, accountID)
	if err != nil {
		return err
	}
	if owner != callerID {
		return domain.ErrUnauthorized
	}
	return nil
}

func validAmount(amount decimal.Decimal) bool {
	return amount.Sign() > 0
}

// retryable reports whether the transaction failed on a serialization or
// deadlock abort, the two cases where rerunning the scope can succeed.
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, domain.ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrConcurrencyConflict),
		errors.Is(err, domain.ErrIdempotencyConflict):
		return "conflict"
	case errors.Is(err, domain.ErrIdempotencyMismatch):
		return "key_mismatch"
	default:
		return "error"
	}
}

func (c *Coordinator) begin(ctx context.Context) (pgx.Tx, error) {
	return c.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
}
