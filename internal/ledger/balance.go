// Package ledger owns the balance records and the transaction journal. All
// functions operate on a caller-supplied querier so that debits, credits, and
// journal transitions execute inside the caller's atomic scope.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/ksenkov/walletcore/internal/domain"
)

// Querier is the subset of pgx satisfied by both a pool and a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetBalance looks up the balance an account holds in one currency. Returns
// (nil, nil) when no balance row exists.
func GetBalance(ctx context.Context, q Querier, accountID int64, currency string) (*domain.Balance, error) {
	var b domain.Balance
	err := q.QueryRow(ctx,
		`SELECT id, account_id, currency, amount FROM balances WHERE account_id = $1 AND currency = $2`,
		accountID, currency,
	).Scan(&b.ID, &b.AccountID, &b.Currency, &b.Amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("balance lookup failed: %w", err)
	}
	return &b, nil
}

// LockBalances acquires row locks on the existing balance rows of two accounts
// in ascending account-id order. Deterministic ordering prevents deadlocks
// between opposing transfers on the same pair. A missing row is not an error;
// there is nothing to lock before its creation.
func LockBalances(ctx context.Context, tx Querier, a, b int64, currency string) error {
	if a > b {
		a, b = b, a
	}
	for _, id := range []int64{a, b} {
		if _, err := tx.Exec(ctx,
			`SELECT id FROM balances WHERE account_id = $1 AND currency = $2 FOR UPDATE`,
			id, currency,
		); err != nil {
			return fmt.Errorf("lock acquisition failed: %w", err)
		}
	}
	return nil
}

// Debit decrements an account's balance in one currency. The row is locked for
// the duration of the enclosing transaction so the funds check and the
// decrement cannot be separated by a concurrent debit. Fails with
// ErrInsufficientFunds when no balance exists or it holds less than amount.
func Debit(ctx context.Context, tx Querier, accountID int64, currency string, amount decimal.Decimal) (*domain.Balance, error) {
	var b domain.Balance
	err := tx.QueryRow(ctx,
		`SELECT id, account_id, currency, amount FROM balances WHERE account_id = $1 AND currency = $2 FOR UPDATE`,
		accountID, currency,
	).Scan(&b.ID, &b.AccountID, &b.Currency, &b.Amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrInsufficientFunds
	}
	if err != nil {
		return nil, fmt.Errorf("debit lock failed: %w", err)
	}

	if b.Amount.LessThan(amount) {
		return nil, domain.ErrInsufficientFunds
	}

	err = tx.QueryRow(ctx,
		`UPDATE balances SET amount = amount - $1 WHERE id = $2 RETURNING id, account_id, currency, amount`,
		amount, b.ID,
	).Scan(&b.ID, &b.AccountID, &b.Currency, &b.Amount)
	if err != nil {
		return nil, fmt.Errorf("debit update failed: %w", err)
	}
	return &b, nil
}

// Credit increments an account's balance in one currency, creating the row on
// first use. The upsert lets Postgres arbitrate the race where two concurrent
// transfers both observe a missing row: one insert wins, the other falls back
// to the increment.
func Credit(ctx context.Context, tx Querier, accountID int64, currency string, amount decimal.Decimal) (*domain.Balance, error) {
	var b domain.Balance
	err := tx.QueryRow(ctx,
		`INSERT INTO balances (account_id, currency, amount) VALUES ($1, $2, $3)
		 ON CONFLICT (account_id, currency) DO UPDATE SET amount = balances.amount + EXCLUDED.amount
		 RETURNING id, account_id, currency, amount`,
		accountID, currency, amount,
	).Scan(&b.ID, &b.AccountID, &b.Currency, &b.Amount)
	if err != nil {
		return nil, fmt.Errorf("credit upsert failed: %w", err)
	}
	return &b, nil
}
