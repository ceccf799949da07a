// Package store owns the pgx connection pool lifecycle and the read-side
// queries that back the boundary endpoints.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ksenkov/walletcore/internal/domain"
)

type Store struct {
	Pool *pgxpool.Pool
}

// New builds the connection pool and verifies connectivity. The pool is the
// only process-wide state; callers must Close it at shutdown.
func New(ctx context.Context, connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

// OwnerOf resolves the user that owns an account. This satisfies the
// authorization gate consumed by the coordinators: accounts are immutable
// after creation, so the lookup is safe outside the transfer's atomic scope.
func (s *Store) OwnerOf(ctx context.Context, accountID int64) (int64, error) {
	var userID int64
	err := s.Pool.QueryRow(ctx, `SELECT user_id FROM accounts WHERE id = $1`, accountID).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("owner lookup failed: %w", err)
	}
	return userID, nil
}

// UserByUsername fetches a user for the login path.
func (s *Store) UserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	err := s.Pool.QueryRow(ctx,
		`SELECT id, username, email, name, password_hash, created_at FROM users WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}
	return &u, nil
}

// AccountsForUser lists a user's accounts with their balances embedded.
func (s *Store) AccountsForUser(ctx context.Context, userID int64) ([]domain.Account, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, user_id, type, created_at FROM accounts WHERE user_id = $1 ORDER BY id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("accounts query failed: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.Type, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("account scan failed: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range accounts {
		balances, err := s.balancesForAccount(ctx, accounts[i].ID)
		if err != nil {
			return nil, err
		}
		accounts[i].Balances = balances
	}
	return accounts, nil
}

func (s *Store) balancesForAccount(ctx context.Context, accountID int64) ([]domain.Balance, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, account_id, currency, amount FROM balances WHERE account_id = $1 ORDER BY currency`,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("balances query failed: %w", err)
	}
	defer rows.Close()

	var balances []domain.Balance
	for rows.Next() {
		var b domain.Balance
		if err := rows.Scan(&b.ID, &b.AccountID, &b.Currency, &b.Amount); err != nil {
			return nil, fmt.Errorf("balance scan failed: %w", err)
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

// TransactionsForUser returns, per account the user owns, the journal entries
// it sent and received.
func (s *Store) TransactionsForUser(ctx context.Context, userID int64) ([]domain.AccountHistory, error) {
	accounts, err := s.AccountsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	histories := make([]domain.AccountHistory, 0, len(accounts))
	for _, a := range accounts {
		sent, err := s.transactionsWhere(ctx, `sender_id = $1`, a.ID)
		if err != nil {
			return nil, err
		}
		received, err := s.transactionsWhere(ctx, `receiver_id = $1 AND sender_id <> receiver_id`, a.ID)
		if err != nil {
			return nil, err
		}
		histories = append(histories, domain.AccountHistory{AccountID: a.ID, Sent: sent, Received: received})
	}
	return histories, nil
}

func (s *Store) transactionsWhere(ctx context.Context, cond string, accountID int64) ([]domain.Transaction, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, sender_id, receiver_id, amount, currency, status, started_at, ended_at
		 FROM transactions WHERE `+cond+` ORDER BY started_at DESC`,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("transactions query failed: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.SenderID, &t.ReceiverID, &t.Amount, &t.Currency, &t.Status, &t.StartedAt, &t.EndedAt); err != nil {
			return nil, fmt.Errorf("transaction scan failed: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
