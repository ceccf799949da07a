package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ksenkov/walletcore/internal/domain"
)

// OpenTransaction journals a new money movement in pending state. A withdrawal
// passes the same account id for sender and receiver.
func OpenTransaction(ctx context.Context, tx Querier, senderID, receiverID int64, amount decimal.Decimal, currency string) (*domain.Transaction, error) {
	t := domain.Transaction{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Amount:     amount,
		Currency:   currency,
		Status:     domain.StatusPending,
	}
	err := tx.QueryRow(ctx,
		`INSERT INTO transactions (id, sender_id, receiver_id, amount, currency, status, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 RETURNING started_at`,
		t.ID, t.SenderID, t.ReceiverID, t.Amount, t.Currency, t.Status,
	).Scan(&t.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("journal open failed: %w", err)
	}
	return &t, nil
}

// CompleteTransaction transitions pending -> completed and stamps ended_at.
func CompleteTransaction(ctx context.Context, tx Querier, id uuid.UUID) (*domain.Transaction, error) {
	return closeTransaction(ctx, tx, id, domain.StatusCompleted)
}

// FailTransaction transitions pending -> failed and stamps ended_at.
func FailTransaction(ctx context.Context, tx Querier, id uuid.UUID) (*domain.Transaction, error) {
	return closeTransaction(ctx, tx, id, domain.StatusFailed)
}

// closeTransaction guards the transition with the status predicate: a row that
// is not pending is left untouched and the caller gets ErrInvalidState.
func closeTransaction(ctx context.Context, tx Querier, id uuid.UUID, status domain.TransactionStatus) (*domain.Transaction, error) {
	var t domain.Transaction
	err := tx.QueryRow(ctx,
		`UPDATE transactions SET status = $2, ended_at = now()
		 WHERE id = $1 AND status = $3
		 RETURNING id, sender_id, receiver_id, amount, currency, status, started_at, ended_at`,
		id, status, domain.StatusPending,
	).Scan(&t.ID, &t.SenderID, &t.ReceiverID, &t.Amount, &t.Currency, &t.Status, &t.StartedAt, &t.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrInvalidState
	}
	if err != nil {
		return nil, fmt.Errorf("journal close failed: %w", err)
	}
	return &t, nil
}
