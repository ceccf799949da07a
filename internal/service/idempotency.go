package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ksenkov/walletcore/internal/domain"
	"github.com/ksenkov/walletcore/internal/ledger"
)

// lookupIdempotency checks whether a request key was seen before. Returns
// (nil, nil) for a fresh key, the stored record for a finished replay,
// ErrIdempotencyMismatch when the key is reused with a different payload, and
// ErrIdempotencyConflict when the original request is still in flight.
func lookupIdempotency(ctx context.Context, tx ledger.Querier, key, reqHash string) (*domain.IdempotencyRecord, error) {
	rec := domain.IdempotencyRecord{Key: key}
	err := tx.QueryRow(ctx,
		`SELECT request_hash, status, COALESCE(response_status, 0), response_body
		 FROM idempotency_keys WHERE key = $1`,
		key,
	).Scan(&rec.RequestHash, &rec.Status, &rec.ResponseStatus, &rec.ResponseBody)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("idempotency query failed: %w", err)
	}
	if rec.RequestHash != reqHash {
		return nil, domain.ErrIdempotencyMismatch
	}
	if rec.Status != "completed" {
		return nil, domain.ErrIdempotencyConflict
	}
	return &rec, nil
}

// reserveIdempotency claims the key for this request. A unique violation means
// a concurrent request holds the same key.
func reserveIdempotency(ctx context.Context, tx ledger.Querier, key, reqHash string) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO idempotency_keys (key, request_hash, status) VALUES ($1, $2, 'in_progress')`,
		key, reqHash)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrIdempotencyConflict
		}
		return fmt.Errorf("key reservation failed: %w", err)
	}
	return nil
}

// finalizeIdempotency stores the serialized response under the key so a retry
// of the same request replays it instead of double-applying the movement.
func finalizeIdempotency(ctx context.Context, tx ledger.Querier, key string, transactionID uuid.UUID, responseStatus int, responseBody []byte) error {
	_, err := tx.Exec(ctx,
		`UPDATE idempotency_keys
		 SET status = 'completed', transaction_id = $1, response_status = $2, response_body = $3
		 WHERE key = $4`,
		transactionID, responseStatus, responseBody, key)
	if err != nil {
		return fmt.Errorf("idempotency update failed: %w", err)
	}
	return nil
}
