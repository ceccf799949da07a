package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/ksenkov/walletcore/internal/domain"
	"github.com/ksenkov/walletcore/internal/ledger"
)

// Withdraw debits a single account on behalf of callerID. The movement is
// journaled symmetrically to a transfer, with the account as both sender and
// receiver, so the audit trail has one record shape for every mutation.
func (c *Coordinator) Withdraw(ctx context.Context, callerID int64, req domain.WithdrawRequest, idemKey, reqHash string) (*domain.WithdrawResult, *domain.IdempotencyRecord, error) {
	result, replay, err := c.withdraw(ctx, callerID, req, idemKey, reqHash)
	operationsTotal.WithLabelValues("withdraw", outcomeLabel(err)).Inc()
	if err == nil && result != nil {
		c.log.Info("withdrawal completed",
			zap.String("transaction_id", result.Transaction.ID.String()),
			zap.Int64("account_id", req.AccountID),
			zap.String("amount", req.Amount.String()),
			zap.String("currency", req.Currency))
	}
	return result, replay, err
}

func (c *Coordinator) withdraw(ctx context.Context, callerID int64, req domain.WithdrawRequest, idemKey, reqHash string) (*domain.WithdrawResult, *domain.IdempotencyRecord, error) {
	if err := c.authorizeSource(ctx, callerID, req.AccountID); err != nil {
		return nil, nil, err
	}
	if !validAmount(req.Amount) {
		return nil, nil, domain.ErrInvalidAmount
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		result, replay, err := c.withdrawOnce(ctx, req, idemKey, reqHash)
		if retryable(err) {
			lastErr = err
			continue
		}
		return result, replay, err
	}
	c.log.Warn("withdraw retries exhausted",
		zap.Int64("account_id", req.AccountID),
		zap.Error(lastErr))
	return nil, nil, domain.ErrConcurrencyConflict
}

func (c *Coordinator) withdrawOnce(ctx context.Context, req domain.WithdrawRequest, idemKey, reqHash string) (*domain.WithdrawResult, *domain.IdempotencyRecord, error) {
	tx, err := c.begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if idemKey != "" {
		replay, err := lookupIdempotency(ctx, tx, idemKey, reqHash)
		if err != nil {
			return nil, nil, err
		}
		if replay != nil {
			return nil, replay, nil
		}
		if err := reserveIdempotency(ctx, tx, idemKey, reqHash); err != nil {
			return nil, nil, err
		}
	}

	txn, err := ledger.OpenTransaction(ctx, tx, req.AccountID, req.AccountID, req.Amount, req.Currency)
	if err != nil {
		return nil, nil, err
	}

	balance, err := ledger.Debit(ctx, tx, req.AccountID, req.Currency, req.Amount)
	if err != nil {
		return nil, nil, err
	}

	txn, err = ledger.CompleteTransaction(ctx, tx, txn.ID)
	if err != nil {
		return nil, nil, err
	}

	result := &domain.WithdrawResult{Transaction: *txn, Balance: *balance}

	if idemKey != "" {
		body, err := json.Marshal(result)
		if err != nil {
			return nil, nil, err
		}
		if err := finalizeIdempotency(ctx, tx, idemKey, txn.ID, http.StatusOK, body); err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("tx commit failed: %w", err)
	}
	return result, nil, nil
}
