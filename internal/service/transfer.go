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

// Transfer moves money between two accounts on behalf of callerID.
//
// Preconditions are checked in order, each a distinct failure: both accounts
// must exist, the caller must own the sender, the amount must be strictly
// positive, and the sender must hold enough funds in the currency. The debit,
// the credit, and the journal open/complete all execute inside one
// RepeatableRead transaction with both balance rows locked in id order, so a
// failure at any step leaves no partial state.
//
// idemKey is optional; when set, a repeat of the same request replays the
// stored outcome instead of moving money twice.
func (c *Coordinator) Transfer(ctx context.Context, callerID int64, req domain.TransferRequest, idemKey, reqHash string) (*domain.TransferResult, *domain.IdempotencyRecord, error) {
	result, replay, err := c.transfer(ctx, callerID, req, idemKey, reqHash)
	operationsTotal.WithLabelValues("transfer", outcomeLabel(err)).Inc()
	if err == nil && result != nil {
		// Observability stays outside the atomic scope.
		c.log.Info("transfer completed",
			zap.String("transaction_id", result.Transaction.ID.String()),
			zap.Int64("sender_id", req.SenderID),
			zap.Int64("receiver_id", req.ReceiverID),
			zap.String("amount", req.Amount.String()),
			zap.String("currency", req.Currency))
	}
	return result, replay, err
}

func (c *Coordinator) transfer(ctx context.Context, callerID int64, req domain.TransferRequest, idemKey, reqHash string) (*domain.TransferResult, *domain.IdempotencyRecord, error) {
	owner, err := c.gate.OwnerOf(ctx, req.SenderID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := c.gate.OwnerOf(ctx, req.ReceiverID); err != nil {
		return nil, nil, err
	}
	if owner != callerID {
		return nil, nil, domain.ErrUnauthorized
	}
	if !validAmount(req.Amount) || req.SenderID == req.ReceiverID {
		return nil, nil, domain.ErrInvalidAmount
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		result, replay, err := c.transferOnce(ctx, req, idemKey, reqHash)
		if retryable(err) {
			lastErr = err
			continue
		}
		return result, replay, err
	}
	c.log.Warn("transfer retries exhausted",
		zap.Int64("sender_id", req.SenderID),
		zap.Int64("receiver_id", req.ReceiverID),
		zap.Error(lastErr))
	return nil, nil, domain.ErrConcurrencyConflict
}

func (c *Coordinator) transferOnce(ctx context.Context, req domain.TransferRequest, idemKey, reqHash string) (*domain.TransferResult, *domain.IdempotencyRecord, error) {
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

	txn, err := ledger.OpenTransaction(ctx, tx, req.SenderID, req.ReceiverID, req.Amount, req.Currency)
	if err != nil {
		return nil, nil, err
	}

	if err := ledger.LockBalances(ctx, tx, req.SenderID, req.ReceiverID, req.Currency); err != nil {
		return nil, nil, err
	}

	senderBalance, err := ledger.Debit(ctx, tx, req.SenderID, req.Currency, req.Amount)
	if err != nil {
		return nil, nil, err
	}

	receiverBalance, err := ledger.Credit(ctx, tx, req.ReceiverID, req.Currency, req.Amount)
	if err != nil {
		return nil, nil, err
	}

	txn, err = ledger.CompleteTransaction(ctx, tx, txn.ID)
	if err != nil {
		return nil, nil, err
	}

	result := &domain.TransferResult{
		Transaction:     *txn,
		SenderBalance:   *senderBalance,
		ReceiverBalance: *receiverBalance,
	}

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
