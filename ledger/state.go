package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/gamersarena/GamersArena/models"
)

// The transaction lifecycle is pending -> {completed, failed} and
// completed -> refunded. Everything else is rejected. A transition request
// against an already-terminal record is a no-op success, so provider retries
// and late callbacks are harmless.
type stateMachine struct {
	store Store
}

// CanTransition reports whether the status change is legal
func CanTransition(from, to string) bool {
	switch from {
	case models.TransactionStatusPending:
		return to == models.TransactionStatusCompleted || to == models.TransactionStatusFailed
	case models.TransactionStatusCompleted:
		return to == models.TransactionStatusRefunded
	}
	return false
}

// Transition moves tx toward target, applying the balance delta exactly once,
// at the moment the record enters completed. cause is recorded in the notes.
func (m *stateMachine) Transition(ctx context.Context, tx *models.Transaction, target, paymentRef, cause string) (*models.Transaction, error) {
	if tx.IsTerminal() {
		return tx, nil
	}
	if !CanTransition(tx.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, tx.Status, target)
	}

	mutation := Mutation{
		Update: &StatusUpdate{
			TransactionID:    tx.ID,
			ExpectedStatus:   tx.Status,
			Status:           target,
			PaymentReference: paymentRef,
			Notes:            cause,
		},
	}
	if target == models.TransactionStatusCompleted {
		delta, err := settlementDelta(tx)
		if err != nil {
			return nil, err
		}
		mutation.Deltas = []BalanceDelta{delta}
	}

	if err := m.store.Apply(ctx, mutation); err != nil {
		if errors.Is(err, errStaleStatus) {
			// Lost the race; whoever won left the record terminal.
			return m.store.TransactionByID(ctx, tx.ID)
		}
		return nil, err
	}
	return m.store.TransactionByID(ctx, tx.ID)
}

// Refund reverses a completed transaction in place. The record keeps its
// identity and moves to refunded; no new transaction is appended.
func (m *stateMachine) Refund(ctx context.Context, tx *models.Transaction, reason string) (*models.Transaction, error) {
	if tx.Status != models.TransactionStatusCompleted {
		return nil, fmt.Errorf("%w: cannot refund a %s transaction", ErrInvalidTransition, tx.Status)
	}
	delta, err := refundDelta(tx)
	if err != nil {
		return nil, err
	}

	err = m.store.Apply(ctx, Mutation{
		Deltas: []BalanceDelta{delta},
		Update: &StatusUpdate{
			TransactionID:  tx.ID,
			ExpectedStatus: models.TransactionStatusCompleted,
			Status:         models.TransactionStatusRefunded,
			Notes:          reason,
		},
	})
	if err != nil {
		if errors.Is(err, errStaleStatus) {
			// A concurrent refund already consumed the record.
			return nil, fmt.Errorf("%w: transaction already refunded", ErrInvalidTransition)
		}
		return nil, err
	}
	return m.store.TransactionByID(ctx, tx.ID)
}

// settlementDelta computes the credit applied when a pending record completes
func settlementDelta(tx *models.Transaction) (BalanceDelta, error) {
	switch tx.Type {
	case models.TransactionTypePurchase:
		d := BalanceDelta{
			WalletID:        tx.WalletID,
			VirtualTokens:   tx.TokenAmount,
			PurchasedTokens: tx.TokenAmount,
		}
		if tx.AmountPKR.Valid {
			d.SpentPKR = tx.AmountPKR.Decimal
		}
		return d, nil
	}
	return BalanceDelta{}, fmt.Errorf("%w: %s has no settlement path", ErrInvalidTransition, tx.Type)
}

// refundDelta reverses the balance effect of a completed record
func refundDelta(tx *models.Transaction) (BalanceDelta, error) {
	switch tx.Type {
	case models.TransactionTypePurchase:
		// Take back the credited tokens; the money side is settled externally.
		return BalanceDelta{WalletID: tx.WalletID, VirtualTokens: -tx.TokenAmount}, nil
	case models.TransactionTypeTournamentEntry:
		// Give the entry fee back.
		return BalanceDelta{WalletID: tx.WalletID, VirtualTokens: tx.TokenAmount}, nil
	}
	return BalanceDelta{}, fmt.Errorf("%w: %s is not refundable", ErrInvalidTransition, tx.Type)
}
