package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gamersarena/GamersArena/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service owns every balance mutation in the system. Controllers and the
// payment webhook path call these operations; nothing outside this package
// writes wallet balances.
type Service struct {
	store   Store
	guard   *Guard
	machine *stateMachine

	maxRetries int
	backoff    time.Duration
	opTimeout  time.Duration
}

// Option configures a Service
type Option func(*Service)

// WithRetry overrides the storage retry policy
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(s *Service) {
		s.maxRetries = attempts
		s.backoff = backoff
	}
}

// WithTimeout bounds how long a single operation may block on storage
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.opTimeout = d }
}

// NewService builds the wallet operations service on top of a store
func NewService(store Store, guard *Guard, opts ...Option) *Service {
	s := &Service{
		store:      store,
		guard:      guard,
		machine:    &stateMachine{store: store},
		maxRetries: 3,
		backoff:    100 * time.Millisecond,
		opTimeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// applyWithRetry retries transient storage failures with linear backoff.
// Validation errors pass through on the first attempt.
func (s *Service) applyWithRetry(ctx context.Context, m Mutation) error {
	var err error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if err = s.store.Apply(ctx, m); !Retryable(err) {
			return err
		}
		time.Sleep(s.backoff * time.Duration(attempt+1))
	}
	return err
}

// InitiatePurchase creates a pending purchase for an active bundle and returns
// it together with the bundle. The transaction's external reference is what
// the payment provider will echo back in its callback.
func (s *Service) InitiatePurchase(ctx context.Context, userID, bundleID uint, paymentMethod string) (*models.Transaction, *models.TokenBundle, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	bundle, err := s.store.ActiveBundle(ctx, bundleID)
	if err != nil {
		return nil, nil, err
	}
	wallet, err := s.store.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	ref := uuid.New().String()
	balance := wallet.TotalBalance()
	tx := &models.Transaction{
		UserID:        userID,
		WalletID:      wallet.ID,
		Type:          models.TransactionTypePurchase,
		Status:        models.TransactionStatusPending,
		TokenAmount:   bundle.TotalTokens(),
		TokenType:     models.TokenTypeVirtual,
		PaymentMethod: paymentMethod,
		AmountPKR:     decimal.NewNullDecimal(bundle.PricePKR),
		AmountUSD:     decimal.NewNullDecimal(bundle.PriceUSD),
		Currency:      "PKR",
		ExternalRef:   &ref,
		BundleID:      &bundle.ID,
		Description:   fmt.Sprintf("Purchase: %s", bundle.Name),
		BalanceBefore: &balance,
	}
	if err := s.store.AppendTransaction(ctx, tx); err != nil {
		return nil, nil, err
	}
	return tx, bundle, nil
}

// AttachPaymentReference records the provider's order id on a still-pending
// purchase so a later checkout confirmation can be bound to it. Settling
// against an order the platform never created for that transaction is how a
// cheap order gets replayed into an expensive one.
func (s *Service) AttachPaymentReference(ctx context.Context, transactionID uint, paymentRef string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	return s.applyWithRetry(ctx, Mutation{
		Update: &StatusUpdate{
			TransactionID:    transactionID,
			ExpectedStatus:   models.TransactionStatusPending,
			Status:           models.TransactionStatusPending,
			PaymentReference: paymentRef,
		},
	})
}

// SettlePurchase resolves a pending purchase from a normalized provider
// callback. Replayed deliveries of the same reference credit at most once:
// the idempotency guard short-circuits duplicates, and the state machine
// no-ops anything already terminal.
func (s *Service) SettlePurchase(ctx context.Context, externalRef, targetStatus, paymentRef, cause string) (*models.Transaction, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tx, err := s.store.TransactionByExternalRef(ctx, externalRef)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownReference, externalRef)
		}
		return nil, err
	}

	outcome := models.IdempotencyOutcomeApplied
	if tx.IsTerminal() {
		outcome = models.IdempotencyOutcomeIgnored
	}
	key := "settle:" + externalRef
	rec, fresh, err := s.guard.CheckAndReserve(ctx, key, outcome, &tx.ID)
	if err != nil {
		return nil, err
	}
	if !fresh {
		// Already processed; hand back the recorded result.
		if rec.TransactionID != nil {
			return s.store.TransactionByID(ctx, *rec.TransactionID)
		}
		return tx, nil
	}

	settled, err := s.machine.Transition(ctx, tx, targetStatus, paymentRef, cause)
	if err != nil {
		// Free the key so the provider's retry can try again.
		if relErr := s.guard.Release(ctx, key); relErr != nil {
			return nil, fmt.Errorf("settle failed: %w (release failed: %v)", err, relErr)
		}
		return nil, err
	}
	return settled, nil
}

// DebitForEntry takes the tournament entry fee from virtual tokens and records
// a completed entry transaction, atomically. Insufficient balance leaves the
// wallet untouched.
func (s *Service) DebitForEntry(ctx context.Context, userID, tournamentID uint, fee int, description, requestID string) (*models.Transaction, error) {
	if fee < 0 {
		return nil, ErrInsufficientBalance
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	wallet, err := s.store.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	tx := &models.Transaction{
		UserID:        userID,
		WalletID:      wallet.ID,
		Type:          models.TransactionTypeTournamentEntry,
		Status:        models.TransactionStatusCompleted,
		TokenAmount:   fee,
		TokenType:     models.TokenTypeVirtual,
		PaymentMethod: models.PaymentMethodInternal,
		TournamentID:  &tournamentID,
		Description:   description,
	}
	m := Mutation{
		Deltas: []BalanceDelta{{
			WalletID:      wallet.ID,
			VirtualTokens: -fee,
			SpentTokens:   fee,
		}},
		Creates: []*models.Transaction{tx},
	}
	if requestID != "" {
		m.Reserve = &Reservation{Key: "req:" + requestID, Outcome: models.IdempotencyOutcomeApplied}
	}

	if err := s.applyWithRetry(ctx, m); err != nil {
		if errors.Is(err, ErrConflict) && requestID != "" {
			return s.replayedTransaction(ctx, "req:"+requestID)
		}
		return nil, err
	}
	return tx, nil
}

// CreditReward adds earned tokens to a user's wallet. Rewards are never
// refused for a valid user.
func (s *Service) CreditReward(ctx context.Context, userID, tournamentID uint, amount int, description string) (*models.Transaction, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	wallet, err := s.store.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	tx := &models.Transaction{
		UserID:        userID,
		WalletID:      wallet.ID,
		Type:          models.TransactionTypeTournamentPrize,
		Status:        models.TransactionStatusCompleted,
		TokenAmount:   amount,
		TokenType:     models.TokenTypeReward,
		PaymentMethod: models.PaymentMethodInternal,
		TournamentID:  &tournamentID,
		Description:   description,
	}
	m := Mutation{
		Deltas: []BalanceDelta{{
			WalletID:     wallet.ID,
			RewardTokens: amount,
			EarnedTokens: amount,
		}},
		Creates: []*models.Transaction{tx},
	}
	if err := s.applyWithRetry(ctx, m); err != nil {
		return nil, err
	}
	return tx, nil
}

// TransferResult carries both halves of a completed transfer
type TransferResult struct {
	Out *models.Transaction
	In  *models.Transaction
}

// Transfer moves reward tokens between two users. Both wallet updates and both
// transaction records commit as one unit; if either side fails, neither is
// applied. Only reward tokens are transferable.
func (s *Service) Transfer(ctx context.Context, fromUserID uint, recipientEmail string, amount int, requestID string) (*TransferResult, error) {
	if amount <= 0 {
		return nil, ErrInsufficientBalance
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	recipient, err := s.store.UserByEmail(ctx, recipientEmail)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, err
	}
	if recipient.ID == fromUserID {
		return nil, ErrSelfTransfer
	}

	fromWallet, err := s.store.GetOrCreateWallet(ctx, fromUserID)
	if err != nil {
		return nil, err
	}
	toWallet, err := s.store.GetOrCreateWallet(ctx, recipient.ID)
	if err != nil {
		return nil, err
	}

	transferID := uuid.New().String()
	out := &models.Transaction{
		UserID:          fromUserID,
		WalletID:        fromWallet.ID,
		Type:            models.TransactionTypeTransferOut,
		Status:          models.TransactionStatusCompleted,
		TokenAmount:     amount,
		TokenType:       models.TokenTypeReward,
		PaymentMethod:   models.PaymentMethodInternal,
		TransferID:      &transferID,
		RecipientUserID: &recipient.ID,
		Description:     fmt.Sprintf("Transferred to %s", recipient.Email),
	}
	in := &models.Transaction{
		UserID:        recipient.ID,
		WalletID:      toWallet.ID,
		Type:          models.TransactionTypeTransferIn,
		Status:        models.TransactionStatusCompleted,
		TokenAmount:   amount,
		TokenType:     models.TokenTypeReward,
		PaymentMethod: models.PaymentMethodInternal,
		TransferID:    &transferID,
		SenderUserID:  &fromUserID,
	}

	m := Mutation{
		Deltas: []BalanceDelta{
			{WalletID: fromWallet.ID, RewardTokens: -amount},
			{WalletID: toWallet.ID, RewardTokens: amount},
		},
		Creates: []*models.Transaction{out, in},
	}
	if requestID != "" {
		m.Reserve = &Reservation{Key: "req:" + requestID, Outcome: models.IdempotencyOutcomeApplied}
	}

	if err := s.applyWithRetry(ctx, m); err != nil {
		if errors.Is(err, ErrConflict) && requestID != "" {
			prior, perr := s.replayedTransaction(ctx, "req:"+requestID)
			if perr != nil {
				return nil, perr
			}
			return &TransferResult{Out: prior}, nil
		}
		return nil, err
	}
	return &TransferResult{Out: out, In: in}, nil
}

// AdminAdjust credits or debits a wallet unconditionally, except that a debit
// still cannot drive the balance below zero. amount is signed.
func (s *Service) AdminAdjust(ctx context.Context, userID uint, amount int, tokenType, reason string) (*models.Transaction, error) {
	if tokenType != models.TokenTypeVirtual && tokenType != models.TokenTypeReward {
		return nil, fmt.Errorf("%w: unknown token type %q", ErrNotFound, tokenType)
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	wallet, err := s.store.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return nil, err
	}

	delta := BalanceDelta{WalletID: wallet.ID}
	if tokenType == models.TokenTypeVirtual {
		delta.VirtualTokens = amount
	} else {
		delta.RewardTokens = amount
	}

	tx := &models.Transaction{
		UserID:        userID,
		WalletID:      wallet.ID,
		Type:          models.TransactionTypeAdminAdjustment,
		Status:        models.TransactionStatusCompleted,
		TokenAmount:   amount,
		TokenType:     tokenType,
		PaymentMethod: models.PaymentMethodInternal,
		Description:   reason,
	}
	if err := s.applyWithRetry(ctx, Mutation{Deltas: []BalanceDelta{delta}, Creates: []*models.Transaction{tx}}); err != nil {
		return nil, err
	}
	return tx, nil
}

// Refund reverses a completed purchase or entry fee. Only legal from
// completed; a second attempt is rejected.
func (s *Service) Refund(ctx context.Context, transactionID uint, reason string) (*models.Transaction, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tx, err := s.store.TransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return s.machine.Refund(ctx, tx, reason)
}

// Balance returns the user's wallet, creating it on first access
func (s *Service) Balance(ctx context.Context, userID uint) (*models.Wallet, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.store.GetOrCreateWallet(ctx, userID)
}

// Transaction looks up a single transaction by id
func (s *Service) Transaction(ctx context.Context, id uint) (*models.Transaction, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.store.TransactionByID(ctx, id)
}

// Transactions lists a user's transaction history, newest first
func (s *Service) Transactions(ctx context.Context, userID uint, f TransactionFilter) ([]models.Transaction, int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.store.ListTransactions(ctx, userID, f)
}

// FailStalePurchases marks pending purchases older than the cutoff as failed.
// Meant to be driven by an external scheduler; a provider callback arriving
// after the sweep no-ops against the now-terminal record.
func (s *Service) FailStalePurchases(ctx context.Context, cutoff time.Time) (int, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	pending, err := s.store.ListPendingPurchases(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	failed := 0
	for i := range pending {
		if _, err := s.machine.Transition(ctx, &pending[i], models.TransactionStatusFailed, "", "timeout"); err != nil {
			return failed, err
		}
		failed++
	}
	return failed, nil
}

// SweepReservations purges idempotency keys past the retention window
func (s *Service) SweepReservations(ctx context.Context) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	return s.guard.Sweep(ctx)
}

// replayedTransaction resolves the transaction a duplicate request already
// produced, so retried client calls return the original outcome.
func (s *Service) replayedTransaction(ctx context.Context, key string) (*models.Transaction, error) {
	rec, fresh, err := s.store.CheckAndReserve(ctx, key, models.IdempotencyOutcomeIgnored, nil)
	if err != nil {
		return nil, err
	}
	if fresh || rec.TransactionID == nil {
		// The race partner reserved but recorded no transaction.
		return nil, ErrConflict
	}
	return s.store.TransactionByID(ctx, *rec.TransactionID)
}
