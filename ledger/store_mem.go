package ledger

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gamersarena/GamersArena/models"
)

// MemoryStore is an in-process Store with the same commit semantics as the
// Postgres store. It backs the test suite and sandbox deployments that run
// without a database.
type MemoryStore struct {
	mu           sync.Mutex
	wallets      map[uint]*models.Wallet // by wallet id
	walletByUser map[uint]uint
	users        map[uint]*models.User
	transactions map[uint]*models.Transaction
	bundles      map[uint]*models.TokenBundle
	reservations map[string]*models.IdempotencyKey
	nextWallet   uint
	nextTx       uint
	nextKey      uint
}

// NewMemoryStore returns an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		wallets:      make(map[uint]*models.Wallet),
		walletByUser: make(map[uint]uint),
		users:        make(map[uint]*models.User),
		transactions: make(map[uint]*models.Transaction),
		bundles:      make(map[uint]*models.TokenBundle),
		reservations: make(map[string]*models.IdempotencyKey),
	}
}

// AddUser registers a user so transfers can resolve recipients by email
func (s *MemoryStore) AddUser(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// AddBundle registers a purchasable bundle
func (s *MemoryStore) AddBundle(b *models.TokenBundle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bundles[b.ID] = b
}

func (s *MemoryStore) GetOrCreateWallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateWalletLocked(userID), nil
}

func (s *MemoryStore) getOrCreateWalletLocked(userID uint) *models.Wallet {
	if id, ok := s.walletByUser[userID]; ok {
		return s.wallets[id]
	}
	s.nextWallet++
	w := &models.Wallet{ID: s.nextWallet, UserID: userID, CreatedAt: time.Now()}
	s.wallets[w.ID] = w
	s.walletByUser[userID] = w.ID
	return w
}

func (s *MemoryStore) WalletByUserID(ctx context.Context, userID uint) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.walletByUser[userID]; ok {
		copied := *s.wallets[id]
		return &copied, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) AppendTransaction(ctx context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.ExternalRef != nil {
		for _, existing := range s.transactions {
			if existing.ExternalRef != nil && *existing.ExternalRef == *tx.ExternalRef {
				return ErrConflict
			}
		}
	}
	s.nextTx++
	tx.ID = s.nextTx
	tx.CreatedAt = time.Now()
	copied := *tx
	s.transactions[tx.ID] = &copied
	return nil
}

func (s *MemoryStore) TransactionByID(ctx context.Context, id uint) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx, ok := s.transactions[id]; ok {
		copied := *tx
		return &copied, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) TransactionByExternalRef(ctx context.Context, ref string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.transactions {
		if tx.ExternalRef != nil && *tx.ExternalRef == ref {
			copied := *tx
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListTransactions(ctx context.Context, userID uint, f TransactionFilter) ([]models.Transaction, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []models.Transaction
	for _, tx := range s.transactions {
		if tx.UserID != userID {
			continue
		}
		if f.Type != "" && tx.Type != f.Type {
			continue
		}
		if f.Status != "" && tx.Status != f.Status {
			continue
		}
		matched = append(matched, *tx)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := int64(len(matched))
	if f.Offset > len(matched) {
		return nil, total, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func (s *MemoryStore) ListPendingPurchases(ctx context.Context, olderThan time.Time) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []models.Transaction
	for _, tx := range s.transactions {
		if tx.Type == models.TransactionTypePurchase &&
			tx.Status == models.TransactionStatusPending &&
			tx.CreatedAt.Before(olderThan) {
			matched = append(matched, *tx)
		}
	}
	return matched, nil
}

func (s *MemoryStore) ActiveBundle(ctx context.Context, bundleID uint) (*models.TokenBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bundles[bundleID]; ok && b.IsActive {
		copied := *b
		return &copied, nil
	}
	return nil, ErrInvalidBundle
}

func (s *MemoryStore) CheckAndReserve(ctx context.Context, key, outcome string, txID *uint) (*models.IdempotencyKey, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prior, ok := s.reservations[key]; ok {
		copied := *prior
		return &copied, false, nil
	}
	s.nextKey++
	rec := &models.IdempotencyKey{ID: s.nextKey, Key: key, Outcome: outcome, TransactionID: txID, CreatedAt: time.Now()}
	s.reservations[key] = rec
	copied := *rec
	return &copied, true, nil
}

func (s *MemoryStore) ReleaseReservation(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reservations, key)
	return nil
}

func (s *MemoryStore) PurgeReservations(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for key, rec := range s.reservations {
		if rec.CreatedAt.Before(cutoff) {
			delete(s.reservations, key)
			n++
		}
	}
	return n, nil
}

// Apply mirrors the Postgres store: everything inside one critical section,
// applied to scratch copies first so a failed check leaves no partial state.
func (s *MemoryStore) Apply(ctx context.Context, m Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := walletIDs(m)
	scratch := make(map[uint]*models.Wallet, len(ids))
	before := make(map[uint]int, len(ids))
	for _, id := range ids {
		w, ok := s.wallets[id]
		if !ok {
			return ErrNotFound
		}
		copied := *w
		scratch[id] = &copied
		before[id] = w.TotalBalance()
	}

	for _, d := range m.Deltas {
		w, ok := scratch[d.WalletID]
		if !ok {
			return ErrNotFound
		}
		w.VirtualTokens += d.VirtualTokens
		w.RewardTokens += d.RewardTokens
		if w.VirtualTokens < 0 || w.RewardTokens < 0 {
			return ErrInsufficientBalance
		}
		w.TotalSpentPKR = w.TotalSpentPKR.Add(d.SpentPKR)
		w.TotalTokensPurchased += d.PurchasedTokens
		w.TotalTokensEarned += d.EarnedTokens
		w.TotalTokensSpent += d.SpentTokens
	}

	var updated *models.Transaction
	if m.Update != nil {
		rec, ok := s.transactions[m.Update.TransactionID]
		if !ok {
			return ErrNotFound
		}
		if rec.Status != m.Update.ExpectedStatus {
			return errStaleStatus
		}
		copied := *rec
		copied.Status = m.Update.Status
		if m.Update.PaymentReference != "" {
			copied.PaymentReference = m.Update.PaymentReference
		}
		if m.Update.Notes != "" {
			copied.Notes = m.Update.Notes
		}
		if m.Update.Status == models.TransactionStatusCompleted {
			now := time.Now()
			copied.CompletedAt = &now
			if w, ok := scratch[copied.WalletID]; ok {
				a := w.TotalBalance()
				copied.BalanceAfter = &a
			}
		}
		updated = &copied
	}

	if m.Reserve != nil {
		if _, ok := s.reservations[m.Reserve.Key]; ok {
			return ErrConflict
		}
	}

	// All checks passed; publish.
	for id, w := range scratch {
		w.UpdatedAt = time.Now()
		s.wallets[id] = w
	}
	for _, rec := range m.Creates {
		s.nextTx++
		rec.ID = s.nextTx
		rec.CreatedAt = time.Now()
		b, a := before[rec.WalletID], s.wallets[rec.WalletID].TotalBalance()
		rec.BalanceBefore, rec.BalanceAfter = &b, &a
		if rec.Status == models.TransactionStatusCompleted && rec.CompletedAt == nil {
			now := time.Now()
			rec.CompletedAt = &now
		}
		copied := *rec
		s.transactions[rec.ID] = &copied
	}
	if updated != nil {
		s.transactions[updated.ID] = updated
	}
	if m.Reserve != nil {
		s.nextKey++
		txID := m.Reserve.TransactionID
		if txID == nil && len(m.Creates) > 0 {
			txID = &m.Creates[0].ID
		}
		s.reservations[m.Reserve.Key] = &models.IdempotencyKey{
			ID:            s.nextKey,
			Key:           m.Reserve.Key,
			Outcome:       m.Reserve.Outcome,
			TransactionID: txID,
			CreatedAt:     time.Now(),
		}
	}
	return nil
}
