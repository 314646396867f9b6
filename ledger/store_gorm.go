package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gamersarena/GamersArena/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// errStaleStatus signals that a status update lost the race: the transaction
// was no longer in the expected status when the row lock was taken.
var errStaleStatus = errors.New("transaction status changed concurrently")

// GormStore is the Postgres-backed Store used in production.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps a gorm connection in a ledger store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func translateErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	case errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, errStaleStatus),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrNotFound):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
}

// GetOrCreateWallet returns the user's wallet, creating a zero-balance one on
// first use.
func (s *GormStore) GetOrCreateWallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	var wallet models.Wallet
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if err == nil {
		return &wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, translateErr(err)
	}
	wallet = models.Wallet{UserID: userID}
	if err := s.db.WithContext(ctx).Create(&wallet).Error; err != nil {
		// A concurrent first access may have created it already.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
				return nil, translateErr(err)
			}
			return &wallet, nil
		}
		return nil, translateErr(err)
	}
	return &wallet, nil
}

func (s *GormStore) WalletByUserID(ctx context.Context, userID uint) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return nil, translateErr(err)
	}
	return &wallet, nil
}

func (s *GormStore) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translateErr(err)
	}
	return &user, nil
}

func (s *GormStore) AppendTransaction(ctx context.Context, tx *models.Transaction) error {
	return translateErr(s.db.WithContext(ctx).Create(tx).Error)
}

func (s *GormStore) TransactionByID(ctx context.Context, id uint) (*models.Transaction, error) {
	var tx models.Transaction
	if err := s.db.WithContext(ctx).First(&tx, id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &tx, nil
}

func (s *GormStore) TransactionByExternalRef(ctx context.Context, ref string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := s.db.WithContext(ctx).Where("external_ref = ?", ref).First(&tx).Error; err != nil {
		return nil, translateErr(err)
	}
	return &tx, nil
}

func (s *GormStore) ListTransactions(ctx context.Context, userID uint, f TransactionFilter) ([]models.Transaction, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Transaction{}).Where("user_id = ?", userID)
	if f.Type != "" {
		query = query.Where("type = ?", f.Type)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateErr(err)
	}

	var transactions []models.Transaction
	if err := query.Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&transactions).Error; err != nil {
		return nil, 0, translateErr(err)
	}
	return transactions, total, nil
}

func (s *GormStore) ListPendingPurchases(ctx context.Context, olderThan time.Time) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := s.db.WithContext(ctx).
		Where("type = ? AND status = ? AND created_at < ?",
			models.TransactionTypePurchase, models.TransactionStatusPending, olderThan).
		Find(&transactions).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return transactions, nil
}

func (s *GormStore) ActiveBundle(ctx context.Context, bundleID uint) (*models.TokenBundle, error) {
	var bundle models.TokenBundle
	err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", bundleID, true).First(&bundle).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidBundle
		}
		return nil, translateErr(err)
	}
	return &bundle, nil
}

// CheckAndReserve relies on the unique index over the key column: the insert
// either wins or surfaces a duplicate, never both.
func (s *GormStore) CheckAndReserve(ctx context.Context, key, outcome string, txID *uint) (*models.IdempotencyKey, bool, error) {
	rec := models.IdempotencyKey{Key: key, Outcome: outcome, TransactionID: txID}
	err := s.db.WithContext(ctx).Create(&rec).Error
	if err == nil {
		return &rec, true, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, false, translateErr(err)
	}
	var prior models.IdempotencyKey
	if err := s.db.WithContext(ctx).Where("key = ?", key).First(&prior).Error; err != nil {
		return nil, false, translateErr(err)
	}
	return &prior, false, nil
}

func (s *GormStore) ReleaseReservation(ctx context.Context, key string) error {
	return translateErr(s.db.WithContext(ctx).Where("key = ?", key).Delete(&models.IdempotencyKey{}).Error)
}

func (s *GormStore) PurgeReservations(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.IdempotencyKey{})
	return res.RowsAffected, translateErr(res.Error)
}

// Apply commits the mutation as one database transaction. Wallet rows are
// locked FOR UPDATE in ascending id order so that two transfers running in
// opposite directions cannot deadlock, and a balance check can never pass on
// a stale read.
func (s *GormStore) Apply(ctx context.Context, m Mutation) error {
	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		ids := walletIDs(m)
		wallets := make(map[uint]*models.Wallet, len(ids))
		before := make(map[uint]int, len(ids))
		for _, id := range ids {
			var w models.Wallet
			if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&w, id).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrNotFound
				}
				return err
			}
			wallets[id] = &w
			before[id] = w.TotalBalance()
		}

		for _, d := range m.Deltas {
			w, ok := wallets[d.WalletID]
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

		for _, w := range wallets {
			if err := db.Save(w).Error; err != nil {
				return err
			}
		}

		for _, rec := range m.Creates {
			w, ok := wallets[rec.WalletID]
			if !ok {
				return ErrNotFound
			}
			b, a := before[rec.WalletID], w.TotalBalance()
			rec.BalanceBefore, rec.BalanceAfter = &b, &a
			if rec.Status == models.TransactionStatusCompleted && rec.CompletedAt == nil {
				now := time.Now()
				rec.CompletedAt = &now
			}
			if err := db.Create(rec).Error; err != nil {
				return err
			}
		}

		if m.Update != nil {
			var rec models.Transaction
			if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&rec, m.Update.TransactionID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrNotFound
				}
				return err
			}
			if rec.Status != m.Update.ExpectedStatus {
				return errStaleStatus
			}
			rec.Status = m.Update.Status
			if m.Update.PaymentReference != "" {
				rec.PaymentReference = m.Update.PaymentReference
			}
			if m.Update.Notes != "" {
				rec.Notes = m.Update.Notes
			}
			if m.Update.Status == models.TransactionStatusCompleted {
				now := time.Now()
				rec.CompletedAt = &now
				if w, ok := wallets[rec.WalletID]; ok {
					a := w.TotalBalance()
					rec.BalanceAfter = &a
				}
			}
			if err := db.Save(&rec).Error; err != nil {
				return err
			}
		}

		if m.Reserve != nil {
			rec := models.IdempotencyKey{
				Key:           m.Reserve.Key,
				Outcome:       m.Reserve.Outcome,
				TransactionID: m.Reserve.TransactionID,
			}
			if rec.TransactionID == nil && len(m.Creates) > 0 {
				rec.TransactionID = &m.Creates[0].ID
			}
			if err := db.Create(&rec).Error; err != nil {
				return err
			}
		}

		return nil
	})
	return translateErr(err)
}

func walletIDs(m Mutation) []uint {
	seen := make(map[uint]bool)
	var ids []uint
	add := func(id uint) {
		if id != 0 && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, d := range m.Deltas {
		add(d.WalletID)
	}
	for _, c := range m.Creates {
		add(c.WalletID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
