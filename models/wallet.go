package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Wallet holds a user's token balances. Balances are only mutated through the
// ledger service, never written directly by controllers.
type Wallet struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `json:"user_id" gorm:"uniqueIndex;not null"`

	// Token balances
	VirtualTokens int `json:"virtual_tokens" gorm:"default:0"` // purchased tokens
	RewardTokens  int `json:"reward_tokens" gorm:"default:0"`  // earned from tournaments

	// Lifetime counters
	TotalSpentPKR        decimal.Decimal `json:"total_spent_pkr" gorm:"type:numeric(10,2);default:0"`
	TotalTokensPurchased int             `json:"total_tokens_purchased" gorm:"default:0"`
	TotalTokensEarned    int             `json:"total_tokens_earned" gorm:"default:0"`
	TotalTokensSpent     int             `json:"total_tokens_spent" gorm:"default:0"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TotalBalance returns virtual plus reward tokens
func (w *Wallet) TotalBalance() int {
	return w.VirtualTokens + w.RewardTokens
}

// Transaction records a single token movement. Records are append-only; only
// the status (and its completion metadata) changes after creation.
type Transaction struct {
	ID       uint `gorm:"primaryKey" json:"id"`
	UserID   uint `json:"user_id" gorm:"index;not null"`
	WalletID uint `json:"wallet_id" gorm:"index;not null"`

	Type   string `json:"type" gorm:"size:30;not null"`
	Status string `json:"status" gorm:"size:20;default:'pending'"`

	TokenAmount int    `json:"token_amount" gorm:"not null"`
	TokenType   string `json:"token_type" gorm:"size:20;default:'virtual'"`

	// Payment details (purchases only)
	PaymentMethod string              `json:"payment_method,omitempty" gorm:"size:20"`
	AmountPKR     decimal.NullDecimal `json:"amount_pkr,omitempty" gorm:"type:numeric(10,2)"`
	AmountUSD     decimal.NullDecimal `json:"amount_usd,omitempty" gorm:"type:numeric(10,2)"`
	Currency      string              `json:"currency,omitempty" gorm:"size:3"`

	// External references
	ExternalRef      *string `json:"external_ref,omitempty" gorm:"uniqueIndex;size:255"` // reference handed to the provider
	PaymentReference string  `json:"payment_reference,omitempty" gorm:"size:255"`        // provider's id, set on settlement

	// Related entities
	TournamentID    *uint   `json:"tournament_id,omitempty"`
	BundleID        *uint   `json:"bundle_id,omitempty"`
	TransferID      *string `json:"transfer_id,omitempty" gorm:"index;size:36"` // shared by both sides of a transfer
	RecipientUserID *uint   `json:"recipient_user_id,omitempty"`
	SenderUserID    *uint   `json:"sender_user_id,omitempty"`

	Description string `json:"description,omitempty" gorm:"size:500"`
	Notes       string `json:"notes,omitempty"` // admin notes, failure reasons

	// Wallet snapshot for audit
	BalanceBefore *int `json:"balance_before,omitempty"`
	BalanceAfter  *int `json:"balance_after,omitempty"`

	CreatedAt   time.Time  `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Transaction type constants
const (
	TransactionTypePurchase        = "purchase"
	TransactionTypeTournamentEntry = "tournament_entry"
	TransactionTypeTournamentPrize = "tournament_reward"
	TransactionTypeTransferIn      = "transfer_in"
	TransactionTypeTransferOut     = "transfer_out"
	TransactionTypeRefund          = "refund"
	TransactionTypeAdminAdjustment = "admin_adjustment"
)

// Transaction status constants
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
	TransactionStatusRefunded  = "refunded"
)

// Token type constants
const (
	TokenTypeVirtual = "virtual"
	TokenTypeReward  = "reward"
)

// Payment method constants
const (
	PaymentMethodEasypaisa = "easypaisa"
	PaymentMethodJazzCash  = "jazzcash"
	PaymentMethodRazorpay  = "razorpay"
	PaymentMethodInternal  = "internal"
)

// IsTerminal reports whether the transaction status admits no further
// transitions other than the completed -> refunded step.
func (t *Transaction) IsTerminal() bool {
	switch t.Status {
	case TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusRefunded:
		return true
	}
	return false
}

// IdempotencyKey deduplicates retried webhook deliveries and client requests.
// A given key is applied at most once; replays return the recorded outcome.
type IdempotencyKey struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Key           string    `gorm:"uniqueIndex;size:255;not null" json:"key"`
	Outcome       string    `gorm:"size:20;not null" json:"outcome"` // applied, ignored
	TransactionID *uint     `json:"transaction_id,omitempty"`
	CreatedAt     time.Time `json:"created_at" gorm:"index"`
}

// Idempotency outcome constants
const (
	IdempotencyOutcomeApplied = "applied"
	IdempotencyOutcomeIgnored = "ignored"
)
