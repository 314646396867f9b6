package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TokenBundle is a purchasable token package
type TokenBundle struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `json:"name" gorm:"size:100;not null"`
	Tokens      int             `json:"tokens" gorm:"not null"`
	BonusTokens int             `json:"bonus_tokens" gorm:"default:0"`
	PricePKR    decimal.Decimal `json:"price_pkr" gorm:"type:numeric(10,2);not null"`
	PriceUSD    decimal.Decimal `json:"price_usd" gorm:"type:numeric(10,2);not null"`
	Description string          `json:"description" gorm:"size:255"`
	Badge       string          `json:"badge" gorm:"size:50"` // e.g. "BEST VALUE", "POPULAR"
	Icon        string          `json:"icon" gorm:"size:100"`
	SortOrder   int             `json:"sort_order" gorm:"default:0"`
	IsActive    bool            `json:"is_active" gorm:"default:true"`
	IsFeatured  bool            `json:"is_featured" gorm:"default:false"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
}

// TotalTokens returns tokens including bonus
func (b *TokenBundle) TotalTokens() int {
	return b.Tokens + b.BonusTokens
}
