package payments

import (
	"strings"

	"github.com/gamersarena/GamersArena/models"
	"github.com/shopspring/decimal"
)

// SettlementEvent is a provider callback normalized into ledger terms.
// Status is the target transaction status; anything the provider reports
// that is not its documented success code maps to failed, never completed.
type SettlementEvent struct {
	ExternalRef      string
	Status           string
	PaymentReference string
	Cause            string
}

// InitiateRequest carries what every provider needs to start a payment
type InitiateRequest struct {
	ExternalRef  string
	AmountPKR    decimal.Decimal
	MobileNumber string
	Description  string
}

// InitiateResult is the provider's answer to an initiation request
type InitiateResult struct {
	ExternalID string
	Message    string
	Sandbox    bool
}

// statusFor maps a provider response code onto a transaction status
func statusFor(code, successCode string) string {
	if code == successCode {
		return models.TransactionStatusCompleted
	}
	return models.TransactionStatusFailed
}

// normalizeMobile strips the plus sign and rewrites the 92 country prefix
// to the local leading zero, the format both wallets expect.
func normalizeMobile(number string) string {
	n := strings.ReplaceAll(number, "+", "")
	if strings.HasPrefix(n, "92") {
		n = "0" + n[2:]
	}
	return n
}
