package controllers

import (
	"github.com/gamersarena/GamersArena/config"
	"github.com/gamersarena/GamersArena/ledger"
	"github.com/gamersarena/GamersArena/payments"
)

// Package-level services shared by all controllers, wired once at startup.
var (
	LedgerService *ledger.Service

	Easypaisa *payments.EasypaisaClient
	JazzCash  *payments.JazzCashClient
	Razorpay  *payments.RazorpayClient
)

// InitServices wires the ledger and payment clients from configuration.
// Tests call this with a memory-backed store and sandbox clients.
func InitServices(cfg *config.Config, store ledger.Store) {
	guard := ledger.NewGuard(store, cfg.IdempotencyRetention)
	LedgerService = ledger.NewService(store, guard)

	callbackURL := cfg.FrontendURL + "/v1/payments/easypaisa/callback"
	Easypaisa = payments.NewEasypaisaClient(
		cfg.EasypaisaStoreID, cfg.EasypaisaHashKey, cfg.EasypaisaAPIURL, callbackURL, cfg.Sandbox)
	JazzCash = payments.NewJazzCashClient(
		cfg.JazzCashMerchantID, cfg.JazzCashPassword, cfg.JazzCashHashKey, cfg.JazzCashAPIURL, cfg.Sandbox)
	Razorpay = payments.NewRazorpayClient(cfg.RazorpayKey, cfg.RazorpaySecret, cfg.Sandbox)
}
