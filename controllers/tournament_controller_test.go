package controllers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gamersarena/GamersArena/config"
	"github.com/gamersarena/GamersArena/ledger"
	"github.com/gamersarena/GamersArena/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTournamentFixture backs registrations with an in-memory sqlite database
// and the wallet side with a memory store. A single connection serializes
// transactions the way row locks do in production.
func newTournamentFixture(t *testing.T) (*gin.Engine, *ledger.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Tournament{}, &models.Registration{}))
	config.DB = db

	store := ledger.NewMemoryStore()
	users := map[string]models.User{
		"alice": {Model: gorm.Model{ID: 1}, Email: "alice@example.com", Username: "alice"},
		"bob":   {Model: gorm.Model{ID: 2}, Email: "bob@example.com", Username: "bob"},
	}
	for _, u := range users {
		u := u
		store.AddUser(&u)
	}
	InitServices(&config.Config{Sandbox: true}, store)

	ctx := context.Background()
	for _, u := range users {
		_, err := LedgerService.AdminAdjust(ctx, u.ID, 100, models.TokenTypeVirtual, "seed")
		require.NoError(t, err)
	}

	r := gin.New()
	r.POST("/v1/tournaments/:id/register", func(c *gin.Context) {
		c.Set("user", users[c.GetHeader("X-Login")])
		RegisterForTournament(c)
	})
	return r, store
}

func createTournament(t *testing.T, maxParticipants, currentParticipants int) *models.Tournament {
	t.Helper()
	tournament := models.Tournament{
		Title:               "Friday Night Scrims",
		Slug:                "friday-night-scrims",
		Game:                "freefire",
		EntryFee:            50,
		MaxParticipants:     maxParticipants,
		CurrentParticipants: currentParticipants,
		StartDate:           time.Now().Add(24 * time.Hour),
		Status:              models.TournamentStatusRegistrationOpen,
	}
	require.NoError(t, config.DB.Create(&tournament).Error)
	return &tournament
}

func postRegister(r *gin.Engine, tournamentID uint, login string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/v1/tournaments/%d/register", tournamentID), nil)
	req.Header.Set("X-Login", login)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterForTournamentDebitsAndRecordsSlot(t *testing.T) {
	r, store := newTournamentFixture(t)
	tournament := createTournament(t, 4, 0)

	w := postRegister(r, tournament.ID, "alice")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	wallet, err := store.WalletByUserID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 50, wallet.VirtualTokens)

	var reloaded models.Tournament
	require.NoError(t, config.DB.First(&reloaded, tournament.ID).Error)
	assert.Equal(t, 1, reloaded.CurrentParticipants)
}

func TestRegisterForTournamentFullIsRefusedBeforeDebit(t *testing.T) {
	r, store := newTournamentFixture(t)
	tournament := createTournament(t, 2, 2)

	w := postRegister(r, tournament.ID, "alice")
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	wallet, err := store.WalletByUserID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 100, wallet.VirtualTokens, "a refused registration must not cost tokens")
}

func TestConcurrentRegistrationsNeverOversell(t *testing.T) {
	r, store := newTournamentFixture(t)
	tournament := createTournament(t, 2, 1)

	// Two players race for the last slot. Exactly one may get it; the loser
	// gets the entry fee back.
	codes := make(map[string]int)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, login := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(login string) {
			defer wg.Done()
			w := postRegister(r, tournament.ID, login)
			mu.Lock()
			codes[login] = w.Code
			mu.Unlock()
		}(login)
	}
	wg.Wait()

	wins, refusals := 0, 0
	for _, code := range codes {
		switch code {
		case http.StatusCreated:
			wins++
		case http.StatusConflict:
			refusals++
		}
	}
	assert.Equal(t, 1, wins, "codes: %v", codes)
	assert.Equal(t, 1, refusals, "codes: %v", codes)

	var reloaded models.Tournament
	require.NoError(t, config.DB.First(&reloaded, tournament.ID).Error)
	assert.Equal(t, 2, reloaded.CurrentParticipants, "capacity must never be exceeded")

	var confirmed int64
	require.NoError(t, config.DB.Model(&models.Registration{}).
		Where("tournament_id = ? AND status = ?", tournament.ID, models.RegistrationStatusConfirmed).
		Count(&confirmed).Error)
	assert.Equal(t, int64(1), confirmed)

	for login, userID := range map[string]uint{"alice": 1, "bob": 2} {
		wallet, err := store.WalletByUserID(context.Background(), userID)
		require.NoError(t, err)
		if codes[login] == http.StatusCreated {
			assert.Equal(t, 50, wallet.VirtualTokens, "%s paid the entry fee", login)
		} else {
			assert.Equal(t, 100, wallet.VirtualTokens, "%s must be made whole", login)
		}
	}
}
