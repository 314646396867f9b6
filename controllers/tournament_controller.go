package controllers

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gamersarena/GamersArena/config"
	"github.com/gamersarena/GamersArena/models"
	"github.com/gamersarena/GamersArena/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ListTournaments returns tournaments visible to players, paginated
func ListTournaments(c *gin.Context) {
	pagination := utils.NewPagination(c)

	query := config.DB.Model(&models.Tournament{}).
		Where("status <> ?", models.TournamentStatusDraft)
	if game := c.Query("game"); game != "" {
		query = query.Where("game = ?", game)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.LogError("Failed to count tournaments: %v", err)
		utils.InternalServerError(c, "Failed to fetch tournaments", nil)
		return
	}

	var tournaments []models.Tournament
	if err := query.Order("start_date asc").
		Limit(pagination.Limit).Offset(pagination.Offset).
		Find(&tournaments).Error; err != nil {
		utils.LogError("Failed to fetch tournaments: %v", err)
		utils.InternalServerError(c, "Failed to fetch tournaments", nil)
		return
	}

	pagination.SetTotal(total)
	utils.SendPaginatedResponse(c, tournaments, pagination)
}

// GetTournament returns one tournament. Room credentials are included only
// for players with a confirmed registration once the tournament is active.
func GetTournament(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid tournament ID", nil)
		return
	}

	var tournament models.Tournament
	if err := config.DB.First(&tournament, id).Error; err != nil {
		utils.NotFound(c, "Tournament not found")
		return
	}

	response := gin.H{"tournament": tournament, "slots_available": tournament.SlotsAvailable()}

	if userVal, exists := c.Get("user"); exists {
		user := userVal.(models.User)
		var registration models.Registration
		err := config.DB.Where("tournament_id = ? AND user_id = ? AND status IN ?",
			tournament.ID, user.ID,
			[]string{models.RegistrationStatusConfirmed, models.RegistrationStatusCheckedIn}).
			First(&registration).Error
		if err == nil {
			response["registration"] = registration
			if tournament.Status == models.TournamentStatusActive {
				response["room"] = gin.H{
					"room_id":       tournament.RoomID,
					"room_password": tournament.RoomPassword,
				}
			}
		}
	}

	utils.Success(c, "Tournament fetched successfully", response)
}

// GetTournamentRoom hands room credentials to confirmed participants of an
// active tournament
func GetTournamentRoom(c *gin.Context) {
	user := c.MustGet("user").(models.User)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid tournament ID", nil)
		return
	}

	var tournament models.Tournament
	if err := config.DB.First(&tournament, id).Error; err != nil {
		utils.NotFound(c, "Tournament not found")
		return
	}
	if tournament.Status != models.TournamentStatusActive {
		utils.BadRequest(c, "Room details are shared once the tournament is active", nil)
		return
	}

	var registration models.Registration
	if err := config.DB.Where("tournament_id = ? AND user_id = ? AND status IN ?",
		tournament.ID, user.ID,
		[]string{models.RegistrationStatusConfirmed, models.RegistrationStatusCheckedIn}).
		First(&registration).Error; err != nil {
		utils.Forbidden(c, "Only registered participants can view room details")
		return
	}

	utils.Success(c, "Room details fetched", gin.H{
		"room_id":       tournament.RoomID,
		"room_password": tournament.RoomPassword,
	})
}

// errTournamentFull signals that the guarded slot claim found no capacity left
var errTournamentFull = errors.New("tournament is full")

// TournamentRegisterRequest represents a registration request body
type TournamentRegisterRequest struct {
	PlayerID string `json:"player_id"`
	TeamName string `json:"team_name"`
}

// RegisterForTournament debits the entry fee and confirms the player's slot.
// If the slot cannot be recorded after the debit, the fee is refunded.
func RegisterForTournament(c *gin.Context) {
	user := c.MustGet("user").(models.User)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid tournament ID", nil)
		return
	}

	var req TournamentRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		utils.BadRequest(c, "Invalid request format", err.Error())
		return
	}
	playerID := req.PlayerID
	if playerID == "" {
		playerID = user.PlayerID
	}

	var tournament models.Tournament
	if err := config.DB.First(&tournament, id).Error; err != nil {
		utils.NotFound(c, "Tournament not found")
		return
	}

	if !tournament.IsRegistrationOpen() {
		utils.BadRequest(c, "Registration is not open for this tournament", nil)
		return
	}
	// Advisory only; the slot is actually claimed inside the transaction below.
	if tournament.SlotsAvailable() == 0 {
		utils.Conflict(c, "Tournament is full", nil)
		return
	}

	var existing models.Registration
	if err := config.DB.Where("tournament_id = ? AND user_id = ? AND status <> ?",
		tournament.ID, user.ID, models.RegistrationStatusCancelled).
		First(&existing).Error; err == nil {
		utils.Conflict(c, "Already registered for this tournament", nil)
		return
	}

	requestID := c.GetHeader("X-Request-ID")
	description := fmt.Sprintf("Entry fee: %s", tournament.Title)
	tx, err := LedgerService.DebitForEntry(c.Request.Context(), user.ID, tournament.ID, tournament.EntryFee, description, requestID)
	if err != nil {
		handleLedgerError(c, err, "Entry fee debit")
		return
	}

	registration := models.Registration{
		UserID:        user.ID,
		TournamentID:  tournament.ID,
		Status:        models.RegistrationStatusConfirmed,
		TokensPaid:    tournament.EntryFee,
		TransactionID: &tx.ID,
		PlayerID:      playerID,
		TeamName:      req.TeamName,
	}
	err = config.DB.Transaction(func(db *gorm.DB) error {
		// The guarded increment is the capacity check. Claiming the slot this
		// way means two racers for the last slot cannot both get in; the
		// loser sees zero rows updated.
		res := db.Model(&models.Tournament{}).
			Where("id = ? AND current_participants < max_participants", tournament.ID).
			UpdateColumn("current_participants", gorm.Expr("current_participants + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errTournamentFull
		}
		return db.Create(&registration).Error
	})
	if err != nil {
		utils.LogError("Failed to record registration for user %d, refunding entry fee: %v", user.ID, err)
		if _, refundErr := LedgerService.Refund(c.Request.Context(), tx.ID, "Registration failed"); refundErr != nil {
			utils.LogError("Refund after failed registration also failed for transaction %d: %v", tx.ID, refundErr)
		}
		if errors.Is(err, errTournamentFull) {
			utils.Conflict(c, "Tournament is full", nil)
			return
		}
		utils.InternalServerError(c, "Failed to register for tournament", nil)
		return
	}

	utils.LogInfo("User %d registered for tournament %d (paid %d tokens)", user.ID, tournament.ID, tournament.EntryFee)
	utils.Created(c, "Registered successfully", gin.H{
		"registration": registration,
		"tokens_paid":  tournament.EntryFee,
	})
}

// CancelRegistration withdraws from a tournament before it starts and refunds
// the entry fee
func CancelRegistration(c *gin.Context) {
	user := c.MustGet("user").(models.User)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid tournament ID", nil)
		return
	}

	var registration models.Registration
	if err := config.DB.Where("tournament_id = ? AND user_id = ? AND status = ?",
		id, user.ID, models.RegistrationStatusConfirmed).First(&registration).Error; err != nil {
		utils.NotFound(c, "Registration not found")
		return
	}

	var tournament models.Tournament
	if err := config.DB.First(&tournament, id).Error; err != nil {
		utils.NotFound(c, "Tournament not found")
		return
	}
	if tournament.Status == models.TournamentStatusActive || tournament.Status == models.TournamentStatusCompleted {
		utils.BadRequest(c, "Tournament has already started", nil)
		return
	}

	if registration.TransactionID != nil && registration.TokensPaid > 0 {
		if _, err := LedgerService.Refund(c.Request.Context(), *registration.TransactionID, "Registration cancelled by player"); err != nil {
			handleLedgerError(c, err, "Entry fee refund")
			return
		}
	}

	err = config.DB.Transaction(func(db *gorm.DB) error {
		if err := db.Model(&registration).Update("status", models.RegistrationStatusCancelled).Error; err != nil {
			return err
		}
		return db.Model(&models.Tournament{}).Where("id = ? AND current_participants > 0", tournament.ID).
			UpdateColumn("current_participants", gorm.Expr("current_participants - 1")).Error
	})
	if err != nil {
		utils.LogError("Failed to cancel registration %d: %v", registration.ID, err)
		utils.InternalServerError(c, "Failed to cancel registration", nil)
		return
	}

	utils.LogInfo("User %d cancelled registration for tournament %d", user.ID, tournament.ID)
	utils.Success(c, "Registration cancelled and entry fee refunded", gin.H{
		"tokens_refunded": registration.TokensPaid,
	})
}

// MyRegistrations lists the user's tournament registrations
func MyRegistrations(c *gin.Context) {
	user := c.MustGet("user").(models.User)
	pagination := utils.NewPagination(c)

	query := config.DB.Model(&models.Registration{}).Where("user_id = ?", user.ID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch registrations", nil)
		return
	}

	var registrations []models.Registration
	if err := query.Preload("Tournament").Order("created_at desc").
		Limit(pagination.Limit).Offset(pagination.Offset).
		Find(&registrations).Error; err != nil {
		utils.LogError("Failed to fetch registrations for user %d: %v", user.ID, err)
		utils.InternalServerError(c, "Failed to fetch registrations", nil)
		return
	}

	pagination.SetTotal(total)
	utils.SendPaginatedResponse(c, registrations, pagination)
}

// CheckInForTournament marks the player present shortly before start
func CheckInForTournament(c *gin.Context) {
	user := c.MustGet("user").(models.User)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid tournament ID", nil)
		return
	}

	var registration models.Registration
	if err := config.DB.Where("tournament_id = ? AND user_id = ? AND status = ?",
		id, user.ID, models.RegistrationStatusConfirmed).First(&registration).Error; err != nil {
		utils.NotFound(c, "Registration not found")
		return
	}

	var tournament models.Tournament
	if err := config.DB.First(&tournament, id).Error; err != nil {
		utils.NotFound(c, "Tournament not found")
		return
	}
	// Check-in window opens 30 minutes before start
	if time.Until(tournament.StartDate) > 30*time.Minute {
		utils.BadRequest(c, "Check-in has not opened yet", nil)
		return
	}

	registration.CheckIn()
	if err := config.DB.Save(&registration).Error; err != nil {
		utils.LogError("Failed to check in registration %d: %v", registration.ID, err)
		utils.InternalServerError(c, "Failed to check in", nil)
		return
	}

	utils.Success(c, "Checked in successfully", gin.H{"registration": registration})
}
