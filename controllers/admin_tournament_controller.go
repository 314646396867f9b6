package controllers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gamersarena/GamersArena/config"
	"github.com/gamersarena/GamersArena/models"
	"github.com/gamersarena/GamersArena/utils"
	"github.com/gin-gonic/gin"
)

// TournamentRequest represents a tournament create/update request body
type TournamentRequest struct {
	Title             string     `json:"title" binding:"required"`
	Game              string     `json:"game" binding:"required"`
	Description       string     `json:"description"`
	Rules             string     `json:"rules"`
	EntryFee          int        `json:"entry_fee"`
	PrizePool         int        `json:"prize_pool"`
	FirstPlaceReward  int        `json:"first_place_reward"`
	SecondPlaceReward int        `json:"second_place_reward"`
	ThirdPlaceReward  int        `json:"third_place_reward"`
	FourthPlaceReward int        `json:"fourth_place_reward"`
	FifthPlaceReward  int        `json:"fifth_place_reward"`
	MaxParticipants   int        `json:"max_participants"`
	MinParticipants   int        `json:"min_participants"`
	RegistrationStart *time.Time `json:"registration_start"`
	RegistrationEnd   *time.Time `json:"registration_end"`
	StartDate         time.Time  `json:"start_date" binding:"required"`
	EndDate           *time.Time `json:"end_date"`
	BannerURL         string     `json:"banner_url"`
	ThumbnailURL      string     `json:"thumbnail_url"`
}

func slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ' || r == '-' || r == '_':
			return '-'
		}
		return -1
	}, slug)
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	return strings.Trim(slug, "-")
}

// CreateTournament creates a tournament in draft status
func CreateTournament(c *gin.Context) {
	var req TournamentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request format", err.Error())
		return
	}
	if req.EntryFee < 0 {
		utils.BadRequest(c, "Entry fee cannot be negative", nil)
		return
	}

	tournament := models.Tournament{
		Title:             req.Title,
		Slug:              fmt.Sprintf("%s-%d", slugify(req.Title), time.Now().Unix()),
		Game:              req.Game,
		Description:       req.Description,
		Rules:             req.Rules,
		EntryFee:          req.EntryFee,
		PrizePool:         req.PrizePool,
		FirstPlaceReward:  req.FirstPlaceReward,
		SecondPlaceReward: req.SecondPlaceReward,
		ThirdPlaceReward:  req.ThirdPlaceReward,
		FourthPlaceReward: req.FourthPlaceReward,
		FifthPlaceReward:  req.FifthPlaceReward,
		MaxParticipants:   req.MaxParticipants,
		MinParticipants:   req.MinParticipants,
		RegistrationStart: req.RegistrationStart,
		RegistrationEnd:   req.RegistrationEnd,
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
		Status:            models.TournamentStatusDraft,
		BannerURL:         req.BannerURL,
		ThumbnailURL:      req.ThumbnailURL,
	}
	if tournament.MaxParticipants == 0 {
		tournament.MaxParticipants = 100
	}
	if tournament.MinParticipants == 0 {
		tournament.MinParticipants = 2
	}

	if err := config.DB.Create(&tournament).Error; err != nil {
		utils.LogError("Failed to create tournament: %v", err)
		utils.InternalServerError(c, "Failed to create tournament", nil)
		return
	}

	utils.LogInfo("Tournament created: %s", tournament.Title)
	utils.Created(c, "Tournament created successfully", gin.H{"tournament": tournament})
}

// UpdateTournament edits tournament details
func UpdateTournament(c *gin.Context) {
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

	if tournament.Status == models.TournamentStatusCompleted || tournament.Status == models.TournamentStatusCancelled {
		utils.BadRequest(c, "Cannot edit a finished tournament", nil)
		return
	}

	var req TournamentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request format", err.Error())
		return
	}

	// Entry fee is locked once players have paid it
	if tournament.CurrentParticipants > 0 && req.EntryFee != tournament.EntryFee {
		utils.BadRequest(c, "Cannot change entry fee after registrations", nil)
		return
	}

	tournament.Title = req.Title
	tournament.Game = req.Game
	tournament.Description = req.Description
	tournament.Rules = req.Rules
	tournament.EntryFee = req.EntryFee
	tournament.PrizePool = req.PrizePool
	tournament.FirstPlaceReward = req.FirstPlaceReward
	tournament.SecondPlaceReward = req.SecondPlaceReward
	tournament.ThirdPlaceReward = req.ThirdPlaceReward
	tournament.FourthPlaceReward = req.FourthPlaceReward
	tournament.FifthPlaceReward = req.FifthPlaceReward
	tournament.MaxParticipants = req.MaxParticipants
	tournament.MinParticipants = req.MinParticipants
	tournament.RegistrationStart = req.RegistrationStart
	tournament.RegistrationEnd = req.RegistrationEnd
	tournament.StartDate = req.StartDate
	tournament.EndDate = req.EndDate
	tournament.BannerURL = req.BannerURL
	tournament.ThumbnailURL = req.ThumbnailURL

	if err := config.DB.Save(&tournament).Error; err != nil {
		utils.LogError("Failed to update tournament %d: %v", tournament.ID, err)
		utils.InternalServerError(c, "Failed to update tournament", nil)
		return
	}

	utils.Success(c, "Tournament updated successfully", gin.H{"tournament": tournament})
}

// TournamentStatusRequest represents a status change request body
type TournamentStatusRequest struct {
	Status       string `json:"status" binding:"required"`
	RoomID       string `json:"room_id"`
	RoomPassword string `json:"room_password"`
}

var tournamentStatusFlow = map[string][]string{
	models.TournamentStatusDraft:              {models.TournamentStatusUpcoming, models.TournamentStatusRegistrationOpen, models.TournamentStatusCancelled},
	models.TournamentStatusUpcoming:           {models.TournamentStatusRegistrationOpen, models.TournamentStatusCancelled},
	models.TournamentStatusRegistrationOpen:   {models.TournamentStatusRegistrationClosed, models.TournamentStatusActive, models.TournamentStatusCancelled},
	models.TournamentStatusRegistrationClosed: {models.TournamentStatusActive, models.TournamentStatusCancelled},
	models.TournamentStatusActive:             {models.TournamentStatusCompleted, models.TournamentStatusCancelled},
}

// UpdateTournamentStatus moves a tournament through its lifecycle. Room
// credentials are set when activating.
func UpdateTournamentStatus(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid tournament ID", nil)
		return
	}

	var req TournamentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request format", err.Error())
		return
	}

	var tournament models.Tournament
	if err := config.DB.First(&tournament, id).Error; err != nil {
		utils.NotFound(c, "Tournament not found")
		return
	}

	allowed := false
	for _, next := range tournamentStatusFlow[tournament.Status] {
		if next == req.Status {
			allowed = true
			break
		}
	}
	if !allowed {
		utils.BadRequest(c, fmt.Sprintf("Cannot move tournament from %s to %s", tournament.Status, req.Status), nil)
		return
	}

	if req.Status == models.TournamentStatusCancelled {
		CancelTournamentInternal(c, &tournament)
		return
	}

	tournament.Status = req.Status
	if req.RoomID != "" {
		tournament.RoomID = req.RoomID
	}
	if req.RoomPassword != "" {
		tournament.RoomPassword = req.RoomPassword
	}

	if err := config.DB.Save(&tournament).Error; err != nil {
		utils.LogError("Failed to update tournament %d status: %v", tournament.ID, err)
		utils.InternalServerError(c, "Failed to update tournament status", nil)
		return
	}

	utils.LogInfo("Tournament %d moved to %s", tournament.ID, tournament.Status)
	utils.Success(c, "Tournament status updated", gin.H{"tournament": tournament})
}

// CancelTournamentInternal cancels a tournament and refunds every confirmed
// entry fee
func CancelTournamentInternal(c *gin.Context, tournament *models.Tournament) {
	var registrations []models.Registration
	if err := config.DB.Where("tournament_id = ? AND status IN ?",
		tournament.ID, []string{models.RegistrationStatusConfirmed, models.RegistrationStatusCheckedIn}).
		Find(&registrations).Error; err != nil {
		utils.InternalServerError(c, "Failed to load registrations", nil)
		return
	}

	refunded := 0
	for i := range registrations {
		reg := &registrations[i]
		if reg.TransactionID != nil && reg.TokensPaid > 0 {
			if _, err := LedgerService.Refund(c.Request.Context(), *reg.TransactionID, "Tournament cancelled"); err != nil {
				// Already refunded entries are fine; anything else is logged
				// and the cancellation continues.
				utils.LogError("Refund failed for registration %d: %v", reg.ID, err)
			} else {
				refunded++
			}
		}
		config.DB.Model(reg).Update("status", models.RegistrationStatusCancelled)
	}

	tournament.Status = models.TournamentStatusCancelled
	if err := config.DB.Save(tournament).Error; err != nil {
		utils.LogError("Failed to cancel tournament %d: %v", tournament.ID, err)
		utils.InternalServerError(c, "Failed to cancel tournament", nil)
		return
	}

	utils.LogInfo("Tournament %d cancelled, %d entries refunded", tournament.ID, refunded)
	utils.Success(c, "Tournament cancelled and entry fees refunded", gin.H{
		"tournament":       tournament,
		"entries_refunded": refunded,
	})
}

// ListParticipants returns a tournament's registrations for the admin
func ListParticipants(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid tournament ID", nil)
		return
	}

	pagination := utils.NewPagination(c)
	query := config.DB.Model(&models.Registration{}).Where("tournament_id = ?", id)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch participants", nil)
		return
	}

	var registrations []models.Registration
	if err := query.Preload("User").Order("created_at asc").
		Limit(pagination.Limit).Offset(pagination.Offset).
		Find(&registrations).Error; err != nil {
		utils.LogError("Failed to fetch participants for tournament %d: %v", id, err)
		utils.InternalServerError(c, "Failed to fetch participants", nil)
		return
	}

	pagination.SetTotal(total)
	utils.SendPaginatedResponse(c, registrations, pagination)
}

// TournamentResultEntry is one player's final placement
type TournamentResultEntry struct {
	UserID   uint `json:"user_id" binding:"required"`
	Position int  `json:"position" binding:"required,gt=0"`
	Kills    *int `json:"kills"`
	Score    *int `json:"score"`
}

// CompleteTournamentRequest represents the results submission body
type CompleteTournamentRequest struct {
	Results []TournamentResultEntry `json:"results" binding:"required,dive"`
}

// rewardForPosition maps a placement onto the configured prize
func rewardForPosition(t *models.Tournament, position int) int {
	switch position {
	case 1:
		return t.FirstPlaceReward
	case 2:
		return t.SecondPlaceReward
	case 3:
		return t.ThirdPlaceReward
	case 4:
		return t.FourthPlaceReward
	case 5:
		return t.FifthPlaceReward
	}
	return 0
}

// CompleteTournament records final standings and credits prize tokens to the
// winners. Reward credits always succeed for valid users; a failed credit is
// reported but does not roll back the others.
func CompleteTournament(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid tournament ID", nil)
		return
	}

	var req CompleteTournamentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request format", err.Error())
		return
	}

	var tournament models.Tournament
	if err := config.DB.First(&tournament, id).Error; err != nil {
		utils.NotFound(c, "Tournament not found")
		return
	}
	if tournament.Status != models.TournamentStatusActive {
		utils.BadRequest(c, "Only an active tournament can be completed", nil)
		return
	}

	credited := make([]gin.H, 0, len(req.Results))
	for _, result := range req.Results {
		var registration models.Registration
		if err := config.DB.Where("tournament_id = ? AND user_id = ? AND status IN ?",
			tournament.ID, result.UserID,
			[]string{models.RegistrationStatusConfirmed, models.RegistrationStatusCheckedIn}).
			First(&registration).Error; err != nil {
			utils.BadRequest(c, fmt.Sprintf("User %d is not a participant", result.UserID), nil)
			return
		}

		position := result.Position
		registration.Position = &position
		registration.Kills = result.Kills
		registration.Score = result.Score

		reward := rewardForPosition(&tournament, result.Position)
		if reward > 0 {
			desc := fmt.Sprintf("Prize: %s (position %d)", tournament.Title, result.Position)
			tx, err := LedgerService.CreditReward(c.Request.Context(), result.UserID, tournament.ID, reward, desc)
			if err != nil {
				utils.LogError("Reward credit failed for user %d in tournament %d: %v", result.UserID, tournament.ID, err)
			} else {
				registration.RewardEarned = reward
				registration.RewardTransactionID = &tx.ID
				credited = append(credited, gin.H{"user_id": result.UserID, "position": result.Position, "reward": reward})
			}
		}

		if err := config.DB.Save(&registration).Error; err != nil {
			utils.LogError("Failed to save result for registration %d: %v", registration.ID, err)
		}
	}

	now := time.Now()
	tournament.Status = models.TournamentStatusCompleted
	tournament.EndDate = &now
	if err := config.DB.Save(&tournament).Error; err != nil {
		utils.LogError("Failed to complete tournament %d: %v", tournament.ID, err)
		utils.InternalServerError(c, "Failed to complete tournament", nil)
		return
	}

	utils.LogInfo("Tournament %d completed, %d rewards credited", tournament.ID, len(credited))
	utils.Success(c, "Tournament completed and rewards credited", gin.H{
		"tournament": tournament,
		"rewards":    credited,
	})
}
