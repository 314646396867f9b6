package models

import (
	"time"

	"gorm.io/gorm"
)

// Tournament status constants
const (
	TournamentStatusDraft              = "draft"
	TournamentStatusUpcoming           = "upcoming"
	TournamentStatusRegistrationOpen   = "registration_open"
	TournamentStatusRegistrationClosed = "registration_closed"
	TournamentStatusActive             = "active"
	TournamentStatusCompleted          = "completed"
	TournamentStatusCancelled          = "cancelled"
)

// Tournament represents a scheduled gaming tournament
type Tournament struct {
	gorm.Model
	Title       string `json:"title" gorm:"size:255;not null"`
	Slug        string `json:"slug" gorm:"size:255;uniqueIndex;not null"`
	Game        string `json:"game" gorm:"size:50;not null"` // freefire, pubg, valorant, ...
	Description string `json:"description"`
	Rules       string `json:"rules"`

	// Entry and prizes (all in tokens)
	EntryFee          int `json:"entry_fee" gorm:"default:0"`
	PrizePool         int `json:"prize_pool" gorm:"default:0"`
	FirstPlaceReward  int `json:"first_place_reward" gorm:"default:0"`
	SecondPlaceReward int `json:"second_place_reward" gorm:"default:0"`
	ThirdPlaceReward  int `json:"third_place_reward" gorm:"default:0"`
	FourthPlaceReward int `json:"fourth_place_reward" gorm:"default:0"`
	FifthPlaceReward  int `json:"fifth_place_reward" gorm:"default:0"`

	MaxParticipants     int `json:"max_participants" gorm:"default:100"`
	MinParticipants     int `json:"min_participants" gorm:"default:2"`
	CurrentParticipants int `json:"current_participants" gorm:"default:0"`

	RegistrationStart *time.Time `json:"registration_start"`
	RegistrationEnd   *time.Time `json:"registration_end"`
	StartDate         time.Time  `json:"start_date" gorm:"not null"`
	EndDate           *time.Time `json:"end_date"`

	Status string `json:"status" gorm:"size:30;default:'draft'"`

	BannerURL    string `json:"banner_url" gorm:"size:500"`
	ThumbnailURL string `json:"thumbnail_url" gorm:"size:500"`

	// Room details shared with confirmed participants only
	RoomID       string `json:"-" gorm:"size:100"`
	RoomPassword string `json:"-" gorm:"size:100"`

	Registrations []Registration `json:"registrations,omitempty" gorm:"foreignKey:TournamentID"`
}

// IsRegistrationOpen reports whether registration is currently possible
func (t *Tournament) IsRegistrationOpen() bool {
	if t.Status != TournamentStatusRegistrationOpen {
		return false
	}
	now := time.Now()
	if t.RegistrationStart != nil && now.Before(*t.RegistrationStart) {
		return false
	}
	if t.RegistrationEnd != nil && now.After(*t.RegistrationEnd) {
		return false
	}
	return t.CurrentParticipants < t.MaxParticipants
}

// SlotsAvailable returns the number of remaining slots
func (t *Tournament) SlotsAvailable() int {
	if n := t.MaxParticipants - t.CurrentParticipants; n > 0 {
		return n
	}
	return 0
}

// Registration status constants
const (
	RegistrationStatusConfirmed    = "confirmed"
	RegistrationStatusCancelled    = "cancelled"
	RegistrationStatusCheckedIn    = "checked_in"
	RegistrationStatusNoShow       = "no_show"
	RegistrationStatusDisqualified = "disqualified"
)

// Registration links a user to a tournament they have paid the entry fee for
type Registration struct {
	gorm.Model
	UserID       uint       `json:"user_id" gorm:"index;not null"`
	User         User       `json:"-" gorm:"foreignKey:UserID"`
	TournamentID uint       `json:"tournament_id" gorm:"index;not null"`
	Tournament   Tournament `json:"-" gorm:"foreignKey:TournamentID"`

	Status        string `json:"status" gorm:"size:20;default:'confirmed'"`
	TokensPaid    int    `json:"tokens_paid" gorm:"not null"`
	TransactionID *uint  `json:"transaction_id"` // entry fee debit

	PlayerID string `json:"player_id" gorm:"size:100"`
	TeamName string `json:"team_name" gorm:"size:100"`

	// Results
	Position            *int  `json:"position"`
	RewardEarned        int   `json:"reward_earned" gorm:"default:0"`
	RewardTransactionID *uint `json:"reward_transaction_id"`
	Kills               *int  `json:"kills"`
	Score               *int  `json:"score"`

	CheckedIn   bool       `json:"checked_in" gorm:"default:false"`
	CheckedInAt *time.Time `json:"checked_in_at"`
}

// CheckIn marks the player as present for the tournament
func (r *Registration) CheckIn() {
	now := time.Now()
	r.CheckedIn = true
	r.CheckedInAt = &now
	r.Status = RegistrationStatusCheckedIn
}
