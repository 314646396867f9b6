package config

import (
	"fmt"

	"github.com/gamersarena/GamersArena/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// InitDB initializes the database connection and performs migrations.
// TranslateError must stay on: the ledger relies on gorm.ErrDuplicatedKey to
// detect idempotency key collisions.
func InitDB() {
	config, err := LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		config.DBHost, config.DBPort, config.DBUser, config.DBPassword, config.DBName)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to database: %v", err))
	}

	DB = db

	err = DB.AutoMigrate(
		&models.User{},
		&models.Admin{},
		&models.UserOTP{},
		&models.BlacklistedToken{},
		&models.Wallet{},
		&models.Transaction{},
		&models.IdempotencyKey{},
		&models.TokenBundle{},
		&models.Tournament{},
		&models.Registration{},
		&models.SiteSetting{},
	)
	if err != nil {
		panic(fmt.Sprintf("Failed to migrate database: %v", err))
	}
}
