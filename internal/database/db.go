package database

import (
	"time"

	"go-visa-office/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var DB *gorm.DB

// Connect opens the MySQL connection, waiting for the database to come
// up, and syncs the schema.
func Connect(dsn string) error {
	if dsn == "" {
		log.Fatal().Msg("DB_DSN not set; configure the database connection")
	}

	var err error
	for i := 0; i < 5; i++ {
		DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{})
		if err == nil {
			break
		}
		log.Warn().Err(err).Int("attempt", i+1).Msg("failed to connect to database, retrying in 2 seconds")
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return err
	}

	log.Info().Msg("connected to MySQL")
	return Migrate(DB)
}

// Migrate syncs the schema for every entity.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Secretary{},
		&models.Account{},
		&models.Visa{},
		&models.Expense{},
	)
}

// Set swaps the active connection; tests use this with in-memory sqlite.
func Set(db *gorm.DB) { DB = db }
