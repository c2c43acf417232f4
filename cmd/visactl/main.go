package main

import (
	"os"
	"time"

	"go-visa-office/internal/config"
	"go-visa-office/internal/database"
	"go-visa-office/internal/logger"
	"go-visa-office/internal/migration"
	"go-visa-office/internal/sweep"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func connect() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found")
	}
	cfg := config.Load()
	logger.Setup(cfg.LogLevel, cfg.LogFormat)
	if err := database.Connect(cfg.DSN); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
}

func main() {
	root := &cobra.Command{
		Use:   "visactl",
		Short: "Back-office maintenance commands for the visa system",
	}

	root.AddCommand(&cobra.Command{
		Use:   "check-overdue",
		Short: "Cancel overdue visas and refresh arrival deadlines",
		Run: func(cmd *cobra.Command, args []string) {
			connect()
			result, err := sweep.Run(database.DB, time.Now())
			if err != nil {
				log.Fatal().Err(err).Msg("sweep failed")
			}
			log.Info().
				Int("cancelled", result.Cancelled).
				Int("deadlines_updated", result.DeadlinesUpdated).
				Int("failed", result.Failed).
				Msg("sweep complete")
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "migrate-arrival",
		Short: "Backfill arrival deadline fields on existing visas",
		Run: func(cmd *cobra.Command, args []string) {
			connect()
			result, err := migration.ArrivalBackfill(database.DB, time.Now())
			if err != nil {
				log.Fatal().Err(err).Msg("backfill failed")
			}
			log.Info().
				Int("migrated", result.Migrated).
				Int("skipped", result.Skipped).
				Int("failed", result.Failed).
				Msg("backfill complete")
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
