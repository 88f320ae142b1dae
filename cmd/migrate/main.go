package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"pomodoro/timerd/internal/config"
	"pomodoro/timerd/internal/db"
	"pomodoro/timerd/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Setup(cfg.LogLevel)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		log.Fatal().Err(err).Msg("create data directory")
	}
	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer database.Close()

	applied, err := db.RunMigrations(context.Background(), database, cfg.MigrationsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}

	log.Info().Int("applied", len(applied)).Str("db", cfg.DBPath).Msg("Migrations applied successfully")
}
