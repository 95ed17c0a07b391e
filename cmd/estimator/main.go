package main

import (
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/deganai/lp-estimator/internal/config"
	"github.com/deganai/lp-estimator/internal/logger"
	"github.com/deganai/lp-estimator/internal/state"
	"github.com/deganai/lp-estimator/internal/web"
)

// main is the entry point for the LP impermanent loss estimator service.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(config.LogLevel)
	log.Info().Msg("LP Impermanent Loss Estimator starting...")

	// --- 2. Optional Estimate Journal ---
	// The DB is not required to serve estimates: without DB_HOST the service
	// runs with journaling disabled and the analytics endpoints report so.
	dbCfg, dbConfigured, err := state.LoadDBConfigFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid database configuration")
	}
	if dbConfigured {
		if err := state.InitDB(dbCfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
		log.Info().Msg("Estimate journal enabled")
	} else {
		log.Info().Msg("DB_HOST not set, running with estimate journaling disabled")
	}

	// --- 3. Serve ---
	if config.FreeMode {
		log.Warn().Msg("FREE_MODE is enabled. Payment enforcement is off.")
	}

	webServer := web.NewWebServer(strconv.Itoa(config.Port))
	log.Info().
		Int("port", config.Port).
		Str("url", config.BaseURL).
		Msg("Starting estimator web server")
	if err := webServer.Start(); err != nil {
		log.Fatal().Err(err).Msg("Web server failed")
	}
}
