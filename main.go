package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"digibank/internal/config"
	"digibank/internal/db"
	"digibank/internal/logger"
	"digibank/internal/notify"
	"digibank/internal/router"
	"digibank/internal/services"
	"digibank/internal/store"

	"github.com/nats-io/nats.go"
)

func main() {
	cfg := config.LoadConfig()

	log := logger.InitLogger()
	log.Info().Msg("Starting digibank")

	database := db.InitDB(cfg.DBUrl)
	defer database.Close()

	db.RunMigrations(database)

	st := store.NewSQLStore(database)

	var dispatcher notify.Dispatcher = notify.NopDispatcher{}
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer nc.Close()
		dispatcher = notify.NewNATSDispatcher(nc, "", log)
		log.Info().Str("url", cfg.NATSURL).Msg("Connected to NATS")
	} else {
		log.Warn().Msg("NATS_URL not set, notifications are disabled")
	}

	var settle services.SettlementGateway = services.StaticSettlementGateway{Succeed: true}
	if cfg.SettlementURL != "" {
		settle = services.NewHTTPSettlementGateway(cfg.SettlementURL, cfg.SettlementAPIKey)
	} else {
		log.Warn().Msg("SETTLEMENT_URL not set, using the always-approve gateway")
	}

	r := router.SetupRouter(cfg, st, settle, dispatcher, log)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Info().Msgf("Server listening on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	log.Info().Msg("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
