package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	DBUrl            string
	Port             string
	JWTSecret        string
	NATSURL          string
	WebhookSecret    string
	SettlementURL    string
	SettlementAPIKey string
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, using environment defaults")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		DBUrl:            os.Getenv("DB_URL"),
		Port:             port,
		JWTSecret:        os.Getenv("JWT_SECRET"),
		NATSURL:          os.Getenv("NATS_URL"),
		WebhookSecret:    os.Getenv("WEBHOOK_SECRET"),
		SettlementURL:    os.Getenv("SETTLEMENT_URL"),
		SettlementAPIKey: os.Getenv("SETTLEMENT_API_KEY"),
	}
}
