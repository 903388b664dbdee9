package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// InitLogger builds the root logger every service and handler derives
// its own from.
func InitLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Str("service", "digibank").
		Logger()
}
