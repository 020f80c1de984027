// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init sets the global level and output. Development gets a console writer;
// every other environment logs JSON with timestamp, caller and service name.
func Init(serviceName, env, level string) error {
	return InitWriter(os.Stdout, serviceName, env, level)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, serviceName, env, level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return err
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if env == "development" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}).With().
			Timestamp().
			Str("service", serviceName).
			Logger()
		return nil
	}

	log.Logger = zerolog.New(w).
		With().
		Timestamp().
		Caller().
		Str("service", serviceName).
		Logger()
	return nil
}
