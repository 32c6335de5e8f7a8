package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger. DEV gets a human readable console writer on
// stderr, every other environment gets JSON lines.
func Init(level, env string) {
	Setup(os.Stderr, level, env)
}

// Setup is Init with an explicit output, used by tests and the CLI's --quiet mode.
func Setup(w io.Writer, level, env string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	if env == "DEV" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	log.Debug().Str("level", lvl.String()).Msg("logger initialized")
}
