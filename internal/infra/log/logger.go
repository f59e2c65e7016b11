package log

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger создаёт настроенный zerolog.
func NewLogger(appEnv string) zerolog.Logger {
	return newLogger(appEnv, false)
}

// NewDebugLogger включает уровень Debug независимо от окружения, если debug=true.
func NewDebugLogger(appEnv string, debug bool) zerolog.Logger {
	return newLogger(appEnv, debug)
}

func newLogger(appEnv string, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if appEnv == "dev" || debug {
		level = zerolog.DebugLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
}
