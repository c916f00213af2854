// Package logger configures the global zerolog logger from command line options.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger holds the logging options shared by every command
type Logger struct {
	Level  string `long:"log-level"  env:"LOG_LEVEL"  description:"Log level" default:"info" choice:"trace" choice:"debug" choice:"info" choice:"warn" choice:"error" choice:"disabled"`
	Format string `long:"log-format" env:"LOG_FORMAT" description:"Log format" default:"console" choice:"console" choice:"json"`
}

// Setup configures the global logger to write to stderr
func (l Logger) Setup() {
	l.SetupWriter(os.Stderr)
}

// SetupWriter configures the global logger to write to w
func (l Logger) SetupWriter(w io.Writer) {
	level, err := zerolog.ParseLevel(strings.ToLower(l.Level))
	if err != nil || l.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if strings.EqualFold(l.Format, "json") {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.DateTime}).With().Timestamp().Logger()
	}

	if err != nil {
		log.Warn().Str("level", l.Level).Msg("Unknown log level, using info")
	}
}
