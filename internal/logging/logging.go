// Package logging constructs the process-wide zerolog logger from config.
package logging

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/SweetModels/sweet-models-enterprise/internal/config"
)

// New returns a configured zerolog.Logger. Never stored in a package
// global — callers thread it through component constructors.
func New(cfg *config.Config) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: os.Stderr}
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	if cfg.IsDevelopment() && cfg.LogLevel == "" {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)
	return zerolog.New(out).With().Timestamp().Logger()
}
