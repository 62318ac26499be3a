package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"bomsabor-web/config"

	"github.com/rs/zerolog"
)

// New builds the process logger. Pretty output is meant for a terminal.
func New(cfg config.LogConfig) *zerolog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

func NewWithWriter(cfg config.LogConfig, w io.Writer) *zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	l := zerolog.New(w).Level(level).With().Timestamp().Str("service", "bomsabor-web").Logger()
	return &l
}
