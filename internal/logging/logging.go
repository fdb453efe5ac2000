// Package logging configures the process-wide diagnostic logger. It is
// separate from the user-facing text the commands print to stdout: that
// text is what a human watching `blackbird sync` sees, this is what ends
// up in a log file when something needs investigating later.
package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jaa/blackbird/internal/config"
)

// New builds a logrus.Logger from the ambient Log config, writing to out.
// An unrecognized level falls back to Info rather than erroring, since a
// bad config value shouldn't keep the CLI from starting.
func New(cfg config.LogConfig, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	}

	return logger
}
