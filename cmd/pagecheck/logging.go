package main

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/pagecheck/pagecheck/internal/config"
	"github.com/pagecheck/pagecheck/internal/exitcode"
	"github.com/pagecheck/pagecheck/internal/report"
)

func newLogger(cfg config.LoggingConfig, out io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, exitcode.Wrap(fmt.Errorf("invalid logging.level: %w", err), exitcode.InvalidConfig)
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			DisableColors: !report.ColorEnabled(out),
		})
	}
	return logger, nil
}
