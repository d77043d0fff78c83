// Package logging builds the logrus loggers shared by the client components.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Options selects the level and destination of a logger.
type Options struct {
	Level string
	File  string
	// Fallback receives output when File is empty.
	Fallback io.Writer
}

// New returns a configured logger and a function that releases its output.
func New(opts Options) (*logrus.Logger, func() error, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("log level: %w", err)
		}
		level = parsed
	}
	logger.SetLevel(level)

	closer := func() error { return nil }
	switch {
	case opts.File != "":
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		logger.SetOutput(f)
		closer = f.Close
	case opts.Fallback != nil:
		logger.SetOutput(opts.Fallback)
	default:
		logger.SetOutput(os.Stderr)
	}
	return logger, closer, nil
}

// Discard returns an entry whose output goes nowhere. Components use it when
// the caller does not supply a logger.
func Discard() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}
