// Package logging sets up the logrus logger shared by the commands
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ConsoleOutput selects stderr instead of a log file
const ConsoleOutput = "console"

// New returns a logger writing text to stderr at info level
func New() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetLevel(logrus.InfoLevel)
	return logger
}

// Init parses level and points logger at logPath. An empty path or
// "console" keeps stderr; anything else is a rotated file.
func Init(logger *logrus.Logger, level, logPath string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("error parsing log level %q: %w", level, err)
	}
	logger.SetLevel(lvl)

	if logPath == "" || logPath == ConsoleOutput {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0o750); err != nil {
		return fmt.Errorf("error creating log directory: %w", err)
	}
	logger.SetOutput(io.Writer(&lumberjack.Logger{
		Filename:   filepath.ToSlash(logPath),
		MaxSize:    5, // MB
		MaxBackups: 3,
		MaxAge:     14, // days
		Compress:   true,
	}))
	return nil
}
