package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// NewLogger returns a file-backed logger for the API. Everything down to
// debug is captured so a failed run can be diagnosed after the fact.
func NewLogger(logDir string) (*logrus.Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	fname := fmt.Sprintf("mediastack-%s.api.log", time.Now().Format("20060102150405.000"))
	logpath := filepath.Join(logDir, fname)
	logfile, err := os.OpenFile(logpath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	logger := logrus.New()
	// Set to debug by default to capture all the manager and execution logs
	logger.SetLevel(logrus.DebugLevel)
	logger.SetOutput(logfile)

	logger.Infof("command line arguments: %v", os.Args)

	return logger, nil
}

func NewDiscardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
