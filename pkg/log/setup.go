package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// LogFileTimeFormat names each run's log file, e.g. 2024-03-01--12-30-05.log
const LogFileTimeFormat = "2006-01-02--15-04-05"

// RunLogger is the process logger plus the per-run log file it tees into
type RunLogger struct {
	*logrus.Logger
	Path string // Empty when no log file is attached
	file *os.File
}

// NewLogger creates a configured logrus.Logger with the given log level writing to stdout
func NewLogger(logLevelStr string, stdout io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(stdout)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
	}
	return log
}

// AttachRunFile tees the logger's output into logDir/{timestamp}.log
func AttachRunFile(log *logrus.Logger, logDir string, startedAt time.Time) (*RunLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("creating log directory '%s': %w", logDir, err)
	}
	path := filepath.Join(logDir, startedAt.Format(LogFileTimeFormat)+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file '%s': %w", path, err)
	}
	log.SetOutput(io.MultiWriter(log.Out, f))
	return &RunLogger{Logger: log, Path: path, file: f}, nil
}

// Close flushes and closes the run log file
func (r *RunLogger) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
