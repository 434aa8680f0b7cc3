package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/natefinch/lumberjack"
)

const DefaultLogFileName = ".duxwatch.log"

// Options select where log lines go.
type Options struct {
	Level  string
	File   string // empty disables file output
	Stderr bool
}

// DefaultFile returns ~/.duxwatch.log, or a file in the working directory
// when the home directory is unknown.
func DefaultFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultLogFileName
	}
	return filepath.Join(home, DefaultLogFileName)
}

// New builds the application logger. The returned closer flushes and closes
// the rotating file, if any.
func New(opts Options) (*log.Logger, io.Closer) {
	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // Megabytes
			MaxBackups: 3,
			MaxAge:     30, // Days
		}
		writers = append(writers, rotator)
		closer = rotator
	}
	if opts.Stderr {
		writers = append(writers, os.Stderr)
	}

	var out io.Writer
	switch len(writers) {
	case 0:
		out = io.Discard
	case 1:
		out = writers[0]
	default:
		out = io.MultiWriter(writers...)
	}

	level, err := log.ParseLevel(opts.Level)
	if err != nil {
		level = log.InfoLevel
	}

	logger := log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           level,
		Prefix:          "duxwatch",
	})
	if opts.Stderr && opts.File != "" {
		// Colors would end up as escape codes in the file.
		logger.SetFormatter(log.LogfmtFormatter)
	}
	return logger, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
