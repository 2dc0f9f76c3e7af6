// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Console disables the log file when used as the file path.
const Console = "console"

// Init parses and sets the log level and sends output to a rotated file and,
// when console is non-nil, to console as well. The returned closer flushes the
// file and must be closed on exit.
func Init(logLevel, logPath string, console io.Writer) (io.Closer, error) {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}

	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	if logPath != "" && logPath != Console {
		if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
			return nil, err
		}
		lumberjackLogger := &lumberjack.Logger{
			// Log file absolute path, os agnostic
			Filename:   filepath.ToSlash(logPath),
			MaxSize:    5, // MB
			MaxBackups: 3,
			MaxAge:     30, // days
			Compress:   true,
		}
		writers = append(writers, lumberjackLogger)
		closer = lumberjackLogger
	}
	if console != nil {
		writers = append(writers, console)
	}

	switch len(writers) {
	case 0:
		log.SetOutput(io.Discard)
	case 1:
		log.SetOutput(writers[0])
	default:
		log.SetOutput(io.MultiWriter(writers...))
	}

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
		DisableColors:   console == nil,
	})
	log.SetLevel(level)
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
