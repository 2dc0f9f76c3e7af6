package progress

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// LogSink writes progress to the log for non-interactive runs. It logs every
// label change and every step of ten percent.
type LogSink struct {
	logger *log.Entry

	mu        sync.Mutex
	lastLabel string
	lastStep  int
}

// NewLogSink returns a sink that logs through logger, or the standard logger when nil.
func NewLogSink(logger *log.Entry) *LogSink {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &LogSink{
		logger:   logger.WithField("component", "progress"),
		lastStep: -1,
	}
}

// Progress implements update.ProgressSink.
func (s *LogSink) Progress(percent int, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if label == "" {
		label = s.lastLabel
	}
	step := percent / 10
	if label == s.lastLabel && step == s.lastStep {
		return
	}
	s.lastLabel, s.lastStep = label, step

	s.logger.WithField("percent", percent).Info(label)
}
