package cgate

import "sync"

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// logSink holds an optional Logger behind a mutex. Types embed it to get
// nil-safe logging helpers and a SetLogger method.
type logSink struct {
	logger   Logger
	loggerMu sync.RWMutex
}

// SetLogger sets the logger. Safe to call at any time.
func (s *logSink) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

func (s *logSink) current() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}

func (s *logSink) logDebug(msg string, keysAndValues ...any) {
	if logger := s.current(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (s *logSink) logInfo(msg string, keysAndValues ...any) {
	if logger := s.current(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (s *logSink) logWarn(msg string, keysAndValues ...any) {
	if logger := s.current(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (s *logSink) logError(msg string, err error) {
	if logger := s.current(); logger != nil {
		logger.Error(msg, "error", err)
	}
}
