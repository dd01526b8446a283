package guest

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger   *zap.Logger
	loggerMu sync.RWMutex
)

// Logger returns the guest package's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// SetLogger sets the logger used for guest calls and guest output.
func SetLogger(l *zap.Logger) {
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

// outputWriter forwards guest stdout/stderr to the logger.
type outputWriter struct {
	module string
	stream string
}

func (w outputWriter) Write(p []byte) (int, error) {
	Logger().Debug("guest output",
		zap.String("module", w.module),
		zap.String("stream", w.stream),
		zap.ByteString("data", p))
	return len(p), nil
}
