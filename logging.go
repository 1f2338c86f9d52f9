package webcam

import (
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// LogFunc receives one formatted diagnostic line.
type LogFunc func(msg string)

var (
	logMu     sync.RWMutex
	logSink   zerolog.Logger
	logSinkOK bool
)

// SetLogFunc installs a process-wide sink for library diagnostics. It is
// meant to be called once at startup; a later call replaces the previous
// sink and a nil fn restores silence. Sessions capture the logger when they
// open, so replacing the sink does not affect sessions already open.
// Sessions opened with WithLogger ignore this sink.
func SetLogFunc(fn LogFunc) {
	logMu.Lock()
	defer logMu.Unlock()
	if fn == nil {
		logSink, logSinkOK = zerolog.Nop(), false
		return
	}
	logSink, logSinkOK = NewFuncLogger(fn), true
}

// NewFuncLogger adapts a line callback into a zerolog.Logger.
func NewFuncLogger(fn LogFunc) zerolog.Logger {
	w := zerolog.ConsoleWriter{
		Out:        funcWriter{fn: fn},
		NoColor:    true,
		TimeFormat: "15:04:05.000",
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

func defaultLogger() zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	if logSinkOK {
		return logSink
	}
	return zerolog.Nop()
}

type funcWriter struct {
	fn LogFunc
}

var _ io.Writer = funcWriter{}

func (w funcWriter) Write(p []byte) (int, error) {
	w.fn(strings.TrimRight(string(p), "\r\n"))
	return len(p), nil
}
