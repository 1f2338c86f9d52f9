package webcam

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultBufferCount is the ring size used when none is requested.
	DefaultBufferCount = 4
	// DefaultCaptureTimeout bounds a single Capture call.
	DefaultCaptureTimeout = 2 * time.Second
)

type options struct {
	bufferCount    int
	captureTimeout time.Duration
	logger         *zerolog.Logger
}

// Option configures OpenSession.
type Option func(*options)

// WithBufferCount sets the number of ring slots. A count of one works but
// leaves the device with no queued slot while a frame is held.
func WithBufferCount(n int) Option {
	return func(o *options) {
		o.bufferCount = n
	}
}

// WithCaptureTimeout bounds how long Capture waits for a filled slot.
func WithCaptureTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.captureTimeout = d
		}
	}
}

// WithLogger routes the session's diagnostics to l.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &l
	}
}

func buildOptions(opts []Option) options {
	o := options{
		bufferCount:    DefaultBufferCount,
		captureTimeout: DefaultCaptureTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func (o options) log() zerolog.Logger {
	if o.logger != nil {
		return *o.logger
	}
	return defaultLogger()
}
