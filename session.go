package webcam

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SessionState is the lifecycle position of a Session.
type SessionState int

const (
	StateClosed SessionState = iota
	StateConfiguring
	StateStreaming
)

func (s SessionState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConfiguring:
		return "configuring"
	case StateStreaming:
		return "streaming"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// Stats are running counters for one session.
type Stats struct {
	Frames        uint64        `json:"frames" yaml:"frames"`
	Timeouts      uint64        `json:"timeouts" yaml:"timeouts"`
	Failures      uint64        `json:"failures" yaml:"failures"`
	LastTimestamp time.Duration `json:"last_timestamp" yaml:"last_timestamp"`
}

// Session is an open, streaming capture device. Capture is meant to be
// driven from one goroutine; Close, Stats and the parameter methods may be
// called from any goroutine.
type Session struct {
	id        uuid.UUID
	dev       DeviceDescriptor
	requested FormatDescriptor
	actual    FormatDescriptor
	stride    int
	opts      options
	log       zerolog.Logger

	// captureMu serializes Capture and lets Close wait for a pending one.
	captureMu sync.Mutex

	mu          sync.Mutex
	state       SessionState
	closing     bool
	handle      deviceHandle
	ring        *ring
	unlock      func()
	outstanding *FrameView
	sequence    uint64
	stats       Stats
}

// OpenSession opens dev and starts streaming with the requested encoding
// and resolution. The device may substitute a nearby mode; Negotiated
// reports what is actually in effect. Any failure is returned as an
// *OpenError after everything acquired so far has been released.
func OpenSession(dev DeviceDescriptor, format PixelFormat, width, height int, opts ...Option) (*Session, error) {
	return openSession(currentPlatform(), dev, format, width, height, opts...)
}

func openSession(p platform, dev DeviceDescriptor, format PixelFormat, width, height int, opts ...Option) (*Session, error) {
	o := buildOptions(opts)
	id := uuid.New()
	s := &Session{
		id:        id,
		dev:       dev,
		requested: FormatDescriptor{Format: format, Width: width, Height: height},
		opts:      o,
		log: o.log().With().
			Str("component", "webcam").
			Str("session", id.String()).
			Str("device", dev.key()).
			Logger(),
		state: StateConfiguring,
	}

	// undo runs in reverse on failure.
	var undo []func()
	fail := func(stage OpenStage, err error) (*Session, error) {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		s.state = StateClosed
		s.log.Error().Err(err).Str("stage", stage.String()).Msg("open failed")
		return nil, &OpenError{Device: dev.key(), Stage: stage, Err: err}
	}

	if !format.Valid() {
		return fail(StageNegotiate, fmt.Errorf("%w: pixel format %d", ErrUnsupported, int(format)))
	}
	if width <= 0 || height <= 0 {
		return fail(StageNegotiate, fmt.Errorf("%w: resolution %dx%d", ErrUnsupported, width, height))
	}

	unlock, err := devices.acquire(dev.key())
	if err != nil {
		return fail(StageAcquire, err)
	}
	undo = append(undo, unlock)

	h, err := p.open(dev)
	if err != nil {
		return fail(StageAcquire, err)
	}
	undo = append(undo, func() {
		if err := h.Close(); err != nil {
			s.log.Debug().Err(err).Msg("close handle during unwind")
		}
	})

	actual, stride, err := h.SetFormat(s.requested, true)
	if err != nil {
		s.log.Warn().Err(err).Str("requested", s.requested.String()).
			Msg("device refused requested resolution, retrying with its current size")
		actual, stride, err = h.SetFormat(s.requested, false)
		if err != nil {
			return fail(StageNegotiate, err)
		}
	}
	if actual.Substituted(s.requested) {
		s.log.Info().Str("requested", s.requested.String()).Str("actual", actual.String()).
			Msg("device substituted format")
	}
	s.actual, s.stride = actual, stride

	r, err := newRing(h.Buffers(), o.bufferCount, o.captureTimeout, s.log)
	if err != nil {
		return fail(StageAllocate, err)
	}
	undo = append(undo, func() {
		if err := r.teardown(); err != nil {
			s.log.Debug().Err(err).Msg("ring teardown during unwind")
		}
	})

	if err := r.start(); err != nil {
		return fail(StageQueue, err)
	}
	if err := h.StreamOn(); err != nil {
		return fail(StageStreamOn, err)
	}

	s.handle, s.ring, s.unlock = h, r, unlock
	s.state = StateStreaming
	s.log.Info().Str("format", actual.String()).Int("buffers", r.size()).Msg("streaming")
	return s, nil
}

// Capture waits for the next frame, bounded by the capture timeout.
func (s *Session) Capture() (*FrameView, error) {
	return s.CaptureContext(context.Background())
}

// CaptureContext is Capture with cancellation. Cancelling abandons the wait
// without changing any slot state.
//
// Timeouts and I/O failures leave the session streaming; the caller decides
// whether to retry. Calling it while a previous frame is still held returns
// ErrInvalidSlotState.
func (s *Session) CaptureContext(ctx context.Context) (*FrameView, error) {
	s.captureMu.Lock()
	defer s.captureMu.Unlock()

	s.mu.Lock()
	if err := s.streamingLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.outstanding != nil {
		slot := s.outstanding.slot
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: frame in slot %d was not released", ErrInvalidSlotState, slot)
	}
	r := s.ring
	s.mu.Unlock()

	f, err := r.acquireFilled(ctx)
	if err != nil {
		s.mu.Lock()
		switch {
		case errors.Is(err, ErrCaptureTimeout):
			s.stats.Timeouts++
		case errors.Is(err, ErrCaptureFailed):
			s.stats.Failures++
		}
		s.mu.Unlock()
		s.log.Debug().Err(err).Msg("capture")
		return nil, err
	}

	region := r.region(f.slot, f.gen)
	if region == nil {
		if err := r.release(f.slot, f.gen); err != nil {
			s.log.Debug().Err(err).Int("slot", f.slot).Msg("requeue unmapped slot")
		}
		return nil, fmt.Errorf("%w: slot %d has no mapping", ErrCaptureFailed, f.slot)
	}
	length := s.validLength(f.bytesUsed, len(region))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return nil, ErrSessionClosed
	}
	s.sequence++
	v := &FrameView{
		session:   s,
		slot:      f.slot,
		gen:       f.gen,
		length:    length,
		width:     s.actual.Width,
		height:    s.actual.Height,
		stride:    s.stride,
		format:    s.actual.Format,
		timestamp: f.timestamp,
		sequence:  s.sequence,
	}
	s.outstanding = v
	s.stats.Frames++
	s.stats.LastTimestamp = f.timestamp
	return v, nil
}

// validLength is the payload size of a captured slot: the negotiated
// format's fixed size for uncompressed encodings, the driver's count for
// compressed ones, never more than the region holds. Drivers that report
// a short bytesused for raw formats still fill the whole frame.
func (s *Session) validLength(bytesUsed, capacity int) int {
	n, fixed := FrameSize(s.actual.Format, s.actual.Width, s.actual.Height)
	if fixed {
		// Packed encodings with padded rows span stride*height.
		if !s.actual.Format.planar() && s.stride > 0 && s.stride*s.actual.Height > n {
			n = s.stride * s.actual.Height
		}
	} else {
		n = bytesUsed
	}
	return max(0, min(n, capacity))
}

// Release returns the frame's slot to the device. Releasing a view twice,
// or a view from another session, returns ErrInvalidSlotState.
func (s *Session) Release(v *FrameView) error {
	if v == nil || v.session != s {
		return fmt.Errorf("%w: view does not belong to this session", ErrInvalidSlotState)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outstanding != v {
		return fmt.Errorf("%w: frame in slot %d already released", ErrInvalidSlotState, v.slot)
	}
	s.outstanding = nil
	if s.ring == nil {
		return nil
	}
	return s.ring.release(v.slot, v.gen)
}

func (s *Session) viewRegion(v *FrameView) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outstanding != v || s.ring == nil {
		return nil
	}
	return s.ring.region(v.slot, v.gen)
}

// Close stops streaming and releases every resource the session holds. It
// may be called while a Capture is blocked in another goroutine; that
// Capture returns ErrSessionClosed. Further calls return nil and touch
// nothing.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	r := s.ring
	s.mu.Unlock()

	if r != nil {
		r.interrupt()
	}
	s.captureMu.Lock()
	defer s.captureMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.outstanding = nil
	var errs []error
	if s.handle != nil && s.state == StateStreaming {
		if err := s.handle.StreamOff(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.ring != nil {
		if err := s.ring.teardown(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.handle != nil {
		if err := s.handle.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.unlock != nil {
		s.unlock()
	}
	s.handle, s.ring, s.unlock = nil, nil, nil
	s.state = StateClosed

	err := errors.Join(errs...)
	if err != nil {
		s.log.Warn().Err(err).Uint64("frames", s.stats.Frames).Msg("closed with errors")
	} else {
		s.log.Info().Uint64("frames", s.stats.Frames).Msg("closed")
	}
	return err
}

func (s *Session) streamingLocked() error {
	switch {
	case s.closing || s.state == StateClosed:
		return ErrSessionClosed
	case s.state != StateStreaming:
		return ErrNotStreaming
	}
	return nil
}

// ID identifies the session in logs.
func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) Device() DeviceDescriptor { return s.dev }

// Requested is what the caller asked OpenSession for.
func (s *Session) Requested() FormatDescriptor { return s.requested }

// Negotiated is the format actually in effect. Every FrameView reports
// these values.
func (s *Session) Negotiated() FormatDescriptor { return s.actual }

func (s *Session) ActualWidth() int          { return s.actual.Width }
func (s *Session) ActualHeight() int         { return s.actual.Height }
func (s *Session) ActualFormat() PixelFormat { return s.actual.Format }
func (s *Session) Stride() int               { return s.stride }

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// BufferCount is the number of slots the device granted.
func (s *Session) BufferCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ring == nil {
		return 0
	}
	return s.ring.size()
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// GetParameter reads the current value of c.
func (s *Session) GetParameter(c Control) (int32, error) {
	var v int32
	err := s.withControl("get", c, func(h deviceHandle) error {
		var err error
		v, err = h.GetControl(c)
		return err
	})
	return v, err
}

// SetParameter writes value to c. A device that refuses the value reports
// ErrRejectedByDevice.
func (s *Session) SetParameter(c Control, value int32) error {
	return s.withControl("set", c, func(h deviceHandle) error {
		return h.SetControl(c, value)
	})
}

// SetAuto toggles automatic mode. Only exposure and focus have one.
func (s *Session) SetAuto(c Control, enabled bool) error {
	if _, known := controlNames[c]; known && !c.SupportsAuto() {
		return &ControlError{Control: c, Op: "set-auto", Err: ErrUnsupported}
	}
	return s.withControl("set-auto", c, func(h deviceHandle) error {
		return h.SetControlAuto(c, enabled)
	})
}

// ParameterRange reports the bounds the device advertises for c.
func (s *Session) ParameterRange(c Control) (ControlRange, error) {
	var rng ControlRange
	err := s.withControl("range", c, func(h deviceHandle) error {
		var err error
		rng, err = h.ControlRange(c)
		rng.AutoCapable = rng.AutoCapable && c.SupportsAuto()
		return err
	})
	return rng, err
}

func (s *Session) withControl(op string, c Control, fn func(deviceHandle) error) error {
	if _, known := controlNames[c]; !known {
		return &ControlError{Control: c, Op: op, Err: ErrUnsupported}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing || s.handle == nil {
		return &ControlError{Control: c, Op: op, Err: ErrSessionClosed}
	}
	if err := fn(s.handle); err != nil {
		s.log.Debug().Err(err).Str("control", c.String()).Str("op", op).Msg("control")
		return &ControlError{Control: c, Op: op, Err: err}
	}
	return nil
}
