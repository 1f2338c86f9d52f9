package webcam

import (
	"fmt"
)

// Error types. Platform status codes (errno, HRESULT) are always wrapped
// under one of these before they leave the package.
var (
	ErrDeviceUnavailable      = fmt.Errorf("device unavailable")
	ErrNoCandidateFormat      = fmt.Errorf("no candidate format")
	ErrOpenFailed             = fmt.Errorf("open failed")
	ErrDeviceBusy             = fmt.Errorf("device busy")
	ErrCaptureTimeout         = fmt.Errorf("capture timeout")
	ErrCaptureFailed          = fmt.Errorf("capture failed")
	ErrInvalidSlotState       = fmt.Errorf("invalid slot state")
	ErrBufferAllocationFailed = fmt.Errorf("buffer allocation failed")
	ErrUnsupported            = fmt.Errorf("unsupported")
	ErrRejectedByDevice       = fmt.Errorf("rejected by device")
	ErrNotStreaming           = fmt.Errorf("session not streaming")
	ErrSessionClosed          = fmt.Errorf("session closed")
	ErrUnsupportedPlatform    = fmt.Errorf("platform not supported")
)

// errWaitTimeout is returned by a slot driver when its bounded wait
// elapsed without a filled slot. The ring retries until its own deadline.
var errWaitTimeout = fmt.Errorf("wait timeout")

// OpenStage identifies the step of OpenSession that failed.
type OpenStage int

const (
	StageAcquire OpenStage = iota
	StageNegotiate
	StageAllocate
	StageQueue
	StageStreamOn
)

func (s OpenStage) String() string {
	switch s {
	case StageAcquire:
		return "acquire"
	case StageNegotiate:
		return "negotiate"
	case StageAllocate:
		return "allocate"
	case StageQueue:
		return "queue"
	case StageStreamOn:
		return "stream-on"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// OpenError is returned by OpenSession. Everything acquired before the
// failing stage has already been released when the caller sees it.
type OpenError struct {
	Device string
	Stage  OpenStage
	Err    error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("webcam: open %s failed at %s: %v", e.Device, e.Stage, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// Is reports ErrOpenFailed so callers can match any open failure.
func (e *OpenError) Is(target error) bool {
	return target == ErrOpenFailed
}
