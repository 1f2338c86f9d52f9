package webcam

import (
	"time"
)

// FrameView is a read-only window onto one filled ring slot. It aliases
// device memory; nothing is copied. The view stops returning data the
// moment it is released or its session closes.
type FrameView struct {
	session   *Session
	slot      int
	gen       uint64
	length    int
	width     int
	height    int
	stride    int
	format    PixelFormat
	timestamp time.Duration
	sequence  uint64
}

// Bytes returns the frame payload, or nil once the view is no longer valid.
// The slice must not be retained past Release.
func (v *FrameView) Bytes() []byte {
	if v == nil || v.session == nil {
		return nil
	}
	region := v.session.viewRegion(v)
	if region == nil {
		return nil
	}
	return region[:v.length]
}

// Valid reports whether the view still refers to a filled slot.
func (v *FrameView) Valid() bool {
	return v.Bytes() != nil
}

// Clone copies the payload so it can outlive the view.
func (v *FrameView) Clone() []byte {
	b := v.Bytes()
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Release hands the slot back to the device. It is the same as calling
// Session.Release with this view.
func (v *FrameView) Release() error {
	if v == nil || v.session == nil {
		return ErrInvalidSlotState
	}
	return v.session.Release(v)
}

func (v *FrameView) Len() int            { return v.length }
func (v *FrameView) Width() int          { return v.width }
func (v *FrameView) Height() int         { return v.height }
func (v *FrameView) Stride() int         { return v.stride }
func (v *FrameView) Format() PixelFormat { return v.format }
func (v *FrameView) Slot() int           { return v.slot }

// Timestamp is the device's capture-completion clock, not the call time.
func (v *FrameView) Timestamp() time.Duration { return v.timestamp }

// Sequence counts frames delivered by the session, starting at 1.
func (v *FrameView) Sequence() uint64 { return v.sequence }
