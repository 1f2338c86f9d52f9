package webcam

import (
	"time"
)

// platform is what each operating system backend provides. Exactly one
// implementation is compiled in, returned by currentPlatform.
type platform interface {
	enumerate() ([]DeviceDescriptor, error)
	open(dev DeviceDescriptor) (deviceHandle, error)
}

// deviceHandle is an opened capture device.
type deviceHandle interface {
	Close() error

	// Formats lists every (encoding, size, rate) the device advertises.
	Formats() ([]FormatDescriptor, error)

	// SetFormat applies req and returns what the device actually accepted
	// along with the row stride in bytes. With forceSize false the backend
	// keeps the device's current size and only negotiates the encoding.
	SetFormat(req FormatDescriptor, forceSize bool) (FormatDescriptor, int, error)

	// Buffers returns the slot driver bound to this handle.
	Buffers() slotDriver

	StreamOn() error
	StreamOff() error

	GetControl(c Control) (int32, error)
	SetControl(c Control, value int32) error
	SetControlAuto(c Control, enabled bool) error
	ControlRange(c Control) (ControlRange, error)
}

// slotDriver is the platform primitive under the buffer ring. It only moves
// memory; slot state lives in the ring.
type slotDriver interface {
	// allocate asks for count regions and returns how many were mapped.
	// On error the regions already mapped are still reported so the
	// caller can unmap them.
	allocate(count int) (int, error)

	// enqueue hands slot i to the device for filling.
	enqueue(i int) error

	// dequeue waits at most timeout for a filled slot. It returns
	// errWaitTimeout when the wait elapsed.
	dequeue(timeout time.Duration) (index, bytesUsed int, ts time.Duration, err error)

	region(i int) []byte
	unmap(i int) error
	free() error
}
