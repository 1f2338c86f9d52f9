package webcam

import (
	"fmt"
	"sync"
	"time"
)

// fakePlatform is an in-memory backend used by the package tests.
type fakePlatform struct {
	devices   []DeviceDescriptor
	enumErr   error
	openErr   error
	handles   map[string]*fakeHandle
	newHandle func(dev DeviceDescriptor) *fakeHandle
	opens     int
}

func newFakePlatform(devs ...DeviceDescriptor) *fakePlatform {
	return &fakePlatform{devices: devs, handles: make(map[string]*fakeHandle)}
}

func (p *fakePlatform) enumerate() ([]DeviceDescriptor, error) {
	if p.enumErr != nil {
		return nil, p.enumErr
	}
	return append([]DeviceDescriptor(nil), p.devices...), nil
}

func (p *fakePlatform) open(dev DeviceDescriptor) (deviceHandle, error) {
	p.opens++
	if p.openErr != nil {
		return nil, p.openErr
	}
	h, ok := p.handles[dev.key()]
	if !ok {
		if p.newHandle != nil {
			h = p.newHandle(dev)
		} else {
			h = newFakeHandle(nil)
		}
		p.handles[dev.key()] = h
	}
	h.mu.Lock()
	h.closed = false
	h.mu.Unlock()
	return h, nil
}

// fakeHandle negotiates against its catalog the way a driver would: an
// unsupported size is replaced by the closest one it offers.
type fakeHandle struct {
	mu sync.Mutex

	formats    []FormatDescriptor
	formatsErr error

	// refuseForced makes SetFormat fail when the size is forced.
	refuseForced bool
	setFormatErr error
	current      FormatDescriptor

	streamOnErr  error
	streamOffErr error
	streaming    bool
	closed       bool

	controls map[Control]int32
	ranges   map[Control]ControlRange
	auto     map[Control]bool
	rejectAt int32

	driver *fakeDriver

	calls map[string]int
}

func newFakeHandle(formats []FormatDescriptor) *fakeHandle {
	h := &fakeHandle{
		formats:  formats,
		controls: make(map[Control]int32),
		ranges:   make(map[Control]ControlRange),
		auto:     make(map[Control]bool),
		rejectAt: -1,
		driver:   newFakeDriver(4096),
		calls:    make(map[string]int),
	}
	if len(formats) > 0 {
		h.current = formats[0]
	}
	return h
}

func (h *fakeHandle) count(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[name]
}

func (h *fakeHandle) record(name string) {
	h.mu.Lock()
	h.calls[name]++
	h.mu.Unlock()
}

func (h *fakeHandle) Close() error {
	h.record("Close")
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

func (h *fakeHandle) Formats() ([]FormatDescriptor, error) {
	h.record("Formats")
	if h.formatsErr != nil {
		return nil, h.formatsErr
	}
	return append([]FormatDescriptor(nil), h.formats...), nil
}

func (h *fakeHandle) SetFormat(req FormatDescriptor, forceSize bool) (FormatDescriptor, int, error) {
	h.record("SetFormat")
	if h.setFormatErr != nil {
		return FormatDescriptor{}, 0, h.setFormatErr
	}
	if forceSize && h.refuseForced {
		return FormatDescriptor{}, 0, fmt.Errorf("%w: forced size refused", ErrRejectedByDevice)
	}

	w, ht := req.Width, req.Height
	if !forceSize {
		w, ht = h.current.Width, h.current.Height
	}
	actual := FormatDescriptor{Format: req.Format, Width: w, Height: ht}
	if cat := NewCapabilityCatalog(h.formats); !cat.Empty() {
		best, _ := SelectBestFormat(cat, req.Format, w, ht)
		actual = best
	}
	h.current = actual
	return actual, defaultStride(actual.Format, actual.Width), nil
}

func (h *fakeHandle) Buffers() slotDriver {
	return h.driver
}

func (h *fakeHandle) StreamOn() error {
	h.record("StreamOn")
	if h.streamOnErr != nil {
		return h.streamOnErr
	}
	h.streaming = true
	return nil
}

func (h *fakeHandle) StreamOff() error {
	h.record("StreamOff")
	h.streaming = false
	return h.streamOffErr
}

func (h *fakeHandle) GetControl(c Control) (int32, error) {
	h.record("GetControl")
	v, ok := h.controls[c]
	if !ok {
		return 0, ErrUnsupported
	}
	return v, nil
}

func (h *fakeHandle) SetControl(c Control, value int32) error {
	h.record("SetControl")
	if _, ok := h.controls[c]; !ok {
		return ErrUnsupported
	}
	if value == h.rejectAt {
		return fmt.Errorf("%w: value %d", ErrRejectedByDevice, value)
	}
	h.controls[c] = value
	return nil
}

func (h *fakeHandle) SetControlAuto(c Control, enabled bool) error {
	h.record("SetControlAuto")
	if _, ok := h.controls[c]; !ok {
		return ErrUnsupported
	}
	h.auto[c] = enabled
	return nil
}

func (h *fakeHandle) ControlRange(c Control) (ControlRange, error) {
	h.record("ControlRange")
	r, ok := h.ranges[c]
	if !ok {
		return ControlRange{}, ErrUnsupported
	}
	return r, nil
}

// fakeDriver simulates a driver buffer queue. Queued slots are filled in
// FIFO order as soon as they are dequeued unless stalled.
type fakeDriver struct {
	mu sync.Mutex

	size      int
	grant     int // regions granted; -1 grants what was asked
	allocErr  error
	failAfter int // allocate fails after mapping this many; -1 disables
	enqErr    error
	deqErr    error
	stall     bool
	bogus     int // when >= 0, dequeue returns this index instead
	payload   int // bytesUsed reported; 0 reports the whole region

	regions [][]byte
	queue   []int
	mapped  map[int]bool
	clock   time.Duration

	allocs, enqueues, dequeues, unmaps, frees int
}

func newFakeDriver(size int) *fakeDriver {
	return &fakeDriver{size: size, grant: -1, failAfter: -1, bogus: -1, mapped: make(map[int]bool)}
}

func (d *fakeDriver) allocate(count int) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.allocs++
	if d.allocErr != nil {
		return 0, d.allocErr
	}
	n := count
	if d.grant >= 0 {
		n = min(count, d.grant)
	}
	d.regions = make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		if d.failAfter >= 0 && i == d.failAfter {
			return len(d.regions), fmt.Errorf("mmap %d: out of memory", i)
		}
		d.regions = append(d.regions, make([]byte, d.size))
		d.mapped[i] = true
	}
	return n, nil
}

func (d *fakeDriver) enqueue(i int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enqueues++
	if d.enqErr != nil {
		return d.enqErr
	}
	for _, q := range d.queue {
		if q == i {
			return fmt.Errorf("slot %d already queued", i)
		}
	}
	d.queue = append(d.queue, i)
	return nil
}

func (d *fakeDriver) dequeue(timeout time.Duration) (int, int, time.Duration, error) {
	d.mu.Lock()
	d.dequeues++
	if d.deqErr != nil {
		err := d.deqErr
		d.mu.Unlock()
		return 0, 0, 0, err
	}
	if d.bogus >= 0 {
		i := d.bogus
		d.mu.Unlock()
		return i, d.size, 0, nil
	}
	if d.stall || len(d.queue) == 0 {
		d.mu.Unlock()
		time.Sleep(timeout)
		return 0, 0, 0, errWaitTimeout
	}
	i := d.queue[0]
	d.queue = d.queue[1:]
	d.clock += 33 * time.Millisecond
	n := d.payload
	if n == 0 {
		n = len(d.regions[i])
	}
	// Stamp the slot so tests can tell frames apart.
	d.regions[i][0] = byte(d.dequeues)
	ts := d.clock
	d.mu.Unlock()
	return i, n, ts, nil
}

func (d *fakeDriver) region(i int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.regions) {
		return nil
	}
	return d.regions[i]
}

func (d *fakeDriver) unmap(i int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.unmaps++
	delete(d.mapped, i)
	return nil
}

func (d *fakeDriver) free() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frees++
	d.queue = nil
	return nil
}

func (d *fakeDriver) liveMappings() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.mapped)
}

func (d *fakeDriver) setStall(v bool) {
	d.mu.Lock()
	d.stall = v
	d.mu.Unlock()
}
