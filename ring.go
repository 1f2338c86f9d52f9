package webcam

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SlotState tracks who may touch a slot's memory.
type SlotState int

const (
	SlotFree   SlotState = iota // mapped, not handed to the device
	SlotQueued                  // owned by the device, being filled
	SlotInUse                   // filled, owned by the consumer (read-only)
)

func (s SlotState) String() string {
	switch s {
	case SlotFree:
		return "free"
	case SlotQueued:
		return "queued"
	case SlotInUse:
		return "in-use"
	default:
		return fmt.Sprintf("SlotState(%d)", int(s))
	}
}

// dequeueSlice bounds each wait on the driver so cancellation and close
// are noticed promptly.
const dequeueSlice = 100 * time.Millisecond

type slot struct {
	state     SlotState
	bytesUsed int
	timestamp time.Duration
	gen       uint64
}

// fill describes a slot that acquireFilled moved to SlotInUse.
type fill struct {
	slot      int
	bytesUsed int
	timestamp time.Duration
	gen       uint64
}

// ring owns the mapped regions of one session and enforces the
// queue/dequeue discipline on them.
type ring struct {
	driver  slotDriver
	timeout time.Duration
	log     zerolog.Logger

	mu      sync.Mutex
	slots   []slot
	started bool
	torn    bool

	done     chan struct{}
	doneOnce sync.Once
}

// newRing maps up to count regions. The device may grant fewer; that count
// becomes the ring size. Anything mapped before a failure is unmapped
// before returning.
func newRing(driver slotDriver, count int, timeout time.Duration, log zerolog.Logger) (*ring, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: buffer count %d", ErrBufferAllocationFailed, count)
	}
	if timeout <= 0 {
		timeout = DefaultCaptureTimeout
	}

	mapped, err := driver.allocate(count)
	if err == nil && mapped < 1 {
		err = fmt.Errorf("device granted no buffers")
	}
	if err != nil {
		for i := 0; i < mapped; i++ {
			if uerr := driver.unmap(i); uerr != nil {
				log.Debug().Err(uerr).Int("slot", i).Msg("unmap after failed allocation")
			}
		}
		if ferr := driver.free(); ferr != nil {
			log.Debug().Err(ferr).Msg("free after failed allocation")
		}
		return nil, fmt.Errorf("%w: %w", ErrBufferAllocationFailed, err)
	}

	if mapped < count {
		log.Info().Int("requested", count).Int("granted", mapped).Msg("device granted fewer buffers")
	}
	if mapped == 1 {
		log.Warn().Msg("single-buffer ring: each frame must be released before the next can be filled")
	}

	return &ring{
		driver:  driver,
		timeout: timeout,
		log:     log,
		slots:   make([]slot, mapped),
		done:    make(chan struct{}),
	}, nil
}

// start hands every free slot to the device.
func (r *ring) start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.torn {
		return ErrSessionClosed
	}
	for i := range r.slots {
		if r.slots[i].state != SlotFree {
			continue
		}
		if err := r.driver.enqueue(i); err != nil {
			return fmt.Errorf("%w: enqueue slot %d: %w", ErrCaptureFailed, i, err)
		}
		r.slots[i].state = SlotQueued
	}
	r.started = true
	return nil
}

// acquireFilled waits for the device to fill one queued slot and moves it
// to SlotInUse. Free slots, left behind by a refused re-enqueue, are
// handed back to the device first. Apart from that no slot changes state
// when it returns an error.
func (r *ring) acquireFilled(ctx context.Context) (fill, error) {
	r.mu.Lock()
	switch {
	case r.torn:
		r.mu.Unlock()
		return fill{}, ErrSessionClosed
	case !r.started:
		r.mu.Unlock()
		return fill{}, ErrNotStreaming
	}
	requeueErr := r.requeueFreeLocked()
	if r.countLocked(SlotQueued) == 0 {
		r.mu.Unlock()
		if requeueErr != nil {
			return fill{}, fmt.Errorf("%w: no slot could be queued: %w", ErrCaptureFailed, requeueErr)
		}
		return fill{}, fmt.Errorf("%w: no queued slot, every slot is held by the consumer", ErrInvalidSlotState)
	}
	r.mu.Unlock()

	deadline := time.Now().Add(r.timeout)
	for {
		select {
		case <-ctx.Done():
			return fill{}, ctx.Err()
		case <-r.done:
			return fill{}, ErrSessionClosed
		default:
		}

		wait := time.Until(deadline)
		if wait <= 0 {
			return fill{}, ErrCaptureTimeout
		}
		idx, n, ts, err := r.driver.dequeue(min(wait, dequeueSlice))
		if errors.Is(err, errWaitTimeout) {
			continue
		}
		if err != nil {
			return fill{}, fmt.Errorf("%w: %w", ErrCaptureFailed, err)
		}

		r.mu.Lock()
		if idx < 0 || idx >= len(r.slots) || r.slots[idx].state != SlotQueued {
			r.strayLocked(idx)
			r.mu.Unlock()
			return fill{}, fmt.Errorf("%w: device returned slot %d which is not queued", ErrInvalidSlotState, idx)
		}
		s := &r.slots[idx]
		s.state = SlotInUse
		s.bytesUsed = n
		s.timestamp = ts
		s.gen++
		f := fill{slot: idx, bytesUsed: n, timestamp: ts, gen: s.gen}
		r.mu.Unlock()
		return f, nil
	}
}

// requeueFreeLocked hands every free slot to the device. Slots the device
// refuses stay free and are tried again on the next acquire.
func (r *ring) requeueFreeLocked() error {
	var errs []error
	for i := range r.slots {
		if r.slots[i].state != SlotFree {
			continue
		}
		if err := r.driver.enqueue(i); err != nil {
			errs = append(errs, fmt.Errorf("enqueue slot %d: %w", i, err))
			continue
		}
		r.slots[i].state = SlotQueued
		r.log.Debug().Int("slot", i).Msg("requeued free slot")
	}
	return errors.Join(errs...)
}

// strayLocked handles a dequeued index the ring did not have queued. The
// device no longer holds that buffer: a free slot is picked up again by
// requeueFreeLocked, a slot held by the consumer is left alone.
func (r *ring) strayLocked(idx int) {
	ev := r.log.Warn().Int("slot", idx)
	if idx >= 0 && idx < len(r.slots) {
		ev = ev.Stringer("state", r.slots[idx].state)
	}
	ev.Msg("device returned a slot that was not queued")
}

// release hands an in-use slot back to the device. gen must match the
// generation returned by acquireFilled.
func (r *ring) release(i int, gen uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.torn || i < 0 || i >= len(r.slots) {
		return fmt.Errorf("%w: slot %d", ErrInvalidSlotState, i)
	}
	s := &r.slots[i]
	if s.state != SlotInUse || s.gen != gen {
		return fmt.Errorf("%w: slot %d is %s", ErrInvalidSlotState, i, s.state)
	}
	if err := r.driver.enqueue(i); err != nil {
		// The device refused it. The slot goes back to free and the
		// next acquireFilled offers it to the device again.
		s.state = SlotFree
		return fmt.Errorf("%w: re-enqueue slot %d: %w", ErrCaptureFailed, i, err)
	}
	s.state = SlotQueued
	return nil
}

// region returns slot i's memory while it is in use, nil otherwise.
func (r *ring) region(i int, gen uint64) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.torn || i < 0 || i >= len(r.slots) || r.slots[i].state != SlotInUse || r.slots[i].gen != gen {
		return nil
	}
	return r.driver.region(i)
}

// interrupt makes a pending acquireFilled return ErrSessionClosed.
func (r *ring) interrupt() {
	r.doneOnce.Do(func() { close(r.done) })
}

// teardown unmaps every region regardless of state and frees the driver's
// buffers. Calling it again does nothing.
func (r *ring) teardown() error {
	r.interrupt()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.torn {
		return nil
	}
	r.torn = true
	r.started = false

	var errs []error
	for i := range r.slots {
		if err := r.driver.unmap(i); err != nil {
			errs = append(errs, fmt.Errorf("unmap slot %d: %w", i, err))
		}
		r.slots[i].state = SlotFree
		r.slots[i].gen++
	}
	if err := r.driver.free(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (r *ring) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

func (r *ring) state(i int) SlotState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i < 0 || i >= len(r.slots) {
		return SlotFree
	}
	return r.slots[i].state
}

func (r *ring) count(state SlotState) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countLocked(state)
}

func (r *ring) countLocked(state SlotState) int {
	n := 0
	for i := range r.slots {
		if r.slots[i].state == state {
			n++
		}
	}
	return n
}
