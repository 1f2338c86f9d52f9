package webcam

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"
)

type windowsPlatform struct{}

func currentPlatform() platform {
	return windowsPlatform{}
}

func (windowsPlatform) enumerate() ([]DeviceDescriptor, error) {
	sources, err := mfEnumVideoSources()
	if err != nil {
		return nil, err
	}

	devs := make([]DeviceDescriptor, 0, len(sources))
	for i, src := range sources {
		attrs := src.attributes()
		name, _ := attrs.GetString(&mfDevsourceAttributeFriendlyName)
		link, _ := attrs.GetString(&mfDevsourceAttributeVidcapSymbolicLink)
		src.Release()
		devs = append(devs, DeviceDescriptor{Index: i, Name: name, Path: link})
	}
	return devs, nil
}

func (windowsPlatform) open(dev DeviceDescriptor) (deviceHandle, error) {
	sources, err := mfEnumVideoSources()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	var match *imfActivate
	for i, src := range sources {
		if match == nil {
			link, _ := src.attributes().GetString(&mfDevsourceAttributeVidcapSymbolicLink)
			if (dev.Path != "" && strings.EqualFold(link, dev.Path)) || (dev.Path == "" && i == dev.Index) {
				match = src
				continue
			}
		}
		src.Release()
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s not found", ErrDeviceUnavailable, dev.key())
	}
	defer match.Release()

	obj, err := match.ActivateObject(&iidIMFMediaSource)
	if err != nil {
		var hr *hresultError
		if errors.As(err, &hr) && hr.hr == 0xC00D3704 { // MF_E_HW_MFT_FAILED_START_STREAMING
			return nil, fmt.Errorf("%w: %s: %w", ErrDeviceBusy, dev.key(), err)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrDeviceUnavailable, dev.key(), err)
	}
	source := (*imfMediaSource)(obj)

	attrs, err := mfCreateAttributes(1)
	if err != nil {
		source.Shutdown()
		source.Release()
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	defer attrs.Release()
	// Lets the reader convert to RGB when the camera only offers YUV.
	_ = attrs.SetUINT32(&mfSourceReaderEnableVideoProcessing, 1)

	reader, err := mfCreateSourceReader(source, attrs)
	if err != nil {
		source.Shutdown()
		source.Release()
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	h := &mfHandle{path: dev.key(), source: source, reader: reader}
	if p, err := source.QueryInterface(&iidIAMCameraControl); err == nil {
		h.camControl = (*iamProperty)(p)
	}
	if p, err := source.QueryInterface(&iidIAMVideoProcAmp); err == nil {
		h.procAmp = (*iamProperty)(p)
	}
	h.slots = &mfSlots{reader: reader}
	return h, nil
}

// mfHandle is an activated media source with a synchronous source reader.
type mfHandle struct {
	mu         sync.Mutex
	path       string
	closed     bool
	source     *imfMediaSource
	reader     *imfSourceReader
	camControl *iamProperty
	procAmp    *iamProperty
	slots      *mfSlots
}

func (h *mfHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	h.camControl.Release()
	h.procAmp.Release()
	h.reader.Release()
	h.source.Shutdown()
	h.source.Release()
	return nil
}

func (h *mfHandle) Formats() ([]FormatDescriptor, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []FormatDescriptor
	for i := uint32(0); ; i++ {
		mt, err := h.reader.GetNativeMediaType(mfSourceReaderFirstVideoStrm, i)
		if err != nil {
			return nil, err
		}
		if mt == nil {
			break
		}
		if f, ok := describeMediaType(mt); ok {
			out = append(out, f)
		}
		mt.Release()
	}
	return out, nil
}

func describeMediaType(mt *imfMediaType) (FormatDescriptor, bool) {
	attrs := mt.attributes()
	subtype, err := attrs.GetGUID(&mfMTSubtype)
	if err != nil {
		return FormatDescriptor{}, false
	}
	format, ok := pixelFormatFromMF(subtype)
	if !ok {
		return FormatDescriptor{}, false
	}
	w, h, err := attrs.getPair(&mfMTFrameSize)
	if err != nil {
		return FormatDescriptor{}, false
	}
	f := FormatDescriptor{Format: format, Width: int(w), Height: int(h)}
	if num, den, err := attrs.getPair(&mfMTFrameRate); err == nil && den != 0 {
		f.FrameRate = float64(num) / float64(den)
	}
	return f, true
}

func (h *mfHandle) SetFormat(req FormatDescriptor, forceSize bool) (FormatDescriptor, int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subtypes, ok := mfEncodings[req.Format]
	if !ok {
		return FormatDescriptor{}, 0, fmt.Errorf("%w: pixel format %s", ErrUnsupported, req.Format)
	}

	var lastErr error
	for i := range subtypes {
		mt, err := mfCreateMediaType()
		if err != nil {
			return FormatDescriptor{}, 0, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
		}
		attrs := mt.attributes()
		_ = attrs.SetGUID(&mfMTMajorType, &mfMediaTypeVideo)
		_ = attrs.SetGUID(&mfMTSubtype, &subtypes[i])
		if forceSize {
			_ = attrs.SetUINT64(&mfMTFrameSize, uint64(req.Width)<<32|uint64(uint32(req.Height)))
		}
		err = h.reader.SetCurrentMediaType(mfSourceReaderFirstVideoStrm, mt)
		mt.Release()
		if err != nil {
			lastErr = err
			continue
		}
		return h.currentFormat()
	}
	return FormatDescriptor{}, 0, fmt.Errorf("%w: %s %dx%d: %w",
		ErrRejectedByDevice, req.Format, req.Width, req.Height, lastErr)
}

func (h *mfHandle) currentFormat() (FormatDescriptor, int, error) {
	mt, err := h.reader.GetCurrentMediaType(mfSourceReaderFirstVideoStrm)
	if err != nil {
		return FormatDescriptor{}, 0, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	defer mt.Release()

	actual, ok := describeMediaType(mt)
	if !ok {
		return FormatDescriptor{}, 0, fmt.Errorf("%w: reader chose an unknown media type", ErrRejectedByDevice)
	}
	stride := defaultStride(actual.Format, actual.Width)
	if s, err := mt.attributes().GetUINT32(&mfMTDefaultStride); err == nil && s != 0 {
		// Bottom-up RGB reports a negative stride.
		stride = abs(int(int32(s)))
	}
	return actual, stride, nil
}

func (h *mfHandle) Buffers() slotDriver {
	return h.slots
}

// StreamOn is implicit: the reader starts the source on the first read.
func (h *mfHandle) StreamOn() error {
	return nil
}

func (h *mfHandle) StreamOff() error {
	if err := h.reader.Flush(mfSourceReaderFirstVideoStrm); err != nil {
		return fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}
	return nil
}

type mfProperty struct {
	camera bool
	id     int32
}

var mfControls = map[Control]mfProperty{
	ControlBrightness: {id: videoProcAmpBrightness},
	ControlContrast:   {id: videoProcAmpContrast},
	ControlSaturation: {id: videoProcAmpSaturation},
	ControlSharpness:  {id: videoProcAmpSharpness},
	ControlGain:       {id: videoProcAmpGain},
	ControlExposure:   {camera: true, id: cameraControlExposure},
	ControlFocus:      {camera: true, id: cameraControlFocus},
	ControlZoom:       {camera: true, id: cameraControlZoom},
}

func (h *mfHandle) property(c Control) (*iamProperty, int32, error) {
	p, ok := mfControls[c]
	if !ok {
		return nil, 0, ErrUnsupported
	}
	iface := h.procAmp
	if p.camera {
		iface = h.camControl
	}
	if iface == nil {
		return nil, 0, ErrUnsupported
	}
	if _, _, _, _, _, err := iface.GetRange(p.id); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrUnsupported, err)
	}
	return iface, p.id, nil
}

func (h *mfHandle) GetControl(c Control) (int32, error) {
	iface, id, err := h.property(c)
	if err != nil {
		return 0, err
	}
	v, _, err := iface.Get(id)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRejectedByDevice, err)
	}
	return v, nil
}

func (h *mfHandle) SetControl(c Control, value int32) error {
	iface, id, err := h.property(c)
	if err != nil {
		return err
	}
	if err := iface.Set(id, value, cameraControlFlagsManual); err != nil {
		return fmt.Errorf("%w: %w", ErrRejectedByDevice, err)
	}
	return nil
}

func (h *mfHandle) SetControlAuto(c Control, enabled bool) error {
	iface, id, err := h.property(c)
	if err != nil {
		return err
	}
	_, _, _, def, caps, _ := iface.GetRange(id)
	if caps&cameraControlFlagsAuto == 0 {
		return ErrUnsupported
	}
	value, _, err := iface.Get(id)
	if err != nil {
		value = def
	}
	flags := int32(cameraControlFlagsManual)
	if enabled {
		flags = cameraControlFlagsAuto
	}
	if err := iface.Set(id, value, flags); err != nil {
		return fmt.Errorf("%w: %w", ErrRejectedByDevice, err)
	}
	return nil
}

func (h *mfHandle) ControlRange(c Control) (ControlRange, error) {
	iface, id, err := h.property(c)
	if err != nil {
		return ControlRange{}, err
	}
	lo, hi, step, def, caps, _ := iface.GetRange(id)
	return ControlRange{
		Min:         lo,
		Max:         hi,
		Step:        step,
		Default:     def,
		AutoCapable: caps&cameraControlFlagsAuto != 0,
	}, nil
}

type mfRead struct {
	flags     uint32
	timestamp int64
	sample    *imfSample
	err       error
}

type mfSlot struct {
	buf  *imfMediaBuffer
	data []byte
}

// mfSlots lends the reader's sample buffers out as ring slots. A slot holds
// a locked buffer from dequeue until it is enqueued again.
type mfSlots struct {
	reader *imfSourceReader

	mu      sync.Mutex
	slots   []mfSlot
	queued  []int
	pending chan mfRead
}

func (m *mfSlots) allocate(count int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots = make([]mfSlot, count)
	m.queued = m.queued[:0]
	return count, nil
}

func (m *mfSlots) enqueue(i int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.slots) {
		return fmt.Errorf("slot %d out of range", i)
	}
	m.unlockSlot(i)
	m.queued = append(m.queued, i)
	return nil
}

// read issues one ReadSample on a COM-initialized thread. The result is
// kept until a dequeue collects it, so abandoning a wait loses nothing.
func (m *mfSlots) read() chan mfRead {
	ch := make(chan mfRead, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		flags, ts, sample, err := m.reader.ReadSample(mfSourceReaderFirstVideoStrm)
		ch <- mfRead{flags: flags, timestamp: ts, sample: sample, err: err}
	}()
	return ch
}

func (m *mfSlots) dequeue(timeout time.Duration) (int, int, time.Duration, error) {
	m.mu.Lock()
	if len(m.queued) == 0 {
		m.mu.Unlock()
		return 0, 0, 0, fmt.Errorf("no queued slot")
	}
	if m.pending == nil {
		m.pending = m.read()
	}
	pending := m.pending
	m.mu.Unlock()

	var res mfRead
	select {
	case res = <-pending:
	case <-time.After(timeout):
		return 0, 0, 0, errWaitTimeout
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil

	if res.err != nil {
		return 0, 0, 0, res.err
	}
	if res.flags&(mfSourceReaderfError|mfSourceReaderfEndOfStream) != 0 {
		res.sample.Release()
		return 0, 0, 0, fmt.Errorf("source reader stopped (flags %#x)", res.flags)
	}
	if res.sample == nil {
		return 0, 0, 0, errWaitTimeout
	}

	buf, err := res.sample.ConvertToContiguousBuffer()
	res.sample.Release()
	if err != nil {
		return 0, 0, 0, err
	}
	data, err := buf.Lock()
	if err != nil {
		buf.Release()
		return 0, 0, 0, err
	}

	i := m.queued[0]
	m.queued = m.queued[1:]
	m.slots[i] = mfSlot{buf: buf, data: data}
	return i, len(data), time.Duration(res.timestamp) * hundredNanoseconds, nil
}

func (m *mfSlots) region(i int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.slots) {
		return nil
	}
	return m.slots[i].data
}

func (m *mfSlots) unlockSlot(i int) {
	s := &m.slots[i]
	if s.buf != nil {
		_ = s.buf.Unlock()
		s.buf.Release()
	}
	*s = mfSlot{}
}

func (m *mfSlots) unmap(i int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i >= 0 && i < len(m.slots) {
		m.unlockSlot(i)
	}
	return nil
}

// free waits briefly for an outstanding read so its sample is not leaked.
func (m *mfSlots) free() error {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.slots = nil
	m.queued = nil
	m.mu.Unlock()

	if pending == nil {
		return nil
	}
	select {
	case res := <-pending:
		res.sample.Release()
	case <-time.After(DefaultCaptureTimeout):
		return fmt.Errorf("source reader did not return")
	}
	return nil
}

// IsValidDevicePath checks if a path looks like a Media Foundation symbolic link
func IsValidDevicePath(path string) bool {
	return strings.HasPrefix(path, `\\?\`) && len(path) > 4
}
