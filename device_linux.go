package webcam

import (
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

type linuxPlatform struct {
	enumerator *SysfsEnumerator
}

func currentPlatform() platform {
	return linuxPlatform{enumerator: NewSysfsEnumerator()}
}

func (p linuxPlatform) enumerate() ([]DeviceDescriptor, error) {
	return p.enumerator.EnumerateDevices()
}

func (p linuxPlatform) open(dev DeviceDescriptor) (deviceHandle, error) {
	return openV4L2(dev.Path)
}

// v4l2Handle is an open /dev/videoN node.
type v4l2Handle struct {
	mu     sync.RWMutex
	path   string
	fd     int
	closed bool
	caps   v4l2Capability
	bufs   *v4l2Buffers
}

func openV4L2(path string) (*v4l2Handle, error) {
	if !IsValidDevicePath(path) {
		return nil, fmt.Errorf("%w: %q is not a video device path", ErrDeviceUnavailable, path)
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, mapOpenErrno(path, err)
	}

	h := &v4l2Handle{path: path, fd: fd}
	if err := ioctl(fd, vidiocQuerycap, unsafe.Pointer(&h.caps)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: %s: VIDIOC_QUERYCAP: %w", ErrDeviceUnavailable, path, err)
	}
	caps := h.caps.captureCaps()
	if caps&v4l2CapVideoCapture == 0 || caps&v4l2CapStreaming == 0 {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: %s has no streaming capture", ErrDeviceUnavailable, path)
	}
	h.bufs = &v4l2Buffers{fd: fd}
	return h, nil
}

func mapOpenErrno(path string, err error) error {
	switch {
	case errors.Is(err, unix.EBUSY):
		return fmt.Errorf("%w: %s: %w", ErrDeviceBusy, path, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrDeviceUnavailable, path, err)
	}
}

func (h *v4l2Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	if err := unix.Close(h.fd); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrDeviceUnavailable, h.path, err)
	}
	return nil
}

func (h *v4l2Handle) Formats() ([]FormatDescriptor, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []FormatDescriptor
	for i := uint32(0); ; i++ {
		desc := v4l2Fmtdesc{index: i, typ: v4l2BufTypeVideoCapture}
		if err := ioctl(h.fd, vidiocEnumFmt, unsafe.Pointer(&desc)); err != nil {
			if errors.Is(err, unix.EINVAL) {
				break
			}
			return nil, err
		}
		format, ok := pixelFormatFromV4L2(desc.pixelformat)
		if !ok {
			continue
		}
		sizes, err := h.frameSizes(desc.pixelformat)
		if err != nil {
			return nil, err
		}
		for _, sz := range sizes {
			out = append(out, FormatDescriptor{
				Format:    format,
				Width:     int(sz[0]),
				Height:    int(sz[1]),
				FrameRate: h.frameRate(desc.pixelformat, sz[0], sz[1]),
			})
		}
	}
	return out, nil
}

// frameSizes lists discrete sizes. Stepwise and continuous ranges are
// reported as their two corners.
func (h *v4l2Handle) frameSizes(code uint32) ([][2]uint32, error) {
	var out [][2]uint32
	for i := uint32(0); ; i++ {
		fs := v4l2Frmsizeenum{index: i, pixelFormat: code}
		if err := ioctl(h.fd, vidiocEnumFramesizes, unsafe.Pointer(&fs)); err != nil {
			if errors.Is(err, unix.EINVAL) {
				break
			}
			return nil, err
		}
		switch fs.typ {
		case v4l2FrmSizeTypeDiscrete:
			d := fs.discrete()
			out = append(out, [2]uint32{d.width, d.height})
		case v4l2FrmSizeTypeStepwise, v4l2FrmSizeTypeContinuous:
			sw := fs.stepwise()
			out = append(out,
				[2]uint32{sw.minWidth, sw.minHeight},
				[2]uint32{sw.maxWidth, sw.maxHeight})
			return out, nil
		}
	}
	return out, nil
}

// frameRate returns the first discrete interval as frames per second, or
// zero when the device does not say.
func (h *v4l2Handle) frameRate(code, width, height uint32) float64 {
	fi := v4l2Frmivalenum{index: 0, pixelFormat: code, width: width, height: height}
	if err := ioctl(h.fd, vidiocEnumFrameintervals, unsafe.Pointer(&fi)); err != nil {
		return 0
	}
	if fi.typ != v4l2FrmIvalTypeDiscrete {
		return 0
	}
	d := fi.discrete()
	if d.numerator == 0 {
		return 0
	}
	return float64(d.denominator) / float64(d.numerator)
}

func (h *v4l2Handle) SetFormat(req FormatDescriptor, forceSize bool) (FormatDescriptor, int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	codes, ok := v4l2Encodings[req.Format]
	if !ok {
		return FormatDescriptor{}, 0, fmt.Errorf("%w: pixel format %s", ErrUnsupported, req.Format)
	}

	width, height := uint32(req.Width), uint32(req.Height)
	if !forceSize {
		cur := v4l2Format{typ: v4l2BufTypeVideoCapture}
		if err := ioctl(h.fd, vidiocGFmt, unsafe.Pointer(&cur)); err != nil {
			return FormatDescriptor{}, 0, fmt.Errorf("%w: VIDIOC_G_FMT: %w", ErrDeviceUnavailable, err)
		}
		width, height = cur.pix().width, cur.pix().height
	}

	var lastErr error
	for _, code := range codes {
		f := v4l2Format{typ: v4l2BufTypeVideoCapture}
		pix := f.pix()
		pix.width = width
		pix.height = height
		pix.pixelformat = code
		pix.field = v4l2FieldNone
		if err := ioctl(h.fd, vidiocSFmt, unsafe.Pointer(&f)); err != nil {
			lastErr = err
			if errors.Is(err, unix.EBUSY) {
				return FormatDescriptor{}, 0, fmt.Errorf("%w: VIDIOC_S_FMT: %w", ErrDeviceBusy, err)
			}
			continue
		}

		actual, ok := pixelFormatFromV4L2(pix.pixelformat)
		if !ok {
			// The driver swapped in an encoding we cannot describe.
			lastErr = fmt.Errorf("driver chose %s", FourCCString(pix.pixelformat))
			continue
		}
		stride := int(pix.bytesperline)
		if stride == 0 {
			stride = defaultStride(actual, int(pix.width))
		}
		return FormatDescriptor{
			Format:    actual,
			Width:     int(pix.width),
			Height:    int(pix.height),
			FrameRate: h.frameRate(pix.pixelformat, pix.width, pix.height),
		}, stride, nil
	}
	return FormatDescriptor{}, 0, fmt.Errorf("%w: VIDIOC_S_FMT %s %dx%d: %w",
		ErrRejectedByDevice, req.Format, width, height, lastErr)
}

func (h *v4l2Handle) Buffers() slotDriver {
	return h.bufs
}

func (h *v4l2Handle) StreamOn() error {
	typ := int32(v4l2BufTypeVideoCapture)
	if err := ioctl(h.fd, vidiocStreamOn, unsafe.Pointer(&typ)); err != nil {
		return fmt.Errorf("%w: VIDIOC_STREAMON: %w", ErrCaptureFailed, err)
	}
	return nil
}

func (h *v4l2Handle) StreamOff() error {
	typ := int32(v4l2BufTypeVideoCapture)
	if err := ioctl(h.fd, vidiocStreamOff, unsafe.Pointer(&typ)); err != nil {
		return fmt.Errorf("%w: VIDIOC_STREAMOFF: %w", ErrCaptureFailed, err)
	}
	return nil
}

func (h *v4l2Handle) queryControl(id uint32) (v4l2Queryctrl, error) {
	q := v4l2Queryctrl{id: id}
	if err := ioctl(h.fd, vidiocQueryctrl, unsafe.Pointer(&q)); err != nil {
		if errors.Is(err, unix.EINVAL) {
			return q, ErrUnsupported
		}
		return q, fmt.Errorf("%w: VIDIOC_QUERYCTRL: %w", ErrUnsupported, err)
	}
	if q.flags&v4l2CtrlFlagDisabled != 0 {
		return q, ErrUnsupported
	}
	return q, nil
}

func (h *v4l2Handle) GetControl(c Control) (int32, error) {
	id, ok := v4l2Controls[c]
	if !ok {
		return 0, ErrUnsupported
	}
	if _, err := h.queryControl(id); err != nil {
		return 0, err
	}
	ctrl := v4l2Control{id: id}
	if err := ioctl(h.fd, vidiocGCtrl, unsafe.Pointer(&ctrl)); err != nil {
		return 0, fmt.Errorf("%w: VIDIOC_G_CTRL: %w", ErrRejectedByDevice, err)
	}
	return ctrl.value, nil
}

func (h *v4l2Handle) SetControl(c Control, value int32) error {
	id, ok := v4l2Controls[c]
	if !ok {
		return ErrUnsupported
	}
	if _, err := h.queryControl(id); err != nil {
		return err
	}
	return h.setCtrl(id, value)
}

func (h *v4l2Handle) setCtrl(id uint32, value int32) error {
	ctrl := v4l2Control{id: id, value: value}
	if err := ioctl(h.fd, vidiocSCtrl, unsafe.Pointer(&ctrl)); err != nil {
		return fmt.Errorf("%w: VIDIOC_S_CTRL %#x=%d: %w", ErrRejectedByDevice, id, value, err)
	}
	return nil
}

func (h *v4l2Handle) SetControlAuto(c Control, enabled bool) error {
	id, ok := v4l2AutoControls[c]
	if !ok {
		return ErrUnsupported
	}
	if _, err := h.queryControl(id); err != nil {
		return err
	}

	if c != ControlExposure {
		v := int32(0)
		if enabled {
			v = 1
		}
		return h.setCtrl(id, v)
	}

	if !enabled {
		return h.setCtrl(id, v4l2ExposureManual)
	}
	// Many UVC cameras only offer aperture priority as their auto mode.
	if err := h.setCtrl(id, v4l2ExposureAuto); err != nil {
		return h.setCtrl(id, v4l2ExposureAperturePriority)
	}
	return nil
}

func (h *v4l2Handle) ControlRange(c Control) (ControlRange, error) {
	id, ok := v4l2Controls[c]
	if !ok {
		return ControlRange{}, ErrUnsupported
	}
	q, err := h.queryControl(id)
	if err != nil {
		return ControlRange{}, err
	}
	rng := ControlRange{Min: q.minimum, Max: q.maximum, Step: q.step, Default: q.defaultValue}
	if autoID, ok := v4l2AutoControls[c]; ok {
		_, err := h.queryControl(autoID)
		rng.AutoCapable = err == nil
	}
	return rng, nil
}

// v4l2Buffers drives the kernel's mmap buffer queue.
type v4l2Buffers struct {
	fd      int
	regions [][]byte
}

func (b *v4l2Buffers) allocate(count int) (int, error) {
	req := v4l2RequestBuffers{
		count:  uint32(count),
		typ:    v4l2BufTypeVideoCapture,
		memory: v4l2MemoryMMap,
	}
	if err := ioctl(b.fd, vidiocReqbufs, unsafe.Pointer(&req)); err != nil {
		return 0, fmt.Errorf("VIDIOC_REQBUFS: %w", err)
	}

	b.regions = make([][]byte, 0, req.count)
	for i := uint32(0); i < req.count; i++ {
		buf := v4l2Buffer{index: i, typ: v4l2BufTypeVideoCapture, memory: v4l2MemoryMMap}
		if err := ioctl(b.fd, vidiocQuerybuf, unsafe.Pointer(&buf)); err != nil {
			return len(b.regions), fmt.Errorf("VIDIOC_QUERYBUF %d: %w", i, err)
		}
		data, err := unix.Mmap(b.fd, int64(buf.offset()), int(buf.length),
			unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			return len(b.regions), fmt.Errorf("mmap buffer %d: %w", i, err)
		}
		b.regions = append(b.regions, data)
	}
	return len(b.regions), nil
}

func (b *v4l2Buffers) enqueue(i int) error {
	buf := v4l2Buffer{index: uint32(i), typ: v4l2BufTypeVideoCapture, memory: v4l2MemoryMMap}
	if err := ioctl(b.fd, vidiocQBuf, unsafe.Pointer(&buf)); err != nil {
		return fmt.Errorf("VIDIOC_QBUF %d: %w", i, err)
	}
	return nil
}

func (b *v4l2Buffers) dequeue(timeout time.Duration) (int, int, time.Duration, error) {
	fds := []unix.PollFd{{Fd: int32(b.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout.Milliseconds()))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, 0, 0, errWaitTimeout
		}
		return 0, 0, 0, fmt.Errorf("poll: %w", err)
	}
	if n == 0 {
		return 0, 0, 0, errWaitTimeout
	}
	if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		return 0, 0, 0, fmt.Errorf("poll: revents %#x", fds[0].Revents)
	}

	buf := v4l2Buffer{typ: v4l2BufTypeVideoCapture, memory: v4l2MemoryMMap}
	if err := ioctl(b.fd, vidiocDQBuf, unsafe.Pointer(&buf)); err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return 0, 0, 0, errWaitTimeout
		}
		return 0, 0, 0, fmt.Errorf("VIDIOC_DQBUF: %w", err)
	}
	ts := time.Duration(buf.timestamp.Nano())
	return int(buf.index), int(buf.bytesused), ts, nil
}

func (b *v4l2Buffers) region(i int) []byte {
	if i < 0 || i >= len(b.regions) {
		return nil
	}
	return b.regions[i]
}

func (b *v4l2Buffers) unmap(i int) error {
	if i < 0 || i >= len(b.regions) || b.regions[i] == nil {
		return nil
	}
	err := unix.Munmap(b.regions[i])
	b.regions[i] = nil
	return err
}

// free releases the kernel's buffers by requesting zero of them.
func (b *v4l2Buffers) free() error {
	b.regions = nil
	req := v4l2RequestBuffers{typ: v4l2BufTypeVideoCapture, memory: v4l2MemoryMMap}
	if err := ioctl(b.fd, vidiocReqbufs, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("VIDIOC_REQBUFS 0: %w", err)
	}
	return nil
}
