package webcam

import (
	"bytes"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	v4l2BufTypeVideoCapture = 1
	v4l2FieldNone           = 1
	v4l2MemoryMMap          = 1

	v4l2CapVideoCapture = 0x00000001
	v4l2CapStreaming    = 0x04000000
	v4l2CapDeviceCaps   = 0x80000000

	v4l2FrmSizeTypeDiscrete   = 1
	v4l2FrmSizeTypeContinuous = 2
	v4l2FrmSizeTypeStepwise   = 3
	v4l2FrmIvalTypeDiscrete   = 1

	v4l2CtrlFlagDisabled = 0x0001
)

// Pixel format codes as V4L2 spells them.
var (
	v4l2PixFmtRGB24  = FourCC('R', 'G', 'B', '3')
	v4l2PixFmtRGB32  = FourCC('R', 'G', 'B', '4')
	v4l2PixFmtBGR32  = FourCC('B', 'G', 'R', '4')
	v4l2PixFmtXBGR32 = FourCC('X', 'R', '2', '4')
	v4l2PixFmtYUYV   = FourCC('Y', 'U', 'Y', 'V')
	v4l2PixFmtYUV420 = FourCC('Y', 'U', '1', '2')
	v4l2PixFmtMJPEG  = FourCC('M', 'J', 'P', 'G')
	v4l2PixFmtJPEG   = FourCC('J', 'P', 'E', 'G')
)

// v4l2Encodings maps the preferred code for each encoding first.
var v4l2Encodings = map[PixelFormat][]uint32{
	FormatRGB24:   {v4l2PixFmtRGB24},
	FormatRGB32:   {v4l2PixFmtRGB32, v4l2PixFmtBGR32, v4l2PixFmtXBGR32},
	FormatYUYV:    {v4l2PixFmtYUYV},
	FormatYUV420P: {v4l2PixFmtYUV420},
	FormatMJPEG:   {v4l2PixFmtMJPEG, v4l2PixFmtJPEG},
}

func pixelFormatFromV4L2(code uint32) (PixelFormat, bool) {
	for f, codes := range v4l2Encodings {
		for _, c := range codes {
			if c == code {
				return f, true
			}
		}
	}
	return 0, false
}

// Control identifiers.
const (
	v4l2CidBase             = 0x00980900
	v4l2CidBrightness       = v4l2CidBase + 0
	v4l2CidContrast         = v4l2CidBase + 1
	v4l2CidSaturation       = v4l2CidBase + 2
	v4l2CidGain             = v4l2CidBase + 19
	v4l2CidSharpness        = v4l2CidBase + 27
	v4l2CidCameraClassBase  = 0x009a0900
	v4l2CidExposureAuto     = v4l2CidCameraClassBase + 1
	v4l2CidExposureAbsolute = v4l2CidCameraClassBase + 2
	v4l2CidFocusAbsolute    = v4l2CidCameraClassBase + 10
	v4l2CidFocusAuto        = v4l2CidCameraClassBase + 12
	v4l2CidZoomAbsolute     = v4l2CidCameraClassBase + 13

	v4l2ExposureAuto             = 0
	v4l2ExposureManual           = 1
	v4l2ExposureAperturePriority = 3
)

var v4l2Controls = map[Control]uint32{
	ControlBrightness: v4l2CidBrightness,
	ControlContrast:   v4l2CidContrast,
	ControlSaturation: v4l2CidSaturation,
	ControlExposure:   v4l2CidExposureAbsolute,
	ControlFocus:      v4l2CidFocusAbsolute,
	ControlZoom:       v4l2CidZoomAbsolute,
	ControlGain:       v4l2CidGain,
	ControlSharpness:  v4l2CidSharpness,
}

var v4l2AutoControls = map[Control]uint32{
	ControlExposure: v4l2CidExposureAuto,
	ControlFocus:    v4l2CidFocusAuto,
}

type v4l2Capability struct {
	driver       [16]byte
	card         [32]byte
	busInfo      [32]byte
	version      uint32
	capabilities uint32
	deviceCaps   uint32
	reserved     [3]uint32
}

// captureCaps returns the device capabilities, preferring the per-node set.
func (c *v4l2Capability) captureCaps() uint32 {
	if c.capabilities&v4l2CapDeviceCaps != 0 {
		return c.deviceCaps
	}
	return c.capabilities
}

type v4l2Fmtdesc struct {
	index       uint32
	typ         uint32
	flags       uint32
	description [32]byte
	pixelformat uint32
	mbusCode    uint32
	reserved    [3]uint32
}

type v4l2FrmsizeDiscrete struct {
	width  uint32
	height uint32
}

type v4l2FrmsizeStepwise struct {
	minWidth   uint32
	maxWidth   uint32
	stepWidth  uint32
	minHeight  uint32
	maxHeight  uint32
	stepHeight uint32
}

type v4l2Frmsizeenum struct {
	index       uint32
	pixelFormat uint32
	typ         uint32
	// union of v4l2FrmsizeDiscrete and v4l2FrmsizeStepwise
	size     [6]uint32
	reserved [2]uint32
}

func (f *v4l2Frmsizeenum) discrete() *v4l2FrmsizeDiscrete {
	return (*v4l2FrmsizeDiscrete)(unsafe.Pointer(&f.size[0]))
}

func (f *v4l2Frmsizeenum) stepwise() *v4l2FrmsizeStepwise {
	return (*v4l2FrmsizeStepwise)(unsafe.Pointer(&f.size[0]))
}

type v4l2Fract struct {
	numerator   uint32
	denominator uint32
}

type v4l2Frmivalenum struct {
	index       uint32
	pixelFormat uint32
	width       uint32
	height      uint32
	typ         uint32
	// union of discrete v4l2Fract and stepwise {min, max, step}
	interval [6]uint32
	reserved [2]uint32
}

func (f *v4l2Frmivalenum) discrete() *v4l2Fract {
	return (*v4l2Fract)(unsafe.Pointer(&f.interval[0]))
}

type v4l2PixFormat struct {
	width        uint32
	height       uint32
	pixelformat  uint32
	field        uint32
	bytesperline uint32
	sizeimage    uint32
	colorspace   uint32
	priv         uint32
	flags        uint32
	ycbcrEnc     uint32
	quantization uint32
	xferFunc     uint32
}

type v4l2Format struct {
	typ uint32
	// union; 8-byte aligned because some members hold pointers
	fmt [25]uint64
}

func (f *v4l2Format) pix() *v4l2PixFormat {
	return (*v4l2PixFormat)(unsafe.Pointer(&f.fmt[0]))
}

type v4l2RequestBuffers struct {
	count        uint32
	typ          uint32
	memory       uint32
	capabilities uint32
	flags        uint8
	reserved     [3]uint8
}

type v4l2Timecode struct {
	typ      uint32
	flags    uint32
	frames   uint8
	seconds  uint8
	minutes  uint8
	hours    uint8
	userbits [4]uint8
}

type v4l2Buffer struct {
	index     uint32
	typ       uint32
	bytesused uint32
	flags     uint32
	field     uint32
	timestamp unix.Timeval
	timecode  v4l2Timecode
	sequence  uint32
	memory    uint32
	// union { offset; userptr; planes; fd }
	m         uintptr
	length    uint32
	reserved2 uint32
	requestFD uint32
}

func (b *v4l2Buffer) offset() uint32 {
	return *(*uint32)(unsafe.Pointer(&b.m))
}

type v4l2Control struct {
	id    uint32
	value int32
}

type v4l2Queryctrl struct {
	id           uint32
	typ          uint32
	name         [32]byte
	minimum      int32
	maximum      int32
	step         int32
	defaultValue int32
	flags        uint32
	reserved     [2]uint32
}

const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return (dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift)
}

func iow(nr, size uintptr) uintptr  { return ioc(iocWrite, 'V', nr, size) }
func ior(nr, size uintptr) uintptr  { return ioc(iocRead, 'V', nr, size) }
func iowr(nr, size uintptr) uintptr { return ioc(iocRead|iocWrite, 'V', nr, size) }

var (
	vidiocQuerycap           = ior(0, unsafe.Sizeof(v4l2Capability{}))
	vidiocEnumFmt            = iowr(2, unsafe.Sizeof(v4l2Fmtdesc{}))
	vidiocGFmt               = iowr(4, unsafe.Sizeof(v4l2Format{}))
	vidiocSFmt               = iowr(5, unsafe.Sizeof(v4l2Format{}))
	vidiocReqbufs            = iowr(8, unsafe.Sizeof(v4l2RequestBuffers{}))
	vidiocQuerybuf           = iowr(9, unsafe.Sizeof(v4l2Buffer{}))
	vidiocQBuf               = iowr(15, unsafe.Sizeof(v4l2Buffer{}))
	vidiocDQBuf              = iowr(17, unsafe.Sizeof(v4l2Buffer{}))
	vidiocStreamOn           = iow(18, unsafe.Sizeof(int32(0)))
	vidiocStreamOff          = iow(19, unsafe.Sizeof(int32(0)))
	vidiocGCtrl              = iowr(27, unsafe.Sizeof(v4l2Control{}))
	vidiocSCtrl              = iowr(28, unsafe.Sizeof(v4l2Control{}))
	vidiocQueryctrl          = iowr(36, unsafe.Sizeof(v4l2Queryctrl{}))
	vidiocEnumFramesizes     = iowr(74, unsafe.Sizeof(v4l2Frmsizeenum{}))
	vidiocEnumFrameintervals = iowr(75, unsafe.Sizeof(v4l2Frmivalenum{}))
)

// ioctl retries on EINTR.
func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
		switch errno {
		case 0:
			return nil
		case unix.EINTR:
			continue
		default:
			return errno
		}
	}
}

func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
