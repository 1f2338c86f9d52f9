package webcam

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Media Foundation GUIDs
var (
	mfDevsourceAttributeSourceType         = windows.GUID{Data1: 0xc60ac5fe, Data2: 0x252a, Data3: 0x478f, Data4: [8]byte{0xa0, 0xef, 0xbc, 0x8f, 0xa5, 0xf7, 0xca, 0xd3}}
	mfDevsourceAttributeSourceTypeVidcap   = windows.GUID{Data1: 0x8ac3587a, Data2: 0x4ae7, Data3: 0x42d8, Data4: [8]byte{0x99, 0xe0, 0x0a, 0x60, 0x13, 0xee, 0xf9, 0x0f}}
	mfDevsourceAttributeFriendlyName       = windows.GUID{Data1: 0x60d0e559, Data2: 0x52f8, Data3: 0x4fa2, Data4: [8]byte{0xbb, 0xce, 0xac, 0xdb, 0x34, 0xa8, 0xec, 0x01}}
	mfDevsourceAttributeVidcapSymbolicLink = windows.GUID{Data1: 0x58f0aad8, Data2: 0x22bf, Data3: 0x4f8a, Data4: [8]byte{0xbb, 0x3d, 0xd2, 0xc4, 0x97, 0x8c, 0x6e, 0x2f}}
	mfSourceReaderEnableVideoProcessing    = windows.GUID{Data1: 0xfb394f3d, Data2: 0xccf1, Data3: 0x42ee, Data4: [8]byte{0xbb, 0xb3, 0xf9, 0xb8, 0x45, 0xd5, 0x68, 0x1d}}
	mfMTMajorType                          = windows.GUID{Data1: 0x48eba18e, Data2: 0xf8c9, Data3: 0x4687, Data4: [8]byte{0xbf, 0x11, 0x0a, 0x74, 0xc9, 0xf9, 0x6a, 0x8f}}
	mfMTSubtype                            = windows.GUID{Data1: 0xf7e34c9a, Data2: 0x42e8, Data3: 0x4714, Data4: [8]byte{0xb7, 0x4b, 0xcb, 0x29, 0xd7, 0x2c, 0x35, 0xe5}}
	mfMTFrameSize                          = windows.GUID{Data1: 0x1652c33d, Data2: 0xd6b2, Data3: 0x4012, Data4: [8]byte{0xb8, 0x34, 0x72, 0x03, 0x08, 0x49, 0xa3, 0x7d}}
	mfMTFrameRate                          = windows.GUID{Data1: 0xc459a2e8, Data2: 0x3d2c, Data3: 0x4e44, Data4: [8]byte{0xb1, 0x32, 0xfe, 0xe5, 0x15, 0x6c, 0x7b, 0xb0}}
	mfMTDefaultStride                      = windows.GUID{Data1: 0x644b4e48, Data2: 0x1e02, Data3: 0x4516, Data4: [8]byte{0xb0, 0xeb, 0xc0, 0x1c, 0xa9, 0xd4, 0x9a, 0xc6}}
	mfMediaTypeVideo                       = windows.GUID{Data1: 0x73646976, Data2: 0x0000, Data3: 0x0010, Data4: [8]byte{0x80, 0x00, 0x00, 0xaa, 0x00, 0x38, 0x9b, 0x71}}

	iidIMFMediaSource   = windows.GUID{Data1: 0x279a808d, Data2: 0xaec7, Data3: 0x40c8, Data4: [8]byte{0x9c, 0x6b, 0xa6, 0xb4, 0x92, 0xc7, 0x8a, 0x66}}
	iidIAMCameraControl = windows.GUID{Data1: 0xc6e13370, Data2: 0x30ac, Data3: 0x11d0, Data4: [8]byte{0xa1, 0x8c, 0x00, 0xa0, 0xc9, 0x11, 0x89, 0x56}}
	iidIAMVideoProcAmp  = windows.GUID{Data1: 0xc6e13360, Data2: 0x30ac, Data3: 0x11d0, Data4: [8]byte{0xa1, 0x8c, 0x00, 0xa0, 0xc9, 0x11, 0x89, 0x56}}
)

// mfVideoSubtype builds a video subtype GUID from its FourCC or D3DFORMAT.
func mfVideoSubtype(code uint32) windows.GUID {
	return windows.GUID{Data1: code, Data2: 0x0000, Data3: 0x0010, Data4: [8]byte{0x80, 0x00, 0x00, 0xaa, 0x00, 0x38, 0x9b, 0x71}}
}

// Subtypes per encoding, preferred first. RGB24 and RGB32 use D3DFORMAT
// numbers rather than FourCCs.
var mfEncodings = map[PixelFormat][]windows.GUID{
	FormatRGB24:   {mfVideoSubtype(20)},
	FormatRGB32:   {mfVideoSubtype(22), mfVideoSubtype(21)},
	FormatYUYV:    {mfVideoSubtype(FourCC('Y', 'U', 'Y', '2'))},
	FormatYUV420P: {mfVideoSubtype(FourCC('I', '4', '2', '0')), mfVideoSubtype(FourCC('I', 'Y', 'U', 'V'))},
	FormatMJPEG:   {mfVideoSubtype(FourCC('M', 'J', 'P', 'G'))},
}

func pixelFormatFromMF(subtype windows.GUID) (PixelFormat, bool) {
	for f, guids := range mfEncodings {
		for _, g := range guids {
			if g == subtype {
				return f, true
			}
		}
	}
	return 0, false
}

const (
	mfVersion                    = 0x00020070
	mfStartupFull                = 0
	coinitMultithreaded          = 0x0
	rpcEChangedMode              = 0x80010106
	mfSourceReaderFirstVideoStrm = 0xFFFFFFFC
	mfSourceReaderfError         = 0x00000001
	mfSourceReaderfEndOfStream   = 0x00000002
	mfENoMoreTypes               = 0xC00D36B9
	cameraControlFlagsAuto       = 0x0001
	cameraControlFlagsManual     = 0x0002
	hundredNanoseconds           = 100
)

// DirectShow property ids reached through the media source.
const (
	cameraControlZoom     = 3
	cameraControlExposure = 4
	cameraControlFocus    = 6

	videoProcAmpBrightness = 0
	videoProcAmpContrast   = 1
	videoProcAmpSaturation = 3
	videoProcAmpSharpness  = 4
	videoProcAmpGain       = 9
)

var (
	modmfplat      = windows.NewLazySystemDLL("mfplat.dll")
	modmfreadwrite = windows.NewLazySystemDLL("mfreadwrite.dll")
	modmf          = windows.NewLazySystemDLL("mf.dll")
	modole32       = windows.NewLazySystemDLL("ole32.dll")

	procMFStartup                           = modmfplat.NewProc("MFStartup")
	procMFCreateAttributes                  = modmfplat.NewProc("MFCreateAttributes")
	procMFCreateMediaType                   = modmfplat.NewProc("MFCreateMediaType")
	procMFEnumDeviceSources                 = modmf.NewProc("MFEnumDeviceSources")
	procMFCreateSourceReaderFromMediaSource = modmfreadwrite.NewProc("MFCreateSourceReaderFromMediaSource")
	procCoInitializeEx                      = modole32.NewProc("CoInitializeEx")
	procCoTaskMemFree                       = modole32.NewProc("CoTaskMemFree")
)

// hresultError keeps the HRESULT for diagnostics. Callers wrap it under one
// of the package's error values.
type hresultError struct {
	op string
	hr uint32
}

func (e *hresultError) Error() string {
	return fmt.Sprintf("%s failed: 0x%08x", e.op, e.hr)
}

func hrErr(op string, hr uintptr) error {
	if int32(hr) >= 0 {
		return nil
	}
	return &hresultError{op: op, hr: uint32(hr)}
}

var (
	mfOnce sync.Once
	mfErr  error
)

// mfStartup initializes COM (multithreaded) and Media Foundation once per
// process. Neither is ever shut down.
func mfStartup() error {
	mfOnce.Do(func() {
		hr, _, _ := syscall.SyscallN(procCoInitializeEx.Addr(), 0, coinitMultithreaded)
		if uint32(hr) != rpcEChangedMode {
			if err := hrErr("CoInitializeEx", hr); err != nil {
				mfErr = err
				return
			}
		}
		hr, _, _ = syscall.SyscallN(procMFStartup.Addr(), mfVersion, mfStartupFull)
		mfErr = hrErr("MFStartup", hr)
	})
	return mfErr
}

func coTaskMemFree(p unsafe.Pointer) {
	syscall.SyscallN(procCoTaskMemFree.Addr(), uintptr(p))
}

type imfAttributesVtbl struct {
	QueryInterface     uintptr
	AddRef             uintptr
	Release            uintptr
	GetItem            uintptr
	GetItemType        uintptr
	CompareItem        uintptr
	Compare            uintptr
	GetUINT32          uintptr
	GetUINT64          uintptr
	GetDouble          uintptr
	GetGUID            uintptr
	GetStringLength    uintptr
	GetString          uintptr
	GetAllocatedString uintptr
	GetBlobSize        uintptr
	GetBlob            uintptr
	GetAllocatedBlob   uintptr
	GetUnknown         uintptr
	SetItem            uintptr
	DeleteItem         uintptr
	DeleteAllItems     uintptr
	SetUINT32          uintptr
	SetUINT64          uintptr
	SetDouble          uintptr
	SetGUID            uintptr
	SetString          uintptr
	SetBlob            uintptr
	SetUnknown         uintptr
	LockStore          uintptr
	UnlockStore        uintptr
	GetCount           uintptr
	GetItemByIndex     uintptr
	CopyAllItems       uintptr
}

type imfAttributes struct {
	vtbl *imfAttributesVtbl
}

func mfCreateAttributes(count uint32) (*imfAttributes, error) {
	var attrs *imfAttributes
	hr, _, _ := syscall.SyscallN(procMFCreateAttributes.Addr(),
		uintptr(unsafe.Pointer(&attrs)),
		uintptr(count))
	if err := hrErr("MFCreateAttributes", hr); err != nil {
		return nil, err
	}
	return attrs, nil
}

func (a *imfAttributes) Release() {
	if a != nil && a.vtbl != nil {
		syscall.SyscallN(a.vtbl.Release, uintptr(unsafe.Pointer(a)))
	}
}

func (a *imfAttributes) SetGUID(key, value *windows.GUID) error {
	hr, _, _ := syscall.SyscallN(a.vtbl.SetGUID,
		uintptr(unsafe.Pointer(a)),
		uintptr(unsafe.Pointer(key)),
		uintptr(unsafe.Pointer(value)))
	return hrErr("SetGUID", hr)
}

func (a *imfAttributes) SetUINT32(key *windows.GUID, value uint32) error {
	hr, _, _ := syscall.SyscallN(a.vtbl.SetUINT32,
		uintptr(unsafe.Pointer(a)),
		uintptr(unsafe.Pointer(key)),
		uintptr(value))
	return hrErr("SetUINT32", hr)
}

func (a *imfAttributes) SetUINT64(key *windows.GUID, value uint64) error {
	hr, _, _ := syscall.SyscallN(a.vtbl.SetUINT64,
		uintptr(unsafe.Pointer(a)),
		uintptr(unsafe.Pointer(key)),
		uintptr(value))
	return hrErr("SetUINT64", hr)
}

func (a *imfAttributes) GetGUID(key *windows.GUID) (windows.GUID, error) {
	var guid windows.GUID
	hr, _, _ := syscall.SyscallN(a.vtbl.GetGUID,
		uintptr(unsafe.Pointer(a)),
		uintptr(unsafe.Pointer(key)),
		uintptr(unsafe.Pointer(&guid)))
	return guid, hrErr("GetGUID", hr)
}

func (a *imfAttributes) GetUINT32(key *windows.GUID) (uint32, error) {
	var val uint32
	hr, _, _ := syscall.SyscallN(a.vtbl.GetUINT32,
		uintptr(unsafe.Pointer(a)),
		uintptr(unsafe.Pointer(key)),
		uintptr(unsafe.Pointer(&val)))
	return val, hrErr("GetUINT32", hr)
}

func (a *imfAttributes) GetUINT64(key *windows.GUID) (uint64, error) {
	var val uint64
	hr, _, _ := syscall.SyscallN(a.vtbl.GetUINT64,
		uintptr(unsafe.Pointer(a)),
		uintptr(unsafe.Pointer(key)),
		uintptr(unsafe.Pointer(&val)))
	return val, hrErr("GetUINT64", hr)
}

func (a *imfAttributes) GetString(key *windows.GUID) (string, error) {
	var length uint32
	hr, _, _ := syscall.SyscallN(a.vtbl.GetStringLength,
		uintptr(unsafe.Pointer(a)),
		uintptr(unsafe.Pointer(key)),
		uintptr(unsafe.Pointer(&length)))
	if err := hrErr("GetStringLength", hr); err != nil {
		return "", err
	}

	buf := make([]uint16, length+1)
	hr, _, _ = syscall.SyscallN(a.vtbl.GetString,
		uintptr(unsafe.Pointer(a)),
		uintptr(unsafe.Pointer(key)),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(length+1),
		0)
	if err := hrErr("GetString", hr); err != nil {
		return "", err
	}
	return windows.UTF16ToString(buf), nil
}

// size and ratio attributes pack two uint32 values, high word first.
func (a *imfAttributes) getPair(key *windows.GUID) (uint32, uint32, error) {
	v, err := a.GetUINT64(key)
	return uint32(v >> 32), uint32(v), err
}

type imfActivateVtbl struct {
	imfAttributesVtbl
	ActivateObject uintptr
	ShutdownObject uintptr
	DetachObject   uintptr
}

type imfActivate struct {
	vtbl *imfActivateVtbl
}

func (a *imfActivate) attributes() *imfAttributes {
	return (*imfAttributes)(unsafe.Pointer(a))
}

func (a *imfActivate) Release() {
	if a != nil && a.vtbl != nil {
		syscall.SyscallN(a.vtbl.Release, uintptr(unsafe.Pointer(a)))
	}
}

func (a *imfActivate) ActivateObject(iid *windows.GUID) (unsafe.Pointer, error) {
	var obj unsafe.Pointer
	hr, _, _ := syscall.SyscallN(a.vtbl.ActivateObject,
		uintptr(unsafe.Pointer(a)),
		uintptr(unsafe.Pointer(iid)),
		uintptr(unsafe.Pointer(&obj)))
	return obj, hrErr("ActivateObject", hr)
}

type imfMediaSourceVtbl struct {
	QueryInterface               uintptr
	AddRef                       uintptr
	Release                      uintptr
	GetEvent                     uintptr
	BeginGetEvent                uintptr
	EndGetEvent                  uintptr
	QueueEvent                   uintptr
	GetCharacteristics           uintptr
	CreatePresentationDescriptor uintptr
	Start                        uintptr
	Stop                         uintptr
	Pause                        uintptr
	Shutdown                     uintptr
}

type imfMediaSource struct {
	vtbl *imfMediaSourceVtbl
}

func (s *imfMediaSource) Release() {
	if s != nil && s.vtbl != nil {
		syscall.SyscallN(s.vtbl.Release, uintptr(unsafe.Pointer(s)))
	}
}

func (s *imfMediaSource) QueryInterface(iid *windows.GUID) (unsafe.Pointer, error) {
	var obj unsafe.Pointer
	hr, _, _ := syscall.SyscallN(s.vtbl.QueryInterface,
		uintptr(unsafe.Pointer(s)),
		uintptr(unsafe.Pointer(iid)),
		uintptr(unsafe.Pointer(&obj)))
	return obj, hrErr("QueryInterface", hr)
}

func (s *imfMediaSource) Shutdown() {
	if s != nil && s.vtbl != nil {
		syscall.SyscallN(s.vtbl.Shutdown, uintptr(unsafe.Pointer(s)))
	}
}

type imfSourceReaderVtbl struct {
	QueryInterface      uintptr
	AddRef              uintptr
	Release             uintptr
	GetStreamSelection  uintptr
	SetStreamSelection  uintptr
	GetNativeMediaType  uintptr
	GetCurrentMediaType uintptr
	SetCurrentMediaType uintptr
	SetCurrentPosition  uintptr
	ReadSample          uintptr
	Flush               uintptr
	GetServiceForStream uintptr
}

type imfSourceReader struct {
	vtbl *imfSourceReaderVtbl
}

func mfCreateSourceReader(source *imfMediaSource, attrs *imfAttributes) (*imfSourceReader, error) {
	var reader *imfSourceReader
	hr, _, _ := syscall.SyscallN(procMFCreateSourceReaderFromMediaSource.Addr(),
		uintptr(unsafe.Pointer(source)),
		uintptr(unsafe.Pointer(attrs)),
		uintptr(unsafe.Pointer(&reader)))
	if err := hrErr("MFCreateSourceReaderFromMediaSource", hr); err != nil {
		return nil, err
	}
	return reader, nil
}

func (r *imfSourceReader) Release() {
	if r != nil && r.vtbl != nil {
		syscall.SyscallN(r.vtbl.Release, uintptr(unsafe.Pointer(r)))
	}
}

// GetNativeMediaType returns (nil, nil) past the last type.
func (r *imfSourceReader) GetNativeMediaType(stream, index uint32) (*imfMediaType, error) {
	var mt *imfMediaType
	hr, _, _ := syscall.SyscallN(r.vtbl.GetNativeMediaType,
		uintptr(unsafe.Pointer(r)),
		uintptr(stream),
		uintptr(index),
		uintptr(unsafe.Pointer(&mt)))
	if uint32(hr) == mfENoMoreTypes {
		return nil, nil
	}
	if err := hrErr("GetNativeMediaType", hr); err != nil {
		return nil, err
	}
	return mt, nil
}

func (r *imfSourceReader) GetCurrentMediaType(stream uint32) (*imfMediaType, error) {
	var mt *imfMediaType
	hr, _, _ := syscall.SyscallN(r.vtbl.GetCurrentMediaType,
		uintptr(unsafe.Pointer(r)),
		uintptr(stream),
		uintptr(unsafe.Pointer(&mt)))
	if err := hrErr("GetCurrentMediaType", hr); err != nil {
		return nil, err
	}
	return mt, nil
}

func (r *imfSourceReader) SetCurrentMediaType(stream uint32, mt *imfMediaType) error {
	hr, _, _ := syscall.SyscallN(r.vtbl.SetCurrentMediaType,
		uintptr(unsafe.Pointer(r)),
		uintptr(stream),
		0,
		uintptr(unsafe.Pointer(mt)))
	return hrErr("SetCurrentMediaType", hr)
}

// ReadSample blocks until the next sample; timestamp is in 100ns units.
// The sample is nil on a stream tick.
func (r *imfSourceReader) ReadSample(stream uint32) (flags uint32, timestamp int64, sample *imfSample, err error) {
	var actualStream uint32
	hr, _, _ := syscall.SyscallN(r.vtbl.ReadSample,
		uintptr(unsafe.Pointer(r)),
		uintptr(stream),
		0,
		uintptr(unsafe.Pointer(&actualStream)),
		uintptr(unsafe.Pointer(&flags)),
		uintptr(unsafe.Pointer(&timestamp)),
		uintptr(unsafe.Pointer(&sample)))
	return flags, timestamp, sample, hrErr("ReadSample", hr)
}

func (r *imfSourceReader) Flush(stream uint32) error {
	hr, _, _ := syscall.SyscallN(r.vtbl.Flush,
		uintptr(unsafe.Pointer(r)),
		uintptr(stream))
	return hrErr("Flush", hr)
}

type imfMediaTypeVtbl struct {
	imfAttributesVtbl
	GetMajorType       uintptr
	IsCompressedFormat uintptr
	IsEqual            uintptr
	GetRepresentation  uintptr
	FreeRepresentation uintptr
}

type imfMediaType struct {
	vtbl *imfMediaTypeVtbl
}

func mfCreateMediaType() (*imfMediaType, error) {
	var mt *imfMediaType
	hr, _, _ := syscall.SyscallN(procMFCreateMediaType.Addr(), uintptr(unsafe.Pointer(&mt)))
	if err := hrErr("MFCreateMediaType", hr); err != nil {
		return nil, err
	}
	return mt, nil
}

func (t *imfMediaType) attributes() *imfAttributes {
	return (*imfAttributes)(unsafe.Pointer(t))
}

func (t *imfMediaType) Release() {
	if t != nil && t.vtbl != nil {
		syscall.SyscallN(t.vtbl.Release, uintptr(unsafe.Pointer(t)))
	}
}

type imfSampleVtbl struct {
	imfAttributesVtbl
	GetSampleFlags            uintptr
	SetSampleFlags            uintptr
	GetSampleTime             uintptr
	SetSampleTime             uintptr
	GetSampleDuration         uintptr
	SetSampleDuration         uintptr
	GetBufferCount            uintptr
	GetBufferByIndex          uintptr
	ConvertToContiguousBuffer uintptr
	AddBuffer                 uintptr
	RemoveBufferByIndex       uintptr
	RemoveAllBuffers          uintptr
	GetTotalLength            uintptr
	CopyToBuffer              uintptr
}

type imfSample struct {
	vtbl *imfSampleVtbl
}

func (s *imfSample) Release() {
	if s != nil && s.vtbl != nil {
		syscall.SyscallN(s.vtbl.Release, uintptr(unsafe.Pointer(s)))
	}
}

func (s *imfSample) ConvertToContiguousBuffer() (*imfMediaBuffer, error) {
	var buf *imfMediaBuffer
	hr, _, _ := syscall.SyscallN(s.vtbl.ConvertToContiguousBuffer,
		uintptr(unsafe.Pointer(s)),
		uintptr(unsafe.Pointer(&buf)))
	if err := hrErr("ConvertToContiguousBuffer", hr); err != nil {
		return nil, err
	}
	return buf, nil
}

type imfMediaBufferVtbl struct {
	QueryInterface   uintptr
	AddRef           uintptr
	Release          uintptr
	Lock             uintptr
	Unlock           uintptr
	GetCurrentLength uintptr
	SetCurrentLength uintptr
	GetMaxLength     uintptr
}

type imfMediaBuffer struct {
	vtbl *imfMediaBufferVtbl
}

func (b *imfMediaBuffer) Release() {
	if b != nil && b.vtbl != nil {
		syscall.SyscallN(b.vtbl.Release, uintptr(unsafe.Pointer(b)))
	}
}

// Lock pins the buffer and returns its memory without copying. The slice
// is valid until Unlock.
func (b *imfMediaBuffer) Lock() ([]byte, error) {
	var ptr *byte
	var maxLen, curLen uint32
	hr, _, _ := syscall.SyscallN(b.vtbl.Lock,
		uintptr(unsafe.Pointer(b)),
		uintptr(unsafe.Pointer(&ptr)),
		uintptr(unsafe.Pointer(&maxLen)),
		uintptr(unsafe.Pointer(&curLen)))
	if err := hrErr("Lock", hr); err != nil {
		return nil, err
	}
	if ptr == nil {
		return []byte{}, nil
	}
	return unsafe.Slice(ptr, curLen), nil
}

func (b *imfMediaBuffer) Unlock() error {
	hr, _, _ := syscall.SyscallN(b.vtbl.Unlock, uintptr(unsafe.Pointer(b)))
	return hrErr("Unlock", hr)
}

// iamPropertyVtbl is shared by IAMCameraControl and IAMVideoProcAmp, which
// have identical layouts.
type iamPropertyVtbl struct {
	QueryInterface uintptr
	AddRef         uintptr
	Release        uintptr
	GetRange       uintptr
	Set            uintptr
	Get            uintptr
}

type iamProperty struct {
	vtbl *iamPropertyVtbl
}

func (c *iamProperty) Release() {
	if c != nil && c.vtbl != nil {
		syscall.SyscallN(c.vtbl.Release, uintptr(unsafe.Pointer(c)))
	}
}

func (c *iamProperty) GetRange(property int32) (min, max, step, def, caps int32, err error) {
	hr, _, _ := syscall.SyscallN(c.vtbl.GetRange,
		uintptr(unsafe.Pointer(c)),
		uintptr(property),
		uintptr(unsafe.Pointer(&min)),
		uintptr(unsafe.Pointer(&max)),
		uintptr(unsafe.Pointer(&step)),
		uintptr(unsafe.Pointer(&def)),
		uintptr(unsafe.Pointer(&caps)))
	err = hrErr("GetRange", hr)
	return
}

func (c *iamProperty) Get(property int32) (value, flags int32, err error) {
	hr, _, _ := syscall.SyscallN(c.vtbl.Get,
		uintptr(unsafe.Pointer(c)),
		uintptr(property),
		uintptr(unsafe.Pointer(&value)),
		uintptr(unsafe.Pointer(&flags)))
	err = hrErr("Get", hr)
	return
}

func (c *iamProperty) Set(property, value, flags int32) error {
	hr, _, _ := syscall.SyscallN(c.vtbl.Set,
		uintptr(unsafe.Pointer(c)),
		uintptr(property),
		uintptr(value),
		uintptr(flags))
	return hrErr("Set", hr)
}

// mfEnumVideoSources returns the activation objects of every video capture
// device. The caller releases each one.
func mfEnumVideoSources() ([]*imfActivate, error) {
	if err := mfStartup(); err != nil {
		return nil, err
	}

	attrs, err := mfCreateAttributes(1)
	if err != nil {
		return nil, err
	}
	defer attrs.Release()
	if err := attrs.SetGUID(&mfDevsourceAttributeSourceType, &mfDevsourceAttributeSourceTypeVidcap); err != nil {
		return nil, err
	}

	var array **imfActivate
	var count uint32
	hr, _, _ := syscall.SyscallN(procMFEnumDeviceSources.Addr(),
		uintptr(unsafe.Pointer(attrs)),
		uintptr(unsafe.Pointer(&array)),
		uintptr(unsafe.Pointer(&count)))
	if err := hrErr("MFEnumDeviceSources", hr); err != nil {
		return nil, err
	}
	if array == nil {
		return nil, nil
	}
	defer coTaskMemFree(unsafe.Pointer(array))

	out := make([]*imfActivate, count)
	copy(out, unsafe.Slice(array, count))
	return out, nil
}
