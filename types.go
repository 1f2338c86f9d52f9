package webcam

import (
	"fmt"
)

// PixelFormat is the pixel encoding of a frame. The numbering matches the
// webcam.h C header so values can be exchanged with C callers.
type PixelFormat int

const (
	FormatRGB24   PixelFormat = iota // R, G, B (3 bytes)
	FormatRGB32                      // 4 bytes per pixel
	FormatYUYV                       // packed YUV 4:2:2 (2 bytes)
	FormatYUV420P                    // planar YUV 4:2:0, I420 (1.5 bytes)
	FormatMJPEG                      // compressed, opaque payload
)

func (f PixelFormat) String() string {
	if info, ok := pixelFormats[f]; ok {
		return info.name
	}
	return fmt.Sprintf("PixelFormat(%d)", int(f))
}

// Valid reports whether f is one of the supported encodings.
func (f PixelFormat) Valid() bool {
	_, ok := pixelFormats[f]
	return ok
}

// Compressed reports whether frames of this encoding have a variable size.
func (f PixelFormat) Compressed() bool {
	return f == FormatMJPEG
}

func (f PixelFormat) planar() bool {
	return f == FormatYUV420P
}

// DeviceDescriptor identifies a capture device found by ListDevices.
// Index is only stable within one enumeration pass; Path is the closer
// approximation to identity.
type DeviceDescriptor struct {
	Index int    `json:"index" yaml:"index"`
	Name  string `json:"name" yaml:"name"`
	Path  string `json:"path" yaml:"path"`
}

func (d DeviceDescriptor) String() string {
	return fmt.Sprintf("#%d %s (%s)", d.Index, d.Name, d.Path)
}

// key is the identity used for exclusive access.
func (d DeviceDescriptor) key() string {
	if d.Path != "" {
		return d.Path
	}
	return fmt.Sprintf("index:%d", d.Index)
}

// FormatDescriptor is one (encoding, resolution, rate) tuple.
type FormatDescriptor struct {
	Format    PixelFormat `json:"format" yaml:"format"`
	Width     int         `json:"width" yaml:"width"`
	Height    int         `json:"height" yaml:"height"`
	FrameRate float64     `json:"frame_rate,omitempty" yaml:"frame_rate,omitempty"`
}

func (f FormatDescriptor) String() string {
	if f.FrameRate > 0 {
		return fmt.Sprintf("%s %dx%d@%g", f.Format, f.Width, f.Height, f.FrameRate)
	}
	return fmt.Sprintf("%s %dx%d", f.Format, f.Width, f.Height)
}

// Substituted reports whether the platform changed the encoding or the
// resolution of the request during negotiation.
func (f FormatDescriptor) Substituted(requested FormatDescriptor) bool {
	return f.Format != requested.Format || f.Width != requested.Width || f.Height != requested.Height
}

// MarshalText lets PixelFormat appear by name in JSON and YAML output.
func (f PixelFormat) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *PixelFormat) UnmarshalText(text []byte) error {
	p, err := ParsePixelFormat(string(text))
	if err != nil {
		return err
	}
	*f = p
	return nil
}
