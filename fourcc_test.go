package webcam

import (
	"errors"
	"testing"
)

func TestFourCC(t *testing.T) {
	tests := []struct {
		chars string
		want  uint32
	}{
		{"YUYV", 0x56595559},
		{"MJPG", 0x47504a4d},
		{"RGB3", 0x33424752},
		{"YU12", 0x32315559},
	}
	for _, tt := range tests {
		t.Run(tt.chars, func(t *testing.T) {
			c := tt.chars
			got := FourCC(c[0], c[1], c[2], c[3])
			if got != tt.want {
				t.Errorf("FourCC(%q) = %#x, want %#x", c, got, tt.want)
			}
			if back := FourCCString(got); back != c {
				t.Errorf("FourCCString(%#x) = %q, want %q", got, back, c)
			}
		})
	}
}

func TestParsePixelFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    PixelFormat
		wantErr bool
	}{
		{"RGB24", FormatRGB24, false},
		{"rgb3", FormatRGB24, false},
		{"RGB32", FormatRGB32, false},
		{"yuy2", FormatYUYV, false},
		{" YUYV ", FormatYUYV, false},
		{"I420", FormatYUV420P, false},
		{"yuv420p", FormatYUV420P, false},
		{"MJPG", FormatMJPEG, false},
		{"jpeg", FormatMJPEG, false},
		{"4", FormatMJPEG, false},
		{"0", FormatRGB24, false},
		{"5", 0, true},
		{"-1", 0, true},
		{"04", 0, true},
		{"h264", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePixelFormat(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupported) {
					t.Errorf("ParsePixelFormat(%q) error = %v, want ErrUnsupported", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParsePixelFormat(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestPixelFormatText(t *testing.T) {
	for _, f := range PixelFormats() {
		text, err := f.MarshalText()
		if err != nil {
			t.Fatalf("%v.MarshalText() error = %v", f, err)
		}
		var back PixelFormat
		if err := back.UnmarshalText(text); err != nil || back != f {
			t.Errorf("UnmarshalText(%q) = %v, %v, want %v", text, back, err, f)
		}
	}

	if got := PixelFormat(42).String(); got != "PixelFormat(42)" {
		t.Errorf("String() = %q, want PixelFormat(42)", got)
	}
	if PixelFormat(42).Valid() {
		t.Error("PixelFormat(42).Valid() = true")
	}
	if !FormatMJPEG.Compressed() || FormatYUYV.Compressed() {
		t.Error("Compressed() reports the wrong encodings")
	}
}

func TestDeviceDescriptorKey(t *testing.T) {
	withPath := DeviceDescriptor{Index: 2, Name: "Cam", Path: "/dev/video2"}
	if withPath.key() != "/dev/video2" {
		t.Errorf("key() = %q, want the path", withPath.key())
	}
	noPath := DeviceDescriptor{Index: 3, Name: "Cam"}
	if noPath.key() != "index:3" {
		t.Errorf("key() = %q, want index:3", noPath.key())
	}
	if got := withPath.String(); got != "#2 Cam (/dev/video2)" {
		t.Errorf("String() = %q", got)
	}
}

func TestFormatDescriptorString(t *testing.T) {
	tests := []struct {
		f    FormatDescriptor
		want string
	}{
		{FormatDescriptor{FormatRGB24, 640, 480, 0}, "RGB24 640x480"},
		{FormatDescriptor{FormatMJPEG, 1920, 1080, 30}, "MJPEG 1920x1080@30"},
		{FormatDescriptor{FormatYUYV, 640, 480, 7.5}, "YUYV 640x480@7.5"},
	}
	for _, tt := range tests {
		if got := tt.f.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
