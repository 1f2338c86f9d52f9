package webcam

import (
	"errors"
	"os"
	"testing"
)

func TestVersion(t *testing.T) {
	version := Version()
	if version == "" {
		t.Error("Version string is empty")
	}

	expected := "1.0.0"
	if version != expected {
		t.Errorf("Version mismatch: got %s, expected %s", version, expected)
	}
}

func TestIsValidDevicePath(t *testing.T) {
	for _, tt := range getDevicePathTestCases() {
		t.Run(tt.path, func(t *testing.T) {
			if got := IsValidDevicePath(tt.path); got != tt.valid {
				t.Errorf("IsValidDevicePath(%q) = %v, want %v", tt.path, got, tt.valid)
			}
		})
	}
}

func TestListDevices(t *testing.T) {
	devs, err := ListDevices()
	if err != nil {
		t.Fatalf("Failed to get device list: %v", err)
	}
	if devs == nil {
		t.Fatal("Devices slice is nil")
	}
	t.Logf("Found %d capture devices", len(devs))
}

func TestListDevicesFake(t *testing.T) {
	t.Run("sorted by index", func(t *testing.T) {
		p := newFakePlatform(
			DeviceDescriptor{Index: 2, Name: "B", Path: "/dev/video2"},
			DeviceDescriptor{Index: 0, Name: "A", Path: "/dev/video0"},
			DeviceDescriptor{Index: 1, Name: "C", Path: "/dev/video1"},
		)
		devs, err := listDevices(p)
		if err != nil {
			t.Fatalf("listDevices() error = %v", err)
		}
		for i, d := range devs {
			if d.Index != i {
				t.Errorf("devs[%d].Index = %d", i, d.Index)
			}
		}
	})

	t.Run("no hardware", func(t *testing.T) {
		devs, err := listDevices(newFakePlatform())
		if err != nil || devs == nil || len(devs) != 0 {
			t.Errorf("listDevices() = %v, %v, want an empty slice", devs, err)
		}
	})

	t.Run("enumeration fails", func(t *testing.T) {
		p := newFakePlatform()
		p.enumErr = errors.New("permission denied")
		if _, err := listDevices(p); !errors.Is(err, ErrDeviceUnavailable) {
			t.Errorf("listDevices() error = %v, want ErrDeviceUnavailable", err)
		}
	})
}

func TestQueryCapabilities(t *testing.T) {
	h := newFakeHandle([]FormatDescriptor{
		{Format: FormatYUYV, Width: 640, Height: 480},
		{Format: FormatYUYV, Width: 640, Height: 480},
		{Format: FormatMJPEG, Width: 1280, Height: 720},
	})
	p, dev := testPlatform(t, h)

	cat, err := queryCapabilities(p, dev)
	if err != nil {
		t.Fatalf("queryCapabilities() error = %v", err)
	}
	if cat.Len() != 2 {
		t.Errorf("Len() = %d, want 2 after dropping the duplicate", cat.Len())
	}
	if h.count("Close") != 1 {
		t.Errorf("handle closed %d times, want 1", h.count("Close"))
	}
	if devices.busy(dev.key()) {
		t.Error("device still held after query")
	}

	t.Run("empty", func(t *testing.T) {
		p, dev := testPlatform(t, newFakeHandle(nil))
		cat, err := queryCapabilities(p, dev)
		if err != nil || !cat.Empty() {
			t.Errorf("queryCapabilities() = %v, %v, want an empty catalog", cat, err)
		}
	})

	t.Run("query fails", func(t *testing.T) {
		h := newFakeHandle(nil)
		h.formatsErr = errors.New("EIO")
		p, dev := testPlatform(t, h)
		if _, err := queryCapabilities(p, dev); !errors.Is(err, ErrDeviceUnavailable) {
			t.Errorf("queryCapabilities() error = %v, want ErrDeviceUnavailable", err)
		}
		if h.count("Close") != 1 {
			t.Error("handle leaked after failed query")
		}
	})

	t.Run("open fails", func(t *testing.T) {
		p, dev := testPlatform(t, newFakeHandle(nil))
		p.openErr = ErrDeviceUnavailable
		if _, err := queryCapabilities(p, dev); !errors.Is(err, ErrDeviceUnavailable) {
			t.Errorf("queryCapabilities() error = %v, want ErrDeviceUnavailable", err)
		}
		if devices.busy(dev.key()) {
			t.Error("device still held after failed open")
		}
	})
}

func TestOpenBestSession(t *testing.T) {
	h := newFakeHandle([]FormatDescriptor{
		{Format: FormatRGB24, Width: 640, Height: 480},
		{Format: FormatYUYV, Width: 1920, Height: 1080},
	})
	p, dev := testPlatform(t, h)

	s, err := openBestSession(p, dev, FormatYUYV, 640, 480)
	if err != nil {
		t.Fatalf("openBestSession() error = %v", err)
	}
	defer s.Close()

	want := FormatDescriptor{Format: FormatYUYV, Width: 1920, Height: 1080}
	if s.Requested() != want || s.Negotiated() != want {
		t.Errorf("Requested() = %v, Negotiated() = %v, want %v", s.Requested(), s.Negotiated(), want)
	}

	t.Run("no catalog", func(t *testing.T) {
		p, dev := testPlatform(t, newFakeHandle(nil))
		s, err := openBestSession(p, dev, FormatRGB24, 320, 240)
		if err != nil {
			t.Fatalf("openBestSession() error = %v", err)
		}
		defer s.Close()
		if got := s.Requested(); got.Width != 320 || got.Format != FormatRGB24 {
			t.Errorf("Requested() = %v, want the preference", got)
		}
	})
}

func TestOpenDeviceMatching(t *testing.T) {
	h := newFakeHandle(testFormats)
	p, dev := testPlatform(t, h)

	s, err := openDeviceMatching(p, func(d DeviceDescriptor) bool { return d.Path == dev.Path }, FormatYUYV, 640, 480)
	if err != nil {
		t.Fatalf("openDeviceMatching() error = %v", err)
	}
	s.Close()

	_, err = openDeviceMatching(p, func(DeviceDescriptor) bool { return false }, FormatYUYV, 640, 480)
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("openDeviceMatching() error = %v, want ErrDeviceUnavailable", err)
	}
}

func TestFindDevice(t *testing.T) {
	p := newFakePlatform(
		DeviceDescriptor{Index: 0, Name: "Integrated Camera", Path: "/dev/video0"},
		DeviceDescriptor{Index: 2, Name: "USB Camera", Path: "/dev/video2"},
	)
	tests := []struct {
		ref     string
		want    int
		wantErr bool
	}{
		{"/dev/video2", 2, false},
		{"0", 0, false},
		{"USB Camera", 2, false},
		{"1", 0, true},
		{"/dev/video9", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := findDevice(p, tt.ref)
			if tt.wantErr {
				if !errors.Is(err, ErrDeviceUnavailable) {
					t.Errorf("findDevice(%q) error = %v, want ErrDeviceUnavailable", tt.ref, err)
				}
				return
			}
			if err != nil || got.Index != tt.want {
				t.Errorf("findDevice(%q) = %v, %v, want index %d", tt.ref, got, err, tt.want)
			}
		})
	}
}

func TestCaptureHardware(t *testing.T) {
	if os.Getuid() != 0 {
		t.Skip("Skipping test that requires root privileges")
	}

	devs, err := ListDevices()
	if err != nil {
		t.Fatalf("Failed to get device list: %v", err)
	}
	if len(devs) == 0 {
		t.Skip("No capture devices found")
	}

	cat, err := QueryCapabilities(devs[0])
	if err != nil {
		t.Fatalf("QueryCapabilities(%v) error = %v", devs[0], err)
	}
	t.Logf("%v: %d formats", devs[0], cat.Len())

	s, err := OpenBestSession(devs[0], FormatYUYV, 640, 480)
	if err != nil {
		t.Skipf("Cannot open %v: %v", devs[0], err)
	}
	defer s.Close()

	for i := 0; i < 5; i++ {
		v, err := s.Capture()
		if err != nil {
			t.Fatalf("Capture() #%d error = %v", i, err)
		}
		if v.Len() == 0 {
			t.Errorf("frame #%d is empty", i)
		}
		t.Logf("frame %d: %d bytes, %v", v.Sequence(), v.Len(), v.Timestamp())
		if err := v.Release(); err != nil {
			t.Fatalf("Release() #%d error = %v", i, err)
		}
	}
}
