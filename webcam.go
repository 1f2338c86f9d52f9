package webcam

import (
	"fmt"
	"sort"
)

// Version returns the version of the webcamlib library
func Version() string {
	return "1.0.0"
}

// ListDevices returns the capture devices present, ordered by index. No
// hardware yields an empty slice, not an error.
func ListDevices() ([]DeviceDescriptor, error) {
	return listDevices(currentPlatform())
}

func listDevices(p platform) ([]DeviceDescriptor, error) {
	found, err := p.enumerate()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	out := make([]DeviceDescriptor, 0, len(found))
	out = append(out, found...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Index < out[j].Index
	})
	return out, nil
}

// QueryCapabilities opens dev for querying and returns every format it
// reports. A device that reports nothing yields an empty catalog. A device
// held by an open session yields ErrDeviceBusy.
func QueryCapabilities(dev DeviceDescriptor) (*CapabilityCatalog, error) {
	return queryCapabilities(currentPlatform(), dev)
}

func queryCapabilities(p platform, dev DeviceDescriptor) (*CapabilityCatalog, error) {
	unlock, err := devices.acquire(dev.key())
	if err != nil {
		return nil, err
	}
	defer unlock()

	h, err := p.open(dev)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	formats, err := h.Formats()
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %w", ErrDeviceUnavailable, dev.key(), err)
	}
	return NewCapabilityCatalog(formats), nil
}

// OpenBestSession queries dev, picks the catalog entry that best matches
// the preference and opens a session with it. A device that cannot report
// its formats gets the preference as is and negotiates it directly.
func OpenBestSession(dev DeviceDescriptor, format PixelFormat, width, height int, opts ...Option) (*Session, error) {
	return openBestSession(currentPlatform(), dev, format, width, height, opts...)
}

func openBestSession(p platform, dev DeviceDescriptor, format PixelFormat, width, height int, opts ...Option) (*Session, error) {
	catalog, err := queryCapabilities(p, dev)
	if err != nil {
		return nil, err
	}
	if !catalog.Empty() {
		best, err := SelectBestFormat(catalog, format, width, height)
		if err != nil {
			return nil, err
		}
		format, width, height = best.Format, best.Width, best.Height
	}
	return openSession(p, dev, format, width, height, opts...)
}

// OpenDevice opens the device at the given enumeration index.
func OpenDevice(index int, format PixelFormat, width, height int, opts ...Option) (*Session, error) {
	return openDeviceMatching(currentPlatform(), func(d DeviceDescriptor) bool {
		return d.Index == index
	}, format, width, height, opts...)
}

// OpenDeviceWithPath opens a device by its path
func OpenDeviceWithPath(path string, format PixelFormat, width, height int, opts ...Option) (*Session, error) {
	return openDeviceMatching(currentPlatform(), func(d DeviceDescriptor) bool {
		return d.Path == path
	}, format, width, height, opts...)
}

func openDeviceMatching(p platform, match func(DeviceDescriptor) bool, format PixelFormat, width, height int, opts ...Option) (*Session, error) {
	devs, err := listDevices(p)
	if err != nil {
		return nil, err
	}
	for _, dev := range devs {
		if match(dev) {
			return openSession(p, dev, format, width, height, opts...)
		}
	}
	return nil, fmt.Errorf("%w: no matching device", ErrDeviceUnavailable)
}

// FindDevice resolves a device by path or by decimal index.
func FindDevice(ref string) (DeviceDescriptor, error) {
	return findDevice(currentPlatform(), ref)
}

func findDevice(p platform, ref string) (DeviceDescriptor, error) {
	devs, err := listDevices(p)
	if err != nil {
		return DeviceDescriptor{}, err
	}
	for _, dev := range devs {
		if dev.Path == ref || fmt.Sprint(dev.Index) == ref || dev.Name == ref {
			return dev, nil
		}
	}
	return DeviceDescriptor{}, fmt.Errorf("%w: %q not found", ErrDeviceUnavailable, ref)
}
