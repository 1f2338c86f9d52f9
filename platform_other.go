//go:build !linux && !windows

package webcam

type unsupportedPlatform struct{}

func currentPlatform() platform {
	return unsupportedPlatform{}
}

// enumerate reports no devices rather than an error so that listing on an
// unsupported system behaves like listing on a system without cameras.
func (unsupportedPlatform) enumerate() ([]DeviceDescriptor, error) {
	return nil, nil
}

func (unsupportedPlatform) open(DeviceDescriptor) (deviceHandle, error) {
	return nil, ErrUnsupportedPlatform
}

// IsValidDevicePath always reports false on platforms without a backend
func IsValidDevicePath(string) bool {
	return false
}
