//go:build !linux && !windows

package webcam

type devicePathTestCase struct {
	path  string
	valid bool
}

func getDevicePathTestCases() []devicePathTestCase {
	return []devicePathTestCase{
		{"/dev/video0", false},
		{"", false},
	}
}
