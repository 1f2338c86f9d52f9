package webcam

type devicePathTestCase struct {
	path  string
	valid bool
}

func getDevicePathTestCases() []devicePathTestCase {
	return []devicePathTestCase{
		{"/dev/video0", true},
		{"/dev/video255", true},
		{"/dev/video256", false},
		{"/dev/video01", false},
		{"/dev/video", false},
		{"/dev/video-1", false},
		{"/dev/media0", false},
		{"/tmp/video0", false},
		{"/dev/v4l/video0", false},
		{"", false},
	}
}
