package webcam

type devicePathTestCase struct {
	path  string
	valid bool
}

func getDevicePathTestCases() []devicePathTestCase {
	return []devicePathTestCase{
		{`\\?\usb#vid_046d&pid_085e&mi_00#7&1a2b3c4d&0&0000#{e5323777-f976-4f5b-9b55-b94699c46e44}\global`, true},
		{`\\?\USB#VID_ABCD&PID_EF01#...`, true},
		{`/dev/video0`, false},
		{`C:\some\path`, false},
		{"", false},
	}
}
