package webcam

import (
	"errors"
	"testing"
)

func TestParseControl(t *testing.T) {
	for _, c := range Controls() {
		t.Run(c.String(), func(t *testing.T) {
			got, err := ParseControl(c.String())
			if err != nil || got != c {
				t.Errorf("ParseControl(%q) = %v, %v", c.String(), got, err)
			}
		})
	}

	if got, err := ParseControl(" Exposure "); err != nil || got != ControlExposure {
		t.Errorf("ParseControl(\" Exposure \") = %v, %v", got, err)
	}
	if _, err := ParseControl("white_balance"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("ParseControl(white_balance) error = %v, want ErrUnsupported", err)
	}
}

func TestControlSupportsAuto(t *testing.T) {
	for _, c := range Controls() {
		want := c == ControlExposure || c == ControlFocus
		if got := c.SupportsAuto(); got != want {
			t.Errorf("%v.SupportsAuto() = %v, want %v", c, got, want)
		}
	}
}

func TestControlRangeContains(t *testing.T) {
	r := ControlRange{Min: -10, Max: 10, Step: 1}
	tests := []struct {
		v    int32
		want bool
	}{
		{-10, true},
		{0, true},
		{10, true},
		{11, false},
		{-11, false},
	}
	for _, tt := range tests {
		if got := r.Contains(tt.v); got != tt.want {
			t.Errorf("Contains(%d) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestControlError(t *testing.T) {
	err := error(&ControlError{Control: ControlGain, Op: "set", Err: ErrRejectedByDevice})
	if got, want := err.Error(), "webcam: set gain: rejected by device"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrRejectedByDevice) {
		t.Error("ControlError does not unwrap to its cause")
	}
	if got := Control(0).String(); got != "control(0)" {
		t.Errorf("Control(0).String() = %q", got)
	}
}

func TestOpenError(t *testing.T) {
	err := error(&OpenError{Device: "/dev/video0", Stage: StageAllocate, Err: ErrBufferAllocationFailed})
	if got, want := err.Error(), "webcam: open /dev/video0 failed at allocate: buffer allocation failed"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrOpenFailed) || !errors.Is(err, ErrBufferAllocationFailed) {
		t.Error("OpenError does not match ErrOpenFailed and its cause")
	}
	if errors.Is(err, ErrDeviceBusy) {
		t.Error("OpenError matches an unrelated sentinel")
	}

	stages := map[OpenStage]string{
		StageAcquire:   "acquire",
		StageNegotiate: "negotiate",
		StageAllocate:  "allocate",
		StageQueue:     "queue",
		StageStreamOn:  "stream-on",
	}
	for s, want := range stages {
		if got := s.String(); got != want {
			t.Errorf("OpenStage(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
