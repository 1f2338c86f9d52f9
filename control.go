package webcam

import (
	"fmt"
	"strings"
)

// Control is a logical camera parameter. Backends map each one onto their
// own identifiers.
type Control int

const (
	ControlBrightness Control = iota + 1
	ControlContrast
	ControlSaturation
	ControlExposure
	ControlFocus
	ControlZoom
	ControlGain
	ControlSharpness
)

var controlNames = map[Control]string{
	ControlBrightness: "brightness",
	ControlContrast:   "contrast",
	ControlSaturation: "saturation",
	ControlExposure:   "exposure",
	ControlFocus:      "focus",
	ControlZoom:       "zoom",
	ControlGain:       "gain",
	ControlSharpness:  "sharpness",
}

func (c Control) String() string {
	if name, ok := controlNames[c]; ok {
		return name
	}
	return fmt.Sprintf("control(%d)", int(c))
}

// SupportsAuto reports whether the control has an automatic mode.
// Only exposure and focus do.
func (c Control) SupportsAuto() bool {
	return c == ControlExposure || c == ControlFocus
}

// Controls returns every logical control in numeric order.
func Controls() []Control {
	return []Control{
		ControlBrightness, ControlContrast, ControlSaturation, ControlExposure,
		ControlFocus, ControlZoom, ControlGain, ControlSharpness,
	}
}

// ParseControl resolves a control by name, case-insensitively.
func ParseControl(s string) (Control, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for c, name := range controlNames {
		if name == needle {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: control %q", ErrUnsupported, s)
}

// ControlRange is what the device reports for one control.
type ControlRange struct {
	Min         int32 `json:"min" yaml:"min"`
	Max         int32 `json:"max" yaml:"max"`
	Step        int32 `json:"step" yaml:"step"`
	Default     int32 `json:"default" yaml:"default"`
	AutoCapable bool  `json:"auto_capable" yaml:"auto_capable"`
}

// Contains reports whether v lies inside [Min, Max].
func (r ControlRange) Contains(v int32) bool {
	return v >= r.Min && v <= r.Max
}

// ControlError carries the control and operation that failed. Err is one of
// ErrUnsupported, ErrRejectedByDevice or ErrSessionClosed, possibly wrapping
// a platform status.
type ControlError struct {
	Control Control
	Op      string
	Err     error
}

func (e *ControlError) Error() string {
	return fmt.Sprintf("webcam: %s %s: %v", e.Op, e.Control, e.Err)
}

func (e *ControlError) Unwrap() error {
	return e.Err
}
