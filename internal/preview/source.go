package preview

import (
	"context"

	webcam "github.com/phreda4/webcamlib"
)

// SessionInfo describes the session behind a Source.
type SessionInfo struct {
	ID          string                  `json:"id"`
	Device      webcam.DeviceDescriptor `json:"device"`
	Requested   webcam.FormatDescriptor `json:"requested"`
	Negotiated  webcam.FormatDescriptor `json:"negotiated"`
	Substituted bool                    `json:"substituted"`
	BufferCount int                     `json:"buffer_count"`
	State       string                  `json:"state"`
	Stats       webcam.Stats            `json:"stats"`
}

// Source produces frames for the preview server.
type Source interface {
	Next(ctx context.Context) (Frame, error)
	Info() SessionInfo
}

// SessionSource adapts a webcam.Session. Each frame is copied out of the
// ring and the slot released before Next returns, so the device always has
// queued slots while clients are being served.
type SessionSource struct {
	Session *webcam.Session
}

func (s SessionSource) Next(ctx context.Context) (Frame, error) {
	v, err := s.Session.CaptureContext(ctx)
	if err != nil {
		return Frame{}, err
	}
	f := Frame{
		Sequence:  v.Sequence(),
		Timestamp: v.Timestamp(),
		Width:     v.Width(),
		Height:    v.Height(),
		Stride:    v.Stride(),
		Format:    v.Format(),
		Data:      v.Clone(),
	}
	f.Size = len(f.Data)
	if err := v.Release(); err != nil {
		return Frame{}, err
	}
	return f, nil
}

func (s SessionSource) Info() SessionInfo {
	return SessionInfo{
		ID:          s.Session.ID().String(),
		Device:      s.Session.Device(),
		Requested:   s.Session.Requested(),
		Negotiated:  s.Session.Negotiated(),
		Substituted: s.Session.Negotiated().Substituted(s.Session.Requested()),
		BufferCount: s.Session.BufferCount(),
		State:       s.Session.State().String(),
		Stats:       s.Session.Stats(),
	}
}
