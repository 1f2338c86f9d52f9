package preview

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	webcam "github.com/phreda4/webcamlib"
)

// fakeSource hands out frames pushed by the test.
type fakeSource struct {
	info   SessionInfo
	frames chan Frame
	errs   chan error

	mu    sync.Mutex
	calls int
}

func newFakeSource(format webcam.PixelFormat) *fakeSource {
	neg := webcam.FormatDescriptor{Format: format, Width: 640, Height: 480}
	return &fakeSource{
		info: SessionInfo{
			ID:          "test",
			Device:      webcam.DeviceDescriptor{Index: 0, Name: "Fake Camera", Path: "/dev/video0"},
			Requested:   neg,
			Negotiated:  neg,
			BufferCount: 4,
			State:       "streaming",
		},
		frames: make(chan Frame),
		errs:   make(chan error, 4),
	}
}

func (s *fakeSource) Next(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case err := <-s.errs:
		return Frame{}, err
	case f := <-s.frames:
		return f, nil
	}
}

func (s *fakeSource) Info() SessionInfo { return s.info }

func startPump(t *testing.T, s *Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Pump(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Pump() error = %v", err)
		}
	})
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Len() < n {
		if time.Now().After(deadline) {
			t.Fatalf("%d clients connected, want %d", h.Len(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubDropsForSlowClients(t *testing.T) {
	h := NewHub()
	frames, cancel := h.Subscribe()
	defer cancel()

	for i := 1; i <= 5; i++ {
		h.Publish(Frame{Sequence: uint64(i)})
	}
	if h.Published() != 5 || h.Dropped() != 3 {
		t.Errorf("Published() = %d, Dropped() = %d, want 5, 3", h.Published(), h.Dropped())
	}
	if f := <-frames; f.Sequence != 1 {
		t.Errorf("first frame = %d, want 1", f.Sequence)
	}

	h.Close()
	for range frames {
	}
	if h.Len() != 0 {
		t.Errorf("Len() = %d after Close", h.Len())
	}
	cancel()
	h.Publish(Frame{})

	late, _ := h.Subscribe()
	if _, ok := <-late; ok {
		t.Error("Subscribe() after Close returned an open channel")
	}
}

func TestAPI(t *testing.T) {
	src := newFakeSource(webcam.FormatYUYV)
	s := NewServer(src, func() ([]webcam.DeviceDescriptor, error) {
		return []webcam.DeviceDescriptor{src.info.Device}, nil
	})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	tests := []struct {
		path   string
		status int
		want   string
	}{
		{"/api/session", http.StatusOK, `"negotiated":{"format":"YUYV","width":640,"height":480}`},
		{"/api/devices", http.StatusOK, `"path":"/dev/video0"`},
		{"/api/health", http.StatusOK, `"version":"1.0.0"`},
		{"/stream.mjpeg", http.StatusUnsupportedMediaType, "not MJPEG"},
		{"/", http.StatusOK, "/ws"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if !strings.Contains(string(body), tt.want) {
				t.Errorf("body = %s, want it to contain %s", body, tt.want)
			}
		})
	}
}

func TestDevicesError(t *testing.T) {
	s := NewServer(newFakeSource(webcam.FormatYUYV), func() ([]webcam.DeviceDescriptor, error) {
		return nil, webcam.ErrDeviceUnavailable
	})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/devices", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestMJPEGStream(t *testing.T) {
	src := newFakeSource(webcam.FormatMJPEG)
	s := NewServer(src, nil)
	startPump(t, s)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/stream.mjpeg")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/x-mixed-replace" {
		t.Fatalf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}
	waitClients(t, s.Hub(), 1)

	payload := []byte{0xff, 0xd8, 0xff, 0xe0, 1, 2, 3, 0xff, 0xd9}
	src.frames <- Frame{Sequence: 1, Format: webcam.FormatMJPEG, Data: payload, Size: len(payload)}

	part, err := multipart.NewReader(resp.Body, params["boundary"]).NextPart()
	if err != nil {
		t.Fatalf("NextPart() error = %v", err)
	}
	if part.Header.Get("Content-Type") != "image/jpeg" {
		t.Errorf("part Content-Type = %q", part.Header.Get("Content-Type"))
	}
	got := make([]byte, len(payload))
	if _, err := io.ReadFull(part, got); err != nil {
		t.Fatalf("reading part: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload = %x, want %x", got, payload)
	}
}

func TestWebsocketFeed(t *testing.T) {
	src := newFakeSource(webcam.FormatYUYV)
	s := NewServer(src, nil)
	startPump(t, s)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	waitClients(t, s.Hub(), 1)

	data := bytes.Repeat([]byte{0x80}, 64)
	src.frames <- Frame{Sequence: 7, Timestamp: time.Second, Width: 8, Height: 4, Stride: 16, Format: webcam.FormatYUYV, Data: data, Size: len(data)}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var header map[string]any
	if err := conn.ReadJSON(&header); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if header["sequence"] != float64(7) || header["format"] != "YUYV" || header["size"] != float64(64) {
		t.Errorf("header = %v", header)
	}
	if _, ok := header["Data"]; ok {
		t.Error("payload leaked into the JSON header")
	}

	kind, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if kind != websocket.BinaryMessage || !bytes.Equal(msg, data) {
		t.Errorf("message kind %d, %d bytes", kind, len(msg))
	}
}

func TestPumpErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"session closed", webcam.ErrSessionClosed, false},
		{"fatal", webcam.ErrNotStreaming, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource(webcam.FormatYUYV)
			s := NewServer(src, nil)
			s.SetRetry(RetryConfig{MaxFailures: 5, Delay: time.Millisecond, MaxDelay: 5 * time.Millisecond})

			// Transient errors first; the pump must keep going past them.
			src.errs <- webcam.ErrCaptureTimeout
			src.errs <- webcam.ErrCaptureFailed
			src.errs <- tt.err

			done := make(chan error, 1)
			go func() { done <- s.Pump(context.Background()) }()
			select {
			case err := <-done:
				if (err != nil) != tt.wantErr {
					t.Errorf("Pump() error = %v, wantErr %v", err, tt.wantErr)
				}
				if tt.wantErr && !errors.Is(err, tt.err) {
					t.Errorf("Pump() error = %v, want %v", err, tt.err)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("Pump() did not return")
			}
			if src.calls != 3 {
				t.Errorf("Next called %d times, want 3", src.calls)
			}
		})
	}
}

// failingSource fails every capture the way an unplugged camera does.
type failingSource struct {
	info  SessionInfo
	calls atomic.Int64

	mu    sync.Mutex
	times []time.Time
}

func (s *failingSource) Next(ctx context.Context) (Frame, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.times = append(s.times, time.Now())
	s.mu.Unlock()
	return Frame{}, fmt.Errorf("%w: poll: device disconnected", webcam.ErrCaptureFailed)
}

func (s *failingSource) Info() SessionInfo { return s.info }

func TestPumpBacksOffOnFailures(t *testing.T) {
	src := &failingSource{info: newFakeSource(webcam.FormatYUYV).info}
	s := NewServer(src, nil)
	s.SetRetry(RetryConfig{MaxFailures: 5, Delay: 10 * time.Millisecond, MaxDelay: 40 * time.Millisecond})

	start := time.Now()
	err := s.Pump(context.Background())
	if !errors.Is(err, webcam.ErrCaptureFailed) {
		t.Fatalf("Pump() error = %v, want ErrCaptureFailed", err)
	}
	if n := src.calls.Load(); n != 5 {
		t.Errorf("Next called %d times, want 5", n)
	}
	// 10 + 20 + 40 + 40 between the five attempts.
	if elapsed := time.Since(start); elapsed < 110*time.Millisecond {
		t.Errorf("Pump() gave up after %v, want at least 110ms of backoff", elapsed)
	}

	src.mu.Lock()
	defer src.mu.Unlock()
	for i := 1; i < len(src.times); i++ {
		if gap := src.times[i].Sub(src.times[i-1]); gap < 10*time.Millisecond {
			t.Errorf("attempt %d retried after %v, want a backoff", i, gap)
		}
	}
}

func TestPumpBackoffCancel(t *testing.T) {
	src := &failingSource{info: newFakeSource(webcam.FormatYUYV).info}
	s := NewServer(src, nil)
	s.SetRetry(RetryConfig{MaxFailures: 100, Delay: time.Hour, MaxDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Pump(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Pump() error = %v, want nil after cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Pump() kept sleeping after cancel")
	}
	if n := src.calls.Load(); n != 1 {
		t.Errorf("Next called %d times, want 1", n)
	}
}

func TestRetryBackoff(t *testing.T) {
	c := RetryConfig{MaxFailures: 10, Delay: 50 * time.Millisecond, MaxDelay: 300 * time.Millisecond}
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{0, 0},
		{1, 50 * time.Millisecond},
		{2, 100 * time.Millisecond},
		{3, 200 * time.Millisecond},
		{4, 300 * time.Millisecond},
		{30, 300 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := c.backoff(tt.failures); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.failures, got, tt.want)
		}
	}
}

func TestIndexEscapesDeviceName(t *testing.T) {
	src := newFakeSource(webcam.FormatYUYV)
	src.info.Device.Name = `<script>alert("cam")</script>`
	s := NewServer(src, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	body := rec.Body.String()
	if strings.Contains(body, "<script>") {
		t.Errorf("device name was not escaped: %s", body)
	}
	if !strings.Contains(body, "&lt;script&gt;") || !strings.Contains(body, "/ws") {
		t.Errorf("body = %s", body)
	}
}

func TestRun(t *testing.T) {
	src := newFakeSource(webcam.FormatYUYV)
	s := NewServer(src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
}

func TestFrameJSON(t *testing.T) {
	data, err := json.Marshal(Frame{Sequence: 1, Format: webcam.FormatMJPEG, Data: []byte{1}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"format":"MJPEG"`) {
		t.Errorf("json = %s", data)
	}
}
