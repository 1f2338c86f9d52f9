package preview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	webcam "github.com/phreda4/webcamlib"
	"github.com/phreda4/webcamlib/internal/logger"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	writeWait       = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

// RetryConfig bounds how Pump retries failed captures.
type RetryConfig struct {
	MaxFailures int           // consecutive failures before Pump gives up
	Delay       time.Duration // first backoff delay
	MaxDelay    time.Duration // backoff cap
}

// DefaultRetryConfig waits 50ms, 100ms, 200ms ... up to 2s between
// failed captures and gives up after 20 in a row.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxFailures: 20,
		Delay:       50 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

// backoff is the delay before retrying after the given number of
// consecutive failures: Delay * 2^(failures-1), capped at MaxDelay.
func (c RetryConfig) backoff(failures int) time.Duration {
	if failures < 1 {
		return 0
	}
	delay := c.Delay
	for i := 1; i < failures && delay < c.MaxDelay; i++ {
		delay *= 2
	}
	return min(delay, c.MaxDelay)
}

// DeviceLister is what the server uses to answer /api/devices.
type DeviceLister func() ([]webcam.DeviceDescriptor, error)

// Server exposes a live session over HTTP: JSON status, an MJPEG
// passthrough stream and a websocket frame feed.
type Server struct {
	source   Source
	devices  DeviceLister
	hub      *Hub
	router   *mux.Router
	upgrader websocket.Upgrader
	retry    RetryConfig
	log      *zerolog.Logger
}

// NewServer creates a preview server for src. devices may be nil.
func NewServer(src Source, devices DeviceLister) *Server {
	s := &Server{
		source:  src,
		devices: devices,
		hub:     NewHub(),
		router:  mux.NewRouter(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local preview tool
			},
		},
		retry: DefaultRetryConfig(),
		log:   logger.WithComponent("preview"),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/session", s.handleSession).Methods("GET")
	api.HandleFunc("/devices", s.handleDevices).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.HandleFunc("/stream.mjpeg", s.handleMJPEG).Methods("GET")
	s.router.HandleFunc("/ws", s.handleWebsocket)
	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the fan-out the capture loop publishes to.
func (s *Server) Hub() *Hub {
	return s.hub
}

// SetRetry replaces the capture retry policy. Call it before Pump or Run.
func (s *Server) SetRetry(c RetryConfig) {
	s.retry = c
}

// Pump captures frames and publishes them until ctx ends or the source
// fails for good. Timeouts are retried at once since the wait itself is
// bounded. Capture failures are retried with exponential backoff, and
// MaxFailures of them in a row end the pump.
func (s *Server) Pump(ctx context.Context) error {
	defer s.hub.Close()
	failures := 0
	for {
		f, err := s.source.Next(ctx)
		switch {
		case err == nil:
			failures = 0
			s.hub.Publish(f)
			continue
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, webcam.ErrCaptureTimeout):
			s.log.Debug().Msg("no frame within timeout")
			continue
		case errors.Is(err, webcam.ErrSessionClosed):
			return nil
		case !errors.Is(err, webcam.ErrCaptureFailed):
			return fmt.Errorf("capture: %w", err)
		}

		failures++
		if failures >= s.retry.MaxFailures {
			return fmt.Errorf("capture failed %d times in a row: %w", failures, err)
		}
		delay := s.retry.backoff(failures)
		s.log.Warn().Err(err).Int("attempt", failures).Dur("delay", delay).Msg("capture failed, retrying")

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// Run serves on addr and pumps frames until ctx is cancelled or either
// side fails.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Pump(ctx)
	})
	g.Go(func() error {
		s.log.Info().Str("addr", addr).Msg("preview server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	info := s.source.Info()
	writeJSON(w, struct {
		SessionInfo
		Clients   int    `json:"clients"`
		Published uint64 `json:"published"`
		Dropped   uint64 `json:"dropped"`
	}{info, s.hub.Len(), s.hub.Published(), s.hub.Dropped()})
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if s.devices == nil {
		writeJSON(w, []webcam.DeviceDescriptor{})
		return
	}
	devs, err := s.devices()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, devs)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok", "version": webcam.Version()})
}

// handleMJPEG passes MJPEG payloads through untouched. Other encodings
// would need a JPEG encoder, which this server does not have.
func (s *Server) handleMJPEG(w http.ResponseWriter, r *http.Request) {
	if f := s.source.Info().Negotiated.Format; f != webcam.FormatMJPEG {
		http.Error(w, fmt.Sprintf("session delivers %s, not MJPEG", f), http.StatusUnsupportedMediaType)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Connection", "close")

	frames, cancel := s.hub.Subscribe()
	defer cancel()
	s.log.Info().Int("clients", s.hub.Len()).Msg("mjpeg client connected")
	defer s.log.Info().Msg("mjpeg client disconnected")

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(f.Data)); err != nil {
				return
			}
			if _, err := w.Write(f.Data); err != nil {
				return
			}
			if _, err := fmt.Fprint(w, "\r\n"); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

// handleWebsocket sends each frame as a JSON header message followed by a
// binary message with the payload.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	defer conn.Close()

	frames, cancel := s.hub.Subscribe()
	defer cancel()
	s.log.Info().Int("clients", s.hub.Len()).Msg("websocket client connected")

	// Reading is needed to see the client's close frame.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case f, ok := <-frames:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "capture stopped"),
					time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(f); err != nil {
				s.log.Debug().Err(err).Msg("websocket write")
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, f.Data); err != nil {
				s.log.Debug().Err(err).Msg("websocket write")
				return
			}
		}
	}
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>camctl preview</title></head>
<body>
<h1>{{.Device.Name}}</h1>
<p>{{.Negotiated}} (requested {{.Requested}})</p>
{{if .MJPEG}}<img src="/stream.mjpeg" alt="live">
{{else}}<p>Raw frames are available on <code>/ws</code>.</p>
{{end}}</body>
</html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	info := s.source.Info()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		SessionInfo
		MJPEG bool
	}{info, info.Negotiated.Format == webcam.FormatMJPEG}
	if err := indexTemplate.Execute(w, data); err != nil {
		s.log.Debug().Err(err).Msg("render index")
	}
}
