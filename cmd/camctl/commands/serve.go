package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	webcam "github.com/phreda4/webcamlib"
	"github.com/phreda4/webcamlib/internal/logger"
	"github.com/phreda4/webcamlib/internal/preview"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve [DEVICE]",
	Short: "Serve a live preview over HTTP",
	Long: `Open a device and serve its frames over HTTP until interrupted.

Endpoints:
  GET /api/session   negotiated format, buffer count and capture counters
  GET /api/devices   the device list
  GET /stream.mjpeg  multipart MJPEG passthrough (MJPEG sessions only)
  GET /ws            websocket: a JSON header then a binary payload per frame

Frames are copied out of the capture ring before they are sent, so a slow
client misses frames instead of holding buffers.`,
	Example: `  # Serve the first device on :8080
  camctl serve

  # MJPEG preview of /dev/video2 on port 9090
  camctl serve /dev/video2 -p mjpeg --listen :9090`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "listen address (default is :8080)")
	viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.WithComponent("serve")

	dev, err := resolveDevice(cfg, args)
	if err != nil {
		return err
	}
	session, err := webcam.OpenBestSession(dev, cfg.PixelFormat(), cfg.Width, cfg.Height, sessionOptions(cfg)...)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", dev.Path, err)
	}
	defer session.Close()

	log.Info().
		Str("device", dev.String()).
		Str("format", session.Negotiated().String()).
		Str("listen", cfg.Listen).
		Msg("serving preview, press Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := preview.NewServer(preview.SessionSource{Session: session}, webcam.ListDevices)
	if err := server.Run(ctx, cfg.Listen); err != nil {
		return fmt.Errorf("preview server: %w", err)
	}

	stats := session.Stats()
	log.Info().
		Uint64("frames", stats.Frames).
		Uint64("timeouts", stats.Timeouts).
		Uint64("dropped", server.Hub().Dropped()).
		Msg("shutting down")
	return nil
}
