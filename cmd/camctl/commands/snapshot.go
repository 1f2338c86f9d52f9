package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	webcam "github.com/phreda4/webcamlib"
	"github.com/phreda4/webcamlib/internal/logger"
	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [DEVICE]",
	Short: "Capture frames",
	Long: `Open a device, capture a number of frames and report their size and
timestamp. With --out, each payload is written to its own file exactly as
the device delivered it: MJPEG frames as .jpg, uncompressed frames as raw
pixel data named after their encoding.

Timeouts and capture failures are reported and the loop carries on, the
way the device keeps streaming after them.`,
	Example: `  # Ten 640x480 RGB24 frames from the first device
  camctl snapshot

  # Save five MJPEG frames, letting the device's catalog pick the size
  camctl snapshot /dev/video0 -p mjpeg --best -n 5 -o ./frames`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSnapshot,
}

var (
	snapshotCount int
	snapshotOut   string
	snapshotBest  bool
)

func init() {
	rootCmd.AddCommand(snapshotCmd)

	snapshotCmd.Flags().IntVarP(&snapshotCount, "count", "n", 10, "number of frames to capture")
	snapshotCmd.Flags().StringVarP(&snapshotOut, "out", "o", "", "directory to write frames to")
	snapshotCmd.Flags().BoolVar(&snapshotBest, "best", false, "open the catalog entry closest to the request")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dev, err := resolveDevice(cfg, args)
	if err != nil {
		return err
	}
	if snapshotOut != "" {
		if err := os.MkdirAll(snapshotOut, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	open := webcam.OpenSession
	if snapshotBest {
		open = webcam.OpenBestSession
	}
	session, err := open(dev, cfg.PixelFormat(), cfg.Width, cfg.Height, sessionOptions(cfg)...)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", dev.Path, err)
	}
	defer session.Close()

	out := cmd.OutOrStdout()
	neg := session.Negotiated()
	fmt.Fprintf(out, "Camera open. Actual resolution: %dx%d %s (%d buffers)\n",
		neg.Width, neg.Height, neg.Format, session.BufferCount())
	if neg.Substituted(session.Requested()) {
		fmt.Fprintf(out, "Requested %s, device substituted %s\n", session.Requested(), neg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.WithComponent("snapshot")
	for i := 0; i < snapshotCount; i++ {
		frame, err := session.CaptureContext(ctx)
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(out, "Interrupted")
			break
		}
		if err != nil {
			fmt.Fprintf(out, "Capture error: %v\n", err)
			continue
		}

		fmt.Fprintf(out, "Frame %d OK. Size: %d bytes. Time: %d ms\n", i, frame.Len(), frame.Timestamp().Milliseconds())
		if snapshotOut != "" {
			path := filepath.Join(snapshotOut, frameFileName(i, frame.Format()))
			if err := os.WriteFile(path, frame.Bytes(), 0o644); err != nil {
				frame.Release()
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			log.Debug().Str("path", path).Int("bytes", frame.Len()).Msg("frame written")
		}
		if err := frame.Release(); err != nil {
			return fmt.Errorf("failed to release frame: %w", err)
		}
	}

	stats := session.Stats()
	fmt.Fprintf(out, "%d frames, %d timeouts, %d failures\n", stats.Frames, stats.Timeouts, stats.Failures)
	return nil
}

func frameFileName(i int, f webcam.PixelFormat) string {
	if f == webcam.FormatMJPEG {
		return fmt.Sprintf("frame-%04d.jpg", i)
	}
	return fmt.Sprintf("frame-%04d.%s", i, strings.ToLower(f.String()))
}
