package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	webcam "github.com/phreda4/webcamlib"
)

func main() {
	webcam.SetLogFunc(func(msg string) {
		fmt.Printf("[LIB LOG]: %s\n", msg)
	})

	// Get device list
	devices, err := webcam.ListDevices()
	if err != nil {
		log.Fatalf("Failed to get device list: %v", err)
	}

	fmt.Printf("Found %d capture devices:\n\n", len(devices))
	if len(devices) == 0 {
		os.Exit(1)
	}

	for _, dev := range devices {
		fmt.Printf("Device #%d:\n", dev.Index)
		fmt.Printf("  Name: %s\n", dev.Name)
		fmt.Printf("  Path: %s\n", dev.Path)

		catalog, err := webcam.QueryCapabilities(dev)
		if err != nil {
			fmt.Printf("  Formats: unavailable (%v)\n", err)
			continue
		}
		if catalog.Empty() {
			fmt.Printf("  Formats: not reported\n")
			continue
		}
		fmt.Printf("  Formats: %d (%dx%d .. %dx%d)\n", catalog.Len(),
			catalog.MinWidth, catalog.MinHeight, catalog.MaxWidth, catalog.MaxHeight)
		for _, f := range catalog.Formats {
			fmt.Printf("    %s\n", f)
		}
	}
	fmt.Println()

	// Open the first device
	session, err := webcam.OpenSession(devices[0], webcam.FormatRGB24, 640, 480)
	if err != nil {
		var oe *webcam.OpenError
		if errors.As(err, &oe) {
			log.Fatalf("Failed to open %s during %s: %v", oe.Device, oe.Stage, oe.Err)
		}
		log.Fatalf("Failed to open device: %v", err)
	}
	defer session.Close()

	fmt.Printf("Camera open. Actual resolution: %dx%d %s\n",
		session.ActualWidth(), session.ActualHeight(), session.ActualFormat())

	for i := 0; i < 10; i++ {
		frame, err := session.Capture()
		if err != nil {
			fmt.Printf("Capture error: %v\n", err)
			continue
		}
		fmt.Printf("Frame %d OK. Size: %d bytes. Time: %d ms\n", i, frame.Len(), frame.Timestamp().Milliseconds())
		if err := frame.Release(); err != nil {
			log.Fatalf("Failed to release frame: %v", err)
		}
	}

	stats := session.Stats()
	fmt.Printf("\n%d frames, %d timeouts, %d failures\n", stats.Frames, stats.Timeouts, stats.Failures)
}
