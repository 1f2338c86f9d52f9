package commands

import (
	"fmt"
	"text/tabwriter"

	webcam "github.com/phreda4/webcamlib"
	"github.com/spf13/cobra"
)

var capsCmd = &cobra.Command{
	Use:   "caps [DEVICE]",
	Short: "Show the formats a device offers",
	Long: `Query a device for every (pixel format, resolution, frame rate) it reports.

With --select, also print the entry that best matches the configured
format and resolution, the same choice "camctl snapshot --best" makes.`,
	Example: `  # Formats of the first device
  camctl caps

  # Best match for 1280x720 YUYV on /dev/video2
  camctl caps /dev/video2 --select -p yuyv -W 1280 -H 720`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCaps,
}

var (
	capsFormat string
	capsSelect bool
)

func init() {
	rootCmd.AddCommand(capsCmd)

	capsCmd.Flags().StringVarP(&capsFormat, "format", "f", "table", "output format (table, json or yaml)")
	capsCmd.Flags().BoolVarP(&capsSelect, "select", "s", false, "print the best match for the requested format")
}

func runCaps(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dev, err := resolveDevice(cfg, args)
	if err != nil {
		return err
	}

	catalog, err := webcam.QueryCapabilities(dev)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", dev.Path, err)
	}

	if capsSelect {
		best, err := webcam.SelectBestFormat(catalog, cfg.PixelFormat(), cfg.Width, cfg.Height)
		if err != nil {
			return fmt.Errorf("no format to select from on %s: %w", dev.Path, err)
		}
		score := webcam.Score(best, cfg.PixelFormat(), cfg.Width, cfg.Height)
		result := struct {
			Requested webcam.FormatDescriptor `json:"requested" yaml:"requested"`
			Selected  webcam.FormatDescriptor `json:"selected" yaml:"selected"`
			Score     int                     `json:"score" yaml:"score"`
		}{
			Requested: webcam.FormatDescriptor{Format: cfg.PixelFormat(), Width: cfg.Width, Height: cfg.Height},
			Selected:  best,
			Score:     score,
		}
		return printOutput(cmd.OutOrStdout(), capsFormat, result, func(tw *tabwriter.Writer) {
			fmt.Fprintf(tw, "Requested:\t%s\n", result.Requested)
			fmt.Fprintf(tw, "Selected:\t%s\n", result.Selected)
			fmt.Fprintf(tw, "Score:\t%d\n", result.Score)
		})
	}

	return printOutput(cmd.OutOrStdout(), capsFormat, catalog, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "Device:\t%s\n", dev)
		if catalog.Empty() {
			fmt.Fprintln(tw, "The device does not report its formats")
			return
		}
		fmt.Fprintf(tw, "Range:\t%dx%d .. %dx%d\n\n", catalog.MinWidth, catalog.MinHeight, catalog.MaxWidth, catalog.MaxHeight)
		fmt.Fprintln(tw, "FORMAT\tWIDTH\tHEIGHT\tFPS")
		for _, f := range catalog.Formats {
			fps := "-"
			if f.FrameRate > 0 {
				fps = fmt.Sprintf("%g", f.FrameRate)
			}
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", f.Format, f.Width, f.Height, fps)
		}
	})
}
