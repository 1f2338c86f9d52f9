package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	webcam "github.com/phreda4/webcamlib"
	"github.com/phreda4/webcamlib/internal/config"
	"github.com/phreda4/webcamlib/internal/logger"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// loadConfig resolves settings and configures logging. Every command
// calls it first.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper(), GetConfigFile())
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.LogLevel, cfg.LogPretty)
	return cfg, nil
}

func sessionOptions(cfg *config.Config) []webcam.Option {
	return append(cfg.SessionOptions(), webcam.WithLogger(*logger.WithComponent("webcam")))
}

// resolveDevice picks the device named by the first argument, or the
// configured one when there is none.
func resolveDevice(cfg *config.Config, args []string) (webcam.DeviceDescriptor, error) {
	ref := cfg.Device
	if len(args) > 0 {
		ref = args[0]
	}
	dev, err := webcam.FindDevice(ref)
	if err != nil {
		return webcam.DeviceDescriptor{}, fmt.Errorf("failed to find device %q: %w", ref, err)
	}
	return dev, nil
}

// printOutput writes v as json or yaml, or calls table for the default
// human readable form.
func printOutput(w io.Writer, format string, v any, table func(tw *tabwriter.Writer)) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q (table, json or yaml)", format)
	}
}
