package commands

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	webcam "github.com/phreda4/webcamlib"
	"github.com/spf13/cobra"
)

var ctrlCmd = &cobra.Command{
	Use:   "ctrl",
	Short: "Read and change camera controls",
	Long: `Read and change brightness, contrast, saturation, exposure, focus, zoom,
gain and sharpness. Controls are set through a streaming session, so the
device is opened with the configured format for the duration of the call.

Only exposure and focus have an automatic mode.`,
}

var ctrlListCmd = &cobra.Command{
	Use:   "list [DEVICE]",
	Short: "Show every control with its range and value",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCtrlList,
}

var ctrlGetCmd = &cobra.Command{
	Use:   "get CONTROL [DEVICE]",
	Short: "Print the value of a control",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runCtrlGet,
}

var ctrlSetCmd = &cobra.Command{
	Use:     "set CONTROL VALUE [DEVICE]",
	Short:   "Set a control",
	Example: `  camctl ctrl set brightness 140 /dev/video0`,
	Args:    cobra.RangeArgs(2, 3),
	RunE:    runCtrlSet,
}

var ctrlAutoCmd = &cobra.Command{
	Use:     "auto CONTROL on|off [DEVICE]",
	Short:   "Toggle the automatic mode of exposure or focus",
	Example: `  camctl ctrl auto exposure off`,
	Args:    cobra.RangeArgs(2, 3),
	RunE:    runCtrlAuto,
}

var ctrlFormat string

func init() {
	rootCmd.AddCommand(ctrlCmd)
	ctrlCmd.AddCommand(ctrlListCmd, ctrlGetCmd, ctrlSetCmd, ctrlAutoCmd)

	ctrlListCmd.Flags().StringVarP(&ctrlFormat, "format", "f", "table", "output format (table, json or yaml)")
}

// withSession opens the device named in args (or the configured one) and
// runs fn against it.
func withSession(args []string, fn func(s *webcam.Session) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dev, err := resolveDevice(cfg, args)
	if err != nil {
		return err
	}
	s, err := webcam.OpenBestSession(dev, cfg.PixelFormat(), cfg.Width, cfg.Height, sessionOptions(cfg)...)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", dev.Path, err)
	}
	defer s.Close()
	return fn(s)
}

type controlState struct {
	Control   string               `json:"control" yaml:"control"`
	Supported bool                 `json:"supported" yaml:"supported"`
	Value     int32                `json:"value,omitempty" yaml:"value,omitempty"`
	Range     *webcam.ControlRange `json:"range,omitempty" yaml:"range,omitempty"`
}

func runCtrlList(cmd *cobra.Command, args []string) error {
	return withSession(args, func(s *webcam.Session) error {
		states := make([]controlState, 0, len(webcam.Controls()))
		for _, c := range webcam.Controls() {
			st := controlState{Control: c.String()}
			if rng, err := s.ParameterRange(c); err == nil {
				st.Supported = true
				st.Range = &rng
				if v, err := s.GetParameter(c); err == nil {
					st.Value = v
				}
			} else if !errors.Is(err, webcam.ErrUnsupported) {
				return err
			}
			states = append(states, st)
		}

		return printOutput(cmd.OutOrStdout(), ctrlFormat, states, func(tw *tabwriter.Writer) {
			fmt.Fprintln(tw, "CONTROL\tVALUE\tMIN\tMAX\tSTEP\tDEFAULT\tAUTO")
			for _, st := range states {
				if !st.Supported {
					fmt.Fprintf(tw, "%s\t-\t\t\t\t\t\n", st.Control)
					continue
				}
				r := st.Range
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%v\n", st.Control, st.Value, r.Min, r.Max, r.Step, r.Default, r.AutoCapable)
			}
		})
	})
}

func runCtrlGet(cmd *cobra.Command, args []string) error {
	c, err := webcam.ParseControl(args[0])
	if err != nil {
		return err
	}
	return withSession(args[1:], func(s *webcam.Session) error {
		v, err := s.GetParameter(c)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", c, v)
		return nil
	})
}

func runCtrlSet(cmd *cobra.Command, args []string) error {
	c, err := webcam.ParseControl(args[0])
	if err != nil {
		return err
	}
	value, err := strconv.ParseInt(args[1], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid value %q: %w", args[1], err)
	}
	return withSession(args[2:], func(s *webcam.Session) error {
		if rng, err := s.ParameterRange(c); err == nil && !rng.Contains(int32(value)) {
			return fmt.Errorf("%s must be within [%d, %d]", c, rng.Min, rng.Max)
		}
		if err := s.SetParameter(c, int32(value)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s set to %d\n", c, value)
		return nil
	})
}

func runCtrlAuto(cmd *cobra.Command, args []string) error {
	c, err := webcam.ParseControl(args[0])
	if err != nil {
		return err
	}
	enabled, err := parseSwitch(args[1])
	if err != nil {
		return err
	}
	return withSession(args[2:], func(s *webcam.Session) error {
		if err := s.SetAuto(c, enabled); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "auto %s %s\n", c, args[1])
		return nil
	})
}

func parseSwitch(s string) (bool, error) {
	switch s {
	case "on", "true", "1", "auto":
		return true, nil
	case "off", "false", "0", "manual":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}
