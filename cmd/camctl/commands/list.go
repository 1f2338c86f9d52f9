package commands

import (
	"fmt"
	"text/tabwriter"

	webcam "github.com/phreda4/webcamlib"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List capture devices",
	Long: `List every video capture device on this machine, ordered by index.

Devices held by another process may be missing on Linux, where each node
is probed before it is listed.`,
	Example: `  # List devices in table format (default)
  camctl list

  # List devices in JSON format
  camctl list --format json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var listFormat string

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "output format (table, json or yaml)")
}

func runList(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}

	devs, err := webcam.ListDevices()
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	return printOutput(cmd.OutOrStdout(), listFormat, devs, func(tw *tabwriter.Writer) {
		if len(devs) == 0 {
			fmt.Fprintln(tw, "No capture devices found")
			return
		}
		fmt.Fprintln(tw, "INDEX\tNAME\tPATH")
		for _, d := range devs {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", d.Index, d.Name, d.Path)
		}
	})
}
