package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/phreda4/webcamlib/internal/config"
	"github.com/phreda4/webcamlib/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the camctl configuration file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after flags, environment and the config file
have been applied.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the current settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var (
	configFormat string
	configForce  bool
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd)

	configShowCmd.Flags().StringVarP(&configFormat, "format", "f", "yaml", "output format (table, json or yaml)")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return printOutput(cmd.OutOrStdout(), configFormat, cfg, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "device\t%s\n", cfg.Device)
		fmt.Fprintf(tw, "width\t%d\n", cfg.Width)
		fmt.Fprintf(tw, "height\t%d\n", cfg.Height)
		fmt.Fprintf(tw, "format\t%s\n", cfg.Format)
		fmt.Fprintf(tw, "buffers\t%d\n", cfg.Buffers)
		fmt.Fprintf(tw, "timeout\t%s\n", cfg.Timeout)
		fmt.Fprintf(tw, "listen\t%s\n", cfg.Listen)
		fmt.Fprintf(tw, "log_level\t%s\n", cfg.LogLevel)
		fmt.Fprintf(tw, "log_pretty\t%v\n", cfg.LogPretty)
	})
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := GetConfigFile()
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return err
		}
	}
	_, statErr := os.Stat(path)
	if statErr == nil && !configForce {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}

	// A file that does not exist yet cannot be a source.
	source := GetConfigFile()
	if statErr != nil {
		source = ""
	}
	cfg, err := config.Load(viper.GetViper(), source)
	if err != nil {
		return err
	}
	logger.Init(cfg.LogLevel, cfg.LogPretty)

	if err := cfg.Save(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
