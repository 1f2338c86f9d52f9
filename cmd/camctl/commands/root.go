package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "camctl",
		Short: "camctl - inspect and capture from webcams",
		Long: `camctl lists capture devices, reports the formats they offer, captures
frames and adjusts camera controls. It runs on Linux (V4L2) and Windows
(Media Foundation).

Settings are read from flags, CAMCTL_* environment variables and
$HOME/.config/camctl/camctl.yaml, in that order of precedence.`,
		SilenceUsage: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/camctl/camctl.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-pretty", true, "human readable log output")
	rootCmd.PersistentFlags().StringP("device", "d", "", "device path, index or name (default is the first device)")
	rootCmd.PersistentFlags().IntP("width", "W", 0, "requested frame width")
	rootCmd.PersistentFlags().IntP("height", "H", 0, "requested frame height")
	rootCmd.PersistentFlags().StringP("pixel-format", "p", "", "requested pixel format (RGB24, RGB32, YUYV, YUV420P, MJPEG)")
	rootCmd.PersistentFlags().Int("buffers", 0, "number of capture buffers")
	rootCmd.PersistentFlags().Duration("timeout", 0, "capture timeout")

	// Bind flags to viper
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_pretty", rootCmd.PersistentFlags().Lookup("log-pretty"))
	viper.BindPFlag("device", rootCmd.PersistentFlags().Lookup("device"))
	viper.BindPFlag("width", rootCmd.PersistentFlags().Lookup("width"))
	viper.BindPFlag("height", rootCmd.PersistentFlags().Lookup("height"))
	viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("pixel-format"))
	viper.BindPFlag("buffers", rootCmd.PersistentFlags().Lookup("buffers"))
	viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}
