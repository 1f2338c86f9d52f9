package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	webcam "github.com/phreda4/webcamlib"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every key read from the environment,
// e.g. CAMCTL_WIDTH.
const EnvPrefix = "CAMCTL"

// Config holds the settings shared by every camctl command.
type Config struct {
	Device    string        `yaml:"device" mapstructure:"device"`
	Width     int           `yaml:"width" mapstructure:"width"`
	Height    int           `yaml:"height" mapstructure:"height"`
	Format    string        `yaml:"format" mapstructure:"format"`
	Buffers   int           `yaml:"buffers" mapstructure:"buffers"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Listen    string        `yaml:"listen" mapstructure:"listen"`
	LogLevel  string        `yaml:"log_level" mapstructure:"log_level"`
	LogPretty bool          `yaml:"log_pretty" mapstructure:"log_pretty"`
}

// Default returns the configuration used when nothing else is set. It
// matches example/list_devices.go: first device, 640x480 RGB24.
func Default() *Config {
	return &Config{
		Device:    "0",
		Width:     640,
		Height:    480,
		Format:    webcam.FormatRGB24.String(),
		Buffers:   webcam.DefaultBufferCount,
		Timeout:   webcam.DefaultCaptureTimeout,
		Listen:    ":8080",
		LogLevel:  "info",
		LogPretty: true,
	}
}

// DefaultPath is $HOME/.config/camctl/camctl.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "camctl", "camctl.yaml"), nil
}

// SetDefaults registers every key with v so that environment variables
// are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("device", d.Device)
	v.SetDefault("width", d.Width)
	v.SetDefault("height", d.Height)
	v.SetDefault("format", d.Format)
	v.SetDefault("buffers", d.Buffers)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("listen", d.Listen)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_pretty", d.LogPretty)
}

// Load resolves the configuration with precedence flags > environment >
// file > defaults. Flags must already be bound to v. An empty file means
// the default path, which is allowed to be missing; an explicit file is not.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else if path, err := DefaultPath(); err == nil {
		v.SetConfigFile(path)
	}
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values a session would reject.
func (c *Config) Validate() error {
	var errs []error
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("resolution %dx%d must be positive", c.Width, c.Height))
	}
	if _, err := webcam.ParsePixelFormat(c.Format); err != nil {
		errs = append(errs, err)
	}
	if c.Buffers < 1 {
		errs = append(errs, fmt.Errorf("buffers must be at least 1, got %d", c.Buffers))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %v", c.Timeout))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// PixelFormat returns the parsed Format.
func (c *Config) PixelFormat() webcam.PixelFormat {
	f, _ := webcam.ParsePixelFormat(c.Format)
	return f
}

// SessionOptions converts the capture settings to library options.
func (c *Config) SessionOptions() []webcam.Option {
	return []webcam.Option{
		webcam.WithBufferCount(c.Buffers),
		webcam.WithCaptureTimeout(c.Timeout),
	}
}

// Save writes c as YAML, creating the directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
