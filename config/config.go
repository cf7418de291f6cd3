// Package config loads curie settings from defaults, an optional YAML file
// and CURIE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"curie/encoder"
)

type Config struct {
	Audio   AudioConfig   `mapstructure:"audio" yaml:"audio"`
	Monitor MonitorConfig `mapstructure:"monitor" yaml:"monitor"`
	Output  OutputConfig  `mapstructure:"output" yaml:"output"`
	UI      UIConfig      `mapstructure:"ui" yaml:"ui"`
}

type AudioConfig struct {
	Device     string `mapstructure:"device" yaml:"device"` // empty = system default
	SampleRate int    `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels   int    `mapstructure:"channels" yaml:"channels"`
	Format     string `mapstructure:"format" yaml:"format"` // "wav", "flac"
}

type MonitorConfig struct {
	SegmentInterval     time.Duration `mapstructure:"segment_interval" yaml:"segment_interval"`
	ClockInterval       time.Duration `mapstructure:"clock_interval" yaml:"clock_interval"`
	StopCooldown        time.Duration `mapstructure:"stop_cooldown" yaml:"stop_cooldown"`
	PermissionTimeout   time.Duration `mapstructure:"permission_timeout" yaml:"permission_timeout"`
	NotificationTitle   string        `mapstructure:"notification_title" yaml:"notification_title"`
	NotificationMessage string        `mapstructure:"notification_message" yaml:"notification_message"`
}

type OutputConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
	// Retain is how many segment files to keep; 0 keeps all of them.
	Retain int `mapstructure:"retain" yaml:"retain"`
}

type UIConfig struct {
	Beep bool `mapstructure:"beep" yaml:"beep"`
	Tray bool `mapstructure:"tray" yaml:"tray"`
}

const EnvPrefix = "CURIE"

func Defaults() Config {
	return Config{
		Audio: AudioConfig{
			SampleRate: encoder.SampleRate,
			Channels:   encoder.Channels,
			Format:     encoder.FormatWAV,
		},
		Monitor: MonitorConfig{
			SegmentInterval:     30 * time.Second,
			ClockInterval:       10 * time.Second,
			StopCooldown:        2 * time.Second,
			PermissionTimeout:   3 * time.Second,
			NotificationTitle:   "Curie",
			NotificationMessage: "Curie Symptom monitoring undergoing",
		},
		Output: OutputConfig{
			Directory: filepath.Join("~", "Audio", "curie"),
		},
		UI: UIConfig{
			Beep: true,
			Tray: true,
		},
	}
}

// DefaultPath is $XDG_CONFIG_HOME/curie/config.yaml or the platform
// equivalent.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "curie", "config.yaml")
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("audio.device", d.Audio.Device)
	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.channels", d.Audio.Channels)
	v.SetDefault("audio.format", d.Audio.Format)
	v.SetDefault("monitor.segment_interval", d.Monitor.SegmentInterval)
	v.SetDefault("monitor.clock_interval", d.Monitor.ClockInterval)
	v.SetDefault("monitor.stop_cooldown", d.Monitor.StopCooldown)
	v.SetDefault("monitor.permission_timeout", d.Monitor.PermissionTimeout)
	v.SetDefault("monitor.notification_title", d.Monitor.NotificationTitle)
	v.SetDefault("monitor.notification_message", d.Monitor.NotificationMessage)
	v.SetDefault("output.directory", d.Output.Directory)
	v.SetDefault("output.retain", d.Output.Retain)
	v.SetDefault("ui.beep", d.UI.Beep)
	v.SetDefault("ui.tray", d.UI.Tray)
}

// Load reads configFile, or DefaultPath when configFile is empty. An
// explicit file must exist; the default one is optional.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	switch {
	case configFile != "":
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	default:
		if p := DefaultPath(); p != "" {
			if _, err := os.Stat(p); err == nil {
				v.SetConfigFile(p)
				if err := v.ReadInConfig(); err != nil {
					return nil, fmt.Errorf("error reading config file %s: %w", p, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	dir, err := expandHome(cfg.Output.Directory)
	if err != nil {
		return nil, err
	}
	cfg.Output.Directory = dir
	cfg.Audio.Format = strings.ToLower(cfg.Audio.Format)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, `~\`) {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expanding %s: %w", p, err)
	}
	return filepath.Join(home, p[1:]), nil
}

func (c *Config) Validate() error {
	var errs []error
	if !encoder.ValidFormat(c.Audio.Format) {
		errs = append(errs, fmt.Errorf("audio.format %q: must be wav or flac", c.Audio.Format))
	}
	if c.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate))
	}
	if c.Audio.Channels != 1 && c.Audio.Channels != 2 {
		errs = append(errs, fmt.Errorf("audio.channels must be 1 or 2, got %d", c.Audio.Channels))
	}
	if c.Audio.Format == encoder.FormatFLAC && c.Audio.Channels != 1 {
		errs = append(errs, errors.New("flac segments are mono only"))
	}
	if c.Monitor.SegmentInterval < time.Second {
		errs = append(errs, fmt.Errorf("monitor.segment_interval must be at least 1s, got %s", c.Monitor.SegmentInterval))
	}
	if c.Monitor.ClockInterval <= 0 {
		errs = append(errs, fmt.Errorf("monitor.clock_interval must be positive, got %s", c.Monitor.ClockInterval))
	}
	if c.Monitor.StopCooldown < 0 {
		errs = append(errs, fmt.Errorf("monitor.stop_cooldown must not be negative, got %s", c.Monitor.StopCooldown))
	}
	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output.directory must be set"))
	}
	if c.Output.Retain < 0 {
		errs = append(errs, fmt.Errorf("output.retain must not be negative, got %d", c.Output.Retain))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
