package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

type Config struct {
	// Target selects the capture item: "primary", "monitor:<index>" or
	// "window:<hwnd>".
	Target          string `mapstructure:"target"`
	Frames          int    `mapstructure:"frames"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	FrameQueueDepth int    `mapstructure:"frame_queue_depth"`
	OutputDir       string `mapstructure:"output_dir"`
	SinkWorkers     int    `mapstructure:"sink_workers"`
	SinkQueueSize   int    `mapstructure:"sink_queue_size"`

	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
}

func Default() *Config {
	return &Config{
		Target:          "primary",
		Frames:          1,
		TimeoutSeconds:  10,
		FrameQueueDepth: 4,
		OutputDir:       "frames",
		SinkWorkers:     2,
		SinkQueueSize:   8,
		LogLevel:        "info",
		LogFormat:       "text",
		LogMaxSizeMB:    20,
		LogMaxBackups:   3,
	}
}

// Load reads cfgFile, or wgcapture.yaml from the config directory or the
// working directory when cfgFile is empty. A missing default file is not an
// error. WGCAPTURE_* environment variables override file values.
func Load(cfgFile string) (*Config, error) {
	return load(viper.New(), cfgFile)
}

func load(v *viper.Viper, cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("wgcapture")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("WGCAPTURE")
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// bindEnv registers every key so AutomaticEnv overrides apply to Unmarshal
// even when the key is absent from the file.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"target", "frames", "timeout_seconds", "frame_queue_depth",
		"output_dir", "sink_workers", "sink_queue_size",
		"log_level", "log_format", "log_file", "log_max_size_mb", "log_max_backups",
	} {
		_ = v.BindEnv(key)
	}
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "wgcapture")
	case "darwin":
		return "/Library/Application Support/wgcapture"
	default:
		return "/etc/wgcapture"
	}
}
