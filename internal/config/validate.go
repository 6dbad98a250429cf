package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/breeze-rmm/wgcapture/internal/target"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// Validate checks the config for invalid values and returns all errors found.
// Out-of-range numbers are clamped to safe values; an unparsable target is
// reset to "primary". Errors are logged as warnings and do not prevent startup.
func (c *Config) Validate() []error {
	var errs []error

	if _, err := target.Parse(c.Target); err != nil {
		errs = append(errs, fmt.Errorf("target: %w, using primary", err))
		c.Target = "primary"
	}

	errs = clamp(errs, "frames", &c.Frames, 1, 100000)
	errs = clamp(errs, "timeout_seconds", &c.TimeoutSeconds, 1, 3600)
	// 0 is a valid depth: an unbounded frame channel.
	errs = clamp(errs, "frame_queue_depth", &c.FrameQueueDepth, 0, 1024)
	errs = clamp(errs, "sink_workers", &c.SinkWorkers, 1, 64)
	errs = clamp(errs, "sink_queue_size", &c.SinkQueueSize, 1, 4096)
	errs = clamp(errs, "log_max_size_mb", &c.LogMaxSizeMB, 1, 1024)
	errs = clamp(errs, "log_max_backups", &c.LogMaxBackups, 1, 100)

	if strings.TrimSpace(c.OutputDir) == "" {
		errs = append(errs, fmt.Errorf("output_dir is empty, using %q", Default().OutputDir))
		c.OutputDir = Default().OutputDir
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	for _, err := range errs {
		slog.Warn("config validation", "error", err)
	}

	return errs
}

func clamp(errs []error, key string, v *int, lo, hi int) []error {
	switch {
	case *v < lo:
		errs = append(errs, fmt.Errorf("%s %d is below minimum %d, clamping", key, *v, lo))
		*v = lo
	case *v > hi:
		errs = append(errs, fmt.Errorf("%s %d exceeds maximum %d, clamping", key, *v, hi))
		*v = hi
	}
	return errs
}
