package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/wgcapture/internal/config"
	"github.com/breeze-rmm/wgcapture/internal/d3d"
	"github.com/breeze-rmm/wgcapture/internal/logging"
	"github.com/breeze-rmm/wgcapture/internal/sink"
	"github.com/breeze-rmm/wgcapture/internal/target"
	"github.com/breeze-rmm/wgcapture/pkg/capture"
)

var log = logging.L("main")

const sinkDrainTimeout = 30 * time.Second

var errTimedOut = errors.New("timed out waiting for frames")

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("target") {
		cfg.Target = flagTarget
	}
	if flags.Changed("frames") {
		cfg.Frames = flagFrames
	}
	if flags.Changed("out") {
		cfg.OutputDir = flagOut
	}
	if flags.Changed("timeout") {
		cfg.TimeoutSeconds = flagTimeout
	}

	cfg.Validate()
	return cfg, nil
}

// initLogging applies the logging config. The returned func closes the log
// file, if any.
func initLogging(cfg *config.Config) (func() error, error) {
	if cfg.LogFile == "" {
		logging.Init(cfg.LogFormat, cfg.LogLevel, nil)
		return func() error { return nil }, nil
	}
	rw, err := logging.NewRotatingWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, logging.TeeWriter(os.Stderr, rw))
	return rw.Close, nil
}

func runCapture(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	closeLog, err := initLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	tgt, err := target.Parse(cfg.Target)
	if err != nil {
		return err
	}
	log.Info("starting wgcapture", append([]any{"version", version, "target", tgt.String()}, hostAttrs()...)...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir, err := sink.NewDir(cfg.OutputDir)
	if err != nil {
		return err
	}
	out := sink.NewAsync(dir, cfg.SinkWorkers, cfg.SinkQueueSize)

	captureErr := captureFrames(ctx, cfg, tgt, out)

	drainCtx, cancel := context.WithTimeout(context.Background(), sinkDrainTimeout)
	defer cancel()
	sinkErr := out.Close(drainCtx)

	log.Info("capture finished",
		"written", out.Written(), "failed", out.Failed(), "dir", dir.Root())

	if captureErr != nil {
		return captureErr
	}
	return sinkErr
}

func captureFrames(ctx context.Context, cfg *config.Config, tgt target.Target, out *sink.Async) error {
	dev, err := d3d.Open(tgt)
	if err != nil {
		return err
	}
	defer dev.Close()

	sess, err := capture.NewSession(dev, capture.WithQueueDepth(cfg.FrameQueueDepth))
	if err != nil {
		return err
	}

	// Next blocks until a frame arrives; closing the session is how the
	// loop is interrupted.
	var timedOut atomic.Bool
	timer := time.AfterFunc(time.Duration(cfg.TimeoutSeconds)*time.Second, func() {
		timedOut.Store(true)
		_ = sess.Close()
	})
	defer timer.Stop()
	stopWatch := context.AfterFunc(ctx, func() { _ = sess.Close() })
	defer stopWatch()

	start := time.Now()
	var loopErr error
	for seq := uint64(1); seq <= uint64(cfg.Frames); seq++ {
		frame, err := sess.Next()
		if errors.Is(err, io.EOF) {
			switch {
			case timedOut.Load():
				loopErr = fmt.Errorf("%w after %d of %d frames", errTimedOut, seq-1, cfg.Frames)
			case ctx.Err() != nil:
				loopErr = ctx.Err()
			}
			break
		}
		if err != nil {
			loopErr = err
			break
		}
		if err := out.Write(ctx, seq, frame); err != nil {
			loopErr = err
			break
		}
		log.Debug("frame captured", logging.KeySequence, seq, "width", frame.Width, "height", frame.Height)
	}

	stats := sess.Stats()
	closeErr := sess.Close()
	log.Info("capture session done",
		slog.Uint64("received", stats.Received),
		slog.Uint64("dropped", stats.Dropped),
		slog.Uint64("callbackErrors", stats.CallbackErrors),
		slog.Int64(logging.KeyDurationMs, time.Since(start).Milliseconds()))

	if loopErr != nil {
		return loopErr
	}
	return closeErr
}
