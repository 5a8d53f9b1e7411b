package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"ubxnav/internal/config"
	"ubxnav/internal/fixled"
	"ubxnav/internal/gps"
	"ubxnav/internal/logging"
	"ubxnav/internal/replay"
	"ubxnav/internal/web"
)

func main() {
	var configPath string
	var summaryPath string
	flag.StringVar(&configPath, "config", "./ubxnav.yaml", "Path to YAML config")
	flag.StringVar(&summaryPath, "summary", "", "Print a summary of a capture file and exit")
	flag.Parse()

	if summaryPath != "" {
		if err := printCaptureSummary(os.Stdout, summaryPath); err != nil {
			log.Fatalf("summary failed: %v", err)
		}
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	var logs *web.LogBuffer
	if cfg.Web.Enable {
		logs = web.NewLogBuffer(cfg.Web.LogLines)
	}
	logger := logging.New(logging.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
		Tee:        teeWriter(logs),
	})
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger, logs); err != nil {
		logger.Fatal("ubxnav stopped", zap.Error(err))
	}
}

// run wires the components from cfg and blocks until ctx is cancelled or a
// replay finishes. logs may be nil.
func run(ctx context.Context, cfg config.Config, logger *zap.Logger, logs *web.LogBuffer) error {
	pub, err := buildPublisher(cfg, logger)
	if err != nil {
		return err
	}
	var fixes *web.FixBroadcaster
	if cfg.Web.Enable {
		fixes = web.NewFixBroadcaster()
		pub = append(pub, fixes)
	}
	defer pub.Close()

	led := fixled.New(fixled.Config{Enable: cfg.FixLED.Enable, Pin: cfg.FixLED.Pin}, logger)
	defer led.Close()

	gcfg := gps.Config{
		Device:       cfg.GPS.Device,
		Baud:         cfg.GPS.Baud,
		StrictLength: cfg.GPS.StrictLength,
		StaleAfter:   cfg.GPS.StaleAfter,
	}
	if cfg.Capture.Record.Enable {
		gcfg.RecordPath = cfg.Capture.Record.Path
	}
	svc := gps.New(gcfg, logger.Named("gps"), pub, led)
	defer svc.Close()

	if cfg.Web.Enable {
		handler := web.Handler(svc, logs, fixes, logger.Named("web"))
		go func() {
			if err := web.Serve(ctx, cfg.Web.Listen, handler); err != nil && ctx.Err() == nil {
				logger.Error("web server stopped", zap.Error(err))
			}
		}()
		logger.Info("web status enabled", zap.String("listen", cfg.Web.Listen))
	}

	logger.Info("ubxnav starting", zap.Int("publishers", len(pub)))

	if cfg.Capture.Replay.Enable {
		records, err := replay.ReadFile(cfg.Capture.Replay.Path)
		if err != nil {
			return fmt.Errorf("capture load %s: %w", cfg.Capture.Replay.Path, err)
		}
		rc := cfg.Capture.Replay
		if err := svc.Replay(ctx, records, rc.Speed, rc.Loop, nil); err != nil {
			return fmt.Errorf("replay: %w", err)
		}
		logSnapshot(logger, svc.Snapshot())
		return nil
	}

	if err := svc.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	logSnapshot(logger, svc.Snapshot())
	logger.Info("ubxnav stopping")
	return nil
}

func logSnapshot(logger *zap.Logger, snap gps.Snapshot) {
	logger.Info("gps totals",
		zap.Uint32("messages", snap.Messages),
		zap.Uint32("fixes", snap.Fixes),
		zap.Bool("valid", snap.Valid),
		zap.String("last_error", snap.LastError))
}

// teeWriter avoids handing the logger a typed nil io.Writer.
func teeWriter(logs *web.LogBuffer) io.Writer {
	if logs == nil {
		return nil
	}
	return logs
}
