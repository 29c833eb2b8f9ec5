package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gordonklaus/portaudio"
	"golang.org/x/sync/errgroup"

	"github.com/metalblueberry/chordsnake/pkg/capture"
	"github.com/metalblueberry/chordsnake/pkg/config"
	"github.com/metalblueberry/chordsnake/pkg/dispatch"
	"github.com/metalblueberry/chordsnake/pkg/mic"
	"github.com/metalblueberry/chordsnake/pkg/remote"
)

func main() {
	configPath := flag.String("config", "chordsnake.yaml", "path to the YAML config file")
	listen := flag.String("listen", "", "serve moves over WebSocket on this address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Remote.Listen = *listen
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("chordlog failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	mapper, err := cfg.Mapper()
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	surface := dispatch.Fanout{dispatch.LogSurface{Logger: logger}}

	if cfg.Remote.Listen != "" {
		hub := remote.NewHub(logger)
		surface = append(surface, hub)

		mux := http.NewServeMux()
		mux.Handle("/ws", hub)
		srv := &http.Server{Addr: cfg.Remote.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			logger.Info("serving moves", "addr", cfg.Remote.Listen, "path", "/ws")
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	surface.SetMode(dispatch.Running)

	disp := dispatch.New(logger)

	previous := ""
	capCfg := cfg.Capture()
	capCfg.Mapper = mapper
	capCfg.Logger = logger
	capCfg.Observer = func(d capture.Detection) {
		name := d.Chord.Entry().Name()
		if name != previous {
			logger.Info("chord", "chord", name, "score", d.Chord.Score, "level", d.Spectrum.Level, "direction", d.Direction.String())
			previous = name
		}
	}

	loop := capture.NewLoop(mic.New(cfg.Audio.Device, cfg.Audio.FramesPerBuffer, logger), disp, capCfg)
	g.Go(func() error { return ignoreCanceled(loop.Run(ctx)) })
	g.Go(func() error { return ignoreCanceled(disp.Run(ctx, surface)) })

	logger.Info("listening for chords", "device", cfg.Audio.Device, "window", cfg.Audio.Window)
	err = g.Wait()

	ls, ds := loop.Stats(), disp.Stats()
	logger.Info("stopped",
		"cycles", ls.Cycles,
		"windows", ls.Windows,
		"device_failures", ls.DeviceFailures,
		"capture_errors", ls.CaptureErrors,
		"short_windows", ls.ShortWindows,
		"delivered", ds.Delivered,
		"dropped", ds.Dropped,
	)
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
