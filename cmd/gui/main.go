package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/skobkin/airqctl/internal/app"
	"github.com/skobkin/airqctl/internal/platform"
	"github.com/skobkin/airqctl/internal/ui"
)

type launchOptions struct {
	StartHidden bool
	ConfigDir   string
	DeviceURL   string
}

func parseLaunchOptions(args []string) (launchOptions, error) {
	var opts launchOptions
	fs := flag.NewFlagSet(app.Name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.BoolVar(&opts.StartHidden, "start-hidden", false, "start minimized to the system tray")
	fs.StringVar(&opts.ConfigDir, "config-dir", "", "use this directory for config, history and logs")
	fs.StringVar(&opts.DeviceURL, "device-url", "", "override the configured device URL")
	if err := fs.Parse(args); err != nil {
		return launchOptions{}, err
	}
	if fs.NArg() > 0 {
		return launchOptions{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	return opts, nil
}

func main() {
	launch, err := parseLaunchOptions(os.Args[1:])
	if err != nil {
		slog.Error("parse launch options", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lockDir := launch.ConfigDir
	if lockDir == "" {
		paths, err := app.ResolvePaths()
		if err == nil {
			lockDir = paths.RootDir
		}
	}
	lock, err := platform.AcquireInstanceLock(app.Name, lockDir)
	switch {
	case errors.Is(err, platform.ErrInstanceAlreadyRunning):
		slog.Error("another instance is already running for this config directory", "config_dir", lockDir)
		os.Exit(1)
	case errors.Is(err, platform.ErrInstanceLockUnsupported):
		slog.Warn("single instance lock is not supported on this platform")
	case err != nil:
		slog.Error("acquire instance lock", "error", err)
		os.Exit(1)
	}
	if lock != nil {
		defer func() {
			_ = lock.Release()
		}()
	}

	notifier := ui.NewFyneNotificationSender(nil)
	rt, err := app.Initialize(ctx, app.Options{
		ConfigDir: launch.ConfigDir,
		DeviceURL: launch.DeviceURL,
		Notifier:  notifier,
		Autostart: platform.NewAutostartManager(),
	})
	if err != nil {
		slog.Error("initialize app runtime", "error", err)
		os.Exit(1)
	}

	var closeOnce sync.Once
	closeRuntime := func() {
		closeOnce.Do(func() {
			_ = rt.Close()
		})
	}
	defer closeRuntime()

	dep := ui.BuildRuntimeDependencies(rt, ui.LaunchOptions{StartHidden: launch.StartHidden}, func() {
		stop()
		closeRuntime()
	})
	dep.Platform.Notifier = notifier

	if err := ui.Run(dep); err != nil {
		slog.Error("run ui", "error", err)
		os.Exit(1)
	}
}
