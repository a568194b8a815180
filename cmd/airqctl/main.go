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
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/skobkin/airqctl/internal/app"
	"github.com/skobkin/airqctl/internal/device"
	"github.com/skobkin/airqctl/internal/notifications"
	"github.com/skobkin/airqctl/internal/persistence"
	"github.com/skobkin/airqctl/internal/transport"
)

const cliTimeout = 30 * time.Second

type cliOptions struct {
	ConfigDir   string
	DeviceURL   string
	Watch       time.Duration
	Networks    bool
	Preferences bool
	Calibrate   bool
	Reset       bool
	OTAReset    bool
	Upload      string
	History     int
	Ports       bool
}

type command string

const (
	commandWatch       command = "watch"
	commandNetworks    command = "networks"
	commandPreferences command = "preferences"
	commandCalibrate   command = "calibrate"
	commandReset       command = "reset"
	commandOTAReset    command = "ota-reset"
	commandUpload      command = "upload"
	commandHistory     command = "history"
	commandPorts       command = "ports"
)

var errNoCommand = errors.New("no command given")

func parseCLIOptions(args []string, output io.Writer) (cliOptions, command, error) {
	var opts cliOptions
	fs := flag.NewFlagSet(app.Name, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.ConfigDir, "config-dir", "", "use this directory for config, history and logs")
	fs.StringVar(&opts.DeviceURL, "url", "", "device base URL, overrides the config")
	fs.DurationVar(&opts.Watch, "watch", 0, "print telemetry for this long (0 disables)")
	fs.BoolVar(&opts.Networks, "networks", false, "list Wi-Fi networks seen by the device")
	fs.BoolVar(&opts.Preferences, "preferences", false, "print the device preferences")
	fs.BoolVar(&opts.Calibrate, "calibrate", false, "start CO2 sensor calibration")
	fs.BoolVar(&opts.Reset, "reset", false, "restart the device")
	fs.BoolVar(&opts.OTAReset, "ota-reset", false, "clear the pending firmware update state")
	fs.StringVar(&opts.Upload, "upload", "", "upload this firmware image")
	fs.IntVar(&opts.History, "history", 0, "print the last N stored sensor samples")
	fs.BoolVar(&opts.Ports, "ports", false, "list serial ports")
	if err := fs.Parse(args); err != nil {
		return cliOptions{}, "", err
	}
	if fs.NArg() > 0 {
		return cliOptions{}, "", fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if opts.Watch < 0 || opts.History < 0 {
		return cliOptions{}, "", errors.New("durations and counts must not be negative")
	}

	selected := make([]command, 0, 1)
	for _, candidate := range []struct {
		set bool
		cmd command
	}{
		{opts.Watch > 0, commandWatch},
		{opts.Networks, commandNetworks},
		{opts.Preferences, commandPreferences},
		{opts.Calibrate, commandCalibrate},
		{opts.Reset, commandReset},
		{opts.OTAReset, commandOTAReset},
		{strings.TrimSpace(opts.Upload) != "", commandUpload},
		{opts.History > 0, commandHistory},
		{opts.Ports, commandPorts},
	} {
		if candidate.set {
			selected = append(selected, candidate.cmd)
		}
	}
	switch len(selected) {
	case 0:
		return cliOptions{}, "", errNoCommand
	case 1:
		return opts, selected[0], nil
	default:
		return cliOptions{}, "", fmt.Errorf("choose one command, got %v", selected)
	}
}

// commandEnv is the slice of the runtime the commands use.
type commandEnv struct {
	Device interface {
		Networks(ctx context.Context) ([]device.NetworkRecord, error)
		Preferences(ctx context.Context) (device.Preferences, error)
	}
	Actions interface {
		Run(ctx context.Context, action app.DeviceAction) (device.ActionResult, error)
	}
	Upload interface {
		Attach(render func(app.UploadState))
		Submit(ctx context.Context, name string, body io.Reader, size int64) (app.UploadState, error)
	}
	StartTelemetry func(sink app.TelemetrySink) bool
	RecentSamples  func(ctx context.Context, region app.TelemetryRegion, limit int) ([]persistence.Sample, error)
	ListPorts      func() ([]string, error)
}

func main() {
	opts, cmd, err := parseCLIOptions(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "airqctl:", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cmd == commandPorts {
		if err := runCommand(ctx, cmd, opts, commandEnv{ListPorts: transport.ListPorts}, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, "airqctl:", err)
			os.Exit(1)
		}

		return
	}

	rt, err := app.Initialize(ctx, app.Options{
		ConfigDir:  opts.ConfigDir,
		DeviceURL:  opts.DeviceURL,
		LogConsole: os.Stderr,
		Notifier:   beeepNotifier{},
	})
	if err != nil {
		slog.Error("initialize app runtime", "error", err)
		os.Exit(1)
	}

	env := commandEnv{
		Device:         rt.Device,
		Actions:        rt.Actions,
		Upload:         rt.Upload,
		StartTelemetry: rt.StartTelemetry,
		RecentSamples:  rt.RecentSamples,
		ListPorts:      transport.ListPorts,
	}
	err = runCommand(ctx, cmd, opts, env, os.Stdout)
	_ = rt.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "airqctl:", err)
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, cmd command, opts cliOptions, env commandEnv, out io.Writer) error {
	switch cmd {
	case commandWatch:
		return watchTelemetry(ctx, opts.Watch, env, out)
	case commandPorts:
		ports, err := env.ListPorts()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Fprintln(out, "no serial ports found")
		}
		for _, port := range ports {
			fmt.Fprintln(out, port)
		}

		return nil
	case commandHistory:
		return printHistory(ctx, opts.History, env, out)
	case commandUpload:
		return uploadFirmware(ctx, opts.Upload, env, out)
	}

	ctx, cancel := context.WithTimeout(ctx, cliTimeout)
	defer cancel()

	switch cmd {
	case commandNetworks:
		records, err := env.Device.Networks(ctx)
		if err != nil {
			return err
		}
		for _, choice := range app.DedupNetworks(records) {
			fmt.Fprintln(out, choice.Label)
		}

		return nil
	case commandPreferences:
		prefs, err := env.Device.Preferences(ctx)
		if err != nil {
			return err
		}
		printPreferences(out, prefs)

		return nil
	case commandCalibrate, commandReset, commandOTAReset:
		action := map[command]app.DeviceAction{
			commandCalibrate: app.ActionCalibrate,
			commandReset:     app.ActionFactoryReset,
			commandOTAReset:  app.ActionFirmwareUpdateReset,
		}[cmd]
		result, err := env.Actions.Run(ctx, action)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %s\n", cmd, strings.TrimSpace(result.Body))

		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func watchTelemetry(ctx context.Context, duration time.Duration, env commandEnv, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	renders := make(chan app.TelemetryUpdate, 8)
	sink := app.TelemetrySinkFunc(func(update app.TelemetryUpdate) {
		select {
		case renders <- update:
		default:
		}
	})
	if !env.StartTelemetry(sink) {
		return errors.New("telemetry is already running")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-renders:
			fmt.Fprintf(out, "[%s] %s\n%s\n\n", update.At.Local().Format(time.TimeOnly), update.Region, update.Text)
		}
	}
}

func printHistory(ctx context.Context, limit int, env commandEnv, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, cliTimeout)
	defer cancel()

	samples, err := env.RecentSamples(ctx, app.RegionSensors, limit)
	if err != nil {
		return err
	}
	for _, sample := range samples {
		fmt.Fprintf(out, "%s  %s\n", sample.RecordedAt.Local().Format(time.DateTime), strings.Join(strings.Fields(sample.Body), " "))
	}

	return nil
}

func uploadFirmware(ctx context.Context, path string, env commandEnv, out io.Writer) error {
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- the path is given by the user on the command line.
	file, err := os.Open(cleanPath)
	if err != nil {
		return fmt.Errorf("open firmware image: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()
	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat firmware image: %w", err)
	}

	lastPercent := -1
	env.Upload.Attach(func(state app.UploadState) {
		if state.Phase != app.UploadPhaseUploading || state.Percent == lastPercent {
			return
		}
		lastPercent = state.Percent
		fmt.Fprintf(out, "\ruploading %s %s", state.FileName, state.PercentLabel())
	})

	final, err := env.Upload.Submit(ctx, filepath.Base(cleanPath), file, info.Size())
	if lastPercent >= 0 {
		fmt.Fprintln(out)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out, final.Notice)
	if final.Phase == app.UploadPhaseFailed {
		if final.Err != nil {
			return final.Err
		}

		return errors.New(strings.ToLower(final.Notice))
	}

	return nil
}

func printPreferences(out io.Writer, prefs device.Preferences) {
	rows := []struct {
		name  string
		value any
	}{
		{"Device name", prefs.DeviceName},
		{"Wi-Fi SSID", prefs.WifiSSID},
		{"Device version", prefs.DeviceVersion},
		{"MQTT host", prefs.MQTTHost},
		{"MQTT username", prefs.MQTTUsername},
		{"Log host", prefs.LogHost},
		{"Log username", prefs.LogUsername},
		{"LED intensity", prefs.LEDIntensity},
		{"Log values", prefs.LogValues},
		{"Provisioning mode", prefs.ProvisioningMode},
	}
	for _, row := range rows {
		fmt.Fprintf(out, "%-18s %v\n", row.name+":", row.value)
	}
}

// beeepNotifier raises native desktop alerts from a terminal session.
type beeepNotifier struct{}

func (beeepNotifier) Send(payload notifications.Payload) {
	notify := beeep.Notify
	if payload.Alert {
		notify = beeep.Alert
	}
	if err := notify(payload.Title, payload.Content, ""); err != nil {
		slog.Debug("desktop notification failed", "kind", payload.Kind, "error", err)
	}
}
