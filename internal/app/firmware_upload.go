package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync"

	"github.com/skobkin/airqctl/internal/bus"
	"github.com/skobkin/airqctl/internal/connectors"
	"github.com/skobkin/airqctl/internal/notifications"
)

type UploadPhase string

const (
	UploadPhaseIdle      UploadPhase = "idle"
	UploadPhaseUploading UploadPhase = "uploading"
	UploadPhaseSucceeded UploadPhase = "succeeded"
	UploadPhaseFailed    UploadPhase = "failed"
)

const (
	UploadNoticeSucceeded = "Upload done, device will reboot shortly."
	UploadNoticeFailed    = "Upload failed"
	uploadNotifyTitle     = "Firmware upload"
)

var ErrUploadInProgress = errors.New("firmware upload already in progress")

// UploadState is a snapshot of the current (or last) upload job.
type UploadState struct {
	Phase            UploadPhase
	FileName         string
	BytesSent        int64
	BytesTotal       int64
	Percent          int
	IndicatorVisible bool
	Notice           string
	StatusCode       int
	Err              error
}

// PercentLabel is the text shown on the progress indicator. Its width uses the same value.
func (s UploadState) PercentLabel() string {
	return fmt.Sprintf("%d%%", s.Percent)
}

func (s UploadState) Terminal() bool {
	return s.Phase == UploadPhaseSucceeded || s.Phase == UploadPhaseFailed
}

type FirmwareUploader interface {
	UploadFirmware(ctx context.Context, body io.Reader, size int64) (int, error)
}

type FirmwareUploadConfig struct {
	Uploader FirmwareUploader
	Notifier notifications.Sender
	Bus      bus.MessageBus
	Logger   *slog.Logger
}

// FirmwareUploadController runs one firmware upload at a time.
type FirmwareUploadController struct {
	uploader FirmwareUploader
	notifier notifications.Sender
	bus      bus.MessageBus
	logger   *slog.Logger

	mu     sync.Mutex
	state  UploadState
	render func(UploadState)
}

func NewFirmwareUploadController(cfg FirmwareUploadConfig) *FirmwareUploadController {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "firmware_upload")
	}

	return &FirmwareUploadController{
		uploader: cfg.Uploader,
		notifier: cfg.Notifier,
		bus:      cfg.Bus,
		logger:   logger,
		state:    UploadState{Phase: UploadPhaseIdle},
	}
}

func (c *FirmwareUploadController) Attach(render func(UploadState)) {
	c.mu.Lock()
	c.render = render
	c.mu.Unlock()
}

func (c *FirmwareUploadController) State() UploadState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Submit streams body to the device and blocks until the job is terminal.
// size <= 0 means the total is unknown and the percentage stays where it was.
func (c *FirmwareUploadController) Submit(ctx context.Context, name string, body io.Reader, size int64) (UploadState, error) {
	c.mu.Lock()
	if c.state.Phase == UploadPhaseUploading {
		c.mu.Unlock()

		return UploadState{}, ErrUploadInProgress
	}
	c.state = UploadState{
		Phase:            UploadPhaseUploading,
		FileName:         name,
		BytesTotal:       size,
		IndicatorVisible: true,
	}
	c.mu.Unlock()
	c.emit(true)

	c.logger.Info("firmware upload started", "file", name, "size", size)
	reader := &progressReader{r: body, total: size, onProgress: c.progress}
	status, err := c.uploader.UploadFirmware(ctx, reader, size)

	final := c.finish(status, err)
	c.logger.Info("firmware upload finished", "file", name, "phase", final.Phase, "status_code", final.StatusCode, "bytes_sent", final.BytesSent)

	if c.notifier != nil {
		c.notifier.Send(notifications.Payload{
			Kind:    notifications.KindFirmwareUpload,
			Title:   uploadNotifyTitle,
			Content: final.Notice,
			Alert:   final.Phase == UploadPhaseFailed,
		})
	}

	return final, nil
}

func (c *FirmwareUploadController) progress(loaded, total int64) {
	c.mu.Lock()
	prev := c.state.Percent
	c.state.BytesSent = loaded
	if total > 0 {
		c.state.Percent = uploadPercent(loaded, total)
	}
	changed := c.state.Percent != prev
	c.mu.Unlock()

	c.emit(changed)
}

func (c *FirmwareUploadController) finish(status int, err error) UploadState {
	c.mu.Lock()
	c.state.StatusCode = status
	c.state.IndicatorVisible = false
	switch {
	case err == nil && status >= http.StatusOK && status < http.StatusBadRequest:
		c.state.Phase = UploadPhaseSucceeded
		c.state.Notice = UploadNoticeSucceeded
	default:
		c.state.Phase = UploadPhaseFailed
		c.state.Notice = UploadNoticeFailed
		c.state.Err = err
		if err == nil {
			c.state.Err = fmt.Errorf("device answered status %d", status)
		}
	}
	final := c.state
	c.mu.Unlock()

	if final.Phase == UploadPhaseFailed {
		c.logger.Warn("firmware upload failed", "status_code", status, "error", final.Err)
	}
	c.emit(true)

	return final
}

func (c *FirmwareUploadController) emit(publish bool) {
	c.mu.Lock()
	render := c.render
	snapshot := c.state
	c.mu.Unlock()

	if render != nil {
		render(snapshot)
	}
	if publish && c.bus != nil {
		c.bus.TryPublish(connectors.TopicFirmwareUpload, snapshot)
	}
}

func uploadPercent(loaded, total int64) int {
	if total <= 0 {
		return 0
	}

	return int(math.Round(float64(loaded) / float64(total) * 100))
}

// progressReader reports the running byte count after every read.
type progressReader struct {
	r          io.Reader
	loaded     int64
	total      int64
	onProgress func(loaded, total int64)
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.loaded += int64(n)
		p.onProgress(p.loaded, p.total)
	}

	return n, err
}
