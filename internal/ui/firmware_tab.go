package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	airqapp "github.com/skobkin/airqctl/internal/app"
)

// firmwareTab uploads an image to the device and shows release availability.
type firmwareTab struct {
	hooks  UIHooks
	upload FirmwareUploader

	state         airqapp.UploadState
	chooseButton  *widget.Button
	fileLabel     *widget.Label
	progress      *widget.ProgressBar
	noticeLabel   *widget.Label
	releaseLabel  *widget.Label
	releaseButton *widget.Button
	release       airqapp.FirmwareReleaseSnapshot
	releaseKnown  bool
	onOpenRelease func(airqapp.FirmwareReleaseSnapshot)

	root fyne.CanvasObject
}

func newFirmwareTab(dep RuntimeDependencies, onOpenRelease func(airqapp.FirmwareReleaseSnapshot)) *firmwareTab {
	t := &firmwareTab{
		hooks:         dep.UIHooks.withDefaults(),
		upload:        dep.Actions.Upload,
		onOpenRelease: onOpenRelease,
	}

	t.fileLabel = widget.NewLabel("No upload yet")
	t.fileLabel.Truncation = fyne.TextTruncateEllipsis
	t.chooseButton = widget.NewButton("Choose firmware image...", t.chooseFile)
	t.chooseButton.Importance = widget.HighImportance

	t.progress = widget.NewProgressBar()
	t.progress.Min = 0
	t.progress.Max = 100
	t.progress.TextFormatter = func() string {
		return t.state.PercentLabel()
	}
	t.progress.Hide()

	t.noticeLabel = widget.NewLabel("")
	t.noticeLabel.Wrapping = fyne.TextWrapWord

	hint := widget.NewLabel("The device flashes the image and reboots. Keep it powered until it comes back.")
	hint.Wrapping = fyne.TextWrapWord

	t.releaseLabel = widget.NewLabel("Release checks are disabled.")
	t.releaseLabel.Wrapping = fyne.TextWrapWord
	t.releaseButton = widget.NewButton("Release notes", func() {
		if t.releaseKnown && t.onOpenRelease != nil {
			t.onOpenRelease(t.release)
		}
	})
	t.releaseButton.Disable()

	uploadCard := widget.NewCard("Upload firmware", "", container.NewVBox(
		hint,
		container.NewBorder(nil, nil, t.chooseButton, nil, t.fileLabel),
		t.progress,
		t.noticeLabel,
	))
	releaseCard := widget.NewCard("Releases", "", container.NewVBox(
		t.releaseLabel,
		container.NewHBox(t.releaseButton),
	))
	t.root = container.NewVScroll(container.NewVBox(uploadCard, releaseCard))

	if t.upload == nil {
		t.chooseButton.Disable()
		t.noticeLabel.SetText("Firmware upload is unavailable.")

		return t
	}
	t.upload.Attach(func(state airqapp.UploadState) {
		t.hooks.RunOnUI(func() {
			t.applyState(state)
		})
	})
	t.applyState(t.upload.State())

	return t
}

func (t *firmwareTab) applyState(state airqapp.UploadState) {
	t.state = state
	if name := strings.TrimSpace(state.FileName); name != "" {
		t.fileLabel.SetText(name)
	}
	t.progress.SetValue(float64(state.Percent))
	setVisible(state.IndicatorVisible, t.progress)

	switch state.Phase {
	case airqapp.UploadPhaseUploading:
		t.chooseButton.Disable()
		t.noticeLabel.SetText(fmt.Sprintf("Uploading... %s", formatByteProgress(state.BytesSent, state.BytesTotal)))
	default:
		t.chooseButton.Enable()
		t.noticeLabel.SetText(state.Notice)
	}
}

func formatByteProgress(sent, total int64) string {
	if total <= 0 {
		return fmt.Sprintf("%d bytes", sent)
	}

	return fmt.Sprintf("%d / %d bytes", sent, total)
}

func (t *firmwareTab) chooseFile() {
	window := t.hooks.CurrentWindow()
	if window == nil {
		t.noticeLabel.SetText("Upload failed: active window is unavailable")

		return
	}
	open := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			t.hooks.ShowErrorDialog(err, window)

			return
		}
		if reader == nil {
			return
		}
		uri := reader.URI()
		t.SubmitFile(uri.Name(), reader, uriFileSize(uri))
	}, window)
	open.SetFilter(storage.NewExtensionFileFilter([]string{".bin"}))
	open.Show()
}

// SubmitFile streams body to the device in the background and closes it when done.
func (t *firmwareTab) SubmitFile(name string, body io.ReadCloser, size int64) {
	if t.upload == nil {
		_ = body.Close()

		return
	}
	t.chooseButton.Disable()
	t.hooks.RunAsync(func() {
		defer func() {
			_ = body.Close()
		}()
		if _, err := t.upload.Submit(context.Background(), name, body, size); err != nil {
			t.hooks.RunOnUI(func() {
				t.noticeLabel.SetText("Upload rejected: " + err.Error())
				if t.state.Phase != airqapp.UploadPhaseUploading {
					t.chooseButton.Enable()
				}
			})
		}
	})
}

func uriFileSize(uri fyne.URI) int64 {
	if uri == nil || uri.Scheme() != "file" {
		return 0
	}
	info, err := os.Stat(uri.Path())
	if err != nil {
		return 0
	}

	return info.Size()
}

func (t *firmwareTab) ApplyRelease(snapshot airqapp.FirmwareReleaseSnapshot) {
	t.release = snapshot
	t.releaseKnown = true

	text := fmt.Sprintf("Device firmware: %s. Latest release: %s.", orUnknown(snapshot.DeviceVersion), orUnknown(snapshot.Latest.Version))
	if snapshot.UpdateAvailable {
		text += " An update is available."
	}
	t.releaseLabel.SetText(text)
	if len(snapshot.Releases) > 0 {
		t.releaseButton.Enable()
	} else {
		t.releaseButton.Disable()
	}
}
