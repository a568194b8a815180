package ui

import (
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
)

// pageControls is the Reload/Save footer shared by form pages.
type pageControls struct {
	saveButton   *widget.Button
	reloadButton *widget.Button
	statusLabel  *widget.Label
	activity     *widget.ProgressBarInfinite
	root         fyne.CanvasObject
}

func newPageControls(initialStatus string) *pageControls {
	status := widget.NewLabel(strings.TrimSpace(initialStatus))
	status.Wrapping = fyne.TextWrapWord

	activity := widget.NewProgressBarInfinite()
	activity.Stop()
	activity.Hide()

	saveButton := widget.NewButton("Save", nil)
	saveButton.Importance = widget.HighImportance
	reloadButton := widget.NewButton("Reload", nil)

	buttons := container.NewHBox(reloadButton, layout.NewSpacer(), saveButton)
	root := container.NewVBox(
		widget.NewSeparator(),
		activity,
		status,
		buttons,
	)

	return &pageControls{
		saveButton:   saveButton,
		reloadButton: reloadButton,
		statusLabel:  status,
		activity:     activity,
		root:         root,
	}
}

func (c *pageControls) SetStatus(text string) {
	if c == nil {
		return
	}
	c.statusLabel.SetText(strings.TrimSpace(text))
}

func (c *pageControls) SetBusy(busy bool) {
	if c == nil {
		return
	}
	if busy {
		c.activity.Show()
		c.activity.Start()

		return
	}
	c.activity.Stop()
	c.activity.Hide()
}

func wrapPage(content fyne.CanvasObject, controls *pageControls) fyne.CanvasObject {
	if controls == nil {
		return container.NewVScroll(content)
	}

	return container.NewBorder(nil, controls.root, nil, nil, container.NewVScroll(content))
}
