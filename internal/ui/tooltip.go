package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// hoverTooltipManager draws one hint bubble at a time on a layer stacked over the window content.
type hoverTooltipManager struct {
	layer *fyne.Container
	owner fyne.CanvasObject
}

func newHoverTooltipManager(layer *fyne.Container) *hoverTooltipManager {
	if layer == nil {
		return nil
	}

	return &hoverTooltipManager{layer: layer}
}

func (m *hoverTooltipManager) Show(owner fyne.CanvasObject, text string) {
	if m == nil || owner == nil || text == "" {
		return
	}
	app := fyne.CurrentApp()
	if app == nil || app.Driver() == nil {
		return
	}
	driver := app.Driver()

	layerSize := m.layer.Size()
	ownerPos := driver.AbsolutePositionForObject(owner).Subtract(driver.AbsolutePositionForObject(m.layer))
	if layerSize.Width <= 0 || layerSize.Height <= 0 {
		cnv := driver.CanvasForObject(owner)
		if cnv == nil {
			return
		}
		layerSize = cnv.Size()
		ownerPos = driver.AbsolutePositionForObject(owner)
	}

	bubble := newTooltipBubble(widget.NewLabel(text))
	bubble.Resize(bubble.MinSize())
	bubble.Move(sidebarTooltipPosition(ownerPos, owner.Size(), bubble.Size(), layerSize))

	m.layer.Objects = []fyne.CanvasObject{bubble}
	m.owner = owner
	m.layer.Refresh()
}

// Hide removes the bubble if owner is the one that showed it. A nil owner hides any bubble.
func (m *hoverTooltipManager) Hide(owner fyne.CanvasObject) {
	if m == nil || m.owner == nil {
		return
	}
	if owner != nil && owner != m.owner {
		return
	}

	m.layer.Objects = nil
	m.owner = nil
	m.layer.Refresh()
}

func newTooltipBubble(content fyne.CanvasObject) *fyne.Container {
	bgColor := theme.DefaultTheme().Color(theme.ColorNameOverlayBackground, theme.VariantDark)
	if app := fyne.CurrentApp(); app != nil {
		bgColor = app.Settings().Theme().Color(theme.ColorNameOverlayBackground, app.Settings().ThemeVariant())
	}

	bg := canvas.NewRectangle(bgColor)
	bg.CornerRadius = theme.Padding()

	return container.NewStack(bg, container.NewPadded(content))
}

// sidebarTooltipPosition places the bubble right of the anchor, vertically centered,
// and keeps it inside the canvas.
func sidebarTooltipPosition(anchorPos fyne.Position, anchorSize, popupSize, canvasSize fyne.Size) fyne.Position {
	gap := theme.Padding()
	x := anchorPos.X + anchorSize.Width + gap
	y := anchorPos.Y + (anchorSize.Height-popupSize.Height)/2

	return fyne.NewPos(
		clampFloat(x, gap, canvasSize.Width-popupSize.Width-gap),
		clampFloat(y, gap, canvasSize.Height-popupSize.Height-gap),
	)
}

func clampFloat(value, low, high float32) float32 {
	if high < low {
		high = low
	}
	if value > high {
		value = high
	}
	if value < low {
		value = low
	}

	return value
}
