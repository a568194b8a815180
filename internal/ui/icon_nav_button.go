package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

const navButtonIconSize float32 = 48

type iconNavButton struct {
	widget.DisableableWidget

	icon     fyne.Resource
	iconSize float32
	text     string
	hint     string
	tooltips *hoverTooltipManager
	onTap    func()
	selected bool
	hovered  bool
}

func newIconNavButton(icon fyne.Resource, iconSize float32, onTap func()) *iconNavButton {
	b := &iconNavButton{
		icon:     icon,
		iconSize: iconSize,
		onTap:    onTap,
	}
	b.ExtendBaseWidget(b)

	return b
}

func (b *iconNavButton) SetIcon(icon fyne.Resource) {
	b.icon = icon
	b.Refresh()
}

// SetText sets a caption drawn under the icon. Empty text removes it.
func (b *iconNavButton) SetText(text string) {
	if b.text == text {
		return
	}
	b.text = text
	b.Refresh()
}

func (b *iconNavButton) Text() string {
	return b.text
}

// SetHint sets the text shown in a bubble while the pointer is over the button.
func (b *iconNavButton) SetHint(hint string) {
	b.hint = hint
	if b.hovered {
		b.showHint()
	}
}

func (b *iconNavButton) Hint() string {
	return b.hint
}

func (b *iconNavButton) SetTooltips(manager *hoverTooltipManager) {
	b.tooltips = manager
}

func (b *iconNavButton) showHint() {
	if b.hint == "" || !b.Visible() {
		b.tooltips.Hide(b)

		return
	}
	b.tooltips.Show(b, b.hint)
}

func (b *iconNavButton) SetSelected(selected bool) {
	if b.selected == selected {
		return
	}
	b.selected = selected
	b.Refresh()
}

func (b *iconNavButton) Selected() bool {
	return b.selected
}

func (b *iconNavButton) MinSize() fyne.Size {
	th := b.Theme()
	pad := th.Size(theme.SizeNamePadding) * 2
	side := b.iconSize + pad
	size := fyne.NewSize(side, side)
	if b.text != "" {
		textSize := fyne.MeasureText(b.text, th.Size(theme.SizeNameCaptionText), fyne.TextStyle{})
		size.Height += textSize.Height
		if textSize.Width+pad > size.Width {
			size.Width = textSize.Width + pad
		}
	}

	return size
}

func (b *iconNavButton) Tapped(_ *fyne.PointEvent) {
	if b.Disabled() {
		return
	}
	if b.onTap != nil {
		b.onTap()
	}
}

func (b *iconNavButton) TappedSecondary(_ *fyne.PointEvent) {}

func (b *iconNavButton) MouseIn(_ *desktop.MouseEvent) {
	b.hovered = true
	b.showHint()
	b.Refresh()
}

func (b *iconNavButton) MouseMoved(_ *desktop.MouseEvent) {}

func (b *iconNavButton) MouseOut() {
	b.hovered = false
	b.tooltips.Hide(b)
	b.Refresh()
}

func (b *iconNavButton) CreateRenderer() fyne.WidgetRenderer {
	th := b.Theme()
	bg := canvas.NewRectangle(color.Transparent)
	bg.CornerRadius = th.Size(theme.SizeNameInputRadius)

	img := canvas.NewImageFromResource(b.icon)
	img.FillMode = canvas.ImageFillContain

	caption := canvas.NewText(b.text, th.Color(theme.ColorNameForeground, fyne.CurrentApp().Settings().ThemeVariant()))
	caption.TextSize = th.Size(theme.SizeNameCaptionText)
	caption.Alignment = fyne.TextAlignCenter

	return &iconNavButtonRenderer{
		button:     b,
		background: bg,
		icon:       img,
		caption:    caption,
		objects:    []fyne.CanvasObject{bg, img, caption},
	}
}

type iconNavButtonRenderer struct {
	button     *iconNavButton
	background *canvas.Rectangle
	icon       *canvas.Image
	caption    *canvas.Text
	objects    []fyne.CanvasObject
}

func (r *iconNavButtonRenderer) Layout(size fyne.Size) {
	r.background.Resize(size)

	pad := r.button.Theme().Size(theme.SizeNamePadding)
	captionHeight := float32(0)
	if r.button.text != "" {
		captionHeight = r.caption.MinSize().Height
	}
	maxW := size.Width - pad*2
	maxH := size.Height - pad*2 - captionHeight

	iconSide := r.button.iconSize
	if maxW < iconSide {
		iconSide = maxW
	}
	if maxH < iconSide {
		iconSide = maxH
	}
	if iconSide < 0 {
		iconSide = 0
	}

	iconSize := fyne.NewSquareSize(iconSide)
	r.icon.Resize(iconSize)
	r.icon.Move(fyne.NewPos(
		(size.Width-iconSize.Width)/2,
		(size.Height-captionHeight-iconSize.Height)/2,
	))

	r.caption.Resize(fyne.NewSize(size.Width, captionHeight))
	r.caption.Move(fyne.NewPos(0, size.Height-captionHeight-pad/2))
}

func (r *iconNavButtonRenderer) MinSize() fyne.Size {
	return r.button.MinSize()
}

func (r *iconNavButtonRenderer) Refresh() {
	th := r.button.Theme()
	v := fyne.CurrentApp().Settings().ThemeVariant()

	switch {
	case r.button.Disabled():
		r.background.FillColor = th.Color(theme.ColorNameDisabledButton, v)
	case r.button.selected:
		r.background.FillColor = th.Color(theme.ColorNameSelection, v)
	case r.button.hovered:
		r.background.FillColor = th.Color(theme.ColorNameHover, v)
	default:
		r.background.FillColor = color.Transparent
	}
	r.background.CornerRadius = th.Size(theme.SizeNameInputRadius)
	r.background.Refresh()

	icon := r.button.icon
	if r.button.Disabled() && icon != nil {
		icon = theme.NewDisabledResource(icon)
	}
	r.icon.Resource = icon
	r.icon.Refresh()

	r.caption.Text = r.button.text
	r.caption.Color = th.Color(theme.ColorNameForeground, v)
	r.caption.Refresh()

	r.Layout(r.button.Size())
}

func (r *iconNavButtonRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *iconNavButtonRenderer) Destroy() {}
