package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"

	"github.com/skobkin/airqctl/internal/resources"
)

const sidebarConnIconSize float32 = 32

type sidebarLayout struct {
	left       *fyne.Container
	rightStack *fyne.Container
	navButtons map[string]*iconNavButton
	switchTab  func(name string)
	activeTab  func() string
	applyTheme func(fyne.ThemeVariant)
}

func buildSidebarLayout(
	initialVariant fyne.ThemeVariant,
	tabContent map[string]fyne.CanvasObject,
	tabOnShow map[string]func(),
	order []string,
	tabIcons map[string]resources.UIIcon,
	updateButton *iconNavButton,
	sidebarConnIcon *widget.Icon,
) sidebarLayout {
	rightStack := container.NewStack()
	for _, key := range order {
		tab := tabContent[key]
		if tab == nil {
			continue
		}
		rightStack.Add(tab)
		tab.Hide()
	}

	active := ""
	for _, name := range order {
		if tabContent[name] == nil {
			continue
		}
		active = name
		tabContent[name].Show()

		break
	}

	navButtons := make(map[string]*iconNavButton, len(order))
	updateNavSelection := func() {
		for name, button := range navButtons {
			button.SetSelected(name == active && !button.Disabled())
		}
	}

	notifyShown := func(name string) {
		if onShow := tabOnShow[name]; onShow != nil {
			onShow()

			return
		}
		if onShow, ok := tabContent[name].(interface{ OnShow() }); ok {
			onShow.OnShow()
		}
	}

	switchTab := func(name string) {
		if name == active {
			return
		}

		current := tabContent[active]
		next := tabContent[name]
		if current == nil || next == nil {
			return
		}

		appLogger.Debug("switching sidebar tab", "from", active, "to", name)
		current.Hide()
		active = name
		next.Show()
		notifyShown(name)
		updateNavSelection()
		rightStack.Refresh()
	}

	left := container.NewVBox()
	for _, name := range order {
		nameCopy := name
		button := newIconNavButton(resources.UIIconResource(tabIcons[name], initialVariant), navButtonIconSize, func() {
			switchTab(nameCopy)
		})
		navButtons[name] = button
		left.Add(button)
	}

	updateNavSelection()
	left.Add(layout.NewSpacer())
	if updateButton != nil {
		left.Add(updateButton)
	}
	if sidebarConnIcon != nil {
		left.Add(container.NewCenter(container.NewGridWrap(
			fyne.NewSquareSize(sidebarConnIconSize),
			sidebarConnIcon,
		)))
	}

	applyTheme := func(variant fyne.ThemeVariant) {
		for tabName, button := range navButtons {
			button.SetIcon(resources.UIIconResource(tabIcons[tabName], variant))
		}
	}

	return sidebarLayout{
		left:       left,
		rightStack: rightStack,
		navButtons: navButtons,
		switchTab:  switchTab,
		activeTab: func() string {
			return active
		},
		applyTheme: applyTheme,
	}
}
