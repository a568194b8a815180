package ui

import (
	"fmt"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/widget"

	airqapp "github.com/skobkin/airqctl/internal/app"
	"github.com/skobkin/airqctl/internal/connectors"
	"github.com/skobkin/airqctl/internal/resources"
)

// connectionStatusPresenter keeps the window title, the status labels and the
// sidebar icon in line with the latest device reachability event.
type connectionStatusPresenter struct {
	window       fyne.Window
	statusLabels []*widget.Label
	sidebarIcon  *widget.Icon

	mu       sync.RWMutex
	current  connectors.ConnectionStatus
	onChange func(connectors.ConnectionStatus)
}

func newConnectionStatusPresenter(
	window fyne.Window,
	initialStatus connectors.ConnectionStatus,
	initialVariant fyne.ThemeVariant,
	statusLabels ...*widget.Label,
) *connectionStatusPresenter {
	presenter := &connectionStatusPresenter{
		window:       window,
		statusLabels: statusLabels,
		sidebarIcon:  widget.NewIcon(resources.UIIconResource(sidebarStatusIcon(initialStatus), initialVariant)),
		current:      initialStatus,
	}
	presenter.applyUI(initialStatus, initialVariant)

	return presenter
}

func (p *connectionStatusPresenter) SidebarIcon() *widget.Icon {
	return p.sidebarIcon
}

func (p *connectionStatusPresenter) Set(status connectors.ConnectionStatus, variant fyne.ThemeVariant) {
	p.mu.Lock()
	p.current = status
	p.mu.Unlock()
	p.applyUI(status, variant)
	if onChange := p.changeHook(); onChange != nil {
		onChange(status)
	}
}

// OnChange registers fn to run after every Set, on the caller's goroutine.
func (p *connectionStatusPresenter) OnChange(fn func(connectors.ConnectionStatus)) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

func (p *connectionStatusPresenter) changeHook() func(connectors.ConnectionStatus) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.onChange
}

func (p *connectionStatusPresenter) ApplyTheme(variant fyne.ThemeVariant) {
	p.mu.RLock()
	status := p.current
	p.mu.RUnlock()
	if p.sidebarIcon != nil {
		setConnStatusIcon(p.sidebarIcon, status, variant)
	}
}

func (p *connectionStatusPresenter) CurrentStatus() connectors.ConnectionStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.current
}

func (p *connectionStatusPresenter) applyUI(status connectors.ConnectionStatus, variant fyne.ThemeVariant) {
	if p.window != nil {
		p.window.SetTitle(formatWindowTitle(status))
	}
	text := formatConnStatus(status)
	for _, label := range p.statusLabels {
		if label != nil {
			label.SetText(text)
		}
	}
	if p.sidebarIcon != nil {
		setConnStatusIcon(p.sidebarIcon, status, variant)
	}
}

func formatConnStatus(status connectors.ConnectionStatus) string {
	text := "Device " + string(status.State)
	if target := strings.TrimSpace(status.Target); target != "" {
		text += " (" + target + ")"
	}
	if status.Err != "" {
		text += ": " + status.Err
	}

	return text
}

func formatWindowTitle(status connectors.ConnectionStatus) string {
	return fmt.Sprintf("%s %s - %s", airqapp.Name, airqapp.BuildVersion(), formatConnStatus(status))
}

func setConnStatusIcon(sidebarIcon *widget.Icon, status connectors.ConnectionStatus, variant fyne.ThemeVariant) {
	sidebarIcon.SetResource(resources.UIIconResource(sidebarStatusIcon(status), variant))
}

func sidebarStatusIcon(status connectors.ConnectionStatus) resources.UIIcon {
	if status.State == connectors.ConnectionStateConnected {
		return resources.UIIconConnected
	}

	return resources.UIIconDisconnected
}

func currentConnStatus(dep RuntimeDependencies) (connectors.ConnectionStatus, bool) {
	if dep.Data.CurrentConnStatus == nil {
		return connectors.ConnectionStatus{}, false
	}

	return dep.Data.CurrentConnStatus()
}

func resolveInitialConnStatus(dep RuntimeDependencies) connectors.ConnectionStatus {
	if status, ok := currentConnStatus(dep); ok {
		return status
	}

	return airqapp.ConnectionStatusFromConfig(dep.Data.Config.Device)
}

func isDeviceConnected(dep RuntimeDependencies) bool {
	status, known := currentConnStatus(dep)

	return known && status.State == connectors.ConnectionStateConnected
}
