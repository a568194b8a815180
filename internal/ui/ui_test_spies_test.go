package ui

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"fyne.io/fyne/v2"

	airqapp "github.com/skobkin/airqctl/internal/app"
	"github.com/skobkin/airqctl/internal/device"
)

type basicAppWrapper struct {
	fyne.App
}

type appRunQuitSpy struct {
	fyne.App
	runCalls  int
	quitCalls int
}

func (a *appRunQuitSpy) Run() {
	a.runCalls++
}

func (a *appRunQuitSpy) Quit() {
	a.quitCalls++
}

type appRunWindowSpy struct {
	fyne.App
	runCalls      int
	createdWindow *windowSpy
}

func (a *appRunWindowSpy) Run() {
	a.runCalls++
}

func (a *appRunWindowSpy) NewWindow(title string) fyne.Window {
	window := &windowSpy{Window: a.App.NewWindow(title)}
	a.createdWindow = window

	return window
}

type trayAppSpy struct {
	fyne.App
	trayMenu *fyne.Menu
	trayIcon fyne.Resource
}

func (a *trayAppSpy) SetSystemTrayMenu(menu *fyne.Menu) {
	a.trayMenu = menu
}

func (a *trayAppSpy) SetSystemTrayIcon(icon fyne.Resource) {
	a.trayIcon = icon
}

func (a *trayAppSpy) SetSystemTrayWindow(fyne.Window) {}

type windowSpy struct {
	fyne.Window
	showCalls      int
	hideCalls      int
	focusCalls     int
	closeIntercept func()
}

func (w *windowSpy) Show() {
	w.showCalls++
	if w.Window != nil {
		w.Window.Show()
	}
}

func (w *windowSpy) Hide() {
	w.hideCalls++
	if w.Window != nil {
		w.Window.Hide()
	}
}

func (w *windowSpy) RequestFocus() {
	w.focusCalls++
	if w.Window != nil {
		w.Window.RequestFocus()
	}
}

func (w *windowSpy) SetCloseIntercept(fn func()) {
	w.closeIntercept = fn
	if w.Window != nil {
		w.Window.SetCloseIntercept(fn)
	}
}

// syncHooks runs everything inline and auto-answers confirmations.
func syncHooks(window fyne.Window, confirm bool) UIHooks {
	return UIHooks{
		CurrentWindow: func() fyne.Window { return window },
		RunOnUI:       func(fn func()) { fn() },
		RunAsync:      func(fn func()) { fn() },
		ShowErrorDialog: func(error, fyne.Window) {
		},
		ShowInfoDialog: func(string, string, fyne.Window) {
		},
		ShowConfirm: func(_, _ string, onConfirm func(bool), _ fyne.Window) {
			onConfirm(confirm)
		},
	}
}

type preferencesSpy struct {
	mu     sync.Mutex
	render func(airqapp.PreferenceForm)
	form   airqapp.PreferenceForm

	loaded     airqapp.PreferenceForm
	initCalls  int
	saveCalls  int
	rescans    int
	reloads    int
	saveErr    error
	savedForms []airqapp.PreferenceForm
}

func (p *preferencesSpy) Attach(render func(airqapp.PreferenceForm)) {
	p.render = render
}

func (p *preferencesSpy) State() airqapp.PreferenceForm {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.form
}

func (p *preferencesSpy) publish() {
	p.mu.Lock()
	form := p.form
	p.mu.Unlock()
	if p.render != nil {
		p.render(form)
	}
}

func (p *preferencesSpy) Initialize(context.Context) error {
	p.mu.Lock()
	p.initCalls++
	p.form = p.loaded
	p.mu.Unlock()
	p.publish()

	return nil
}

func (p *preferencesSpy) Rescan(context.Context) error {
	p.mu.Lock()
	p.rescans++
	p.mu.Unlock()
	p.publish()

	return nil
}

func (p *preferencesSpy) Save(context.Context) error {
	p.mu.Lock()
	p.saveCalls++
	p.savedForms = append(p.savedForms, p.form)
	err := p.saveErr
	p.mu.Unlock()

	return err
}

func (p *preferencesSpy) Reload(context.Context) error {
	p.mu.Lock()
	p.reloads++
	p.mu.Unlock()
	p.publish()

	return nil
}

func (p *preferencesSpy) UpdateForm(edit func(*airqapp.PreferenceForm)) {
	p.mu.Lock()
	edit(&p.form)
	p.mu.Unlock()
	p.publish()
}

func (p *preferencesSpy) SelectNetwork(ssid string) error {
	p.UpdateForm(func(form *airqapp.PreferenceForm) {
		form.SelectedSSID = ssid
	})

	return nil
}

type deviceActionSpy struct {
	calls  []airqapp.DeviceAction
	result device.ActionResult
	err    error
}

func (d *deviceActionSpy) Run(_ context.Context, action airqapp.DeviceAction) (device.ActionResult, error) {
	d.calls = append(d.calls, action)

	return d.result, d.err
}

type uploaderSpy struct {
	render   func(airqapp.UploadState)
	state    airqapp.UploadState
	payloads []string
	err      error
}

func (u *uploaderSpy) Attach(render func(airqapp.UploadState)) {
	u.render = render
}

func (u *uploaderSpy) State() airqapp.UploadState {
	return u.state
}

func (u *uploaderSpy) Submit(_ context.Context, name string, body io.Reader, size int64) (airqapp.UploadState, error) {
	if u.err != nil {
		return u.state, u.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return u.state, err
	}
	u.payloads = append(u.payloads, string(raw))
	u.state = airqapp.UploadState{
		Phase:      airqapp.UploadPhaseSucceeded,
		FileName:   name,
		BytesSent:  int64(len(raw)),
		BytesTotal: size,
		Percent:    100,
		Notice:     airqapp.UploadNoticeSucceeded,
	}
	if u.render != nil {
		u.render(u.state)
	}

	return u.state, nil
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true

	return nil
}

func waitForCondition(t *testing.T, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition was not met before timeout")
}
