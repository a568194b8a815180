package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/skobkin/airqctl/internal/device"
)

type fakePreferencesClient struct {
	mu       sync.Mutex
	networks []device.NetworkRecord
	prefs    device.Preferences
	saveErr  error
	loadErr  error
	saved    []device.PreferencesUpdate
	loads    int
	block    chan struct{}
}

func (c *fakePreferencesClient) Networks(_ context.Context) ([]device.NetworkRecord, error) {
	c.mu.Lock()
	block := c.block
	c.mu.Unlock()
	if block != nil {
		<-block
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]device.NetworkRecord(nil), c.networks...), nil
}

func (c *fakePreferencesClient) Preferences(_ context.Context) (device.Preferences, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads++
	if c.loadErr != nil {
		return device.Preferences{}, c.loadErr
	}

	return c.prefs, nil
}

func (c *fakePreferencesClient) SavePreferences(_ context.Context, update device.PreferencesUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saved = append(c.saved, update)
	if c.saveErr != nil {
		return c.saveErr
	}
	c.prefs.WifiSSID = update.WifiSSID
	c.prefs.DeviceName = update.DeviceName + " (normalized)"

	return nil
}

func newTestEngine(client *fakePreferencesClient) (*PreferenceSyncEngine, *[]PreferenceForm) {
	engine := NewPreferenceSyncEngine(PreferenceSyncConfig{Client: client, Logger: quietLogger()})
	var (
		mu      sync.Mutex
		renders []PreferenceForm
	)
	engine.Attach(func(form PreferenceForm) {
		mu.Lock()
		renders = append(renders, form)
		mu.Unlock()
	})

	return engine, &renders
}

func scanABA() []device.NetworkRecord {
	return []device.NetworkRecord{
		{SSID: "A", Channel: 1, RSSI: -40, AuthMode: "WPA2_PSK"},
		{SSID: "B", Channel: 6, RSSI: -55, AuthMode: "OPEN"},
		{SSID: "A", Channel: 11, RSSI: -80, AuthMode: "WPA2_PSK"},
	}
}

func TestPreferenceSyncInitializeWithoutSurfaceIsNoop(t *testing.T) {
	client := &fakePreferencesClient{networks: scanABA()}
	engine := NewPreferenceSyncEngine(PreferenceSyncConfig{Client: client, Logger: quietLogger()})

	if err := engine.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if client.loads != 0 {
		t.Fatalf("no preference fetch expected without a surface")
	}
}

func TestPreferenceSyncInitializeSelectsConfiguredNetwork(t *testing.T) {
	client := &fakePreferencesClient{
		networks: scanABA(),
		prefs: device.Preferences{
			DeviceName:   "kitchen",
			WifiSSID:     "B",
			WifiPassword: device.PasswordPlaceholder,
			LEDIntensity: 2,
			LogValues:    true,
		},
	}
	engine, renders := newTestEngine(client)

	if err := engine.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	form := engine.State()
	if len(form.Networks) != 2 || form.Networks[0].SSID != "A" || form.Networks[1].SSID != "B" {
		t.Fatalf("expected [A, B], got %+v", form.Networks)
	}
	if form.SelectedSSID != "B" {
		t.Fatalf("expected B to be selected, got %q", form.SelectedSSID)
	}
	if form.DeviceName != "kitchen" || form.LEDIntensity != 2 || !form.LogValues {
		t.Fatalf("fields were not populated: %+v", form)
	}
	if form.VersionEditable {
		t.Fatalf("version must be locked outside provisioning mode")
	}
	if !form.Available || !form.Loaded {
		t.Fatalf("form must end available and loaded: %+v", form)
	}
	if len(*renders) == 0 || (*renders)[0].Available {
		t.Fatalf("expected the first render to mark the form unavailable")
	}
}

func TestPreferenceSyncInitializeUnknownSSIDSelectsNothing(t *testing.T) {
	client := &fakePreferencesClient{networks: scanABA(), prefs: device.Preferences{WifiSSID: "C"}}
	engine, _ := newTestEngine(client)

	if err := engine.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if got := engine.State().SelectedSSID; got != "" {
		t.Fatalf("no network must be selected, got %q", got)
	}
}

func TestPreferenceSyncSaveGatesDeviceVersion(t *testing.T) {
	tests := []struct {
		name         string
		provisioning bool
		wantVersion  bool
	}{
		{name: "provisioning", provisioning: true, wantVersion: true},
		{name: "normal", provisioning: false, wantVersion: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := &fakePreferencesClient{
				networks: scanABA(),
				prefs:    device.Preferences{WifiSSID: "A", DeviceVersion: "2", ProvisioningMode: tc.provisioning},
			}
			engine, _ := newTestEngine(client)
			if err := engine.Initialize(context.Background()); err != nil {
				t.Fatalf("initialize: %v", err)
			}
			engine.UpdateForm(func(f *PreferenceForm) { f.DeviceVersion = "3" })

			if err := engine.Save(context.Background()); err != nil {
				t.Fatalf("save: %v", err)
			}

			if len(client.saved) != 1 {
				t.Fatalf("expected one save, got %d", len(client.saved))
			}
			got := client.saved[0].DeviceVersion
			if tc.wantVersion {
				if got == nil || *got != "3" {
					t.Fatalf("expected deviceVersion 3 in payload, got %v", got)
				}
			} else if got != nil {
				t.Fatalf("deviceVersion must be omitted, got %q", *got)
			}
		})
	}
}

func TestPreferenceSyncSaveWithoutSelectionSendsNothing(t *testing.T) {
	client := &fakePreferencesClient{networks: scanABA(), prefs: device.Preferences{WifiSSID: "hidden"}}
	engine, _ := newTestEngine(client)
	if err := engine.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if err := engine.Save(context.Background()); !errors.Is(err, ErrNoNetworkSelected) {
		t.Fatalf("expected ErrNoNetworkSelected, got %v", err)
	}
	if len(client.saved) != 0 {
		t.Fatalf("nothing must be sent without a selected network")
	}
}

func TestPreferenceSyncSaveBeforeLoadSendsNothing(t *testing.T) {
	client := &fakePreferencesClient{networks: scanABA(), loadErr: errors.New("device answered 503")}
	engine, _ := newTestEngine(client)
	if err := engine.Initialize(context.Background()); err == nil {
		t.Fatalf("expected initialize to report the failed load")
	}
	if err := engine.SelectNetwork("A"); err != nil {
		t.Fatalf("select network: %v", err)
	}

	if err := engine.Save(context.Background()); !errors.Is(err, ErrPreferencesNotLoaded) {
		t.Fatalf("expected ErrPreferencesNotLoaded, got %v", err)
	}
	if len(client.saved) != 0 {
		t.Fatalf("a blank preference set must never be sent, got %+v", client.saved)
	}

	client.mu.Lock()
	client.loadErr = nil
	client.prefs = device.Preferences{WifiSSID: "B", DeviceName: "desk", WifiPassword: device.PasswordPlaceholder}
	client.mu.Unlock()
	if err := engine.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if err := engine.Save(context.Background()); err != nil {
		t.Fatalf("save after load: %v", err)
	}
	if len(client.saved) != 1 || client.saved[0].WifiPassword != device.PasswordPlaceholder {
		t.Fatalf("expected one save carrying the placeholder, got %+v", client.saved)
	}
}

func TestPreferenceSyncSaveAlwaysReloads(t *testing.T) {
	client := &fakePreferencesClient{
		networks: scanABA(),
		prefs:    device.Preferences{WifiSSID: "A", DeviceName: "desk", MQTTPassword: device.PasswordPlaceholder},
	}
	engine, _ := newTestEngine(client)
	if err := engine.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := engine.SelectNetwork("B"); err != nil {
		t.Fatalf("select network: %v", err)
	}

	if err := engine.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if client.saved[0].MQTTPassword != device.PasswordPlaceholder {
		t.Fatalf("password placeholder must pass through, got %q", client.saved[0].MQTTPassword)
	}
	form := engine.State()
	if form.DeviceName != "desk (normalized)" || form.SelectedSSID != "B" {
		t.Fatalf("form must reflect the reloaded device state, got %+v", form)
	}

	client.mu.Lock()
	client.saveErr = errors.New("device busy")
	loadsBefore := client.loads
	client.mu.Unlock()

	err := engine.Save(context.Background())
	if err == nil || err.Error() == "" {
		t.Fatalf("expected save error")
	}
	if client.loads != loadsBefore+1 {
		t.Fatalf("failed save must still reload, loads %d -> %d", loadsBefore, client.loads)
	}
}

func TestPreferenceSyncSaveJoinsReloadError(t *testing.T) {
	client := &fakePreferencesClient{networks: scanABA(), prefs: device.Preferences{WifiSSID: "A", DeviceName: "desk"}}
	engine, _ := newTestEngine(client)
	if err := engine.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	saveErr := errors.New("post failed")
	loadErr := errors.New("load failed")
	client.mu.Lock()
	client.saveErr = saveErr
	client.loadErr = loadErr
	client.mu.Unlock()

	err := engine.Save(context.Background())
	if !errors.Is(err, saveErr) || !errors.Is(err, loadErr) {
		t.Fatalf("expected both errors, got %v", err)
	}
	if form := engine.State(); form.DeviceName != "desk" || !form.Available {
		t.Fatalf("form must keep last-known state, got %+v", form)
	}
}

func TestPreferenceSyncRescanKeepsVisibleSelection(t *testing.T) {
	client := &fakePreferencesClient{networks: scanABA(), prefs: device.Preferences{WifiSSID: "B"}}
	engine, _ := newTestEngine(client)
	if err := engine.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	client.mu.Lock()
	client.networks = []device.NetworkRecord{{SSID: "C"}, {SSID: "B"}}
	client.mu.Unlock()
	if err := engine.Rescan(context.Background()); err != nil {
		t.Fatalf("rescan: %v", err)
	}
	if form := engine.State(); form.SelectedSSID != "B" || len(form.Networks) != 2 || form.Networks[0].SSID != "C" {
		t.Fatalf("unexpected form after rescan %+v", form)
	}

	client.mu.Lock()
	client.networks = []device.NetworkRecord{{SSID: "C"}}
	client.mu.Unlock()
	if err := engine.Rescan(context.Background()); err != nil {
		t.Fatalf("rescan: %v", err)
	}
	if got := engine.State().SelectedSSID; got != "" {
		t.Fatalf("vanished network must be deselected, got %q", got)
	}
}

func TestPreferenceSyncRejectsConcurrentOperation(t *testing.T) {
	block := make(chan struct{})
	client := &fakePreferencesClient{networks: scanABA(), prefs: device.Preferences{WifiSSID: "A"}, block: block}
	engine, _ := newTestEngine(client)

	done := make(chan error, 1)
	go func() { done <- engine.Initialize(context.Background()) }()

	waitFor(t, func() bool { return !engine.State().Available })
	if err := engine.Rescan(context.Background()); !errors.Is(err, ErrOperationInProgress) {
		t.Fatalf("expected ErrOperationInProgress, got %v", err)
	}
	close(block)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("initialize: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("initialize did not finish")
	}
}

func TestPreferenceSyncUpdateFormProtectsCapabilities(t *testing.T) {
	client := &fakePreferencesClient{networks: scanABA(), prefs: device.Preferences{WifiSSID: "A", DeviceVersion: "2"}}
	engine, _ := newTestEngine(client)
	if err := engine.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	engine.UpdateForm(func(f *PreferenceForm) {
		f.VersionEditable = true
		f.DeviceVersion = "9"
		f.Networks = nil
		f.SelectedSSID = "Z"
		f.DeviceName = "lab"
	})

	form := engine.State()
	if form.VersionEditable || form.DeviceVersion != "2" {
		t.Fatalf("locked version must not change: %+v", form)
	}
	if len(form.Networks) != 2 || form.SelectedSSID != "A" {
		t.Fatalf("scan result and selection must be protected: %+v", form)
	}
	if form.DeviceName != "lab" {
		t.Fatalf("editable field was not updated: %+v", form)
	}
	if err := engine.SelectNetwork("Z"); !errors.Is(err, ErrUnknownNetwork) {
		t.Fatalf("expected ErrUnknownNetwork, got %v", err)
	}
}
