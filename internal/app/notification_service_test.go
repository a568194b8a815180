package app

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/skobkin/airqctl/internal/bus"
	"github.com/skobkin/airqctl/internal/config"
	"github.com/skobkin/airqctl/internal/connectors"
	"github.com/skobkin/airqctl/internal/notifications"
)

func startNotificationService(t *testing.T, cfg config.AppConfig, foreground bool) (*bus.PubSubBus, *collectingNotificationSender) {
	t.Helper()

	messageBus := newTestMessageBus(t)
	sender := newCollectingNotificationSender()
	service := NewNotificationService(
		messageBus,
		func() config.AppConfig { return cfg },
		func() bool { return foreground },
		sender,
		quietLogger(),
	)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	service.Start(ctx)

	return messageBus, sender
}

func TestNotificationServiceConnectionLostAndRestored(t *testing.T) {
	messageBus, sender := startNotificationService(t, config.Default(), false)

	messageBus.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{State: connectors.ConnectionStateConnected, Target: "192.168.4.1"})
	messageBus.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{State: connectors.ConnectionStateDisconnected, Target: "192.168.4.1", Err: "timeout"})
	messageBus.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{State: connectors.ConnectionStateDisconnected, Target: "192.168.4.1", Err: "timeout"})
	messageBus.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{State: connectors.ConnectionStateConnected, Target: "192.168.4.1"})

	got := sender.waitForCount(t, 2)
	if got[0].Title != "Device disconnected" || got[0].Content != "192.168.4.1 (error: timeout)" {
		t.Fatalf("unexpected disconnect notification: %+v", got[0])
	}
	if got[0].Kind != notifications.KindConnection || got[0].Alert {
		t.Fatalf("unexpected connection notification %+v", got[0])
	}
	if got[1].Title != "Device connected" || got[1].Content != "192.168.4.1" {
		t.Fatalf("unexpected reconnect notification: %+v", got[1])
	}
	sender.assertCount(t, 2)
}

func TestNotificationServiceSkipsWhenFocused(t *testing.T) {
	messageBus, sender := startNotificationService(t, config.Default(), true)

	messageBus.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{State: connectors.ConnectionStateDisconnected})
	sender.assertCount(t, 0)
}

func TestNotificationServiceNotifyWhenFocusedOverride(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NotifyWhenFocused = true
	messageBus, sender := startNotificationService(t, cfg, true)

	messageBus.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{State: connectors.ConnectionStateDisconnected})
	got := sender.waitForCount(t, 1)
	if got[0].Content != "No device address" {
		t.Fatalf("unexpected content: %q", got[0].Content)
	}
}

func TestNotificationServiceFirmwareReleaseOncePerVersion(t *testing.T) {
	messageBus, sender := startNotificationService(t, config.Default(), false)

	snapshot := FirmwareReleaseSnapshot{
		DeviceVersion:   "v1.2.0",
		Latest:          ReleaseInfo{Version: "v1.3.0"},
		UpdateAvailable: true,
	}
	messageBus.Publish(connectors.TopicFirmwareRelease, FirmwareReleaseSnapshot{DeviceVersion: "v1.3.0", Latest: ReleaseInfo{Version: "v1.3.0"}})
	messageBus.Publish(connectors.TopicFirmwareRelease, snapshot)
	messageBus.Publish(connectors.TopicFirmwareRelease, snapshot)

	got := sender.waitForCount(t, 1)
	if got[0].Kind != notifications.KindFirmwareRelease {
		t.Fatalf("unexpected notification kind %q", got[0].Kind)
	}
	if got[0].Title != notificationTitleFirmwareRelease || !strings.Contains(got[0].Content, "v1.3.0") {
		t.Fatalf("unexpected release notification: %+v", got[0])
	}
	sender.assertCount(t, 1)
}

func TestNotificationServiceRespectsDisabledKinds(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.ConnectionStatus = false
	cfg.Notifications.FirmwareRelease = false
	messageBus, sender := startNotificationService(t, cfg, false)

	messageBus.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{State: connectors.ConnectionStateDisconnected})
	messageBus.Publish(connectors.TopicFirmwareRelease, FirmwareReleaseSnapshot{Latest: ReleaseInfo{Version: "v2.0.0"}, UpdateAvailable: true})
	sender.assertCount(t, 0)
}

func newTestMessageBus(t *testing.T) *bus.PubSubBus {
	t.Helper()

	messageBus := bus.New(quietLogger())
	t.Cleanup(func() {
		messageBus.Close()
	})

	return messageBus
}

type collectingNotificationSender struct {
	mu            sync.Mutex
	notifications []notifications.Payload
	changes       chan struct{}
}

func newCollectingNotificationSender() *collectingNotificationSender {
	return &collectingNotificationSender{
		changes: make(chan struct{}, 1),
	}
}

func (s *collectingNotificationSender) Send(notification notifications.Payload) {
	s.mu.Lock()
	s.notifications = append(s.notifications, notification)
	s.mu.Unlock()

	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *collectingNotificationSender) snapshot() []notifications.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]notifications.Payload, len(s.notifications))
	copy(out, s.notifications)

	return out
}

func (s *collectingNotificationSender) waitForCount(t *testing.T, expected int) []notifications.Payload {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		current := s.snapshot()
		if len(current) >= expected {
			return current
		}
		select {
		case <-s.changes:
		case <-time.After(10 * time.Millisecond):
		}
	}

	t.Fatalf("timed out waiting for %d notifications", expected)

	return nil
}

func (s *collectingNotificationSender) assertCount(t *testing.T, expected int) {
	t.Helper()

	time.Sleep(100 * time.Millisecond)
	current := s.snapshot()
	if len(current) != expected {
		t.Fatalf("expected %d notifications, got %d", expected, len(current))
	}
}
