package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/skobkin/airqctl/internal/bus"
	"github.com/skobkin/airqctl/internal/config"
	"github.com/skobkin/airqctl/internal/connectors"
	"github.com/skobkin/airqctl/internal/notifications"
)

const notificationTitleFirmwareRelease = "Firmware update available"

// NotificationService turns device reachability changes and new firmware
// releases into desktop notifications.
type NotificationService struct {
	bus           bus.MessageBus
	currentConfig func() config.AppConfig
	isForeground  func() bool
	sender        notifications.Sender
	logger        *slog.Logger

	mu               sync.Mutex
	lastConnState    connectors.ConnectionState
	lastConnStateSet bool
	lastRelease      string
}

func NewNotificationService(
	messageBus bus.MessageBus,
	currentConfig func() config.AppConfig,
	isForeground func() bool,
	sender notifications.Sender,
	logger *slog.Logger,
) *NotificationService {
	if logger == nil {
		logger = slog.Default().With("component", "app.notifications")
	}

	return &NotificationService{
		bus:           messageBus,
		currentConfig: currentConfig,
		isForeground:  isForeground,
		sender:        sender,
		logger:        logger,
	}
}

func (s *NotificationService) Start(ctx context.Context) {
	if s == nil || s.bus == nil || s.sender == nil {
		return
	}

	sub := s.bus.Subscribe(connectors.TopicConnStatus, connectors.TopicFirmwareRelease)
	go func() {
		defer s.bus.Unsubscribe(sub)

		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-sub:
				if !ok {
					return
				}
				switch msg := raw.(type) {
				case connectors.ConnectionStatus:
					s.handleConnectionStatus(msg)
				case FirmwareReleaseSnapshot:
					s.handleFirmwareRelease(msg)
				}
			}
		}
	}()
}

func (s *NotificationService) handleConnectionStatus(status connectors.ConnectionStatus) {
	if status.State == "" {
		return
	}

	s.mu.Lock()
	first := !s.lastConnStateSet
	if !first && s.lastConnState == status.State {
		s.mu.Unlock()

		return
	}
	s.lastConnState = status.State
	s.lastConnStateSet = true
	s.mu.Unlock()

	// The first successful poll is expected and not worth a notification.
	if first && status.State == connectors.ConnectionStateConnected {
		return
	}
	if status.State != connectors.ConnectionStateConnected &&
		status.State != connectors.ConnectionStateDisconnected {
		return
	}
	prefs := s.notificationPrefs()
	if !s.shouldNotify(prefs, prefs.ConnectionStatus) {
		return
	}

	details := strings.TrimSpace(status.Target)
	if details == "" {
		details = "No device address"
	}
	if status.State == connectors.ConnectionStateDisconnected {
		if errText := strings.TrimSpace(status.Err); errText != "" {
			details = fmt.Sprintf("%s (error: %s)", details, errText)
		}
	}

	s.send(notifications.Payload{
		Kind:    notifications.KindConnection,
		Title:   fmt.Sprintf("Device %s", status.State),
		Content: details,
	})
}

func (s *NotificationService) handleFirmwareRelease(snapshot FirmwareReleaseSnapshot) {
	if !snapshot.UpdateAvailable {
		return
	}
	version := strings.TrimSpace(snapshot.Latest.Version)

	s.mu.Lock()
	if version == "" || version == s.lastRelease {
		s.mu.Unlock()

		return
	}
	s.lastRelease = version
	s.mu.Unlock()

	prefs := s.notificationPrefs()
	if !s.shouldNotify(prefs, prefs.FirmwareRelease) {
		return
	}
	s.send(notifications.Payload{
		Kind:    notifications.KindFirmwareRelease,
		Title:   notificationTitleFirmwareRelease,
		Content: fmt.Sprintf("%s is available, device runs %s", version, snapshot.DeviceVersion),
	})
}

func (s *NotificationService) shouldNotify(prefs config.NotificationConfig, kindEnabled bool) bool {
	if !kindEnabled {
		return false
	}
	if prefs.NotifyWhenFocused || s.isForeground == nil {
		return true
	}

	return !s.isForeground()
}

func (s *NotificationService) notificationPrefs() config.NotificationConfig {
	cfg := config.Default()
	if s.currentConfig != nil {
		cfg = s.currentConfig()
	}

	return cfg.Notifications
}

func (s *NotificationService) send(notification notifications.Payload) {
	title := strings.TrimSpace(notification.Title)
	content := strings.TrimSpace(notification.Content)
	if title == "" && content == "" {
		return
	}
	s.logger.Debug("sending notification", "kind", notification.Kind, "title", title)
	notification.Title = title
	notification.Content = content
	s.sender.Send(notification)
}
