package ui

import (
	"strings"
	"sync"

	"fyne.io/fyne/v2"

	"github.com/skobkin/airqctl/internal/notifications"
)

// FyneNotificationSender bridges app notifications to native Fyne notifications.
// It may be created before the Fyne app and bound later; sends before Bind are dropped.
type FyneNotificationSender struct {
	mu  sync.RWMutex
	app fyne.App
}

func NewFyneNotificationSender(app fyne.App) *FyneNotificationSender {
	return &FyneNotificationSender{app: app}
}

func (s *FyneNotificationSender) Bind(app fyne.App) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.app = app
	s.mu.Unlock()
}

func (s *FyneNotificationSender) Send(notification notifications.Payload) {
	if s == nil {
		return
	}
	s.mu.RLock()
	app := s.app
	s.mu.RUnlock()
	if app == nil {
		appLogger.Debug("dropping notification: app is not bound", "kind", notification.Kind, "title", notification.Title)

		return
	}

	title := strings.TrimSpace(notification.Title)
	content := strings.TrimSpace(notification.Content)
	if title == "" && content == "" {
		return
	}

	fyne.Do(func() {
		app.SendNotification(fyne.NewNotification(title, content))
	})
}
