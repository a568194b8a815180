package ui

import (
	"context"
	"log/slog"
	"sync/atomic"

	"fyne.io/fyne/v2"

	airqapp "github.com/skobkin/airqctl/internal/app"
	"github.com/skobkin/airqctl/internal/config"
)

func startNotificationService(dep RuntimeDependencies, fyApp fyne.App, startHidden bool) func() {
	var appForeground atomic.Bool
	appForeground.Store(!startHidden)
	fyApp.Lifecycle().SetOnEnteredForeground(func() {
		appForeground.Store(true)
	})
	fyApp.Lifecycle().SetOnExitedForeground(func() {
		appForeground.Store(false)
	})

	sender := dep.Platform.Notifier
	if sender == nil {
		sender = NewFyneNotificationSender(fyApp)
	} else {
		sender.Bind(fyApp)
	}

	currentConfig := dep.Data.CurrentConfig
	if currentConfig == nil {
		cfg := dep.Data.Config
		currentConfig = func() config.AppConfig { return cfg }
	}

	notificationsCtx, stopNotifications := context.WithCancel(context.Background())
	notificationService := airqapp.NewNotificationService(
		dep.Data.Bus,
		currentConfig,
		appForeground.Load,
		sender,
		slog.With("component", "ui.notifications"),
	)
	notificationService.Start(notificationsCtx)

	return stopNotifications
}
