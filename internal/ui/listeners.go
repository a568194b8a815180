package ui

import (
	"fmt"
	"sync"
	"time"

	airqapp "github.com/skobkin/airqctl/internal/app"
	"github.com/skobkin/airqctl/internal/bus"
	"github.com/skobkin/airqctl/internal/connectors"
	"github.com/skobkin/airqctl/internal/persistence"
)

// uiEventHandlers receive bus events on the listener goroutine. Handlers must
// marshal widget updates to the UI thread themselves.
type uiEventHandlers struct {
	OnConnStatus      func(connectors.ConnectionStatus)
	OnFirmwareRelease func(airqapp.FirmwareReleaseSnapshot)
	OnConsoleLine     func(connectors.ConsoleLine)
	OnBrokerReading   func(connectors.BrokerReading)
	OnDeviceEvent     func(persistence.DeviceEvent)
}

var uiEventTopics = []string{
	connectors.TopicConnStatus,
	connectors.TopicFirmwareRelease,
	connectors.TopicConsoleLine,
	connectors.TopicBrokerReading,
	connectors.TopicFirmwareUpload,
	connectors.TopicDeviceAction,
}

func startUIEventListeners(messageBus bus.MessageBus, handlers uiEventHandlers) func() {
	if messageBus == nil {
		appLogger.Debug("skipping UI event listeners: message bus is nil")

		return func() {}
	}

	sub := messageBus.Subscribe(uiEventTopics...)
	appLogger.Debug("subscribed to UI bus topics", "topics", uiEventTopics)
	done := make(chan struct{})
	var stopOnce sync.Once

	go func() {
		for {
			select {
			case <-done:
				return
			case raw, ok := <-sub:
				if !ok {
					appLogger.Debug("UI event subscription closed")

					return
				}
				select {
				case <-done:
					return
				default:
				}
				dispatchUIEvent(raw, handlers)
			}
		}
	}()

	return func() {
		stopOnce.Do(func() {
			appLogger.Debug("stopping UI event listeners")
			close(done)
			messageBus.Unsubscribe(sub, uiEventTopics...)
		})
	}
}

func dispatchUIEvent(raw any, handlers uiEventHandlers) {
	switch event := raw.(type) {
	case connectors.ConnectionStatus:
		if handlers.OnConnStatus != nil {
			handlers.OnConnStatus(event)
		}
	case airqapp.FirmwareReleaseSnapshot:
		if handlers.OnFirmwareRelease != nil {
			handlers.OnFirmwareRelease(event)
		}
	case connectors.ConsoleLine:
		if handlers.OnConsoleLine != nil {
			handlers.OnConsoleLine(event)
		}
	case connectors.BrokerReading:
		if handlers.OnBrokerReading != nil {
			handlers.OnBrokerReading(event)
		}
	case airqapp.UploadState, airqapp.DeviceActionOutcome:
		deviceEvent, ok := airqapp.DeviceEventFor(event, time.Now())
		if ok && handlers.OnDeviceEvent != nil {
			handlers.OnDeviceEvent(deviceEvent)
		}
	default:
		appLogger.Debug("ignoring unexpected UI event payload", "payload_type", fmt.Sprintf("%T", raw))
	}
}
