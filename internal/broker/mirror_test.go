package broker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/skobkin/airqctl/internal/bus"
	"github.com/skobkin/airqctl/internal/connectors"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseTopic(t *testing.T) {
	tests := []struct {
		topic    string
		clientID string
		levels   bool
		ok       bool
	}{
		{topic: "airquality/airquality_3_abc/state", clientID: "airquality_3_abc", ok: true},
		{topic: "airquality/airquality_3_abc/state/levels", clientID: "airquality_3_abc", levels: true, ok: true},
		{topic: "airquality//state"},
		{topic: "airquality/x/status"},
		{topic: "airquality/x/state/other"},
		{topic: "sensors/x/state"},
		{topic: "airquality/x"},
	}

	for _, tc := range tests {
		t.Run(tc.topic, func(t *testing.T) {
			clientID, levels, ok := ParseTopic(tc.topic)
			if clientID != tc.clientID || levels != tc.levels || ok != tc.ok {
				t.Fatalf("ParseTopic(%q) = %q, %v, %v", tc.topic, clientID, levels, ok)
			}
		})
	}
}

func TestHandleMessagePublishesReading(t *testing.T) {
	messageBus := bus.New(quietLogger())
	defer messageBus.Close()
	sub := messageBus.Subscribe(connectors.TopicBrokerReading)

	mirror := NewMirror(Config{URL: "tcp://localhost:1883", Bus: messageBus, Logger: quietLogger()})
	mirror.HandleMessage(nil, fakeMessage{topic: "other/topic", payload: []byte("{}")})
	mirror.HandleMessage(nil, fakeMessage{topic: "airquality/dev1/state/levels", payload: []byte(`{"co2":"good"}`)})
	mirror.HandleMessage(nil, fakeMessage{topic: "airquality/dev1/state", payload: []byte(`{"co2":612}`)})

	select {
	case raw := <-sub:
		reading := raw.(connectors.BrokerReading)
		if reading.ClientID != "dev1" || !reading.Levels || reading.Payload != `{"co2":"good"}` {
			t.Fatalf("unexpected reading: %+v", reading)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for broker reading")
	}

	latest := mirror.Latest()
	if len(latest) != 2 || latest[0].Topic != "airquality/dev1/state" || latest[1].Topic != "airquality/dev1/state/levels" {
		t.Fatalf("unexpected latest readings: %+v", latest)
	}
}

func TestStartRequiresURL(t *testing.T) {
	mirror := NewMirror(Config{Logger: quietLogger()})
	if err := mirror.Start(context.Background()); err == nil {
		t.Fatalf("expected error for empty broker url")
	}
	mirror.Stop()
}
