// Package broker mirrors the device's own MQTT publications into the local bus.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/skobkin/airqctl/internal/bus"
	"github.com/skobkin/airqctl/internal/connectors"
)

const (
	// TopicState is where the device publishes its raw readings.
	TopicState = "airquality/+/state"
	// TopicLevels is where the device publishes classified levels.
	TopicLevels = "airquality/+/state/levels"

	subscribeQoS          = 1
	defaultConnectTimeout = 10 * time.Second
	disconnectQuiesceMS   = 250
)

type Config struct {
	URL            string
	Username       string
	Password       string
	ClientID       string
	ConnectTimeout time.Duration
	Bus            bus.MessageBus
	Logger         *slog.Logger
}

type Mirror struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	client mqtt.Client
	latest map[string]connectors.BrokerReading
}

func NewMirror(cfg Config) *Mirror {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "broker")
	}

	return &Mirror{
		cfg:    cfg,
		logger: logger,
		latest: make(map[string]connectors.BrokerReading),
	}
}

// Start connects to the broker. Subscriptions are (re)issued from the connect
// handler so they survive automatic reconnects.
func (m *Mirror) Start(ctx context.Context) error {
	if strings.TrimSpace(m.cfg.URL) == "" {
		return errors.New("broker url is empty")
	}

	m.mu.Lock()
	if m.client != nil {
		m.mu.Unlock()

		return nil
	}
	client := mqtt.NewClient(m.clientOptions())
	m.client = client
	m.mu.Unlock()

	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		client.Disconnect(0)
		m.reset()

		return ctx.Err()
	case <-time.After(m.cfg.ConnectTimeout):
		client.Disconnect(0)
		m.reset()

		return fmt.Errorf("connect to broker %s: timeout after %s", m.cfg.URL, m.cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		m.reset()

		return fmt.Errorf("connect to broker %s: %w", m.cfg.URL, err)
	}
	m.logger.Info("connected to broker", "url", m.cfg.URL)

	return nil
}

func (m *Mirror) Stop() {
	m.mu.Lock()
	client := m.client
	m.client = nil
	m.mu.Unlock()
	if client == nil {
		return
	}
	client.Disconnect(disconnectQuiesceMS)
	m.logger.Info("disconnected from broker")
}

func (m *Mirror) reset() {
	m.mu.Lock()
	m.client = nil
	m.mu.Unlock()
}

func (m *Mirror) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.cfg.URL)
	opts.SetClientID(fmt.Sprintf("%s-%d", strings.TrimSpace(m.cfg.ClientID), os.Getpid()))
	if m.cfg.Username != "" {
		opts.SetUsername(m.cfg.Username)
		opts.SetPassword(m.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(true)
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		if err := subscribe(client, m.HandleMessage); err != nil {
			m.logger.Warn("subscribe to device topics", "error", err)
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		m.logger.Warn("broker connection lost", "error", err)
	})

	return opts
}

func subscribe(client mqtt.Client, handler mqtt.MessageHandler) error {
	filters := map[string]byte{
		TopicState:  subscribeQoS,
		TopicLevels: subscribeQoS,
	}
	token := client.SubscribeMultiple(filters, handler)
	token.Wait()

	return token.Error()
}

// HandleMessage records one device publication and forwards it to the bus.
func (m *Mirror) HandleMessage(_ mqtt.Client, msg mqtt.Message) {
	clientID, levels, ok := ParseTopic(msg.Topic())
	if !ok {
		m.logger.Debug("ignoring unexpected topic", "topic", msg.Topic())

		return
	}
	reading := connectors.BrokerReading{
		ClientID:   clientID,
		Levels:     levels,
		Topic:      msg.Topic(),
		Payload:    string(msg.Payload()),
		ReceivedAt: time.Now(),
	}

	m.mu.Lock()
	m.latest[msg.Topic()] = reading
	m.mu.Unlock()

	if m.cfg.Bus != nil {
		m.cfg.Bus.TryPublish(connectors.TopicBrokerReading, reading)
	}
}

// Latest returns the most recent reading per topic, sorted by topic.
func (m *Mirror) Latest() []connectors.BrokerReading {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]connectors.BrokerReading, 0, len(m.latest))
	for _, reading := range m.latest {
		out = append(out, reading)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })

	return out
}

// ParseTopic extracts the device client id from airquality/<id>/state[/levels].
func ParseTopic(topic string) (clientID string, levels bool, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 || len(parts) > 4 || parts[0] != "airquality" || parts[1] == "" || parts[2] != "state" {
		return "", false, false
	}
	if len(parts) == 4 {
		if parts[3] != "levels" {
			return "", false, false
		}

		return parts[1], true, true
	}

	return parts[1], false, true
}
