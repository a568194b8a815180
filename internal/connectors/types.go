package connectors

import "time"

// ConnectionState describes device reachability as shown in the UI.
type ConnectionState string

const (
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateConnecting   ConnectionState = "connecting"
	ConnectionStateConnected    ConnectionState = "connected"
)

// ConnectionStatus is a bus event snapshot of current device reachability.
type ConnectionStatus struct {
	State     ConnectionState
	Err       string
	Target    string
	Timestamp time.Time
}

// BrokerReading is one device publication observed on the MQTT broker.
type BrokerReading struct {
	ClientID   string
	Levels     bool
	Topic      string
	Payload    string
	ReceivedAt time.Time
}

// ConsoleLine is one line read from the device's serial console.
type ConsoleLine struct {
	Level      string
	Uptime     time.Duration
	Tag        string
	Message    string
	Raw        string
	ReceivedAt time.Time
}
