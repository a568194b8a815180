package notifications

// Kind names the device event a notification reports.
type Kind string

const (
	KindConnection      Kind = "connection"
	KindFirmwareRelease Kind = "firmware_release"
	KindFirmwareUpload  Kind = "firmware_upload"
)

// Payload is one desktop notification about the monitored device.
type Payload struct {
	Kind    Kind
	Title   string
	Content string
	// Alert asks for an audible notification where the backend has one.
	Alert   bool
}

// Sender sends notifications using a platform-specific backend.
type Sender interface {
	Send(payload Payload)
}
