package connectors

const (
	TopicConnStatus       = "conn.status"
	TopicSensorValues     = "telemetry.sensors"
	TopicDeviceStatus     = "telemetry.status"
	TopicFirmwareUpload   = "firmware.upload"
	TopicFirmwareRelease  = "firmware.release"
	TopicBrokerReading    = "broker.reading"
	TopicConsoleLine      = "console.line"
	TopicPreferencesSaved = "preferences.saved"
	TopicDeviceAction     = "device.action"
)
