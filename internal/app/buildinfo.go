package app

import (
	"fmt"
	"strings"
	"time"
)

var (
	// Version is filled by ldflags in release builds.
	Version = "dev"
	// BuildDate is filled by ldflags in release builds.
	BuildDate = ""
)

const dateLayout = "2006-01-02"

func BuildVersion() string {
	if version := strings.TrimSpace(Version); version != "" {
		return version
	}

	return "dev"
}

// BuildDateYMD accepts RFC3339 or a plain date prefix and falls back to the raw value.
func BuildDateYMD() string {
	raw := strings.TrimSpace(BuildDate)
	switch {
	case raw == "":
		return ""
	case len(raw) < len(dateLayout):
		return raw
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed.Format(dateLayout)
	}
	if _, err := time.Parse(dateLayout, raw[:len(dateLayout)]); err == nil {
		return raw[:len(dateLayout)]
	}

	return raw
}

func BuildVersionWithDate() string {
	if buildDate := BuildDateYMD(); buildDate != "" {
		return fmt.Sprintf("%s (%s)", BuildVersion(), buildDate)
	}

	return BuildVersion()
}

// UserAgent identifies the client to the device and the release feed.
func UserAgent() string {
	return Name + "/" + BuildVersion()
}
