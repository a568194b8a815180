package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/semver"

	"github.com/skobkin/airqctl/internal/bus"
	"github.com/skobkin/airqctl/internal/connectors"
)

const (
	defaultReleaseCheckInterval  = 12 * time.Hour
	defaultReleaseRequestTimeout = 15 * time.Second
)

// ReleaseInfo describes one published firmware release.
type ReleaseInfo struct {
	Version     string
	Body        string
	HTMLURL     string
	PublishedAt time.Time
}

// FirmwareReleaseSnapshot stores a single successful release check.
type FirmwareReleaseSnapshot struct {
	DeviceVersion   string
	Latest          ReleaseInfo
	Releases        []ReleaseInfo
	UpdateAvailable bool
	CheckedAt       time.Time
}

type FirmwareReleaseCheckerConfig struct {
	// DeviceVersion reports the firmware version the device currently runs.
	DeviceVersion func() string
	Endpoint      string
	HTTPClient    *http.Client
	Interval      time.Duration
	Bus           bus.MessageBus
	Logger        *slog.Logger
}

// FirmwareReleaseChecker polls a Forgejo/Gitea style releases feed and
// compares the newest tag with the device firmware.
type FirmwareReleaseChecker struct {
	deviceVersion func() string
	endpoint      string
	client        *http.Client
	interval      time.Duration
	bus           bus.MessageBus
	logger        *slog.Logger

	mu          sync.RWMutex
	latest      FirmwareReleaseSnapshot
	latestKnown bool

	startOnce sync.Once
}

type forgejoRelease struct {
	TagName     string    `json:"tag_name"`
	Body        string    `json:"body"`
	HTMLURL     string    `json:"html_url"`
	PublishedAt time.Time `json:"published_at"`
	Draft       bool      `json:"draft"`
	Prerelease  bool      `json:"prerelease"`
}

func NewFirmwareReleaseChecker(cfg FirmwareReleaseCheckerConfig) *FirmwareReleaseChecker {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultReleaseRequestTimeout}
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultReleaseCheckInterval
	}
	deviceVersion := cfg.DeviceVersion
	if deviceVersion == nil {
		deviceVersion = func() string { return "" }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "firmware_releases")
	}

	return &FirmwareReleaseChecker{
		deviceVersion: deviceVersion,
		endpoint:      strings.TrimSpace(cfg.Endpoint),
		client:        client,
		interval:      interval,
		bus:           cfg.Bus,
		logger:        logger,
	}
}

// Start runs the check loop. Without a feed URL it does nothing.
func (c *FirmwareReleaseChecker) Start(ctx context.Context) {
	if c == nil || c.endpoint == "" {
		return
	}

	c.startOnce.Do(func() {
		go c.run(ctx)
	})
}

func (c *FirmwareReleaseChecker) CurrentSnapshot() (FirmwareReleaseSnapshot, bool) {
	if c == nil {
		return FirmwareReleaseSnapshot{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.latest, c.latestKnown
}

func (c *FirmwareReleaseChecker) run(ctx context.Context) {
	c.logger.Info("firmware release checker started", "endpoint", c.endpoint, "interval", c.interval.String())

	if _, err := c.Check(ctx); err != nil {
		c.logger.Warn("check firmware releases", "error", err)
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("firmware release checker stopped")

			return
		case <-ticker.C:
			if _, err := c.Check(ctx); err != nil {
				c.logger.Warn("check firmware releases", "error", err)
			}
		}
	}
}

// Check fetches the feed once, stores the result and publishes it on the bus.
func (c *FirmwareReleaseChecker) Check(ctx context.Context) (FirmwareReleaseSnapshot, error) {
	releases, err := c.fetchReleases(ctx)
	if err != nil {
		return FirmwareReleaseSnapshot{}, err
	}
	if len(releases) == 0 {
		return FirmwareReleaseSnapshot{}, fmt.Errorf("release feed has no usable releases")
	}

	current := strings.TrimSpace(c.deviceVersion())
	snapshot := FirmwareReleaseSnapshot{
		DeviceVersion:   current,
		Latest:          releases[0],
		Releases:        releases,
		UpdateAvailable: isFirmwareNewer(current, releases[0].Version),
		CheckedAt:       time.Now().UTC(),
	}

	c.mu.Lock()
	c.latest = snapshot
	c.latestKnown = true
	c.mu.Unlock()

	if c.bus != nil {
		c.bus.TryPublish(connectors.TopicFirmwareRelease, snapshot)
	}
	c.logger.Info(
		"firmware release check completed",
		"device_version", current,
		"latest_version", snapshot.Latest.Version,
		"update_available", snapshot.UpdateAvailable,
	)

	return snapshot, nil
}

func (c *FirmwareReleaseChecker) fetchReleases(ctx context.Context) ([]ReleaseInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create releases request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request releases: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
			return nil, fmt.Errorf("request releases: unexpected status %d: %s", resp.StatusCode, trimmed)
		}

		return nil, fmt.Errorf("request releases: unexpected status %d", resp.StatusCode)
	}

	var payload []forgejoRelease
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode releases response: %w", err)
	}

	releases := make([]ReleaseInfo, 0, len(payload))
	for _, item := range payload {
		version := strings.TrimSpace(item.TagName)
		if version == "" || item.Draft || item.Prerelease {
			continue
		}
		releases = append(releases, ReleaseInfo{
			Version:     version,
			Body:        strings.TrimSpace(item.Body),
			HTMLURL:     strings.TrimSpace(item.HTMLURL),
			PublishedAt: item.PublishedAt,
		})
	}
	c.logger.Debug("parsed releases response", "items_total", len(payload), "items_usable", len(releases))

	return releases, nil
}

// isFirmwareNewer is false whenever either side cannot be compared.
func isFirmwareNewer(deviceVersion, latestVersion string) bool {
	current := normalizeSemver(deviceVersion)
	latest := normalizeSemver(latestVersion)
	if !semver.IsValid(current) || !semver.IsValid(latest) {
		return false
	}

	return semver.Compare(current, latest) < 0
}

func normalizeSemver(version string) string {
	trimmed := strings.TrimSpace(version)
	if trimmed == "" {
		return ""
	}
	if !strings.HasPrefix(trimmed, "v") {
		return "v" + trimmed
	}

	return trimmed
}
