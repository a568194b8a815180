package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	PathSensorValues = "/sensorvalues"
	PathStatus       = "/status"
	PathNetworks     = "/networks"
	PathPreferences  = "/preferences"
	PathCalibrate    = "/calibrateco2"
	PathReset        = "/reset"
	PathOTA          = "/ota"
	PathOTAReset     = "/ota/reset"

	// HeaderRequestedWith marks programmatic firmware uploads.
	HeaderRequestedWith = "X-Requested-With"
	RequestedWithXHR    = "XMLHttpRequest"

	defaultRequestTimeout = 10 * time.Second
	errorBodyLimit        = 1024
	maxResponseSize       = 1 << 20
)

// ClientConfig customizes the device client.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the device HTTP API.
type Client struct {
	mu      sync.RWMutex
	baseURL string

	http   *http.Client
	upload *http.Client
	logger *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	httpClient := cfg.HTTPClient
	uploadClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
		// Firmware images take far longer than a regular request.
		uploadClient = &http.Client{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: normalizeBaseURL(cfg.BaseURL),
		http:    httpClient,
		upload:  uploadClient,
		logger:  logger,
	}
}

func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.baseURL
}

// SetBaseURL points the client to another device. In-flight requests keep the old address.
func (c *Client) SetBaseURL(raw string) {
	c.mu.Lock()
	c.baseURL = normalizeBaseURL(raw)
	c.mu.Unlock()
	c.logger.Info("device address changed", "base_url", c.BaseURL())
}

func (c *Client) SensorValues(ctx context.Context) (SensorSnapshot, error) {
	raw, err := c.getRaw(ctx, "sensor values", PathSensorValues)
	if err != nil {
		return SensorSnapshot{}, err
	}
	snapshot, err := newSnapshot(raw)
	if err != nil {
		return SensorSnapshot{}, fmt.Errorf("sensor values: %w", err)
	}

	return SensorSnapshot{Snapshot: snapshot}, nil
}

func (c *Client) Status(ctx context.Context) (StatusSnapshot, error) {
	raw, err := c.getRaw(ctx, "device status", PathStatus)
	if err != nil {
		return StatusSnapshot{}, err
	}
	snapshot, err := newSnapshot(raw)
	if err != nil {
		return StatusSnapshot{}, fmt.Errorf("device status: %w", err)
	}

	return StatusSnapshot{Snapshot: snapshot}, nil
}

func (c *Client) Networks(ctx context.Context) ([]NetworkRecord, error) {
	raw, err := c.getRaw(ctx, "network scan", PathNetworks)
	if err != nil {
		return nil, err
	}

	var records []NetworkRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("network scan: decode response: %w", err)
	}
	c.logger.Debug("network scan completed", "records", len(records))

	return records, nil
}

func (c *Client) Preferences(ctx context.Context) (Preferences, error) {
	raw, err := c.getRaw(ctx, "load preferences", PathPreferences)
	if err != nil {
		return Preferences{}, err
	}

	var prefs Preferences
	if err := json.Unmarshal(raw, &prefs); err != nil {
		return Preferences{}, fmt.Errorf("load preferences: decode response: %w", err)
	}

	return prefs, nil
}

// SavePreferences posts the update. The answer body only matters when it reports an error.
func (c *Client) SavePreferences(ctx context.Context, update PreferencesUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("save preferences: encode request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, PathPreferences, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Info("saving preferences", "ssid", update.WifiSSID, "device_version_sent", update.DeviceVersion != nil)
	raw, err := c.do(c.http, req, "save preferences")
	if err != nil {
		return err
	}

	if msg := rejectionMessage(raw); msg != "" {
		return fmt.Errorf("save preferences: %w: %s", ErrDeviceRejected, msg)
	}

	return nil
}

func (c *Client) Calibrate(ctx context.Context) (ActionResult, error) {
	return c.postAction(ctx, "calibrate co2", PathCalibrate)
}

func (c *Client) FactoryReset(ctx context.Context) (ActionResult, error) {
	return c.postAction(ctx, "factory reset", PathReset)
}

// ResetFirmwareUpdate asks the device to roll back its pending firmware update.
func (c *Client) ResetFirmwareUpdate(ctx context.Context) (ActionResult, error) {
	return c.postAction(ctx, "firmware update reset", PathOTAReset)
}

// UploadFirmware streams body to the OTA endpoint and returns the answer status.
// Only transport failures are reported as errors; the caller classifies the status.
func (c *Client) UploadFirmware(ctx context.Context, body io.Reader, size int64) (int, error) {
	req, err := c.newRequest(ctx, http.MethodPost, PathOTA, body)
	if err != nil {
		return 0, fmt.Errorf("firmware upload: %w", err)
	}
	req.Header.Set(HeaderRequestedWith, RequestedWithXHR)
	req.Header.Set("Content-Type", "application/octet-stream")
	if size > 0 {
		req.ContentLength = size
	}

	c.logger.Info("uploading firmware", "size", size)
	resp, err := c.upload.Do(req)
	if err != nil {
		return 0, fmt.Errorf("firmware upload: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
	c.logger.Info("firmware upload answered", "status_code", resp.StatusCode)

	return resp.StatusCode, nil
}

func (c *Client) postAction(ctx context.Context, op, path string) (ActionResult, error) {
	req, err := c.newRequest(ctx, http.MethodPost, path, nil)
	if err != nil {
		return ActionResult{}, fmt.Errorf("%s: %w", op, err)
	}

	raw, err := c.do(c.http, req, op)
	if err != nil {
		return ActionResult{}, err
	}

	result := ActionResult{Body: strings.TrimSpace(string(raw))}
	var values map[string]any
	if json.Unmarshal(raw, &values) == nil {
		result.Values = values
	}
	c.logger.Info("device action completed", "action", op, "body", result.Body)

	return result, nil
}

func (c *Client) getRaw(ctx context.Context, op, path string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	return c.do(c.http, req, op)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	endpoint := c.BaseURL() + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return req, nil
}

func (c *Client) do(client *http.Client, req *http.Request, op string) ([]byte, error) {
	c.logger.Debug("device request", "op", op, "method", req.Method, "url", req.URL.String())

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	c.logger.Debug("device response", "op", op, "status_code", resp.StatusCode)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))

		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", op, err)
	}

	return raw, nil
}

func rejectionMessage(raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) != nil {
		return ""
	}

	return strings.TrimSpace(body.Error)
}

func normalizeBaseURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}
