package gpstracker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	devicesPath      = "/api/v1/devices/"
	trackerDataPath  = "/api/v1/trackers/%d/data/"
	trackerStatePath = "/api/v1/trackers/%d/status/"

	defaultTimeout  = 30 * time.Second
	errorBodyLimit  = 512
	drainBodyLimit  = 4096
	defaultMaxCount = 1
)

// ClientInterface defines the calls the integration makes against the tracker API.
type ClientInterface interface {
	GetDevices(ctx context.Context) ([]Device, error)
	GetTrackers(ctx context.Context) ([]Tracker, error)
	GetLocations(ctx context.Context, tracker Tracker, maxCount int) ([]TrackerData, error)
	GetTrackerStatus(ctx context.Context, tracker Tracker) (TrackerStatus, error)
	Close() error
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// Client talks to the Invoxia tracker API using HTTP basic auth.
// A single Client is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     zerolog.Logger
	closed     atomic.Bool
}

var _ ClientInterface = (*Client)(nil)

// NewClient creates a Client for the given configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the configuration the client was built with.
func (c *Client) Config() Config {
	return c.cfg
}

// GetDevices lists every device attached to the account.
func (c *Client) GetDevices(ctx context.Context) ([]Device, error) {
	var devices []Device
	if err := c.getJSON(ctx, devicesPath, nil, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// GetTrackers lists the devices of the GPS tracker variant.
func (c *Client) GetTrackers(ctx context.Context) ([]Tracker, error) {
	devices, err := c.GetDevices(ctx)
	if err != nil {
		return nil, err
	}

	trackers := make([]Tracker, 0, len(devices))
	for _, d := range devices {
		t, ok := d.AsTracker()
		if !ok {
			c.logger.Debug().Int64("device_id", d.ID).Str("type", d.Type).Msg("Skipping non-tracker device")
			continue
		}
		trackers = append(trackers, t)
	}
	return trackers, nil
}

// GetLocations returns up to maxCount of the most recent location samples, newest first.
func (c *Client) GetLocations(ctx context.Context, tracker Tracker, maxCount int) ([]TrackerData, error) {
	if maxCount <= 0 {
		maxCount = defaultMaxCount
	}
	query := url.Values{}
	query.Set("max_count", strconv.Itoa(maxCount))

	var data []TrackerData
	if err := c.getJSON(ctx, fmt.Sprintf(trackerDataPath, tracker.ID), query, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// GetTrackerStatus returns the current status of the tracker.
func (c *Client) GetTrackerStatus(ctx context.Context, tracker Tracker) (TrackerStatus, error) {
	var status TrackerStatus
	if err := c.getJSON(ctx, fmt.Sprintf(trackerStatePath, tracker.ID), nil, &status); err != nil {
		return TrackerStatus{}, err
	}
	return status, nil
}

// Close releases idle connections. Requests made afterwards fail with ErrClientClosed.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if c.closed.Load() {
		return &ConnectionError{Path: path, Err: ErrClientClosed}
	}

	endpoint := c.cfg.BaseURL() + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ConnectionError{Path: path, Err: err}
	}
	defer func() {
		_, _ = io.CopyN(io.Discard, resp.Body, drainBodyLimit)
		resp.Body.Close()
	}()

	c.logger.Debug().Str("path", path).Int("status", resp.StatusCode).Msg("Tracker API response")

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &UnauthorizedQueryError{Path: path, StatusCode: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return &HTTPError{Path: path, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &DecodeError{Path: path, Err: err}
	}
	return nil
}
