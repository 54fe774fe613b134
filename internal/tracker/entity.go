// Package tracker exposes Invoxia GPS trackers as polled location entities.
package tracker

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/benmeehan/invoxia-agent/internal/constants"
	"github.com/benmeehan/invoxia-agent/internal/models"
	"github.com/benmeehan/invoxia-agent/internal/platform"
	"github.com/benmeehan/invoxia-agent/pkg/gpstracker"
)

// GpsTrackerEntity is the projection of one tracker's latest known state.
type GpsTrackerEntity struct {
	// Static attributes
	client       gpstracker.ClientInterface
	tracker      gpstracker.Tracker
	uniqueID     string
	icon         string
	deviceInfo   *models.DeviceInfo
	scanInterval time.Duration
	logger       zerolog.Logger

	// Dynamic attributes
	mu          sync.RWMutex
	enabled     bool
	available   bool
	battery     int
	accuracy    int
	latitude    float64
	longitude   float64
	lastUUID    string
	lastUpdated time.Time
}

var _ platform.TrackerEntity = (*GpsTrackerEntity)(nil)

// NewGpsTrackerEntity creates an enabled, available entity for the tracker.
// A non-positive scanInterval falls back to constants.ScanInterval.
func NewGpsTrackerEntity(client gpstracker.ClientInterface, tracker gpstracker.Tracker, scanInterval time.Duration, logger zerolog.Logger) *GpsTrackerEntity {
	if scanInterval <= 0 {
		scanInterval = constants.ScanInterval
	}
	uniqueID := strconv.FormatInt(tracker.ID, 10)
	logger = logger.With().Str("tracker_id", uniqueID).Logger()
	logger.Debug().Msg("Initializing tracker entity")

	return &GpsTrackerEntity{
		client:       client,
		tracker:      tracker,
		uniqueID:     uniqueID,
		icon:         iconFor(tracker),
		deviceInfo:   formDeviceInfo(tracker, logger),
		scanInterval: scanInterval,
		logger:       logger,
		enabled:      true,
		available:    true,
	}
}

// Update fetches the latest location and status concurrently and applies
// them only if both calls succeed.
func (e *GpsTrackerEntity) Update(ctx context.Context) {
	if !e.Enabled() {
		return
	}
	e.logger.Debug().Msg("Updating tracker")

	var (
		sample *gpstracker.TrackerData
		status gpstracker.TrackerStatus
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		locations, err := e.client.GetLocations(gctx, e.tracker, constants.LocationMaxCount)
		if err != nil {
			return err
		}
		if len(locations) > 0 {
			sample = &locations[0]
		}
		return nil
	})
	g.Go(func() error {
		var err error
		status, err = e.client.GetTrackerStatus(gctx, e.tracker)
		return err
	})
	err := g.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		e.logger.Warn().Err(err).Str("name", e.tracker.Name).Msg("Could not update tracker due to connection or API errors")
		e.available = false
		return
	}

	if sample != nil && sample.UUID != e.lastUUID {
		e.logger.Debug().Str("uuid", sample.UUID).Msg("Tracker location changed")
		e.latitude = sample.Lat
		e.longitude = sample.Lng
		e.accuracy = sample.Precision
		e.lastUUID = sample.UUID
		e.lastUpdated = sample.Datetime
	}
	e.battery = status.Battery

	if !e.available {
		e.logger.Info().Str("name", e.tracker.Name).Msg("Tracker update successful, connection or API errors are resolved")
		e.available = true
	}
}

// UniqueID returns the tracker id.
func (e *GpsTrackerEntity) UniqueID() string { return e.uniqueID }

// Name returns the tracker name set in the vendor app.
func (e *GpsTrackerEntity) Name() string { return e.tracker.Name }

// Icon returns the Material Design icon matching the tracker's configured icon.
func (e *GpsTrackerEntity) Icon() string { return e.icon }

// DeviceInfo returns the hardware metadata of the tracker.
func (e *GpsTrackerEntity) DeviceInfo() *models.DeviceInfo { return e.deviceInfo }

// SourceType is always gps.
func (e *GpsTrackerEntity) SourceType() string { return constants.SourceTypeGPS }

// ShouldPoll is always true; the vendor API has no push channel.
func (e *GpsTrackerEntity) ShouldPoll() bool { return true }

// ScanInterval returns the delay between two polls.
func (e *GpsTrackerEntity) ScanInterval() time.Duration { return e.scanInterval }

// Tracker returns the tracker the entity was created from.
func (e *GpsTrackerEntity) Tracker() gpstracker.Tracker { return e.tracker }

func (e *GpsTrackerEntity) Latitude() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.latitude
}

func (e *GpsTrackerEntity) Longitude() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.longitude
}

// LocationAccuracy returns the precision of the last accepted sample in metres.
func (e *GpsTrackerEntity) LocationAccuracy() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.accuracy
}

func (e *GpsTrackerEntity) BatteryLevel() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.battery
}

func (e *GpsTrackerEntity) Available() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.available
}

func (e *GpsTrackerEntity) Enabled() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.enabled
}

func (e *GpsTrackerEntity) SetEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = enabled
}

// Snapshot returns the current state of the entity.
func (e *GpsTrackerEntity) Snapshot() models.TrackerState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return models.TrackerState{
		UniqueID:      e.uniqueID,
		Name:          e.tracker.Name,
		Available:     e.available,
		Latitude:      e.latitude,
		Longitude:     e.longitude,
		Accuracy:      e.accuracy,
		BatteryLevel:  e.battery,
		SourceType:    constants.SourceTypeGPS,
		Attribution:   constants.Attribution,
		LocationToken: e.lastUUID,
		LastUpdated:   e.lastUpdated,
	}
}
