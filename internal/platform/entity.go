// Package platform holds the host-facing side of tracker entities: the
// capability set an entity exposes and the registry that assigns entity ids,
// runs the first update and schedules polling.
package platform

import (
	"context"
	"time"

	"github.com/benmeehan/invoxia-agent/internal/models"
)

// TrackerEntity is a location entity backed by a remote tracker.
type TrackerEntity interface {
	UniqueID() string
	Name() string
	Icon() string
	DeviceInfo() *models.DeviceInfo

	Latitude() float64
	Longitude() float64
	LocationAccuracy() int
	BatteryLevel() int
	SourceType() string
	Available() bool

	// Snapshot returns every dynamic attribute under a single read.
	Snapshot() models.TrackerState

	Enabled() bool
	SetEnabled(enabled bool)
	ShouldPoll() bool
	ScanInterval() time.Duration

	// Update refreshes the entity from the remote API. It never fails;
	// errors are reflected through Available.
	Update(ctx context.Context)
}

// AddEntitiesFunc hands freshly created entities of a config entry to the host
// and returns the ones the host accepted.
type AddEntitiesFunc func(ctx context.Context, entities []TrackerEntity, updateBeforeAdd bool) ([]TrackerEntity, error)
