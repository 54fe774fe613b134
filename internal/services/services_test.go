package services_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benmeehan/invoxia-agent/internal/models"
	"github.com/benmeehan/invoxia-agent/internal/services"
)

type fakeEntity struct {
	mu       sync.Mutex
	state    models.TrackerState
	interval time.Duration
	updates  atomic.Int32
	onUpdate func(ctx context.Context)
}

var _ services.PolledEntity = (*fakeEntity)(nil)

func newFakeEntity() *fakeEntity {
	return &fakeEntity{
		interval: 10 * time.Millisecond,
		state: models.TrackerState{
			UniqueID:      "999999",
			Name:          "dummy_tracker",
			Available:     true,
			Latitude:      1.23,
			Longitude:     4.56,
			Accuracy:      10,
			BatteryLevel:  42,
			SourceType:    "gps",
			LocationToken: "A",
		},
	}
}

func (f *fakeEntity) UniqueID() string   { return f.state.UniqueID }
func (f *fakeEntity) Name() string       { return f.state.Name }
func (f *fakeEntity) Icon() string       { return "mdi:car" }
func (f *fakeEntity) SourceType() string { return "gps" }
func (f *fakeEntity) DeviceInfo() *models.DeviceInfo {
	return &models.DeviceInfo{Identifiers: []string{"invoxia_SN1"}, Name: f.state.Name, Manufacturer: "Invoxia"}
}
func (f *fakeEntity) ScanInterval() time.Duration { return f.interval }

func (f *fakeEntity) Snapshot() models.TrackerState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeEntity) setToken(token string) {
	f.mu.Lock()
	f.state.LocationToken = token
	f.mu.Unlock()
}

func (f *fakeEntity) Update(ctx context.Context) {
	f.updates.Add(1)
	if f.onUpdate != nil {
		f.onUpdate(ctx)
	}
}
