package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/benmeehan/invoxia-agent/pkg/gpstracker"
)

// TrackerClient is a mock implementation of gpstracker.ClientInterface
type TrackerClient struct {
	mock.Mock
}

var _ gpstracker.ClientInterface = (*TrackerClient)(nil)

func (m *TrackerClient) GetDevices(ctx context.Context) ([]gpstracker.Device, error) {
	args := m.Called(ctx)
	devices, _ := args.Get(0).([]gpstracker.Device)
	return devices, args.Error(1)
}

func (m *TrackerClient) GetTrackers(ctx context.Context) ([]gpstracker.Tracker, error) {
	args := m.Called(ctx)
	trackers, _ := args.Get(0).([]gpstracker.Tracker)
	return trackers, args.Error(1)
}

func (m *TrackerClient) GetLocations(ctx context.Context, tracker gpstracker.Tracker, maxCount int) ([]gpstracker.TrackerData, error) {
	args := m.Called(ctx, tracker, maxCount)
	data, _ := args.Get(0).([]gpstracker.TrackerData)
	return data, args.Error(1)
}

func (m *TrackerClient) GetTrackerStatus(ctx context.Context, tracker gpstracker.Tracker) (gpstracker.TrackerStatus, error) {
	args := m.Called(ctx, tracker)
	status, _ := args.Get(0).(gpstracker.TrackerStatus)
	return status, args.Error(1)
}

func (m *TrackerClient) Close() error {
	args := m.Called()
	return args.Error(0)
}
