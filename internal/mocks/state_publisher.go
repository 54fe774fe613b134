package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/benmeehan/invoxia-agent/internal/services"
)

// StatePublisher is a mock implementation of services.StatePublisherInterface
type StatePublisher struct {
	mock.Mock
}

var _ services.StatePublisherInterface = (*StatePublisher)(nil)

func (m *StatePublisher) PublishDiscovery(src services.StateSource, objectID string) error {
	args := m.Called(src, objectID)
	return args.Error(0)
}

func (m *StatePublisher) PublishState(ctx context.Context, src services.StateSource) error {
	args := m.Called(ctx, src)
	return args.Error(0)
}

func (m *StatePublisher) PublishAvailability(uniqueID string, available bool) error {
	args := m.Called(uniqueID, available)
	return args.Error(0)
}
