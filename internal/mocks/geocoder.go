package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/benmeehan/invoxia-agent/pkg/location"
)

// Geocoder is a mock implementation of location.Geocoder
type Geocoder struct {
	mock.Mock
}

var _ location.Geocoder = (*Geocoder)(nil)

func (m *Geocoder) ReverseGeocode(ctx context.Context, loc location.Location) (string, error) {
	args := m.Called(ctx, loc)
	return args.String(0), args.Error(1)
}
