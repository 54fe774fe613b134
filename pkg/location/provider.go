package location

import (
	"context"
	"errors"
)

// ErrNoAddress is returned when a position cannot be resolved to an address.
var ErrNoAddress = errors.New("no address found for location")

// Geocoder resolves a position to a human readable address.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, loc Location) (string, error)
}
