package location

import (
	"context"
	"time"

	"googlemaps.github.io/maps"
)

// GoogleGeocoder uses the Google Maps Geocoding API to resolve addresses.
type GoogleGeocoder struct {
	client   *maps.Client // Maps API client for making geocoding requests
	language string
}

var _ Geocoder = (*GoogleGeocoder)(nil)

// NewGoogleGeocoder creates a new GoogleGeocoder instance. Extra client
// options are appended after the API key.
func NewGoogleGeocoder(apiKey, language string, opts ...maps.ClientOption) (*GoogleGeocoder, error) {
	c, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, err
	}

	return &GoogleGeocoder{
		client:   c,
		language: language,
	}, nil
}

// ReverseGeocode returns the formatted address of the best match for loc.
func (g *GoogleGeocoder) ReverseGeocode(ctx context.Context, loc Location) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req := &maps.GeocodingRequest{
		LatLng:   &maps.LatLng{Lat: loc.Latitude, Lng: loc.Longitude},
		Language: g.language,
	}

	results, err := g.client.ReverseGeocode(ctx, req)
	if err != nil {
		return "", err
	}

	for _, r := range results {
		if r.FormattedAddress != "" {
			return r.FormattedAddress, nil
		}
	}
	return "", ErrNoAddress
}
