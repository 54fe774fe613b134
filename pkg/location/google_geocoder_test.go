package location

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

func newTestGeocoder(t *testing.T, body string) *GoogleGeocoder {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("latlng"), "1.23")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	g, err := NewGoogleGeocoder("AIza-test-key", "en", maps.WithBaseURL(srv.URL))
	require.NoError(t, err)
	return g
}

func TestGoogleGeocoder_ReverseGeocode(t *testing.T) {
	g := newTestGeocoder(t, `{"status": "OK", "results": [{"formatted_address": "1 Test Street, Testville"}]}`)

	addr, err := g.ReverseGeocode(context.Background(), Location{Latitude: 1.23, Longitude: 4.56})
	require.NoError(t, err)
	assert.Equal(t, "1 Test Street, Testville", addr)
}

func TestGoogleGeocoder_NoResults(t *testing.T) {
	g := newTestGeocoder(t, `{"status": "ZERO_RESULTS", "results": []}`)

	_, err := g.ReverseGeocode(context.Background(), Location{Latitude: 1.23, Longitude: 4.56})
	assert.ErrorIs(t, err, ErrNoAddress)
}

func TestNewGoogleGeocoder_MissingKey(t *testing.T) {
	_, err := NewGoogleGeocoder("", "en")
	assert.Error(t, err)
}
