package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/benmeehan/invoxia-agent/internal/entries"
	"github.com/benmeehan/invoxia-agent/internal/mocks"
	"github.com/benmeehan/invoxia-agent/internal/platform"
	"github.com/benmeehan/invoxia-agent/internal/services"
	"github.com/benmeehan/invoxia-agent/pkg/gpstracker"
)

// vendorServer serves one tracker with a fixed location and status.
func vendorServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/devices/", func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "user" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[{"id": 999999, "name": "dummy_tracker", "type": "tracker_01", "serial": "SN-999999"}]`))
	})
	mux.HandleFunc("/api/v1/trackers/999999/data/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("max_count"))
		_, _ = w.Write([]byte(`[{"lat": 1.23, "lng": 4.56, "precision": 10, "uuid": "A"}]`))
	})
	mux.HandleFunc("/api/v1/trackers/999999/status/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"battery": 42}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type recorder struct {
	mu       sync.Mutex
	payloads map[string][]byte
}

func (r *recorder) record(args mock.Arguments) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch p := args.Get(3).(type) {
	case []byte:
		r.payloads[args.String(0)] = p
	case string:
		r.payloads[args.String(0)] = []byte(p)
	}
}

func (r *recorder) get(topic string) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.payloads[topic]
}

func newMQTT() (*mocks.MockMQTTClient, *recorder) {
	rec := &recorder{payloads: map[string][]byte{}}
	client := new(mocks.MockMQTTClient)
	client.On("Publish", mock.Anything, mock.Anything, true, mock.Anything).
		Run(rec.record).
		Return(mocks.CompletedToken(nil))
	return client, rec
}

func testEntry(url string) entries.ConfigEntry {
	return entries.ConfigEntry{
		EntryID:  "entry-1",
		Title:    "user",
		UniqueID: "user@" + url,
		Data:     entries.Data{URL: url, Username: "user", Password: "secret"},
	}
}

func TestIntegration_EndToEnd(t *testing.T) {
	srv := vendorServer(t)
	mqttClient, rec := newMQTT()

	publisher := services.NewStatePublisher("homeassistant", "invoxia", 1, mqttClient, nil, zerolog.Nop())
	registry := platform.NewEntityRegistry(publisher, 1, time.Second, nil, zerolog.Nop())
	integ := New(registry, NewClientFactory(5*time.Second, zerolog.Nop()), time.Hour, zerolog.Nop())

	require.NoError(t, integ.SetupEntry(context.Background(), testEntry(srv.URL)))

	entryCtx, ok := integ.Entry("entry-1")
	require.True(t, ok)
	require.Len(t, entryCtx.Entities, 1)
	assert.Equal(t, srv.URL, entryCtx.Config.APIURL)

	state, ok := registry.State("device_tracker.dummy_tracker")
	require.True(t, ok)
	assert.Equal(t, "999999", state.UniqueID)
	assert.Equal(t, 1.23, state.Latitude)
	assert.Equal(t, 4.56, state.Longitude)
	assert.Equal(t, 10, state.Accuracy)
	assert.Equal(t, 42, state.BatteryLevel)
	assert.Equal(t, "gps", state.SourceType)
	assert.True(t, state.Available)

	var attrs map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.get("invoxia/999999/attributes"), &attrs))
	assert.Equal(t, 1.23, attrs["latitude"])
	assert.Equal(t, float64(42), attrs["battery_level"])
	assert.Equal(t, "online", string(rec.get("invoxia/999999/availability")))
	assert.NotEmpty(t, rec.get("homeassistant/device_tracker/invoxia/999999/config"))

	require.NoError(t, integ.UnloadEntry("entry-1"))
	assert.Equal(t, "offline", string(rec.get("invoxia/999999/availability")))

	_, ok = integ.Entry("entry-1")
	assert.False(t, ok)
	_, err := entryCtx.Client.GetDevices(context.Background())
	assert.ErrorIs(t, err, gpstracker.ErrClientClosed)
}

func TestIntegration_SetupEntryInvalidAuth(t *testing.T) {
	srv := vendorServer(t)
	mqttClient, _ := newMQTT()

	publisher := services.NewStatePublisher("homeassistant", "invoxia", 1, mqttClient, nil, zerolog.Nop())
	registry := platform.NewEntityRegistry(publisher, 1, time.Second, nil, zerolog.Nop())
	integ := New(registry, NewClientFactory(5*time.Second, zerolog.Nop()), time.Hour, zerolog.Nop())

	entry := testEntry(srv.URL)
	entry.Data.Password = "wrong"

	err := integ.SetupEntry(context.Background(), entry)
	var unauthorized *gpstracker.UnauthorizedQueryError
	assert.ErrorAs(t, err, &unauthorized)

	_, ok := integ.Entry("entry-1")
	assert.False(t, ok)
	assert.Empty(t, registry.LoadedEntries())
}

type fakeHost struct {
	unloadErr error
	added     []platform.TrackerEntity
}

func (h *fakeHost) AddEntitiesFor(string) platform.AddEntitiesFunc {
	return func(_ context.Context, entities []platform.TrackerEntity, _ bool) ([]platform.TrackerEntity, error) {
		h.added = entities
		return entities, nil
	}
}

func (h *fakeHost) UnloadEntry(string) error { return h.unloadErr }

func TestIntegration_SetupEntryTwice(t *testing.T) {
	client := new(mocks.TrackerClient)
	client.On("GetTrackers", mock.Anything).Return([]gpstracker.Tracker{}, nil)
	integ := New(&fakeHost{}, func(gpstracker.Config) gpstracker.ClientInterface { return client }, time.Hour, zerolog.Nop())

	require.NoError(t, integ.SetupEntry(context.Background(), testEntry("https://labs.invoxia.io")))
	assert.Error(t, integ.SetupEntry(context.Background(), testEntry("https://labs.invoxia.io")))
}

func TestIntegration_UnloadFailureKeepsClientOpen(t *testing.T) {
	client := new(mocks.TrackerClient)
	client.On("GetTrackers", mock.Anything).Return([]gpstracker.Tracker{}, nil)
	host := &fakeHost{unloadErr: errors.New("poller stuck")}
	integ := New(host, func(gpstracker.Config) gpstracker.ClientInterface { return client }, time.Hour, zerolog.Nop())

	require.NoError(t, integ.SetupEntry(context.Background(), testEntry("https://labs.invoxia.io")))

	err := integ.UnloadEntry("entry-1")
	assert.EqualError(t, err, "poller stuck")
	client.AssertNotCalled(t, "Close")

	_, ok := integ.Entry("entry-1")
	assert.True(t, ok)
}

func TestIntegration_UnloadRetryAfterFailureClosesClient(t *testing.T) {
	client := new(mocks.TrackerClient)
	client.On("GetTrackers", mock.Anything).Return([]gpstracker.Tracker{}, nil)
	client.On("Close").Return(nil)
	host := &fakeHost{unloadErr: errors.New("poller stuck")}
	integ := New(host, func(gpstracker.Config) gpstracker.ClientInterface { return client }, time.Hour, zerolog.Nop())

	require.NoError(t, integ.SetupEntry(context.Background(), testEntry("https://labs.invoxia.io")))
	require.Error(t, integ.UnloadEntry("entry-1"))

	// The host already forgot the entry on the failed attempt.
	host.unloadErr = fmt.Errorf("unload entry-1: %w", platform.ErrEntryNotLoaded)
	require.NoError(t, integ.UnloadEntry("entry-1"))
	client.AssertNumberOfCalls(t, "Close", 1)

	_, ok := integ.Entry("entry-1")
	assert.False(t, ok)
}

func TestIntegration_TrackerSharedByTwoEntries(t *testing.T) {
	srv := vendorServer(t)
	mqttClient, _ := newMQTT()

	publisher := services.NewStatePublisher("homeassistant", "invoxia", 1, mqttClient, nil, zerolog.Nop())
	registry := platform.NewEntityRegistry(publisher, 1, time.Second, nil, zerolog.Nop())
	integ := New(registry, NewClientFactory(5*time.Second, zerolog.Nop()), time.Hour, zerolog.Nop())

	first := testEntry(srv.URL)
	second := testEntry(srv.URL)
	second.EntryID = "entry-2"
	require.NoError(t, integ.SetupEntry(context.Background(), first))
	require.NoError(t, integ.SetupEntry(context.Background(), second))
	defer func() { _ = integ.UnloadAll() }()

	firstCtx, ok := integ.Entry("entry-1")
	require.True(t, ok)
	assert.Len(t, firstCtx.Entities, 1)

	secondCtx, ok := integ.Entry("entry-2")
	require.True(t, ok)
	assert.Empty(t, secondCtx.Entities)
}

func TestIntegration_UnloadAll(t *testing.T) {
	client := new(mocks.TrackerClient)
	client.On("GetTrackers", mock.Anything).Return([]gpstracker.Tracker{}, nil)
	client.On("Close").Return(nil)
	integ := New(&fakeHost{}, func(gpstracker.Config) gpstracker.ClientInterface { return client }, time.Hour, zerolog.Nop())

	first := testEntry("https://labs.invoxia.io")
	second := testEntry("https://staging.invoxia.io")
	second.EntryID = "entry-2"
	require.NoError(t, integ.SetupEntry(context.Background(), first))
	require.NoError(t, integ.SetupEntry(context.Background(), second))

	require.NoError(t, integ.UnloadAll())
	client.AssertNumberOfCalls(t, "Close", 2)

	err := integ.UnloadEntry("entry-1")
	assert.ErrorIs(t, err, platform.ErrEntryNotLoaded)
}
