package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/benmeehan/invoxia-agent/internal/mocks"
	"github.com/benmeehan/invoxia-agent/internal/models"
	"github.com/benmeehan/invoxia-agent/internal/services"
	"github.com/benmeehan/invoxia-agent/pkg/location"
)

type published struct {
	topic    string
	retained bool
	payload  []byte
}

// recordPublishes makes every Publish on client succeed and records it.
func recordPublishes(client *mocks.MockMQTTClient, err error) *[]published {
	var out []published
	client.On("Publish", mock.Anything, byte(1), mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			var payload []byte
			switch p := args.Get(3).(type) {
			case []byte:
				payload = p
			case string:
				payload = []byte(p)
			}
			out = append(out, published{topic: args.String(0), retained: args.Bool(2), payload: payload})
		}).
		Return(mocks.CompletedToken(err))
	return &out
}

func TestStatePublisher_PublishDiscovery(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	msgs := recordPublishes(client, nil)
	p := services.NewStatePublisher("homeassistant", "invoxia", 1, client, nil, zerolog.Nop())

	require.NoError(t, p.PublishDiscovery(newFakeEntity(), "dummy_tracker"))
	require.Len(t, *msgs, 1)

	msg := (*msgs)[0]
	assert.Equal(t, "homeassistant/device_tracker/invoxia/999999/config", msg.topic)
	assert.True(t, msg.retained)

	var cfg models.DeviceTrackerConfig
	require.NoError(t, json.Unmarshal(msg.payload, &cfg))
	assert.Equal(t, "invoxia_999999", cfg.UniqueID)
	assert.Equal(t, "dummy_tracker", cfg.ObjectID)
	assert.Equal(t, "gps", cfg.SourceType)
	assert.Equal(t, "invoxia/999999/attributes", cfg.JSONAttributesTopic)
	assert.Equal(t, "all", cfg.AvailabilityMode)
	require.Len(t, cfg.Availability, 2)
	assert.Equal(t, "invoxia/status", cfg.Availability[0].Topic)
	assert.Equal(t, "invoxia/999999/availability", cfg.Availability[1].Topic)
	require.NotNil(t, cfg.Device)
	assert.Equal(t, "Invoxia", cfg.Device.Manufacturer)
}

func TestStatePublisher_PublishState(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	msgs := recordPublishes(client, nil)
	p := services.NewStatePublisher("homeassistant", "invoxia", 1, client, nil, zerolog.Nop())

	require.NoError(t, p.PublishState(context.Background(), newFakeEntity()))
	require.Len(t, *msgs, 2)

	attrs := (*msgs)[0]
	assert.Equal(t, "invoxia/999999/attributes", attrs.topic)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(attrs.payload, &body))
	assert.Equal(t, 1.23, body["latitude"])
	assert.Equal(t, 4.56, body["longitude"])
	assert.Equal(t, float64(10), body["gps_accuracy"])
	assert.Equal(t, float64(42), body["battery_level"])
	assert.Equal(t, "gps", body["source_type"])
	assert.NotContains(t, body, "address")

	avail := (*msgs)[1]
	assert.Equal(t, "invoxia/999999/availability", avail.topic)
	assert.Equal(t, "online", string(avail.payload))
}

func TestStatePublisher_PublishStateUnavailable(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	msgs := recordPublishes(client, nil)
	p := services.NewStatePublisher("homeassistant", "invoxia", 1, client, nil, zerolog.Nop())

	entity := newFakeEntity()
	entity.state.Available = false

	require.NoError(t, p.PublishState(context.Background(), entity))
	require.Len(t, *msgs, 2)
	assert.Equal(t, "offline", string((*msgs)[1].payload))
}

func TestStatePublisher_PublishError(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	recordPublishes(client, errors.New("not connected"))
	p := services.NewStatePublisher("homeassistant", "invoxia", 1, client, nil, zerolog.Nop())

	err := p.PublishState(context.Background(), newFakeEntity())
	assert.EqualError(t, err, "not connected")
}

func TestStatePublisher_GeocodesOncePerSample(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	msgs := recordPublishes(client, nil)
	geocoder := new(mocks.Geocoder)
	geocoder.On("ReverseGeocode", mock.Anything, location.Location{Latitude: 1.23, Longitude: 4.56, Accuracy: 10}).
		Return("1 Test Street", nil)
	p := services.NewStatePublisher("homeassistant", "invoxia", 1, client, geocoder, zerolog.Nop())

	entity := newFakeEntity()
	require.NoError(t, p.PublishState(context.Background(), entity))
	require.NoError(t, p.PublishState(context.Background(), entity))
	geocoder.AssertNumberOfCalls(t, "ReverseGeocode", 1)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal((*msgs)[2].payload, &body))
	assert.Equal(t, "1 Test Street", body["address"])

	entity.setToken("B")
	require.NoError(t, p.PublishState(context.Background(), entity))
	geocoder.AssertNumberOfCalls(t, "ReverseGeocode", 2)
}

func TestStatePublisher_GeocodeFailureIsNotFatal(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	msgs := recordPublishes(client, nil)
	geocoder := new(mocks.Geocoder)
	geocoder.On("ReverseGeocode", mock.Anything, mock.Anything).Return("", errors.New("quota exceeded"))
	p := services.NewStatePublisher("homeassistant", "invoxia", 1, client, geocoder, zerolog.Nop())

	require.NoError(t, p.PublishState(context.Background(), newFakeEntity()))
	require.Len(t, *msgs, 2)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal((*msgs)[0].payload, &body))
	assert.NotContains(t, body, "address")
}

func TestStatePublisher_SkipsGeocodingWithoutLocation(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	recordPublishes(client, nil)
	geocoder := new(mocks.Geocoder)
	p := services.NewStatePublisher("homeassistant", "invoxia", 1, client, geocoder, zerolog.Nop())

	entity := newFakeEntity()
	entity.setToken("")
	require.NoError(t, p.PublishState(context.Background(), entity))
	geocoder.AssertNotCalled(t, "ReverseGeocode", mock.Anything, mock.Anything)
}

func TestStatePublisher_BridgeStatus(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	msgs := recordPublishes(client, nil)
	p := services.NewStatePublisher("homeassistant", "invoxia", 1, client, nil, zerolog.Nop())

	require.NoError(t, p.PublishBridgeStatus(true))
	require.NoError(t, p.PublishBridgeStatus(false))
	require.Len(t, *msgs, 2)
	assert.Equal(t, "invoxia/status", (*msgs)[0].topic)
	assert.Equal(t, "online", string((*msgs)[0].payload))
	assert.Equal(t, "offline", string((*msgs)[1].payload))
}

type fakeMessage struct {
	paho.Message
	payload []byte
}

func (m fakeMessage) Payload() []byte { return m.payload }

func TestStatePublisher_SubscribeHostStatus(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	var handler paho.MessageHandler
	client.On("Subscribe", "homeassistant/status", byte(1), mock.Anything).
		Run(func(args mock.Arguments) { handler = args.Get(2).(paho.MessageHandler) }).
		Return(mocks.CompletedToken(nil))
	p := services.NewStatePublisher("homeassistant", "invoxia", 1, client, nil, zerolog.Nop())

	calls := 0
	require.NoError(t, p.SubscribeHostStatus(func() { calls++ }))
	require.NotNil(t, handler)

	handler(nil, fakeMessage{payload: []byte("offline")})
	assert.Equal(t, 0, calls)
	handler(nil, fakeMessage{payload: []byte("online")})
	assert.Equal(t, 1, calls)
}

func TestStatePublisher_SubscribeHostStatusError(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	client.On("Subscribe", mock.Anything, mock.Anything, mock.Anything).
		Return(mocks.CompletedToken(errors.New("not authorized")))
	p := services.NewStatePublisher("homeassistant", "invoxia", 1, client, nil, zerolog.Nop())

	err := p.SubscribeHostStatus(func() {})
	assert.ErrorContains(t, err, "not authorized")
}
