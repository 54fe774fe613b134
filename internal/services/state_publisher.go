package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/benmeehan/invoxia-agent/internal/constants"
	"github.com/benmeehan/invoxia-agent/internal/models"
	"github.com/benmeehan/invoxia-agent/internal/utils"
	"github.com/benmeehan/invoxia-agent/pkg/location"
	"github.com/benmeehan/invoxia-agent/pkg/mqtt"
)

// StateSource is the part of a tracker entity the publisher reads.
type StateSource interface {
	UniqueID() string
	Name() string
	Icon() string
	DeviceInfo() *models.DeviceInfo
	SourceType() string
	Snapshot() models.TrackerState
}

// StatePublisherInterface publishes tracker entities to the home-automation host.
type StatePublisherInterface interface {
	PublishDiscovery(src StateSource, objectID string) error
	PublishState(ctx context.Context, src StateSource) error
	PublishAvailability(uniqueID string, available bool) error
}

type cachedAddress struct {
	token   string
	address string
}

// StatePublisher exposes tracker entities as Home Assistant MQTT device trackers.
type StatePublisher struct {
	discoveryPrefix string
	baseTopic       string
	qos             int

	mqttClient mqtt.MQTTClient
	geocoder   location.Geocoder // optional
	logger     zerolog.Logger

	mu        sync.Mutex
	addresses map[string]cachedAddress // unique id → address of the last geocoded sample
}

var _ StatePublisherInterface = (*StatePublisher)(nil)

// NewStatePublisher creates a StatePublisher. geocoder may be nil.
func NewStatePublisher(discoveryPrefix, baseTopic string, qos int, mqttClient mqtt.MQTTClient,
	geocoder location.Geocoder, logger zerolog.Logger) *StatePublisher {
	return &StatePublisher{
		discoveryPrefix: discoveryPrefix,
		baseTopic:       baseTopic,
		qos:             qos,
		mqttClient:      mqttClient,
		geocoder:        geocoder,
		logger:          logger,
		addresses:       make(map[string]cachedAddress),
	}
}

// BridgeStatusTopic receives the agent's own online/offline status.
func (p *StatePublisher) BridgeStatusTopic() string {
	return p.baseTopic + "/status"
}

func (p *StatePublisher) attributesTopic(uniqueID string) string {
	return fmt.Sprintf("%s/%s/attributes", p.baseTopic, uniqueID)
}

func (p *StatePublisher) availabilityTopic(uniqueID string) string {
	return fmt.Sprintf("%s/%s/availability", p.baseTopic, uniqueID)
}

func (p *StatePublisher) discoveryTopic(uniqueID string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", p.discoveryPrefix, constants.EntityPlatform, utils.Slugify(p.baseTopic), uniqueID)
}

// PublishDiscovery announces the entity to the host. The entity is only
// available while both the bridge and the entity report online.
func (p *StatePublisher) PublishDiscovery(src StateSource, objectID string) error {
	uniqueID := src.UniqueID()
	cfg := models.DeviceTrackerConfig{
		Name:                src.Name(),
		// Prefixed to stay unique among other MQTT integrations; topics use the bare id.
		UniqueID:            constants.Domain + "_" + uniqueID,
		ObjectID:            objectID,
		JSONAttributesTopic: p.attributesTopic(uniqueID),
		Availability: []models.Availability{
			{Topic: p.BridgeStatusTopic()},
			{Topic: p.availabilityTopic(uniqueID)},
		},
		AvailabilityMode: "all",
		SourceType:       src.SourceType(),
		Icon:             src.Icon(),
		Device:           src.DeviceInfo(),
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize discovery config: %w", err)
	}

	topic := p.discoveryTopic(uniqueID)
	if err := p.publish(topic, true, payload); err != nil {
		p.logger.Error().Err(err).Str("topic", topic).Msg("Failed to publish discovery config")
		return err
	}

	p.logger.Debug().Str("topic", topic).Str("unique_id", uniqueID).Msg("Discovery config published")
	return nil
}

// PublishState publishes the entity's attributes followed by its availability.
func (p *StatePublisher) PublishState(ctx context.Context, src StateSource) error {
	state := src.Snapshot()
	if state.HasLocation() {
		state.Address = p.resolveAddress(ctx, state)
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to serialize tracker state: %w", err)
	}

	topic := p.attributesTopic(state.UniqueID)
	if err := p.publish(topic, true, payload); err != nil {
		p.logger.Error().Err(err).Str("topic", topic).Msg("Failed to publish tracker attributes")
		return err
	}

	if err := p.PublishAvailability(state.UniqueID, state.Available); err != nil {
		return err
	}

	p.logger.Debug().
		Str("unique_id", state.UniqueID).
		Bool("available", state.Available).
		Int("battery", state.BatteryLevel).
		Msg("Tracker state published")
	return nil
}

// PublishAvailability publishes online or offline for one entity.
func (p *StatePublisher) PublishAvailability(uniqueID string, available bool) error {
	payload := constants.PayloadOffline
	if available {
		payload = constants.PayloadOnline
	}

	topic := p.availabilityTopic(uniqueID)
	if err := p.publish(topic, true, payload); err != nil {
		p.logger.Error().Err(err).Str("topic", topic).Msg("Failed to publish availability")
		return err
	}
	return nil
}

// PublishBridgeStatus publishes the agent's own availability.
func (p *StatePublisher) PublishBridgeStatus(online bool) error {
	payload := constants.PayloadOffline
	if online {
		payload = constants.PayloadOnline
	}
	return p.publish(p.BridgeStatusTopic(), true, payload)
}

// SubscribeHostStatus calls onOnline whenever the host announces itself
// online on <discovery_prefix>/status, which happens after it restarts and
// has forgotten non-retained state.
func (p *StatePublisher) SubscribeHostStatus(onOnline func()) error {
	topic := p.discoveryPrefix + "/status"
	token := p.mqttClient.Subscribe(topic, byte(p.qos), func(_ paho.Client, msg paho.Message) {
		if string(msg.Payload()) != constants.PayloadOnline {
			return
		}
		p.logger.Info().Str("topic", topic).Msg("Host came online, republishing entities")
		onOnline()
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	return nil
}

// resolveAddress reverse geocodes a sample once and reuses the result until
// the entity accepts a new sample.
func (p *StatePublisher) resolveAddress(ctx context.Context, state models.TrackerState) string {
	if p.geocoder == nil {
		return ""
	}

	p.mu.Lock()
	cached, ok := p.addresses[state.UniqueID]
	p.mu.Unlock()
	if ok && cached.token == state.LocationToken {
		return cached.address
	}

	address, err := p.geocoder.ReverseGeocode(ctx, location.Location{
		Latitude:  state.Latitude,
		Longitude: state.Longitude,
		Accuracy:  float64(state.Accuracy),
	})
	if err != nil {
		if !errors.Is(err, location.ErrNoAddress) {
			p.logger.Warn().Err(err).Str("unique_id", state.UniqueID).Msg("Reverse geocoding failed")
			return ""
		}
		address = ""
	}

	p.mu.Lock()
	p.addresses[state.UniqueID] = cachedAddress{token: state.LocationToken, address: address}
	p.mu.Unlock()
	return address
}

func (p *StatePublisher) publish(topic string, retained bool, payload interface{}) error {
	token := p.mqttClient.Publish(topic, byte(p.qos), retained, payload)
	token.Wait()
	return token.Error()
}
