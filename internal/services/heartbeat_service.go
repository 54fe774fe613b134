package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/benmeehan/invoxia-agent/internal/constants"
	"github.com/benmeehan/invoxia-agent/internal/metrics_collectors"
	"github.com/benmeehan/invoxia-agent/internal/models"
	"github.com/benmeehan/invoxia-agent/pkg/mqtt"
)

// BridgeStats reports what the agent is currently serving.
type BridgeStats interface {
	LoadedEntries() []string
	EntityCount() int
}

// HeartbeatService periodically publishes the agent's health on <base_topic>/bridge.
type HeartbeatService struct {
	PubTopic   string
	Interval   time.Duration
	QOS        int
	MqttClient mqtt.MQTTClient
	Stats      BridgeStats
	Collector  metrics_collectors.MetricCollector // optional
	Logger     zerolog.Logger

	started time.Time
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewHeartbeatService initializes a new HeartbeatService. collector may be nil.
func NewHeartbeatService(pubTopic string, interval time.Duration, qos int, mqttClient mqtt.MQTTClient,
	stats BridgeStats, collector metrics_collectors.MetricCollector, logger zerolog.Logger) *HeartbeatService {

	return &HeartbeatService{
		PubTopic:   pubTopic,
		Interval:   interval,
		QOS:        qos,
		MqttClient: mqttClient,
		Stats:      stats,
		Collector:  collector,
		Logger:     logger,
	}
}

// Start publishes a first heartbeat and launches the heartbeat loop in a separate goroutine.
func (h *HeartbeatService) Start() error {
	if h.ctx != nil {
		h.Logger.Warn().Msg("HeartbeatService is already running")
		return errors.New("heartbeat service is already running")
	}

	h.started = time.Now()
	h.ctx, h.cancel = context.WithCancel(context.Background())

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.publishHeartbeat()
		h.runHeartbeatLoop()
	}()

	h.Logger.Info().Str("topic", h.PubTopic).Dur("interval", h.Interval).Msg("HeartbeatService started successfully")
	return nil
}

// Stop gracefully stops the heartbeat service.
func (h *HeartbeatService) Stop() error {
	if h.ctx == nil {
		h.Logger.Warn().Msg("HeartbeatService is not running")
		return errors.New("heartbeat service is not running")
	}

	h.cancel()
	h.wg.Wait()

	h.ctx = nil
	h.cancel = nil

	h.Logger.Info().Msg("HeartbeatService stopped successfully")
	return nil
}

// runHeartbeatLoop continuously sends heartbeat messages at the specified interval.
func (h *HeartbeatService) runHeartbeatLoop() {
	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.publishHeartbeat()
		case <-h.ctx.Done():
			h.Logger.Info().Msg("HeartbeatService stopping gracefully")
			return
		}
	}
}

func (h *HeartbeatService) publishHeartbeat() {
	heartbeatMessage := models.BridgeHeartbeat{
		Status:    constants.PayloadOnline,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.started).Seconds(),
		Entries:   len(h.Stats.LoadedEntries()),
		Entities:  h.Stats.EntityCount(),
	}

	if h.Collector != nil {
		metrics, err := h.Collector.Collect(h.ctx)
		if err != nil {
			h.Logger.Warn().Err(err).Str("collector", h.Collector.Name()).Msg("Failed to collect process metrics")
		} else {
			heartbeatMessage.Process = metrics
		}
	}

	payload, err := json.Marshal(heartbeatMessage)
	if err != nil {
		h.Logger.Error().Err(err).Msg("Failed to serialize heartbeat message")
		return
	}

	token := h.MqttClient.Publish(h.PubTopic, byte(h.QOS), true, payload)
	token.Wait()

	if err := token.Error(); err != nil {
		h.Logger.Error().Err(err).Msg("Failed to publish heartbeat message")
	} else {
		h.Logger.Debug().Msg("Heartbeat published successfully")
	}
}
