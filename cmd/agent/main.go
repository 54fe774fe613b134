package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/benmeehan/invoxia-agent/internal/constants"
	"github.com/benmeehan/invoxia-agent/internal/entries"
	"github.com/benmeehan/invoxia-agent/internal/integration"
	"github.com/benmeehan/invoxia-agent/internal/metrics_collectors"
	"github.com/benmeehan/invoxia-agent/internal/observability"
	"github.com/benmeehan/invoxia-agent/internal/platform"
	"github.com/benmeehan/invoxia-agent/internal/service_registry"
	"github.com/benmeehan/invoxia-agent/internal/services"
	"github.com/benmeehan/invoxia-agent/internal/utils"
	"github.com/benmeehan/invoxia-agent/pkg/file"
	"github.com/benmeehan/invoxia-agent/pkg/location"
	"github.com/benmeehan/invoxia-agent/pkg/mqtt"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	// Set up structured logging with JSON output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Load configuration from file
	fileClient := file.NewFileService()
	config, err := utils.LoadConfig(*configPath, fileClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(config.Logging.Level)
	if err != nil {
		logger.Warn().Str("level", config.Logging.Level).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	logger = logger.Level(level)

	store := entries.NewStore(config.Integration.EntriesFile, fileClient, logger)
	if err := store.Load(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to load config entries")
	}

	clientFactory := integration.NewClientFactory(config.Integration.RequestTimeout, logger)

	switch cmd := flag.Arg(0); cmd {
	case "add":
		os.Exit(runAdd(flag.Args()[1:], store, clientFactory, logger))
	case "", "run":
		run(config, store, clientFactory, fileClient, logger)
	default:
		logger.Fatal().Str("command", cmd).Msg("Unknown command, expected run or add")
	}
}

func run(config *utils.Config, store *entries.Store, clientFactory integration.ClientFactory,
	fileClient file.FileOperations, logger zerolog.Logger) {
	// Generate a unique MQTT Client ID by appending a UUID
	config.MQTT.ClientID = config.MQTT.ClientID + "-" + uuid.New().String()
	logger.Info().Str("client_id", config.MQTT.ClientID).Msg("Using MQTT Client ID")

	var geocoder location.Geocoder
	if config.Geocoding.Enabled {
		g, err := location.NewGoogleGeocoder(config.Geocoding.MapsAPIKey, config.Geocoding.Language)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create Google geocoder")
		}
		geocoder = g
	}

	// Initialize the shared MQTT connection
	mqttClient := mqtt.NewMqttService(fileClient)
	publisher := services.NewStatePublisher(config.MQTT.DiscoveryPrefix, config.MQTT.BaseTopic, config.MQTT.QOS,
		mqttClient, geocoder, logger)

	err := mqttClient.Initialize(mqtt.ConnectionOptions{
		Broker:        config.MQTT.Broker,
		ClientID:      config.MQTT.ClientID,
		Username:      config.MQTT.Username,
		Password:      config.MQTT.Password,
		CACertificate: config.MQTT.CACertificate,
		WillTopic:     publisher.BridgeStatusTopic(),
		WillPayload:   constants.PayloadOffline,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize MQTT connection")
	}

	if err := publisher.PublishBridgeStatus(true); err != nil {
		logger.Error().Err(err).Msg("Failed to publish bridge status")
	}

	registry := platform.NewEntityRegistry(publisher, config.Integration.ParallelUpdates, 0,
		config.Integration.DisabledTrackers, logger)
	var trackerMetrics *observability.TrackerMetrics
	if config.Metrics.Enabled {
		trackerMetrics = observability.NewTrackerMetrics()
		registry.SetObserver(trackerMetrics)
	}
	integ := integration.New(registry, clientFactory, config.Integration.ScanInterval, logger)

	// Handlers run on the client's router goroutine and must not wait on publishes
	republish := func() { go registry.RepublishAll(context.Background()) }
	if err := publisher.SubscribeHostStatus(republish); err != nil {
		logger.Warn().Err(err).Msg("Entities will not be republished when Home Assistant restarts")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	all := store.All()
	if len(all) == 0 {
		logger.Warn().Msg("No config entries, add one with the add command")
	}
	for _, entry := range all {
		// A failing entry does not keep the others from running.
		if err := integ.SetupEntry(ctx, entry); err != nil {
			logger.Error().Err(err).Str("entry_id", entry.EntryID).Msg("Skipping config entry")
		}
	}

	// Bridge-level services run next to the per-entry pollers
	bridgeServices := service_registry.NewServiceRegistry(logger)
	if config.Heartbeat.Enabled {
		var collector metrics_collectors.MetricCollector
		if config.Heartbeat.ProcessMetrics {
			c, err := metrics_collectors.NewProcessMetricCollector(logger)
			if err != nil {
				logger.Warn().Err(err).Msg("Process metrics disabled")
			} else {
				collector = c
			}
		}
		bridgeServices.RegisterService("heartbeat", services.NewHeartbeatService(
			config.MQTT.BaseTopic+"/bridge",
			config.Heartbeat.Interval,
			config.MQTT.QOS,
			mqttClient,
			registry,
			collector,
			logger,
		))
	}
	if trackerMetrics != nil {
		bridgeServices.RegisterService("metrics", services.NewMetricsServer(
			config.Metrics.Addr,
			trackerMetrics.Handler(),
			logger,
		))
	}
	if err := bridgeServices.StartServices(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start bridge services")
	}

	logger.Info().Strs("entries", registry.LoadedEntries()).Msg("Agent started")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	logger.Info().Msg("Shutting down gracefully...")
	if err := bridgeServices.StopServices(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop bridge services")
	}
	if err := integ.UnloadAll(); err != nil {
		logger.Error().Err(err).Msg("Failed to unload all entries")
	}
	if err := publisher.PublishBridgeStatus(false); err != nil {
		logger.Error().Err(err).Msg("Failed to publish bridge status")
	}
	mqttClient.Disconnect(250)
}
