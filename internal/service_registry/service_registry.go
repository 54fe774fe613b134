package service_registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Service is the interface for everything the registry starts and stops.
type Service interface {
	Start() error
	Stop() error
}

// ServiceRegistry manages the lifecycle of a group of services.
type ServiceRegistry struct {
	mu          sync.Mutex
	services    map[string]Service // Stores registered services
	serviceKeys []string           // Maintains order of service registration
	started     []string           // Services currently running, in start order
	Logger      zerolog.Logger
}

// NewServiceRegistry initializes an empty service registry.
func NewServiceRegistry(logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services: make(map[string]Service),
		Logger:   logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc Service) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Debug().Msgf("Registered service: %s", name)
}

// Len returns the number of registered services.
func (sr *ServiceRegistry) Len() int {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	return len(sr.serviceKeys)
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Debug().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			// Stop already started services before returning
			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		startedServices = append(startedServices, name)
	}

	sr.started = startedServices
	return nil
}

// StopServices stops all started services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	var stopErrors []error
	for i := len(sr.started) - 1; i >= 0; i-- {
		name := sr.started[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	sr.started = nil

	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}
