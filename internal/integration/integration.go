// Package integration sets up and tears down config entries: one vendor
// client per entry, shared by the tracker entities of that entry.
package integration

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"

	"github.com/benmeehan/invoxia-agent/internal/entries"
	"github.com/benmeehan/invoxia-agent/internal/platform"
	"github.com/benmeehan/invoxia-agent/internal/tracker"
	"github.com/benmeehan/invoxia-agent/pkg/gpstracker"
)

// ClientFactory builds the vendor client of an entry.
type ClientFactory func(cfg gpstracker.Config) gpstracker.ClientInterface

// EntityHost receives the entities of an entry and unloads them again.
type EntityHost interface {
	AddEntitiesFor(entryID string) platform.AddEntitiesFunc
	UnloadEntry(entryID string) error
}

// EntryContext is the runtime state of a loaded entry.
type EntryContext struct {
	Config   gpstracker.Config
	Client   gpstracker.ClientInterface
	Entities []*tracker.GpsTrackerEntity
}

// Integration owns the runtime state of every loaded entry.
type Integration struct {
	host         EntityHost
	newClient    ClientFactory
	scanInterval time.Duration
	logger       zerolog.Logger

	data cmap.ConcurrentMap[string, *EntryContext] // entry id → context
}

// NewClientFactory returns a factory for HTTP vendor clients with the given request timeout.
func NewClientFactory(requestTimeout time.Duration, logger zerolog.Logger) ClientFactory {
	return func(cfg gpstracker.Config) gpstracker.ClientInterface {
		return gpstracker.NewClient(cfg,
			gpstracker.WithHTTPClient(&http.Client{Timeout: requestTimeout}),
			gpstracker.WithLogger(logger.With().Str("component", "gpstracker").Logger()),
		)
	}
}

// New creates an Integration.
func New(host EntityHost, newClient ClientFactory, scanInterval time.Duration, logger zerolog.Logger) *Integration {
	return &Integration{
		host:         host,
		newClient:    newClient,
		scanInterval: scanInterval,
		logger:       logger,
		data:         cmap.New[*EntryContext](),
	}
}

// SetupEntry creates the entry's client and forwards setup to the tracker platform.
func (i *Integration) SetupEntry(ctx context.Context, entry entries.ConfigEntry) error {
	logger := i.logger.With().Str("entry_id", entry.EntryID).Str("title", entry.Title).Logger()

	cfg := gpstracker.Config{
		APIURL:   entry.Data.URL,
		Username: entry.Data.Username,
		Password: entry.Data.Password,
	}
	entryCtx := &EntryContext{Config: cfg}
	if !i.data.SetIfAbsent(entry.EntryID, entryCtx) {
		return fmt.Errorf("entry %s is already set up", entry.EntryID)
	}
	entryCtx.Client = i.newClient(cfg)

	entities, err := tracker.SetupEntry(ctx, entryCtx.Client, i.scanInterval, i.host.AddEntitiesFor(entry.EntryID), logger)
	if err != nil {
		i.data.Remove(entry.EntryID)
		if closeErr := entryCtx.Client.Close(); closeErr != nil {
			logger.Warn().Err(closeErr).Msg("Failed to close client")
		}
		logger.Error().Err(err).Msg("Entry setup failed")
		return fmt.Errorf("setup entry %s: %w", entry.EntryID, err)
	}
	entryCtx.Entities = entities

	logger.Info().Int("trackers", len(entities)).Msg("Entry set up")
	return nil
}

// UnloadEntry unloads the entry's entities. The client is closed and the
// context dropped only if that succeeded or the entities were already gone.
func (i *Integration) UnloadEntry(entryID string) error {
	entryCtx, ok := i.data.Get(entryID)
	if !ok {
		return fmt.Errorf("unload %s: %w", entryID, platform.ErrEntryNotLoaded)
	}

	// The host forgets an entry even when unloading it fails, so a retry
	// finds nothing left to unload.
	if err := i.host.UnloadEntry(entryID); err != nil && !errors.Is(err, platform.ErrEntryNotLoaded) {
		i.logger.Error().Err(err).Str("entry_id", entryID).Msg("Entry unload failed")
		return err
	}

	if err := entryCtx.Client.Close(); err != nil {
		i.logger.Warn().Err(err).Str("entry_id", entryID).Msg("Failed to close client")
	}
	i.data.Remove(entryID)
	return nil
}

// UnloadAll unloads every loaded entry.
func (i *Integration) UnloadAll() error {
	var errs []error
	for _, entryID := range i.data.Keys() {
		if err := i.UnloadEntry(entryID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Entry returns the runtime state of a loaded entry.
func (i *Integration) Entry(entryID string) (*EntryContext, bool) {
	return i.data.Get(entryID)
}
