package platform

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/benmeehan/invoxia-agent/internal/constants"
	"github.com/benmeehan/invoxia-agent/internal/models"
	"github.com/benmeehan/invoxia-agent/internal/service_registry"
	"github.com/benmeehan/invoxia-agent/internal/services"
	"github.com/benmeehan/invoxia-agent/internal/utils"
)

// ErrEntryNotLoaded is returned when unloading an entry that has no entities.
var ErrEntryNotLoaded = errors.New("entry is not loaded")

// RegisteredEntity binds an entity to its host entity id and owning entry.
type RegisteredEntity struct {
	EntityID string
	EntryID  string
	Entity   TrackerEntity
}

// Observer receives refresh outcomes and is told when a tracker goes away.
type Observer interface {
	services.UpdateObserver
	Forget(uniqueID string)
}

type entryRuntime struct {
	services *service_registry.ServiceRegistry
	limiter  *semaphore.Weighted // bounds concurrent refreshes of the entry

	mu        sync.Mutex
	entityIDs []string
}

// EntityRegistry tracks the entities of every loaded entry and drives their polling.
type EntityRegistry struct {
	publisher       services.StatePublisherInterface
	parallelUpdates int
	updateTimeout   time.Duration
	disabled        map[string]struct{}
	observer        Observer // optional
	logger          zerolog.Logger

	entities  cmap.ConcurrentMap[string, *RegisteredEntity] // entity id → entity
	uniqueIDs cmap.ConcurrentMap[string, string]            // unique id → entity id
	entries   cmap.ConcurrentMap[string, *entryRuntime]     // entry id → runtime
}

// NewEntityRegistry creates an EntityRegistry. Entities whose unique id is in
// disabledTrackers are registered but never updated.
func NewEntityRegistry(publisher services.StatePublisherInterface, parallelUpdates int, updateTimeout time.Duration,
	disabledTrackers []string, logger zerolog.Logger) *EntityRegistry {
	if updateTimeout <= 0 {
		updateTimeout = constants.UpdateTimeout
	}
	if parallelUpdates < 1 {
		parallelUpdates = 1
	}
	return &EntityRegistry{
		publisher:       publisher,
		parallelUpdates: parallelUpdates,
		updateTimeout:   updateTimeout,
		disabled:        utils.SliceToSet(disabledTrackers),
		logger:          logger,
		entities:        cmap.New[*RegisteredEntity](),
		uniqueIDs:       cmap.New[string](),
		entries:         cmap.New[*entryRuntime](),
	}
}

// SetObserver reports the refreshes of entities added afterwards to o.
func (r *EntityRegistry) SetObserver(o Observer) {
	r.observer = o
}

// AddEntitiesFor returns the callback an entry's platform uses to hand over its entities.
func (r *EntityRegistry) AddEntitiesFor(entryID string) AddEntitiesFunc {
	return func(ctx context.Context, entities []TrackerEntity, updateBeforeAdd bool) ([]TrackerEntity, error) {
		return r.addEntities(ctx, entryID, entities, updateBeforeAdd)
	}
}

// AddEntities registers the entities of one entry, optionally refreshes them
// once, publishes them and starts their pollers. Entities whose unique id is
// already registered are ignored.
func (r *EntityRegistry) AddEntities(ctx context.Context, entryID string, entities []TrackerEntity, updateBeforeAdd bool) error {
	_, err := r.addEntities(ctx, entryID, entities, updateBeforeAdd)
	return err
}

func (r *EntityRegistry) addEntities(ctx context.Context, entryID string, entities []TrackerEntity,
	updateBeforeAdd bool) ([]TrackerEntity, error) {
	rt := &entryRuntime{
		services: service_registry.NewServiceRegistry(r.logger),
		limiter:  semaphore.NewWeighted(int64(r.parallelUpdates)),
	}
	if !r.entries.SetIfAbsent(entryID, rt) {
		return nil, fmt.Errorf("entities of entry %s are already registered", entryID)
	}

	accepted := make([]TrackerEntity, 0, len(entities))
	for _, entity := range entities {
		uniqueID := entity.UniqueID()
		if !r.uniqueIDs.SetIfAbsent(uniqueID, "") {
			r.logger.Warn().Str("entry_id", entryID).Str("unique_id", uniqueID).
				Msg("Entity with this unique id already exists, ignoring")
			continue
		}
		if _, off := r.disabled[uniqueID]; off {
			entity.SetEnabled(false)
		}
		accepted = append(accepted, entity)
	}

	if updateBeforeAdd {
		r.updateAll(ctx, accepted)
	}

	for _, entity := range accepted {
		entityID := r.register(entryID, entity)
		r.uniqueIDs.Set(entity.UniqueID(), entityID)
		rt.mu.Lock()
		rt.entityIDs = append(rt.entityIDs, entityID)
		rt.mu.Unlock()

		r.publish(ctx, entityID, entity)

		if entity.Enabled() && entity.ShouldPoll() {
			poller := services.NewPollService(entity, r.updateTimeout, rt.limiter, r.publisher, r.logger)
			if r.observer != nil {
				poller.WithObserver(r.observer)
			}
			rt.services.RegisterService(entityID, poller)
		}
	}

	if err := rt.services.StartServices(); err != nil {
		_ = r.UnloadEntry(entryID)
		return nil, fmt.Errorf("start pollers of entry %s: %w", entryID, err)
	}

	r.logger.Info().
		Str("entry_id", entryID).
		Int("entities", len(accepted)).
		Int("pollers", rt.services.Len()).
		Msg("Tracker entities added")
	return accepted, nil
}

// updateAll runs the first refresh of every enabled entity, at most
// parallelUpdates at a time, and returns once all of them finished.
func (r *EntityRegistry) updateAll(ctx context.Context, entities []TrackerEntity) {
	pool := utils.NewWorkerPool(r.parallelUpdates)
	for _, entity := range entities {
		if !entity.Enabled() {
			continue
		}
		entity := entity
		pool.Submit(func() {
			updateCtx, cancel := context.WithTimeout(ctx, r.updateTimeout)
			defer cancel()

			started := time.Now()
			entity.Update(updateCtx)
			if r.observer != nil {
				r.observer.ObserveUpdate(entity.Snapshot(), time.Since(started))
			}
		})
	}
	pool.Shutdown()
}

// register assigns the entity a free device_tracker.<slug> id.
func (r *EntityRegistry) register(entryID string, entity TrackerEntity) string {
	base := constants.EntityPlatform + "." + utils.Slugify(entity.Name())
	reg := &RegisteredEntity{EntryID: entryID, Entity: entity}

	entityID := base
	for n := 2; ; n++ {
		reg.EntityID = entityID
		if r.entities.SetIfAbsent(entityID, reg) {
			return entityID
		}
		entityID = base + "_" + strconv.Itoa(n)
	}
}

func (r *EntityRegistry) publish(ctx context.Context, entityID string, entity TrackerEntity) {
	objectID := strings.TrimPrefix(entityID, constants.EntityPlatform+".")
	if err := r.publisher.PublishDiscovery(entity, objectID); err != nil {
		r.logger.Warn().Err(err).Str("entity_id", entityID).Msg("Failed to announce entity")
	}

	if !entity.Enabled() {
		if err := r.publisher.PublishAvailability(entity.UniqueID(), false); err != nil {
			r.logger.Warn().Err(err).Str("entity_id", entityID).Msg("Failed to publish availability")
		}
		return
	}
	if err := r.publisher.PublishState(ctx, entity); err != nil {
		r.logger.Warn().Err(err).Str("entity_id", entityID).Msg("Failed to publish initial state")
	}
}

// RepublishAll announces every registered entity again with its current state.
func (r *EntityRegistry) RepublishAll(ctx context.Context) {
	for _, reg := range r.entities.Items() {
		r.publish(ctx, reg.EntityID, reg.Entity)
	}
}

// UnloadEntry stops the pollers of an entry, marks its entities offline and
// forgets them. The entry is forgotten even if a poller fails to stop; a nil
// error means it unloaded cleanly.
func (r *EntityRegistry) UnloadEntry(entryID string) error {
	rt, ok := r.entries.Pop(entryID)
	if !ok {
		return fmt.Errorf("unload %s: %w", entryID, ErrEntryNotLoaded)
	}

	stopErr := rt.services.StopServices()

	rt.mu.Lock()
	entityIDs := rt.entityIDs
	rt.mu.Unlock()

	for _, entityID := range entityIDs {
		reg, ok := r.entities.Pop(entityID)
		if !ok {
			continue
		}
		uniqueID := reg.Entity.UniqueID()
		r.uniqueIDs.Remove(uniqueID)
		if r.observer != nil {
			r.observer.Forget(uniqueID)
		}
		if err := r.publisher.PublishAvailability(uniqueID, false); err != nil {
			r.logger.Warn().Err(err).Str("entity_id", entityID).Msg("Failed to mark entity offline")
		}
	}

	if stopErr != nil {
		return fmt.Errorf("unload %s: %w", entryID, stopErr)
	}

	r.logger.Info().Str("entry_id", entryID).Int("entities", len(entityIDs)).Msg("Entry unloaded")
	return nil
}

// Entity returns the registered entity with the given entity id.
func (r *EntityRegistry) Entity(entityID string) (*RegisteredEntity, bool) {
	return r.entities.Get(entityID)
}

// State returns the current snapshot of an entity.
func (r *EntityRegistry) State(entityID string) (models.TrackerState, bool) {
	reg, ok := r.entities.Get(entityID)
	if !ok {
		return models.TrackerState{}, false
	}
	return reg.Entity.Snapshot(), true
}

// EntityCount returns the number of registered entities across all entries.
func (r *EntityRegistry) EntityCount() int {
	return r.entities.Count()
}

// EntityIDs lists the entity ids of an entry in registration order.
func (r *EntityRegistry) EntityIDs(entryID string) []string {
	rt, ok := r.entries.Get(entryID)
	if !ok {
		return nil
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return append([]string(nil), rt.entityIDs...)
}

// LoadedEntries returns the ids of all entries with registered entities.
func (r *EntityRegistry) LoadedEntries() []string {
	ids := r.entries.Keys()
	sort.Strings(ids)
	return ids
}
