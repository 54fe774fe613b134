package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/benmeehan/invoxia-agent/internal/models"
)

// PolledEntity is an entity refreshed on a fixed interval and published afterwards.
type PolledEntity interface {
	StateSource
	Update(ctx context.Context)
	ScanInterval() time.Duration
}

// UpdateObserver is told about every refresh outcome.
type UpdateObserver interface {
	ObserveUpdate(state models.TrackerState, took time.Duration)
	ObserveSkipped(uniqueID string)
}

type nopObserver struct{}

func (nopObserver) ObserveUpdate(models.TrackerState, time.Duration) {}
func (nopObserver) ObserveSkipped(string)                            {}

// PollService periodically refreshes one entity and publishes its state.
// Pollers of one entry share a limiter that bounds how many refreshes run at
// once; a refresh waiting for the limiter keeps its turn.
type PollService struct {
	// Configuration fields
	interval      time.Duration
	updateTimeout time.Duration

	// Dependencies
	entity    PolledEntity
	limiter   *semaphore.Weighted // optional
	publisher StatePublisherInterface
	observer  UpdateObserver
	logger    zerolog.Logger

	// Internal state management
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	pending atomic.Bool // a refresh of this entity is waiting or running
}

// NewPollService creates a new PollService for entity. A nil limiter leaves
// refreshes unbounded.
func NewPollService(entity PolledEntity, updateTimeout time.Duration, limiter *semaphore.Weighted,
	publisher StatePublisherInterface, logger zerolog.Logger) *PollService {
	return &PollService{
		interval:      entity.ScanInterval(),
		updateTimeout: updateTimeout,
		entity:        entity,
		limiter:       limiter,
		publisher:     publisher,
		observer:      nopObserver{},
		logger:        logger.With().Str("unique_id", entity.UniqueID()).Logger(),
	}
}

// WithObserver reports refresh outcomes to o. It must be called before Start.
func (p *PollService) WithObserver(o UpdateObserver) *PollService {
	if o != nil {
		p.observer = o
	}
	return p
}

// Start begins polling. The first refresh happens one interval after Start.
func (p *PollService) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		p.logger.Warn().Msg("PollService is already running")
		return errors.New("poll service is already running")
	}
	if p.interval <= 0 {
		return errors.New("poll service needs a positive interval")
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.ctx, p.cancel = ctx, cancel
	p.running = true

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p.schedule(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	p.logger.Debug().Dur("interval", p.interval).Msg("PollService started")
	return nil
}

// schedule starts one refresh unless the previous refresh of this entity is
// still waiting or running.
func (p *PollService) schedule(ctx context.Context) {
	if !p.pending.CompareAndSwap(false, true) {
		p.logger.Warn().Msg("Previous update still pending, skipping this cycle")
		p.observer.ObserveSkipped(p.entity.UniqueID())
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.pending.Store(false)

		if p.limiter != nil {
			if err := p.limiter.Acquire(ctx, 1); err != nil {
				return
			}
			defer p.limiter.Release(1)
		}
		p.poll(ctx)
	}()
}

// Stop ends polling and waits for a refresh in progress, whose context is cancelled.
func (p *PollService) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		p.logger.Warn().Msg("PollService is not running")
		return errors.New("poll service is not running")
	}

	p.cancel()
	p.wg.Wait()
	p.running = false

	p.logger.Debug().Msg("PollService stopped")
	return nil
}

// PollOnce refreshes the entity and publishes the result.
func (p *PollService) PollOnce() {
	p.mu.Lock()
	parent := p.ctx
	p.mu.Unlock()
	if parent == nil {
		parent = context.Background()
	}
	p.poll(parent)
}

func (p *PollService) poll(parent context.Context) {
	if parent.Err() != nil {
		return
	}

	ctx, cancel := context.WithTimeout(parent, p.updateTimeout)
	defer cancel()

	started := time.Now()
	p.entity.Update(ctx)
	if parent.Err() != nil {
		// Stopped mid-update; the unload path publishes the final state.
		return
	}
	p.observer.ObserveUpdate(p.entity.Snapshot(), time.Since(started))

	if err := p.publisher.PublishState(ctx, p.entity); err != nil {
		p.logger.Error().Err(err).Msg("Failed to publish tracker state")
	}
}
