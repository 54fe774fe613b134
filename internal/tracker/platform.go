package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/benmeehan/invoxia-agent/internal/platform"
	"github.com/benmeehan/invoxia-agent/pkg/gpstracker"
)

// SetupEntry lists the account's trackers once, creates one entity per
// tracker and hands them to the host with an update before add.
func SetupEntry(
	ctx context.Context,
	client gpstracker.ClientInterface,
	scanInterval time.Duration,
	addEntities platform.AddEntitiesFunc,
	logger zerolog.Logger,
) ([]*GpsTrackerEntity, error) {
	trackers, err := client.GetTrackers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list trackers: %w", err)
	}

	entities := make([]*GpsTrackerEntity, 0, len(trackers))
	added := make([]platform.TrackerEntity, 0, len(trackers))
	for _, t := range trackers {
		if !t.IsTracker() {
			logger.Debug().Int64("device_id", t.ID).Str("type", t.Type).Msg("Ignoring non-tracker device")
			continue
		}
		entity := NewGpsTrackerEntity(client, t, scanInterval, logger)
		entities = append(entities, entity)
		added = append(added, entity)
	}

	accepted, err := addEntities(ctx, added, true)
	if err != nil {
		return nil, fmt.Errorf("add tracker entities: %w", err)
	}
	if len(accepted) < len(entities) {
		// Trackers already served by another entry stay with that entry.
		entities = keepAccepted(entities, accepted)
	}

	logger.Info().Int("trackers", len(entities)).Msg("Tracker platform set up")
	return entities, nil
}

func keepAccepted(entities []*GpsTrackerEntity, accepted []platform.TrackerEntity) []*GpsTrackerEntity {
	keep := make(map[platform.TrackerEntity]struct{}, len(accepted))
	for _, e := range accepted {
		keep[e] = struct{}{}
	}
	kept := entities[:0]
	for _, e := range entities {
		if _, found := keep[e]; found {
			kept = append(kept, e)
		}
	}
	return kept
}
