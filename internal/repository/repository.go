package repository

import (
	"context"
	"time"

	"github.com/craftdeck/api/internal/domain"
)

// SampleRepository persists one metrics row per minute bucket.
type SampleRepository interface {
	UpsertSample(ctx context.Context, sample domain.Sample) error
	ListSamplesSince(ctx context.Context, since time.Time) ([]domain.Sample, error)
	DeleteSamplesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// StatRepository manages statistic definitions and per-player counters.
type StatRepository interface {
	ListStatDefinitionIDs(ctx context.Context) (map[string]struct{}, error)
	UpsertStatDefinition(ctx context.Context, def domain.StatDefinition) error
	GetPlayerStatValues(ctx context.Context, player string, statIDs []string) (map[string]uint64, error)
	UpsertPlayerStat(ctx context.Context, stat domain.PlayerStat) error
}

// AdvancementRepository manages achievement definitions and per-player unlocks.
type AdvancementRepository interface {
	ListCompletedAdvancementIDs(ctx context.Context, player string) (map[string]struct{}, error)
	UpsertAdvancementDefinition(ctx context.Context, def domain.AdvancementDefinition) error
	UpsertPlayerAdvancement(ctx context.Context, unlock domain.PlayerAdvancement) error
	UpsertPlayerAdvancements(ctx context.Context, unlocks []domain.PlayerAdvancement) error
}
