package ingest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/craftdeck/api/internal/domain"
)

// statLeaf is one flattened counter from a stats section.
type statLeaf struct {
	id       string
	category string
	name     string
	value    uint64
}

// ingestStats upserts player counters, skipping any leaf whose value equals
// the stored one. Definition ids and current values are bulk-loaded up front
// and threaded through as explicit per-request caches.
func (s *Service) ingestStats(ctx context.Context, at time.Time, payload map[string]map[string]domain.StatValue) error {
	known, err := s.stats.ListStatDefinitionIDs(ctx)
	if err != nil {
		return fmt.Errorf("load stat definitions: %w", err)
	}

	for player, categories := range payload {
		if player == "" || len(categories) == 0 {
			continue
		}
		leaves := flattenStats(categories)
		if len(leaves) == 0 {
			continue
		}
		ids := make([]string, len(leaves))
		for i, leaf := range leaves {
			ids[i] = leaf.id
		}
		current, err := s.stats.GetPlayerStatValues(ctx, player, ids)
		if err != nil {
			return fmt.Errorf("load stat values for %s: %w", player, err)
		}

		for _, leaf := range leaves {
			if _, seen := known[leaf.id]; !seen {
				def := domain.StatDefinition{
					ID:          leaf.id,
					Category:    leaf.category,
					StatName:    leaf.name,
					DisplayName: domain.HumanizeIdentifier(leaf.name),
				}
				if err := s.stats.UpsertStatDefinition(ctx, def); err != nil {
					return fmt.Errorf("register stat %s: %w", leaf.id, err)
				}
				known[leaf.id] = struct{}{}
			}
			if stored, ok := current[leaf.id]; ok && stored == leaf.value {
				continue
			}
			stat := domain.PlayerStat{
				Player:    player,
				StatID:    leaf.id,
				Value:     leaf.value,
				UpdatedAt: at,
			}
			if err := s.stats.UpsertPlayerStat(ctx, stat); err != nil {
				return fmt.Errorf("upsert stat %s for %s: %w", leaf.id, player, err)
			}
			current[leaf.id] = leaf.value
		}
	}
	return nil
}

// flattenStats expands the tagged category values into leaves in a
// deterministic order.
func flattenStats(categories map[string]domain.StatValue) []statLeaf {
	names := make([]string, 0, len(categories))
	for category := range categories {
		names = append(names, category)
	}
	sort.Strings(names)

	leaves := make([]statLeaf, 0, len(categories))
	for _, category := range names {
		value := categories[category]
		switch {
		case value.Total != nil:
			leaves = append(leaves, statLeaf{
				id:       domain.StatID(category, domain.StatTotalName),
				category: category,
				name:     domain.StatTotalName,
				value:    coerceCounter(*value.Total),
			})
		case len(value.Fields) > 0:
			fields := make([]string, 0, len(value.Fields))
			for name := range value.Fields {
				fields = append(fields, name)
			}
			sort.Strings(fields)
			for _, name := range fields {
				leaves = append(leaves, statLeaf{
					id:       domain.StatID(category, name),
					category: category,
					name:     name,
					value:    coerceCounter(value.Fields[name]),
				})
			}
		}
	}
	return leaves
}

// coerceCounter truncates the fractional part and clamps negatives to zero.
func coerceCounter(v float64) uint64 {
	if v <= 0 {
		return 0
	}
	return uint64(v)
}
