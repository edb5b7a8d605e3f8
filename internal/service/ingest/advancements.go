package ingest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/craftdeck/api/internal/domain"
)

// ingestAdvancements promotes novel unlocks. The plugin resends each
// player's entire advancement state on every heartbeat, so the engine diffs
// against one bulk read of already-done ids and writes only the delta.
func (s *Service) ingestAdvancements(ctx context.Context, at time.Time, sections map[string]domain.AdvancementSection) error {
	for player, section := range sections {
		if player == "" || len(section.Details) == 0 {
			continue
		}
		done, err := s.advancements.ListCompletedAdvancementIDs(ctx, player)
		if err != nil {
			return fmt.Errorf("load completed advancements for %s: %w", player, err)
		}
		novel := make([]string, 0)
		for id, state := range section.Details {
			if !state.Done {
				continue
			}
			if _, already := done[id]; already {
				continue
			}
			novel = append(novel, id)
		}
		if len(novel) == 0 {
			continue
		}
		sort.Strings(novel)

		unlocks := make([]domain.PlayerAdvancement, 0, len(novel))
		for _, id := range novel {
			if err := s.advancements.UpsertAdvancementDefinition(ctx, definitionFromState(id, section.Details[id])); err != nil {
				return fmt.Errorf("register advancement %s: %w", id, err)
			}
			unlocks = append(unlocks, domain.PlayerAdvancement{
				Player:        player,
				AdvancementID: id,
				Done:          true,
				UpdatedAt:     at,
			})
		}
		if err := s.advancements.UpsertPlayerAdvancements(ctx, unlocks); err != nil {
			return fmt.Errorf("record unlocks for %s: %w", player, err)
		}
		if s.logger != nil {
			s.logger.Info("recorded novel unlocks", "player", player, "count", len(unlocks))
		}
	}
	return nil
}

func definitionFromState(id string, state domain.AdvancementState) domain.AdvancementDefinition {
	title := state.Title
	if title == "" {
		title = domain.HumanizeIdentifier(id)
	}
	return domain.AdvancementDefinition{
		ID:          id,
		Title:       title,
		Description: state.Description,
		Category:    state.Category,
		Icon:        state.Icon,
	}
}
