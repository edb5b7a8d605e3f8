package domain

import (
	"strings"
	"time"
)

// StatTotalName is the reserved sub-counter name for a category reported as
// a bare number.
const StatTotalName = "total"

// StatDefinition describes one named counter. Created lazily on first
// sighting and immutable thereafter.
type StatDefinition struct {
	ID          string
	Category    string
	StatName    string
	DisplayName string
}

// PlayerStat is the current value of one counter for one player.
type PlayerStat struct {
	Player    string
	StatID    string
	Value     uint64
	UpdatedAt time.Time
}

// StatID derives the composite identifier for a category/name pair.
func StatID(category, name string) string {
	return category + ":" + name
}

// HumanizeIdentifier derives a display name from a namespaced identifier by
// taking the last path segment and replacing underscores with spaces, e.g.
// "minecraft:mined.minecraft:stone_bricks" becomes "stone bricks".
func HumanizeIdentifier(id string) string {
	last := id
	for _, sep := range []byte{':', '/', '.'} {
		if idx := strings.LastIndexByte(last, sep); idx >= 0 {
			last = last[idx+1:]
		}
	}
	return strings.ReplaceAll(last, "_", " ")
}
