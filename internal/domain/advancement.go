package domain

import "time"

// AdvancementDefinition describes one achievement. Registered lazily when a
// player first unlocks it.
type AdvancementDefinition struct {
	ID          string
	Title       string
	Description string
	Category    string
	Icon        string
}

// PlayerAdvancement records an unlock. Done only ever transitions false to
// true through the ingestion pipeline.
type PlayerAdvancement struct {
	Player        string
	AdvancementID string
	Done          bool
	UpdatedAt     time.Time
}
