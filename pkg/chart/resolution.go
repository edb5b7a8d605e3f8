package chart

import (
	"fmt"
	"time"
)

// Resolution selects the chart window and its slot width.
type Resolution string

const (
	// ResolutionMinute renders 60 one-second slots and expects live cadence.
	ResolutionMinute Resolution = "1m"
	// ResolutionHour renders 60 one-minute slots.
	ResolutionHour Resolution = "1h"
	// ResolutionDay renders 288 five-minute slots.
	ResolutionDay Resolution = "24h"
)

// StalenessThreshold is the maximum age of a last-known sample before
// forward-fill is abandoned in favor of zeroed slots. Chosen to comfortably
// exceed the 60-second durable sampling cadence.
const StalenessThreshold = 90 * time.Second

// ParseResolution validates a window token.
func ParseResolution(token string) (Resolution, error) {
	switch Resolution(token) {
	case ResolutionMinute, ResolutionHour, ResolutionDay:
		return Resolution(token), nil
	}
	return "", fmt.Errorf("unknown resolution %q", token)
}

// Step is the slot width.
func (r Resolution) Step() time.Duration {
	switch r {
	case ResolutionMinute:
		return time.Second
	case ResolutionHour:
		return time.Minute
	default:
		return 5 * time.Minute
	}
}

// Slots is the fixed number of chart points.
func (r Resolution) Slots() int {
	switch r {
	case ResolutionDay:
		return 288
	default:
		return 60
	}
}

// Window is the total time span covered.
func (r Resolution) Window() time.Duration {
	return time.Duration(r.Slots()) * r.Step()
}

// LivenessBudget is the resolution-relative staleness budget: how old the
// newest sample may be before the feed is no longer considered live.
func (r Resolution) LivenessBudget() time.Duration {
	if r == ResolutionMinute {
		return 5 * time.Second
	}
	return StalenessThreshold
}
