// Package chart reconstructs an evenly spaced, gap-tolerant series from
// irregular telemetry samples. It is a pure fold over already-fetched data:
// safe to recompute on every live tick, no I/O, no shared state.
package chart

import (
	"sort"
	"time"
)

// Sample is one telemetry reading, either from the historical read API or
// the live feed.
type Sample struct {
	Timestamp     time.Time
	Status        string
	TPS           float64
	TickMillis    float64
	CPUPercent    float64
	PlayersOnline int
	MemoryUsed    uint64
	BytesSent     uint64
	BytesReceived uint64
	StartedAtMS   int64
}

// Point is one chart slot. Real reports whether a sample landed within the
// slot's tolerance band; synthetic points carry forward-filled or zeroed
// values.
type Point struct {
	Timestamp     time.Time
	Real          bool
	TPS           float64
	CPUPercent    float64
	PlayersOnline int
	MemoryUsed    uint64
	// UploadRate and DownloadRate are derived bytes-per-second, computed
	// from consecutive raw cumulative counters. Never negative.
	UploadRate   float64
	DownloadRate float64
}

// Build folds samples into the fixed slot sequence for a resolution. The
// slot walk only covers the bounded current window regardless of how much
// history is supplied.
func Build(samples []Sample, res Resolution, now time.Time) []Point {
	sorted := Normalize(samples)
	step := res.Step()
	slots := res.Slots()
	tolerance := time.Duration(float64(step) / 1.5)

	// Quantizing the window end keeps coarse charts from jittering on
	// every rebuild; the minute view tracks "now" exactly.
	end := now
	if res != ResolutionMinute {
		end = now.Truncate(step)
	}

	points := make([]Point, 0, slots)
	for i := 0; i < slots; i++ {
		slotTime := end.Add(-time.Duration(slots-1-i) * step)
		point := Point{Timestamp: slotTime}

		if idx, ok := nearestWithin(sorted, slotTime, tolerance); ok {
			s := sorted[idx]
			point.Real = true
			point.TPS = s.TPS
			point.CPUPercent = s.CPUPercent
			point.PlayersOnline = s.PlayersOnline
			point.MemoryUsed = s.MemoryUsed
			if idx > 0 {
				prev := sorted[idx-1]
				elapsed := s.Timestamp.Sub(prev.Timestamp).Seconds()
				point.UploadRate = counterRate(s.BytesSent, prev.BytesSent, elapsed)
				point.DownloadRate = counterRate(s.BytesReceived, prev.BytesReceived, elapsed)
			}
			points = append(points, point)
			continue
		}

		// Gap: forward-fill from the last known sample while it is fresh
		// enough, otherwise leave the slot zeroed. No rate can be computed
		// across a gap.
		if idx := latestAtOrBefore(sorted, slotTime); idx >= 0 {
			last := sorted[idx]
			if slotTime.Sub(last.Timestamp) < StalenessThreshold {
				point.TPS = last.TPS
				point.CPUPercent = last.CPUPercent
				point.PlayersOnline = last.PlayersOnline
				point.MemoryUsed = last.MemoryUsed
			}
		}
		points = append(points, point)
	}
	return points
}

// Live reports whether the newest sample is within the resolution's
// staleness budget of now.
func Live(samples []Sample, res Resolution, now time.Time) bool {
	newest, ok := Newest(samples)
	if !ok {
		return false
	}
	return now.Sub(newest.Timestamp) < res.LivenessBudget()
}

// Newest returns the most recent sample.
func Newest(samples []Sample) (Sample, bool) {
	if len(samples) == 0 {
		return Sample{}, false
	}
	newest := samples[0]
	for _, s := range samples[1:] {
		if s.Timestamp.After(newest.Timestamp) {
			newest = s
		}
	}
	return newest, true
}

// Normalize returns a timestamp-sorted copy with duplicate timestamps
// collapsed (the later occurrence wins, matching last-write-wins storage).
func Normalize(samples []Sample) []Sample {
	if len(samples) == 0 {
		return nil
	}
	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	deduped := sorted[:1]
	for _, s := range sorted[1:] {
		if s.Timestamp.Equal(deduped[len(deduped)-1].Timestamp) {
			deduped[len(deduped)-1] = s
			continue
		}
		deduped = append(deduped, s)
	}
	return deduped
}

// nearestWithin finds the sample closest to t, if any lies within the
// tolerance band.
func nearestWithin(sorted []Sample, t time.Time, tolerance time.Duration) (int, bool) {
	if len(sorted) == 0 {
		return 0, false
	}
	idx := sort.Search(len(sorted), func(i int) bool {
		return !sorted[i].Timestamp.Before(t)
	})
	best := -1
	var bestDist time.Duration
	for _, candidate := range []int{idx - 1, idx} {
		if candidate < 0 || candidate >= len(sorted) {
			continue
		}
		dist := absDuration(sorted[candidate].Timestamp.Sub(t))
		if dist > tolerance {
			continue
		}
		if best == -1 || dist < bestDist {
			best = candidate
			bestDist = dist
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}

// latestAtOrBefore returns the index of the newest sample not after t, or -1.
func latestAtOrBefore(sorted []Sample, t time.Time) int {
	idx := sort.Search(len(sorted), func(i int) bool {
		return sorted[i].Timestamp.After(t)
	})
	return idx - 1
}

// counterRate derives bytes-per-second from two cumulative readings,
// floored at zero to absorb counter resets.
func counterRate(cur, prev uint64, elapsed float64) float64 {
	if elapsed <= 0 || cur <= prev {
		return 0
	}
	return float64(cur-prev) / elapsed
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
