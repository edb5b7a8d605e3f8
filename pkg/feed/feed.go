package feed

import (
	"sort"
	"sync"
	"time"

	"github.com/craftdeck/api/pkg/chart"
)

// Feed accumulates historical and live samples into one merged series. The
// merge is idempotent and order-independent: live updates may arrive before,
// during, or after the historical fetch resolves and the final series is the
// same. A generation counter guards against a stale fetch landing after the
// viewer switched resolution.
type Feed struct {
	mu         sync.Mutex
	res        chart.Resolution
	generation int
	samples    []chart.Sample
}

// New constructs a Feed at the given starting resolution.
func New(res chart.Resolution) *Feed {
	return &Feed{res: res}
}

// Resolution returns the currently displayed resolution.
func (f *Feed) Resolution() chart.Resolution {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.res
}

// Generation returns the token a history fetch must present to be merged.
func (f *Feed) Generation() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generation
}

// SetResolution switches the displayed window and invalidates any in-flight
// history fetch for the previous one. Returns the new generation.
func (f *Feed) SetResolution(res chart.Resolution) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.res = res
	f.generation++
	f.trimLocked()
	return f.generation
}

// ApplyHistory merges a fetched range if it belongs to the current
// generation. Stale responses are discarded, not merged.
func (f *Feed) ApplyHistory(generation int, samples []chart.Sample) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if generation != f.generation {
		return false
	}
	for _, s := range samples {
		f.insertLocked(s)
	}
	f.trimLocked()
	return true
}

// ApplyLive merges one live sample. Always accepted regardless of which
// resolution is displayed.
func (f *Feed) ApplyLive(sample chart.Sample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertLocked(sample)
	f.trimLocked()
}

// Snapshot reconstructs the chart series and liveness for "now".
func (f *Feed) Snapshot(now time.Time) ([]chart.Point, bool) {
	f.mu.Lock()
	samples := make([]chart.Sample, len(f.samples))
	copy(samples, f.samples)
	res := f.res
	f.mu.Unlock()
	return chart.Build(samples, res, now), chart.Live(samples, res, now)
}

// Summary reconstructs the current-value widget view for "now".
func (f *Feed) Summary(now time.Time) chart.Summary {
	f.mu.Lock()
	samples := make([]chart.Sample, len(f.samples))
	copy(samples, f.samples)
	res := f.res
	f.mu.Unlock()
	return chart.Summarize(samples, res, now)
}

// insertLocked keeps samples sorted by timestamp; an equal timestamp
// replaces the existing entry, making replays idempotent.
func (f *Feed) insertLocked(sample chart.Sample) {
	idx := sort.Search(len(f.samples), func(i int) bool {
		return !f.samples[i].Timestamp.Before(sample.Timestamp)
	})
	if idx < len(f.samples) && f.samples[idx].Timestamp.Equal(sample.Timestamp) {
		f.samples[idx] = sample
		return
	}
	f.samples = append(f.samples, chart.Sample{})
	copy(f.samples[idx+1:], f.samples[idx:])
	f.samples[idx] = sample
}

// trimLocked bounds retained history to the current window plus enough
// slack for forward-fill and rate derivation, so per-tick rebuild cost
// never grows with total history.
func (f *Feed) trimLocked() {
	if len(f.samples) == 0 {
		return
	}
	newest := f.samples[len(f.samples)-1].Timestamp
	cutoff := newest.Add(-(f.res.Window() + chart.StalenessThreshold + f.res.Step()))
	idx := sort.Search(len(f.samples), func(i int) bool {
		return !f.samples[i].Timestamp.Before(cutoff)
	})
	if idx > 0 {
		f.samples = append(f.samples[:0], f.samples[idx:]...)
	}
}
