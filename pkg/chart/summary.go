package chart

import "time"

// StatusOffline is rendered when the feed has gone stale.
const StatusOffline = "OFFLINE"

// Summary is the current-value widget view: either the newest sample's
// readings, or a forced offline state when the feed is stale. Stale data is
// never shown as if it were current.
type Summary struct {
	Live          bool
	Status        string
	TPS           float64
	CPUPercent    float64
	PlayersOnline int
	MemoryUsed    uint64
	UptimeSeconds int64
	UploadRate    float64
	DownloadRate  float64
}

// Summarize folds samples into the current-value view for a resolution.
func Summarize(samples []Sample, res Resolution, now time.Time) Summary {
	if !Live(samples, res, now) {
		return Summary{Status: StatusOffline}
	}
	sorted := Normalize(samples)
	newest := sorted[len(sorted)-1]

	summary := Summary{
		Live:          true,
		Status:        newest.Status,
		TPS:           newest.TPS,
		CPUPercent:    newest.CPUPercent,
		PlayersOnline: newest.PlayersOnline,
		MemoryUsed:    newest.MemoryUsed,
	}
	if newest.StartedAtMS > 0 {
		uptime := now.UnixMilli() - newest.StartedAtMS
		if uptime > 0 {
			summary.UptimeSeconds = uptime / 1000
		}
	}
	if len(sorted) > 1 {
		prev := sorted[len(sorted)-2]
		elapsed := newest.Timestamp.Sub(prev.Timestamp).Seconds()
		summary.UploadRate = counterRate(newest.BytesSent, prev.BytesSent, elapsed)
		summary.DownloadRate = counterRate(newest.BytesReceived, prev.BytesReceived, elapsed)
	}
	return summary
}
