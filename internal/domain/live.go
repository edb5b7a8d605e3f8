package domain

import "time"

// LiveSample is the real-time feed payload: an accepted metrics section
// decorated with the resolved timestamp and status. Every accepted metrics
// heartbeat becomes one LiveSample, unthrottled. Counters serialize as
// decimal strings, matching the historical read API.
type LiveSample struct {
	ServerName    string  `json:"server_name"`
	Timestamp     int64   `json:"timestamp"`
	Status        string  `json:"status"`
	Origin        string  `json:"origin,omitempty"`
	TPS           float64 `json:"tps"`
	TickMillis    float64 `json:"tick_millis"`
	PlayersOnline int     `json:"players_online"`
	PlayersMax    int     `json:"players_max"`
	MemoryFree    uint64  `json:"memory_free,string"`
	MemoryTotal   uint64  `json:"memory_total,string"`
	MemoryMax     uint64  `json:"memory_max,string"`
	ChunksLoaded  int     `json:"chunks_loaded"`
	Entities      int     `json:"entities"`
	CPUPercent    float64 `json:"cpu_percent"`
	BytesSent     uint64  `json:"bytes_sent,string"`
	BytesReceived uint64  `json:"bytes_received,string"`
	DiskUsed      uint64  `json:"disk_used,string"`
	StartedAtMS   int64   `json:"started_at_ms"`
}

// LiveSampleFromMetrics decorates a metrics section for broadcast.
func LiveSampleFromMetrics(serverName, status string, at time.Time, m MetricsSection) LiveSample {
	return LiveSample{
		ServerName:    serverName,
		Timestamp:     at.UnixMilli(),
		Status:        status,
		TPS:           m.TPS,
		TickMillis:    m.TickMillis,
		PlayersOnline: m.PlayersOnline,
		PlayersMax:    m.PlayersMax,
		MemoryFree:    m.MemoryFree,
		MemoryTotal:   m.MemoryTotal,
		MemoryMax:     m.MemoryMax,
		ChunksLoaded:  m.ChunksLoaded,
		Entities:      m.Entities,
		CPUPercent:    m.CPUPercent,
		BytesSent:     m.BytesSent,
		BytesReceived: m.BytesReceived,
		DiskUsed:      m.DiskUsed,
		StartedAtMS:   m.StartedAtMS,
	}
}
