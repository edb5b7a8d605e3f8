package domain

import "time"

// SampleBucketWidth is the durable sampling granularity.
const SampleBucketWidth = time.Minute

// BucketForTime derives the idempotent storage key for a wall-clock instant.
func BucketForTime(t time.Time) int64 {
	return t.Unix() / int64(SampleBucketWidth/time.Second)
}

// Sample is one durable metrics row per one-minute bucket. 64-bit counters
// serialize as decimal strings so browser clients do not lose precision.
type Sample struct {
	BucketID      int64      `json:"bucket_id"`
	ServerName    string     `json:"server_name"`
	RecordedAt    time.Time  `json:"recorded_at"`
	Status        string     `json:"status"`
	TPS           float64    `json:"tps"`
	TickMillis    float64    `json:"tick_millis"`
	PlayersOnline int        `json:"players_online"`
	PlayersMax    int        `json:"players_max"`
	MemoryFree    uint64     `json:"memory_free,string"`
	MemoryTotal   uint64     `json:"memory_total,string"`
	MemoryMax     uint64     `json:"memory_max,string"`
	ChunksLoaded  int        `json:"chunks_loaded"`
	Entities      int        `json:"entities"`
	CPUPercent    float64    `json:"cpu_percent"`
	BytesSent     uint64     `json:"bytes_sent,string"`
	BytesReceived uint64     `json:"bytes_received,string"`
	DiskUsed      uint64     `json:"disk_used,string"`
	StartedAtMS   int64      `json:"started_at_ms"`
	NextRestart   *time.Time `json:"next_restart,omitempty"`
}

// SampleFromMetrics builds a durable row from an accepted metrics section.
func SampleFromMetrics(serverName string, status string, recordedAt time.Time, m MetricsSection) Sample {
	sample := Sample{
		BucketID:      BucketForTime(recordedAt),
		ServerName:    serverName,
		RecordedAt:    recordedAt.UTC(),
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
	if m.NextRestart != nil {
		next := time.UnixMilli(*m.NextRestart).UTC()
		sample.NextRestart = &next
	}
	return sample
}

// Zeroed returns a copy with every numeric field cleared. Written when the
// server announces shutdown so dashboards show "nothing is running" instead
// of a frozen last-active reading.
func (s Sample) Zeroed() Sample {
	return Sample{
		BucketID:   s.BucketID,
		ServerName: s.ServerName,
		RecordedAt: s.RecordedAt,
		Status:     s.Status,
	}
}
