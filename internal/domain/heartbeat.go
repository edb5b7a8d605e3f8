package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Server status values reported by the game-server plugin.
const (
	StatusOnline   = "ONLINE"
	StatusOffline  = "OFFLINE"
	StatusStarting = "STARTING"
	StatusShutdown = "SHUTDOWN"
)

// Heartbeat is one inbound report from the game-server plugin. Any of the
// three sections may be absent; a heartbeat with none of them is invalid.
type Heartbeat struct {
	ServerName   string                          `json:"serverName"`
	Timestamp    int64                           `json:"timestamp,omitempty"`
	Status       string                          `json:"status,omitempty"`
	Metrics      *MetricsSection                 `json:"metrics,omitempty"`
	Advancements map[string]AdvancementSection   `json:"advancements,omitempty"`
	Stats        map[string]map[string]StatValue `json:"stats,omitempty"`
}

// MetricsSection carries point-in-time performance readings. Cumulative byte
// counters are monotone while the server is online.
type MetricsSection struct {
	TPS           float64 `json:"tps"`
	TickMillis    float64 `json:"tickMillis"`
	PlayersOnline int     `json:"playersOnline"`
	PlayersMax    int     `json:"playersMax"`
	MemoryFree    uint64  `json:"freeMemory"`
	MemoryTotal   uint64  `json:"totalMemory"`
	MemoryMax     uint64  `json:"maxMemory"`
	ChunksLoaded  int     `json:"loadedChunks"`
	Entities      int     `json:"entities"`
	CPUPercent    float64 `json:"cpuUsage"`
	BytesSent     uint64  `json:"bytesSent"`
	BytesReceived uint64  `json:"bytesReceived"`
	DiskUsed      uint64  `json:"diskUsage"`
	StartedAtMS   int64   `json:"startedAt"`
	NextRestart   *int64  `json:"nextRestart,omitempty"`
}

// AdvancementSection is one player's full advancement state as resent on
// every heartbeat.
type AdvancementSection struct {
	Details map[string]AdvancementState `json:"details"`
}

// AdvancementState describes a single advancement entry for a player.
// Display fields are optional and only consulted when the definition is
// first registered.
type AdvancementState struct {
	Done        bool   `json:"done"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

// StatValue is one category's data in a stats section: either a bare total
// or a map of named sub-counters. Exactly one of the two fields is set after
// a successful decode.
type StatValue struct {
	Total  *float64
	Fields map[string]float64
}

// UnmarshalJSON decodes either a JSON number or a JSON object of numbers.
func (v *StatValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty stat value")
	}
	if trimmed[0] == '{' {
		fields := make(map[string]float64)
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return fmt.Errorf("decode stat counters: %w", err)
		}
		v.Fields = fields
		v.Total = nil
		return nil
	}
	var total float64
	if err := json.Unmarshal(trimmed, &total); err != nil {
		return fmt.Errorf("stat value must be a number or an object: %w", err)
	}
	v.Total = &total
	v.Fields = nil
	return nil
}

// MarshalJSON emits the same shape the plugin sends.
func (v StatValue) MarshalJSON() ([]byte, error) {
	if v.Fields != nil {
		return json.Marshal(v.Fields)
	}
	if v.Total != nil {
		return json.Marshal(*v.Total)
	}
	return []byte("0"), nil
}
