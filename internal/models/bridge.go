package models

import "time"

// ProcessMetrics is a resource usage sample of the agent process.
type ProcessMetrics struct {
	CPUUsage   float64 `json:"cpu_percent"`
	MemoryRSS  uint64  `json:"memory_rss_bytes"`
	Goroutines int     `json:"goroutines"`
}

// BridgeHeartbeat is published periodically to report the agent's health.
type BridgeHeartbeat struct {
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
	Uptime    float64         `json:"uptime_seconds"`
	Entries   int             `json:"entries"`
	Entities  int             `json:"entities"`
	Process   *ProcessMetrics `json:"process,omitempty"`
}
