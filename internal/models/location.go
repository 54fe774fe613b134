package models

import (
	"time"
)

// TrackerState is a point-in-time view of one tracker entity.
type TrackerState struct {
	UniqueID      string    `json:"-"`
	Name          string    `json:"-"`
	Available     bool      `json:"-"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Accuracy      int       `json:"gps_accuracy"`
	BatteryLevel  int       `json:"battery_level"`
	SourceType    string    `json:"source_type"`
	Attribution   string    `json:"attribution,omitempty"`
	Address       string    `json:"address,omitempty"`
	LocationToken string    `json:"-"`
	LastUpdated   time.Time `json:"last_updated"`
}

// HasLocation reports whether at least one sample has been accepted.
func (s TrackerState) HasLocation() bool {
	return s.LocationToken != ""
}
