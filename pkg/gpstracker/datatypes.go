package gpstracker

import (
	"strings"
	"time"
)

// trackerTypePrefix marks the GPS tracker variant in the device listing.
// Phones and other companion devices use different type values.
const trackerTypePrefix = "tracker"

// TrackerConfig holds the hardware configuration reported for a tracker.
type TrackerConfig struct {
	BoardName string `json:"board_name"`
	Icon      string `json:"icon"`
}

// Device is any device attached to the account.
type Device struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	Type          string         `json:"type"`
	Serial        string         `json:"serial,omitempty"`
	Version       string         `json:"version,omitempty"`
	TrackerConfig *TrackerConfig `json:"tracker_config,omitempty"`
}

// IsTracker reports whether the device is a GPS tracker.
func (d Device) IsTracker() bool {
	return strings.HasPrefix(strings.ToLower(d.Type), trackerTypePrefix)
}

// AsTracker converts the device to a Tracker if it is of the tracker variant.
func (d Device) AsTracker() (Tracker, bool) {
	if !d.IsTracker() {
		return Tracker{}, false
	}
	t := Tracker{Device: d}
	if t.TrackerConfig == nil {
		t.TrackerConfig = &TrackerConfig{}
	}
	return t, true
}

// Tracker is a GPS tracker device. TrackerConfig is never nil.
type Tracker struct {
	Device
}

// TrackerData is one location sample. UUID changes with every new sample.
type TrackerData struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Precision int       `json:"precision"`
	Datetime  time.Time `json:"datetime"`
	Method    string    `json:"method,omitempty"`
	UUID      string    `json:"uuid"`
}

// TrackerStatus is the current status of a tracker.
type TrackerStatus struct {
	Battery  int  `json:"battery"`
	Charging bool `json:"charging,omitempty"`
}
