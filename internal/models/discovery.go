package models

// DeviceInfo groups tracker entities under a device in the host's device registry.
type DeviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	HWVersion    string   `json:"hw_version,omitempty"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// Availability is one availability topic of a discovered entity.
type Availability struct {
	Topic               string `json:"topic"`
	PayloadAvailable    string `json:"payload_available,omitempty"`
	PayloadNotAvailable string `json:"payload_not_available,omitempty"`
}

// DeviceTrackerConfig is the retained MQTT discovery payload for a device_tracker entity.
type DeviceTrackerConfig struct {
	Name                string         `json:"name"`
	UniqueID            string         `json:"unique_id"`
	ObjectID            string         `json:"object_id,omitempty"`
	JSONAttributesTopic string         `json:"json_attributes_topic"`
	Availability        []Availability `json:"availability"`
	AvailabilityMode    string         `json:"availability_mode,omitempty"`
	SourceType          string         `json:"source_type"`
	Icon                string         `json:"icon,omitempty"`
	Device              *DeviceInfo    `json:"device,omitempty"`
}
