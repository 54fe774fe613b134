package constants

// Availability payloads published for the bridge and each tracker.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

const (
	// DefaultDiscoveryPrefix is the Home Assistant MQTT discovery prefix.
	DefaultDiscoveryPrefix = "homeassistant"

	// DefaultBaseTopic is the root of every state topic published by the agent.
	DefaultBaseTopic = "invoxia"

	// DefaultQOS is used for discovery, attributes and availability messages.
	DefaultQOS = 1
)
