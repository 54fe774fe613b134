package constants

import "time"

const (
	// Domain identifies this integration in unique ids, device identifiers and topics.
	Domain = "invoxia"

	// Manufacturer is reported in every tracker's device info.
	Manufacturer = "Invoxia"

	// Attribution is attached to every published tracker state.
	Attribution = "Data provided by Invoxia™ (unofficial)"

	// SourceTypeGPS is the source type of every tracker entity.
	SourceTypeGPS = "gps"

	// EntityPlatform is the host platform tracker entities belong to.
	EntityPlatform = "device_tracker"

	// DefaultIcon is used when a tracker's configured icon is unknown.
	DefaultIcon = "mdi:map-marker"
)

const (
	// ScanInterval is the default delay between two polls of the same tracker.
	ScanInterval = 240 * time.Second

	// ParallelUpdates limits concurrent tracker updates within one config entry.
	ParallelUpdates = 1

	// LocationMaxCount is the number of samples requested on each poll.
	LocationMaxCount = 1

	// UpdateTimeout bounds a single tracker update.
	UpdateTimeout = 60 * time.Second
)

// MDIIcons maps the tracker icon names configured in the vendor app to Material Design icons.
var MDIIcons = map[string]string{
	"bag":      "mdi:bag-personal",
	"bike":     "mdi:bicycle",
	"car":      "mdi:car",
	"cat":      "mdi:cat",
	"dog":      "mdi:dog",
	"key":      "mdi:key",
	"luggage":  "mdi:bag-suitcase",
	"moto":     "mdi:motorbike",
	"other":    "mdi:map-marker",
	"person":   "mdi:human",
	"scooter":  "mdi:scooter",
	"suitcase": "mdi:bag-suitcase",
	"van":      "mdi:van-utility",
	"wallet":   "mdi:wallet",
}
