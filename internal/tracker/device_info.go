package tracker

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"

	"github.com/benmeehan/invoxia-agent/internal/constants"
	"github.com/benmeehan/invoxia-agent/internal/models"
	"github.com/benmeehan/invoxia-agent/pkg/gpstracker"
)

// formDeviceInfo extracts the device registry fields from a tracker.
func formDeviceInfo(tracker gpstracker.Tracker, logger zerolog.Logger) *models.DeviceInfo {
	identifier := tracker.Serial
	if identifier == "" {
		identifier = tracker.Name
	}

	info := &models.DeviceInfo{
		Identifiers:  []string{constants.Domain + "_" + identifier},
		Name:         tracker.Name,
		Manufacturer: constants.Manufacturer,
		SWVersion:    firmwareVersion(tracker.Version, logger),
	}
	if tracker.TrackerConfig != nil {
		info.HWVersion = tracker.TrackerConfig.BoardName
	}
	return info
}

// firmwareVersion normalises versions such as "v1.2" to "1.2.0". Versions
// that are not semver are returned unchanged.
func firmwareVersion(raw string, logger zerolog.Logger) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		logger.Debug().Str("version", raw).Msg("Firmware version is not semver, keeping it as is")
		return raw
	}
	return v.String()
}

func iconFor(tracker gpstracker.Tracker) string {
	if tracker.TrackerConfig == nil {
		return constants.DefaultIcon
	}
	if icon, ok := constants.MDIIcons[strings.ToLower(tracker.TrackerConfig.Icon)]; ok {
		return icon
	}
	return constants.DefaultIcon
}
