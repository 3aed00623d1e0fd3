package compliance

import (
	"strings"
	"time"
)

// TimestampSource records which clock produced the effective swipe time.
type TimestampSource string

const (
	// SourceDevice indicates the terminal supplied a parseable timestamp.
	SourceDevice TimestampSource = "device"
	// SourceServer indicates the server receipt time was used.
	SourceServer TimestampSource = "server"
)

var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ResolveTimestamp prefers the device reported timestamp and falls back to the
// server receipt time. The result is expressed in loc.
func ResolveTimestamp(device string, received time.Time, loc *time.Location) (time.Time, TimestampSource) {
	if loc == nil {
		loc = time.Local
	}
	if parsed, ok := parseDeviceTimestamp(device, loc); ok {
		return parsed, SourceDevice
	}
	return received.In(loc), SourceServer
}

func parseDeviceTimestamp(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range zonedLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.In(loc), true
		}
	}
	for _, layout := range localLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
