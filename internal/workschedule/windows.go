package workschedule

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is the offset from local midnight.
type TimeOfDay time.Duration

// At builds a TimeOfDay from clock components. Values are not range checked.
func At(hour, minute, second int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute + time.Duration(second)*time.Second)
}

// TimeOfDayOf extracts the wall clock offset of t in its own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return At(t.Hour(), t.Minute(), t.Second()) + TimeOfDay(time.Duration(t.Nanosecond()))
}

// ParseTimeOfDay accepts H:MM or H:MM:SS with hour 0-23 and minute/second 0-59.
func ParseTimeOfDay(raw string) (TimeOfDay, bool) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	limits := []int{23, 59, 59}
	values := make([]int, 3)
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" || len(part) > 2 {
			return 0, false
		}
		value, err := strconv.Atoi(part)
		if err != nil || value < 0 || value > limits[i] {
			return 0, false
		}
		values[i] = value
	}
	return At(values[0], values[1], values[2]), true
}

// String renders HH:MM:SS.
func (t TimeOfDay) String() string {
	total := int(time.Duration(t) / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

// HourMinute renders HH:MM, the format used in notification text.
func (t TimeOfDay) HourMinute() string {
	total := int(time.Duration(t) / time.Second)
	return fmt.Sprintf("%02d:%02d", total/3600, (total/60)%60)
}

// Window is a daily time range. Start is not required to precede End.
type Window struct {
	Start TimeOfDay
	End   TimeOfDay
}

// Contains reports start <= t <= end. An inverted window never matches.
func (w Window) Contains(t TimeOfDay) bool {
	return w.Start <= t && t <= w.End
}

// String renders the legacy "HH:MM:SS-HH:MM:SS" form.
func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}

type windowJSON struct {
	StartTime string `json:"StartTime"`
	EndTime   string `json:"EndTime"`
}

// ParseTimeWindows decodes the structured JSON encoding and falls back to the
// delimited legacy text form when the JSON form yields nothing.
func ParseTimeWindows(raw string) []Window {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	if windows := parseStructuredWindows(trimmed); len(windows) > 0 {
		return windows
	}
	return parseDelimitedWindows(trimmed)
}

// SerializeTimeWindows encodes windows as a JSON list of StartTime/EndTime pairs.
func SerializeTimeWindows(windows []Window) string {
	payload := make([]windowJSON, 0, len(windows))
	for _, w := range windows {
		payload = append(payload, windowJSON{StartTime: w.Start.String(), EndTime: w.End.String()})
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "[]"
	}
	return string(encoded)
}

func parseStructuredWindows(raw string) []Window {
	if !strings.HasPrefix(raw, "[") {
		return nil
	}
	var decoded []windowJSON
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil
	}
	windows := make([]Window, 0, len(decoded))
	for _, entry := range decoded {
		start, okStart := ParseTimeOfDay(entry.StartTime)
		end, okEnd := ParseTimeOfDay(entry.EndTime)
		if !okStart || !okEnd {
			continue
		}
		windows = append(windows, Window{Start: start, End: end})
	}
	return windows
}

func parseDelimitedWindows(raw string) []Window {
	tokens := splitTokens(raw, func(r rune) bool {
		return r == ';' || r == '|' || r == ','
	})
	windows := make([]Window, 0, len(tokens))
	for _, token := range tokens {
		bounds := strings.Split(token, "-")
		if len(bounds) != 2 {
			continue
		}
		start, okStart := ParseTimeOfDay(bounds[0])
		end, okEnd := ParseTimeOfDay(bounds[1])
		if !okStart || !okEnd {
			continue
		}
		windows = append(windows, Window{Start: start, End: end})
	}
	return windows
}
