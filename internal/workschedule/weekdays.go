package workschedule

import (
	"strconv"
	"strings"
	"time"
)

// WeekdaySet is a set of weekdays stored as a bitmask indexed by time.Weekday.
type WeekdaySet uint8

const allWeekdays WeekdaySet = 1<<7 - 1

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sun":       time.Sunday,
	"mon":       time.Monday,
	"tue":       time.Tuesday,
	"wed":       time.Wednesday,
	"thu":       time.Thursday,
	"fri":       time.Friday,
	"sat":       time.Saturday,
}

// NewWeekdaySet builds a set from the supplied days. Out of range values are ignored.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var set WeekdaySet
	for _, day := range days {
		set = set.With(day)
	}
	return set
}

// With returns a copy of the set including day.
func (s WeekdaySet) With(day time.Weekday) WeekdaySet {
	if day < time.Sunday || day > time.Saturday {
		return s
	}
	return s | 1<<uint(day)
}

// Contains reports whether day is a member of the set.
func (s WeekdaySet) Contains(day time.Weekday) bool {
	if day < time.Sunday || day > time.Saturday {
		return false
	}
	return s&(1<<uint(day)) != 0
}

// IsEmpty reports whether no weekday is selected.
func (s WeekdaySet) IsEmpty() bool {
	return s&allWeekdays == 0
}

// Allows applies the permissive reading used by schedule checks: an empty set
// places no restriction on the day.
func (s WeekdaySet) Allows(day time.Weekday) bool {
	if s.IsEmpty() {
		return true
	}
	return s.Contains(day)
}

// Len returns the number of selected weekdays.
func (s WeekdaySet) Len() int {
	count := 0
	for day := time.Sunday; day <= time.Saturday; day++ {
		if s.Contains(day) {
			count++
		}
	}
	return count
}

// Days returns the members in Sunday-first order.
func (s WeekdaySet) Days() []time.Weekday {
	days := make([]time.Weekday, 0, s.Len())
	for day := time.Sunday; day <= time.Saturday; day++ {
		if s.Contains(day) {
			days = append(days, day)
		}
	}
	return days
}

// String renders the canonical serialization.
func (s WeekdaySet) String() string {
	return SerializeWeekdays(s)
}

// ParseWeekdays reads a delimiter separated list of weekday names or numeric
// codes (0 = Sunday .. 6 = Saturday). Unrecognized tokens are dropped.
func ParseWeekdays(raw string) WeekdaySet {
	var set WeekdaySet
	for _, token := range splitTokens(raw, isWeekdayDelimiter) {
		day, ok := parseWeekday(token)
		if !ok {
			continue
		}
		set = set.With(day)
	}
	return set
}

// SerializeWeekdays joins the full weekday names with commas.
func SerializeWeekdays(set WeekdaySet) string {
	days := set.Days()
	names := make([]string, 0, len(days))
	for _, day := range days {
		names = append(names, day.String())
	}
	return strings.Join(names, ",")
}

func parseWeekday(token string) (time.Weekday, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, false
	}
	if day, ok := weekdayNames[strings.ToLower(token)]; ok {
		return day, true
	}
	code, err := strconv.Atoi(token)
	if err != nil || code < int(time.Sunday) || code > int(time.Saturday) {
		return 0, false
	}
	return time.Weekday(code), true
}

func isWeekdayDelimiter(r rune) bool {
	switch r {
	case ',', ';', '|', ' ', '\t', '\n', '\r':
		return true
	}
	return false
}

func splitTokens(raw string, delimiter func(rune) bool) []string {
	parts := strings.FieldsFunc(raw, delimiter)
	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			tokens = append(tokens, trimmed)
		}
	}
	return tokens
}
