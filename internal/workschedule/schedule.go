// Package workschedule models a work schedule as a set of active weekdays plus
// daily time windows, and reads the tolerant text encodings stored for them.
package workschedule

import "time"

// Schedule is the parsed form of a stored work schedule.
type Schedule struct {
	Weekdays WeekdaySet
	Windows  []Window
}

// Parse builds a Schedule from the stored day and time range text.
func Parse(selectedDays, timeRanges string) Schedule {
	return Schedule{
		Weekdays: ParseWeekdays(selectedDays),
		Windows:  ParseTimeWindows(timeRanges),
	}
}

// AllowsDay applies the weekday rule; an empty weekday set allows every day.
func (s Schedule) AllowsDay(day time.Weekday) bool {
	return s.Weekdays.Allows(day)
}

// InWindow reports whether t falls inside at least one window.
func (s Schedule) InWindow(t TimeOfDay) bool {
	for _, w := range s.Windows {
		if w.Contains(t) {
			return true
		}
	}
	return false
}

// Covers reports whether the wall clock instant at satisfies both the weekday
// rule and at least one window. Callers convert at to the site location first.
func (s Schedule) Covers(at time.Time) bool {
	return s.AllowsDay(at.Weekday()) && s.InWindow(TimeOfDayOf(at))
}

// EarliestStart returns the smallest window start.
func (s Schedule) EarliestStart() (TimeOfDay, bool) {
	if len(s.Windows) == 0 {
		return 0, false
	}
	earliest := s.Windows[0].Start
	for _, w := range s.Windows[1:] {
		if w.Start < earliest {
			earliest = w.Start
		}
	}
	return earliest, true
}

// LatestEnd returns the largest window end.
func (s Schedule) LatestEnd() (TimeOfDay, bool) {
	if len(s.Windows) == 0 {
		return 0, false
	}
	latest := s.Windows[0].End
	for _, w := range s.Windows[1:] {
		if w.End > latest {
			latest = w.End
		}
	}
	return latest, true
}
