// Package compliance decides whether a swipe falls inside the holder's work
// schedule and whether it amounts to a late arrival or an early departure.
package compliance

import (
	"strings"
	"time"

	"github.com/example/access-compliance/internal/workschedule"
)

// Outcome is the schedule verdict stored as the ledger status of an authorized swipe.
type Outcome string

const (
	// OutcomeSuccess means the swipe satisfied the schedule or no schedule applies.
	OutcomeSuccess Outcome = "SUCCESS"
	// OutcomeScheduleViolation means the weekday or time window check failed.
	OutcomeScheduleViolation Outcome = "SCHEDULE_VIOLATION"
)

// TriggerKind identifies a supervisor notification condition.
type TriggerKind string

const (
	// TriggerLateArrival fires for a LOGIN after the earliest window start.
	TriggerLateArrival TriggerKind = "late_arrival"
	// TriggerEarlyDeparture fires for a LOGOUT before the latest window end.
	TriggerEarlyDeparture TriggerKind = "early_departure"
)

const (
	actionLogin  = "LOGIN"
	actionLogout = "LOGOUT"
)

// Trigger carries the actual and scheduled clock times of a late or early swipe.
type Trigger struct {
	Kind      TriggerKind
	Actual    workschedule.TimeOfDay
	Scheduled workschedule.TimeOfDay
	At        time.Time
}

// Input describes one swipe as seen by the evaluator.
type Input struct {
	Action          string
	DeviceTimestamp string
	ReceivedAt      time.Time
	// Schedule is nil when the employee has no work schedule.
	Schedule *workschedule.Schedule
	// Notifiable is true when a resolved employee has a supervisor to notify.
	Notifiable bool
}

// Finding is the evaluator verdict for one swipe.
type Finding struct {
	Outcome     Outcome
	Trigger     *Trigger
	EffectiveAt time.Time
	Source      TimestampSource
}

// Evaluator applies schedule rules in a fixed site location.
type Evaluator struct {
	location *time.Location
}

// NewEvaluator constructs an Evaluator. A nil location means time.Local.
func NewEvaluator(loc *time.Location) *Evaluator {
	if loc == nil {
		loc = time.Local
	}
	return &Evaluator{location: loc}
}

// Location returns the site location used for weekday and time-of-day checks.
func (e *Evaluator) Location() *time.Location {
	if e == nil || e.location == nil {
		return time.Local
	}
	return e.location
}

// Evaluate resolves the effective timestamp once and applies both the schedule
// check and the notification trigger rules to it.
func (e *Evaluator) Evaluate(in Input) Finding {
	at, source := ResolveTimestamp(in.DeviceTimestamp, in.ReceivedAt, e.Location())
	finding := Finding{
		Outcome:     CheckSchedule(in.Schedule, at),
		EffectiveAt: at,
		Source:      source,
	}
	if in.Notifiable {
		finding.Trigger = DetectTrigger(in.Action, in.Schedule, at)
	}
	return finding
}

// CheckSchedule returns SUCCESS when schedule is nil or covers at.
func CheckSchedule(schedule *workschedule.Schedule, at time.Time) Outcome {
	if schedule == nil {
		return OutcomeSuccess
	}
	if schedule.Covers(at) {
		return OutcomeSuccess
	}
	return OutcomeScheduleViolation
}

// DetectTrigger returns the late arrival or early departure condition for the
// swipe, or nil. A schedule without windows never triggers.
func DetectTrigger(action string, schedule *workschedule.Schedule, at time.Time) *Trigger {
	if schedule == nil || len(schedule.Windows) == 0 {
		return nil
	}
	if !schedule.AllowsDay(at.Weekday()) {
		return nil
	}

	actual := workschedule.TimeOfDayOf(at)
	switch strings.ToUpper(strings.TrimSpace(action)) {
	case actionLogin:
		start, _ := schedule.EarliestStart()
		if actual > start {
			return &Trigger{Kind: TriggerLateArrival, Actual: actual, Scheduled: start, At: at}
		}
	case actionLogout:
		end, _ := schedule.LatestEnd()
		if actual < end {
			return &Trigger{Kind: TriggerEarlyDeparture, Actual: actual, Scheduled: end, At: at}
		}
	}
	return nil
}
