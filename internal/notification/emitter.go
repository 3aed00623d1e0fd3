// Package notification turns compliance triggers into supervisor notification
// intents and delivers them on a best-effort basis.
package notification

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/example/access-compliance/internal/compliance"
)

// Channel is the supervisor's selected delivery channel.
type Channel int

const (
	ChannelNone Channel = iota
	ChannelEmail
	ChannelSMS
)

// String returns the lower-case channel label used in APIs and logs.
func (c Channel) String() string {
	switch c {
	case ChannelEmail:
		return "email"
	case ChannelSMS:
		return "sms"
	default:
		return "none"
	}
}

// ParseChannel accepts a label ("email") or the stored numeric code ("1").
func ParseChannel(raw string) (Channel, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "", "none":
		return ChannelNone, true
	case "email", "e-mail", "mail":
		return ChannelEmail, true
	case "sms", "text":
		return ChannelSMS, true
	}
	code, err := strconv.Atoi(value)
	if err != nil || code < int(ChannelNone) || code > int(ChannelSMS) {
		return ChannelNone, false
	}
	return Channel(code), true
}

// Subject identifies the employee the notification is about.
type Subject struct {
	EmployeeID string
	FullName   string
}

// Recipient is the supervisor and their contact details.
type Recipient struct {
	SupervisorID string
	FullName     string
	Email        string
	Phone        string
	Channel      Channel
}

// Intent is a fully rendered notification ready for delivery.
type Intent struct {
	Kind           compliance.TriggerKind
	Channel        Channel
	To             string
	Subject        string
	Message        string
	EmployeeID     string
	SupervisorID   string
	SupervisorName string
}

// Decision is the emitter result. At most one of Intent and Suppressed is set.
type Decision struct {
	Intent     *Intent
	Suppressed bool
	Reason     string
}

// Emit renders the intent for trigger. It returns an empty Decision when the
// supervisor opted out, and a suppressed one when the contact field required by
// the selected channel is missing.
func Emit(trigger compliance.Trigger, subject Subject, recipient Recipient) Decision {
	var to string
	switch recipient.Channel {
	case ChannelEmail:
		to = strings.TrimSpace(recipient.Email)
		if to == "" {
			return Decision{Suppressed: true, Reason: "supervisor has no email address"}
		}
	case ChannelSMS:
		to = strings.TrimSpace(recipient.Phone)
		if to == "" {
			return Decision{Suppressed: true, Reason: "supervisor has no phone number"}
		}
	default:
		return Decision{}
	}

	title, message, ok := render(trigger, subject.FullName)
	if !ok {
		return Decision{}
	}

	return Decision{Intent: &Intent{
		Kind:           trigger.Kind,
		Channel:        recipient.Channel,
		To:             to,
		Subject:        title,
		Message:        message,
		EmployeeID:     subject.EmployeeID,
		SupervisorID:   recipient.SupervisorID,
		SupervisorName: recipient.FullName,
	}}
}

func render(trigger compliance.Trigger, fullName string) (subject, message string, ok bool) {
	actual := trigger.Actual.HourMinute()
	scheduled := trigger.Scheduled.HourMinute()
	switch trigger.Kind {
	case compliance.TriggerLateArrival:
		subject = fmt.Sprintf("Late arrival: %s at %s", fullName, actual)
		message = fmt.Sprintf("Employee %s logged in at %s (scheduled start %s) - status: late to work", fullName, actual, scheduled)
		return subject, message, true
	case compliance.TriggerEarlyDeparture:
		subject = fmt.Sprintf("Early logout: %s at %s (scheduled end %s)", fullName, actual, scheduled)
		message = fmt.Sprintf("Employee %s logged out at %s before scheduled end (%s)", fullName, actual, scheduled)
		return subject, message, true
	}
	return "", "", false
}
