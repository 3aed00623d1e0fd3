package testfixtures

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/example/access-compliance/internal/application"
	"github.com/example/access-compliance/internal/compliance"
	"github.com/example/access-compliance/internal/notification"
	"github.com/example/access-compliance/internal/persistence"
	"github.com/example/access-compliance/internal/workschedule"
)

var (
	employeeCounter   uint64
	supervisorCounter uint64
	scheduleCounter   uint64
	terminalCounter   uint64
)

// referenceTime is Monday 2024-01-01 09:00 UTC, the start of the reference week.
var referenceTime = time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)

func ReferenceTime() time.Time {
	return referenceTime
}

// OnWeekday returns day at hour:minute UTC within the reference week
// (Monday 2024-01-01 to Sunday 2024-01-07).
func OnWeekday(day time.Weekday, hour, minute int) time.Time {
	offset := (int(day) + 6) % 7
	return time.Date(2024, time.January, 1+offset, hour, minute, 0, 0, time.UTC)
}

func ref(value string) *string {
	return &value
}

// ----------------------------- Supervisors -----------------------------

// SupervisorFixture is a deterministic supervisor record.
type SupervisorFixture struct {
	ID        string
	FirstName string
	LastName  string
	Position  string
	Email     string
	Phone     *string
	Channel   notification.Channel
	CreatedAt time.Time
}

type SupervisorOption func(*SupervisorFixture)

// NewSupervisorFixture returns an email-notified supervisor with a unique id
// and address.
func NewSupervisorFixture(opts ...SupervisorOption) SupervisorFixture {
	idx := atomic.AddUint64(&supervisorCounter, 1)
	fixture := SupervisorFixture{
		ID:        fmt.Sprintf("sup-%03d", idx),
		FirstName: "Sam",
		LastName:  fmt.Sprintf("Supervisor%03d", idx),
		Position:  application.DefaultSupervisorPosition,
		Email:     fmt.Sprintf("supervisor%03d@company.com", idx),
		Phone:     ref(fmt.Sprintf("+1555%07d", idx)),
		Channel:   notification.ChannelEmail,
		CreatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithSupervisorID(id string) SupervisorOption {
	return func(f *SupervisorFixture) { f.ID = id }
}

func WithSupervisorName(first, last string) SupervisorOption {
	return func(f *SupervisorFixture) {
		f.FirstName = first
		f.LastName = last
	}
}

func WithSupervisorEmail(email string) SupervisorOption {
	return func(f *SupervisorFixture) { f.Email = email }
}

// WithSupervisorPhone sets the phone; an empty value clears it.
func WithSupervisorPhone(phone string) SupervisorOption {
	return func(f *SupervisorFixture) {
		if phone == "" {
			f.Phone = nil
			return
		}
		f.Phone = ref(phone)
	}
}

func WithNotificationChannel(channel notification.Channel) SupervisorOption {
	return func(f *SupervisorFixture) { f.Channel = channel }
}

func (f SupervisorFixture) Persistence() persistence.Supervisor {
	return persistence.Supervisor{
		ID:                  f.ID,
		FirstName:           f.FirstName,
		LastName:            f.LastName,
		Position:            f.Position,
		Email:               f.Email,
		Phone:               f.Phone,
		NotificationChannel: int(f.Channel),
		CreatedAt:           f.CreatedAt,
		UpdatedAt:           f.CreatedAt,
	}
}

func (f SupervisorFixture) Application() application.Supervisor {
	return application.Supervisor{
		ID:                  f.ID,
		FirstName:           f.FirstName,
		LastName:            f.LastName,
		Position:            f.Position,
		Email:               f.Email,
		Phone:               f.Phone,
		NotificationChannel: f.Channel,
		CreatedAt:           f.CreatedAt,
		UpdatedAt:           f.CreatedAt,
	}
}

func (f SupervisorFixture) Input() application.SupervisorInput {
	return application.SupervisorInput{
		FirstName:           f.FirstName,
		LastName:            f.LastName,
		Position:            f.Position,
		Email:               f.Email,
		Phone:               f.Phone,
		NotificationChannel: f.Channel,
	}
}

// ----------------------------- Work schedules -----------------------------

// WorkScheduleFixture keeps the schedule in parsed form and renders the
// canonical stored text on demand.
type WorkScheduleFixture struct {
	ID        string
	Name      string
	Days      workschedule.WeekdaySet
	Windows   []workschedule.Window
	CreatedAt time.Time
}

type WorkScheduleOption func(*WorkScheduleFixture)

// NewWorkScheduleFixture returns a Monday to Friday, 09:00 to 17:00 schedule.
func NewWorkScheduleFixture(opts ...WorkScheduleOption) WorkScheduleFixture {
	idx := atomic.AddUint64(&scheduleCounter, 1)
	fixture := WorkScheduleFixture{
		ID:   fmt.Sprintf("ws-%03d", idx),
		Name: fmt.Sprintf("Schedule %03d", idx),
		Days: workschedule.NewWeekdaySet(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday),
		Windows: []workschedule.Window{
			{Start: workschedule.At(9, 0, 0), End: workschedule.At(17, 0, 0)},
		},
		CreatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithWorkScheduleID(id string) WorkScheduleOption {
	return func(f *WorkScheduleFixture) { f.ID = id }
}

func WithWorkScheduleName(name string) WorkScheduleOption {
	return func(f *WorkScheduleFixture) { f.Name = name }
}

// WithWeekdays replaces the active days. No days means every day is allowed.
func WithWeekdays(days ...time.Weekday) WorkScheduleOption {
	return func(f *WorkScheduleFixture) { f.Days = workschedule.NewWeekdaySet(days...) }
}

// WithWindow replaces the windows with a single start to end window given in
// whole hours and minutes.
func WithWindow(startHour, startMinute, endHour, endMinute int) WorkScheduleOption {
	return func(f *WorkScheduleFixture) {
		f.Windows = []workschedule.Window{{
			Start: workschedule.At(startHour, startMinute, 0),
			End:   workschedule.At(endHour, endMinute, 0),
		}}
	}
}

func WithWindows(windows ...workschedule.Window) WorkScheduleOption {
	return func(f *WorkScheduleFixture) { f.Windows = windows }
}

func (f WorkScheduleFixture) Model() workschedule.Schedule {
	return workschedule.Schedule{Weekdays: f.Days, Windows: f.Windows}
}

func (f WorkScheduleFixture) Persistence() persistence.WorkSchedule {
	return persistence.WorkSchedule{
		ID:           f.ID,
		Name:         f.Name,
		SelectedDays: workschedule.SerializeWeekdays(f.Days),
		TimeRanges:   workschedule.SerializeTimeWindows(f.Windows),
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.CreatedAt,
	}
}

func (f WorkScheduleFixture) Application() application.WorkSchedule {
	return application.WorkSchedule(f.Persistence())
}

func (f WorkScheduleFixture) Input() application.WorkScheduleInput {
	stored := f.Persistence()
	return application.WorkScheduleInput{
		Name:         stored.Name,
		SelectedDays: stored.SelectedDays,
		TimeRanges:   stored.TimeRanges,
	}
}

// ----------------------------- Employees -----------------------------

// EmployeeFixture is a deterministic badge holder.
type EmployeeFixture struct {
	ID             string
	FirstName      string
	LastName       string
	Position       string
	SupervisorID   *string
	WorkScheduleID *string
	CardID         *string
	AccessGranted  bool
	CreatedAt      time.Time
}

type EmployeeOption func(*EmployeeFixture)

// NewEmployeeFixture returns an employee without card, supervisor or schedule
// whose access flag is granted.
func NewEmployeeFixture(opts ...EmployeeOption) EmployeeFixture {
	idx := atomic.AddUint64(&employeeCounter, 1)
	fixture := EmployeeFixture{
		ID:            fmt.Sprintf("emp-%03d", idx),
		FirstName:     "Erin",
		LastName:      fmt.Sprintf("Employee%03d", idx),
		Position:      application.DefaultEmployeePosition,
		AccessGranted: true,
		CreatedAt:     referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithEmployeeID(id string) EmployeeOption {
	return func(f *EmployeeFixture) { f.ID = id }
}

func WithEmployeeName(first, last string) EmployeeOption {
	return func(f *EmployeeFixture) {
		f.FirstName = first
		f.LastName = last
	}
}

func WithPosition(position string) EmployeeOption {
	return func(f *EmployeeFixture) { f.Position = position }
}

func WithSupervisor(id string) EmployeeOption {
	return func(f *EmployeeFixture) { f.SupervisorID = ref(id) }
}

func WithWorkSchedule(id string) EmployeeOption {
	return func(f *EmployeeFixture) { f.WorkScheduleID = ref(id) }
}

func WithCard(cardID string) EmployeeOption {
	return func(f *EmployeeFixture) { f.CardID = ref(cardID) }
}

func WithAccess(granted bool) EmployeeOption {
	return func(f *EmployeeFixture) { f.AccessGranted = granted }
}

func (f EmployeeFixture) FullName() string {
	return strings.TrimSpace(f.FirstName + " " + f.LastName)
}

func (f EmployeeFixture) Persistence() persistence.Employee {
	return persistence.Employee{
		ID:             f.ID,
		FirstName:      f.FirstName,
		LastName:       f.LastName,
		Position:       f.Position,
		SupervisorID:   f.SupervisorID,
		WorkScheduleID: f.WorkScheduleID,
		CardID:         f.CardID,
		AccessGranted:  f.AccessGranted,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.CreatedAt,
	}
}

func (f EmployeeFixture) Application() application.Employee {
	return application.Employee(f.Persistence())
}

func (f EmployeeFixture) Input() application.EmployeeInput {
	return application.EmployeeInput{
		FirstName:      f.FirstName,
		LastName:       f.LastName,
		Position:       f.Position,
		SupervisorID:   f.SupervisorID,
		WorkScheduleID: f.WorkScheduleID,
		AccessGranted:  f.AccessGranted,
	}
}

// ----------------------------- Swipes -----------------------------

// SwipeFixture describes one terminal report.
type SwipeFixture struct {
	TerminalID      string
	Action          string
	CardID          string
	Status          string
	DeviceTimestamp string
	ActiveSessions  *int
	ReceivedAt      time.Time
	EmployeeID      *string
	EmployeeName    string
	AccessLevel     application.AccessLevel
	Source          compliance.TimestampSource
}

type SwipeOption func(*SwipeFixture)

// NewSwipeFixture returns an anonymous LOGIN without a card received at
// ReferenceTime from a fresh terminal.
func NewSwipeFixture(opts ...SwipeOption) SwipeFixture {
	idx := atomic.AddUint64(&terminalCounter, 1)
	fixture := SwipeFixture{
		TerminalID:  fmt.Sprintf("TERM-%03d", idx),
		Action:      "LOGIN",
		Status:      application.StatusNoCard,
		ReceivedAt:  referenceTime,
		AccessLevel: application.AccessUnknown,
		Source:      compliance.SourceServer,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithTerminal(id string) SwipeOption {
	return func(f *SwipeFixture) { f.TerminalID = id }
}

func WithAction(action string) SwipeOption {
	return func(f *SwipeFixture) { f.Action = action }
}

func WithSwipeCard(cardID string) SwipeOption {
	return func(f *SwipeFixture) { f.CardID = cardID }
}

func WithStatus(status string) SwipeOption {
	return func(f *SwipeFixture) { f.Status = status }
}

func WithActiveSessions(n int) SwipeOption {
	return func(f *SwipeFixture) { f.ActiveSessions = &n }
}

func WithReceivedAt(t time.Time) SwipeOption {
	return func(f *SwipeFixture) { f.ReceivedAt = t }
}

// WithDeviceTime sets the terminal-reported timestamp in RFC 3339 form and
// marks the row as device timed.
func WithDeviceTime(t time.Time) SwipeOption {
	return func(f *SwipeFixture) {
		f.DeviceTimestamp = t.Format(time.RFC3339)
		f.Source = compliance.SourceDevice
	}
}

// WithHolder attributes the swipe to employee with the given access level.
func WithHolder(employee EmployeeFixture, level application.AccessLevel) SwipeOption {
	return func(f *SwipeFixture) {
		f.EmployeeID = ref(employee.ID)
		f.EmployeeName = employee.FullName()
		f.AccessLevel = level
	}
}

// Persistence renders the fixture as a ledger row ready for AppendSwipeEvent.
func (f SwipeFixture) Persistence() persistence.SwipeEvent {
	return persistence.SwipeEvent{
		TerminalID:      f.TerminalID,
		Action:          f.Action,
		CardID:          f.CardID,
		Status:          f.Status,
		DeviceTimestamp: f.DeviceTimestamp,
		ActiveSessions:  f.ActiveSessions,
		ReceivedAt:      f.ReceivedAt,
		EmployeeID:      f.EmployeeID,
		EmployeeName:    f.EmployeeName,
		AccessLevel:     string(f.AccessLevel),
		TimestampSource: string(f.Source),
	}
}

// Input renders the fixture as the report a terminal would post.
func (f SwipeFixture) Input() application.SwipeInput {
	return application.SwipeInput{
		TerminalID:      f.TerminalID,
		Action:          f.Action,
		CardID:          f.CardID,
		Status:          f.Status,
		DeviceTimestamp: f.DeviceTimestamp,
		ActiveSessions:  f.ActiveSessions,
	}
}
