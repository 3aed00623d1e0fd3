package application

import (
	"context"
	"fmt"

	"github.com/example/access-compliance/internal/notification"
)

type seedEmployee struct {
	first, last, position string
	supervisor, schedule  string
	access                bool
}

// SeedDemoData fills an empty directory with two supervisors, two schedules and
// two employees. It does nothing when any supervisor exists.
func (s *DirectoryService) SeedDemoData(ctx context.Context) (seeded bool, err error) {
	if s == nil {
		err = fmt.Errorf("DirectoryService is nil")
		return
	}

	logger := s.loggerWith(ctx, "SeedDemoData")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to seed demo data", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("seeded", seeded).InfoContext(ctx, "demo data seed finished")
	}()

	count, err := s.CountSupervisors(ctx)
	if err != nil {
		return
	}
	if count > 0 {
		return
	}

	john, err := s.CreateSupervisor(ctx, SupervisorInput{
		FirstName:           "John",
		LastName:            "Manager",
		Position:            "Team Lead",
		Email:               "john.manager@company.com",
		Phone:               stringRef("+1555000111"),
		NotificationChannel: notification.ChannelEmail,
	})
	if err != nil {
		return
	}
	if _, err = s.CreateSupervisor(ctx, SupervisorInput{
		FirstName:           "Sarah",
		LastName:            "Director",
		Position:            "Operations Director",
		Email:               "sarah.director@company.com",
		Phone:               stringRef("+1555000222"),
		NotificationChannel: notification.ChannelNone,
	}); err != nil {
		return
	}

	standard, err := s.CreateWorkSchedule(ctx, WorkScheduleInput{
		Name:         "Standard Work Week",
		SelectedDays: "Monday,Tuesday,Wednesday,Thursday,Friday",
		TimeRanges:   "09:00-17:00",
	})
	if err != nil {
		return
	}
	partTime, err := s.CreateWorkSchedule(ctx, WorkScheduleInput{
		Name:         "Part Time",
		SelectedDays: "Monday,Wednesday,Friday",
		TimeRanges:   "10:00-14:00",
	})
	if err != nil {
		return
	}

	schedules := map[string]string{"standard": standard.ID, "part_time": partTime.ID}
	for _, e := range []seedEmployee{
		{first: "Alice", last: "Johnson", position: "Developer", supervisor: john.ID, schedule: "standard", access: true},
		{first: "Bob", last: "Smith", position: "Tester", supervisor: john.ID, schedule: "part_time", access: false},
	} {
		if _, err = s.CreateEmployee(ctx, CreateEmployeeParams{
			Input: EmployeeInput{
				FirstName:      e.first,
				LastName:       e.last,
				Position:       e.position,
				SupervisorID:   stringRef(e.supervisor),
				WorkScheduleID: stringRef(schedules[e.schedule]),
				AccessGranted:  e.access,
			},
			Actor: SystemActor,
		}); err != nil {
			return
		}
	}

	seeded = true
	return
}

func stringRef(value string) *string {
	return &value
}
