package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/access-compliance/internal/application"
	"github.com/example/access-compliance/internal/compliance"
)

// ServiceFactory builds application services on a shared deterministic clock
// and id sequence.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	// Location is the site location given to swipe evaluation. Nil means UTC.
	Location *time.Location
	Logger   *slog.Logger
}

type ServiceFactoryOption func(*ServiceFactory)

func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	if factory.Location == nil {
		factory.Location = time.UTC
	}
	return factory
}

func WithClock(clock *Clock) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.Clock = clock }
}

func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.IDGenerator = generator }
}

func WithLocation(loc *time.Location) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.Location = loc }
}

func WithLogger(logger *slog.Logger) ServiceFactoryOption {
	return func(f *ServiceFactory) { f.Logger = logger }
}

// CardRegistryDeps lists the stores behind a card registry.
type CardRegistryDeps struct {
	Store       application.CardStore
	Employees   application.EmployeeLookup
	Supervisors application.SupervisorLookup
	Schedules   application.ScheduleLookup
	Locker      application.CardLocker
}

func (f *ServiceFactory) NewCardRegistry(deps CardRegistryDeps) *application.CardRegistry {
	return application.NewCardRegistryWithLogger(
		deps.Store,
		deps.Employees,
		deps.Supervisors,
		deps.Schedules,
		deps.Locker,
		f.IDGenerator.NextFunc(),
		f.Clock.NowFunc(),
		f.Logger,
	)
}

// DirectoryServiceDeps lists the repositories behind a directory service.
type DirectoryServiceDeps struct {
	Employees   application.EmployeeRepository
	Supervisors application.SupervisorRepository
	Schedules   application.WorkScheduleRepository
	Cards       application.CardAdministrator
}

func (f *ServiceFactory) NewDirectoryService(deps DirectoryServiceDeps) *application.DirectoryService {
	return application.NewDirectoryServiceWithLogger(
		deps.Employees,
		deps.Supervisors,
		deps.Schedules,
		deps.Cards,
		f.IDGenerator.NextFunc(),
		f.Clock.NowFunc(),
		f.Logger,
	)
}

// NewSwipeService wires ingestion on the factory clock and location. Metrics
// and tracer fall back to the global OpenTelemetry providers.
func (f *ServiceFactory) NewSwipeService(cards application.CardResolver, ledger application.LedgerAppender, notifier application.Notifier) *application.SwipeService {
	return application.NewSwipeService(application.SwipeServiceDeps{
		Cards:     cards,
		Ledger:    ledger,
		Evaluator: compliance.NewEvaluator(f.Location),
		Notifier:  notifier,
		Now:       f.Clock.NowFunc(),
		Logger:    f.Logger,
	})
}
