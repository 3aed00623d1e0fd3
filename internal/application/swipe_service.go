package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/access-compliance/internal/compliance"
	"github.com/example/access-compliance/internal/notification"
	"github.com/example/access-compliance/internal/workschedule"
)

// IngestAcknowledgement is the fixed message returned for every accepted swipe.
const IngestAcknowledgement = "Data received successfully"

const systemMessageOutsideSchedule = "access granted (outside work schedule)"

// LedgerAppender stores swipe events.
type LedgerAppender interface {
	Append(ctx context.Context, event SwipeEvent) (SwipeEvent, error)
}

// Notifier hands an intent to asynchronous delivery. It must not block on
// the delivery itself.
type Notifier interface {
	Dispatch(ctx context.Context, intent notification.Intent)
}

// SwipeService classifies a swipe, evaluates it against the holder's schedule,
// appends the ledger row and dispatches any supervisor notification.
type SwipeService struct {
	cards     CardResolver
	ledger    LedgerAppender
	evaluator *compliance.Evaluator
	notifier  Notifier
	metrics   *Metrics
	tracer    trace.Tracer
	now       func() time.Time
	logger    *slog.Logger
}

// SwipeServiceDeps groups the collaborators of a SwipeService.
type SwipeServiceDeps struct {
	Cards     CardResolver
	Ledger    LedgerAppender
	Evaluator *compliance.Evaluator
	Notifier  Notifier
	Metrics   *Metrics
	Tracer    trace.Tracer
	Now       func() time.Time
	Logger    *slog.Logger
}

// NewSwipeService constructs a swipe service.
func NewSwipeService(deps SwipeServiceDeps) *SwipeService {
	if deps.Evaluator == nil {
		deps.Evaluator = compliance.NewEvaluator(nil)
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer(instrumentationName)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &SwipeService{
		cards:     deps.Cards,
		ledger:    deps.Ledger,
		evaluator: deps.Evaluator,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		tracer:    deps.Tracer,
		now:       deps.Now,
		logger:    defaultLogger(deps.Logger),
	}
}

func (s *SwipeService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SwipeService", operation, attrs...)
}

// Ingest processes one device report. The ledger row is committed before any
// notification is handed to the notifier.
func (s *SwipeService) Ingest(ctx context.Context, in SwipeInput) (result SwipeResult, err error) {
	if s == nil {
		err = fmt.Errorf("SwipeService is nil")
		return
	}
	if s.ledger == nil {
		err = fmt.Errorf("ledger not configured")
		return
	}

	cardID := normalizeCardID(in.CardID)
	ctx, span := s.tracer.Start(ctx, "SwipeService.Ingest", trace.WithAttributes(
		attribute.String("swipe.terminal_id", in.TerminalID),
		attribute.String("swipe.action", in.Action),
		attribute.Bool("swipe.card_present", cardID != ""),
	))
	defer span.End()

	logger := s.loggerWith(ctx, "Ingest",
		"terminal_id", in.TerminalID,
		"action", in.Action,
		"card_id", cardID,
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.ErrorContext(ctx, "failed to ingest swipe", "error", err, "error_kind", ErrorKind(err))
			return
		}
		span.SetAttributes(
			attribute.String("swipe.access_level", string(result.Event.AccessLevel)),
			attribute.String("swipe.status", result.Event.Status),
		)
		logger.With(
			"event_id", result.Event.ID,
			"access_level", result.Event.AccessLevel,
			"status", result.Event.Status,
			"timestamp_source", result.Event.TimestampSource,
		).InfoContext(ctx, "swipe recorded")
	}()

	receivedAt := s.now()

	var (
		resolved ResolvedEmployee
		found    bool
	)
	if cardID != "" && s.cards != nil {
		resolved, found, err = s.cards.ResolveByCard(ctx, cardID)
		if err != nil {
			err = fmt.Errorf("resolve card: %w", err)
			return
		}
	}
	decision := classifyAccess(cardID, resolved, found)

	var schedule *workschedule.Schedule
	if found && resolved.Schedule != nil {
		model := resolved.Schedule.Model()
		schedule = &model
	}
	finding := s.evaluator.Evaluate(compliance.Input{
		Action:          in.Action,
		DeviceTimestamp: in.DeviceTimestamp,
		ReceivedAt:      receivedAt,
		Schedule:        schedule,
		// TODO: decide whether Unauthorized swipes should notify; they currently do.
		Notifiable:      found && resolved.Supervisor != nil,
	})

	event := SwipeEvent{
		TerminalID:           strings.TrimSpace(in.TerminalID),
		Action:               strings.TrimSpace(in.Action),
		CardID:               cardID,
		Status:               ledgerStatus(in.Status, decision, finding),
		DeviceTimestamp:      in.DeviceTimestamp,
		DeviceLocalTimestamp: in.DeviceLocalTimestamp,
		ActiveSessions:       in.ActiveSessions,
		UptimeSeconds:        in.UptimeSeconds,
		WifiConnected:        in.WifiConnected,
		ReceivedAt:           receivedAt,
		AccessLevel:          decision.Level,
		TimestampSource:      finding.Source,
	}
	if found {
		id := resolved.ID
		event.EmployeeID = &id
		event.EmployeeName = resolved.FullName()
	}

	var notice notification.Decision
	if finding.Trigger != nil && resolved.Supervisor != nil {
		notice = notification.Emit(*finding.Trigger,
			notification.Subject{EmployeeID: resolved.ID, FullName: resolved.FullName()},
			recipientFor(*resolved.Supervisor),
		)
	}

	stored, err := s.ledger.Append(ctx, event)
	if err != nil {
		return
	}
	s.metrics.recordSwipe(ctx, stored.AccessLevel, stored.Status)

	s.handleNotification(ctx, logger, finding.Trigger, notice)

	result = SwipeResult{
		Event:         stored,
		AccessGranted: decision.Granted,
		Employee:      decision.Employee,
		SystemMessage: systemMessage(decision, finding),
		EffectiveAt:   finding.EffectiveAt,
		Notification:  notice,
	}
	return
}

func (s *SwipeService) handleNotification(ctx context.Context, logger *slog.Logger, trigger *compliance.Trigger, notice notification.Decision) {
	if trigger == nil {
		return
	}
	kind := string(trigger.Kind)
	switch {
	case notice.Intent != nil:
		s.metrics.recordNotification(ctx, kind, "emitted")
		if s.notifier == nil {
			logger.WarnContext(ctx, "notification emitted without a notifier", "trigger", kind)
			return
		}
		s.notifier.Dispatch(ctx, *notice.Intent)
	case notice.Suppressed:
		s.metrics.recordNotification(ctx, kind, "suppressed")
		logger.WarnContext(ctx, "notification suppressed", "trigger", kind, "reason", notice.Reason)
	default:
		s.metrics.recordNotification(ctx, kind, "opted_out")
	}
}

func ledgerStatus(reported string, decision AccessDecision, finding compliance.Finding) string {
	switch decision.Reason {
	case ReasonNoCard:
		if status := strings.TrimSpace(reported); status != "" {
			return status
		}
		return StatusNoCard
	case ReasonCardNotAssigned:
		return StatusCardNotAssigned
	case ReasonAccessDenied:
		return StatusAccessDenied
	}
	return string(finding.Outcome)
}

func systemMessage(decision AccessDecision, finding compliance.Finding) string {
	if decision.Granted && finding.Outcome == compliance.OutcomeScheduleViolation {
		return systemMessageOutsideSchedule
	}
	return decision.Reason
}

func recipientFor(supervisor Supervisor) notification.Recipient {
	recipient := notification.Recipient{
		SupervisorID: supervisor.ID,
		FullName:     supervisor.FullName(),
		Email:        supervisor.Email,
		Channel:      supervisor.NotificationChannel,
	}
	if supervisor.Phone != nil {
		recipient.Phone = *supervisor.Phone
	}
	return recipient
}
