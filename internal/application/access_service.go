package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

const (
	ReasonNoCard          = "no card id provided"
	ReasonCardNotAssigned = "card not assigned to any employee"
	ReasonAccessDenied    = "access denied for this employee"
	ReasonAccessGranted   = "access granted"
)

// CardResolver resolves card holders and their open assignment.
type CardResolver interface {
	ResolveByCard(ctx context.Context, cardID string) (ResolvedEmployee, bool, error)
	ActiveAssignment(ctx context.Context, cardID string) (*CardAssignment, error)
}

// CardEventReader returns the latest ledger row recorded for a card.
type CardEventReader interface {
	LatestForCard(ctx context.Context, cardID string) (*SwipeEvent, error)
}

// AccessService answers card access queries without recording anything.
type AccessService struct {
	cards  CardResolver
	events CardEventReader
	logger *slog.Logger
}

// NewAccessService constructs an access service.
func NewAccessService(cards CardResolver, events CardEventReader) *AccessService {
	return NewAccessServiceWithLogger(cards, events, nil)
}

// NewAccessServiceWithLogger constructs an access service with a specified logger.
func NewAccessServiceWithLogger(cards CardResolver, events CardEventReader, logger *slog.Logger) *AccessService {
	return &AccessService{cards: cards, events: events, logger: defaultLogger(logger)}
}

func (s *AccessService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AccessService", operation, attrs...)
}

// classifyAccess maps the resolution result of a card to an access decision.
func classifyAccess(cardID string, resolved ResolvedEmployee, found bool) AccessDecision {
	switch {
	case strings.TrimSpace(cardID) == "":
		return AccessDecision{Level: AccessUnknown, Reason: ReasonNoCard}
	case !found:
		return AccessDecision{Level: AccessUnknown, Reason: ReasonCardNotAssigned}
	case !resolved.AccessGranted:
		return AccessDecision{Level: AccessUnauthorized, Employee: &resolved, Reason: ReasonAccessDenied}
	default:
		return AccessDecision{Granted: true, Level: AccessAuthorized, Employee: &resolved, Reason: ReasonAccessGranted}
	}
}

// ValidateCardAccess classifies cardID as a swipe would.
func (s *AccessService) ValidateCardAccess(ctx context.Context, cardID string) (decision AccessDecision, err error) {
	if s == nil {
		err = fmt.Errorf("AccessService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ValidateCardAccess", "card_id", strings.TrimSpace(cardID))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to validate card access", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "card access validated", "access_level", decision.Level)
	}()

	var (
		resolved ResolvedEmployee
		found    bool
	)
	if strings.TrimSpace(cardID) != "" && s.cards != nil {
		resolved, found, err = s.cards.ResolveByCard(ctx, cardID)
		if err != nil {
			return
		}
	}
	decision = classifyAccess(cardID, resolved, found)
	return
}

// CardStatus reports the binding of cardID together with its last ledger row.
func (s *AccessService) CardStatus(ctx context.Context, cardID string) (status CardStatus, err error) {
	if s == nil {
		err = fmt.Errorf("AccessService is nil")
		return
	}

	cardID = normalizeCardID(cardID)
	logger := s.loggerWith(ctx, "CardStatus", "card_id", cardID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to load card status", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if vErr := validateCardID(cardID); vErr.HasErrors() {
		err = vErr
		return
	}

	decision, err := s.ValidateCardAccess(ctx, cardID)
	if err != nil {
		return
	}
	status = CardStatus{
		CardID:   cardID,
		Assigned: decision.Employee != nil,
		Decision: decision,
	}

	if s.cards != nil {
		status.ActiveAssignment, err = s.cards.ActiveAssignment(ctx, cardID)
		if err != nil {
			err = fmt.Errorf("load active assignment: %w", err)
			return
		}
	}
	if s.events != nil {
		status.LastEvent, err = s.events.LatestForCard(ctx, cardID)
		if err != nil {
			err = fmt.Errorf("load last event: %w", err)
			return
		}
	}
	return
}
