package http

import (
	"encoding/json"
	"fmt"

	"github.com/example/access-compliance/internal/application"
)

type ledgerEventDTO struct {
	Kind    string         `json:"kind"`
	Event   *swipeEventDTO `json:"event,omitempty"`
	Removed int64          `json:"removed,omitempty"`
}

// EncodeLedgerEvent renders a ledger event with the same row shape the
// timetracker endpoints return, for the SSE hub and the Redis channel.
func EncodeLedgerEvent(event application.LedgerEvent) ([]byte, error) {
	dto := ledgerEventDTO{Kind: string(event.Kind), Removed: event.Removed}
	if event.Event != nil {
		row := toSwipeEventDTO(*event.Event)
		dto.Event = &row
	}
	payload, err := json.Marshal(dto)
	if err != nil {
		return nil, fmt.Errorf("encode ledger event: %w", err)
	}
	return payload, nil
}
