package beneficiary

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/revenue-engine/ledger"
)

// Publisher sends committed changes to the event bus.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// Routing keys.
const (
	EventCreated = "beneficiary.created"
	EventUpdated = "beneficiary.updated"
	EventDeleted = "beneficiary.deleted"
)

// DefaultExchange is the topic exchange beneficiary events go to.
const DefaultExchange = "beneficiary_events"

// Event is the JSON body of every beneficiary event.
type Event struct {
	Type        string          `json:"type"`
	ID          string          `json:"id"`
	User        string          `json:"user"`
	PaymentType string          `json:"paymentType"`
	Percentage  decimal.Decimal `json:"percentage"`
	Role        string          `json:"role"`
	Actor       string          `json:"actor,omitempty"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

func newEvent(kind string, b ledger.Beneficiary, actor string, at time.Time) Event {
	return Event{
		Type:        kind,
		ID:          string(b.ID),
		User:        string(b.User),
		PaymentType: string(b.PaymentType),
		Percentage:  b.Percentage,
		Role:        string(b.Role),
		Actor:       actor,
		OccurredAt:  at,
	}
}

// publish is best effort: the change is already committed.
func (m *Manager) publish(ctx context.Context, kind string, b ledger.Beneficiary, actor string) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(ctx, m.exchange, kind, newEvent(kind, b, actor, m.now().UTC())); err != nil {
		m.logger.Warn("failed to publish beneficiary event",
			"event", kind, "beneficiary", b.ID, "error", err)
	}
}
