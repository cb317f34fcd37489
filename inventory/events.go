package inventory

import (
	"context"
	"log/slog"
	"time"
)

// Event topic constants
const (
	TopicSessionOpened    = "stockroom.session.opened"
	TopicSessionClosed    = "stockroom.session.closed"
	TopicMovementRecorded = "stockroom.movement.recorded"
	TopicMovementEdited   = "stockroom.movement.edited"
	TopicStockLow         = "stockroom.stock.low"
)

// Publisher emits domain events after a transaction commits.
// events.NATSPublisher, events.AMQPPublisher and events.NoopPublisher satisfy it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
}

// Event types

type SessionOpened struct {
	SessionID     SessionID     `json:"session_id"`
	EmployeeID    EmployeeID    `json:"employee_id"`
	FacilityID    FacilityID    `json:"facility_id"`
	Justification Justification `json:"justification"`
	OpenedAt      time.Time     `json:"opened_at"`
}

type SessionClosed struct {
	SessionID  SessionID  `json:"session_id"`
	EmployeeID EmployeeID `json:"employee_id"`
	ClosedAt   time.Time  `json:"closed_at"`
	ClosedBy   string     `json:"closed_by,omitempty"`
}

type MovementRecorded struct {
	MovementID MovementID   `json:"movement_id"`
	SessionID  SessionID    `json:"session_id"`
	MaterialID MaterialID   `json:"material_id"`
	Quantity   int64        `json:"quantity"`
	Kind       MovementKind `json:"kind"`
	Stock      int64        `json:"stock"`
}

type MovementEdited struct {
	MovementID       MovementID   `json:"movement_id"`
	SessionID        SessionID    `json:"session_id"`
	MaterialID       MaterialID   `json:"material_id"`
	Quantity         int64        `json:"quantity"`
	Kind             MovementKind `json:"kind"`
	PreviousMaterial MaterialID   `json:"previous_material_id"`
	PreviousQuantity int64        `json:"previous_quantity"`
	PreviousKind     MovementKind `json:"previous_kind"`
	Stock            int64        `json:"stock"`
}

type StockLow struct {
	MaterialID MaterialID `json:"material_id"`
	Stock      int64      `json:"stock"`
	Threshold  int64      `json:"threshold"`
}

// publish is best-effort: the state change already committed, so a
// transport failure is logged and dropped.
func publish(ctx context.Context, p Publisher, logger *slog.Logger, topic string, event any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, topic, event); err != nil {
		logger.Warn("failed to publish event", "topic", topic, "error", err)
	}
}
