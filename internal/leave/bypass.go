package leave

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hrcore/leave-management/internal/core/events"
)

// EventBypassRecorder publishes urgent notice overrides onto the event bus so
// audit subscribers see them.
type EventBypassRecorder struct {
	events EventPublisher
}

func NewEventBypassRecorder(publisher EventPublisher) *EventBypassRecorder {
	return &EventBypassRecorder{events: publisher}
}

func (r *EventBypassRecorder) RecordNoticeBypass(ctx context.Context, employeeID int64, startDate time.Time, duration decimal.Decimal, requiredDays int) {
	r.events.Publish(ctx, events.NewNoticeBypassedEvent(
		employeeID,
		startDate.Format("2006-01-02"),
		duration.String(),
		requiredDays,
	))
}

var _ BypassRecorder = (*EventBypassRecorder)(nil)
