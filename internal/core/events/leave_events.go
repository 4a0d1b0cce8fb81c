package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeLeaveApplied   = "leave.applied"
	EventTypeLeaveDecided   = "leave.decided"
	EventTypeLeaveCancelled = "leave.cancelled"
	EventTypeNoticeBypassed = "leave.notice_bypassed"
	EventTypeAccrualApplied = "accrual.applied"
)

func newBase(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

type LeaveAppliedEvent struct {
	BaseEvent
	RequestID  int64  `json:"request_id"`
	EmployeeID int64  `json:"employee_id"`
	LeaveType  string `json:"leave_type"`
	Days       int    `json:"days"`
}

func NewLeaveAppliedEvent(requestID, employeeID int64, leaveType string, days int) *LeaveAppliedEvent {
	return &LeaveAppliedEvent{
		BaseEvent: newBase(EventTypeLeaveApplied, map[string]interface{}{
			"request_id":  requestID,
			"employee_id": employeeID,
			"leave_type":  leaveType,
			"days":        days,
		}),
		RequestID:  requestID,
		EmployeeID: employeeID,
		LeaveType:  leaveType,
		Days:       days,
	}
}

type LeaveCancelledEvent struct {
	BaseEvent
	RequestID   int64 `json:"request_id"`
	EmployeeID  int64 `json:"employee_id"`
	CancelledBy int64 `json:"cancelled_by"`
}

func NewLeaveCancelledEvent(requestID, employeeID, cancelledBy int64) *LeaveCancelledEvent {
	return &LeaveCancelledEvent{
		BaseEvent: newBase(EventTypeLeaveCancelled, map[string]interface{}{
			"request_id":   requestID,
			"employee_id":  employeeID,
			"cancelled_by": cancelledBy,
		}),
		RequestID:   requestID,
		EmployeeID:  employeeID,
		CancelledBy: cancelledBy,
	}
}

type LeaveDecidedEvent struct {
	BaseEvent
	RequestID     int64  `json:"request_id"`
	EmployeeID    int64  `json:"employee_id"`
	Status        string `json:"status"`
	DecidedBy     int64  `json:"decided_by"`
	DecidedByRole string `json:"decided_by_role"`
}

func NewLeaveDecidedEvent(requestID, employeeID int64, status string, decidedBy int64, decidedByRole string) *LeaveDecidedEvent {
	return &LeaveDecidedEvent{
		BaseEvent: newBase(EventTypeLeaveDecided, map[string]interface{}{
			"request_id":      requestID,
			"employee_id":     employeeID,
			"status":          status,
			"decided_by":      decidedBy,
			"decided_by_role": decidedByRole,
		}),
		RequestID:     requestID,
		EmployeeID:    employeeID,
		Status:        status,
		DecidedBy:     decidedBy,
		DecidedByRole: decidedByRole,
	}
}

// NoticeBypassedEvent records an urgent override of the notice-period rule so
// the bypass is auditable rather than silent.
type NoticeBypassedEvent struct {
	BaseEvent
	EmployeeID   int64  `json:"employee_id"`
	StartDate    string `json:"start_date"`
	Duration     string `json:"duration"`
	RequiredDays int    `json:"required_days"`
}

func NewNoticeBypassedEvent(employeeID int64, startDate string, duration string, requiredDays int) *NoticeBypassedEvent {
	return &NoticeBypassedEvent{
		BaseEvent: newBase(EventTypeNoticeBypassed, map[string]interface{}{
			"employee_id":   employeeID,
			"start_date":    startDate,
			"duration":      duration,
			"required_days": requiredDays,
		}),
		EmployeeID:   employeeID,
		StartDate:    startDate,
		Duration:     duration,
		RequiredDays: requiredDays,
	}
}

type AccrualAppliedEvent struct {
	BaseEvent
	PeriodKey string `json:"period_key"`
	Trigger   string `json:"trigger"`
	Credited  int    `json:"credited"`
	Skipped   int    `json:"skipped"`
}

func NewAccrualAppliedEvent(periodKey, trigger string, credited, skipped int) *AccrualAppliedEvent {
	return &AccrualAppliedEvent{
		BaseEvent: newBase(EventTypeAccrualApplied, map[string]interface{}{
			"period_key": periodKey,
			"trigger":    trigger,
			"credited":   credited,
			"skipped":    skipped,
		}),
		PeriodKey: periodKey,
		Trigger:   trigger,
		Credited:  credited,
		Skipped:   skipped,
	}
}
