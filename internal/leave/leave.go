package leave

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/hrcore/leave-management/internal/employee"
)

type Type string

const (
	TypeCasual     Type = "casual"
	TypeSick       Type = "sick"
	TypeLOP        Type = "lop"
	TypePermission Type = "permission"
)

// RequiresBalance reports whether the type moves the balance ledger.
// Intraday permission is tracked and approved but never hits the ledger.
func (t Type) RequiresBalance() bool {
	return t == TypeCasual || t == TypeSick || t == TypeLOP
}

func (t Type) Valid() bool {
	switch t {
	case TypeCasual, TypeSick, TypeLOP, TypePermission:
		return true
	}
	return false
}

type DayType string

const (
	DayFull       DayType = "full"
	DayFirstHalf  DayType = "first_half"
	DaySecondHalf DayType = "second_half"
)

func (d DayType) Valid() bool {
	switch d {
	case DayFull, DayFirstHalf, DaySecondHalf:
		return true
	}
	return false
}

var (
	fullWeight = decimal.NewFromInt(1)
	halfWeight = decimal.NewFromFloat(0.5)
)

// Weight returns the balance weight of a day: full = 1, half = 0.5.
func (d DayType) Weight() decimal.Decimal {
	if d == DayFirstHalf || d == DaySecondHalf {
		return halfWeight
	}
	return fullWeight
}

type DayStatus string

const (
	DayPending  DayStatus = "pending"
	DayApproved DayStatus = "approved"
	DayRejected DayStatus = "rejected"
)

type RequestStatus string

const (
	StatusPending           RequestStatus = "pending"
	StatusApproved          RequestStatus = "approved"
	StatusRejected          RequestStatus = "rejected"
	StatusCancelled         RequestStatus = "cancelled"
	StatusPartiallyApproved RequestStatus = "partially_approved"
)

// LeaveRequest aggregates the days of one application. CurrentStatus is
// derived from day statuses and never mutated independently of them.
type LeaveRequest struct {
	ID                int64         `json:"id" gorm:"primaryKey"`
	EmployeeID        int64         `json:"employee_id" gorm:"column:employee_id;not null;index"`
	LeaveType         Type          `json:"leave_type" gorm:"column:leave_type;not null"`
	StartDate         time.Time     `json:"start_date" gorm:"column:start_date;type:date;not null"`
	EndDate           time.Time     `json:"end_date" gorm:"column:end_date;type:date;not null"`
	StartDayType      DayType       `json:"start_day_type" gorm:"column:start_day_type;default:full"`
	EndDayType        DayType       `json:"end_day_type" gorm:"column:end_day_type;default:full"`
	StartTime         *string       `json:"start_time,omitempty" gorm:"column:start_time"`
	EndTime           *string       `json:"end_time,omitempty" gorm:"column:end_time"`
	Reason            string        `json:"reason" gorm:"not null"`
	Urgent            bool          `json:"urgent" gorm:"column:urgent;default:false"`
	DoctorNote        *string       `json:"doctor_note,omitempty" gorm:"column:doctor_note"`
	CurrentStatus     RequestStatus `json:"current_status" gorm:"column:current_status;default:pending"`
	LastUpdatedBy     *int64        `json:"last_updated_by,omitempty" gorm:"column:last_updated_by"`
	LastUpdatedByRole employee.Role `json:"last_updated_by_role,omitempty" gorm:"column:last_updated_by_role;default:''"`
	DecisionComment   *string       `json:"decision_comment,omitempty" gorm:"column:decision_comment"`
	CreatedBy         int64         `json:"created_by" gorm:"column:created_by"`
	UpdatedBy         int64         `json:"updated_by" gorm:"column:updated_by"`
	CreatedAt         time.Time     `json:"created_at" gorm:"column:created_at"`
	UpdatedAt         time.Time     `json:"updated_at" gorm:"column:updated_at"`

	Days []LeaveDay `json:"days,omitempty" gorm:"foreignKey:LeaveRequestID"`
}

func (LeaveRequest) TableName() string {
	return "leave_requests"
}

// Editable reports whether the original employee may still edit or delete the
// request: every day pending and no approver has touched it yet.
func (r *LeaveRequest) Editable() bool {
	return r.CurrentStatus == StatusPending && r.LastUpdatedByRole == ""
}

// PendingDays returns the days still awaiting a decision.
func (r *LeaveRequest) PendingDays() []LeaveDay {
	var pending []LeaveDay
	for _, d := range r.Days {
		if d.DayStatus == DayPending {
			pending = append(pending, d)
		}
	}
	return pending
}

// LeaveDay is the atomic unit of approval: one working date with its own status.
type LeaveDay struct {
	ID             int64     `json:"id" gorm:"primaryKey"`
	LeaveRequestID int64     `json:"leave_request_id" gorm:"column:leave_request_id;not null;index"`
	LeaveDate      time.Time `json:"leave_date" gorm:"column:leave_date;type:date;not null;index"`
	DayType        DayType   `json:"day_type" gorm:"column:day_type;default:full"`
	DayStatus      DayStatus `json:"day_status" gorm:"column:day_status;default:pending"`
	CreatedBy      int64     `json:"created_by" gorm:"column:created_by"`
	UpdatedBy      int64     `json:"updated_by" gorm:"column:updated_by"`
	CreatedAt      time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (LeaveDay) TableName() string {
	return "leave_days"
}

// AggregateStatus derives the request-level status from its day statuses.
// Pure function over the day-status multiset; approval code never sets the
// aggregate directly.
func AggregateStatus(days []LeaveDay) RequestStatus {
	var pending, approved, rejected int
	for _, d := range days {
		switch d.DayStatus {
		case DayPending:
			pending++
		case DayApproved:
			approved++
		case DayRejected:
			rejected++
		}
	}

	switch {
	case pending == 0 && rejected == 0 && approved > 0:
		return StatusApproved
	case pending == 0 && approved == 0 && rejected > 0:
		return StatusRejected
	case approved > 0:
		return StatusPartiallyApproved
	default:
		return StatusPending
	}
}

// TotalWeight sums day weights: full days count 1, half days 0.5.
func TotalWeight(days []LeaveDay) decimal.Decimal {
	total := decimal.Zero
	for _, d := range days {
		total = total.Add(d.DayType.Weight())
	}
	return total
}

// NormalizeDate truncates a timestamp to its calendar date in UTC. All leave
// dates are compared at day granularity.
func NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
