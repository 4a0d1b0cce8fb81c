package leave

import (
	"context"
	"time"

	"github.com/hrcore/leave-management/internal"
)

// ExistingDay is a non-rejected leave day already on an employee's record.
type ExistingDay struct {
	RequestID int64
	LeaveType Type
	LeaveDate time.Time
	DayType   DayType
	DayStatus DayStatus
}

// DayFinder looks up the employee's pending and approved days on a set of
// dates. Rejected days never count. excludeRequestID skips one request's own
// days so edits do not conflict with themselves.
type DayFinder interface {
	FindActiveDaysByDates(ctx context.Context, employeeID int64, dates []time.Time, excludeRequestID int64) ([]*ExistingDay, error)
}

// ConflictChecker rejects a draft set that overlaps any existing non-rejected
// day. A full existing day blocks any new day on that date; a half existing
// day also blocks both a new full and a new half day (no two half-day leaves
// coexist on one date).
type ConflictChecker struct {
	days DayFinder
}

func NewConflictChecker(days DayFinder) *ConflictChecker {
	return &ConflictChecker{days: days}
}

// Check fails on the first violation; the caller aborts the whole application.
func (c *ConflictChecker) Check(ctx context.Context, employeeID int64, drafts []DayDraft, excludeRequestID int64) error {
	dates := make([]time.Time, len(drafts))
	for i, d := range drafts {
		dates[i] = d.Date
	}

	existing, err := c.days.FindActiveDaysByDates(ctx, employeeID, dates, excludeRequestID)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return nil
	}

	byDate := make(map[time.Time]*ExistingDay, len(existing))
	for _, ex := range existing {
		byDate[NormalizeDate(ex.LeaveDate)] = ex
	}

	for _, draft := range drafts {
		if ex, ok := byDate[draft.Date]; ok {
			return &internal.DateConflictError{
				EmployeeID:     employeeID,
				Date:           draft.Date,
				ExistingStatus: string(ex.DayStatus),
				ExistingType:   string(ex.LeaveType),
			}
		}
	}
	return nil
}
