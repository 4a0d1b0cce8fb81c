package leave

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hrcore/leave-management/internal"
	"github.com/hrcore/leave-management/internal/calendar"
)

// DayDraft is one expanded working day before persistence.
type DayDraft struct {
	Date    time.Time
	DayType DayType
}

// DayExpander turns a requested date range into the ordered working days it
// covers, consulting the calendar for weekends and holidays.
type DayExpander struct {
	calendar calendar.Service
}

func NewDayExpander(cal calendar.Service) *DayExpander {
	return &DayExpander{calendar: cal}
}

// Expand walks [startDate, endDate] and keeps only working days. The first
// working day takes startType and the last takes endType; everything between
// is a full day. A single-day range uses startType only.
func (e *DayExpander) Expand(ctx context.Context, startDate, endDate time.Time, startType, endType DayType) ([]DayDraft, error) {
	start := NormalizeDate(startDate)
	end := NormalizeDate(endDate)

	if end.Before(start) {
		return nil, &internal.InvalidRangeError{StartDate: start, EndDate: end, Reason: "end date before start date"}
	}

	var drafts []DayDraft
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		working, err := e.calendar.IsWorkingDay(ctx, d)
		if err != nil {
			return nil, err
		}
		if !working {
			continue
		}
		drafts = append(drafts, DayDraft{Date: d, DayType: DayFull})
	}

	if len(drafts) == 0 {
		return nil, &internal.InvalidRangeError{StartDate: start, EndDate: end, Reason: "range contains no working days"}
	}

	drafts[0].DayType = startType
	if len(drafts) > 1 {
		drafts[len(drafts)-1].DayType = endType
	}

	return drafts, nil
}

// DraftWeight sums the weights of a draft set.
func DraftWeight(drafts []DayDraft) decimal.Decimal {
	total := decimal.Zero
	for _, d := range drafts {
		total = total.Add(d.DayType.Weight())
	}
	return total
}
