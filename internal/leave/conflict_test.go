package leave_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hrcore/leave-management/internal"
	"github.com/hrcore/leave-management/internal/leave"
)

type mockDayFinder struct {
	existing  []*leave.ExistingDay
	excludeID int64
}

func (m *mockDayFinder) FindActiveDaysByDates(_ context.Context, _ int64, dates []time.Time, excludeRequestID int64) ([]*leave.ExistingDay, error) {
	m.excludeID = excludeRequestID
	var hits []*leave.ExistingDay
	for _, ex := range m.existing {
		if ex.RequestID == excludeRequestID {
			continue
		}
		for _, d := range dates {
			if ex.LeaveDate.Equal(d) {
				hits = append(hits, ex)
			}
		}
	}
	return hits, nil
}

var _ = Describe("ConflictChecker", func() {
	drafts := []leave.DayDraft{
		{Date: date("2026-09-07"), DayType: leave.DayFull},
		{Date: date("2026-09-08"), DayType: leave.DayFirstHalf},
	}

	It("passes when no existing day overlaps", func() {
		checker := leave.NewConflictChecker(&mockDayFinder{})
		Expect(checker.Check(context.Background(), 1, drafts, 0)).To(Succeed())
	})

	It("fails on an overlapping pending day, even a half day", func() {
		finder := &mockDayFinder{existing: []*leave.ExistingDay{
			{RequestID: 9, LeaveType: leave.TypeSick, LeaveDate: date("2026-09-08"), DayType: leave.DaySecondHalf, DayStatus: leave.DayPending},
		}}
		checker := leave.NewConflictChecker(finder)

		err := checker.Check(context.Background(), 1, drafts, 0)
		var conflict *internal.DateConflictError
		Expect(err).To(BeAssignableToTypeOf(conflict))
		Expect(err.(*internal.DateConflictError).Date.Format("2006-01-02")).To(Equal("2026-09-08"))
		Expect(err.(*internal.DateConflictError).ExistingType).To(Equal("sick"))
	})

	It("ignores the request's own days during an edit", func() {
		finder := &mockDayFinder{existing: []*leave.ExistingDay{
			{RequestID: 42, LeaveType: leave.TypeCasual, LeaveDate: date("2026-09-07"), DayType: leave.DayFull, DayStatus: leave.DayPending},
		}}
		checker := leave.NewConflictChecker(finder)
		Expect(checker.Check(context.Background(), 1, drafts, 42)).To(Succeed())
		Expect(finder.excludeID).To(Equal(int64(42)))
	})
})
