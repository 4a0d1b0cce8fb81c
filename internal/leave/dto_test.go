package leave_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hrcore/leave-management/internal/leave"
)

func strptr(s string) *string { return &s }

var _ = Describe("ApplyLeaveDTO", func() {
	valid := func() leave.ApplyLeaveDTO {
		return leave.ApplyLeaveDTO{
			LeaveType: "casual",
			StartDate: "2026-09-07",
			EndDate:   "2026-09-09",
			Reason:    "family function",
		}
	}

	It("accepts a well-formed application", func() {
		Expect(valid().Validate()).To(Succeed())
	})

	It("rejects an unknown leave type", func() {
		dto := valid()
		dto.LeaveType = "sabbatical"
		Expect(dto.Validate()).To(MatchError(ContainSubstring("leave type")))
	})

	It("rejects a malformed date", func() {
		dto := valid()
		dto.StartDate = "07-09-2026"
		Expect(dto.Validate()).To(MatchError(ContainSubstring("YYYY-MM-DD")))
	})

	It("rejects end before start", func() {
		dto := valid()
		dto.EndDate = "2026-09-01"
		Expect(dto.Validate()).To(MatchError(ContainSubstring("end date")))
	})

	It("rejects a doctor note on non-sick leave", func() {
		dto := valid()
		dto.DoctorNote = strptr("note.pdf")
		Expect(dto.Validate()).To(MatchError(ContainSubstring("doctor note")))
	})

	It("accepts a doctor note on sick leave", func() {
		dto := valid()
		dto.LeaveType = "sick"
		dto.DoctorNote = strptr("note.pdf")
		Expect(dto.Validate()).To(Succeed())
	})

	Context("permission requests", func() {
		It("requires a single day with times", func() {
			dto := leave.ApplyLeaveDTO{
				LeaveType: "permission",
				StartDate: "2026-09-07",
				EndDate:   "2026-09-07",
				StartTime: strptr("10:00"),
				EndTime:   strptr("12:00"),
				Reason:    "bank visit",
			}
			Expect(dto.Validate()).To(Succeed())
		})

		It("rejects a multi-day permission", func() {
			dto := leave.ApplyLeaveDTO{
				LeaveType: "permission",
				StartDate: "2026-09-07",
				EndDate:   "2026-09-08",
				StartTime: strptr("10:00"),
				EndTime:   strptr("12:00"),
				Reason:    "bank visit",
			}
			Expect(dto.Validate()).To(MatchError(ContainSubstring("single day")))
		})

		It("rejects an inverted time window", func() {
			dto := leave.ApplyLeaveDTO{
				LeaveType: "permission",
				StartDate: "2026-09-07",
				EndDate:   "2026-09-07",
				StartTime: strptr("14:00"),
				EndTime:   strptr("12:00"),
				Reason:    "bank visit",
			}
			Expect(dto.Validate()).To(MatchError(ContainSubstring("after start time")))
		})

		It("rejects times on a non-permission request", func() {
			dto := valid()
			dto.StartTime = strptr("10:00")
			Expect(dto.Validate()).To(MatchError(ContainSubstring("only accepted for permission")))
		})
	})
})

var _ = Describe("DecideLeaveDTO", func() {
	It("accepts approve and reject", func() {
		Expect(leave.DecideLeaveDTO{Outcome: "approve"}.Validate()).To(Succeed())
		Expect(leave.DecideLeaveDTO{Outcome: "reject"}.Validate()).To(Succeed())
	})

	It("rejects other outcomes", func() {
		Expect(leave.DecideLeaveDTO{Outcome: "defer"}.Validate()).To(HaveOccurred())
	})
})
