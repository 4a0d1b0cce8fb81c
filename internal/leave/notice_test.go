package leave_test

import (
	"context"
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/hrcore/leave-management/internal"
	"github.com/hrcore/leave-management/internal/leave"
)

type mockRuleRepo struct {
	rules []*leave.Rule
	err   error
}

func (m *mockRuleRepo) ListActive(_ context.Context) ([]*leave.Rule, error) {
	return m.rules, m.err
}

type recordedBypass struct {
	employeeID   int64
	requiredDays int
}

type mockBypassRecorder struct {
	bypasses []recordedBypass
}

func (m *mockBypassRecorder) RecordNoticeBypass(_ context.Context, employeeID int64, _ time.Time, _ decimal.Decimal, requiredDays int) {
	m.bypasses = append(m.bypasses, recordedBypass{employeeID: employeeID, requiredDays: requiredDays})
}

var _ = Describe("NoticeValidator", func() {
	var (
		recorder  *mockBypassRecorder
		validator *leave.NoticeValidator
	)

	testLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	BeforeEach(func() {
		rules := &mockRuleRepo{rules: []*leave.Rule{
			{LeaveRequiredMin: decimal.NewFromFloat(0.5), LeaveRequiredMax: decimal.NewFromInt(2), PriorInformationDays: 1, IsActive: true},
			{LeaveRequiredMin: decimal.NewFromFloat(2.5), LeaveRequiredMax: decimal.NewFromInt(5), PriorInformationDays: 7, IsActive: true},
		}}
		recorder = &mockBypassRecorder{}
		validator = leave.NewNoticeValidator(rules, recorder, testLogger)
	})

	applied := date("2026-09-01")

	It("passes when enough notice is given", func() {
		err := validator.Validate(context.Background(), 1, applied, date("2026-09-10"), decimal.NewFromInt(3), false)
		Expect(err).NotTo(HaveOccurred())
	})

	It("fails when the gap is below the band threshold", func() {
		err := validator.Validate(context.Background(), 1, applied, date("2026-09-03"), decimal.NewFromInt(3), false)
		var noticeErr *internal.InsufficientNoticeError
		Expect(err).To(BeAssignableToTypeOf(noticeErr))
		Expect(err.(*internal.InsufficientNoticeError).RequiredDays).To(Equal(7))
		Expect(err.(*internal.InsufficientNoticeError).GivenDays).To(Equal(2))
	})

	It("lets urgent requests through and records the bypass", func() {
		err := validator.Validate(context.Background(), 7, applied, date("2026-09-02"), decimal.NewFromInt(4), true)
		Expect(err).NotTo(HaveOccurred())
		Expect(recorder.bypasses).To(HaveLen(1))
		Expect(recorder.bypasses[0].employeeID).To(Equal(int64(7)))
		Expect(recorder.bypasses[0].requiredDays).To(Equal(7))
	})

	It("passes when no band covers the duration", func() {
		err := validator.Validate(context.Background(), 1, applied, date("2026-09-01"), decimal.NewFromInt(30), false)
		Expect(err).NotTo(HaveOccurred())
	})
})
