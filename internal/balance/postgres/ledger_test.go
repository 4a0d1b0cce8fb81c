package postgres

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hrcore/leave-management/internal"
	"github.com/hrcore/leave-management/internal/balance"
)

func TestLedgerStore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "LedgerStore Suite")
}

// stubPending reports a fixed outstanding pending weight per leave type.
type stubPending struct {
	outstanding map[string]decimal.Decimal
}

func (s *stubPending) OutstandingPending(_ context.Context, _ int64, leaveType string) (decimal.Decimal, error) {
	return s.outstanding[leaveType], nil
}

var _ = Describe("LedgerStore", func() {
	var (
		db      *gorm.DB
		pending *stubPending
		store   *LedgerStore
		ctx     context.Context
	)

	testLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	d := decimal.NewFromFloat

	const empID int64 = 7

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(&balance.LeaveBalance{}, &balance.AppliedOperation{})
		Expect(err).NotTo(HaveOccurred())

		Expect(db.Create(&balance.LeaveBalance{
			EmployeeID:    empID,
			CasualBalance: d(6),
			SickBalance:   d(3),
			LOPBalance:    d(0),
		}).Error).To(Succeed())

		pending = &stubPending{outstanding: map[string]decimal.Decimal{}}
		store = NewLedgerStore(db, pending, decimal.NewFromInt(10), testLogger)
		ctx = context.Background()
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).To(Succeed())
	})

	casual := func() decimal.Decimal {
		bal, err := store.GetBalance(ctx, empID)
		Expect(err).NotTo(HaveOccurred())
		return bal.CasualBalance
	}

	lop := func() decimal.Decimal {
		bal, err := store.GetBalance(ctx, empID)
		Expect(err).NotTo(HaveOccurred())
		return bal.LOPBalance
	}

	Describe("Reserve", func() {
		It("admits a request the stored balance covers", func() {
			Expect(store.Reserve(ctx, empID, balance.TypeCasual, d(6))).To(Succeed())
		})

		It("counts outstanding pending weight against availability", func() {
			pending.outstanding[balance.TypeCasual] = d(4.5)

			err := store.Reserve(ctx, empID, balance.TypeCasual, d(2))
			var balErr *internal.InsufficientBalanceError
			Expect(errors.As(err, &balErr)).To(BeTrue())
			Expect(balErr.Available.Equal(d(1.5))).To(BeTrue())
		})

		It("never mutates the stored balance", func() {
			Expect(store.Reserve(ctx, empID, balance.TypeCasual, d(2))).To(Succeed())
			Expect(casual().Equal(d(6))).To(BeTrue())
		})

		It("checks loss-of-pay headroom against the cap", func() {
			Expect(store.Reserve(ctx, empID, balance.TypeLOP, d(10))).To(Succeed())

			pending.outstanding[balance.TypeLOP] = d(8)
			err := store.Reserve(ctx, empID, balance.TypeLOP, d(3))
			var balErr *internal.InsufficientBalanceError
			Expect(errors.As(err, &balErr)).To(BeTrue())
		})

		It("rejects a type with no balance column", func() {
			Expect(store.Reserve(ctx, empID, "permission", d(1))).To(HaveOccurred())
		})
	})

	Describe("Commit", func() {
		It("deducts casual and sick down to zero at the floor", func() {
			Expect(store.Commit(ctx, empID, balance.TypeCasual, d(6), "day:1:approve")).To(Succeed())
			Expect(casual().IsZero()).To(BeTrue())
		})

		It("refuses a deduction below zero", func() {
			err := store.Commit(ctx, empID, balance.TypeSick, d(3.5), "day:2:approve")
			var excErr *internal.BalanceExceededError
			Expect(errors.As(err, &excErr)).To(BeTrue())
		})

		It("increments loss-of-pay up to the cap and no further", func() {
			Expect(store.Commit(ctx, empID, balance.TypeLOP, d(10), "day:3:approve")).To(Succeed())
			Expect(lop().Equal(d(10))).To(BeTrue())

			err := store.Commit(ctx, empID, balance.TypeLOP, d(0.5), "day:4:approve")
			var excErr *internal.BalanceExceededError
			Expect(errors.As(err, &excErr)).To(BeTrue())
			Expect(lop().Equal(d(10))).To(BeTrue())
		})

		It("replays an already-applied operation as a no-op", func() {
			Expect(store.Commit(ctx, empID, balance.TypeCasual, d(1), "day:5:approve")).To(Succeed())
			Expect(store.Commit(ctx, empID, balance.TypeCasual, d(1), "day:5:approve")).To(Succeed())
			Expect(casual().Equal(d(5))).To(BeTrue())
		})
	})

	Describe("Release", func() {
		It("records the operation without touching the balance", func() {
			Expect(store.Release(ctx, empID, balance.TypeCasual, d(2), "day:6:reject")).To(Succeed())
			Expect(casual().Equal(d(6))).To(BeTrue())

			var count int64
			Expect(db.Model(&balance.AppliedOperation{}).
				Where("op_key = ?", "day:6:reject").Count(&count).Error).To(Succeed())
			Expect(count).To(Equal(int64(1)))
		})
	})

	Describe("CreditMonthly", func() {
		It("adds the credit", func() {
			Expect(store.CreditMonthly(ctx, empID, balance.TypeCasual, d(1), d(24), "accrual:monthly:2026-08:emp:7:casual")).To(Succeed())
			Expect(casual().Equal(d(7))).To(BeTrue())
		})

		It("clamps the result to the annual cap", func() {
			Expect(store.CreditMonthly(ctx, empID, balance.TypeCasual, d(5), d(8), "accrual:monthly:2026-09:emp:7:casual")).To(Succeed())
			Expect(casual().Equal(d(8))).To(BeTrue())
		})

		It("credits once per operation key", func() {
			key := "accrual:monthly:2026-10:emp:7:casual"
			Expect(store.CreditMonthly(ctx, empID, balance.TypeCasual, d(1), d(24), key)).To(Succeed())
			Expect(store.CreditMonthly(ctx, empID, balance.TypeCasual, d(1), d(24), key)).To(Succeed())
			Expect(casual().Equal(d(7))).To(BeTrue())
		})

		It("never credits the loss-of-pay ledger", func() {
			Expect(store.CreditMonthly(ctx, empID, balance.TypeLOP, d(1), d(10), "accrual:monthly:2026-08:emp:7:lop")).To(HaveOccurred())
		})
	})

	Describe("ResetAnnual", func() {
		It("clamps a balance above the carry-forward limit", func() {
			Expect(store.ResetAnnual(ctx, empID, balance.TypeCasual, d(4), "accrual:yearly:2027:emp:7:casual")).To(Succeed())
			Expect(casual().Equal(d(4))).To(BeTrue())
		})

		It("leaves a balance at or under the limit alone", func() {
			Expect(store.ResetAnnual(ctx, empID, balance.TypeSick, d(5), "accrual:yearly:2027:emp:7:sick")).To(Succeed())
			bal, err := store.GetBalance(ctx, empID)
			Expect(err).NotTo(HaveOccurred())
			Expect(bal.SickBalance.Equal(d(3))).To(BeTrue())
		})
	})

	Describe("GetBalance", func() {
		It("reports missing rows as not found", func() {
			_, err := store.GetBalance(ctx, 999)
			Expect(err).To(Equal(internal.ErrBalanceNotFound))
		})
	})

	Describe("LockEmployee", func() {
		It("succeeds against an existing balance row", func() {
			Expect(store.LockEmployee(ctx, empID)).To(Succeed())
		})

		It("reports a missing row as not found", func() {
			Expect(store.LockEmployee(ctx, 999)).To(Equal(internal.ErrBalanceNotFound))
		})
	})
})
