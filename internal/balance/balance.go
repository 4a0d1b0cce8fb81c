package balance

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Leave type codes the ledger tracks a column for. Intraday permission never
// reaches the ledger.
const (
	TypeCasual = "casual"
	TypeSick   = "sick"
	TypeLOP    = "lop"
)

// LOPCap is the hard ceiling of the loss-of-pay debt ledger.
var LOPCap = decimal.NewFromInt(10)

// LeaveBalance is the single serialization point per employee: one row,
// mutated only through Ledger operations under a row lock.
type LeaveBalance struct {
	EmployeeID    int64           `json:"employee_id" gorm:"primaryKey;column:employee_id"`
	CasualBalance decimal.Decimal `json:"casual_balance" gorm:"column:casual_balance;type:numeric(6,1)"`
	SickBalance   decimal.Decimal `json:"sick_balance" gorm:"column:sick_balance;type:numeric(6,1)"`
	LOPBalance    decimal.Decimal `json:"lop_balance" gorm:"column:lop_balance;type:numeric(6,1)"`
	LastUpdated   time.Time       `json:"last_updated" gorm:"column:last_updated"`
	UpdatedBy     int64           `json:"updated_by" gorm:"column:updated_by"`
}

func (LeaveBalance) TableName() string {
	return "leave_balances"
}

func (b *LeaveBalance) Get(leaveType string) decimal.Decimal {
	switch leaveType {
	case TypeCasual:
		return b.CasualBalance
	case TypeSick:
		return b.SickBalance
	case TypeLOP:
		return b.LOPBalance
	}
	return decimal.Zero
}

// AppliedOperation is the idempotency guard shared by ledger mutations and
// accrual runs: one row per operation key, inserted in the same transaction
// as the mutation it guards. A replayed key is a safe no-op.
type AppliedOperation struct {
	OpKey     string    `json:"op_key" gorm:"primaryKey;column:op_key"`
	AppliedAt time.Time `json:"applied_at" gorm:"column:applied_at"`
}

func (AppliedOperation) TableName() string {
	return "applied_operations"
}

// PendingProvider reports the total weight of an employee's outstanding
// pending days for a leave type. Pending leave consumes availability but does
// not mutate the stored balance until approval, so reservation checks re-query
// this inside the balance row's lock scope.
type PendingProvider interface {
	OutstandingPending(ctx context.Context, employeeID int64, leaveType string) (decimal.Decimal, error)
}

// Ledger reserves, commits, and releases balance quantities with hard
// floor/ceiling invariants: casual/sick never below zero, LOP a debt ledger
// never above its cap. Mutating operations are idempotent per opKey.
type Ledger interface {
	// LockEmployee takes the employee's balance row lock for the remainder of
	// the surrounding transaction. Checks with no arithmetic of their own
	// (conflict scans, permission applications) run behind it so concurrent
	// applications for one employee serialize at the same point as ledger
	// mutations.
	LockEmployee(ctx context.Context, employeeID int64) error

	// Reserve verifies availability for a new application. It mutates nothing;
	// pending days are counted by re-querying outstanding amounts under the
	// row lock, so concurrent applications re-evaluate after the lock releases.
	Reserve(ctx context.Context, employeeID int64, leaveType string, amount decimal.Decimal) error

	// Commit applies an approved day: casual/sick decrement (floor 0), LOP
	// increment (ceiling cap).
	Commit(ctx context.Context, employeeID int64, leaveType string, amount decimal.Decimal, opKey string) error

	// Release records a rejected or cancelled day. Arithmetic no-op: nothing
	// was deducted while pending, and LOP only moves on approval.
	Release(ctx context.Context, employeeID int64, leaveType string, amount decimal.Decimal, opKey string) error

	// CreditMonthly and CreditAnniversary add accrual credit, clamped to cap.
	CreditMonthly(ctx context.Context, employeeID int64, leaveType string, amount, annualCap decimal.Decimal, opKey string) error
	CreditAnniversary(ctx context.Context, employeeID int64, leaveType string, amount, annualCap decimal.Decimal, opKey string) error

	// ResetAnnual clamps a balance down to the carry-forward limit at year
	// rollover.
	ResetAnnual(ctx context.Context, employeeID int64, leaveType string, carryLimit decimal.Decimal, opKey string) error

	GetBalance(ctx context.Context, employeeID int64) (*LeaveBalance, error)
}
