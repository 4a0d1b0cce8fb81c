package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hrcore/leave-management/internal"
	"github.com/hrcore/leave-management/internal/balance"
	"github.com/hrcore/leave-management/internal/database"
)

// LedgerStore implements balance.Ledger on a relational database. Every
// operation runs in a transaction holding a row lock on the employee's
// balance row for the whole read-check-write sequence, so concurrent
// mutations to one employee serialize while distinct employees proceed in
// parallel.
type LedgerStore struct {
	db      *gorm.DB
	pending balance.PendingProvider
	lopCap  decimal.Decimal
	logger  *slog.Logger
}

func NewLedgerStore(db *gorm.DB, pending balance.PendingProvider, lopCap decimal.Decimal, logger *slog.Logger) *LedgerStore {
	if lopCap.IsZero() {
		lopCap = balance.LOPCap
	}
	return &LedgerStore{db: db, pending: pending, lopCap: lopCap, logger: logger}
}

// inTransaction joins the caller's transaction when one is in the context,
// otherwise opens its own. gorm nests via savepoints either way.
func (s *LedgerStore) inTransaction(ctx context.Context, fn func(ctx context.Context, tx *gorm.DB) error) error {
	db := database.FromContext(ctx, s.db)
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(database.WithTx(ctx, tx), tx)
	})
}

// lockRow loads the balance row under FOR UPDATE. sqlite has no row locks;
// its writes are serialized by the database itself.
func (s *LedgerStore) lockRow(tx *gorm.DB, employeeID int64) (*balance.LeaveBalance, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var bal balance.LeaveBalance
	if err := q.First(&bal, "employee_id = ?", employeeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrBalanceNotFound
		}
		return nil, err
	}
	return &bal, nil
}

// markApplied inserts the idempotency key. Returns false when the key already
// exists, meaning the operation is a replay and must not run again.
func (s *LedgerStore) markApplied(tx *gorm.DB, opKey string) (bool, error) {
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&balance.AppliedOperation{OpKey: opKey, AppliedAt: time.Now()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// LockEmployee acquires the employee's balance row lock in the caller's
// transaction. The lock lives until that transaction ends, so conflict scans
// and permission applications run behind the same serialization point as the
// arithmetic operations. Outside a transaction there is no scope for the lock
// and the call only verifies the row exists.
func (s *LedgerStore) LockEmployee(ctx context.Context, employeeID int64) error {
	db := database.FromContext(ctx, s.db)
	_, err := s.lockRow(db.WithContext(ctx), employeeID)
	return err
}

func validLeaveType(leaveType string) error {
	switch leaveType {
	case balance.TypeCasual, balance.TypeSick, balance.TypeLOP:
		return nil
	}
	return fmt.Errorf("leave type %q has no balance column", leaveType)
}

func (s *LedgerStore) Reserve(ctx context.Context, employeeID int64, leaveType string, amount decimal.Decimal) error {
	if err := validLeaveType(leaveType); err != nil {
		return err
	}
	return s.inTransaction(ctx, func(txCtx context.Context, tx *gorm.DB) error {
		bal, err := s.lockRow(tx, employeeID)
		if err != nil {
			return err
		}

		pending, err := s.pending.OutstandingPending(txCtx, employeeID, leaveType)
		if err != nil {
			return err
		}

		if leaveType == balance.TypeLOP {
			// LOP is a debt ledger: balance plus everything outstanding must
			// stay under the cap.
			headroom := s.lopCap.Sub(bal.LOPBalance).Sub(pending)
			if amount.GreaterThan(headroom) {
				return &internal.InsufficientBalanceError{
					EmployeeID: employeeID,
					LeaveType:  leaveType,
					Available:  headroom,
					Requested:  amount,
				}
			}
			return nil
		}

		available := bal.Get(leaveType).Sub(pending)
		if amount.GreaterThan(available) {
			return &internal.InsufficientBalanceError{
				EmployeeID: employeeID,
				LeaveType:  leaveType,
				Available:  available,
				Requested:  amount,
			}
		}
		return nil
	})
}

func (s *LedgerStore) Commit(ctx context.Context, employeeID int64, leaveType string, amount decimal.Decimal, opKey string) error {
	if err := validLeaveType(leaveType); err != nil {
		return err
	}
	return s.inTransaction(ctx, func(_ context.Context, tx *gorm.DB) error {
		first, err := s.markApplied(tx, opKey)
		if err != nil {
			return err
		}
		if !first {
			s.logger.Debug("ledger commit replayed", "op_key", opKey)
			return nil
		}

		bal, err := s.lockRow(tx, employeeID)
		if err != nil {
			return err
		}

		var next decimal.Decimal
		if leaveType == balance.TypeLOP {
			next = bal.LOPBalance.Add(amount)
			if next.GreaterThan(s.lopCap) {
				return &internal.BalanceExceededError{
					EmployeeID: employeeID,
					LeaveType:  leaveType,
					Resulting:  next,
					Limit:      s.lopCap,
				}
			}
		} else {
			next = bal.Get(leaveType).Sub(amount)
			if next.IsNegative() {
				return &internal.BalanceExceededError{
					EmployeeID: employeeID,
					LeaveType:  leaveType,
					Resulting:  next,
					Limit:      decimal.Zero,
				}
			}
		}

		return s.save(tx, bal, leaveType, next)
	})
}

func (s *LedgerStore) Release(ctx context.Context, employeeID int64, leaveType string, amount decimal.Decimal, opKey string) error {
	if err := validLeaveType(leaveType); err != nil {
		return err
	}
	// Nothing was deducted while the day was pending, and LOP only moves on
	// approval, so release leaves the stored balance untouched. The operation
	// key is still recorded so a replayed transition stays a no-op.
	return s.inTransaction(ctx, func(_ context.Context, tx *gorm.DB) error {
		if _, err := s.markApplied(tx, opKey); err != nil {
			return err
		}
		return nil
	})
}

func (s *LedgerStore) CreditMonthly(ctx context.Context, employeeID int64, leaveType string, amount, annualCap decimal.Decimal, opKey string) error {
	return s.credit(ctx, employeeID, leaveType, amount, annualCap, opKey)
}

func (s *LedgerStore) CreditAnniversary(ctx context.Context, employeeID int64, leaveType string, amount, annualCap decimal.Decimal, opKey string) error {
	return s.credit(ctx, employeeID, leaveType, amount, annualCap, opKey)
}

func (s *LedgerStore) credit(ctx context.Context, employeeID int64, leaveType string, amount, annualCap decimal.Decimal, opKey string) error {
	if err := validLeaveType(leaveType); err != nil {
		return err
	}
	if leaveType == balance.TypeLOP {
		return fmt.Errorf("lop balance is never credited")
	}
	return s.inTransaction(ctx, func(_ context.Context, tx *gorm.DB) error {
		first, err := s.markApplied(tx, opKey)
		if err != nil {
			return err
		}
		if !first {
			s.logger.Debug("ledger credit replayed", "op_key", opKey)
			return nil
		}

		bal, err := s.lockRow(tx, employeeID)
		if err != nil {
			return err
		}

		next := bal.Get(leaveType).Add(amount)
		if annualCap.IsPositive() && next.GreaterThan(annualCap) {
			next = annualCap
		}
		return s.save(tx, bal, leaveType, next)
	})
}

func (s *LedgerStore) ResetAnnual(ctx context.Context, employeeID int64, leaveType string, carryLimit decimal.Decimal, opKey string) error {
	if err := validLeaveType(leaveType); err != nil {
		return err
	}
	return s.inTransaction(ctx, func(_ context.Context, tx *gorm.DB) error {
		first, err := s.markApplied(tx, opKey)
		if err != nil {
			return err
		}
		if !first {
			return nil
		}

		bal, err := s.lockRow(tx, employeeID)
		if err != nil {
			return err
		}

		current := bal.Get(leaveType)
		if current.LessThanOrEqual(carryLimit) {
			return nil
		}
		return s.save(tx, bal, leaveType, carryLimit)
	})
}

func (s *LedgerStore) GetBalance(ctx context.Context, employeeID int64) (*balance.LeaveBalance, error) {
	db := database.FromContext(ctx, s.db)
	var bal balance.LeaveBalance
	if err := db.WithContext(ctx).First(&bal, "employee_id = ?", employeeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrBalanceNotFound
		}
		return nil, err
	}
	return &bal, nil
}

func (s *LedgerStore) save(tx *gorm.DB, bal *balance.LeaveBalance, leaveType string, next decimal.Decimal) error {
	updates := map[string]interface{}{
		"last_updated": time.Now(),
	}
	switch leaveType {
	case balance.TypeCasual:
		updates["casual_balance"] = next
	case balance.TypeSick:
		updates["sick_balance"] = next
	case balance.TypeLOP:
		updates["lop_balance"] = next
	}
	return tx.Model(&balance.LeaveBalance{}).
		Where("employee_id = ?", bal.EmployeeID).
		Updates(updates).Error
}
