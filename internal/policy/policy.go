package policy

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hrcore/leave-management/internal"
	"github.com/hrcore/leave-management/internal/employee"
)

// Configuration is one versioned policy row for a (role, leave type) pair.
// Rows are never deleted, only superseded by a later effective_from.
type Configuration struct {
	ID                  int64           `json:"id" gorm:"primaryKey"`
	Role                employee.Role   `json:"role" gorm:"column:role;not null;uniqueIndex:idx_policy_version,priority:1"`
	LeaveTypeCode       string          `json:"leave_type_code" gorm:"column:leave_type_code;not null;uniqueIndex:idx_policy_version,priority:2"`
	AnnualCredit        decimal.Decimal `json:"annual_credit" gorm:"column:annual_credit;type:numeric(6,1)"`
	AnnualMax           decimal.Decimal `json:"annual_max" gorm:"column:annual_max;type:numeric(6,1)"`
	CarryForwardLimit   decimal.Decimal `json:"carry_forward_limit" gorm:"column:carry_forward_limit;type:numeric(6,1)"`
	Anniversary3YrBonus decimal.Decimal `json:"anniversary_3yr_bonus" gorm:"column:anniversary_3yr_bonus;type:numeric(6,1)"`
	Anniversary5YrBonus decimal.Decimal `json:"anniversary_5yr_bonus" gorm:"column:anniversary_5yr_bonus;type:numeric(6,1)"`
	EffectiveFrom       time.Time       `json:"effective_from" gorm:"column:effective_from;type:date;not null;uniqueIndex:idx_policy_version,priority:3"`
	CreatedBy           int64           `json:"created_by" gorm:"column:created_by"`
	UpdatedBy           int64           `json:"updated_by" gorm:"column:updated_by"`
	CreatedAt           time.Time       `json:"created_at" gorm:"column:created_at"`
	UpdatedAt           time.Time       `json:"updated_at" gorm:"column:updated_at"`
}

func (Configuration) TableName() string {
	return "leave_policy_configurations"
}

type Repository interface {
	// FindEffective returns the row with the greatest effective_from <= asOf
	// for the role and leave type, or nil when none exists.
	FindEffective(ctx context.Context, role employee.Role, leaveTypeCode string, asOf time.Time) (*Configuration, error)
	Create(ctx context.Context, cfg *Configuration) error
}

// Resolver selects the authoritative policy configuration for a role and
// leave type at a point in time.
type Resolver struct {
	repo   Repository
	logger *slog.Logger
}

func NewResolver(repo Repository, logger *slog.Logger) *Resolver {
	return &Resolver{repo: repo, logger: logger}
}

// Resolve fails with PolicyNotFoundError when no configuration is effective,
// which callers treat as "leave type disabled for this role".
func (r *Resolver) Resolve(ctx context.Context, role employee.Role, leaveTypeCode string, asOf time.Time) (*Configuration, error) {
	cfg, err := r.repo.FindEffective(ctx, role, leaveTypeCode, asOf)
	if err != nil {
		r.logger.Error("policy lookup failed", "error", err, "role", role, "leave_type", leaveTypeCode)
		return nil, err
	}
	if cfg == nil {
		return nil, &internal.PolicyNotFoundError{Role: string(role), LeaveType: leaveTypeCode, AsOf: asOf}
	}
	return cfg, nil
}
