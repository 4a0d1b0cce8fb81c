package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/hrcore/leave-management/internal/employee"
	"github.com/hrcore/leave-management/internal/policy"
)

type PolicyRepository struct {
	db *gorm.DB
}

func NewPolicyRepository(db *gorm.DB) policy.Repository {
	return &PolicyRepository{db: db}
}

func (r *PolicyRepository) FindEffective(ctx context.Context, role employee.Role, leaveTypeCode string, asOf time.Time) (*policy.Configuration, error) {
	var cfg policy.Configuration
	err := r.db.WithContext(ctx).
		Where("role = ? AND leave_type_code = ? AND effective_from <= ?", role, leaveTypeCode, asOf.Format("2006-01-02")).
		Order("effective_from DESC").
		First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *PolicyRepository) Create(ctx context.Context, cfg *policy.Configuration) error {
	return r.db.WithContext(ctx).Create(cfg).Error
}
