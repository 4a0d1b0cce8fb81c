package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/hrcore/leave-management/internal/database"
	"github.com/hrcore/leave-management/internal/leave"
)

type RuleRepository struct {
	db *gorm.DB
}

func NewRuleRepository(db *gorm.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

func (r *RuleRepository) ListActive(ctx context.Context) ([]*leave.Rule, error) {
	var rules []*leave.Rule
	err := database.FromContext(ctx, r.db).WithContext(ctx).
		Where("is_active = ?", true).
		Order("leave_required_min ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

var _ leave.RuleRepository = (*RuleRepository)(nil)
