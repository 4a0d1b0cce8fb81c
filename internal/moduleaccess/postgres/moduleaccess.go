package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hrcore/leave-management/internal/database"
	"github.com/hrcore/leave-management/internal/moduleaccess"
)

type ModuleAccessRepository struct {
	db *gorm.DB
}

func NewModuleAccessRepository(db *gorm.DB) *ModuleAccessRepository {
	return &ModuleAccessRepository{db: db}
}

func (r *ModuleAccessRepository) conn(ctx context.Context) *gorm.DB {
	return database.FromContext(ctx, r.db).WithContext(ctx)
}

// Add upserts on the (module_code, employee_id) unique index. Concurrent adds
// of the same pair race at the constraint, not in application code, and every
// racer sees success.
func (r *ModuleAccessRepository) Add(ctx context.Context, member *moduleaccess.ModuleMember) error {
	return r.conn(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "module_code"}, {Name: "employee_id"}},
			DoNothing: true,
		}).
		Create(member).Error
}

func (r *ModuleAccessRepository) Remove(ctx context.Context, moduleCode string, employeeID int64) error {
	return r.conn(ctx).
		Where("module_code = ? AND employee_id = ?", moduleCode, employeeID).
		Delete(&moduleaccess.ModuleMember{}).Error
}

func (r *ModuleAccessRepository) ListMembers(ctx context.Context, moduleCode string) ([]*moduleaccess.ModuleMember, error) {
	var members []*moduleaccess.ModuleMember
	err := r.conn(ctx).
		Where("module_code = ?", moduleCode).
		Order("employee_id ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *ModuleAccessRepository) IsMember(ctx context.Context, moduleCode string, employeeID int64) (bool, error) {
	var count int64
	err := r.conn(ctx).
		Model(&moduleaccess.ModuleMember{}).
		Where("module_code = ? AND employee_id = ?", moduleCode, employeeID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
