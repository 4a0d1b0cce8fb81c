package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/hrcore/leave-management/internal/calendar"
)

type HolidayRepository struct {
	db *gorm.DB
}

func NewHolidayRepository(db *gorm.DB) calendar.HolidayRepository {
	return &HolidayRepository{db: db}
}

func (r *HolidayRepository) IsHoliday(ctx context.Context, date time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&calendar.Holiday{}).
		Where("holiday_date = ?", date.Format("2006-01-02")).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *HolidayRepository) ListBetween(ctx context.Context, from, to time.Time) ([]*calendar.Holiday, error) {
	var holidays []*calendar.Holiday
	err := r.db.WithContext(ctx).
		Where("holiday_date BETWEEN ? AND ?", from.Format("2006-01-02"), to.Format("2006-01-02")).
		Order("holiday_date ASC").
		Find(&holidays).Error
	return holidays, err
}
