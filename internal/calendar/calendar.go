package calendar

import (
	"context"
	"time"
)

// Holiday is a configured non-working date, maintained by HR.
type Holiday struct {
	ID          int64     `json:"id" gorm:"primaryKey"`
	HolidayDate time.Time `json:"holiday_date" gorm:"column:holiday_date;type:date;uniqueIndex;not null"`
	Name        string    `json:"name" gorm:"not null"`
	CreatedBy   int64     `json:"created_by" gorm:"column:created_by"`
	UpdatedBy   int64     `json:"updated_by" gorm:"column:updated_by"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (Holiday) TableName() string {
	return "holidays"
}

type HolidayRepository interface {
	IsHoliday(ctx context.Context, date time.Time) (bool, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]*Holiday, error)
}

// Service answers the single question the core asks the calendar: does work
// happen on this date.
type Service interface {
	IsWorkingDay(ctx context.Context, date time.Time) (bool, error)
}

type Calendar struct {
	holidays HolidayRepository
}

func New(holidays HolidayRepository) *Calendar {
	return &Calendar{holidays: holidays}
}

func (c *Calendar) IsWorkingDay(ctx context.Context, date time.Time) (bool, error) {
	if date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
		return false, nil
	}
	holiday, err := c.holidays.IsHoliday(ctx, date)
	if err != nil {
		return false, err
	}
	return !holiday, nil
}
