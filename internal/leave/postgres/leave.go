package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/hrcore/leave-management/internal"
	"github.com/hrcore/leave-management/internal/balance"
	"github.com/hrcore/leave-management/internal/database"
	"github.com/hrcore/leave-management/internal/leave"
)

// LeaveRepository persists leave requests and their day rows. All queries run
// on the caller's transaction when one is present in the context.
type LeaveRepository struct {
	db *gorm.DB
}

func NewLeaveRepository(db *gorm.DB) *LeaveRepository {
	return &LeaveRepository{db: db}
}

func (r *LeaveRepository) conn(ctx context.Context) *gorm.DB {
	return database.FromContext(ctx, r.db).WithContext(ctx)
}

// CreateWithDays inserts the request and its day rows in one statement batch;
// gorm cascades the Days association through the foreign key.
func (r *LeaveRepository) CreateWithDays(ctx context.Context, req *leave.LeaveRequest) error {
	return r.conn(ctx).Create(req).Error
}

func (r *LeaveRepository) GetByID(ctx context.Context, id int64) (*leave.LeaveRequest, error) {
	var req leave.LeaveRequest
	err := r.conn(ctx).Preload("Days").First(&req, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, internal.ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *LeaveRepository) ListByEmployee(ctx context.Context, employeeID int64, limit, offset int) ([]*leave.LeaveRequest, error) {
	var reqs []*leave.LeaveRequest
	err := r.conn(ctx).
		Preload("Days").
		Where("employee_id = ?", employeeID).
		Order("start_date DESC").
		Limit(limit).
		Offset(offset).
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

func (r *LeaveRepository) ListByStatus(ctx context.Context, status leave.RequestStatus, limit, offset int) ([]*leave.LeaveRequest, error) {
	var reqs []*leave.LeaveRequest
	err := r.conn(ctx).
		Preload("Days").
		Where("current_status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

// FindActiveDaysByDates returns the employee's pending and approved day rows
// on the given dates, excluding one request's own days so an edit never
// conflicts with itself. Implements leave.DayFinder.
func (r *LeaveRepository) FindActiveDaysByDates(ctx context.Context, employeeID int64, dates []time.Time, excludeRequestID int64) ([]*leave.ExistingDay, error) {
	if len(dates) == 0 {
		return nil, nil
	}

	dateStrs := make([]string, len(dates))
	for i, d := range dates {
		dateStrs[i] = d.Format("2006-01-02")
	}

	type row struct {
		RequestID int64           `gorm:"column:leave_request_id"`
		LeaveType leave.Type      `gorm:"column:leave_type"`
		LeaveDate time.Time       `gorm:"column:leave_date"`
		DayType   leave.DayType   `gorm:"column:day_type"`
		DayStatus leave.DayStatus `gorm:"column:day_status"`
	}

	var rows []row
	q := r.conn(ctx).
		Table("leave_days").
		Select("leave_days.leave_request_id, leave_requests.leave_type, leave_days.leave_date, leave_days.day_type, leave_days.day_status").
		Joins("JOIN leave_requests ON leave_requests.id = leave_days.leave_request_id").
		Where("leave_requests.employee_id = ?", employeeID).
		Where("leave_days.day_status IN ?", []leave.DayStatus{leave.DayPending, leave.DayApproved}).
		Where("leave_days.leave_date IN ?", dateStrs)
	if excludeRequestID > 0 {
		q = q.Where("leave_days.leave_request_id <> ?", excludeRequestID)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}

	existing := make([]*leave.ExistingDay, len(rows))
	for i, rw := range rows {
		existing[i] = &leave.ExistingDay{
			RequestID: rw.RequestID,
			LeaveType: rw.LeaveType,
			LeaveDate: rw.LeaveDate,
			DayType:   rw.DayType,
			DayStatus: rw.DayStatus,
		}
	}
	return existing, nil
}

// OutstandingPending sums the weights of an employee's pending days for one
// leave type. Implements balance.PendingProvider; the ledger calls this inside
// the balance row's lock scope so reservations see a consistent count.
func (r *LeaveRepository) OutstandingPending(ctx context.Context, employeeID int64, leaveType string) (decimal.Decimal, error) {
	type row struct {
		DayType leave.DayType `gorm:"column:day_type"`
	}

	var rows []row
	err := r.conn(ctx).
		Table("leave_days").
		Select("leave_days.day_type").
		Joins("JOIN leave_requests ON leave_requests.id = leave_days.leave_request_id").
		Where("leave_requests.employee_id = ?", employeeID).
		Where("leave_requests.leave_type = ?", leaveType).
		Where("leave_days.day_status = ?", leave.DayPending).
		Scan(&rows).Error
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, rw := range rows {
		total = total.Add(rw.DayType.Weight())
	}
	return total, nil
}

// TransitionDay moves one day out of pending. The WHERE on the current status
// makes the transition optimistic: a second decider racing on the same day
// matches zero rows and loses.
func (r *LeaveRepository) TransitionDay(ctx context.Context, dayID int64, to leave.DayStatus, updatedBy int64) (bool, error) {
	res := r.conn(ctx).
		Model(&leave.LeaveDay{}).
		Where("id = ? AND day_status = ?", dayID, leave.DayPending).
		Updates(map[string]interface{}{
			"day_status": to,
			"updated_by": updatedBy,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateRequestStatus stamps the derived aggregate status plus decider
// information on the parent request.
func (r *LeaveRepository) UpdateRequestStatus(ctx context.Context, requestID int64, status leave.RequestStatus, decidedBy int64, decidedByRole string, comment *string) error {
	updates := map[string]interface{}{
		"current_status":       status,
		"last_updated_by":      decidedBy,
		"last_updated_by_role": decidedByRole,
		"updated_by":           decidedBy,
		"updated_at":           time.Now(),
	}
	if comment != nil {
		updates["decision_comment"] = *comment
	}
	return r.conn(ctx).
		Model(&leave.LeaveRequest{}).
		Where("id = ?", requestID).
		Updates(updates).Error
}

// ReplaceDays swaps a request's day rows during an edit: old rows deleted and
// new ones inserted in the caller's transaction.
func (r *LeaveRepository) ReplaceDays(ctx context.Context, requestID int64, days []leave.LeaveDay) error {
	conn := r.conn(ctx)
	if err := conn.Where("leave_request_id = ?", requestID).Delete(&leave.LeaveDay{}).Error; err != nil {
		return err
	}
	for i := range days {
		days[i].LeaveRequestID = requestID
	}
	return conn.Create(&days).Error
}

func (r *LeaveRepository) UpdateRequest(ctx context.Context, req *leave.LeaveRequest) error {
	return r.conn(ctx).
		Model(&leave.LeaveRequest{}).
		Where("id = ?", req.ID).
		Updates(map[string]interface{}{
			"leave_type":     req.LeaveType,
			"start_date":     req.StartDate,
			"end_date":       req.EndDate,
			"start_day_type": req.StartDayType,
			"end_day_type":   req.EndDayType,
			"start_time":     req.StartTime,
			"end_time":       req.EndTime,
			"reason":         req.Reason,
			"urgent":         req.Urgent,
			"doctor_note":    req.DoctorNote,
			"updated_by":     req.UpdatedBy,
			"updated_at":     time.Now(),
		}).Error
}

// DeleteWithDays removes a request and its day rows. Callers gate this on
// Editable; a decided request is never deleted.
func (r *LeaveRepository) DeleteWithDays(ctx context.Context, requestID int64) error {
	conn := r.conn(ctx)
	if err := conn.Where("leave_request_id = ?", requestID).Delete(&leave.LeaveDay{}).Error; err != nil {
		return err
	}
	return conn.Delete(&leave.LeaveRequest{}, "id = ?", requestID).Error
}

var _ leave.DayFinder = (*LeaveRepository)(nil)
var _ balance.PendingProvider = (*LeaveRepository)(nil)
