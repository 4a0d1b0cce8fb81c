package leave

import (
	"context"
	"log/slog"
	"time"

	"github.com/hrcore/leave-management/internal"
	"github.com/hrcore/leave-management/internal/balance"
	"github.com/hrcore/leave-management/internal/core/events"
	"github.com/hrcore/leave-management/internal/database"
	"github.com/hrcore/leave-management/internal/employee"
	"github.com/hrcore/leave-management/internal/policy"
)

// Repository defines the data access methods the leave service needs.
type Repository interface {
	CreateWithDays(ctx context.Context, req *LeaveRequest) error
	GetByID(ctx context.Context, id int64) (*LeaveRequest, error)
	ListByEmployee(ctx context.Context, employeeID int64, limit, offset int) ([]*LeaveRequest, error)
	ListByStatus(ctx context.Context, status RequestStatus, limit, offset int) ([]*LeaveRequest, error)
	TransitionDay(ctx context.Context, dayID int64, to DayStatus, updatedBy int64) (bool, error)
	UpdateRequestStatus(ctx context.Context, requestID int64, status RequestStatus, decidedBy int64, decidedByRole string, comment *string) error
	UpdateRequest(ctx context.Context, req *LeaveRequest) error
	ReplaceDays(ctx context.Context, requestID int64, days []LeaveDay) error
	DeleteWithDays(ctx context.Context, requestID int64) error
}

// PolicyResolver resolves the effective policy for a role and leave type.
type PolicyResolver interface {
	Resolve(ctx context.Context, role employee.Role, leaveTypeCode string, asOf time.Time) (*policy.Configuration, error)
}

// EventPublisher decouples the service from the bus implementation.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event)
}

// Service orchestrates the leave lifecycle: apply, edit, delete, cancel, and
// the decision flow in approval.go.
type Service struct {
	repo      Repository
	employees employee.Repository
	policies  PolicyResolver
	expander  *DayExpander
	conflicts *ConflictChecker
	notice    *NoticeValidator
	ledger    balance.Ledger
	tx        database.TxManager
	events    EventPublisher
	logger    *slog.Logger
}

func NewService(
	repo Repository,
	employees employee.Repository,
	policies PolicyResolver,
	expander *DayExpander,
	conflicts *ConflictChecker,
	notice *NoticeValidator,
	ledger balance.Ledger,
	tx database.TxManager,
	publisher EventPublisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		employees: employees,
		policies:  policies,
		expander:  expander,
		conflicts: conflicts,
		notice:    notice,
		ledger:    ledger,
		tx:        tx,
		events:    publisher,
		logger:    logger,
	}
}

// Apply files a leave application: expands the range into working days, runs
// notice and conflict checks, verifies balance availability, and persists the
// request with every day pending. All-or-nothing: any failed check aborts the
// whole application.
func (s *Service) Apply(ctx context.Context, employeeID int64, dto ApplyLeaveDTO) (*LeaveRequest, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Error("leave application validation failed", "error", err, "employee_id", employeeID)
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	emp, err := s.employees.GetByID(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if !emp.IsActive() {
		return nil, internal.ErrEmployeeInactive
	}

	leaveType := Type(dto.LeaveType)
	start, end := dto.Dates()
	startType, endType := dto.DayTypes()

	// Policy gates the leave type per role: no effective row means the type is
	// disabled. Permission is not policy-governed.
	if leaveType.RequiresBalance() {
		if _, err := s.policies.Resolve(ctx, emp.Role, dto.LeaveType, start); err != nil {
			return nil, err
		}
	}

	drafts, err := s.expander.Expand(ctx, start, end, startType, endType)
	if err != nil {
		return nil, err
	}
	weight := DraftWeight(drafts)

	if leaveType.RequiresBalance() {
		if err := s.notice.Validate(ctx, employeeID, time.Now(), start, weight, dto.Urgent); err != nil {
			return nil, err
		}
	}

	req := &LeaveRequest{
		EmployeeID:    employeeID,
		LeaveType:     leaveType,
		StartDate:     start,
		EndDate:       end,
		StartDayType:  startType,
		EndDayType:    endType,
		StartTime:     dto.StartTime,
		EndTime:       dto.EndTime,
		Reason:        dto.Reason,
		Urgent:        dto.Urgent,
		DoctorNote:    dto.DoctorNote,
		CurrentStatus: StatusPending,
		CreatedBy:     employeeID,
		UpdatedBy:     employeeID,
	}
	for _, d := range drafts {
		req.Days = append(req.Days, LeaveDay{
			LeaveDate: d.Date,
			DayType:   d.DayType,
			DayStatus: DayPending,
			CreatedBy: employeeID,
			UpdatedBy: employeeID,
		})
	}

	err = s.tx.InTransaction(ctx, func(txCtx context.Context) error {
		// The balance row is the employee's serialization point. Take its
		// lock before the conflict scan so a racing application for the same
		// employee has committed its days by the time the scan runs; without
		// it two overlapping applications could each scan a snapshot missing
		// the other's rows and both persist.
		if err := s.ledger.LockEmployee(txCtx, employeeID); err != nil {
			return err
		}
		if err := s.conflicts.Check(txCtx, employeeID, drafts, 0); err != nil {
			return err
		}
		if leaveType.RequiresBalance() {
			if err := s.ledger.Reserve(txCtx, employeeID, dto.LeaveType, weight); err != nil {
				return err
			}
		}
		return s.repo.CreateWithDays(txCtx, req)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("leave application filed",
		"request_id", req.ID,
		"employee_id", employeeID,
		"leave_type", leaveType,
		"days", len(req.Days))
	s.events.Publish(ctx, events.NewLeaveAppliedEvent(req.ID, employeeID, dto.LeaveType, len(req.Days)))

	return req, nil
}

// Get returns a request if the actor owns it or holds a deciding role.
func (s *Service) Get(ctx context.Context, actor internal.Actor, requestID int64) (*LeaveRequest, error) {
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.EmployeeID != actor.ID && !employee.CanDecide(employee.Role(actor.Role)) {
		return nil, internal.ErrRequestNotFound
	}
	return req, nil
}

// ListForEmployee returns an employee's requests, newest first.
func (s *Service) ListForEmployee(ctx context.Context, actor internal.Actor, employeeID int64, limit, offset int) ([]*LeaveRequest, error) {
	if employeeID != actor.ID && !employee.CanDecide(employee.Role(actor.Role)) {
		return nil, internal.NewForbiddenError("cannot view another employee's leave", internal.ErrCodeInsufficientAuthority)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByEmployee(ctx, employeeID, limit, offset)
}

// ListPending returns pending requests for decider queues, oldest first.
func (s *Service) ListPending(ctx context.Context, actor internal.Actor, limit, offset int) ([]*LeaveRequest, error) {
	if !employee.CanDecide(employee.Role(actor.Role)) {
		return nil, internal.NewForbiddenError("role cannot review leave requests", internal.ErrCodeInsufficientAuthority)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByStatus(ctx, StatusPending, limit, offset)
}

// Edit replaces a still-untouched pending request wholesale and re-runs every
// apply-time check against the new values.
func (s *Service) Edit(ctx context.Context, actor internal.Actor, requestID int64, dto EditLeaveDTO) (*LeaveRequest, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.EmployeeID != actor.ID {
		return nil, internal.ErrRequestNotFound
	}
	if !req.Editable() {
		return nil, &internal.RequestLockedError{
			RequestID:     req.ID,
			Status:        string(req.CurrentStatus),
			DecidedByRole: string(req.LastUpdatedByRole),
		}
	}

	emp, err := s.employees.GetByID(ctx, req.EmployeeID)
	if err != nil {
		return nil, err
	}

	apply := dto.apply()
	newType := Type(apply.LeaveType)
	start, end := apply.Dates()
	startType, endType := apply.DayTypes()

	if newType.RequiresBalance() {
		if _, err := s.policies.Resolve(ctx, emp.Role, apply.LeaveType, start); err != nil {
			return nil, err
		}
	}

	drafts, err := s.expander.Expand(ctx, start, end, startType, endType)
	if err != nil {
		return nil, err
	}
	newWeight := DraftWeight(drafts)

	if newType.RequiresBalance() {
		if err := s.notice.Validate(ctx, req.EmployeeID, time.Now(), start, newWeight, apply.Urgent); err != nil {
			return nil, err
		}
	}

	oldWeight := TotalWeight(req.Days)
	oldType := req.LeaveType

	newDays := make([]LeaveDay, len(drafts))
	for i, d := range drafts {
		newDays[i] = LeaveDay{
			LeaveDate: d.Date,
			DayType:   d.DayType,
			DayStatus: DayPending,
			CreatedBy: req.EmployeeID,
			UpdatedBy: req.EmployeeID,
		}
	}

	err = s.tx.InTransaction(ctx, func(txCtx context.Context) error {
		// Same serialization point as Apply: the row lock must precede the
		// conflict scan.
		if err := s.ledger.LockEmployee(txCtx, req.EmployeeID); err != nil {
			return err
		}
		if err := s.conflicts.Check(txCtx, req.EmployeeID, drafts, req.ID); err != nil {
			return err
		}
		if newType.RequiresBalance() {
			// The old pending days still count toward outstanding pending until
			// ReplaceDays runs, so reserve only the growth when the type is
			// unchanged. A type switch reserves the full new weight against the
			// new type's column, where the old days never counted.
			if newType == oldType {
				if delta := newWeight.Sub(oldWeight); delta.IsPositive() {
					if err := s.ledger.Reserve(txCtx, req.EmployeeID, apply.LeaveType, delta); err != nil {
						return err
					}
				}
			} else {
				if err := s.ledger.Reserve(txCtx, req.EmployeeID, apply.LeaveType, newWeight); err != nil {
					return err
				}
			}
		}

		req.LeaveType = newType
		req.StartDate = start
		req.EndDate = end
		req.StartDayType = startType
		req.EndDayType = endType
		req.StartTime = apply.StartTime
		req.EndTime = apply.EndTime
		req.Reason = apply.Reason
		req.Urgent = apply.Urgent
		req.DoctorNote = apply.DoctorNote
		req.UpdatedBy = actor.ID
		if err := s.repo.UpdateRequest(txCtx, req); err != nil {
			return err
		}
		return s.repo.ReplaceDays(txCtx, req.ID, newDays)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("leave application edited", "request_id", req.ID, "employee_id", req.EmployeeID)
	return s.repo.GetByID(ctx, req.ID)
}

// Delete removes a still-untouched pending request entirely.
func (s *Service) Delete(ctx context.Context, actor internal.Actor, requestID int64) error {
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.EmployeeID != actor.ID {
		return internal.ErrRequestNotFound
	}
	if !req.Editable() {
		return &internal.RequestLockedError{
			RequestID:     req.ID,
			Status:        string(req.CurrentStatus),
			DecidedByRole: string(req.LastUpdatedByRole),
		}
	}

	err = s.tx.InTransaction(ctx, func(txCtx context.Context) error {
		return s.repo.DeleteWithDays(txCtx, req.ID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("leave application deleted", "request_id", requestID, "employee_id", actor.ID)
	return nil
}

// Cancel withdraws a still-untouched pending request: every day flips to
// rejected and the request lands in cancelled, preserving the record.
func (s *Service) Cancel(ctx context.Context, actor internal.Actor, requestID int64) (*LeaveRequest, error) {
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.EmployeeID != actor.ID {
		return nil, internal.ErrRequestNotFound
	}
	if !req.Editable() {
		return nil, &internal.RequestLockedError{
			RequestID:     req.ID,
			Status:        string(req.CurrentStatus),
			DecidedByRole: string(req.LastUpdatedByRole),
		}
	}

	err = s.tx.InTransaction(ctx, func(txCtx context.Context) error {
		for _, day := range req.PendingDays() {
			ok, err := s.repo.TransitionDay(txCtx, day.ID, DayRejected, actor.ID)
			if err != nil {
				return err
			}
			if !ok {
				return &internal.ConcurrentModificationError{Entity: "leave day", ID: day.ID}
			}
			if req.LeaveType.RequiresBalance() {
				if err := s.ledger.Release(txCtx, req.EmployeeID, string(req.LeaveType), day.DayType.Weight(), cancelOpKey(day.ID)); err != nil {
					return err
				}
			}
		}
		return s.repo.UpdateRequestStatus(txCtx, req.ID, StatusCancelled, actor.ID, "", nil)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("leave application cancelled", "request_id", req.ID, "employee_id", actor.ID)
	s.events.Publish(ctx, events.NewLeaveCancelledEvent(req.ID, req.EmployeeID, actor.ID))

	return s.repo.GetByID(ctx, req.ID)
}
