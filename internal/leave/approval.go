package leave

import (
	"context"
	"fmt"

	"github.com/hrcore/leave-management/internal"
	"github.com/hrcore/leave-management/internal/core/events"
	"github.com/hrcore/leave-management/internal/employee"
)

// Operation keys tie each day transition to exactly one ledger mutation, so a
// retried decision replays as a no-op.
func approveOpKey(dayID int64) string {
	return fmt.Sprintf("day:%d:approve", dayID)
}

func rejectOpKey(dayID int64) string {
	return fmt.Sprintf("day:%d:reject", dayID)
}

func cancelOpKey(dayID int64) string {
	return fmt.Sprintf("day:%d:cancel", dayID)
}

// Decide approves or rejects a leave request at day granularity. An empty
// day-id set covers every pending day. Approving a subset auto-rejects the
// pending days left out, and a reject always rejects every pending day, so a
// decision never leaves pending days behind. The aggregate status is
// re-derived from the day statuses, never set directly.
func (s *Service) Decide(ctx context.Context, actor internal.Actor, requestID int64, dto DecideLeaveDTO) (*LeaveRequest, error) {
	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	actorRole := employee.Role(actor.Role)
	if !employee.CanDecide(actorRole) {
		return nil, internal.NewForbiddenError("role cannot decide leave requests", internal.ErrCodeInsufficientAuthority)
	}

	err := s.tx.InTransaction(ctx, func(txCtx context.Context) error {
		req, err := s.repo.GetByID(txCtx, requestID)
		if err != nil {
			return err
		}
		if req.EmployeeID == actor.ID {
			return internal.NewForbiddenError("cannot decide your own leave request", internal.ErrCodeInsufficientAuthority)
		}
		if !employee.CanOverride(actorRole, req.LastUpdatedByRole) {
			return &internal.InsufficientAuthorityError{
				RequestID:     req.ID,
				ActorRole:     string(actorRole),
				DecidedByRole: string(req.LastUpdatedByRole),
			}
		}

		pending := req.PendingDays()
		if len(pending) == 0 {
			return &internal.RequestLockedError{RequestID: req.ID, Status: string(req.CurrentStatus)}
		}

		selected, remainder, err := splitPending(req, pending, dto.DayIDs)
		if err != nil {
			return err
		}

		switch dto.Outcome {
		case "approve":
			if err := s.transitionDays(txCtx, req, selected, DayApproved, actor.ID); err != nil {
				return err
			}
			// Partial approval settles the request: the pending days the
			// decider left out are rejected rather than left dangling.
			if err := s.transitionDays(txCtx, req, remainder, DayRejected, actor.ID); err != nil {
				return err
			}
		case "reject":
			// A reject settles the request: every currently pending day is
			// rejected, whether or not the decider named a subset.
			if err := s.transitionDays(txCtx, req, pending, DayRejected, actor.ID); err != nil {
				return err
			}
		}

		fresh, err := s.repo.GetByID(txCtx, requestID)
		if err != nil {
			return err
		}
		status := AggregateStatus(fresh.Days)
		return s.repo.UpdateRequestStatus(txCtx, req.ID, status, actor.ID, string(actorRole), dto.Comment)
	})
	if err != nil {
		return nil, err
	}

	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("leave request decided",
		"request_id", req.ID,
		"status", req.CurrentStatus,
		"decided_by", actor.ID,
		"decided_by_role", actorRole)
	s.events.Publish(ctx, events.NewLeaveDecidedEvent(req.ID, req.EmployeeID, string(req.CurrentStatus), actor.ID, string(actorRole)))

	return req, nil
}

// splitPending resolves the decider's day selection against the request's
// pending days: selected is the decision target, remainder the pending days
// left out. An empty selection targets every pending day.
func splitPending(req *LeaveRequest, pending []LeaveDay, dayIDs []int64) (selected, remainder []LeaveDay, err error) {
	if len(dayIDs) == 0 {
		return pending, nil, nil
	}

	pendingByID := make(map[int64]LeaveDay, len(pending))
	for _, d := range pending {
		pendingByID[d.ID] = d
	}

	chosen := make(map[int64]bool, len(dayIDs))
	for _, id := range dayIDs {
		day, ok := pendingByID[id]
		if !ok {
			if belongsTo(req, id) {
				// The day exists but already left pending under another decider.
				return nil, nil, &internal.ConcurrentModificationError{Entity: "leave day", ID: id}
			}
			return nil, nil, internal.NewValidationError(
				fmt.Sprintf("day %d does not belong to request %d", id, req.ID),
				internal.ErrCodeValidationFailed)
		}
		if !chosen[id] {
			chosen[id] = true
			selected = append(selected, day)
		}
	}

	for _, d := range pending {
		if !chosen[d.ID] {
			remainder = append(remainder, d)
		}
	}
	return selected, remainder, nil
}

func belongsTo(req *LeaveRequest, dayID int64) bool {
	for _, d := range req.Days {
		if d.ID == dayID {
			return true
		}
	}
	return false
}

// transitionDays flips each day out of pending and applies the matching ledger
// movement in the same transaction. A lost transition race aborts the whole
// decision; the caller's transaction rolls everything back.
func (s *Service) transitionDays(ctx context.Context, req *LeaveRequest, days []LeaveDay, to DayStatus, actorID int64) error {
	for _, day := range days {
		ok, err := s.repo.TransitionDay(ctx, day.ID, to, actorID)
		if err != nil {
			return err
		}
		if !ok {
			return &internal.ConcurrentModificationError{Entity: "leave day", ID: day.ID}
		}

		if !req.LeaveType.RequiresBalance() {
			continue
		}
		weight := day.DayType.Weight()
		switch to {
		case DayApproved:
			err = s.ledger.Commit(ctx, req.EmployeeID, string(req.LeaveType), weight, approveOpKey(day.ID))
		case DayRejected:
			err = s.ledger.Release(ctx, req.EmployeeID, string(req.LeaveType), weight, rejectOpKey(day.ID))
		}
		if err != nil {
			return err
		}
	}
	return nil
}
