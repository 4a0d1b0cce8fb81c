package leave_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/hrcore/leave-management/internal"
	"github.com/hrcore/leave-management/internal/balance"
	"github.com/hrcore/leave-management/internal/core/events"
	"github.com/hrcore/leave-management/internal/employee"
	"github.com/hrcore/leave-management/internal/leave"
	"github.com/hrcore/leave-management/internal/policy"
)

// mockLeaveRepo is an in-memory Repository plus DayFinder.
type mockLeaveRepo struct {
	requests  map[int64]*leave.LeaveRequest
	nextReqID int64
	nextDayID int64
	createErr error
}

func newMockLeaveRepo() *mockLeaveRepo {
	return &mockLeaveRepo{requests: make(map[int64]*leave.LeaveRequest), nextReqID: 1, nextDayID: 1}
}

func (m *mockLeaveRepo) CreateWithDays(_ context.Context, req *leave.LeaveRequest) error {
	if m.createErr != nil {
		return m.createErr
	}
	req.ID = m.nextReqID
	m.nextReqID++
	for i := range req.Days {
		req.Days[i].ID = m.nextDayID
		req.Days[i].LeaveRequestID = req.ID
		m.nextDayID++
	}
	m.requests[req.ID] = req
	return nil
}

func (m *mockLeaveRepo) GetByID(_ context.Context, id int64) (*leave.LeaveRequest, error) {
	req, ok := m.requests[id]
	if !ok {
		return nil, internal.ErrRequestNotFound
	}
	cp := *req
	cp.Days = append([]leave.LeaveDay(nil), req.Days...)
	return &cp, nil
}

func (m *mockLeaveRepo) ListByEmployee(_ context.Context, employeeID int64, _, _ int) ([]*leave.LeaveRequest, error) {
	var out []*leave.LeaveRequest
	for _, r := range m.requests {
		if r.EmployeeID == employeeID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockLeaveRepo) ListByStatus(_ context.Context, status leave.RequestStatus, _, _ int) ([]*leave.LeaveRequest, error) {
	var out []*leave.LeaveRequest
	for _, r := range m.requests {
		if r.CurrentStatus == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockLeaveRepo) TransitionDay(_ context.Context, dayID int64, to leave.DayStatus, updatedBy int64) (bool, error) {
	for _, req := range m.requests {
		for i := range req.Days {
			if req.Days[i].ID == dayID {
				if req.Days[i].DayStatus != leave.DayPending {
					return false, nil
				}
				req.Days[i].DayStatus = to
				req.Days[i].UpdatedBy = updatedBy
				return true, nil
			}
		}
	}
	return false, nil
}

func (m *mockLeaveRepo) UpdateRequestStatus(_ context.Context, requestID int64, status leave.RequestStatus, decidedBy int64, decidedByRole string, comment *string) error {
	req, ok := m.requests[requestID]
	if !ok {
		return internal.ErrRequestNotFound
	}
	req.CurrentStatus = status
	req.LastUpdatedBy = &decidedBy
	req.LastUpdatedByRole = employee.Role(decidedByRole)
	req.DecisionComment = comment
	return nil
}

func (m *mockLeaveRepo) UpdateRequest(_ context.Context, req *leave.LeaveRequest) error {
	stored, ok := m.requests[req.ID]
	if !ok {
		return internal.ErrRequestNotFound
	}
	days := stored.Days
	*stored = *req
	stored.Days = days
	return nil
}

func (m *mockLeaveRepo) ReplaceDays(_ context.Context, requestID int64, days []leave.LeaveDay) error {
	req, ok := m.requests[requestID]
	if !ok {
		return internal.ErrRequestNotFound
	}
	for i := range days {
		days[i].ID = m.nextDayID
		days[i].LeaveRequestID = requestID
		m.nextDayID++
	}
	req.Days = days
	return nil
}

func (m *mockLeaveRepo) DeleteWithDays(_ context.Context, requestID int64) error {
	delete(m.requests, requestID)
	return nil
}

func (m *mockLeaveRepo) FindActiveDaysByDates(_ context.Context, employeeID int64, dates []time.Time, excludeRequestID int64) ([]*leave.ExistingDay, error) {
	var hits []*leave.ExistingDay
	for _, req := range m.requests {
		if req.EmployeeID != employeeID || req.ID == excludeRequestID {
			continue
		}
		for _, day := range req.Days {
			if day.DayStatus == leave.DayRejected {
				continue
			}
			for _, d := range dates {
				if day.LeaveDate.Equal(d) {
					hits = append(hits, &leave.ExistingDay{
						RequestID: req.ID,
						LeaveType: req.LeaveType,
						LeaveDate: day.LeaveDate,
						DayType:   day.DayType,
						DayStatus: day.DayStatus,
					})
				}
			}
		}
	}
	return hits, nil
}

type mockEmployeeRepo struct {
	employees map[int64]*employee.Employee
}

func (m *mockEmployeeRepo) GetByID(_ context.Context, id int64) (*employee.Employee, error) {
	emp, ok := m.employees[id]
	if !ok {
		return nil, internal.ErrEmployeeNotFound
	}
	return emp, nil
}

func (m *mockEmployeeRepo) GetByEmail(_ context.Context, email string) (*employee.Employee, error) {
	for _, emp := range m.employees {
		if emp.Email == email {
			return emp, nil
		}
	}
	return nil, internal.ErrEmployeeNotFound
}

func (m *mockEmployeeRepo) ListActive(_ context.Context) ([]*employee.Employee, error) {
	var out []*employee.Employee
	for _, emp := range m.employees {
		if emp.IsActive() {
			out = append(out, emp)
		}
	}
	return out, nil
}

type mockPolicyResolver struct {
	missing bool
}

func (m *mockPolicyResolver) Resolve(_ context.Context, role employee.Role, code string, asOf time.Time) (*policy.Configuration, error) {
	if m.missing {
		return nil, &internal.PolicyNotFoundError{Role: string(role), LeaveType: code, AsOf: asOf}
	}
	return &policy.Configuration{
		Role:          role,
		LeaveTypeCode: code,
		AnnualCredit:  decimal.NewFromInt(12),
		AnnualMax:     decimal.NewFromInt(24),
	}, nil
}

// mockLedger tracks calls and enforces a configurable available amount.
type mockLedger struct {
	available  decimal.Decimal
	locked     []int64
	reserved   []string
	committed  []string
	released   []string
	appliedOps map[string]bool
}

func newMockLedger(available float64) *mockLedger {
	return &mockLedger{available: decimal.NewFromFloat(available), appliedOps: make(map[string]bool)}
}

func (m *mockLedger) LockEmployee(_ context.Context, employeeID int64) error {
	m.locked = append(m.locked, employeeID)
	return nil
}

func (m *mockLedger) Reserve(_ context.Context, employeeID int64, leaveType string, amount decimal.Decimal) error {
	if amount.GreaterThan(m.available) {
		return &internal.InsufficientBalanceError{EmployeeID: employeeID, LeaveType: leaveType, Available: m.available, Requested: amount}
	}
	m.reserved = append(m.reserved, fmt.Sprintf("%s:%s", leaveType, amount))
	return nil
}

func (m *mockLedger) Commit(_ context.Context, _ int64, _ string, _ decimal.Decimal, opKey string) error {
	if m.appliedOps[opKey] {
		return nil
	}
	m.appliedOps[opKey] = true
	m.committed = append(m.committed, opKey)
	return nil
}

func (m *mockLedger) Release(_ context.Context, _ int64, _ string, _ decimal.Decimal, opKey string) error {
	if m.appliedOps[opKey] {
		return nil
	}
	m.appliedOps[opKey] = true
	m.released = append(m.released, opKey)
	return nil
}

func (m *mockLedger) CreditMonthly(_ context.Context, _ int64, _ string, _, _ decimal.Decimal, _ string) error {
	return nil
}

func (m *mockLedger) CreditAnniversary(_ context.Context, _ int64, _ string, _, _ decimal.Decimal, _ string) error {
	return nil
}

func (m *mockLedger) ResetAnnual(_ context.Context, _ int64, _ string, _ decimal.Decimal, _ string) error {
	return nil
}

func (m *mockLedger) GetBalance(_ context.Context, _ int64) (*balance.LeaveBalance, error) {
	return &balance.LeaveBalance{}, nil
}

type passthroughTx struct{}

func (passthroughTx) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// serializingTx runs transaction bodies one at a time, the way the row lock
// serializes them against the database.
type serializingTx struct {
	mu sync.Mutex
}

func (t *serializingTx) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}

// raceLedger re-derives availability from the running outstanding total on
// every reservation, the way the row-locked store re-queries pending weight.
type raceLedger struct {
	mu          sync.Mutex
	available   decimal.Decimal
	outstanding decimal.Decimal
}

func newRaceLedger(available int64) *raceLedger {
	return &raceLedger{available: decimal.NewFromInt(available)}
}

func (l *raceLedger) LockEmployee(_ context.Context, _ int64) error { return nil }

func (l *raceLedger) Reserve(_ context.Context, employeeID int64, leaveType string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	free := l.available.Sub(l.outstanding)
	if amount.GreaterThan(free) {
		return &internal.InsufficientBalanceError{EmployeeID: employeeID, LeaveType: leaveType, Available: free, Requested: amount}
	}
	l.outstanding = l.outstanding.Add(amount)
	return nil
}

func (l *raceLedger) Commit(_ context.Context, _ int64, _ string, _ decimal.Decimal, _ string) error {
	return nil
}

func (l *raceLedger) Release(_ context.Context, _ int64, _ string, _ decimal.Decimal, _ string) error {
	return nil
}

func (l *raceLedger) CreditMonthly(_ context.Context, _ int64, _ string, _, _ decimal.Decimal, _ string) error {
	return nil
}

func (l *raceLedger) CreditAnniversary(_ context.Context, _ int64, _ string, _, _ decimal.Decimal, _ string) error {
	return nil
}

func (l *raceLedger) ResetAnnual(_ context.Context, _ int64, _ string, _ decimal.Decimal, _ string) error {
	return nil
}

func (l *raceLedger) GetBalance(_ context.Context, _ int64) (*balance.LeaveBalance, error) {
	return &balance.LeaveBalance{}, nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (m *mockPublisher) Publish(_ context.Context, event events.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *mockPublisher) last() events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil
	}
	return m.events[len(m.events)-1]
}

var _ = Describe("Leave Service", func() {
	var (
		repo      *mockLeaveRepo
		employees *mockEmployeeRepo
		ledger    *mockLedger
		publisher *mockPublisher
		service   *leave.Service
	)

	testLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	newService := func() *leave.Service {
		expander := leave.NewDayExpander(newFakeCalendar())
		conflicts := leave.NewConflictChecker(repo)
		notice := leave.NewNoticeValidator(&mockRuleRepo{}, nil, testLogger)
		return leave.NewService(repo, employees, &mockPolicyResolver{}, expander, conflicts, notice, ledger, passthroughTx{}, publisher, testLogger)
	}

	BeforeEach(func() {
		repo = newMockLeaveRepo()
		employees = &mockEmployeeRepo{employees: map[int64]*employee.Employee{
			1: {ID: 1, Email: "dev@hrcore.dev", Role: employee.RoleEmployee, Status: employee.StatusActive, DateOfJoining: date("2023-01-01")},
			2: {ID: 2, Email: "mgr@hrcore.dev", Role: employee.RoleManager, Status: employee.StatusActive, DateOfJoining: date("2020-01-01")},
		}}
		ledger = newMockLedger(10)
		publisher = &mockPublisher{}
		service = newService()
	})

	apply := func() *leave.LeaveRequest {
		req, err := service.Apply(context.Background(), 1, leave.ApplyLeaveDTO{
			LeaveType: "casual",
			StartDate: "2026-09-07", // Mon
			EndDate:   "2026-09-09", // Wed
			Reason:    "trip",
		})
		Expect(err).NotTo(HaveOccurred())
		return req
	}

	Describe("Apply", func() {
		It("creates a pending request with one day row per working day", func() {
			req := apply()
			Expect(req.CurrentStatus).To(Equal(leave.StatusPending))
			Expect(req.Days).To(HaveLen(3))
			for _, d := range req.Days {
				Expect(d.DayStatus).To(Equal(leave.DayPending))
			}
			Expect(ledger.reserved).To(Equal([]string{"casual:3"}))
			Expect(publisher.events).To(HaveLen(1))
		})

		It("aborts the whole application when the balance cannot cover it", func() {
			ledger.available = decimal.NewFromInt(2)

			_, err := service.Apply(context.Background(), 1, leave.ApplyLeaveDTO{
				LeaveType: "casual",
				StartDate: "2026-09-07",
				EndDate:   "2026-09-09",
				Reason:    "trip",
			})
			var balErr *internal.InsufficientBalanceError
			Expect(err).To(BeAssignableToTypeOf(balErr))
			Expect(repo.requests).To(BeEmpty())
		})

		It("rejects an overlap with an existing pending day", func() {
			apply()

			_, err := service.Apply(context.Background(), 1, leave.ApplyLeaveDTO{
				LeaveType: "sick",
				StartDate: "2026-09-09",
				EndDate:   "2026-09-10",
				Reason:    "fever",
			})
			var conflict *internal.DateConflictError
			Expect(err).To(BeAssignableToTypeOf(conflict))
			Expect(repo.requests).To(HaveLen(1))
		})

		It("reserves nothing for a permission request but still serializes on the balance row", func() {
			req, err := service.Apply(context.Background(), 1, leave.ApplyLeaveDTO{
				LeaveType: "permission",
				StartDate: "2026-09-07",
				EndDate:   "2026-09-07",
				StartTime: strptr("10:00"),
				EndTime:   strptr("12:00"),
				Reason:    "bank visit",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(req.Days).To(HaveLen(1))
			Expect(ledger.reserved).To(BeEmpty())
			Expect(ledger.locked).To(Equal([]int64{1}))
		})

		It("refuses the leave type when no policy covers the role", func() {
			expander := leave.NewDayExpander(newFakeCalendar())
			conflicts := leave.NewConflictChecker(repo)
			notice := leave.NewNoticeValidator(&mockRuleRepo{}, nil, testLogger)
			svc := leave.NewService(repo, employees, &mockPolicyResolver{missing: true}, expander, conflicts, notice, ledger, passthroughTx{}, publisher, testLogger)

			_, err := svc.Apply(context.Background(), 1, leave.ApplyLeaveDTO{
				LeaveType: "casual",
				StartDate: "2026-09-07",
				EndDate:   "2026-09-09",
				Reason:    "trip",
			})
			var missing *internal.PolicyNotFoundError
			Expect(err).To(BeAssignableToTypeOf(missing))
		})
	})

	Describe("Decide", func() {
		manager := internal.Actor{ID: 2, Role: "manager"}
		hr := internal.Actor{ID: 3, Role: "hr"}

		It("approves every pending day and commits each to the ledger", func() {
			req := apply()

			decided, err := service.Decide(context.Background(), manager, req.ID, leave.DecideLeaveDTO{Outcome: "approve"})
			Expect(err).NotTo(HaveOccurred())
			Expect(decided.CurrentStatus).To(Equal(leave.StatusApproved))
			Expect(ledger.committed).To(HaveLen(3))
			Expect(ledger.released).To(BeEmpty())
		})

		It("auto-rejects the pending days left out of a partial approval", func() {
			req := apply()
			firstDay := req.Days[0].ID

			decided, err := service.Decide(context.Background(), manager, req.ID, leave.DecideLeaveDTO{
				Outcome: "approve",
				DayIDs:  []int64{firstDay},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(decided.CurrentStatus).To(Equal(leave.StatusPartiallyApproved))
			Expect(ledger.committed).To(HaveLen(1))
			Expect(ledger.released).To(HaveLen(2))

			approved, rejected := 0, 0
			for _, d := range decided.Days {
				switch d.DayStatus {
				case leave.DayApproved:
					approved++
				case leave.DayRejected:
					rejected++
				}
			}
			Expect(approved).To(Equal(1))
			Expect(rejected).To(Equal(2))
		})

		It("rejects every pending day even when the decider names a subset", func() {
			req := apply()

			decided, err := service.Decide(context.Background(), manager, req.ID, leave.DecideLeaveDTO{
				Outcome: "reject",
				DayIDs:  []int64{req.Days[0].ID},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(decided.CurrentStatus).To(Equal(leave.StatusRejected))
			for _, d := range decided.Days {
				Expect(d.DayStatus).To(Equal(leave.DayRejected))
			}
			Expect(ledger.released).To(HaveLen(3))
			Expect(ledger.committed).To(BeEmpty())
		})

		It("refuses a manager override of an HR decision", func() {
			req := apply()

			_, err := service.Decide(context.Background(), hr, req.ID, leave.DecideLeaveDTO{
				Outcome: "reject",
				DayIDs:  []int64{req.Days[0].ID},
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Decide(context.Background(), manager, req.ID, leave.DecideLeaveDTO{Outcome: "approve"})
			var authErr *internal.InsufficientAuthorityError
			Expect(err).To(BeAssignableToTypeOf(authErr))
		})

		It("lets HR past the authority gate on a manager-decided request", func() {
			req := apply()

			_, err := service.Decide(context.Background(), manager, req.ID, leave.DecideLeaveDTO{Outcome: "reject"})
			Expect(err).NotTo(HaveOccurred())

			// A decision settles every pending day, so the follow-up fails on
			// the terminal state, not on authority.
			_, err = service.Decide(context.Background(), hr, req.ID, leave.DecideLeaveDTO{Outcome: "approve"})
			var locked *internal.RequestLockedError
			Expect(errors.As(err, &locked)).To(BeTrue())
		})

		It("rejects self-approval", func() {
			req := apply()
			_, err := service.Decide(context.Background(), internal.Actor{ID: 1, Role: "manager"}, req.ID, leave.DecideLeaveDTO{Outcome: "approve"})
			Expect(err).To(HaveOccurred())
		})

		It("rejects roles outside the hierarchy", func() {
			req := apply()
			_, err := service.Decide(context.Background(), internal.Actor{ID: 5, Role: "employee"}, req.ID, leave.DecideLeaveDTO{Outcome: "approve"})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Edit and Delete", func() {
		owner := internal.Actor{ID: 1, Role: "employee"}
		manager := internal.Actor{ID: 2, Role: "manager"}

		It("locks the request once a decider has touched it", func() {
			req := apply()

			_, err := service.Decide(context.Background(), manager, req.ID, leave.DecideLeaveDTO{
				Outcome: "reject",
				DayIDs:  []int64{req.Days[0].ID},
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Edit(context.Background(), owner, req.ID, leave.EditLeaveDTO{
				LeaveType: "casual",
				StartDate: "2026-09-14",
				EndDate:   "2026-09-15",
				Reason:    "moved trip",
			})
			var locked *internal.RequestLockedError
			Expect(err).To(BeAssignableToTypeOf(locked))

			err = service.Delete(context.Background(), owner, req.ID)
			Expect(err).To(BeAssignableToTypeOf(locked))
		})

		It("replaces the day set on a successful edit", func() {
			req := apply()

			edited, err := service.Edit(context.Background(), owner, req.ID, leave.EditLeaveDTO{
				LeaveType: "casual",
				StartDate: "2026-09-14",
				EndDate:   "2026-09-15",
				Reason:    "moved trip",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(edited.Days).To(HaveLen(2))
			Expect(edited.StartDate.Format("2006-01-02")).To(Equal("2026-09-14"))
		})

		It("deletes an untouched pending request", func() {
			req := apply()
			Expect(service.Delete(context.Background(), owner, req.ID)).To(Succeed())
			_, err := service.Get(context.Background(), owner, req.ID)
			Expect(err).To(Equal(internal.ErrRequestNotFound))
		})
	})

	Describe("Cancel", func() {
		owner := internal.Actor{ID: 1, Role: "employee"}

		It("rejects every day and lands in cancelled", func() {
			req := apply()

			cancelled, err := service.Cancel(context.Background(), owner, req.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(cancelled.CurrentStatus).To(Equal(leave.StatusCancelled))
			for _, d := range cancelled.Days {
				Expect(d.DayStatus).To(Equal(leave.DayRejected))
			}
			Expect(ledger.released).To(HaveLen(3))
			Expect(ledger.committed).To(BeEmpty())

			last := publisher.last()
			Expect(last.EventType()).To(Equal(events.EventTypeLeaveCancelled))
		})
	})

	Describe("Apply under contention", func() {
		// serializingTx stands in for the database serializing two
		// transactions on one employee's balance row: only one body runs at a
		// time, and the loser re-reads state the winner already committed.
		concurrent := func(ledger balance.Ledger, first, second leave.ApplyLeaveDTO) []error {
			tx := &serializingTx{}
			expander := leave.NewDayExpander(newFakeCalendar())
			conflicts := leave.NewConflictChecker(repo)
			notice := leave.NewNoticeValidator(&mockRuleRepo{}, nil, testLogger)
			svc := leave.NewService(repo, employees, &mockPolicyResolver{}, expander, conflicts, notice, ledger, tx, publisher, testLogger)

			results := make(chan error, 2)
			var wg sync.WaitGroup
			for _, dto := range []leave.ApplyLeaveDTO{first, second} {
				wg.Add(1)
				go func(dto leave.ApplyLeaveDTO) {
					defer wg.Done()
					_, err := svc.Apply(context.Background(), 1, dto)
					results <- err
				}(dto)
			}
			wg.Wait()
			close(results)

			var errs []error
			for err := range results {
				errs = append(errs, err)
			}
			return errs
		}

		It("admits exactly one of two overlapping applications", func() {
			dto := leave.ApplyLeaveDTO{
				LeaveType: "casual",
				StartDate: "2026-09-07",
				EndDate:   "2026-09-09",
				Reason:    "trip",
			}

			errs := concurrent(newRaceLedger(10), dto, dto)

			succeeded, conflicted := 0, 0
			for _, err := range errs {
				if err == nil {
					succeeded++
					continue
				}
				var conflict *internal.DateConflictError
				Expect(errors.As(err, &conflict)).To(BeTrue())
				conflicted++
			}
			Expect(succeeded).To(Equal(1))
			Expect(conflicted).To(Equal(1))
			Expect(repo.requests).To(HaveLen(1))
		})

		It("admits exactly one of two applications that together overdraw the balance", func() {
			// Disjoint ranges of six working days each against a balance of
			// ten: no date conflict, so only the availability re-check under
			// the lock can stop the loser.
			first := leave.ApplyLeaveDTO{
				LeaveType: "casual",
				StartDate: "2026-09-07",
				EndDate:   "2026-09-14",
				Reason:    "trip",
			}
			second := leave.ApplyLeaveDTO{
				LeaveType: "casual",
				StartDate: "2026-09-16",
				EndDate:   "2026-09-23",
				Reason:    "family visit",
			}

			errs := concurrent(newRaceLedger(10), first, second)

			succeeded, overdrawn := 0, 0
			for _, err := range errs {
				if err == nil {
					succeeded++
					continue
				}
				var insufficient *internal.InsufficientBalanceError
				Expect(errors.As(err, &insufficient)).To(BeTrue())
				overdrawn++
			}
			Expect(succeeded).To(Equal(1))
			Expect(overdrawn).To(Equal(1))
			Expect(repo.requests).To(HaveLen(1))
		})
	})
})
