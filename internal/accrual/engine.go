// Package accrual credits and resets leave balances on schedule: monthly
// drip, service-anniversary bonuses, and the year-rollover reset. Runs are
// idempotent per period key, so a crashed or repeated run never double-credits.
package accrual

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hrcore/leave-management/internal"
	"github.com/hrcore/leave-management/internal/balance"
	"github.com/hrcore/leave-management/internal/core/events"
	"github.com/hrcore/leave-management/internal/employee"
	"github.com/hrcore/leave-management/internal/policy"
)

type Trigger string

const (
	TriggerMonthly     Trigger = "monthly"
	TriggerAnniversary Trigger = "anniversary"
	TriggerYearly      Trigger = "yearly"
)

// Balance types that accrue. LOP is a debt ledger and is never credited.
var accruingTypes = []string{balance.TypeCasual, balance.TypeSick}

const monthsPerYear = 12

type PolicyResolver interface {
	Resolve(ctx context.Context, role employee.Role, leaveTypeCode string, asOf time.Time) (*policy.Configuration, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event)
}

// RunSummary reports what one accrual run did across the workforce.
type RunSummary struct {
	PeriodKey string    `json:"period_key"`
	Trigger   Trigger   `json:"trigger"`
	Processed int       `json:"processed"`
	Credited  int       `json:"credited"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
}

// Engine fans one accrual run out over the active workforce with a bounded
// worker pool. Each employee's credits run in their own ledger transactions;
// one employee failing never blocks the rest.
type Engine struct {
	employees employee.Repository
	policies  PolicyResolver
	ledger    balance.Ledger
	events    EventPublisher
	logger    *slog.Logger
	workers   int
}

func NewEngine(
	employees employee.Repository,
	policies PolicyResolver,
	ledger balance.Ledger,
	publisher EventPublisher,
	logger *slog.Logger,
	workers int,
) *Engine {
	if workers <= 0 {
		workers = 10
	}
	return &Engine{
		employees: employees,
		policies:  policies,
		ledger:    ledger,
		events:    publisher,
		logger:    logger,
		workers:   workers,
	}
}

type result struct {
	credited bool
	skipped  bool
	failed   bool
}

// Run executes one accrual pass. The period key fixes the run's reference
// date and scopes its idempotency: monthly keys are YYYY-MM, anniversary keys
// YYYY-MM-DD, yearly keys YYYY.
func (e *Engine) Run(ctx context.Context, trigger Trigger, periodKey string) (*RunSummary, error) {
	asOf, err := parsePeriodKey(trigger, periodKey)
	if err != nil {
		return nil, err
	}

	emps, err := e.employees.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active employees: %w", err)
	}

	started := time.Now()
	e.logger.Info("accrual run starting",
		"trigger", trigger,
		"period_key", periodKey,
		"employees", len(emps),
		"workers", e.workers)

	jobs := make(chan *employee.Employee)
	results := make(chan result, len(emps))
	var wg sync.WaitGroup

	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for emp := range jobs {
				results <- e.processEmployee(ctx, trigger, periodKey, asOf, emp)
			}
		}()
	}

	for _, emp := range emps {
		jobs <- emp
	}
	close(jobs)
	wg.Wait()
	close(results)

	summary := &RunSummary{
		PeriodKey: periodKey,
		Trigger:   trigger,
		Processed: len(emps),
		StartedAt: started,
	}
	for r := range results {
		switch {
		case r.failed:
			summary.Failed++
		case r.credited:
			summary.Credited++
		default:
			summary.Skipped++
		}
	}
	summary.Duration = time.Since(started).String()

	e.logger.Info("accrual run finished",
		"trigger", trigger,
		"period_key", periodKey,
		"credited", summary.Credited,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"duration", summary.Duration)
	e.events.Publish(ctx, events.NewAccrualAppliedEvent(periodKey, string(trigger), summary.Credited, summary.Skipped))

	return summary, nil
}

func (e *Engine) processEmployee(ctx context.Context, trigger Trigger, periodKey string, asOf time.Time, emp *employee.Employee) result {
	var err error
	var credited bool

	switch trigger {
	case TriggerMonthly:
		credited, err = e.creditMonthly(ctx, periodKey, asOf, emp)
	case TriggerAnniversary:
		credited, err = e.creditAnniversary(ctx, periodKey, asOf, emp)
	case TriggerYearly:
		credited, err = e.resetAnnual(ctx, periodKey, asOf, emp)
	}

	if err != nil {
		e.logger.Error("accrual failed for employee",
			"error", err,
			"employee_id", emp.ID,
			"trigger", trigger,
			"period_key", periodKey)
		return result{failed: true}
	}
	if !credited {
		return result{skipped: true}
	}
	return result{credited: true}
}

// creditMonthly drips one twelfth of the annual credit into each accruing
// type, clamped to the policy's annual maximum.
func (e *Engine) creditMonthly(ctx context.Context, periodKey string, asOf time.Time, emp *employee.Employee) (bool, error) {
	var any bool
	for _, leaveType := range accruingTypes {
		cfg, err := e.resolvePolicy(ctx, emp, leaveType, asOf)
		if err != nil {
			return any, err
		}
		if cfg == nil || !cfg.AnnualCredit.IsPositive() {
			continue
		}

		amount := cfg.AnnualCredit.Div(decimal.NewFromInt(monthsPerYear)).Round(1)
		opKey := accrualOpKey(TriggerMonthly, periodKey, emp.ID, leaveType)
		if err := e.ledger.CreditMonthly(ctx, emp.ID, leaveType, amount, cfg.AnnualMax, opKey); err != nil {
			return any, err
		}
		any = true
	}
	return any, nil
}

// creditAnniversary grants the service-milestone bonus on the employee's
// joining anniversary: the 5-year tier once reached, the 3-year tier before
// that. Employees under 3 years or off their anniversary date are skipped.
func (e *Engine) creditAnniversary(ctx context.Context, periodKey string, asOf time.Time, emp *employee.Employee) (bool, error) {
	if !emp.IsAnniversary(asOf) {
		return false, nil
	}

	years := emp.YearsOfService(asOf)
	if years < 3 {
		return false, nil
	}

	var any bool
	for _, leaveType := range accruingTypes {
		cfg, err := e.resolvePolicy(ctx, emp, leaveType, asOf)
		if err != nil {
			return any, err
		}
		if cfg == nil {
			continue
		}

		bonus := cfg.Anniversary3YrBonus
		if years >= 5 {
			bonus = cfg.Anniversary5YrBonus
		}
		if !bonus.IsPositive() {
			continue
		}

		opKey := accrualOpKey(TriggerAnniversary, periodKey, emp.ID, leaveType)
		if err := e.ledger.CreditAnniversary(ctx, emp.ID, leaveType, bonus, cfg.AnnualMax, opKey); err != nil {
			return any, err
		}
		any = true
	}
	return any, nil
}

// resetAnnual clamps each accruing balance down to the policy's carry-forward
// limit at year rollover.
func (e *Engine) resetAnnual(ctx context.Context, periodKey string, asOf time.Time, emp *employee.Employee) (bool, error) {
	var any bool
	for _, leaveType := range accruingTypes {
		cfg, err := e.resolvePolicy(ctx, emp, leaveType, asOf)
		if err != nil {
			return any, err
		}
		if cfg == nil {
			continue
		}

		opKey := accrualOpKey(TriggerYearly, periodKey, emp.ID, leaveType)
		if err := e.ledger.ResetAnnual(ctx, emp.ID, leaveType, cfg.CarryForwardLimit, opKey); err != nil {
			return any, err
		}
		any = true
	}
	return any, nil
}

// resolvePolicy returns nil without error when no policy covers the role and
// type: that employee simply does not accrue it.
func (e *Engine) resolvePolicy(ctx context.Context, emp *employee.Employee, leaveType string, asOf time.Time) (*policy.Configuration, error) {
	cfg, err := e.policies.Resolve(ctx, emp.Role, leaveType, asOf)
	if err != nil {
		var notFound *internal.PolicyNotFoundError
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, err
	}
	return cfg, nil
}

func accrualOpKey(trigger Trigger, periodKey string, employeeID int64, leaveType string) string {
	return fmt.Sprintf("accrual:%s:%s:emp:%d:%s", trigger, periodKey, employeeID, leaveType)
}

func parsePeriodKey(trigger Trigger, periodKey string) (time.Time, error) {
	var layout string
	switch trigger {
	case TriggerMonthly:
		layout = "2006-01"
	case TriggerAnniversary:
		layout = "2006-01-02"
	case TriggerYearly:
		layout = "2006"
	default:
		return time.Time{}, fmt.Errorf("unknown accrual trigger %q", trigger)
	}

	asOf, err := time.Parse(layout, periodKey)
	if err != nil {
		return time.Time{}, fmt.Errorf("period key %q does not match trigger %s (want %s): %w", periodKey, trigger, layout, err)
	}
	return asOf, nil
}
