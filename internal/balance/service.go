package balance

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
)

// View is the balance row enriched with what the employee can still request:
// stored balance minus outstanding pending weight (LOP: remaining headroom
// under the cap).
type View struct {
	Balance   *LeaveBalance              `json:"balance"`
	Pending   map[string]decimal.Decimal `json:"pending"`
	Available map[string]decimal.Decimal `json:"available"`
}

type Service struct {
	ledger  Ledger
	pending PendingProvider
	logger  *slog.Logger
}

func NewService(ledger Ledger, pending PendingProvider, logger *slog.Logger) *Service {
	return &Service{ledger: ledger, pending: pending, logger: logger}
}

func (s *Service) GetBalance(ctx context.Context, employeeID int64) (*View, error) {
	bal, err := s.ledger.GetBalance(ctx, employeeID)
	if err != nil {
		s.logger.Error("failed to load balance", "error", err, "employee_id", employeeID)
		return nil, err
	}

	view := &View{
		Balance:   bal,
		Pending:   make(map[string]decimal.Decimal, 3),
		Available: make(map[string]decimal.Decimal, 3),
	}

	for _, leaveType := range []string{TypeCasual, TypeSick, TypeLOP} {
		pending, err := s.pending.OutstandingPending(ctx, employeeID, leaveType)
		if err != nil {
			return nil, err
		}
		view.Pending[leaveType] = pending
		if leaveType == TypeLOP {
			view.Available[leaveType] = LOPCap.Sub(bal.LOPBalance).Sub(pending)
		} else {
			view.Available[leaveType] = bal.Get(leaveType).Sub(pending)
		}
	}

	return view, nil
}
