package leave

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hrcore/leave-management/internal"
)

// Rule maps a requested-duration band to the minimum advance notice it needs.
type Rule struct {
	ID                   int64           `json:"id" gorm:"primaryKey"`
	LeaveRequiredMin     decimal.Decimal `json:"leave_required_min" gorm:"column:leave_required_min;type:numeric(6,1)"`
	LeaveRequiredMax     decimal.Decimal `json:"leave_required_max" gorm:"column:leave_required_max;type:numeric(6,1)"`
	PriorInformationDays int             `json:"prior_information_days" gorm:"column:prior_information_days"`
	IsActive             bool            `json:"is_active" gorm:"column:is_active;default:true"`
	CreatedAt            time.Time       `json:"created_at" gorm:"column:created_at"`
	UpdatedAt            time.Time       `json:"updated_at" gorm:"column:updated_at"`
}

func (Rule) TableName() string {
	return "leave_rules"
}

type RuleRepository interface {
	ListActive(ctx context.Context) ([]*Rule, error)
}

// BypassRecorder receives urgent-override notifications so the bypass lands in
// the audit stream instead of being silently ignored.
type BypassRecorder interface {
	RecordNoticeBypass(ctx context.Context, employeeID int64, startDate time.Time, duration decimal.Decimal, requiredDays int)
}

// NoticeValidator enforces the prior-notice thresholds of the active leave
// rules, honouring the urgent override.
type NoticeValidator struct {
	rules    RuleRepository
	bypasses BypassRecorder
	logger   *slog.Logger
}

func NewNoticeValidator(rules RuleRepository, bypasses BypassRecorder, logger *slog.Logger) *NoticeValidator {
	return &NoticeValidator{rules: rules, bypasses: bypasses, logger: logger}
}

// Validate compares the application-to-start gap against the rule band that
// contains the requested duration. Urgent requests bypass the check but the
// bypass is recorded for audit.
func (v *NoticeValidator) Validate(ctx context.Context, employeeID int64, applicationDate, startDate time.Time, duration decimal.Decimal, urgent bool) error {
	rules, err := v.rules.ListActive(ctx)
	if err != nil {
		return err
	}

	var band *Rule
	for _, r := range rules {
		if duration.GreaterThanOrEqual(r.LeaveRequiredMin) && duration.LessThanOrEqual(r.LeaveRequiredMax) {
			band = r
			break
		}
	}
	if band == nil {
		// no band covers this duration: no notice constraint applies
		return nil
	}

	gapDays := int(NormalizeDate(startDate).Sub(NormalizeDate(applicationDate)).Hours() / 24)
	if gapDays >= band.PriorInformationDays {
		return nil
	}

	if urgent {
		v.logger.Warn("urgent override bypassed notice period",
			"employee_id", employeeID,
			"start_date", startDate.Format("2006-01-02"),
			"duration", duration,
			"required_days", band.PriorInformationDays,
			"given_days", gapDays)
		if v.bypasses != nil {
			v.bypasses.RecordNoticeBypass(ctx, employeeID, startDate, duration, band.PriorInformationDays)
		}
		return nil
	}

	return &internal.InsufficientNoticeError{
		RequiredDays: band.PriorInformationDays,
		GivenDays:    gapDays,
		StartDate:    startDate,
	}
}
