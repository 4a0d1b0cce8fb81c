package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/hrcore/leave-management/internal/accrual"
	balancestore "github.com/hrcore/leave-management/internal/balance/postgres"
	"github.com/hrcore/leave-management/internal/core/events"
	employeestore "github.com/hrcore/leave-management/internal/employee/postgres"
	leavestore "github.com/hrcore/leave-management/internal/leave/postgres"
	"github.com/hrcore/leave-management/internal/policy"
	policystore "github.com/hrcore/leave-management/internal/policy/postgres"
	"github.com/hrcore/leave-management/pkg/logger"
)

var (
	accrualTrigger   string
	accrualPeriodKey string
	accrualWorkers   int
)

// accrualCmd runs one accrual pass from the command line, for cron and
// operational replays. Re-running a period key is a no-op.
var accrualCmd = &cobra.Command{
	Use:   "accrual",
	Short: "Run an accrual pass (monthly credit, anniversary bonus, or yearly reset)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(".")
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger.Init(cfg.Logging.Format, cfg.Logging.Level)
		lg := logger.L()

		db, gormDB, err := initDB(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()

		employeeRepo := employeestore.NewEmployeeRepository(db)
		leaveRepo := leavestore.NewLeaveRepository(gormDB)
		resolver := policy.NewResolver(policystore.NewPolicyRepository(gormDB), lg)
		lopCap := decimal.NewFromInt(int64(cfg.Accrual.LOPCap))
		ledger := balancestore.NewLedgerStore(gormDB, leaveRepo, lopCap, lg)
		bus := events.NewBus(lg)

		engine := accrual.NewEngine(employeeRepo, resolver, ledger, bus, lg, accrualWorkers)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		summary, err := engine.Run(ctx, accrual.Trigger(accrualTrigger), accrualPeriodKey)
		if err != nil {
			return err
		}

		log.Printf("accrual %s %s: processed=%d credited=%d skipped=%d failed=%d",
			summary.Trigger, summary.PeriodKey, summary.Processed, summary.Credited, summary.Skipped, summary.Failed)
		return nil
	},
}

func init() {
	accrualCmd.Flags().StringVar(&accrualTrigger, "trigger", "monthly", "accrual trigger: monthly, anniversary or yearly")
	accrualCmd.Flags().StringVar(&accrualPeriodKey, "period", "", "period key: YYYY-MM (monthly), YYYY-MM-DD (anniversary), YYYY (yearly)")
	accrualCmd.MarkFlagRequired("period")
	accrualCmd.Flags().IntVar(&accrualWorkers, "workers", 10, "number of concurrent workers")
}
