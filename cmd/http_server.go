package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hrcore/leave-management/internal"
	"github.com/hrcore/leave-management/internal/accrual"
	"github.com/hrcore/leave-management/internal/auth"
	"github.com/hrcore/leave-management/internal/balance"
	balancestore "github.com/hrcore/leave-management/internal/balance/postgres"
	"github.com/hrcore/leave-management/internal/calendar"
	calendarstore "github.com/hrcore/leave-management/internal/calendar/postgres"
	"github.com/hrcore/leave-management/internal/core/events"
	"github.com/hrcore/leave-management/internal/database"
	employeestore "github.com/hrcore/leave-management/internal/employee/postgres"
	"github.com/hrcore/leave-management/internal/leave"
	leavestore "github.com/hrcore/leave-management/internal/leave/postgres"
	"github.com/hrcore/leave-management/internal/moduleaccess"
	moduleaccessstore "github.com/hrcore/leave-management/internal/moduleaccess/postgres"
	"github.com/hrcore/leave-management/internal/policy"
	policystore "github.com/hrcore/leave-management/internal/policy/postgres"
	"github.com/hrcore/leave-management/internal/transport/rest"
	"github.com/hrcore/leave-management/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	Gorm   *gorm.DB
	Router *chi.Mux
	Logger *slog.Logger

	Handlers rest.Handlers
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	rest.RegisterAllRoutes(deps.Router, deps.DB.DB, deps.Handlers, deps.Logger)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Logging.Format, config.Logging.Level)
	lg := logger.L()

	db, gormDB, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	bus := events.NewBus(lg)
	subscribeAuditLog(bus)
	txManager := database.NewTxManager(gormDB)

	// repositories
	employeeRepo := employeestore.NewEmployeeRepository(db)
	leaveRepo := leavestore.NewLeaveRepository(gormDB)
	ruleRepo := leavestore.NewRuleRepository(gormDB)
	policyRepo := policystore.NewPolicyRepository(gormDB)
	holidayRepo := calendarstore.NewHolidayRepository(gormDB)
	moduleRepo := moduleaccessstore.NewModuleAccessRepository(gormDB)

	// domain services
	cal := calendar.New(holidayRepo)
	resolver := policy.NewResolver(policyRepo, lg)
	lopCap := decimal.NewFromInt(int64(config.Accrual.LOPCap))
	ledger := balancestore.NewLedgerStore(gormDB, leaveRepo, lopCap, lg)

	expander := leave.NewDayExpander(cal)
	conflicts := leave.NewConflictChecker(leaveRepo)
	bypasses := leave.NewEventBypassRecorder(bus)
	notice := leave.NewNoticeValidator(ruleRepo, bypasses, lg)

	leaveService := leave.NewService(leaveRepo, employeeRepo, resolver, expander, conflicts, notice, ledger, txManager, bus, lg)
	balanceService := balance.NewService(ledger, leaveRepo, lg)
	moduleService := moduleaccess.NewService(moduleRepo, lg)
	engine := accrual.NewEngine(employeeRepo, resolver, ledger, bus, lg, 0)

	tokens := auth.NewJWTTokenGenerator(
		config.Security.JWTSecret,
		config.Security.AccessTokenDuration,
		config.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(employeeRepo, tokens, config.Security.BCryptCost, lg)

	return &Dependencies{
		Config: config,
		Logger: lg,
		DB:     db,
		Gorm:   gormDB,
		Router: chi.NewRouter(),
		Handlers: rest.Handlers{
			Auth:         auth.NewHandler(authService),
			AuthService:  authService,
			Leave:        leave.NewHandler(leaveService),
			Balance:      balance.NewHandler(balanceService),
			Accrual:      accrual.NewHandler(engine),
			ModuleAccess: moduleaccess.NewHandler(moduleService),
		},
	}, nil
}

// initDB opens one pgx connection pool and hands the same pool to both sqlx
// and gorm, so row locks taken through either see the same database state.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, *gorm.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: dbConn.DB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		_ = dbConn.Close()
		return nil, nil, fmt.Errorf("failed to open gorm over db connection: %w", err)
	}

	return dbConn, gormDB, nil
}

// subscribeAuditLog records every domain event as a structured audit line.
// Outbound notification delivery belongs to a collaborator; the log is the
// in-process sink.
func subscribeAuditLog(bus *events.Bus) {
	audit := func(ctx context.Context, event events.Event) error {
		logger.From(ctx).Info("audit event",
			"event_type", event.EventType(),
			"event_id", event.EventID(),
			"occurred_at", event.OccurredAt(),
			"payload", event.Payload())
		return nil
	}
	for _, eventType := range []string{
		events.EventTypeLeaveApplied,
		events.EventTypeLeaveDecided,
		events.EventTypeLeaveCancelled,
		events.EventTypeNoticeBypassed,
		events.EventTypeAccrualApplied,
	} {
		bus.Subscribe(eventType, audit)
	}
}
