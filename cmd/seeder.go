package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/hrcore/leave-management/internal/balance"
	"github.com/hrcore/leave-management/internal/calendar"
	"github.com/hrcore/leave-management/internal/employee"
	"github.com/hrcore/leave-management/internal/leave"
	"github.com/hrcore/leave-management/internal/policy"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, gormDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		if clearData {
			for _, table := range []string{"applied_operations", "leave_days", "leave_requests", "leave_balances", "module_members", "leave_policy_configurations", "leave_rules", "holidays", "employees"} {
				if err := gormDB.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)

		seedEmployees(gormDB, string(hash))
		seedPolicies(gormDB)
		seedRules(gormDB)
		seedHolidays(gormDB)

		fmt.Println("Seeding complete")
	},
}

type seedEmployee struct {
	Email   string
	Name    string
	Role    string
	Joined  string
	Casual  float64
	Sick    float64
}

func seedEmployees(db *gorm.DB, passwordHash string) {
	employees := []seedEmployee{
		{Email: "arun@hrcore.dev", Name: "Arun Nair", Role: "employee", Joined: "2023-02-01", Casual: 8, Sick: 6},
		{Email: "meera@hrcore.dev", Name: "Meera Pillai", Role: "manager", Joined: "2020-06-15", Casual: 10, Sick: 8},
		{Email: "divya@hrcore.dev", Name: "Divya Menon", Role: "hr", Joined: "2019-09-01", Casual: 12, Sick: 8},
		{Email: "root@hrcore.dev", Name: "Root Admin", Role: "super_admin", Joined: "2018-01-01", Casual: 12, Sick: 8},
		{Email: "kiran@hrcore.dev", Name: "Kiran Das", Role: "intern", Joined: "2026-06-01", Casual: 2, Sick: 2},
	}

	for _, e := range employees {
		var exists int64
		db.Table("employees").Where("email = ?", e.Email).Count(&exists)
		if exists > 0 {
			fmt.Printf("employee %s already exists, skipping\n", e.Email)
			continue
		}

		joined, _ := time.Parse("2006-01-02", e.Joined)
		err := db.Exec(`INSERT INTO employees (email, name, password_hash, role, status, date_of_joining, created_at, updated_at)
			VALUES (?, ?, ?, ?, 'active', ?, now(), now())`,
			e.Email, e.Name, passwordHash, e.Role, joined).Error
		if err != nil {
			log.Fatalf("failed to insert employee %s: %v", e.Email, err)
		}

		var id int64
		db.Table("employees").Select("id").Where("email = ?", e.Email).Scan(&id)
		bal := &balance.LeaveBalance{
			EmployeeID:    id,
			CasualBalance: decimal.NewFromFloat(e.Casual),
			SickBalance:   decimal.NewFromFloat(e.Sick),
			LOPBalance:    decimal.Zero,
			LastUpdated:   time.Now(),
		}
		if err := db.Create(bal).Error; err != nil {
			log.Fatalf("failed to insert balance for %s: %v", e.Email, err)
		}
		fmt.Printf("Seeded employee %s (%s)\n", e.Email, e.Role)
	}
}

func seedPolicies(db *gorm.DB) {
	effective, _ := time.Parse("2006-01-02", "2024-01-01")
	type row struct {
		Role   string
		Code   string
		Credit float64
		Max    float64
		Carry  float64
		B3     float64
		B5     float64
	}

	rows := []row{
		{Role: "employee", Code: "casual", Credit: 12, Max: 24, Carry: 6, B3: 2, B5: 4},
		{Role: "employee", Code: "sick", Credit: 8, Max: 16, Carry: 4, B3: 0, B5: 0},
		{Role: "manager", Code: "casual", Credit: 14, Max: 28, Carry: 8, B3: 2, B5: 4},
		{Role: "manager", Code: "sick", Credit: 10, Max: 20, Carry: 5, B3: 0, B5: 0},
		{Role: "hr", Code: "casual", Credit: 14, Max: 28, Carry: 8, B3: 2, B5: 4},
		{Role: "hr", Code: "sick", Credit: 10, Max: 20, Carry: 5, B3: 0, B5: 0},
		{Role: "super_admin", Code: "casual", Credit: 14, Max: 28, Carry: 8, B3: 2, B5: 4},
		{Role: "super_admin", Code: "sick", Credit: 10, Max: 20, Carry: 5, B3: 0, B5: 0},
		{Role: "intern", Code: "casual", Credit: 6, Max: 6, Carry: 0, B3: 0, B5: 0},
		{Role: "intern", Code: "sick", Credit: 4, Max: 4, Carry: 0, B3: 0, B5: 0},
		// LOP carries no credit; the policy row only marks the type enabled.
		{Role: "employee", Code: "lop", Credit: 0, Max: 0, Carry: 0},
		{Role: "manager", Code: "lop", Credit: 0, Max: 0, Carry: 0},
		{Role: "hr", Code: "lop", Credit: 0, Max: 0, Carry: 0},
		{Role: "super_admin", Code: "lop", Credit: 0, Max: 0, Carry: 0},
		{Role: "intern", Code: "lop", Credit: 0, Max: 0, Carry: 0},
	}

	for _, r := range rows {
		var exists int64
		db.Model(&policy.Configuration{}).
			Where("role = ? AND leave_type_code = ? AND effective_from = ?", r.Role, r.Code, effective).
			Count(&exists)
		if exists > 0 {
			continue
		}

		cfg := &policy.Configuration{
			Role:                employee.Role(r.Role),
			LeaveTypeCode:       r.Code,
			AnnualCredit:        decimal.NewFromFloat(r.Credit),
			AnnualMax:           decimal.NewFromFloat(r.Max),
			CarryForwardLimit:   decimal.NewFromFloat(r.Carry),
			Anniversary3YrBonus: decimal.NewFromFloat(r.B3),
			Anniversary5YrBonus: decimal.NewFromFloat(r.B5),
			EffectiveFrom:       effective,
		}
		if err := db.Create(cfg).Error; err != nil {
			log.Fatalf("failed to insert policy %s/%s: %v", r.Role, r.Code, err)
		}
	}
	fmt.Println("Seeded leave policies")
}

func seedRules(db *gorm.DB) {
	var count int64
	db.Model(&leave.Rule{}).Count(&count)
	if count > 0 {
		fmt.Println("leave rules already exist, skipping")
		return
	}

	rules := []*leave.Rule{
		{LeaveRequiredMin: decimal.NewFromFloat(0.5), LeaveRequiredMax: decimal.NewFromInt(2), PriorInformationDays: 1, IsActive: true},
		{LeaveRequiredMin: decimal.NewFromFloat(2.5), LeaveRequiredMax: decimal.NewFromInt(5), PriorInformationDays: 7, IsActive: true},
		{LeaveRequiredMin: decimal.NewFromFloat(5.5), LeaveRequiredMax: decimal.NewFromInt(99), PriorInformationDays: 14, IsActive: true},
	}
	for _, r := range rules {
		if err := db.Create(r).Error; err != nil {
			log.Fatalf("failed to insert leave rule: %v", err)
		}
	}
	fmt.Println("Seeded leave rules")
}

func seedHolidays(db *gorm.DB) {
	var count int64
	db.Model(&calendar.Holiday{}).Count(&count)
	if count > 0 {
		fmt.Println("holidays already exist, skipping")
		return
	}

	dates := map[string]string{
		"2026-01-01": "New Year's Day",
		"2026-01-26": "Republic Day",
		"2026-08-15": "Independence Day",
		"2026-10-02": "Gandhi Jayanti",
		"2026-12-25": "Christmas",
	}
	for date, name := range dates {
		d, _ := time.Parse("2006-01-02", date)
		if err := db.Create(&calendar.Holiday{HolidayDate: d, Name: name}).Error; err != nil {
			log.Fatalf("failed to insert holiday %s: %v", date, err)
		}
	}
	fmt.Println("Seeded holidays")
}
