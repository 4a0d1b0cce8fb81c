package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hrcore/leave-management/internal"
	"github.com/hrcore/leave-management/internal/employee"
)

type EmployeeRepository struct {
	db *sqlx.DB
}

func NewEmployeeRepository(db *sqlx.DB) employee.Repository {
	return &EmployeeRepository{db: db}
}

const employeeColumns = `id, email, name, password_hash, role, status, reporting_manager_id, date_of_joining, created_at, updated_at`

func (r *EmployeeRepository) GetByID(ctx context.Context, id int64) (*employee.Employee, error) {
	var emp employee.Employee
	query := fmt.Sprintf("SELECT %s FROM employees WHERE id = $1", employeeColumns)
	if err := r.db.GetContext(ctx, &emp, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, internal.ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("get employee by id: %w", err)
	}
	return &emp, nil
}

func (r *EmployeeRepository) GetByEmail(ctx context.Context, email string) (*employee.Employee, error) {
	var emp employee.Employee
	query := fmt.Sprintf("SELECT %s FROM employees WHERE email = $1", employeeColumns)
	if err := r.db.GetContext(ctx, &emp, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, internal.ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("get employee by email: %w", err)
	}
	return &emp, nil
}

func (r *EmployeeRepository) ListActive(ctx context.Context) ([]*employee.Employee, error) {
	var emps []*employee.Employee
	query := fmt.Sprintf("SELECT %s FROM employees WHERE status IN ('active', 'on_leave', 'on_notice') ORDER BY id", employeeColumns)
	if err := r.db.SelectContext(ctx, &emps, query); err != nil {
		return nil, fmt.Errorf("list active employees: %w", err)
	}
	return emps, nil
}
