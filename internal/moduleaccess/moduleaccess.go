// Package moduleaccess maintains per-module member lists: which employees can
// see optional HR modules. Toggles are atomic at the database level, so two
// admins clicking at once converge to a single consistent membership.
package moduleaccess

import (
	"context"
	"log/slog"
	"time"
)

type ModuleMember struct {
	ID         int64     `json:"id" gorm:"primaryKey"`
	ModuleCode string    `json:"module_code" gorm:"column:module_code;not null;uniqueIndex:idx_module_member,priority:1"`
	EmployeeID int64     `json:"employee_id" gorm:"column:employee_id;not null;uniqueIndex:idx_module_member,priority:2"`
	AddedBy    int64     `json:"added_by" gorm:"column:added_by"`
	CreatedAt  time.Time `json:"created_at" gorm:"column:created_at"`
}

func (ModuleMember) TableName() string {
	return "module_members"
}

type Repository interface {
	// Add inserts the membership, treating an existing row as success.
	Add(ctx context.Context, member *ModuleMember) error
	// Remove deletes by the natural key; removing an absent member is a no-op.
	Remove(ctx context.Context, moduleCode string, employeeID int64) error
	ListMembers(ctx context.Context, moduleCode string) ([]*ModuleMember, error)
	IsMember(ctx context.Context, moduleCode string, employeeID int64) (bool, error)
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Grant adds an employee to a module's member list. Idempotent: granting an
// existing member changes nothing.
func (s *Service) Grant(ctx context.Context, moduleCode string, employeeID, addedBy int64) error {
	err := s.repo.Add(ctx, &ModuleMember{
		ModuleCode: moduleCode,
		EmployeeID: employeeID,
		AddedBy:    addedBy,
	})
	if err != nil {
		s.logger.Error("module access grant failed", "error", err, "module", moduleCode, "employee_id", employeeID)
		return err
	}
	s.logger.Info("module access granted", "module", moduleCode, "employee_id", employeeID, "added_by", addedBy)
	return nil
}

// Revoke removes an employee from a module's member list. Idempotent.
func (s *Service) Revoke(ctx context.Context, moduleCode string, employeeID int64) error {
	if err := s.repo.Remove(ctx, moduleCode, employeeID); err != nil {
		s.logger.Error("module access revoke failed", "error", err, "module", moduleCode, "employee_id", employeeID)
		return err
	}
	s.logger.Info("module access revoked", "module", moduleCode, "employee_id", employeeID)
	return nil
}

func (s *Service) Members(ctx context.Context, moduleCode string) ([]*ModuleMember, error) {
	return s.repo.ListMembers(ctx, moduleCode)
}

func (s *Service) HasAccess(ctx context.Context, moduleCode string, employeeID int64) (bool, error) {
	return s.repo.IsMember(ctx, moduleCode, employeeID)
}
