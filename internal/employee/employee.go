package employee

import (
	"context"
	"time"
)

type Role string

const (
	RoleEmployee   Role = "employee"
	RoleManager    Role = "manager"
	RoleHR         Role = "hr"
	RoleIntern     Role = "intern"
	RoleSuperAdmin Role = "super_admin"
	RoleOnNotice   Role = "on_notice"
)

type Status string

const (
	StatusActive     Status = "active"
	StatusOnLeave    Status = "on_leave"
	StatusOnNotice   Status = "on_notice"
	StatusInactive   Status = "inactive"
	StatusTerminated Status = "terminated"
	StatusResigned   Status = "resigned"
)

// Employee is immutable identity from the core's point of view; HR/admin
// operations outside this module mutate it.
type Employee struct {
	ID                 int64      `db:"id" json:"id"`
	Email              string     `db:"email" json:"email"`
	Name               string     `db:"name" json:"name"`
	PasswordHash       string     `db:"password_hash" json:"-"`
	Role               Role       `db:"role" json:"role"`
	Status             Status     `db:"status" json:"status"`
	ReportingManagerID *int64     `db:"reporting_manager_id" json:"reporting_manager_id,omitempty"`
	DateOfJoining      time.Time  `db:"date_of_joining" json:"date_of_joining"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

func (e *Employee) IsActive() bool {
	return e.Status == StatusActive || e.Status == StatusOnLeave || e.Status == StatusOnNotice
}

// YearsOfService returns completed years since date of joining as of a date.
func (e *Employee) YearsOfService(asOf time.Time) int {
	years := asOf.Year() - e.DateOfJoining.Year()
	anniversary := e.DateOfJoining.AddDate(years, 0, 0)
	if anniversary.After(asOf) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// IsAnniversary reports whether asOf falls on the month/day of joining.
func (e *Employee) IsAnniversary(asOf time.Time) bool {
	return e.DateOfJoining.Month() == asOf.Month() && e.DateOfJoining.Day() == asOf.Day()
}

// RoleRank expresses the approval hierarchy as a total order:
// super_admin > hr > manager. Every other role ranks zero and cannot decide.
func RoleRank(r Role) int {
	switch r {
	case RoleSuperAdmin:
		return 3
	case RoleHR:
		return 2
	case RoleManager:
		return 1
	default:
		return 0
	}
}

// CanDecide reports whether the role may approve or reject leave at all.
func CanDecide(r Role) bool {
	return RoleRank(r) > 0
}

// CanOverride reports whether an actor with role r may re-decide a request
// last handled by prev. An untouched request (prev empty) is open to any
// deciding role; otherwise the actor must rank at least as high as prev.
func CanOverride(r Role, prev Role) bool {
	if !CanDecide(r) {
		return false
	}
	if prev == "" {
		return true
	}
	return RoleRank(r) >= RoleRank(prev)
}

type Repository interface {
	GetByID(ctx context.Context, id int64) (*Employee, error)
	GetByEmail(ctx context.Context, email string) (*Employee, error)
	ListActive(ctx context.Context) ([]*Employee, error)
}
