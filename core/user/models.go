package user

import (
	"database/sql/driver"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/obeworks/kurikulum/core"
)

// Roles
const (
	RoleAdmin       = "admin"
	RoleQuality     = "quality"     // quality assurance unit (GPM)
	RoleProgramHead = "programhead" // kaprodi
	RoleLecturer    = "lecturer"
	RoleStudent     = "student"
)

var (
	AllRoles = []string{RoleAdmin, RoleQuality, RoleProgramHead, RoleLecturer, RoleStudent}

	rolePriorities = map[string]int{
		RoleAdmin:       30,
		RoleQuality:     22,
		RoleProgramHead: 21,
		RoleLecturer:    11,
		RoleStudent:     1,
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var highest int
	for _, role := range roles {
		if RolePriority(role) > highest {
			highest = RolePriority(role)
		}
	}
	return highest
}

// Roles is stored as a comma separated column.
type Roles []string

func (r Roles) Value() (driver.Value, error) {
	return strings.Join(r, ","), nil
}

func (r *Roles) Scan(src interface{}) error {
	var s string
	switch v := src.(type) {
	case nil:
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return errors.Errorf("user roles: unsupported column type %T", src)
	}
	*r = parseRoles(s)
	return nil
}

func parseRoles(s string) Roles {
	roles := Roles{}
	for _, role := range strings.Split(s, ",") {
		if role = core.CleanString(role, true /* lower */); role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}

func (r Roles) Has(role string) bool {
	for _, rl := range r {
		if rl == role {
			return true
		}
	}
	return false
}

type User struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Roles     Roles     `db:"roles" json:"roles"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"` // UTC
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"` // UTC
}

func (u User) IsAdmin() bool    { return u.Roles.Has(RoleAdmin) }
func (u User) IsLecturer() bool { return u.Roles.Has(RoleLecturer) }

// CanApprove reports whether the user may sit on an RPS approval level.
func (u User) CanApprove() bool {
	return u.IsActive && MaxRolePriority(u.Roles) > RolePriority(RoleLecturer)
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name  string   `json:"name" validate:"required,max=200"`
	Email string   `json:"email" validate:"required,email"`
	Roles []string `json:"roles" validate:"omitempty,allroles"`
}

func (nu *NewUser) clean() {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	for i, role := range nu.Roles {
		nu.Roles[i] = core.CleanString(role, true /* lower */)
	}
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name     *string  `json:"name" validate:"omitempty,min=1,max=200"`
	Email    *string  `json:"email" validate:"omitempty,email"`
	IsActive *bool    `json:"is_active"`
	Roles    []string `json:"roles" validate:"omitempty,allroles"`
}

type QueryFilter struct {
	Search   string
	Roles    []string
	IsActive *bool
}
