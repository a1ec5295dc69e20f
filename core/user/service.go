package user

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/obeworks/kurikulum/core"
)

var (
	// errors
	ErrEmailExists = errors.New("a user with this email already exists")
)

type (
	Repository interface {
		CreateUser(ctx context.Context, u User, exec ...core.DBExecutor) error
		GetUser(ctx context.Context, id string, exec ...core.DBExecutor) (User, error)
		GetUserByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name or User.Email.
		FilterUsers(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]User, error)
		UpdateUser(ctx context.Context, u User, exec ...core.DBExecutor) error
		EmailExists(ctx context.Context, email string, excludeID string, exec ...core.DBExecutor) (bool, error)
	}

	Service struct {
		repo     Repository
		validate *core.Validator
		now      func() time.Time
	}
)

func NewService(repo Repository, v *core.Validator) *Service {
	return &Service{repo: repo, validate: v, now: time.Now}
}

func (svc *Service) checkUniqueness(ctx context.Context, email, excludeID string) error {
	exists, err := svc.repo.EmailExists(ctx, email, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	nu.clean()
	if err := svc.validate.Struct(nu); err != nil {
		return User{}, err
	}
	if err := svc.checkUniqueness(ctx, nu.Email, ""); err != nil {
		return User{}, err
	}

	now := svc.now().UTC()
	usr := User{
		ID:        uuid.New().String(),
		Name:      nu.Name,
		Email:     nu.Email,
		Roles:     Roles(nu.Roles),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if usr.Roles == nil {
		usr.Roles = Roles{}
	}
	if err := svc.repo.CreateUser(ctx, usr); err != nil {
		return User{}, err
	}
	return usr, nil
}

func (svc *Service) Get(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]User, error) {
	filter.Search = core.CleanString(filter.Search)
	return svc.repo.FilterUsers(ctx, filter)
}

func (svc *Service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	if uu.Email != nil {
		email := core.CleanString(*uu.Email, true /* lower */)
		uu.Email = &email
	}
	if uu.Roles != nil {
		uu.Roles = parseRoles(strings.Join(uu.Roles, ","))
	}
	if err := svc.validate.Struct(uu); err != nil {
		return User{}, err
	}

	usr, err := svc.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if uu.Name != nil {
		usr.Name = core.CleanString(*uu.Name)
	}
	if uu.Email != nil && *uu.Email != usr.Email {
		if err = svc.checkUniqueness(ctx, *uu.Email, id); err != nil {
			return User{}, err
		}
		usr.Email = *uu.Email
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Roles != nil {
		usr.Roles = Roles(uu.Roles)
	}
	usr.UpdatedAt = svc.now().UTC()
	if err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return User{}, err
	}
	return usr, nil
}
