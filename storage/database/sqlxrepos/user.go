package sqlxrepos

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/obeworks/kurikulum/core"
	"github.com/obeworks/kurikulum/core/user"
)

const userColumns = `id, name, email, roles, is_active, created_at, updated_at`

type userRepository struct {
	baseRepository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DBExecutor) *userRepository {
	return &userRepository{baseRepository{db: db}}
}

func (repo userRepository) CreateUser(ctx context.Context, u user.User, exec ...core.DBExecutor) error {
	q := `INSERT INTO users (` + userColumns + `) VALUES (:id, :name, :email, :roles, :is_active, :created_at, :updated_at)`
	return mapWriteErr(insert(ctx, repo.getExec(exec), q, u), "inserting user", user.ErrEmailExists)
}

func (repo userRepository) GetUser(ctx context.Context, id string, exec ...core.DBExecutor) (user.User, error) {
	var u user.User
	if err := get(ctx, repo.getExec(exec), &u, `SELECT `+userColumns+` FROM users WHERE id = ?`, id); err != nil {
		return user.User{}, trapNoRowsErr(err, "user", id)
	}
	return u, nil
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (user.User, error) {
	var u user.User
	if err := get(ctx, repo.getExec(exec), &u, `SELECT `+userColumns+` FROM users WHERE email = ?`, email); err != nil {
		return user.User{}, trapNoRowsErr(err, "user", email)
	}
	return u, nil
}

func (repo userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter, exec ...core.DBExecutor) ([]user.User, error) {
	var where whereClause
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		where.add("(LOWER(name) LIKE ? OR LOWER(email) LIKE ?)", pattern, pattern)
	}
	if filter.IsActive != nil {
		where.add("is_active = ?", *filter.IsActive)
	}

	list := make([]user.User, 0)
	q := `SELECT ` + userColumns + ` FROM users` + where.String() + ` ORDER BY name, email`
	if err := selectAll(ctx, repo.getExec(exec), &list, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	if len(filter.Roles) == 0 {
		return list, nil
	}

	// roles are a comma separated column: match them here rather than with LIKE patterns
	res := make([]user.User, 0, len(list))
	for _, u := range list {
		for _, role := range filter.Roles {
			if u.Roles.Has(role) {
				res = append(res, u)
				break
			}
		}
	}
	return res, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, u user.User, exec ...core.DBExecutor) error {
	q := `UPDATE users SET name = :name, email = :email, roles = :roles, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`
	return mapWriteErr(updateOne(ctx, repo.getExec(exec), q, u, "user", u.ID), "updating user", user.ErrEmailExists)
}

func (repo userRepository) EmailExists(ctx context.Context, email, excludeID string, exec ...core.DBExecutor) (bool, error) {
	found, err := exists(ctx, repo.getExec(exec), `SELECT id FROM users WHERE email = ? AND id <> ?`, email, excludeID)
	return found, errors.Wrap(err, "checking user email")
}
