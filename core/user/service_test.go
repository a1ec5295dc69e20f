package user_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obeworks/kurikulum/core"
	"github.com/obeworks/kurikulum/core/user"
	"github.com/obeworks/kurikulum/tests"
)

func TestService_Create(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		nu      user.NewUser
		wantErr bool
	}{
		{name: "valid", nu: user.NewUser{Name: " Siti ", Email: "Siti@Kampus.ac.id", Roles: []string{"Lecturer"}}},
		{name: "no roles", nu: user.NewUser{Name: "Budi", Email: "budi@kampus.ac.id"}},
		{name: "duplicate email", nu: user.NewUser{Name: "Siti 2", Email: "siti@kampus.ac.id"}, wantErr: true},
		{name: "bad email", nu: user.NewUser{Name: "X", Email: "nope"}, wantErr: true},
		{name: "unknown role", nu: user.NewUser{Name: "Y", Email: "y@kampus.ac.id", Roles: []string{"janitor"}}, wantErr: true},
		{name: "missing name", nu: user.NewUser{Email: "z@kampus.ac.id"}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			usr, err := env.Users.Create(ctx, tc.nu)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, core.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.True(t, usr.IsActive)

			got, err := env.Users.Get(ctx, usr.ID)
			require.NoError(t, err)
			assert.Equal(t, usr.Email, got.Email)
			assert.Equal(t, usr.Roles, got.Roles)
		})
	}

	usr, err := env.Users.GetByEmail(ctx, " SITI@kampus.ac.id")
	require.NoError(t, err)
	assert.Equal(t, "Siti", usr.Name)
	assert.Equal(t, user.Roles{user.RoleLecturer}, usr.Roles)

	_, err = env.Users.Get(ctx, "missing")
	assert.True(t, core.IsNotFound(err))
}

func TestService_Update(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, env, "Ani", "ani@kampus.ac.id", user.RoleLecturer)
	testutil.CreateUser(t, env, "Budi", "budi@kampus.ac.id")

	taken := "budi@kampus.ac.id"
	_, err := env.Users.Update(ctx, a.ID, user.UpdateUser{Email: &taken})
	assert.True(t, core.IsValidation(err))

	name, inactive := "Ani Rahma", false
	usr, err := env.Users.Update(ctx, a.ID, user.UpdateUser{Name: &name, IsActive: &inactive, Roles: []string{"ProgramHead", " lecturer"}})
	require.NoError(t, err)
	assert.Equal(t, name, usr.Name)
	assert.False(t, usr.IsActive)
	assert.Equal(t, user.Roles{user.RoleProgramHead, user.RoleLecturer}, usr.Roles)
	assert.False(t, usr.CanApprove())

	_, err = env.Users.Update(ctx, "missing", user.UpdateUser{Name: &name})
	assert.True(t, core.IsNotFound(err))
}

func TestService_Filter(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	testutil.CreateUser(t, env, "Ani", "ani@kampus.ac.id", user.RoleLecturer)
	testutil.CreateUser(t, env, "Budi", "budi@kampus.ac.id", user.RoleStudent)
	c := testutil.CreateUser(t, env, "Citra", "citra@kampus.ac.id", user.RoleLecturer, user.RoleQuality)
	inactive := false
	_, err := env.Users.Update(ctx, c.ID, user.UpdateUser{IsActive: &inactive})
	require.NoError(t, err)

	active := true
	tests := []struct {
		name   string
		filter user.QueryFilter
		want   []string
	}{
		{name: "all", filter: user.QueryFilter{}, want: []string{"Ani", "Budi", "Citra"}},
		{name: "search", filter: user.QueryFilter{Search: "BUD"}, want: []string{"Budi"}},
		{name: "search email", filter: user.QueryFilter{Search: "citra@"}, want: []string{"Citra"}},
		{name: "roles", filter: user.QueryFilter{Roles: []string{user.RoleLecturer}}, want: []string{"Ani", "Citra"}},
		{name: "roles and active", filter: user.QueryFilter{Roles: []string{user.RoleLecturer}, IsActive: &active}, want: []string{"Ani"}},
		{name: "no match", filter: user.QueryFilter{Search: "zzz"}, want: []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			list, err := env.Users.Filter(ctx, tc.filter)
			require.NoError(t, err)
			names := make([]string, 0, len(list))
			for _, u := range list {
				names = append(names, u.Name)
			}
			assert.Equal(t, tc.want, names)
		})
	}
}
