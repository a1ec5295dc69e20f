package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoles_Scan(t *testing.T) {
	tests := []struct {
		name string
		src  interface{}
		want Roles
	}{
		{name: "null", src: nil, want: Roles{}},
		{name: "empty", src: "", want: Roles{}},
		{name: "string", src: "admin,lecturer", want: Roles{RoleAdmin, RoleLecturer}},
		{name: "bytes", src: []byte("quality"), want: Roles{RoleQuality}},
		{name: "messy", src: " Admin ,, student ", want: Roles{RoleAdmin, RoleStudent}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var r Roles
			require.NoError(t, r.Scan(tc.src))
			assert.Equal(t, tc.want, r)
		})
	}

	var r Roles
	assert.Error(t, r.Scan(42))
}

func TestRoles_Value(t *testing.T) {
	v, err := Roles{RoleProgramHead, RoleLecturer}.Value()
	require.NoError(t, err)
	assert.Equal(t, "programhead,lecturer", v)
}

func TestUser_CanApprove(t *testing.T) {
	tests := []struct {
		roles    Roles
		isActive bool
		want     bool
	}{
		{roles: Roles{RoleAdmin}, isActive: true, want: true},
		{roles: Roles{RoleQuality}, isActive: true, want: true},
		{roles: Roles{RoleLecturer, RoleProgramHead}, isActive: true, want: true},
		{roles: Roles{RoleLecturer}, isActive: true, want: false},
		{roles: Roles{RoleStudent}, isActive: true, want: false},
		{roles: Roles{}, isActive: true, want: false},
		{roles: Roles{RoleAdmin}, isActive: false, want: false},
	}
	for _, tc := range tests {
		u := User{Roles: tc.roles, IsActive: tc.isActive}
		assert.Equal(t, tc.want, u.CanApprove(), "roles=%v active=%v", tc.roles, tc.isActive)
	}
}

func TestMaxRolePriority(t *testing.T) {
	assert.Equal(t, 0, MaxRolePriority(nil))
	assert.Equal(t, RolePriority(RoleAdmin), MaxRolePriority([]string{RoleStudent, RoleAdmin, RoleLecturer}))
	assert.Equal(t, 0, MaxRolePriority([]string{"janitor"}))
}
