package main

import (
	"context"

	"github.com/obeworks/kurikulum/core"
	"github.com/obeworks/kurikulum/core/user"
)

// addUser creates a user, or activates an existing one and replaces its roles.
func (cli *commandLine) addUser(name, email string, roles []string) error {
	ctx := context.Background()
	users := cli.svc.Users

	usr, err := users.GetByEmail(ctx, email)
	if err != nil {
		if !core.IsNotFound(err) {
			return err
		}
		usr, err = users.Create(ctx, user.NewUser{Name: name, Email: email, Roles: roles})
		if err != nil {
			return err
		}
		return cli.printJSON(usr)
	}

	active := true
	usr, err = users.Update(ctx, usr.ID, user.UpdateUser{Name: &name, IsActive: &active, Roles: roles})
	if err != nil {
		return err
	}
	return cli.printJSON(usr)
}
