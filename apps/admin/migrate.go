package main

import (
	"github.com/obeworks/kurikulum/storage/database"
)

var migrateFunc = database.RunMigrations // mockable

func (cli *commandLine) migrate(args []string) error {
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return migrateFunc(cli.db.DB, cli.conf.Database.Engine, args[0], arguments...)
}
