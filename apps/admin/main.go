package main

import (
	"fmt"
	"os"

	"github.com/obeworks/kurikulum/apps/di"
	"github.com/obeworks/kurikulum/core"
	appfs "github.com/obeworks/kurikulum/fs"
	emailsvc "github.com/obeworks/kurikulum/services/email"
	logsvc "github.com/obeworks/kurikulum/services/logger"
	"github.com/obeworks/kurikulum/storage/database"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZapLogger(conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setting up logger: %v\n", err)
		os.Exit(1)
	}
	logger := logsvc.NewRollbarLogger(zl.Named("admin"), conf)
	defer logger.Close()

	// set up DB
	if err = database.CreateIfNotExist(conf); err != nil {
		logger.Fatal("creating database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	defer db.Close()

	if err = core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, strictTemplates(conf)); err != nil {
		logger.Fatal("parsing email templates", err)
	}

	// start CLI
	cli := commandLine{
		conf: conf,
		db:   db,
		out:  os.Stdout,
		svc: di.NewContainer(di.Options{
			Conf:   conf,
			DB:     db,
			Logger: logger,
			Email:  emailsvc.NewEmailService(conf, logger),
		}),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		logger.Close()
		os.Exit(1)
	}
}

// strictTemplates fails template execution on missing keys while developing or testing;
// production renders them empty.
func strictTemplates(conf *core.Config) bool {
	return conf.Debug || conf.TestMode
}
