package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/obeworks/kurikulum/apps/di"
	"github.com/obeworks/kurikulum/core"
)

// actor recorded in the audit log for changes made from the CLI
const cliActor = "admin-cli"

var errHelp = errors.New("help provided")

type commandLine struct {
	conf *core.Config
	db   *sqlx.DB
	svc  *di.Container
	out  io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                                   - run a goose command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  adduser -name NAME -email EMAIL [-roles r1,r2]           - create a user, or update the roles of an existing one")
	fmt.Fprintln(cli.out, "  import-cpl -curriculum ID -file FILE                     - create the CPL listed in a YAML catalogue")
	fmt.Fprintln(cli.out, "  validate-weights -rps ID                                 - check the assessment template weights of an RPS")
	fmt.Fprintln(cli.out, "  recalculate -class ID                                    - recompute the final grades of a class")
	fmt.Fprintln(cli.out, "  report -enrollment ID [-type ASSESSMENT_TYPE_ID]         - print the outcome report of an enrollment")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserRoles := addUserCmd.String("roles", "", "Comma separated roles (admin, quality, programhead, lecturer, student).")

	importCmd := flag.NewFlagSet("import-cpl", flag.ContinueOnError)
	importCurriculum := importCmd.String("curriculum", "", "The curriculum the CPL belong to.")
	importFile := importCmd.String("file", "", "Path of the YAML catalogue.")

	weightsCmd := flag.NewFlagSet("validate-weights", flag.ContinueOnError)
	weightsRPS := weightsCmd.String("rps", "", "The RPS id.")

	recalcCmd := flag.NewFlagSet("recalculate", flag.ContinueOnError)
	recalcClass := recalcCmd.String("class", "", "The class id.")

	reportCmd := flag.NewFlagSet("report", flag.ContinueOnError)
	reportEnrollment := reportCmd.String("enrollment", "", "The enrollment id.")
	reportType := reportCmd.String("type", "", "Assessment type whose threshold decides CPL attainment.")

	for _, fs := range []*flag.FlagSet{addUserCmd, importCmd, weightsCmd, recalcCmd, reportCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserName == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserEmail, splitList(*addUserRoles))
	case "import-cpl":
		if err := importCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importCurriculum == "" || *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importCPL(*importCurriculum, *importFile)
	case "validate-weights":
		if err := weightsCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *weightsRPS == "" {
			weightsCmd.Usage()
			return errHelp
		}
		return cli.validateWeights(*weightsRPS)
	case "recalculate":
		if err := recalcCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *recalcClass == "" {
			recalcCmd.Usage()
			return errHelp
		}
		return cli.recalculate(*recalcClass)
	case "report":
		if err := reportCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *reportEnrollment == "" {
			reportCmd.Usage()
			return errHelp
		}
		return cli.report(*reportEnrollment, *reportType)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) printJSON(v interface{}) error {
	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func splitList(s string) []string {
	var res []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			res = append(res, item)
		}
	}
	return res
}
