package main

import (
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/ushauri/core/studyplan"
	"github.com/trezcool/ushauri/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	usrRepo user.Repository
	planSvc *studyplan.Service
	openDB  func() (*sqlx.DB, error) // postgres only, for migrations
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  adduser -username USERNAME -email EMAIL [-name NAME] [-admin] - create or update an active user")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS...] - run a goose command on the postgres database")
	fmt.Fprintln(cli.out, "  regenerate [-workers N] [-notify] - regenerate the plan of every scheduled student")
	fmt.Fprintln(cli.out, "  plan -student ID [-anchor YYYY-MM-DD] [-days N] - print a plan without saving it")
}

// promptPassword reads a password from the terminal; an empty one prints the usage of `cmd`.
func (cli *commandLine) promptPassword(cmd *flag.FlagSet) (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	if len(pwd) == 0 {
		cmd.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username. The password will be prompted next.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant every role to the user.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	regenerateCmd := flag.NewFlagSet("regenerate", flag.ContinueOnError)
	regenerateWorkers := regenerateCmd.Int("workers", 0, "Number of concurrent runs (defaults to the configured planner workers).")
	regenerateNotify := regenerateCmd.Bool("notify", false, "Email every student their new plan.")

	planCmd := flag.NewFlagSet("plan", flag.ContinueOnError)
	planStudent := planCmd.String("student", "", "The student's ID.")
	planAnchor := planCmd.String("anchor", "", "First day of the plan, YYYY-MM-DD (defaults to this week's Monday).")
	planDays := planCmd.Int("days", 0, "Number of days to plan (defaults to the configured horizon).")

	for _, cmd := range []*flag.FlagSet{addUserCmd, resetPasswordCmd, regenerateCmd, planCmd} {
		cmd.SetOutput(cli.out)
	}

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(addUserCmd)
		if err != nil {
			return err
		}
		return cli.addUser(*addUserName, *addUserUname, *addUserEmail, pwd, *addUserAdmin)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(resetPasswordCmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "regenerate":
		if err := regenerateCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.regenerate(*regenerateWorkers, *regenerateNotify)

	case "plan":
		if err := planCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *planStudent == "" || *planDays < 0 {
			planCmd.Usage()
			return errHelp
		}
		return cli.plan(*planStudent, *planAnchor, *planDays)

	default:
		cli.printUsage()
		return errHelp
	}
}
