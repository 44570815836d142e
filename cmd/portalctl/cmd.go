package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"portal/internal/account"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

// Registrar creates administrator accounts.
type Registrar interface {
	CreateByAdmin(ctx context.Context, in account.RegisterInput) (account.Registration, error)
}

type commandLine struct {
	out  io.Writer
	open func(ctx context.Context) (Registrar, func(), error)
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  create-admin -email EMAIL -name NAME [-phone PHONE] [-password PASSWORD] - create an active administrator")
	fmt.Fprintln(cli.out, "  version - print the build version")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createAdminCmd := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	createAdminCmd.SetOutput(cli.out)
	email := createAdminCmd.String("email", "", "The administrator's email.")
	name := createAdminCmd.String("name", "", "The administrator's full name.")
	phone := createAdminCmd.String("phone", "", "Optional phone number.")
	password := createAdminCmd.String("password", "", "The password. Prompted when omitted.")

	switch args[1] {
	case "create-admin":
		if err := createAdminCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *email == "" || *name == "" {
			createAdminCmd.Usage()
			return errHelp
		}
		pwd := *password
		if pwd == "" {
			fmt.Fprint(cli.out, "Enter password:")
			b, err := readPasswordFunc(int(syscall.Stdin))
			fmt.Fprintln(cli.out)
			if err != nil {
				return err
			}
			pwd = string(b)
		}
		if pwd == "" {
			createAdminCmd.Usage()
			return errHelp
		}
		return cli.createAdmin(*email, *name, *phone, pwd)
	case "version":
		fmt.Fprintln(cli.out, version)
		return nil
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) createAdmin(email, name, phone, pwd string) error {
	ctx := context.Background()
	reg, closeFn, err := cli.open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	res, err := reg.CreateByAdmin(ctx, account.RegisterInput{
		Email:    email,
		Password: pwd,
		Name:     name,
		Phone:    phone,
		Role:     string(account.RoleAdmin),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "created administrator %s (%s)\naccess code: %s\n", res.Profile.Name, res.Profile.UID, res.AccessCode)
	return nil
}
