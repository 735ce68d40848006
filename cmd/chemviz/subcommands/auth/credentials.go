// Package auth has commands for the identity: login, register, logout and whoami.
package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/opst/chemviz/cmd/chemviz/authflow"
	"github.com/opst/chemviz/cmd/chemviz/rest"
	"github.com/opst/chemviz/cmd/chemviz/session"
	"github.com/opst/chemviz/cmd/chemviz/subcommands/common"
	"github.com/youta-t/flarc"
)

const ARG_USERNAME = "USERNAME"

type Flags struct {
	Password string `flag:"password" alias:"p" metavar:"PASSWORD" help:"password. If not given, it is read from the first line of stdin."`
}

func usernameArg() flarc.Args {
	return flarc.Args{
		{Name: ARG_USERNAME, Required: true, Help: "name of the user"},
	}
}

// password returns the flag, or the first line of stdin.
func password(cl flarc.Commandline[Flags]) (string, error) {
	if p := cl.Flags().Password; p != "" {
		return p, nil
	}
	fmt.Fprint(cl.Stderr(), "Password: ")
	line, err := bufio.NewReader(cl.Stdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// submitTask fills the form with the commandline and submits it.
func submitTask(form authflow.Form) common.Task[Flags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		store *session.Store,
		client rest.ChemvizClient,
		cl flarc.Commandline[Flags],
		params []any,
	) error {
		pw, err := password(cl)
		if err != nil {
			return err
		}

		flow := authflow.New(store, client, common.NoticeBoard(cl.Stdout()))
		if err := flow.Show(form); err != nil {
			return err
		}
		if err := flow.Fill(cl.Args()[ARG_USERNAME][0], pw); err != nil {
			return err
		}
		return flow.Submit(ctx)
	}
}

func NewLogin() (flarc.Command, error) {
	return flarc.NewCommand(
		"Log in to the backend.",
		Flags{},
		usernameArg(),
		common.NewTask(LoginTask()),
		flarc.WithDescription(`
Log in as USERNAME, and save the credential into the session file.

Commands run later use the credential, until "logout" or it is rejected by the backend.
`),
	)
}

func LoginTask() common.Task[Flags] {
	return submitTask(authflow.Login)
}

func NewRegister() (flarc.Command, error) {
	return flarc.NewCommand(
		"Create a new account on the backend.",
		Flags{},
		usernameArg(),
		common.NewTask(RegisterTask()),
		flarc.WithDescription(`
Create a new account named USERNAME.

This does not log in. Run "login" after that.
`),
	)
}

func RegisterTask() common.Task[Flags] {
	return submitTask(authflow.Register)
}
