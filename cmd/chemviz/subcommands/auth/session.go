package auth

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/opst/chemviz/cmd/chemviz/rest"
	"github.com/opst/chemviz/cmd/chemviz/session"
	"github.com/opst/chemviz/cmd/chemviz/subcommands/common"
	"github.com/youta-t/flarc"
)

func NewLogout() (flarc.Command, error) {
	return flarc.NewCommand(
		"Discard the saved credential.",
		struct{}{},
		flarc.Args{},
		common.NewTask(LogoutTask()),
	)
}

func LogoutTask() common.Task[struct{}] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		store *session.Store,
		client rest.ChemvizClient,
		cl flarc.Commandline[struct{}],
		params []any,
	) error {
		store.Logout()
		fmt.Fprintln(cl.Stdout(), "Logged out successfully")
		return nil
	}
}

type WhoamiFlags struct {
	Verify bool `flag:"verify" help:"ask the backend whether the credential is still valid. If not, it is discarded."`
}

func NewWhoami() (flarc.Command, error) {
	return flarc.NewCommand(
		"Show who you are logged in as.",
		WhoamiFlags{},
		flarc.Args{},
		common.NewTask(WhoamiTask()),
	)
}

func WhoamiTask() common.Task[WhoamiFlags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		store *session.Store,
		client rest.ChemvizClient,
		cl flarc.Commandline[WhoamiFlags],
		params []any,
	) error {
		who, err := common.RequireLogin(store)
		if err != nil {
			return err
		}
		if cl.Flags().Verify {
			if err := store.Verify(ctx); err != nil {
				logger.Printf("credential is discarded: %s", err)
				return err
			}
		}

		fmt.Fprintln(cl.Stdout(), who.Username)
		if exp, ok := who.ExpiresAt(); ok {
			fmt.Fprintf(cl.Stdout(), "expires at: %s\n", exp.Local().Format(time.RFC3339))
		}
		return nil
	}
}
