package history

import (
	"context"
	"log"

	"github.com/opst/chemviz/cmd/chemviz/registry"
	"github.com/opst/chemviz/cmd/chemviz/render"
	"github.com/opst/chemviz/cmd/chemviz/rest"
	"github.com/opst/chemviz/cmd/chemviz/session"
	"github.com/opst/chemviz/cmd/chemviz/subcommands/common"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Count int `flag:"count" alias:"n" metavar:"N" help:"number of uploads to be shown."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Show the latest uploads.",
		Flags{Count: registry.HistorySize},
		flarc.Args{},
		common.NewTask(Task()),
	)
}

func Task() common.Task[Flags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		store *session.Store,
		client rest.ChemvizClient,
		cl flarc.Commandline[Flags],
		params []any,
	) error {
		if _, err := common.RequireLogin(store); err != nil {
			return err
		}
		reg := registry.New(store, client, logger)
		if _, err := reg.Refresh(ctx); err != nil {
			return err
		}
		return render.History(cl.Stdout(), reg.History(cl.Flags().Count))
	}
}
