package list

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

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"List your datasets, latest first.",
		struct{}{},
		flarc.Args{},
		common.NewTask(Task()),
	)
}

func Task() common.Task[struct{}] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		store *session.Store,
		client rest.ChemvizClient,
		cl flarc.Commandline[struct{}],
		params []any,
	) error {
		if _, err := common.RequireLogin(store); err != nil {
			return err
		}
		ds, err := registry.New(store, client, logger).Refresh(ctx)
		if err != nil {
			return err
		}
		return render.DatasetList(cl.Stdout(), ds)
	}
}
