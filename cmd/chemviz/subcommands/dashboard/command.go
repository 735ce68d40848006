package dashboard

import (
	"context"
	"errors"
	"log"

	"github.com/opst/chemviz/cmd/chemviz/dashboard"
	"github.com/opst/chemviz/cmd/chemviz/rest"
	"github.com/opst/chemviz/cmd/chemviz/session"
	"github.com/opst/chemviz/cmd/chemviz/subcommands/common"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Out string `flag:"out" alias:"o" metavar:"DIR" help:"directory where reports are saved."`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Start the interactive dashboard.",
		Flags{Out: "."},
		flarc.Args{},
		common.NewTask(Task()),
		flarc.WithDescription(`
Start an interactive console to log in, upload and analyze datasets,
and export reports. Type "help" in the console for commands.
`),
	)
}

func Task(options ...dashboard.Option) common.Task[Flags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		store *session.Store,
		client rest.ChemvizClient,
		cl flarc.Commandline[Flags],
		params []any,
	) error {
		opts := append([]dashboard.Option{dashboard.WithExportDir(cl.Flags().Out)}, options...)
		d := dashboard.New(store, client, cl.Stdout(), logger, opts...)
		if err := d.Run(ctx, cl.Stdin()); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}
