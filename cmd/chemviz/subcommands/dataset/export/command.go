package export

import (
	"context"
	"fmt"
	"log"

	"github.com/opst/chemviz/cmd/chemviz/registry"
	"github.com/opst/chemviz/cmd/chemviz/render"
	"github.com/opst/chemviz/cmd/chemviz/report"
	"github.com/opst/chemviz/cmd/chemviz/rest"
	"github.com/opst/chemviz/cmd/chemviz/session"
	"github.com/opst/chemviz/cmd/chemviz/subcommands/common"
	"github.com/opst/chemviz/cmd/chemviz/view"
	"github.com/youta-t/flarc"
)

const ARG_DATASET_ID = "DATASET_ID"

type Flags struct {
	Out    string `flag:"out" alias:"o" metavar:"DIR" help:"directory where the report is saved."`
	Charts bool   `flag:"charts" help:"include charts into the report. --charts=false to omit."`
	Server bool   `flag:"server" help:"download the report rendered by the backend. --charts is ignored."`
}

type Option struct {
	render view.ChartRenderer
}

func WithRenderer(r view.ChartRenderer) func(*Option) *Option {
	return func(o *Option) *Option {
		o.render = r
		return o
	}
}

func New(options ...func(*Option) *Option) (flarc.Command, error) {
	option := &Option{render: render.ChartRegion}
	for _, o := range options {
		option = o(option)
	}

	return flarc.NewCommand(
		"Export the PDF report of the dataset.",
		Flags{Out: ".", Charts: true},
		flarc.Args{
			{Name: ARG_DATASET_ID, Required: true, Help: "Id of the dataset to be reported."},
		},
		common.NewTask(Task(option.render)),
		flarc.WithDescription(`
Write "dataset-<id>-report.pdf" into the directory given by --out.

The report has summary statistics, the equipment type distribution and charts.
With --server, the report rendered by the backend is saved instead.
`),
	)
}

func Task(renderer view.ChartRenderer) common.Task[Flags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		store *session.Store,
		client rest.ChemvizClient,
		cl flarc.Commandline[Flags],
		params []any,
	) error {
		id, err := common.DatasetId(cl, ARG_DATASET_ID)
		if err != nil {
			return err
		}
		if _, err := common.RequireLogin(store); err != nil {
			return err
		}

		flags := cl.Flags()
		board := common.NoticeBoard(cl.Stderr())
		reg := registry.New(store, client, logger)
		views := view.New(reg, board, renderer, logger)
		exporter := report.NewExporter(reg, views, store, board, logger)

		var path string
		switch {
		case flags.Server:
			path, err = exporter.Download(ctx, reg, id, flags.Out)
		case flags.Charts:
			if err := views.SelectForAnalysis(ctx, id); err != nil {
				return err
			}
			path, err = exporter.Export(id, flags.Out)
		default:
			if _, err := reg.Refresh(ctx); err != nil {
				return err
			}
			path, err = exporter.Export(id, flags.Out)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cl.Stdout(), path)
		return nil
	}
}
