package analyze

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/opst/chemviz/cmd/chemviz/registry"
	"github.com/opst/chemviz/cmd/chemviz/render"
	"github.com/opst/chemviz/cmd/chemviz/rest"
	"github.com/opst/chemviz/cmd/chemviz/session"
	"github.com/opst/chemviz/cmd/chemviz/subcommands/common"
	"github.com/opst/chemviz/cmd/chemviz/view"
	"github.com/youta-t/flarc"
)

const ARG_DATASET_ID = "DATASET_ID"

type Flags struct {
	Out    string `flag:"out" alias:"o" metavar:"DIR" help:"directory where the chart image is saved."`
	Charts bool   `flag:"charts" help:"save charts as dataset-<id>-charts.png. --charts=false to skip."`
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

// ChartFileName is the name of the chart image of the dataset.
func ChartFileName(id int) string {
	return fmt.Sprintf("dataset-%d-charts.png", id)
}

func New(options ...func(*Option) *Option) (flarc.Command, error) {
	option := &Option{render: render.ChartRegion}
	for _, o := range options {
		option = o(option)
	}

	return flarc.NewCommand(
		"Show analysis of the dataset, and save its charts.",
		Flags{Out: ".", Charts: true},
		flarc.Args{
			{Name: ARG_DATASET_ID, Required: true, Help: "Id of the dataset to be analyzed."},
		},
		common.NewTask(Task(option.render)),
		flarc.WithDescription(`
Show statistics and equipment type breakdown of the dataset.

Charts (equipment distribution and average parameters) are saved as a PNG
named "dataset-<id>-charts.png" in the directory given by --out.
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

		board := common.NoticeBoard(cl.Stderr())
		views := view.New(registry.New(store, client, logger), board, renderer, logger)
		if err := views.SelectForAnalysis(ctx, id); err != nil {
			return err
		}

		d, _ := views.Dataset()
		if err := render.Analysis(cl.Stdout(), d); err != nil {
			return err
		}

		flags := cl.Flags()
		if !flags.Charts {
			return nil
		}
		chart, err := views.ChartRegion(id)
		if err != nil {
			logger.Printf("charts are not saved: %s", err)
			return nil
		}
		dest := filepath.Join(flags.Out, ChartFileName(id))
		if err := os.WriteFile(dest, chart, 0644); err != nil {
			return err
		}
		logger.Printf("charts are saved: %s", dest)
		return nil
	}
}
