package show

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/opst/chemviz/cmd/chemviz/registry"
	"github.com/opst/chemviz/cmd/chemviz/rest"
	"github.com/opst/chemviz/cmd/chemviz/session"
	"github.com/opst/chemviz/cmd/chemviz/subcommands/common"
	"github.com/youta-t/flarc"
)

const ARG_DATASET_ID = "DATASET_ID"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Show the dataset as JSON.",
		struct{}{},
		flarc.Args{
			{Name: ARG_DATASET_ID, Required: true, Help: "Id of the dataset to be shown."},
		},
		common.NewTask(Task()),
		flarc.WithDescription(`
Fetch the dataset from the backend and print it as JSON.

The output has statistics and the equipment type distribution of the dataset.
`),
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
		id, err := common.DatasetId(cl, ARG_DATASET_ID)
		if err != nil {
			return err
		}
		if _, err := common.RequireLogin(store); err != nil {
			return err
		}

		d, err := registry.New(store, client, logger).Detail(ctx, id)
		if err != nil {
			return err
		}
		buf, err := json.MarshalIndent(d, "", "    ")
		if err != nil {
			return err
		}
		cl.Stdout().Write(buf)
		fmt.Fprintln(cl.Stdout())
		return nil
	}
}
