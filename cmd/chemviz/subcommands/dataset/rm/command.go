package rm

import (
	"context"
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
		"Delete the dataset.",
		struct{}{},
		flarc.Args{
			{Name: ARG_DATASET_ID, Required: true, Help: "Id of the dataset to be deleted."},
		},
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
		id, err := common.DatasetId(cl, ARG_DATASET_ID)
		if err != nil {
			return err
		}
		if _, err := common.RequireLogin(store); err != nil {
			return err
		}
		if err := registry.New(store, client, logger).Delete(ctx, id); err != nil {
			return err
		}
		logger.Printf("deleted dataset id:%d", id)
		return nil
	}
}
