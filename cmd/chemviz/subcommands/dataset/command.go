package dataset

import (
	dataset_analyze "github.com/opst/chemviz/cmd/chemviz/subcommands/dataset/analyze"
	dataset_export "github.com/opst/chemviz/cmd/chemviz/subcommands/dataset/export"
	dataset_history "github.com/opst/chemviz/cmd/chemviz/subcommands/dataset/history"
	dataset_list "github.com/opst/chemviz/cmd/chemviz/subcommands/dataset/list"
	dataset_rm "github.com/opst/chemviz/cmd/chemviz/subcommands/dataset/rm"
	dataset_show "github.com/opst/chemviz/cmd/chemviz/subcommands/dataset/show"
	dataset_table "github.com/opst/chemviz/cmd/chemviz/subcommands/dataset/table"
	dataset_upload "github.com/opst/chemviz/cmd/chemviz/subcommands/dataset/upload"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	list, err := dataset_list.New()
	if err != nil {
		return nil, err
	}
	history, err := dataset_history.New()
	if err != nil {
		return nil, err
	}
	upload, err := dataset_upload.New()
	if err != nil {
		return nil, err
	}
	show, err := dataset_show.New()
	if err != nil {
		return nil, err
	}
	analyze, err := dataset_analyze.New()
	if err != nil {
		return nil, err
	}
	table, err := dataset_table.New()
	if err != nil {
		return nil, err
	}
	export, err := dataset_export.New()
	if err != nil {
		return nil, err
	}
	rm, err := dataset_rm.New()
	if err != nil {
		return nil, err
	}

	return flarc.NewCommandGroup(
		"Manipulate datasets: equipment CSV files and their statistics.",
		struct{}{},
		flarc.WithSubcommand("list", list),
		flarc.WithSubcommand("history", history),
		flarc.WithSubcommand("upload", upload),
		flarc.WithSubcommand("show", show),
		flarc.WithSubcommand("analyze", analyze),
		flarc.WithSubcommand("table", table),
		flarc.WithSubcommand("export", export),
		flarc.WithSubcommand("rm", rm),
	)
}
