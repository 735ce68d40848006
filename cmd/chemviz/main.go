package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"

	subauth "github.com/opst/chemviz/cmd/chemviz/subcommands/auth"
	"github.com/opst/chemviz/cmd/chemviz/subcommands/common"
	subdash "github.com/opst/chemviz/cmd/chemviz/subcommands/dashboard"
	subdataset "github.com/opst/chemviz/cmd/chemviz/subcommands/dataset"
	subinit "github.com/opst/chemviz/cmd/chemviz/subcommands/init"
	"github.com/opst/chemviz/cmd/chemviz/subcommands/logger"
	subsummary "github.com/opst/chemviz/cmd/chemviz/subcommands/summary"
	subver "github.com/opst/chemviz/cmd/chemviz/subcommands/version"
	"github.com/opst/chemviz/pkg/utils/try"
	"github.com/youta-t/flarc"
)

func main() {
	name := path.Base(os.Args[0])
	logger := logger.Default()
	logger.SetPrefix(fmt.Sprintf("[%s] ", name))

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt,
	)
	defer cancel()

	cf := try.To(common.Flags(".")).OrFatal(logger)
	init := try.To(subinit.New()).OrFatal(logger)
	login := try.To(subauth.NewLogin()).OrFatal(logger)
	register := try.To(subauth.NewRegister()).OrFatal(logger)
	logout := try.To(subauth.NewLogout()).OrFatal(logger)
	whoami := try.To(subauth.NewWhoami()).OrFatal(logger)
	dataset := try.To(subdataset.New()).OrFatal(logger)
	summary := try.To(subsummary.New()).OrFatal(logger)
	dashboard := try.To(subdash.New()).OrFatal(logger)
	version := try.To(subver.New()).OrFatal(logger)

	chemviz := try.To(
		flarc.NewCommandGroup(
			"Chemical Visualizer commandline interface",
			cf,
			flarc.WithSubcommand("init", init),
			flarc.WithSubcommand("login", login),
			flarc.WithSubcommand("register", register),
			flarc.WithSubcommand("logout", logout),
			flarc.WithSubcommand("whoami", whoami),
			flarc.WithSubcommand("dataset", dataset),
			flarc.WithSubcommand("summary", summary),
			flarc.WithSubcommand("dashboard", dashboard),
			flarc.WithSubcommand("version", version),
		),
	).OrFatal(logger)

	os.Exit(flarc.Run(ctx, chemviz, flarc.WithHelp(true)))
}
