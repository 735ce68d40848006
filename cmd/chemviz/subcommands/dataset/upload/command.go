package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	pb "github.com/cheggaaa/pb/v3"
	cerr "github.com/opst/chemviz/cmd/chemviz/errors"
	"github.com/opst/chemviz/cmd/chemviz/registry"
	"github.com/opst/chemviz/cmd/chemviz/rest"
	"github.com/opst/chemviz/cmd/chemviz/session"
	"github.com/opst/chemviz/cmd/chemviz/subcommands/common"
	apidatasets "github.com/opst/chemviz/pkg/api/types/datasets"
	"github.com/youta-t/flarc"
)

const ARG_SOURCE = "FILE"

type Option struct {
	progressOut io.Writer
	interval    time.Duration
}

// WithProgressOut sets where the progress bar is drawn. Default is stderr.
func WithProgressOut(w io.Writer) func(*Option) *Option {
	return func(o *Option) *Option {
		o.progressOut = w
		return o
	}
}

func New(options ...func(*Option) *Option) (flarc.Command, error) {
	option := &Option{progressOut: os.Stderr, interval: time.Second}
	for _, o := range options {
		option = o(option)
	}

	return flarc.NewCommand(
		"Upload equipment CSV files.",
		struct{}{},
		flarc.Args{
			{
				Name: ARG_SOURCE, Required: true, Repeatable: true,
				Help: `CSV file(s) to be uploaded. Their names should end with ".csv".`,
			},
		},
		common.NewTask(Task(option.progressOut, option.interval)),
		flarc.WithDescription(`
Upload CSV files, one by one.

Each CSV should have columns "Equipment Name", "Type", "Flowrate", "Pressure" and "Temperature".
The backend computes statistics of each file, and they are printed as JSON.

The backend keeps only a few latest datasets. Older ones are dropped on upload.
`),
	)
}

func Task(progressOut io.Writer, interval time.Duration) common.Task[struct{}] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		store *session.Store,
		client rest.ChemvizClient,
		cl flarc.Commandline[struct{}],
		params []any,
	) error {
		sources := cl.Args()[ARG_SOURCE]
		for _, s := range sources {
			if err := registry.ValidateUpload(s); err != nil {
				return fmt.Errorf("%w: %w", flarc.ErrUsage, err)
			}
		}
		if _, err := common.RequireLogin(store); err != nil {
			return err
		}

		reg := registry.New(store, client, logger)
		total := len(sources)
		for n, s := range sources {
			logger.Printf("[[%d/%d]] sending... %s", n+1, total, s)
			result, err := reg.Upload(ctx, s, func(prog rest.Progress[*apidatasets.UploadResult]) {
				showProgress(progressOut, interval, prog)
			})
			var reload *registry.RefreshError
			if errors.As(err, &reload) {
				logger.Printf("[[%d/%d]] uploaded, but datasets are not reloaded: %s", n+1, total, reload.Err)
			} else if err != nil {
				logger.Printf("[[%d/%d]] upload failed: %s", n+1, total, cerr.VerboseOf(err))
				return err
			}

			buf, err := json.MarshalIndent(result, "", "    ")
			if err != nil {
				return err
			}
			logger.Printf("[[%d/%d]] [OK] done: %s", n+1, total, s)
			cl.Stdout().Write(buf)
			fmt.Fprintln(cl.Stdout())
		}
		return nil
	}
}

// showProgress draws a progress bar until the file is sent.
func showProgress[T any](w io.Writer, interval time.Duration, prog rest.Progress[T]) {
	bar := pb.New64(prog.EstimatedTotalSize())
	bar.Set(pb.Bytes, true)
	bar.SetWriter(w)
	bar.Start()
	defer bar.Finish()

	for {
		select {
		case <-time.After(interval):
			bar.SetTotal(prog.EstimatedTotalSize())
			bar.SetCurrent(prog.ProgressedSize())
			continue
		case <-prog.Sent():
		case <-prog.Done():
		}
		break
	}
	bar.SetTotal(prog.EstimatedTotalSize())
	bar.SetCurrent(prog.ProgressedSize())
}
