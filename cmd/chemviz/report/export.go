package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/opst/chemviz/cmd/chemviz/notice"
	"github.com/opst/chemviz/cmd/chemviz/session"
	apidatasets "github.com/opst/chemviz/pkg/api/types/datasets"
)

var ErrDatasetNotFound = errors.New("dataset not found")

// Datasets looks up datasets already fetched.
type Datasets interface {
	Find(id int) (apidatasets.Dataset, bool)
}

// Charts provides the chart region of the dataset if its analysis is open.
type Charts interface {
	ChartRegion(id int) ([]byte, error)
}

// Identities tells who is logged in.
type Identities interface {
	Current() (session.Identity, bool)
}

// Reports provides reports rendered by the backend.
type Reports interface {
	Report(ctx context.Context, id int, w io.Writer) error
}

type Exporter struct {
	datasets   Datasets
	charts     Charts
	identities Identities
	notices    *notice.Board
	logger     *log.Logger
}

func NewExporter(datasets Datasets, charts Charts, identities Identities, notices *notice.Board, logger *log.Logger) *Exporter {
	return &Exporter{
		datasets:   datasets,
		charts:     charts,
		identities: identities,
		notices:    notices,
		logger:     logger,
	}
}

// Export writes the report of the dataset into dir, and returns the path of the file.
//
// Progress and result are posted as notices.
// Charts are included only when the analysis of the dataset is open.
func (e *Exporter) Export(id int, dir string) (string, error) {
	e.notices.Info("Generating PDF...")

	path, err := e.export(id, dir)
	if err != nil {
		e.notices.Error("Error exporting PDF: " + err.Error())
		return "", err
	}
	e.notices.Success("PDF exported successfully!")
	return path, nil
}

func (e *Exporter) export(id int, dir string) (string, error) {
	d, ok := e.datasets.Find(id)
	if !ok {
		return "", fmt.Errorf("%w: id = %d", ErrDatasetNotFound, id)
	}

	in := Input{Dataset: d}
	if who, ok := e.identities.Current(); ok {
		in.Username = who.Username
	}
	if chart, err := e.charts.ChartRegion(id); err == nil {
		in.Chart = chart
	} else {
		e.logger.Printf("report without charts: %s", err)
	}

	pdf, err := Build(in, WithLogger(e.logger))
	if err != nil {
		return "", err
	}

	return save(filepath.Join(dir, FileName(id)), pdf.Output)
}

// Download saves the report rendered by the backend into dir, and returns the path of the file.
//
// Notices are posted as Export does.
func (e *Exporter) Download(ctx context.Context, reports Reports, id int, dir string) (string, error) {
	e.notices.Info("Generating PDF...")

	path, err := save(filepath.Join(dir, FileName(id)), func(w io.Writer) error {
		return reports.Report(ctx, id, w)
	})
	if err != nil {
		e.notices.Error("Error exporting PDF: " + err.Error())
		return "", err
	}
	e.notices.Success("PDF exported successfully!")
	return path, nil
}

// save writes a file with write. The file is removed if write fails.
func save(path string, write func(io.Writer) error) (string, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return "", err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}
