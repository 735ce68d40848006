// Package view is the state machine of what the user is looking at:
// nothing, the analysis (charts) of a dataset, or the table of a dataset.
package view

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/opst/chemviz/cmd/chemviz/notice"
	"github.com/opst/chemviz/cmd/chemviz/registry"
	apidatasets "github.com/opst/chemviz/pkg/api/types/datasets"
)

// ErrInvalidTransition is returned when closing a view which is not open.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrNoChart is returned when the chart region of the dataset is not rendered.
var ErrNoChart = errors.New("chart region is not rendered")

type Kind int

const (
	Idle Kind = iota
	Analyzing
	ViewingTable
)

func (k Kind) String() string {
	switch k {
	case Idle:
		return "Idle"
	case Analyzing:
		return "Analyzing"
	case ViewingTable:
		return "ViewingTable"
	default:
		return fmt.Sprintf("unknown view (%d)", int(k))
	}
}

// State is the active view and its dataset id. DatasetId is 0 when Idle.
type State struct {
	Kind      Kind
	DatasetId int
}

func (s State) String() string {
	if s.Kind == Idle {
		return s.Kind.String()
	}
	return fmt.Sprintf("%s(%d)", s.Kind, s.DatasetId)
}

// ChartRenderer rasterizes the chart region of a dataset as PNG.
type ChartRenderer func(apidatasets.Dataset) ([]byte, error)

type Controller struct {
	registry *registry.Registry
	notices  *notice.Board
	render   ChartRenderer
	logger   *log.Logger

	m       sync.Mutex
	state   State
	dataset apidatasets.Dataset
	chart   []byte
}

func New(reg *registry.Registry, notices *notice.Board, render ChartRenderer, logger *log.Logger) *Controller {
	return &Controller{registry: reg, notices: notices, render: render, logger: logger}
}

func (c *Controller) State() State {
	c.m.Lock()
	defer c.m.Unlock()
	return c.state
}

// Dataset returns the dataset of the active view.
func (c *Controller) Dataset() (apidatasets.Dataset, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	if c.state.Kind == Idle {
		return apidatasets.Dataset{}, false
	}
	return c.dataset, true
}

func (c *Controller) resolve(ctx context.Context, id int, failure string) (apidatasets.Dataset, error) {
	d, err := c.registry.Resolve(ctx, id)
	if err == nil {
		return d, nil
	}
	if errors.Is(err, registry.ErrDatasetNotFound) {
		c.notices.Error("dataset not found")
	} else {
		c.notices.Error(failure + err.Error())
	}
	return apidatasets.Dataset{}, err
}

// SelectForAnalysis opens the analysis of the dataset, closing the table if open.
//
// The dataset is resolved from the backend. On failure, the state is unchanged
// and an error notice is posted.
func (c *Controller) SelectForAnalysis(ctx context.Context, id int) error {
	d, err := c.resolve(ctx, id, "Error loading analysis: ")
	if err != nil {
		return err
	}

	var chart []byte
	if c.render != nil {
		png, err := c.render(d)
		if err != nil {
			c.logger.Printf("cannot render charts of dataset %d: %s", id, err)
		} else {
			chart = png
		}
	}

	c.m.Lock()
	defer c.m.Unlock()
	c.state = State{Kind: Analyzing, DatasetId: id}
	c.dataset = d
	c.chart = chart
	return nil
}

// SelectForTable opens the table of the dataset, closing the analysis if open.
//
// The dataset is resolved from the backend. On failure, the state is unchanged
// and an error notice is posted.
func (c *Controller) SelectForTable(ctx context.Context, id int) error {
	d, err := c.resolve(ctx, id, "Error loading table data: ")
	if err != nil {
		return err
	}

	c.m.Lock()
	defer c.m.Unlock()
	c.state = State{Kind: ViewingTable, DatasetId: id}
	c.dataset = d
	c.chart = nil
	return nil
}

func (c *Controller) close(from Kind) error {
	c.m.Lock()
	defer c.m.Unlock()
	if c.state.Kind != from {
		return fmt.Errorf("%w: close %s in %s", ErrInvalidTransition, from, c.state)
	}
	c.state = State{Kind: Idle}
	c.dataset = apidatasets.Dataset{}
	c.chart = nil
	return nil
}

// CloseAnalysis goes back to Idle. It is valid only in Analyzing.
func (c *Controller) CloseAnalysis() error {
	return c.close(Analyzing)
}

// CloseTable goes back to Idle. It is valid only in ViewingTable.
func (c *Controller) CloseTable() error {
	return c.close(ViewingTable)
}

// Reset goes back to Idle from any state. Use this on logout.
func (c *Controller) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.state = State{Kind: Idle}
	c.dataset = apidatasets.Dataset{}
	c.chart = nil
}

// ChartRegion returns the PNG of the charts shown in the analysis of the dataset.
//
// It fails with ErrNoChart unless the analysis of the dataset is open and its charts are rendered.
func (c *Controller) ChartRegion(id int) ([]byte, error) {
	c.m.Lock()
	defer c.m.Unlock()
	if c.state.Kind != Analyzing || c.state.DatasetId != id {
		return nil, fmt.Errorf("%w: analysis of dataset %d is not open", ErrNoChart, id)
	}
	if len(c.chart) == 0 {
		return nil, fmt.Errorf("%w: dataset %d", ErrNoChart, id)
	}
	return c.chart, nil
}
