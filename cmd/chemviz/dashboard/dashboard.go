// Package dashboard is the interactive console of chemviz.
//
// It reads one command per line and applies it to the session, datasets and
// views, printing tables and notices as they come.
package dashboard

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/opst/chemviz/cmd/chemviz/authflow"
	cerr "github.com/opst/chemviz/cmd/chemviz/errors"
	"github.com/opst/chemviz/cmd/chemviz/notice"
	"github.com/opst/chemviz/cmd/chemviz/registry"
	"github.com/opst/chemviz/cmd/chemviz/render"
	"github.com/opst/chemviz/cmd/chemviz/report"
	"github.com/opst/chemviz/cmd/chemviz/rest"
	"github.com/opst/chemviz/cmd/chemviz/session"
	"github.com/opst/chemviz/cmd/chemviz/view"
	apierr "github.com/opst/chemviz/pkg/api/types/errors"
)

const Prompt = "chemviz> "

const usage = `commands:
  login USERNAME PASSWORD      log in
  register USERNAME PASSWORD   create an account
  logout
  whoami
  list                         list datasets
  history                      latest uploads
  upload FILE                  upload a CSV file
  analyze ID                   open the analysis of a dataset
  table ID                     open the data table of a dataset
  close analysis|table
  state                        show which view is open
  export ID                    export the PDF report of a dataset
  rm ID                        delete a dataset
  summary                      statistics over all datasets
  help
  quit`

type Dashboard struct {
	session  *session.Store
	auth     *authflow.Flow
	registry *registry.Registry
	views    *view.Controller
	exporter *report.Exporter
	notices  *notice.Board
	logger   *log.Logger

	exportDir string
	prompt    bool

	outm sync.Mutex
	out  io.Writer

	uploads sync.WaitGroup
}

type options struct {
	exportDir string
	renderer  view.ChartRenderer
	board     *notice.Board
	prompt    bool
}

type Option func(*options) *options

// WithExportDir sets the directory where reports are saved. Default is the working directory.
func WithExportDir(dir string) Option {
	return func(o *options) *options {
		o.exportDir = dir
		return o
	}
}

// WithRenderer replaces the renderer of chart regions.
func WithRenderer(r view.ChartRenderer) Option {
	return func(o *options) *options {
		o.renderer = r
		return o
	}
}

// WithBoard replaces the notice board.
func WithBoard(b *notice.Board) Option {
	return func(o *options) *options {
		o.board = b
		return o
	}
}

// WithoutPrompt stops printing the prompt before each command.
func WithoutPrompt() Option {
	return func(o *options) *options {
		o.prompt = false
		return o
	}
}

func New(store *session.Store, client rest.ChemvizClient, out io.Writer, logger *log.Logger, opts ...Option) *Dashboard {
	o := &options{
		exportDir: ".",
		renderer:  render.ChartRegion,
		prompt:    true,
	}
	for _, opt := range opts {
		o = opt(o)
	}
	board := o.board
	if board == nil {
		board = notice.NewBoard()
	}

	reg := registry.New(store, client, logger)
	views := view.New(reg, board, o.renderer, logger)
	d := &Dashboard{
		session:   store,
		auth:      authflow.New(store, client, board),
		registry:  reg,
		views:     views,
		exporter:  report.NewExporter(reg, views, store, board, logger),
		notices:   board,
		logger:    logger,
		exportDir: o.exportDir,
		prompt:    o.prompt,
		out:       out,
	}
	board.Subscribe(func(n notice.Notice) { d.println(n.String()) })
	return d
}

func (d *Dashboard) println(s string) {
	d.outm.Lock()
	defer d.outm.Unlock()
	fmt.Fprintln(d.out, s)
}

func (d *Dashboard) print(f func(w io.Writer) error) {
	buf := new(bytes.Buffer)
	if err := f(buf); err != nil {
		d.logger.Printf("cannot render: %s", err)
		return
	}
	d.outm.Lock()
	defer d.outm.Unlock()
	d.out.Write(buf.Bytes())
}

func (d *Dashboard) showPrompt() {
	if !d.prompt {
		return
	}
	d.outm.Lock()
	defer d.outm.Unlock()
	fmt.Fprint(d.out, Prompt)
}

// Run reads commands from in until it is closed, "quit" is given or ctx is done.
//
// Uploads in flight are waited for before returning.
func (d *Dashboard) Run(ctx context.Context, in io.Reader) error {
	defer d.uploads.Wait()

	d.start(ctx)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		d.showPrompt()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := d.Exec(ctx, line); quit {
				return nil
			}
		}
	}
}

// start verifies the restored session, and shows datasets if it is still valid.
func (d *Dashboard) start(ctx context.Context) {
	who, ok := d.session.Current()
	if !ok {
		d.println("not logged in. type \"help\" for commands.")
		return
	}
	if err := d.session.Verify(ctx); err != nil {
		d.logger.Printf("session is discarded: %s", err)
		d.println("session has expired. please login again.")
		return
	}
	d.println("logged in as " + who.Username)
	d.enter(ctx)
}

// enter loads datasets on authenticated entry.
func (d *Dashboard) enter(ctx context.Context) {
	ds, err := d.registry.Refresh(ctx)
	if err != nil {
		d.notices.Error("Error loading datasets: " + err.Error())
		return
	}
	d.print(func(w io.Writer) error { return render.DatasetList(w, ds) })
}

// sync drops state of the previous identity after a forced logout.
func (d *Dashboard) sync() {
	if _, ok := d.session.Current(); ok {
		return
	}
	d.registry.Clear()
	d.views.Reset()
}

// Exec runs a command line. It returns true when the dashboard should quit.
func (d *Dashboard) Exec(ctx context.Context, line string) bool {
	args := strings.Fields(line)
	if len(args) == 0 {
		return false
	}
	defer d.sync()

	cmd, args := args[0], args[1:]
	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		d.println(usage)
	case "login":
		d.submit(ctx, authflow.Login, args)
	case "register":
		d.submit(ctx, authflow.Register, args)
	default:
		if _, ok := d.session.Current(); !ok {
			if _, known := authenticated[cmd]; known {
				d.notices.Error("Please login first")
			} else {
				d.println(fmt.Sprintf("unknown command: %s", cmd))
			}
			return false
		}
		h, ok := authenticated[cmd]
		if !ok {
			d.println(fmt.Sprintf("unknown command: %s", cmd))
			return false
		}
		h(d, ctx, args)
	}
	return false
}

var authenticated map[string]func(*Dashboard, context.Context, []string)

func init() {
	authenticated = map[string]func(*Dashboard, context.Context, []string){
		"logout":  (*Dashboard).logout,
		"whoami":  (*Dashboard).whoami,
		"list":    (*Dashboard).list,
		"history": (*Dashboard).history,
		"upload":  (*Dashboard).upload,
		"analyze": (*Dashboard).analyze,
		"table":   (*Dashboard).table,
		"close":   (*Dashboard).close,
		"state":   (*Dashboard).state,
		"export":  (*Dashboard).export,
		"rm":      (*Dashboard).remove,
		"summary": (*Dashboard).summary,
	}
}

func (d *Dashboard) submit(ctx context.Context, form authflow.Form, args []string) {
	if who, ok := d.session.Current(); ok {
		d.notices.Error(fmt.Sprintf("Already logged in as %s. Logout first", who.Username))
		return
	}
	if len(args) != 2 {
		d.println(fmt.Sprintf("usage: %s USERNAME PASSWORD", form))
		return
	}
	if err := d.auth.Show(form); err != nil {
		d.notices.Error(err.Error())
		return
	}
	if err := d.auth.Fill(args[0], args[1]); err != nil {
		d.notices.Error(err.Error())
		return
	}
	if err := d.auth.Submit(ctx); err != nil {
		d.logger.Printf("%s: %s", form, cerr.VerboseOf(err))
		return
	}
	if form == authflow.Login {
		d.enter(ctx)
	}
}

func (d *Dashboard) logout(ctx context.Context, _ []string) {
	d.session.Logout()
	d.notices.Success("Logged out successfully")
}

func (d *Dashboard) whoami(ctx context.Context, _ []string) {
	who, _ := d.session.Current()
	d.println(who.Username)
}

func (d *Dashboard) list(ctx context.Context, _ []string) {
	d.enter(ctx)
}

func (d *Dashboard) history(ctx context.Context, _ []string) {
	hist := d.registry.History(registry.HistorySize)
	d.print(func(w io.Writer) error { return render.History(w, hist) })
}

func (d *Dashboard) upload(ctx context.Context, args []string) {
	path := strings.Join(args, " ")
	if err := registry.ValidateUpload(path); err != nil {
		switch {
		case errors.Is(err, registry.ErrNoFile):
			d.notices.Error("Please select a file")
		default:
			d.notices.Error("Please upload a CSV file")
		}
		return
	}
	if d.registry.Uploading() {
		d.notices.Error("Upload is in progress")
		return
	}

	d.uploads.Add(1)
	go func() {
		defer d.uploads.Done()
		_, err := d.registry.Upload(ctx, path, nil)
		var reload *registry.RefreshError
		switch {
		case err == nil:
			d.notices.Success("File uploaded successfully!")
			d.history(ctx, nil)
		case errors.As(err, &reload):
			d.notices.Success("File uploaded successfully!")
			d.notices.Error("Error loading datasets: " + reload.Err.Error())
		case errors.Is(err, registry.ErrBusy):
			d.notices.Error("Upload is in progress")
		default:
			d.logger.Printf("upload %s: %s", path, cerr.VerboseOf(err))
			if msg, ok := rest.ServerMessage(err, apierr.FieldDetail, apierr.FieldError); ok {
				d.notices.Error(msg)
			} else {
				d.notices.Error("Upload failed: " + err.Error())
			}
		}
	}()
}

func (d *Dashboard) datasetId(args []string) (int, bool) {
	if len(args) != 1 {
		d.println("dataset id is required")
		return 0, false
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		d.println(fmt.Sprintf("invalid dataset id: %s", args[0]))
		return 0, false
	}
	return id, true
}

func (d *Dashboard) analyze(ctx context.Context, args []string) {
	id, ok := d.datasetId(args)
	if !ok {
		return
	}
	if err := d.views.SelectForAnalysis(ctx, id); err != nil {
		return
	}
	ds, _ := d.views.Dataset()
	d.print(func(w io.Writer) error { return render.Analysis(w, ds) })
}

func (d *Dashboard) table(ctx context.Context, args []string) {
	id, ok := d.datasetId(args)
	if !ok {
		return
	}
	if err := d.views.SelectForTable(ctx, id); err != nil {
		return
	}
	ds, _ := d.views.Dataset()
	d.print(func(w io.Writer) error { return render.Table(w, ds) })
}

func (d *Dashboard) close(ctx context.Context, args []string) {
	var err error
	switch strings.Join(args, " ") {
	case "analysis":
		err = d.views.CloseAnalysis()
	case "table":
		err = d.views.CloseTable()
	default:
		d.println("usage: close analysis|table")
		return
	}
	if err != nil {
		d.println(err.Error())
	}
}

func (d *Dashboard) state(ctx context.Context, _ []string) {
	d.println(d.views.State().String())
}

func (d *Dashboard) export(ctx context.Context, args []string) {
	id, ok := d.datasetId(args)
	if !ok {
		return
	}
	path, err := d.exporter.Export(id, d.exportDir)
	if err != nil {
		return
	}
	d.println("saved: " + path)
}

func (d *Dashboard) remove(ctx context.Context, args []string) {
	id, ok := d.datasetId(args)
	if !ok {
		return
	}
	if err := d.registry.Delete(ctx, id); err != nil {
		d.notices.Error("Error deleting dataset: " + err.Error())
		return
	}
	if d.views.State().DatasetId == id {
		d.views.Reset()
	}
	d.notices.Success(fmt.Sprintf("Dataset %d deleted", id))
}

func (d *Dashboard) summary(ctx context.Context, _ []string) {
	s, err := d.registry.Summary(ctx)
	if err != nil {
		d.notices.Error("Error loading summary: " + err.Error())
		return
	}
	d.print(func(w io.Writer) error { return render.Summary(w, s) })
}
