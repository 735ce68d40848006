// Package registry holds the datasets of the logged-in user.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/opst/chemviz/cmd/chemviz/rest"
	"github.com/opst/chemviz/cmd/chemviz/session"
	apidatasets "github.com/opst/chemviz/pkg/api/types/datasets"
)

// ErrNoFile is returned when Upload is called without file.
var ErrNoFile = errors.New("no file is selected")

// ErrNotCSV is returned when the file to be uploaded is not a CSV.
var ErrNotCSV = errors.New("file is not CSV")

// ErrBusy is returned when an upload is triggered while another is in flight.
var ErrBusy = errors.New("upload is in progress")

// ErrDatasetNotFound is returned when the dataset is not in the backend.
var ErrDatasetNotFound = rest.ErrDatasetNotFound

// RefreshError is returned by Upload when the file is uploaded
// but the datasets cannot be reloaded afterwards.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return "uploaded, but datasets are not reloaded: " + e.Err.Error()
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// HistorySize is the number of datasets in History by default.
const HistorySize = 5

// Registry is a snapshot of the datasets of the logged-in user.
//
// Each operation goes to the backend once. Errors are passed through Session.Guard,
// so a rejected token logs out.
type Registry struct {
	session *session.Store
	client  rest.ChemvizClient
	logger  *log.Logger

	m         sync.Mutex
	snapshot  []apidatasets.Dataset
	uploading bool
}

func New(store *session.Store, client rest.ChemvizClient, logger *log.Logger) *Registry {
	return &Registry{session: store, client: client, logger: logger}
}

// Datasets returns the current snapshot.
func (r *Registry) Datasets() []apidatasets.Dataset {
	r.m.Lock()
	defer r.m.Unlock()
	return slices.Clone(r.snapshot)
}

// Find looks up the snapshot without going to the backend.
func (r *Registry) Find(id int) (apidatasets.Dataset, bool) {
	r.m.Lock()
	defer r.m.Unlock()
	i := slices.IndexFunc(r.snapshot, func(d apidatasets.Dataset) bool { return d.Id == id })
	if i < 0 {
		return apidatasets.Dataset{}, false
	}
	return r.snapshot[i], true
}

// History returns the first n datasets of the snapshot, which are the latest ones.
//
// If n <= 0, HistorySize is used.
func (r *Registry) History(n int) []apidatasets.Dataset {
	if n <= 0 {
		n = HistorySize
	}
	ds := r.Datasets()
	if n < len(ds) {
		ds = ds[:n]
	}
	return ds
}

// Clear drops the snapshot. Use this on logout.
func (r *Registry) Clear() {
	r.m.Lock()
	defer r.m.Unlock()
	r.snapshot = nil
}

func (r *Registry) Uploading() bool {
	r.m.Lock()
	defer r.m.Unlock()
	return r.uploading
}

func (r *Registry) token() (string, error) {
	return r.session.Token()
}

func (r *Registry) replace(ds []apidatasets.Dataset) {
	r.m.Lock()
	defer r.m.Unlock()
	r.snapshot = ds
}

// Refresh fetches the complete list from the backend and replaces the snapshot.
func (r *Registry) Refresh(ctx context.Context) ([]apidatasets.Dataset, error) {
	token, err := r.token()
	if err != nil {
		return nil, err
	}
	ds, err := r.client.ListDatasets(ctx, token)
	if err != nil {
		return nil, r.session.Guard(err)
	}
	r.replace(ds)
	return slices.Clone(ds), nil
}

// Resolve fetches the list again and looks up the dataset in it.
//
// The fresh list replaces the snapshot.
//
// # Returns
//
// - apidatasets.Dataset
//
// - error: ErrDatasetNotFound if the backend does not have it.
func (r *Registry) Resolve(ctx context.Context, id int) (apidatasets.Dataset, error) {
	ds, err := r.Refresh(ctx)
	if err != nil {
		return apidatasets.Dataset{}, err
	}
	i := slices.IndexFunc(ds, func(d apidatasets.Dataset) bool { return d.Id == id })
	if i < 0 {
		return apidatasets.Dataset{}, fmt.Errorf("%w: id = %d", ErrDatasetNotFound, id)
	}
	return ds[i], nil
}

// Detail fetches a single dataset from the backend. The snapshot is left as it is.
//
// # Returns
//
// - apidatasets.Dataset
//
// - error: ErrDatasetNotFound if the backend does not have it.
func (r *Registry) Detail(ctx context.Context, id int) (apidatasets.Dataset, error) {
	token, err := r.token()
	if err != nil {
		return apidatasets.Dataset{}, err
	}
	d, err := r.client.GetDataset(ctx, token, id)
	if err != nil {
		return apidatasets.Dataset{}, r.session.Guard(err)
	}
	return d, nil
}

// Report writes the PDF report rendered by the backend into w.
func (r *Registry) Report(ctx context.Context, id int, w io.Writer) error {
	token, err := r.token()
	if err != nil {
		return err
	}
	if err := r.client.DownloadReport(ctx, token, id, w); err != nil {
		return r.session.Guard(err)
	}
	return nil
}

// ValidateUpload checks the file name without touching the network.
//
// The extension is case sensitive: "data.CSV" is rejected.
func ValidateUpload(path string) error {
	if path == "" {
		return ErrNoFile
	}
	if !strings.HasSuffix(filepath.Base(path), ".csv") {
		return fmt.Errorf("%w: %s", ErrNotCSV, path)
	}
	return nil
}

// Upload sends a CSV file to the backend, and then refreshes the snapshot.
//
// One upload at a time: while uploading, further Upload fails with ErrBusy.
// Other operations can be done during upload.
//
// # Args
//
// - ctx
//
// - path: file to be uploaded. It should end with ".csv".
//
// - watch: called with the progress of the upload right after it starts. Can be nil.
//
// # Returns
//
// - *apidatasets.UploadResult: statistics of the uploaded file.
// It is not nil when the file is accepted by the backend, even if error is *RefreshError.
//
// - error: ErrNoFile, ErrNotCSV, ErrBusy, ErrNotAuthenticated, *RefreshError or errors from the backend.
func (r *Registry) Upload(
	ctx context.Context, path string,
	watch func(rest.Progress[*apidatasets.UploadResult]),
) (*apidatasets.UploadResult, error) {
	if err := ValidateUpload(path); err != nil {
		return nil, err
	}
	token, err := r.token()
	if err != nil {
		return nil, err
	}

	r.m.Lock()
	if r.uploading {
		r.m.Unlock()
		return nil, ErrBusy
	}
	r.uploading = true
	r.m.Unlock()
	defer func() {
		r.m.Lock()
		defer r.m.Unlock()
		r.uploading = false
	}()

	prog := r.client.UploadDataset(ctx, token, path)
	if watch != nil {
		watch(prog)
	}
	<-prog.Done()

	if err := prog.Error(); err != nil {
		return nil, r.session.Guard(err)
	}
	result, ok := prog.Result()
	if !ok {
		return nil, errors.New("upload is finished without result")
	}

	if _, err := r.Refresh(ctx); err != nil {
		r.logger.Printf("uploaded, but cannot refresh datasets: %s", err)
		return result, &RefreshError{Err: err}
	}
	return result, nil
}

// Delete removes the dataset from the backend, and then refreshes the snapshot.
func (r *Registry) Delete(ctx context.Context, id int) error {
	token, err := r.token()
	if err != nil {
		return err
	}
	if err := r.client.DeleteDataset(ctx, token, id); err != nil {
		return r.session.Guard(err)
	}
	_, err = r.Refresh(ctx)
	return err
}

// Summary returns statistics over all datasets of the user.
func (r *Registry) Summary(ctx context.Context) (apidatasets.Summary, error) {
	token, err := r.token()
	if err != nil {
		return apidatasets.Summary{}, err
	}
	s, err := r.client.GetSummary(ctx, token)
	if err != nil {
		return apidatasets.Summary{}, r.session.Guard(err)
	}
	return s, nil
}
