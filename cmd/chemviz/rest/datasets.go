package rest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"

	apidatasets "github.com/opst/chemviz/pkg/api/types/datasets"
)

type Progress[T any] interface {
	// EstimatedTotalSize returns the size of the file to be sent.
	EstimatedTotalSize() int64

	// ProgressedSize returns the size of the file which has been sent.
	//
	// This size is updated during sending.
	ProgressedSize() int64

	// Error returns error caused during uploading.
	Error() error

	// Result returns the result of the operation.
	//
	// # Returns
	//
	// - T: the result of the operation.
	//
	// - bool: true if the operation has been done successfully.
	Result() (T, bool)

	// Done returns a channel which is closed when progressing task is over.
	Done() <-chan struct{}

	// Sent returns a chennel which is closed when the file is sent to the server.
	Sent() <-chan struct{}
}

type progress[T any] struct {
	total      int64
	progressed atomic.Int64

	m        sync.Mutex
	e        error
	result   T
	resultOk bool

	done     chan struct{}
	sent     chan struct{}
	sentOnce sync.Once
}

func newProgress[T any]() *progress[T] {
	return &progress[T]{
		done: make(chan struct{}),
		sent: make(chan struct{}),
	}
}

func (p *progress[T]) EstimatedTotalSize() int64 {
	return p.total
}

func (p *progress[T]) ProgressedSize() int64 {
	return p.progressed.Load()
}

func (p *progress[T]) Error() error {
	p.m.Lock()
	defer p.m.Unlock()
	return p.e
}

func (p *progress[T]) Result() (T, bool) {
	p.m.Lock()
	defer p.m.Unlock()
	return p.result, p.resultOk
}

func (p *progress[T]) Done() <-chan struct{} {
	return p.done
}

func (p *progress[T]) Sent() <-chan struct{} {
	return p.sent
}

func (p *progress[T]) markSent() {
	p.sentOnce.Do(func() { close(p.sent) })
}

// finish records the outcome and closes Done.
func (p *progress[T]) finish(result T, err error) {
	p.m.Lock()
	if err != nil {
		p.e = err
	} else {
		p.result = result
		p.resultOk = true
	}
	p.m.Unlock()
	close(p.done)
}

// hookedReader calls hooks on reading base. Hooks can be nil.
type hookedReader struct {
	base   io.Reader
	onRead func(n int)
	onEOF  func()
}

func (hr *hookedReader) Read(b []byte) (int, error) {
	n, err := hr.base.Read(b)
	if 0 < n && hr.onRead != nil {
		hr.onRead(n)
	}
	if errors.Is(err, io.EOF) && hr.onEOF != nil {
		hr.onEOF()
	}
	return n, err
}

func (c *client) UploadDataset(ctx context.Context, token string, source string) Progress[*apidatasets.UploadResult] {
	prog := newProgress[*apidatasets.UploadResult]()

	f, err := os.Open(source)
	if err != nil {
		prog.finish(nil, err)
		return prog
	}
	started := false
	defer func() {
		if !started {
			f.Close()
		}
	}()

	stat, err := f.Stat()
	if err != nil {
		prog.finish(nil, err)
		return prog
	}
	prog.total = stat.Size()

	// multipart framing is fixed in size, so the body has Content-Length.
	frame := new(bytes.Buffer)
	mw := multipart.NewWriter(frame)
	if _, err := mw.CreateFormFile("file", filepath.Base(source)); err != nil {
		prog.finish(nil, err)
		return prog
	}
	head := bytes.Clone(frame.Bytes())
	frame.Reset()
	if err := mw.Close(); err != nil {
		prog.finish(nil, err)
		return prog
	}
	tail := bytes.Clone(frame.Bytes())

	req, err := c.newRequest(
		ctx, http.MethodPost, c.apipath("equipment", "upload"),
		&requestBody{
			reader: io.MultiReader(
				bytes.NewReader(head),
				&hookedReader{
					base:   io.LimitReader(f, prog.total),
					onRead: func(n int) { prog.progressed.Add(int64(n)) },
				},
				&hookedReader{
					base:  bytes.NewReader(tail),
					onEOF: prog.markSent,
				},
			),
			contentType: mw.FormDataContentType(),
		},
		token,
	)
	if err != nil {
		prog.finish(nil, err)
		return prog
	}
	req.ContentLength = int64(len(head)) + prog.total + int64(len(tail))

	started = true
	go func() {
		defer f.Close()

		resp, err := c.httpclient.Do(req)
		if err != nil {
			prog.finish(nil, err)
			return
		}
		defer resp.Body.Close()

		res := &apidatasets.UploadResult{}
		if err := unmarshalJsonResponse(
			resp, res,
			MessageFor{
				Status4xx: fmt.Sprintf("uploading dataset is rejected by server (status code = %d)", resp.StatusCode),
				Status5xx: fmt.Sprintf("server error (status code = %d)", resp.StatusCode),
			},
		); err != nil {
			prog.finish(nil, err)
			return
		}
		prog.finish(res, nil)
	}()

	return prog
}

func (c *client) ListDatasets(ctx context.Context, token string) ([]apidatasets.Dataset, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.apipath("equipment", "datasets"), nil, token)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	result := []apidatasets.Dataset{}
	if err := unmarshalJsonResponse(
		resp, &result,
		MessageFor{
			Status4xx: fmt.Sprintf("listing datasets is rejected by server (status code = %d)", resp.StatusCode),
			Status5xx: fmt.Sprintf("server error (status code = %d)", resp.StatusCode),
		},
	); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *client) GetDataset(ctx context.Context, token string, id int) (apidatasets.Dataset, error) {
	req, err := c.newRequest(
		ctx, http.MethodGet, c.apipath("equipment", "datasets", strconv.Itoa(id)), nil, token,
	)
	if err != nil {
		return apidatasets.Dataset{}, err
	}

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return apidatasets.Dataset{}, err
	}
	defer resp.Body.Close()

	result := apidatasets.Dataset{}
	if err := unmarshalJsonResponse(
		resp, &result,
		MessageFor{
			Status4xx: fmt.Sprintf("getting dataset is rejected by server (status code = %d)", resp.StatusCode),
			Status5xx: fmt.Sprintf("server error (status code = %d)", resp.StatusCode),
		},
	); err != nil {
		if resp.StatusCode == http.StatusNotFound {
			return apidatasets.Dataset{}, fmt.Errorf("%w: id = %d: %w", ErrDatasetNotFound, id, err)
		}
		return apidatasets.Dataset{}, err
	}
	return result, nil
}

func (c *client) DownloadReport(ctx context.Context, token string, id int, w io.Writer) error {
	req, err := c.newRequest(
		ctx, http.MethodGet,
		c.apipath("equipment", "datasets", strconv.Itoa(id), "export-pdf"), nil, token,
	)
	if err != nil {
		return err
	}

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkResponse(
		resp,
		MessageFor{
			Status4xx: fmt.Sprintf("exporting PDF is rejected by server (status code = %d)", resp.StatusCode),
			Status5xx: fmt.Sprintf("server error (status code = %d)", resp.StatusCode),
		},
	); err != nil {
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: id = %d: %w", ErrDatasetNotFound, id, err)
		}
		return err
	}

	_, err = io.Copy(w, resp.Body)
	return err
}

func (c *client) DeleteDataset(ctx context.Context, token string, id int) error {
	req, err := c.newRequest(
		ctx, http.MethodDelete, c.apipath("equipment", "datasets", strconv.Itoa(id)), nil, token,
	)
	if err != nil {
		return err
	}

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkResponse(
		resp,
		MessageFor{
			Status4xx: fmt.Sprintf("deleting dataset is rejected by server (status code = %d)", resp.StatusCode),
			Status5xx: fmt.Sprintf("server error (status code = %d)", resp.StatusCode),
		},
	); err != nil {
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: id = %d: %w", ErrDatasetNotFound, id, err)
		}
		return err
	}
	return nil
}

func (c *client) GetSummary(ctx context.Context, token string) (apidatasets.Summary, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.apipath("equipment", "summary"), nil, token)
	if err != nil {
		return apidatasets.Summary{}, err
	}

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return apidatasets.Summary{}, err
	}
	defer resp.Body.Close()

	result := apidatasets.Summary{}
	if err := unmarshalJsonResponse(
		resp, &result,
		MessageFor{
			Status4xx: fmt.Sprintf("getting summary is rejected by server (status code = %d)", resp.StatusCode),
			Status5xx: fmt.Sprintf("server error (status code = %d)", resp.StatusCode),
		},
	); err != nil {
		return apidatasets.Summary{}, err
	}
	return result, nil
}
