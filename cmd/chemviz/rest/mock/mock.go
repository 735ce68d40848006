package mock

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/opst/chemviz/cmd/chemviz/rest"
	apiauth "github.com/opst/chemviz/pkg/api/types/auth"
	apidatasets "github.com/opst/chemviz/pkg/api/types/datasets"
)

type CredentialArgs struct {
	Username string
	Password string
}

type DatasetArgs struct {
	Token string
	Id    int
}

type UploadDatasetArgs struct {
	Token  string
	Source string
}

func New(t *testing.T) *mockChemvizClient {
	return &mockChemvizClient{t: t}
}

type MockedUploadProgress struct {
	EstimatedTotalSize_ int64

	ProgressedSize_ int64

	Error_ error

	Result_ *apidatasets.UploadResult

	ResultOk_ bool

	Done_ <-chan struct{}

	Sent_ <-chan struct{}
}

// Finished returns a progress which is already done with given result.
func Finished(result *apidatasets.UploadResult, err error) *MockedUploadProgress {
	done := make(chan struct{})
	close(done)
	sent := make(chan struct{})
	close(sent)
	return &MockedUploadProgress{
		Error_:    err,
		Result_:   result,
		ResultOk_: err == nil,
		Done_:     done,
		Sent_:     sent,
	}
}

func (m *MockedUploadProgress) EstimatedTotalSize() int64 {
	return m.EstimatedTotalSize_
}

func (m *MockedUploadProgress) ProgressedSize() int64 {
	return m.ProgressedSize_
}

func (m *MockedUploadProgress) Result() (*apidatasets.UploadResult, bool) {
	return m.Result_, m.ResultOk_
}

func (m *MockedUploadProgress) Error() error {
	return m.Error_
}

func (m *MockedUploadProgress) Done() <-chan struct{} {
	return m.Done_
}

func (m *MockedUploadProgress) Sent() <-chan struct{} {
	return m.Sent_
}

// mockChemvizClient records calls and delegates them to Impl.
//
// Calls can be made from multiple goroutines; read Calls after they are over.
type mockChemvizClient struct {
	t    *testing.T
	m    sync.Mutex
	Impl struct {
		Login          func(ctx context.Context, username, password string) (apiauth.LoginResult, error)
		Register       func(ctx context.Context, username, password string) (apiauth.RegisterResult, error)
		ListDatasets   func(ctx context.Context, token string) ([]apidatasets.Dataset, error)
		GetDataset     func(ctx context.Context, token string, id int) (apidatasets.Dataset, error)
		DeleteDataset  func(ctx context.Context, token string, id int) error
		GetSummary     func(ctx context.Context, token string) (apidatasets.Summary, error)
		DownloadReport func(ctx context.Context, token string, id int, w io.Writer) error
		UploadDataset  func(ctx context.Context, token string, source string) rest.Progress[*apidatasets.UploadResult]
	}
	Calls struct {
		Login          []CredentialArgs
		Register       []CredentialArgs
		ListDatasets   []string
		GetDataset     []DatasetArgs
		DeleteDataset  []DatasetArgs
		GetSummary     []string
		DownloadReport []DatasetArgs
		UploadDataset  []UploadDatasetArgs
	}
}

var _ rest.ChemvizClient = &mockChemvizClient{}

func (m *mockChemvizClient) Login(ctx context.Context, username, password string) (apiauth.LoginResult, error) {
	m.t.Helper()

	m.m.Lock()
	m.Calls.Login = append(m.Calls.Login, CredentialArgs{Username: username, Password: password})
	m.m.Unlock()

	if m.Impl.Login == nil {
		m.t.Fatal("Login is not ready to be called")
	}
	return m.Impl.Login(ctx, username, password)
}

func (m *mockChemvizClient) Register(ctx context.Context, username, password string) (apiauth.RegisterResult, error) {
	m.t.Helper()

	m.m.Lock()
	m.Calls.Register = append(m.Calls.Register, CredentialArgs{Username: username, Password: password})
	m.m.Unlock()

	if m.Impl.Register == nil {
		m.t.Fatal("Register is not ready to be called")
	}
	return m.Impl.Register(ctx, username, password)
}

func (m *mockChemvizClient) ListDatasets(ctx context.Context, token string) ([]apidatasets.Dataset, error) {
	m.t.Helper()

	m.m.Lock()
	m.Calls.ListDatasets = append(m.Calls.ListDatasets, token)
	m.m.Unlock()

	if m.Impl.ListDatasets == nil {
		m.t.Fatal("ListDatasets is not ready to be called")
	}
	return m.Impl.ListDatasets(ctx, token)
}

func (m *mockChemvizClient) GetDataset(ctx context.Context, token string, id int) (apidatasets.Dataset, error) {
	m.t.Helper()

	m.m.Lock()
	m.Calls.GetDataset = append(m.Calls.GetDataset, DatasetArgs{Token: token, Id: id})
	m.m.Unlock()

	if m.Impl.GetDataset == nil {
		m.t.Fatal("GetDataset is not ready to be called")
	}
	return m.Impl.GetDataset(ctx, token, id)
}

func (m *mockChemvizClient) DeleteDataset(ctx context.Context, token string, id int) error {
	m.t.Helper()

	m.m.Lock()
	m.Calls.DeleteDataset = append(m.Calls.DeleteDataset, DatasetArgs{Token: token, Id: id})
	m.m.Unlock()

	if m.Impl.DeleteDataset == nil {
		m.t.Fatal("DeleteDataset is not ready to be called")
	}
	return m.Impl.DeleteDataset(ctx, token, id)
}

func (m *mockChemvizClient) GetSummary(ctx context.Context, token string) (apidatasets.Summary, error) {
	m.t.Helper()

	m.m.Lock()
	m.Calls.GetSummary = append(m.Calls.GetSummary, token)
	m.m.Unlock()

	if m.Impl.GetSummary == nil {
		m.t.Fatal("GetSummary is not ready to be called")
	}
	return m.Impl.GetSummary(ctx, token)
}

func (m *mockChemvizClient) DownloadReport(ctx context.Context, token string, id int, w io.Writer) error {
	m.t.Helper()

	m.m.Lock()
	m.Calls.DownloadReport = append(m.Calls.DownloadReport, DatasetArgs{Token: token, Id: id})
	m.m.Unlock()

	if m.Impl.DownloadReport == nil {
		m.t.Fatal("DownloadReport is not ready to be called")
	}
	return m.Impl.DownloadReport(ctx, token, id, w)
}

func (m *mockChemvizClient) UploadDataset(ctx context.Context, token string, source string) rest.Progress[*apidatasets.UploadResult] {
	m.t.Helper()

	m.m.Lock()
	m.Calls.UploadDataset = append(m.Calls.UploadDataset, UploadDatasetArgs{Token: token, Source: source})
	m.m.Unlock()

	if m.Impl.UploadDataset == nil {
		m.t.Fatal("UploadDataset is not ready to be called")
	}
	return m.Impl.UploadDataset(ctx, token, source)
}
