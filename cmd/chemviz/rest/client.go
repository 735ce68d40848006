package rest

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	prof "github.com/opst/chemviz/cmd/chemviz/config/profiles"
	apiauth "github.com/opst/chemviz/pkg/api/types/auth"
	apidatasets "github.com/opst/chemviz/pkg/api/types/datasets"
)

// HeaderRequestId is set on each request to trace it in the backend log.
const HeaderRequestId = "X-Request-Id"

type ChemvizClient interface {
	// Login exchanges credentials for a bearer token.
	//
	// Rejected credentials are reported as a CUIError whose message is the
	// one from the backend. It does not wrap ErrUnauthorized.
	Login(ctx context.Context, username, password string) (apiauth.LoginResult, error)

	// Register creates a new user. It does not log in.
	Register(ctx context.Context, username, password string) (apiauth.RegisterResult, error)

	// ListDatasets returns all datasets of the token's owner, newest first.
	//
	// Returns
	//
	// - []apidatasets.Dataset
	//
	// - error: wraps ErrUnauthorized if the token is rejected.
	ListDatasets(ctx context.Context, token string) ([]apidatasets.Dataset, error)

	// GetDataset returns a dataset with given id.
	//
	// Returns
	//
	// - apidatasets.Dataset
	//
	// - error: wraps ErrUnauthorized if the token is rejected,
	// ErrDatasetNotFound if the backend has no such dataset.
	GetDataset(ctx context.Context, token string, id int) (apidatasets.Dataset, error)

	// DeleteDataset removes a dataset with given id.
	DeleteDataset(ctx context.Context, token string, id int) error

	// GetSummary returns statistics over all datasets of the token's owner.
	GetSummary(ctx context.Context, token string) (apidatasets.Summary, error)

	// DownloadReport writes the PDF report rendered by the backend into w.
	//
	// Returns
	//
	// - error: wraps ErrUnauthorized if the token is rejected,
	// ErrDatasetNotFound if the backend has no such dataset.
	DownloadReport(ctx context.Context, token string, id int, w io.Writer) error

	// UploadDataset sends a CSV file as multipart field "file".
	//
	// The upload is started in background. Use Progress to watch or wait it.
	UploadDataset(ctx context.Context, token string, source string) Progress[*apidatasets.UploadResult]
}

type client struct {
	httpclient *http.Client
	api        string
}

// create new chemviz client for Profile
//
// # Args
//
// - *prof.Profile
//
// # Return
//
// - ChemvizClient: created client
//
// - error: If given profile is invalid, ErrProfileInvalid is returned.
func NewClient(p *prof.Profile) (ChemvizClient, error) {
	if err := p.Verify(); err != nil {
		return nil, err
	}
	httpclient := new(http.Client)

	if p.Cert.CA != "" {
		hc, err := trustCa(httpclient, []string{p.Cert.CA})
		if err != nil {
			return nil, err
		}
		httpclient = hc
	}

	return &client{
		httpclient: httpclient,
		api:        strings.TrimSuffix(p.ApiRoot, "/"),
	}, nil
}

// build URL with path.
//
// The backend routes end with "/", so does the URL.
func (c *client) apipath(path ...string) string {
	elems := []string{c.api}
	for _, p := range path {
		elems = append(elems, strings.Trim(p, "/"))
	}
	return strings.Join(elems, "/") + "/"
}

func (c *client) newRequest(ctx context.Context, method string, url string, body *requestBody, token string) (*http.Request, error) {
	var req *http.Request
	var err error
	if body == nil {
		req, err = http.NewRequestWithContext(ctx, method, url, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, url, body.reader)
	}
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", body.contentType)
	}
	req.Header.Set(HeaderRequestId, uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func trustCa(hc *http.Client, cacerts []string) (*http.Client, error) {
	if len(cacerts) <= 0 {
		return hc, nil
	}

	if hc.Transport == nil {
		hc.Transport = http.DefaultTransport
	}

	tran, ok := hc.Transport.(*http.Transport)
	if !ok {
		return nil, fmt.Errorf("failed to add ca cert")
	}
	tran = tran.Clone()

	tcc := tran.TLSClientConfig.Clone()
	if tcc == nil {
		tcc = &tls.Config{}
	}

	rootcas := tcc.RootCAs
	if rootcas == nil {
		rootcas = x509.NewCertPool()
		tcc.RootCAs = rootcas
	}
	for _, ca := range cacerts {
		bin, err := base64.StdEncoding.DecodeString(ca)
		if err != nil {
			return nil, err
		}

		if !rootcas.AppendCertsFromPEM(bin) {
			return nil, fmt.Errorf("failed to add cert")
		}
	}

	tran.TLSClientConfig = tcc
	hc.Transport = tran
	return hc, nil
}
