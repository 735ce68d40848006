package rest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	cerr "github.com/opst/chemviz/cmd/chemviz/errors"
	apierr "github.com/opst/chemviz/pkg/api/types/errors"
)

// ErrUnauthorized is wrapped by errors of authenticated requests
// whose token is rejected by the backend (HTTP 401).
var ErrUnauthorized = errors.New("credential is rejected")

// ErrDatasetNotFound is wrapped when the backend has no dataset with the id.
var ErrDatasetNotFound = errors.New("dataset not found")

type MessageFor map[StatusCodeRange]string

// serverError carries the error response of the backend.
type serverError struct {
	body apierr.ErrorMessage
}

func (se *serverError) Error() string {
	msg, _ := se.body.Message()
	return msg
}

// ServerMessage extracts the message which the backend put in its error response.
//
// args:
//   - err: error returned from ChemvizClient.
//   - order: fields of the error response to be looked up. Default: "error" then "detail".
//
// return:
//   - string: the message.
//   - bool: false if err carries no message from the backend.
func ServerMessage(err error, order ...apierr.Field) (string, bool) {
	var se *serverError
	if !errors.As(err, &se) {
		return "", false
	}
	return se.body.Message(order...)
}

// unmarshal http response which has json content.
//
// args:
//   - resp: http response to be processed.
//   - v: value which response should be. If nil, the body is ignored.
//   - messageFor: title of error message for HTTP status code range.
//
// return:
//
//	error if...
//	- can not read response body
//	- response body is not shaped of v
//	- status code is in 4xx or 5xx
func unmarshalJsonResponse[T any](resp *http.Response, v *T, messageFor MessageFor) error {
	if err := checkResponse(resp, messageFor); err != nil {
		return err
	}
	if v == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		message := fmt.Sprintf("unexpected error: %s (status code = %d)", err.Error(), resp.StatusCode)
		return cerr.NewCuiError(message, cerr.WithCause(err))
	}
	return nil
}

// checkResponse converts a non-2xx response into a CUIError.
//
// The summary of the error is the message in the response body if it has.
// Otherwise, the title from messageFor.
func checkResponse(resp *http.Response, messageFor MessageFor) error {
	scr := StatusCodeRangeOf(resp)
	if scr == Status2xx {
		return nil
	}

	title, ok := messageFor[scr]
	if !ok {
		title = fmt.Sprintf("%s (status code = %d)", scr, resp.StatusCode)
	}

	var unauthorized error
	if resp.StatusCode == http.StatusUnauthorized && authenticated(resp) {
		unauthorized = ErrUnauthorized
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return cerr.NewCuiError(
			fmt.Sprintf("%s\ncannot read server message: %s", title, err.Error()),
			cerr.WithCause(errors.Join(unauthorized, err)),
		)
	}

	summary := title
	var message error
	em := apierr.ErrorMessage{}
	if err := json.Unmarshal(body, &em); err == nil {
		if m, ok := em.Message(); ok {
			summary = m
			message = &serverError{body: em}
		}
	}

	return cerr.NewCuiError(
		summary,
		cerr.WithDetail(title+"\n"+string(bytes.TrimSpace(body))),
		cerr.WithCause(errors.Join(unauthorized, message)),
	)
}

func authenticated(resp *http.Response) bool {
	return resp.Request != nil && resp.Request.Header.Get("Authorization") != ""
}

type requestBody struct {
	reader      io.Reader
	contentType string
}

func jsonBody(v any) (*requestBody, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &requestBody{reader: bytes.NewReader(buf), contentType: "application/json"}, nil
}
