package errors

import (
	"strings"
)

type Verbose interface {
	Verbose() string
}

// CUIError is an error to be shown to users as it is.
//
// Error() is the message for the user.
// Verbose() adds the detail and the chain of causes, for logs.
type CUIError interface {
	error
	Verbose
}

type cuierror struct {
	summary string
	detail  string
	base    error
}

func (ce *cuierror) Unwrap() error {
	return ce.base
}

func (ce *cuierror) Error() string {
	return ce.summary
}

func (ce *cuierror) Verbose() string {
	message := []string{ce.summary}
	if ce.detail != "" {
		message = append(message, "  "+strings.ReplaceAll(ce.detail, "\n", "\n  "))
	}

	switch base := ce.base.(type) {
	case nil:
	case Verbose:
		message = append(message, "caused by: "+base.Verbose())
	default:
		message = append(message, "caused by: "+base.Error())
	}
	return strings.Join(message, "\n")
}

type CuiErrorOption func(cerr *cuierror) *cuierror

func NewCuiError(summary string, options ...CuiErrorOption) CUIError {
	err := &cuierror{summary: summary}
	for _, o := range options {
		err = o(err)
	}
	return err
}

// WithDetail attaches text shown only in Verbose(), like a raw server response.
func WithDetail(detail string) CuiErrorOption {
	return func(cerr *cuierror) *cuierror {
		cerr.detail = detail
		return cerr
	}
}

func WithCause(err error) CuiErrorOption {
	return func(cerr *cuierror) *cuierror {
		cerr.base = err
		return cerr
	}
}

// VerboseOf returns Verbose() of err if it has one, or Error() otherwise.
func VerboseOf(err error) string {
	if v, ok := err.(Verbose); ok {
		return v.Verbose()
	}
	return err.Error()
}
