package errors

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrorMessage is the error payload of the backend.
//
// Authentication endpoints put their message in "error",
// the upload endpoint in "detail" (or "error" for CSV processing failures).
type ErrorMessage struct {
	Err    string `json:"error,omitempty"`
	Detail string `json:"detail,omitempty"`
}

type Field int

const (
	FieldError Field = iota
	FieldDetail
)

// Message returns the first non-empty field in the given order.
//
// If no field is given, "error" then "detail" is tried.
func (em ErrorMessage) Message(order ...Field) (string, bool) {
	if len(order) == 0 {
		order = []Field{FieldError, FieldDetail}
	}
	for _, f := range order {
		switch f {
		case FieldError:
			if em.Err != "" {
				return em.Err, true
			}
		case FieldDetail:
			if em.Detail != "" {
				return em.Detail, true
			}
		}
	}
	return "", false
}

// NewErrorMessage builds an echo error whose body is {"error": message}.
func NewErrorMessage(code int, message string) *echo.HTTPError {
	return echo.NewHTTPError(code, ErrorMessage{Err: message})
}

// NewErrorDetail builds an echo error whose body is {"detail": detail}.
func NewErrorDetail(code int, detail string) *echo.HTTPError {
	return echo.NewHTTPError(code, ErrorMessage{Detail: detail})
}

func BadRequest(message string) *echo.HTTPError {
	return NewErrorMessage(http.StatusBadRequest, message)
}

func Unauthorized() *echo.HTTPError {
	return NewErrorDetail(http.StatusUnauthorized, "Given token not valid for any token type")
}

func NotFound(message string) *echo.HTTPError {
	return NewErrorMessage(http.StatusNotFound, message)
}
