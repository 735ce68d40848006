// Package authflow drives the login and register forms.
package authflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/opst/chemviz/cmd/chemviz/notice"
	"github.com/opst/chemviz/cmd/chemviz/rest"
	"github.com/opst/chemviz/cmd/chemviz/session"
)

// ErrBusy is returned when the form is waiting for the response of the previous submission.
var ErrBusy = errors.New("form is busy")

// ErrMissingField is returned when username or password is empty.
var ErrMissingField = errors.New("username and password are required")

type Form int

const (
	Login Form = iota
	Register
)

func (f Form) String() string {
	switch f {
	case Login:
		return "login"
	case Register:
		return "register"
	default:
		return fmt.Sprintf("unknown form (%d)", int(f))
	}
}

type Fields struct {
	Username string
	Password string
}

// Flow holds which form is shown and its input.
//
// Only one of the forms is shown at a time.
type Flow struct {
	session *session.Store
	client  rest.ChemvizClient
	notices *notice.Board

	m      sync.Mutex
	form   Form
	busy   bool
	fields Fields
}

func New(store *session.Store, client rest.ChemvizClient, notices *notice.Board) *Flow {
	return &Flow{session: store, client: client, notices: notices, form: Login}
}

func (f *Flow) Form() Form {
	f.m.Lock()
	defer f.m.Unlock()
	return f.form
}

func (f *Flow) Busy() bool {
	f.m.Lock()
	defer f.m.Unlock()
	return f.busy
}

func (f *Flow) Fields() Fields {
	f.m.Lock()
	defer f.m.Unlock()
	return f.fields
}

// Fill sets the input of the form.
func (f *Flow) Fill(username, password string) error {
	f.m.Lock()
	defer f.m.Unlock()
	if f.busy {
		return ErrBusy
	}
	f.fields = Fields{Username: username, Password: password}
	return nil
}

// Toggle switches login and register.
func (f *Flow) Toggle() error {
	f.m.Lock()
	defer f.m.Unlock()
	if f.busy {
		return ErrBusy
	}
	if f.form == Login {
		f.form = Register
	} else {
		f.form = Login
	}
	return nil
}

// Show switches to the form.
func (f *Flow) Show(form Form) error {
	f.m.Lock()
	defer f.m.Unlock()
	if f.busy {
		return ErrBusy
	}
	f.form = form
	return nil
}

// Submit sends the filled input with the current form.
//
// While the request is in flight, the form is busy and further Submit, Fill,
// Toggle and Show fail with ErrBusy without touching the network.
//
// The result is posted as a notice. Input is cleared only on success.
// Successful registration switches back to the login form; it does not log in.
func (f *Flow) Submit(ctx context.Context) error {
	f.m.Lock()
	if f.busy {
		f.m.Unlock()
		return ErrBusy
	}
	form, fields := f.form, f.fields
	if fields.Username == "" || fields.Password == "" {
		f.m.Unlock()
		f.notices.Error("Username and password are required")
		return ErrMissingField
	}
	f.busy = true
	f.m.Unlock()

	var err error
	switch form {
	case Register:
		_, err = f.client.Register(ctx, fields.Username, fields.Password)
	default:
		_, err = f.session.Login(ctx, fields.Username, fields.Password)
	}

	f.m.Lock()
	f.busy = false
	if err == nil {
		f.fields = Fields{}
		if form == Register {
			f.form = Login
		}
	}
	f.m.Unlock()

	if err != nil {
		f.notices.Error(failureMessage(form, err))
		return err
	}
	switch form {
	case Register:
		f.notices.Success("Registration successful! Now login with your credentials.")
	default:
		f.notices.Success("Login successful!")
	}
	return nil
}

func failureMessage(form Form, err error) string {
	if msg, ok := rest.ServerMessage(err); ok {
		return msg
	}
	switch form {
	case Register:
		return "Registration failed: " + err.Error()
	default:
		return "Login failed: " + err.Error()
	}
}
