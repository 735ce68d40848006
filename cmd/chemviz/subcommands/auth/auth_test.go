package auth_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/opst/chemviz/cmd/chemviz/rest"
	"github.com/opst/chemviz/cmd/chemviz/rest/mock"
	"github.com/opst/chemviz/cmd/chemviz/session"
	"github.com/opst/chemviz/cmd/chemviz/subcommands/auth"
	"github.com/opst/chemviz/cmd/chemviz/subcommands/internal/commandline"
	"github.com/opst/chemviz/cmd/chemviz/subcommands/internal/fixture"
	"github.com/opst/chemviz/cmd/chemviz/subcommands/logger"
	testctx "github.com/opst/chemviz/internal/testutils/context"
	apiauth "github.com/opst/chemviz/pkg/api/types/auth"
	apidatasets "github.com/opst/chemviz/pkg/api/types/datasets"
	"github.com/opst/chemviz/pkg/utils/try"
)

func TestLogin(t *testing.T) {
	type When struct {
		flags    auth.Flags
		stdin    string
		loginErr error
	}
	type Then struct {
		password string
		stdout   string
		err      bool
		loggedIn bool
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			ctx := testctx.WithTest(t)
			client := mock.New(t)
			client.Impl.Login = func(ctx context.Context, username, password string) (apiauth.LoginResult, error) {
				if when.loginErr != nil {
					return apiauth.LoginResult{}, when.loginErr
				}
				return apiauth.LoginResult{Access: "tok", Username: username}, nil
			}
			store, path := fixture.Anonymous(t, client)

			cl, stdout, _ := commandline.Capture(
				"chemviz login", when.flags,
				map[string][]string{auth.ARG_USERNAME: {"alice"}},
			)
			cl.Stdin_ = strings.NewReader(when.stdin)

			err := auth.LoginTask()(ctx, logger.Null(), store, client, cl, nil)
			if (err != nil) != then.err {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(client.Calls.Login) != 1 {
				t.Fatalf("login is called %d times", len(client.Calls.Login))
			}
			if got := client.Calls.Login[0]; got.Username != "alice" || got.Password != then.password {
				t.Errorf("unexpected credential: %+v", got)
			}
			if !strings.Contains(stdout.String(), then.stdout) {
				t.Errorf("stdout: %q does not contain %q", stdout.String(), then.stdout)
			}

			_, ok := store.Current()
			if ok != then.loggedIn {
				t.Errorf("logged in: %v", ok)
			}
			_, statErr := os.Stat(path)
			if (statErr == nil) != then.loggedIn {
				t.Errorf("session file: %v", statErr)
			}
		}
	}

	t.Run("password from flag", theory(
		When{flags: auth.Flags{Password: "pw"}},
		Then{password: "pw", stdout: "[SUCCESS] Login successful!", loggedIn: true},
	))
	t.Run("password from stdin", theory(
		When{stdin: "secret\nrest\n"},
		Then{password: "secret", stdout: "[SUCCESS] Login successful!", loggedIn: true},
	))
	t.Run("rejected", theory(
		When{flags: auth.Flags{Password: "pw"}, loginErr: errors.New("connection refused")},
		Then{password: "pw", stdout: "[ERROR] Login failed: connection refused", err: true},
	))
}

func TestRegister(t *testing.T) {
	ctx := testctx.WithTest(t)
	client := mock.New(t)
	client.Impl.Register = func(ctx context.Context, username, password string) (apiauth.RegisterResult, error) {
		return apiauth.RegisterResult{Message: "Registration successful"}, nil
	}
	store, _ := fixture.Anonymous(t, client)

	cl, stdout, _ := commandline.Capture(
		"chemviz register", auth.Flags{Password: "pw"},
		map[string][]string{auth.ARG_USERNAME: {"bob"}},
	)
	if err := auth.RegisterTask()(ctx, logger.Null(), store, client, cl, nil); err != nil {
		t.Fatal(err)
	}

	if got := client.Calls.Register; len(got) != 1 || got[0] != (mock.CredentialArgs{Username: "bob", Password: "pw"}) {
		t.Errorf("unexpected calls: %+v", got)
	}
	if !strings.Contains(stdout.String(), "[SUCCESS] Registration successful! Now login with your credentials.") {
		t.Errorf("unexpected stdout: %s", stdout)
	}
	if _, ok := store.Current(); ok {
		t.Error("registration logs in")
	}
}

func TestLogout(t *testing.T) {
	ctx := testctx.WithTest(t)
	client := mock.New(t)
	store, path := fixture.LoggedIn(t, client, "alice", "tok")

	cl, stdout, _ := commandline.Capture("chemviz logout", struct{}{}, nil)
	if err := auth.LogoutTask()(ctx, logger.Null(), store, client, cl, nil); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.Current(); ok {
		t.Error("still logged in")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("session file remains: %v", err)
	}
	if !strings.Contains(stdout.String(), "Logged out successfully") {
		t.Errorf("unexpected stdout: %s", stdout)
	}
}

func TestWhoami(t *testing.T) {
	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	token := try.To(
		jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		}).SignedString([]byte("key")),
	).OrFatal(t)

	t.Run("it shows the user and expiry", func(t *testing.T) {
		ctx := testctx.WithTest(t)
		client := mock.New(t)
		store, _ := fixture.LoggedIn(t, client, "alice", token)

		cl, stdout, _ := commandline.Capture("chemviz whoami", auth.WhoamiFlags{}, nil)
		if err := auth.WhoamiTask()(ctx, logger.Null(), store, client, cl, nil); err != nil {
			t.Fatal(err)
		}
		expected := "alice\nexpires at: " + exp.Local().Format(time.RFC3339) + "\n"
		if stdout.String() != expected {
			t.Errorf("stdout: actual = %q, expected = %q", stdout, expected)
		}
	})

	t.Run("it fails when not logged in", func(t *testing.T) {
		ctx := testctx.WithTest(t)
		client := mock.New(t)
		store, _ := fixture.Anonymous(t, client)

		cl, _, _ := commandline.Capture("chemviz whoami", auth.WhoamiFlags{}, nil)
		err := auth.WhoamiTask()(ctx, logger.Null(), store, client, cl, nil)
		if !errors.Is(err, session.ErrNotAuthenticated) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("--verify discards rejected credential", func(t *testing.T) {
		ctx := testctx.WithTest(t)
		client := mock.New(t)
		client.Impl.ListDatasets = func(ctx context.Context, token string) ([]apidatasets.Dataset, error) {
			return nil, rest.ErrUnauthorized
		}
		store, path := fixture.LoggedIn(t, client, "alice", token)

		cl, stdout, _ := commandline.Capture("chemviz whoami", auth.WhoamiFlags{Verify: true}, nil)
		err := auth.WhoamiTask()(ctx, logger.Null(), store, client, cl, nil)
		if !errors.Is(err, rest.ErrUnauthorized) {
			t.Errorf("unexpected error: %v", err)
		}
		if stdout.Len() != 0 {
			t.Errorf("unexpected stdout: %s", stdout)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("session file remains: %v", err)
		}
	})
}
