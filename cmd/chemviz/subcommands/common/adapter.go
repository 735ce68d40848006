package common

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/opst/chemviz/cmd/chemviz/config/profiles"
	"github.com/opst/chemviz/cmd/chemviz/rest"
	"github.com/opst/chemviz/cmd/chemviz/session"
	"github.com/opst/chemviz/cmd/chemviz/subcommands/logger"
	"github.com/youta-t/flarc"
)

type TaskWithCommonFlag[T any] func(
	ctx context.Context,
	logger *log.Logger,
	commonFlag CommonFlags,
	cl flarc.Commandline[T],
	params []any,
) error

func NewTaskWithCommonFlag[T any](task TaskWithCommonFlag[T]) flarc.Task[T] {
	return func(ctx context.Context, cl flarc.Commandline[T], pos []any) error {
		var commonFlag CommonFlags
		found := false
		newpos := make([]any, 0, len(pos))
		for _, p := range pos {
			switch v := p.(type) {
			case CommonFlags:
				found = true
				commonFlag = v
			default:
				newpos = append(newpos, p)
			}
		}
		if !found {
			return errors.New("programming error: common flags not found")
		}

		return task(
			ctx,
			logger.For(cl.Stderr(), cl.Fullname()),
			commonFlag,
			cl,
			newpos,
		)
	}
}

// Task is a command body which talks to the backend.
//
// The session store is restored from the session file before the task runs.
// It may be unauthenticated.
type Task[T any] func(
	ctx context.Context,
	logger *log.Logger,
	store *session.Store,
	client rest.ChemvizClient,
	cl flarc.Commandline[T],
	params []any,
) error

// LoadProfile returns the profile in use.
//
// If the profile store does not exist, the default profile is used.
func LoadProfile(commonFlag CommonFlags) (*profiles.Profile, error) {
	store, err := profiles.LoadProfileStore(commonFlag.ProfileStore)
	if err != nil {
		if errors.Is(err, profiles.ErrProfileStoreNotFound) {
			return profiles.Default(), nil
		}
		return nil, fmt.Errorf(
			"%w: failed to load chemviz profile store (%s)",
			err, commonFlag.ProfileStore,
		)
	}
	prof, ok := store[commonFlag.Profile]
	if !ok {
		if commonFlag.Profile == DefaultProfile {
			return profiles.Default(), nil
		}
		return nil, fmt.Errorf(
			"profile '%s' not found in the profile store (%s). Please try `chemviz init` first",
			commonFlag.Profile, commonFlag.ProfileStore,
		)
	}
	return prof, nil
}

func NewTask[T any](task Task[T]) flarc.Task[T] {
	return NewTaskWithCommonFlag(func(
		ctx context.Context,
		logger *log.Logger,
		commonFlag CommonFlags,
		cl flarc.Commandline[T],
		params []any,
	) error {
		prof, err := LoadProfile(commonFlag)
		if err != nil {
			return err
		}

		client, err := rest.NewClient(prof)
		if err != nil {
			return fmt.Errorf(
				"%w: failed to create chemviz client. Your profile (%s in %s) can be broken.\n\nRemove it and try `chemviz init` again",
				err, commonFlag.Profile, commonFlag.ProfileStore,
			)
		}

		store := session.New(commonFlag.Session, client, logger)
		if _, err := store.Restore(); err != nil {
			return fmt.Errorf("%w: failed to load session (%s)", err, commonFlag.Session)
		}
		return task(ctx, logger, store, client, cl, params)
	})
}

// RequireLogin returns the identity, or an error telling to login.
func RequireLogin(store *session.Store) (session.Identity, error) {
	who, ok := store.Current()
	if !ok {
		return session.Identity{}, fmt.Errorf("%w. Please try `chemviz login` first", session.ErrNotAuthenticated)
	}
	return who, nil
}

// DatasetId reads a dataset id from the argument.
func DatasetId[T any](cl flarc.Commandline[T], arg string) (int, error) {
	v := cl.Args()[arg]
	if len(v) == 0 {
		return 0, fmt.Errorf("%w: %s is required", flarc.ErrUsage, arg)
	}
	id, err := strconv.Atoi(v[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %s should be a number: %s", flarc.ErrUsage, arg, v[0])
	}
	return id, nil
}
