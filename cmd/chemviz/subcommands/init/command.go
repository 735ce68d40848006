package init

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	prof "github.com/opst/chemviz/cmd/chemviz/config/profiles"
	"github.com/opst/chemviz/cmd/chemviz/subcommands/common"
	"github.com/youta-t/flarc"
)

const ARG_PROFILE_FILE = "PROFILE_FILE"

type Option struct {
	markerDir string
}

// WithMarkerDir changes where .chemvizprofile is written. Default is the working directory.
func WithMarkerDir(dir string) func(*Option) *Option {
	return func(o *Option) *Option {
		o.markerDir = dir
		return o
	}
}

func New(options ...func(*Option) *Option) (flarc.Command, error) {
	option := &Option{markerDir: "."}
	for _, o := range options {
		option = o(option)
	}

	return flarc.NewCommand(
		"Register a chemviz profile, and use it in this directory.",
		struct{}{},
		flarc.Args{
			{
				Name: ARG_PROFILE_FILE, Required: true,
				Help: "filepath to a profile file, a YAML with apiRoot and (optional) cert.ca.",
			},
		},
		common.NewTaskWithCommonFlag(Task(option.markerDir)),
		flarc.WithDescription(`
Register a new profile into your profile store.

A profile tells which backend chemviz talks to.
"{{ .Command }}" registers the given profile into your profile store,
and writes ".chemvizprofile" so that commands in this directory use it.

The name of the profile is given by "--profile" ( default: "default" ).
`),
	)
}

func Task(markerDir string) common.TaskWithCommonFlag[struct{}] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		cf common.CommonFlags,
		cl flarc.Commandline[struct{}],
		params []any,
	) error {
		profFile := cl.Args()[ARG_PROFILE_FILE][0]

		profStore, err := prof.LoadProfileStore(cf.ProfileStore)
		if errors.Is(err, prof.ErrProfileStoreNotFound) {
			// ok.
			profStore = prof.ProfileStore{}
		} else if err != nil {
			logger.Printf("failed to load profile store (%s) : %s", cf.ProfileStore, err)
			return err
		}

		newProf := new(prof.Profile)
		{
			content, err := os.ReadFile(profFile)
			if err != nil {
				logger.Printf("failed to read profile file (%s) : %s", profFile, err)
				return err
			}
			if err := yaml.Unmarshal(content, newProf); err != nil {
				logger.Printf("failed to parse profile file (%s) : %s", profFile, err)
				return err
			}
		}
		if err := newProf.Verify(); err != nil {
			logger.Printf("%s: %s", profFile, err)
			return err
		}

		profStore[cf.Profile] = newProf
		if err := profStore.Save(cf.ProfileStore); err != nil {
			logger.Printf("failed to save profile store (%s) : %s", cf.ProfileStore, err)
			return err
		}
		logger.Printf("profile %s is saved to %s", cf.Profile, cf.ProfileStore)

		marker := filepath.Join(markerDir, common.ProfileMarker)
		if err := os.WriteFile(marker, []byte(cf.Profile+"\n"), os.FileMode(0600)); err != nil {
			logger.Printf("failed to write %s : %s", marker, err)
			return err
		}
		return nil
	}
}
