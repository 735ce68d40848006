package init_test

import (
	"os"
	"path/filepath"
	"testing"

	prof "github.com/opst/chemviz/cmd/chemviz/config/profiles"
	"github.com/opst/chemviz/cmd/chemviz/subcommands/common"
	subinit "github.com/opst/chemviz/cmd/chemviz/subcommands/init"
	"github.com/opst/chemviz/cmd/chemviz/subcommands/internal/commandline"
	"github.com/opst/chemviz/cmd/chemviz/subcommands/logger"
	testctx "github.com/opst/chemviz/internal/testutils/context"
	"github.com/opst/chemviz/pkg/utils/try"
)

func TestInit(t *testing.T) {
	t.Run("it saves the profile and marks the directory", func(t *testing.T) {
		ctx := testctx.WithTest(t)
		root := t.TempDir()
		profFile := filepath.Join(root, "lab.yaml")
		if err := os.WriteFile(profFile, []byte("apiRoot: https://lab.example.com/api\n"), 0600); err != nil {
			t.Fatal(err)
		}
		existing := prof.ProfileStore{"other": {ApiRoot: "https://other.example.com/api"}}
		storePath := filepath.Join(root, "home", ".chemviz", "profile")
		if err := existing.Save(storePath); err != nil {
			t.Fatal(err)
		}
		markerDir := filepath.Join(root, "work")
		if err := os.Mkdir(markerDir, 0700); err != nil {
			t.Fatal(err)
		}

		cl, _, _ := commandline.Capture(
			"chemviz init", struct{}{},
			map[string][]string{subinit.ARG_PROFILE_FILE: {profFile}},
		)
		cf := common.CommonFlags{Profile: "lab", ProfileStore: storePath}
		if err := subinit.Task(markerDir)(ctx, logger.Null(), cf, cl, nil); err != nil {
			t.Fatal(err)
		}

		store := try.To(prof.LoadProfileStore(storePath)).OrFatal(t)
		if p, ok := store["lab"]; !ok || p.ApiRoot != "https://lab.example.com/api" {
			t.Errorf("profile is not saved: %+v", store)
		}
		if _, ok := store["other"]; !ok {
			t.Errorf("other profile is lost: %+v", store)
		}

		found := try.To(common.Flags(markerDir, common.WithHome(filepath.Join(root, "home")))).OrFatal(t)
		if found.Profile != "lab" || found.ProfileStore != storePath {
			t.Errorf("unexpected flags: %+v", found)
		}
	})

	t.Run("invalid profile is not saved", func(t *testing.T) {
		ctx := testctx.WithTest(t)
		root := t.TempDir()
		profFile := filepath.Join(root, "broken.yaml")
		if err := os.WriteFile(profFile, []byte("apiRoot: not a url\n"), 0600); err != nil {
			t.Fatal(err)
		}
		storePath := filepath.Join(root, "profile")

		cl, _, _ := commandline.Capture(
			"chemviz init", struct{}{},
			map[string][]string{subinit.ARG_PROFILE_FILE: {profFile}},
		)
		cf := common.CommonFlags{Profile: "broken", ProfileStore: storePath}
		if err := subinit.Task(root)(ctx, logger.Null(), cf, cl, nil); err == nil {
			t.Fatal("expected error, but nil")
		}
		if _, err := os.Stat(storePath); !os.IsNotExist(err) {
			t.Errorf("profile store is written: %v", err)
		}
		if _, err := os.Stat(filepath.Join(root, common.ProfileMarker)); !os.IsNotExist(err) {
			t.Errorf("marker is written: %v", err)
		}
	})
}
