package version_test

import (
	"testing"

	"github.com/opst/chemviz/cmd/chemviz/subcommands/internal/commandline"
	"github.com/opst/chemviz/cmd/chemviz/subcommands/version"
	testctx "github.com/opst/chemviz/internal/testutils/context"
	"github.com/opst/chemviz/pkg/buildtime"
)

func TestVersion(t *testing.T) {
	if _, err := version.New(); err != nil {
		t.Fatal(err)
	}

	cl, stdout, _ := commandline.Capture("chemviz version", struct{}{}, nil)
	if err := version.Task(testctx.WithTest(t), cl, nil); err != nil {
		t.Fatal(err)
	}
	if got := stdout.String(); got != buildtime.VersionString()+"\n" {
		t.Errorf("unexpected version: %q", got)
	}
}
