package analyze_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opst/chemviz/cmd/chemviz/registry"
	"github.com/opst/chemviz/cmd/chemviz/rest/mock"
	dataset_analyze "github.com/opst/chemviz/cmd/chemviz/subcommands/dataset/analyze"
	"github.com/opst/chemviz/cmd/chemviz/subcommands/internal/commandline"
	"github.com/opst/chemviz/cmd/chemviz/subcommands/internal/fixture"
	"github.com/opst/chemviz/cmd/chemviz/subcommands/logger"
	testctx "github.com/opst/chemviz/internal/testutils/context"
	apidatasets "github.com/opst/chemviz/pkg/api/types/datasets"
	"github.com/opst/chemviz/pkg/utils/try"
)

func fakeRender(d apidatasets.Dataset) ([]byte, error) {
	return []byte("png of " + d.Filename), nil
}

func TestAnalyze(t *testing.T) {
	type When struct {
		id     string
		charts bool
	}
	type Then struct {
		err    error
		stdout string
		stderr string
		chart  string
	}

	theory := func(when When, then Then) func(*testing.T) {
		return func(t *testing.T) {
			ctx := testctx.WithTest(t)
			client := mock.New(t)
			client.Impl.ListDatasets = func(ctx context.Context, token string) ([]apidatasets.Dataset, error) {
				return []apidatasets.Dataset{
					{
						Id: 2, Filename: "second.csv", TotalEquipment: 3, AverageFlowrate: 100.5,
						TypeDistribution: apidatasets.TypeDistribution{{Type: "Pump", Count: 3}},
					},
				}, nil
			}
			store, _ := fixture.LoggedIn(t, client, "alice", "tok")

			out := t.TempDir()
			cl, stdout, stderr := commandline.Capture(
				"chemviz dataset analyze",
				dataset_analyze.Flags{Out: out, Charts: when.charts},
				map[string][]string{dataset_analyze.ARG_DATASET_ID: {when.id}},
			)
			err := dataset_analyze.Task(fakeRender)(ctx, logger.Null(), store, client, cl, nil)
			if then.err == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			} else if !errors.Is(err, then.err) {
				t.Errorf("unexpected error: %v", err)
			}

			if !strings.Contains(stdout.String(), then.stdout) {
				t.Errorf("stdout:\n%s", stdout)
			}
			if !strings.Contains(stderr.String(), then.stderr) {
				t.Errorf("stderr:\n%s", stderr)
			}

			entries := try.To(os.ReadDir(out)).OrFatal(t)
			if then.chart == "" {
				if len(entries) != 0 {
					t.Errorf("unexpected files: %v", entries)
				}
				return
			}
			content := try.To(os.ReadFile(filepath.Join(out, dataset_analyze.ChartFileName(2)))).OrFatal(t)
			if string(content) != then.chart {
				t.Errorf("unexpected chart: %s", content)
			}
		}
	}

	t.Run("it shows analysis and saves charts", theory(
		When{id: "2", charts: true},
		Then{
			stdout: "Analysis Results: second.csv",
			chart:  "png of second.csv",
		},
	))
	t.Run("--charts=false saves nothing", theory(
		When{id: "2", charts: false},
		Then{stdout: "Equipment Type Details"},
	))
	t.Run("missing dataset", theory(
		When{id: "7", charts: true},
		Then{err: registry.ErrDatasetNotFound, stderr: "[ERROR] dataset not found"},
	))
}

func TestChartFileName(t *testing.T) {
	if got := dataset_analyze.ChartFileName(5); got != "dataset-5-charts.png" {
		t.Errorf("unexpected name: %s", got)
	}
}
