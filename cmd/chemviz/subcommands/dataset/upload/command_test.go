package upload_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opst/chemviz/cmd/chemviz/registry"
	"github.com/opst/chemviz/cmd/chemviz/rest"
	"github.com/opst/chemviz/cmd/chemviz/rest/mock"
	dataset_upload "github.com/opst/chemviz/cmd/chemviz/subcommands/dataset/upload"
	"github.com/opst/chemviz/cmd/chemviz/subcommands/internal/commandline"
	"github.com/opst/chemviz/cmd/chemviz/subcommands/internal/fixture"
	"github.com/opst/chemviz/cmd/chemviz/subcommands/logger"
	testctx "github.com/opst/chemviz/internal/testutils/context"
	apidatasets "github.com/opst/chemviz/pkg/api/types/datasets"
	"github.com/youta-t/flarc"
)

func TestUpload(t *testing.T) {
	t.Run("it uploads CSV files one by one and prints results", func(t *testing.T) {
		ctx := testctx.WithTest(t)
		dir := t.TempDir()
		a, b := filepath.Join(dir, "a.csv"), filepath.Join(dir, "b.csv")
		for _, p := range []string{a, b} {
			if err := os.WriteFile(p, []byte("Equipment Name,Type,Flowrate,Pressure,Temperature\n"), 0600); err != nil {
				t.Fatal(err)
			}
		}

		client := mock.New(t)
		client.Impl.UploadDataset = func(ctx context.Context, token string, source string) rest.Progress[*apidatasets.UploadResult] {
			return mock.Finished(&apidatasets.UploadResult{
				TotalEquipment:   1,
				TypeDistribution: apidatasets.TypeDistribution{{Type: "Pump", Count: 1}},
			}, nil)
		}
		client.Impl.ListDatasets = func(ctx context.Context, token string) ([]apidatasets.Dataset, error) {
			return []apidatasets.Dataset{}, nil
		}
		store, _ := fixture.LoggedIn(t, client, "alice", "tok")

		cl, stdout, _ := commandline.Capture(
			"chemviz dataset upload", struct{}{},
			map[string][]string{dataset_upload.ARG_SOURCE: {a, b}},
		)
		testee := dataset_upload.Task(io.Discard, 10*time.Millisecond)
		if err := testee(ctx, logger.Null(), store, client, cl, nil); err != nil {
			t.Fatal(err)
		}

		calls := client.Calls.UploadDataset
		if len(calls) != 2 || calls[0] != (mock.UploadDatasetArgs{Token: "tok", Source: a}) || calls[1].Source != b {
			t.Errorf("unexpected calls: %+v", calls)
		}
		if len(client.Calls.ListDatasets) != 2 {
			t.Errorf("datasets are not refreshed after each upload: %d", len(client.Calls.ListDatasets))
		}
		if n := strings.Count(stdout.String(), `"total_equipment": 1`); n != 2 {
			t.Errorf("unexpected stdout:\n%s", stdout)
		}
	})

	t.Run("non-CSV is rejected without any request", func(t *testing.T) {
		ctx := testctx.WithTest(t)
		client := mock.New(t)
		store, _ := fixture.LoggedIn(t, client, "alice", "tok")

		cl, _, _ := commandline.Capture(
			"chemviz dataset upload", struct{}{},
			map[string][]string{dataset_upload.ARG_SOURCE: {"ok.csv", "data.txt"}},
		)
		err := dataset_upload.Task(io.Discard, time.Millisecond)(ctx, logger.Null(), store, client, cl, nil)
		if !errors.Is(err, flarc.ErrUsage) || !errors.Is(err, registry.ErrNotCSV) {
			t.Errorf("unexpected error: %v", err)
		}
		if len(client.Calls.UploadDataset) != 0 {
			t.Errorf("upload is requested: %+v", client.Calls.UploadDataset)
		}
	})

	t.Run("a failure of reloading datasets does not fail the upload", func(t *testing.T) {
		ctx := testctx.WithTest(t)
		client := mock.New(t)
		client.Impl.UploadDataset = func(ctx context.Context, token string, source string) rest.Progress[*apidatasets.UploadResult] {
			return mock.Finished(&apidatasets.UploadResult{TotalEquipment: 1}, nil)
		}
		client.Impl.ListDatasets = func(ctx context.Context, token string) ([]apidatasets.Dataset, error) {
			return nil, errors.New("db down")
		}
		store, _ := fixture.LoggedIn(t, client, "alice", "tok")

		cl, stdout, _ := commandline.Capture(
			"chemviz dataset upload", struct{}{},
			map[string][]string{dataset_upload.ARG_SOURCE: {"a.csv", "b.csv"}},
		)
		if err := dataset_upload.Task(io.Discard, time.Millisecond)(ctx, logger.Null(), store, client, cl, nil); err != nil {
			t.Fatal(err)
		}
		if len(client.Calls.UploadDataset) != 2 {
			t.Errorf("upload stops: %+v", client.Calls.UploadDataset)
		}
		if n := strings.Count(stdout.String(), `"total_equipment": 1`); n != 2 {
			t.Errorf("unexpected stdout:\n%s", stdout)
		}
	})

	t.Run("rejected upload stops", func(t *testing.T) {
		ctx := testctx.WithTest(t)
		client := mock.New(t)
		expected := errors.New("fake error")
		client.Impl.UploadDataset = func(ctx context.Context, token string, source string) rest.Progress[*apidatasets.UploadResult] {
			return mock.Finished(nil, expected)
		}
		store, _ := fixture.LoggedIn(t, client, "alice", "tok")

		cl, stdout, _ := commandline.Capture(
			"chemviz dataset upload", struct{}{},
			map[string][]string{dataset_upload.ARG_SOURCE: {"a.csv", "b.csv"}},
		)
		err := dataset_upload.Task(io.Discard, time.Millisecond)(ctx, logger.Null(), store, client, cl, nil)
		if !errors.Is(err, expected) {
			t.Errorf("unexpected error: %v", err)
		}
		if len(client.Calls.UploadDataset) != 1 {
			t.Errorf("upload continues: %+v", client.Calls.UploadDataset)
		}
		if stdout.Len() != 0 {
			t.Errorf("unexpected stdout: %s", stdout)
		}
	})
}
