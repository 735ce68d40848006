package dashboard_test

import (
	"bytes"
	"image"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	prof "github.com/opst/chemviz/cmd/chemviz/config/profiles"
	"github.com/opst/chemviz/cmd/chemviz/dashboard"
	"github.com/opst/chemviz/cmd/chemviz/rest"
	"github.com/opst/chemviz/cmd/chemviz/session"
	"github.com/opst/chemviz/cmd/chemviz/subcommands/logger"
	"github.com/opst/chemviz/internal/testutils/backend"
	testctx "github.com/opst/chemviz/internal/testutils/context"
	apidatasets "github.com/opst/chemviz/pkg/api/types/datasets"
	apierr "github.com/opst/chemviz/pkg/api/types/errors"
	"github.com/opst/chemviz/pkg/utils/try"
)

func fakeChart(apidatasets.Dataset) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, image.NewGray(image.Rect(0, 0, 40, 20))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type env struct {
	backend     *backend.Backend
	client      rest.ChemvizClient
	sessionPath string
	exportDir   string
}

func setup(t *testing.T) env {
	t.Helper()
	b := backend.Start(t)
	b.AddUser("alice", "pw")
	b.AddDataset("alice", apidatasets.Dataset{Id: 1, Filename: "first.csv", TotalEquipment: 2})
	b.AddDataset("alice", apidatasets.Dataset{
		Id: 2, Filename: "second.csv", TotalEquipment: 3,
		AverageFlowrate: 100.5, AveragePressure: 5, AverageTemperature: 110,
		TypeDistribution: apidatasets.TypeDistribution{{Type: "Pump", Count: 2}, {Type: "Valve", Count: 1}},
	})

	client := try.To(rest.NewClient(&prof.Profile{ApiRoot: b.ApiRoot})).OrFatal(t)
	return env{
		backend:     b,
		client:      client,
		sessionPath: filepath.Join(t.TempDir(), "session"),
		exportDir:   t.TempDir(),
	}
}

// run starts a dashboard on the restored session and feeds commands.
func (e env) run(t *testing.T, commands ...string) string {
	t.Helper()
	store := session.New(e.sessionPath, e.client, logger.Null())
	if _, err := store.Restore(); err != nil {
		t.Fatal(err)
	}

	out := new(bytes.Buffer)
	testee := dashboard.New(
		store, e.client, out, logger.Null(),
		dashboard.WithExportDir(e.exportDir),
		dashboard.WithRenderer(fakeChart),
		dashboard.WithoutPrompt(),
	)
	in := strings.NewReader(strings.Join(commands, "\n") + "\n")
	if err := testee.Run(testctx.WithTest(t), in); err != nil {
		t.Fatal(err)
	}
	return out.String()
}

// countLines counts lines of output which are exactly line.
func countLines(output string, line string) int {
	n := 0
	for _, l := range strings.Split(output, "\n") {
		if l == line {
			n += 1
		}
	}
	return n
}

func assertContains(t *testing.T, output string, expected ...string) {
	t.Helper()
	for _, s := range expected {
		if !strings.Contains(output, s) {
			t.Errorf("%q is missing in output:\n%s", s, output)
		}
	}
}

func TestDashboard_scenario(t *testing.T) {
	e := setup(t)
	output := e.run(t,
		"login alice pw",
		"analyze 2",
		"state",
		"close analysis",
		"state",
		"quit",
		"state", // never reached
	)

	assertContains(t, output,
		"not logged in",
		"[SUCCESS] Login successful!",
		"first.csv", "second.csv",
		"Analysis Results: second.csv",
	)

	analyzing := strings.Index(output, "Analyzing(2)\n")
	idle := strings.LastIndex(output, "Idle\n")
	if analyzing < 0 || idle < analyzing {
		t.Errorf("unexpected transitions:\n%s", output)
	}
	if n := countLines(output, "Idle"); n != 1 {
		t.Errorf("commands after quit are run: %d", n)
	}

	// reload: the session survives
	store := session.New(e.sessionPath, e.client, logger.Null())
	who := try.To(store.Restore()).OrFatal(t)
	if who == nil || who.Username != "alice" {
		t.Errorf("unexpected identity: %+v", who)
	}
}

func TestDashboard_startup(t *testing.T) {
	t.Run("a valid session is kept and datasets are shown", func(t *testing.T) {
		e := setup(t)
		token := try.To(e.backend.Token("alice", time.Hour)).OrFatal(t)
		content := "authToken: " + token + "\nusername: alice\n"
		if err := os.WriteFile(e.sessionPath, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		output := e.run(t, "whoami")
		assertContains(t, output, "logged in as alice", "second.csv")
	})

	t.Run("a rejected session is discarded", func(t *testing.T) {
		e := setup(t)
		if err := os.WriteFile(e.sessionPath, []byte("authToken: broken\nusername: alice\n"), 0600); err != nil {
			t.Fatal(err)
		}

		output := e.run(t, "list")
		assertContains(t, output, "session has expired", "[ERROR] Please login first")
		if _, err := os.Stat(e.sessionPath); !os.IsNotExist(err) {
			t.Errorf("session file is not removed: %v", err)
		}
	})
}

func TestDashboard_upload(t *testing.T) {
	e := setup(t)
	dir := t.TempDir()
	csv := filepath.Join(dir, "plant.csv")
	content := "Equipment Name,Type,Flowrate,Pressure,Temperature\n" +
		"P-1,Pump,120,5.2,110\n" +
		"V-1,Valve,60,4.1,105\n"
	if err := os.WriteFile(csv, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	output := e.run(t,
		"login alice pw",
		"upload "+filepath.Join(dir, "data.txt"),
		"upload",
		"upload "+csv,
	)

	assertContains(t, output,
		"[ERROR] Please upload a CSV file",
		"[ERROR] Please select a file",
		"[SUCCESS] File uploaded successfully!",
		"plant.csv",
	)
	if calls := e.backend.CallsTo(http.MethodPost, "/api/equipment/upload/"); len(calls) != 1 {
		t.Errorf("upload requests: %d", len(calls))
	}
}

func TestDashboard_uploadButReloadFails(t *testing.T) {
	e := setup(t)
	var lists atomic.Int32
	e.backend.Override(http.MethodGet, "/api/equipment/datasets/", func(c echo.Context) error {
		if lists.Add(1) == 1 {
			return c.JSON(http.StatusOK, []apidatasets.Dataset{})
		}
		return apierr.NewErrorMessage(http.StatusInternalServerError, "db down")
	})
	csv := filepath.Join(t.TempDir(), "data.csv")
	content := "Equipment Name,Type,Flowrate,Pressure,Temperature\n" +
		"P-1,Pump,120,5.2,110\n"
	if err := os.WriteFile(csv, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	output := e.run(t, "login alice pw", "upload "+csv)

	assertContains(t, output,
		"[SUCCESS] File uploaded successfully!",
		"[ERROR] Error loading datasets: ",
	)
	if strings.Contains(output, "Upload failed") {
		t.Errorf("upload is reported as failed:\n%s", output)
	}
	if calls := e.backend.CallsTo(http.MethodPost, "/api/equipment/upload/"); len(calls) != 1 {
		t.Errorf("upload requests: %d", len(calls))
	}
}

func TestDashboard_loginWhileLoggedIn(t *testing.T) {
	e := setup(t)
	e.backend.AddUser("bob", "pw")
	output := e.run(t,
		"login alice pw",
		"analyze 2",
		"login bob pw",
		"register carol pw",
		"whoami",
		"state",
	)

	assertContains(t, output, "[ERROR] Already logged in as alice. Logout first")
	if countLines(output, "alice") != 1 || countLines(output, "Analyzing(2)") != 1 {
		t.Errorf("identity or view is changed:\n%s", output)
	}
	if calls := e.backend.CallsTo(http.MethodPost, "/api/auth/login/"); len(calls) != 1 {
		t.Errorf("login requests: %d", len(calls))
	}
	if calls := e.backend.CallsTo(http.MethodPost, "/api/auth/register/"); len(calls) != 0 {
		t.Errorf("register requests: %d", len(calls))
	}
}

func TestDashboard_export(t *testing.T) {
	e := setup(t)
	output := e.run(t,
		"login alice pw",
		"analyze 2",
		"export 2",
		"export 9",
	)

	assertContains(t, output,
		"[INFO] Generating PDF...",
		"[SUCCESS] PDF exported successfully!",
		"[ERROR] Error exporting PDF: ",
	)
	report := try.To(os.ReadFile(filepath.Join(e.exportDir, "dataset-2-report.pdf"))).OrFatal(t)
	if !bytes.HasPrefix(report, []byte("%PDF-")) {
		t.Error("not a pdf")
	}
}

func TestDashboard_views(t *testing.T) {
	e := setup(t)
	output := e.run(t,
		"login alice pw",
		"table 1",
		"close analysis",
		"state",
		"analyze 42",
		"state",
		"close table",
		"state",
	)

	assertContains(t, output,
		"Data Table: first.csv",
		"invalid transition",
		"ViewingTable(1)\n",
		"[ERROR] dataset not found",
	)
	if n := countLines(output, "ViewingTable(1)"); n != 2 {
		t.Errorf("state is changed by failures:\n%s", output)
	}
	if !strings.HasSuffix(output, "Idle\n") {
		t.Errorf("table is not closed:\n%s", output)
	}
}

func TestDashboard_forcedLogout(t *testing.T) {
	t.Run("a credential rejected in operation logs out", func(t *testing.T) {
		e := setup(t)
		e.backend.Override(http.MethodGet, "/api/equipment/summary/", func(c echo.Context) error {
			return apierr.NewErrorDetail(http.StatusUnauthorized, "Given token not valid for any token type")
		})

		output := e.run(t, "login alice pw", "analyze 2", "summary", "state")
		assertContains(t, output,
			"[ERROR] Error loading summary: ",
			"[ERROR] Please login first",
		)
		if _, err := os.Stat(e.sessionPath); !os.IsNotExist(err) {
			t.Errorf("session file is not removed: %v", err)
		}
	})

	t.Run("a session rejected after restart is discarded", func(t *testing.T) {
		e := setup(t)
		output := e.run(t, "login alice pw")
		assertContains(t, output, "[SUCCESS] Login successful!")

		e.backend.RotateKey()
		output = e.run(t, "list")
		assertContains(t, output, "session has expired", "[ERROR] Please login first")
	})
}

func TestDashboard_beforeLogin(t *testing.T) {
	e := setup(t)
	output := e.run(t, "list", "frobnicate", "login alice", "login alice wrong")
	assertContains(t, output,
		"[ERROR] Please login first",
		"unknown command: frobnicate",
		"usage: login USERNAME PASSWORD",
		"[ERROR] Invalid credentials",
	)
	if calls := e.backend.CallsTo(http.MethodGet, "/api/equipment/datasets/"); len(calls) != 0 {
		t.Errorf("datasets are requested before login: %d", len(calls))
	}
}

func TestDashboard_summaryAndRemove(t *testing.T) {
	e := setup(t)
	output := e.run(t,
		"login alice pw",
		"analyze 1",
		"rm 1",
		"state",
		"summary",
	)
	assertContains(t, output, "[SUCCESS] Dataset 1 deleted", "Idle\n")
	if calls := e.backend.CallsTo(http.MethodDelete, "/api/equipment/datasets/:id/"); len(calls) != 1 {
		t.Errorf("delete requests: %d", len(calls))
	}
	if calls := e.backend.CallsTo(http.MethodGet, "/api/equipment/summary/"); len(calls) != 1 {
		t.Errorf("summary requests: %d", len(calls))
	}
}
