// Package backend is an in-memory stand-in of the Chemical Equipment
// Visualizer backend for tests.
//
// It serves the same routes, status codes and error bodies as the real one
// and issues HS256 signed JWTs.
package backend

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	apiauth "github.com/opst/chemviz/pkg/api/types/auth"
	apidatasets "github.com/opst/chemviz/pkg/api/types/datasets"
	apierr "github.com/opst/chemviz/pkg/api/types/errors"
)

const API_ROOT = "/api"

// MaxDatasets is the number of datasets kept per user. Older ones are dropped on upload.
const MaxDatasets = 5

func api(subpath string) string {
	if !strings.HasSuffix(subpath, "/") {
		subpath += "/"
	}
	return fmt.Sprintf("%s/%s", API_ROOT, subpath)
}

// Call is a request received by the backend.
type Call struct {
	Method string

	// Route is the registered path, like "/api/equipment/datasets/:id/".
	Route string

	Authorization string
	RequestId     string
}

type Backend struct {
	// ApiRoot is the URL to be set to a profile.
	ApiRoot string

	e   *echo.Echo
	srv *httptest.Server

	m        sync.Mutex
	key      []byte
	users    map[string]string
	datasets map[string][]apidatasets.Dataset
	nextId   int
	calls    []Call
	override map[string]echo.HandlerFunc
}

// Start runs a new backend until the test ends.
func Start(t *testing.T) *Backend {
	t.Helper()

	b := &Backend{
		key:      []byte(uuid.NewString()),
		users:    map[string]string{},
		datasets: map[string][]apidatasets.Dataset{},
		nextId:   1,
		override: map[string]echo.HandlerFunc{},
	}
	b.e = b.build()
	b.srv = httptest.NewServer(b.e)
	b.ApiRoot = b.srv.URL + API_ROOT
	t.Cleanup(b.srv.Close)
	return b
}

func (b *Backend) build() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Pre(middleware.AddTrailingSlash())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			key := req.Method + " " + c.Path()

			b.m.Lock()
			b.calls = append(b.calls, Call{
				Method:        req.Method,
				Route:         c.Path(),
				Authorization: req.Header.Get("Authorization"),
				RequestId:     req.Header.Get("X-Request-Id"),
			})
			h, overridden := b.override[key]
			b.m.Unlock()

			if overridden {
				return h(c)
			}
			return next(c)
		}
	})

	e.POST(api("auth/register"), b.register)
	e.POST(api("auth/login"), b.login)

	e.GET(api("equipment/datasets"), b.listDatasets, b.authenticate)
	e.GET(api("equipment/datasets/:id"), b.getDataset, b.authenticate)
	e.DELETE(api("equipment/datasets/:id"), b.deleteDataset, b.authenticate)
	e.GET(api("equipment/datasets/:id/export-pdf"), b.exportPDF, b.authenticate)
	e.POST(api("equipment/upload"), b.upload, b.authenticate)
	e.GET(api("equipment/summary"), b.summary, b.authenticate)

	return e
}

// Override replaces the handler of a route, like ("GET", "/api/equipment/datasets/").
//
// Requests to the route are still recorded in Calls.
func (b *Backend) Override(method string, route string, h echo.HandlerFunc) {
	b.m.Lock()
	defer b.m.Unlock()
	b.override[method+" "+route] = h
}

// Calls returns requests received so far.
func (b *Backend) Calls() []Call {
	b.m.Lock()
	defer b.m.Unlock()
	return slices.Clone(b.calls)
}

// CallsTo returns requests received so far for the route.
func (b *Backend) CallsTo(method string, route string) []Call {
	ret := []Call{}
	for _, c := range b.Calls() {
		if c.Method == method && c.Route == route {
			ret = append(ret, c)
		}
	}
	return ret
}

// AddUser registers a user as the register endpoint does.
func (b *Backend) AddUser(username, password string) {
	b.m.Lock()
	defer b.m.Unlock()
	b.users[username] = password
}

// AddDataset stores a dataset for the user as if it were uploaded now.
//
// The id is assigned by the backend if ds.Id is zero. It returns the stored dataset.
func (b *Backend) AddDataset(username string, ds apidatasets.Dataset) apidatasets.Dataset {
	b.m.Lock()
	defer b.m.Unlock()
	return b.addDataset(username, ds)
}

func (b *Backend) addDataset(username string, ds apidatasets.Dataset) apidatasets.Dataset {
	if ds.Id == 0 {
		ds.Id = b.nextId
	}
	if b.nextId <= ds.Id {
		b.nextId = ds.Id + 1
	}
	if ds.UploadedAt.IsZero() {
		ds.UploadedAt = time.Now()
	}

	// newest first
	list := append([]apidatasets.Dataset{ds}, b.datasets[username]...)
	if MaxDatasets < len(list) {
		list = list[:MaxDatasets]
	}
	b.datasets[username] = list
	return ds
}

// RemoveDataset drops a dataset as if it were deleted by another client.
func (b *Backend) RemoveDataset(username string, id int) {
	b.m.Lock()
	defer b.m.Unlock()
	b.datasets[username] = slices.DeleteFunc(
		b.datasets[username],
		func(d apidatasets.Dataset) bool { return d.Id == id },
	)
}

// RotateKey makes all tokens issued so far invalid.
func (b *Backend) RotateKey() {
	b.m.Lock()
	defer b.m.Unlock()
	b.key = []byte(uuid.NewString())
}

// Token issues an access token for the user, like login does.
func (b *Backend) Token(username string, ttl time.Duration) (string, error) {
	b.m.Lock()
	defer b.m.Unlock()
	return b.issue(username, "access", ttl)
}

type claims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

func (b *Backend) issue(username string, typ string, ttl time.Duration) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})
	return tok.SignedString(b.key)
}

func (b *Backend) register(c echo.Context) error {
	cred := apiauth.Credentials{}
	if err := c.Bind(&cred); err != nil {
		return apierr.BadRequest("POST required")
	}

	b.m.Lock()
	defer b.m.Unlock()
	if _, ok := b.users[cred.Username]; ok {
		return apierr.BadRequest("User already exists")
	}
	b.users[cred.Username] = cred.Password
	return c.JSON(http.StatusCreated, apiauth.RegisterResult{Message: "Registration successful"})
}

func (b *Backend) login(c echo.Context) error {
	cred := apiauth.Credentials{}
	if err := c.Bind(&cred); err != nil {
		return apierr.BadRequest("POST required")
	}

	b.m.Lock()
	defer b.m.Unlock()
	if pw, ok := b.users[cred.Username]; !ok || pw != cred.Password {
		return apierr.NewErrorMessage(http.StatusUnauthorized, "Invalid credentials")
	}

	access, err := b.issue(cred.Username, "access", 5*time.Minute)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
	}
	refresh, err := b.issue(cred.Username, "refresh", 24*time.Hour)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
	}
	return c.JSON(http.StatusOK, apiauth.LoginResult{
		Message:  "Login successful",
		Access:   access,
		Refresh:  refresh,
		Username: cred.Username,
	})
}

const userKey = "user"

func (b *Backend) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := c.Request().Header.Get("Authorization")
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok {
			return apierr.NewErrorDetail(
				http.StatusUnauthorized, "Authentication credentials were not provided.",
			)
		}

		b.m.Lock()
		key := b.key
		b.m.Unlock()

		cl := &claims{}
		_, err := jwt.ParseWithClaims(
			token, cl,
			func(t *jwt.Token) (any, error) { return key, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		)
		if err != nil || cl.TokenType != "access" {
			return apierr.Unauthorized()
		}

		c.Set(userKey, cl.Subject)
		return next(c)
	}
}

func userOf(c echo.Context) string {
	u, _ := c.Get(userKey).(string)
	return u
}

func (b *Backend) listDatasets(c echo.Context) error {
	b.m.Lock()
	defer b.m.Unlock()

	list := slices.Clone(b.datasets[userOf(c)])
	if list == nil {
		list = []apidatasets.Dataset{}
	}
	return c.JSON(http.StatusOK, list)
}

func (b *Backend) find(c echo.Context) (apidatasets.Dataset, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return apidatasets.Dataset{}, apierr.NotFound("Dataset not found")
	}
	for _, d := range b.datasets[userOf(c)] {
		if d.Id == id {
			return d, nil
		}
	}
	return apidatasets.Dataset{}, apierr.NotFound("Dataset not found")
}

func (b *Backend) getDataset(c echo.Context) error {
	b.m.Lock()
	defer b.m.Unlock()

	d, err := b.find(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

// exportPDF responds a minimal PDF naming the dataset.
func (b *Backend) exportPDF(c echo.Context) error {
	b.m.Lock()
	defer b.m.Unlock()

	d, err := b.find(c)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("%%PDF-1.4\n%% report of %s\n%%%%EOF\n", d.Filename)
	return c.Blob(http.StatusOK, "application/pdf", []byte(body))
}

func (b *Backend) deleteDataset(c echo.Context) error {
	b.m.Lock()
	defer b.m.Unlock()

	d, err := b.find(c)
	if err != nil {
		return err
	}
	user := userOf(c)
	b.datasets[user] = slices.DeleteFunc(
		b.datasets[user],
		func(x apidatasets.Dataset) bool { return x.Id == d.Id },
	)
	return c.NoContent(http.StatusNoContent)
}

func (b *Backend) upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return apierr.NewErrorDetail(http.StatusBadRequest, "No file was submitted.")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
	}
	defer f.Close()

	ds, err := summarize(f)
	if err != nil {
		return apierr.BadRequest(fmt.Sprintf("Failed to process CSV: %s", err))
	}
	ds.Filename = fh.Filename

	b.m.Lock()
	defer b.m.Unlock()
	b.addDataset(userOf(c), ds)

	return c.JSON(http.StatusCreated, apidatasets.UploadResult{
		TotalEquipment:     ds.TotalEquipment,
		AverageFlowrate:    ds.AverageFlowrate,
		AveragePressure:    ds.AveragePressure,
		AverageTemperature: ds.AverageTemperature,
		TypeDistribution:   ds.TypeDistribution,
	})
}

var requiredColumns = []string{"Type", "Flowrate", "Pressure", "Temperature"}

// summarize computes statistics of equipment CSV.
//
// Averages are rounded to 2 decimals. Types are ordered by count, descending.
func summarize(r io.Reader) (apidatasets.Dataset, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return apidatasets.Dataset{}, err
	}
	if len(records) == 0 {
		return apidatasets.Dataset{}, errors.New("No columns to parse from file")
	}

	col := map[string]int{}
	for i, name := range records[0] {
		col[strings.TrimSpace(name)] = i
	}
	for _, name := range requiredColumns {
		if _, ok := col[name]; !ok {
			return apidatasets.Dataset{}, fmt.Errorf(
				"CSV must contain columns: %s", strings.Join(requiredColumns, ", "),
			)
		}
	}

	rows := records[1:]
	sums := map[string]float64{}
	dist := apidatasets.TypeDistribution{}
	for _, row := range rows {
		for _, name := range requiredColumns[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[col[name]]), 64)
			if err != nil {
				return apidatasets.Dataset{}, fmt.Errorf("%s: %w", name, err)
			}
			sums[name] += v
		}
		typ := strings.TrimSpace(row[col["Type"]])
		if i := slices.IndexFunc(dist, func(tc apidatasets.TypeCount) bool { return tc.Type == typ }); 0 <= i {
			dist[i].Count += 1
		} else {
			dist = append(dist, apidatasets.TypeCount{Type: typ, Count: 1})
		}
	}
	slices.SortStableFunc(dist, func(a, b apidatasets.TypeCount) int { return b.Count - a.Count })

	avg := func(name string) float64 {
		if len(rows) == 0 {
			return 0
		}
		return math.Round(sums[name]/float64(len(rows))*100) / 100
	}

	return apidatasets.Dataset{
		TotalEquipment:     len(rows),
		AverageFlowrate:    avg("Flowrate"),
		AveragePressure:    avg("Pressure"),
		AverageTemperature: avg("Temperature"),
		TypeDistribution:   dist,
	}, nil
}

func (b *Backend) summary(c echo.Context) error {
	b.m.Lock()
	defer b.m.Unlock()

	list := b.datasets[userOf(c)]
	s := apidatasets.Summary{
		DatasetsCount:    len(list),
		TypeDistribution: apidatasets.TypeDistribution{},
	}
	if len(list) == 0 {
		return c.JSON(http.StatusOK, s)
	}

	var flow, pres, temp float64
	for _, d := range list {
		s.TotalEquipment += d.TotalEquipment
		w := float64(d.TotalEquipment)
		flow += d.AverageFlowrate * w
		pres += d.AveragePressure * w
		temp += d.AverageTemperature * w
		for _, tc := range d.TypeDistribution {
			i := slices.IndexFunc(s.TypeDistribution, func(x apidatasets.TypeCount) bool { return x.Type == tc.Type })
			if i < 0 {
				s.TypeDistribution = append(s.TypeDistribution, tc)
				continue
			}
			s.TypeDistribution[i].Count += tc.Count
		}
	}
	// averages are weighted by the number of equipment
	s.TotalCount = len(list)
	if 0 < s.TotalEquipment {
		n := float64(s.TotalEquipment)
		s.AverageFlowrate = math.Round(flow/n*100) / 100
		s.AveragePressure = math.Round(pres/n*100) / 100
		s.AverageTemperature = math.Round(temp/n*100) / 100
	}
	return c.JSON(http.StatusOK, s)
}

// Close stops the backend. Following requests fail with transport errors.
func (b *Backend) Close() {
	b.srv.Close()
}
