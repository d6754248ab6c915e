package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/star/skypass/internal/auth"
	"github.com/star/skypass/internal/config"
	"github.com/star/skypass/internal/passes"
	"github.com/star/skypass/internal/propagation"
	"github.com/star/skypass/internal/stream"
	"github.com/star/skypass/internal/tle"
	"github.com/star/skypass/internal/tracker"
)

const (
	issLine1 = "1 25544U 98067A   24079.12345678  .00016717  00000-0  10270-3 0  9005"
	issLine2 = "2 25544  51.6400 100.0000 0004000  90.0000 270.0000 15.50000000    09"

	// Within the element set's useful span.
	testStart = "2024-03-19T03:00:00Z"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testConfig() config.Config {
	return config.Config{
		Passes:      config.PassesConfig{MinElevation: 10, MaxHours: 48, MaxPasses: 3},
		Propagation: config.PropagationConfig{Workers: 2, Model: config.ModelKepler},
	}
}

type testEnv struct {
	store   *tle.Store
	tracker *tracker.Tracker
	srv     *httptest.Server
}

func newTestEnv(t *testing.T, cfg config.Config, loaded bool) *testEnv {
	t.Helper()
	logger := testLogger()

	store := tle.NewStore()
	if loaded {
		iss, err := tle.Parse("ISS (ZARYA)", issLine1, issLine2)
		if err != nil {
			t.Fatal(err)
		}
		store.Set(tle.NewCatalog("test", time.Now(), []tle.TLE{iss}))
	}

	tr := tracker.New(context.Background(), cfg.PassOptions(), cfg.ModelFactory(), logger)
	t.Cleanup(tr.Close)

	prop := propagation.NewPropagator(store, cfg.PropConfig(), logger)
	srv := httptest.NewServer(NewHandler(cfg, logger, Deps{
		Store:      store,
		Propagator: prop,
		Tracker:    tr,
		Stream:     stream.NewHandler(prop, store, stream.Config{MaxConcurrentPerIP: 2, KeepaliveInterval: time.Minute}, logger),
	}))
	t.Cleanup(srv.Close)

	return &testEnv{store: store, tracker: tr, srv: srv}
}

func (e *testEnv) do(t *testing.T, method, path string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, testConfig(), false)
	if code := env.do(t, "GET", "/healthz", nil); code != http.StatusOK {
		t.Errorf("/healthz = %d", code)
	}
	if code := env.do(t, "GET", "/readyz", nil); code != http.StatusServiceUnavailable {
		t.Errorf("/readyz without catalog = %d, want 503", code)
	}
	if code := env.do(t, "GET", "/metrics", nil); code != http.StatusOK {
		t.Errorf("/metrics = %d", code)
	}

	loaded := newTestEnv(t, testConfig(), true)
	if code := loaded.do(t, "GET", "/readyz", nil); code != http.StatusOK {
		t.Errorf("/readyz with catalog = %d, want 200", code)
	}
}

func TestMetadata(t *testing.T) {
	env := newTestEnv(t, testConfig(), true)

	var meta metadataResponse
	if code := env.do(t, "GET", "/api/v1/tle/metadata", &meta); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if meta.Count != 1 || meta.Source != "test" {
		t.Errorf("metadata = %+v", meta)
	}

	empty := newTestEnv(t, testConfig(), false)
	if code := empty.do(t, "GET", "/api/v1/tle/metadata", nil); code != http.StatusServiceUnavailable {
		t.Errorf("empty metadata = %d, want 503", code)
	}
	if code := empty.do(t, "POST", "/api/v1/tle/refresh", nil); code != http.StatusServiceUnavailable {
		t.Errorf("refresh without loader = %d, want 503", code)
	}
}

// positionJSON decodes either position variant.
type positionJSON struct {
	NORADID  int    `json:"norad_id"`
	Name     string `json:"name"`
	Position struct {
		Geodetic struct {
			Latitude   float64 `json:"latitude"`
			AltitudeKm float64 `json:"altitude_km"`
		} `json:"geodetic"`
		Look *struct {
			Azimuth   float64 `json:"azimuth"`
			Elevation float64 `json:"elevation"`
		} `json:"look"`
	} `json:"position"`
}

func TestPosition(t *testing.T) {
	env := newTestEnv(t, testConfig(), true)

	var geo positionJSON
	if code := env.do(t, "GET", "/api/v1/position/25544?at="+testStart, &geo); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if geo.NORADID != 25544 || geo.Position.Look != nil {
		t.Errorf("geocentric response = %+v", geo)
	}
	if alt := geo.Position.Geodetic.AltitudeKm; alt < 380 || alt > 450 {
		t.Errorf("altitude = %.1f", alt)
	}

	var topo positionJSON
	if code := env.do(t, "GET", "/api/v1/position/25544?lat=40&lon=-74&at="+testStart, &topo); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if topo.Position.Look == nil {
		t.Fatal("topocentric response missing look angles")
	}
	if az := topo.Position.Look.Azimuth; az < 0 || az >= 360 {
		t.Errorf("azimuth = %v", az)
	}
}

func TestPositionErrors(t *testing.T) {
	env := newTestEnv(t, testConfig(), true)

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/position/abc", http.StatusBadRequest},
		{"/api/v1/position/0", http.StatusBadRequest},
		{"/api/v1/position/99999", http.StatusNotFound},
		{"/api/v1/position/25544?lat=40", http.StatusBadRequest},
		{"/api/v1/position/25544?lat=100&lon=0", http.StatusBadRequest},
		{"/api/v1/position/25544?at=yesterday", http.StatusBadRequest},
		{"/api/v1/position/25544?lat=NaN&lon=0", http.StatusBadRequest},
		{"/api/v1/position/25544?lat=0&lon=Inf", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if code := env.do(t, "GET", tt.path, nil); code != tt.want {
				t.Errorf("status = %d, want %d", code, tt.want)
			}
		})
	}

	empty := newTestEnv(t, testConfig(), false)
	if code := empty.do(t, "GET", "/api/v1/position/25544", nil); code != http.StatusServiceUnavailable {
		t.Errorf("no catalog = %d, want 503", code)
	}
}

func TestPositions(t *testing.T) {
	env := newTestEnv(t, testConfig(), true)

	var snap struct {
		Satellites []positionJSON `json:"satellites"`
		Errors     int            `json:"errors"`
	}
	if code := env.do(t, "GET", "/api/v1/positions?lat=40&lon=-74&at="+testStart, &snap); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(snap.Satellites) != 1 || snap.Errors != 0 || snap.Satellites[0].Position.Look == nil {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestPasses(t *testing.T) {
	env := newTestEnv(t, testConfig(), true)

	var res passes.SatellitePasses
	code := env.do(t, "GET", "/api/v1/passes/25544?lat=40&lon=-74&count=2&start="+testStart, &res)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(res.Passes) != 2 {
		t.Fatalf("got %d passes, want 2", len(res.Passes))
	}
	if !res.Passes[1].Rise.After(res.Passes[0].Set) {
		t.Error("passes out of order")
	}
	for _, p := range res.Passes {
		if p.MaxElevation < 10 {
			t.Errorf("pass peaking at %.1f below default minimum", p.MaxElevation)
		}
	}

	for _, path := range []string{
		"/api/v1/passes/25544",
		"/api/v1/passes/25544?lat=40&lon=-74&count=500",
		"/api/v1/passes/25544?lat=40&lon=-74&min_elevation=-5",
		"/api/v1/passes/25544?lat=40&lon=-74&hours=100000",
		"/api/v1/passes/25544?lat=NaN&lon=-74",
		"/api/v1/passes/25544?lat=40&lon=-74&hours=NaN",
		"/api/v1/passes/25544?lat=40&lon=-74&min_elevation=NaN",
	} {
		if code := env.do(t, "GET", path, nil); code != http.StatusBadRequest {
			t.Errorf("%s = %d, want 400", path, code)
		}
	}
}

func TestNextPass(t *testing.T) {
	env := newTestEnv(t, testConfig(), true)

	if code := env.do(t, "GET", "/api/v1/passes/25544/next", nil); code != http.StatusNotFound {
		t.Errorf("status before request = %d, want 404", code)
	}

	var accepted nextPassAccepted
	code := env.do(t, "POST", "/api/v1/passes/25544/next?lat=40&lon=-74&start="+testStart, &accepted)
	if code != http.StatusAccepted {
		t.Fatalf("POST status = %d", code)
	}
	if accepted.Token == 0 || accepted.NORADID != 25544 {
		t.Errorf("accepted = %+v", accepted)
	}

	env.tracker.Wait()

	var st tracker.Status
	if code := env.do(t, "GET", "/api/v1/passes/25544/next", &st); code != http.StatusOK {
		t.Fatalf("GET status = %d", code)
	}
	if st.Pending || st.Result == nil || st.Result.Token != accepted.Token || !st.Result.Found {
		t.Errorf("status = %+v", st)
	}

	if code := env.do(t, "POST", "/api/v1/passes/99999/next?lat=40&lon=-74", nil); code != http.StatusNotFound {
		t.Errorf("unknown satellite = %d, want 404", code)
	}
}

func TestAuthChain(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = auth.Config{Enabled: true, Token: "s3cret"}
	env := newTestEnv(t, cfg, true)

	if code := env.do(t, "GET", "/api/v1/position/25544", nil); code != http.StatusUnauthorized {
		t.Errorf("unauthenticated = %d, want 401", code)
	}
	if code := env.do(t, "GET", "/api/v1/tle/metadata", nil); code != http.StatusOK {
		t.Errorf("metadata = %d, want 200", code)
	}

	req, _ := http.NewRequest("GET", env.srv.URL+"/api/v1/position/25544", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("authenticated = %d, want 200", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, testConfig(), true)
	if code := env.do(t, "DELETE", "/api/v1/tle/metadata", nil); code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE = %d, want 405", code)
	}
}

func TestLoggingMiddlewareUsesClientIP(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := loggingMiddleware(logger, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	req := httptest.NewRequest("GET", "/api/v1/positions", nil)
	req.Header.Set("X-Forwarded-For", "1.2.3.4")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal([]byte(buf.String()), &entry); err != nil {
		t.Fatalf("log line not JSON: %v", err)
	}
	if entry["remote_ip"] != "1.2.3.4" || entry["status"] != "418" {
		t.Errorf("log entry = %v", entry)
	}
}

func TestPositionStreamThroughMiddleware(t *testing.T) {
	env := newTestEnv(t, testConfig(), true)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.srv.URL+"/api/v1/stream/position/25544?lat=40.7&lon=-74", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	// The middleware must pass flushes through: metadata and the first
	// position arrive without waiting for the stream to end.
	var types []string
	scanner := bufio.NewScanner(resp.Body)
	for len(types) < 2 && scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			t.Fatal(err)
		}
		types = append(types, msg.Type)
	}
	if len(types) != 2 || types[0] != "metadata" || types[1] != "position" {
		t.Errorf("message types = %v, want [metadata position]", types)
	}
}
