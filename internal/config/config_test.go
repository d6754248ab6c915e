package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/star/skypass/internal/propagation"
	"github.com/star/skypass/internal/tle"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", testLogger)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("HTTP.Addr = %q, want :8080", cfg.HTTP.Addr)
	}
	if cfg.Log.Level != slog.LevelInfo {
		t.Errorf("Log.Level = %v, want info", cfg.Log.Level)
	}
	if cfg.TLE.RefreshInterval != time.Hour || cfg.TLE.MaxAge != 6*time.Hour {
		t.Errorf("TLE intervals = %v / %v", cfg.TLE.RefreshInterval, cfg.TLE.MaxAge)
	}
	if opts := cfg.PassOptions(); opts.MinElevation != 10 || opts.MaxHours != 48 {
		t.Errorf("PassOptions = %+v, want 10 deg / 48 h", opts)
	}
	if cfg.Propagation.Model != ModelKepler || cfg.Propagation.Workers < 1 {
		t.Errorf("Propagation = %+v", cfg.Propagation)
	}
	if got := cfg.Sources(); len(got) != 1 || got[0] != cfg.TLE.SourceURL {
		t.Errorf("Sources = %v", got)
	}
	if cfg.Stream.MaxConcurrentPerIP != 10 || cfg.Stream.KeepaliveInterval != 30*time.Second {
		t.Errorf("Stream = %+v", cfg.Stream)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SKYPASS_HTTP_ADDR", ":9999")
	t.Setenv("SKYPASS_LOG_LEVEL", "debug")
	t.Setenv("SKYPASS_TLE_MAX_AGE", "2h")
	t.Setenv("SKYPASS_PASSES_MIN_ELEVATION", "25.5")
	t.Setenv("SKYPASS_PROPAGATION_MODEL", "SGP4")
	t.Setenv("SKYPASS_AUTH_ENABLED", "true")
	t.Setenv("SKYPASS_AUTH_TOKEN", "secret")

	cfg, err := Load("", testLogger)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTP.Addr != ":9999" {
		t.Errorf("HTTP.Addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Log.Level != slog.LevelDebug {
		t.Errorf("Log.Level = %v", cfg.Log.Level)
	}
	if cfg.TLE.MaxAge != 2*time.Hour {
		t.Errorf("TLE.MaxAge = %v", cfg.TLE.MaxAge)
	}
	if cfg.Passes.MinElevation != 25.5 {
		t.Errorf("Passes.MinElevation = %v", cfg.Passes.MinElevation)
	}
	if cfg.Propagation.Model != ModelSGP4 {
		t.Errorf("Propagation.Model = %q", cfg.Propagation.Model)
	}
	if !cfg.Auth.Enabled || cfg.Auth.Token != "secret" {
		t.Errorf("Auth = %+v", cfg.Auth)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skypass.yaml")
	data := []byte(`
http:
  addr: "127.0.0.1:7000"
tle:
  extra_sources:
    - https://example.com/a.tle
    - https://example.com/b.tle
observer:
  latitude: 40.0
  longitude: -74.0
passes:
  max_passes: 3
  ground_track_step: 15s
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, testLogger)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTP.Addr != "127.0.0.1:7000" {
		t.Errorf("HTTP.Addr = %q", cfg.HTTP.Addr)
	}
	if got := cfg.Sources(); len(got) != 3 || got[2] != "https://example.com/b.tle" {
		t.Errorf("Sources = %v", got)
	}
	if cfg.Observer.Latitude != 40 || cfg.Observer.Longitude != -74 {
		t.Errorf("Observer = %+v", cfg.Observer)
	}
	if cfg.Passes.MaxPasses != 3 || cfg.Passes.GroundTrackStep != 15*time.Second {
		t.Errorf("Passes = %+v", cfg.Passes)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), testLogger); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("SKYPASS_LOG_LEVEL", "loud")
	t.Setenv("SKYPASS_PROPAGATION_WORKERS", "0")
	t.Setenv("SKYPASS_PROPAGATION_MODEL", "sdp4")
	t.Setenv("SKYPASS_PASSES_MAX_HOURS", "100000")
	t.Setenv("SKYPASS_TLE_REFRESH_INTERVAL", "1s")
	t.Setenv("SKYPASS_STREAM_MAX_CONCURRENT_PER_IP", "-1")

	cfg, err := Load("", testLogger)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != slog.LevelInfo {
		t.Errorf("Log.Level = %v, want info", cfg.Log.Level)
	}
	if cfg.Propagation.Workers < 1 || cfg.Propagation.Model != ModelKepler {
		t.Errorf("Propagation = %+v", cfg.Propagation)
	}
	if cfg.Passes.MaxHours != 48 {
		t.Errorf("Passes.MaxHours = %v, want 48", cfg.Passes.MaxHours)
	}
	if cfg.TLE.RefreshInterval != time.Hour {
		t.Errorf("TLE.RefreshInterval = %v, want 1h", cfg.TLE.RefreshInterval)
	}
	if cfg.Stream.MaxConcurrentPerIP != 10 {
		t.Errorf("Stream.MaxConcurrentPerIP = %d, want 10", cfg.Stream.MaxConcurrentPerIP)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"auth without token", map[string]string{"SKYPASS_AUTH_ENABLED": "true"}},
		{"latitude out of range", map[string]string{"SKYPASS_OBSERVER_LATITUDE": "91"}},
		{"longitude out of range", map[string]string{"SKYPASS_OBSERVER_LONGITUDE": "-200"}},
		{"latitude NaN", map[string]string{"SKYPASS_OBSERVER_LATITUDE": "NaN"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load("", testLogger); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestModelFactory(t *testing.T) {
	cfg := Config{Propagation: PropagationConfig{Model: ModelKepler}}
	m, err := cfg.ModelFactory()(mustISS(t))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.(*propagation.Kepler); !ok {
		t.Errorf("kepler config built %T", m)
	}

	cfg.Propagation.Model = ModelSGP4
	m, err = cfg.ModelFactory()(mustISS(t))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.(*propagation.SGP4); !ok {
		t.Errorf("sgp4 config built %T", m)
	}
}

func mustISS(t *testing.T) tle.TLE {
	t.Helper()
	e, err := tle.Parse("ISS (ZARYA)",
		"1 25544U 98067A   25045.18032407  .00016717  00000+0  30099-3 0  9993",
		"2 25544  51.6412 193.5765 0003457 126.2851 233.8519 15.49874301495058")
	if err != nil {
		t.Fatal(err)
	}
	return e
}
