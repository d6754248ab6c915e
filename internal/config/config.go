// Package config loads skypass settings from defaults, an optional config
// file and SKYPASS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/star/skypass/internal/auth"
	"github.com/star/skypass/internal/passes"
	"github.com/star/skypass/internal/propagation"
	"github.com/star/skypass/internal/tle"
)

// EnvPrefix is prepended to every environment override: tle.source_url is
// read from SKYPASS_TLE_SOURCE_URL.
const EnvPrefix = "SKYPASS"

// Config is the complete runtime configuration.
type Config struct {
	HTTP        HTTPConfig
	Log         LogConfig
	Auth        auth.Config
	TLE         TLEConfig
	Propagation PropagationConfig
	Passes      PassesConfig
	Observer    ObserverConfig
	Stream      StreamConfig
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr       string
	TrustProxy bool
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level slog.Level
}

// TLEConfig configures catalog acquisition.
type TLEConfig struct {
	SourceURL       string
	ExtraSources    []string
	EnableFetch     bool
	CacheDir        string
	MaxFiles        int
	RefreshInterval time.Duration
	MaxAge          time.Duration
}

// PropagationConfig selects the worker count and model.
type PropagationConfig struct {
	Workers int
	Model   string // "kepler" or "sgp4"
}

// PassesConfig holds pass search defaults.
type PassesConfig struct {
	MinElevation    float64
	MaxHours        float64
	MaxPasses       int
	GroundTrackStep time.Duration
}

// ObserverConfig is the default observer for CLI commands.
type ObserverConfig struct {
	Latitude  float64
	Longitude float64
}

// StreamConfig limits the live position streams.
type StreamConfig struct {
	MaxConcurrentPerIP int
	KeepaliveInterval  time.Duration
}

// Model model names.
const (
	ModelKepler = "kepler"
	ModelSGP4   = "sgp4"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.trust_proxy", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.token", "")
	v.SetDefault("tle.source_url", tle.DefaultSourceURL)
	v.SetDefault("tle.extra_sources", []string{})
	v.SetDefault("tle.enable_fetch", true)
	v.SetDefault("tle.cache_dir", "data/tle")
	v.SetDefault("tle.max_files", 5)
	v.SetDefault("tle.refresh_interval", "1h")
	v.SetDefault("tle.max_age", "6h")
	v.SetDefault("propagation.workers", runtime.NumCPU())
	v.SetDefault("propagation.model", ModelKepler)
	v.SetDefault("passes.min_elevation", passes.DefaultOptions().MinElevation)
	v.SetDefault("passes.max_hours", passes.DefaultOptions().MaxHours)
	v.SetDefault("passes.max_passes", 5)
	v.SetDefault("passes.ground_track_step", "0s")
	v.SetDefault("observer.latitude", 0.0)
	v.SetDefault("observer.longitude", 0.0)
	v.SetDefault("stream.max_concurrent_per_ip", 10)
	v.SetDefault("stream.keepalive_interval", "30s")
}

// New returns a viper instance with defaults and environment overrides
// bound, reading path when it is not empty.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}
	return v, nil
}

// Load reads the configuration. Out-of-range tuning values fall back to
// their defaults with a warning; settings that cannot be defaulted safely
// return an error.
func Load(path string, logger *slog.Logger) (Config, error) {
	v, err := New(path)
	if err != nil {
		return Config{}, err
	}
	return FromViper(v, logger)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper, logger *slog.Logger) (Config, error) {
	cfg := Config{
		HTTP: HTTPConfig{
			Addr:       v.GetString("http.addr"),
			TrustProxy: v.GetBool("http.trust_proxy"),
		},
		Auth: auth.Config{
			Enabled: v.GetBool("auth.enabled"),
			Token:   v.GetString("auth.token"),
		},
		TLE: TLEConfig{
			SourceURL:       v.GetString("tle.source_url"),
			ExtraSources:    v.GetStringSlice("tle.extra_sources"),
			EnableFetch:     v.GetBool("tle.enable_fetch"),
			CacheDir:        v.GetString("tle.cache_dir"),
			MaxFiles:        v.GetInt("tle.max_files"),
			RefreshInterval: v.GetDuration("tle.refresh_interval"),
			MaxAge:          v.GetDuration("tle.max_age"),
		},
		Propagation: PropagationConfig{
			Workers: v.GetInt("propagation.workers"),
			Model:   strings.ToLower(v.GetString("propagation.model")),
		},
		Passes: PassesConfig{
			MinElevation:    v.GetFloat64("passes.min_elevation"),
			MaxHours:        v.GetFloat64("passes.max_hours"),
			MaxPasses:       v.GetInt("passes.max_passes"),
			GroundTrackStep: v.GetDuration("passes.ground_track_step"),
		},
		Observer: ObserverConfig{
			Latitude:  v.GetFloat64("observer.latitude"),
			Longitude: v.GetFloat64("observer.longitude"),
		},
		Stream: StreamConfig{
			MaxConcurrentPerIP: v.GetInt("stream.max_concurrent_per_ip"),
			KeepaliveInterval:  v.GetDuration("stream.keepalive_interval"),
		},
	}

	if err := cfg.Log.Level.UnmarshalText([]byte(v.GetString("log.level"))); err != nil {
		logger.Warn("invalid log.level value, using default", "value", v.GetString("log.level"), "default", "info")
		cfg.Log.Level = slog.LevelInfo
	}

	if cfg.Auth.Enabled && cfg.Auth.Token == "" {
		return cfg, errors.New("auth.token (SKYPASS_AUTH_TOKEN) is required when auth is enabled")
	}
	if !(cfg.Observer.Latitude >= -90 && cfg.Observer.Latitude <= 90) {
		return cfg, fmt.Errorf("observer.latitude %.4f outside [-90, 90]", cfg.Observer.Latitude)
	}
	if !(cfg.Observer.Longitude >= -180 && cfg.Observer.Longitude <= 180) {
		return cfg, fmt.Errorf("observer.longitude %.4f outside [-180, 180]", cfg.Observer.Longitude)
	}

	if cfg.TLE.MaxFiles < 1 {
		logger.Warn("invalid tle.max_files value, using default", "value", cfg.TLE.MaxFiles, "default", 5)
		cfg.TLE.MaxFiles = 5
	}
	if cfg.TLE.RefreshInterval < time.Minute {
		logger.Warn("invalid tle.refresh_interval value, using default", "value", cfg.TLE.RefreshInterval.String(), "default", "1h")
		cfg.TLE.RefreshInterval = time.Hour
	}
	if cfg.TLE.MaxAge <= 0 {
		logger.Warn("invalid tle.max_age value, using default", "value", cfg.TLE.MaxAge.String(), "default", "6h")
		cfg.TLE.MaxAge = 6 * time.Hour
	}
	if cfg.Propagation.Workers < 1 {
		logger.Warn("invalid propagation.workers value, using default", "value", cfg.Propagation.Workers, "default", runtime.NumCPU())
		cfg.Propagation.Workers = runtime.NumCPU()
	}
	if cfg.Propagation.Model != ModelKepler && cfg.Propagation.Model != ModelSGP4 {
		logger.Warn("invalid propagation.model value, using default", "value", cfg.Propagation.Model, "default", ModelKepler)
		cfg.Propagation.Model = ModelKepler
	}
	if !(cfg.Passes.MinElevation >= 0 && cfg.Passes.MinElevation <= 90) {
		logger.Warn("invalid passes.min_elevation value, using default", "value", cfg.Passes.MinElevation, "default", 10)
		cfg.Passes.MinElevation = passes.DefaultOptions().MinElevation
	}
	if !(cfg.Passes.MaxHours > 0 && cfg.Passes.MaxHours <= MaxSearchHours) {
		logger.Warn("invalid passes.max_hours value, using default", "value", cfg.Passes.MaxHours, "default", 48)
		cfg.Passes.MaxHours = passes.DefaultOptions().MaxHours
	}
	if cfg.Passes.MaxPasses < 1 {
		logger.Warn("invalid passes.max_passes value, using default", "value", cfg.Passes.MaxPasses, "default", 5)
		cfg.Passes.MaxPasses = 5
	}
	if cfg.Passes.GroundTrackStep < 0 {
		cfg.Passes.GroundTrackStep = 0
	}
	if cfg.Stream.MaxConcurrentPerIP < 1 {
		logger.Warn("invalid stream.max_concurrent_per_ip value, using default", "value", cfg.Stream.MaxConcurrentPerIP, "default", 10)
		cfg.Stream.MaxConcurrentPerIP = 10
	}
	if cfg.Stream.KeepaliveInterval < time.Second {
		logger.Warn("invalid stream.keepalive_interval value, using default", "value", cfg.Stream.KeepaliveInterval.String(), "default", "30s")
		cfg.Stream.KeepaliveInterval = 30 * time.Second
	}

	return cfg, nil
}

// MaxSearchHours caps the pass search window to bound its cost.
const MaxSearchHours = 14 * 24

// PropConfig converts the propagation settings.
func (c Config) PropConfig() propagation.PropConfig {
	return propagation.PropConfig{Workers: c.Propagation.Workers, Model: c.ModelFactory()}
}

// ModelFactory returns the configured propagation model.
func (c Config) ModelFactory() propagation.ModelFactory {
	if c.Propagation.Model == ModelSGP4 {
		return propagation.SGP4Model
	}
	return propagation.KeplerModel
}

// PassOptions returns the pass search defaults.
func (c Config) PassOptions() passes.Options {
	return passes.Options{MinElevation: c.Passes.MinElevation, MaxHours: c.Passes.MaxHours}
}

// Sources returns the primary source followed by the extra sources.
func (c Config) Sources() []string {
	return append([]string{c.TLE.SourceURL}, c.TLE.ExtraSources...)
}
