package dynobj

import (
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Config is the Dispatcher's explicit, threaded-in configuration —
// spec.md §9's Design Notes prefer this over a bare env lookup buried
// in the hot path: "an implementer should prefer an explicit
// configuration value threaded into the Dispatcher and fall back to
// the environment only at top-level initialization."
// Config itself is never decoded directly (see configFile) — struct
// tags belong to configFile since the millisecond-to-Duration
// conversion needs an intermediate representation.
type Config struct {
	// DeadlockTimeout is the lock-acquisition timeout; 0 disables it
	// (infinite wait). Corresponds to QI_DEADLOCK_TIMEOUT.
	DeadlockTimeout time.Duration
	// DefaultWorkerCount is a worker-pool size loaded from config
	// files. DefaultThreadPoolEventLoop does not read it; it always
	// starts 4 workers.
	DefaultWorkerCount int
	// StatsEnabled/TraceEnabled set the default observability toggles
	// for new Contexts built from this config.
	StatsEnabled bool
	TraceEnabled bool
	// StatsFlushSchedule is the cron expression the StatsAggregator
	// uses to flush rolling stats.
	StatsFlushSchedule string
}

// DefaultDeadlockTimeoutMS is the fallback used when neither a config
// file nor QI_DEADLOCK_TIMEOUT is set, matching the original's
// hard-coded 30-second default.
const DefaultDeadlockTimeoutMS = 30000

var (
	envDeadlockTimeoutOnce sync.Once
	envDeadlockTimeoutMS   = DefaultDeadlockTimeoutMS
)

// DefaultConfig returns a Config with the spec's defaults, reading
// QI_DEADLOCK_TIMEOUT once as the top-level environment fallback the
// way original_source's locked_call reads it on first use.
func DefaultConfig() *Config {
	envDeadlockTimeoutOnce.Do(func() {
		if s := os.Getenv("QI_DEADLOCK_TIMEOUT"); s != "" {
			if v, err := strconv.ParseInt(s, 10, 64); err == nil {
				envDeadlockTimeoutMS = int(v)
			}
		}
	})
	ms := envDeadlockTimeoutMS
	return &Config{
		DeadlockTimeout:    time.Duration(ms) * time.Millisecond,
		DefaultWorkerCount: 4,
		StatsEnabled:       false,
		TraceEnabled:       false,
		StatsFlushSchedule: "@every 1m",
	}
}

// Feeder loads configuration from one source into a Config, matching
// the teacher's feeders package shape (one small interface, one
// implementation per file format).
type Feeder interface {
	Feed(cfg *Config) error
}

// configFile mirrors Config's decodable fields but carries the
// deadlock timeout as milliseconds behind a pointer, so toml/yaml
// decode it as a plain scalar instead of a time.Duration (which would
// silently assign the raw integer as nanoseconds) and so an absent
// key is distinguishable from an explicit zero.
type configFile struct {
	DeadlockTimeoutMS  *int64  `toml:"deadlock_timeout_ms" yaml:"deadlockTimeoutMs"`
	DefaultWorkerCount *int    `toml:"default_worker_count" yaml:"defaultWorkerCount"`
	StatsEnabled       *bool   `toml:"stats_enabled" yaml:"statsEnabled"`
	TraceEnabled       *bool   `toml:"trace_enabled" yaml:"traceEnabled"`
	StatsFlushSchedule *string `toml:"stats_flush_schedule" yaml:"statsFlushSchedule"`
}

// applyConfigFile copies the fields configFile actually decoded onto
// cfg, converting the millisecond timeout to a time.Duration. Fields
// absent from the source file are left untouched on cfg.
func applyConfigFile(cfg *Config, raw configFile) {
	if raw.DeadlockTimeoutMS != nil {
		cfg.DeadlockTimeout = time.Duration(*raw.DeadlockTimeoutMS) * time.Millisecond
	}
	if raw.DefaultWorkerCount != nil {
		cfg.DefaultWorkerCount = *raw.DefaultWorkerCount
	}
	if raw.StatsEnabled != nil {
		cfg.StatsEnabled = *raw.StatsEnabled
	}
	if raw.TraceEnabled != nil {
		cfg.TraceEnabled = *raw.TraceEnabled
	}
	if raw.StatsFlushSchedule != nil {
		cfg.StatsFlushSchedule = *raw.StatsFlushSchedule
	}
}

// TomlFeeder reads Config fields from a TOML file, grounded in the
// teacher's feeders/toml.go.
type TomlFeeder struct {
	Path string
}

func NewTomlFeeder(path string) TomlFeeder { return TomlFeeder{Path: path} }

func (f TomlFeeder) Feed(cfg *Config) error {
	if f.Path == "" {
		return ErrConfigFileEmpty
	}
	var raw configFile
	if _, err := toml.DecodeFile(f.Path, &raw); err != nil {
		return err
	}
	applyConfigFile(cfg, raw)
	return nil
}

// YAMLFeeder reads Config fields from a YAML file, grounded in the
// teacher's feeders/yaml.go.
type YAMLFeeder struct {
	Path string
}

func NewYAMLFeeder(path string) YAMLFeeder { return YAMLFeeder{Path: path} }

func (f YAMLFeeder) Feed(cfg *Config) error {
	if f.Path == "" {
		return ErrConfigFileEmpty
	}
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return err
	}
	var raw configFile
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return err
	}
	applyConfigFile(cfg, raw)
	return nil
}

// LiveConfig holds a *Config behind an atomic pointer, hot-swapped by
// a fsnotify watcher on the backing file — the same "watch + atomic
// swap" shape as the teacher's examples/logger-reconfiguration config
// watcher, applied here to the Dispatcher's deadlock timeout and
// stats/trace toggles instead of logger settings. A Dispatcher keeps
// the *Config it was built with; it does not read from a LiveConfig.
type LiveConfig struct {
	ptr     atomic.Pointer[Config]
	feeder  Feeder
	path    string
	watcher *fsnotify.Watcher
	logger  Logger
}

// NewLiveConfig loads path once via feeder and starts watching it for
// changes. On any write event the file is re-fed and the atomic
// pointer swapped; feed errors are logged and the previous config is
// kept in place. Pass a nil Logger to use NopLogger.
func NewLiveConfig(path string, feeder Feeder, logger Logger) (*LiveConfig, error) {
	if logger == nil {
		logger = NopLogger{}
	}
	cfg := DefaultConfig()
	if err := feeder.Feed(cfg); err != nil {
		return nil, err
	}
	lc := &LiveConfig{feeder: feeder, path: path, logger: logger}
	lc.ptr.Store(cfg)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		_ = w.Close()
		return nil, err
	}
	lc.watcher = w
	go lc.watch()
	return lc, nil
}

func (lc *LiveConfig) watch() {
	for {
		select {
		case event, ok := <-lc.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			next := DefaultConfig()
			if err := lc.feeder.Feed(next); err != nil {
				lc.logger.Error("config reload failed", "path", lc.path, "error", err)
				continue
			}
			lc.ptr.Store(next)
			lc.logger.Info("config reloaded", "path", lc.path)
		case err, ok := <-lc.watcher.Errors:
			if !ok {
				return
			}
			lc.logger.Error("config watcher error", "error", err)
		}
	}
}

// Get returns the currently active Config snapshot.
func (lc *LiveConfig) Get() *Config { return lc.ptr.Load() }

// Close stops the underlying fsnotify watcher.
func (lc *LiveConfig) Close() error { return lc.watcher.Close() }
